// Command opora runs the Opora social-services directory assistant.
//
// Two modes are available:
//
//	opora serve -config config.yaml   # HTTP API, chat assistant, semantic search
//	opora voice -config config.yaml   # local microphone voice assistant
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/opora-ua/opora/internal/assist"
	"github.com/opora-ua/opora/internal/config"
	"github.com/opora-ua/opora/internal/directory"
	"github.com/opora-ua/opora/internal/health"
	"github.com/opora-ua/opora/internal/observe"
	"github.com/opora-ua/opora/internal/resilience"
	"github.com/opora-ua/opora/internal/server"
	"github.com/opora-ua/opora/internal/tools"
	"github.com/opora-ua/opora/internal/voice"
	"github.com/opora-ua/opora/pkg/audio/capture"
	"github.com/opora-ua/opora/pkg/audio/playout"
	"github.com/opora-ua/opora/pkg/provider/chat"
	"github.com/opora-ua/opora/pkg/provider/chat/anyllm"
	"github.com/opora-ua/opora/pkg/provider/embeddings"
	ollamaembed "github.com/opora-ua/opora/pkg/provider/embeddings/ollama"
	oaembed "github.com/opora-ua/opora/pkg/provider/embeddings/openai"
	"github.com/opora-ua/opora/pkg/provider/live"
	geminilive "github.com/opora-ua/opora/pkg/provider/live/gemini"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	mode := "serve"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		mode = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("opora "+mode, flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if mode != "serve" && mode != "voice" {
		fmt.Fprintf(os.Stderr, "opora: unknown mode %q (want serve or voice)\n", mode)
		return 2
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "opora: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "opora: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("opora starting",
		"mode", mode,
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "voice":
		return runVoice(ctx, cfg, reg)
	default:
		return runServe(ctx, cfg, reg, *configPath, logLevel)
	}
}

// ── serve mode ────────────────────────────────────────────────────────────────

func runServe(ctx context.Context, cfg *config.Config, reg *config.Registry, configPath string, logLevel *slog.LevelVar) int {
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "opora"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Directory store ───────────────────────────────────────────────────────
	var (
		store    directory.Store
		pool     *pgxpool.Pool
		checkers []health.Checker
	)
	if dsn := cfg.Directory.PostgresDSN; dsn != "" {
		pool, err = pgxpool.New(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer pool.Close()

		pg := directory.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			slog.Error("failed to migrate directory schema", "err", err)
			return 1
		}
		store = pg
		checkers = append(checkers, health.Database(pool))
		slog.Info("directory store ready", "backend", "postgres")
	} else {
		store = directory.NewMemStore()
		slog.Info("directory store ready", "backend", "memory")
	}

	if cfg.Directory.SourceFile != "" {
		if err := importDirectory(ctx, store, cfg.Directory.SourceFile); err != nil {
			slog.Error("failed to import directory file", "path", cfg.Directory.SourceFile, "err", err)
			return 1
		}
	}

	// ── Embeddings + semantic index ───────────────────────────────────────────
	var (
		embedder embeddings.Provider
		semantic *directory.SemanticIndex
	)
	if name := cfg.Providers.Embeddings.Name; name != "" {
		primary, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			slog.Error("failed to create embeddings provider", "name", name, "err", err)
			return 1
		}
		embedder = resilience.NewEmbeddingsFallback(primary, name, resilience.FallbackConfig{})
		slog.Info("provider created", "kind", "embeddings", "name", name)

		if pool != nil {
			dims := cfg.Providers.Embeddings.Dimensions
			if dims == 0 {
				dims = embedder.Dimensions()
			}
			semantic = directory.NewSemanticIndex(pool, dims)
			if err := semantic.Migrate(ctx); err != nil {
				slog.Error("failed to migrate semantic index", "err", err)
				return 1
			}
			n, err := directory.Reindex(ctx, store, semantic, embedder)
			if err != nil {
				slog.Error("failed to reindex directory", "err", err)
				return 1
			}
			slog.Info("semantic index ready", "organizations", n, "dimensions", dims)
		}
	}

	// ── Tools + chat assistant ────────────────────────────────────────────────
	toolHost := tools.NewHost()
	defer toolHost.Close()
	if err := toolHost.RegisterBuiltin(tools.SearchTool(store)); err != nil {
		slog.Error("failed to register search tool", "err", err)
		return 1
	}
	registerToolServers(ctx, toolHost, cfg.Tools.Servers)

	var assistant server.Responder
	if name := cfg.Providers.Chat.Name; name != "" {
		primary, err := reg.CreateChat(cfg.Providers.Chat)
		if err != nil {
			slog.Error("failed to create chat provider", "name", name, "err", err)
			return 1
		}
		slog.Info("provider created", "kind", "chat", "name", name, "model", cfg.Providers.Chat.Model)

		assistant, err = assist.New(assist.Config{
			Provider:  resilience.NewChatFallback(primary, name, resilience.FallbackConfig{}),
			Directory: store,
			Tools:     toolHost,
		})
		if err != nil {
			slog.Error("failed to create assistant", "err", err)
			return 1
		}
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv, err := server.New(server.Config{
		Store:     store,
		Assistant: assistant,
		Embedder:  embedder,
		Semantic:  semantic,
		Checkers:  checkers,
	})
	if err != nil {
		slog.Error("failed to create server", "err", err)
		return 1
	}

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Config watcher ────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(configPath, func(old, new *config.Config) {
		applyConfigChange(ctx, config.Diff(old, new), new, store, toolHost, logLevel)
	})
	if err != nil {
		slog.Warn("config watcher unavailable", "err", err)
	} else {
		defer watcher.Stop()
	}

	printStartupSummary(cfg, addr)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = httpServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		errCh <- err
	}()

	slog.Info("server ready — press Ctrl+C to shut down", "addr", addr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			return 1
		}
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// applyConfigChange applies the hot-reloadable parts of a config change.
func applyConfigChange(ctx context.Context, d config.ConfigDiff, cfg *config.Config, store directory.Store, host *tools.Host, logLevel *slog.LevelVar) {
	if d.LogLevelChanged {
		logLevel.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.DirectorySourceChanged && cfg.Directory.SourceFile != "" {
		if err := importDirectory(ctx, store, cfg.Directory.SourceFile); err != nil {
			slog.Warn("failed to re-import directory file", "path", cfg.Directory.SourceFile, "err", err)
		}
	}
	if d.ToolServersChanged {
		registerToolServers(ctx, host, cfg.Tools.Servers)
	}
}

// importDirectory loads a YAML directory file and imports it into store.
func importDirectory(ctx context.Context, store directory.Store, path string) error {
	file, err := directory.LoadFile(path)
	if err != nil {
		return err
	}
	n, err := directory.Import(ctx, store, file)
	if err != nil {
		return err
	}
	slog.Info("directory imported", "path", path, "organizations", n)
	return nil
}

// registerToolServers connects the configured MCP servers. Failures are logged
// and skipped so one broken server does not take the assistant down.
func registerToolServers(ctx context.Context, host *tools.Host, servers []tools.ServerConfig) {
	for _, srv := range servers {
		if err := host.RegisterServer(ctx, srv); err != nil {
			slog.Warn("failed to register MCP server", "name", srv.Name, "err", err)
			continue
		}
		slog.Info("MCP server registered", "name", srv.Name, "transport", srv.Transport)
	}
}

// ── voice mode ────────────────────────────────────────────────────────────────

func runVoice(ctx context.Context, cfg *config.Config, reg *config.Registry) int {
	if cfg.Providers.Live.Name == "" {
		fmt.Fprintln(os.Stderr, "opora: voice mode requires providers.live in the config")
		return 1
	}
	if cfg.Voice.CaptureCommand == "" {
		fmt.Fprintln(os.Stderr, "opora: voice mode requires voice.capture_command in the config")
		return 1
	}

	liveProvider, err := reg.CreateLive(cfg.Providers.Live)
	if err != nil {
		slog.Error("failed to create live provider", "name", cfg.Providers.Live.Name, "err", err)
		return 1
	}
	slog.Info("provider created", "kind", "live", "name", cfg.Providers.Live.Name)

	// Directory snapshot for grounding the conversation.
	store := directory.NewMemStore()
	if cfg.Directory.SourceFile != "" {
		if err := importDirectory(ctx, store, cfg.Directory.SourceFile); err != nil {
			slog.Error("failed to import directory file", "path", cfg.Directory.SourceFile, "err", err)
			return 1
		}
	}

	toolHost := tools.NewHost()
	defer toolHost.Close()
	if err := toolHost.RegisterBuiltin(tools.SearchTool(store)); err != nil {
		slog.Error("failed to register search tool", "err", err)
		return 1
	}
	registerToolServers(ctx, toolHost, cfg.Tools.Servers)

	captureExe, captureArgs := splitCaptureCommand(cfg.Voice.CaptureCommand)

	session, err := voice.New(voice.Config{
		Provider:  liveProvider,
		Directory: store,
		NewSource: func() (capture.Source, error) {
			return capture.NewCommandSource(captureExe, captureArgs...)
		},
		NewSink: func() (playout.Sink, error) {
			return playout.NewSpeakerSink()
		},
		Tools: toolHost,
		Voice: cfg.Providers.Live.Voice,
		OnStatus: func(connected bool) {
			if connected {
				fmt.Println("● connected — speak when ready")
			} else {
				fmt.Println("○ disconnected")
			}
		},
		OnTranscript: func(tr live.Transcript) {
			who := "you"
			if tr.Role == "model" {
				who = "opora"
			}
			fmt.Printf("[%s] %s\n", who, tr.Text)
		},
	})
	if err != nil {
		slog.Error("failed to create voice session", "err", err)
		return 1
	}

	if err := session.Connect(ctx); err != nil {
		slog.Error("failed to connect voice session", "err", err)
		return 1
	}

	<-ctx.Done()

	if err := session.Disconnect(); err != nil {
		slog.Warn("disconnect error", "err", err)
	}
	slog.Info("goodbye")
	return 0
}

// splitCaptureCommand splits a capture command line into executable and args.
func splitCaptureCommand(command string) (string, []string) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config entry and constructs the appropriate provider
// from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Chat ──────────────────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterChat(providerName, func(entry config.ProviderEntry) (chat.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterChat("ollama", func(entry config.ProviderEntry) (chat.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.EmbeddingsEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.EmbeddingsEntry) (embeddings.Provider, error) {
		var opts []ollamaembed.Option
		if entry.Dimensions > 0 {
			opts = append(opts, ollamaembed.WithDimensions(entry.Dimensions))
		}
		return ollamaembed.New(entry.BaseURL, entry.Model, opts...)
	})

	// ── Live ──────────────────────────────────────────────────────────────────

	reg.RegisterLive("gemini-live", func(entry config.LiveEntry) (live.Provider, error) {
		var opts []geminilive.Option
		if entry.Model != "" {
			opts = append(opts, geminilive.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, geminilive.WithBaseURL(entry.BaseURL))
		}
		return geminilive.New(entry.APIKey, opts...), nil
	})
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, addr string) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Opora — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Chat", cfg.Providers.Chat.Name, cfg.Providers.Chat.Model)
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	printProvider("Live", cfg.Providers.Live.Name, cfg.Providers.Live.Model)
	backend := "memory"
	if cfg.Directory.PostgresDSN != "" {
		backend = "postgres"
	}
	fmt.Printf("║  Directory       : %-19s ║\n", backend)
	fmt.Printf("║  MCP servers     : %-19d ║\n", len(cfg.Tools.Servers))
	fmt.Printf("║  Listen addr     : %-19s ║\n", addr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
