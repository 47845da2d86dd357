// Package tools hosts the functions the conversational model can call
// mid-session. Tools come from two places: external MCP servers reached via
// stdio or streamable-HTTP transports using the official MCP Go SDK, and
// built-in Go functions registered in-process.
//
// Typical usage:
//
//	h := tools.NewHost()
//
//	// Register an external MCP server.
//	err := h.RegisterServer(ctx, tools.ServerConfig{
//	    Name:      "geocoder",
//	    Transport: tools.TransportStdio,
//	    Command:   "/usr/local/bin/mcp-geocoder",
//	})
//
//	// Or register a built-in Go function.
//	h.RegisterBuiltin(tools.Builtin{
//	    Definition: live.ToolDefinition{Name: "search_organizations", ...},
//	    Handler:    searchHandler,
//	})
//
//	defs := h.Definitions()
//	result, err := h.Execute(ctx, "search_organizations", `{"query":"legal aid"}`)
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"slices"
	"strings"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/opora-ua/opora/pkg/provider/live"
)

// Transport selects how the host reaches an external MCP server.
type Transport string

const (
	// TransportStdio launches the server as a subprocess and speaks MCP over
	// its standard streams.
	TransportStdio Transport = "stdio"

	// TransportStreamableHTTP connects to a server over streamable HTTP.
	TransportStreamableHTTP Transport = "streamable-http"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	return t == TransportStdio || t == TransportStreamableHTTP
}

// ServerConfig describes one external MCP server.
type ServerConfig struct {
	// Name identifies the server within the host. Required.
	Name string `yaml:"name"`

	// Transport selects stdio or streamable-http.
	Transport Transport `yaml:"transport"`

	// Command is the executable plus arguments for stdio servers,
	// split on spaces.
	Command string `yaml:"command"`

	// URL is the endpoint for streamable-http servers.
	URL string `yaml:"url"`

	// Env holds additional environment variables for stdio servers.
	Env map[string]string `yaml:"env"`
}

// Builtin is a tool implemented as an in-process Go function.
//
// Built-in tools bypass MCP protocol overhead: Execute calls the Handler
// directly without any network or subprocess round-trip.
type Builtin struct {
	// Definition is the tool's public descriptor presented to the model.
	Definition live.ToolDefinition

	// Handler is invoked when Execute is called for this tool.
	// args is a JSON object string (e.g. "{}" or `{"key":"value"}`).
	Handler func(ctx context.Context, args string) (string, error)
}

// toolEntry holds the metadata for one registered tool.
type toolEntry struct {
	def        live.ToolDefinition
	serverName string

	// builtinFn is non-nil for in-process tools.
	builtinFn func(ctx context.Context, args string) (string, error)
}

// builtinServerName is the pseudo server name used for in-process tools.
const builtinServerName = "__builtin__"

// Host maintains the tool registry and routes execution to the right backend.
//
// The zero value is NOT usable; create instances with [NewHost].
// All methods are safe for concurrent use.
type Host struct {
	mu      sync.RWMutex
	tools   map[string]toolEntry              // key: tool name
	servers map[string]*mcpsdk.ClientSession // key: server name

	// client is reused across all server connections. The official SDK allows
	// a single Client to manage multiple sessions concurrently.
	client *mcpsdk.Client
}

// NewHost creates and returns a ready-to-use Host.
func NewHost() *Host {
	client := mcpsdk.NewClient(
		&mcpsdk.Implementation{Name: "opora-tools", Version: "1.0.0"},
		nil,
	)
	return &Host{
		tools:   make(map[string]toolEntry),
		servers: make(map[string]*mcpsdk.ClientSession),
		client:  client,
	}
}

// RegisterServer connects to the MCP server described by cfg and imports its
// tool catalogue into the host. If a server with the same Name is already
// registered, the old connection is closed and replaced.
func (h *Host) RegisterServer(ctx context.Context, cfg ServerConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("tools: server config must have a non-empty name")
	}
	if !cfg.Transport.IsValid() {
		return fmt.Errorf("tools: unknown transport %q for server %q", cfg.Transport, cfg.Name)
	}

	var transport mcpsdk.Transport

	switch cfg.Transport {
	case TransportStdio:
		executable, args := splitCommand(cfg.Command)
		if executable == "" {
			return fmt.Errorf("tools: stdio server %q requires a non-empty Command", cfg.Name)
		}
		cmd := exec.CommandContext(ctx, executable, args...)
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		transport = &mcpsdk.CommandTransport{Command: cmd}

	case TransportStreamableHTTP:
		if cfg.URL == "" {
			return fmt.Errorf("tools: streamable-http server %q requires a non-empty URL", cfg.Name)
		}
		transport = &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}
	}

	session, err := h.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("tools: failed to connect to server %q: %w", cfg.Name, err)
	}

	var discovered []mcpsdk.Tool
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			_ = session.Close()
			return fmt.Errorf("tools: failed to list tools for server %q: %w", cfg.Name, err)
		}
		discovered = append(discovered, *tool)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.servers[cfg.Name]; ok {
		_ = old.Close()
		for name, t := range h.tools {
			if t.serverName == cfg.Name {
				delete(h.tools, name)
			}
		}
	}

	h.servers[cfg.Name] = session

	for _, t := range discovered {
		h.tools[t.Name] = toolEntry{
			def: live.ToolDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schemaToMap(t.InputSchema),
			},
			serverName: cfg.Name,
		}
	}
	return nil
}

// RegisterBuiltin registers a built-in tool that is called in-process.
// If a tool with the same name is already registered it is replaced.
func (h *Host) RegisterBuiltin(tool Builtin) error {
	if tool.Definition.Name == "" {
		return fmt.Errorf("tools: builtin tool must have a non-empty name")
	}
	if tool.Handler == nil {
		return fmt.Errorf("tools: builtin tool %q must have a non-nil handler", tool.Definition.Name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.tools[tool.Definition.Name] = toolEntry{
		def:        tool.Definition,
		serverName: builtinServerName,
		builtinFn:  tool.Handler,
	}
	return nil
}

// Definitions returns all registered tool definitions sorted by name.
func (h *Host) Definitions() []live.ToolDefinition {
	h.mu.RLock()
	defs := make([]live.ToolDefinition, 0, len(h.tools))
	for _, e := range h.tools {
		defs = append(defs, e.def)
	}
	h.mu.RUnlock()

	slices.SortFunc(defs, func(a, b live.ToolDefinition) int {
		return strings.Compare(a.Name, b.Name)
	})
	return defs
}

// Execute calls the named tool with JSON-encoded args and returns its textual
// result. args must be a valid JSON object string; "{}" is valid for
// parameter-less tools.
func (h *Host) Execute(ctx context.Context, name, args string) (string, error) {
	h.mu.RLock()
	entry, ok := h.tools[name]
	h.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("tools: tool %q not found", name)
	}

	if entry.builtinFn != nil {
		return entry.builtinFn(ctx, args)
	}
	return h.executeRemote(ctx, entry, args)
}

// executeRemote routes the call to the appropriate server session and
// concatenates all text content from the result.
func (h *Host) executeRemote(ctx context.Context, entry toolEntry, args string) (string, error) {
	h.mu.RLock()
	session, ok := h.servers[entry.serverName]
	h.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("tools: server %q not found for tool %q", entry.serverName, entry.def.Name)
	}

	var argsMap map[string]any
	if args != "" && args != "{}" {
		if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
			return "", fmt.Errorf("tools: invalid args JSON for tool %q: %w", entry.def.Name, err)
		}
	}

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      entry.def.Name,
		Arguments: argsMap,
	})
	if err != nil {
		return "", fmt.Errorf("tools: call to tool %q failed: %w", entry.def.Name, err)
	}

	var sb strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	if result.IsError {
		return "", fmt.Errorf("tools: tool %q reported an error: %s", entry.def.Name, sb.String())
	}
	return sb.String(), nil
}

// Close shuts down all server connections. After Close returns the Host must
// not be used again.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var firstErr error
	for name, session := range h.servers {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("tools: error closing server %q: %w", name, err)
		}
		delete(h.servers, name)
	}
	h.tools = make(map[string]toolEntry)
	return firstErr
}

// schemaToMap converts any schema value to a map[string]any.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object"}
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}

// splitCommand splits a command string into executable and arguments.
// e.g. "/bin/foo --bar baz" → ("/bin/foo", ["--bar", "baz"]).
func splitCommand(command string) (executable string, args []string) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}
