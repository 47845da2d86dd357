// Package assist implements the text-mode assistant: a single question/answer
// turn over the organization directory, with optional tool calling.
//
// The assistant grounds every completion on a fresh directory snapshot
// rendered into the system prompt, the same instructions the voice session
// uses, so both surfaces answer consistently.
package assist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opora-ua/opora/internal/directory"
	"github.com/opora-ua/opora/internal/observe"
	"github.com/opora-ua/opora/pkg/provider/chat"
	"github.com/opora-ua/opora/pkg/provider/live"
)

// maxToolRounds bounds how many completion/tool-execution cycles one Respond
// call may take before giving up.
const maxToolRounds = 4

// ErrNoReply is returned when the model finishes without producing any text.
var ErrNoReply = errors.New("assist: model produced no reply")

// OrganizationLister supplies the directory snapshot for the system prompt.
type OrganizationLister interface {
	List(ctx context.Context) ([]directory.Organization, error)
}

// ToolHost executes tool calls requested by the model. Definitions are
// converted to chat tool definitions when the request is built. The same host
// serves the voice session, so both surfaces expose identical tools.
type ToolHost interface {
	Definitions() []live.ToolDefinition
	Execute(ctx context.Context, name, args string) (string, error)
}

// Config assembles the collaborators of an [Assistant].
type Config struct {
	// Provider performs the completions. Required.
	Provider chat.Provider

	// Directory supplies the organization snapshot. Required.
	Directory OrganizationLister

	// Tools is the optional tool host offered to the model.
	Tools ToolHost

	// Temperature is passed through to the provider. Zero uses the provider
	// default.
	Temperature float64

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// Metrics defaults to observe.DefaultMetrics.
	Metrics *observe.Metrics
}

// Assistant answers directory questions over a chat provider.
// All methods are safe for concurrent use.
type Assistant struct {
	cfg     Config
	log     *slog.Logger
	metrics *observe.Metrics
}

// New validates cfg and creates an Assistant.
func New(cfg Config) (*Assistant, error) {
	var errs []error
	if cfg.Provider == nil {
		errs = append(errs, errors.New("assist: Provider is required"))
	}
	if cfg.Directory == nil {
		errs = append(errs, errors.New("assist: Directory is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Assistant{cfg: cfg, log: cfg.Logger, metrics: cfg.Metrics}, nil
}

// Respond answers the latest user message given the preceding conversation
// history. history must end with a "user" message. Tool calls requested by
// the model are executed through the tool host and fed back until the model
// produces text, up to a bounded number of rounds.
func (a *Assistant) Respond(ctx context.Context, history []chat.Message) (string, error) {
	if len(history) == 0 {
		return "", errors.New("assist: history must not be empty")
	}

	start := time.Now()
	defer func() {
		a.metrics.ChatDuration.Record(ctx, time.Since(start).Seconds())
	}()

	orgs, err := a.cfg.Directory.List(ctx)
	if err != nil {
		return "", fmt.Errorf("assist: load directory: %w", err)
	}

	req := chat.Request{
		Messages:     history,
		SystemPrompt: directory.Instructions(orgs),
		Temperature:  a.cfg.Temperature,
	}
	if a.cfg.Tools != nil {
		for _, d := range a.cfg.Tools.Definitions() {
			req.Tools = append(req.Tools, chat.ToolDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			})
		}
	}

	for round := 0; round < maxToolRounds; round++ {
		a.metrics.RecordProviderRequest(ctx, "chat", "complete", "ok")
		resp, err := a.cfg.Provider.Complete(ctx, req)
		if err != nil {
			a.metrics.RecordProviderError(ctx, "chat", "complete")
			return "", fmt.Errorf("assist: completion: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			if resp.Content == "" {
				return "", ErrNoReply
			}
			return resp.Content, nil
		}

		req.Messages = append(req.Messages, chat.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, tc := range resp.ToolCalls {
			req.Messages = append(req.Messages, a.executeToolCall(ctx, tc))
		}
	}

	return "", fmt.Errorf("assist: no reply after %d tool rounds", maxToolRounds)
}

// executeToolCall runs one tool call and wraps the outcome as a tool message.
// Execution failures are reported back to the model rather than aborting the
// conversation.
func (a *Assistant) executeToolCall(ctx context.Context, tc chat.ToolCall) chat.Message {
	msg := chat.Message{Role: "tool", ToolCallID: tc.ID}

	if a.cfg.Tools == nil {
		msg.Content = fmt.Sprintf("tool %q is not available", tc.Name)
		return msg
	}

	toolStart := time.Now()
	result, err := a.cfg.Tools.Execute(ctx, tc.Name, tc.Arguments)
	a.metrics.ToolExecutionDuration.Record(ctx, time.Since(toolStart).Seconds())
	if err != nil {
		a.metrics.RecordToolCall(ctx, tc.Name, "error")
		a.log.Warn("tool call failed", "tool", tc.Name, "error", err)
		msg.Content = fmt.Sprintf("tool %q failed: %s", tc.Name, err)
		return msg
	}
	a.metrics.RecordToolCall(ctx, tc.Name, "ok")
	msg.Content = result
	return msg
}
