// Package dispatcher turns one natural-language request into an ordered
// list of shell commands: it builds the system prompt, sends it through a
// provider client and sanitizes the reply.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/randombk/llm2sh/internal/prompt"
	"github.com/randombk/llm2sh/internal/provider"
	"github.com/randombk/llm2sh/internal/sanitize"
	"github.com/randombk/llm2sh/internal/sysfacts"
)

// State is a step of a single dispatch.
type State int

const (
	StateIdle State = iota
	StateBuiltPrompt
	StateSent
	StateReceived
	StateSanitized
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuiltPrompt:
		return "built-prompt"
	case StateSent:
		return "sent"
	case StateReceived:
		return "received"
	case StateSanitized:
		return "sanitized"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Diagnostics receives verbose output. It never affects control flow.
type Diagnostics interface {
	SystemPrompt(model, text string)
	RawResponse(model, text string)
}

// Dispatcher composes the prompt builder, a provider client and the
// sanitizer. It holds no per-request state, so a Dispatcher may be reused.
type Dispatcher struct {
	client  provider.Client
	facts   sysfacts.Provider
	diag    Diagnostics
	onState func(State)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithDiagnostics enables verbose output of the system prompt and the raw
// model reply.
func WithDiagnostics(d Diagnostics) Option {
	return func(disp *Dispatcher) {
		disp.diag = d
	}
}

// WithStateHook calls fn on every state transition.
func WithStateHook(fn func(State)) Option {
	return func(disp *Dispatcher) {
		disp.onState = fn
	}
}

// New creates a dispatcher for client, reading the environment from facts.
func New(client provider.Client, facts sysfacts.Provider, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		client: client,
		facts:  facts,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch returns the commands for request. It either returns the full
// command list or an error, never a partial list. An empty list means the
// model produced nothing runnable.
//
// Errors are *prompt.BuildError or *provider.Error. Nothing is retried.
func (d *Dispatcher) Dispatch(ctx context.Context, request string) ([]string, error) {
	start := time.Now()
	model := d.client.Name()
	d.transition(StateIdle, model)

	p, err := prompt.NewBuilder(d.facts, d.client.MaxContextLength()).Build(request)
	if err != nil {
		d.fail(model, err)
		return nil, err
	}
	d.transition(StateBuiltPrompt, model,
		"prompt_tokens", p.EstimatedTokens,
		"max_prompt_tokens", p.MaxTokens,
		"summarize_factor", p.Factor,
	)
	if d.diag != nil {
		d.diag.SystemPrompt(model, p.Text)
	}

	d.transition(StateSent, model)
	raw, err := d.client.Send(ctx, p.Text, request)
	if err != nil {
		d.fail(model, err)
		return nil, err
	}
	d.transition(StateReceived, model, "response_bytes", len(raw))
	if d.diag != nil {
		d.diag.RawResponse(model, raw)
	}

	commands := sanitize.Clean(raw)
	d.transition(StateSanitized, model, "commands", len(commands))

	d.transition(StateDone, model, "duration_ms", time.Since(start).Milliseconds())
	return commands, nil
}

func (d *Dispatcher) transition(s State, model string, attrs ...any) {
	if d.onState != nil {
		d.onState(s)
	}
	args := append([]any{"state", s.String(), "model", model}, attrs...)
	slog.Debug("dispatch_state", args...)
}

func (d *Dispatcher) fail(model string, err error) {
	if d.onState != nil {
		d.onState(StateFailed)
	}
	slog.Warn("dispatch_failed", "model", model, "error", err)
}
