package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pichlex/debitor"
	"github.com/pichlex/debitor/internal/logging"
)

// Commands understood by the loop instead of being sent as a turn.
const (
	CommandNew = "/new"
)

// Invoker runs one turn. *debitor.Service implements it.
type Invoker interface {
	Invoke(ctx context.Context, conversationID, text string, meta map[string]any) (*debitor.Reply, error)
}

// Runner handles the read, invoke, print loop of one conversation.
type Runner struct {
	invoker  Invoker
	handler  IOHandler
	logger   *slog.Logger
	threadID string
	meta     map[string]any
}

// Option configures the Runner.
type Option func(*Runner)

// WithHandler sets the IO strategy. Defaults to a TextHandler on stdio.
func WithHandler(h IOHandler) Option {
	return func(r *Runner) {
		r.handler = h
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithThreadID continues an existing conversation instead of starting a new one.
func WithThreadID(id string) Option {
	return func(r *Runner) {
		if id != "" {
			r.threadID = id
		}
	}
}

// WithMeta sets the caller meta sent with every turn.
func WithMeta(meta map[string]any) Option {
	return func(r *Runner) {
		r.meta = meta
	}
}

// New creates a Runner. Without WithThreadID a random thread id is used.
func New(inv Invoker, opts ...Option) *Runner {
	r := &Runner{
		invoker:  inv,
		logger:   logging.NewNop(),
		threadID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.handler == nil {
		r.handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r
}

// ThreadID returns the conversation the runner currently talks to.
func (r *Runner) ThreadID() string {
	return r.threadID
}

// Run loops until the input ends, the user exits, or ctx is cancelled.
// Turn failures are reported through the handler and do not stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	for {
		in, err := r.handler.Input(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}

		text, err := CleanMessage(strings.TrimSpace(in.Text))
		if err != nil {
			r.report(ctx, err)
			continue
		}

		switch text {
		case "":
			continue
		case "exit", "quit":
			return nil
		case CommandNew:
			r.threadID = uuid.NewString()
			if err := r.handler.SystemOutput(ctx, "new thread "+r.threadID); err != nil {
				return err
			}
			continue
		}

		meta := maps.Clone(r.meta)
		if len(in.Meta) > 0 {
			if meta == nil {
				meta = make(map[string]any, len(in.Meta))
			}
			maps.Copy(meta, in.Meta)
		}

		reply, err := r.invoker.Invoke(ctx, r.threadID, text, meta)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("Turn failed", "thread_id", r.threadID, "err", err)
			r.report(ctx, err)
			continue
		}
		if err := r.handler.Output(ctx, reply); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
	}
}

func (r *Runner) report(ctx context.Context, err error) {
	if outErr := r.handler.SystemOutput(ctx, "error: "+err.Error()); outErr != nil {
		r.logger.Warn("Failed to report error", "err", outErr)
	}
}
