package oracle

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/pichlex/debitor/internal/logging"
	"github.com/pichlex/debitor/pkg/domain"
	"github.com/pichlex/debitor/pkg/ports"
)

const (
	DefaultTimeout     = 15 * time.Second
	DefaultMaxAttempts = 2
	DefaultBackoff     = 200 * time.Millisecond
)

// Guard wraps an oracle with a per-attempt deadline, bounded retries and
// label normalisation. On failure it returns the unknown route together
// with an *domain.OracleTimeoutError or *domain.OracleUnavailableError, so
// callers can route on the classification and merely record the error.
type Guard struct {
	next        ports.Oracle
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithTimeout sets the deadline of a single attempt.
func WithTimeout(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithMaxAttempts sets the number of attempts, at least one.
func WithMaxAttempts(n int) GuardOption {
	return func(g *Guard) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithBackoff sets the pause between attempts.
func WithBackoff(d time.Duration) GuardOption {
	return func(g *Guard) {
		g.backoff = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

// NewGuard wraps next.
func NewGuard(next ports.Oracle, opts ...GuardOption) *Guard {
	g := &Guard{
		next:        next,
		timeout:     DefaultTimeout,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Classify implements ports.Oracle.
func (g *Guard) Classify(ctx context.Context, req domain.ClassifyRequest) (domain.Classification, error) {
	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		out, timedOut, err := g.attempt(ctx, req)
		if err == nil {
			out.Route = Normalize(out.Route, req.Allowed)
			return out, nil
		}

		if ctx.Err() != nil {
			// The turn itself is over; retrying cannot help.
			return unknown(), &domain.OracleUnavailableError{Attempts: attempt, Err: ctx.Err()}
		}
		if timedOut || errors.Is(err, context.DeadlineExceeded) {
			lastErr = &domain.OracleTimeoutError{Timeout: g.timeout, Err: err}
		} else {
			lastErr = &domain.OracleUnavailableError{Attempts: attempt, Err: err}
		}
		g.logger.Warn("Oracle attempt failed", "attempt", attempt, "max_attempts", g.maxAttempts, "err", err)

		if attempt < g.maxAttempts && g.backoff > 0 {
			select {
			case <-ctx.Done():
				return unknown(), &domain.OracleUnavailableError{Attempts: attempt, Err: ctx.Err()}
			case <-time.After(g.backoff):
			}
		}
	}
	return unknown(), lastErr
}

type answer struct {
	out domain.Classification
	err error
}

// attempt runs one call under the per-attempt deadline. The call runs on
// its own goroutine so an oracle that ignores ctx cannot hold the turn past
// the deadline; its late answer is dropped into the buffered channel.
func (g *Guard) attempt(ctx context.Context, req domain.ClassifyRequest) (domain.Classification, bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan answer, 1)
	go func() {
		out, err := g.next.Classify(callCtx, req)
		done <- answer{out: out, err: err}
	}()

	select {
	case a := <-done:
		timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
		if a.err == nil && timedOut {
			a.err = callCtx.Err()
		}
		return a.out, timedOut, a.err
	case <-callCtx.Done():
		err := callCtx.Err()
		return domain.Classification{}, errors.Is(err, context.DeadlineExceeded), err
	}
}

// Normalize lowercases and trims label and maps anything outside allowed to RouteUnknown.
func Normalize(label string, allowed []string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if slices.Contains(allowed, label) {
		return label
	}
	return domain.RouteUnknown
}

func unknown() domain.Classification {
	return domain.Classification{Route: domain.RouteUnknown}
}
