package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/pichlex/debitor/internal/logging"
	"github.com/pichlex/debitor/pkg/domain"
	"github.com/pichlex/debitor/pkg/graph"
	"github.com/pichlex/debitor/pkg/session"
)

// DefaultMaxSteps bounds the number of nodes a single turn may visit.
const DefaultMaxSteps = 64

// Executor runs one turn of a conversation: load, run the graph from its
// entry until a terminal node, save.
type Executor struct {
	graph    *graph.Graph
	sessions *session.Manager
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	maxSteps int
}

// Option configures the Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Executor) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithMaxSteps overrides DefaultMaxSteps.
func WithMaxSteps(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// NewExecutor binds a compiled graph to a session manager.
func NewExecutor(g *graph.Graph, sessions *session.Manager, opts ...Option) *Executor {
	e := &Executor{
		graph:    g,
		sessions: sessions,
		logger:   logging.NewNop(),
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Graph returns the compiled graph.
func (e *Executor) Graph() *graph.Graph {
	return e.graph
}

// Sessions returns the session manager.
func (e *Executor) Sessions() *session.Manager {
	return e.sessions
}

// Invoke processes one inbound user message. Turns of the same conversation
// are serialized; nothing is saved when the turn fails.
func (e *Executor) Invoke(ctx context.Context, conversationID, text string, meta map[string]any) (*domain.TurnResult, error) {
	if conversationID == "" {
		return nil, errors.New("conversation id cannot be empty")
	}

	turnID := uuid.NewString()
	logger := e.logger.With("conversation_id", conversationID, "turn_id", turnID)
	started := time.Now()
	base := domain.EventBase{ConversationID: conversationID, TurnID: turnID}

	if e.hooks.OnTurnStart != nil {
		ev := &domain.TurnEvent{EventBase: base}
		ev.Timestamp, ev.Type = started, domain.EventTurnStart
		e.hooks.OnTurnStart(ctx, ev)
	}

	var result *domain.TurnResult
	err := e.sessions.WithLock(ctx, conversationID, func(ctx context.Context) error {
		store := e.sessions.Store()

		state, err := session.LoadOrNew(ctx, store, conversationID)
		if err != nil {
			return err
		}
		e.normalizeResume(state, logger)

		state.History = append(state.History, domain.UserMessage(text))
		state.Meta = maps.Clone(meta)

		outputs, err := e.run(ctx, state, base, logger)
		if err != nil {
			return err
		}

		state.Turn = state.Scratch.Turn
		persisted := state.Clone()
		persisted.Meta = nil
		if err := store.Save(ctx, conversationID, persisted); err != nil {
			return &domain.PersistenceError{ConversationID: conversationID, Err: err}
		}

		result = &domain.TurnResult{
			ConversationID: conversationID,
			Outputs:        outputs,
			Route:          state.Route,
			Stage:          state.Stage,
			Turn:           state.Scratch.Turn,
			Path:           append([]string(nil), state.Scratch.Path...),
			Scratch:        state.Scratch.Snapshot(),
		}
		return nil
	})

	if e.hooks.OnTurnEnd != nil {
		ev := &domain.TurnEvent{EventBase: base, Duration: time.Since(started), Err: err}
		ev.Timestamp, ev.Type = time.Now(), domain.EventTurnEnd
		if result != nil {
			ev.Turn, ev.Route, ev.Stage, ev.Path = result.Turn, result.Route, result.Stage, result.Path
		}
		e.hooks.OnTurnEnd(ctx, ev)
	}

	if err != nil {
		logger.Error("Turn failed", "err", err)
		return nil, err
	}
	logger.Info("Turn completed",
		"turn", result.Turn,
		"route", result.Route,
		"stage", result.Stage,
		"nodes", len(result.Path),
	)
	return result, nil
}

// normalizeResume drops a resume_at that is not in the graph's whitelist.
func (e *Executor) normalizeResume(state *domain.ConversationState, logger *slog.Logger) {
	target := state.Scratch.ResumeAt
	if target == "" || e.graph.IsResumable(target) {
		return
	}
	logger.Debug("Ignoring resume target outside whitelist", "resume_at", target)
	state.Scratch.ResumeAt = ""
}

// run walks the graph from the entry node, mutating state in place, and
// returns the outbound messages in production order.
func (e *Executor) run(ctx context.Context, state *domain.ConversationState, base domain.EventBase, logger *slog.Logger) ([]string, error) {
	outputs := []string{}
	current := e.graph.Entry()

	for steps := 0; current != graph.End; steps++ {
		if steps >= e.maxSteps {
			return nil, fmt.Errorf("%w: %d nodes visited, last %q", domain.ErrStepLimit, steps, current)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e.nodeEvent(ctx, e.hooks.OnNodeEnter, base, domain.EventNodeEnter, current, "", nil)

		res, err := e.graph.Run(ctx, current, state)
		if err != nil {
			e.nodeEvent(ctx, e.hooks.OnNodeLeave, base, domain.EventNodeLeave, current, "", err)
			var nodeErr *domain.NodeError
			if errors.As(err, &nodeErr) {
				return nil, err
			}
			return nil, &domain.NodeError{Node: current, Err: err}
		}

		apply(state, res)
		outputs = append(outputs, res.Update.Messages...)

		if r := res.Scratch.ResumeAt; r != "" && !e.graph.IsResumable(r) {
			logger.Warn("Node wrote resume target outside whitelist", "node", current, "resume_at", r)
		}

		e.nodeEvent(ctx, e.hooks.OnNodeLeave, base, domain.EventNodeLeave, current, res.Update.Route, nil)
		logger.Debug("Node completed", "node", current, "route", res.Update.Route)

		next, err := e.graph.Next(current, state, res.Update.Route)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return outputs, nil
}

func apply(state *domain.ConversationState, res graph.Result) {
	for _, msg := range res.Update.Messages {
		state.History = append(state.History, domain.AssistantMessage(msg))
	}
	if res.Update.Route != "" {
		state.Route = res.Update.Route
	}
	if res.Update.Stage != "" {
		state.Stage = res.Update.Stage
	}
	state.Scratch = res.Scratch
}

func (e *Executor) nodeEvent(ctx context.Context, hook func(context.Context, *domain.NodeEvent), base domain.EventBase, typ domain.EventType, node, route string, err error) {
	if hook == nil {
		return
	}
	ev := &domain.NodeEvent{EventBase: base, Node: node, Route: route, Err: err}
	ev.Timestamp, ev.Type = time.Now(), typ
	hook(ctx, ev)
}
