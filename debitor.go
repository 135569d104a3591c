package debitor

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/pichlex/debitor/internal/dialogue"
	"github.com/pichlex/debitor/internal/logging"
	"github.com/pichlex/debitor/internal/runtime"
	"github.com/pichlex/debitor/pkg/domain"
	"github.com/pichlex/debitor/pkg/graph"
	"github.com/pichlex/debitor/pkg/oracle"
	"github.com/pichlex/debitor/pkg/persistence/middleware"
	"github.com/pichlex/debitor/pkg/ports"
	"github.com/pichlex/debitor/pkg/session"
	"github.com/pichlex/debitor/pkg/shard"
)

// ShardConfig is the per-shard part of Config.
type ShardConfig struct {
	// DSN selects the checkpoint store, see openStore.
	DSN string
	// Model is "keyword", "anthropic:<model>", "openai:<model>" or a bare OpenAI model.
	Model     string
	OpenAIKey string
}

// Config describes a Service. Zero values fall back to package defaults.
type Config struct {
	Shards []ShardConfig

	OpenAIBaseURL     string
	AnthropicKey      string
	OracleTimeout     time.Duration
	OracleMaxAttempts int

	// EncryptionKey enables AES-GCM encryption of stored checkpoints.
	EncryptionKey []byte
	// PIIPatterns are regular expressions over scratch field names to mask before storage.
	PIIPatterns []string

	// LockTTL bounds how long a distributed conversation lock is held.
	LockTTL time.Duration
}

// Reply is the outcome of one turn.
type Reply struct {
	domain.TurnResult
	Shard int `json:"shard"`
}

// SessionRef locates a stored conversation.
type SessionRef struct {
	Shard int    `json:"shard"`
	ID    string `json:"thread_id"`
}

// Shard is one independent partition of the service.
type Shard struct {
	Index    int
	Model    string
	DSN      string
	executor *runtime.Executor
}

// Sessions returns the session manager of the shard.
func (s *Shard) Sessions() *session.Manager {
	return s.executor.Sessions()
}

// Service routes turns to shards.
type Service struct {
	shards  []*Shard
	closers []func() error
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*options)

type options struct {
	logger *slog.Logger
	hooks  domain.LifecycleHooks
	oracle ports.Oracle
	now    func() time.Time
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks on every shard.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *options) {
		o.hooks = o.hooks.Merge(hooks)
	}
}

// WithOracle replaces the configured classifier of every shard.
func WithOracle(or ports.Oracle) Option {
	return func(o *options) {
		o.oracle = or
	}
}

// WithClock sets the time source used for payment dates.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New opens every shard. Shards configured with the same DSN share one store.
func New(cfg Config, opts ...Option) (*Service, error) {
	o := &options{logger: logging.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	if len(cfg.Shards) == 0 {
		cfg.Shards = []ShardConfig{{}}
	}

	svc := &Service{logger: o.logger}
	backends := make(map[string]*backend)
	for i, sc := range cfg.Shards {
		b, ok := backends[sc.DSN]
		if !ok {
			var err error
			if b, err = openStore(sc.DSN); err != nil {
				svc.Close()
				return nil, fmt.Errorf("shard %d: %w", i, err)
			}
			backends[sc.DSN] = b
			if b.closer != nil {
				svc.closers = append(svc.closers, b.closer.Close)
			}
		}

		sh, err := newShard(i, cfg, sc, b, o)
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("shard %d: %w", i, err)
		}
		svc.shards = append(svc.shards, sh)
	}
	svc.logger.Info("Service ready", "shards", len(svc.shards))
	return svc, nil
}

func newShard(i int, cfg Config, sc ShardConfig, b *backend, o *options) (*Shard, error) {
	logger := o.logger.With("shard", i)

	var mws []middleware.Middleware
	if len(cfg.PIIPatterns) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(cfg.PIIPatterns))
	}
	if len(cfg.EncryptionKey) > 0 {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: cfg.EncryptionKey}))
	}
	store := middleware.Chain(b.store, mws...)

	mgrOpts := []session.Option{session.WithLogger(logger)}
	if b.locker != nil {
		mgrOpts = append(mgrOpts, session.WithLocker(b.locker))
		if cfg.LockTTL > 0 {
			mgrOpts = append(mgrOpts, session.WithLockTTL(cfg.LockTTL))
		}
	}

	or, model := o.oracle, "custom"
	if or == nil {
		or, model = bindOracle(cfg, sc, o.now, logger)
	}
	guardOpts := []oracle.GuardOption{oracle.WithLogger(logger)}
	if cfg.OracleTimeout > 0 {
		guardOpts = append(guardOpts, oracle.WithTimeout(cfg.OracleTimeout))
	}
	if cfg.OracleMaxAttempts > 0 {
		guardOpts = append(guardOpts, oracle.WithMaxAttempts(cfg.OracleMaxAttempts))
	}

	g, err := dialogue.Build(dialogue.Deps{
		Oracle: oracle.NewGuard(or, guardOpts...),
		Logger: logger,
		Now:    o.now,
	})
	if err != nil {
		return nil, err
	}

	exec := runtime.NewExecutor(g, session.NewManager(store, mgrOpts...),
		runtime.WithLogger(logger),
		runtime.WithLifecycleHooks(o.hooks),
	)
	logger.Debug("Shard ready", "model", model, "dsn", RedactDSN(sc.DSN))
	return &Shard{Index: i, Model: model, DSN: sc.DSN, executor: exec}, nil
}

// ShardCount returns the number of shards.
func (s *Service) ShardCount() int {
	return len(s.shards)
}

// ShardFor returns the index of the shard that owns conversationID.
func (s *Service) ShardFor(conversationID string) int {
	return shard.Select(conversationID, len(s.shards))
}

// Shard returns shard i.
func (s *Service) Shard(i int) *Shard {
	return s.shards[i]
}

// Graph returns the compiled dialogue graph. All shards share its shape.
func (s *Service) Graph() *graph.Graph {
	return s.shards[0].executor.Graph()
}

// Invoke runs one turn of conversationID on the shard that owns it.
func (s *Service) Invoke(ctx context.Context, conversationID, text string, meta map[string]any) (*Reply, error) {
	i := s.ShardFor(conversationID)
	res, err := s.shards[i].executor.Invoke(ctx, conversationID, text, meta)
	if err != nil {
		return nil, err
	}
	return &Reply{TurnResult: *res, Shard: i}, nil
}

// Session loads the stored state of conversationID.
func (s *Service) Session(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	return s.shards[s.ShardFor(conversationID)].Sessions().Load(ctx, conversationID)
}

// DeleteSession removes the stored state of conversationID.
func (s *Service) DeleteSession(ctx context.Context, conversationID string) error {
	return s.shards[s.ShardFor(conversationID)].Sessions().Delete(ctx, conversationID)
}

// ListSessions lists stored conversations, each attributed to the shard
// that owns it. Stores shared between shards are listed once.
func (s *Service) ListSessions(ctx context.Context) ([]SessionRef, error) {
	seen := make(map[string]bool)
	var refs []SessionRef
	for _, sh := range s.shards {
		if seen[sh.DSN] {
			continue
		}
		seen[sh.DSN] = true

		ids, err := sh.Sessions().List(ctx)
		if err != nil {
			return nil, fmt.Errorf("shard %d: %w", sh.Index, err)
		}
		for _, id := range ids {
			refs = append(refs, SessionRef{Shard: s.ShardFor(id), ID: id})
		}
	}
	slices.SortFunc(refs, func(a, b SessionRef) int {
		return cmp.Or(cmp.Compare(a.Shard, b.Shard), strings.Compare(a.ID, b.ID))
	})
	return refs, nil
}

// Close releases every store connection.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	s.closers = nil
	return errors.Join(errs...)
}

