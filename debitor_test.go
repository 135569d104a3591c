package debitor_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pichlex/debitor"
	"github.com/pichlex/debitor/internal/dialogue"
	"github.com/pichlex/debitor/pkg/domain"
	"github.com/pichlex/debitor/pkg/oracle/keyword"
	"github.com/pichlex/debitor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var clock = func() time.Time { return time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC) }

var meta = map[string]any{"agent_name": "Anna", "company": "ACME"}

func newService(t *testing.T, cfg debitor.Config, opts ...debitor.Option) *debitor.Service {
	t.Helper()
	opts = append([]debitor.Option{debitor.WithClock(clock)}, opts...)
	svc, err := debitor.New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func keywordShards(n int) []debitor.ShardConfig {
	shards := make([]debitor.ShardConfig, n)
	for i := range shards {
		shards[i] = debitor.ShardConfig{DSN: "memory://", Model: "keyword"}
	}
	return shards
}

func TestService_NewConversationIntroduces(t *testing.T) {
	svc := newService(t, debitor.Config{Shards: keywordShards(1)})

	reply, err := svc.Invoke(context.Background(), "c1", "hello", meta)
	require.NoError(t, err)
	assert.Equal(t, 1, reply.Turn)
	assert.Equal(t, dialogue.StageIntro, reply.Stage)
	assert.Equal(t, 0, reply.Shard)
	assert.Contains(t, reply.Output(), "My name is Anna")
}

func TestService_ResumedAgreement(t *testing.T) {
	svc := newService(t, debitor.Config{Shards: keywordShards(1)})
	ctx := context.Background()

	_, err := svc.Invoke(ctx, "c1", "hello", meta)
	require.NoError(t, err)

	mgr := svc.Shard(svc.ShardFor("c1")).Sessions()
	state, err := mgr.Load(ctx, "c1")
	require.NoError(t, err)
	state.Scratch.ResumeAt = dialogue.NodeClassifyAgreement
	require.NoError(t, mgr.Save(ctx, "c1", state))

	reply, err := svc.Invoke(ctx, "c1", "yes, agreed", meta)
	require.NoError(t, err)
	assert.Equal(t, 2, reply.Turn)
	assert.Equal(t, []string{"entry", "classify_agreement", "agree_named_date", "finalize", "telemetry"}, reply.Path)
}

func TestService_OracleTimeoutFallsBackToUnknown(t *testing.T) {
	defer goleak.VerifyNone(t)

	hanging := ports.OracleFunc(func(ctx context.Context, _ domain.ClassifyRequest) (domain.Classification, error) {
		<-ctx.Done()
		return domain.Classification{}, ctx.Err()
	})
	svc, err := debitor.New(debitor.Config{
		Shards:            keywordShards(1),
		OracleTimeout:     20 * time.Millisecond,
		OracleMaxAttempts: 1,
	}, debitor.WithOracle(hanging), debitor.WithClock(clock))
	require.NoError(t, err)
	defer svc.Close()

	ctx := context.Background()
	_, err = svc.Invoke(ctx, "c1", "hello", meta)
	require.NoError(t, err)

	reply, err := svc.Invoke(ctx, "c1", "I am the director", meta)
	require.NoError(t, err)
	assert.Equal(t, domain.RouteUnknown, reply.Route)
	assert.Equal(t, []string{"entry", "classify_lpr", "agent", "telemetry"}, reply.Path)
	assert.Contains(t, reply.Output(), "A specialist will review our conversation")
	assert.Contains(t, reply.Scratch[dialogue.FieldOracleError], "timed out")
}

func TestService_ShardDistribution(t *testing.T) {
	svc := newService(t, debitor.Config{Shards: keywordShards(4)})
	require.Equal(t, 4, svc.ShardCount())

	counts := make([]int, 4)
	for i := 0; i < 10000; i++ {
		counts[svc.ShardFor(fmt.Sprintf("conversation-%d", i))]++
	}
	for i, c := range counts {
		assert.InDelta(t, 2500, c, 250, "shard %d", i)
	}
}

func TestService_ReplyCarriesOwningShard(t *testing.T) {
	svc := newService(t, debitor.Config{Shards: keywordShards(4)})
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("c-%d", i)
		reply, err := svc.Invoke(ctx, id, "hello", meta)
		require.NoError(t, err)
		assert.Equal(t, svc.ShardFor(id), reply.Shard)
	}

	refs, err := svc.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, refs, 20, "shards sharing one store are listed once")
	for _, ref := range refs {
		assert.Equal(t, svc.ShardFor(ref.ID), ref.Shard)
	}
}

func TestService_SessionLifecycle(t *testing.T) {
	svc := newService(t, debitor.Config{Shards: keywordShards(2)})
	ctx := context.Background()

	_, err := svc.Invoke(ctx, "c1", "hello", meta)
	require.NoError(t, err)

	state, err := svc.Session(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, state.Scratch.Turn)
	assert.Len(t, state.History, 2)

	require.NoError(t, svc.DeleteSession(ctx, "c1"))
	_, err = svc.Session(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestService_EncryptedFileStore(t *testing.T) {
	dir := t.TempDir()
	key := []byte("0123456789abcdef0123456789abcdef")
	cfg := debitor.Config{
		Shards:        []debitor.ShardConfig{{DSN: "file://" + dir, Model: "keyword"}},
		EncryptionKey: key,
	}
	svc := newService(t, cfg)
	ctx := context.Background()

	_, err := svc.Invoke(ctx, "c1", "hello", meta)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "c1.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "__encrypted__")
	assert.NotContains(t, string(raw), "Anna")

	reply, err := svc.Invoke(ctx, "c1", "I am the director", meta)
	require.NoError(t, err)
	assert.Equal(t, 2, reply.Turn)
}

func TestService_SQLiteSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")
	cfg := debitor.Config{Shards: []debitor.ShardConfig{{DSN: "sqlite:///" + path, Model: "keyword"}}}
	ctx := context.Background()

	first, err := debitor.New(cfg, debitor.WithClock(clock))
	require.NoError(t, err)
	_, err = first.Invoke(ctx, "c1", "hello", meta)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := newService(t, cfg)
	reply, err := second.Invoke(ctx, "c1", "I am the director", meta)
	require.NoError(t, err)
	assert.Equal(t, 2, reply.Turn)
}

func TestService_UnsupportedDSN(t *testing.T) {
	_, err := debitor.New(debitor.Config{Shards: []debitor.ShardConfig{{DSN: "postgres://db"}}})
	assert.ErrorContains(t, err, "unsupported checkpoint dsn")
}

func TestService_ConcurrentConversations(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc, err := debitor.New(debitor.Config{Shards: keywordShards(4)},
		debitor.WithOracle(keyword.New(keyword.WithClock(clock))),
		debitor.WithClock(clock),
	)
	require.NoError(t, err)
	defer svc.Close()

	ctx := context.Background()
	const conversations, turns = 8, 5
	var wg sync.WaitGroup
	for c := 0; c < conversations; c++ {
		for n := 0; n < turns; n++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := svc.Invoke(ctx, id, "hello", meta)
				assert.NoError(t, err)
			}(fmt.Sprintf("c-%d", c))
		}
	}
	wg.Wait()

	for c := 0; c < conversations; c++ {
		state, err := svc.Session(ctx, fmt.Sprintf("c-%d", c))
		require.NoError(t, err)
		assert.Equal(t, turns, state.Scratch.Turn, "no turn may be lost")
	}
}
