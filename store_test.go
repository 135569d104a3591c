package debitor

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pichlex/debitor/internal/logging"
	"github.com/pichlex/debitor/pkg/adapters/file"
	"github.com/pichlex/debitor/pkg/adapters/memory"
	"github.com/pichlex/debitor/pkg/adapters/sqlite"
	"github.com/pichlex/debitor/pkg/domain"
	"github.com/pichlex/debitor/pkg/oracle/keyword"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSqlitePath(t *testing.T) {
	tests := []struct {
		dsn     string
		want    string
		wantErr bool
	}{
		{dsn: "sqlite:///./data/graph.db", want: "./data/graph.db"},
		{dsn: "sqlite:///graph.db", want: "graph.db"},
		{dsn: "sqlite:////var/lib/debitor/graph.db", want: "/var/lib/debitor/graph.db"},
		{dsn: "sqlite:///:memory:", want: ":memory:"},
		{dsn: "sqlite://", wantErr: true},
		{dsn: "sqlite:///", wantErr: true},
		{dsn: "sqlite://graph.db", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			got, err := sqlitePath(tt.dsn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenStore(t *testing.T) {
	b, err := openStore("")
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, b.store)
	assert.Nil(t, b.locker)

	b, err = openStore("file://" + t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &file.Store{}, b.store)

	b, err = openStore("sqlite:///:memory:")
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, b.store)
	require.NotNil(t, b.closer)
	assert.NoError(t, b.closer.Close())

	_, err = openStore("mongodb://localhost")
	assert.Error(t, err)
}

func TestOpenStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	b, err := openStore("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	defer b.closer.Close()
	require.NotNil(t, b.locker)

	ctx := context.Background()
	state := domain.NewConversationState()
	state.Scratch.Turn = 3
	require.NoError(t, b.store.Save(ctx, "c1", state))

	loaded, err := b.store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Scratch.Turn)

	unlock, err := b.locker.Lock(ctx, "c1", time.Second)
	require.NoError(t, err)
	assert.NoError(t, unlock(ctx))
}

func TestRedactDSN(t *testing.T) {
	assert.Equal(t, "redis://:xxxxx@cache:6379/0", RedactDSN("redis://:secret@cache:6379/0"))
	assert.Equal(t, "sqlite:///./data/graph.db", RedactDSN("sqlite:///./data/graph.db"))
}

func TestBindOracle(t *testing.T) {
	logger := logging.NewNop()
	cfg := Config{AnthropicKey: "ak"}

	tests := []struct {
		name  string
		shard ShardConfig
		want  string
	}{
		{name: "keyword", shard: ShardConfig{Model: "keyword"}, want: ProviderKeyword},
		{name: "bare openai model", shard: ShardConfig{Model: "gpt-4o", OpenAIKey: "sk"}, want: "openai:gpt-4o"},
		{name: "prefixed openai model", shard: ShardConfig{Model: "openai:gpt-4o-mini", OpenAIKey: "sk"}, want: "openai:gpt-4o-mini"},
		{name: "openai without key", shard: ShardConfig{Model: "gpt-4o"}, want: ProviderKeyword},
		{name: "anthropic", shard: ShardConfig{Model: "anthropic:claude-3-5-haiku-latest"}, want: "anthropic:claude-3-5-haiku-latest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := bindOracle(cfg, tt.shard, time.Now, logger)
			assert.Equal(t, tt.want, got)
		})
	}

	o, got := bindOracle(Config{}, ShardConfig{Model: "anthropic:claude-3-5-haiku-latest"}, time.Now, logger)
	assert.Equal(t, ProviderKeyword, got)
	assert.IsType(t, &keyword.Oracle{}, o)
}
