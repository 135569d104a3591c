package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("CHECKPOINT_DSN", "memory://")
	t.Setenv("MODEL_NAME", "keyword")
	t.Setenv("LOG_LEVEL", "error")

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "debitor version "))
}

func TestGraphCommand(t *testing.T) {
	out, err := execute(t, "graph", "--format", "mermaid")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph TD\n"))

	out, err = execute(t, "graph", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "entry"`)

	_, err = execute(t, "graph", "--format", "dot")
	assert.ErrorContains(t, err, "unknown format")
}

func TestChatCommand(t *testing.T) {
	out, err := execute(t, "chat", "--thread", "cli-1", "--meta", "agent_name=Anna", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "My name is Anna")
	assert.Contains(t, out, "thread=cli-1 shard=0 route=")
	assert.Contains(t, out, "stage=intro")
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid (1 shards).")
	assert.Contains(t, out, "dsn=memory://")
	assert.Contains(t, out, "Graph is valid!")

	t.Setenv("ORACLE_MAX_ATTEMPTS", "0")
	_, err = execute(t, "validate")
	assert.ErrorContains(t, err, "oracle_max_attempts must be at least 1")
}
