package ports

import (
	"context"
	"testing"
	"time"

	"github.com/pichlex/debitor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCheckpointStoreContract runs a suite of tests to verify that a CheckpointStore
// implementation adheres to the defined interface contract.
func RunCheckpointStoreContract(t *testing.T, store CheckpointStore) {
	ctx := context.Background()
	conversationID := "contract-test-" + time.Now().Format("20060102150405")

	sample := func() *domain.ConversationState {
		s := domain.NewConversationState()
		s.History = append(s.History, domain.UserMessage("hello"), domain.AssistantMessage("hi there"))
		s.Route = "classify_lpr"
		s.Stage = "intro"
		s.Scratch.Turn = 2
		s.Scratch.ResumeAt = "classify_lpr"
		s.Scratch.Path = []string{"entry", "intro", "telemetry"}
		s.Scratch.CurrentNode = "telemetry"
		s.Scratch.Fields = map[string]any{"ops_note": "greeted"}
		s.Turn = 2
		return s
	}

	t.Run("Save and Load", func(t *testing.T) {
		state := sample()
		state.Meta = map[string]any{"company": "Acme"}

		err := store.Save(ctx, conversationID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, conversationID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.History, loaded.History)
		assert.Equal(t, "classify_lpr", loaded.Route)
		assert.Equal(t, "intro", loaded.Stage)
		assert.Equal(t, 2, loaded.Scratch.Turn)
		assert.Equal(t, 2, loaded.Turn)
		assert.Equal(t, "classify_lpr", loaded.Scratch.ResumeAt)
		assert.Equal(t, []string{"entry", "intro", "telemetry"}, loaded.Scratch.Path)
		assert.Equal(t, "telemetry", loaded.Scratch.CurrentNode)
		assert.Equal(t, "greeted", loaded.Scratch.Fields["ops_note"])
		assert.Empty(t, loaded.Meta, "Meta must never be persisted")
	})

	t.Run("Loaded state is isolated", func(t *testing.T) {
		loaded, err := store.Load(ctx, conversationID)
		require.NoError(t, err)
		loaded.History[0].Text = "mutated"
		loaded.Scratch.Fields["ops_note"] = "mutated"

		again, err := store.Load(ctx, conversationID)
		require.NoError(t, err)
		assert.Equal(t, "hello", again.History[0].Text)
		assert.Equal(t, "greeted", again.Scratch.Fields["ops_note"])
	})

	t.Run("Save overwrites", func(t *testing.T) {
		state := sample()
		state.Stage = "named_date"
		require.NoError(t, store.Save(ctx, conversationID, state))

		loaded, err := store.Load(ctx, conversationID)
		require.NoError(t, err)
		assert.Equal(t, "named_date", loaded.Stage)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+conversationID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, conversationID, sample())
		require.NoError(t, err)

		err = store.Delete(ctx, conversationID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, conversationID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := conversationID + "-1"
		id2 := conversationID + "-2"
		_ = store.Save(ctx, id1, sample())
		_ = store.Save(ctx, id2, sample())

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
