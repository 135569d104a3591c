package runner

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/pichlex/debitor"
	"github.com/pichlex/debitor/internal/dialogue"
	"github.com/pichlex/debitor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReply() *debitor.Reply {
	return &debitor.Reply{
		TurnResult: domain.TurnResult{
			ConversationID: "c1",
			Outputs:        []string{"Hello there"},
			Route:          "is_lpr",
			Stage:          dialogue.StageIdentifyLPR,
			Scratch:        map[string]any{dialogue.FieldOpsNote: "Call back; Send letter"},
		},
		Shard: 2,
	}
}

func TestTextHandler_Output(t *testing.T) {
	out := &bytes.Buffer{}
	h := NewTextHandler(strings.NewReader(""), out)

	require.NoError(t, h.Output(context.Background(), sampleReply()))
	assert.Equal(t, "Hello there\nshard=2 route=is_lpr stage=identify_decision_maker\n", out.String())
}

func TestTextHandler_Notes(t *testing.T) {
	out := &bytes.Buffer{}
	h := NewTextHandler(strings.NewReader(""), out,
		WithStatus(false),
		WithNotes(true),
		WithRenderer(func(s string) (string, error) { return "rendered:" + s, nil }),
	)

	require.NoError(t, h.Output(context.Background(), sampleReply()))
	assert.Contains(t, out.String(), "rendered:**Operator notes**")
	assert.Contains(t, out.String(), "- Call back\n- Send letter")
	assert.NotContains(t, out.String(), "shard=")
}

func TestTextHandler_Input(t *testing.T) {
	out := &bytes.Buffer{}
	h := NewTextHandler(strings.NewReader("  my answer \nsecond"), out)
	ctx := context.Background()

	in, err := h.Input(ctx)
	require.NoError(t, err)
	assert.Equal(t, "my answer", in.Text)

	in, err = h.Input(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", in.Text)

	_, err = h.Input(ctx)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "> > > ", out.String())
}

func TestTextHandler_InputHonorsContext(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	h := NewTextHandler(r, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := h.Input(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTextHandler_SystemOutput(t *testing.T) {
	out := &bytes.Buffer{}
	h := NewTextHandler(strings.NewReader(""), out)
	require.NoError(t, h.SystemOutput(context.Background(), "new thread x"))
	assert.Equal(t, "[system] new thread x\n", out.String())
}
