package runner

import (
	"context"

	"github.com/pichlex/debitor"
)

// Input is one inbound message.
type Input struct {
	Text string `json:"text"`
	// Meta is merged over the runner's meta for this turn only.
	Meta map[string]any `json:"meta,omitempty"`
}

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (terminal) and JSON (structured) modes.
type IOHandler interface {
	// Input blocks until the next message, io.EOF, or ctx is done.
	Input(ctx context.Context) (Input, error)

	// Output presents the reply of a turn.
	Output(ctx context.Context, reply *debitor.Reply) error

	// SystemOutput presents a meta-message (errors, thread changes).
	SystemOutput(ctx context.Context, msg string) error
}
