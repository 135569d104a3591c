package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrSessionNotFound is returned when a conversation id cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrStepLimit is returned when a turn visits more nodes than the executor allows.
var ErrStepLimit = errors.New("step limit exceeded")

// GraphDefinitionError reports every structural problem found while compiling a graph.
type GraphDefinitionError struct {
	Problems []string
}

func (e *GraphDefinitionError) Error() string {
	return "invalid graph definition: " + strings.Join(e.Problems, "; ")
}

// UnmappedRouteError is returned when a route function yields a label
// that is not in the conditional edge's mapping.
type UnmappedRouteError struct {
	Node  string
	Label string
}

func (e *UnmappedRouteError) Error() string {
	return fmt.Sprintf("node %q produced unmapped route %q", e.Node, e.Label)
}

// NodeError wraps an error returned by a node function.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q failed: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// PersistenceError is returned when the checkpoint store fails to save a turn.
type PersistenceError struct {
	ConversationID string
	Err            error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist conversation %q: %v", e.ConversationID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// OracleTimeoutError is returned when the classification oracle does not answer in time.
type OracleTimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *OracleTimeoutError) Error() string {
	return fmt.Sprintf("oracle timed out after %s: %v", e.Timeout, e.Err)
}

func (e *OracleTimeoutError) Unwrap() error { return e.Err }

// OracleUnavailableError is returned when the oracle fails for any other reason.
type OracleUnavailableError struct {
	Attempts int
	Err      error
}

func (e *OracleUnavailableError) Error() string {
	return fmt.Sprintf("oracle unavailable after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *OracleUnavailableError) Unwrap() error { return e.Err }
