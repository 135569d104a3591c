package graph

import (
	"context"
	"errors"

	"github.com/pichlex/debitor/pkg/domain"
)

var errUnknownNode = errors.New("unknown node")

// Result is what a traced node hands back: the node's own update and the
// merged scratch the executor must store.
type Result struct {
	Update  domain.Update
	Scratch domain.Scratch
}

// TracedFunc is a node wrapped by Trace.
type TracedFunc func(ctx context.Context, state *domain.ConversationState) (Result, error)

// Trace wraps fn so that every invocation records name on the turn path.
//
// The path is reset when isEntry is set. The node sees the stamped scratch;
// its delta is merged over it and Path and CurrentNode are then forced back,
// so a node can neither rewrite the trace nor erase the caller's scratch.
func Trace(name string, isEntry bool, fn NodeFunc) TracedFunc {
	return func(ctx context.Context, in *domain.ConversationState) (Result, error) {
		stamped := in.Scratch.Clone()
		if isEntry || stamped.Path == nil {
			stamped.Path = []string{}
		}
		stamped.Path = append(stamped.Path, name)
		stamped.CurrentNode = name

		view := in.Clone()
		view.Scratch = stamped.Clone()

		upd, err := fn(ctx, view)
		if err != nil {
			return Result{}, err
		}

		merged := upd.Scratch.ApplyTo(stamped)
		merged.Path = stamped.Path
		merged.CurrentNode = name
		return Result{Update: upd, Scratch: merged}, nil
	}
}
