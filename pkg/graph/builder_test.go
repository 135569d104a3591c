package graph_test

import (
	"context"
	"errors"
	"testing"

	"github.com/pichlex/debitor/pkg/domain"
	"github.com/pichlex/debitor/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, *domain.ConversationState) (domain.Update, error) {
	return domain.Update{}, nil
}

func TestCompile_Valid(t *testing.T) {
	g, err := graph.New().
		AddNode("entry", noop).
		AddNode("a", noop, graph.WritesResume("b")).
		AddNode("b", noop).
		AddConditionalEdge("entry", nil, map[string]string{"a": "a", "b": "b"}).
		AddEdge("a", graph.End).
		AddEdge("b", graph.End).
		SetEntry("entry").
		SetResumable("b").
		Compile()
	require.NoError(t, err)

	assert.Equal(t, "entry", g.Entry())
	assert.Equal(t, []string{"entry", "a", "b"}, g.Nodes())
	assert.True(t, g.IsResumable("b"))
	assert.False(t, g.IsResumable("a"))
	assert.Equal(t, []string{"b"}, g.Resumable())
}

func TestCompile_DefinitionErrors(t *testing.T) {
	tests := []struct {
		name    string
		build   func() *graph.Builder
		problem string
	}{
		{
			name: "Dangling edge",
			build: func() *graph.Builder {
				return graph.New().AddNode("entry", noop).AddEdge("entry", "ghost").SetEntry("entry")
			},
			problem: `edge "entry" -> "ghost" targets an unregistered node`,
		},
		{
			name: "Dangling conditional target",
			build: func() *graph.Builder {
				return graph.New().AddNode("entry", noop).
					AddConditionalEdge("entry", nil, map[string]string{"x": "ghost"}).
					SetEntry("entry")
			},
			problem: `route "x" from "entry" targets unregistered node "ghost"`,
		},
		{
			name: "Unregistered edge source",
			build: func() *graph.Builder {
				return graph.New().AddNode("entry", noop).AddEdge("ghost", "entry").SetEntry("entry")
			},
			problem: `edge source "ghost" is not registered`,
		},
		{
			name: "Duplicate node",
			build: func() *graph.Builder {
				return graph.New().AddNode("entry", noop).AddNode("entry", noop).SetEntry("entry")
			},
			problem: `duplicate node "entry"`,
		},
		{
			name: "Missing entry",
			build: func() *graph.Builder {
				return graph.New().AddNode("a", noop)
			},
			problem: "no entry node set",
		},
		{
			name: "Unregistered entry",
			build: func() *graph.Builder {
				return graph.New().AddNode("a", noop).SetEntry("entry")
			},
			problem: `entry node "entry" is not registered`,
		},
		{
			name: "Resumable not registered",
			build: func() *graph.Builder {
				return graph.New().AddNode("entry", noop).SetEntry("entry").SetResumable("ghost")
			},
			problem: `resumable node "ghost" is not registered`,
		},
		{
			name: "Resumable not reachable from entry",
			build: func() *graph.Builder {
				return graph.New().
					AddNode("entry", noop).
					AddNode("a", noop).
					AddNode("b", noop).
					AddConditionalEdge("entry", nil, map[string]string{"a": "a"}).
					SetEntry("entry").
					SetResumable("b")
			},
			problem: `resumable node "b" is not reachable from entry "entry"`,
		},
		{
			name: "Resume target outside whitelist",
			build: func() *graph.Builder {
				return graph.New().
					AddNode("entry", noop, graph.WritesResume("entry")).
					SetEntry("entry")
			},
			problem: `node "entry" writes resume target "entry" outside the resumable whitelist`,
		},
		{
			name: "Two fixed edges",
			build: func() *graph.Builder {
				return graph.New().AddNode("entry", noop).
					AddEdge("entry", graph.End).AddEdge("entry", graph.End).
					SetEntry("entry")
			},
			problem: `node "entry" has 2 unconditional edges`,
		},
		{
			name: "Nil function",
			build: func() *graph.Builder {
				return graph.New().AddNode("entry", nil).SetEntry("entry")
			},
			problem: `node "entry" has no function`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := tt.build().Compile()
			require.Error(t, err)
			assert.Nil(t, g)

			var defErr *domain.GraphDefinitionError
			require.True(t, errors.As(err, &defErr))
			assert.Contains(t, defErr.Problems, tt.problem)
		})
	}
}

func TestCompile_CollectsAllProblems(t *testing.T) {
	_, err := graph.New().
		AddNode("a", noop).
		AddNode("a", noop).
		AddEdge("a", "ghost").
		Compile()

	var defErr *domain.GraphDefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Len(t, defErr.Problems, 3)
}
