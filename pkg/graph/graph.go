package graph

import (
	"context"
	"slices"

	"github.com/pichlex/debitor/pkg/domain"
)

// NodeFunc is a unit of work. It receives a private copy of the state and
// returns a partial update.
type NodeFunc func(ctx context.Context, state *domain.ConversationState) (domain.Update, error)

// RouteFunc maps the state produced by a node to a routing label.
type RouteFunc func(state *domain.ConversationState) string

type compiledNode struct {
	name         string
	run          TracedFunc
	fixed        string
	hasFixed     bool
	cond         *conditional
	writesResume []string
}

// Graph is a compiled, immutable dialogue graph.
type Graph struct {
	entry     string
	order     []string
	nodes     map[string]*compiledNode
	resumable map[string]bool
}

// Entry returns the entry node name.
func (g *Graph) Entry() string {
	return g.entry
}

// Nodes returns the node names in registration order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.order)
}

// Has reports whether name is a registered node.
func (g *Graph) Has(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// IsResumable reports whether a conversation may resume at name.
func (g *Graph) IsResumable(name string) bool {
	return g.resumable[name]
}

// Resumable returns the sorted resume whitelist.
func (g *Graph) Resumable() []string {
	return sortedKeys(g.resumable)
}

// Run executes the traced node.
func (g *Graph) Run(ctx context.Context, name string, state *domain.ConversationState) (Result, error) {
	n, ok := g.nodes[name]
	if !ok {
		return Result{}, &domain.NodeError{Node: name, Err: errUnknownNode}
	}
	return n.run(ctx, state)
}

// Next selects the successor of from, given the state after from's update
// was applied. label is the route label of from's own update, empty when
// it made no routing decision. Labels left in state by earlier nodes or
// turns never select an edge. It returns End when from is terminal.
func (g *Graph) Next(from string, state *domain.ConversationState, label string) (string, error) {
	n, ok := g.nodes[from]
	if !ok {
		return "", &domain.NodeError{Node: from, Err: errUnknownNode}
	}
	if n.cond != nil && (!n.hasFixed || label != "") {
		if n.cond.route != nil {
			label = n.cond.route(state)
		}
		to, ok := n.cond.mapping[label]
		if !ok {
			return "", &domain.UnmappedRouteError{Node: from, Label: label}
		}
		return to, nil
	}
	if n.hasFixed {
		return n.fixed, nil
	}
	return End, nil
}

// EdgeInfo describes one outgoing edge. Label is empty for unconditional edges.
type EdgeInfo struct {
	Label  string `json:"label,omitempty" yaml:"label,omitempty"`
	Target string `json:"target" yaml:"target"`
}

// NodeInfo describes one node for introspection.
type NodeInfo struct {
	Name      string     `json:"name" yaml:"name"`
	Entry     bool       `json:"entry,omitempty" yaml:"entry,omitempty"`
	Resumable bool       `json:"resumable,omitempty" yaml:"resumable,omitempty"`
	Terminal  bool       `json:"terminal,omitempty" yaml:"terminal,omitempty"`
	Edges     []EdgeInfo `json:"edges,omitempty" yaml:"edges,omitempty"`
}

// Describe returns an introspection view of the graph in registration order.
func (g *Graph) Describe() []NodeInfo {
	out := make([]NodeInfo, 0, len(g.order))
	for _, name := range g.order {
		n := g.nodes[name]
		info := NodeInfo{
			Name:      name,
			Entry:     name == g.entry,
			Resumable: g.resumable[name],
		}
		if n.cond != nil {
			for _, l := range sortedKeys(n.cond.mapping) {
				info.Edges = append(info.Edges, EdgeInfo{Label: l, Target: n.cond.mapping[l]})
			}
		}
		if n.hasFixed {
			info.Edges = append(info.Edges, EdgeInfo{Target: n.fixed})
		}
		info.Terminal = len(info.Edges) == 0 || (len(info.Edges) == 1 && info.Edges[0].Target == End)
		out = append(out, info)
	}
	return out
}
