package graph

import (
	"fmt"
	"slices"
	"sort"

	"github.com/pichlex/debitor/pkg/domain"
)

// End is the terminal marker usable as an edge target.
const End = "__end__"

// NodeOption configures a node at registration time.
type NodeOption func(*nodeSpec)

// WritesResume declares the resume targets a node may write to scratch.resume_at.
// Compile rejects targets outside the resumable whitelist.
func WritesResume(targets ...string) NodeOption {
	return func(n *nodeSpec) {
		n.writesResume = append(n.writesResume, targets...)
	}
}

type nodeSpec struct {
	name         string
	fn           NodeFunc
	writesResume []string
}

type conditional struct {
	route   RouteFunc
	mapping map[string]string
}

// Builder manages the graph construction.
type Builder struct {
	order     []string
	nodes     map[string]*nodeSpec
	fixed     map[string][]string
	cond      map[string][]conditional
	entry     string
	resumable []string
	problems  []string
}

// New creates a new graph builder.
func New() *Builder {
	return &Builder{
		nodes: make(map[string]*nodeSpec),
		fixed: make(map[string][]string),
		cond:  make(map[string][]conditional),
	}
}

// AddNode registers a node. Registering the same name twice is a definition error.
func (b *Builder) AddNode(name string, fn NodeFunc, opts ...NodeOption) *Builder {
	switch {
	case name == "" || name == End:
		b.problems = append(b.problems, fmt.Sprintf("invalid node name %q", name))
		return b
	case fn == nil:
		b.problems = append(b.problems, fmt.Sprintf("node %q has no function", name))
	}
	if _, exists := b.nodes[name]; exists {
		b.problems = append(b.problems, fmt.Sprintf("duplicate node %q", name))
		return b
	}
	spec := &nodeSpec{name: name, fn: fn}
	for _, opt := range opts {
		opt(spec)
	}
	b.nodes[name] = spec
	b.order = append(b.order, name)
	return b
}

// AddEdge adds an unconditional edge. to may be End.
func (b *Builder) AddEdge(from, to string) *Builder {
	b.fixed[from] = append(b.fixed[from], to)
	return b
}

// AddConditionalEdge adds a labelled edge set. After from runs, route is
// evaluated on the updated state and its label is looked up in mapping.
// A nil route uses the route label of from's own update; when from made no
// routing decision the turn fails with an UnmappedRouteError for "".
func (b *Builder) AddConditionalEdge(from string, route RouteFunc, mapping map[string]string) *Builder {
	m := make(map[string]string, len(mapping))
	for k, v := range mapping {
		m[k] = v
	}
	b.cond[from] = append(b.cond[from], conditional{route: route, mapping: m})
	return b
}

// SetEntry designates the entry node.
func (b *Builder) SetEntry(name string) *Builder {
	b.entry = name
	return b
}

// SetResumable registers the whitelist of nodes a conversation may resume at.
func (b *Builder) SetResumable(names ...string) *Builder {
	b.resumable = append(b.resumable, names...)
	return b
}

// Compile validates the definition and returns an immutable graph.
func (b *Builder) Compile() (*Graph, error) {
	problems := slices.Clone(b.problems)
	known := func(name string) bool {
		_, ok := b.nodes[name]
		return ok
	}

	if b.entry == "" {
		problems = append(problems, "no entry node set")
	} else if !known(b.entry) {
		problems = append(problems, fmt.Sprintf("entry node %q is not registered", b.entry))
	}

	for _, from := range sortedKeys(b.fixed) {
		targets := b.fixed[from]
		if !known(from) {
			problems = append(problems, fmt.Sprintf("edge source %q is not registered", from))
		}
		if len(targets) > 1 {
			problems = append(problems, fmt.Sprintf("node %q has %d unconditional edges", from, len(targets)))
		}
		for _, to := range targets {
			if to != End && !known(to) {
				problems = append(problems, fmt.Sprintf("edge %q -> %q targets an unregistered node", from, to))
			}
		}
	}

	for _, from := range sortedKeys(b.cond) {
		edges := b.cond[from]
		if !known(from) {
			problems = append(problems, fmt.Sprintf("conditional edge source %q is not registered", from))
		}
		if len(edges) > 1 {
			problems = append(problems, fmt.Sprintf("node %q has %d conditional edges", from, len(edges)))
		}
		for _, e := range edges {
			if len(e.mapping) == 0 {
				problems = append(problems, fmt.Sprintf("conditional edge from %q has an empty mapping", from))
			}
			for _, label := range sortedKeys(e.mapping) {
				to := e.mapping[label]
				if to != End && !known(to) {
					problems = append(problems, fmt.Sprintf("route %q from %q targets unregistered node %q", label, from, to))
				}
			}
		}
	}

	resumable := make(map[string]bool, len(b.resumable))
	for _, name := range b.resumable {
		if !known(name) {
			problems = append(problems, fmt.Sprintf("resumable node %q is not registered", name))
			continue
		}
		resumable[name] = true
		if entryEdges := b.cond[b.entry]; len(entryEdges) == 1 && !targets(entryEdges[0].mapping, name) {
			problems = append(problems, fmt.Sprintf("resumable node %q is not reachable from entry %q", name, b.entry))
		}
	}

	for _, name := range b.order {
		for _, target := range b.nodes[name].writesResume {
			if !resumable[target] {
				problems = append(problems, fmt.Sprintf("node %q writes resume target %q outside the resumable whitelist", name, target))
			}
		}
	}

	if len(problems) > 0 {
		return nil, &domain.GraphDefinitionError{Problems: problems}
	}

	g := &Graph{
		entry:     b.entry,
		order:     slices.Clone(b.order),
		nodes:     make(map[string]*compiledNode, len(b.nodes)),
		resumable: resumable,
	}
	for _, name := range b.order {
		spec := b.nodes[name]
		cn := &compiledNode{
			name:         name,
			run:          Trace(name, name == b.entry, spec.fn),
			writesResume: slices.Clone(spec.writesResume),
		}
		if to, ok := b.fixed[name]; ok {
			cn.fixed = to[0]
			cn.hasFixed = true
		}
		if edges, ok := b.cond[name]; ok {
			c := edges[0]
			cn.cond = &c
		}
		g.nodes[name] = cn
	}
	return g, nil
}

func targets(mapping map[string]string, node string) bool {
	for _, to := range mapping {
		if to == node {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
