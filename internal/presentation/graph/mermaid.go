package graph

import (
	"fmt"
	"strings"

	dgraph "github.com/pichlex/debitor/pkg/graph"
)

// Overlay marks the nodes a turn visited on the rendered graph.
type Overlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// GenerateMermaid produces a Mermaid flowchart from a graph description.
// Shapes:
// - Entry: ((Circle))
// - Resumable: [/Parallelogram/], a node a later turn may continue from
// - Terminal: ([Stadium])
// - Default: [Rectangle]
func GenerateMermaid(nodes []dgraph.NodeInfo, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	endUsed := false
	for _, node := range nodes {
		safeID := sanitizeMermaidID(node.Name)

		opener, closer := "[", "]"
		switch {
		case node.Entry:
			opener, closer = "((", "))"
		case node.Resumable:
			opener, closer = "[/", "/]"
		case node.Terminal:
			opener, closer = "([", "])"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, node.Name, closer)

		for _, e := range node.Edges {
			if e.Target == dgraph.End {
				endUsed = true
			}
			safeTo := sanitizeMermaidID(e.Target)
			if e.Label != "" {
				fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", safeID, strings.ReplaceAll(e.Label, "\"", "'"), safeTo)
			} else {
				fmt.Fprintf(&sb, "    %s --> %s\n", safeID, safeTo)
			}
		}
	}
	if endUsed {
		fmt.Fprintf(&sb, "    %s(((\"end\")))\n", sanitizeMermaidID(dgraph.End))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on both light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && !seen[safeID] {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

// sanitizeMermaidID maps a node name to a Mermaid-safe identifier.
func sanitizeMermaidID(id string) string {
	s := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
	if strings.HasPrefix(s, "_") {
		s = "n" + s
	}
	return s
}
