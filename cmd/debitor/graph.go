package main

import (
	"encoding/json"
	"fmt"

	"github.com/pichlex/debitor/internal/dialogue"
	"github.com/pichlex/debitor/internal/presentation/graph"
	"github.com/pichlex/debitor/pkg/oracle/keyword"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the dialogue graph",
	Long: `Prints the compiled dialogue graph as a Mermaid flowchart (graph TD),
JSON or YAML. With --thread the nodes visited by the last turn of that
conversation are highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		threadID, _ := cmd.Flags().GetString("thread")
		out := cmd.OutOrStdout()

		var overlay *graph.Overlay
		if threadID != "" {
			svc, _, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()
			state, err := svc.Session(cmd.Context(), threadID)
			if err != nil {
				return fmt.Errorf("loading session %q: %w", threadID, err)
			}
			overlay = &graph.Overlay{VisitedNodes: state.Scratch.Path, CurrentNode: state.Scratch.CurrentNode}
		}

		// The shape of the graph does not depend on the classifier.
		g, err := dialogue.Build(dialogue.Deps{Oracle: keyword.New()})
		if err != nil {
			return err
		}
		nodes := g.Describe()

		switch format {
		case "mermaid":
			fmt.Fprint(out, graph.GenerateMermaid(nodes, overlay))
			return nil
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(nodes)
		case "yaml":
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(nodes)
		default:
			return fmt.Errorf("unknown format %q: supported are mermaid, json and yaml", format)
		}
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("format", "f", "mermaid", "Output format: mermaid, json or yaml")
	graphCmd.Flags().StringP("thread", "t", "", "Highlight the last turn of this conversation")
}
