package main

import (
	"fmt"

	"github.com/pichlex/debitor"
	"github.com/pichlex/debitor/internal/dialogue"
	"github.com/pichlex/debitor/pkg/oracle/keyword"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and the dialogue graph",
	Long: `Loads the configuration, reporting every invalid setting, and compiles the
dialogue graph, reporting unknown edge targets and unmapped routes.
Stores and providers are not contacted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		if _, err := cfg.ServiceConfig(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		if _, err := dialogue.Build(dialogue.Deps{Oracle: keyword.New()}); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration is valid (%d shards).\n", cfg.ShardCount)
		for i := 0; i < cfg.ShardCount; i++ {
			s := cfg.Shard(i)
			fmt.Fprintf(out, "  shard %d  model=%s  dsn=%s\n", i, s.Model, debitor.RedactDSN(s.DSN))
		}
		fmt.Fprintln(out, "Graph is valid!")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
