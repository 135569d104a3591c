package main

import (
	"fmt"
	"strings"

	"github.com/pichlex/debitor"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of debitor",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "debitor version %s\n", strings.TrimSpace(debitor.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
