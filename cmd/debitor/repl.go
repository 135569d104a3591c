package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pichlex/debitor"
	"github.com/pichlex/debitor/internal/presentation/tui"
	"github.com/pichlex/debitor/pkg/runner"
	"github.com/spf13/cobra"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Talk to the agent interactively",
	Long: `Starts an interactive session on stdin and stdout.
Type exit or quit to leave and /new to start a new conversation.
With --json, every input line is a JSON object and every reply is printed as NDJSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, _ := cmd.Flags().GetBool("json")
		showNotes, _ := cmd.Flags().GetBool("notes")
		threadID, _ := cmd.Flags().GetString("thread")
		metaFlags, _ := cmd.Flags().GetStringToString("meta")

		svc, logger, err := openService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		meta := make(map[string]any, len(metaFlags))
		for k, v := range metaFlags {
			meta[k] = v
		}
		opts := []runner.Option{runner.WithLogger(logger), runner.WithMeta(meta)}
		if threadID != "" {
			opts = append(opts, runner.WithThreadID(threadID))
		}

		if jsonMode {
			opts = append(opts, runner.WithHandler(runner.NewJSONHandler(os.Stdin, os.Stdout)))
			return runner.New(svc, opts...).Run(ctx)
		}

		textOpts := []runner.TextHandlerOption{runner.WithNotes(showNotes)}
		if showNotes {
			if render, err := tui.NewRenderer(); err == nil {
				textOpts = append(textOpts, runner.WithRenderer(render))
			} else {
				logger.Warn("Markdown renderer unavailable", "err", err)
			}
		}
		opts = append(opts, runner.WithHandler(runner.NewTextHandler(os.Stdin, os.Stdout, textOpts...)))

		r := runner.New(svc, opts...)
		tui.PrintBanner(os.Stdout, strings.TrimSpace(debitor.Version), r.ThreadID())
		return r.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
	replCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
	replCmd.Flags().Bool("notes", false, "Show operator notes after each reply")
	replCmd.Flags().StringP("thread", "t", "", "Conversation id to resume (a new one when empty)")
	replCmd.Flags().StringToString("meta", nil, "Conversation details, e.g. --meta agent_name=Anna,company=ACME")
}
