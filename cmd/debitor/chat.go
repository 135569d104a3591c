package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pichlex/debitor/pkg/runner"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message...]",
	Short: "Send one message to a conversation",
	Long: `Runs a single turn and prints the reply followed by the route, stage
and shard. Without --thread a new conversation is started.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		threadID, _ := cmd.Flags().GetString("thread")
		if threadID == "" {
			threadID = uuid.NewString()
		}
		metaFlags, _ := cmd.Flags().GetStringToString("meta")

		text, err := runner.CleanMessage(strings.Join(args, " "))
		if err != nil {
			return err
		}

		svc, _, err := openService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		meta := make(map[string]any, len(metaFlags))
		for k, v := range metaFlags {
			meta[k] = v
		}
		reply, err := svc.Invoke(cmd.Context(), threadID, text, meta)
		if err != nil {
			return fmt.Errorf("turn failed: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, msg := range reply.Outputs {
			fmt.Fprintln(out, msg)
		}
		fmt.Fprintf(out, "thread=%s shard=%d route=%s stage=%s\n", reply.ConversationID, reply.Shard, reply.Route, reply.Stage)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("thread", "t", "", "Conversation id (a new one when empty)")
	chatCmd.Flags().StringToString("meta", nil, "Conversation details, e.g. --meta agent_name=Anna,company=ACME")
}
