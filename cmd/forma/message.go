// ABOUTME: Messaging commands between trainers and clients.
// ABOUTME: Supports send, thread and peers.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harperreed/forma/internal/domain"
)

var messageCmd = &cobra.Command{
	Use:     "message",
	Aliases: []string{"msg"},
	Short:   "Message your trainer or clients",
	Long: `Send and read messages. Trainers message clients and clients message
trainers.

EXAMPLES:

  $ forma message peers
  $ forma message send usr_trainer01 "Running late, 10 minutes"
  $ forma message thread usr_trainer01`,
}

var messageSendCmd = &cobra.Command{
	Use:   "send <user-id> <text...>",
	Short: "Send a message",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := requireSession()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		to, err := application.Services.Directory.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if to == nil {
			return fmt.Errorf("user %s: %w", args[0], domain.ErrNotFound)
		}

		if _, err := application.Services.Messages.Send(ctx, sess.UserID, to.ID, strings.Join(args[1:], " ")); err != nil {
			return err
		}
		success(cmd, "Sent to %s", to.Name)
		return nil
	},
}

var messageThreadCmd = &cobra.Command{
	Use:     "thread <user-id>",
	Aliases: []string{"read"},
	Short:   "Show the conversation with a user",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := requireSession()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		msgs, err := application.Services.Messages.Conversation(ctx, sess.UserID, args[0])
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			printf(cmd, "No messages with %s.\n", application.Services.Directory.Name(ctx, args[0]))
			return nil
		}

		for _, m := range msgs {
			who := application.Services.Directory.Name(ctx, m.FromID)
			if m.FromID == sess.UserID {
				who = "You"
			}
			faint.Fprintf(cmd.OutOrStdout(), "%s ", m.SentAt.Local().Format("2006-01-02 15:04"))
			bold.Fprintf(cmd.OutOrStdout(), "%s: ", who)
			printf(cmd, "%s\n", m.Text)
		}
		return nil
	},
}

var messagePeersCmd = &cobra.Command{
	Use:   "peers",
	Short: "List who you can message",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := requireSession()
		if err != nil {
			return err
		}

		peers, err := application.Services.Messages.Peers(cmd.Context(), sess)
		if err != nil {
			return err
		}
		if len(peers) == 0 {
			printf(cmd, "Nobody to message yet.\n")
			return nil
		}
		for _, u := range peers {
			printf(cmd, "%s  %s\n", padRight(u.ID, 20), u.Name)
		}
		return nil
	},
}

func init() {
	messageCmd.AddCommand(messageSendCmd, messageThreadCmd, messagePeersCmd)
	rootCmd.AddCommand(messageCmd)
}
