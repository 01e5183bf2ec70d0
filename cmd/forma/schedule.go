// ABOUTME: Session scheduling commands.
// ABOUTME: Trainers book and cancel sessions; clients list their own.
package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harperreed/forma/internal/domain"
	"github.com/harperreed/forma/internal/models"
)

var (
	scheduleTitle    string
	scheduleUpcoming bool
	scheduleLimit    int
)

var scheduleCmd = &cobra.Command{
	Use:     "schedule",
	Aliases: []string{"sched"},
	Short:   "Manage training sessions",
	Long: `Book, list and cancel training sessions.

A client cannot have two sessions at the same date and time.

EXAMPLES:

  $ forma schedule add usr_client001 2024-03-01 07:00 --title "Mobility"
  $ forma schedule list --upcoming
  $ forma schedule rm sess_3f2a...`,
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add <client-id> <date> <time>",
	Short: "Book a session (trainer only)",
	Long: `Book a session for a client. Date is YYYY-MM-DD and time is HH:MM.

Fails if the client already has a session in that slot.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := requireSession(models.RoleTrainer)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		client, err := application.Services.Directory.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if client == nil || client.Role != models.RoleClient {
			return fmt.Errorf("client %s: %w", args[0], domain.ErrNotFound)
		}

		item, err := application.Services.Schedule.Add(ctx, domain.ScheduleInput{
			ClientID:  client.ID,
			TrainerID: sess.UserID,
			Date:      args[1],
			Time:      args[2],
			Title:     scheduleTitle,
		})
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			return fmt.Errorf("%s already has a session at %s %s (%s)",
				client.Name, conflict.Existing.Date, conflict.Existing.Time, conflict.Existing.ID)
		}
		if err != nil {
			return err
		}

		success(cmd, "Booked %s for %s", domain.Describe(item), client.Name)
		faint.Fprintf(cmd.OutOrStdout(), "  ID: %s\n", item.ID)
		return nil
	},
}

var scheduleListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List sessions",
	Long: `List sessions in date order. Trainers see every session, clients see
their own. --upcoming hides sessions that have already started.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := requireSession()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		var items []*models.ScheduleItem
		if scheduleUpcoming {
			items, err = application.Services.Schedule.Upcoming(ctx, sess, now(), scheduleLimit)
		} else {
			items, err = application.Services.Schedule.ForUser(ctx, sess)
			if err == nil && scheduleLimit > 0 && len(items) > scheduleLimit {
				items = items[:scheduleLimit]
			}
		}
		if err != nil {
			return err
		}

		if len(items) == 0 {
			printf(cmd, "No sessions scheduled.\n")
			return nil
		}

		bold.Fprintf(cmd.OutOrStdout(), "%s  %s  %s  %s\n",
			padRight("DATE", 10), padRight("TIME", 5), padRight("CLIENT", 20), "TITLE")
		for _, it := range items {
			title := it.Title
			if title == "" {
				title = "Session"
			}
			printf(cmd, "%s  %s  %s  %s\n",
				it.Date, it.Time,
				padRight(truncate(application.Services.Directory.Name(ctx, it.ClientID), 20), 20),
				truncate(title, 40))
			if verbose {
				faint.Fprintf(cmd.OutOrStdout(), "  %s\n", it.ID)
			}
		}
		return nil
	},
}

var scheduleRmCmd = &cobra.Command{
	Use:     "rm <session-id>",
	Aliases: []string{"delete", "cancel"},
	Short:   "Cancel a session (trainer only)",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireSession(models.RoleTrainer); err != nil {
			return err
		}
		if err := application.Services.Schedule.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		success(cmd, "Cancelled session %s", args[0])
		return nil
	},
}

func init() {
	scheduleAddCmd.Flags().StringVarP(&scheduleTitle, "title", "t", "", "session title")
	scheduleListCmd.Flags().BoolVarP(&scheduleUpcoming, "upcoming", "u", false, "only sessions that have not started")
	scheduleListCmd.Flags().IntVarP(&scheduleLimit, "limit", "n", 0, "maximum sessions to show (0 = all)")

	scheduleCmd.AddCommand(scheduleAddCmd, scheduleListCmd, scheduleRmCmd)
	rootCmd.AddCommand(scheduleCmd)
}
