// ABOUTME: Workout and nutrition journal commands.
// ABOUTME: Entries belong to the signed-in user.
package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harperreed/forma/internal/domain"
)

var (
	journalDetails string
	journalUser    string
)

var journalCmd = &cobra.Command{
	Use:     "journal",
	Aliases: []string{"j"},
	Short:   "Keep a workout and nutrition journal",
	Long: `Record completed workouts and meals.

EXAMPLES:

  $ forma journal add workout "Easy run" --details "5k at 6:10/km"
  $ forma journal add nutrition "Breakfast" --details "Oats, berries"
  $ forma journal list workout`,
}

var journalAddCmd = &cobra.Command{
	Use:       "add <workout|nutrition> <title>",
	Short:     "Add a journal entry",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{string(domain.JournalWorkout), string(domain.JournalNutrition)},
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := requireSession()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		switch domain.JournalKind(args[0]) {
		case domain.JournalWorkout:
			_, err = application.Services.Journal.AddWorkout(ctx, sess.UserID, args[1], journalDetails)
		case domain.JournalNutrition:
			_, err = application.Services.Journal.AddNutrition(ctx, sess.UserID, args[1], journalDetails)
		default:
			return fmt.Errorf("unknown journal %q: use workout or nutrition", args[0])
		}
		if err != nil {
			return err
		}
		success(cmd, "Added %s entry %q", args[0], args[1])
		return nil
	},
}

var journalListCmd = &cobra.Command{
	Use:     "list <workout|nutrition>",
	Aliases: []string{"ls"},
	Short:   "List journal entries",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := requireSession()
		if err != nil {
			return err
		}
		userID, err := subjectFor(sess, journalUser)
		if err != nil {
			return err
		}

		type line struct {
			at             time.Time
			title, details string
		}
		var lines []line

		ctx := cmd.Context()
		switch domain.JournalKind(args[0]) {
		case domain.JournalWorkout:
			entries, err := application.Services.Journal.Workouts(ctx, userID)
			if err != nil {
				return err
			}
			for _, e := range entries {
				lines = append(lines, line{e.CreatedAt, e.Title, e.Details})
			}
		case domain.JournalNutrition:
			entries, err := application.Services.Journal.Nutrition(ctx, userID)
			if err != nil {
				return err
			}
			for _, e := range entries {
				lines = append(lines, line{e.CreatedAt, e.Title, e.Details})
			}
		default:
			return fmt.Errorf("unknown journal %q: use workout or nutrition", args[0])
		}

		if len(lines) == 0 {
			printf(cmd, "No %s entries.\n", args[0])
			return nil
		}
		for _, l := range lines {
			printf(cmd, "%s  %s\n", l.at.Local().Format("2006-01-02 15:04"), l.title)
			if l.details != "" {
				faint.Fprintf(cmd.OutOrStdout(), "  %s\n", truncate(l.details, 70))
			}
		}
		return nil
	},
}

func init() {
	journalAddCmd.Flags().StringVar(&journalDetails, "details", "", "entry details")
	journalListCmd.Flags().StringVar(&journalUser, "user", "", "user id (trainers only)")

	journalCmd.AddCommand(journalAddCmd, journalListCmd)
	rootCmd.AddCommand(journalCmd)
}
