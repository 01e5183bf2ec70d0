// ABOUTME: Training and nutrition plan commands.
// ABOUTME: Trainers write plans for clients; clients read their own.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harperreed/forma/internal/domain"
	"github.com/harperreed/forma/internal/models"
)

var (
	planType    string
	planDetails string
	planClient  string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage training and nutrition plans",
	Long: `Write and read training and nutrition plans.

EXAMPLES:

  $ forma plan add usr_client001 "Strength block A" --type training --details "3x5 squat"
  $ forma plan list
  $ forma plan list --client usr_client001    # trainer
  $ forma plan rm plan_1b2c...`,
}

var planAddCmd = &cobra.Command{
	Use:   "add <client-id> <title>",
	Short: "Write a plan (trainer only)",
	Args:  cobra.ExactArgs(2),
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
		if client == nil {
			return fmt.Errorf("client %s: %w", args[0], domain.ErrNotFound)
		}

		p, err := application.Services.Plans.Add(ctx, domain.PlanInput{
			ClientID:  client.ID,
			TrainerID: sess.UserID,
			Type:      strings.ToLower(planType),
			Title:     args[1],
			Details:   planDetails,
		})
		if err != nil {
			return err
		}
		success(cmd, "Added %s plan %q for %s", p.Type, p.Title, client.Name)
		faint.Fprintf(cmd.OutOrStdout(), "  ID: %s\n", p.ID)
		return nil
	},
}

var planListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List plans",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := requireSession()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		var plans []*models.Plan
		if planClient != "" {
			clientID, err := subjectFor(sess, planClient)
			if err != nil {
				return err
			}
			plans, err = application.Services.Plans.ForClient(ctx, clientID)
			if err != nil {
				return err
			}
		} else if plans, err = application.Services.Plans.ForUser(ctx, sess); err != nil {
			return err
		}

		if len(plans) == 0 {
			printf(cmd, "No plans.\n")
			return nil
		}
		for _, p := range plans {
			bold.Fprintf(cmd.OutOrStdout(), "%s  [%s] %s\n", p.CreatedAt.Format(models.DateLayout), p.Type, p.Title)
			if sess.IsTrainer() {
				printf(cmd, "  Client: %s\n", application.Services.Directory.Name(ctx, p.ClientID))
			}
			if p.Details != "" {
				printf(cmd, "  %s\n", p.Details)
			}
			if verbose {
				faint.Fprintf(cmd.OutOrStdout(), "  %s\n", p.ID)
			}
		}
		return nil
	},
}

var planRmCmd = &cobra.Command{
	Use:     "rm <plan-id>",
	Aliases: []string{"delete"},
	Short:   "Delete a plan (trainer only)",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireSession(models.RoleTrainer); err != nil {
			return err
		}
		if err := application.Services.Plans.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		success(cmd, "Deleted plan %s", args[0])
		return nil
	},
}

func init() {
	planAddCmd.Flags().StringVar(&planType, "type", string(models.PlanTraining), "training or nutrition")
	planAddCmd.Flags().StringVar(&planDetails, "details", "", "plan details")
	planListCmd.Flags().StringVar(&planClient, "client", "", "only plans for this client")

	planCmd.AddCommand(planAddCmd, planListCmd, planRmCmd)
	rootCmd.AddCommand(planCmd)
}
