// ABOUTME: Directory, profile and dashboard commands.
// ABOUTME: Trainers browse clients; everyone edits their own profile.
package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/harperreed/forma/internal/domain"
	"github.com/harperreed/forma/internal/models"
)

// now is the clock used for dashboards and default dates.
var now = time.Now

var usersCmd = &cobra.Command{
	Use:     "users [query]",
	Aliases: []string{"clients"},
	Short:   "List clients (trainer only)",
	Long: `List clients, optionally filtered by a case-insensitive match on
name or email.

EXAMPLES:

  $ forma users
  $ forma users leo`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireSession(models.RoleTrainer); err != nil {
			return err
		}
		query := ""
		if len(args) == 1 {
			query = args[0]
		}

		clients, err := application.Services.Directory.SearchClients(cmd.Context(), query)
		if err != nil {
			return err
		}
		if len(clients) == 0 {
			printf(cmd, "No clients found.\n")
			return nil
		}

		bold.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", padRight("ID", 20), padRight("NAME", 20), "EMAIL")
		for _, u := range clients {
			printf(cmd, "%s  %s  %s\n", padRight(u.ID, 20), padRight(truncate(u.Name, 20), 20), u.Email)
		}
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or edit your profile",
	Long: `Show or edit the signed-in user's profile. Trainers may show any
user's profile by id.

EXAMPLES:

  $ forma profile show
  $ forma profile show usr_client001
  $ forma profile set --age 34 --height 178 --weight 81.5 --goals "Run a 10k"`,
}

var profileShowCmd = &cobra.Command{
	Use:   "show [user-id]",
	Short: "Show a profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := requireSession()
		if err != nil {
			return err
		}
		userID := sess.UserID
		if len(args) == 1 && args[0] != sess.UserID {
			if _, err := requireSession(models.RoleTrainer); err != nil {
				return err
			}
			userID = args[0]
		}

		ctx := cmd.Context()
		p, err := application.Services.Profiles.Get(ctx, userID)
		if err != nil {
			return err
		}

		bold.Fprintln(cmd.OutOrStdout(), application.Services.Directory.Name(ctx, userID))
		printf(cmd, "  Age:    %s\n", optional(p.Age))
		printf(cmd, "  Height: %s\n", withUnit(p.HeightCm, "cm"))
		printf(cmd, "  Weight: %s\n", withUnit(p.WeightKg, "kg"))
		if p.Goals != "" {
			printf(cmd, "  Goals:  %s\n", p.Goals)
		}
		if p.Bio != "" {
			printf(cmd, "  Bio:    %s\n", p.Bio)
		}
		if p.AvatarURL != "" {
			printf(cmd, "  Avatar: %s\n", p.AvatarURL)
		}
		return nil
	},
}

var (
	profileAge    int
	profileHeight float64
	profileWeight float64
	profileBio    string
	profileAvatar string
	profileGoals  string
)

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update profile fields",
	Long: fmt.Sprintf(`Update the given profile fields. Fields not passed are unchanged.

Accepted ranges: age %d-%d, height %d-%d cm, weight %d-%d kg,
bio up to %d characters.`,
		domain.MinAge, domain.MaxAge, domain.MinHeightCm, domain.MaxHeightCm,
		domain.MinWeightKg, domain.MaxWeightKg, domain.MaxBioRunes),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := requireSession()
		if err != nil {
			return err
		}

		var upd domain.ProfileUpdate
		flags := cmd.Flags()
		if flags.Changed("age") {
			upd.Age = &profileAge
		}
		if flags.Changed("height") {
			upd.HeightCm = &profileHeight
		}
		if flags.Changed("weight") {
			upd.WeightKg = &profileWeight
		}
		if flags.Changed("bio") {
			upd.Bio = &profileBio
		}
		if flags.Changed("avatar") {
			upd.AvatarURL = &profileAvatar
		}
		if flags.Changed("goals") {
			upd.Goals = &profileGoals
		}

		if _, err := application.Services.Profiles.Update(cmd.Context(), sess.UserID, upd); err != nil {
			return err
		}
		success(cmd, "Profile updated")
		return nil
	},
}

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"dash"},
	Short:   "Show today's summary",
	Long: `Show a summary for the signed-in user. Trainers see their client count
and today's sessions; clients see their next session and how many progress
entries they have logged.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := requireSession()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		sum, err := application.Services.Dashboard.Summary(ctx, sess, now())
		if err != nil {
			return err
		}

		bold.Fprintf(cmd.OutOrStdout(), "Hello, %s\n\n", sess.Name)
		if sess.IsTrainer() {
			printf(cmd, "Clients: %d\n", sum.ClientCount)
			printf(cmd, "Today:   %d session(s)\n", len(sum.TodaySessions))
			for _, it := range sum.TodaySessions {
				printf(cmd, "  %s  %s\n", domain.Describe(it), application.Services.Directory.Name(ctx, it.ClientID))
			}
			return nil
		}

		if sum.NextSession != nil {
			printf(cmd, "Next session: %s\n", domain.Describe(sum.NextSession))
		} else {
			printf(cmd, "Next session: none scheduled\n")
		}
		printf(cmd, "Progress entries: %d\n", sum.ProgressCount)
		return nil
	},
}

func optional(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func withUnit(v *float64, unit string) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64) + " " + unit
}

func init() {
	f := profileSetCmd.Flags()
	f.IntVar(&profileAge, "age", 0, "age in years")
	f.Float64Var(&profileHeight, "height", 0, "height in cm")
	f.Float64Var(&profileWeight, "weight", 0, "weight in kg")
	f.StringVar(&profileBio, "bio", "", "short bio")
	f.StringVar(&profileAvatar, "avatar", "", "avatar URL")
	f.StringVar(&profileGoals, "goals", "", "training goals")

	profileCmd.AddCommand(profileShowCmd, profileSetCmd)
	rootCmd.AddCommand(usersCmd, profileCmd, dashboardCmd)
}
