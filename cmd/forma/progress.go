// ABOUTME: Progress commands for logging and reviewing body measurements.
// ABOUTME: Clients log their own; trainers may act for a client with --user.
package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harperreed/forma/internal/auth"
	"github.com/harperreed/forma/internal/models"
)

var (
	progressUser   string
	progressDate   string
	progressMetric string
)

var progressCmd = &cobra.Command{
	Use:     "progress",
	Aliases: []string{"p"},
	Short:   "Log and review measurements",
	Long: fmt.Sprintf(`Log and review body measurements.

METRICS: %s

Legacy names (weightKg, bodyFatPercent, chestCm, waistCm) are accepted too.

EXAMPLES:

  $ forma progress add weight-kg 82.4
  $ forma progress add waist-cm 88 --date 2024-02-01
  $ forma progress list --metric weight-kg
  $ forma progress list --user usr_client001      # trainer`, metricNames()),
}

var progressAddCmd = &cobra.Command{
	Use:   "add <metric> <value>",
	Short: "Log a measurement",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := requireSession()
		if err != nil {
			return err
		}
		userID, err := subjectFor(sess, progressUser)
		if err != nil {
			return err
		}

		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid value %q: must be a number", args[1])
		}
		date := progressDate
		if date == "" {
			date = now().Format(models.DateLayout)
		}

		entry, err := application.Services.Progress.Add(cmd.Context(), userID, date, args[0], value)
		if err != nil {
			return err
		}
		success(cmd, "Logged %s %s %s on %s", entry.Metric, formatValue(entry.Value), entry.Unit(), entry.Date)
		return nil
	},
}

var progressListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List measurements",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := requireSession()
		if err != nil {
			return err
		}
		userID, err := subjectFor(sess, progressUser)
		if err != nil {
			return err
		}

		var metric models.ProgressMetric
		if progressMetric != "" {
			m, ok := models.ParseProgressMetric(progressMetric)
			if !ok {
				return fmt.Errorf("unknown metric %q (want one of %s)", progressMetric, metricNames())
			}
			metric = m
		}

		entries, err := application.Services.Progress.Series(cmd.Context(), userID, metric)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			printf(cmd, "No progress entries.\n")
			return nil
		}

		bold.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", padRight("DATE", 10), padRight("METRIC", 16), "VALUE")
		for _, e := range entries {
			printf(cmd, "%s  %s  %s %s\n", e.Date, padRight(string(e.Metric), 16), formatValue(e.Value), e.Unit())
		}
		return nil
	},
}

// subjectFor resolves whose data a command touches. Clients may only act on
// themselves.
func subjectFor(sess *models.Session, userID string) (string, error) {
	if userID == "" || userID == sess.UserID {
		return sess.UserID, nil
	}
	if !sess.IsTrainer() {
		return "", fmt.Errorf("%w: clients can only access their own data", auth.ErrForbidden)
	}
	return userID, nil
}

func metricNames() string {
	names := make([]string, len(models.AllProgressMetrics))
	for i, m := range models.AllProgressMetrics {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func init() {
	progressCmd.PersistentFlags().StringVar(&progressUser, "user", "", "user id (trainers only)")
	progressAddCmd.Flags().StringVarP(&progressDate, "date", "d", "", "date as YYYY-MM-DD (default today)")
	progressListCmd.Flags().StringVarP(&progressMetric, "metric", "m", "", "only this metric")

	progressCmd.AddCommand(progressAddCmd, progressListCmd)
	rootCmd.AddCommand(progressCmd)
}
