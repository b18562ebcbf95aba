package cmd

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/pbelyakov/planforge/pkg/history"
)

var (
	historyTask          string
	historyOutcome       string
	historySince         string
	historyUntil         string
	historyMinConfidence float64
	historyLimit         int
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query past planning runs",
	Long: `Query the run history database.

Every completed run is recorded with its outcome, confidence score, token
usage and artifact location.

Examples:
  planforge history                       # Recent runs
  planforge history --task PROJ-123       # Runs for one ticket
  planforge history --outcome SUCCESS
  planforge history --since 2026-08-01
  planforge history --min-confidence 0.7`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistoryCommand(cmd)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVarP(&historyTask, "task", "t", "", "Filter by ticket key")
	historyCmd.Flags().StringVar(&historyOutcome, "outcome", "", "Filter by outcome (SUCCESS, CONTEXT_ERROR, NEW_PROJECT, EXECUTION_ERROR)")
	historyCmd.Flags().StringVar(&historySince, "since", "", "Start time (YYYY-MM-DD HH:MM or YYYY-MM-DD)")
	historyCmd.Flags().StringVar(&historyUntil, "until", "", "End time (YYYY-MM-DD HH:MM or YYYY-MM-DD)")
	historyCmd.Flags().Float64Var(&historyMinConfidence, "min-confidence", 0, "Minimum overall confidence")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to show")
}

func runHistoryCommand(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	store, err := history.Open(cfg.History.DatabasePath)
	if err != nil {
		return errors.Wrap(err, "failed to open history database")
	}
	defer func() { _ = store.Close() }()

	options := history.QueryOptions{
		TicketKey: historyTask,
		Outcome:   historyOutcome,
		Limit:     historyLimit,
	}

	if historySince != "" {
		since, err := parseTimeString(historySince)
		if err != nil {
			return errors.Wrap(err, "invalid --since time")
		}
		options.Since = &since
	}

	if historyUntil != "" {
		until, err := parseTimeString(historyUntil)
		if err != nil {
			return errors.Wrap(err, "invalid --until time")
		}
		options.Until = &until
	}

	if cmd.Flags().Changed("min-confidence") {
		options.MinConfidence = &historyMinConfidence
	}

	runs, err := store.QueryRuns(cmd.Context(), options)
	if err != nil {
		return errors.Wrap(err, "failed to query runs")
	}

	if len(runs) == 0 {
		fmt.Println("No runs found matching the criteria.")
		return nil
	}

	fmt.Print(history.FormatRuns(runs))
	return nil
}

// parseTimeString parses "YYYY-MM-DD HH:MM" or "YYYY-MM-DD" in local time.
func parseTimeString(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02 15:04",
		"2006-01-02",
	}

	for _, format := range formats {
		if t, err := time.ParseInLocation(format, s, time.Local); err == nil {
			return t, nil
		}
	}

	return time.Time{}, errors.Newf("unrecognized time format: %q (want YYYY-MM-DD or YYYY-MM-DD HH:MM)", s)
}
