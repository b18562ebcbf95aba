package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/pbelyakov/planforge/pkg/ai"
	pferrors "github.com/pbelyakov/planforge/pkg/errors"
	"github.com/pbelyakov/planforge/pkg/github"
	"github.com/pbelyakov/planforge/pkg/history"
	"github.com/pbelyakov/planforge/pkg/pipeline"
	"github.com/pbelyakov/planforge/pkg/tracker"
	"github.com/pbelyakov/planforge/pkg/transport"
)

var (
	runTask           string
	runSkipGeneration bool
	runFromSnapshot   bool
	runOutputDir      string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate a work plan for a ticket",
	Long: `Run the full planning pipeline for one ticket.

The pipeline fetches the ticket, resolves its documentation space, gathers
mandatory and discovered documents, optionally inspects the linked GitHub
repository, then generates, validates and decomposes a work plan. Artifacts
are written to the output directory and the run is recorded in history.

Examples:
  planforge run --task PROJ-123
  planforge run -t PROJ-123 --skip-generation
  planforge run -t PROJ-123 --from-snapshot
  planforge run -t PROJ-123 -o /tmp/planforge-out`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRunCommand(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runTask, "task", "t", "", "Ticket key or URL to plan (required)")
	runCmd.Flags().BoolVarP(&runSkipGeneration, "skip-generation", "d", false, "Stop after context aggregation, skip the model call")
	runCmd.Flags().BoolVar(&runFromSnapshot, "from-snapshot", false, "Reuse the saved context snapshot instead of re-fetching")
	runCmd.Flags().StringVarP(&runOutputDir, "output-dir", "o", "", "Directory for run artifacts (default from config)")
	_ = runCmd.MarkFlagRequired("task")
}

func runRunCommand(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Inject a keychain-stored tracker token unless the environment or the
	// config already provides one.
	if os.Getenv(trackerTokenEnv) == "" {
		if _, ok := cfg.Tracker.Env[trackerTokenEnv]; !ok {
			if token := storedTrackerToken(); token != "" {
				if cfg.Tracker.Env == nil {
					cfg.Tracker.Env = map[string]string{}
				}
				cfg.Tracker.Env[trackerTokenEnv] = token
			}
		}
	}

	manager, err := transport.NewManager(cfg, GetVersion(), verbose)
	if err != nil {
		fmt.Println(pferrors.FormatUserError(err))
		return errors.Wrap(err, "failed to start tool servers")
	}
	defer func() { _ = manager.Close() }()

	provider, err := ai.NewProvider(&cfg.AI, verbose)
	if err != nil {
		fmt.Println(pferrors.FormatUserError(err))
		return errors.Wrap(err, "failed to initialize AI provider")
	}

	var ghClient *github.Client
	if cfg.GitHub.Enabled {
		ghClient, err = github.NewClient(&cfg.GitHub, verbose)
		if err != nil {
			// Repository context is optional; the run proceeds without it.
			fmt.Fprintf(os.Stderr, "Warning: GitHub unavailable: %v\n", err)
			ghClient = nil
		}
	}

	var runs *history.Store
	if cfg.History.DatabasePath != "" {
		runs, err = history.Open(cfg.History.DatabasePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: history unavailable: %v\n", err)
			runs = nil
		} else {
			defer func() { _ = runs.Close() }()
		}
	}

	p := pipeline.New(cfg, tracker.NewClient(manager.Tracker()), manager.Docs(), provider, ghClient, runs)

	result, err := p.Run(ctx, pipeline.Options{
		TicketKey:      runTask,
		SkipGeneration: runSkipGeneration,
		FromSnapshot:   runFromSnapshot,
		OutputDir:      runOutputDir,
	})

	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "Interrupted.")
		os.Exit(130)
	}
	if err != nil {
		fmt.Println(pferrors.FormatUserError(err))
		if result != nil {
			printRunSummary(result)
		}
		return err
	}

	printRunSummary(result)

	if result.Outcome.Failed() {
		os.Exit(1)
	}
	return nil
}

func printRunSummary(result *pipeline.Result) {
	fmt.Printf("Outcome: %s\n", result.Outcome)
	if result.Decomposition != nil {
		fmt.Printf("Stories: %d (overall confidence %.2f)\n",
			len(result.Decomposition.Stories), result.Decomposition.OverallConfidence)
	}
	if result.MaxRetriesHit {
		fmt.Println("Plan validation did not converge; the last attempt was kept.")
	}
	if result.Metrics != nil && result.Metrics.TotalTokens() > 0 {
		fmt.Printf("Tokens: %d in, %d out\n",
			result.Metrics.TotalTokensIn(), result.Metrics.TotalTokensOut())
	}
	if result.OutputDir != "" {
		fmt.Printf("Artifacts: %s\n", result.OutputDir)
	}
}
