// Package pipeline sequences the planning stages for one ticket: context
// retrieval, plan generation with validation-driven repair, decomposition,
// and outcome handling.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/pbelyakov/planforge/pkg/ai"
	"github.com/pbelyakov/planforge/pkg/config"
	"github.com/pbelyakov/planforge/pkg/github"
	"github.com/pbelyakov/planforge/pkg/history"
	"github.com/pbelyakov/planforge/pkg/knowledge"
	"github.com/pbelyakov/planforge/pkg/metrics"
	"github.com/pbelyakov/planforge/pkg/plan"
	"github.com/pbelyakov/planforge/pkg/prompt"
	"github.com/pbelyakov/planforge/pkg/store"
	"github.com/pbelyakov/planforge/pkg/taskctx"
	"github.com/pbelyakov/planforge/pkg/tracker"
	"github.com/pbelyakov/planforge/pkg/transport"
)

// Options control one pipeline run.
type Options struct {
	TicketKey      string
	SkipGeneration bool   // Stop after context aggregation
	FromSnapshot   bool   // Reuse a saved context snapshot, skipping retrieval
	OutputDir      string // Overrides the configured output directory
}

// Result is the aggregate outcome of one run.
type Result struct {
	Outcome       Outcome
	Context       *taskctx.Context
	Sections      plan.Sections
	Validation    *plan.Result
	Decomposition *plan.Decomposition
	MaxRetriesHit bool
	Metrics       *metrics.Run
	OutputDir     string
}

// Pipeline wires the stages together. All collaborators are injected so
// tests can substitute fakes.
type Pipeline struct {
	cfg      *config.Config
	tracker  tracker.Service
	docs     transport.Invoker
	provider ai.Provider
	ghClient *github.Client
	runs     *history.Store
	logger   *slog.Logger
}

// New creates a pipeline. ghClient and runs may be nil; the corresponding
// stages then degrade or are skipped.
func New(cfg *config.Config, trackerSvc tracker.Service, docs transport.Invoker, provider ai.Provider, ghClient *github.Client, runs *history.Store) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		tracker:  trackerSvc,
		docs:     docs,
		provider: provider,
		ghClient: ghClient,
		runs:     runs,
		logger:   slog.Default(),
	}
}

// Run executes the full pipeline for one ticket. The returned error is
// non-nil only for unrecoverable failures; partial context problems are
// reported through the Result's outcome.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	key, err := tracker.ParseTicketKey(opts.TicketKey)
	if err != nil {
		return nil, err
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = p.cfg.Output.Dir
	}

	run := metrics.NewRun(key)
	started := time.Now()
	result := &Result{Metrics: run, OutputDir: outputDir}

	var taskContext *taskctx.Context
	if opts.FromSnapshot {
		taskContext, err = store.LoadSnapshot(key, outputDir)
		if err != nil {
			p.finish(ctx, result, started, err)
			return result, err
		}
		if taskContext != nil {
			p.logger.Info("reusing context snapshot, skipping retrieval", "ticket", key)
		}
	}

	if taskContext == nil {
		taskContext, err = p.buildContext(ctx, key, run)
		if err != nil {
			result.Context = taskContext
			p.finish(ctx, result, started, err)
			return result, err
		}

		if _, err := store.SaveSnapshot(taskContext, outputDir); err != nil {
			p.logger.Warn("snapshot save failed", "error", err)
			taskContext.Errors = append(taskContext.Errors, "snapshot save failed: "+err.Error())
		}
	}
	result.Context = taskContext

	artifacts := store.NewArtifacts(outputDir, key)
	promptContext := taskContext.PromptContext()
	if _, err := artifacts.WriteContext(promptContext, taskContext.Timestamp); err != nil {
		p.logger.Warn("context artifact write failed", "error", err)
	}

	if opts.SkipGeneration {
		p.logger.Info("skipping generation", "ticket", key)
		p.finish(ctx, result, started, nil)
		return result, nil
	}

	raw, stopReason, genErr := p.generate(ctx, key, promptContext, artifacts, run, result)
	if genErr != nil {
		p.finish(ctx, result, started, genErr)
		return result, genErr
	}

	signals := p.signals(taskContext)
	result.Decomposition = plan.Decompose(result.Sections, signals)

	if _, err := artifacts.WriteReasoning(p.provider.Model(), stopReason, raw, run); err != nil {
		p.logger.Warn("reasoning artifact write failed", "error", err)
	}
	taskSummary := ""
	if taskContext.Ticket != nil {
		taskSummary = taskContext.Ticket.Summary
	}
	if _, err := artifacts.WritePlan(taskSummary, p.provider.Model(), result.Sections); err != nil {
		p.logger.Warn("plan artifact write failed", "error", err)
	}
	if taskContext.Knowledge != nil {
		if _, err := artifacts.WriteSelection(taskContext.Knowledge.Selection); err != nil {
			p.logger.Warn("selection artifact write failed", "error", err)
		}
	}

	p.finish(ctx, result, started, nil)
	return result, nil
}

// buildContext runs the retrieval stages and aggregates their output.
// The returned error is fatal; partial failures land in the context's
// error list instead.
func (p *Pipeline) buildContext(ctx context.Context, key string, run *metrics.Run) (*taskctx.Context, error) {
	taskContext := taskctx.New(key)

	ticket, err := p.tracker.GetTicket(ctx, key)
	if err != nil {
		return taskContext, err
	}
	taskContext.Ticket = ticket

	space := tracker.DeriveSpaceKey(ticket)
	if space == "" {
		space = p.cfg.Knowledge.DefaultSpace
	}

	resolver := knowledge.NewResolver(p.docs)
	loc, err := resolver.Resolve(ctx, space, ticket.ProjectLocator, ticket.ProjectFolder)
	if err != nil {
		return taskContext, err
	}

	bundle := &knowledge.Bundle{
		SpaceKey: loc.SpaceKey,
		FolderID: loc.FolderID,
		Maturity: loc.Maturity,
	}
	taskContext.Knowledge = bundle

	roles, err := knowledge.LoadRoles(p.cfg.Knowledge.RolesFile)
	if err != nil {
		return taskContext, err
	}
	if loc.Maturity == knowledge.MaturityBrandNew {
		// No folder to search; every mandatory role is a documentation gap.
		for _, role := range roles {
			bundle.MissingData = append(bundle.MissingData, role.Name)
		}
	} else {
		knowledge.NewFetcher(p.docs, roles).FetchMandatory(ctx, loc, bundle)
	}

	discoverer := knowledge.NewDiscoverer(p.docs, p.provider, nil, p.cfg.Knowledge.SearchLimit)
	discoverer.Discover(ctx, ticket.FullText(), bundle, run)

	if p.cfg.GitHub.Enabled {
		fetcher := github.NewFetcher(p.ghClient)
		taskContext.GitHub = fetcher.BuildContext(ctx, ticket.FullText(), passportText(bundle))
	}

	taskContext.Errors = append(taskContext.Errors, bundle.RetrievalErrors...)
	if taskContext.GitHub != nil {
		taskContext.Errors = append(taskContext.Errors, taskContext.GitHub.RetrievalErrors...)
	}

	return taskContext, nil
}

// generate calls the model and drives the validate-repair loop. Returns the
// first response's raw text for the reasoning artifact.
func (p *Pipeline) generate(ctx context.Context, key, promptContext string, artifacts *store.Artifacts, run *metrics.Run, result *Result) (raw, stopReason string, err error) {
	userPrompt := prompt.BuildUserPrompt(promptContext)
	aiOpts := ai.Options{
		Temperature: p.cfg.AI.Temperature,
		MaxTokens:   p.cfg.AI.MaxTokens,
	}

	if _, err := artifacts.WritePrompt(p.provider.Model(), aiOpts.Temperature, aiOpts.MaxTokens, prompt.SystemPrompt, userPrompt); err != nil {
		p.logger.Warn("prompt artifact write failed", "error", err)
	}

	state := plan.NewRetryState(p.cfg.AI.MaxRetries)

	callStart := time.Now()
	resp, callErr := p.chat(ctx, prompt.SystemPrompt, userPrompt)
	if callErr != nil {
		p.recordFailure(run, metrics.PurposePlanning, state.Attempt, callErr, time.Since(callStart))
		return "", "", callErr
	}

	raw = resp.Content
	stopReason = resp.StopReason
	result.Sections = plan.ParseSections(raw)
	result.Validation = plan.ValidateWorkPlan(result.Sections.WorkPlan)
	p.record(run, resp, metrics.PurposePlanning, state.Attempt, result.Validation, time.Since(callStart))

	for {
		switch plan.Next(state, result.Validation) {
		case plan.ActionDone:
			return raw, stopReason, nil

		case plan.ActionGiveUp:
			p.logger.Warn("validation retries exhausted, proceeding with last plan",
				"ticket", key, "errors", result.Validation.Errors)
			result.MaxRetriesHit = true
			run.MaxRetriesHit = true
			return raw, stopReason, nil

		case plan.ActionRepair:
			state = state.Advance()
			p.logger.Info("repairing plan", "ticket", key, "attempt", state.Attempt,
				"errors", len(result.Validation.Errors))

			repairPrompt := prompt.BuildRepairPrompt(result.Validation.Errors, result.Sections.WorkPlan)
			repairStart := time.Now()
			repairResp, repairErr := p.chat(ctx, prompt.SystemPrompt, repairPrompt)
			if repairErr != nil {
				// A failed repair keeps the pre-repair content.
				p.logger.Warn("repair call failed, keeping previous plan", "error", repairErr)
				p.recordFailure(run, metrics.PurposeRetry, state.Attempt, repairErr, time.Since(repairStart))
				result.MaxRetriesHit = true
				run.MaxRetriesHit = true
				return raw, stopReason, nil
			}

			result.Sections.WorkPlan = plan.ExtractWorkPlan(repairResp.Content)
			result.Validation = plan.ValidateWorkPlan(result.Sections.WorkPlan)
			p.record(run, repairResp, metrics.PurposeRetry, state.Attempt, result.Validation, time.Since(repairStart))
		}
	}
}

func (p *Pipeline) chat(ctx context.Context, systemPrompt, userPrompt string) (*ai.Response, error) {
	return p.provider.Chat(ctx, []ai.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}, ai.Options{
		Temperature: p.cfg.AI.Temperature,
		MaxTokens:   p.cfg.AI.MaxTokens,
	})
}

// record appends one immutable attempt to the run metrics, carrying the
// validation result of the returned plan and the call's wall-clock duration.
func (p *Pipeline) record(run *metrics.Run, resp *ai.Response, purpose metrics.Purpose, attempt int, validation *plan.Result, elapsed time.Duration) {
	run.Record(metrics.Attempt{
		TokensIn:           resp.InputTokens,
		TokensOut:          resp.OutputTokens,
		ValidationAttempts: attempt,
		ValidationPassed:   validation.Valid,
		ValidationErrors:   validation.Errors,
		Model:              p.provider.Model(),
		Purpose:            purpose,
		AttemptNumber:      attempt,
		DurationMS:         elapsed.Milliseconds(),
	})
}

// recordFailure records an attempt whose model call never returned.
func (p *Pipeline) recordFailure(run *metrics.Run, purpose metrics.Purpose, attempt int, callErr error, elapsed time.Duration) {
	run.Record(metrics.Attempt{
		ValidationErrors: []string{callErr.Error()},
		Model:            p.provider.Model(),
		Purpose:          purpose,
		AttemptNumber:    attempt,
		DurationMS:       elapsed.Milliseconds(),
	})
}

// signals derives the confidence inputs from the assembled context.
func (p *Pipeline) signals(c *taskctx.Context) plan.Signals {
	s := plan.Signals{}
	if c.Knowledge != nil {
		s.DocsPresent = c.Knowledge.HasDocuments()
	}
	if c.GitHub.Available() && c.GitHub.Structure != nil {
		s.RepoAvailable = true
		s.RepoTree = c.GitHub.Structure.Tree
	}
	return s
}

// finish classifies the outcome, posts a failure comment when warranted, and
// records the run in history. Best-effort throughout.
func (p *Pipeline) finish(ctx context.Context, result *Result, started time.Time, runErr error) {
	outcome, issues := DetermineOutcome(result.Context, runErr)
	result.Outcome = outcome

	p.logger.Info("run finished",
		"outcome", outcome,
		"issues", len(issues),
		"tokens", result.Metrics.TotalTokens(),
		"duration", time.Since(started).Round(time.Millisecond))

	if outcome.Failed() && result.Context != nil && result.Context.Ticket != nil {
		comment := BuildFailureComment(outcome, issues, result.Context.Ticket.Summary)
		if err := p.tracker.AddComment(ctx, result.Context.Ticket.Key, comment); err != nil {
			p.logger.Warn("failed to post failure comment", "error", err)
		}
	}

	if p.runs != nil {
		rec := &history.Run{
			TicketKey:  result.Metrics.TicketKey,
			Outcome:    string(outcome),
			TokensUsed: result.Metrics.TotalTokens(),
			Duration:   time.Since(started),
			OutputDir:  result.OutputDir,
		}
		if result.Context != nil && result.Context.Knowledge != nil {
			rec.Maturity = string(result.Context.Knowledge.Maturity)
		}
		if result.Decomposition != nil {
			rec.Confidence = result.Decomposition.OverallConfidence
		}
		if err := p.runs.RecordRun(ctx, rec); err != nil {
			p.logger.Warn("failed to record run history", "error", err)
		}
	}
}

// passportText returns the first mandatory document's content, used for
// repository URL discovery.
func passportText(bundle *knowledge.Bundle) string {
	if bundle == nil || len(bundle.Mandatory) == 0 {
		return ""
	}
	return bundle.Mandatory[0].Content
}
