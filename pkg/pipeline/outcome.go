package pipeline

import (
	"fmt"
	"strings"

	pferrors "github.com/pbelyakov/planforge/pkg/errors"
	"github.com/pbelyakov/planforge/pkg/taskctx"
)

// Outcome classifies how a run ended.
type Outcome string

// Run outcomes.
const (
	// OutcomeSuccess: a plan was generated from sufficient context.
	OutcomeSuccess Outcome = "SUCCESS"
	// OutcomeContextError: the required project context could not be located
	// or assembled.
	OutcomeContextError Outcome = "CONTEXT_ERROR"
	// OutcomeNewProject: a plan was generated, but the project lacks its
	// documentation; the plan includes steps to create it.
	OutcomeNewProject Outcome = "NEW_PROJECT"
	// OutcomeExecutionError: the pipeline itself failed.
	OutcomeExecutionError Outcome = "EXECUTION_ERROR"
)

// Failed reports whether the outcome warrants a failure comment on the
// ticket.
func (o Outcome) Failed() bool {
	return o == OutcomeContextError || o == OutcomeExecutionError
}

// DetermineOutcome classifies a finished (or aborted) run from the assembled
// context and any terminal error, returning the outcome and the issue list
// that feeds the ticket comment.
func DetermineOutcome(c *taskctx.Context, runErr error) (Outcome, []string) {
	var issues []string

	if runErr != nil {
		var locErr *pferrors.LocationError
		if pferrors.As(runErr, &locErr) {
			issues = append(issues, runErr.Error())
			return OutcomeContextError, issues
		}
		issues = append(issues, "Execution error: "+runErr.Error())
		return OutcomeExecutionError, issues
	}

	if c == nil {
		return OutcomeExecutionError, []string{"No task context available"}
	}

	docsMissing := false
	if c.Knowledge != nil {
		if c.Knowledge.Maturity.DocumentationMissing() {
			docsMissing = true
		}
		for _, role := range c.Knowledge.MissingData {
			issues = append(issues, "Missing mandatory document: "+role)
		}
	}
	issues = append(issues, c.Errors...)

	if !c.Valid() {
		return OutcomeContextError, issues
	}
	if docsMissing {
		return OutcomeNewProject, issues
	}
	return OutcomeSuccess, issues
}

// BuildFailureComment renders the markdown comment posted to the ticket when
// a run cannot produce a plan.
func BuildFailureComment(outcome Outcome, issues []string, taskSummary string) string {
	var lines []string

	lines = append(lines, "## Plan Generator - Context Insufficient", "")

	if taskSummary != "" {
		lines = append(lines, fmt.Sprintf("**Task:** %s", taskSummary), "")
	}

	switch outcome {
	case OutcomeContextError:
		lines = append(lines,
			"### Context Location Error",
			"",
			"The system could not locate the required project context.",
			"",
			"**Issues:**")
	default:
		lines = append(lines,
			"### Execution Error",
			"",
			"An error occurred during plan generation.",
			"",
			"**Errors:**")
	}

	for _, issue := range issues {
		lines = append(lines, "- "+issue)
	}

	lines = append(lines, "", "### Required Actions", "")

	switch outcome {
	case OutcomeContextError:
		lines = append(lines,
			"1. Verify the project field on the ticket is set correctly",
			"2. Ensure the project folder exists in the knowledge base",
			"3. Check that the documentation space key matches the project key",
			"4. Re-queue this task when ready")
	default:
		lines = append(lines,
			"1. Review the error details above",
			"2. Fix any configuration or access issues",
			"3. Re-queue this task when ready")
	}

	lines = append(lines, "", "---", "*Task returned for refinement.*")

	return strings.Join(lines, "\n")
}
