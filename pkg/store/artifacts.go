package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	pferrors "github.com/pbelyakov/planforge/pkg/errors"
	"github.com/pbelyakov/planforge/pkg/knowledge"
	"github.com/pbelyakov/planforge/pkg/metrics"
	"github.com/pbelyakov/planforge/pkg/plan"
)

// Artifacts writes the per-run markdown files under outputDir/<KEY>/.
type Artifacts struct {
	outputDir string
	ticketKey string
}

// NewArtifacts creates a writer for one run and its output directory.
func NewArtifacts(outputDir, ticketKey string) *Artifacts {
	return &Artifacts{outputDir: outputDir, ticketKey: ticketKey}
}

// Dir returns the run's output directory, creating it if needed.
func (a *Artifacts) Dir() (string, error) {
	dir := filepath.Join(a.outputDir, a.ticketKey)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", pferrors.NewStoreErrorWithCause("artifacts", dir, "failed to create output directory", err)
	}
	return dir, nil
}

func (a *Artifacts) write(suffix, content string) (string, error) {
	dir, err := a.Dir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, a.ticketKey+suffix)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", pferrors.NewStoreErrorWithCause("artifacts", path, "failed to write artifact", err)
	}
	return path, nil
}

// WriteContext saves the rendered context preview.
func (a *Artifacts) WriteContext(promptContext string, timestamp time.Time) (string, error) {
	content := fmt.Sprintf(`# Context for %s

Generated: %s

---

%s
`, a.ticketKey, timestamp.Format(time.RFC3339), promptContext)
	return a.write("_context.md", content)
}

// WritePrompt saves the full prompt. Written before the model call so a
// failed call still leaves the prompt inspectable.
func (a *Artifacts) WritePrompt(model string, temperature float64, maxTokens int, systemPrompt, userPrompt string) (string, error) {
	content := fmt.Sprintf(`# Model Prompt for %s

Generated: %s
Model: %s
Temperature: %g
Max Tokens: %d

---

## System Prompt

`+"```"+`
%s
`+"```"+`

---

## User Prompt

%s
`, a.ticketKey, time.Now().Format(time.RFC3339), model, temperature, maxTokens, systemPrompt, userPrompt)
	return a.write("_prompt.md", content)
}

// WriteReasoning saves the full model response with its metrics table.
func (a *Artifacts) WriteReasoning(model, finishReason, raw string, run *metrics.Run) (string, error) {
	content := fmt.Sprintf(`# Agent Reasoning for %s

Generated: %s
Model: %s
Finish Reason: %s

---

%s
`, a.ticketKey, time.Now().Format(time.RFC3339), model, finishReason, raw)

	if run != nil {
		content += "\n---\n\n" + run.Markdown()
	}

	return a.write("_reasoning.md", content)
}

// WritePlan saves the parsed response sections as the plan document.
func (a *Artifacts) WritePlan(taskSummary, model string, sections plan.Sections) (string, error) {
	missing := "[Section not found in response]"
	content := fmt.Sprintf(`# Work Plan: %s

**Task:** %s
**Generated:** %s
**Model:** %s

---

## Understanding

%s

---

## Concerns & Uncertainties

%s

---

## Analysis

%s

---

## Steps

%s

---

## Definition of Ready

%s
`, a.ticketKey, taskSummary, time.Now().Format(time.RFC3339), model,
		orMissing(sections.Understanding, missing),
		orMissing(sections.Concerns, missing),
		orMissing(sections.Analysis, missing),
		orMissing(sections.WorkPlan, missing),
		orMissing(sections.DefinitionOfReady, missing))
	return a.write("_plan.md", content)
}

// WriteSelection saves the document selection audit log, when one exists.
func (a *Artifacts) WriteSelection(log *knowledge.SelectionLog) (string, error) {
	if log == nil {
		return "", nil
	}

	content := fmt.Sprintf(`# Document Selection Log: %s

**Generated:** %s
**Model:** %s
**Tokens Used:** %d

---

%s
`, a.ticketKey, time.Now().Format(time.RFC3339), log.Model, log.TokensUsed, log.Markdown())
	return a.write("_selection.md", content)
}

func orMissing(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
