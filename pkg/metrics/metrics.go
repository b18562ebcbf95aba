// Package metrics tracks model usage across one pipeline run. Attempt
// records are append-only: once recorded they are never mutated.
package metrics

import (
	"fmt"
	"strings"
	"time"
)

// Purpose identifies why a model call was made.
type Purpose string

// Call purposes.
const (
	PurposePlanning  Purpose = "planning"
	PurposeSelection Purpose = "document_selection"
	PurposeRetry     Purpose = "retry"
)

// Attempt records one model call.
type Attempt struct {
	TokensIn  int `json:"tokens_in"`
	TokensOut int `json:"tokens_out"`

	ValidationAttempts int      `json:"validation_attempts"`
	ValidationPassed   bool     `json:"validation_passed"`
	ValidationErrors   []string `json:"validation_errors,omitempty"`

	Model         string  `json:"model"`
	Purpose       Purpose `json:"purpose"`
	AttemptNumber int     `json:"attempt_number"`

	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// TotalTokens returns the combined prompt and completion token count.
func (a Attempt) TotalTokens() int {
	return a.TokensIn + a.TokensOut
}

// Run aggregates all attempts of one pipeline run.
type Run struct {
	TicketKey     string
	MaxRetriesHit bool

	attempts []Attempt
}

// NewRun creates an empty metrics collection for a ticket.
func NewRun(ticketKey string) *Run {
	return &Run{TicketKey: ticketKey}
}

// Record appends one attempt.
func (r *Run) Record(a Attempt) {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	r.attempts = append(r.attempts, a)
}

// Attempts returns the recorded attempts in order.
func (r *Run) Attempts() []Attempt {
	return r.attempts
}

// TotalTokensIn sums prompt tokens across all attempts.
func (r *Run) TotalTokensIn() int {
	total := 0
	for _, a := range r.attempts {
		total += a.TokensIn
	}
	return total
}

// TotalTokensOut sums completion tokens across all attempts.
func (r *Run) TotalTokensOut() int {
	total := 0
	for _, a := range r.attempts {
		total += a.TokensOut
	}
	return total
}

// TotalTokens sums all tokens across all attempts.
func (r *Run) TotalTokens() int {
	return r.TotalTokensIn() + r.TotalTokensOut()
}

// RetryCount returns the number of repair calls made.
func (r *Run) RetryCount() int {
	count := 0
	for _, a := range r.attempts {
		if a.Purpose == PurposeRetry {
			count++
		}
	}
	return count
}

// ValidationFailures counts attempts that were validated and failed.
func (r *Run) ValidationFailures() int {
	count := 0
	for _, a := range r.attempts {
		if a.ValidationAttempts > 0 && !a.ValidationPassed {
			count++
		}
	}
	return count
}

// Markdown renders the run's metrics as a markdown summary with a call log
// table, suitable for the reasoning artifact.
func (r *Run) Markdown() string {
	var b strings.Builder

	maxRetries := "No"
	if r.MaxRetriesHit {
		maxRetries = "Yes"
	}

	fmt.Fprintf(&b, "## Model Usage\n\n")
	b.WriteString("| Metric | Value |\n|--------|-------|\n")
	fmt.Fprintf(&b, "| Total Tokens In | %d |\n", r.TotalTokensIn())
	fmt.Fprintf(&b, "| Total Tokens Out | %d |\n", r.TotalTokensOut())
	fmt.Fprintf(&b, "| Total Tokens | %d |\n", r.TotalTokens())
	fmt.Fprintf(&b, "| Validation Failures | %d |\n", r.ValidationFailures())
	fmt.Fprintf(&b, "| Retries Used | %d |\n", r.RetryCount())
	fmt.Fprintf(&b, "| Max Retries Hit | %s |\n", maxRetries)

	b.WriteString("\n### Call Log\n\n")
	b.WriteString("| # | Purpose | Tokens In | Tokens Out | Validation | Duration |\n")
	b.WriteString("|---|---------|-----------|------------|------------|----------|\n")

	for i, a := range r.attempts {
		validation := "N/A"
		if a.ValidationAttempts > 0 {
			if a.ValidationPassed {
				validation = "PASSED"
			} else {
				validation = "FAILED"
			}
		}
		duration := "N/A"
		if a.DurationMS > 0 {
			duration = fmt.Sprintf("%.1fs", float64(a.DurationMS)/1000)
		}
		fmt.Fprintf(&b, "| %d | %s | %d | %d | %s | %s |\n",
			i+1, a.Purpose, a.TokensIn, a.TokensOut, validation, duration)
	}

	var failed []Attempt
	for _, a := range r.attempts {
		if len(a.ValidationErrors) > 0 {
			failed = append(failed, a)
		}
	}
	if len(failed) > 0 {
		b.WriteString("\n### Validation Errors\n\n")
		for _, a := range failed {
			fmt.Fprintf(&b, "#### Attempt %d\n", a.AttemptNumber)
			for _, e := range a.ValidationErrors {
				fmt.Fprintf(&b, "- %s\n", e)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}
