package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbelyakov/planforge/pkg/ai"
	"github.com/pbelyakov/planforge/pkg/config"
	pferrors "github.com/pbelyakov/planforge/pkg/errors"
	"github.com/pbelyakov/planforge/pkg/history"
	"github.com/pbelyakov/planforge/pkg/knowledge"
	"github.com/pbelyakov/planforge/pkg/metrics"
	"github.com/pbelyakov/planforge/pkg/tracker"
)

const validPlanResponse = `### 1. Understanding

The task adds a wallet balance endpoint to the payments service.

### 2. Concerns & Uncertainties

- What is the expected cache TTL for balances?

### 3. Analysis

Straightforward API addition. Complexity: ` + "`S`" + `

### 4. Work Plan

- [ ] **Step 1:** Add wallet balance endpoint
  - **Layer:** [BE]
  - **Files:** internal/api/wallet.go
  - **Acceptance:** GET /wallet/balance returns 200 with the balance payload
  - **Depends on:** None

- [ ] **Step 2:** Write integration coverage for balance retrieval
  - **Layer:** [QA]
  - **Files:** internal/api/wallet_test.go
  - **Acceptance:** Integration suite covers the success and missing-wallet cases
  - **Depends on:** Step 1

### 5. Definition of Ready Checklist

- [x] Requirements understood
`

const invalidPlanResponse = `### 1. Understanding

Needs work.

### 2. Concerns & Uncertainties

None.

### 3. Analysis

Complexity: ` + "`S`" + `

### 4. Work Plan

- [ ] **Step 1:** Add wallet balance endpoint
  - **Layer:** [BE]
  - **Files:** internal/api/wallet.go

### 5. Definition of Ready Checklist

- [x] Requirements understood
`

const repairedPlanSection = `### 4. Work Plan

- [ ] **Step 1:** Add wallet balance endpoint
  - **Layer:** [BE]
  - **Files:** internal/api/wallet.go
  - **Acceptance:** GET /wallet/balance returns 200 with the balance payload
  - **Depends on:** None
`

type fakeTracker struct {
	ticket   *tracker.Ticket
	err      error
	comments []string
}

func (f *fakeTracker) GetTicket(ctx context.Context, key string) (*tracker.Ticket, error) {
	return f.ticket, f.err
}

func (f *fakeTracker) AddComment(ctx context.Context, key, body string) error {
	f.comments = append(f.comments, body)
	return nil
}

func (f *fakeTracker) TransitionTicket(ctx context.Context, key, status string) error {
	return nil
}

func (f *fakeTracker) CreateTicket(ctx context.Context, projectKey, issueType, summary, description string) (string, error) {
	return "", nil
}

func (f *fakeTracker) LinkTickets(ctx context.Context, fromKey, toKey, linkType string) error {
	return nil
}

type fakeDocs struct {
	reply func(operation string, args map[string]any) (string, error)
}

func (f *fakeDocs) Invoke(ctx context.Context, operation string, args map[string]any) (string, error) {
	if f.reply == nil {
		return "Found 0 pages", nil
	}
	return f.reply(operation, args)
}

type fakeProvider struct {
	replies []string
	errs    []error
	calls   int
}

func (f *fakeProvider) Chat(ctx context.Context, messages []ai.Message, opts ai.Options) (*ai.Response, error) {
	// A measurable latency so call durations land in the metrics.
	time.Sleep(time.Millisecond)

	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	reply := f.replies[len(f.replies)-1]
	if i < len(f.replies) {
		reply = f.replies[i]
	}
	return &ai.Response{Content: reply, StopReason: "stop", InputTokens: 100, OutputTokens: 50}, nil
}

func (f *fakeProvider) IsAvailable() bool { return true }
func (f *fakeProvider) Name() string      { return "fake" }
func (f *fakeProvider) Model() string     { return "fake-model" }

func testConfig(outputDir string) *config.Config {
	return &config.Config{
		Knowledge: config.KnowledgeConfig{DefaultSpace: "AI", SearchLimit: 20},
		AI:        config.AIConfig{Temperature: 0.2, MaxTokens: 4096, MaxRetries: 2},
		GitHub:    config.GitHubConfig{Enabled: false},
		Output:    config.OutputConfig{Dir: outputDir},
	}
}

func brandNewTicket() *tracker.Ticket {
	return &tracker.Ticket{
		Key:         "PROJ-1",
		Summary:     "Add wallet balance endpoint",
		Description: "Expose the wallet balance over the payments API.",
	}
}

func TestRunBrandNewProject(t *testing.T) {
	dir := t.TempDir()
	trk := &fakeTracker{ticket: brandNewTicket()}
	provider := &fakeProvider{replies: []string{validPlanResponse}}

	runs, err := history.Open(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer runs.Close()

	p := New(testConfig(dir), trk, &fakeDocs{}, provider, nil, runs)
	result, err := p.Run(t.Context(), Options{TicketKey: "PROJ-1"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeNewProject, result.Outcome)
	assert.Equal(t, 1, provider.calls, "brand new project skips document selection")
	require.NotNil(t, result.Validation)
	assert.True(t, result.Validation.Valid)
	require.NotNil(t, result.Decomposition)
	assert.Len(t, result.Decomposition.Stories, 2)
	assert.False(t, result.MaxRetriesHit)
	assert.Empty(t, trk.comments, "successful runs post no failure comment")

	require.NotNil(t, result.Context.Knowledge)
	assert.Equal(t, []string{knowledge.RolePassport, knowledge.RoleArchitecture},
		result.Context.Knowledge.MissingData, "both mandatory roles reported as gaps")
	promptContext := result.Context.PromptContext()
	assert.Contains(t, promptContext, "**Documentation gaps:**")
	assert.Contains(t, promptContext, "- "+knowledge.RolePassport)
	assert.Contains(t, promptContext, "- "+knowledge.RoleArchitecture)

	for _, a := range result.Metrics.Attempts() {
		assert.Positive(t, a.DurationMS, "attempt %d should record call duration", a.AttemptNumber)
	}

	for _, artifact := range []string{
		"PROJ-1_context_store.json",
		"PROJ-1_context.md",
		"PROJ-1_prompt.md",
		"PROJ-1_reasoning.md",
		"PROJ-1_plan.md",
	} {
		assert.FileExists(t, filepath.Join(dir, "PROJ-1", artifact))
	}

	recorded, err := runs.QueryRuns(t.Context(), history.QueryOptions{TicketKey: "PROJ-1"})
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, string(OutcomeNewProject), recorded[0].Outcome)
	assert.Equal(t, "brand_new", recorded[0].Maturity)
	assert.Equal(t, 150, recorded[0].TokensUsed)
}

func TestRunSkipGeneration(t *testing.T) {
	dir := t.TempDir()
	provider := &fakeProvider{replies: []string{validPlanResponse}}

	p := New(testConfig(dir), &fakeTracker{ticket: brandNewTicket()}, &fakeDocs{}, provider, nil, nil)
	result, err := p.Run(t.Context(), Options{TicketKey: "PROJ-1", SkipGeneration: true})
	require.NoError(t, err)

	assert.Zero(t, provider.calls, "skip-generation must not call the model")
	assert.Equal(t, OutcomeNewProject, result.Outcome)
	assert.FileExists(t, filepath.Join(dir, "PROJ-1", "PROJ-1_context.md"))
	assert.NoFileExists(t, filepath.Join(dir, "PROJ-1", "PROJ-1_plan.md"))
}

func TestRunFromSnapshotSkipsRetrieval(t *testing.T) {
	dir := t.TempDir()

	// First run builds the context and saves the snapshot.
	first := New(testConfig(dir), &fakeTracker{ticket: brandNewTicket()}, &fakeDocs{}, &fakeProvider{replies: []string{validPlanResponse}}, nil, nil)
	_, err := first.Run(t.Context(), Options{TicketKey: "PROJ-1", SkipGeneration: true})
	require.NoError(t, err)

	// Second run reuses the snapshot; tracker and docs must stay untouched.
	trk := &fakeTracker{err: pferrors.New("tracker offline")}
	docs := &fakeDocs{reply: func(operation string, args map[string]any) (string, error) {
		t.Errorf("docs should not be invoked, got %s", operation)
		return "", nil
	}}
	provider := &fakeProvider{replies: []string{validPlanResponse}}

	p := New(testConfig(dir), trk, docs, provider, nil, nil)
	result, err := p.Run(t.Context(), Options{TicketKey: "PROJ-1", FromSnapshot: true})
	require.NoError(t, err)

	assert.Equal(t, OutcomeNewProject, result.Outcome)
	assert.Equal(t, 1, provider.calls)
	require.NotNil(t, result.Context)
	require.NotNil(t, result.Context.Ticket)
	assert.Equal(t, "Add wallet balance endpoint", result.Context.Ticket.Summary)
	require.NotNil(t, result.Decomposition)
	assert.Len(t, result.Decomposition.Stories, 2)
}

func TestRunFromSnapshotFallsBackWithoutFile(t *testing.T) {
	dir := t.TempDir()
	provider := &fakeProvider{replies: []string{validPlanResponse}}

	p := New(testConfig(dir), &fakeTracker{ticket: brandNewTicket()}, &fakeDocs{}, provider, nil, nil)
	result, err := p.Run(t.Context(), Options{TicketKey: "PROJ-1", FromSnapshot: true})
	require.NoError(t, err)

	assert.Equal(t, OutcomeNewProject, result.Outcome, "missing snapshot falls back to full retrieval")
	assert.FileExists(t, filepath.Join(dir, "PROJ-1", "PROJ-1_context_store.json"))
}

func TestRunRepairLoop(t *testing.T) {
	dir := t.TempDir()
	provider := &fakeProvider{replies: []string{invalidPlanResponse, repairedPlanSection}}

	p := New(testConfig(dir), &fakeTracker{ticket: brandNewTicket()}, &fakeDocs{}, provider, nil, nil)
	result, err := p.Run(t.Context(), Options{TicketKey: "PROJ-1"})
	require.NoError(t, err)

	assert.Equal(t, 2, provider.calls)
	assert.True(t, result.Validation.Valid)
	assert.False(t, result.MaxRetriesHit)
	assert.Contains(t, result.Sections.WorkPlan, "**Acceptance:**", "repaired section replaces the plan")
	assert.Contains(t, result.Sections.Understanding, "Needs work",
		"non-plan sections carry over from the first response")

	attempts := result.Metrics.Attempts()
	require.Len(t, attempts, 2)
	assert.Equal(t, metrics.PurposePlanning, attempts[0].Purpose)
	assert.False(t, attempts[0].ValidationPassed)
	assert.Equal(t, metrics.PurposeRetry, attempts[1].Purpose)
	assert.True(t, attempts[1].ValidationPassed)
}

func TestRunRetriesExhausted(t *testing.T) {
	dir := t.TempDir()
	provider := &fakeProvider{replies: []string{invalidPlanResponse}}

	p := New(testConfig(dir), &fakeTracker{ticket: brandNewTicket()}, &fakeDocs{}, provider, nil, nil)
	result, err := p.Run(t.Context(), Options{TicketKey: "PROJ-1"})
	require.NoError(t, err)

	assert.Equal(t, 3, provider.calls, "initial attempt plus two repairs")
	assert.True(t, result.MaxRetriesHit)
	assert.False(t, result.Validation.Valid)
	assert.Equal(t, 2, result.Metrics.RetryCount())
}

func TestRunInitialModelFailureAborts(t *testing.T) {
	dir := t.TempDir()
	trk := &fakeTracker{ticket: brandNewTicket()}
	provider := &fakeProvider{errs: []error{pferrors.New("model down")}, replies: []string{validPlanResponse}}

	p := New(testConfig(dir), trk, &fakeDocs{}, provider, nil, nil)
	result, err := p.Run(t.Context(), Options{TicketKey: "PROJ-1"})

	require.Error(t, err)
	assert.Equal(t, OutcomeExecutionError, result.Outcome)
	require.Len(t, trk.comments, 1)
	assert.Contains(t, trk.comments[0], "Execution Error")
}

func TestRunRepairModelFailureDegrades(t *testing.T) {
	dir := t.TempDir()
	provider := &fakeProvider{
		replies: []string{invalidPlanResponse},
		errs:    []error{nil, pferrors.New("model down")},
	}

	p := New(testConfig(dir), &fakeTracker{ticket: brandNewTicket()}, &fakeDocs{}, provider, nil, nil)
	result, err := p.Run(t.Context(), Options{TicketKey: "PROJ-1"})
	require.NoError(t, err, "a failed repair degrades instead of aborting")

	assert.True(t, result.MaxRetriesHit)
	assert.False(t, result.Validation.Valid)
	assert.Contains(t, result.Sections.Understanding, "Needs work")
}

func TestRunLocationErrorPostsComment(t *testing.T) {
	dir := t.TempDir()
	ticket := brandNewTicket()
	ticket.ProjectFolder = "Ghost Project"
	trk := &fakeTracker{ticket: ticket}
	provider := &fakeProvider{replies: []string{validPlanResponse}}

	p := New(testConfig(dir), trk, &fakeDocs{}, provider, nil, nil)
	result, err := p.Run(t.Context(), Options{TicketKey: "PROJ-1"})

	require.Error(t, err)
	assert.Equal(t, OutcomeContextError, result.Outcome)
	assert.Zero(t, provider.calls)
	require.Len(t, trk.comments, 1)
	assert.Contains(t, trk.comments[0], "Context Location Error")
}

func TestRunTicketFetchFails(t *testing.T) {
	dir := t.TempDir()
	trk := &fakeTracker{err: pferrors.New("tracker unreachable")}

	p := New(testConfig(dir), trk, &fakeDocs{}, &fakeProvider{replies: []string{validPlanResponse}}, nil, nil)
	result, err := p.Run(t.Context(), Options{TicketKey: "PROJ-1"})

	require.Error(t, err)
	assert.Equal(t, OutcomeExecutionError, result.Outcome)
	assert.Empty(t, trk.comments, "no ticket to comment on")
}

func TestRunExistingProject(t *testing.T) {
	dir := t.TempDir()
	ticket := brandNewTicket()
	ticket.ProjectLocator = "https://docs.example.com/spaces/WEB3/folder/123456"
	trk := &fakeTracker{ticket: ticket}
	provider := &fakeProvider{replies: []string{validPlanResponse}}

	docs := &fakeDocs{reply: func(operation string, args map[string]any) (string, error) {
		if operation == "confluence_get_page" {
			return "# Page\n\n## Content\n\nDocument body.", nil
		}
		cql, _ := args["cql"].(string)
		switch {
		case strings.Contains(cql, `title ~ "Project Passport"`):
			return "Found 1 pages:\n- **Project Passport** (WEB3) - [View](https://docs.example.com/pages/500)", nil
		case strings.Contains(cql, `title ~ "Logical Architecture"`):
			return "Found 1 pages:\n- **Logical Architecture** (WEB3) - [View](https://docs.example.com/pages/501)", nil
		default:
			return "Found 0 pages", nil
		}
	}}

	p := New(testConfig(dir), trk, docs, provider, nil, nil)
	result, err := p.Run(t.Context(), Options{TicketKey: "PROJ-1"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeSuccess, result.Outcome)
	require.NotNil(t, result.Context.Knowledge)
	assert.Len(t, result.Context.Knowledge.Mandatory, 2)

	context, err := os.ReadFile(filepath.Join(dir, "PROJ-1", "PROJ-1_context.md"))
	require.NoError(t, err)
	assert.Contains(t, string(context), "Project Passport")

	// Existing docs raise per-story confidence through the docs signal.
	require.NotNil(t, result.Decomposition)
	for _, story := range result.Decomposition.Stories {
		assert.Greater(t, story.Confidence, 0.5)
	}
}
