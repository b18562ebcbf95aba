package knowledge

import (
	"context"
	"strings"
	"testing"

	"github.com/pbelyakov/planforge/pkg/ai"
	"github.com/pbelyakov/planforge/pkg/metrics"
)

// fakeProvider returns a fixed reply for every chat call.
type fakeProvider struct {
	reply string
	err   error
	calls int
}

func (f *fakeProvider) Chat(_ context.Context, _ []ai.Message, _ ai.Options) (*ai.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ai.Response{Content: f.reply, InputTokens: 100, OutputTokens: 20}, nil
}

func (f *fakeProvider) IsAvailable() bool { return true }
func (f *fakeProvider) Name() string      { return "fake" }
func (f *fakeProvider) Model() string     { return "fake-model" }

func discoveryReplies() map[string]string {
	return map[string]string{
		"text ~": "Found 3 pages:\n" +
			"- **Checkout API Contract** (AI) - [View](https://example.net/wiki/spaces/AI/pages/501/Checkout+API)\n" +
			"- **Team Meeting Notes** (AI) - [View](https://example.net/wiki/spaces/AI/pages/502/Notes)\n" +
			"- **Payment Gateway Guide** (AI) - [View](https://example.net/wiki/spaces/AI/pages/503/Gateway)\n",
		"page_id=501": pageReply("POST /checkout creates an order."),
		"page_id=503": pageReply("Gateway integration steps."),
	}
}

func existingBundle() *Bundle {
	return &Bundle{
		SpaceKey: "AI",
		FolderID: "500",
		Maturity: MaturityExisting,
		Mandatory: []Document{
			{ID: "500", Title: "Project Passport", Content: "Passport."},
		},
	}
}

func TestDiscoverSelectsAndFetches(t *testing.T) {
	docs := &fakeInvoker{replies: discoveryReplies()}
	provider := &fakeProvider{reply: `{"selected_ids": ["501", "503"]}`}
	run := metrics.NewRun("PROJ-123")

	bundle := existingBundle()
	d := NewDiscoverer(docs, provider, nil, 20)
	d.Discover(context.Background(), "Implement CheckoutService flow", bundle, run)

	if len(bundle.Discovered) != 2 {
		t.Fatalf("expected 2 discovered documents, got %d", len(bundle.Discovered))
	}
	if bundle.Discovered[0].ID != "501" || bundle.Discovered[1].ID != "503" {
		t.Errorf("unexpected ids: %+v", bundle.Discovered)
	}
	if bundle.Discovered[0].Content != "POST /checkout creates an order." {
		t.Errorf("unexpected content: %q", bundle.Discovered[0].Content)
	}
	if bundle.Selection == nil || len(bundle.Selection.SelectedIDs) != 2 {
		t.Error("selection log missing or incomplete")
	}

	attempts := run.Attempts()
	if len(attempts) != 1 || attempts[0].Purpose != metrics.PurposeSelection {
		t.Errorf("expected one document_selection attempt, got %+v", attempts)
	}
	if attempts[0].TokensIn != 100 || attempts[0].TokensOut != 20 {
		t.Errorf("token counts not recorded: %+v", attempts[0])
	}
}

func TestDiscoverSkipsNewProjects(t *testing.T) {
	for _, maturity := range []Maturity{MaturityNewProject, MaturityBrandNew} {
		t.Run(string(maturity), func(t *testing.T) {
			docs := &fakeInvoker{replies: discoveryReplies()}
			provider := &fakeProvider{reply: `{"selected_ids": ["501"]}`}

			bundle := &Bundle{SpaceKey: "AI", Maturity: maturity}
			NewDiscoverer(docs, provider, nil, 20).Discover(context.Background(), "CheckoutService", bundle, nil)

			if len(docs.calls) != 0 {
				t.Errorf("discovery must not search for %s projects", maturity)
			}
			if provider.calls != 0 {
				t.Error("discovery must not call the model for undocumented projects")
			}
		})
	}
}

func TestDiscoverIgnoresInventedIDs(t *testing.T) {
	docs := &fakeInvoker{replies: discoveryReplies()}
	provider := &fakeProvider{reply: `{"selected_ids": ["501", "999999"]}`}

	bundle := existingBundle()
	NewDiscoverer(docs, provider, nil, 20).Discover(context.Background(), "CheckoutService", bundle, nil)

	if len(bundle.Discovered) != 1 {
		t.Fatalf("invented ids must never be fetched, got %d documents", len(bundle.Discovered))
	}
	if bundle.Discovered[0].ID != "501" {
		t.Errorf("unexpected document: %+v", bundle.Discovered[0])
	}
}

func TestDiscoverExcludesMandatory(t *testing.T) {
	docs := &fakeInvoker{replies: map[string]string{
		"text ~": "Found 2 pages:\n" +
			"- **Project Passport** (AI) - [View](https://example.net/wiki/spaces/AI/pages/500/Passport)\n" +
			"- **Checkout API Contract** (AI) - [View](https://example.net/wiki/spaces/AI/pages/501/Checkout+API)\n",
		"page_id=501": pageReply("Contract."),
	}}
	provider := &fakeProvider{reply: `{"selected_ids": ["501"]}`}

	bundle := existingBundle()
	NewDiscoverer(docs, provider, nil, 20).Discover(context.Background(), "CheckoutService", bundle, nil)

	if bundle.Selection == nil {
		t.Fatal("selection log missing")
	}
	for _, c := range bundle.Selection.Candidates {
		if c.ID == "500" {
			t.Error("mandatory documents must not reach the reranker")
		}
	}
}

func TestDiscoverGarbageReplySelectsNothing(t *testing.T) {
	docs := &fakeInvoker{replies: discoveryReplies()}
	provider := &fakeProvider{reply: "I think pages 501 and 503 look relevant."}

	bundle := existingBundle()
	NewDiscoverer(docs, provider, nil, 20).Discover(context.Background(), "CheckoutService", bundle, nil)

	if len(bundle.Discovered) != 0 {
		t.Errorf("garbage replies must select nothing, got %d documents", len(bundle.Discovered))
	}
	if bundle.Selection == nil || bundle.Selection.RawResponse == "" {
		t.Error("the raw reply must be retained for the audit trail")
	}
}

func TestDiscoverModelFailureIsNonFatal(t *testing.T) {
	docs := &fakeInvoker{replies: discoveryReplies()}
	provider := &fakeProvider{err: context.DeadlineExceeded}

	bundle := existingBundle()
	NewDiscoverer(docs, provider, nil, 20).Discover(context.Background(), "CheckoutService", bundle, nil)

	if len(bundle.Discovered) != 0 {
		t.Errorf("expected no documents after a failed rerank, got %d", len(bundle.Discovered))
	}
	if bundle.Selection == nil || !strings.Contains(bundle.Selection.RawResponse, "ERROR") {
		t.Error("the failure must be visible in the selection log")
	}
}

func TestParseSelectedIDsFenced(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"bare", `{"selected_ids": ["1", "2"]}`, 2},
		{"json fence", "```json\n{\"selected_ids\": [\"1\", \"2\"]}\n```", 2},
		{"plain fence", "```\n{\"selected_ids\": [\"1\"]}\n```", 1},
		{"fence with preamble", "Here you go:\n```json\n{\"selected_ids\": []}\n```", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := parseSelectedIDs(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(ids) != tt.want {
				t.Errorf("expected %d ids, got %v", tt.want, ids)
			}
		})
	}
}

func TestParseSelectedIDsInvalid(t *testing.T) {
	if _, err := parseSelectedIDs("not json at all"); err == nil {
		t.Error("expected an error for a non-JSON reply")
	}
}

func TestHeuristicExtractor(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			"camel case and acronyms",
			"Extend the CheckoutService to call the JWT validation API",
			[]string{"CheckoutService", "JWT", "API"},
		},
		{
			"tech suffix",
			"update the payment handler and token provider wiring",
			nil, // lowercased suffix words still match case-insensitively
		},
		{
			"fallback to long words",
			"make the payment process faster please",
			[]string{"payment", "process", "faster", "please"},
		},
	}

	ex := HeuristicExtractor{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ex.Extract(tt.text)
			if len(got) > maxKeywords {
				t.Fatalf("keyword cap exceeded: %v", got)
			}
			if tt.want == nil {
				if len(got) == 0 {
					t.Error("expected at least one keyword")
				}
				return
			}
			for _, w := range tt.want {
				found := false
				for _, g := range got {
					if g == w {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("expected keyword %q in %v", w, got)
				}
			}
		})
	}
}

func TestHeuristicExtractorCap(t *testing.T) {
	got := HeuristicExtractor{}.Extract("AuthService UserService OrderService CartService PayService ShipService")
	if len(got) != maxKeywords {
		t.Errorf("expected exactly %d keywords, got %v", maxKeywords, got)
	}
}
