package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/pbelyakov/planforge/pkg/ai"
	"github.com/pbelyakov/planforge/pkg/metrics"
	"github.com/pbelyakov/planforge/pkg/transport"
)

// selectionSystemPrompt states the reranker's persona and selection policy.
const selectionSystemPrompt = `You are a Chief Technical Officer responsible for selecting relevant technical documentation for a development task.

## Your Role
Select ONLY documents that provide implementation details, API contracts, architectural constraints, or integration requirements directly relevant to the task.

## Selection Criteria
- SELECT: API specs, integration guides, architecture decisions, contract definitions
- REJECT: General overviews, meeting notes, status updates, unrelated modules

## Output Format
Return a JSON object with selected page IDs:
{
  "selected_ids": ["page_id_1", "page_id_2", "page_id_3"]
}

If no documents are relevant, return: {"selected_ids": []}`

// Rerank call limits. Selection replies are a short JSON object, so the
// token cap stays small.
const (
	selectionTemperature = 0.1
	selectionMaxTokens   = 256
	maxExcerptLen        = 500
	maxKeywords          = 5

	defaultSearchLimit = 20
)

// KeywordExtractor derives a bounded keyword set from ticket text for the
// broad discovery search. The extraction strategy is replaceable; precision
// targets are deliberately unspecified.
type KeywordExtractor interface {
	Extract(text string) []string
}

// HeuristicExtractor is the default keyword strategy: CamelCase terms,
// acronyms, and words carrying a known technical suffix, falling back to the
// longest plain words when the text has no structured terms.
type HeuristicExtractor struct{}

var (
	camelCaseTerm = regexp.MustCompile(`\b[A-Z][a-z]+(?:[A-Z][a-z]+)+\b`)
	acronymTerm   = regexp.MustCompile(`\b[A-Z]{2,}\b`)
	suffixTerm    = regexp.MustCompile(`(?i)\b\w+(?:API|Service|Module|Handler|Client|Provider)\b`)
	plainWord     = regexp.MustCompile(`^[A-Za-z]+$`)
)

// Extract returns up to five deduplicated keywords.
func (HeuristicExtractor) Extract(text string) []string {
	var terms []string
	terms = append(terms, camelCaseTerm.FindAllString(text, -1)...)
	terms = append(terms, acronymTerm.FindAllString(text, -1)...)
	terms = append(terms, suffixTerm.FindAllString(text, -1)...)

	seen := make(map[string]bool)
	var unique []string
	for _, term := range terms {
		if !seen[term] {
			seen[term] = true
			unique = append(unique, term)
		}
		if len(unique) == maxKeywords {
			return unique
		}
	}

	if len(unique) > 0 {
		return unique
	}

	// Fallback: the longest-looking plain words.
	for _, word := range strings.Fields(text) {
		if len(word) > 4 && plainWord.MatchString(word) && !seen[word] {
			seen[word] = true
			unique = append(unique, word)
		}
		if len(unique) == maxKeywords {
			break
		}
	}

	return unique
}

// Discoverer finds documents relevant to a specific ticket beyond the
// mandatory set: a broad keyword search narrowed by a model rerank pass.
type Discoverer struct {
	docs      transport.Invoker
	provider  ai.Provider
	extractor KeywordExtractor
	limit     int
	logger    *slog.Logger
}

// NewDiscoverer creates a discoverer. A nil extractor selects the heuristic
// default; a non-positive limit selects the default search bound.
func NewDiscoverer(docs transport.Invoker, provider ai.Provider, extractor KeywordExtractor, limit int) *Discoverer {
	if extractor == nil {
		extractor = HeuristicExtractor{}
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return &Discoverer{
		docs:      docs,
		provider:  provider,
		extractor: extractor,
		limit:     limit,
		logger:    slog.Default(),
	}
}

// Discover runs the two-pass strategy and appends accepted documents to the
// bundle's discovered collection. Skipped entirely for new and brand-new
// projects. Discovery never fails the run: every failure mode degrades to
// fewer (or zero) extra documents, recorded in the bundle's warnings.
func (d *Discoverer) Discover(ctx context.Context, ticketText string, bundle *Bundle, run *metrics.Run) {
	if bundle.Maturity == MaturityNewProject || bundle.Maturity == MaturityBrandNew {
		d.logger.Info("discovery skipped", "maturity", bundle.Maturity)
		return
	}

	keywords := d.extractor.Extract(ticketText)
	if len(keywords) == 0 {
		d.logger.Info("discovery skipped, no keywords extracted")
		return
	}

	candidates := d.searchCandidates(ctx, keywords, bundle)
	if len(candidates) == 0 {
		d.logger.Info("discovery found no candidates")
		return
	}

	log := d.rerank(ctx, ticketText, candidates, run)
	bundle.Selection = log

	byID := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	for _, id := range log.SelectedIDs {
		candidate, ok := byID[id]
		if !ok {
			// The model invented an id that was never offered. Ignore it.
			d.logger.Warn("rerank selected an unknown id, ignoring", "id", id)
			continue
		}

		pageReply, err := d.docs.Invoke(ctx, "confluence_get_page", map[string]any{
			"page_id": id,
		})
		if err != nil {
			d.logger.Warn("failed to fetch selected document", "id", id, "error", err)
			bundle.RetrievalErrors = append(bundle.RetrievalErrors,
				fmt.Sprintf("fetch of selected document %q failed: %v", candidate.Title, err))
			continue
		}

		bundle.Discovered = append(bundle.Discovered, Document{
			ID:      id,
			Title:   candidate.Title,
			URL:     candidate.URL,
			Content: extractPageText(pageReply),
		})
	}

	d.logger.Info("discovery complete",
		"candidates", len(candidates),
		"selected", len(log.SelectedIDs),
		"fetched", len(bundle.Discovered))
}

// searchCandidates runs the broad OR-joined keyword search under the folder
// and drops candidates already held by the mandatory collection.
func (d *Discoverer) searchCandidates(ctx context.Context, keywords []string, bundle *Bundle) []Candidate {
	expr := strings.Join(keywords, " OR ")
	cql := fmt.Sprintf("ancestor = %s AND (text ~ %q)", bundle.FolderID, expr)

	reply, err := d.docs.Invoke(ctx, "confluence_search_pages", map[string]any{
		"cql":   cql,
		"limit": d.limit,
	})
	if err != nil {
		d.logger.Warn("discovery search failed", "error", err)
		bundle.RetrievalErrors = append(bundle.RetrievalErrors,
			fmt.Sprintf("discovery search failed: %v", err))
		return nil
	}
	if isEmptySearch(reply) {
		return nil
	}

	mandatory := bundle.mandatoryIDs()
	var candidates []Candidate
	for _, c := range parseSearchResults(reply) {
		if mandatory[c.ID] {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates
}

// rerank asks the model to pick relevant candidates. The returned log is
// complete even on failure: a rerank that errors or replies with garbage
// selects nothing rather than failing the run.
func (d *Discoverer) rerank(ctx context.Context, ticketText string, candidates []Candidate, run *metrics.Run) *SelectionLog {
	userPrompt := buildSelectionPrompt(ticketText, candidates)

	log := &SelectionLog{
		SystemPrompt: selectionSystemPrompt,
		UserPrompt:   userPrompt,
		Candidates:   candidates,
		Model:        d.provider.Model(),
	}

	start := time.Now()
	resp, err := d.provider.Chat(ctx, []ai.Message{
		{Role: "system", Content: selectionSystemPrompt},
		{Role: "user", Content: userPrompt},
	}, ai.Options{Temperature: selectionTemperature, MaxTokens: selectionMaxTokens})

	if run != nil {
		attempt := metrics.Attempt{
			Model:         d.provider.Model(),
			Purpose:       metrics.PurposeSelection,
			AttemptNumber: 1,
			DurationMS:    time.Since(start).Milliseconds(),
		}
		if resp != nil {
			attempt.TokensIn = resp.InputTokens
			attempt.TokensOut = resp.OutputTokens
		}
		run.Record(attempt)
	}

	if err != nil {
		d.logger.Warn("rerank call failed", "error", err)
		log.RawResponse = fmt.Sprintf("[ERROR: model call failed - %v]", err)
		return log
	}

	log.RawResponse = resp.Content
	log.TokensUsed = resp.TotalTokens()

	ids, err := parseSelectedIDs(resp.Content)
	if err != nil {
		d.logger.Warn("rerank reply is not valid JSON, selecting nothing", "error", err)
		log.RawResponse += fmt.Sprintf("\n\n[ERROR: invalid JSON - %v]", err)
		return log
	}

	log.SelectedIDs = ids
	return log
}

// buildSelectionPrompt lists the task text and all candidates with truncated
// excerpts.
func buildSelectionPrompt(ticketText string, candidates []Candidate) string {
	var lines []string
	for _, c := range candidates {
		excerpt := strings.TrimSpace(strings.ReplaceAll(c.Excerpt, "\n", " "))
		if len(excerpt) > maxExcerptLen {
			excerpt = excerpt[:maxExcerptLen]
		}
		if excerpt == "" {
			excerpt = "[No excerpt]"
		}
		lines = append(lines, fmt.Sprintf("- ID: `%s` | Title: %s\n  Excerpt: %s", c.ID, c.Title, excerpt))
	}

	return fmt.Sprintf(`## Task

%s

---

## Candidates (%d pages)

%s

---

Select relevant page IDs. Return JSON only.`, ticketText, len(candidates), strings.Join(lines, "\n"))
}

// parseSelectedIDs decodes a selection reply, stripping markdown code-fence
// wrappers first so a fenced reply decodes the same as a bare one.
func parseSelectedIDs(raw string) ([]string, error) {
	payload := raw
	if idx := strings.Index(payload, "```json"); idx >= 0 {
		payload = payload[idx+len("```json"):]
		if end := strings.Index(payload, "```"); end >= 0 {
			payload = payload[:end]
		}
	} else if idx := strings.Index(payload, "```"); idx >= 0 {
		payload = payload[idx+len("```"):]
		if end := strings.Index(payload, "```"); end >= 0 {
			payload = payload[:end]
		}
	}

	var result struct {
		SelectedIDs []string `json:"selected_ids"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &result); err != nil {
		return nil, err
	}
	return result.SelectedIDs, nil
}
