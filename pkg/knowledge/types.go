// Package knowledge resolves a ticket's documentation location in the
// knowledge base, fetches the mandatory project documents, and discovers
// additional task-relevant pages with a search-then-rerank strategy.
package knowledge

import (
	"fmt"
	"strings"
)

// Maturity classifies how complete a project's documentation is. It drives
// branching behavior throughout the pipeline.
type Maturity string

// Maturity values.
const (
	// MaturityExisting: both mandatory documents found with content.
	MaturityExisting Maturity = "existing"
	// MaturityIncomplete: location resolved but mandatory documents are
	// missing or empty.
	MaturityIncomplete Maturity = "incomplete"
	// MaturityNewProject: the folder exists but holds neither mandatory
	// document.
	MaturityNewProject Maturity = "new"
	// MaturityBrandNew: neither a locator nor a folder name was supplied.
	// There is nothing to search; not an error.
	MaturityBrandNew Maturity = "brand_new"
	// MaturityNotFound: a locator or folder name was supplied but resolution
	// failed. This is an error state, unlike brand_new.
	MaturityNotFound Maturity = "not_found"
)

// DocumentationMissing reports whether the maturity calls for the generated
// plan to include documentation-creation steps.
func (m Maturity) DocumentationMissing() bool {
	switch m {
	case MaturityBrandNew, MaturityNewProject, MaturityIncomplete:
		return true
	default:
		return false
	}
}

// ResolvedLocation is the output of location resolution: the folder that
// anchors all searches, the space it was found under, and the maturity known
// so far.
type ResolvedLocation struct {
	FolderID string
	SpaceKey string
	Maturity Maturity
}

// Document is one retrieved knowledge-base page, flattened to plain text.
type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Candidate is one entry offered to the reranking model: an id, a title, and
// a short excerpt. No content is fetched until the model selects it.
type Candidate struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Excerpt string `json:"excerpt"`
}

// SelectionLog is the full audit record of one rerank call. It is retained
// even when the call fails, so a reviewer can always see what was offered and
// what came back.
type SelectionLog struct {
	SystemPrompt string      `json:"system_prompt"`
	UserPrompt   string      `json:"user_prompt"`
	Candidates   []Candidate `json:"candidates"`
	RawResponse  string      `json:"raw_response"`
	SelectedIDs  []string    `json:"selected_ids"`
	Model        string      `json:"model"`
	TokensUsed   int         `json:"tokens_used"`
}

// Markdown renders the selection log as a markdown audit document.
func (l *SelectionLog) Markdown() string {
	var b strings.Builder

	b.WriteString("## System Prompt\n\n```\n")
	b.WriteString(l.SystemPrompt)
	b.WriteString("\n```\n\n## User Prompt\n\n")
	b.WriteString(l.UserPrompt)
	b.WriteString(fmt.Sprintf("\n\n## Candidates (%d pages)\n\n", len(l.Candidates)))

	b.WriteString("| ID | Title | Excerpt |\n|---|---|---|\n")
	for _, c := range l.Candidates {
		excerpt := c.Excerpt
		if len(excerpt) > 100 {
			excerpt = excerpt[:100]
		}
		excerpt = strings.ReplaceAll(excerpt, "\n", " ")
		excerpt = strings.ReplaceAll(excerpt, "|", "\\|")
		fmt.Fprintf(&b, "| %s | %s | %s |\n", c.ID, c.Title, excerpt)
	}

	b.WriteString("\n## Raw Model Reply\n\n```json\n")
	b.WriteString(l.RawResponse)
	b.WriteString("\n```\n\n## Selection Result\n\n")

	if len(l.Candidates) == 0 {
		b.WriteString("_No candidates to evaluate_\n")
	} else {
		selected := make(map[string]bool, len(l.SelectedIDs))
		for _, id := range l.SelectedIDs {
			selected[id] = true
		}
		for _, c := range l.Candidates {
			status := "rejected"
			if selected[c.ID] {
				status = "SELECTED"
			}
			fmt.Fprintf(&b, "- [%s] `%s` - %s\n", status, c.ID, c.Title)
		}
	}

	fmt.Fprintf(&b, "\n## Metadata\n\n- Model: %s\n- Tokens Used: %d\n", l.Model, l.TokensUsed)

	return b.String()
}

// Bundle is the aggregate output of the knowledge stage: the resolved
// location, the mandatory and discovered document collections (disjoint by
// id), the missing-role list, and any non-fatal retrieval errors.
type Bundle struct {
	SpaceKey string   `json:"space_key"`
	FolderID string   `json:"folder_id"`
	Maturity Maturity `json:"maturity"`

	Mandatory  []Document `json:"mandatory"`
	Discovered []Document `json:"discovered"`

	Selection *SelectionLog `json:"selection,omitempty"`

	// MissingData lists mandatory document roles that were not found.
	// Informational, not an error.
	MissingData []string `json:"missing_data"`

	// RetrievalErrors accumulates non-fatal failures so they reach the final
	// output instead of being swallowed.
	RetrievalErrors []string `json:"retrieval_errors"`
}

// HasDocuments reports whether any document, mandatory or discovered, was
// retrieved.
func (b *Bundle) HasDocuments() bool {
	return len(b.Mandatory) > 0 || len(b.Discovered) > 0
}

// mandatoryIDs returns the set of ids already held by the mandatory
// collection. Discovery excludes these so the collections stay disjoint.
func (b *Bundle) mandatoryIDs() map[string]bool {
	ids := make(map[string]bool, len(b.Mandatory))
	for _, d := range b.Mandatory {
		ids[d.ID] = true
	}
	return ids
}
