package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pbelyakov/planforge/pkg/transport"
)

// Fetcher retrieves the mandatory project documents under a resolved folder
// and classifies documentation maturity from what it finds.
type Fetcher struct {
	docs   transport.Invoker
	roles  []DocumentRole
	logger *slog.Logger
}

// NewFetcher creates a fetcher for the given mandatory document roles.
func NewFetcher(docs transport.Invoker, roles []DocumentRole) *Fetcher {
	if len(roles) == 0 {
		roles = DefaultRoles()
	}
	return &Fetcher{docs: docs, roles: roles, logger: slog.Default()}
}

// FetchMandatory searches each role's synonym keywords in order under the
// folder, fetching the first match's full text. A failing keyword search is
// logged and recorded as a warning, never aborting the other keywords or
// roles. The bundle's maturity is updated in place:
//
//   - every role found with content: existing (unchanged)
//   - no role found at all: new project, all roles recorded missing
//   - a role found but empty, or some roles missing: incomplete/missing
//     roles recorded in MissingData
func (f *Fetcher) FetchMandatory(ctx context.Context, loc *ResolvedLocation, bundle *Bundle) {
	foundAny := false
	emptyFound := false

	for _, role := range f.roles {
		doc, err := f.fetchRole(ctx, loc.FolderID, role, bundle)
		if err != nil {
			// fetchRole already recorded the warnings; the role simply counts
			// as missing.
			bundle.MissingData = append(bundle.MissingData, role.Name)
			continue
		}
		if doc == nil {
			f.logger.Info("mandatory document not found", "role", role.Name)
			bundle.MissingData = append(bundle.MissingData, role.Name)
			continue
		}

		foundAny = true
		if doc.Content == "" {
			f.logger.Warn("mandatory document is empty", "role", role.Name, "title", doc.Title)
			bundle.MissingData = append(bundle.MissingData, role.Name)
			emptyFound = true
		}
		bundle.Mandatory = append(bundle.Mandatory, *doc)
		f.logger.Info("found mandatory document", "role", role.Name, "title", doc.Title)
	}

	switch {
	case !foundAny:
		bundle.Maturity = MaturityNewProject
	case emptyFound:
		bundle.Maturity = MaturityIncomplete
	}
}

// fetchRole tries each synonym keyword until a search returns results, then
// fetches and flattens the first matching page. A nil, nil return means no
// keyword matched anything.
func (f *Fetcher) fetchRole(ctx context.Context, folderID string, role DocumentRole, bundle *Bundle) (*Document, error) {
	for _, keyword := range role.Keywords {
		cql := fmt.Sprintf("ancestor = %s AND title ~ %q", folderID, keyword)
		reply, err := f.docs.Invoke(ctx, "confluence_search_pages", map[string]any{
			"cql":   cql,
			"limit": 3,
		})
		if err != nil {
			f.logger.Warn("mandatory document search failed", "role", role.Name, "keyword", keyword, "error", err)
			bundle.RetrievalErrors = append(bundle.RetrievalErrors,
				fmt.Sprintf("search for %q failed: %v", keyword, err))
			continue
		}
		if isEmptySearch(reply) {
			continue
		}

		results := parseSearchResults(reply)
		if len(results) == 0 {
			continue
		}

		page := results[0]
		pageReply, err := f.docs.Invoke(ctx, "confluence_get_page", map[string]any{
			"page_id": page.ID,
		})
		if err != nil {
			f.logger.Warn("mandatory document fetch failed", "role", role.Name, "page_id", page.ID, "error", err)
			bundle.RetrievalErrors = append(bundle.RetrievalErrors,
				fmt.Sprintf("fetch of %q failed: %v", page.Title, err))
			return nil, err
		}

		return &Document{
			ID:      page.ID,
			Title:   page.Title,
			URL:     page.URL,
			Content: extractPageText(pageReply),
		}, nil
	}

	return nil, nil
}
