package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	pferrors "github.com/pbelyakov/planforge/pkg/errors"
	"github.com/pbelyakov/planforge/pkg/transport"
)

// Resolver turns a ticket's documentation pointers (a direct locator URL
// and/or a human-readable folder name) into a concrete folder id.
type Resolver struct {
	docs   transport.Invoker
	logger *slog.Logger
}

// NewResolver creates a resolver over the documentation store invoker.
func NewResolver(docs transport.Invoker) *Resolver {
	return &Resolver{docs: docs, logger: slog.Default()}
}

// Resolve locates the documentation folder for a ticket, in priority order:
// a container id extracted from the locator URL (no search needed), then an
// exact title search for the folder name, then a fuzzy title search. When
// neither pointer is supplied the project is brand new, which is not an
// error. When pointers were supplied but nothing resolves, the returned
// error is a *pferrors.LocationError and the location carries maturity
// not_found.
func (r *Resolver) Resolve(ctx context.Context, spaceKey, locator, folder string) (*ResolvedLocation, error) {
	if locator == "" && folder == "" {
		r.logger.Info("no documentation pointers on ticket, treating project as brand new")
		return &ResolvedLocation{SpaceKey: spaceKey, Maturity: MaturityBrandNew}, nil
	}

	if locator != "" {
		if id := extractContainerID(locator); id != "" {
			space := spaceKey
			// A space parsed from the locator is more authoritative than one
			// derived from ticket labels.
			if parsed := extractSpaceKey(locator); parsed != "" {
				space = parsed
			}
			r.logger.Info("resolved location from locator", "folder_id", id, "space", space)
			return &ResolvedLocation{FolderID: id, SpaceKey: space, Maturity: MaturityExisting}, nil
		}
		r.logger.Warn("locator carries no recognizable container id, falling back to folder search",
			"locator", locator)
	}

	if folder != "" {
		loc, err := r.searchFolder(ctx, spaceKey, folder)
		if err != nil {
			return nil, err
		}
		if loc != nil {
			return loc, nil
		}
	}

	return &ResolvedLocation{SpaceKey: spaceKey, Maturity: MaturityNotFound},
		pferrors.NewLocationError(locator, folder, spaceKey, "no matching folder in the knowledge base")
}

// searchFolder looks the folder up by title: exact match first, substring
// match second. Among fuzzy hits an exact case-insensitive title match wins,
// otherwise the first hit is taken. A nil, nil return means both searches
// came back empty.
func (r *Resolver) searchFolder(ctx context.Context, spaceKey, folder string) (*ResolvedLocation, error) {
	exact := fmt.Sprintf("space = %q AND title = %q AND type = page", spaceKey, folder)
	reply, err := r.docs.Invoke(ctx, "confluence_search_pages", map[string]any{
		"cql":   exact,
		"limit": 1,
	})
	if err != nil {
		return nil, pferrors.Wrap(err, "folder title search failed")
	}

	if !isEmptySearch(reply) {
		if results := parseSearchResults(reply); len(results) > 0 {
			r.logger.Info("resolved location by exact title", "folder_id", results[0].ID)
			return &ResolvedLocation{FolderID: results[0].ID, SpaceKey: spaceKey, Maturity: MaturityExisting}, nil
		}
	}

	fuzzy := fmt.Sprintf("space = %q AND title ~ %q AND type = page", spaceKey, folder)
	reply, err = r.docs.Invoke(ctx, "confluence_search_pages", map[string]any{
		"cql":   fuzzy,
		"limit": 10,
	})
	if err != nil {
		return nil, pferrors.Wrap(err, "folder fuzzy search failed")
	}

	if isEmptySearch(reply) {
		return nil, nil
	}
	results := parseSearchResults(reply)
	if len(results) == 0 {
		return nil, nil
	}

	best := results[0]
	for _, c := range results {
		if strings.EqualFold(c.Title, folder) {
			best = c
			break
		}
	}

	r.logger.Info("resolved location by fuzzy title", "folder_id", best.ID, "title", best.Title)
	return &ResolvedLocation{FolderID: best.ID, SpaceKey: spaceKey, Maturity: MaturityExisting}, nil
}
