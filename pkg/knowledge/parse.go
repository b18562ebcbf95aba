package knowledge

import (
	"regexp"
	"strings"
)

// All fragility around the documentation store's markdown reply format lives
// in this file. Search replies look like:
//
//	Found N pages:
//	- **Title** (SPACE) - [View](URL)
//
// and page replies carry the body after a "## Content" heading.
var (
	searchResultLine = regexp.MustCompile(`\*\*(.+?)\*\*\s*\([^)]+\)\s*-\s*\[View\]\(([^)]+)\)`)

	folderSegment = regexp.MustCompile(`/folder/(\d+)`)
	pagesSegment  = regexp.MustCompile(`/pages/(\d+)`)
	pageIDParam   = regexp.MustCompile(`[?&]pageId=(\d+)`)
	spaceSegment  = regexp.MustCompile(`/spaces/([A-Za-z0-9]+)/`)

	contentHeading = regexp.MustCompile(`(?s)## Content.*?\n(.*)`)
	blankRuns      = regexp.MustCompile(`\n{3,}`)
)

// isEmptySearch reports whether a search reply contains no results.
func isEmptySearch(reply string) bool {
	return strings.Contains(reply, "Found 0 pages")
}

// parseSearchResults extracts candidate records from a search reply. The page
// id comes from the result URL; when no id pattern matches, the last URL
// segment is used as a best effort.
func parseSearchResults(reply string) []Candidate {
	var candidates []Candidate

	for _, m := range searchResultLine.FindAllStringSubmatch(reply, -1) {
		title, url := m[1], m[2]

		id := extractContainerID(url)
		if id == "" {
			trimmed := strings.TrimRight(url, "/")
			if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
				id = trimmed[idx+1:]
			} else {
				id = trimmed
			}
		}

		candidates = append(candidates, Candidate{
			ID:    id,
			Title: title,
			URL:   url,
			// The store returns no body excerpts for searches; the title is
			// the only signal available to the reranker.
			Excerpt: "Document titled: " + title,
		})
	}

	return candidates
}

// extractContainerID pulls a container (folder or page) id out of a locator
// URL. Recognized shapes: a "/folder/<id>" segment, a "/pages/<id>" segment,
// and a "pageId=<id>" query parameter. Empty when none match.
func extractContainerID(locator string) string {
	for _, re := range []*regexp.Regexp{folderSegment, pagesSegment, pageIDParam} {
		if m := re.FindStringSubmatch(locator); m != nil {
			return m[1]
		}
	}
	return ""
}

// extractSpaceKey pulls a space key from a locator URL's "/spaces/<KEY>/"
// segment. Empty when absent.
func extractSpaceKey(locator string) string {
	if m := spaceSegment.FindStringSubmatch(locator); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}

// extractPageText flattens a page reply to plain text: everything after the
// "## Content" heading with trailing space and blank runs collapsed. Replies
// without the heading are returned whole, cleaned the same way.
func extractPageText(reply string) string {
	content := reply
	if m := contentHeading.FindStringSubmatch(reply); m != nil {
		content = m[1]
	}

	content = blankRuns.ReplaceAllString(content, "\n\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
