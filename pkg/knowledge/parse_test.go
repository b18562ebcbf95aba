package knowledge

import "testing"

func TestParseSearchResults(t *testing.T) {
	reply := `Found 2 pages:
- **Project Passport** (WEB3) - [View](https://example.atlassian.net/wiki/spaces/WEB3/pages/500/Project+Passport)
- **Wallet Hub Overview** (WEB3) - [View](https://example.atlassian.net/wiki/spaces/WEB3/pages/501/Wallet+Hub+Overview)
`

	results := parseSearchResults(reply)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "500" || results[0].Title != "Project Passport" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if results[1].ID != "501" {
		t.Errorf("expected id 501, got %q", results[1].ID)
	}
	if results[0].Excerpt != "Document titled: Project Passport" {
		t.Errorf("unexpected excerpt: %q", results[0].Excerpt)
	}
}

func TestParseSearchResultsFallbackID(t *testing.T) {
	reply := `Found 1 pages:
- **Odd Page** (AI) - [View](https://example.net/wiki/display/AI/OddPage)
`
	results := parseSearchResults(reply)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].ID != "OddPage" {
		t.Errorf("expected last-segment fallback id, got %q", results[0].ID)
	}
}

func TestIsEmptySearch(t *testing.T) {
	if !isEmptySearch("Found 0 pages matching the query.") {
		t.Error("expected empty search to be detected")
	}
	if isEmptySearch("Found 3 pages:") {
		t.Error("non-empty search misclassified")
	}
}

func TestExtractContainerID(t *testing.T) {
	tests := []struct {
		name    string
		locator string
		want    string
	}{
		{"folder segment", "https://example.net/wiki/spaces/AI/folder/123456", "123456"},
		{"pages segment", "https://example.net/wiki/spaces/AI/pages/789/Title", "789"},
		{"pageId param", "https://example.net/pages/viewpage.action?pageId=42", "42"},
		{"no id", "https://example.net/wiki/display/AI/Home", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractContainerID(tt.locator); got != tt.want {
				t.Errorf("extractContainerID(%q) = %q, want %q", tt.locator, got, tt.want)
			}
		})
	}
}

func TestExtractSpaceKey(t *testing.T) {
	if got := extractSpaceKey("https://example.net/wiki/spaces/web3/pages/1/X"); got != "WEB3" {
		t.Errorf("expected upper-cased WEB3, got %q", got)
	}
	if got := extractSpaceKey("https://example.net/no/match"); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestExtractPageText(t *testing.T) {
	reply := `# Project Passport

**Space:** WEB3

## Content

The project serves wallets.


Tech stack: Go, Postgres.



Final line.
`
	got := extractPageText(reply)
	want := "The project serves wallets.\n\nTech stack: Go, Postgres.\n\nFinal line."
	if got != want {
		t.Errorf("extractPageText mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestExtractPageTextNoHeading(t *testing.T) {
	got := extractPageText("Plain body without a content heading.\n")
	if got != "Plain body without a content heading." {
		t.Errorf("unexpected result: %q", got)
	}
}
