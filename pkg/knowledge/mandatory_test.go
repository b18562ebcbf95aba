package knowledge

import (
	"context"
	"testing"

	pferrors "github.com/pbelyakov/planforge/pkg/errors"
)

func testRoles() []DocumentRole {
	return []DocumentRole{
		{Name: RolePassport, Keywords: []string{"Passport"}},
		{Name: RoleArchitecture, Keywords: []string{"Architecture", "Logical Architecture"}},
	}
}

func passportSearchReply() string {
	return "Found 1 pages:\n- **Project Passport** (AI) - [View](https://example.net/wiki/spaces/AI/pages/500/Project+Passport)\n"
}

func pageReply(body string) string {
	return "# Page\n\n## Content\n\n" + body + "\n"
}

func TestFetchMandatoryAllFound(t *testing.T) {
	docs := &fakeInvoker{replies: map[string]string{
		`title ~ "Passport"`:     passportSearchReply(),
		`title ~ "Architecture"`: "Found 1 pages:\n- **Logical Architecture** (AI) - [View](https://example.net/wiki/spaces/AI/pages/600/Logical+Architecture)\n",
		"page_id=500":            pageReply("The wallet platform."),
		"page_id=600":            pageReply("Services talk over gRPC."),
	}}

	bundle := &Bundle{Maturity: MaturityExisting, FolderID: "123"}
	loc := &ResolvedLocation{FolderID: "123", SpaceKey: "AI", Maturity: MaturityExisting}
	NewFetcher(docs, testRoles()).FetchMandatory(context.Background(), loc, bundle)

	if bundle.Maturity != MaturityExisting {
		t.Errorf("expected existing maturity, got %s", bundle.Maturity)
	}
	if len(bundle.Mandatory) != 2 {
		t.Fatalf("expected 2 mandatory documents, got %d", len(bundle.Mandatory))
	}
	if bundle.Mandatory[0].Content != "The wallet platform." {
		t.Errorf("unexpected passport content: %q", bundle.Mandatory[0].Content)
	}
	if len(bundle.MissingData) != 0 {
		t.Errorf("expected no missing data, got %v", bundle.MissingData)
	}
}

func TestFetchMandatoryNothingFound(t *testing.T) {
	docs := &fakeInvoker{}

	bundle := &Bundle{Maturity: MaturityExisting, FolderID: "123"}
	loc := &ResolvedLocation{FolderID: "123", SpaceKey: "AI", Maturity: MaturityExisting}
	NewFetcher(docs, testRoles()).FetchMandatory(context.Background(), loc, bundle)

	if bundle.Maturity != MaturityNewProject {
		t.Errorf("expected new-project maturity, got %s", bundle.Maturity)
	}
	if len(bundle.MissingData) != 2 {
		t.Errorf("expected both roles recorded missing, got %v", bundle.MissingData)
	}
}

func TestFetchMandatoryEmptyDocument(t *testing.T) {
	docs := &fakeInvoker{replies: map[string]string{
		`title ~ "Passport"`: passportSearchReply(),
		"page_id=500":        pageReply(""),
	}}

	bundle := &Bundle{Maturity: MaturityExisting, FolderID: "123"}
	loc := &ResolvedLocation{FolderID: "123", SpaceKey: "AI", Maturity: MaturityExisting}
	NewFetcher(docs, testRoles()).FetchMandatory(context.Background(), loc, bundle)

	if bundle.Maturity != MaturityIncomplete {
		t.Errorf("expected incomplete maturity, got %s", bundle.Maturity)
	}
}

func TestFetchMandatoryPartialKeepsExisting(t *testing.T) {
	docs := &fakeInvoker{replies: map[string]string{
		`title ~ "Passport"`: passportSearchReply(),
		"page_id=500":        pageReply("Content."),
	}}

	bundle := &Bundle{Maturity: MaturityExisting, FolderID: "123"}
	loc := &ResolvedLocation{FolderID: "123", SpaceKey: "AI", Maturity: MaturityExisting}
	NewFetcher(docs, testRoles()).FetchMandatory(context.Background(), loc, bundle)

	if bundle.Maturity != MaturityExisting {
		t.Errorf("a partially documented project is still existing, got %s", bundle.Maturity)
	}
	if len(bundle.MissingData) != 1 || bundle.MissingData[0] != RoleArchitecture {
		t.Errorf("expected architecture recorded missing, got %v", bundle.MissingData)
	}
}

func TestFetchMandatoryKeywordFailureIsTolerated(t *testing.T) {
	docs := &fakeInvoker{
		errs: map[string]error{
			`title ~ "Architecture"`: pferrors.NewTransportErrorWithStatus("docs", "confluence_search_pages", 500, "boom"),
		},
		replies: map[string]string{
			`title ~ "Logical Architecture"`: "Found 1 pages:\n- **Logical Architecture** (AI) - [View](https://example.net/wiki/spaces/AI/pages/600/LA)\n",
			"page_id=600":                    pageReply("Diagram."),
		},
	}

	bundle := &Bundle{Maturity: MaturityExisting, FolderID: "123"}
	loc := &ResolvedLocation{FolderID: "123", SpaceKey: "AI", Maturity: MaturityExisting}
	NewFetcher(docs, []DocumentRole{
		{Name: RoleArchitecture, Keywords: []string{"Architecture", "Logical Architecture"}},
	}).FetchMandatory(context.Background(), loc, bundle)

	if len(bundle.Mandatory) != 1 {
		t.Fatalf("expected the second keyword to succeed, got %d documents", len(bundle.Mandatory))
	}
	if len(bundle.RetrievalErrors) != 1 {
		t.Errorf("expected the failed keyword recorded, got %v", bundle.RetrievalErrors)
	}
}
