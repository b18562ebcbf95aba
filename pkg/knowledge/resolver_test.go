package knowledge

import (
	"context"
	"strings"
	"testing"

	pferrors "github.com/pbelyakov/planforge/pkg/errors"
)

// fakeInvoker replays canned replies keyed by a substring of the operation
// arguments, recording every call it sees.
type fakeInvoker struct {
	replies map[string]string
	errs    map[string]error
	calls   []fakeCall
}

type fakeCall struct {
	operation string
	args      map[string]any
}

func (f *fakeInvoker) Invoke(_ context.Context, operation string, args map[string]any) (string, error) {
	f.calls = append(f.calls, fakeCall{operation: operation, args: args})

	key := argString(args)
	for needle, err := range f.errs {
		if strings.Contains(key, needle) {
			return "", err
		}
	}
	for needle, reply := range f.replies {
		if strings.Contains(key, needle) {
			return reply, nil
		}
	}
	return "Found 0 pages", nil
}

func argString(args map[string]any) string {
	var b strings.Builder
	for _, k := range []string{"cql", "page_id", "issue_key"} {
		if v, ok := args[k]; ok {
			b.WriteString(k)
			b.WriteString("=")
			switch val := v.(type) {
			case string:
				b.WriteString(val)
			}
			b.WriteString(" ")
		}
	}
	return b.String()
}

func TestResolveBrandNew(t *testing.T) {
	docs := &fakeInvoker{}
	loc, err := NewResolver(docs).Resolve(context.Background(), "AI", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Maturity != MaturityBrandNew {
		t.Errorf("expected brand_new maturity, got %s", loc.Maturity)
	}
	if len(docs.calls) != 0 {
		t.Errorf("brand new resolution must not search, saw %d calls", len(docs.calls))
	}
}

func TestResolveLocatorShortCircuit(t *testing.T) {
	docs := &fakeInvoker{}
	loc, err := NewResolver(docs).Resolve(context.Background(), "AI",
		"https://example.net/wiki/spaces/WEB3/folder/123456", "Wallet Hub")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.FolderID != "123456" {
		t.Errorf("expected folder id 123456, got %q", loc.FolderID)
	}
	if loc.SpaceKey != "WEB3" {
		t.Errorf("locator space should win over the ticket space, got %q", loc.SpaceKey)
	}
	if loc.Maturity != MaturityExisting {
		t.Errorf("expected existing maturity, got %s", loc.Maturity)
	}
	if len(docs.calls) != 0 {
		t.Errorf("locator resolution must not search, saw %d calls", len(docs.calls))
	}
}

func TestResolveExactTitle(t *testing.T) {
	docs := &fakeInvoker{replies: map[string]string{
		`title = "Wallet Hub"`: "Found 1 pages:\n- **Wallet Hub** (AI) - [View](https://example.net/wiki/spaces/AI/pages/777/Wallet+Hub)\n",
	}}

	loc, err := NewResolver(docs).Resolve(context.Background(), "AI", "", "Wallet Hub")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.FolderID != "777" {
		t.Errorf("expected folder id 777, got %q", loc.FolderID)
	}
	if len(docs.calls) != 1 {
		t.Errorf("exact match should not trigger the fuzzy search, saw %d calls", len(docs.calls))
	}
}

func TestResolveFuzzyPrefersExactTitle(t *testing.T) {
	docs := &fakeInvoker{replies: map[string]string{
		`title ~`: "Found 2 pages:\n" +
			"- **Wallet Hub Archive** (AI) - [View](https://example.net/wiki/spaces/AI/pages/1/A)\n" +
			"- **wallet hub** (AI) - [View](https://example.net/wiki/spaces/AI/pages/2/B)\n",
	}}

	loc, err := NewResolver(docs).Resolve(context.Background(), "AI", "", "Wallet Hub")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.FolderID != "2" {
		t.Errorf("case-insensitive exact title should win, got folder %q", loc.FolderID)
	}
}

func TestResolveNotFound(t *testing.T) {
	docs := &fakeInvoker{}
	loc, err := NewResolver(docs).Resolve(context.Background(), "AI", "", "Ghost Project")
	if err == nil {
		t.Fatal("expected a location error")
	}
	var locErr *pferrors.LocationError
	if !pferrors.As(err, &locErr) {
		t.Fatalf("expected *LocationError, got %T", err)
	}
	if loc == nil || loc.Maturity != MaturityNotFound {
		t.Errorf("expected not_found maturity, got %+v", loc)
	}
}

func TestResolveBadLocatorFallsBackToFolder(t *testing.T) {
	docs := &fakeInvoker{replies: map[string]string{
		`title = "Wallet Hub"`: "Found 1 pages:\n- **Wallet Hub** (AI) - [View](https://example.net/wiki/spaces/AI/pages/9/W)\n",
	}}

	loc, err := NewResolver(docs).Resolve(context.Background(), "AI",
		"https://example.net/wiki/display/AI/Home", "Wallet Hub")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.FolderID != "9" {
		t.Errorf("expected fallback to folder search, got %q", loc.FolderID)
	}
}
