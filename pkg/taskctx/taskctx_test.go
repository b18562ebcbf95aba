package taskctx

import (
	"strings"
	"testing"

	"github.com/pbelyakov/planforge/pkg/github"
	"github.com/pbelyakov/planforge/pkg/knowledge"
	"github.com/pbelyakov/planforge/pkg/tracker"
)

func sampleTicket() *tracker.Ticket {
	return &tracker.Ticket{
		Key:         "PROJ-123",
		Summary:     "Add wallet balance endpoint",
		Description: "Expose GET /balance for the wallet service.",
		Type:        "Story",
		Status:      "Backlog",
		ProjectKey:  "PROJ",
		ProjectName: "Wallet Platform",
		Labels:      []string{"backend"},
		Assignee:    "Dana",
		Comments: []tracker.Comment{
			{Author: "Sam", Created: "2026-08-01", Body: "Needs rate limiting."},
		},
	}
}

func TestValid(t *testing.T) {
	c := New("PROJ-123")
	if c.Valid() {
		t.Error("context without a ticket must be invalid")
	}

	c.Ticket = &tracker.Ticket{Key: "PROJ-123"}
	if c.Valid() {
		t.Error("ticket without a summary must be invalid")
	}

	c.Ticket.Summary = "Do the thing"
	if !c.Valid() {
		t.Error("ticket with a summary must be valid, even with an empty description")
	}
}

func TestPromptContextTicketSection(t *testing.T) {
	c := New("PROJ-123")
	c.Ticket = sampleTicket()

	out := c.PromptContext()

	for _, want := range []string{
		"# Task Context: PROJ-123",
		"**Key:** PROJ-123",
		"**Title:** Add wallet balance endpoint",
		"**Project:** Wallet Platform (PROJ)",
		"**Assignee:** Dana",
		"### Description",
		"Expose GET /balance for the wallet service.",
		"### Comments",
		"**Sam** (2026-08-01):",
		"> Needs rate limiting.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("prompt context missing %q", want)
		}
	}
}

func TestPromptContextEmptyDescription(t *testing.T) {
	c := New("PROJ-123")
	c.Ticket = sampleTicket()
	c.Ticket.Description = ""

	if !strings.Contains(c.PromptContext(), "[No description provided]") {
		t.Error("empty description must render a placeholder")
	}
}

func TestPromptContextSectionOrder(t *testing.T) {
	c := New("PROJ-123")
	c.Ticket = sampleTicket()
	c.Knowledge = &knowledge.Bundle{
		SpaceKey: "AI",
		Maturity: knowledge.MaturityExisting,
		Mandatory: []knowledge.Document{
			{ID: "500", Title: "Project Passport", URL: "https://x/500", Content: "Passport body."},
		},
		Discovered: []knowledge.Document{
			{ID: "501", Title: "Checkout API", URL: "https://x/501", Content: "Contract body."},
		},
	}
	c.GitHub = &github.Context{
		Status:        github.RepoExists,
		Owner:         "acme",
		Repo:          "wallet",
		RepositoryURL: "https://github.com/acme/wallet",
		DefaultBranch: "main",
	}
	c.Errors = []string{"docs upstream timed out once"}

	out := c.PromptContext()

	order := []string{
		"## Ticket",
		"## Project Knowledge Base",
		"### Core Documentation (Mandatory)",
		"### Supporting Documentation (Model Selected)",
		"## Codebase Context (GitHub)",
		"## Context Errors",
	}
	last := -1
	for _, heading := range order {
		idx := strings.Index(out, heading)
		if idx < 0 {
			t.Fatalf("missing section %q", heading)
		}
		if idx < last {
			t.Errorf("section %q out of order", heading)
		}
		last = idx
	}
}

func TestPromptContextBrandNewBanner(t *testing.T) {
	c := New("PROJ-123")
	c.Ticket = sampleTicket()
	c.Knowledge = &knowledge.Bundle{SpaceKey: "AI", Maturity: knowledge.MaturityBrandNew}

	out := c.PromptContext()

	for _, want := range []string{
		"### BRAND NEW PROJECT",
		"greenfield project",
		"Your work plan MUST include steps to create or fill these pages.",
		"**Project Passport** page with sections:",
		"**Logical Architecture** page with sections:",
		"Use `[DOCS]` layer for documentation creation/update steps.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("brand new banner missing %q", want)
		}
	}
}

func TestPromptContextMaturityBanners(t *testing.T) {
	tests := []struct {
		maturity knowledge.Maturity
		banner   string
	}{
		{knowledge.MaturityNewProject, "### NEW PROJECT - DOCUMENTATION MISSING"},
		{knowledge.MaturityIncomplete, "### INCOMPLETE PROJECT DOCUMENTATION"},
	}

	for _, tt := range tests {
		t.Run(string(tt.maturity), func(t *testing.T) {
			c := New("PROJ-123")
			c.Ticket = sampleTicket()
			c.Knowledge = &knowledge.Bundle{
				SpaceKey:    "AI",
				Maturity:    tt.maturity,
				MissingData: []string{"Logical Architecture"},
			}

			out := c.PromptContext()
			if !strings.Contains(out, tt.banner) {
				t.Errorf("missing banner %q", tt.banner)
			}
			if !strings.Contains(out, "**Documentation gaps:**") ||
				!strings.Contains(out, "- Logical Architecture") {
				t.Error("missing documentation gap list")
			}
		})
	}
}

func TestPromptContextExistingHasNoBanner(t *testing.T) {
	c := New("PROJ-123")
	c.Ticket = sampleTicket()
	c.Knowledge = &knowledge.Bundle{SpaceKey: "AI", Maturity: knowledge.MaturityExisting}

	out := c.PromptContext()
	if strings.Contains(out, "MUST include steps to create") {
		t.Error("documented projects must not get the documentation banner")
	}
}

func TestPromptContextDeterministic(t *testing.T) {
	build := func() *Context {
		c := New("PROJ-123")
		c.Ticket = sampleTicket()
		c.Knowledge = &knowledge.Bundle{
			SpaceKey: "AI",
			Maturity: knowledge.MaturityExisting,
			Mandatory: []knowledge.Document{
				{ID: "500", Title: "Passport", URL: "https://x/500", Content: "Body."},
			},
		}
		return c
	}

	a, b := build(), build()
	b.Timestamp = a.Timestamp

	if a.PromptContext() != b.PromptContext() {
		t.Error("equal inputs must render byte-identical prompt context")
	}
}

func TestNewProject(t *testing.T) {
	c := New("PROJ-123")
	if c.NewProject() {
		t.Error("no knowledge bundle means not a new project")
	}
	c.Knowledge = &knowledge.Bundle{Maturity: knowledge.MaturityNewProject}
	if !c.NewProject() {
		t.Error("expected new project")
	}
	c.Knowledge.Maturity = knowledge.MaturityBrandNew
	if c.NewProject() {
		t.Error("brand new is a distinct classification")
	}
}
