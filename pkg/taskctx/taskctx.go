// Package taskctx aggregates everything known about a task into one context
// record and renders it deterministically for the planning prompt.
package taskctx

import (
	"fmt"
	"strings"
	"time"

	"github.com/pbelyakov/planforge/pkg/github"
	"github.com/pbelyakov/planforge/pkg/knowledge"
	"github.com/pbelyakov/planforge/pkg/tracker"
)

// Context is the unified input to plan generation: the ticket, the knowledge
// bundle, the optional repository context, and any aggregation errors.
type Context struct {
	TicketKey string    `json:"ticket_key"`
	Timestamp time.Time `json:"timestamp"`

	Ticket    *tracker.Ticket   `json:"ticket,omitempty"`
	Knowledge *knowledge.Bundle `json:"knowledge,omitempty"`
	GitHub    *github.Context   `json:"github,omitempty"`

	// Errors lists stage failures that did not abort the run.
	Errors []string `json:"errors"`
}

// New creates a context for the given ticket key, stamped now.
func New(ticketKey string) *Context {
	return &Context{TicketKey: ticketKey, Timestamp: time.Now()}
}

// Valid reports whether the context carries the minimum needed for
// generation. Only the ticket summary is required; descriptions are often
// empty on backlog items.
func (c *Context) Valid() bool {
	return c.Ticket != nil && c.Ticket.Summary != ""
}

// NewProject reports whether the knowledge stage classified the project as
// new (folder exists, mandatory documents absent).
func (c *Context) NewProject() bool {
	return c.Knowledge != nil && c.Knowledge.Maturity == knowledge.MaturityNewProject
}

// PromptContext renders the full context as deterministic markdown. Given
// equal inputs the output is byte-identical except for the timestamp line.
// Section order: ticket, knowledge base, codebase, errors.
func (c *Context) PromptContext() string {
	var sections []string

	sections = append(sections,
		fmt.Sprintf("# Task Context: %s", c.TicketKey),
		fmt.Sprintf("Generated: %s", c.Timestamp.Format(time.RFC3339)),
		"")

	if c.Ticket != nil {
		sections = append(sections, c.ticketSection()...)
	}
	if c.Knowledge != nil {
		sections = append(sections, c.knowledgeSection()...)
	}
	if c.GitHub != nil {
		sections = append(sections,
			"---", "",
			"## Codebase Context (GitHub)", "",
			c.GitHub.Markdown())
	}
	if len(c.Errors) > 0 {
		sections = append(sections, "---", "", "## Context Errors")
		for _, err := range c.Errors {
			sections = append(sections, "- "+err)
		}
		sections = append(sections, "")
	}

	return strings.Join(sections, "\n")
}

func (c *Context) ticketSection() []string {
	t := c.Ticket

	sections := []string{
		"---", "",
		"## Ticket", "",
		fmt.Sprintf("**Key:** %s", t.Key),
		fmt.Sprintf("**Title:** %s", t.Summary),
		fmt.Sprintf("**Type:** %s", t.Type),
		fmt.Sprintf("**Status:** %s", t.Status),
		fmt.Sprintf("**Project:** %s (%s)", t.ProjectName, t.ProjectKey),
		fmt.Sprintf("**Labels:** %s", joinOr(t.Labels, "None")),
		fmt.Sprintf("**Assignee:** %s", orDefault(t.Assignee, "Unassigned")),
	}

	if t.ParentKey != "" {
		sections = append(sections, fmt.Sprintf("**Parent:** %s", t.ParentKey))
	}
	if len(t.Subtasks) > 0 {
		sections = append(sections, fmt.Sprintf("**Subtasks:** %s", strings.Join(t.Subtasks, ", ")))
	}

	sections = append(sections, "", "### Description", "",
		orDefault(t.Description, "[No description provided]"), "")

	if len(t.Comments) > 0 {
		sections = append(sections, "### Comments", "")
		for _, comment := range t.Comments {
			sections = append(sections,
				fmt.Sprintf("**%s** (%s):", orDefault(comment.Author, "Unknown"), comment.Created),
				"> "+comment.Body,
				"")
		}
	}

	return sections
}

func (c *Context) knowledgeSection() []string {
	kb := c.Knowledge

	sections := []string{
		"---", "",
		"## Project Knowledge Base", "",
		fmt.Sprintf("**Space:** %s", kb.SpaceKey),
		fmt.Sprintf("**Status:** %s", kb.Maturity),
		"",
	}

	if kb.Maturity.DocumentationMissing() {
		sections = append(sections, c.gapSection()...)
	}

	if len(kb.Mandatory) > 0 {
		sections = append(sections, "### Core Documentation (Mandatory)", "")
		sections = append(sections, documentSections(kb.Mandatory)...)
	}
	if len(kb.Discovered) > 0 {
		sections = append(sections, "### Supporting Documentation (Model Selected)", "")
		sections = append(sections, documentSections(kb.Discovered)...)
	}

	if len(kb.RetrievalErrors) > 0 {
		sections = append(sections, "### Retrieval Warnings")
		for _, err := range kb.RetrievalErrors {
			sections = append(sections, "- "+err)
		}
		sections = append(sections, "")
	}

	return sections
}

// gapSection instructs the model to plan documentation work. The wording
// differs by how much documentation exists, but the page templates and the
// layer instruction are shared.
func (c *Context) gapSection() []string {
	var sections []string

	switch c.Knowledge.Maturity {
	case knowledge.MaturityBrandNew:
		sections = append(sections,
			"### BRAND NEW PROJECT", "",
			"**IMPORTANT:** This is a greenfield project with no existing documentation.")
	case knowledge.MaturityNewProject:
		sections = append(sections,
			"### NEW PROJECT - DOCUMENTATION MISSING", "",
			"**IMPORTANT:** The project folder exists in the knowledge base but mandatory documentation pages are missing.")
	case knowledge.MaturityIncomplete:
		sections = append(sections,
			"### INCOMPLETE PROJECT DOCUMENTATION", "",
			"**IMPORTANT:** Some mandatory documentation pages exist but are empty or incomplete.")
	}

	sections = append(sections, "")
	if len(c.Knowledge.MissingData) > 0 {
		sections = append(sections, "**Documentation gaps:**")
		for _, item := range c.Knowledge.MissingData {
			sections = append(sections, "- "+item)
		}
		sections = append(sections, "")
	}

	sections = append(sections,
		"Your work plan MUST include steps to create or fill these pages.",
		"1. **Project Passport** page with sections:",
		"   - Identity & Ownership",
		"   - Technology Stack",
		"   - Repositories",
		"   - Environments",
		"2. **Logical Architecture** page with sections:",
		"   - Component Diagram",
		"   - Data Flow",
		"   - Contracts & Interfaces",
		"   - Constraints",
		"",
		"Use `[DOCS]` layer for documentation creation/update steps.",
		"")

	return sections
}

func documentSections(docs []knowledge.Document) []string {
	var sections []string
	for _, doc := range docs {
		sections = append(sections,
			fmt.Sprintf("#### %s", doc.Title),
			fmt.Sprintf("URL: %s", doc.URL),
			"",
			doc.Content,
			"")
	}
	return sections
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
