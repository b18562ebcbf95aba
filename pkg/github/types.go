// Package github retrieves read-only repository context for plan generation:
// structure, configuration, and recent activity for the repository a ticket
// refers to. Authentication supports personal access tokens and the OAuth
// device flow with keychain-backed token caching.
package github

import (
	"fmt"
	"strings"
)

// AuthMethod selects how the client authenticates.
type AuthMethod string

const (
	// AuthToken uses a personal access token.
	AuthToken AuthMethod = "token"
	// AuthOAuth uses the OAuth device flow.
	AuthOAuth AuthMethod = "oauth"
)

// RepoStatus classifies repository discovery.
type RepoStatus string

const (
	// RepoExists: the repository was found and is accessible.
	RepoExists RepoStatus = "exists"
	// RepoNotFound: a URL was discovered but the repository is missing or
	// inaccessible.
	RepoNotFound RepoStatus = "not_found"
	// RepoNewProject: no repository URL was discovered anywhere.
	RepoNewProject RepoStatus = "new_project"
)

// Structure is the repository file layout, filtered to what helps a planner.
type Structure struct {
	Tree            string   `json:"tree"`
	KeyDirectories  []string `json:"key_directories"`
	FileCount       int      `json:"file_count"`
	PrimaryLanguage string   `json:"primary_language,omitempty"`
}

// ConfigSummary captures the gist of one configuration file.
type ConfigSummary struct {
	Path    string `json:"path"`
	Summary string `json:"summary"`
}

// Context is the aggregate codebase signal for one ticket. All fields except
// discovery are best effort: retrieval failures degrade to absent sections,
// recorded in RetrievalErrors.
type Context struct {
	RepositoryURL   string     `json:"repository_url,omitempty"`
	Status          RepoStatus `json:"status"`
	DiscoverySource string     `json:"discovery_source"`

	Owner           string `json:"owner,omitempty"`
	Repo            string `json:"repo,omitempty"`
	DefaultBranch   string `json:"default_branch,omitempty"`
	PrimaryLanguage string `json:"primary_language,omitempty"`

	Structure *Structure `json:"structure,omitempty"`

	Configs []ConfigSummary `json:"configs,omitempty"`

	RecentCommits []string `json:"recent_commits,omitempty"`
	OpenPRs       []string `json:"open_prs,omitempty"`

	RetrievalErrors []string `json:"retrieval_errors,omitempty"`
}

// Available reports whether repository context was successfully retrieved.
func (c *Context) Available() bool {
	return c != nil && c.Status == RepoExists
}

// Markdown renders the context for inclusion in a model prompt.
func (c *Context) Markdown() string {
	switch c.Status {
	case RepoNewProject:
		return "**GitHub:** New project - repository to be created"
	case RepoNotFound:
		return fmt.Sprintf("**GitHub:** Repository not found or inaccessible (%s)", c.RepositoryURL)
	}

	var sections []string

	sections = append(sections, fmt.Sprintf("**Repository:** [%s/%s](%s)", c.Owner, c.Repo, c.RepositoryURL))
	if c.PrimaryLanguage != "" {
		sections = append(sections, fmt.Sprintf("**Primary Language:** %s", c.PrimaryLanguage))
	}
	sections = append(sections, fmt.Sprintf("**Default Branch:** %s", c.DefaultBranch), "")

	if c.Structure != nil {
		sections = append(sections,
			"### Repository Structure", "",
			"```", c.Structure.Tree, "```", "")
	}

	if len(c.Configs) > 0 {
		sections = append(sections, "### Configuration Files", "")
		for _, cfg := range c.Configs {
			sections = append(sections, fmt.Sprintf("- **%s**: %s", cfg.Path, cfg.Summary))
		}
		sections = append(sections, "")
	}

	if len(c.RecentCommits) > 0 {
		sections = append(sections, "### Recent Commits", "")
		for _, commit := range limit(c.RecentCommits, 5) {
			sections = append(sections, "- "+commit)
		}
		sections = append(sections, "")
	}

	if len(c.OpenPRs) > 0 {
		sections = append(sections, "### Open Pull Requests", "")
		for _, title := range limit(c.OpenPRs, 5) {
			sections = append(sections, "- "+title)
		}
		sections = append(sections, "")
	}

	if len(c.RetrievalErrors) > 0 {
		sections = append(sections, "### Retrieval Warnings", "")
		for _, err := range c.RetrievalErrors {
			sections = append(sections, "- "+err)
		}
		sections = append(sections, "")
	}

	return strings.Join(sections, "\n")
}

func limit(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
