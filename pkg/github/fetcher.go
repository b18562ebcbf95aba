package github

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	pferrors "github.com/pbelyakov/planforge/pkg/errors"
)

const (
	maxTreeEntries   = 200
	maxCommits       = 5
	maxOpenPRs       = 5
	maxConfigSummary = 400
)

// configFiles are fetched when present; their first lines summarize the
// project's tooling for the planner.
var configFiles = []string{
	"go.mod",
	"package.json",
	"pyproject.toml",
	"requirements.txt",
	"Cargo.toml",
	"pom.xml",
	"Makefile",
	"Dockerfile",
	"docker-compose.yml",
}

// skippedDirs are pruned from the structure tree.
var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"__pycache__":  true,
	".venv":        true,
}

var repoURLPattern = regexp.MustCompile(`(?:https?://|git@)?github\.com[:/]([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+?)(?:\.git)?(?:[/\s#?]|$)`)

// DiscoverRepo scans the ticket description, then the passport document, for
// a GitHub repository URL. Returns the matched owner, repo, and which source
// the URL came from ("ticket", "passport", or "" when nothing matched).
func DiscoverRepo(ticketText, passportText string) (owner, repo, source string) {
	if o, r, ok := matchRepoURL(ticketText); ok {
		return o, r, "ticket"
	}
	if o, r, ok := matchRepoURL(passportText); ok {
		return o, r, "passport"
	}
	return "", "", ""
}

func matchRepoURL(text string) (owner, repo string, ok bool) {
	m := repoURLPattern.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// Fetcher assembles repository context for one ticket.
type Fetcher struct {
	client *Client
	logger *slog.Logger
}

// NewFetcher creates a fetcher. A nil client is allowed; BuildContext then
// degrades any discovered repository to not-found.
func NewFetcher(client *Client) *Fetcher {
	return &Fetcher{client: client, logger: slog.Default()}
}

// BuildContext discovers the repository a ticket refers to and gathers its
// signals. Never returns an error: every failure degrades to a weaker status
// or a retrieval warning, and planning proceeds on what was gathered.
func (f *Fetcher) BuildContext(ctx context.Context, ticketText, passportText string) *Context {
	owner, repo, source := DiscoverRepo(ticketText, passportText)
	if source == "" {
		f.logger.Info("no repository URL discovered, treating as new project")
		return &Context{Status: RepoNewProject, DiscoverySource: "none"}
	}

	result := &Context{
		RepositoryURL:   "https://github.com/" + owner + "/" + repo,
		DiscoverySource: source,
		Owner:           owner,
		Repo:            repo,
	}

	if f.client == nil {
		result.Status = RepoNotFound
		result.RetrievalErrors = append(result.RetrievalErrors, "GitHub client not configured")
		return result
	}

	repository, err := f.client.Repository(ctx, owner, repo)
	if err != nil {
		f.logger.Warn("repository lookup failed", "owner", owner, "repo", repo, "error", err)
		result.Status = RepoNotFound
		result.RetrievalErrors = append(result.RetrievalErrors, describeFailure("repository lookup", err))
		return result
	}

	result.Status = RepoExists
	result.DefaultBranch = repository.GetDefaultBranch()
	result.PrimaryLanguage = repository.GetLanguage()

	if lang, err := f.client.PrimaryLanguage(ctx, owner, repo); err == nil && lang != "" {
		result.PrimaryLanguage = lang
	}

	if paths, err := f.client.TreePaths(ctx, owner, repo, result.DefaultBranch); err != nil {
		result.RetrievalErrors = append(result.RetrievalErrors, describeFailure("file tree", err))
	} else {
		result.Structure = buildStructure(paths, result.PrimaryLanguage)
	}

	if commits, err := f.client.RecentCommits(ctx, owner, repo, maxCommits); err != nil {
		result.RetrievalErrors = append(result.RetrievalErrors, describeFailure("recent commits", err))
	} else {
		result.RecentCommits = commits
	}

	if prs, err := f.client.OpenPullRequests(ctx, owner, repo, maxOpenPRs); err != nil {
		result.RetrievalErrors = append(result.RetrievalErrors, describeFailure("open pull requests", err))
	} else {
		result.OpenPRs = prs
	}

	result.Configs = f.fetchConfigs(ctx, owner, repo, result)

	f.logger.Info("built repository context",
		"repo", owner+"/"+repo,
		"files", fileCount(result),
		"warnings", len(result.RetrievalErrors))
	return result
}

func (f *Fetcher) fetchConfigs(ctx context.Context, owner, repo string, result *Context) []ConfigSummary {
	var summaries []ConfigSummary
	for _, path := range configFiles {
		content, err := f.client.FileContent(ctx, owner, repo, path)
		if err != nil {
			result.RetrievalErrors = append(result.RetrievalErrors, describeFailure("config file "+path, err))
			continue
		}
		if content == "" {
			continue
		}
		summaries = append(summaries, ConfigSummary{
			Path:    path,
			Summary: summarizeConfig(content),
		})
	}
	return summaries
}

// summarizeConfig keeps the leading non-comment lines of a config file,
// truncated to a prompt-friendly size.
func summarizeConfig(content string) string {
	var kept []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
			continue
		}
		kept = append(kept, trimmed)
		if len(kept) >= 5 {
			break
		}
	}
	summary := strings.Join(kept, "; ")
	if len(summary) > maxConfigSummary {
		summary = summary[:maxConfigSummary] + "..."
	}
	return summary
}

// buildStructure renders the path list as an indented tree, pruning noisy
// directories and capping the entry count.
func buildStructure(paths []string, primaryLanguage string) *Structure {
	sort.Strings(paths)

	var (
		keyDirs   []string
		rendered  []string
		fileCount int
		pruned    int
	)

	for _, path := range paths {
		trimmed := strings.TrimSuffix(path, "/")
		isDir := strings.HasSuffix(path, "/")
		segments := strings.Split(trimmed, "/")

		if skippedSegment(segments) {
			pruned++
			continue
		}

		if isDir && len(segments) == 1 {
			keyDirs = append(keyDirs, segments[0])
		}
		if !isDir {
			fileCount++
		}

		if len(rendered) < maxTreeEntries {
			indent := strings.Repeat("  ", len(segments)-1)
			name := segments[len(segments)-1]
			if isDir {
				name += "/"
			}
			rendered = append(rendered, indent+name)
		} else {
			pruned++
		}
	}

	if pruned > 0 {
		rendered = append(rendered, "... ("+strconv.Itoa(pruned)+" more entries)")
	}

	return &Structure{
		Tree:            strings.Join(rendered, "\n"),
		KeyDirectories:  keyDirs,
		FileCount:       fileCount,
		PrimaryLanguage: primaryLanguage,
	}
}

func skippedSegment(segments []string) bool {
	for _, s := range segments {
		if skippedDirs[s] {
			return true
		}
	}
	return false
}

func describeFailure(what string, err error) string {
	var ghErr *pferrors.GitHubError
	if pferrors.As(err, &ghErr) && ghErr.StatusCode > 0 {
		return what + " failed (HTTP " + strconv.Itoa(ghErr.StatusCode) + ")"
	}
	return what + " failed: " + err.Error()
}

func fileCount(c *Context) int {
	if c.Structure == nil {
		return 0
	}
	return c.Structure.FileCount
}
