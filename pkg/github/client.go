package github

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	gh "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/pbelyakov/planforge/pkg/config"
	pferrors "github.com/pbelyakov/planforge/pkg/errors"
)

// Client wraps the GitHub REST API for read-only repository retrieval.
type Client struct {
	api     *gh.Client
	verbose bool
	logger  *slog.Logger
}

// ClientOption is a functional option for configuring Client.
type ClientOption func(*Client)

// WithLogger sets a custom logger for the client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a GitHub client based on the provided configuration.
//
// Token resolution order:
//  1. PLANFORGE_GITHUB_TOKEN environment variable
//  2. GITHUB_TOKEN environment variable
//  3. Token from config file (github.token)
//  4. Cached OAuth token (keychain or file)
//  5. OAuth device flow (if client_id configured)
func NewClient(cfg *config.GitHubConfig, verbose bool) (*Client, error) {
	if cfg == nil {
		return nil, pferrors.NewGitHubError("NewClient", "github config is required")
	}

	token := os.Getenv("PLANFORGE_GITHUB_TOKEN")
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		token = cfg.Token
	}

	switch AuthMethod(cfg.AuthMethod) {
	case AuthToken, "":
		if token == "" {
			return nil, pferrors.NewGitHubError("NewClient",
				"token auth requires PLANFORGE_GITHUB_TOKEN, GITHUB_TOKEN env var, or github.token in config")
		}
		return NewTokenClient(token, verbose)

	case AuthOAuth:
		if token != "" {
			return NewTokenClient(token, verbose)
		}
		return newOAuthClient(cfg, verbose)

	default:
		return nil, pferrors.NewGitHubError("NewClient", "unknown auth method: "+cfg.AuthMethod)
	}
}

// NewTokenClient creates a GitHub client with the given access token.
func NewTokenClient(token string, verbose bool, opts ...ClientOption) (*Client, error) {
	if token == "" {
		return nil, pferrors.NewGitHubError("NewTokenClient", "token is required")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)

	client := &Client{
		api:     gh.NewClient(tc),
		verbose: verbose,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// newOAuthClient creates a client using OAuth device flow with token caching.
func newOAuthClient(cfg *config.GitHubConfig, verbose bool) (*Client, error) {
	cache := NewTokenCache()

	cachedToken, err := cache.Get()
	if err != nil {
		if verbose {
			slog.Debug("failed to read cached token", "error", err)
		}
	}

	if cachedToken != nil && cachedToken.Valid() {
		if verbose {
			slog.Debug("using cached OAuth token")
		}
		return NewTokenClient(cachedToken.AccessToken, verbose)
	}

	if cfg.ClientID == "" {
		return nil, pferrors.NewGitHubError("NewClient",
			"oauth auth requires github.client_id in config; alternatively set GITHUB_TOKEN")
	}

	oauthCfg := OAuthConfig{
		ClientID: cfg.ClientID,
		Scopes:   []string{"repo", "read:org"},
	}

	apiToken, err := DeviceAuth(context.Background(), oauthCfg, os.Stdout)
	if err != nil {
		return nil, err
	}

	token := &oauth2.Token{
		AccessToken: apiToken.Token,
		TokenType:   apiToken.Type,
	}

	if cacheErr := cache.Set(token); cacheErr != nil {
		// Auth succeeded; a cache failure just means device flow again next run.
		if verbose {
			slog.Debug("failed to cache token", "error", cacheErr)
		}
	} else if verbose {
		slog.Debug("cached OAuth token for future use")
	}

	return NewTokenClient(token.AccessToken, verbose)
}

// IsAuthenticated checks if the client is authenticated with GitHub.
func (c *Client) IsAuthenticated() bool {
	ctx := context.Background()
	_, _, err := c.api.Users.Get(ctx, "")
	return err == nil
}

// Repository retrieves repository metadata. A 404 is reported with the
// status code so callers can distinguish missing from inaccessible.
func (c *Client) Repository(ctx context.Context, owner, repo string) (*gh.Repository, error) {
	c.logDebug("getting repository", "owner", owner, "repo", repo)

	repository, resp, err := c.api.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, toGitHubError("Repository", resp, err)
	}
	return repository, nil
}

// TreePaths lists the full file tree of a branch, one path per entry.
// Directories are suffixed with "/".
func (c *Client) TreePaths(ctx context.Context, owner, repo, branch string) ([]string, error) {
	c.logDebug("getting tree", "owner", owner, "repo", repo, "branch", branch)

	tree, resp, err := c.api.Git.GetTree(ctx, owner, repo, branch, true)
	if err != nil {
		return nil, toGitHubError("TreePaths", resp, err)
	}

	paths := make([]string, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		path := entry.GetPath()
		if path == "" {
			continue
		}
		if entry.GetType() == "tree" {
			path += "/"
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// PrimaryLanguage returns the language with the most bytes in the repository,
// or "" when GitHub reports none.
func (c *Client) PrimaryLanguage(ctx context.Context, owner, repo string) (string, error) {
	langs, resp, err := c.api.Repositories.ListLanguages(ctx, owner, repo)
	if err != nil {
		return "", toGitHubError("PrimaryLanguage", resp, err)
	}

	best := ""
	bestBytes := 0
	for lang, bytes := range langs {
		if bytes > bestBytes {
			best = lang
			bestBytes = bytes
		}
	}
	return best, nil
}

// RecentCommits returns the latest commit subjects on the default branch,
// formatted as "abc1234 subject (author)".
func (c *Client) RecentCommits(ctx context.Context, owner, repo string, n int) ([]string, error) {
	opts := &gh.CommitsListOptions{
		ListOptions: gh.ListOptions{PerPage: n},
	}
	commits, resp, err := c.api.Repositories.ListCommits(ctx, owner, repo, opts)
	if err != nil {
		return nil, toGitHubError("RecentCommits", resp, err)
	}

	lines := make([]string, 0, len(commits))
	for _, commit := range commits {
		sha := commit.GetSHA()
		if len(sha) > 7 {
			sha = sha[:7]
		}
		subject, _, _ := strings.Cut(commit.GetCommit().GetMessage(), "\n")
		author := commit.GetCommit().GetAuthor().GetName()
		lines = append(lines, sha+" "+subject+" ("+author+")")
	}
	return lines, nil
}

// OpenPullRequests returns titles of open pull requests, formatted "#N title".
func (c *Client) OpenPullRequests(ctx context.Context, owner, repo string, n int) ([]string, error) {
	opts := &gh.PullRequestListOptions{
		State:       "open",
		ListOptions: gh.ListOptions{PerPage: n},
	}
	prs, resp, err := c.api.PullRequests.List(ctx, owner, repo, opts)
	if err != nil {
		return nil, toGitHubError("OpenPullRequests", resp, err)
	}

	titles := make([]string, 0, len(prs))
	for _, pr := range prs {
		titles = append(titles, fmt.Sprintf("#%d %s", pr.GetNumber(), pr.GetTitle()))
	}
	return titles, nil
}

// FileContent fetches the decoded content of a single file. Returns ("", nil)
// when the file does not exist.
func (c *Client) FileContent(ctx context.Context, owner, repo, path string) (string, error) {
	file, _, resp, err := c.api.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return "", nil
		}
		return "", toGitHubError("FileContent", resp, err)
	}
	if file == nil {
		return "", nil
	}

	content, err := file.GetContent()
	if err != nil {
		return "", pferrors.NewGitHubErrorWithCause("FileContent", "failed to decode content", err)
	}
	return content, nil
}

func (c *Client) logDebug(msg string, args ...any) {
	if c.verbose {
		c.logger.Debug(msg, args...)
	}
}

func toGitHubError(operation string, resp *gh.Response, err error) error {
	if resp != nil && resp.StatusCode > 0 {
		return pferrors.NewGitHubErrorWithStatus(operation, resp.StatusCode, err.Error())
	}
	return pferrors.NewGitHubErrorWithCause(operation, "API request failed", err)
}
