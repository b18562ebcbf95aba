package config

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// Config represents the application configuration.
// Secrets are resolved env-first; config file values are fallbacks.
type Config struct {
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Docs      DocsConfig      `mapstructure:"docs"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	AI        AIConfig        `mapstructure:"ai"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Output    OutputConfig    `mapstructure:"output"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	History   HistoryConfig   `mapstructure:"history"`
	Update    UpdateConfig    `mapstructure:"update"`
}

// TrackerConfig holds the ticket-tracker upstream configuration. The upstream
// is reached through a tool server subprocess speaking MCP over stdio.
type TrackerConfig struct {
	Command string            `mapstructure:"command"` // Server executable (e.g. "planforge-jira-server")
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"` // Extra environment for the server process
}

// DocsConfig holds the knowledge-base upstream configuration (same transport
// shape as the tracker).
type DocsConfig struct {
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
}

// KnowledgeConfig holds documentation retrieval configuration.
type KnowledgeConfig struct {
	DefaultSpace string `mapstructure:"default_space"` // Fallback space key when the ticket derives none
	RolesFile    string `mapstructure:"roles_file"`    // Optional YAML override for mandatory document roles
	SearchLimit  int    `mapstructure:"search_limit"`  // Max results per discovery search
}

// AIConfig holds AI provider configuration.
type AIConfig struct {
	Provider    string  `mapstructure:"provider"` // "deepseek", "anthropic", "gemini", "ollama"
	Model       string  `mapstructure:"model"`    // Empty means use per-provider default
	APIKey      string  `mapstructure:"api_key"`  // Provider API key (env var takes precedence)
	Endpoint    string  `mapstructure:"endpoint"` // Custom endpoint URL
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	MaxRetries  int     `mapstructure:"max_retries"` // Plan-repair budget, not transport retries

	// Per-provider default models (used when Model is empty)
	DeepSeekModel  string `mapstructure:"deepseek_model"`
	AnthropicModel string `mapstructure:"anthropic_model"`
	GeminiModel    string `mapstructure:"gemini_model"`
	OllamaModel    string `mapstructure:"ollama_model"`
	OllamaEndpoint string `mapstructure:"ollama_endpoint"`
}

// GitHubConfig holds GitHub integration configuration. GitHub context is
// optional; a run proceeds without it.
type GitHubConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AuthMethod string `mapstructure:"auth_method"` // "token", "oauth"
	ClientID   string `mapstructure:"client_id"`   // OAuth app client ID (for device flow)
	Token      string `mapstructure:"token"`       // GITHUB_TOKEN env var takes precedence
}

// OutputConfig holds artifact output configuration.
type OutputConfig struct {
	Dir string `mapstructure:"dir"` // Directory for run artifacts and snapshots
}

// LimitsConfig holds transport pacing and timeout configuration.
type LimitsConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	InitTimeoutSecs   int     `mapstructure:"init_timeout_seconds"` // Server startup handshake
	CallTimeoutSecs   int     `mapstructure:"call_timeout_seconds"` // Individual tool calls (fetches can be large)
}

// HistoryConfig holds the run-history database configuration.
type HistoryConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

// UpdateConfig holds self-update configuration.
type UpdateConfig struct {
	Repository string `mapstructure:"repository"` // "owner/repo" on GitHub releases
}

// SecurityWarning represents a configuration security issue.
type SecurityWarning struct {
	Field   string
	Message string
}

// ValidProviders is the list of supported AI providers.
var ValidProviders = []string{"deepseek", "anthropic", "gemini", "ollama"}

// Load loads the configuration from file and environment variables.
func Load() (*Config, error) {
	config := &Config{}

	// Set defaults
	setDefaults()

	// Unmarshal the config
	if err := viper.Unmarshal(config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	// Expand paths
	if err := expandPaths(config); err != nil {
		return nil, errors.Wrap(err, "failed to expand paths")
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return config, nil
}

// CheckSecurityWarnings returns warnings for insecure configuration practices.
// Call this when loading config to warn users about tokens stored in config files.
func CheckSecurityWarnings(config *Config) []SecurityWarning {
	var warnings []SecurityWarning

	if config.AI.APIKey != "" && os.Getenv("PLANFORGE_AI_API_KEY") == "" &&
		os.Getenv("DEEPSEEK_API_KEY") == "" && os.Getenv("ANTHROPIC_API_KEY") == "" {
		warnings = append(warnings, SecurityWarning{
			Field:   "ai.api_key",
			Message: "AI API key is set in config file. For security, use environment variables (DEEPSEEK_API_KEY, ANTHROPIC_API_KEY, or PLANFORGE_AI_API_KEY) instead.",
		})
	}

	if config.GitHub.Token != "" && os.Getenv("GITHUB_TOKEN") == "" && os.Getenv("PLANFORGE_GITHUB_TOKEN") == "" {
		warnings = append(warnings, SecurityWarning{
			Field:   "github.token",
			Message: "GitHub token is set in config file. For security, use the GITHUB_TOKEN environment variable or 'planforge auth github' instead.",
		})
	}

	return warnings
}

// ValidateProvider validates that an AI provider is supported.
func ValidateProvider(provider string) error {
	if provider == "" {
		return nil // Empty falls back to the default provider
	}
	for _, valid := range ValidProviders {
		if provider == valid {
			return nil
		}
	}
	return errors.Newf("invalid AI provider %q: must be one of: deepseek, anthropic, gemini, ollama", provider)
}

// Validate validates the configuration and returns any validation errors.
func (c *Config) Validate() error {
	if err := ValidateProvider(c.AI.Provider); err != nil {
		return errors.Wrap(err, "ai.provider")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return errors.Newf("ai.temperature %v out of range [0, 2]", c.AI.Temperature)
	}
	if c.AI.MaxRetries < 0 {
		return errors.Newf("ai.max_retries must not be negative, got %d", c.AI.MaxRetries)
	}
	if c.Limits.RequestsPerSecond <= 0 {
		return errors.Newf("limits.requests_per_second must be positive, got %v", c.Limits.RequestsPerSecond)
	}
	if c.Limits.Burst < 1 {
		return errors.Newf("limits.burst must be at least 1, got %d", c.Limits.Burst)
	}
	if c.Knowledge.SearchLimit < 1 {
		return errors.Newf("knowledge.search_limit must be at least 1, got %d", c.Knowledge.SearchLimit)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fall back to current directory if home dir can't be determined
		homeDir = "."
	}

	// Tracker defaults (command must be configured; no sane default exists)
	viper.SetDefault("tracker.command", "")
	viper.SetDefault("tracker.args", []string{})
	viper.SetDefault("tracker.env", map[string]string{})

	// Docs defaults
	viper.SetDefault("docs.command", "")
	viper.SetDefault("docs.args", []string{})
	viper.SetDefault("docs.env", map[string]string{})

	// Knowledge defaults
	viper.SetDefault("knowledge.default_space", "AI")
	viper.SetDefault("knowledge.roles_file", "")
	viper.SetDefault("knowledge.search_limit", 20)

	// AI defaults
	viper.SetDefault("ai.provider", "deepseek")
	viper.SetDefault("ai.model", "") // Empty means use per-provider default
	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.endpoint", "")
	viper.SetDefault("ai.temperature", 0.2)
	viper.SetDefault("ai.max_tokens", 8192)
	viper.SetDefault("ai.max_retries", 2)

	// Per-provider AI model defaults (configurable)
	viper.SetDefault("ai.deepseek_model", "deepseek-chat")
	viper.SetDefault("ai.anthropic_model", "claude-sonnet-4-20250514")
	viper.SetDefault("ai.gemini_model", "gemini-2.0-flash")
	viper.SetDefault("ai.ollama_model", "llama3.2")
	viper.SetDefault("ai.ollama_endpoint", "http://localhost:11434")

	// GitHub defaults
	viper.SetDefault("github.enabled", true)
	viper.SetDefault("github.auth_method", "token")
	viper.SetDefault("github.client_id", "")
	viper.SetDefault("github.token", "")

	// Output defaults
	viper.SetDefault("output.dir", "outputs")

	// Limits defaults
	viper.SetDefault("limits.requests_per_second", 10.0)
	viper.SetDefault("limits.burst", 20)
	viper.SetDefault("limits.init_timeout_seconds", 15)
	viper.SetDefault("limits.call_timeout_seconds", 120)

	// History defaults
	viper.SetDefault("history.database_path", filepath.Join(homeDir, ".local", "share", "planforge", "runs.db"))

	// Update defaults
	viper.SetDefault("update.repository", "pbelyakov/planforge")
}

// expandPaths expands ~ in configured paths
func expandPaths(config *Config) error {
	var err error

	config.Output.Dir, err = expandPath(config.Output.Dir)
	if err != nil {
		return err
	}

	config.History.DatabasePath, err = expandPath(config.History.DatabasePath)
	if err != nil {
		return err
	}

	config.Knowledge.RolesFile, err = expandPath(config.Knowledge.RolesFile)
	if err != nil {
		return err
	}

	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, path[1:]), nil
}
