package errors

import (
	"fmt"
	"strings"
)

// FormatUserError returns a user-friendly error message with actionable guidance.
// It examines the error chain and provides context-appropriate help text.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	// Check for ConfigError
	var configErr *ConfigError
	if As(err, &configErr) {
		return formatConfigError(configErr)
	}

	// Check for LocationError
	var locErr *LocationError
	if As(err, &locErr) {
		return formatLocationError(locErr)
	}

	// Check for TransportError
	var trErr *TransportError
	if As(err, &trErr) {
		return formatTransportError(trErr)
	}

	// Check for AIError
	var aiErr *AIError
	if As(err, &aiErr) {
		return formatAIError(aiErr)
	}

	// Check for GitHubError
	var ghErr *GitHubError
	if As(err, &ghErr) {
		return formatGitHubError(ghErr)
	}

	// Default: return the error message as-is
	return err.Error()
}

// formatConfigError formats a ConfigError with actionable guidance.
func formatConfigError(err *ConfigError) string {
	var b strings.Builder

	if err.Field != "" {
		fmt.Fprintf(&b, "Configuration error in '%s': %s\n", err.Field, err.Message)
	} else {
		fmt.Fprintf(&b, "Configuration error: %s\n", err.Message)
	}

	b.WriteString("\nTo fix this:\n")
	b.WriteString("  • Check your config file: ~/.config/planforge/config.yaml\n")
	b.WriteString("  • Secrets belong in environment variables or a .env file, not the config file\n")

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}

// formatLocationError formats a LocationError with the inputs that failed to resolve.
func formatLocationError(err *LocationError) string {
	var b strings.Builder

	b.WriteString("Could not resolve the project's documentation location.\n")
	if err.Locator != "" {
		fmt.Fprintf(&b, "  • Locator tried: %s\n", err.Locator)
	}
	if err.Folder != "" {
		fmt.Fprintf(&b, "  • Folder name tried: %q (space %q)\n", err.Folder, err.Space)
	}
	b.WriteString("\nTo fix this:\n")
	b.WriteString("  • Verify the documentation link on the ticket points at a real page\n")
	b.WriteString("  • Or set a project folder name that matches an existing page title\n")
	b.WriteString("  • If the project truly has no documentation yet, remove both fields.\n")
	b.WriteString("    The run then proceeds in brand-new-project mode\n")

	return b.String()
}

// formatTransportError formats a TransportError with guidance based on status code.
func formatTransportError(err *TransportError) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Upstream error from %s during %s: %s\n", err.Upstream, err.Operation, err.Message)

	switch err.StatusCode {
	case 401, 403:
		b.WriteString("\nAuthentication failed. To fix this:\n")
		b.WriteString("  • Check the API token environment variables for this upstream\n")
		b.WriteString("  • Run 'planforge auth tracker' to store a fresh token\n")

	case 404:
		b.WriteString("\nResource not found. To fix this:\n")
		b.WriteString("  • Verify the ticket key / page id is correct\n")
		b.WriteString("  • Check that your account can see the project\n")

	case 429:
		b.WriteString("\nRate limit exceeded. To fix this:\n")
		b.WriteString("  • Wait a few minutes before retrying\n")
		b.WriteString("  • Lower limits.requests_per_second in the config\n")

	case 500, 502, 503, 504:
		b.WriteString("\nUpstream server error. To fix this:\n")
		b.WriteString("  • Wait a few moments and try again\n")
	}

	if err.Retryable {
		b.WriteString("\nThis error may be temporary. The operation will be retried automatically.\n")
	}

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}

// formatAIError formats an AIError with actionable guidance based on status code.
func formatAIError(err *AIError) string {
	var b strings.Builder

	fmt.Fprintf(&b, "AI provider error (%s) during %s: %s\n", err.Provider, err.Operation, err.Message)

	switch err.StatusCode {
	case 401:
		fmt.Fprintf(&b, "\nAuthentication failed with %s. To fix this:\n", err.Provider)
		b.WriteString("  • Set the provider's API key environment variable\n")
		b.WriteString("  • Verify your API key is valid and not expired\n")

	case 403:
		fmt.Fprintf(&b, "\nAccess denied by %s. To fix this:\n", err.Provider)
		b.WriteString("  • Check your API key permissions\n")
		b.WriteString("  • Ensure the model you're using is available to your account tier\n")

	case 429:
		fmt.Fprintf(&b, "\n%s rate limit exceeded. To fix this:\n", err.Provider)
		b.WriteString("  • Wait a few minutes before retrying\n")
		b.WriteString("  • Reduce request frequency\n")

	case 500, 502, 503, 504:
		fmt.Fprintf(&b, "\n%s server error. To fix this:\n", err.Provider)
		b.WriteString("  • Wait a few moments and try again\n")
		b.WriteString("  • Check the provider's status page\n")
	}

	if err.Retryable {
		b.WriteString("\nThis error may be temporary. The operation will be retried automatically.\n")
	}

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}

// formatGitHubError formats a GitHubError with actionable guidance based on status code.
func formatGitHubError(err *GitHubError) string {
	var b strings.Builder

	fmt.Fprintf(&b, "GitHub error during %s: %s\n", err.Operation, err.Message)

	switch err.StatusCode {
	case 401:
		b.WriteString("\nAuthentication failed. To fix this:\n")
		b.WriteString("  • Run 'planforge auth github' to sign in\n")
		b.WriteString("  • Or set the GITHUB_TOKEN environment variable\n")

	case 403:
		b.WriteString("\nPermission denied. To fix this:\n")
		b.WriteString("  • Ensure you have read access to this repository\n")
		b.WriteString("  • Check that your token has the 'repo' scope\n")

	case 404:
		b.WriteString("\nRepository not found. To fix this:\n")
		b.WriteString("  • Verify the repository URL on the ticket or passport page\n")
		b.WriteString("  • Check that you have access to the repository\n")

	case 429:
		b.WriteString("\nRate limit exceeded. To fix this:\n")
		b.WriteString("  • Wait a few minutes before retrying\n")

	case 500, 502, 503, 504:
		b.WriteString("\nGitHub server error. To fix this:\n")
		b.WriteString("  • Wait a few moments and try again\n")
		b.WriteString("  • Check GitHub Status: https://www.githubstatus.com\n")
	}

	b.WriteString("\nGitHub context is optional. The run degrades to documentation-only context\n")
	b.WriteString("when the repository cannot be read.\n")

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}
