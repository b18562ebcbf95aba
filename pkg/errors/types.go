// Package errors provides typed errors for the planforge project.
//
// This package defines domain-specific error types that provide structured
// error information for different subsystems (config, transport, tracker,
// knowledge base, AI, GitHub, storage). All error types implement the
// standard error interface and support errors.Is() and errors.As() from the
// standard library and cockroachdb/errors.
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Field   string // Which config field has the issue
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
	}
	return "config error: " + e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with an underlying cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}

// TransportError represents failures of the named-operation RPC boundary to
// an upstream service (tracker or knowledge base). Malformed replies and
// protocol-level failures both surface as TransportError.
type TransportError struct {
	Upstream   string // e.g., "tracker", "docs"
	Operation  string // e.g., "confluence_search_pages"
	StatusCode int    // HTTP-equivalent status, if the upstream reported one
	Message    string
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transport %s %s failed (status %d): %s", e.Upstream, e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("transport %s %s failed: %s", e.Upstream, e.Operation, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// NewTransportError creates a new TransportError.
func NewTransportError(upstream, operation, message string) *TransportError {
	return &TransportError{Upstream: upstream, Operation: operation, Message: message}
}

// NewTransportErrorWithStatus creates a new TransportError with an HTTP-equivalent status.
func NewTransportErrorWithStatus(upstream, operation string, statusCode int, message string) *TransportError {
	retryable := isRetryableHTTPStatus(statusCode)
	return &TransportError{
		Upstream:   upstream,
		Operation:  operation,
		StatusCode: statusCode,
		Message:    message,
		Retryable:  retryable,
	}
}

// NewTransportErrorWithCause creates a new TransportError with an underlying cause.
func NewTransportErrorWithCause(upstream, operation, message string, cause error) *TransportError {
	return &TransportError{
		Upstream:  upstream,
		Operation: operation,
		Message:   message,
		Retryable: IsRetryable(cause),
		Cause:     cause,
	}
}

// LocationError represents a documentation location that could not be
// resolved even though a locator and/or folder name was supplied. It carries
// both inputs for diagnostics. Distinct from the brand-new-project case,
// which is an absence of data rather than an error.
type LocationError struct {
	Locator string // Direct documentation link from the ticket, if any
	Folder  string // Human-readable folder name from the ticket, if any
	Space   string // Space the searches ran against
	Message string
}

// Error implements the error interface.
func (e *LocationError) Error() string {
	switch {
	case e.Locator != "" && e.Folder != "":
		return fmt.Sprintf("location not found (locator %q, folder %q): %s", e.Locator, e.Folder, e.Message)
	case e.Folder != "":
		return fmt.Sprintf("location not found (folder %q in space %q): %s", e.Folder, e.Space, e.Message)
	default:
		return "location not found: " + e.Message
	}
}

// NewLocationError creates a new LocationError.
func NewLocationError(locator, folder, space, message string) *LocationError {
	return &LocationError{Locator: locator, Folder: folder, Space: space, Message: message}
}

// AIError represents AI provider errors.
type AIError struct {
	Provider   string // e.g., "deepseek", "anthropic"
	Operation  string // e.g., "Complete"
	StatusCode int
	Message    string
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *AIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("ai %s %s failed (HTTP %d): %s", e.Provider, e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ai %s %s failed: %s", e.Provider, e.Operation, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *AIError) Unwrap() error {
	return e.Cause
}

// NewAIError creates a new AIError.
func NewAIError(provider, operation, message string) *AIError {
	return &AIError{Provider: provider, Operation: operation, Message: message}
}

// NewAIErrorWithStatus creates a new AIError with HTTP status code.
func NewAIErrorWithStatus(provider, operation string, statusCode int, message string) *AIError {
	retryable := isRetryableHTTPStatus(statusCode)
	return &AIError{
		Provider:   provider,
		Operation:  operation,
		StatusCode: statusCode,
		Message:    message,
		Retryable:  retryable,
	}
}

// NewAIErrorWithCause creates a new AIError with an underlying cause.
func NewAIErrorWithCause(provider, operation, message string, cause error) *AIError {
	return &AIError{
		Provider:  provider,
		Operation: operation,
		Message:   message,
		Retryable: IsRetryable(cause),
		Cause:     cause,
	}
}

// TrackerError represents ticket-tracker errors.
type TrackerError struct {
	Operation string
	Ticket    string
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface.
func (e *TrackerError) Error() string {
	if e.Ticket != "" {
		return fmt.Sprintf("tracker %s for %s failed: %s", e.Operation, e.Ticket, e.Message)
	}
	return fmt.Sprintf("tracker %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *TrackerError) Unwrap() error {
	return e.Cause
}

// NewTrackerError creates a new TrackerError.
func NewTrackerError(operation, message string) *TrackerError {
	return &TrackerError{Operation: operation, Message: message}
}

// NewTrackerErrorWithTicket creates a new TrackerError for a specific ticket.
func NewTrackerErrorWithTicket(operation, ticket, message string) *TrackerError {
	return &TrackerError{Operation: operation, Ticket: ticket, Message: message}
}

// NewTrackerErrorWithCause creates a new TrackerError with an underlying cause.
func NewTrackerErrorWithCause(operation, ticket, message string, cause error) *TrackerError {
	return &TrackerError{
		Operation: operation,
		Ticket:    ticket,
		Message:   message,
		Retryable: IsRetryable(cause),
		Cause:     cause,
	}
}

// GitHubError represents GitHub API errors.
type GitHubError struct {
	Operation  string // e.g., "GetTree", "ListCommits"
	StatusCode int    // HTTP status code if applicable
	Message    string
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *GitHubError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("github %s failed (HTTP %d): %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("github %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *GitHubError) Unwrap() error {
	return e.Cause
}

// NewGitHubError creates a new GitHubError.
func NewGitHubError(operation, message string) *GitHubError {
	return &GitHubError{Operation: operation, Message: message}
}

// NewGitHubErrorWithStatus creates a new GitHubError with HTTP status code.
func NewGitHubErrorWithStatus(operation string, statusCode int, message string) *GitHubError {
	retryable := isRetryableHTTPStatus(statusCode)
	return &GitHubError{
		Operation:  operation,
		StatusCode: statusCode,
		Message:    message,
		Retryable:  retryable,
	}
}

// NewGitHubErrorWithCause creates a new GitHubError with an underlying cause.
func NewGitHubErrorWithCause(operation, message string, cause error) *GitHubError {
	return &GitHubError{
		Operation: operation,
		Message:   message,
		Retryable: IsRetryable(cause),
		Cause:     cause,
	}
}

// StoreError represents errors from local persistence (snapshots, artifact
// files, run history).
type StoreError struct {
	Operation string // e.g., "SaveSnapshot", "RecordRun"
	Path      string
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("store %s failed for %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("store %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreError creates a new StoreError.
func NewStoreError(operation, path, message string) *StoreError {
	return &StoreError{Operation: operation, Path: path, Message: message}
}

// NewStoreErrorWithCause creates a new StoreError with an underlying cause.
func NewStoreErrorWithCause(operation, path, message string, cause error) *StoreError {
	return &StoreError{Operation: operation, Path: path, Message: message, Cause: cause}
}

// IsRetryable checks if an error or any error in its chain is retryable.
// It returns true if the error itself is retryable, or if any wrapped error
// is marked as retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Check TransportError
	var trErr *TransportError
	if errors.As(err, &trErr) {
		return trErr.Retryable
	}

	// Check AIError
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr.Retryable
	}

	// Check TrackerError
	var tkErr *TrackerError
	if errors.As(err, &tkErr) {
		return tkErr.Retryable
	}

	// Check GitHubError
	var ghErr *GitHubError
	if errors.As(err, &ghErr) {
		return ghErr.Retryable
	}

	return false
}

// IsConfigError checks if an error or any error in its chain is a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// IsTransportError checks if an error or any error in its chain is a TransportError.
func IsTransportError(err error) bool {
	var trErr *TransportError
	return errors.As(err, &trErr)
}

// IsLocationError checks if an error or any error in its chain is a LocationError.
func IsLocationError(err error) bool {
	var locErr *LocationError
	return errors.As(err, &locErr)
}

// IsAIError checks if an error or any error in its chain is an AIError.
func IsAIError(err error) bool {
	var aiErr *AIError
	return errors.As(err, &aiErr)
}

// IsTrackerError checks if an error or any error in its chain is a TrackerError.
func IsTrackerError(err error) bool {
	var tkErr *TrackerError
	return errors.As(err, &tkErr)
}

// IsGitHubError checks if an error or any error in its chain is a GitHubError.
func IsGitHubError(err error) bool {
	var ghErr *GitHubError
	return errors.As(err, &ghErr)
}

// IsStoreError checks if an error or any error in its chain is a StoreError.
func IsStoreError(err error) bool {
	var stErr *StoreError
	return errors.As(err, &stErr)
}

// isRetryableHTTPStatus returns true for HTTP status codes that are typically retryable.
func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}

// Re-export commonly used functions from cockroachdb/errors for convenience.
// This allows consumers to use pferrors.Wrap() instead of importing two packages.
var (
	// New creates a new error with the given message.
	New = errors.New

	// Newf creates a new error with formatted message.
	Newf = errors.Newf

	// Wrap wraps an error with additional context.
	Wrap = errors.Wrap

	// Wrapf wraps an error with formatted additional context.
	Wrapf = errors.Wrapf

	// Is reports whether any error in err's chain matches target.
	Is = errors.Is

	// As finds the first error in err's chain that matches target.
	As = errors.As

	// Cause returns the root cause of an error.
	Cause = errors.Cause
)
