package transport

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/time/rate"

	"github.com/pbelyakov/planforge/pkg/config"
	pferrors "github.com/pbelyakov/planforge/pkg/errors"
)

// clientName identifies this process in the MCP initialization handshake.
const clientName = "planforge"

// MCPClient is an Invoker backed by a tool-server subprocess speaking MCP
// over stdio. One client owns one subprocess.
type MCPClient struct {
	upstream    string
	client      *mcpclient.Client
	limiter     *rate.Limiter
	ids         *RequestIDGenerator
	retryCfg    pferrors.RetryConfig
	callTimeout time.Duration
	logger      *slog.Logger
	verbose     bool
}

// Compile-time check that MCPClient implements Invoker.
var _ Invoker = (*MCPClient)(nil)

// ClientOptions configures an MCPClient.
type ClientOptions struct {
	Limiter     *rate.Limiter
	InitTimeout time.Duration
	CallTimeout time.Duration
	Version     string
	Verbose     bool
}

// NewMCPClient spawns the tool server subprocess and performs the MCP
// initialization handshake. The extra env map is layered over the parent
// process environment.
func NewMCPClient(upstream, command string, args []string, extraEnv map[string]string, opts ClientOptions) (*MCPClient, error) {
	if command == "" {
		return nil, pferrors.NewConfigError(upstream+".command", "tool server command is required")
	}

	env := os.Environ()
	for k, v := range extraEnv {
		env = append(env, k+"="+v)
	}

	raw, err := mcpclient.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, pferrors.NewTransportErrorWithCause(upstream, "start", "failed to start tool server", err)
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewLimiter(10, 20)
	}
	initTimeout := opts.InitTimeout
	if initTimeout <= 0 {
		initTimeout = 15 * time.Second
	}
	callTimeout := opts.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 120 * time.Second
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	c := &MCPClient{
		upstream:    upstream,
		client:      raw,
		limiter:     limiter,
		ids:         &RequestIDGenerator{},
		retryCfg:    pferrors.DefaultRetryConfig(),
		callTimeout: callTimeout,
		logger:      slog.Default(),
		verbose:     opts.Verbose,
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: version}
	initReq.Params.Capabilities = mcp.ClientCapabilities{}

	if _, err := raw.Initialize(ctx, initReq); err != nil {
		_ = raw.Close()
		return nil, pferrors.NewTransportErrorWithCause(upstream, "initialize", "MCP handshake failed", err)
	}

	c.logDebug("tool server started", "command", command)
	return c, nil
}

// Invoke executes one named operation. Rate limiting applies before the call;
// replies carrying a rate-limit/unavailable status are retried with backoff.
func (c *MCPClient) Invoke(ctx context.Context, operation string, args map[string]any) (string, error) {
	reqID := c.ids.Next()

	return pferrors.RetryWithResult(ctx, c.retryCfg, func() (string, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", pferrors.NewTransportErrorWithCause(c.upstream, operation, "rate limiter wait cancelled", err)
		}

		c.logDebug("invoking operation", "request_id", reqID, "operation", operation)

		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()

		req := mcp.CallToolRequest{}
		req.Params.Name = operation
		req.Params.Arguments = args

		start := time.Now()
		res, err := c.client.CallTool(callCtx, req)
		if err != nil {
			return "", pferrors.NewTransportErrorWithCause(c.upstream, operation, "tool call failed", err)
		}

		text := firstTextContent(res)

		if res.IsError {
			return "", errorFromToolResult(c.upstream, operation, text)
		}

		c.logDebug("operation completed",
			"request_id", reqID,
			"operation", operation,
			"duration_ms", time.Since(start).Milliseconds(),
			"reply_bytes", len(text))

		return text, nil
	})
}

// Close terminates the tool server subprocess.
func (c *MCPClient) Close() error {
	if err := c.client.Close(); err != nil {
		return pferrors.NewTransportErrorWithCause(c.upstream, "close", "failed to stop tool server", err)
	}
	return nil
}

// firstTextContent returns the first text block of a tool result, matching
// the upstream convention that replies are a single markdown document.
func firstTextContent(res *mcp.CallToolResult) string {
	for _, content := range res.Content {
		if tc, ok := mcp.AsTextContent(content); ok {
			return tc.Text
		}
	}
	return ""
}

func (c *MCPClient) logDebug(msg string, args ...any) {
	if c.verbose {
		c.logger.Debug(fmt.Sprintf("[transport:%s] %s", c.upstream, msg), args...)
	}
}

// Manager owns the tool-server clients for all upstreams.
type Manager struct {
	tracker *MCPClient
	docs    *MCPClient
}

// NewManager starts the tracker and docs tool servers from configuration.
// Each upstream gets its own rate limiter so pacing one never starves the
// other.
func NewManager(cfg *config.Config, version string, verbose bool) (*Manager, error) {
	limits := cfg.Limits

	opts := func() ClientOptions {
		return ClientOptions{
			Limiter:     NewLimiter(limits.RequestsPerSecond, limits.Burst),
			InitTimeout: time.Duration(limits.InitTimeoutSecs) * time.Second,
			CallTimeout: time.Duration(limits.CallTimeoutSecs) * time.Second,
			Version:     version,
			Verbose:     verbose,
		}
	}

	tracker, err := NewMCPClient("tracker", cfg.Tracker.Command, cfg.Tracker.Args, cfg.Tracker.Env, opts())
	if err != nil {
		return nil, err
	}

	docs, err := NewMCPClient("docs", cfg.Docs.Command, cfg.Docs.Args, cfg.Docs.Env, opts())
	if err != nil {
		_ = tracker.Close()
		return nil, err
	}

	return &Manager{tracker: tracker, docs: docs}, nil
}

// Tracker returns the ticket-tracker invoker.
func (m *Manager) Tracker() Invoker { return m.tracker }

// Docs returns the documentation-store invoker.
func (m *Manager) Docs() Invoker { return m.docs }

// Close stops all tool servers, returning the first error encountered.
func (m *Manager) Close() error {
	var firstErr error
	if m.tracker != nil {
		if err := m.tracker.Close(); err != nil {
			firstErr = err
		}
	}
	if m.docs != nil {
		if err := m.docs.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
