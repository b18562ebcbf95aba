package tracker

import (
	"context"
	"log/slog"

	pferrors "github.com/pbelyakov/planforge/pkg/errors"
	"github.com/pbelyakov/planforge/pkg/transport"
)

// Compile-time interface check
var _ Service = (*Client)(nil)

// Client implements Service on top of the tracker tool server.
type Client struct {
	invoker transport.Invoker
	logger  *slog.Logger
}

// NewClient creates a tracker client over the given invoker.
func NewClient(invoker transport.Invoker) *Client {
	return &Client{
		invoker: invoker,
		logger:  slog.Default(),
	}
}

// GetTicket fetches a ticket and its comments. A comment fetch failure is
// logged and leaves the ticket without comments rather than failing the
// whole read.
func (c *Client) GetTicket(ctx context.Context, key string) (*Ticket, error) {
	reply, err := c.invoker.Invoke(ctx, "jira_get_issue", map[string]any{
		"issue_key": key,
	})
	if err != nil {
		return nil, pferrors.NewTrackerErrorWithCause("get_ticket", key, "failed to fetch ticket", err)
	}

	t := parseTicket(key, reply)

	commentsReply, err := c.invoker.Invoke(ctx, "jira_get_comments", map[string]any{
		"issue_key": key,
	})
	if err != nil {
		c.logger.Warn("failed to fetch ticket comments", "ticket", key, "error", err)
	} else {
		t.Comments = parseComments(commentsReply)
	}

	return t, nil
}

// AddComment posts a markdown comment on a ticket.
func (c *Client) AddComment(ctx context.Context, key, body string) error {
	_, err := c.invoker.Invoke(ctx, "jira_add_comment", map[string]any{
		"issue_key": key,
		"body":      body,
	})
	if err != nil {
		return pferrors.NewTrackerErrorWithCause("add_comment", key, "failed to add comment", err)
	}
	return nil
}

// TransitionTicket moves a ticket to the named workflow status.
func (c *Client) TransitionTicket(ctx context.Context, key, status string) error {
	_, err := c.invoker.Invoke(ctx, "jira_transition_issue", map[string]any{
		"issue_key":       key,
		"transition_name": status,
	})
	if err != nil {
		return pferrors.NewTrackerErrorWithCause("transition_ticket", key, "failed to transition ticket", err)
	}
	return nil
}

// CreateTicket creates a new ticket and returns its key, parsed from the
// tool server's "Created issue: KEY" reply.
func (c *Client) CreateTicket(ctx context.Context, projectKey, issueType, summary, description string) (string, error) {
	args := map[string]any{
		"project_key": projectKey,
		"issue_type":  issueType,
		"summary":     summary,
	}
	if description != "" {
		args["description"] = description
	}

	reply, err := c.invoker.Invoke(ctx, "jira_create_issue", args)
	if err != nil {
		return "", pferrors.NewTrackerErrorWithCause("create_ticket", "", "failed to create ticket", err)
	}

	key := ticketKeyInText.FindString(reply)
	if key == "" {
		return "", pferrors.NewTrackerError("create_ticket", "could not parse created ticket key from reply")
	}

	return key, nil
}

// LinkTickets creates a link of the given type between two tickets.
func (c *Client) LinkTickets(ctx context.Context, fromKey, toKey, linkType string) error {
	_, err := c.invoker.Invoke(ctx, "jira_link_issues", map[string]any{
		"from_key":  fromKey,
		"to_key":    toKey,
		"link_type": linkType,
	})
	if err != nil {
		return pferrors.NewTrackerErrorWithCause("link_tickets", fromKey, "failed to link tickets", err)
	}
	return nil
}
