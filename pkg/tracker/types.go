// Package tracker reads and updates work items in the ticket tracker
// through its tool server.
package tracker

import "context"

// Ticket holds the fields extracted from a tracker issue.
type Ticket struct {
	Key            string
	Summary        string
	Description    string
	Type           string
	Status         string
	ProjectKey     string
	ProjectName    string
	ProjectFolder  string
	ProjectLocator string // Direct documentation link, when the ticket carries one
	Labels         []string
	Assignee       string
	ParentKey      string
	Subtasks       []string
	Created        string
	Updated        string
	Comments       []Comment
}

// Comment is a single ticket comment.
type Comment struct {
	Author  string
	Created string
	Body    string
}

// Service is the tracker surface the pipeline depends on.
type Service interface {
	GetTicket(ctx context.Context, key string) (*Ticket, error)
	AddComment(ctx context.Context, key, body string) error
	TransitionTicket(ctx context.Context, key, status string) error
	CreateTicket(ctx context.Context, projectKey, issueType, summary, description string) (string, error)
	LinkTickets(ctx context.Context, fromKey, toKey, linkType string) error
}

// FullText returns the summary and description joined for keyword search
// and relevance filtering.
func (t *Ticket) FullText() string {
	if t.Description == "" {
		return t.Summary
	}
	return t.Summary + "\n\n" + t.Description
}
