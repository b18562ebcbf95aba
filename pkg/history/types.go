// Package history records completed planning runs in a local sqlite
// database so past outcomes can be listed and filtered.
package history

import "time"

// Run is one recorded planning run.
type Run struct {
	ID         string
	TicketKey  string
	Outcome    string
	Maturity   string
	Confidence float64
	TokensUsed int
	Duration   time.Duration
	OutputDir  string
	CreatedAt  time.Time
}

// QueryOptions defines filtering options for history queries.
type QueryOptions struct {
	Since         *time.Time
	Until         *time.Time
	TicketKey     string
	Outcome       string
	MinConfidence *float64
	Limit         int
}
