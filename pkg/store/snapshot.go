// Package store persists run outputs: the versioned context snapshot and
// the human-readable artifact files.
package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	pferrors "github.com/pbelyakov/planforge/pkg/errors"
	"github.com/pbelyakov/planforge/pkg/github"
	"github.com/pbelyakov/planforge/pkg/knowledge"
	"github.com/pbelyakov/planforge/pkg/taskctx"
	"github.com/pbelyakov/planforge/pkg/tracker"
)

// SchemaVersion is written into every snapshot. Loading a different version
// logs a warning and proceeds with whatever decodes.
const SchemaVersion = 1

// snapshotFile is the on-disk shape of a context snapshot.
type snapshotFile struct {
	Version   int       `json:"version"`
	TicketKey string    `json:"ticket_key"`
	Timestamp time.Time `json:"timestamp"`

	Ticket    *tracker.Ticket   `json:"ticket,omitempty"`
	Knowledge *knowledge.Bundle `json:"knowledge,omitempty"`
	GitHub    *github.Context   `json:"github,omitempty"`
	Errors    []string          `json:"errors"`
}

// snapshotPath is outputDir/<KEY>/<KEY>_context_store.json.
func snapshotPath(outputDir, ticketKey string) string {
	return filepath.Join(outputDir, ticketKey, ticketKey+"_context_store.json")
}

// SaveSnapshot serializes the aggregated context so a later invocation can
// skip the retrieval stages. Returns the file path.
func SaveSnapshot(c *taskctx.Context, outputDir string) (string, error) {
	dir := filepath.Join(outputDir, c.TicketKey)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", pferrors.NewStoreErrorWithCause("save_snapshot", dir, "failed to create output directory", err)
	}

	data, err := json.MarshalIndent(snapshotFile{
		Version:   SchemaVersion,
		TicketKey: c.TicketKey,
		Timestamp: c.Timestamp,
		Ticket:    c.Ticket,
		Knowledge: c.Knowledge,
		GitHub:    c.GitHub,
		Errors:    c.Errors,
	}, "", "  ")
	if err != nil {
		return "", pferrors.NewStoreErrorWithCause("save_snapshot", dir, "failed to serialize context", err)
	}

	path := snapshotPath(outputDir, c.TicketKey)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", pferrors.NewStoreErrorWithCause("save_snapshot", path, "failed to write snapshot", err)
	}

	slog.Info("saved context snapshot", "path", path)
	return path, nil
}

// LoadSnapshot reads a previously saved context. A missing file is not an
// error: it returns (nil, nil). A version mismatch is logged and tolerated;
// fields the stored version lacks stay zero.
func LoadSnapshot(ticketKey, outputDir string) (*taskctx.Context, error) {
	path := snapshotPath(outputDir, ticketKey)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, pferrors.NewStoreErrorWithCause("load_snapshot", path, "failed to read snapshot", err)
	}

	var f snapshotFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, pferrors.NewStoreErrorWithCause("load_snapshot", path, "failed to decode snapshot", err)
	}

	if f.Version != SchemaVersion {
		slog.Warn("context snapshot version mismatch",
			"path", path, "found", f.Version, "expected", SchemaVersion)
	}

	c := &taskctx.Context{
		TicketKey: f.TicketKey,
		Timestamp: f.Timestamp,
		Ticket:    f.Ticket,
		Knowledge: f.Knowledge,
		GitHub:    f.GitHub,
		Errors:    f.Errors,
	}
	if c.TicketKey == "" {
		c.TicketKey = ticketKey
	}

	slog.Info("loaded context snapshot", "path", path)
	return c, nil
}
