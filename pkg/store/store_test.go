package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbelyakov/planforge/pkg/knowledge"
	"github.com/pbelyakov/planforge/pkg/plan"
	"github.com/pbelyakov/planforge/pkg/taskctx"
	"github.com/pbelyakov/planforge/pkg/tracker"
)

func sampleContext() *taskctx.Context {
	c := taskctx.New("PROJ-42")
	c.Ticket = &tracker.Ticket{
		Key:     "PROJ-42",
		Summary: "Add wallet endpoint",
	}
	c.Knowledge = &knowledge.Bundle{
		SpaceKey: "AI",
		Maturity: knowledge.MaturityExisting,
		Mandatory: []knowledge.Document{
			{ID: "500", Title: "Passport", Content: "Body."},
		},
	}
	c.Errors = []string{"one warning"}
	return c
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()

	path, err := SaveSnapshot(sampleContext(), dir)
	require.NoError(t, err)
	assert.FileExists(t, path)

	loaded, err := LoadSnapshot("PROJ-42", dir)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, "PROJ-42", loaded.TicketKey)
	assert.Equal(t, "Add wallet endpoint", loaded.Ticket.Summary)
	assert.Equal(t, knowledge.MaturityExisting, loaded.Knowledge.Maturity)
	assert.Len(t, loaded.Knowledge.Mandatory, 1)
	assert.Equal(t, []string{"one warning"}, loaded.Errors)
}

func TestLoadSnapshotMissing(t *testing.T) {
	loaded, err := LoadSnapshot("PROJ-404", t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLoadSnapshotVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	issueDir := filepath.Join(dir, "PROJ-42")
	require.NoError(t, os.MkdirAll(issueDir, 0o755))

	stored := map[string]any{
		"version":    99,
		"ticket_key": "PROJ-42",
		"timestamp":  time.Now().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(stored)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(issueDir, "PROJ-42_context_store.json"), data, 0o644))

	loaded, err := LoadSnapshot("PROJ-42", dir)
	require.NoError(t, err, "version mismatch must not be fatal")
	require.NotNil(t, loaded)
	assert.Equal(t, "PROJ-42", loaded.TicketKey)
	assert.Nil(t, loaded.Ticket, "fields the stored version lacks stay zero")
}

func TestLoadSnapshotCorrupt(t *testing.T) {
	dir := t.TempDir()
	issueDir := filepath.Join(dir, "PROJ-42")
	require.NoError(t, os.MkdirAll(issueDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(issueDir, "PROJ-42_context_store.json"), []byte("{not json"), 0o644))

	_, err := LoadSnapshot("PROJ-42", dir)
	require.Error(t, err)
}

func TestArtifacts(t *testing.T) {
	dir := t.TempDir()
	a := NewArtifacts(dir, "PROJ-42")

	ctxPath, err := a.WriteContext("# Task Context: PROJ-42", time.Now())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ctxPath, "PROJ-42_context.md"))

	promptPath, err := a.WritePrompt("deepseek-chat", 0.3, 4096, "system", "user prompt body")
	require.NoError(t, err)
	content, err := os.ReadFile(promptPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "## System Prompt")
	assert.Contains(t, string(content), "user prompt body")

	reasonPath, err := a.WriteReasoning("deepseek-chat", "stop", "raw model text", nil)
	require.NoError(t, err)
	content, err = os.ReadFile(reasonPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "raw model text")

	planPath, err := a.WritePlan("Add wallet endpoint", "deepseek-chat", plan.Sections{
		WorkPlan: "- [ ] **Step 1:** Do it",
	})
	require.NoError(t, err)
	content, err = os.ReadFile(planPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "## Steps")
	assert.Contains(t, string(content), "**Step 1:**")
	assert.Contains(t, string(content), "[Section not found in response]")
}

func TestWriteSelectionNilLog(t *testing.T) {
	a := NewArtifacts(t.TempDir(), "PROJ-42")
	path, err := a.WriteSelection(nil)
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestWriteSelection(t *testing.T) {
	a := NewArtifacts(t.TempDir(), "PROJ-42")
	path, err := a.WriteSelection(&knowledge.SelectionLog{
		Model:       "deepseek-chat",
		RawResponse: `{"selected_ids": []}`,
	})
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Document Selection Log: PROJ-42")
	assert.Contains(t, string(content), "selected_ids")
}
