package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storywatch/storyfold/internal/store"
)

func TestStatusEmptyDatabase(t *testing.T) {
	dbPath := newTestDB(t)

	rootOpts := &RootOptions{Format: "text"}
	cmd := NewStatusCommand(rootOpts)
	out, err := execCommand(t, cmd, "--db", dbPath)

	require.NoError(t, err)
	assert.Contains(t, out, "Database overview:")
	assert.Contains(t, out, "Documents: 0")
	assert.Contains(t, out, "Events:    0 (0 masters, 0 children)")
	assert.Contains(t, out, "(no events)")
	assert.Contains(t, out, "(no runs recorded)")
}

func TestStatusSeededDatabase(t *testing.T) {
	dbPath := newTestDB(t)
	seedHierarchy(t, dbPath)

	rootOpts := &RootOptions{Format: "text"}
	cmd := NewStatusCommand(rootOpts)
	out, err := execCommand(t, cmd, "--db", dbPath)

	require.NoError(t, err)
	assert.Contains(t, out, "Documents: 1")
	assert.Contains(t, out, "Events:    2 (1 masters, 1 children)")
	assert.Contains(t, out, "Mentions:  1 (4 articles)")
	assert.Contains(t, out, "=== Countries ===")
	assert.Contains(t, out, "KE: events 2 (1 masters, 1 children, 1 validated), mentions 1, articles 4")
}

func TestStatusShowsRecentRuns(t *testing.T) {
	dbPath := newTestDB(t)
	seedHierarchy(t, dbPath)

	rootOpts := &RootOptions{Format: "text"}
	_, err := execCommand(t, NewConsolidateCommand(rootOpts), "--db", dbPath, "--country", "KE")
	require.NoError(t, err)

	out, err := execCommand(t, NewStatusCommand(rootOpts), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "=== Recent runs ===")
	assert.Contains(t, out, "completed")
	assert.NotContains(t, out, "(no runs recorded)")
}

func TestStatusJSON(t *testing.T) {
	dbPath := newTestDB(t)
	seedHierarchy(t, dbPath)

	rootOpts := &RootOptions{Format: "json"}
	cmd := NewStatusCommand(rootOpts)
	out, err := execCommand(t, cmd, "--db", dbPath)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var report StatusReport
	require.NoError(t, json.Unmarshal(data, &report))
	require.NotNil(t, report.Overview)
	assert.Equal(t, int64(2), report.Overview.Events)
	assert.Equal(t, int64(1), report.Overview.Masters)
	assert.Equal(t, int64(1), report.Overview.Children)
	require.Len(t, report.Overview.Countries, 1)
	assert.Equal(t, "KE", report.Overview.Countries[0].Country)
	assert.Empty(t, report.RecentRuns)
}

func TestStatusBadDatabasePath(t *testing.T) {
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewStatusCommand(rootOpts)
	_, err := execCommand(t, cmd, "--db", "/nonexistent/dir/events.db")

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// Guard against the overview and the run listing drifting apart: a
// consolidation must show up in both.
func TestStatusRunCountMatchesOverview(t *testing.T) {
	dbPath := newTestDB(t)
	seedHierarchy(t, dbPath)

	rootOpts := &RootOptions{Format: "text"}
	_, err := execCommand(t, NewConsolidateCommand(rootOpts), "--db", dbPath, "--country", "KE")
	require.NoError(t, err)

	jsonOpts := &RootOptions{Format: "json"}
	out, err := execCommand(t, NewStatusCommand(jsonOpts), "--db", dbPath)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var report StatusReport
	require.NoError(t, json.Unmarshal(data, &report))

	assert.Equal(t, int64(1), report.Overview.Runs)
	require.Len(t, report.RecentRuns, 1)
	assert.Equal(t, store.RunCompleted, report.RecentRuns[0].Status)
}
