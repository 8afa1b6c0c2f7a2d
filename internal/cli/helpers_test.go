package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/storywatch/storyfold/internal/event"
	"github.com/storywatch/storyfold/internal/store"
)

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

// newTestDB creates an empty database file with the schema applied and
// returns its path.
func newTestDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())
	return path
}

// seedHierarchy inserts a validated master with one child carrying a
// single mention, the smallest state a consolidation can act on.
func seedHierarchy(t *testing.T, path string) (masterID, childID int64) {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, st.Close()) }()

	require.NoError(t, st.InsertDocument(ctx, event.Document{
		DocID:       "doc-1",
		Country:     "KE",
		SourceName:  "Daily Nation",
		Title:       "Nairobi floods worsen",
		PublishedAt: event.Day("2025-06-01"),
	}))

	masterID, err = st.CreateEvent(ctx, event.CanonicalEvent{Name: "Nairobi Floods", Country: "KE"})
	require.NoError(t, err)
	require.NoError(t, st.SetValidated(ctx, masterID, true, time.Time{}))

	childID, err = st.CreateEvent(ctx, event.CanonicalEvent{
		Name:          "Flooding in Nairobi",
		Country:       "KE",
		MasterEventID: &masterID,
	})
	require.NoError(t, err)

	_, err = st.UpsertMention(ctx, event.Mention{
		EventID:      childID,
		Date:         event.Day("2025-06-01"),
		ArticleCount: 4,
		Headline:     "Nairobi floods worsen",
		SourceNames:  []string{"Daily Nation"},
		DocIDs:       event.NewDocSet("doc-1"),
	})
	require.NoError(t, err)
	return masterID, childID
}

// execCommand runs a command with captured combined output.
func execCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writeRegistry writes a minimal valid country registry and returns
// its directory.
func writeRegistry(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "registry")
	require.NoError(t, os.MkdirAll(dir, 0755))
	src := `package registry

country: KE: {
	name: "Kenya"
	aliases: ["Republic of Kenya"]
}

country: NG: {
	name: "Nigeria"
}

country: TZ: {
	name:    "Tanzania"
	enabled: false
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "countries.cue"), []byte(src), 0644))
	return dir
}
