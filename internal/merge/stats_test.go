package merge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStats_Add tests accumulation across countries.
func TestStats_Add(t *testing.T) {
	var total Stats
	total.Add(Stats{MasterCount: 1, ChildCount: 2, MentionsReassigned: 5, MentionsMerged: 1, EventsDeleted: 2})
	total.Add(Stats{MasterCount: 3, MentionsReassigned: 1})

	assert.Equal(t, Stats{
		MasterCount:        4,
		ChildCount:         2,
		MentionsReassigned: 6,
		MentionsMerged:     1,
		EventsDeleted:      2,
	}, total)
}

// TestStats_IsZero tests the no-activity check.
func TestStats_IsZero(t *testing.T) {
	assert.True(t, Stats{}.IsZero())
	assert.False(t, Stats{MasterCount: 1}.IsZero())
}

// TestStats_JSONFieldNames pins the report wire format.
func TestStats_JSONFieldNames(t *testing.T) {
	data, err := json.Marshal(Stats{MasterCount: 1, MentionsReassigned: 2})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Contains(t, m, "master_count")
	assert.Contains(t, m, "child_count")
	assert.Contains(t, m, "mentions_reassigned")
	assert.Contains(t, m, "mentions_merged")
	assert.Contains(t, m, "events_deleted")
}

// TestBatchResult_Totals tests summing across mixed outcomes.
func TestBatchResult_Totals(t *testing.T) {
	batch := &BatchResult{Results: []CountryResult{
		{Country: "KE", Stats: Stats{MasterCount: 2, MentionsReassigned: 4}},
		{Country: "NG", Err: NewConfigError("NG", "boom"), Status: "failed"},
		{Country: "TZ", Stats: Stats{MasterCount: 1, EventsDeleted: 1}},
	}}

	assert.Equal(t, Stats{MasterCount: 3, MentionsReassigned: 4, EventsDeleted: 1}, batch.Totals())
	assert.Equal(t, 1, batch.FailedCount())
	assert.False(t, batch.OK())

	assert.True(t, (&BatchResult{}).OK())
}
