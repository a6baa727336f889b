package events

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLog_Record(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "escalations.jsonl")
	a, err := NewAuditLog(path, 0)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Record(Event{
		Type:      TypeTierFired,
		Timestamp: time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
		TaskUID:   "deadbeef",
		Policy:    "deadline",
		Tier:      2,
		Details:   map[string]any{"actions": []string{"message"}},
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry AuditEntry
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "tier_fired", entry.EventType)
	assert.Equal(t, "deadbeef", entry.TaskUID)
	assert.Equal(t, 2, entry.Tier)
}

func TestAuditLog_Rotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "escalations.jsonl")
	a, err := NewAuditLog(path, 200) // tiny cap to force rotation
	require.NoError(t, err)
	defer a.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, a.Record(Event{Type: TypeTierFired, TaskUID: "cafe0123"}))
	}

	archived, err := filepath.Glob(filepath.Join(dir, "archive", "escalations.jsonl.*"))
	require.NoError(t, err)
	assert.NotEmpty(t, archived, "expected rotation to archive the log")

	// Current file still usable after rotation.
	require.NoError(t, a.Record(Event{Type: TypeTierFired}))
}
