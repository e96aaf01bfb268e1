package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	auditLog, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { auditLog.Close() })
	return auditLog
}

func TestRecordAndListDeliveries(t *testing.T) {
	auditLog := openTestLog(t)

	cycleTime := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	auditLog.RecordDelivery(1, cycleTime, true, "")
	auditLog.RecordDelivery(2, cycleTime, false, "subscriber not connected")

	entries, err := auditLog.RecentEntries(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// newest first
	assert.Equal(t, uint(2), entries[0].SubscriberID)
	assert.False(t, entries[0].Delivered)
	assert.Equal(t, "subscriber not connected", entries[0].Detail)
	assert.Equal(t, uint(1), entries[1].SubscriberID)
	assert.True(t, entries[1].Delivered)
}

func TestRecentEntriesLimit(t *testing.T) {
	auditLog := openTestLog(t)

	cycleTime := time.Now().UTC()
	for i := 1; i <= 5; i++ {
		auditLog.RecordDelivery(uint(i), cycleTime, true, "")
	}

	entries, err := auditLog.RecentEntries(3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, uint(5), entries[0].SubscriberID)

	// non-positive limit falls back to the default window
	entries, err = auditLog.RecentEntries(0)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "audit.db")

	auditLog, err := Open(path)
	require.NoError(t, err)
	defer auditLog.Close()

	entries, err := auditLog.RecentEntries(10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
