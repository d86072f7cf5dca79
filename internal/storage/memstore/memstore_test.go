package memstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablekv/internal/storage/record"
	"tablekv/internal/storage/wal"
)

func newTestMemstore(t *testing.T) (*Memstore, *wal.WAL) {
	t.Helper()
	w, err := wal.Open(filepath.Join(t.TempDir(), wal.FileName))
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return New(w), w
}

func TestSetAssignsIncreasingVersions(t *testing.T) {
	m, _ := newTestMemstore(t)

	rec, err := m.Set("k", "v1", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rec.Version)

	rec, err = m.Set("k", "v2", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rec.Version)

	// Independent keys version independently.
	rec, err = m.Set("other", "v", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rec.Version)
}

func TestSetAppendsToWALBeforeApply(t *testing.T) {
	m, w := newTestMemstore(t)

	_, err := m.Set("k", "v", 0)
	require.NoError(t, err)

	entries, err := w.Replay()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "k", entries[0].Record.Key)
	assert.Equal(t, "v", entries[0].Record.Value)
}

func TestGetReturnsRawRecord(t *testing.T) {
	m, _ := newTestMemstore(t)

	_, err := m.Set("k", "v", 0)
	require.NoError(t, err)

	rec, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", rec.Value)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestDeleteWritesTombstone(t *testing.T) {
	m, _ := newTestMemstore(t)

	_, err := m.Set("k", "v", 0)
	require.NoError(t, err)
	rec, err := m.Delete("k")
	require.NoError(t, err)
	assert.True(t, rec.Tombstone)
	assert.Equal(t, uint64(2), rec.Version)

	// The key is still physically present.
	stored, ok := m.Get("k")
	require.True(t, ok)
	assert.True(t, stored.Tombstone)
	assert.Equal(t, 1, m.Len())
}

func TestSetWithTTLComputesAbsoluteExpiry(t *testing.T) {
	m, _ := newTestMemstore(t)

	before := time.Now()
	rec, err := m.Set("k", "v", time.Minute)
	require.NoError(t, err)

	expiry := time.Unix(0, rec.ExpiresAt)
	assert.True(t, expiry.After(before.Add(59*time.Second)))
	assert.True(t, expiry.Before(before.Add(61*time.Second)))
}

func TestSnapshotSortedAndIsolated(t *testing.T) {
	m, _ := newTestMemstore(t)

	for _, key := range []string{"c", "a", "b"} {
		_, err := m.Set(key, "v-"+key, 0)
		require.NoError(t, err)
	}

	snapshot := m.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "a", snapshot[0].Key)
	assert.Equal(t, "b", snapshot[1].Key)
	assert.Equal(t, "c", snapshot[2].Key)

	// Later writes must not leak into the snapshot.
	_, err := m.Set("d", "v", 0)
	require.NoError(t, err)
	assert.Len(t, snapshot, 3)
}

func TestClearKeepsVersionTracking(t *testing.T) {
	m, _ := newTestMemstore(t)

	_, err := m.Set("k", "v1", 0)
	require.NoError(t, err)
	m.Clear()

	assert.Zero(t, m.Len())
	assert.Zero(t, m.Size())

	// Versions keep increasing after a flush-style clear.
	rec, err := m.Set("k", "v2", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rec.Version)
}

func TestRestoreRebuildsState(t *testing.T) {
	m, _ := newTestMemstore(t)

	entries := []wal.Entry{
		{Seq: 1, Record: record.Record{Key: "a", Value: "old", Version: 1}},
		{Seq: 2, Record: record.Record{Key: "a", Value: "new", Version: 2}},
		{Seq: 3, Record: record.Record{Key: "b", Value: "x", Version: 1}},
	}
	m.Restore(entries)

	rec, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, "new", rec.Value)
	assert.Equal(t, uint64(2), rec.Version)

	// Next write continues the restored version sequence.
	next, err := m.Set("a", "newer", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), next.Version)
}

func TestSeedVersionRaisesFloorOnly(t *testing.T) {
	m, _ := newTestMemstore(t)

	m.SeedVersion("k", 5)
	assert.Equal(t, uint64(5), m.Version("k"))

	m.SeedVersion("k", 3) // lower seed is ignored
	assert.Equal(t, uint64(5), m.Version("k"))

	rec, err := m.Set("k", "v", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), rec.Version)
}

func TestSizeAccounting(t *testing.T) {
	m, _ := newTestMemstore(t)

	assert.Zero(t, m.Size())
	_, err := m.Set("key", "value", 0)
	require.NoError(t, err)
	first := m.Size()
	assert.Positive(t, first)

	// Overwriting the same key must not grow the size unboundedly.
	_, err = m.Set("key", "value", 0)
	require.NoError(t, err)
	assert.Equal(t, first, m.Size())
}
