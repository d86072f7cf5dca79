// Package memstore holds a table's mutable in-memory state: the most recent
// record per key, written through the WAL before it becomes visible here.
package memstore

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"tablekv/internal/storage/record"
	"tablekv/internal/storage/wal"
)

const recordOverhead = 48 // rough per-entry bookkeeping for size accounting

type Memstore struct {
	mu      sync.RWMutex
	wal     *wal.WAL
	records map[string]record.Record

	// versions tracks the highest version ever seen per key. It survives
	// Clear so versions stay strictly increasing across flushes.
	versions map[string]uint64

	size int64
}

func New(w *wal.WAL) *Memstore {
	return &Memstore{
		wal:      w,
		records:  make(map[string]record.Record),
		versions: make(map[string]uint64),
	}
}

// Set writes a new version of key. The record is appended to the WAL first;
// only on success does it become visible in memory.
func (m *Memstore) Set(key, value string, ttl time.Duration) (record.Record, error) {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).UnixNano()
	}
	rec := record.Record{
		Key:       key,
		Value:     value,
		ExpiresAt: expiresAt,
	}
	return m.apply(rec)
}

// Delete writes a tombstone version of key. The key is not physically
// removed; the tombstone shadows older records until compaction.
func (m *Memstore) Delete(key string) (record.Record, error) {
	rec := record.Record{
		Key:       key,
		Tombstone: true,
	}
	return m.apply(rec)
}

func (m *Memstore) apply(rec record.Record) (record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.Version = m.versions[rec.Key] + 1
	if _, err := m.wal.Append(rec); err != nil {
		return record.Record{}, fmt.Errorf("wal append: %w", err)
	}

	if old, ok := m.records[rec.Key]; ok {
		m.size -= int64(len(old.Key)+len(old.Value)) + recordOverhead
	}
	m.records[rec.Key] = rec
	m.versions[rec.Key] = rec.Version
	m.size += int64(len(rec.Key)+len(rec.Value)) + recordOverhead
	return rec, nil
}

// Get returns the memstore's record for key, if any. Tombstones and expired
// records are returned as-is: if the memstore holds an entry for a key, that
// entry is authoritative and the caller must not fall back to segments.
func (m *Memstore) Get(key string) (record.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	return rec, ok
}

// Snapshot returns a point-in-time copy of all records, sorted by key.
// Tombstones and expired entries are included; they are resolved at
// compaction, not at flush.
func (m *Memstore) Snapshot() []record.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]record.Record, 0, len(m.records))
	for _, rec := range m.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })
	return records
}

// Restore applies replayed WAL entries directly, without re-appending them.
// Used once at table open to rebuild the state at the last unflushed write.
func (m *Memstore) Restore(entries []wal.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range entries {
		rec := entry.Record
		if old, ok := m.records[rec.Key]; ok {
			if !rec.Newer(old) {
				continue
			}
			m.size -= int64(len(old.Key)+len(old.Value)) + recordOverhead
		}
		m.records[rec.Key] = rec
		m.size += int64(len(rec.Key)+len(rec.Value)) + recordOverhead
		if rec.Version > m.versions[rec.Key] {
			m.versions[rec.Key] = rec.Version
		}
	}
}

// SeedVersion raises the known version floor for key, so the next write to
// key is versioned above anything already persisted in segments.
func (m *Memstore) SeedVersion(key string, version uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if version > m.versions[key] {
		m.versions[key] = version
	}
}

// Version returns the highest version known for key, 0 if unseen.
func (m *Memstore) Version(key string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versions[key]
}

// Clear drops all records after a successful flush. Version tracking is
// retained.
func (m *Memstore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]record.Record)
	m.size = 0
}

// Len returns the number of resident records, tombstones included.
func (m *Memstore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Size returns the approximate resident byte size.
func (m *Memstore) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}
