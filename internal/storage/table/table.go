// Package table ties one table's WAL, memstore and segment files together
// into a durable storage engine with flush and compaction.
package table

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"tablekv/internal/config"
	"tablekv/internal/storage/memstore"
	"tablekv/internal/storage/record"
	"tablekv/internal/storage/segment"
	"tablekv/internal/storage/wal"
	errs "tablekv/pkg/errors"
	"tablekv/pkg/logger"
)

// Table is the engine state for one namespace/table pair. All mutations,
// flushes and compactions on a table are serialized by its lock; reads take
// the shared side and may run concurrently with each other.
type Table struct {
	namespace string
	name      string
	dir       string
	conf      *config.Config

	mu       sync.RWMutex
	wal      *wal.WAL
	mem      *memstore.Memstore
	segments []*segment.Segment // oldest to newest
	nextSeq  uint64

	recovered int
	corrupted bool
}

// Open loads a table's durable state from dir: segments are enumerated in
// recency order and any WAL entries not yet covered by a segment are
// replayed into a fresh memstore. A corrupt trailing WAL entry is dropped
// and reported as a warning; committed entries are never lost.
func Open(conf *config.Config, namespace, name, dir string) (*Table, error) {
	seqs, err := segment.List(dir)
	if err != nil {
		return nil, err
	}

	t := &Table{
		namespace: namespace,
		name:      name,
		dir:       dir,
		conf:      conf,
		nextSeq:   1,
	}
	for _, seq := range seqs {
		seg, err := segment.Open(dir, seq, conf.BloomFilterBits)
		if err != nil {
			return nil, err
		}
		t.segments = append(t.segments, seg)
		t.nextSeq = seq + 1
	}

	w, err := wal.Open(filepath.Join(dir, wal.FileName))
	if err != nil {
		return nil, err
	}
	t.wal = w
	t.mem = memstore.New(w)

	if w.TruncatedTail() {
		t.corrupted = true
		logger.Warn("wal corruption, dropped corrupt tail",
			"namespace", namespace, "table", name)
	}
	entries, err := w.Replay()
	if err != nil {
		w.Close()
		return nil, err
	}
	t.mem.Restore(entries)
	t.recovered = len(entries)

	logger.Debug("table opened",
		"namespace", namespace, "table", name,
		"segments", len(t.segments), "replayed", len(entries))
	return t, nil
}

// Set writes a new version of key, optionally expiring after ttl.
// A ttl of zero means no expiry; negative ttls are rejected.
func (t *Table) Set(key, value string, ttl time.Duration) error {
	if ttl < 0 {
		return errs.ErrInvalidTTL
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.seedVersionLocked(key); err != nil {
		return err
	}
	if _, err := t.mem.Set(key, value, ttl); err != nil {
		return err
	}

	if t.conf.MemstoreMaxBytes > 0 && t.mem.Size() >= t.conf.MemstoreMaxBytes {
		// Auto-flush failure is not a write failure: the record is already
		// durable in the WAL and visible in the memstore.
		if err := t.flushLocked(); err != nil {
			logger.Warn("auto flush failed",
				"namespace", t.namespace, "table", t.name, "err", err)
		}
	}
	return nil
}

// Delete writes a tombstone for key. The tombstone shadows all older
// versions until compaction removes them.
func (t *Table) Delete(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.seedVersionLocked(key); err != nil {
		return err
	}
	_, err := t.mem.Delete(key)
	return err
}

// Get returns the live value for key. The memstore entry, if present, is
// authoritative; otherwise the highest-version record across all segments
// decides. Tombstoned and expired records read as not found.
func (t *Table) Get(key string) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := time.Now()
	if rec, ok := t.mem.Get(key); ok {
		if !rec.Live(now) {
			return "", errs.ErrKeyNotFound
		}
		return rec.Value, nil
	}

	var best record.Record
	var found bool
	for _, seg := range t.segments {
		rec, ok, err := seg.Lookup(key)
		if err != nil {
			return "", err
		}
		if ok && (!found || rec.Newer(best)) {
			best = rec
			found = true
		}
	}
	if !found || !best.Live(now) {
		return "", errs.ErrKeyNotFound
	}
	return best.Value, nil
}

// Flush snapshots the memstore into a new segment, rotates the WAL and
// clears the memstore. Flushing an empty memstore is a no-op. On failure
// the memstore and WAL are left untouched.
func (t *Table) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushLocked()
}

func (t *Table) flushLocked() error {
	snapshot := t.mem.Snapshot()
	if len(snapshot) == 0 {
		return nil
	}

	seq := t.nextSeq
	if _, err := segment.Write(t.dir, seq, snapshot); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrSegmentWrite, err)
	}
	seg, err := segment.Open(t.dir, seq, t.conf.BloomFilterBits)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrSegmentWrite, err)
	}

	// The segment is durable from here on. A crash before the rotate only
	// means the WAL replays records whose versions the segment already
	// holds, which the version merge resolves.
	if err := t.wal.Rotate(); err != nil {
		return err
	}
	t.mem.Clear()
	t.segments = append(t.segments, seg)
	t.nextSeq = seq + 1

	logger.Info("memstore flushed",
		"namespace", t.namespace, "table", t.name,
		"segment", seq, "records", len(snapshot))
	return nil
}

// Compact stream-merges all segments into at most one, keeping only the
// highest version per key and dropping tombstones and records expired at
// compaction time. Inputs are retired only after the output is durable.
// The memstore is never touched.
func (t *Table) Compact() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.segments) == 0 {
		return nil
	}

	merged := make(map[string]record.Record)
	for _, seg := range t.segments {
		records, err := seg.Records()
		if err != nil {
			return err
		}
		for _, rec := range records {
			if cur, ok := merged[rec.Key]; !ok || rec.Newer(cur) {
				merged[rec.Key] = rec
			}
		}
	}

	now := time.Now()
	survivors := make([]record.Record, 0, len(merged))
	for _, rec := range merged {
		if rec.Live(now) {
			survivors = append(survivors, rec)
		}
	}

	inputs := t.segments
	var output []*segment.Segment
	if len(survivors) > 0 {
		seq := t.nextSeq
		if _, err := segment.Write(t.dir, seq, survivors); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrSegmentWrite, err)
		}
		seg, err := segment.Open(t.dir, seq, t.conf.BloomFilterBits)
		if err != nil {
			return fmt.Errorf("%w: %v", errs.ErrSegmentWrite, err)
		}
		output = append(output, seg)
		t.nextSeq = seq + 1
	}

	for _, seg := range inputs {
		if err := seg.Remove(); err != nil {
			// A leftover input is reconciled by the next compaction: the
			// version merge is idempotent.
			logger.Warn("failed to retire segment",
				"namespace", t.namespace, "table", t.name,
				"segment", seg.Seq(), "err", err)
		}
	}
	t.segments = output

	logger.Info("table compacted",
		"namespace", t.namespace, "table", t.name,
		"inputs", len(inputs), "survivors", len(survivors))
	return nil
}

// seedVersionLocked makes sure version numbering for key continues above
// anything already persisted in segments, so versions stay strictly
// increasing across flushes and restarts.
func (t *Table) seedVersionLocked(key string) error {
	if t.mem.Version(key) > 0 {
		return nil
	}
	for _, seg := range t.segments {
		rec, ok, err := seg.Lookup(key)
		if err != nil {
			return err
		}
		if ok {
			t.mem.SeedVersion(key, rec.Version)
		}
	}
	return nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Namespace returns the owning namespace.
func (t *Table) Namespace() string { return t.namespace }

// SegmentCount returns the number of live segment files.
func (t *Table) SegmentCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.segments)
}

// MemstoreLen returns the number of records resident in the memstore.
func (t *Table) MemstoreLen() int {
	return t.mem.Len()
}

// Recovered returns how many WAL entries were replayed at open.
func (t *Table) Recovered() int { return t.recovered }

// ReplayCorrupted reports whether open dropped a corrupt WAL tail.
func (t *Table) ReplayCorrupted() bool { return t.corrupted }

// Close releases the table's WAL handle. In-memory state is discarded; it
// is rebuilt from the WAL on the next open.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.wal.Close()
}
