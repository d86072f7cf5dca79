// Package wal implements the per-table write-ahead log. Every mutation is
// appended and synced here before it becomes visible in the memstore, so a
// crash between append and flush loses nothing.
package wal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"tablekv/internal/storage/record"
	errs "tablekv/pkg/errors"
)

// FileName is the WAL file inside each table directory. It is truncated on
// flush, once its contents are durably covered by a segment.
const FileName = "wal.log"

// Entry is one logged mutation. Entries are framed one JSON object per line
// so a truncated trailing entry is detectable on replay.
type Entry struct {
	Seq    uint64        `json:"seq"`
	Record record.Record `json:"record"`
}

type WAL struct {
	path      string
	file      *os.File
	seq       uint64
	truncated bool
}

// Open opens or creates the log at path. The returned WAL continues the
// sequence numbering after the last well-formed entry on disk. A corrupt
// trailing entry is truncated away before the log accepts new appends, so
// the append handle never writes into the middle of a partial line.
func Open(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open wal: %w", err)
	}

	w := &WAL{path: path, file: file}
	entries, goodBytes, err := w.replay()
	if err != nil {
		if !errors.Is(err, errs.ErrWALCorruption) {
			file.Close()
			return nil, err
		}
		if err := file.Truncate(goodBytes); err != nil {
			file.Close()
			return nil, fmt.Errorf("truncate corrupt wal tail: %w", err)
		}
		if err := file.Sync(); err != nil {
			file.Close()
			return nil, fmt.Errorf("sync wal: %w", err)
		}
		w.truncated = true
	}
	if len(entries) > 0 {
		w.seq = entries[len(entries)-1].Seq
	}
	return w, nil
}

// Append durably logs the record and returns its sequence number. The write
// is synced before returning; this is the durability point that precedes
// in-memory visibility.
func (w *WAL) Append(rec record.Record) (uint64, error) {
	entry := Entry{Seq: w.seq + 1, Record: rec}
	data, err := json.Marshal(entry)
	if err != nil {
		return 0, fmt.Errorf("encode wal entry: %w", err)
	}
	data = append(data, '\n')

	if _, err := w.file.Write(data); err != nil {
		return 0, fmt.Errorf("append wal entry: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return 0, fmt.Errorf("sync wal: %w", err)
	}

	w.seq = entry.Seq
	return entry.Seq, nil
}

// Replay reads all entries since the last rotation, in sequence order.
// A malformed or truncated entry ends the replay: the well-formed prefix is
// returned together with ErrWALCorruption so the caller can report the
// anomaly without losing committed entries.
func (w *WAL) Replay() ([]Entry, error) {
	entries, _, err := w.replay()
	return entries, err
}

// replay additionally reports the byte offset just past the last well-formed
// entry, which Open uses as the truncation point on corruption recovery.
func (w *WAL) replay() ([]Entry, int64, error) {
	src, err := os.Open(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open wal for replay: %w", err)
	}
	defer src.Close()

	var entries []Entry
	var offset, goodBytes int64
	reader := bufio.NewReader(src)
	for {
		line, err := reader.ReadBytes('\n')
		offset += int64(len(line))
		if len(bytes.TrimSpace(line)) > 0 {
			var entry Entry
			if jsonErr := json.Unmarshal(line, &entry); jsonErr != nil {
				return entries, goodBytes, fmt.Errorf("%w: entry after seq %d", errs.ErrWALCorruption, lastSeq(entries))
			}
			entries = append(entries, entry)
			goodBytes = offset
		}
		if err == io.EOF {
			return entries, goodBytes, nil
		}
		if err != nil {
			return entries, goodBytes, fmt.Errorf("read wal: %w", err)
		}
	}
}

// Rotate clears the log. Callers must only rotate after the logged records
// are durably reflected in a segment.
func (w *WAL) Rotate() error {
	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("truncate wal: %w", err)
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind wal: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync wal: %w", err)
	}
	return nil
}

// Seq returns the sequence number of the last appended entry.
func (w *WAL) Seq() uint64 {
	return w.seq
}

// TruncatedTail reports whether Open dropped a corrupt trailing entry.
func (w *WAL) TruncatedTail() bool {
	return w.truncated
}

func (w *WAL) Close() error {
	return w.file.Close()
}

func lastSeq(entries []Entry) uint64 {
	if len(entries) == 0 {
		return 0
	}
	return entries[len(entries)-1].Seq
}
