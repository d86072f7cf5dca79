// Package segment implements the immutable on-disk snapshot files produced
// by flush and compaction. Segments are written to a temp name and renamed
// into place, never mutated, and retired only by compaction.
package segment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"tablekv/internal/storage/filter"
	"tablekv/internal/storage/record"
)

// SchemaVersion tags every segment file so future format changes are
// detected instead of silently misread.
const SchemaVersion = 1

const (
	namePrefix = "segment-"
	nameSuffix = ".json"
)

type fileBody struct {
	Schema  int             `json:"schema"`
	Records []record.Record `json:"records"`
}

// Segment is an opened, immutable segment file. Only the bloom filter over
// its keys is kept in memory; record data is read from disk on demand.
type Segment struct {
	path   string
	seq    uint64
	count  int
	filter filter.Filter
}

// Name returns the file name for a segment sequence number.
func Name(seq uint64) string {
	return fmt.Sprintf("%s%06d%s", namePrefix, seq, nameSuffix)
}

// ParseSeq extracts the sequence number from a segment file name.
func ParseSeq(name string) (uint64, bool) {
	if !strings.HasPrefix(name, namePrefix) || !strings.HasSuffix(name, nameSuffix) {
		return 0, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, namePrefix), nameSuffix)
	seq, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// Write durably creates segment file seq in dir from the given records.
// The data lands under a temporary name first and is renamed into place only
// after a successful sync, so a partial write never becomes a visible
// segment. Records are sorted by key for deterministic output.
func Write(dir string, seq uint64, records []record.Record) (string, error) {
	sorted := make([]record.Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	data, err := json.MarshalIndent(fileBody{Schema: SchemaVersion, Records: sorted}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode segment: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".segment-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create segment temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write segment: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("sync segment: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close segment: %w", err)
	}

	path := filepath.Join(dir, Name(seq))
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("rename segment: %w", err)
	}
	if err := syncDir(dir); err != nil {
		return "", err
	}
	return path, nil
}

// Open reads segment file seq in dir and builds its bloom filter.
func Open(dir string, seq uint64, filterBits int) (*Segment, error) {
	path := filepath.Join(dir, Name(seq))
	records, err := readRecords(path)
	if err != nil {
		return nil, err
	}

	bf := filter.NewBloomFilter(filterBits)
	for _, rec := range records {
		bf.Add([]byte(rec.Key))
	}
	return &Segment{
		path:   path,
		seq:    seq,
		count:  len(records),
		filter: bf,
	}, nil
}

// List returns the sequence numbers of all segments in dir, oldest first.
func List(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read table dir: %w", err)
	}

	var seqs []uint64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if seq, ok := ParseSeq(entry.Name()); ok {
			seqs = append(seqs, seq)
		}
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs, nil
}

// Seq returns the segment's sequence number.
func (s *Segment) Seq() uint64 {
	return s.seq
}

// Count returns the number of records in the segment, tombstones included.
func (s *Segment) Count() int {
	return s.count
}

// Lookup returns the record stored for key, if present. The bloom filter
// short-circuits the disk read for most absent keys.
func (s *Segment) Lookup(key string) (record.Record, bool, error) {
	if !s.filter.MayContain([]byte(key)) {
		return record.Record{}, false, nil
	}

	records, err := readRecords(s.path)
	if err != nil {
		return record.Record{}, false, err
	}
	// Records are sorted by key.
	i := sort.Search(len(records), func(i int) bool { return records[i].Key >= key })
	if i < len(records) && records[i].Key == key {
		return records[i], true, nil
	}
	return record.Record{}, false, nil
}

// Records reads the full record set, in key order.
func (s *Segment) Records() ([]record.Record, error) {
	return readRecords(s.path)
}

// Remove deletes the segment file. Used by compaction to retire inputs
// after the merged output is durable.
func (s *Segment) Remove() error {
	if err := os.Remove(s.path); err != nil {
		return fmt.Errorf("remove segment: %w", err)
	}
	return nil
}

func readRecords(path string) ([]record.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read segment: %w", err)
	}

	var body fileBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("decode segment %s: %w", filepath.Base(path), err)
	}
	if body.Schema != SchemaVersion {
		return nil, fmt.Errorf("segment %s: unsupported schema version %d", filepath.Base(path), body.Schema)
	}
	return body.Records, nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open dir for sync: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync dir: %w", err)
	}
	return nil
}
