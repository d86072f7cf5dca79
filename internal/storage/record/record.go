// Package record defines the unit of data the engine stores: one versioned,
// optionally expiring value (or tombstone) for a key.
package record

import "time"

// Record is the authoritative unit of data for one key. Versions are
// strictly increasing per key; the highest version wins everywhere.
type Record struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Version   uint64 `json:"version"`
	ExpiresAt int64  `json:"expires_at,omitempty"` // unix nanoseconds, 0 means no expiry
	Tombstone bool   `json:"tombstone,omitempty"`
}

// Expired reports whether the record's TTL has passed at the given instant.
// Records without an expiry never expire.
func (r Record) Expired(now time.Time) bool {
	return r.ExpiresAt != 0 && now.UnixNano() >= r.ExpiresAt
}

// Live reports whether the record represents a readable value: not a
// tombstone and not expired.
func (r Record) Live(now time.Time) bool {
	return !r.Tombstone && !r.Expired(now)
}

// Newer reports whether r supersedes other. Equal versions never supersede.
func (r Record) Newer(other Record) bool {
	return r.Version > other.Version
}
