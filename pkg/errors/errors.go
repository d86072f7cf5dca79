package errors

import "errors"

var (
	// Namespace errors
	ErrNamespaceNotFound = errors.New("namespace not found")
	ErrNamespaceExists   = errors.New("namespace already exists")
	ErrNoNamespace       = errors.New("no namespace selected")

	// Table errors
	ErrTableNotFound = errors.New("table not found")
	ErrTableExists   = errors.New("table already exists")

	// Key errors
	ErrKeyNotFound = errors.New("key not found")
	ErrInvalidTTL  = errors.New("invalid ttl")

	// Storage errors
	ErrWALCorruption = errors.New("wal entry corrupted")
	ErrSegmentWrite  = errors.New("segment write failed")
)
