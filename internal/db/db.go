// Package db is the engine facade consumed by collaborators such as the
// interactive shell: catalog management plus per-table reads, writes, flush
// and compaction, all synchronous and returning typed errors.
package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tablekv/internal/catalog"
	"tablekv/internal/config"
	"tablekv/internal/metrics"
	"tablekv/internal/storage/table"
	"tablekv/pkg/logger"
)

type DB struct {
	conf     *config.Config
	catalog  *catalog.Catalog
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	created  bool
}

// Open initializes logging, metrics and the catalog for the configured
// storage root.
func Open(conf *config.Config) (*DB, error) {
	logger.Init(conf.LogLevel, conf.LogFile)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	cat, created, err := catalog.Open(conf, m)
	if err != nil {
		return nil, err
	}

	logger.Info("storage root opened", "dir", conf.Dir, "created", created)
	return &DB{
		conf:     conf,
		catalog:  cat,
		metrics:  m,
		registry: registry,
		created:  created,
	}, nil
}

// CreatedRoot reports whether Open created the storage root rather than
// opening an existing one.
func (db *DB) CreatedRoot() bool { return db.created }

// Registry exposes the metrics registry, e.g. for scraping or inspection.
func (db *DB) Registry() *prometheus.Registry { return db.registry }

// NewSession returns a fresh session with no namespace selected.
func (db *DB) NewSession() *catalog.Session {
	return catalog.NewSession()
}

func (db *DB) CreateNamespace(name string) error {
	return db.catalog.CreateNamespace(name)
}

func (db *DB) UseNamespace(sess *catalog.Session, name string) error {
	return sess.Use(db.catalog, name)
}

func (db *DB) ListNamespaces() ([]string, error) {
	return db.catalog.ListNamespaces()
}

func (db *DB) CreateTable(sess *catalog.Session, name string) error {
	namespace, err := sess.Namespace()
	if err != nil {
		return err
	}
	return db.catalog.CreateTable(namespace, name)
}

func (db *DB) ListTables(sess *catalog.Session) ([]string, error) {
	namespace, err := sess.Namespace()
	if err != nil {
		return nil, err
	}
	return db.catalog.ListTables(namespace)
}

// Set writes key=value into a table of the session's namespace. A zero ttl
// means the record never expires.
func (db *DB) Set(sess *catalog.Session, tableName, key, value string, ttl time.Duration) error {
	t, err := db.resolve(sess, tableName)
	if err != nil {
		db.metrics.IncOpError(metrics.OpSet)
		return err
	}
	if err := t.Set(key, value, ttl); err != nil {
		db.metrics.IncOpError(metrics.OpSet)
		return err
	}
	db.metrics.IncOp(metrics.OpSet)
	db.metrics.SetSegments(t.Namespace(), t.Name(), t.SegmentCount())
	return nil
}

// Get reads the live value for key from a table of the session's namespace.
func (db *DB) Get(sess *catalog.Session, tableName, key string) (string, error) {
	t, err := db.resolve(sess, tableName)
	if err != nil {
		db.metrics.IncOpError(metrics.OpGet)
		return "", err
	}
	value, err := t.Get(key)
	if err != nil {
		db.metrics.IncOpError(metrics.OpGet)
		return "", err
	}
	db.metrics.IncOp(metrics.OpGet)
	return value, nil
}

// Delete writes a tombstone for key in a table of the session's namespace.
func (db *DB) Delete(sess *catalog.Session, tableName, key string) error {
	t, err := db.resolve(sess, tableName)
	if err != nil {
		db.metrics.IncOpError(metrics.OpDelete)
		return err
	}
	if err := t.Delete(key); err != nil {
		db.metrics.IncOpError(metrics.OpDelete)
		return err
	}
	db.metrics.IncOp(metrics.OpDelete)
	return nil
}

// Flush snapshots a table's memstore into a new segment file.
func (db *DB) Flush(sess *catalog.Session, tableName string) error {
	t, err := db.resolve(sess, tableName)
	if err != nil {
		db.metrics.IncOpError(metrics.OpFlush)
		return err
	}
	if err := t.Flush(); err != nil {
		db.metrics.IncOpError(metrics.OpFlush)
		return err
	}
	db.metrics.IncOp(metrics.OpFlush)
	db.metrics.SetSegments(t.Namespace(), t.Name(), t.SegmentCount())
	return nil
}

// Compact merges a table's segment files into at most one.
func (db *DB) Compact(sess *catalog.Session, tableName string) error {
	t, err := db.resolve(sess, tableName)
	if err != nil {
		db.metrics.IncOpError(metrics.OpCompact)
		return err
	}
	if err := t.Compact(); err != nil {
		db.metrics.IncOpError(metrics.OpCompact)
		return err
	}
	db.metrics.IncOp(metrics.OpCompact)
	db.metrics.SetSegments(t.Namespace(), t.Name(), t.SegmentCount())
	return nil
}

func (db *DB) Close() error {
	return db.catalog.Close()
}

func (db *DB) resolve(sess *catalog.Session, tableName string) (*table.Table, error) {
	namespace, err := sess.Namespace()
	if err != nil {
		return nil, err
	}
	t, err := db.catalog.Table(namespace, tableName)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// SplitKey parses the "table:key" addressing convention.
func SplitKey(qualified string) (tableName, key string, err error) {
	parts := strings.SplitN(qualified, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid key %q, want table:key", qualified)
	}
	return parts[0], parts[1], nil
}

// SplitKeyValue parses the "table:key:value" addressing convention used by
// set. The value may itself contain colons.
func SplitKeyValue(qualified string) (tableName, key, value string, err error) {
	parts := strings.SplitN(qualified, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("invalid argument %q, want table:key:value", qualified)
	}
	return parts[0], parts[1], parts[2], nil
}
