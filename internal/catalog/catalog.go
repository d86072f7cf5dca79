// Package catalog resolves namespace and table names to their on-disk
// roots and live engine state. Tables are opened, and their WALs replayed,
// lazily on first access.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"tablekv/internal/config"
	"tablekv/internal/metrics"
	"tablekv/internal/storage/table"
	errs "tablekv/pkg/errors"
	"tablekv/pkg/logger"
)

type Catalog struct {
	conf    *config.Config
	metrics *metrics.Metrics

	mu     sync.Mutex
	tables map[string]*table.Table // "namespace/table" -> open engine
}

// Open prepares the storage root. The returned flag distinguishes a freshly
// created root from an existing one. The metrics handle may be nil.
func Open(conf *config.Config, m *metrics.Metrics) (*Catalog, bool, error) {
	created := false
	if _, err := os.Stat(conf.Dir); os.IsNotExist(err) {
		if err := os.MkdirAll(conf.Dir, 0o755); err != nil {
			return nil, false, fmt.Errorf("create storage root: %w", err)
		}
		created = true
	} else if err != nil {
		return nil, false, fmt.Errorf("stat storage root: %w", err)
	}

	return &Catalog{
		conf:    conf,
		metrics: m,
		tables:  make(map[string]*table.Table),
	}, created, nil
}

// CreateNamespace creates a new namespace directory.
func (c *Catalog) CreateNamespace(name string) error {
	path := filepath.Join(c.conf.Dir, name)
	if _, err := os.Stat(path); err == nil {
		return errs.ErrNamespaceExists
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		return fmt.Errorf("create namespace: %w", err)
	}
	logger.Info("namespace created", "namespace", name)
	return nil
}

// NamespaceExists reports whether a namespace directory exists.
func (c *Catalog) NamespaceExists(name string) bool {
	info, err := os.Stat(filepath.Join(c.conf.Dir, name))
	return err == nil && info.IsDir()
}

// ListNamespaces returns all namespace names, sorted.
func (c *Catalog) ListNamespaces() ([]string, error) {
	return listDirs(c.conf.Dir)
}

// CreateTable creates a new table directory within a namespace.
func (c *Catalog) CreateTable(namespace, name string) error {
	if !c.NamespaceExists(namespace) {
		return errs.ErrNamespaceNotFound
	}
	path := filepath.Join(c.conf.Dir, namespace, name)
	if _, err := os.Stat(path); err == nil {
		return errs.ErrTableExists
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	logger.Info("table created", "namespace", namespace, "table", name)
	return nil
}

// ListTables returns all table names within a namespace, sorted.
func (c *Catalog) ListTables(namespace string) ([]string, error) {
	if !c.NamespaceExists(namespace) {
		return nil, errs.ErrNamespaceNotFound
	}
	return listDirs(filepath.Join(c.conf.Dir, namespace))
}

// Table resolves a namespace/table pair to its live engine, opening it (and
// replaying its WAL) on first access.
func (c *Catalog) Table(namespace, name string) (*table.Table, error) {
	if !c.NamespaceExists(namespace) {
		return nil, errs.ErrNamespaceNotFound
	}
	dir := filepath.Join(c.conf.Dir, namespace, name)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, errs.ErrTableNotFound
	}

	key := namespace + "/" + name
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tables[key]; ok {
		return t, nil
	}

	t, err := table.Open(c.conf, namespace, name, dir)
	if err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.ObserveReplay(t.Recovered(), t.ReplayCorrupted())
		c.metrics.SetSegments(namespace, name, t.SegmentCount())
	}
	c.tables[key] = t
	return t, nil
}

// Close closes all open tables.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for key, t := range c.tables {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.tables, key)
	}
	return firstErr
}

func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
