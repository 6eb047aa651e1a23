// Package cache records the artifacts written by previous generation runs
// in SQLite so unchanged files are not rewritten.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotRecorded indicates the artifact has never been written.
var ErrNotRecorded = errors.New("artifact not recorded")

// Entry describes the last recorded write of an artifact.
type Entry struct {
	Path      string
	Hash      string
	RunID     string
	WrittenAt time.Time
}

// Cache is an artifact hash store.
type Cache struct {
	db      *sql.DB
	dbPath  string
	entries map[string]*Entry
	mu      sync.RWMutex
}

// Config holds cache configuration options.
type Config struct {
	DBPath string // defaults to $CAPSULEGEN_CACHE, then <Dir>/.capsulegen.db
	Dir    string // output directory, defaults to the working directory
}

// New opens or creates the cache database.
func New(cfg *Config) (*Cache, error) {
	c := &Cache{entries: make(map[string]*Entry)}

	dir := "."
	if cfg != nil && cfg.Dir != "" {
		dir = cfg.Dir
	}
	switch {
	case cfg != nil && cfg.DBPath != "":
		c.dbPath = cfg.DBPath
	case os.Getenv("CAPSULEGEN_CACHE") != "":
		c.dbPath = os.Getenv("CAPSULEGEN_CACHE")
	default:
		c.dbPath = filepath.Join(dir, ".capsulegen.db")
	}

	db, err := sql.Open("sqlite3", c.dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	c.db = db

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS artifacts (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		run_id TEXT NOT NULL,
		written_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return c, nil
}

// Path returns the database location.
func (c *Cache) Path() string { return c.dbPath }

// Close closes the database connection.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// NewRunID returns a fresh identifier for one generation run.
func NewRunID() string {
	return uuid.NewString()
}

// Hash returns the content hash stored for artifacts.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Lookup returns the last recorded write of path.
func (c *Cache) Lookup(path string) (*Entry, error) {
	c.mu.RLock()
	if e, ok := c.entries[path]; ok {
		c.mu.RUnlock()
		return e, nil
	}
	c.mu.RUnlock()

	var e Entry
	var writtenAt string
	err := c.db.QueryRow(
		"SELECT path, hash, run_id, written_at FROM artifacts WHERE path = ?", path,
	).Scan(&e.Path, &e.Hash, &e.RunID, &writtenAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotRecorded
		}
		return nil, fmt.Errorf("querying artifact: %w", err)
	}
	if e.WrittenAt, err = time.Parse(time.RFC3339Nano, writtenAt); err != nil {
		return nil, fmt.Errorf("parsing timestamp of %s: %w", path, err)
	}

	c.mu.Lock()
	c.entries[path] = &e
	c.mu.Unlock()
	return &e, nil
}

// Unchanged reports whether content matches the last write of path and the
// file on disk still exists.
func (c *Cache) Unchanged(path string, content []byte) (bool, error) {
	e, err := c.Lookup(path)
	if errors.Is(err, ErrNotRecorded) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if e.Hash != Hash(content) {
		return false, nil
	}
	if _, err := os.Stat(path); err != nil {
		return false, nil
	}
	return true, nil
}

// Record stores the write of path during run runID.
func (c *Cache) Record(runID, path string, content []byte) error {
	e := &Entry{
		Path:      path,
		Hash:      Hash(content),
		RunID:     runID,
		WrittenAt: time.Now().UTC(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO artifacts (path, hash, run_id, written_at) VALUES (?, ?, ?, ?)",
		e.Path, e.Hash, e.RunID, e.WrittenAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording artifact: %w", err)
	}
	c.entries[path] = e
	return nil
}

// Forget drops the record of path.
func (c *Cache) Forget(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM artifacts WHERE path = ?", path); err != nil {
		return fmt.Errorf("deleting artifact: %w", err)
	}
	delete(c.entries, path)
	return nil
}

// Run lists the artifacts recorded by runID.
func (c *Cache) Run(runID string) ([]string, error) {
	rows, err := c.db.Query("SELECT path FROM artifacts WHERE run_id = ? ORDER BY path", runID)
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}
