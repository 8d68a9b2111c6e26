package features

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/RyanBlaney/sonido-curator/logging"
	"github.com/RyanBlaney/sonido-curator/scan"
)

const schema = `
CREATE TABLE IF NOT EXISTS feature_records (
	path     TEXT PRIMARY KEY,
	size     INTEGER NOT NULL,
	mod_time INTEGER NOT NULL,
	record   TEXT NOT NULL
);
`

// Cache persists feature records across sessions, keyed by file path and
// validated against size plus modification time. A file that changed on
// disk since its record was stored is treated as absent.
type Cache struct {
	db     *sql.DB
	logger logging.Logger
}

// OpenCache opens or creates the cache database at path. An empty path
// yields an in-memory cache that lives for the process only.
func OpenCache(path string) (*Cache, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open feature cache: %w", err)
	}
	// modernc.org/sqlite serializes access per connection; a single
	// connection avoids table-lock errors under concurrent workers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init feature cache schema: %w", err)
	}
	return &Cache{
		db:     db,
		logger: logging.WithFields(logging.Fields{"component": "feature_cache"}),
	}, nil
}

// Get returns the stored record for entry, or ok=false when there is no
// record or the file changed since it was written.
func (c *Cache) Get(entry scan.FileEntry) (Record, bool, error) {
	row := c.db.QueryRow(
		`SELECT size, mod_time, record FROM feature_records WHERE path = ?`,
		entry.Path,
	)

	var size, modTime int64
	var raw string
	if err := row.Scan(&size, &modTime, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read feature record: %w", err)
	}

	id := entry.Identity()
	if size != id.Size || modTime != id.ModTime {
		return nil, false, nil
	}

	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		// A corrupt row is stale by definition; recompute rather than fail.
		c.logger.Warn("discarding unreadable feature record", logging.Fields{
			"path":  entry.Path,
			"error": err.Error(),
		})
		return nil, false, nil
	}
	return record, true, nil
}

// NeedsUpdate reports whether entry has no valid stored record. It exists
// so a scan can cheaply plan work without deserializing records.
func (c *Cache) NeedsUpdate(entry scan.FileEntry) (bool, error) {
	row := c.db.QueryRow(
		`SELECT size, mod_time FROM feature_records WHERE path = ?`,
		entry.Path,
	)
	var size, modTime int64
	if err := row.Scan(&size, &modTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return true, nil
		}
		return false, fmt.Errorf("check feature record: %w", err)
	}
	id := entry.Identity()
	return size != id.Size || modTime != id.ModTime, nil
}

// Put stores record for entry, replacing any previous row. Records with
// nil values round-trip: a feature that could not be computed stays null.
func (c *Cache) Put(entry scan.FileEntry, record Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode feature record: %w", err)
	}
	id := entry.Identity()
	_, err = c.db.Exec(
		`INSERT INTO feature_records (path, size, mod_time, record) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET size=excluded.size, mod_time=excluded.mod_time, record=excluded.record`,
		entry.Path, id.Size, id.ModTime, string(raw),
	)
	if err != nil {
		return fmt.Errorf("write feature record: %w", err)
	}
	return nil
}

// Delete removes the record for path, if any.
func (c *Cache) Delete(path string) error {
	if _, err := c.db.Exec(`DELETE FROM feature_records WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete feature record: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
