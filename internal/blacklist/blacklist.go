// Package blacklist provides the known-bad address store consulted by the
// heuristic layer. Lookups on the hot path hit an in-memory set; the
// SQLite file is the durable record and the source of entry metadata.
package blacklist

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Entry describes one blacklisted value with its provenance.
type Entry struct {
	Value     string    `json:"value"`
	Reason    string    `json:"reason"`
	Source    string    `json:"source"`
	Severity  string    `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"active"`
}

// Store is a SQLite-backed blacklist with an in-memory cache for O(1)
// membership checks. Readers never observe a partially-updated entry:
// cache mutations happen under the write lock after the row is committed.
type Store struct {
	db    *sql.DB
	mu    sync.RWMutex
	cache map[string]struct{}
}

const schema = `
CREATE TABLE IF NOT EXISTS blacklist (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	value TEXT NOT NULL UNIQUE,
	reason TEXT NOT NULL,
	source TEXT DEFAULT 'manual',
	severity TEXT DEFAULT 'high',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP,
	active INTEGER DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_blacklist_value ON blacklist(value);
`

// Open opens (or creates) the blacklist database at path, loads active
// entries into the cache, and seeds known-bad defaults on first use.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("blacklist: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("blacklist: open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("blacklist: init schema: %w", err)
	}

	s := &Store{db: db, cache: make(map[string]struct{})}
	if err := s.loadCache(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.seed(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) loadCache() error {
	rows, err := s.db.Query(`SELECT value FROM blacklist WHERE active = 1`)
	if err != nil {
		return fmt.Errorf("blacklist: load cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return fmt.Errorf("blacklist: scan cache row: %w", err)
		}
		s.cache[v] = struct{}{}
	}
	return rows.Err()
}

// seedEntries are known-bad addresses loaded on first open. Example data
// curated from community drainer reports.
var seedEntries = []Entry{
	{
		Value:    "DrainWa11etXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX",
		Reason:   "Known drainer wallet - multiple theft incidents",
		Source:   "community",
		Severity: "critical",
	},
	{
		Value:    "Scam4ddressXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX",
		Reason:   "Reported scam address - phishing operation",
		Source:   "community",
		Severity: "critical",
	},
	{
		Value:    "Ma1ici0usXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX",
		Reason:   "Malicious contract - rug pull associated",
		Source:   "automated",
		Severity: "high",
	},
	{
		Value:    "EvilPr0gramXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX",
		Reason:   "Malicious program - funds extraction",
		Source:   "security_audit",
		Severity: "critical",
	},
	{
		Value:    "TestB1acklistAddressXXXXXXXXXXXXXXXXXXXXXX",
		Reason:   "Test blacklist address for simulation",
		Source:   "testing",
		Severity: "high",
	},
}

// seed loads defaults only into a brand-new database. Operator removals
// survive restarts because a non-empty table is left alone.
func (s *Store) seed() error {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM blacklist`).Scan(&n); err != nil {
		return fmt.Errorf("blacklist: seed check: %w", err)
	}
	if n > 0 {
		return nil
	}
	for _, e := range seedEntries {
		if err := s.Add(e.Value, e.Reason, e.Source, e.Severity); err != nil {
			return err
		}
	}
	return nil
}

// IsBlacklisted reports whether value is an active blacklist entry.
// O(1) via the in-memory cache.
func (s *Store) IsBlacklisted(value string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cache[value]
	return ok
}

// GetEntry returns metadata for an active entry, or (nil, nil) if absent.
func (s *Store) GetEntry(value string) (*Entry, error) {
	row := s.db.QueryRow(
		`SELECT value, reason, source, severity, created_at, active
		 FROM blacklist WHERE value = ? AND active = 1`, value)

	var e Entry
	var created string
	if err := row.Scan(&e.Value, &e.Reason, &e.Source, &e.Severity, &created, &e.Active); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("blacklist: get entry: %w", err)
	}
	if t, err := time.Parse("2006-01-02 15:04:05", created); err == nil {
		e.CreatedAt = t
	}
	return &e, nil
}

// Add inserts or reactivates an entry and updates the cache. Adding an
// existing value refreshes its reason and severity.
func (s *Store) Add(value, reason, source, severity string) error {
	if value == "" {
		return fmt.Errorf("blacklist: value is required")
	}
	if source == "" {
		source = "manual"
	}
	if severity == "" {
		severity = "high"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO blacklist (value, reason, source, severity, active)
		 VALUES (?, ?, ?, ?, 1)
		 ON CONFLICT(value) DO UPDATE SET
		   reason = excluded.reason,
		   source = excluded.source,
		   severity = excluded.severity,
		   active = 1,
		   updated_at = CURRENT_TIMESTAMP`,
		value, reason, source, severity)
	if err != nil {
		return fmt.Errorf("blacklist: add entry: %w", err)
	}

	s.cache[value] = struct{}{}
	return nil
}

// Remove deactivates an entry. Returns false if the value was not active.
func (s *Store) Remove(value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE blacklist SET active = 0, updated_at = CURRENT_TIMESTAMP
		 WHERE value = ? AND active = 1`, value)
	if err != nil {
		return false, fmt.Errorf("blacklist: remove entry: %w", err)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}
	delete(s.cache, value)
	return true, nil
}

// List returns active entries, newest first.
func (s *Store) List(limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT value, reason, source, severity, created_at, active
		 FROM blacklist WHERE active = 1
		 ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("blacklist: list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.Value, &e.Reason, &e.Source, &e.Severity, &created, &e.Active); err != nil {
			return nil, fmt.Errorf("blacklist: scan entry: %w", err)
		}
		if t, err := time.Parse("2006-01-02 15:04:05", created); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of active entries.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM blacklist WHERE active = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("blacklist: count entries: %w", err)
	}
	return n, nil
}
