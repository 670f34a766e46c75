package config

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists per-backend option sets in SQLite so a service restart
// keeps its configured backends. Transactions are never stored here; the
// caller owns transaction storage.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens (and initializes) the SQLite option store at the given path.
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// WAL keeps concurrent readers cheap; the busy timeout covers writers
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_timeout=20000", dbPath)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS backend_configs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		options TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(kind, label)
	);`
	return s.retry(func() error {
		_, err := s.db.Exec(query)
		return err
	}, 3)
}

// retry executes a database operation with backoff on SQLITE_BUSY errors.
func (s *Store) retry(operation func() error, maxRetries int) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		if strings.Contains(err.Error(), "SQLITE_BUSY") || strings.Contains(err.Error(), "database is locked") {
			lastErr = err
			if attempt < maxRetries {
				time.Sleep(time.Duration(10*(1<<attempt)) * time.Millisecond)
				continue
			}
		} else {
			return err
		}
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries+1, lastErr)
}

// Save upserts the option set for a backend kind and label.
func (s *Store) Save(kind, label string, options map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}
	return s.retry(func() error {
		_, err := s.db.Exec(`
			INSERT INTO backend_configs (kind, label, options, updated_at)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(kind, label) DO UPDATE SET
				options = excluded.options,
				updated_at = CURRENT_TIMESTAMP`,
			kind, label, string(encoded))
		return err
	}, 3)
}

// Get returns the stored option set for a backend kind and label.
func (s *Store) Get(kind, label string) (map[string]string, error) {
	var encoded string
	err := s.db.QueryRow(
		`SELECT options FROM backend_configs WHERE kind = ? AND label = ?`,
		kind, label).Scan(&encoded)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no configuration stored for backend '%s'", kind)
	}
	if err != nil {
		return nil, err
	}

	var options map[string]string
	if err := json.Unmarshal([]byte(encoded), &options); err != nil {
		return nil, fmt.Errorf("failed to decode options: %w", err)
	}
	return options, nil
}

// List returns the kinds with at least one stored option set.
func (s *Store) List() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT kind FROM backend_configs ORDER BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var kinds []string
	for rows.Next() {
		var kind string
		if err := rows.Scan(&kind); err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, rows.Err()
}

// Delete removes a stored option set.
func (s *Store) Delete(kind, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retry(func() error {
		_, err := s.db.Exec(`DELETE FROM backend_configs WHERE kind = ? AND label = ?`, kind, label)
		return err
	}, 3)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
