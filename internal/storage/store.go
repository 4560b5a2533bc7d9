package storage

import (
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// CachedResponse is a model response stored under a request hash.
type CachedResponse struct {
	Model     string
	Text      string
	CreatedAt time.Time
}

// ResponseCache stores model responses keyed by request hash.
type ResponseCache interface {
	GetResponse(requestHash string) (*CachedResponse, error)
	SetResponse(requestHash string, entry *CachedResponse) error
	PurgeOlderThan(age time.Duration) (int64, error)
	Close() error
}

// SQLiteStore implements ResponseCache using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens the cache database at dbPath. An empty path keeps the
// cache in memory for the lifetime of the process.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	var dsn string
	if dbPath == "" {
		dsn = ":memory:"
	} else {
		// WAL mode and busy timeout for better concurrency
		dsn = fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dbPath == "" {
		// Every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else {
		// Only works once the file exists
		_ = os.Chmod(dbPath, 0600)
	}

	store := &SQLiteStore{db: db}

	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS response_cache (
		request_hash TEXT PRIMARY KEY,
		model TEXT NOT NULL,
		response_text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create response_cache table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetResponse retrieves a cached response by request hash.
// Returns nil, nil if no cache entry exists.
func (s *SQLiteStore) GetResponse(requestHash string) (*CachedResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entry CachedResponse
	var createdAt int64
	err := s.db.QueryRow(
		"SELECT model, response_text, created_at FROM response_cache WHERE request_hash = ?",
		requestHash,
	).Scan(&entry.Model, &entry.Text, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query response cache: %w", err)
	}

	entry.CreatedAt = time.Unix(createdAt, 0)
	return &entry, nil
}

// SetResponse stores a response in the cache, replacing any previous entry.
func (s *SQLiteStore) SetResponse(requestHash string, entry *CachedResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO response_cache (request_hash, model, response_text, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(request_hash) DO UPDATE SET
			model = excluded.model,
			response_text = excluded.response_text,
			created_at = excluded.created_at
	`, requestHash, entry.Model, entry.Text, createdAt.Unix())

	if err != nil {
		return fmt.Errorf("failed to cache response: %w", err)
	}
	return nil
}

// PurgeOlderThan deletes entries created more than age ago and returns the
// number of rows removed.
func (s *SQLiteStore) PurgeOlderThan(age time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-age).Unix()
	res, err := s.db.Exec("DELETE FROM response_cache WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge response cache: %w", err)
	}
	return res.RowsAffected()
}
