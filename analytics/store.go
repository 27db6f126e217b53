package analytics

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Store provides database operations for the search log.
type Store struct {
	db   *sql.DB
	salt string
}

// NewStore opens the search log database, creating it if needed, and loads
// (or generates) the installation's IP hashing salt.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create analytics dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := s.initSalt(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS search_events (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			region TEXT NOT NULL DEFAULT '',
			rating TEXT NOT NULL DEFAULT '',
			tag TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			results INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			ip_hash TEXT NOT NULL,
			timestamp DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_search_events_timestamp ON search_events(timestamp);
		CREATE INDEX IF NOT EXISTS idx_search_events_query ON search_events(query);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

// currentSchemaVersion is the latest schema version. Increment when adding migrations.
const currentSchemaVersion = 1

func (s *Store) migrate() error {
	verStr, err := s.GetSetting("schema_version")
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	version := 0
	if verStr != "" {
		version, err = strconv.Atoi(verStr)
		if err != nil {
			return fmt.Errorf("parse schema version %q: %w", verStr, err)
		}
	}
	if version < currentSchemaVersion {
		version = currentSchemaVersion
	}
	return s.SetSetting("schema_version", strconv.Itoa(version))
}

func (s *Store) initSalt() error {
	v, err := s.GetSetting("hash_salt")
	if err != nil {
		return fmt.Errorf("read hash salt: %w", err)
	}
	if v == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return fmt.Errorf("generate salt: %w", err)
		}
		v = hex.EncodeToString(b)
		if err := s.SetSetting("hash_salt", v); err != nil {
			return fmt.Errorf("store hash salt: %w", err)
		}
	}
	s.salt = v
	return nil
}

// HashIP hashes ip with this installation's salt.
func (s *Store) HashIP(ip string) string {
	return hashIP(s.salt, ip)
}

// GetSetting retrieves a setting value by key. Returns empty string if not found.
func (s *Store) GetSetting(key string) (string, error) {
	var val string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return val, err
}

// SetSetting stores a setting value by key (upsert).
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// Record stores e. A missing ID or timestamp is filled in and the query is
// normalized.
func (s *Store) Record(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Status == "" {
		e.Status = "success"
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO search_events
		(id, query, region, rating, tag, category, results, status, source, ip_hash, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, NormalizeQuery(e.Query), e.Region, e.Rating, e.Tag, e.Category,
		e.Results, e.Status, e.Source, e.IPHash, e.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("record search: %w", err)
	}
	return nil
}

// Popular returns the most searched non-empty queries since from, most
// frequent first. Failed searches are not counted.
func (s *Store) Popular(ctx context.Context, from time.Time, limit int) ([]PopularQuery, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT query, COUNT(*) AS n FROM search_events
		WHERE query != '' AND status = 'success' AND timestamp >= ?
		GROUP BY query
		ORDER BY n DESC, query ASC
		LIMIT ?`, from.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("popular queries: %w", err)
	}
	defer rows.Close()

	out := []PopularQuery{}
	for rows.Next() {
		var p PopularQuery
		if err := rows.Scan(&p.Query, &p.Count); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Count returns the number of logged searches since from.
func (s *Store) Count(ctx context.Context, from time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM search_events WHERE timestamp >= ?`, from.UTC()).Scan(&n)
	return n, err
}

// CleanupOld removes events older than the retention period.
func (s *Store) CleanupOld(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	res, err := s.db.ExecContext(ctx, `DELETE FROM search_events WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup search_events: %w", err)
	}
	return res.RowsAffected()
}

// StartCleanupScheduler runs periodic cleanup of old events. Returns a stop function.
func (s *Store) StartCleanupScheduler(retentionDays int, interval time.Duration, log zerolog.Logger) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				n, err := s.CleanupOld(context.Background(), retentionDays)
				if err != nil {
					log.Error().Err(err).Msg("search log cleanup failed")
					continue
				}
				if n > 0 {
					log.Info().Int64("removed", n).Msg("search log pruned")
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}
