package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// haystackSep separates the searchable fields in the haystack column so a
// match can never span two fields.
const haystackSep = "\x1f"

// SQLiteStore is a local snapshot of the CMS content, used as a Repository
// when the site runs against a mirror instead of the live API. It is filled
// by Mirror and never edits records on its own.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets readers proceed during a mirror write; busy_timeout makes the
	// writer wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS records (
    id TEXT NOT NULL,
    kind TEXT NOT NULL,
    slug TEXT NOT NULL,
    title TEXT NOT NULL,
    haystack TEXT NOT NULL DEFAULT '',
    region TEXT NOT NULL DEFAULT '',
    rating TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT ',',
    author_ids TEXT NOT NULL DEFAULT ',',
    category_ids TEXT NOT NULL DEFAULT ',',
    category_slugs TEXT NOT NULL DEFAULT ',',
    published TEXT NOT NULL DEFAULT '',
    position INTEGER NOT NULL,
    payload TEXT NOT NULL,
    PRIMARY KEY (kind, id),
    UNIQUE (kind, slug)
);
CREATE INDEX IF NOT EXISTS records_kind_published ON records (kind, published DESC, position);
`)
	return err
}

// orderBy puts dated records first, newest first, then undated records in
// store order.
const orderBy = ` ORDER BY published = '', published DESC, position`

const selectPayload = `SELECT payload FROM records`

// ReplaceKind swaps the stored records of kind for records, keeping their
// order as the store order.
func (s *SQLiteStore) ReplaceKind(ctx context.Context, kind Kind, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE kind = ?`, string(kind)); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO records
		(id, kind, slug, title, haystack, region, rating, tags, author_ids, category_ids, category_slugs, published, position, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range records {
		r.Type = kind
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode %s: %w", r.Slug, err)
		}
		authorIDs, _ := r.Refs("author")
		categoryIDs, categorySlugs := r.Refs("categories")
		published := ""
		if t, ok := r.PublishedAt(); ok {
			published = t.Format(time.RFC3339)
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, string(kind), r.Slug, r.Title, haystack(r),
			r.SelectKey("region"), r.SelectKey("rating"),
			joinList(r.Strings("tags")), joinList(authorIDs),
			joinList(categoryIDs), joinList(categorySlugs),
			published, i, string(payload),
		); err != nil {
			return fmt.Errorf("insert %s: %w", r.Slug, err)
		}
	}
	return tx.Commit()
}

// ListByKind returns every stored record of kind.
func (s *SQLiteStore) ListByKind(ctx context.Context, kind Kind) ([]Record, error) {
	records, err := s.query(ctx, selectPayload+` WHERE kind = ?`+orderBy, string(kind))
	if err != nil {
		return nil, storeErr(ctx, "list "+string(kind), err)
	}
	return records, nil
}

// GetBySlug returns one record by slug.
func (s *SQLiteStore) GetBySlug(ctx context.Context, kind Kind, slug string) (Record, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM records WHERE kind = ? AND slug = ?`, string(kind), slug).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, storeErr(ctx, "get "+string(kind), err)
	}
	var r Record
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return Record{}, storeErr(ctx, "get "+string(kind), err)
	}
	return r, nil
}

// ListByRelation returns the posts referencing relatedID.
func (s *SQLiteStore) ListByRelation(ctx context.Context, related Kind, relatedID string) ([]Record, error) {
	var column string
	switch related {
	case KindAuthor:
		column = "author_ids"
	case KindCategory:
		column = "category_ids"
	default:
		return nil, fmt.Errorf("content: no post relation for kind %q", related)
	}
	records, err := s.query(ctx,
		selectPayload+` WHERE kind = ? AND instr(`+column+`, ',' || ? || ',') > 0`+orderBy,
		string(KindPost), relatedID)
	if err != nil {
		return nil, storeErr(ctx, "posts by "+string(related), err)
	}
	return records, nil
}

// Search runs every filter in SQL.
func (s *SQLiteStore) Search(ctx context.Context, q Query) (Result, error) {
	where := []string{"kind = ?"}
	args := []any{string(KindPost)}
	if q.Text != "" {
		where = append(where, "instr(haystack, ?) > 0")
		args = append(args, strings.ToLower(q.Text))
	}
	if q.Region != "" {
		where = append(where, "region = ?")
		args = append(args, q.Region)
	}
	if q.Rating != "" {
		where = append(where, "rating = ?")
		args = append(args, q.Rating)
	}
	if q.Tag != "" {
		where = append(where, "instr(tags, ',' || ? || ',') > 0")
		args = append(args, q.Tag)
	}
	if q.Category != "" {
		where = append(where, "instr(category_slugs, ',' || ? || ',') > 0")
		args = append(args, q.Category)
	}
	records, err := s.query(ctx, selectPayload+" WHERE "+strings.Join(where, " AND ")+orderBy, args...)
	if err != nil {
		return Result{}, storeErr(ctx, "search", err)
	}
	return Result{Records: records, Total: len(records)}, nil
}

// Counts returns the number of stored records per kind.
func (s *SQLiteStore) Counts(ctx context.Context) (map[Kind]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM records GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[Kind(kind)] = n
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var r Record
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// haystack is the lowercased text-search surface of a record.
func haystack(r Record) string {
	parts := []string{r.Title}
	for _, f := range textFields {
		parts = append(parts, r.String(f))
	}
	return strings.ToLower(strings.Join(parts, haystackSep))
}

// joinList encodes a list as ",a,b," so membership is an instr lookup.
func joinList(vals []string) string {
	if len(vals) == 0 {
		return ","
	}
	return "," + strings.Join(vals, ",") + ","
}
