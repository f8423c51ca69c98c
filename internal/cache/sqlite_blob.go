package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"ratiofetcher/internal/model"
)

// SQLiteBlobStore keeps envelopes in a single SQLite table
type SQLiteBlobStore struct {
	db *sql.DB
}

const sqliteBlobMigration = `
CREATE TABLE IF NOT EXISTS blob_cache (
	code       TEXT NOT NULL,
	hash       TEXT NOT NULL,
	envelope   TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (code, hash)
);

CREATE INDEX IF NOT EXISTS idx_blob_cache_created_at ON blob_cache(created_at);
`

// NewSQLiteBlobStore opens (or creates) the database at path in WAL mode
func NewSQLiteBlobStore(ctx context.Context, path string) (*SQLiteBlobStore, error) {
	if path == "" {
		return nil, eris.New("cache: sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrapf(err, "cache: create directory for %s", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "cache: sqlite open")
	}
	// one writer at a time; WAL still lets readers proceed
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: sqlite exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteBlobMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "cache: sqlite migrate")
	}
	return &SQLiteBlobStore{db: db}, nil
}

// Get reads and decodes the envelope for key
func (s *SQLiteBlobStore) Get(ctx context.Context, key model.CacheKey) (*Entry, error) {
	var envelope string
	err := s.db.QueryRowContext(ctx,
		`SELECT envelope FROM blob_cache WHERE code = ? AND hash = ?`,
		key.Code, key.Hash,
	).Scan(&envelope)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "cache: sqlite get %s", key)
	}

	var e Entry
	if err := json.Unmarshal([]byte(envelope), &e); err != nil {
		return nil, eris.Wrapf(err, "cache: decode blob %s", key)
	}
	return &e, nil
}

// Put replaces the row for key in a single statement
func (s *SQLiteBlobStore) Put(ctx context.Context, key model.CacheKey, entry Entry) error {
	envelope, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrapf(err, "cache: encode blob %s", key)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO blob_cache (code, hash, envelope, created_at) VALUES (?, ?, ?, ?)`,
		key.Code, key.Hash, string(envelope), entry.CreatedAt.UnixNano(),
	)
	return eris.Wrapf(err, "cache: sqlite put %s", key)
}

// Delete removes the row for key
func (s *SQLiteBlobStore) Delete(ctx context.Context, key model.CacheKey) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM blob_cache WHERE code = ? AND hash = ?`, key.Code, key.Hash)
	return eris.Wrapf(err, "cache: sqlite delete %s", key)
}

// DeleteCode removes every row of code
func (s *SQLiteBlobStore) DeleteCode(ctx context.Context, code string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blob_cache WHERE code = ?`, code)
	if err != nil {
		return 0, eris.Wrapf(err, "cache: sqlite delete code %s", code)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "cache: sqlite rows affected")
	}
	return int(n), nil
}

// List returns every row without decoding envelopes
func (s *SQLiteBlobStore) List(ctx context.Context) ([]BlobInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, hash, length(envelope), created_at FROM blob_cache ORDER BY created_at`)
	if err != nil {
		return nil, eris.Wrap(err, "cache: sqlite list")
	}
	defer rows.Close()

	var infos []BlobInfo
	for rows.Next() {
		var (
			info    BlobInfo
			created int64
		)
		if err := rows.Scan(&info.Key.Code, &info.Key.Hash, &info.Size, &created); err != nil {
			return nil, eris.Wrap(err, "cache: sqlite scan")
		}
		info.CreatedAt = time.Unix(0, created)
		infos = append(infos, info)
	}
	return infos, eris.Wrap(rows.Err(), "cache: sqlite rows")
}

// Close closes the database
func (s *SQLiteBlobStore) Close() error {
	return s.db.Close()
}
