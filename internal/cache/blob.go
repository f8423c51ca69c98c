package cache

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"ratiofetcher/internal/model"
)

// ErrNotFound is returned by tier reads for a missing entry
var ErrNotFound = eris.New("cache: entry not found")

// Entry is one cached record together with the time it was written
type Entry struct {
	CreatedAt time.Time         `json:"created_at"`
	Record    model.RatioRecord `json:"record"`
}

// Age returns how old the entry is at now
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// Expired reports whether the entry is older than ttl. A zero ttl never expires.
func (e Entry) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && e.Age(now) > ttl
}

// BlobInfo describes a stored blob without decoding its record
type BlobInfo struct {
	Key       model.CacheKey
	Size      int64
	CreatedAt time.Time
}

// BlobStore is the parameter-keyed tier. Implementations must allow
// concurrent use; a Put fully replaces any previous entry for the key.
type BlobStore interface {
	Get(ctx context.Context, key model.CacheKey) (*Entry, error)
	Put(ctx context.Context, key model.CacheKey, entry Entry) error
	Delete(ctx context.Context, key model.CacheKey) error
	// DeleteCode removes every entry for code and returns how many were removed.
	DeleteCode(ctx context.Context, code string) (int, error)
	List(ctx context.Context) ([]BlobInfo, error)
	Close() error
}

// BlobBackend selects a BlobStore implementation
type BlobBackend string

const (
	BlobBackendFile   BlobBackend = "file"
	BlobBackendSQLite BlobBackend = "sqlite"
)

// ParseBlobBackend converts a configuration string into a BlobBackend
func ParseBlobBackend(s string) (BlobBackend, error) {
	switch b := BlobBackend(s); b {
	case BlobBackendFile, BlobBackendSQLite:
		return b, nil
	case "":
		return BlobBackendFile, nil
	default:
		return "", eris.Errorf("cache: unknown blob backend %q", s)
	}
}
