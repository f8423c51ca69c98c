// Package cache owns both cache tiers: a durable per-code snapshot store and
// a parameter-keyed blob store with a time-to-live. Every entry read from
// either tier, and every record offered for storage, must pass the quality
// gate.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"ratiofetcher/internal/model"
	"ratiofetcher/internal/quality"
)

// Options configures a Manager
type Options struct {
	DurableDir  string
	BlobBackend BlobBackend
	BlobDir     string
	SQLitePath  string
	// TTL bounds the age of blob entries. Zero disables expiry.
	TTL  time.Duration
	Gate quality.Config
	// Now is the clock used for created_at and expiry. Default: time.Now.
	Now func() time.Time
}

// Manager is the two-tier cache. It is safe for concurrent use; writes to
// the same key are last-writer-wins.
type Manager struct {
	durable *DurableStore
	blobs   BlobStore
	ttl     time.Duration
	gate    quality.Config
	now     func() time.Time

	closeOnce sync.Once
}

// Open creates the tiers described by opts
func Open(ctx context.Context, opts Options) (*Manager, error) {
	durable, err := NewDurableStore(opts.DurableDir)
	if err != nil {
		return nil, err
	}

	var blobs BlobStore
	switch opts.BlobBackend {
	case BlobBackendSQLite:
		blobs, err = NewSQLiteBlobStore(ctx, opts.SQLitePath)
	case BlobBackendFile, "":
		blobs, err = NewFileBlobStore(opts.BlobDir)
	default:
		err = eris.Errorf("cache: unknown blob backend %q", opts.BlobBackend)
	}
	if err != nil {
		return nil, err
	}

	return NewManager(durable, blobs, opts), nil
}

// NewManager assembles a Manager from existing tiers
func NewManager(durable *DurableStore, blobs BlobStore, opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		durable: durable,
		blobs:   blobs,
		ttl:     opts.TTL,
		gate:    opts.Gate,
		now:     opts.Now,
	}
}

// Gate returns the quality gate applied by the manager
func (m *Manager) Gate() quality.Config {
	return m.gate
}

// Lookup checks the durable tier, then the blob tier. Entries failing the
// quality gate, expired blobs and unreadable entries are misses.
func (m *Manager) Lookup(ctx context.Context, key model.CacheKey) (*Entry, model.Source, bool) {
	if e, ok := m.Snapshot(ctx, key.Code); ok {
		return e, model.SourceDurable, true
	}

	e, err := m.blobs.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			zap.L().Warn("blob cache read failed", zap.String("key", key.String()), zap.Error(err))
		}
		return nil, "", false
	}
	if e.Expired(m.now(), m.ttl) {
		zap.L().Debug("blob cache entry expired",
			zap.String("code", key.Code),
			zap.Duration("age", e.Age(m.now())))
		return nil, "", false
	}
	if v := m.gate.Check(e.Record); !v.Accepted {
		zap.L().Info("blob cache entry below quality bar",
			zap.String("code", key.Code),
			zap.String("reason", string(v.Reason)),
			zap.Float64("nan_ratio", v.NaNRatio))
		return nil, "", false
	}
	return e, model.SourceBlob, true
}

// Snapshot returns the durable snapshot of code if it passes the quality gate
func (m *Manager) Snapshot(_ context.Context, code string) (*Entry, bool) {
	e, err := m.durable.Get(code)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			zap.L().Warn("durable cache read failed", zap.String("code", code), zap.Error(err))
		}
		return nil, false
	}
	if v := m.gate.Check(e.Record); !v.Accepted {
		zap.L().Info("durable snapshot below quality bar",
			zap.String("code", code),
			zap.String("reason", string(v.Reason)),
			zap.Float64("nan_ratio", v.NaNRatio))
		return nil, false
	}
	return e, true
}

// Store gates record and, when accepted, replaces the durable snapshot of
// the key's code and the blob entry of the key. The verdict is returned
// whether or not anything was written.
func (m *Manager) Store(ctx context.Context, key model.CacheKey, record model.RatioRecord) (quality.Verdict, error) {
	v := m.gate.Check(record)
	if !v.Accepted {
		return v, nil
	}

	entry := Entry{CreatedAt: m.now(), Record: record}
	if err := m.durable.Put(key.Code, record); err != nil {
		return v, err
	}
	if err := m.blobs.Put(ctx, key, entry); err != nil {
		return v, err
	}
	return v, nil
}

// Invalidate removes the blob for key and the durable snapshot of its code
func (m *Manager) Invalidate(ctx context.Context, key model.CacheKey) error {
	if err := m.blobs.Delete(ctx, key); err != nil {
		return err
	}
	return m.durable.Delete(key.Code)
}

// InvalidateCode removes every cached entry of code. It returns the number
// of blob entries removed.
func (m *Manager) InvalidateCode(ctx context.Context, code string) (int, error) {
	n, err := m.blobs.DeleteCode(ctx, code)
	if err != nil {
		return 0, err
	}
	return n, m.durable.Delete(code)
}

// Stats summarizes both tiers
type Stats struct {
	DurableEntries int
	DurableBytes   int64
	BlobEntries    int
	BlobBytes      int64
	ExpiredBlobs   int
	OldestBlob     time.Time
}

// Stats walks both tiers
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	var s Stats

	durable, err := m.durable.List()
	if err != nil {
		return s, err
	}
	for _, d := range durable {
		s.DurableEntries++
		s.DurableBytes += d.Size
	}

	blobs, err := m.blobs.List(ctx)
	if err != nil {
		return s, err
	}
	now := m.now()
	for _, b := range blobs {
		s.BlobEntries++
		s.BlobBytes += b.Size
		if (Entry{CreatedAt: b.CreatedAt}).Expired(now, m.ttl) {
			s.ExpiredBlobs++
		}
		if s.OldestBlob.IsZero() || b.CreatedAt.Before(s.OldestBlob) {
			s.OldestBlob = b.CreatedAt
		}
	}
	return s, nil
}

// Prune deletes expired blobs and returns how many were removed. It does
// nothing when expiry is disabled.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	if m.ttl <= 0 {
		return 0, nil
	}
	blobs, err := m.blobs.List(ctx)
	if err != nil {
		return 0, err
	}
	now := m.now()
	n := 0
	for _, b := range blobs {
		if !(Entry{CreatedAt: b.CreatedAt}).Expired(now, m.ttl) {
			continue
		}
		if err := m.blobs.Delete(ctx, b.Key); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Close releases the blob store
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		err = m.blobs.Close()
	})
	return err
}
