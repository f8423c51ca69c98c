package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratiofetcher/internal/model"
	"ratiofetcher/internal/quality"
	"ratiofetcher/internal/testutil"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testParams() model.FetchParameters {
	return model.FetchParameters{
		DateFrom:     "20210101",
		ReportPeriod: model.PeriodAnnual,
		Basis:        model.BasisConsolidated,
		OutputFormat: model.FormatRaw,
	}
}

func openManager(t *testing.T, backend BlobBackend, ttl time.Duration) (*Manager, *clock) {
	t.Helper()
	dir := t.TempDir()
	clk := &clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	m, err := Open(context.Background(), Options{
		DurableDir:  filepath.Join(dir, "by_stock"),
		BlobBackend: backend,
		BlobDir:     filepath.Join(dir, ".blobcache"),
		SQLitePath:  filepath.Join(dir, "blobcache.db"),
		TTL:         ttl,
		Gate:        quality.DefaultConfig(),
		Now:         clk.Now,
	})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m, clk
}

func forEachBackend(t *testing.T, fn func(t *testing.T, backend BlobBackend)) {
	for _, b := range []BlobBackend{BlobBackendFile, BlobBackendSQLite} {
		t.Run(string(b), func(t *testing.T) { fn(t, b) })
	}
}

func TestManager_StoreThenLookup(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend BlobBackend) {
		m, _ := openManager(t, backend, time.Hour)
		ctx := context.Background()
		key := model.NewCacheKey("005930", testParams())
		record := testutil.NewRecord("20231231", 12, 0.125)

		_, _, ok := m.Lookup(ctx, key)
		require.False(t, ok)

		v, err := m.Store(ctx, key, record)
		require.NoError(t, err)
		require.True(t, v.Accepted)

		e, src, ok := m.Lookup(ctx, key)
		require.True(t, ok)
		assert.Equal(t, model.SourceDurable, src)
		assert.Equal(t, record, e.Record)

		// with the snapshot gone the blob tier answers
		require.NoError(t, m.durable.Delete("005930"))
		e, src, ok = m.Lookup(ctx, key)
		require.True(t, ok)
		assert.Equal(t, model.SourceBlob, src)
		assert.Equal(t, record, e.Record)
	})
}

func TestManager_BlobTTL(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend BlobBackend) {
		m, clk := openManager(t, backend, time.Hour)
		ctx := context.Background()
		key := model.NewCacheKey("005930", testParams())

		_, err := m.Store(ctx, key, testutil.NewRecord("20231231", 19, 1))
		require.NoError(t, err)
		require.NoError(t, m.durable.Delete("005930"))

		clk.Advance(59 * time.Minute)
		_, _, ok := m.Lookup(ctx, key)
		assert.True(t, ok)

		clk.Advance(2 * time.Minute)
		_, _, ok = m.Lookup(ctx, key)
		assert.False(t, ok)

		stats, err := m.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.BlobEntries)
		assert.Equal(t, 1, stats.ExpiredBlobs)

		n, err := m.Prune(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		stats, err = m.Stats(ctx)
		require.NoError(t, err)
		assert.Zero(t, stats.BlobEntries)
	})
}

func TestManager_ZeroTTLNeverExpires(t *testing.T) {
	m, clk := openManager(t, BlobBackendFile, 0)
	ctx := context.Background()
	key := model.NewCacheKey("005930", testParams())

	_, err := m.Store(ctx, key, testutil.NewRecord("20231231", 19, 1))
	require.NoError(t, err)
	require.NoError(t, m.durable.Delete("005930"))

	clk.Advance(24 * 365 * time.Hour)
	_, _, ok := m.Lookup(ctx, key)
	assert.True(t, ok)

	n, err := m.Prune(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestManager_ParametersSeparateBlobKeys(t *testing.T) {
	m, _ := openManager(t, BlobBackendFile, time.Hour)
	ctx := context.Background()

	p := testParams()
	annual := model.NewCacheKey("005930", p)
	p.ReportPeriod = model.PeriodQuarter
	quarter := model.NewCacheKey("005930", p)

	_, err := m.Store(ctx, annual, testutil.NewRecord("20231231", 19, 1))
	require.NoError(t, err)
	require.NoError(t, m.durable.Delete("005930"))

	_, _, ok := m.Lookup(ctx, quarter)
	assert.False(t, ok)
	_, _, ok = m.Lookup(ctx, annual)
	assert.True(t, ok)
}

func TestManager_StoreRejectsLowQuality(t *testing.T) {
	m, _ := openManager(t, BlobBackendFile, time.Hour)
	ctx := context.Background()
	key := model.NewCacheKey("005930", testParams())

	v, err := m.Store(ctx, key, testutil.NewRecord("20231231", 3, 1))
	require.NoError(t, err)
	assert.False(t, v.Accepted)
	assert.Equal(t, quality.ReasonTooSparse, v.Reason)

	_, _, ok := m.Lookup(ctx, key)
	assert.False(t, ok)
	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.DurableEntries)
	assert.Zero(t, stats.BlobEntries)
}

func TestManager_LowQualitySnapshotIsMiss(t *testing.T) {
	m, _ := openManager(t, BlobBackendFile, time.Hour)
	ctx := context.Background()
	key := model.NewCacheKey("005930", testParams())

	// written behind the manager's back, as an older run with a looser gate would
	require.NoError(t, m.durable.Put("005930", testutil.NewRecord("20231231", 2, 1)))

	_, _, ok := m.Lookup(ctx, key)
	assert.False(t, ok)
	_, ok = m.Snapshot(ctx, "005930")
	assert.False(t, ok)
}

func TestManager_CorruptEntriesAreMisses(t *testing.T) {
	m, _ := openManager(t, BlobBackendFile, time.Hour)
	ctx := context.Background()
	key := model.NewCacheKey("005930", testParams())

	require.NoError(t, os.WriteFile(m.durable.path("005930"), []byte("garbage\n1,2\n"), 0o644))
	blobPath := m.blobs.(*FileBlobStore).path(key)
	require.NoError(t, os.MkdirAll(filepath.Dir(blobPath), 0o755))
	require.NoError(t, os.WriteFile(blobPath, []byte("{not json"), 0o644))

	_, _, ok := m.Lookup(ctx, key)
	assert.False(t, ok)
}

func TestManager_Invalidate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend BlobBackend) {
		m, _ := openManager(t, backend, time.Hour)
		ctx := context.Background()
		key := model.NewCacheKey("005930", testParams())
		other := model.NewCacheKey("000660", testParams())

		_, err := m.Store(ctx, key, testutil.NewRecord("20231231", 19, 1))
		require.NoError(t, err)
		_, err = m.Store(ctx, other, testutil.NewRecord("20231231", 19, 1))
		require.NoError(t, err)

		require.NoError(t, m.Invalidate(ctx, key))
		_, _, ok := m.Lookup(ctx, key)
		assert.False(t, ok)
		_, _, ok = m.Lookup(ctx, other)
		assert.True(t, ok)

		n, err := m.InvalidateCode(ctx, "000660")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		_, _, ok = m.Lookup(ctx, other)
		assert.False(t, ok)
	})
}

func TestManager_ConcurrentWritesSameKey(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend BlobBackend) {
		m, _ := openManager(t, backend, time.Hour)
		ctx := context.Background()
		key := model.NewCacheKey("005930", testParams())

		const writers = 16
		candidates := make([]model.RatioRecord, writers)
		for i := range candidates {
			candidates[i] = testutil.NewRecord("20231231", 19, float64(i*100))
		}

		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := m.Store(ctx, key, candidates[i])
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		e, _, ok := m.Lookup(ctx, key)
		require.True(t, ok)
		assert.Contains(t, candidates, e.Record)

		entries, err := os.ReadDir(m.durable.dir)
		require.NoError(t, err)
		for _, de := range entries {
			assert.False(t, isTemp(de.Name()), "temp file left behind: %s", de.Name())
		}
	})
}

func TestDurableStore_Format(t *testing.T) {
	s, err := NewDurableStore(t.TempDir())
	require.NoError(t, err)

	half := 0.5
	third := 1.0 / 3
	record := model.RatioRecord{Periods: []model.Period{
		{Date: "20231231", Values: map[string]*float64{"debt_ratio": &half, "roe": nil}},
		{Date: "20221231", Values: map[string]*float64{"debt_ratio": &third, "roe": &half}},
	}}
	require.NoError(t, s.Put("005930", record))

	data, err := os.ReadFile(s.path("005930"))
	require.NoError(t, err)
	assert.Equal(t, "period,debt_ratio,roe\n20221231,0.3333333333333333,0.5\n20231231,0.5,\n", string(data))

	e, err := s.Get("005930")
	require.NoError(t, err)
	require.Len(t, e.Record.Periods, 2)
	assert.Equal(t, third, *e.Record.Periods[0].Values["debt_ratio"])
	assert.Nil(t, e.Record.Periods[1].Values["roe"])

	_, err = s.Get("000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseBlobBackend(t *testing.T) {
	b, err := ParseBlobBackend("")
	require.NoError(t, err)
	assert.Equal(t, BlobBackendFile, b)

	b, err = ParseBlobBackend("sqlite")
	require.NoError(t, err)
	assert.Equal(t, BlobBackendSQLite, b)

	_, err = ParseBlobBackend("redis")
	assert.Error(t, err)
}
