package merchant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mikey/mail-ledger/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mapCache struct {
	entries map[string]*Entry
	getErr  error
	setErr  error
}

func (m *mapCache) Get(_ context.Context, key string) (*Entry, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	e, ok := m.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return e, nil
}

func (m *mapCache) Set(_ context.Context, e *Entry) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[e.Key] = e
	return nil
}

func (m *mapCache) Cleanup(context.Context) error { return nil }
func (m *mapCache) Stop() {}

type countingClassifier struct {
	calls    int
	category string
	err      error
}

func (c *countingClassifier) ClassifyMerchant(context.Context, *core.Transaction) (string, error) {
	c.calls++
	return c.category, c.err
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "corner cafe", CacheKey("  CORNER \t Cafe "))
}

func TestCachedClassifier(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	inner := &countingClassifier{category: "Coffee shop"}
	store := &mapCache{entries: map[string]*Entry{}}

	c := NewCachedClassifier(inner, store, 24*time.Hour, zap.NewNop())
	c.now = func() time.Time { return now }

	got, err := c.ClassifyMerchant(ctx, &core.Transaction{Business: "Corner Cafe"})
	require.NoError(t, err)
	assert.Equal(t, "Coffee shop", got)

	got, err = c.ClassifyMerchant(ctx, &core.Transaction{Business: "CORNER  CAFE"})
	require.NoError(t, err)
	assert.Equal(t, "Coffee shop", got)
	assert.Equal(t, 1, inner.calls)

	entry := store.entries["corner cafe"]
	require.NotNil(t, entry)
	assert.Equal(t, now.Add(24*time.Hour), entry.ExpiresAt)
}

func TestCachedClassifier_Failures(t *testing.T) {
	ctx := context.Background()
	tx := &core.Transaction{Business: "Corner Cafe"}

	inner := &countingClassifier{err: errors.New("throttled")}
	store := &mapCache{entries: map[string]*Entry{}}
	_, err := NewCachedClassifier(inner, store, time.Hour, zap.NewNop()).ClassifyMerchant(ctx, tx)
	assert.EqualError(t, err, "throttled")
	assert.Empty(t, store.entries, "errors are not cached")

	// A broken cache falls through to the model
	inner = &countingClassifier{category: "Coffee shop"}
	store = &mapCache{getErr: errors.New("db down"), setErr: errors.New("db down")}
	got, err := NewCachedClassifier(inner, store, time.Hour, zap.NewNop()).ClassifyMerchant(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, "Coffee shop", got)
	assert.Equal(t, 1, inner.calls)
}
