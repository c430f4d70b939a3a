package cache

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var definitions = []models.FieldDefinition{
	{ID: "def-1", TenantID: "tenant-1", EntityKind: models.EntityKindContact, Slug: "budget", DeclaredType: models.DeclaredTypeDecimal, Active: true},
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemory(time.Minute)
	cache.now = func() time.Time { return now }

	_, _, ok := cache.Get(ctx, "tenant-1", models.EntityKindContact)
	assert.False(t, ok)

	cache.Set(ctx, "tenant-1", models.EntityKindContact, 0, definitions)

	got, _, ok := cache.Get(ctx, "tenant-1", models.EntityKindContact)
	require.True(t, ok)
	assert.Equal(t, definitions, got)

	got[0].Name = "mutated"
	again, _, _ := cache.Get(ctx, "tenant-1", models.EntityKindContact)
	assert.Empty(t, again[0].Name)

	_, _, ok = cache.Get(ctx, "tenant-1", models.EntityKindCompany)
	assert.False(t, ok, "kinds are cached separately")

	t.Run("expires", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		_, _, ok := cache.Get(ctx, "tenant-1", models.EntityKindContact)
		assert.False(t, ok)
	})

	t.Run("invalidates", func(t *testing.T) {
		cache.Set(ctx, "tenant-1", models.EntityKindContact, 0, definitions)
		cache.Invalidate(ctx, "tenant-1", models.EntityKindContact)
		_, _, ok := cache.Get(ctx, "tenant-1", models.EntityKindContact)
		assert.False(t, ok)
	})

	t.Run("drops writes read before an invalidation", func(t *testing.T) {
		_, generation, ok := cache.Get(ctx, "tenant-1", models.EntityKindCompany)
		require.False(t, ok)

		cache.Invalidate(ctx, "tenant-1", models.EntityKindCompany)
		cache.Set(ctx, "tenant-1", models.EntityKindCompany, generation, definitions)
		_, current, ok := cache.Get(ctx, "tenant-1", models.EntityKindCompany)
		assert.False(t, ok)
		assert.Equal(t, generation+1, current)

		cache.Set(ctx, "tenant-1", models.EntityKindCompany, current, definitions)
		_, _, ok = cache.Get(ctx, "tenant-1", models.EntityKindCompany)
		assert.True(t, ok)
	})
}

type fakeStore struct {
	values map[string]string
	err    error
	ttls   map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	value, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, expiration time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.values[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return f.err
}

func (f *fakeStore) Incr(_ context.Context, key string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, _ := strconv.ParseInt(f.values[key], 10, 64)
	n++
	f.values[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (f *fakeStore) SetIfEqual(ctx context.Context, guardKey, guard, key string, value any, expiration time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	current, ok := f.values[guardKey]
	if !ok {
		current = "0"
	}
	if current != guard {
		return false, nil
	}
	return true, f.Set(ctx, key, value, expiration)
}

func TestRedis(t *testing.T) {
	ctx := context.Background()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	t.Run("round trips through the store", func(t *testing.T) {
		store := newFakeStore()
		cache := NewRedis(store, 5*time.Minute, logger)

		_, _, ok := cache.Get(ctx, "tenant-1", models.EntityKindContact)
		assert.False(t, ok)

		cache.Set(ctx, "tenant-1", models.EntityKindContact, 0, definitions)
		assert.Equal(t, 5*time.Minute, store.ttls["clover:definitions:tenant-1:contato"])

		got, _, ok := cache.Get(ctx, "tenant-1", models.EntityKindContact)
		require.True(t, ok)
		assert.Equal(t, definitions[0].ID, got[0].ID)
		assert.Equal(t, models.DeclaredTypeDecimal, got[0].DeclaredType)

		cache.Invalidate(ctx, "tenant-1", models.EntityKindContact)
		_, _, ok = cache.Get(ctx, "tenant-1", models.EntityKindContact)
		assert.False(t, ok)
	})

	t.Run("store errors are misses", func(t *testing.T) {
		store := newFakeStore()
		store.err = errors.New("connection refused")
		cache := NewRedis(store, time.Minute, logger)

		cache.Set(ctx, "tenant-1", models.EntityKindContact, 0, definitions)
		_, _, ok := cache.Get(ctx, "tenant-1", models.EntityKindContact)
		assert.False(t, ok)
	})

	t.Run("corrupt entries are dropped", func(t *testing.T) {
		store := newFakeStore()
		store.values["clover:definitions:tenant-1:contato"] = "not json"
		cache := NewRedis(store, time.Minute, logger)

		_, _, ok := cache.Get(ctx, "tenant-1", models.EntityKindContact)
		assert.False(t, ok)
		assert.NotContains(t, store.values, "clover:definitions:tenant-1:contato")
	})

	t.Run("drops writes read before an invalidation", func(t *testing.T) {
		store := newFakeStore()
		cache := NewRedis(store, time.Minute, logger)

		_, generation, ok := cache.Get(ctx, "tenant-1", models.EntityKindContact)
		require.False(t, ok)
		assert.Zero(t, generation)

		cache.Invalidate(ctx, "tenant-1", models.EntityKindContact)
		assert.Equal(t, "1", store.values["clover:definitions:tenant-1:contato:generation"])

		cache.Set(ctx, "tenant-1", models.EntityKindContact, generation, definitions)
		assert.NotContains(t, store.values, "clover:definitions:tenant-1:contato")

		_, current, _ := cache.Get(ctx, "tenant-1", models.EntityKindContact)
		assert.Equal(t, uint64(1), current)
		cache.Set(ctx, "tenant-1", models.EntityKindContact, current, definitions)
		_, _, ok = cache.Get(ctx, "tenant-1", models.EntityKindContact)
		assert.True(t, ok)
	})
}
