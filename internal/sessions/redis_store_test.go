package sessions

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabhub/collabhub/internal/platform/clock"
)

func newRedisStore(t *testing.T, now time.Time) (*RedisStore, *miniredis.Miniredis, *clock.Fake) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	fake := clock.NewFake(now)
	return NewRedisStore(client, DefaultInactivityWindow, fake), mr, fake
}

func TestRedisStoreCreateGetList(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	store, mr, _ := newRedisStore(t, now)
	ctx := context.Background()

	s1 := record("S1", "u1", now)
	s2 := record("S2", "u1", now.Add(-time.Hour))
	x1 := record("X1", "u2", now)
	for _, rec := range []Record{s1, s2, x1} {
		require.NoError(t, store.Create(ctx, rec))
	}
	assert.ErrorIs(t, store.Create(ctx, s1), ErrDuplicate)

	got, err := store.Get(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, s1, got)
	assert.Equal(t, 8*time.Hour, mr.TTL(recordKey("S1")))
	assert.Equal(t, 7*time.Hour, mr.TTL(recordKey("S2")))

	recs, err := store.ListByUser(ctx, "u1")
	require.NoError(t, err)
	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.ID)
	}
	sort.Strings(ids)
	assert.Equal(t, []string{"S1", "S2"}, ids)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	empty, err := store.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestRedisStoreCreateRollsBackWhenIndexFails(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	store, mr, _ := newRedisStore(t, now)
	ctx := context.Background()
	require.NoError(t, mr.Set(indexKey("u1"), "not-a-set"))

	err := store.Create(ctx, record("S1", "u1", now))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = store.Get(ctx, "S1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreDeleteIsIdempotent(t *testing.T) {
	now := time.Now().UTC()
	store, mr, _ := newRedisStore(t, now)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, record("S1", "u1", now)))

	require.NoError(t, store.Delete(ctx, "S1"))
	require.NoError(t, store.Delete(ctx, "S1"))

	assert.False(t, mr.Exists(recordKey("S1")))
	members, _ := mr.Members(indexKey("u1"))
	assert.NotContains(t, members, "S1")
}

func TestRedisStorePassiveExpiryPrunesIndex(t *testing.T) {
	now := time.Now().UTC()
	store, mr, _ := newRedisStore(t, now)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, record("S1", "u1", now)))
	require.NoError(t, store.Create(ctx, record("S2", "u1", now.Add(-7*time.Hour))))

	mr.FastForward(time.Hour + time.Second)

	_, err := store.Get(ctx, "S2")
	assert.ErrorIs(t, err, ErrNotFound)

	recs, err := store.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "S1", recs[0].ID)

	members, err := mr.Members(indexKey("u1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"S1"}, members)
}

func TestRedisStoreTouchExtendsExpiry(t *testing.T) {
	start := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	store, mr, fake := newRedisStore(t, start)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, record("S1", "u1", start)))

	fake.Advance(3 * time.Hour)
	mr.FastForward(3 * time.Hour)
	require.NoError(t, store.Touch(ctx, "S1", fake.Now()))

	got, err := store.Get(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, start.Add(3*time.Hour), got.LastActivity)
	assert.Equal(t, 8*time.Hour, mr.TTL(recordKey("S1")))

	assert.ErrorIs(t, store.Touch(ctx, "missing", fake.Now()), ErrNotFound)
}

func TestRedisStoreSweep(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	store, mr, _ := newRedisStore(t, now)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, record("S1", "u1", now)))
	require.NoError(t, store.Create(ctx, record("S2", "u1", now.Add(-9*time.Hour))))
	require.NoError(t, store.Create(ctx, record("X1", "u2", now.Add(-10*time.Hour))))
	// Dangling index entry with no record behind it.
	_, err := mr.SAdd(indexKey("u2"), "ghost")
	require.NoError(t, err)

	removed, err := store.Sweep(ctx, now.Add(-DefaultInactivityWindow))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = store.Get(ctx, "S1")
	assert.NoError(t, err)
	members, _ := mr.Members(indexKey("u2"))
	assert.Empty(t, members)
}

func TestRedisStoreUnavailable(t *testing.T) {
	now := time.Now().UTC()
	store, mr, _ := newRedisStore(t, now)
	mr.Close()

	_, err := store.Get(context.Background(), "S1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.False(t, errors.Is(err, ErrNotFound))

	_, err = store.ListByUser(context.Background(), "u1")
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
}
