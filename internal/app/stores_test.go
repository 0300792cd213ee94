package app

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabhub/collabhub/internal/platform/clock"
	"github.com/collabhub/collabhub/internal/sessions"
)

func TestNewSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewSessionStore(&Config{SessionStore: SessionStoreRedis}, client, nil, clock.Real())
	require.NoError(t, err)
	assert.IsType(t, &sessions.RedisStore{}, store)

	_, err = NewSessionStore(&Config{SessionStore: SessionStorePostgres}, client, nil, clock.Real())
	assert.Error(t, err)

	_, err = NewSessionStore(&Config{SessionStore: "memcached"}, client, nil, clock.Real())
	assert.Error(t, err)
}
