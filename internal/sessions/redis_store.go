package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/collabhub/collabhub/internal/platform/clock"
)

const (
	recordKeyPrefix = "device_session:"
	indexKeyPrefix  = "user_sessions:"
	minRecordTTL    = time.Second
)

// RedisStore keeps records as JSON values that expire with the inactivity
// window, plus one id set per actor.
type RedisStore struct {
	client *redis.Client
	window time.Duration
	clock  clock.Clock
}

// NewRedisStore constructs a RedisStore. A zero window uses
// DefaultInactivityWindow.
func NewRedisStore(client *redis.Client, window time.Duration, clk clock.Clock) *RedisStore {
	if window <= 0 {
		window = DefaultInactivityWindow
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &RedisStore{client: client, window: window, clock: clk}
}

// Create stores rec and indexes it under its actor.
func (s *RedisStore) Create(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, recordKey(rec.ID), data, s.ttl(rec.LastActivity)).Result()
	if err != nil {
		return unavailable("redis create", err)
	}
	if !ok {
		return ErrDuplicate
	}
	if err := s.client.SAdd(ctx, indexKey(rec.UserID), rec.ID).Err(); err != nil {
		// Unindexed records are invisible to listings.
		if delErr := s.client.Del(ctx, recordKey(rec.ID)).Err(); delErr != nil {
			err = errors.Join(err, delErr)
		}
		return unavailable("redis index", err)
	}
	return nil
}

// Get loads one record.
func (s *RedisStore) Get(ctx context.Context, id string) (Record, error) {
	data, err := s.client.Get(ctx, recordKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, unavailable("redis get", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ListByUser returns the live records of userID and prunes index entries
// whose record already expired.
func (s *RedisStore) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	ids, err := s.client.SMembers(ctx, indexKey(userID)).Result()
	if err != nil {
		return nil, unavailable("redis list", err)
	}
	recs, stale, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(stale) > 0 {
		// Pruning is best effort; the next listing retries.
		_ = s.client.SRem(ctx, indexKey(userID), toAny(stale)...).Err()
	}
	return recs, nil
}

// Delete removes the record and its index entry.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	rec, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, recordKey(id))
		pipe.SRem(ctx, indexKey(rec.UserID), id)
		return nil
	})
	if err != nil {
		return unavailable("redis delete", err)
	}
	return nil
}

// Touch moves LastActivity forward and restarts the expiry.
func (s *RedisStore) Touch(ctx context.Context, id string, at time.Time) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	rec.LastActivity = at
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ok, err := s.client.SetXX(ctx, recordKey(id), data, s.ttl(at)).Result()
	if err != nil {
		return unavailable("redis touch", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Sweep deletes records idle since before cutoff and drops index entries of
// records Redis already expired. It returns the number of records deleted.
func (s *RedisStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	iter := s.client.Scan(ctx, 0, indexKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ids, err := s.client.SMembers(ctx, key).Result()
		if err != nil {
			return removed, unavailable("redis sweep members", err)
		}
		recs, stale, err := s.load(ctx, ids)
		if err != nil {
			return removed, err
		}
		for _, rec := range recs {
			if !rec.LastActivity.Before(cutoff) {
				continue
			}
			if err := s.client.Del(ctx, recordKey(rec.ID)).Err(); err != nil {
				return removed, unavailable("redis sweep delete", err)
			}
			stale = append(stale, rec.ID)
			removed++
		}
		if len(stale) > 0 {
			if err := s.client.SRem(ctx, key, toAny(stale)...).Err(); err != nil {
				return removed, unavailable("redis sweep prune", err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, unavailable("redis sweep scan", err)
	}
	return removed, nil
}

func (s *RedisStore) load(ctx context.Context, ids []string) ([]Record, []string, error) {
	recs := make([]Record, 0, len(ids))
	if len(ids) == 0 {
		return recs, nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = recordKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, unavailable("redis mget", err)
	}
	var stale []string
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, nil, err
		}
		recs = append(recs, rec)
	}
	return recs, stale, nil
}

func (s *RedisStore) ttl(lastActivity time.Time) time.Duration {
	ttl := lastActivity.Add(s.window).Sub(s.clock.Now())
	if ttl < minRecordTTL {
		return minRecordTTL
	}
	return ttl.Truncate(time.Second)
}

func recordKey(id string) string { return recordKeyPrefix + id }

func indexKey(userID string) string { return indexKeyPrefix + strings.TrimSpace(userID) }

func toAny(ids []string) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

var (
	_ Store   = (*RedisStore)(nil)
	_ Sweeper = (*RedisStore)(nil)
)
