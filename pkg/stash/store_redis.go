package stash

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using Redis. Records are stored as JSON under
// prefixed keys with IDs from an INCR counter, so the collection keeps
// insertion order even though Redis itself is unordered.
//
// Redis TTLs are set from the record's expiry as a second line of defense;
// the engine's maintenance pass remains the authority on expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis-backed store. The prefix namespaces
// keys to avoid conflicts; if empty, "stash:" is used.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "stash:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

// NewRedisStoreFromURL creates a Redis store from a connection URL.
// Example: "redis://localhost:6379/0" or "redis://:password@localhost:6379/1"
func NewRedisStoreFromURL(url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts), prefix), nil
}

func (s *RedisStore) resultKey(id int64) string {
	return fmt.Sprintf("%sresult:%d", s.prefix, id)
}

// Sync verifies the connection.
func (s *RedisStore) Sync(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// All returns every record ordered by ID, via a prefix scan.
func (s *RedisStore) All(ctx context.Context) ([]Result, error) {
	var results []Result
	iter := s.client.Scan(ctx, 0, s.prefix+"result:*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue // expired between scan and get
		}
		if err != nil {
			return nil, fmt.Errorf("redis get failed: %w", err)
		}
		var r Result
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		results = append(results, r)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan failed: %w", err)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

// Insert assigns an ID from the counter and stores the record.
func (s *RedisStore) Insert(ctx context.Context, r *Result) error {
	id, err := s.client.Incr(ctx, s.prefix+"next_id").Result()
	if err != nil {
		return fmt.Errorf("redis incr failed: %w", err)
	}
	r.ID = id

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	var ttl time.Duration
	if !r.Expires.IsZero() {
		ttl = time.Until(r.Expires)
		if ttl <= 0 {
			// Already expired; keep it around momentarily so the record's
			// lifecycle is still observable.
			ttl = time.Millisecond
		}
	}
	return s.client.Set(ctx, s.resultKey(id), data, ttl).Err()
}

// FindOne scans for the first record matching q in insertion order.
func (s *RedisStore) FindOne(ctx context.Context, q Query) (*Result, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range all {
		if q.Matches(r) {
			match := r
			return &match, nil
		}
	}
	return nil, nil
}

// RemoveWhere deletes records selected by pred.
func (s *RedisStore) RemoveWhere(ctx context.Context, pred func(Result) bool) (int, error) {
	all, err := s.All(ctx)
	if err != nil {
		return 0, err
	}
	var ids []int64
	for _, r := range all {
		if pred(r) {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return len(ids), s.RemoveIDs(ctx, ids...)
}

// RemoveIDs deletes records by ID.
func (s *RedisStore) RemoveIDs(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.resultKey(id)
	}
	return s.client.Del(ctx, keys...).Err()
}

// Ping checks if the Redis connection is alive.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
