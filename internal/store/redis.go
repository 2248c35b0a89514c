package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisClient is the subset of *redis.Client the store uses.
type redisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Close() error
}

// RedisStore keeps each record as a JSON string under prefix+title.
type RedisStore struct {
	client redisClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to addr. A zero ttl keeps records forever.
func NewRedisStore(addr, prefix string, ttl time.Duration) *RedisStore {
	return newRedisStore(redis.NewClient(&redis.Options{Addr: addr}), prefix, ttl)
}

func newRedisStore(client redisClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(title string) string {
	return s.prefix + title
}

func (s *RedisStore) Save(ctx context.Context, title string, record *PageRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(title), payload, s.ttl).Err()
}

func (s *RedisStore) Load(ctx context.Context, title string) (*PageRecord, error) {
	val, err := s.client.Get(ctx, s.key(title)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound(title)
		}
		return nil, err
	}
	return decodeRecord([]byte(val), title)
}

// List scans the key prefix and loads each record. Keys that expire
// between the scan and the read are skipped.
func (s *RedisStore) List(ctx context.Context) ([]*PageRecord, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(keys)

	records := make([]*PageRecord, 0, len(keys))
	for _, key := range keys {
		val, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		record, err := decodeRecord([]byte(val), key)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
