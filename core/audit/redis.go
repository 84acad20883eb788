package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// redisList is the subset of the go-redis client the store needs.
type redisList interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Close() error
}

// RedisStore keeps entries in a capped Redis list.
type RedisStore struct {
	cli    redisList
	key    string
	maxLen int64
}

// NewRedisStore connects to the server at url (redis://...). maxLen caps the
// list; zero keeps every entry.
func NewRedisStore(url, key string, maxLen int64) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	return newRedisStore(redis.NewClient(opt), key, maxLen), nil
}

func newRedisStore(cli redisList, key string, maxLen int64) *RedisStore {
	if key == "" {
		key = "fleetdispatch:audit"
	}
	return &RedisStore{cli: cli, key: key, maxLen: maxLen}
}

// Append pushes the entry and trims the list to its cap.
func (s *RedisStore) Append(ctx context.Context, e model.AuditEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := s.cli.RPush(ctx, s.key, b).Err(); err != nil {
		return err
	}
	if s.maxLen > 0 {
		return s.cli.LTrim(ctx, s.key, -s.maxLen, -1).Err()
	}
	return nil
}

// Query reads the whole list and filters it client-side.
func (s *RedisStore) Query(ctx context.Context, q Query) ([]model.AuditEntry, error) {
	raw, err := s.cli.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	var res []model.AuditEntry
	for _, r := range raw {
		var e model.AuditEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("unmarshal entry: %w", err)
		}
		if q.Match(e) {
			res = append(res, e)
		}
	}
	return q.limit(res), nil
}

// Close closes the client.
func (s *RedisStore) Close() error { return s.cli.Close() }
