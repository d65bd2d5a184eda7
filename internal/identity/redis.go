package identity

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/vladimirruppel/roomchat/internal/protocol"
)

// RedisStore keeps the identity under a single key.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore connects to the redis:// URL and checks it answers.
func NewRedisStore(ctx context.Context, rawURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return &RedisStore{rdb: rdb, key: "roomchat:" + Key}, nil
}

func (s *RedisStore) Load(ctx context.Context) (*protocol.Identity, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get identity")
	}

	var id protocol.Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, errors.Wrap(err, "decode identity")
	}
	return &id, nil
}

func (s *RedisStore) Save(ctx context.Context, id protocol.Identity) error {
	data, err := json.Marshal(id)
	if err != nil {
		return errors.Wrap(err, "encode identity")
	}
	return errors.Wrap(s.rdb.Set(ctx, s.key, data, 0).Err(), "set identity")
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return errors.Wrap(s.rdb.Del(ctx, s.key).Err(), "delete identity")
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
