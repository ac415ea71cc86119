package session

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/janus/core"
)

// user id field of every session hash; values are stored under "v:<key>"
const userField = "uid"

// RedisStore keeps each session in a hash expiring with the session.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

var _ core.SessionStore = (*RedisStore)(nil)

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	prefix = strings.Trim(prefix, ":")
	if prefix == "" {
		prefix = "session"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

// NewRedisClient connects to the configured Redis and pings it.
func NewRedisClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "connecting to redis")
	}
	return rdb, nil
}

func (s *RedisStore) key(sid string) string { return s.prefix + ":" + sid }

func valueField(key string) string { return "v:" + key }

func (s *RedisStore) Create(ctx context.Context, userID int, ttl time.Duration) (string, error) {
	sid := uuid.NewString()
	k := s.key(sid)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, k, userField, strconv.Itoa(userID))
	pipe.Expire(ctx, k, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", errors.Wrap(err, "creating session")
	}
	return sid, nil
}

func (s *RedisStore) Exists(ctx context.Context, sid string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key(sid)).Result()
	if err != nil {
		return false, errors.Wrap(err, "checking session")
	}
	return n > 0, nil
}

func (s *RedisStore) Set(ctx context.Context, sid, key string, value []byte) error {
	ok, err := s.Exists(ctx, sid)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrSessionNotFound
	}
	if err := s.rdb.HSet(ctx, s.key(sid), valueField(key), value).Err(); err != nil {
		return errors.Wrap(err, "setting session value")
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sid, key string) ([]byte, error) {
	val, err := s.rdb.HGet(ctx, s.key(sid), valueField(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrSessionNotFound
		}
		return nil, errors.Wrap(err, "getting session value")
	}
	return val, nil
}

func (s *RedisStore) Unset(ctx context.Context, sid, key string) error {
	return errors.Wrap(s.rdb.HDel(ctx, s.key(sid), valueField(key)).Err(), "unsetting session value")
}

func (s *RedisStore) Delete(ctx context.Context, sid string) error {
	return errors.Wrap(s.rdb.Del(ctx, s.key(sid)).Err(), "deleting session")
}
