package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	errx "github.com/waflow/server/internal/core/error"
	"github.com/waflow/server/internal/rag"
	logx "github.com/waflow/server/pkg/logger"
)

// RedisHashCache remembers the last indexed content hash per
// (source, flow) pair.
type RedisHashCache struct {
	rdb redis.Cmdable
}

func NewRedisHashCache(rdb redis.Cmdable) *RedisHashCache {
	return &RedisHashCache{rdb: rdb}
}

func (r *RedisHashCache) hashKey(source, flowID string) string {
	return fmt.Sprintf("dochash:%s:%s", flowID, source)
}

func (r *RedisHashCache) Get(ctx context.Context, source, flowID string) (string, error) {
	val, err := r.rdb.Get(ctx, r.hashKey(source, flowID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", errx.WrapRedis(err)
	}
	return val, nil
}

func (r *RedisHashCache) Set(ctx context.Context, source, flowID, hash string) error {
	if err := r.rdb.Set(ctx, r.hashKey(source, flowID), hash, 0).Err(); err != nil {
		logx.Error().Err(err).Str("source", source).Msg("failed to store content hash")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisHashCache) Delete(ctx context.Context, source, flowID string) error {
	if err := r.rdb.Del(ctx, r.hashKey(source, flowID)).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

var _ rag.HashCache = (*RedisHashCache)(nil)
