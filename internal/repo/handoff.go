package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	errx "github.com/waflow/server/internal/core/error"
	"github.com/waflow/server/internal/handoff"
	logx "github.com/waflow/server/pkg/logger"
)

// RedisHandoffRepository stores the handoff flag per (bot, conversation)
// without a TTL; handoff never auto-expires.
type RedisHandoffRepository struct {
	rdb redis.Cmdable
}

func NewRedisHandoffRepository(rdb redis.Cmdable) *RedisHandoffRepository {
	return &RedisHandoffRepository{rdb: rdb}
}

func (r *RedisHandoffRepository) handoffKey(botID, conversationID string) string {
	return fmt.Sprintf("handoff:%s:%s", botID, conversationID)
}

func (r *RedisHandoffRepository) Active(ctx context.Context, botID, conversationID string) (bool, error) {
	key := r.handoffKey(botID, conversationID)
	val, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		// No record yet means the conversation is bot-controlled.
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to read handoff state")
		return false, errx.WrapRedis(err)
	}
	return val == "1", nil
}

func (r *RedisHandoffRepository) SetActive(ctx context.Context, botID, conversationID string, active bool) error {
	key := r.handoffKey(botID, conversationID)
	val := "0"
	if active {
		val = "1"
	}
	if err := r.rdb.Set(ctx, key, val, 0).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to write handoff state")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ handoff.Repository = (*RedisHandoffRepository)(nil)
