package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/satdecisions/satrag/generation"
	"github.com/satdecisions/satrag/internal/cache"
)

const historyKeyPrefix = "chat:history:"

// DefaultHistoryLimit 限制单个会话保留的最大轮数，超出时丢弃最早的轮次。
const DefaultHistoryLimit = 10

// RedisHistory 把对话历史存在 Redis 中，按会话 id 一个 key。
// 过期时间沿用缓存管理器的默认 TTL，闲置会话自动清理。
type RedisHistory struct {
	cache *cache.Manager
	limit int
}

func NewRedisHistory(manager *cache.Manager, limit int) *RedisHistory {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &RedisHistory{cache: manager, limit: limit}
}

func (h *RedisHistory) History(ctx context.Context, conversationID string) ([]generation.Turn, error) {
	var turns []generation.Turn
	err := h.cache.GetJSON(ctx, historyKeyPrefix+conversationID, &turns)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation history: %w", err)
	}
	return turns, nil
}

func (h *RedisHistory) Append(ctx context.Context, conversationID string, turns ...generation.Turn) error {
	existing, err := h.History(ctx, conversationID)
	if err != nil {
		return err
	}

	existing = append(existing, turns...)
	if len(existing) > h.limit {
		existing = existing[len(existing)-h.limit:]
	}

	if err := h.cache.SetJSON(ctx, historyKeyPrefix+conversationID, existing, 0); err != nil {
		return fmt.Errorf("store conversation history: %w", err)
	}
	return nil
}
