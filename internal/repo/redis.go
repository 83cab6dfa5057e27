package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"github.com/retention-intel/server/internal/agent/model"
	errx "github.com/retention-intel/server/internal/core/error"
	logx "github.com/retention-intel/server/pkg/logger"
)

// customerIDExtra is the schema.Message extra key holding the customer a
// message was about.
const customerIDExtra = "customer_id"

// RedisConversationRepository keeps the per-conversation transcript in a
// Redis list. Every append refreshes the TTL in the same transaction.
type RedisConversationRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisConversationRepository(rdb redis.Cmdable, ttl time.Duration) *RedisConversationRepository {
	return &RedisConversationRepository{rdb: rdb, ttl: ttl}
}

func transcriptKey(conversationID string) string {
	return fmt.Sprintf("retention:conversation:%s:messages", conversationID)
}

// Record appends message events to the transcript; other event types have no
// transcript representation and are skipped.
func (r *RedisConversationRepository) Record(ctx context.Context, ev model.Event) error {
	if !ev.IsMessage() {
		return nil
	}
	var msg *schema.Message
	switch ev.Type {
	case model.EventAssistantMessage:
		msg = schema.AssistantMessage(ev.Content, nil)
	default:
		msg = schema.UserMessage(ev.Content)
	}
	if ev.CustomerID != "" {
		msg.Extra = map[string]any{customerIDExtra: ev.CustomerID}
	}
	return r.AddMessage(ctx, ev.ConversationID, msg)
}

func (r *RedisConversationRepository) AddMessage(ctx context.Context, conversationID string, message *schema.Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	key := transcriptKey(conversationID)

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("transcript append failed")
		return errx.WrapRedis(err)
	}
	return nil
}

// LoadHistory returns the whole transcript; a missing key is an empty one.
func (r *RedisConversationRepository) LoadHistory(ctx context.Context, conversationID string) (*model.ConversationHistory, error) {
	key := transcriptKey(conversationID)
	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("transcript read failed")
		return nil, errx.WrapRedis(err)
	}

	history := &model.ConversationHistory{
		ConversationID: conversationID,
		Messages:       make([]*schema.Message, 0, len(rows)),
	}
	for i, row := range rows {
		var m schema.Message
		if err := json.Unmarshal([]byte(row), &m); err != nil {
			return nil, fmt.Errorf("decode transcript entry %d of %s: %w", i, conversationID, err)
		}
		history.Messages = append(history.Messages, &m)
	}
	return history, nil
}

func (r *RedisConversationRepository) ClearHistory(ctx context.Context, conversationID string) error {
	if err := r.rdb.Del(ctx, transcriptKey(conversationID)).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

var (
	_ model.ConversationRepository = (*RedisConversationRepository)(nil)
	_ model.EventSink              = (*RedisConversationRepository)(nil)
)
