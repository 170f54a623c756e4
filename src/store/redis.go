package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/orchestra-mcp/relay/src/types"
	"github.com/redis/go-redis/v9"
)

// Redis keeps each channel's history in a list, newest message at the head.
type Redis struct {
	client     *redis.Client
	prefix     string
	maxHistory int
	now        func() time.Time
}

var _ MessageStore = (*Redis)(nil)

// NewRedis creates a store from cfg. It does not dial; call Ping to verify the
// server is reachable.
func NewRedis(cfg *RedisConfig) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisWithClient(client, cfg.Prefix, cfg.MaxHistory)
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string, maxHistory int) *Redis {
	return &Redis{
		client:     client,
		prefix:     prefix,
		maxHistory: maxHistory,
		now:        time.Now,
	}
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) channelKey(channelID string) string {
	return r.prefix + "channel:" + channelID
}

func (r *Redis) Append(ctx context.Context, msg NewMessage) (*types.ChatMessage, error) {
	m, err := Prepare(msg, r.now())
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	key := r.channelKey(m.ChannelID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		if r.maxHistory > 0 {
			pipe.LTrim(ctx, key, 0, int64(r.maxHistory-1))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("append message to %s: %w", key, err)
	}
	return &m, nil
}

func (r *Redis) Recent(ctx context.Context, channelID string, limit int) ([]types.ChatMessage, error) {
	key := r.channelKey(channelID)
	raw, err := r.client.LRange(ctx, key, 0, int64(ClampLimit(limit)-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", key, err)
	}
	return decodeHistory(raw)
}

// decodeHistory decodes list entries. Any undecodable entry fails the read.
func decodeHistory(raw []string) ([]types.ChatMessage, error) {
	out := make([]types.ChatMessage, 0, len(raw))
	for i, s := range raw {
		var m types.ChatMessage
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, fmt.Errorf("decode history entry %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
