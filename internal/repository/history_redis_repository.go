package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"stockchat/internal/model"

	"github.com/redis/go-redis/v9"
)

const (
	historyKeyPrefix = "stockchat:history:"
	usersKey         = "stockchat:users"
)

// RedisHistoryRepository stores each user's turns as a capped list of JSON
// turn groups. Users are registered in a set so a read creates the record
// even while the list is still empty.
type RedisHistoryRepository struct {
	client *redis.Client
	window int
}

func NewRedisHistoryRepository(client *redis.Client, window int) *RedisHistoryRepository {
	if window < 1 {
		window = model.DefaultHistoryWindow
	}
	return &RedisHistoryRepository{client: client, window: window}
}

func (r *RedisHistoryRepository) History(ctx context.Context, user string) ([]model.Turn, error) {
	var lrange *redis.StringSliceCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, usersKey, user)
		lrange = pipe.LRange(ctx, historyKeyPrefix+user, int64(-r.window), -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", user, err)
	}

	raw := lrange.Val()
	turns := make([]model.Turn, 0, len(raw))
	for i, item := range raw {
		var turn model.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("history for %s, turn %d: %w", user, i, err)
		}
		turns = append(turns, turn)
	}

	return turns, nil
}

func (r *RedisHistoryRepository) Append(ctx context.Context, user string, turn model.Turn) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encode turn for %s: %w", user, err)
	}

	key := historyKeyPrefix + user
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, usersKey, user)
		pipe.RPush(ctx, key, payload)
		pipe.LTrim(ctx, key, int64(-r.window), -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append history for %s: %w", user, err)
	}
	return nil
}

func (r *RedisHistoryRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
