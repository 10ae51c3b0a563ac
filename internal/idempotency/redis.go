package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"zephyr-router/internal/types"
)

const (
	resultsKey      = "idempotency:results"
	pendingSentinel = "__pending__"
	pollInterval    = 10 * time.Millisecond
)

// RedisStore shares one at-most-once domain across instances. HSetNX on the
// results hash is the reservation: the caller that lands the pending
// sentinel executes, everyone else polls the field until the committed
// payload replaces it.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) ReserveOrGet(ctx context.Context, key string) (*types.TransactionResult, Reservation, error) {
	reserved, err := s.rdb.HSetNX(ctx, resultsKey, key, pendingSentinel).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	if reserved {
		return nil, &redisReservation{rdb: s.rdb, key: key}, nil
	}

	for {
		payload, err := s.rdb.HGet(ctx, resultsKey, key).Result()
		switch {
		case err == redis.Nil:
			// Entry vanished under us (reset raced the winner); the key is
			// treated as absent and this caller executes.
			reserved, err := s.rdb.HSetNX(ctx, resultsKey, key, pendingSentinel).Result()
			if err != nil {
				return nil, nil, fmt.Errorf("failed to reserve idempotency key: %w", err)
			}
			if reserved {
				return nil, &redisReservation{rdb: s.rdb, key: key}, nil
			}
		case err != nil:
			return nil, nil, fmt.Errorf("failed to read idempotency entry: %w", err)
		case payload != pendingSentinel:
			var result types.TransactionResult
			if err := sonic.ConfigFastest.Unmarshal([]byte(payload), &result); err != nil {
				return nil, nil, fmt.Errorf("corrupt idempotency entry: %w", err)
			}
			return &result, nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (s *RedisStore) Reset(ctx context.Context) error {
	if err := s.rdb.Del(ctx, resultsKey).Err(); err != nil {
		return fmt.Errorf("failed to clear idempotency entries: %w", err)
	}
	return nil
}

type redisReservation struct {
	rdb *redis.Client
	key string
}

func (r *redisReservation) Commit(ctx context.Context, result *types.TransactionResult) error {
	payload, err := sonic.ConfigFastest.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency entry: %w", err)
	}
	if err := r.rdb.HSet(ctx, resultsKey, r.key, string(payload)).Err(); err != nil {
		return fmt.Errorf("failed to commit idempotency entry: %w", err)
	}
	return nil
}
