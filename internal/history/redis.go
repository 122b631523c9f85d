package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements domain.HistoryStore using Redis sorted sets,
// scored by transaction timestamp. Suitable for multi-node scoring where
// history must be shared.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisStore creates a Redis-backed history store.
func NewRedisStore(cfg domain.HistoryConfig) (*RedisStore, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, retention: cfg.Retention}, nil
}

// Append stores a transaction in the user's sorted set.
func (s *RedisStore) Append(ctx context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.UserID == "" {
		return fmt.Errorf("%w: transaction with user_id is required", ErrInvalidInput)
	}

	payload, err := json.Marshal(tx)
	if err != nil {
		return err
	}

	key := s.makeKey(tx.UserID)
	score := float64(tx.Timestamp.UnixNano())

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: payload})
	if s.retention > 0 {
		cutoff := tx.Timestamp.Add(-s.retention).UnixNano()
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Query returns the user's transactions with timestamp >= since, ascending.
func (s *RedisStore) Query(ctx context.Context, userID string, since time.Time) ([]*domain.Transaction, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userID is required", ErrInvalidInput)
	}

	min := "-inf"
	if !since.IsZero() {
		min = strconv.FormatInt(since.UnixNano(), 10)
	}

	members, err := s.client.ZRangeByScore(ctx, s.makeKey(userID), &redis.ZRangeBy{
		Min: min,
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}

	txs := make([]*domain.Transaction, 0, len(members))
	for _, m := range members {
		var tx domain.Transaction
		if err := json.Unmarshal([]byte(m), &tx); err != nil {
			return nil, fmt.Errorf("corrupt history entry for %s: %w", userID, err)
		}
		tx.Timestamp = tx.Timestamp.UTC()
		txs = append(txs, &tx)
	}

	return txs, nil
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) makeKey(userID string) string {
	return "kestrel:history:" + userID
}
