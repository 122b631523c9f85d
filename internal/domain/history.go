package domain

import (
	"context"
	"time"
)

// HistoryStore keeps per-user transaction history for feature derivation.
// Implementations must return transactions in ascending timestamp order and
// must be safe for concurrent use: scoring calls for the same user may
// append and query simultaneously.
type HistoryStore interface {
	// Append records a transaction in the user's history.
	Append(ctx context.Context, tx *Transaction) error

	// Query returns the user's transactions with Timestamp >= since,
	// ordered ascending by timestamp. A zero since returns the full
	// history.
	Query(ctx context.Context, userID string, since time.Time) ([]*Transaction, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// HistoryConfig holds configuration for history store initialization.
type HistoryConfig struct {
	// Backend is the store type: "memory", "sqlite", "postgres" or "redis"
	Backend string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis specific
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Retention bounds how much history is kept per user. Zero keeps
	// everything.
	Retention time.Duration
}
