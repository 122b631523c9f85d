// Package history provides per-user transaction history stores backing
// the feature engine's streaming scoring path.
package history

import (
	"errors"
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var ErrInvalidInput = errors.New("invalid input")

// New creates a history store based on configuration.
func New(cfg domain.HistoryConfig) (domain.HistoryStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(cfg.Retention), nil

	case "sqlite", "postgres":
		return newSQLStore(cfg)

	case "redis":
		return NewRedisStore(cfg)

	default:
		return nil, fmt.Errorf("unsupported history backend: %s", cfg.Backend)
	}
}
