package history

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// MemoryStore keeps per-user history in memory, ordered by timestamp.
// A single RWMutex guards the map; concurrent scoring calls for the same
// user serialize on appends.
type MemoryStore struct {
	mu        sync.RWMutex
	byUser    map[string][]*domain.Transaction
	retention time.Duration
	closed    bool
}

// NewMemoryStore creates an in-memory history store. A zero retention
// keeps all history.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	return &MemoryStore{
		byUser:    make(map[string][]*domain.Transaction),
		retention: retention,
	}
}

// Append records a transaction, keeping the user's slice sorted by
// timestamp.
func (s *MemoryStore) Append(ctx context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.UserID == "" {
		return fmt.Errorf("%w: transaction with user_id is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	cp := *tx
	txs := s.byUser[tx.UserID]

	// Appends are usually in timestamp order; fall back to an insert
	// when they are not.
	if n := len(txs); n == 0 || !txs[n-1].Timestamp.After(cp.Timestamp) {
		txs = append(txs, &cp)
	} else {
		i := sort.Search(n, func(i int) bool {
			return txs[i].Timestamp.After(cp.Timestamp)
		})
		txs = append(txs, nil)
		copy(txs[i+1:], txs[i:])
		txs[i] = &cp
	}

	if s.retention > 0 {
		cutoff := cp.Timestamp.Add(-s.retention)
		i := sort.Search(len(txs), func(i int) bool {
			return !txs[i].Timestamp.Before(cutoff)
		})
		txs = txs[i:]
	}

	s.byUser[tx.UserID] = txs
	return nil
}

// Query returns the user's transactions with Timestamp >= since, ascending.
func (s *MemoryStore) Query(ctx context.Context, userID string, since time.Time) ([]*domain.Transaction, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userID is required", ErrInvalidInput)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := s.byUser[userID]
	i := sort.Search(len(txs), func(i int) bool {
		return !txs[i].Timestamp.Before(since)
	})

	out := make([]*domain.Transaction, len(txs)-i)
	copy(out, txs[i:])
	return out, nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close releases the stored history.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser = make(map[string][]*domain.Transaction)
	s.closed = true
	return nil
}
