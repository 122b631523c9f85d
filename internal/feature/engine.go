// Package feature derives temporal and behavioral features from
// transaction records. The derived feature list (names and order) is
// canonical: training and scoring must use the identical list, and the
// artifact store embeds it to enforce that at load time.
package feature

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Canonical feature names, in order. Index constants below must match.
var names = []string{
	"amount",
	"merchant_category",
	"hour",
	"day_of_week",
	"time_since_last",
	"transactions_last_hour",
	"amount_deviation",
	"location_variance",
}

// Feature vector indices.
const (
	IdxAmount = iota
	IdxMerchantCategory
	IdxHour
	IdxDayOfWeek
	IdxTimeSinceLast
	IdxTxLastHour
	IdxAmountDeviation
	IdxLocationVariance

	Count
)

// Names returns a copy of the canonical ordered feature list.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// NumericIndices returns the indices standardized by the scaler.
// Category-coded fields (merchant_category, hour, day_of_week) pass
// through unmodified.
func NumericIndices() []int {
	return []int{IdxAmount, IdxTimeSinceLast, IdxTxLastHour, IdxAmountDeviation, IdxLocationVariance}
}

// Engine derives feature vectors from transactions. The history store is
// only consulted on the single-record scoring path; batch derivation works
// purely from the provided slice.
type Engine struct {
	store domain.HistoryStore
}

// NewEngine creates a feature engine backed by the given history store.
// A nil store is valid for batch-only (training) use.
func NewEngine(store domain.HistoryStore) *Engine {
	return &Engine{store: store}
}

// Derive maps a batch of transactions to feature vectors, one per input
// record in the same order. Per-user aggregates only look backward in
// time: a feature value never depends on a transaction later than its own.
func (e *Engine) Derive(records []*domain.Transaction) ([]domain.FeatureVector, error) {
	for i, tx := range records {
		if err := validate(tx); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}

	vectors := make([]domain.FeatureVector, len(records))

	// Group record indices by user, ordered by timestamp. Stable sort
	// keeps input order for same-timestamp transactions.
	byUser := make(map[string][]int)
	for i, tx := range records {
		byUser[tx.UserID] = append(byUser[tx.UserID], i)
	}

	for _, idxs := range byUser {
		sort.SliceStable(idxs, func(a, b int) bool {
			return records[idxs[a]].Timestamp.Before(records[idxs[b]].Timestamp)
		})
		deriveUser(records, idxs, vectors)
	}

	return vectors, nil
}

// deriveUser fills vectors for one user's time-ordered transactions.
func deriveUser(records []*domain.Transaction, idxs []int, vectors []domain.FeatureVector) {
	var (
		priorSum   float64
		priorSumSq float64
		priorN     int
		merchants  = make(map[string]struct{})
		windowLo   = 0 // start of the trailing 1h window within idxs
	)

	for pos, ri := range idxs {
		tx := records[ri]
		v := make([]float64, Count)

		v[IdxAmount] = tx.Amount
		v[IdxMerchantCategory] = categoryCode(tx.MerchantCategory)
		v[IdxHour] = float64(tx.Timestamp.UTC().Hour())
		v[IdxDayOfWeek] = float64(tx.Timestamp.UTC().Weekday())

		// Seconds since the user's previous transaction; 0 for the first.
		if pos > 0 {
			prev := records[idxs[pos-1]]
			v[IdxTimeSinceLast] = tx.Timestamp.Sub(prev.Timestamp).Seconds()
		}

		// Trailing [t-1h, t] count, inclusive of this transaction.
		cutoff := tx.Timestamp.Add(-time.Hour)
		for records[idxs[windowLo]].Timestamp.Before(cutoff) {
			windowLo++
		}
		v[IdxTxLastHour] = float64(pos - windowLo + 1)

		// Z-score against strictly prior amounts; 0 without enough
		// history for a standard deviation.
		if priorN >= 2 {
			mean := priorSum / float64(priorN)
			variance := (priorSumSq - float64(priorN)*mean*mean) / float64(priorN-1)
			if variance > 1e-12 {
				v[IdxAmountDeviation] = (tx.Amount - mean) / math.Sqrt(variance)
			}
		}

		merchants[tx.MerchantID] = struct{}{}
		v[IdxLocationVariance] = float64(len(merchants))

		vectors[ri] = domain.FeatureVector{TxID: tx.ID, Values: v}

		priorSum += tx.Amount
		priorSumSq += tx.Amount * tx.Amount
		priorN++
	}
}

// DeriveOne derives the feature vector for a single incoming transaction,
// reconstructing the user's past from the history store and running it
// through the same batch code path as training. The transaction is
// appended to the store afterwards; an append failure is logged rather
// than failing the call, since the derived vector is already valid.
func (e *Engine) DeriveOne(ctx context.Context, tx *domain.Transaction) (domain.FeatureVector, error) {
	if err := validate(tx); err != nil {
		return domain.FeatureVector{}, err
	}
	if e.store == nil {
		return domain.FeatureVector{}, fmt.Errorf("%w: no history store configured", domain.ErrFeature)
	}

	history, err := e.store.Query(ctx, tx.UserID, time.Time{})
	if err != nil {
		return domain.FeatureVector{}, fmt.Errorf("%w: history query: %v", domain.ErrFeature, err)
	}

	// Only the past is visible; drop anything after this transaction.
	batch := make([]*domain.Transaction, 0, len(history)+1)
	for _, h := range history {
		if !h.Timestamp.After(tx.Timestamp) {
			batch = append(batch, h)
		}
	}
	batch = append(batch, tx)

	vectors, err := e.Derive(batch)
	if err != nil {
		return domain.FeatureVector{}, err
	}

	if err := e.store.Append(ctx, tx); err != nil {
		slog.Warn("failed to append transaction to history",
			"user_id", tx.UserID,
			"tx_id", tx.ID,
			"error", err,
		)
	}

	return vectors[len(vectors)-1], nil
}

func validate(tx *domain.Transaction) error {
	if tx == nil {
		return fmt.Errorf("%w: nil transaction", domain.ErrFeature)
	}
	if tx.UserID == "" {
		return fmt.Errorf("%w: missing user_id", domain.ErrFeature)
	}
	if tx.MerchantID == "" {
		return fmt.Errorf("%w: missing merchant_id", domain.ErrFeature)
	}
	if tx.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing transaction_time", domain.ErrFeature)
	}
	return nil
}

// categoryCode maps a merchant category to a stable integer code. Hashing
// keeps the coding identical between training and scoring without carrying
// a category table in the artifact.
func categoryCode(category string) float64 {
	h := fnv.New32a()
	h.Write([]byte(category))
	return float64(h.Sum32() % 1000)
}
