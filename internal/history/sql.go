package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// SQLStore implements domain.HistoryStore using database/sql.
// Works with both the SQLite and PostgreSQL drivers.
type SQLStore struct {
	db     *sql.DB
	driver string
}

const schemaUserHistory = `
CREATE TABLE IF NOT EXISTS user_history (
    id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    amount REAL NOT NULL,
    merchant_id TEXT NOT NULL,
    merchant_category TEXT,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_user_history_user ON user_history(user_id, timestamp);
`

func newSQLStore(cfg domain.HistoryConfig) (*SQLStore, error) {
	var db *sql.DB
	var err error

	switch cfg.Backend {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Backend)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLStore{db: db, driver: cfg.Backend}
	if _, err := db.Exec(schemaUserHistory); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// Append stores a transaction in the user's history.
func (s *SQLStore) Append(ctx context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.UserID == "" {
		return fmt.Errorf("%w: transaction with user_id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO user_history (id, user_id, amount, merchant_id, merchant_category, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		tx.ID, tx.UserID, tx.Amount, tx.MerchantID, tx.MerchantCategory, tx.Timestamp,
	)
	return err
}

// Query returns the user's transactions with timestamp >= since, ascending.
func (s *SQLStore) Query(ctx context.Context, userID string, since time.Time) ([]*domain.Transaction, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, user_id, amount, merchant_id, merchant_category, timestamp
		FROM user_history
		WHERE user_id = ? AND timestamp >= ?
		ORDER BY timestamp ASC
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var category sql.NullString

		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &tx.MerchantID, &category, &tx.Timestamp); err != nil {
			return nil, err
		}
		tx.MerchantCategory = category.String
		tx.Timestamp = tx.Timestamp.UTC()
		txs = append(txs, &tx)
	}

	return txs, rows.Err()
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
