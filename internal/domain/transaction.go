package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Transaction represents a single transaction record.
// IsFraud is only meaningful when Labeled is true (training data).
type Transaction struct {
	ID               string    `json:"transactionId"`
	UserID           string    `json:"userId"`
	Amount           float64   `json:"amount"`
	MerchantID       string    `json:"merchantId"`
	MerchantCategory string    `json:"merchantCategory"`
	Timestamp        time.Time `json:"transactionTime"`

	// Label (training data only)
	IsFraud bool `json:"isFraud,omitempty"`
	Labeled bool `json:"-"`
}

// Timestamp layouts accepted for transaction_time.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a transaction_time string using the accepted layouts.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable transaction_time %q", s)
}

// TransactionFromRecord converts a loosely typed record (e.g. decoded JSON)
// into a Transaction. Missing or malformed required fields return ErrFeature,
// matching the scoring-path error taxonomy.
func TransactionFromRecord(rec map[string]any) (*Transaction, error) {
	tx := &Transaction{}

	var ok bool
	if tx.UserID, ok = stringField(rec, "user_id"); !ok {
		return nil, fmt.Errorf("%w: missing user_id", ErrFeature)
	}
	if tx.MerchantID, ok = stringField(rec, "merchant_id"); !ok {
		return nil, fmt.Errorf("%w: missing merchant_id", ErrFeature)
	}

	amount, ok := floatField(rec, "amount")
	if !ok {
		return nil, fmt.Errorf("%w: missing amount", ErrFeature)
	}
	tx.Amount = amount

	ts, ok := rec["transaction_time"]
	if !ok {
		return nil, fmt.Errorf("%w: missing transaction_time", ErrFeature)
	}
	switch v := ts.(type) {
	case time.Time:
		tx.Timestamp = v.UTC()
	case string:
		parsed, err := ParseTimestamp(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFeature, err)
		}
		tx.Timestamp = parsed
	default:
		return nil, fmt.Errorf("%w: transaction_time has unsupported type %T", ErrFeature, ts)
	}

	tx.ID, _ = stringField(rec, "transaction_id")
	tx.MerchantCategory, _ = stringField(rec, "merchant_category")

	return tx, nil
}

func stringField(rec map[string]any, key string) (string, bool) {
	v, ok := rec[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func floatField(rec map[string]any, key string) (float64, bool) {
	v, ok := rec[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
