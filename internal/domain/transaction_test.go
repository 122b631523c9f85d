package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2025-03-01T14:30:00Z", time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC)},
		{"2025-03-01T14:30:00.5Z", time.Date(2025, 3, 1, 14, 30, 0, 500000000, time.UTC)},
		{"2025-03-01 14:30:00", time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC)},
		{"2025-03-01T14:30:00", time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC)},
		{"2025-03-01", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		got, err := ParseTimestamp(c.in)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", c.in, err)
			continue
		}
		if !got.Equal(c.want) {
			t.Errorf("%q: expected %v, got %v", c.in, c.want, got)
		}
	}

	if _, err := ParseTimestamp("last tuesday"); err == nil {
		t.Error("expected error for unparseable timestamp")
	}
}

func TestTransactionFromRecord(t *testing.T) {
	valid := func() map[string]any {
		return map[string]any{
			"transaction_id":    "tx-1",
			"user_id":           "user-001",
			"amount":            25.50,
			"merchant_id":       "merchant-01",
			"merchant_category": "groceries",
			"transaction_time":  "2025-03-01T14:00:00Z",
		}
	}

	t.Run("Valid", func(t *testing.T) {
		tx, err := TransactionFromRecord(valid())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tx.ID != "tx-1" || tx.UserID != "user-001" || tx.Amount != 25.50 {
			t.Errorf("unexpected transaction: %+v", tx)
		}
		if tx.Labeled {
			t.Error("scoring-path records must not be labeled")
		}
	})

	t.Run("AmountAsString", func(t *testing.T) {
		rec := valid()
		rec["amount"] = "99.95"
		tx, err := TransactionFromRecord(rec)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tx.Amount != 99.95 {
			t.Errorf("expected amount 99.95, got %v", tx.Amount)
		}
	})

	t.Run("TimeAsTime", func(t *testing.T) {
		rec := valid()
		want := time.Date(2025, 3, 1, 16, 0, 0, 0, time.UTC)
		rec["transaction_time"] = want
		tx, err := TransactionFromRecord(rec)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !tx.Timestamp.Equal(want) {
			t.Errorf("expected %v, got %v", want, tx.Timestamp)
		}
	})

	t.Run("MissingRequiredFields", func(t *testing.T) {
		for _, key := range []string{"user_id", "merchant_id", "amount", "transaction_time"} {
			rec := valid()
			delete(rec, key)
			if _, err := TransactionFromRecord(rec); !errors.Is(err, ErrFeature) {
				t.Errorf("missing %s: expected feature error, got %v", key, err)
			}
		}
	})

	t.Run("MalformedValues", func(t *testing.T) {
		rec := valid()
		rec["amount"] = "a lot"
		if _, err := TransactionFromRecord(rec); !errors.Is(err, ErrFeature) {
			t.Errorf("expected feature error for bad amount, got %v", err)
		}

		rec = valid()
		rec["transaction_time"] = 12345
		if _, err := TransactionFromRecord(rec); !errors.Is(err, ErrFeature) {
			t.Errorf("expected feature error for numeric timestamp, got %v", err)
		}
	})

	t.Run("OptionalFields", func(t *testing.T) {
		rec := valid()
		delete(rec, "transaction_id")
		delete(rec, "merchant_category")
		tx, err := TransactionFromRecord(rec)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tx.ID != "" || tx.MerchantCategory != "" {
			t.Errorf("expected empty optional fields, got %+v", tx)
		}
	})
}
