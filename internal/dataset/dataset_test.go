package dataset

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const csvHeader = "transaction_id,user_id,amount,merchant_id,merchant_category,transaction_time,is_fraud\n"

func TestReadCSV(t *testing.T) {
	t.Run("ValidRows", func(t *testing.T) {
		input := csvHeader +
			"tx-1,user-001,25.50,merchant-01,groceries,2025-03-01T14:00:00Z,0\n" +
			"tx-2,user-001,4800.00,merchant-99,jewelry,2025-03-01T03:00:00Z,1\n"

		txs, err := ReadCSV(strings.NewReader(input))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(txs) != 2 {
			t.Fatalf("expected 2 transactions, got %d", len(txs))
		}

		tx := txs[0]
		if tx.ID != "tx-1" || tx.UserID != "user-001" || tx.Amount != 25.50 {
			t.Errorf("unexpected first transaction: %+v", tx)
		}
		if tx.IsFraud || !tx.Labeled {
			t.Errorf("expected labeled legitimate transaction, got fraud=%v labeled=%v", tx.IsFraud, tx.Labeled)
		}
		want := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
		if !tx.Timestamp.Equal(want) {
			t.Errorf("expected timestamp %v, got %v", want, tx.Timestamp)
		}
		if !txs[1].IsFraud {
			t.Error("expected second transaction to be fraud")
		}
	})

	t.Run("ColumnOrderDoesNotMatter", func(t *testing.T) {
		input := "is_fraud,amount,transaction_id,user_id,merchant_id,merchant_category,transaction_time\n" +
			"1,99.00,tx-1,user-001,merchant-01,fuel,2025-03-01T10:00:00Z\n"
		txs, err := ReadCSV(strings.NewReader(input))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if txs[0].Amount != 99 || !txs[0].IsFraud {
			t.Errorf("columns misaligned: %+v", txs[0])
		}
	})

	t.Run("BoolSpellings", func(t *testing.T) {
		input := csvHeader +
			"tx-1,user-001,1,m,c,2025-03-01T10:00:00Z,true\n" +
			"tx-2,user-001,1,m,c,2025-03-01T10:01:00Z,FALSE\n"
		txs, err := ReadCSV(strings.NewReader(input))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !txs[0].IsFraud || txs[1].IsFraud {
			t.Errorf("bool parsing wrong: %v %v", txs[0].IsFraud, txs[1].IsFraud)
		}
	})

	t.Run("MissingColumn", func(t *testing.T) {
		input := "transaction_id,user_id,amount\ntx-1,user-001,10\n"
		if _, err := ReadCSV(strings.NewReader(input)); !errors.Is(err, domain.ErrData) {
			t.Errorf("expected data error for missing columns, got %v", err)
		}
	})

	t.Run("BadAmount", func(t *testing.T) {
		input := csvHeader + "tx-1,user-001,notanumber,m,c,2025-03-01T10:00:00Z,0\n"
		if _, err := ReadCSV(strings.NewReader(input)); !errors.Is(err, domain.ErrData) {
			t.Errorf("expected data error for bad amount, got %v", err)
		}
	})

	t.Run("BadTimestamp", func(t *testing.T) {
		input := csvHeader + "tx-1,user-001,10,m,c,yesterday,0\n"
		if _, err := ReadCSV(strings.NewReader(input)); !errors.Is(err, domain.ErrData) {
			t.Errorf("expected data error for bad timestamp, got %v", err)
		}
	})

	t.Run("BadLabel", func(t *testing.T) {
		input := csvHeader + "tx-1,user-001,10,m,c,2025-03-01T10:00:00Z,maybe\n"
		if _, err := ReadCSV(strings.NewReader(input)); !errors.Is(err, domain.ErrData) {
			t.Errorf("expected data error for bad label, got %v", err)
		}
	})

	t.Run("EmptyDataset", func(t *testing.T) {
		if _, err := ReadCSV(strings.NewReader(csvHeader)); !errors.Is(err, domain.ErrData) {
			t.Errorf("expected data error for header-only input, got %v", err)
		}
	})
}

func TestLoadCSVMissingFile(t *testing.T) {
	if _, err := LoadCSV("/nonexistent/path.csv"); !errors.Is(err, domain.ErrData) {
		t.Errorf("expected data error, got %v", err)
	}
}

func TestGenerateSynthetic(t *testing.T) {
	t.Run("SizeAndLabels", func(t *testing.T) {
		txs := GenerateSynthetic(1000, 0.02, 42)
		if len(txs) != 1000 {
			t.Fatalf("expected 1000 transactions, got %d", len(txs))
		}
		var fraud int
		for _, tx := range txs {
			if !tx.Labeled {
				t.Fatal("synthetic transaction without a label")
			}
			if tx.IsFraud {
				fraud++
			}
		}
		// Around 2%, loosely bounded.
		if fraud < 5 || fraud > 60 {
			t.Errorf("fraud count %d far from configured 2%%", fraud)
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		a := GenerateSynthetic(100, 0.05, 7)
		b := GenerateSynthetic(100, 0.05, 7)
		for i := range a {
			if a[i].ID != b[i].ID || a[i].Amount != b[i].Amount || !a[i].Timestamp.Equal(b[i].Timestamp) {
				t.Fatalf("transaction %d differs between identically seeded runs", i)
			}
		}
	})

	t.Run("BothClassesAlwaysPresent", func(t *testing.T) {
		txs := GenerateSynthetic(50, 0, 1)
		var fraud bool
		for _, tx := range txs {
			fraud = fraud || tx.IsFraud
		}
		if !fraud {
			t.Error("expected at least one fraud example even at zero rate")
		}
	})
}
