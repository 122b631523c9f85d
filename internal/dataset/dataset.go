// Package dataset loads and validates labeled transaction data for
// training.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Columns required in a labeled training CSV.
var requiredColumns = []string{
	"transaction_id",
	"user_id",
	"amount",
	"merchant_id",
	"merchant_category",
	"transaction_time",
	"is_fraud",
}

// LoadCSV reads a labeled training dataset. Any structural problem
// (missing required column, unparseable amount or timestamp) returns
// ErrData with the offending row.
func LoadCSV(path string) ([]*domain.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrData, path, err)
	}
	defer f.Close()

	return ReadCSV(f)
}

// ReadCSV parses labeled transactions from CSV content with a header row.
func ReadCSV(r io.Reader) ([]*domain.Transaction, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", domain.ErrData, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: missing required column %q", domain.ErrData, name)
		}
	}

	var txs []*domain.Transaction
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", domain.ErrData, line, err)
		}
		line++

		tx, err := parseRow(row, cols)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", domain.ErrData, line, err)
		}
		txs = append(txs, tx)
	}

	if len(txs) == 0 {
		return nil, fmt.Errorf("%w: dataset has no rows", domain.ErrData)
	}

	return txs, nil
}

func parseRow(row []string, cols map[string]int) (*domain.Transaction, error) {
	amount, err := strconv.ParseFloat(row[cols["amount"]], 64)
	if err != nil {
		return nil, fmt.Errorf("bad amount %q", row[cols["amount"]])
	}

	ts, err := domain.ParseTimestamp(row[cols["transaction_time"]])
	if err != nil {
		return nil, err
	}

	isFraud, err := parseBool(row[cols["is_fraud"]])
	if err != nil {
		return nil, err
	}

	return &domain.Transaction{
		ID:               row[cols["transaction_id"]],
		UserID:           row[cols["user_id"]],
		Amount:           amount,
		MerchantID:       row[cols["merchant_id"]],
		MerchantCategory: row[cols["merchant_category"]],
		Timestamp:        ts,
		IsFraud:          isFraud,
		Labeled:          true,
	}, nil
}

func parseBool(s string) (bool, error) {
	switch s {
	case "1", "true", "True", "TRUE":
		return true, nil
	case "0", "false", "False", "FALSE":
		return false, nil
	default:
		return false, fmt.Errorf("bad is_fraud value %q", s)
	}
}
