// Package model provides the independently testable training stages:
// numeric standardization, minority oversampling, the ensemble classifier,
// and evaluation metrics.
package model

import (
	"fmt"
	"math"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// StandardScaler standardizes selected feature columns to zero mean and
// unit variance. Statistics are fit on the training split only; the
// remaining columns (category-coded features) pass through unmodified.
// Fields are exported for gob serialization.
type StandardScaler struct {
	Indices []int
	Mean    []float64
	Std     []float64
	Fitted  bool
}

// NewStandardScaler creates a scaler for the given column indices.
func NewStandardScaler(indices []int) *StandardScaler {
	return &StandardScaler{Indices: indices}
}

// Fit computes per-column mean and standard deviation from rows.
func (s *StandardScaler) Fit(rows [][]float64) error {
	if len(rows) == 0 {
		return fmt.Errorf("%w: cannot fit scaler on empty data", domain.ErrData)
	}

	s.Mean = make([]float64, len(s.Indices))
	s.Std = make([]float64, len(s.Indices))

	n := float64(len(rows))
	for j, col := range s.Indices {
		var sum float64
		for _, row := range rows {
			sum += row[col]
		}
		mean := sum / n

		var sq float64
		for _, row := range rows {
			d := row[col] - mean
			sq += d * d
		}
		std := math.Sqrt(sq / n)
		if std < 1e-12 {
			// Constant column: leave values centered, not divided.
			std = 1
		}

		s.Mean[j] = mean
		s.Std[j] = std
	}

	s.Fitted = true
	return nil
}

// Transform returns standardized copies of rows.
func (s *StandardScaler) Transform(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		t, err := s.TransformOne(row)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// TransformOne returns a standardized copy of a single row.
func (s *StandardScaler) TransformOne(row []float64) ([]float64, error) {
	if !s.Fitted {
		return nil, domain.ErrNotTrained
	}

	out := make([]float64, len(row))
	copy(out, row)
	for j, col := range s.Indices {
		if col >= len(out) {
			return nil, fmt.Errorf("%w: row has %d columns, scaler expects index %d", domain.ErrFeature, len(out), col)
		}
		out[col] = (out[col] - s.Mean[j]) / s.Std[j]
	}
	return out, nil
}
