package model

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// SMOTE synthesizes minority-class samples by interpolating between a
// minority sample and one of its k nearest minority neighbors. It is
// applied to the training split only, during fitting only; scoring never
// sees it.
type SMOTE struct {
	K    int
	Seed int64
}

// NewSMOTE creates a resampler with k neighbors and a fixed seed.
func NewSMOTE(k int, seed int64) *SMOTE {
	if k <= 0 {
		k = 5
	}
	return &SMOTE{K: k, Seed: seed}
}

// Resample returns rows and labels with synthetic fraud samples appended
// until the classes are balanced. The input slices are not modified.
func (s *SMOTE) Resample(rows [][]float64, labels []int) ([][]float64, []int, error) {
	if len(rows) != len(labels) {
		return nil, nil, fmt.Errorf("%w: %d rows but %d labels", domain.ErrData, len(rows), len(labels))
	}

	var minority, majority [][]float64
	for i, row := range rows {
		if labels[i] == 1 {
			minority = append(minority, row)
		} else {
			majority = append(majority, row)
		}
	}

	if len(minority) == 0 || len(majority) == 0 {
		return nil, nil, fmt.Errorf("%w: resampling requires examples of both classes", domain.ErrData)
	}

	needed := len(majority) - len(minority)
	if needed <= 0 {
		out := make([][]float64, len(rows))
		copy(out, rows)
		outLabels := make([]int, len(labels))
		copy(outLabels, labels)
		return out, outLabels, nil
	}

	rng := rand.New(rand.NewSource(s.Seed))

	out := make([][]float64, len(rows), len(rows)+needed)
	copy(out, rows)
	outLabels := make([]int, len(labels), len(labels)+needed)
	copy(outLabels, labels)

	for i := 0; i < needed; i++ {
		base := minority[rng.Intn(len(minority))]

		var synthetic []float64
		if len(minority) == 1 {
			// No neighbor to interpolate with; duplicate.
			synthetic = append([]float64(nil), base...)
		} else {
			nb := s.nearestNeighbor(minority, base, rng)
			gap := rng.Float64()
			synthetic = make([]float64, len(base))
			for j := range base {
				synthetic[j] = base[j] + gap*(nb[j]-base[j])
			}
		}

		out = append(out, synthetic)
		outLabels = append(outLabels, 1)
	}

	return out, outLabels, nil
}

// nearestNeighbor picks a random sample among the k nearest minority
// neighbors of base (excluding base itself).
func (s *SMOTE) nearestNeighbor(minority [][]float64, base []float64, rng *rand.Rand) []float64 {
	type candidate struct {
		idx  int
		dist float64
	}

	cands := make([]candidate, 0, len(minority))
	for i, m := range minority {
		d := squaredDistance(base, m)
		if d == 0 {
			continue
		}
		cands = append(cands, candidate{idx: i, dist: d})
	}
	if len(cands) == 0 {
		return base
	}

	sort.Slice(cands, func(a, b int) bool { return cands[a].dist < cands[b].dist })

	k := s.K
	if k > len(cands) {
		k = len(cands)
	}
	return minority[cands[rng.Intn(k)].idx]
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	if math.IsNaN(sum) {
		return math.MaxFloat64
	}
	return sum
}
