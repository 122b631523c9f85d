package model

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ForestConfig holds random-forest training settings.
type ForestConfig struct {
	Trees    int
	MaxDepth int
	MinLeaf  int
	Seed     int64
}

// DefaultForestConfig returns sensible defaults for fraud-scale datasets.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:    100,
		MaxDepth: 10,
		MinLeaf:  2,
		Seed:     42,
	}
}

// RandomForest is an ensemble of classification trees with class-balanced
// weighting, the second line of defense against label imbalance after
// resampling. Immutable once trained; Prob is safe for concurrent use.
// Fields are exported for gob serialization.
type RandomForest struct {
	Trees       []*TreeNode
	NumFeatures int
	ClassWeight [2]float64
	Fitted      bool
}

// TrainForest fits a forest on rows and labels. Each tree is grown on a
// bootstrap sample with its own deterministically derived seed, so a fixed
// config seed reproduces the model exactly.
func TrainForest(rows [][]float64, labels []int, cfg ForestConfig) (*RandomForest, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty training set", domain.ErrData)
	}
	if len(rows) != len(labels) {
		return nil, fmt.Errorf("%w: %d rows but %d labels", domain.ErrData, len(rows), len(labels))
	}

	var n0, n1 int
	for _, l := range labels {
		if l == 1 {
			n1++
		} else {
			n0++
		}
	}
	if n0 == 0 || n1 == 0 {
		return nil, fmt.Errorf("%w: training requires examples of both classes", domain.ErrData)
	}

	if cfg.Trees <= 0 {
		cfg.Trees = 100
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 10
	}
	if cfg.MinLeaf <= 0 {
		cfg.MinLeaf = 2
	}

	numFeatures := len(rows[0])
	mtry := int(math.Sqrt(float64(numFeatures)))
	if mtry < 1 {
		mtry = 1
	}

	// Balanced class weights: n / (2 * n_class).
	n := float64(len(labels))
	params := treeParams{
		maxDepth: cfg.MaxDepth,
		minLeaf:  cfg.MinLeaf,
		mtry:     mtry,
		classWeight: [2]float64{
			n / (2 * float64(n0)),
			n / (2 * float64(n1)),
		},
	}

	forest := &RandomForest{
		Trees:       make([]*TreeNode, cfg.Trees),
		NumFeatures: numFeatures,
		ClassWeight: params.classWeight,
	}

	// Trees are independent; grow them in parallel. Each tree gets its own
	// seeded source, so the result does not depend on scheduling.
	var wg sync.WaitGroup
	sem := make(chan struct{}, 8)

	for t := 0; t < cfg.Trees; t++ {
		wg.Add(1)
		go func(t int) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			rng := rand.New(rand.NewSource(cfg.Seed + int64(t)*7919))

			// Bootstrap sample with replacement.
			idx := make([]int, len(rows))
			for i := range idx {
				idx[i] = rng.Intn(len(rows))
			}

			forest.Trees[t] = growTree(rows, labels, idx, 0, params, rng)
		}(t)
	}
	wg.Wait()

	forest.Fitted = true
	return forest, nil
}

// Prob returns the predicted fraud probability for one sample, averaged
// over all trees.
func (f *RandomForest) Prob(row []float64) (float64, error) {
	if !f.Fitted || len(f.Trees) == 0 {
		return 0, domain.ErrNotTrained
	}
	if len(row) != f.NumFeatures {
		return 0, fmt.Errorf("%w: sample has %d features, forest expects %d", domain.ErrFeature, len(row), f.NumFeatures)
	}

	var sum float64
	for _, tree := range f.Trees {
		sum += tree.predict(row)
	}
	return sum / float64(len(f.Trees)), nil
}

// ProbBatch returns predicted fraud probabilities for multiple samples.
func (f *RandomForest) ProbBatch(rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, row := range rows {
		p, err := f.Prob(row)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}
