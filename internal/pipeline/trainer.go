package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/feature"
	"github.com/opensource-finance/kestrel/internal/model"
)

var tracer = otel.Tracer("kestrel-pipeline")

// Trainer runs the imbalance-aware training pipeline: stratified split,
// train-only standardization, train-only SMOTE resampling, class-weighted
// forest fit, held-out evaluation.
type Trainer struct {
	engine *feature.Engine
	cfg    domain.TrainingConfig
}

// NewTrainer creates a trainer with the given feature engine and settings.
func NewTrainer(engine *feature.Engine, cfg domain.TrainingConfig) *Trainer {
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		cfg.TestFraction = 0.30
	}
	return &Trainer{engine: engine, cfg: cfg}
}

// Train fits a pipeline on labeled records and evaluates it on the
// held-out split. A returned error means no pipeline was produced; any
// previously persisted artifact remains the last-known-good state.
func (t *Trainer) Train(ctx context.Context, records []*domain.Transaction) (*FittedPipeline, *model.Evaluation, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "pipeline.Train")
	defer span.End()
	_ = ctx

	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: empty training dataset", domain.ErrData)
	}

	labels := make([]int, len(records))
	var fraudCount int
	for i, rec := range records {
		if !rec.Labeled {
			return nil, nil, fmt.Errorf("%w: record %d has no is_fraud label", domain.ErrData, i)
		}
		if rec.IsFraud {
			labels[i] = 1
			fraudCount++
		}
	}
	if fraudCount == 0 || fraudCount == len(records) {
		return nil, nil, fmt.Errorf("%w: dataset must contain both fraud and legitimate examples (fraud=%d of %d)",
			domain.ErrData, fraudCount, len(records))
	}

	span.SetAttributes(
		attribute.Int("dataset.rows", len(records)),
		attribute.Int("dataset.fraud", fraudCount),
	)

	vectors, err := t.engine.Derive(records)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: feature derivation: %v", domain.ErrData, err)
	}

	rows := make([][]float64, len(vectors))
	for i, v := range vectors {
		rows[i] = v.Values
	}

	trainIdx, testIdx := stratifiedSplit(labels, t.cfg.TestFraction, t.cfg.Seed)

	trainRows, trainLabels := gather(rows, labels, trainIdx)
	testRows, testLabels := gather(rows, labels, testIdx)

	slog.Info("training pipeline",
		"rows", len(records),
		"fraud", fraudCount,
		"train_rows", len(trainRows),
		"test_rows", len(testRows),
	)

	// Standardize on training-split statistics only.
	scaler := model.NewStandardScaler(feature.NumericIndices())
	if err := scaler.Fit(trainRows); err != nil {
		return nil, nil, err
	}
	scaledTrain, err := scaler.Transform(trainRows)
	if err != nil {
		return nil, nil, err
	}

	// Rebalance the training split only; the held-out split never sees
	// synthetic samples.
	smote := model.NewSMOTE(t.cfg.SMOTENeighbors, t.cfg.Seed)
	resampledRows, resampledLabels, err := smote.Resample(scaledTrain, trainLabels)
	if err != nil {
		return nil, nil, err
	}

	forest, err := model.TrainForest(resampledRows, resampledLabels, model.ForestConfig{
		Trees:    t.cfg.Trees,
		MaxDepth: t.cfg.MaxDepth,
		MinLeaf:  t.cfg.MinLeaf,
		Seed:     t.cfg.Seed,
	})
	if err != nil {
		return nil, nil, err
	}

	scaledTest, err := scaler.Transform(testRows)
	if err != nil {
		return nil, nil, err
	}
	probs, err := forest.ProbBatch(scaledTest)
	if err != nil {
		return nil, nil, err
	}

	eval := model.Evaluate(probs, testLabels)
	eval.ElapsedMs = time.Since(start).Milliseconds()

	slog.Info("training complete",
		"precision", eval.Precision,
		"recall", eval.Recall,
		"f1", eval.F1,
		"elapsed_ms", eval.ElapsedMs,
	)

	fitted := &FittedPipeline{
		SchemaVersion: SchemaVersion,
		FeatureNames:  feature.Names(),
		Scaler:        scaler,
		Forest:        forest,
		TrainedAt:     time.Now().UTC(),
		TrainRows:     len(trainRows),
		TestRows:      len(testRows),
	}

	return fitted, eval, nil
}

// stratifiedSplit partitions indices into train/test, preserving the
// class ratio in both. The shuffle is seeded for reproducibility.
func stratifiedSplit(labels []int, testFraction float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))

	var byClass [2][]int
	for i, l := range labels {
		byClass[l] = append(byClass[l], i)
	}

	for _, idxs := range byClass {
		rng.Shuffle(len(idxs), func(a, b int) {
			idxs[a], idxs[b] = idxs[b], idxs[a]
		})

		nTest := int(float64(len(idxs)) * testFraction)
		// A class with a single example goes to the train split; a test
		// split cannot be carved from it.
		if nTest == len(idxs) && len(idxs) > 0 {
			nTest = len(idxs) - 1
		}

		test = append(test, idxs[:nTest]...)
		train = append(train, idxs[nTest:]...)
	}

	rng.Shuffle(len(train), func(a, b int) { train[a], train[b] = train[b], train[a] })
	rng.Shuffle(len(test), func(a, b int) { test[a], test[b] = test[b], test[a] })
	return train, test
}

func gather(rows [][]float64, labels []int, idx []int) ([][]float64, []int) {
	outRows := make([][]float64, len(idx))
	outLabels := make([]int, len(idx))
	for i, j := range idx {
		outRows[i] = rows[j]
		outLabels[i] = labels[j]
	}
	return outRows, outLabels
}
