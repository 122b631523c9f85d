// Package scoring applies a fitted pipeline to single transactions and
// turns probabilities into alert decisions.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/feature"
	"github.com/opensource-finance/kestrel/internal/pipeline"
	"github.com/opensource-finance/kestrel/internal/rules"
)

var tracer = otel.Tracer("kestrel-scoring")

// Service scores single transactions against a loaded fitted pipeline.
// The pipeline is read-only; the service is safe for concurrent use.
//
// The scoring path fails closed: any per-call error yields a "no alert,
// probability 0" result together with the error, never a panic into the
// caller. A degraded scorer produces false negatives, not outages.
type Service struct {
	fitted    *pipeline.FittedPipeline
	engine    *feature.Engine
	guard     *rules.Engine   // optional, may be nil
	bus       domain.EventBus // optional, may be nil
	threshold float64
}

// NewService creates a scoring service. It verifies the pipeline's stored
// feature list against the engine's canonical list before any scoring
// happens; a mismatch is an artifact error, not a silent misalignment.
func NewService(fitted *pipeline.FittedPipeline, engine *feature.Engine, guard *rules.Engine, bus domain.EventBus, threshold float64) (*Service, error) {
	if fitted == nil {
		return nil, fmt.Errorf("%w: no fitted pipeline", domain.ErrArtifact)
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("alert threshold must be in [0,1], got %v", threshold)
	}

	current := feature.Names()
	if len(fitted.FeatureNames) != len(current) {
		return nil, fmt.Errorf("%w: pipeline has %d features, engine derives %d",
			domain.ErrArtifact, len(fitted.FeatureNames), len(current))
	}
	for i := range current {
		if fitted.FeatureNames[i] != current[i] {
			return nil, fmt.Errorf("%w: feature %d is %q in pipeline but %q in engine",
				domain.ErrArtifact, i, fitted.FeatureNames[i], current[i])
		}
	}

	return &Service{
		fitted:    fitted,
		engine:    engine,
		guard:     guard,
		bus:       bus,
		threshold: threshold,
	}, nil
}

// Threshold returns the configured decision threshold.
func (s *Service) Threshold() float64 {
	return s.threshold
}

// Score converts a loosely typed record into a transaction and scores it.
func (s *Service) Score(ctx context.Context, rec map[string]any) (domain.ScoreResult, error) {
	tx, err := domain.TransactionFromRecord(rec)
	if err != nil {
		return domain.ScoreResult{}, err
	}
	return s.ScoreTransaction(ctx, tx)
}

// ScoreTransaction derives features for one transaction through the same
// engine used at training time, predicts a fraud probability, and
// compares it against the threshold (inclusive: probability >= threshold
// alerts). On error the result is the fail-closed default.
func (s *Service) ScoreTransaction(ctx context.Context, tx *domain.Transaction) (result domain.ScoreResult, err error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "scoring.Score")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic during scoring", "error", r)
			result = domain.ScoreResult{}
			err = fmt.Errorf("%w: panic during scoring: %v", domain.ErrFeature, r)
		}
	}()

	vec, err := s.engine.DeriveOne(ctx, tx)
	if err != nil {
		return domain.ScoreResult{}, err
	}

	prob, err := s.fitted.Predict(vec)
	if err != nil {
		return domain.ScoreResult{}, err
	}

	result = domain.ScoreResult{
		TxID:        tx.ID,
		Probability: prob,
		Alert:       prob >= s.threshold,
	}
	if result.Alert {
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("probability %.4f >= threshold %.4f", prob, s.threshold))
	}

	// Guard rules see raw feature values and can only force an alert,
	// never suppress one.
	if s.guard != nil {
		if reasons := s.guard.Evaluate(tx, vec); len(reasons) > 0 {
			result.Alert = true
			result.Reasons = append(result.Reasons, reasons...)
		}
	}

	span.SetAttributes(
		attribute.Float64("score.probability", prob),
		attribute.Bool("score.alert", result.Alert),
	)

	if result.Alert {
		s.emitAlert(ctx, tx, result)
	}

	slog.Debug("transaction scored",
		"tx_id", tx.ID,
		"user_id", tx.UserID,
		"probability", prob,
		"alert", result.Alert,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

// emitAlert publishes the alert event. Delivery is fire-and-forget: a
// publish failure is logged and the scoring result stands.
func (s *Service) emitAlert(ctx context.Context, tx *domain.Transaction, result domain.ScoreResult) {
	alert := domain.Alert{
		ID:          uuid.New().String(),
		TxID:        tx.ID,
		UserID:      tx.UserID,
		Probability: result.Probability,
		Threshold:   s.threshold,
		Reasons:     result.Reasons,
		Timestamp:   time.Now().UTC(),
	}

	slog.Warn("fraud alert",
		"alert_id", alert.ID,
		"tx_id", alert.TxID,
		"user_id", alert.UserID,
		"probability", alert.Probability,
	)

	if s.bus == nil {
		return
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		slog.Error("failed to marshal alert", "error", err)
		return
	}
	if err := s.bus.Publish(ctx, domain.TopicAlert, payload); err != nil {
		slog.Error("failed to publish alert", "error", err)
	}
}
