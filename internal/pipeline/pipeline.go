// Package pipeline composes the training stages into a fit/evaluate
// orchestrator and defines the fitted artifact used by scoring.
package pipeline

import (
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/model"
)

// SchemaVersion identifies the artifact layout. Bump on any change to
// FittedPipeline, its stages, or the feature derivation that feeds them.
const SchemaVersion = 1

// FittedPipeline bundles the fitted preprocessing transform and the
// trained classifier. It is immutable once trained and safe for
// concurrent read-only scoring. The resampling stage is training-only and
// deliberately not part of the fitted artifact.
type FittedPipeline struct {
	SchemaVersion int
	FeatureNames  []string
	Scaler        *model.StandardScaler
	Forest        *model.RandomForest
	TrainedAt     time.Time
	TrainRows     int
	TestRows      int
}

// Predict returns the fraud probability for one feature vector.
func (p *FittedPipeline) Predict(vec domain.FeatureVector) (float64, error) {
	if p.Scaler == nil || p.Forest == nil {
		return 0, domain.ErrNotTrained
	}
	if len(vec.Values) != len(p.FeatureNames) {
		return 0, fmt.Errorf("%w: vector has %d features, pipeline expects %d",
			domain.ErrFeature, len(vec.Values), len(p.FeatureNames))
	}

	scaled, err := p.Scaler.TransformOne(vec.Values)
	if err != nil {
		return 0, err
	}
	return p.Forest.Prob(scaled)
}
