package domain

import "errors"

// Error taxonomy for the training and scoring paths.
// Callers distinguish conditions with errors.Is.
var (
	// ErrData marks a malformed or incomplete training dataset:
	// missing required column, unparseable timestamp, single-class labels.
	// Training aborts and no artifact is written.
	ErrData = errors.New("data error")

	// ErrArtifact marks a missing, corrupt, or schema-incompatible
	// stored pipeline.
	ErrArtifact = errors.New("artifact error")

	// ErrFeature marks a single scoring request that lacks required
	// fields. The scoring service converts it to a fail-closed response.
	ErrFeature = errors.New("feature error")

	// ErrNotTrained marks a prediction attempt on an unfitted pipeline.
	ErrNotTrained = errors.New("pipeline not trained")
)
