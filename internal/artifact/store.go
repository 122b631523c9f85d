// Package artifact persists fitted pipelines across process boundaries.
package artifact

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/feature"
	"github.com/opensource-finance/kestrel/internal/pipeline"
)

// envelope is the on-disk layout. The feature list is stored alongside
// the pipeline so a loader can verify train/score feature identity before
// any prediction happens.
type envelope struct {
	SchemaVersion int
	FeatureNames  []string
	SavedAt       time.Time
	Pipeline      *pipeline.FittedPipeline
}

// Save persists a fitted pipeline to path, creating parent directories as
// needed. The write is atomic (temp file + rename) so a failed save never
// corrupts the previous artifact.
func Save(p *pipeline.FittedPipeline, path string) error {
	if p == nil || p.Forest == nil {
		return fmt.Errorf("%w: refusing to save an unfitted pipeline", domain.ErrArtifact)
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: create artifact directory: %v", domain.ErrArtifact, err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".pipeline-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", domain.ErrArtifact, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	env := envelope{
		SchemaVersion: p.SchemaVersion,
		FeatureNames:  p.FeatureNames,
		SavedAt:       time.Now().UTC(),
		Pipeline:      p,
	}

	if err := gob.NewEncoder(tmp).Encode(&env); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: encode pipeline: %v", domain.ErrArtifact, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %v", domain.ErrArtifact, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: replace artifact: %v", domain.ErrArtifact, err)
	}
	return nil
}

// Load reads a fitted pipeline from path. It fails with ErrArtifact when
// the path does not exist, the content does not decode, the schema version
// differs, or the stored feature list does not match the engine's
// canonical list. A mismatch would silently misalign columns.
func Load(path string) (*pipeline.FittedPipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrArtifact, path, err)
	}
	defer f.Close()

	var env envelope
	if err := gob.NewDecoder(f).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrArtifact, path, err)
	}

	if env.SchemaVersion != pipeline.SchemaVersion {
		return nil, fmt.Errorf("%w: schema version %d, expected %d",
			domain.ErrArtifact, env.SchemaVersion, pipeline.SchemaVersion)
	}
	if env.Pipeline == nil || env.Pipeline.Forest == nil || env.Pipeline.Scaler == nil {
		return nil, fmt.Errorf("%w: artifact has no fitted pipeline", domain.ErrArtifact)
	}

	if err := checkFeatureNames(env.FeatureNames); err != nil {
		return nil, err
	}

	return env.Pipeline, nil
}

func checkFeatureNames(stored []string) error {
	current := feature.Names()
	if len(stored) != len(current) {
		return fmt.Errorf("%w: artifact has %d features, engine derives %d",
			domain.ErrArtifact, len(stored), len(current))
	}
	for i := range current {
		if stored[i] != current[i] {
			return fmt.Errorf("%w: feature %d is %q in artifact but %q in engine",
				domain.ErrArtifact, i, stored[i], current[i])
		}
	}
	return nil
}
