package artifact

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/opensource-finance/kestrel/internal/dataset"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/feature"
	"github.com/opensource-finance/kestrel/internal/pipeline"
)

func trainFixture(t *testing.T) *pipeline.FittedPipeline {
	t.Helper()
	records := dataset.GenerateSynthetic(400, 0.05, 42)
	cfg := domain.TrainingConfig{
		Seed: 42, TestFraction: 0.3, Trees: 10, MaxDepth: 6, MinLeaf: 2, SMOTENeighbors: 3,
	}
	fitted, _, err := pipeline.NewTrainer(feature.NewEngine(nil), cfg).Train(context.Background(), records)
	if err != nil {
		t.Fatalf("fixture training failed: %v", err)
	}
	return fitted
}

func TestSaveLoad(t *testing.T) {
	fitted := trainFixture(t)
	dir := t.TempDir()

	t.Run("RoundTrip", func(t *testing.T) {
		path := filepath.Join(dir, "pipeline.bin")
		if err := Save(fitted, path); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		loaded, err := Load(path)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}

		// The reloaded pipeline must score identically.
		vecs := []domain.FeatureVector{
			{Values: []float64{25, 300, 14, 2, 3600, 1, 0, 1}},
			{Values: []float64{4800, 700, 3, 0, 45, 6, 8, 9}},
		}
		for i, vec := range vecs {
			a, err := fitted.Predict(vec)
			if err != nil {
				t.Fatalf("vector %d: predict failed: %v", i, err)
			}
			b, err := loaded.Predict(vec)
			if err != nil {
				t.Fatalf("vector %d: predict on loaded failed: %v", i, err)
			}
			if math.Abs(a-b) > 1e-12 {
				t.Errorf("vector %d: probabilities diverge after reload: %v vs %v", i, a, b)
			}
		}
	})

	t.Run("CreatesParentDirectories", func(t *testing.T) {
		path := filepath.Join(dir, "nested", "deeper", "pipeline.bin")
		if err := Save(fitted, path); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if _, err := Load(path); err != nil {
			t.Fatalf("load failed: %v", err)
		}
	})

	t.Run("OverwriteIsAtomic", func(t *testing.T) {
		path := filepath.Join(dir, "overwrite.bin")
		if err := Save(fitted, path); err != nil {
			t.Fatalf("first save failed: %v", err)
		}
		if err := Save(fitted, path); err != nil {
			t.Fatalf("second save failed: %v", err)
		}
		if _, err := Load(path); err != nil {
			t.Fatalf("load after overwrite failed: %v", err)
		}
		// No temp files left behind.
		matches, _ := filepath.Glob(filepath.Join(dir, ".pipeline-*.tmp"))
		if len(matches) != 0 {
			t.Errorf("temp files left behind: %v", matches)
		}
	})

	t.Run("SaveUnfitted", func(t *testing.T) {
		if err := Save(nil, filepath.Join(dir, "nil.bin")); !errors.Is(err, domain.ErrArtifact) {
			t.Errorf("expected artifact error saving nil, got %v", err)
		}
		if err := Save(&pipeline.FittedPipeline{}, filepath.Join(dir, "empty.bin")); !errors.Is(err, domain.ErrArtifact) {
			t.Errorf("expected artifact error saving unfitted pipeline, got %v", err)
		}
	})
}

func TestLoadFailures(t *testing.T) {
	fitted := trainFixture(t)
	dir := t.TempDir()

	t.Run("MissingFile", func(t *testing.T) {
		if _, err := Load(filepath.Join(dir, "does-not-exist.bin")); !errors.Is(err, domain.ErrArtifact) {
			t.Errorf("expected artifact error, got %v", err)
		}
	})

	t.Run("CorruptContent", func(t *testing.T) {
		path := filepath.Join(dir, "corrupt.bin")
		if err := os.WriteFile(path, []byte("not a gob stream"), 0644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if _, err := Load(path); !errors.Is(err, domain.ErrArtifact) {
			t.Errorf("expected artifact error, got %v", err)
		}
	})

	t.Run("TruncatedContent", func(t *testing.T) {
		path := filepath.Join(dir, "full.bin")
		if err := Save(fitted, path); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		truncated := filepath.Join(dir, "truncated.bin")
		if err := os.WriteFile(truncated, data[:len(data)/2], 0644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if _, err := Load(truncated); !errors.Is(err, domain.ErrArtifact) {
			t.Errorf("expected artifact error, got %v", err)
		}
	})

	t.Run("SchemaVersionMismatch", func(t *testing.T) {
		stale := *fitted
		stale.SchemaVersion = pipeline.SchemaVersion + 1
		path := filepath.Join(dir, "stale.bin")
		if err := Save(&stale, path); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if _, err := Load(path); !errors.Is(err, domain.ErrArtifact) {
			t.Errorf("expected artifact error for version mismatch, got %v", err)
		}
	})

	t.Run("FeatureListMismatch", func(t *testing.T) {
		renamed := *fitted
		renamed.FeatureNames = append([]string(nil), fitted.FeatureNames...)
		renamed.FeatureNames[0] = "renamed_feature"
		path := filepath.Join(dir, "renamed.bin")
		if err := Save(&renamed, path); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if _, err := Load(path); !errors.Is(err, domain.ErrArtifact) {
			t.Errorf("expected artifact error for feature mismatch, got %v", err)
		}
	})
}
