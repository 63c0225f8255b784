package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ModelMetadata describes the loaded classifier. It is exported through the
// /model-info endpoint and used to cross-check the feature schema.
type ModelMetadata struct {
	Version       string             `json:"version"`
	ModelType     string             `json:"model_type"`
	TrainedAt     time.Time          `json:"trained_at"`
	Features      []string           `json:"features"`
	ROCAUC        float64            `json:"roc_auc"`
	Precision     float64            `json:"precision"`
	TrainingRows  int                `json:"training_rows"`
	AllResults    map[string]float64 `json:"all_results,omitempty"`
	TrainingNotes string             `json:"training_notes,omitempty"`
}

// loadModelMetadata reads model_metadata.json beside the artifact, falling
// back to the newest timestamped metadata file in the same directory.
func loadModelMetadata(modelPath string) (*ModelMetadata, error) {
	dir := filepath.Dir(modelPath)
	primary := filepath.Join(dir, "model_metadata.json")

	if md, err := decodeMetadata(primary); err == nil {
		return md, nil
	}

	pattern := filepath.Join(dir, "model_metadata_*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob metadata files: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no metadata files found in %s", dir)
	}
	sort.Strings(matches)
	return decodeMetadata(matches[len(matches)-1])
}

func decodeMetadata(path string) (*ModelMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var md ModelMetadata
	if err := json.NewDecoder(file).Decode(&md); err != nil {
		return nil, err
	}
	return &md, nil
}
