package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"bird-conservation/internal/traits"
)

// ModelMetadata describes a trained artifact pair. It is optional; when
// present it must agree with the trait schema and the codec.
type ModelMetadata struct {
	Version      string    `json:"version"`
	TrainedAt    time.Time `json:"trained_at"`
	Features     []string  `json:"features"`
	Classes      []string  `json:"classes"`
	Accuracy     float64   `json:"accuracy"`
	TrainingRows int       `json:"training_rows"`
	ModelType    string    `json:"model_type,omitempty"`
}

// loadModelMetadata reads path when given, otherwise model_metadata.json
// next to the model and then the newest model_metadata_*.json. A nil result
// with nil error means no metadata exists.
func loadModelMetadata(path, modelPath string) (*ModelMetadata, error) {
	if path != "" {
		md, err := decodeMetadata(path)
		if err != nil {
			return nil, unavailable("metadata", path, err)
		}
		return md, nil
	}
	if modelPath == "" {
		return nil, nil
	}

	dir := filepath.Dir(modelPath)
	primary := filepath.Join(dir, "model_metadata.json")
	md, err := decodeMetadata(primary)
	if err == nil {
		return md, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, unavailable("metadata", primary, err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "model_metadata_*.json"))
	if err != nil || len(matches) == 0 {
		return nil, nil
	}
	sort.Strings(matches)
	newest := matches[len(matches)-1]
	md, err = decodeMetadata(newest)
	if err != nil {
		return nil, unavailable("metadata", newest, err)
	}
	return md, nil
}

func decodeMetadata(path string) (*ModelMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var md ModelMetadata
	if err := json.NewDecoder(file).Decode(&md); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &md, nil
}

// check verifies the metadata against the trait schema and the codec.
func (md *ModelMetadata) check(codec *LabelCodec) error {
	if len(md.Features) > 0 && !slices.Equal(md.Features, traits.FieldNames()) {
		return fmt.Errorf("model features %v do not match trait schema %v", md.Features, traits.FieldNames())
	}
	if len(md.Classes) > 0 && !slices.Equal(md.Classes, codec.Classes()) {
		return fmt.Errorf("model classes %v do not match codec classes %v", md.Classes, codec.Classes())
	}
	return nil
}
