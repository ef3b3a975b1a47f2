package data

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/born-ml/neuralnet/internal/serialization"
	"github.com/born-ml/neuralnet/internal/tensor"
)

// Tensor names used when a dataset is stored as a .born file.
const (
	FeaturesKey = "features"
	LabelsKey   = "labels"
)

// Load reads a dataset from path and returns [features, labels].
//
// ".born" files must hold "features" and "labels" tensors with matching
// leading dimensions. Anything else is read as CSV with the label in
// labelColumn.
func Load(path string, labelColumn int) ([]*tensor.Tensor, error) {
	if strings.EqualFold(filepath.Ext(path), ".born") {
		return LoadTensors(path)
	}
	features, labels, err := LoadCSV(path, labelColumn)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{features, labels}, nil
}

// LoadTensors reads a dataset saved with SaveTensors.
func LoadTensors(path string) ([]*tensor.Tensor, error) {
	sd, _, err := serialization.ReadFile(path, serialization.ReaderOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataset, err)
	}
	features, ok := sd[FeaturesKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no %q tensor", ErrDataset, path, FeaturesKey)
	}
	labels, ok := sd[LabelsKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no %q tensor", ErrDataset, path, LabelsKey)
	}
	if features.Dims() == 0 || labels.Dims() == 0 || features.Shape()[0] != labels.Shape()[0] {
		return nil, fmt.Errorf("%w: features %v and labels %v disagree on sample count",
			ErrDataset, features.Shape(), labels.Shape())
	}
	return []*tensor.Tensor{features, labels}, nil
}

// SaveTensors writes features and labels to path in .born format.
func SaveTensors(path string, features, labels *tensor.Tensor) error {
	return serialization.WriteFile(path, map[string]*tensor.Tensor{
		FeaturesKey: features,
		LabelsKey:   labels,
	}, serialization.Header{ModelType: "dataset"})
}
