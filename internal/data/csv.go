package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/born-ml/neuralnet/internal/tensor"
)

// LoadCSV reads a numeric CSV file into a features tensor [N, D-1] and a
// labels tensor [N]. labelColumn selects the label; negative values count
// from the end (-1 is the last column). A first row that does not parse as
// numbers is treated as a header.
func LoadCSV(path string, labelColumn int) (features, labels *tensor.Tensor, err error) {
	// #nosec G304 -- dataset paths come from the operator's configuration
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return ReadCSV(f, labelColumn)
}

// ReadCSV is LoadCSV over an io.Reader.
func ReadCSV(r io.Reader, labelColumn int) (features, labels *tensor.Tensor, err error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var (
		feat []float32
		lab  []float32
		cols int
		rows int
		line int
	)
	for {
		record, rerr := reader.Read()
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrDataset, rerr)
		}
		line++

		values, perr := parseRow(record)
		if perr != nil {
			if line == 1 {
				continue // header
			}
			return nil, nil, fmt.Errorf("%w: line %d: %w", ErrDataset, line, perr)
		}
		if cols == 0 {
			cols = len(values)
			if cols < 2 {
				return nil, nil, fmt.Errorf("%w: need at least two columns, got %d", ErrDataset, cols)
			}
		}
		label := labelColumn
		if label < 0 {
			label += cols
		}
		if label < 0 || label >= cols {
			return nil, nil, fmt.Errorf("%w: label column %d out of range for %d columns", ErrDataset, labelColumn, cols)
		}

		for j, v := range values {
			if j == label {
				lab = append(lab, v)
			} else {
				feat = append(feat, v)
			}
		}
		rows++
	}
	if rows == 0 {
		return nil, nil, fmt.Errorf("%w: no rows", ErrDataset)
	}

	features, err = tensor.FromSlice(feat, tensor.Shape{rows, cols - 1})
	if err != nil {
		return nil, nil, err
	}
	labels, err = tensor.FromSlice(lab, tensor.Shape{rows})
	if err != nil {
		return nil, nil, err
	}
	return features, labels, nil
}

func parseRow(record []string) ([]float32, error) {
	values := make([]float32, len(record))
	for i, field := range record {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 32)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		values[i] = float32(v)
	}
	return values, nil
}
