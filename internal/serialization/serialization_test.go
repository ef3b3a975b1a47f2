package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/neuralnet/internal/tensor"
)

func sampleState() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{
		"0.weight": tensor.MustFromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}),
		"0.bias":   tensor.MustFromSlice([]float32{-1, 0.5}, tensor.Shape{2}),
		"2.weight": tensor.MustFromSlice([]float32{7, 8}, tensor.Shape{1, 2}),
		"scale":    tensor.Scalar(3.5),
	}
}

func encode(t *testing.T, sd map[string]*tensor.Tensor, h Header) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sd, h))
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	sd := sampleState()
	raw := encode(t, sd, Header{
		ModelType: "mlp",
		Metadata:  map[string]string{"activation": "relu"},
		Checkpoint: &CheckpointMeta{
			RunID: "run-1", Epoch: 3, Step: 120, Loss: 0.25, Optimizer: "adam", LR: 0.001,
		},
	})

	got, header, err := Decode(bytes.NewReader(raw), ReaderOptions{})
	require.NoError(t, err)
	require.Len(t, got, len(sd))
	for name, want := range sd {
		require.Contains(t, got, name)
		assert.True(t, want.Shape().Equal(got[name].Shape()), name)
		assert.Equal(t, want.Data(), got[name].Data(), name)
	}

	assert.Equal(t, FormatVersion, header.FormatVersion)
	assert.Equal(t, Version, header.Producer)
	assert.Equal(t, "mlp", header.ModelType)
	assert.Equal(t, "relu", header.Metadata["activation"])
	require.NotNil(t, header.Checkpoint)
	assert.Equal(t, 3, header.Checkpoint.Epoch)
	assert.Equal(t, int64(120), header.Checkpoint.Step)
	assert.False(t, header.CreatedAt.IsZero())
}

func TestFixedHeaderLayout(t *testing.T) {
	raw := encode(t, sampleState(), Header{Metadata: map[string]string{"k": "v"}, Checkpoint: &CheckpointMeta{Optimizer: "sgd"}})

	assert.Equal(t, MagicBytes, string(raw[:4]))
	assert.Equal(t, uint32(FormatVersion), binary.LittleEndian.Uint32(raw[4:8]))
	flags := binary.LittleEndian.Uint32(raw[8:12])
	assert.NotZero(t, flags&FlagHasMetadata)
	assert.NotZero(t, flags&FlagHasOptimizer)

	headerSize := int64(binary.LittleEndian.Uint64(raw[0x10:0x18]))
	dataSize := int64(binary.LittleEndian.Uint64(raw[0x18:0x20]))
	headerEnd := FixedHeaderSize + headerSize
	dataStart := headerEnd + align(headerEnd)
	assert.Zero(t, dataStart%HeaderAlignment)
	assert.Equal(t, int64(len(raw)), dataStart+dataSize)
	// 6 + 2 + 2 + 1 floats.
	assert.Equal(t, int64(11*4), dataSize)

	sum := Checksum(raw[dataStart:])
	assert.Equal(t, sum[:], raw[ChecksumOffset:ChecksumOffset+ChecksumSize])
}

func TestTensorsInSortedOrder(t *testing.T) {
	f, err := Parse(encode(t, sampleState(), Header{}), ReaderOptions{})
	require.NoError(t, err)

	want := []string{"0.bias", "0.weight", "2.weight", "scale"}
	if diff := cmp.Diff(want, f.TensorNames()); diff != "" {
		t.Errorf("tensor order mismatch (-want +got):\n%s", diff)
	}
	assert.Zero(t, f.Header().Tensors[0].Offset)
	assert.Equal(t, int64(8), f.Header().Tensors[1].Offset)
}

func TestDeterministicBytes(t *testing.T) {
	h := Header{ModelType: "mlp"}
	h.CreatedAt = h.CreatedAt.AddDate(2025, 0, 0)
	a := encode(t, sampleState(), h)
	b := encode(t, sampleState(), h)
	assert.Equal(t, a, b)
}

func TestChecksumMismatch(t *testing.T) {
	raw := encode(t, sampleState(), Header{})
	raw[len(raw)-1] ^= 0xFF

	_, _, err := Decode(bytes.NewReader(raw), ReaderOptions{})
	require.ErrorIs(t, err, ErrChecksumMismatch)

	_, _, err = Decode(bytes.NewReader(raw), ReaderOptions{SkipChecksum: true})
	require.NoError(t, err)
}

func TestParseRejectsBadInput(t *testing.T) {
	good := encode(t, sampleState(), Header{})

	t.Run("magic", func(t *testing.T) {
		bad := bytes.Clone(good)
		copy(bad, "NOPE")
		_, err := Parse(bad, ReaderOptions{})
		require.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("version", func(t *testing.T) {
		bad := bytes.Clone(good)
		binary.LittleEndian.PutUint32(bad[4:8], 1)
		_, err := Parse(bad, ReaderOptions{})
		require.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := Parse(good[:len(good)-5], ReaderOptions{})
		require.ErrorIs(t, err, ErrTruncated)
		_, err = Parse(good[:10], ReaderOptions{})
		require.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("header too large", func(t *testing.T) {
		bad := bytes.Clone(good)
		binary.LittleEndian.PutUint64(bad[0x10:0x18], MaxHeaderSize+1)
		_, err := Parse(bad, ReaderOptions{})
		require.ErrorIs(t, err, ErrHeaderTooLarge)
	})
}

func TestEncodeRejectsBadNames(t *testing.T) {
	for _, name := range []string{"../etc", "a/b", "a\\b", ""} {
		var buf bytes.Buffer
		err := Encode(&buf, map[string]*tensor.Tensor{name: tensor.Scalar(1)}, Header{})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), "name %q", name)
	}
}

func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name    string
		tensors []TensorMeta
		errType string
	}{
		{"ok", []TensorMeta{{Name: "a", Offset: 0, Size: 8}, {Name: "b", Offset: 8, Size: 8}}, ""},
		{"overlap", []TensorMeta{{Name: "a", Offset: 0, Size: 12}, {Name: "b", Offset: 8, Size: 8}}, "offset_overlap"},
		{"out of bounds", []TensorMeta{{Name: "a", Offset: 12, Size: 8}}, "out_of_bounds"},
		{"negative", []TensorMeta{{Name: "a", Offset: -4, Size: 4}}, "negative_offset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, 16)
			if tt.errType == "" {
				require.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.errType, verr.Type)
		})
	}
}

func TestValidateHeader(t *testing.T) {
	base := func() Header {
		return Header{Tensors: []TensorMeta{{Name: "w", DType: DTypeFloat32, Shape: []int{2}, Offset: 0, Size: 8}}}
	}
	h := base()
	require.NoError(t, ValidateHeader(&h, 8, ValidationStrict))

	h = base()
	h.Tensors[0].DType = "float64"
	var verr *ValidationError
	require.ErrorAs(t, ValidateHeader(&h, 8, ValidationStrict), &verr)
	assert.Equal(t, "unsupported_dtype", verr.Type)

	h = base()
	h.Tensors[0].Size = 4
	require.ErrorAs(t, ValidateHeader(&h, 8, ValidationStrict), &verr)
	assert.Equal(t, "size_mismatch", verr.Type)

	h = base()
	h.Tensors = append(h.Tensors, h.Tensors[0])
	require.ErrorAs(t, ValidateHeader(&h, 16, ValidationNormal), &verr)
	assert.Equal(t, "duplicate_name", verr.Type)

	h = base()
	h.Tensors[0].DType = "int8"
	assert.NoError(t, ValidateHeader(&h, 0, ValidationNone))
}

// assemble lays out a v2 file around an arbitrary header.
func assemble(t *testing.T, h Header, data []byte) []byte {
	t.Helper()
	headerJSON, err := json.Marshal(h)
	require.NoError(t, err)

	var fixed [FixedHeaderSize]byte
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint64(fixed[headerSizeOffset:], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[dataSizeOffset:], uint64(len(data)))
	sum := Checksum(data)
	copy(fixed[ChecksumOffset:], sum[:])

	var buf bytes.Buffer
	buf.Write(fixed[:])
	buf.Write(headerJSON)
	buf.Write(make([]byte, align(int64(FixedHeaderSize+len(headerJSON)))))
	buf.Write(data)
	return buf.Bytes()
}

func TestParseRejectsOverflowingShape(t *testing.T) {
	h := Header{FormatVersion: FormatVersion, Tensors: []TensorMeta{
		{Name: "w", DType: DTypeFloat32, Shape: []int{1 << 62, 4}, Offset: 0, Size: 0},
	}}

	for _, data := range [][]byte{nil, make([]byte, 16)} {
		_, err := Parse(assemble(t, h, data), ReaderOptions{})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "invalid_shape", verr.Type)
	}

	// Unvalidated headers are still checked when a tensor is decoded.
	f, err := Parse(assemble(t, h, nil), ReaderOptions{ValidationLevel: ValidationNone})
	require.NoError(t, err)
	_, err = f.Tensor("w")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "size_mismatch", verr.Type)
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.born")
	assert.False(t, Exists(path))

	require.NoError(t, WriteFile(path, sampleState(), Header{ModelType: "mlp"}))
	assert.True(t, Exists(path))

	// Overwrite in place and check nothing else was left in the directory.
	require.NoError(t, WriteFile(path, map[string]*tensor.Tensor{"x": tensor.Scalar(2)}, Header{}))
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	sd, _, err := ReadFile(path, ReaderOptions{})
	require.NoError(t, err)
	require.Len(t, sd, 1)
	assert.Equal(t, float32(2), sd["x"].Item())

	_, _, err = ReadFile(filepath.Join(t.TempDir(), "missing.born"), ReaderOptions{})
	require.Error(t, err)
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Type: "offset_overlap", Tensor: "a", Tensor2: "b", Details: "x"}
	assert.Equal(t, `offset_overlap: tensors "a" and "b": x`, err.Error())
	err = &ValidationError{Type: "invalid_name", Details: "empty tensor name"}
	assert.Equal(t, "invalid_name: empty tensor name", err.Error())
	assert.ErrorIs(t, err, ErrInvalidHeader)
}
