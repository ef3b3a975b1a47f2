package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/born-ml/neuralnet/internal/tensor"
)

// ReaderOptions configures decoding.
type ReaderOptions struct {
	SkipChecksum    bool            // Skip SHA-256 verification
	ValidationLevel ValidationLevel // Header validation strictness (default: strict)
}

// File is a decoded .born file kept in memory.
type File struct {
	header Header
	flags  uint32
	data   []byte
	index  map[string]TensorMeta
}

// Parse decodes the container in buf without copying tensor data.
func Parse(buf []byte, opts ReaderOptions) (*File, error) {
	if len(buf) < FixedHeaderSize {
		if len(buf) >= 4 && string(buf[:4]) != MagicBytes {
			return nil, fmt.Errorf("%w: got %q", ErrInvalidMagic, buf[:4])
		}
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrTruncated, len(buf), FixedHeaderSize)
	}
	if string(buf[:4]) != MagicBytes {
		return nil, fmt.Errorf("%w: got %q, expected %q", ErrInvalidMagic, buf[:4], MagicBytes)
	}
	if v := binary.LittleEndian.Uint32(buf[4:8]); v != FormatVersion {
		return nil, fmt.Errorf("%w: %d (expected %d)", ErrUnsupportedVersion, v, FormatVersion)
	}
	flags := binary.LittleEndian.Uint32(buf[8:12])
	headerSize := binary.LittleEndian.Uint64(buf[headerSizeOffset : headerSizeOffset+8])
	dataSize := binary.LittleEndian.Uint64(buf[dataSizeOffset : dataSizeOffset+8])
	if headerSize > MaxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrHeaderTooLarge, headerSize, MaxHeaderSize)
	}
	var stored [ChecksumSize]byte
	copy(stored[:], buf[ChecksumOffset:ChecksumOffset+ChecksumSize])

	headerEnd := int64(FixedHeaderSize) + int64(headerSize)
	dataStart := headerEnd + align(headerEnd)
	if dataSize > uint64(math.MaxInt64-dataStart) || uint64(len(buf)) < uint64(dataStart)+dataSize {
		return nil, fmt.Errorf("%w: header announces %d data bytes", ErrTruncated, dataSize)
	}

	var header Header
	if err := json.Unmarshal(buf[FixedHeaderSize:headerEnd], &header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}
	data := buf[dataStart : dataStart+int64(dataSize)]

	if !opts.SkipChecksum {
		if err := verifyChecksum(data, stored); err != nil {
			return nil, err
		}
	}
	if err := ValidateHeader(&header, int64(dataSize), opts.ValidationLevel); err != nil {
		return nil, fmt.Errorf("header validation failed: %w", err)
	}

	index := make(map[string]TensorMeta, len(header.Tensors))
	for _, meta := range header.Tensors {
		index[meta.Name] = meta
	}
	return &File{header: header, flags: flags, data: data, index: index}, nil
}

// Header returns the decoded JSON header.
func (f *File) Header() Header {
	return f.header
}

// Flags returns the fixed-header flag word.
func (f *File) Flags() uint32 {
	return f.flags
}

// TensorNames returns tensor names in file order.
func (f *File) TensorNames() []string {
	names := make([]string, len(f.header.Tensors))
	for i, meta := range f.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// Tensor decodes a single tensor by name.
func (f *File) Tensor(name string) (*tensor.Tensor, error) {
	meta, ok := f.index[name]
	if !ok {
		return nil, fmt.Errorf("tensor %q not found", name)
	}
	if meta.DType != DTypeFloat32 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDType, meta.DType)
	}
	if meta.Offset < 0 || meta.Size < 0 || meta.Offset > int64(len(f.data))-meta.Size {
		return nil, &ValidationError{Type: "out_of_bounds", Tensor: name,
			Details: fmt.Sprintf("offset %d + size %d > data_size %d", meta.Offset, meta.Size, len(f.data))}
	}
	n, err := elementCount(meta.Shape, meta.Size/4)
	if err != nil || n*4 != meta.Size {
		return nil, &ValidationError{Type: "size_mismatch", Tensor: name,
			Details: fmt.Sprintf("shape %v does not fit %d bytes", meta.Shape, meta.Size)}
	}
	raw := f.data[meta.Offset : meta.Offset+meta.Size]
	values := make([]float32, n)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return tensor.FromSlice(values, tensor.Shape(meta.Shape))
}

// StateDict decodes every tensor.
func (f *File) StateDict() (map[string]*tensor.Tensor, error) {
	out := make(map[string]*tensor.Tensor, len(f.header.Tensors))
	for _, meta := range f.header.Tensors {
		t, err := f.Tensor(meta.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to load tensor %q: %w", meta.Name, err)
		}
		out[meta.Name] = t
	}
	return out, nil
}

// Decode reads a whole .born stream from r.
func Decode(r io.Reader, opts ReaderOptions) (map[string]*tensor.Tensor, Header, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, Header{}, fmt.Errorf("failed to read: %w", err)
	}
	f, err := Parse(buf.Bytes(), opts)
	if err != nil {
		return nil, Header{}, err
	}
	sd, err := f.StateDict()
	if err != nil {
		return nil, Header{}, err
	}
	return sd, f.Header(), nil
}

// ReadFile decodes the .born file at path.
func ReadFile(path string, opts ReaderOptions) (map[string]*tensor.Tensor, Header, error) {
	buf, err := os.ReadFile(path) //nolint:gosec // G304: path is user-provided by design
	if err != nil {
		return nil, Header{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	f, err := Parse(buf, opts)
	if err != nil {
		return nil, Header{}, fmt.Errorf("%s: %w", path, err)
	}
	sd, err := f.StateDict()
	if err != nil {
		return nil, Header{}, err
	}
	return sd, f.Header(), nil
}
