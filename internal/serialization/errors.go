package serialization

import (
	"errors"
	"strconv"
	"strings"
)

// Sentinel errors. Readers wrap them with context; match with errors.Is.
var (
	ErrInvalidMagic       = errors.New("not a .born file")
	ErrUnsupportedVersion = errors.New("unsupported .born format version")
	ErrHeaderTooLarge     = errors.New("JSON header too large")
	ErrTruncated          = errors.New("file truncated")
	ErrChecksumMismatch   = errors.New("data checksum mismatch")
	ErrUnsupportedDType   = errors.New("unsupported dtype")

	// ErrInvalidHeader is matched by every *ValidationError.
	ErrInvalidHeader = errors.New("invalid header")
)

// ValidationError describes why a header or tensor table was rejected.
// Type is a stable snake_case code such as "offset_overlap" or
// "out_of_bounds"; Tensor2 is set only for errors involving two tensors.
type ValidationError struct {
	Type    string
	Tensor  string
	Tensor2 string
	Details string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Type)
	b.WriteString(": ")
	switch {
	case e.Tensor2 != "":
		b.WriteString("tensors " + strconv.Quote(e.Tensor) + " and " + strconv.Quote(e.Tensor2) + ": ")
	case e.Tensor != "":
		b.WriteString("tensor " + strconv.Quote(e.Tensor) + ": ")
	}
	b.WriteString(e.Details)
	return b.String()
}

// Unwrap makes errors.Is(err, ErrInvalidHeader) hold.
func (e *ValidationError) Unwrap() error { return ErrInvalidHeader }
