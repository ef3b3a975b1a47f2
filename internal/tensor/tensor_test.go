package tensor

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSlice(t *testing.T) {
	src := []float32{1, 2, 3, 4, 5, 6}
	x, err := FromSlice(src, Shape{2, 3})
	require.NoError(t, err)

	assert.Equal(t, Shape{2, 3}, x.Shape())
	assert.Equal(t, []int{3, 1}, x.Strides())
	assert.Equal(t, float32(6), x.At(1, 2))

	// Data is copied, not aliased.
	src[0] = 100
	assert.Equal(t, float32(1), x.At(0, 0))
}

func TestFromSlice_Errors(t *testing.T) {
	_, err := FromSlice([]float32{1, 2, 3}, Shape{2, 2})
	require.ErrorIs(t, err, ErrShapeMismatch)

	_, err = FromSlice(nil, Shape{0, 2})
	require.ErrorIs(t, err, ErrInvalidShape)
}

func TestSetAndAt(t *testing.T) {
	x := Zeros(Shape{2, 3, 4})
	x.Set(7, 1, 2, 3)
	assert.Equal(t, float32(7), x.At(1, 2, 3))
	assert.Equal(t, float32(7), x.Data()[len(x.Data())-1])

	assert.Panics(t, func() { x.At(2, 0, 0) })
	assert.Panics(t, func() { x.At(0, 0) })
}

func TestCloneAndCopyFrom(t *testing.T) {
	x := MustFromSlice([]float32{1, 2, 3}, Shape{3})
	y := x.Clone()
	y.Data()[0] = 9
	assert.Equal(t, float32(1), x.At(0))

	require.NoError(t, x.CopyFrom(y))
	assert.Equal(t, float32(9), x.At(0))

	err := x.CopyFrom(Zeros(Shape{4}))
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestCreation(t *testing.T) {
	assert.Equal(t, []float32{1, 1, 1, 1}, Ones(Shape{2, 2}).Data())
	assert.Equal(t, []float32{2.5, 2.5}, Full(Shape{2}, 2.5).Data())
	assert.Equal(t, []float32{0, 1, 2}, Arange(3).Data())
	assert.Equal(t, []float32{-1, 0, 1}, Linspace(-1, 1, 3).Data())
	assert.Equal(t, []float32{4}, Linspace(4, 9, 1).Data())
	assert.Equal(t, float32(3), Scalar(3).Item())

	rng := rand.New(rand.NewSource(1))
	r := Rand(Shape{100}, rng)
	for _, v := range r.Data() {
		assert.True(t, v >= 0 && v < 1)
	}
	assert.Panics(t, func() { Zeros(Shape{-1}) })
}

func TestReshape(t *testing.T) {
	x := Arange(12)
	y := x.Reshape(3, -1)
	assert.Equal(t, Shape{3, 4}, y.Shape())

	// Reshape shares data.
	y.Set(42, 0, 0)
	assert.Equal(t, float32(42), x.At(0))

	assert.Panics(t, func() { x.Reshape(5, -1) })
	assert.Panics(t, func() { x.Reshape(-1, -1) })

	z := Zeros(Shape{2, 3, 4, 5}).Flatten(1)
	assert.Equal(t, Shape{2, 60}, z.Shape())
}

func TestTranspose(t *testing.T) {
	x := MustFromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	y := x.Transpose()
	assert.Equal(t, Shape{3, 2}, y.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, y.Data())

	// [N, H, W, C] -> [N, C, H, W]
	z := Arange(24).Reshape(1, 2, 3, 4).Transpose(0, 3, 1, 2)
	assert.Equal(t, Shape{1, 4, 2, 3}, z.Shape())
	assert.Equal(t, float32(1), z.At(0, 1, 0, 0))
	assert.Equal(t, float32(4), z.At(0, 0, 0, 1))

	assert.Panics(t, func() { x.Transpose(0, 0) })
}

func TestConcat(t *testing.T) {
	a := MustFromSlice([]float32{1, 2, 3, 4}, Shape{2, 2})
	b := MustFromSlice([]float32{5, 6}, Shape{2, 1})

	c := Concat(1, a, b)
	assert.Equal(t, Shape{2, 3}, c.Shape())
	assert.Equal(t, []float32{1, 2, 5, 3, 4, 6}, c.Data())

	d := Concat(0, a, a)
	assert.Equal(t, Shape{4, 2}, d.Shape())

	assert.Panics(t, func() { Concat(0, a, b) })
}

func TestRepeatSliceIndex(t *testing.T) {
	x := MustFromSlice([]float32{1, 2, 3, 4}, Shape{2, 2})

	r := x.Repeat(1, 2)
	assert.Equal(t, []float32{1, 1, 2, 2, 3, 3, 4, 4}, r.Data())

	s := Arange(10).Reshape(5, 2).Slice(0, 1, 3)
	assert.Equal(t, []float32{2, 3, 4, 5}, s.Data())

	g := Arange(6).Reshape(3, 2).Index(0, []int{2, 0, 2})
	if diff := cmp.Diff([]float32{4, 5, 0, 1, 4, 5}, g.Data()); diff != "" {
		t.Errorf("Index mismatch (-want +got):\n%s", diff)
	}
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b      Shape
		want      Shape
		broadcast bool
		wantErr   bool
	}{
		{Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, true, false},
		{Shape{1, 5}, Shape{3, 5}, Shape{3, 5}, true, false},
		{Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false, false},
		{Shape{5}, Shape{3, 5}, Shape{3, 5}, true, false},
		{Shape{3, 4}, Shape{3, 5}, nil, false, true},
	}
	for _, tt := range tests {
		got, bc, err := BroadcastShapes(tt.a, tt.b)
		if tt.wantErr {
			require.ErrorIs(t, err, ErrShapeMismatch)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.broadcast, bc)
	}
}
