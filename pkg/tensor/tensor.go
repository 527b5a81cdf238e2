// Package tensor provides dense N-dimensional arrays of real or complex
// samples, together with the axis manipulations (move, flip, select) that the
// synchrony pipeline uses to canonicalize arbitrary caller layouts.
//
// All transforming operations return a fresh tensor and never mutate their
// receiver: callers rely on their input arrays being bit-identical before and
// after a computation.
package tensor

import (
	"fmt"
)

// Element is the set of sample types a Dense tensor can hold. Real-valued
// signals (including 0/1 spike trains) use float64; spectral representations
// use complex128.
type Element interface {
	~float64 | ~complex128
}

// Dense is a row-major N-dimensional array.
type Dense[T Element] struct {
	shape   []int
	strides []int
	data    []T
}

// New allocates a zero-filled tensor of the given shape.
func New[T Element](shape ...int) *Dense[T] {
	n := 1
	for _, s := range shape {
		if s < 0 {
			panic(fmt.Errorf("negative dimension in shape %v", shape))
		}
		n *= s
	}
	return &Dense[T]{
		shape:   append([]int(nil), shape...),
		strides: rowMajorStrides(shape),
		data:    make([]T, n),
	}
}

// FromSlice wraps an existing backing slice in a tensor header. The slice is
// used directly, not copied; its length must match the product of the shape.
func FromSlice[T Element](data []T, shape ...int) *Dense[T] {
	n := 1
	for _, s := range shape {
		n *= s
	}
	if n != len(data) {
		panic(fmt.Errorf("shape %v does not match data length %d", shape, len(data)))
	}
	return &Dense[T]{
		shape:   append([]int(nil), shape...),
		strides: rowMajorStrides(shape),
		data:    data,
	}
}

func rowMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

// Shape returns a copy of the tensor's dimensions.
func (d *Dense[T]) Shape() []int { return append([]int(nil), d.shape...) }

// NumDims returns the tensor rank.
func (d *Dense[T]) NumDims() int { return len(d.shape) }

// Dim returns the length of the given (non-negative, in-range) axis.
func (d *Dense[T]) Dim(axis int) int { return d.shape[axis] }

// Len returns the total number of elements.
func (d *Dense[T]) Len() int { return len(d.data) }

// Data returns the backing slice in row-major order. It is shared, not
// copied; treat it as read-only unless the tensor was freshly allocated.
func (d *Dense[T]) Data() []T { return d.data }

func (d *Dense[T]) offset(idx []int) int {
	if len(idx) != len(d.shape) {
		panic(fmt.Errorf("index rank %d does not match tensor rank %d", len(idx), len(d.shape)))
	}
	off := 0
	for i, j := range idx {
		if j < 0 || j >= d.shape[i] {
			panic(fmt.Errorf("index %v out of range for shape %v", idx, d.shape))
		}
		off += j * d.strides[i]
	}
	return off
}

// At returns the element at the given multi-index.
func (d *Dense[T]) At(idx ...int) T { return d.data[d.offset(idx)] }

// Set assigns the element at the given multi-index.
func (d *Dense[T]) Set(v T, idx ...int) { d.data[d.offset(idx)] = v }

// Clone returns a deep copy.
func (d *Dense[T]) Clone() *Dense[T] {
	out := New[T](d.shape...)
	copy(out.data, d.data)
	return out
}

// Equal reports whether two tensors have identical shape and bit-identical
// elements.
func (d *Dense[T]) Equal(other *Dense[T]) bool {
	if !SameShape(d.shape, other.shape) {
		return false
	}
	for i, v := range d.data {
		if v != other.data[i] {
			return false
		}
	}
	return true
}

// Reshape returns a tensor header with the new shape sharing this tensor's
// backing data. The element count must be unchanged.
func (d *Dense[T]) Reshape(shape ...int) *Dense[T] {
	n := 1
	for _, s := range shape {
		n *= s
	}
	if n != len(d.data) {
		panic(fmt.Errorf("cannot reshape %v to %v", d.shape, shape))
	}
	return &Dense[T]{
		shape:   append([]int(nil), shape...),
		strides: rowMajorStrides(shape),
		data:    d.data,
	}
}

// Transpose returns a fresh tensor with axes permuted: output axis i is input
// axis perm[i]. perm must be a permutation of 0..rank-1.
func (d *Dense[T]) Transpose(perm ...int) *Dense[T] {
	rank := len(d.shape)
	if len(perm) != rank {
		panic(fmt.Errorf("permutation %v does not match rank %d", perm, rank))
	}
	seen := make([]bool, rank)
	newShape := make([]int, rank)
	for i, p := range perm {
		if p < 0 || p >= rank || seen[p] {
			panic(fmt.Errorf("invalid permutation %v for rank %d", perm, rank))
		}
		seen[p] = true
		newShape[i] = d.shape[p]
	}
	out := New[T](newShape...)
	if len(d.data) == 0 {
		return out
	}
	idx := make([]int, rank) // multi-index in output layout
	for o := range out.data {
		src := 0
		for i, j := range idx {
			src += j * d.strides[perm[i]]
		}
		out.data[o] = d.data[src]
		for i := rank - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < newShape[i] {
				break
			}
			idx[i] = 0
		}
	}
	return out
}

// MoveAxis returns a fresh tensor with the given axis moved to position to,
// all other axes keeping their relative order.
func (d *Dense[T]) MoveAxis(from, to int) *Dense[T] {
	rank := len(d.shape)
	if from < 0 || from >= rank || to < 0 || to >= rank {
		panic(fmt.Errorf("axis move %d->%d out of range for rank %d", from, to, rank))
	}
	if from == to {
		return d.Clone()
	}
	perm := make([]int, 0, rank)
	for i := 0; i < rank; i++ {
		if i != from {
			perm = append(perm, i)
		}
	}
	perm = append(perm[:to], append([]int{from}, perm[to:]...)...)
	return d.Transpose(perm...)
}

// Flip returns a fresh tensor with the given axis reversed.
func (d *Dense[T]) Flip(axis int) *Dense[T] {
	n := d.shape[axis]
	idx := make([]int, n)
	for i := range idx {
		idx[i] = n - 1 - i
	}
	return d.SelectAlongAxis(axis, idx)
}

// SelectAlongAxis returns a fresh tensor restricted (or reordered) along one
// axis to the given indices.
func (d *Dense[T]) SelectAlongAxis(axis int, indices []int) *Dense[T] {
	rank := len(d.shape)
	if axis < 0 || axis >= rank {
		panic(fmt.Errorf("axis %d out of range for rank %d", axis, rank))
	}
	for _, j := range indices {
		if j < 0 || j >= d.shape[axis] {
			panic(fmt.Errorf("index %d out of range for axis %d of shape %v", j, axis, d.shape))
		}
	}
	newShape := d.Shape()
	newShape[axis] = len(indices)
	out := New[T](newShape...)

	// The tensor factors as (outer, axis, inner) with inner contiguous.
	inner := d.strides[axis]
	outer := 1
	for i := 0; i < axis; i++ {
		outer *= d.shape[i]
	}
	for o := 0; o < outer; o++ {
		srcBase := o * d.shape[axis] * inner
		dstBase := o * len(indices) * inner
		for k, j := range indices {
			copy(out.data[dstBase+k*inner:dstBase+(k+1)*inner],
				d.data[srcBase+j*inner:srcBase+j*inner+inner])
		}
	}
	return out
}

// SameShape reports whether two shapes are identical.
func SameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// NormAxis normalizes a possibly negative axis index modulo rank and bounds
// checks it. Negative indices count from the end, numpy-style.
func NormAxis(axis, rank int) (int, error) {
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return 0, fmt.Errorf("axis %d out of range for rank %d", axis, rank)
	}
	return axis, nil
}

// Complexify converts a real tensor to complex128 with zero imaginary parts.
func Complexify(d *Dense[float64]) *Dense[complex128] {
	out := New[complex128](d.shape...)
	for i, v := range d.data {
		out.data[i] = complex(v, 0)
	}
	return out
}
