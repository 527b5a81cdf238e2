package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func TestAtSetRoundtrip(t *testing.T) {
	d := New[float64](2, 3, 4)
	d.Set(7.5, 1, 2, 3)
	assert.Equal(t, 7.5, d.At(1, 2, 3))
	assert.Equal(t, 0.0, d.At(0, 0, 0))
	assert.Equal(t, []int{2, 3, 4}, d.Shape())
	assert.Equal(t, 24, d.Len())
}

func TestTranspose(t *testing.T) {
	d := FromSlice(seq(6), 2, 3)
	tr := d.Transpose(1, 0)
	require.Equal(t, []int{3, 2}, tr.Shape())
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(t, d.At(i, j), tr.At(j, i))
		}
	}
	// Double transpose restores the original exactly.
	assert.True(t, d.Equal(tr.Transpose(1, 0)))
}

func TestMoveAxis(t *testing.T) {
	d := FromSlice(seq(24), 2, 3, 4)

	m := d.MoveAxis(2, 0)
	require.Equal(t, []int{4, 2, 3}, m.Shape())
	assert.Equal(t, d.At(1, 2, 3), m.At(3, 1, 2))

	t.Run("identity move clones", func(t *testing.T) {
		m := d.MoveAxis(1, 1)
		assert.True(t, d.Equal(m))
		m.Set(99, 0, 0, 0)
		assert.Equal(t, 0.0, d.At(0, 0, 0), "clone must not share backing data")
	})
}

func TestFlip(t *testing.T) {
	d := FromSlice(seq(6), 2, 3)
	f := d.Flip(1)
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(t, d.At(i, 2-j), f.At(i, j))
		}
	}
	assert.True(t, d.Equal(f.Flip(1)))
}

func TestSelectAlongAxis(t *testing.T) {
	d := FromSlice(seq(24), 2, 3, 4)
	s := d.SelectAlongAxis(1, []int{2, 0})
	require.Equal(t, []int{2, 2, 4}, s.Shape())
	assert.Equal(t, d.At(1, 2, 3), s.At(1, 0, 3))
	assert.Equal(t, d.At(1, 0, 3), s.At(1, 1, 3))
}

func TestNormAxis(t *testing.T) {
	ax, err := NormAxis(-1, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, ax)

	ax, err = NormAxis(1, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, ax)

	_, err = NormAxis(3, 3)
	assert.Error(t, err)
	_, err = NormAxis(-4, 3)
	assert.Error(t, err)
}

func TestComplexify(t *testing.T) {
	d := FromSlice([]float64{1, -2}, 2)
	c := Complexify(d)
	assert.Equal(t, complex(1, 0), c.At(0))
	assert.Equal(t, complex(-2, 0), c.At(1))
}

func TestReshapeSharesData(t *testing.T) {
	d := New[float64](2, 3)
	r := d.Reshape(3, 2)
	r.Set(5, 0, 1)
	assert.Equal(t, 5.0, d.At(0, 1))
	assert.Panics(t, func() { d.Reshape(4, 2) })
}
