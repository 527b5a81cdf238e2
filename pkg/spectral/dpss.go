package spectral

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// dpssTapers returns the k discrete prolate spheroidal sequences of length n
// with time-bandwidth product nw, ordered by decreasing spectral
// concentration.
//
// The DPSS are the eigenvectors of a symmetric tridiagonal matrix whose
// diagonal is ((n-1-2i)/2)^2 cos(2*pi*W) and whose off-diagonal is
// i(n-i)/2, with W = nw/n the normalized half-bandwidth; the
// best-concentrated tapers correspond to the largest eigenvalues.
func dpssTapers(n, k int, nw float64) [][]float64 {
	if k > n {
		panic(fmt.Errorf("requested %d tapers of length %d", k, n))
	}
	w := nw / float64(n)
	cosW := math.Cos(2 * math.Pi * w)

	a := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		d := float64(n-1-2*i) / 2
		a.SetSym(i, i, d*d*cosW)
		if i+1 < n {
			a.SetSym(i, i+1, float64(i+1)*float64(n-1-i)/2)
		}
	}

	var es mat.EigenSym
	if !es.Factorize(a, true) {
		panic(fmt.Errorf("DPSS eigendecomposition failed for n=%d nw=%v", n, nw))
	}
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	// Eigenvalues come back ascending; the tapers of interest are the last
	// k columns, in reverse.
	tapers := make([][]float64, k)
	for t := 0; t < k; t++ {
		col := make([]float64, n)
		mat.Col(col, n-1-t, &vecs)

		// Fix the arbitrary eigenvector polarity: symmetric tapers point
		// positive on average, antisymmetric tapers start upward.
		s := floats.Sum(col)
		if s < 0 || (math.Abs(s) < 1e-10 && col[1] < col[0]) {
			floats.Scale(-1, col)
		}
		tapers[t] = col
	}
	return tapers
}
