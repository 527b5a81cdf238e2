package synchrony

import (
	"math"
	"math/cmplx"
	"runtime"
	"sync"
)

// computeStats runs the synchrony statistic across trials for every
// (frequency, time, free) cell of two canonical spectral tensors, which must
// agree in every dimension. It returns the synchrony magnitudes and, when
// wantPhase is set, the circular mean phase differences (signal 1 minus
// signal 2), both laid out (frequency, time, free) row-major.
//
// Per-taper values are complex-averaged into one value per trial before
// cross-trial aggregation. Degenerate cells (no trials, or every
// cross-spectral product zero) yield sync=0, phase=0 rather than a
// division-by-zero artifact.
func computeStats(a, b *canonical, method Method, wantPhase bool) (syncVals, phaseVals []float64) {
	nCells := a.nFreq * a.nTime * a.nFree
	syncVals = make([]float64, nCells)
	if wantPhase {
		phaseVals = make([]float64, nCells)
	}

	// Every cell depends only on its own slice, so frequency rows fan out
	// across the CPUs.
	workers := runtime.NumCPU()
	if workers > a.nFreq {
		workers = a.nFreq
	}
	var wg sync.WaitGroup
	freqCh := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range freqCh {
				computeFreqRow(a, b, method, f, syncVals, phaseVals)
			}
		}()
	}
	for f := 0; f < a.nFreq; f++ {
		freqCh <- f
	}
	close(freqCh)
	wg.Wait()
	return syncVals, phaseVals
}

func computeFreqRow(a, b *canonical, method Method, f int, syncVals, phaseVals []float64) {
	n := a.nTrial
	taperScale := complex(1/float64(a.nTaper), 0)
	for t := 0; t < a.nTime; t++ {
		for c := 0; c < a.nFree; c++ {
			var sxy, u complex128
			var sxx, syy float64
			live := false
			for k := 0; k < n; k++ {
				var z1, z2 complex128
				for p := 0; p < a.nTaper; p++ {
					z1 += a.at(k, f, t, p, c)
					z2 += b.at(k, f, t, p, c)
				}
				z1 *= taperScale
				z2 *= taperScale

				cross := z1 * cmplx.Conj(z2)
				if m := cmplx.Abs(cross); m > 0 {
					u += cross / complex(m, 0)
					live = true
				} else {
					// The zero phasor carries phase zero, matching the
					// zero-variance convention of the rest of the library.
					u += 1
				}
				if method == Coherence {
					sxy += cross
					sxx += real(z1)*real(z1) + imag(z1)*imag(z1)
					syy += real(z2)*real(z2) + imag(z2)*imag(z2)
				}
			}

			cell := (f*a.nTime+t)*a.nFree + c
			if n == 0 || !live {
				syncVals[cell] = 0
				if phaseVals != nil {
					phaseVals[cell] = 0
				}
				continue
			}

			switch method {
			case Coherence:
				den := math.Sqrt(sxx * syy)
				if den > 0 {
					syncVals[cell] = cmplx.Abs(sxy) / den
				}
			case PLV:
				syncVals[cell] = cmplx.Abs(u) / float64(n)
			case PPC:
				syncVals[cell] = ppcFromPLV(cmplx.Abs(u)/float64(n), float64(n))
			}
			if phaseVals != nil {
				phaseVals[cell] = cmplx.Phase(u)
			}
		}
	}
}

// ppcFromPLV applies the pairwise-phase-consistency bias correction
// (n*PLV^2 - 1) / (n - 1), an unbiased estimator of squared PLV. It can go
// negative for small n with weak locking; that is the estimator working,
// not an error. A single observation leaves nothing to pair, so n < 2
// degenerates to 0 under the zero-variance convention.
func ppcFromPLV(plv, n float64) float64 {
	if n < 2 {
		return 0
	}
	return (n*plv*plv - 1) / (n - 1)
}
