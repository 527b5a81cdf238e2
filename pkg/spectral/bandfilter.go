package spectral

import (
	"fmt"

	"github.com/brettbuddin/fourier"
)

// bandFilterPlan computes per-band complex analytic signals in a single
// frequency-domain pass: the full-length spectrum is masked to the passband,
// the negative-frequency half is zeroed (which is exactly the Hilbert
// analytic-signal construction) and the result is transformed back. One
// complex sample per input sample per band.
//
// Masking a padded whole-signal FFT leaves wrap-around transients at the
// record boundaries, so band-filter output — like the causal-filter
// formulation it replaces — is not exactly time-reversal invariant.
type bandFilterPlan struct {
	bands   [][2]float64
	masks   [][]float64 // per band, len nfft; nonzero on positive freqs only
	smpRate float64
	nRaw    int
	nfft    int
}

func newBandFilterPlan(opts *BandFilterOptions, smpRate float64, nRaw int) (*bandFilterPlan, error) {
	bands := DefaultBands()
	if opts != nil && opts.Bands != nil {
		bands = opts.Bands
	}
	nyquist := smpRate / 2
	for _, b := range bands {
		if b[1] > nyquist {
			return nil, fmt.Errorf("band (%v, %v) exceeds the Nyquist frequency %v", b[0], b[1], nyquist)
		}
	}

	nfft := nextPow2(nRaw)
	p := &bandFilterPlan{
		bands:   append([][2]float64(nil), bands...),
		masks:   make([][]float64, len(bands)),
		smpRate: smpRate,
		nRaw:    nRaw,
		nfft:    nfft,
	}
	for bi, b := range bands {
		mask := make([]float64, nfft)
		for j := 1; j < nfft/2; j++ {
			fj := float64(j) * smpRate / float64(nfft)
			if fj >= b[0] && fj <= b[1] {
				// Doubled to compensate for the dropped negative half.
				mask[j] = 2
			}
		}
		p.masks[bi] = mask
	}
	return p, nil
}

func (p *bandFilterPlan) blockShape() []int {
	return []int{len(p.bands), p.nRaw}
}

func (p *bandFilterPlan) transformRow(row []float64, dst []complex128) {
	buf := make([]complex128, p.nfft)
	for j, v := range row {
		buf[j] = complex(v, 0)
	}
	if err := fourier.Forward(buf); err != nil {
		// Length is a power of two by construction.
		panic(err)
	}

	prod := make([]complex128, p.nfft)
	for bi := range p.bands {
		mask := p.masks[bi]
		for j := range prod {
			prod[j] = buf[j] * complex(mask[j], 0)
		}
		if err := fourier.Inverse(prod); err != nil {
			panic(err)
		}
		copy(dst[bi*p.nRaw:(bi+1)*p.nRaw], prod[:p.nRaw])
	}
}

func (p *bandFilterPlan) describe(s *Spectrum) {
	s.Bands = append([][2]float64(nil), p.bands...)
	s.Times = make([]float64, p.nRaw)
	for i := range s.Times {
		s.Times[i] = float64(i) / p.smpRate
	}
}
