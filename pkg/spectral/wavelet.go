package spectral

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

const (
	// defaultWavenumber is the number of cycles under the Morlet envelope.
	// 6 keeps the wavelet admissible while giving a usable time-frequency
	// trade-off for cortical rhythms.
	defaultWavenumber = 6.0
)

// waveletPlan computes a Morlet continuous wavelet transform in the frequency
// domain: the signal spectrum is multiplied by an analytic Gaussian kernel
// centered on each target frequency and transformed back, yielding one
// complex coefficient per input sample per frequency.
type waveletPlan struct {
	freqs   []float64
	kernels [][]float64 // per frequency, len nfft, zero at negative freqs
	smpRate float64
	nRaw    int
	nfft    int
}

func newWaveletPlan(opts *WaveletOptions, smpRate float64, nRaw int) *waveletPlan {
	freqs := DefaultWaveletFreqs()
	wavenumber := defaultWavenumber
	if opts != nil {
		if opts.Freqs != nil {
			freqs = opts.Freqs
		}
		if opts.Wavenumber != 0 {
			wavenumber = opts.Wavenumber
		}
	}

	nfft := nextPow2(nRaw)
	p := &waveletPlan{
		freqs:   append([]float64(nil), freqs...),
		kernels: make([][]float64, len(freqs)),
		smpRate: smpRate,
		nRaw:    nRaw,
		nfft:    nfft,
	}
	for fi, fc := range freqs {
		// Spectral width of the Morlet envelope at this center frequency.
		sd := fc / wavenumber
		kernel := make([]float64, nfft)
		for j := 1; j <= nfft/2; j++ {
			fj := float64(j) * smpRate / float64(nfft)
			d := (fj - fc) / sd
			// Factor 2 makes the coefficients analytic (the mirrored
			// negative-frequency half stays zero).
			kernel[j] = 2 * math.Exp(-0.5*d*d)
		}
		p.kernels[fi] = kernel
	}
	return p
}

func (p *waveletPlan) blockShape() []int {
	return []int{len(p.freqs), p.nRaw}
}

func (p *waveletPlan) transformRow(row []float64, dst []complex128) {
	padded := make([]float64, p.nfft)
	copy(padded, row)
	spec := fft.FFTReal(padded)

	prod := make([]complex128, p.nfft)
	for fi := range p.freqs {
		kernel := p.kernels[fi]
		for j := range prod {
			prod[j] = spec[j] * complex(kernel[j], 0)
		}
		coefs := fft.IFFT(prod)
		copy(dst[fi*p.nRaw:(fi+1)*p.nRaw], coefs[:p.nRaw])
	}
}

func (p *waveletPlan) describe(s *Spectrum) {
	s.Freqs = append([]float64(nil), p.freqs...)
	s.Times = make([]float64, p.nRaw)
	for i := range s.Times {
		s.Times[i] = float64(i) / p.smpRate
	}
}
