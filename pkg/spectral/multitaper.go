package spectral

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
)

const (
	// defaultTimeWidth is the multitaper analysis window length in seconds.
	defaultTimeWidth = 0.5
	// defaultFreqWidth is the spectral smoothing half-bandwidth in Hz.
	defaultFreqWidth = 4.0
)

// multitaperPlan computes a DPSS (Slepian) multitaper spectrogram: the signal
// is cut into windows, each window is multiplied by K orthogonal tapers, and
// each tapered copy is Fourier transformed, giving K quasi-independent
// spectral estimates per window.
type multitaperPlan struct {
	tapers     [][]float64 // K tapers of window length
	starts     []int       // window start sample per center
	centers    []float64   // window center times in seconds
	freqs      []float64
	smpRate    float64
	win        int
	nfft       int
	nFreqs     int
	keepTapers bool
}

func newMultitaperPlan(opts *MultitaperOptions, smpRate float64, nRaw int) (*multitaperPlan, error) {
	timeWidth := defaultTimeWidth
	freqWidth := defaultFreqWidth
	spacing := 0.0
	keepTapers := false
	if opts != nil {
		if opts.TimeWidth != 0 {
			timeWidth = opts.TimeWidth
		}
		if opts.FreqWidth != 0 {
			freqWidth = opts.FreqWidth
		}
		spacing = opts.Spacing
		keepTapers = opts.KeepTapers
	}
	if spacing == 0 {
		spacing = timeWidth
	}

	win := int(math.Round(timeWidth * smpRate))
	if win < 2 || win > nRaw {
		return nil, fmt.Errorf("multitaper window of %v s (%d samples) does not fit %d input samples",
			timeWidth, win, nRaw)
	}

	// Time-bandwidth product determines how many well-concentrated tapers
	// exist; the customary count is floor(2*TW) - 1.
	tw := timeWidth * freqWidth
	nTapers := int(2*tw) - 1
	if nTapers < 1 {
		nTapers = 1
	}

	nfft := nextPow2(win)
	p := &multitaperPlan{
		tapers:     dpssTapers(win, nTapers, tw),
		smpRate:    smpRate,
		win:        win,
		nfft:       nfft,
		nFreqs:     nfft/2 + 1,
		keepTapers: keepTapers,
	}
	p.freqs = make([]float64, p.nFreqs)
	for j := range p.freqs {
		p.freqs[j] = float64(j) * smpRate / float64(nfft)
	}

	// Window centers: timeWidth/2, timeWidth/2 + spacing, ... for as long
	// as the whole window fits within the signal.
	for k := 0; ; k++ {
		center := timeWidth/2 + spacing*float64(k)
		start := int(math.Round((center - timeWidth/2) * smpRate))
		if start+win > nRaw {
			break
		}
		p.starts = append(p.starts, start)
		p.centers = append(p.centers, center)
	}
	if len(p.centers) == 0 {
		return nil, fmt.Errorf("no multitaper windows of %v s fit %d input samples", timeWidth, nRaw)
	}
	return p, nil
}

func (p *multitaperPlan) blockShape() []int {
	if p.keepTapers {
		return []int{p.nFreqs, len(p.tapers), len(p.centers)}
	}
	return []int{p.nFreqs, len(p.centers)}
}

func (p *multitaperPlan) transformRow(row []float64, dst []complex128) {
	nTapers := len(p.tapers)
	nTimes := len(p.centers)
	tapered := make([]float64, p.nfft)
	for ti, start := range p.starts {
		segment := row[start : start+p.win]
		for k, taper := range p.tapers {
			for j := 0; j < p.win; j++ {
				tapered[j] = segment[j] * taper[j]
			}
			for j := p.win; j < p.nfft; j++ {
				tapered[j] = 0
			}
			spec := fft.FFTReal(tapered)
			if p.keepTapers {
				for f := 0; f < p.nFreqs; f++ {
					dst[(f*nTapers+k)*nTimes+ti] = spec[f]
				}
			} else {
				// Complex average across tapers.
				scale := complex(1/float64(nTapers), 0)
				for f := 0; f < p.nFreqs; f++ {
					dst[f*nTimes+ti] += spec[f] * scale
				}
			}
		}
	}
}

func (p *multitaperPlan) describe(s *Spectrum) {
	s.Freqs = append([]float64(nil), p.freqs...)
	s.Times = append([]float64(nil), p.centers...)
	if p.keepTapers {
		s.NTapers = len(p.tapers)
	}
}
