// Package spectral turns sampled time series into complex time-frequency
// representations. Three decompositions are provided: a Morlet continuous
// wavelet transform, a DPSS multitaper spectrogram and a band-filter analytic
// signal. They differ in time/frequency resolution and in which axes they
// insert, but share one contract: Transform replaces the input's time axis
// with a (frequency, [taper,] time) block and leaves every other axis alone.
package spectral

import (
	"fmt"
	"math"
)

// Method selects the spectral decomposition.
type Method int

const (
	Wavelet Method = iota
	Multitaper
	BandFilter
)

func (m Method) String() string {
	switch m {
	case Wavelet:
		return "wavelet"
	case Multitaper:
		return "multitaper"
	case BandFilter:
		return "bandfilter"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod parses a method name as used on the command line.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "wavelet":
		return Wavelet, nil
	case "multitaper":
		return Multitaper, nil
	case "bandfilter":
		return BandFilter, nil
	default:
		return 0, fmt.Errorf("unknown spectral method %q", s)
	}
}

// WaveletOptions configures the Morlet wavelet transform.
type WaveletOptions struct {
	// Freqs are the wavelet center frequencies in Hz. Defaults to
	// DefaultWaveletFreqs().
	Freqs []float64
	// Wavenumber is the number of oscillation cycles within the Gaussian
	// envelope; higher values trade time resolution for frequency
	// resolution. Defaults to 6.
	Wavenumber float64
}

// MultitaperOptions configures the DPSS multitaper spectrogram.
type MultitaperOptions struct {
	// TimeWidth is the analysis window length in seconds. Defaults to 0.5.
	TimeWidth float64
	// Spacing is the distance between window centers in seconds. Defaults
	// to TimeWidth (non-overlapping windows).
	Spacing float64
	// FreqWidth is the spectral smoothing half-bandwidth in Hz. Defaults
	// to 4. The number of tapers is floor(2*TimeWidth*FreqWidth) - 1.
	FreqWidth float64
	// KeepTapers retains the taper axis in the output instead of
	// complex-averaging across tapers. Synchrony computation requires the
	// raw tapers so it can average them per trial itself.
	KeepTapers bool
}

// BandFilterOptions configures the band-filter analytic-signal transform.
type BandFilterOptions struct {
	// Bands are (low, high) passband edges in Hz. Defaults to
	// DefaultBands().
	Bands [][2]float64
}

// Options is the closed provider configuration: exactly the sub-struct for
// the selected method may be set, everything else must be nil. Passing a
// sub-struct for a different method is a configuration error, never silently
// ignored.
type Options struct {
	Method     Method
	Wavelet    *WaveletOptions
	Multitaper *MultitaperOptions
	BandFilter *BandFilterOptions
}

// DefaultWaveletFreqs returns the default wavelet center frequencies:
// 2^k Hz for k = 1, 1.25, ..., 7.25 (26 log-spaced frequencies, 2-152 Hz).
func DefaultWaveletFreqs() []float64 {
	freqs := make([]float64, 0, 26)
	for k := 1.0; k < 7.5; k += 0.25 {
		freqs = append(freqs, math.Pow(2, k))
	}
	return freqs
}

// DefaultBands returns the default band-filter passbands (theta-ish, beta-ish
// and gamma-ish ranges).
func DefaultBands() [][2]float64 {
	return [][2]float64{{2, 8}, {10, 32}, {40, 100}}
}

// Validate checks the option set for internal consistency.
func (o Options) Validate() error {
	switch o.Method {
	case Wavelet:
		if o.Multitaper != nil || o.BandFilter != nil {
			return fmt.Errorf("options for another spectral method passed with method %v", o.Method)
		}
		if o.Wavelet != nil {
			if o.Wavelet.Wavenumber < 0 {
				return fmt.Errorf("wavelet wavenumber must be positive: got %v", o.Wavelet.Wavenumber)
			}
			for _, f := range o.Wavelet.Freqs {
				if f <= 0 {
					return fmt.Errorf("wavelet frequencies must be positive: got %v", f)
				}
			}
		}
	case Multitaper:
		if o.Wavelet != nil || o.BandFilter != nil {
			return fmt.Errorf("options for another spectral method passed with method %v", o.Method)
		}
		if o.Multitaper != nil {
			mt := o.Multitaper
			if mt.TimeWidth < 0 || mt.Spacing < 0 || mt.FreqWidth < 0 {
				return fmt.Errorf("multitaper widths must be positive: time=%v spacing=%v freq=%v",
					mt.TimeWidth, mt.Spacing, mt.FreqWidth)
			}
		}
	case BandFilter:
		if o.Wavelet != nil || o.Multitaper != nil {
			return fmt.Errorf("options for another spectral method passed with method %v", o.Method)
		}
		if o.BandFilter != nil {
			for _, b := range o.BandFilter.Bands {
				if b[0] <= 0 || b[1] <= b[0] {
					return fmt.Errorf("invalid band edges (%v, %v)", b[0], b[1])
				}
			}
		}
	default:
		return fmt.Errorf("unknown spectral method %v", o.Method)
	}
	return nil
}

// nextPow2 returns the smallest power of two >= n.
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
