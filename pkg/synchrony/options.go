// Package synchrony quantifies how consistently the phase or amplitude
// relationship between two neural signals repeats across experimental
// trials. It computes coherence, phase-locking value (PLV) or pairwise phase
// consistency (PPC) per time-frequency cell, for field-field signal pairs
// and for spike-to-field coupling, over any of the spectral decompositions
// in pkg/spectral.
//
// Inputs are N-dimensional tensors with explicitly declared axis roles
// (trial, time, frequency, taper); any remaining axes are free axes over
// which the computation repeats independently. Input tensors are never
// modified. All entry points validate their whole configuration up front and
// either return a complete result or an error, never a partial one.
package synchrony

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/neurosig-go/neurosig/pkg/spectral"
	"github.com/neurosig-go/neurosig/pkg/tensor"
)

// ErrConfig marks configuration errors: unknown methods, axis indices out of
// range, mismatched trial counts, options that do not apply to the selected
// method. All of them are detected before any computation starts.
var ErrConfig = errors.New("invalid synchrony configuration")

// Method selects the synchrony statistic.
type Method int

const (
	// Coherence is the amplitude- and phase-sensitive measure: the
	// magnitude of the trial-averaged cross-spectrum over the geometric
	// mean of the trial-averaged power spectra.
	Coherence Method = iota
	// PLV is the phase-locking value: the magnitude of the mean unit
	// phase-difference vector, independent of amplitude.
	PLV
	// PPC is the pairwise phase consistency: the bias-corrected estimator
	// of squared PLV, unbiased in the trial count and therefore possibly
	// negative for weak locking.
	PPC
)

func (m Method) String() string {
	switch m {
	case Coherence:
		return "coherence"
	case PLV:
		return "PLV"
	case PPC:
		return "PPC"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod parses a statistic name as used on the command line.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "coherence":
		return Coherence, nil
	case "PLV", "plv":
		return PLV, nil
	case "PPC", "ppc":
		return PPC, nil
	default:
		return 0, fmt.Errorf("%w: unknown method %q", ErrConfig, s)
	}
}

// Axis wraps an axis index for the optional axis-role fields.
func Axis(i int) *int { return &i }

// Options configures a field-field synchrony computation. It is a closed
// configuration: every field is interpreted, and fields that do not apply to
// the chosen input kind or spectral method are rejected by validation rather
// than ignored.
type Options struct {
	// Method is the synchrony statistic.
	Method Method
	// Spectral selects and configures the spectral decomposition. Its
	// per-method sub-options are validated against Spectral.Method.
	Spectral spectral.Options
	// SampleRate is the sampling rate in Hz; required for raw time-series
	// input, rejected for pre-computed spectral input.
	SampleRate float64
	// TrialAxis is the axis holding independent trials. Negative values
	// count from the end.
	TrialAxis int
	// TimeAxis is the time axis; required for raw input. For spectral
	// input the time axis is declared by the Spectrum itself and this
	// field must be nil.
	TimeAxis *int
	// ReturnPhase requests the circular mean phase difference alongside
	// the synchrony magnitude.
	ReturnPhase bool
}

func (o *Options) validate() error {
	var errs *multierror.Error
	if o.Method != Coherence && o.Method != PLV && o.Method != PPC {
		errs = multierror.Append(errs, fmt.Errorf("%w: unknown method %v", ErrConfig, o.Method))
	}
	if err := o.Spectral.Validate(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("%w: %v", ErrConfig, err))
	}
	return errs.ErrorOrNil()
}

// validateRaw checks the parts of the configuration that only apply to raw
// time-series input.
func (o *Options) validateRaw() error {
	var errs *multierror.Error
	if err := o.validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if o.TimeAxis == nil {
		errs = multierror.Append(errs, fmt.Errorf("%w: raw input requires a time axis", ErrConfig))
	}
	if o.SampleRate <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("%w: raw input requires a positive sample rate, got %v",
			ErrConfig, o.SampleRate))
	}
	return errs.ErrorOrNil()
}

// validateSpectral checks the parts that only apply to pre-computed spectral
// input, where axis roles come from the Spectrum itself.
func (o *Options) validateSpectral() error {
	var errs *multierror.Error
	if err := o.validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if o.TimeAxis != nil {
		errs = multierror.Append(errs, fmt.Errorf(
			"%w: spectral input declares its own time axis; TimeAxis must not be set", ErrConfig))
	}
	if o.SampleRate != 0 {
		errs = multierror.Append(errs, fmt.Errorf(
			"%w: spectral input is already decomposed; SampleRate must not be set", ErrConfig))
	}
	return errs.ErrorOrNil()
}

// checkPair verifies that the two signals agree in shape: same rank, same
// trial count, same time length and identical free axes. Mismatches are
// configuration errors, never broadcast over.
func checkPair(shape1, shape2 []int) error {
	if !tensor.SameShape(shape1, shape2) {
		return fmt.Errorf("%w: signal shapes %v and %v do not match", ErrConfig, shape1, shape2)
	}
	return nil
}

// CouplingOptions configures a spike-field coupling computation.
type CouplingOptions struct {
	Options

	// WindowWidth is the pooling window length in seconds around each
	// window center (PLV/PPC only; coherence pools whole trials and
	// rejects it). Defaults to 0.5.
	WindowWidth float64
	// WindowCenters are the output timepoints, in seconds, around which
	// spike-conditioned samples are pooled (PLV/PPC only). Defaults to
	// non-overlapping WindowWidth windows covering the recording.
	WindowCenters []float64
	// Times are the sample times of the raw time axis in seconds. Defaults
	// to 0, 1/rate, 2/rate, ...
	Times []float64
	// FieldTrialAxis is the trial axis within a pre-computed field
	// spectrum (spectral entry point only); defaults to TrialAxis.
	FieldTrialAxis *int
}

func (o *CouplingOptions) validateCoupling() error {
	var errs *multierror.Error
	if o.WindowWidth < 0 {
		errs = multierror.Append(errs, fmt.Errorf("%w: window width must be positive, got %v",
			ErrConfig, o.WindowWidth))
	}
	if o.Method == Coherence {
		if o.WindowWidth != 0 || o.WindowCenters != nil {
			errs = multierror.Append(errs, fmt.Errorf(
				"%w: coherence pools whole trials; window options do not apply", ErrConfig))
		}
	}
	for _, c := range o.WindowCenters {
		if c < 0 {
			errs = multierror.Append(errs, fmt.Errorf("%w: negative window center %v", ErrConfig, c))
		}
	}
	return errs.ErrorOrNil()
}
