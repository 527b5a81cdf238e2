package synchrony

import (
	"fmt"

	"github.com/neurosig-go/neurosig/pkg/spectral"
	"github.com/neurosig-go/neurosig/pkg/tensor"
)

// Result holds a synchrony computation's outputs. Sync (and Phase, when
// requested) have the trial axis collapsed and a frequency axis at position
// 0; a time axis follows at position 1 when the input had one; the caller's
// free axes follow in their original relative order.
type Result struct {
	// Sync is the synchrony magnitude per (frequency, time, free...) cell:
	// within [0, 1] for coherence and PLV, within [-1, 1] for PPC.
	Sync *tensor.Dense[float64]
	// Phase is the circular mean phase difference (signal 1 minus signal
	// 2) in radians, range (-pi, pi]; nil unless Options.ReturnPhase.
	Phase *tensor.Dense[float64]
	// Freqs are the center frequencies in Hz (nil for band-filter).
	Freqs []float64
	// Bands are the (low, high) band edges in Hz (band-filter only).
	Bands [][2]float64
	// Times are the output timepoints in seconds.
	Times []float64
}

// Synchrony computes cross-trial synchrony between two raw time-series
// tensors of identical shape. Both are decomposed with the configured
// spectral method, then the statistic runs per time-frequency cell across
// trials. The inputs are not modified.
func Synchrony(data1, data2 *tensor.Dense[float64], opts Options) (*Result, error) {
	if err := opts.validateRaw(); err != nil {
		return nil, err
	}
	if err := checkPair(data1.Shape(), data2.Shape()); err != nil {
		return nil, err
	}
	trialAxis, timeAxis, err := rawAxes(data1.NumDims(), opts)
	if err != nil {
		return nil, err
	}

	specOpts := keepTapersOpts(opts.Spectral)
	spec1, err := spectral.Transform(data1, opts.SampleRate, timeAxis, specOpts)
	if err != nil {
		return nil, fmt.Errorf("decomposing signal 1: %w", err)
	}
	spec2, err := spectral.Transform(data2, opts.SampleRate, timeAxis, specOpts)
	if err != nil {
		return nil, fmt.Errorf("decomposing signal 2: %w", err)
	}

	c1, c2, err := canonicalizePair(spec1, spec2, shiftedTrialAxis(trialAxis, timeAxis, spec1, data1.NumDims()))
	if err != nil {
		return nil, err
	}

	syncVals, phaseVals := computeStats(c1, c2, opts.Method, opts.ReturnPhase)
	return assemble(c1, spec1, syncVals, phaseVals), nil
}

// SynchronySpectral computes cross-trial synchrony between two pre-computed
// spectral representations of identical layout. Axis roles (frequency, time,
// taper) come from the Spectrum itself; only the trial axis is declared in
// opts. When a taper axis is present, per-taper values are complex-averaged
// per trial before cross-trial aggregation.
func SynchronySpectral(spec1, spec2 *spectral.Spectrum, opts Options) (*Result, error) {
	if err := opts.validateSpectral(); err != nil {
		return nil, err
	}
	if err := checkPair(spec1.Data.Shape(), spec2.Data.Shape()); err != nil {
		return nil, err
	}
	trialAxis, err := tensor.NormAxis(opts.TrialAxis, spec1.Data.NumDims())
	if err != nil {
		return nil, fmt.Errorf("%w: trial %v", ErrConfig, err)
	}

	c1, c2, err := canonicalizePair(spec1, spec2, trialAxis)
	if err != nil {
		return nil, err
	}

	syncVals, phaseVals := computeStats(c1, c2, opts.Method, opts.ReturnPhase)
	return assemble(c1, spec1, syncVals, phaseVals), nil
}

// rawAxes normalizes and cross-checks the axis roles for raw input.
func rawAxes(rank int, opts Options) (trialAxis, timeAxis int, err error) {
	trialAxis, err = tensor.NormAxis(opts.TrialAxis, rank)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: trial %v", ErrConfig, err)
	}
	timeAxis, err = tensor.NormAxis(*opts.TimeAxis, rank)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: time %v", ErrConfig, err)
	}
	if trialAxis == timeAxis {
		return 0, 0, fmt.Errorf("%w: axis %d assigned to both trial and time", ErrConfig, trialAxis)
	}
	return trialAxis, timeAxis, nil
}

// keepTapersOpts forces taper retention for multitaper decompositions: the
// engine needs the raw tapers so it can average them per trial itself.
func keepTapersOpts(o spectral.Options) spectral.Options {
	if o.Method != spectral.Multitaper {
		return o
	}
	mt := spectral.MultitaperOptions{}
	if o.Multitaper != nil {
		mt = *o.Multitaper
	}
	mt.KeepTapers = true
	o.Multitaper = &mt
	return o
}

// shiftedTrialAxis maps a raw-input trial axis index to its position after
// the spectral transform replaced the time axis with a multi-axis block.
func shiftedTrialAxis(trialAxis, timeAxis int, spec *spectral.Spectrum, rawRank int) int {
	if trialAxis > timeAxis {
		return trialAxis + spec.Data.NumDims() - rawRank
	}
	return trialAxis
}

func canonicalizePair(spec1, spec2 *spectral.Spectrum, trialAxis int) (*canonical, *canonical, error) {
	c1, err := canonicalizeSpectrum(spec1.Data, trialAxis, spec1.FreqAxis, spec1.TimeAxis(), spec1.TaperAxis())
	if err != nil {
		return nil, nil, err
	}
	c2, err := canonicalizeSpectrum(spec2.Data, trialAxis, spec2.FreqAxis, spec2.TimeAxis(), spec2.TaperAxis())
	if err != nil {
		return nil, nil, err
	}
	if !c1.sameGrid(c2) {
		return nil, nil, fmt.Errorf("%w: spectral layouts do not match", ErrConfig)
	}
	return c1, c2, nil
}

func assemble(c *canonical, spec *spectral.Spectrum, syncVals, phaseVals []float64) *Result {
	res := &Result{
		Sync:  c.restore(syncVals),
		Freqs: spec.Freqs,
		Bands: spec.Bands,
		Times: spec.Times,
	}
	if spec.Bands != nil {
		res.Freqs = nil
	}
	if phaseVals != nil {
		res.Phase = c.restore(phaseVals)
	}
	return res
}
