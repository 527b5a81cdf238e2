package synchrony

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"github.com/neurosig-go/neurosig/pkg/spectral"
	"github.com/neurosig-go/neurosig/pkg/tensor"
)

const (
	// defaultWindowWidth is the spike-pooling window length in seconds.
	defaultWindowWidth = 0.5

	// timeEps absorbs floating-point jitter when comparing sample times
	// against window edges.
	timeEps = 1e-9
)

// CouplingResult holds a spike-field coupling computation's outputs.
type CouplingResult struct {
	Result

	// N is the number of spike-conditioned samples pooled into each output
	// window, laid out (time, free...). It is frequency-independent. Nil
	// for coherence, which pools whole trials rather than spikes. A window
	// with N=0 carries no information: its Sync and Phase are NaN — a
	// sampling absence, deliberately distinct from the field-field
	// zero-variance convention of 0, so empty windows cannot masquerade as
	// valid zero measurements downstream.
	N *tensor.Dense[float64]
}

// SpikeFieldCoupling computes coupling between a 0/1 spike-train tensor and
// a continuous field signal of identical shape.
//
// For coherence, the spike train is decomposed like any time series and the
// result is ordinary field-field coherence (N is nil). For PLV/PPC, coupling
// is conditioned on spike occurrence: for every requested window center,
// each spike inside the window contributes the field's spectral phase at the
// spike's time (nearest sample), pooled across all trials into one sample
// set per (frequency, window) cell. With a multitaper decomposition each
// taper contributes its own sample, and spikes outside the retained spectral
// time range are discarded.
func SpikeFieldCoupling(spikes, field *tensor.Dense[float64], opts CouplingOptions) (*CouplingResult, error) {
	if err := opts.validateCoupling(); err != nil {
		return nil, err
	}
	if opts.Method == Coherence {
		res, err := Synchrony(spikes, field, opts.Options)
		if err != nil {
			return nil, err
		}
		return &CouplingResult{Result: *res}, nil
	}

	if err := opts.validateRaw(); err != nil {
		return nil, err
	}
	if err := checkPair(spikes.Shape(), field.Shape()); err != nil {
		return nil, err
	}
	trialAxis, timeAxis, err := rawAxes(spikes.NumDims(), opts.Options)
	if err != nil {
		return nil, err
	}
	rawTimes, err := sampleTimes(opts, spikes.Dim(timeAxis))
	if err != nil {
		return nil, err
	}

	specOpts := keepTapersOpts(opts.Spectral)
	if specOpts.Method == spectral.Multitaper {
		// Spike times need per-sample spectral estimates, not per-window.
		specOpts.Multitaper.Spacing = 1 / opts.SampleRate
	}
	fieldSpec, err := spectral.Transform(field, opts.SampleRate, timeAxis, specOpts)
	if err != nil {
		return nil, fmt.Errorf("decomposing field signal: %w", err)
	}

	cf, err := canonicalizeSpectrum(fieldSpec.Data,
		shiftedTrialAxis(trialAxis, timeAxis, fieldSpec, spikes.NumDims()),
		fieldSpec.FreqAxis, fieldSpec.TimeAxis(), fieldSpec.TaperAxis())
	if err != nil {
		return nil, err
	}
	sg, err := canonicalizeSpikes(spikes, trialAxis, timeAxis)
	if err != nil {
		return nil, err
	}
	return poolCoupling(cf, fieldSpec, sg, rawTimes, opts)
}

// SpikeFieldCouplingSpectral computes PLV/PPC spike-field coupling against a
// pre-computed field spectrum. The spike train stays a raw 0/1 tensor whose
// trial and time axes are declared in opts; the field spectrum declares its
// own layout, with its trial axis in FieldTrialAxis (defaulting to the spike
// train's). Coherence on spectral input is plain field-field synchrony of
// two spectra — use SynchronySpectral for that.
func SpikeFieldCouplingSpectral(spikes *tensor.Dense[float64], field *spectral.Spectrum, opts CouplingOptions) (*CouplingResult, error) {
	if err := opts.validateCoupling(); err != nil {
		return nil, err
	}
	if opts.Method == Coherence {
		return nil, fmt.Errorf("%w: spectral-input coherence is field-field synchrony; use SynchronySpectral", ErrConfig)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.TimeAxis == nil {
		return nil, fmt.Errorf("%w: the spike train requires a time axis", ErrConfig)
	}
	if field.TimeAxis() < 0 {
		return nil, fmt.Errorf("%w: spike-field coupling requires a field spectrum with a time axis", ErrConfig)
	}

	trialAxis, timeAxis, err := rawAxes(spikes.NumDims(), opts.Options)
	if err != nil {
		return nil, err
	}
	rawTimes, err := sampleTimes(opts, spikes.Dim(timeAxis))
	if err != nil {
		return nil, err
	}

	fieldTrial := trialAxis
	if opts.FieldTrialAxis != nil {
		fieldTrial, err = tensor.NormAxis(*opts.FieldTrialAxis, field.Data.NumDims())
		if err != nil {
			return nil, fmt.Errorf("%w: field trial %v", ErrConfig, err)
		}
	}
	cf, err := canonicalizeSpectrum(field.Data, fieldTrial, field.FreqAxis, field.TimeAxis(), field.TaperAxis())
	if err != nil {
		return nil, err
	}
	sg, err := canonicalizeSpikes(spikes, trialAxis, timeAxis)
	if err != nil {
		return nil, err
	}
	return poolCoupling(cf, field, sg, rawTimes, opts)
}

// sampleTimes resolves the raw-axis sample times, defaulting to a uniform
// grid at the sample rate.
func sampleTimes(opts CouplingOptions, nTime int) ([]float64, error) {
	if opts.Times != nil {
		if len(opts.Times) != nTime {
			return nil, fmt.Errorf("%w: %d sample times for %d time samples", ErrConfig, len(opts.Times), nTime)
		}
		return opts.Times, nil
	}
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample times require either Times or a positive SampleRate", ErrConfig)
	}
	times := make([]float64, nTime)
	for i := range times {
		times[i] = float64(i) / opts.SampleRate
	}
	return times, nil
}

// defaultCenters tiles non-overlapping windows of the given width across the
// recording, keeping only centers whose window fits entirely inside it.
func defaultCenters(rawTimes []float64, width float64) []float64 {
	last := rawTimes[len(rawTimes)-1]
	var centers []float64
	for k := 0; ; k++ {
		c := width/2 + width*float64(k)
		if c+width/2 > last+timeEps {
			break
		}
		centers = append(centers, c)
	}
	return centers
}

// poolCoupling runs the spike-conditioned PLV/PPC computation over a
// canonical field spectrum and spike grid.
func poolCoupling(cf *canonical, fieldSpec *spectral.Spectrum, sg *spikeGrid, rawTimes []float64, opts CouplingOptions) (*CouplingResult, error) {
	if cf.nTrial != sg.nTrial {
		return nil, fmt.Errorf("%w: %d spike trials vs %d field trials", ErrConfig, sg.nTrial, cf.nTrial)
	}
	if cf.nFree != sg.nFree || !tensor.SameShape(cf.freeShape, sg.freeShape) {
		return nil, fmt.Errorf("%w: spike free axes %v do not match field free axes %v",
			ErrConfig, sg.freeShape, cf.freeShape)
	}

	width := opts.WindowWidth
	if width == 0 {
		width = defaultWindowWidth
	}
	centers := opts.WindowCenters
	if centers == nil {
		centers = defaultCenters(rawTimes, width)
	}
	if len(centers) == 0 {
		return nil, fmt.Errorf("%w: no pooling window of %v s fits the %v s recording",
			ErrConfig, width, rawTimes[len(rawTimes)-1])
	}

	// Map each raw sample onto its nearest spectral timepoint; samples
	// outside the retained spectral range (multitaper trims the window
	// half-width off both ends) are discarded.
	specIdx := nearestIndices(rawTimes, fieldSpec.Times)

	nFreq, nTaper, nFree := cf.nFreq, cf.nTaper, cf.nFree
	nCenters := len(centers)
	syncVals := make([]float64, nFreq*nCenters*nFree)
	var phaseVals []float64
	if opts.ReturnPhase {
		phaseVals = make([]float64, len(syncVals))
	}
	nVals := make([]float64, nCenters*nFree)

	u := make([]complex128, nFreq*nFree)
	for ci, center := range centers {
		lo := sort.SearchFloat64s(rawTimes, center-width/2-timeEps)
		hi := sort.SearchFloat64s(rawTimes, center+width/2+timeEps)
		for i := range u {
			u[i] = 0
		}

		for k := 0; k < sg.nTrial; k++ {
			for j := lo; j < hi; j++ {
				jj := specIdx[j]
				if jj < 0 {
					continue
				}
				for c := 0; c < nFree; c++ {
					if sg.at(k, j, c) == 0 {
						continue
					}
					nVals[ci*nFree+c] += float64(nTaper)
					for f := 0; f < nFreq; f++ {
						for p := 0; p < nTaper; p++ {
							// The spike is the phase reference, so each
							// sample is the conjugated unit field phasor.
							z := cmplx.Conj(cf.at(k, f, jj, p, c))
							if m := cmplx.Abs(z); m > 0 {
								u[f*nFree+c] += z / complex(m, 0)
							} else {
								u[f*nFree+c] += 1
							}
						}
					}
				}
			}
		}

		for f := 0; f < nFreq; f++ {
			for c := 0; c < nFree; c++ {
				cell := (f*nCenters+ci)*nFree + c
				n := nVals[ci*nFree+c]
				if n == 0 || (opts.Method == PPC && n < 2) {
					syncVals[cell] = math.NaN()
					if phaseVals != nil {
						phaseVals[cell] = math.NaN()
					}
					continue
				}
				uc := u[f*nFree+c]
				plv := cmplx.Abs(uc) / n
				if opts.Method == PPC {
					syncVals[cell] = (n*plv*plv - 1) / (n - 1)
				} else {
					syncVals[cell] = plv
				}
				if phaseVals != nil {
					phaseVals[cell] = cmplx.Phase(uc)
				}
			}
		}
	}

	out := &canonical{
		nFreq:     nFreq,
		nTime:     nCenters,
		nFree:     nFree,
		freeShape: cf.freeShape,
		hasTime:   true,
	}
	res := &CouplingResult{
		Result: Result{
			Sync:  out.restore(syncVals),
			Freqs: fieldSpec.Freqs,
			Bands: fieldSpec.Bands,
			Times: centers,
		},
		N: tensor.FromSlice(nVals, append([]int{nCenters}, cf.freeShape...)...),
	}
	if phaseVals != nil {
		res.Phase = out.restore(phaseVals)
	}
	return res, nil
}

// nearestIndices maps every raw sample time to the index of its nearest
// spectral timepoint, or -1 when it falls outside the spectral range.
func nearestIndices(rawTimes, specTimes []float64) []int {
	idx := make([]int, len(rawTimes))
	first := specTimes[0]
	last := specTimes[len(specTimes)-1]
	for j, t := range rawTimes {
		if t < first-timeEps || t > last+timeEps {
			idx[j] = -1
			continue
		}
		i := sort.SearchFloat64s(specTimes, t)
		if i == len(specTimes) {
			i--
		} else if i > 0 && t-specTimes[i-1] < specTimes[i]-t {
			i--
		}
		idx[j] = i
	}
	return idx
}
