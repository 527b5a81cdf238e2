package synchrony_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurosig-go/neurosig/pkg/spectral"
	"github.com/neurosig-go/neurosig/pkg/synchrony"
	"github.com/neurosig-go/neurosig/pkg/tensor"
)

const couplingTrials = 4

// spikeFieldFixture builds a deterministic pair: a pure 32 Hz field (every
// trial identical) and a spike train firing at samples 125, 250 and 375 in
// every trial. All three spike times land on exact field cycle boundaries, so
// the field phase at every spike is 0.
func spikeFieldFixture(spikeSamples ...int) (spikes, field *tensor.Dense[float64]) {
	if spikeSamples == nil {
		spikeSamples = []int{125, 250, 375}
	}
	spikes = tensor.New[float64](couplingTrials, nTime)
	field = tensor.New[float64](couplingTrials, nTime)
	for k := 0; k < couplingTrials; k++ {
		for j := 0; j < nTime; j++ {
			field.Set(math.Cos(2*math.Pi*oscFreq*float64(j)/smpRate), k, j)
		}
		for _, j := range spikeSamples {
			spikes.Set(1, k, j)
		}
	}
	return spikes, field
}

func couplingOptions(method synchrony.Method, width float64) synchrony.CouplingOptions {
	return synchrony.CouplingOptions{
		Options: synchrony.Options{
			Method:      method,
			Spectral:    spectral.Options{Method: spectral.Wavelet},
			SampleRate:  smpRate,
			TrialAxis:   0,
			TimeAxis:    synchrony.Axis(1),
			ReturnPhase: true,
		},
		WindowWidth: width,
	}
}

// assertSameValues compares two float slices treating NaN==NaN as a match.
func assertSameValues(t *testing.T, want, got []float64, tol float64) {
	t.Helper()
	require.Equal(t, len(want), len(got))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got[i]), "index %d: want NaN, got %v", i, got[i])
			continue
		}
		assert.InDelta(t, want[i], got[i], tol, "index %d", i)
	}
}

func TestSpikeFieldCoherence(t *testing.T) {
	spikes, field := spikeFieldFixture()
	res, err := synchrony.SpikeFieldCoupling(spikes, field, couplingOptions(synchrony.Coherence, 0))
	require.NoError(t, err)

	// Coherence pools whole trials: ordinary field-field shape, no counts.
	assert.Nil(t, res.N)
	require.Equal(t, []int{26, nTime}, res.Sync.Shape())
	for _, v := range res.Sync.Data() {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}

	t.Run("window options rejected", func(t *testing.T) {
		_, err := synchrony.SpikeFieldCoupling(spikes, field, couplingOptions(synchrony.Coherence, 0.2))
		assert.True(t, errors.Is(err, synchrony.ErrConfig))
	})
}

func TestSpikeFieldPLV(t *testing.T) {
	spikes, field := spikeFieldFixture()
	origSpikes, origField := spikes.Clone(), field.Clone()

	res, err := synchrony.SpikeFieldCoupling(spikes, field, couplingOptions(synchrony.PLV, 0.2))
	require.NoError(t, err)
	assert.True(t, spikes.Equal(origSpikes))
	assert.True(t, field.Equal(origField))

	// 0.2 s windows over a 1 s recording: centers 0.1, 0.3, 0.5, 0.7.
	require.InDeltaSlice(t, []float64{0.1, 0.3, 0.5, 0.7}, res.Times, 1e-9)
	require.Equal(t, []int{26, 4}, res.Sync.Shape())
	require.Equal(t, []int{4}, res.N.Shape())

	// One spike per trial in the first window, two in the second, none
	// later.
	assert.Equal(t, []float64{4, 8, 0, 0}, res.N.Data())

	// Every pooled spike sees the same field phase, so locking is perfect
	// and the spike-relative phase at the carrier frequency is 0.
	assert.InDelta(t, 1.0, res.Sync.At(freq32Row, 0), 1e-6)
	assert.InDelta(t, 1.0, res.Sync.At(freq32Row, 1), 1e-6)
	assert.InDelta(t, 0.0, res.Phase.At(freq32Row, 0), 0.05)
	assert.InDelta(t, 0.0, res.Phase.At(freq32Row, 1), 0.05)

	// Spikeless windows carry no information.
	for f := 0; f < 26; f++ {
		for _, ci := range []int{2, 3} {
			assert.True(t, math.IsNaN(res.Sync.At(f, ci)))
			assert.True(t, math.IsNaN(res.Phase.At(f, ci)))
		}
	}
}

func TestSpikeFieldPPCRelation(t *testing.T) {
	spikes, field := spikeFieldFixture()
	plvRes, err := synchrony.SpikeFieldCoupling(spikes, field, couplingOptions(synchrony.PLV, 0.2))
	require.NoError(t, err)
	ppcRes, err := synchrony.SpikeFieldCoupling(spikes, field, couplingOptions(synchrony.PPC, 0.2))
	require.NoError(t, err)

	// PPC is the bias-corrected square of PLV over the same sample pool.
	for f := 0; f < 26; f++ {
		for ci := 0; ci < 4; ci++ {
			n := plvRes.N.At(ci)
			if n < 2 {
				assert.True(t, math.IsNaN(ppcRes.Sync.At(f, ci)))
				continue
			}
			plv := plvRes.Sync.At(f, ci)
			assert.InDelta(t, (n*plv*plv-1)/(n-1), ppcRes.Sync.At(f, ci), 1e-9)
		}
	}
}

func TestSpikeFieldMultitaperRetainedRange(t *testing.T) {
	// An extra spike at t=0.05 falls outside the retained spectral range
	// [0.1, 0.9] for 0.2 s tapers and must be discarded; the surviving
	// spike contributes one sample per taper.
	spikes, field := spikeFieldFixture(50, 125)
	opts := couplingOptions(synchrony.PLV, 0.2)
	opts.Spectral = spectral.Options{
		Method:     spectral.Multitaper,
		Multitaper: &spectral.MultitaperOptions{TimeWidth: 0.2, FreqWidth: 10},
	}
	res, err := synchrony.SpikeFieldCoupling(spikes, field, opts)
	require.NoError(t, err)

	// win=200 samples, nfft=256: 129 frequency bins, 3 tapers per spike.
	assert.Len(t, res.Freqs, 129)
	assert.Equal(t, []float64{12, 0, 0, 0}, res.N.Data())
	assert.False(t, math.IsNaN(res.Sync.At(0, 0)))
	assert.True(t, math.IsNaN(res.Sync.At(0, 1)))
}

func TestSpikeFieldSpectralEquivalence(t *testing.T) {
	spikes, field := spikeFieldFixture()
	raw, err := synchrony.SpikeFieldCoupling(spikes, field, couplingOptions(synchrony.PLV, 0.2))
	require.NoError(t, err)

	fieldSpec, err := spectral.Transform(field, smpRate, 1, spectral.Options{Method: spectral.Wavelet})
	require.NoError(t, err)
	res, err := synchrony.SpikeFieldCouplingSpectral(spikes, fieldSpec, couplingOptions(synchrony.PLV, 0.2))
	require.NoError(t, err)

	require.Equal(t, raw.Sync.Shape(), res.Sync.Shape())
	assertSameValues(t, raw.Sync.Data(), res.Sync.Data(), 1e-12)
	assertSameValues(t, raw.Phase.Data(), res.Phase.Data(), 1e-12)
	assert.Equal(t, raw.N.Data(), res.N.Data())

	t.Run("coherence rejected", func(t *testing.T) {
		_, err := synchrony.SpikeFieldCouplingSpectral(spikes, fieldSpec, couplingOptions(synchrony.Coherence, 0))
		assert.True(t, errors.Is(err, synchrony.ErrConfig))
	})
}

func TestSpikeFieldTransposedLayout(t *testing.T) {
	spikes, field := spikeFieldFixture()
	ref, err := synchrony.SpikeFieldCoupling(spikes, field, couplingOptions(synchrony.PLV, 0.2))
	require.NoError(t, err)

	opts := couplingOptions(synchrony.PLV, 0.2)
	opts.TrialAxis = -1
	opts.TimeAxis = synchrony.Axis(0)
	res, err := synchrony.SpikeFieldCoupling(spikes.Transpose(1, 0), field.Transpose(1, 0), opts)
	require.NoError(t, err)

	require.Equal(t, ref.Sync.Shape(), res.Sync.Shape())
	assertSameValues(t, ref.Sync.Data(), res.Sync.Data(), 1e-12)
	assert.Equal(t, ref.N.Data(), res.N.Data())
}

func TestSpikeFieldCustomWindows(t *testing.T) {
	spikes, field := spikeFieldFixture()
	opts := couplingOptions(synchrony.PLV, 0.25)
	opts.WindowCenters = []float64{0.25}
	res, err := synchrony.SpikeFieldCoupling(spikes, field, opts)
	require.NoError(t, err)

	// One window [0.125, 0.375] pooling all three spike times per trial.
	require.Equal(t, []float64{0.25}, res.Times)
	require.Equal(t, []int{26, 1}, res.Sync.Shape())
	assert.Equal(t, []float64{12}, res.N.Data())
	assert.InDelta(t, 1.0, res.Sync.At(freq32Row, 0), 1e-6)
}

func TestSpikeFieldConfigErrors(t *testing.T) {
	spikes, field := spikeFieldFixture()

	t.Run("shape mismatch", func(t *testing.T) {
		short := field.SelectAlongAxis(0, []int{0, 1})
		_, err := synchrony.SpikeFieldCoupling(spikes, short, couplingOptions(synchrony.PLV, 0.2))
		assert.True(t, errors.Is(err, synchrony.ErrConfig))
	})

	t.Run("wrong sample-time length", func(t *testing.T) {
		opts := couplingOptions(synchrony.PLV, 0.2)
		opts.Times = []float64{0, 1, 2}
		_, err := synchrony.SpikeFieldCoupling(spikes, field, opts)
		assert.True(t, errors.Is(err, synchrony.ErrConfig))
	})

	t.Run("negative window center", func(t *testing.T) {
		opts := couplingOptions(synchrony.PLV, 0.2)
		opts.WindowCenters = []float64{-0.1}
		_, err := synchrony.SpikeFieldCoupling(spikes, field, opts)
		assert.True(t, errors.Is(err, synchrony.ErrConfig))
	})

	t.Run("window wider than recording", func(t *testing.T) {
		opts := couplingOptions(synchrony.PLV, 5)
		_, err := synchrony.SpikeFieldCoupling(spikes, field, opts)
		assert.True(t, errors.Is(err, synchrony.ErrConfig))
	})
}
