// Package simulate generates synthetic neural data for tests and demos:
// multichannel oscillations with controlled cross-channel phase
// relationships, and Bernoulli spike trains driven by a rate tensor.
//
// All generators take an explicit random source; nothing here touches
// process-global random state.
package simulate

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/neurosig-go/neurosig/pkg/tensor"
)

// OscillationConfig describes a set of simulated oscillatory channels that
// share a carrier frequency but differ in amplitude, mean phase, trial-to-
// trial phase jitter and additive noise. Per-channel slices may hold either
// one value (applied to every channel) or NChannels values.
type OscillationConfig struct {
	NChannels  int
	Frequency  float64 // carrier frequency, Hz
	Amplitude  []float64
	Phase      []float64 // mean phase offset, radians
	PhaseSD    []float64 // trial-to-trial phase jitter SD, radians
	Noise      []float64 // additive white noise SD
	NTrials    int
	TimeRange  float64 // recording length, seconds
	SampleRate float64 // Hz
}

func perChannel(vals []float64, nChannels int, name string) ([]float64, error) {
	switch len(vals) {
	case nChannels:
		return vals, nil
	case 1:
		out := make([]float64, nChannels)
		for i := range out {
			out[i] = vals[0]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s has %d values for %d channels", name, len(vals), nChannels)
	}
}

// Oscillation simulates cfg.NTrials repetitions of cfg.NChannels phase-
// coupled sinusoids, returning a (trials, time, channels) tensor. Each
// trial's phase for channel c is Phase[c] plus Gaussian jitter of SD
// PhaseSD[c]; channels share the jitter draw ordering per trial, so two
// channels with PhaseSD 0 and s keep a circular phase difference centered on
// Phase[0]-Phase[1] with SD s.
func Oscillation(cfg OscillationConfig, src rand.Source) (*tensor.Dense[float64], error) {
	rng := rand.New(src)
	if cfg.NChannels < 1 || cfg.NTrials < 1 {
		return nil, fmt.Errorf("need at least one channel and one trial: got %d, %d", cfg.NChannels, cfg.NTrials)
	}
	if cfg.Frequency <= 0 || cfg.SampleRate <= 0 || cfg.TimeRange <= 0 {
		return nil, fmt.Errorf("frequency, sample rate and time range must be positive")
	}
	amp, err := perChannel(cfg.Amplitude, cfg.NChannels, "amplitude")
	if err != nil {
		return nil, err
	}
	phase, err := perChannel(cfg.Phase, cfg.NChannels, "phase")
	if err != nil {
		return nil, err
	}
	phaseSD, err := perChannel(cfg.PhaseSD, cfg.NChannels, "phase SD")
	if err != nil {
		return nil, err
	}
	noise, err := perChannel(cfg.Noise, cfg.NChannels, "noise")
	if err != nil {
		return nil, err
	}

	nTime := int(math.Round(cfg.TimeRange * cfg.SampleRate))
	out := tensor.New[float64](cfg.NTrials, nTime, cfg.NChannels)
	data := out.Data()
	w := 2 * math.Pi * cfg.Frequency / cfg.SampleRate
	for k := 0; k < cfg.NTrials; k++ {
		trialPhase := make([]float64, cfg.NChannels)
		for c := range trialPhase {
			trialPhase[c] = phase[c] + phaseSD[c]*rng.NormFloat64()
		}
		for j := 0; j < nTime; j++ {
			base := (k*nTime + j) * cfg.NChannels
			for c := 0; c < cfg.NChannels; c++ {
				v := amp[c] * math.Cos(w*float64(j)+trialPhase[c])
				if noise[c] > 0 {
					v += noise[c] * rng.NormFloat64()
				}
				data[base+c] = v
			}
		}
	}
	return out, nil
}

// BernoulliSpikes draws an independent 0/1 spike indicator for every element
// of a spike-probability tensor. Probabilities are clamped to [0, 1].
func BernoulliSpikes(probs *tensor.Dense[float64], src rand.Source) *tensor.Dense[float64] {
	out := tensor.New[float64](probs.Shape()...)
	dst := out.Data()
	for i, p := range probs.Data() {
		if p < 0 {
			p = 0
		} else if p > 1 {
			p = 1
		}
		dst[i] = distuv.Bernoulli{P: p, Src: src}.Rand()
	}
	return out
}
