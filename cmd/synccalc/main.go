package main

import (
	"context"
	"encoding/csv"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/observability"
	"golang.org/x/exp/rand"

	"github.com/neurosig-go/neurosig/pkg/simulate"
	"github.com/neurosig-go/neurosig/pkg/spectral"
	"github.com/neurosig-go/neurosig/pkg/synchrony"
)

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	methodName := pflag.String("method", "PLV", "synchrony statistic: coherence|PLV|PPC")
	specName := pflag.String("spec-method", "wavelet", "spectral method: wavelet|multitaper|bandfilter")
	trials := pflag.Int("trials", 40, "number of simulated trials")
	smpRate := pflag.Float64("smp-rate", 1000, "sampling rate, Hz")
	oscFreq := pflag.Float64("freq", 32, "oscillation frequency, Hz")
	duration := pflag.Float64("duration", 1.0, "recording length, seconds")
	seed := pflag.Uint64("seed", 1, "random seed")
	pflag.Parse()

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	method, err := synchrony.ParseMethod(*methodName)
	assertNoError(err)
	specMethod, err := spectral.ParseMethod(*specName)
	assertNoError(err)

	opts := synchrony.Options{
		Method:      method,
		Spectral:    spectral.Options{Method: specMethod},
		SampleRate:  *smpRate,
		TrialAxis:   0,
		TimeAxis:    synchrony.Axis(1),
		ReturnPhase: true,
	}
	logger.Debugf(ctx, "configuration: %s", spew.Sdump(opts))

	logger.Infof(ctx, "simulating %d trials of a weakly phase-coupled %v Hz pair", *trials, *oscFreq)
	data, err := simulate.Oscillation(simulate.OscillationConfig{
		NChannels:  2,
		Frequency:  *oscFreq,
		Amplitude:  []float64{5},
		Phase:      []float64{math.Pi / 4, 0},
		PhaseSD:    []float64{0, math.Pi / 4},
		Noise:      []float64{1},
		NTrials:    *trials,
		TimeRange:  *duration,
		SampleRate: *smpRate,
	}, rand.NewSource(*seed))
	assertNoError(err)

	nTime := data.Dim(1)
	data1 := data.SelectAlongAxis(2, []int{0}).Reshape(*trials, nTime)
	data2 := data.SelectAlongAxis(2, []int{1}).Reshape(*trials, nTime)

	logger.Infof(ctx, "computing %v synchrony over a %v decomposition", method, specMethod)
	res, err := synchrony.Synchrony(data1, data2, opts)
	assertNoError(err)

	wc := datacounter.NewWriterCounter(os.Stdout)
	observability.Go(ctx, func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				logger.Debugf(ctx, "written: %d", wc.Count())
			}
		}
	})

	w := csv.NewWriter(wc)
	assertNoError(w.Write([]string{"freq_hz", "time_s", "sync", "phase_rad"}))
	for fi, f := range resultFreqs(res) {
		for ti, t := range res.Times {
			assertNoError(w.Write([]string{
				strconv.FormatFloat(f, 'g', 6, 64),
				strconv.FormatFloat(t, 'g', 6, 64),
				strconv.FormatFloat(res.Sync.At(fi, ti), 'g', 6, 64),
				strconv.FormatFloat(res.Phase.At(fi, ti), 'g', 6, 64),
			}))
		}
	}
	w.Flush()
	assertNoError(w.Error())
	logger.Infof(ctx, "wrote %d bytes of CSV", wc.Count())
}

// resultFreqs flattens band edges into band centers so every spectral method
// emits one frequency column.
func resultFreqs(res *synchrony.Result) []float64 {
	if res.Bands == nil {
		return res.Freqs
	}
	centers := make([]float64, len(res.Bands))
	for i, b := range res.Bands {
		centers[i] = (b[0] + b[1]) / 2
	}
	return centers
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
