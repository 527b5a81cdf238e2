package spectral

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/neurosig-go/neurosig/pkg/tensor"
)

// Spectrum is a complex time-frequency(-taper) representation of a signal
// tensor. Data has the source tensor's time axis replaced, in place, by a
// (frequency, [taper,] time) block starting at FreqAxis.
type Spectrum struct {
	Data *tensor.Dense[complex128]

	// Freqs are the center frequencies in Hz (wavelet, multitaper).
	Freqs []float64
	// Bands are the (low, high) passband edges in Hz (band-filter only);
	// nil for the other methods.
	Bands [][2]float64
	// Times are the output timepoints in seconds: one per input sample for
	// wavelet/band-filter, window centers for multitaper.
	Times []float64

	// FreqAxis is the index of the frequency axis within Data.
	FreqAxis int
	// NTapers is the taper-axis length, or 0 when no taper axis is present.
	NTapers int
}

// NFreqs returns the number of frequency rows (bands for band-filter).
func (s *Spectrum) NFreqs() int {
	if s.Bands != nil {
		return len(s.Bands)
	}
	return len(s.Freqs)
}

// TaperAxis returns the taper-axis index in Data, or -1 when absent.
func (s *Spectrum) TaperAxis() int {
	if s.NTapers == 0 {
		return -1
	}
	return s.FreqAxis + 1
}

// TimeAxis returns the time-axis index in Data, or -1 for single-snapshot
// spectra (Times == nil), which carry no time axis at all.
func (s *Spectrum) TimeAxis() int {
	if s.Times == nil {
		return -1
	}
	if s.NTapers == 0 {
		return s.FreqAxis + 1
	}
	return s.FreqAxis + 2
}

// rowPlan is one spectral decomposition, precomputed for a fixed input row
// length so it can be applied to many rows in parallel.
type rowPlan interface {
	// blockShape returns the output dims replacing the time axis, in
	// (freq, [taper,] time) order.
	blockShape() []int
	// transformRow writes the decomposition of one time series into dst,
	// laid out row-major per blockShape. It must be safe for concurrent
	// use.
	transformRow(row []float64, dst []complex128)
	// describe fills the frequency/time metadata of the output spectrum.
	describe(s *Spectrum)
}

// Transform decomposes data along the given time axis (negative indices
// count from the end). The returned Spectrum's Data has that axis replaced by
// the method's (frequency, [taper,] time) block; all other axes are
// preserved. The input tensor is never modified.
func Transform(data *tensor.Dense[float64], smpRate float64, axis int, opts Options) (*Spectrum, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if smpRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: got %v", smpRate)
	}
	axis, err := tensor.NormAxis(axis, data.NumDims())
	if err != nil {
		return nil, err
	}
	nRaw := data.Dim(axis)
	if nRaw < 2 {
		return nil, fmt.Errorf("time axis %d too short for spectral analysis: %d samples", axis, nRaw)
	}

	var plan rowPlan
	switch opts.Method {
	case Wavelet:
		plan = newWaveletPlan(opts.Wavelet, smpRate, nRaw)
	case Multitaper:
		plan, err = newMultitaperPlan(opts.Multitaper, smpRate, nRaw)
	case BandFilter:
		plan, err = newBandFilterPlan(opts.BandFilter, smpRate, nRaw)
	}
	if err != nil {
		return nil, err
	}

	// Bring the time axis last so each series is one contiguous row.
	moved := data.MoveAxis(axis, data.NumDims()-1)
	rows := moved.Len() / nRaw

	block := plan.blockShape()
	blockLen := 1
	for _, b := range block {
		blockLen *= b
	}
	outData := make([]complex128, rows*blockLen)

	// Rows are independent; fan them out across the CPUs.
	workers := runtime.NumCPU()
	if workers > rows {
		workers = rows
	}
	var wg sync.WaitGroup
	rowCh := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range rowCh {
				row := moved.Data()[r*nRaw : (r+1)*nRaw]
				plan.transformRow(row, outData[r*blockLen:(r+1)*blockLen])
			}
		}()
	}
	for r := 0; r < rows; r++ {
		rowCh <- r
	}
	close(rowCh)
	wg.Wait()

	outShape := moved.Shape()
	outShape = append(outShape[:len(outShape)-1], block...)
	out := tensor.FromSlice(outData, outShape...)

	// Move the (freq, [taper,] time) block from the end back to the
	// original time-axis position, last block axis first so each ends up
	// in front of the previous one.
	for i := 0; i < len(block); i++ {
		out = out.MoveAxis(out.NumDims()-1, axis)
	}

	spec := &Spectrum{Data: out, FreqAxis: axis}
	plan.describe(spec)
	return spec, nil
}
