package synchrony

import (
	"fmt"

	"github.com/neurosig-go/neurosig/pkg/tensor"
)

// canonical is a spectral tensor brought into the engine's fixed layout:
// (trial, frequency, time, taper, free), row-major, with all free axes
// flattened into one trailing dimension. Absent time/taper axes become
// singletons. Free axes keep their original relative order, which is what
// lets restore() rebuild the caller's layout without bookkeeping.
type canonical struct {
	data                                []complex128
	nTrial, nFreq, nTime, nTaper, nFree int
	freeShape                           []int
	hasTime                             bool
}

func (c *canonical) sameGrid(other *canonical) bool {
	return c.nTrial == other.nTrial && c.nFreq == other.nFreq &&
		c.nTime == other.nTime && c.nTaper == other.nTaper && c.nFree == other.nFree
}

// at indexes the canonical layout.
func (c *canonical) at(trial, freq, time, taper, free int) complex128 {
	return c.data[(((trial*c.nFreq+freq)*c.nTime+time)*c.nTaper+taper)*c.nFree+free]
}

// canonicalizeSpectrum maps a spectral tensor with the given semantic axis
// indices (taper and time may be -1 when absent) onto the canonical layout.
// Axis indices must already be normalized to non-negative values.
func canonicalizeSpectrum(d *tensor.Dense[complex128], trialAxis, freqAxis, timeAxis, taperAxis int) (*canonical, error) {
	rank := d.NumDims()
	roles := map[string]int{"trial": trialAxis, "frequency": freqAxis}
	if timeAxis >= 0 {
		roles["time"] = timeAxis
	}
	if taperAxis >= 0 {
		roles["taper"] = taperAxis
	}
	used := make(map[int]string, len(roles))
	for name, ax := range roles {
		if ax >= rank {
			return nil, fmt.Errorf("%w: %s axis %d out of range for rank %d", ErrConfig, name, ax, rank)
		}
		if prev, dup := used[ax]; dup {
			return nil, fmt.Errorf("%w: axis %d assigned to both %s and %s", ErrConfig, ax, prev, name)
		}
		used[ax] = name
	}

	perm := []int{trialAxis, freqAxis}
	if timeAxis >= 0 {
		perm = append(perm, timeAxis)
	}
	if taperAxis >= 0 {
		perm = append(perm, taperAxis)
	}
	var freeShape []int
	for ax := 0; ax < rank; ax++ {
		if _, taken := used[ax]; !taken {
			perm = append(perm, ax)
			freeShape = append(freeShape, d.Dim(ax))
		}
	}

	t := d.Transpose(perm...)
	c := &canonical{
		data:      t.Data(),
		nTrial:    d.Dim(trialAxis),
		nFreq:     d.Dim(freqAxis),
		nTime:     1,
		nTaper:    1,
		nFree:     1,
		freeShape: freeShape,
		hasTime:   timeAxis >= 0,
	}
	if timeAxis >= 0 {
		c.nTime = d.Dim(timeAxis)
	}
	if taperAxis >= 0 {
		c.nTaper = d.Dim(taperAxis)
	}
	for _, f := range freeShape {
		c.nFree *= f
	}
	return c, nil
}

// restore is the canonicalizer's inverse for engine output: the trial (and
// taper) axes are collapsed, so a real-valued result laid out as
// (frequency, time, free) maps back to the caller's free-axis order with
// frequency at position 0 and time at position 1.
func (c *canonical) restore(vals []float64) *tensor.Dense[float64] {
	shape := []int{c.nFreq}
	if c.hasTime {
		shape = append(shape, c.nTime)
	}
	shape = append(shape, c.freeShape...)
	return tensor.FromSlice(vals, shape...)
}

// spikeGrid is a raw spike train brought into (trial, time, free) layout
// with free axes flattened.
type spikeGrid struct {
	data                 []float64
	nTrial, nTime, nFree int
	freeShape            []int
}

func canonicalizeSpikes(d *tensor.Dense[float64], trialAxis, timeAxis int) (*spikeGrid, error) {
	rank := d.NumDims()
	if trialAxis == timeAxis {
		return nil, fmt.Errorf("%w: axis %d assigned to both trial and time", ErrConfig, trialAxis)
	}
	perm := []int{trialAxis, timeAxis}
	var freeShape []int
	for ax := 0; ax < rank; ax++ {
		if ax != trialAxis && ax != timeAxis {
			perm = append(perm, ax)
			freeShape = append(freeShape, d.Dim(ax))
		}
	}
	t := d.Transpose(perm...)
	g := &spikeGrid{
		data:      t.Data(),
		nTrial:    d.Dim(trialAxis),
		nTime:     d.Dim(timeAxis),
		nFree:     1,
		freeShape: freeShape,
	}
	for _, f := range freeShape {
		g.nFree *= f
	}
	return g, nil
}

func (g *spikeGrid) at(trial, time, free int) float64 {
	return g.data[(trial*g.nTime+time)*g.nFree+free]
}
