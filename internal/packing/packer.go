// Package packing implements the greedy volume-balancing algorithm that
// assigns input files to backup volumes.
//
// Files are placed largest-first. For every candidate bin the packer computes
// the "overshoot": how far past the current high-water mark the bin would
// grow if the file landed there. The file goes to the bin with the smallest
// overshoot. The last bin may be given a fractional capacity relative to the
// other bins, which is how the non-integer part of a redundancy budget is
// expressed (e.g. redundancy 1.1 leaves a bin worth 0.1 volumes).
package packing

import (
	"math"
	"sort"

	errs "github.com/zzenonn/volpack/internal/errors"
)

type item struct {
	path string
	size int64
}

// Result holds one packing run: exactly len(Bins) bins, every input file in
// exactly one bin, and sum(BinSizes) equal to the sum of the input sizes.
type Result struct {
	Bins     [][]string
	BinSizes []int64
}

// Distribute spreads files across numBins bins of approximately equal total
// size. lastBinFraction in (0,1] scales the capacity of the final bin
// relative to the others; pass 1 for uniform bins.
//
// The placement is deterministic: files are processed in descending size
// order, equal sizes ordered by path, and overshoot ties resolve to the
// lowest bin index.
func Distribute(sizes map[string]int64, numBins int, lastBinFraction float64) (*Result, error) {
	if numBins < 1 {
		return nil, errs.ErrNoBins
	}
	if lastBinFraction <= 0 || lastBinFraction > 1 {
		return nil, errs.ErrBadBinFraction
	}

	items := make([]item, 0, len(sizes))
	for path, size := range sizes {
		items = append(items, item{path: path, size: size})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].size != items[j].size {
			return items[i].size < items[j].size
		}
		return items[i].path < items[j].path
	})

	bins := make([][]string, numBins)
	for i := range bins {
		bins[i] = []string{}
	}
	binSizes := make([]int64, numBins)
	last := numBins - 1

	for i := len(items) - 1; i >= 0; i-- {
		it := items[i]

		adjustedLast := float64(binSizes[last]) / lastBinFraction
		maxBinSize := adjustedLast
		for _, s := range binSizes[:last] {
			if float64(s) > maxBinSize {
				maxBinSize = float64(s)
			}
		}

		// All bins empty: every placement reports the same overshoot, so
		// the tie-break sends the file to bin 0.
		target := 0
		if maxBinSize > 0 {
			best := math.Inf(1)
			for b := 0; b < last; b++ {
				overshoot := float64(it.size) - (maxBinSize - float64(binSizes[b]))
				if overshoot < best {
					best = overshoot
					target = b
				}
			}
			if lastBinOvershoot(it.size, maxBinSize, binSizes[last], lastBinFraction) < best {
				target = last
			}
		}

		bins[target] = append(bins[target], it.path)
		binSizes[target] += it.size
	}

	return &Result{Bins: bins, BinSizes: binSizes}, nil
}

// lastBinOvershoot evaluates a placement into the fractional-capacity bin.
// While the bin stays under its scaled share of the high-water mark the raw
// (negative) overshoot is returned. Once it would overshoot, the excess is
// divided by the fraction to put it on the same comparative scale as the
// full-capacity bins: a unit of real overshoot costs proportionally more in
// a smaller bin.
func lastBinOvershoot(size int64, maxBinSize float64, lastBinSize int64, fraction float64) float64 {
	spaceLeft := maxBinSize*fraction - float64(lastBinSize)
	overshoot := float64(size) - spaceLeft
	if overshoot < 0 {
		return overshoot
	}
	return overshoot / fraction
}
