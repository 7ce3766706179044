// Package sizing chooses parity block parameters and validates that a chosen
// redundancy level is actually sufficient for the packing that was achieved.
package sizing

import (
	"fmt"
	"sort"

	errs "github.com/zzenonn/volpack/internal/errors"
)

const (
	// MaxDataBlocks is the soft budget for data blocks plus one index entry
	// per file. The external parity tool enforces its own hard cap of 32700
	// blocks; staying well under it leaves room for recovery blocks.
	MaxDataBlocks = 20000

	minBlockSize = 4096
	mib          = 1024 * 1024
)

// TotalBlocks returns the number of data blocks the parity tool will cut the
// given files into: per-file ceiling division by the block size.
func TotalBlocks(sizes []int64, blockSize int64) int {
	total := 0
	for _, size := range sizes {
		total += int((size + blockSize - 1) / blockSize)
	}
	return total
}

// SuggestBlockSize picks a parity block size for the given file sizes.
//
// When at least three quarters of the files share one size, that size (or a
// near-divisor of it for files over 1MiB) minimizes padding waste. Otherwise
// a quarter of the 20th-percentile size is used as a floor-bounded starting
// point, since small files consume the block budget disproportionately. The
// estimate is then doubled until the total block count fits the budget, and
// rounded up to a multiple of 4.
func SuggestBlockSize(sizes []int64) (int64, error) {
	if len(sizes) == 0 {
		return 0, errs.ErrNoInputFiles
	}

	sorted := append([]int64(nil), sizes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total int64
	for _, s := range sorted {
		total += s
	}
	largest := sorted[len(sorted)-1]

	var blockSize int64
	x := sorted[len(sorted)/4]
	if x > 0 && x == largest && total/x+int64(len(sorted)) < MaxDataBlocks {
		// At least 3/4 of the files are the same size.
		if x > mib {
			// Split each file into the smallest number of roughly-1MiB
			// blocks that still divides it without much padding.
			parts := (x + mib - 1) / mib
			blockSize = (x + parts - 1) / parts
		} else {
			blockSize = x
		}
	} else {
		blockSize = sorted[len(sorted)/5] / 4
		if blockSize < minBlockSize {
			blockSize = minBlockSize
		}
	}

	for TotalBlocks(sorted, blockSize)+len(sorted) > MaxDataBlocks {
		if blockSize >= largest {
			return 0, fmt.Errorf("%w: %d files need more than %d blocks even at block size %d",
				errs.ErrBlockBudget, len(sorted), MaxDataBlocks, blockSize)
		}
		blockSize *= 2
		if blockSize > largest {
			blockSize = largest
		}
	}

	if rem := blockSize % 4; rem != 0 {
		blockSize += 4 - rem
	}
	return blockSize, nil
}
