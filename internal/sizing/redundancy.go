package sizing

import (
	"fmt"
	"math/big"

	errs "github.com/zzenonn/volpack/internal/errors"
)

// MaxRecoveryBlocks bounds the recovery block count accepted by the parity
// tool.
const MaxRecoveryBlocks = 20000

// unevennessMargin is subtracted from the volume count when testing the
// max/average bin-size ratio.
const unevennessMargin = 0.05

// RecoveryBlockCount returns the number of recovery blocks that makes the
// fraction of all blocks that are recovery blocks equal to fraction:
// ceil(dataBlocks * f / (1 - f)).
func RecoveryBlockCount(dataBlocks int, fraction *big.Rat) (int, error) {
	one := big.NewRat(1, 1)
	if fraction.Sign() <= 0 || fraction.Cmp(one) >= 0 {
		return 0, fmt.Errorf("%w: redundancy fraction %s must be in (0,1)", errs.ErrRecoveryBlockRange, fraction.RatString())
	}

	r := new(big.Rat).Mul(big.NewRat(int64(dataBlocks), 1), fraction)
	r.Quo(r, new(big.Rat).Sub(one, fraction))

	count := ceilRat(r)
	if count <= 0 || count >= MaxRecoveryBlocks {
		return 0, fmt.Errorf("%w: %d not in (0,%d)", errs.ErrRecoveryBlockRange, count, MaxRecoveryBlocks)
	}
	return count, nil
}

// SplitRedundancy decomposes a redundancy budget into the number of whole
// volumes it consumes and the capacity fraction for the bin holding the
// remainder. An integer budget yields fraction 1 (no fractional bin).
func SplitRedundancy(redundancy *big.Rat) (whole int, lastBinFraction float64) {
	w := new(big.Int).Quo(redundancy.Num(), redundancy.Denom())
	frac := new(big.Rat).Sub(redundancy, new(big.Rat).SetInt(w))
	if frac.Sign() == 0 {
		return int(w.Int64()), 1
	}
	f, _ := frac.Float64()
	return int(w.Int64()), f
}

// CheckEvenness verifies that a packing is balanced enough for the declared
// redundancy to guarantee recovery of any single lost volume. The last bin's
// size is projected back onto the full-capacity scale before comparing the
// largest bin against the average.
func CheckEvenness(binSizes []int64, lastBinFraction float64, numVolumes int) error {
	if len(binSizes) == 0 {
		return nil
	}

	adjusted := make([]float64, len(binSizes))
	for i, s := range binSizes {
		adjusted[i] = float64(s)
	}
	adjusted[len(adjusted)-1] /= lastBinFraction

	var sum, max float64
	for _, s := range adjusted {
		sum += s
		if s > max {
			max = s
		}
	}
	if sum == 0 {
		return nil
	}

	unevenness := max / (sum / float64(len(adjusted)))
	if unevenness > float64(numVolumes)-unevennessMargin {
		return fmt.Errorf("%w (unevenness %.2f)", errs.ErrUnevenVolumes, unevenness)
	}
	return nil
}

func ceilRat(r *big.Rat) int {
	q, m := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	if m.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return int(q.Int64())
}
