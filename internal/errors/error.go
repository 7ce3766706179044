package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNoInputFiles       = errors.New("no input files")
	ErrNoBins             = errors.New("number of bins must be at least 1")
	ErrBadBinFraction     = errors.New("last bin fraction must be in (0,1]")
	ErrRedundancyTooHigh  = errors.New("can't dedicate that many volumes to redundancy, at least one must contain the actual data")
	ErrBlockParamConflict = errors.New("can't set both block size and number of blocks")
	ErrBlockBudget        = errors.New("cannot keep the block count under budget; use fewer or larger files, or set --block-size explicitly")
	ErrRecoveryBlockRange = errors.New("recovery block count out of range")
	ErrUnevenVolumes      = errors.New("input file sizes are too uneven to guarantee recovery of a lost volume; increase --redundancy, split large files, or pass --force to continue anyway")
	ErrVerifyFailed       = errors.New("not all files are recoverable if a volume fails; this usually means the redundancy is too low or the files are few and of vastly different sizes (a workaround is to split large files)")
	ErrEmptyPassword      = errors.New("can't have an empty password; run without --encrypt to skip encryption")
	ErrPasswordMismatch   = errors.New("passwords don't match")
)

// TooManyFilesError generates a formatted error when the input directory holds more files than one run can protect.
func TooManyFilesError(count, max int) error {
	return fmt.Errorf("can't process %d files at once, split them into directories of no more than %d files each", count, max)
}

// TooFewFilesError is returned when the inputs cannot be spread over the requested volumes.
func TooFewFilesError(count, numVolumes int) error {
	return fmt.Errorf("not enough input files (%d) to spread out over %d volumes; consider archiving them into fixed-size parts first, or pass --force", count, numVolumes)
}

func ParityFilesPresentError(name string) error {
	return fmt.Errorf("input directory already contains parity file %q; delete the old parity set and start over, or pass --force", name)
}

func ToolFailedError(tool string, err error) error {
	return fmt.Errorf("%s failed: %w", tool, err)
}
