// Package parity produces and verifies the recovery data that lets a lost
// or corrupted backup volume be reconstructed from the remaining ones.
//
// Two engines implement the same contract: Par2 shells out to the external
// par2 binary (the default), and ReedSolomon encodes recovery blocks
// in-process. Both cut the staged files into fixed-size blocks and emit a
// set of recovery files plus one shared metadata file that is copied onto
// every volume.
package parity

import (
	"context"
	"fmt"

	errs "github.com/zzenonn/volpack/internal/errors"
)

// VerifyResult is the tri-state outcome of a verification pass.
type VerifyResult int

const (
	// VerifyFailed means at least one file cannot be reconstructed.
	VerifyFailed VerifyResult = iota
	// VerifyOKNoRepair means every file is present and intact.
	VerifyOKNoRepair
	// VerifyOKRepairable means damage was found but the recovery blocks
	// suffice to repair it.
	VerifyOKRepairable
)

func (r VerifyResult) String() string {
	switch r {
	case VerifyOKNoRepair:
		return "ok, no recovery needed"
	case VerifyOKRepairable:
		return "ok, all files recoverable"
	default:
		return "failed, not all files recoverable"
	}
}

// CreateParams carries the block geometry for one recovery set. Exactly one
// of BlockSize and NumBlocks may be non-zero.
type CreateParams struct {
	MetadataName   string
	BlockSize      int64
	NumBlocks      int
	RecoveryBlocks int
	MemoryMB       int
}

func (p CreateParams) validate() error {
	if p.BlockSize > 0 && p.NumBlocks > 0 {
		return errs.ErrBlockParamConflict
	}
	if p.RecoveryBlocks <= 0 || p.RecoveryBlocks >= 20000 {
		return fmt.Errorf("%w: %d", errs.ErrRecoveryBlockRange, p.RecoveryBlocks)
	}
	return nil
}

// Engine creates and verifies recovery data over a directory of files.
type Engine interface {
	// MetadataName returns the name of the shared metadata file for a
	// recovery set with the given base name.
	MetadataName(base string) string

	// IsParityFile reports whether a file name belongs to the recovery set
	// rather than to the protected data.
	IsParityFile(name string) bool

	// Create generates recovery files for every file in dir.
	Create(ctx context.Context, dir string, p CreateParams) error

	// Verify checks dir against the named metadata file.
	Verify(ctx context.Context, dir, metadataName string) (VerifyResult, error)
}
