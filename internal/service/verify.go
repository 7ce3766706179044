package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	errs "github.com/zzenonn/volpack/internal/errors"
	"github.com/zzenonn/volpack/internal/parity"
)

// VerifySweep checks that every single volume is expendable: for each volume
// index, a scratch directory is filled with symlinks to the files of every
// OTHER volume and the parity engine verifies it. Any volume whose absence
// makes files unrecoverable fails the sweep.
func (a *Assembler) VerifySweep(ctx context.Context, outDir, prefix string, numVolumes int, metadataName string) error {
	dirs := VolumeDirs(outDir, prefix, numVolumes)
	for i := range dirs {
		if err := a.verifyWithoutVolume(ctx, outDir, dirs, i, metadataName); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assembler) verifyWithoutVolume(ctx context.Context, outDir string, dirs []string, skip int, metadataName string) error {
	log.Infof("verifying restorability without volume %d", skip+1)

	scratch, err := os.MkdirTemp(outDir, fmt.Sprintf("verify_%d_", skip+1))
	if err != nil {
		return fmt.Errorf("creating verification directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	for i, dir := range dirs {
		if i == skip {
			continue
		}
		if err := linkDirContents(dir, scratch); err != nil {
			return err
		}
	}

	result, err := a.engine.Verify(ctx, scratch, metadataName)
	if err != nil {
		return err
	}
	switch result {
	case parity.VerifyOKNoRepair:
		log.Infof("no recovery needed at all if volume %d fails", skip+1)
	case parity.VerifyOKRepairable:
		log.Infof("all files are recoverable if volume %d fails", skip+1)
	default:
		return fmt.Errorf("volume %d: %w", skip+1, errs.ErrVerifyFailed)
	}
	return nil
}

// linkDirContents symlinks every file of src into dst, skipping names that
// are already linked (the shared metadata file exists on every volume).
func linkDirContents(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		target := filepath.Join(dst, entry.Name())
		if _, err := os.Lstat(target); err == nil {
			continue
		}
		if err := os.Symlink(filepath.Join(src, entry.Name()), target); err != nil {
			return fmt.Errorf("linking %s: %w", entry.Name(), err)
		}
	}
	return nil
}
