// Package service orchestrates a full volume-preparation run: discovery,
// feasibility validation, staging, parity creation, distribution across
// volume directories, checksumming and the cross-volume verification sweep.
package service

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/volpack/internal/archive"
	"github.com/zzenonn/volpack/internal/checksum"
	"github.com/zzenonn/volpack/internal/discovery"
	"github.com/zzenonn/volpack/internal/domain"
	errs "github.com/zzenonn/volpack/internal/errors"
	"github.com/zzenonn/volpack/internal/packing"
	"github.com/zzenonn/volpack/internal/parity"
	"github.com/zzenonn/volpack/internal/sizing"
)

// MaxInputFiles bounds one run; larger sets must be split into multiple
// directories so the parity block budget stays workable.
const MaxInputFiles = 6000

// Options configures one assembly run.
type Options struct {
	InDir      string
	OutDir     string
	TmpDir     string // parent for the scratch directory; defaults to OutDir
	Prefix     string // volume directory name prefix
	NumVolumes int
	Redundancy *big.Rat // volumes' worth of parity, e.g. 1.1
	BlockSize  int64    // explicit parity block size; 0 = heuristic
	NumBlocks  int      // explicit parity block count; 0 = use BlockSize
	MemoryMB   int      // parity tool memory limit; 0 = tool default
	Compress   bool
	Password   string // non-empty enables encryption (CLI sets Compress too)
	Force      bool   // bypass feasibility checks
	NoVerify   bool   // skip the verification sweep
	Quiet      bool   // suppress progress bars
}

// Assembler drives the external collaborators. All stages run strictly
// sequentially; each external invocation blocks until the tool exits.
type Assembler struct {
	archiver  archive.Archiver
	engine    parity.Engine
	checksums checksum.Writer
	ignore    []*regexp.Regexp
}

func NewAssembler(archiver archive.Archiver, engine parity.Engine, checksums checksum.Writer) *Assembler {
	return &Assembler{
		archiver:  archiver,
		engine:    engine,
		checksums: checksums,
		ignore:    discovery.DefaultIgnorePatterns,
	}
}

// Run executes the whole pipeline and returns the resulting layout.
func (a *Assembler) Run(ctx context.Context, opts Options) (*domain.VolumeLayout, error) {
	files, err := a.validate(opts)
	if err != nil {
		return nil, err
	}

	metadataName := a.engine.MetadataName(MetadataBase(opts.Prefix))

	tmpParent := opts.TmpDir
	if tmpParent == "" {
		tmpParent = opts.OutDir
	}
	if err := os.MkdirAll(tmpParent, 0o755); err != nil {
		return nil, fmt.Errorf("creating temporary directory parent: %w", err)
	}
	tmpDir, err := os.MkdirTemp(tmpParent, strings.TrimSpace(opts.Prefix)+"_*_tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temporary directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	start := time.Now()

	if err := a.stage(ctx, files, tmpDir, opts); err != nil {
		return nil, err
	}
	stagedAt := time.Now()

	if err := a.createParity(ctx, tmpDir, metadataName, opts); err != nil {
		return nil, err
	}
	parityAt := time.Now()

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	layout, err := a.moveToVolumes(tmpDir, metadataName, opts)
	if err != nil {
		return nil, err
	}

	for _, dir := range layout.Dirs {
		if err := a.checksums.WriteListing(dir); err != nil {
			return nil, fmt.Errorf("writing checksums for %s: %w", dir, err)
		}
	}
	checksumAt := time.Now()

	if !opts.NoVerify {
		if err := a.VerifySweep(ctx, opts.OutDir, opts.Prefix, opts.NumVolumes, metadataName); err != nil {
			return nil, err
		}
	}
	verifiedAt := time.Now()

	if err := collectSizes(layout, a.engine); err != nil {
		return nil, err
	}

	stageLabel := "initial file copy"
	if opts.Compress {
		stageLabel = "compression"
	}
	log.Infof("%s: %.1fs, parity creation: %.1fs, checksums: %.1fs, verification: %.1fs",
		stageLabel,
		stagedAt.Sub(start).Seconds(),
		parityAt.Sub(stagedAt).Seconds(),
		checksumAt.Sub(parityAt).Seconds(),
		verifiedAt.Sub(checksumAt).Seconds())

	return layout, nil
}

// validate runs every pre-flight check that must pass before any external
// process is started, including the packing feasibility check. It returns
// the input files.
func (a *Assembler) validate(opts Options) ([]string, error) {
	if opts.NumVolumes < 3 {
		return nil, fmt.Errorf("number of volumes must be at least 3, got %d", opts.NumVolumes)
	}
	if opts.Redundancy == nil || opts.Redundancy.Sign() <= 0 {
		return nil, fmt.Errorf("redundancy must be greater than 0")
	}
	if opts.Redundancy.Cmp(big.NewRat(int64(opts.NumVolumes-1), 1)) > 0 {
		return nil, errs.ErrRedundancyTooHigh
	}
	if opts.BlockSize > 0 && opts.NumBlocks > 0 {
		return nil, errs.ErrBlockParamConflict
	}

	files, err := discovery.ListFiles(opts.InDir, a.ignore)
	if err != nil {
		return nil, fmt.Errorf("listing input files: %w", err)
	}
	if len(files) == 0 {
		return nil, errs.ErrNoInputFiles
	}
	if len(files) > MaxInputFiles {
		return nil, errs.TooManyFilesError(len(files), MaxInputFiles)
	}

	dataCapacity := new(big.Rat).Sub(big.NewRat(int64(opts.NumVolumes), 1), opts.Redundancy)
	if !opts.Force && big.NewRat(int64(len(files)), 1).Cmp(dataCapacity) < 0 {
		return nil, errs.TooFewFilesError(len(files), opts.NumVolumes)
	}

	for _, file := range files {
		if a.engine.IsParityFile(filepath.Base(file)) && !opts.Force {
			return nil, errs.ParityFilesPresentError(filepath.Base(file))
		}
	}

	sizes, err := discovery.Sizes(files)
	if err != nil {
		return nil, err
	}

	wholeVolumes, lastBinFraction := sizing.SplitRedundancy(opts.Redundancy)
	result, err := packing.Distribute(sizes, opts.NumVolumes-wholeVolumes, lastBinFraction)
	if err != nil {
		return nil, err
	}
	if !opts.Force {
		if err := sizing.CheckEvenness(result.BinSizes, lastBinFraction, opts.NumVolumes); err != nil {
			return nil, err
		}
	}

	return files, nil
}

// stage materializes every input file into the scratch directory, either as
// a 7z archive or as a plain copy.
func (a *Assembler) stage(ctx context.Context, files []string, tmpDir string, opts Options) error {
	for i, file := range files {
		name := filepath.Base(file)
		log.Infof("staging file %d of %d: %s", i+1, len(files), name)

		if opts.Compress {
			out := filepath.Join(tmpDir, name+archive.Suffix)
			if err := a.archiver.Compress(ctx, file, out, opts.Password); err != nil {
				return fmt.Errorf("compressing %s: %w", name, err)
			}
		} else {
			if err := archive.Copy(file, filepath.Join(tmpDir, name), opts.Quiet); err != nil {
				return fmt.Errorf("copying %s: %w", name, err)
			}
		}
	}
	return nil
}

// createParity derives the block geometry for the staged files and drives
// the parity engine over the scratch directory.
func (a *Assembler) createParity(ctx context.Context, tmpDir, metadataName string, opts Options) error {
	staged, err := discovery.ListFiles(tmpDir, nil)
	if err != nil {
		return err
	}
	stagedSizes, err := discovery.Sizes(staged)
	if err != nil {
		return err
	}
	sizes := make([]int64, 0, len(stagedSizes))
	for _, size := range stagedSizes {
		sizes = append(sizes, size)
	}

	blockSize := opts.BlockSize
	if blockSize == 0 && opts.NumBlocks == 0 {
		blockSize, err = sizing.SuggestBlockSize(sizes)
		if err != nil {
			return err
		}
		log.Infof("using block size %d", blockSize)
	}

	dataBlocks := opts.NumBlocks
	if blockSize > 0 {
		dataBlocks = sizing.TotalBlocks(sizes, blockSize)
	}

	redundancyFraction := new(big.Rat).Quo(opts.Redundancy, big.NewRat(int64(opts.NumVolumes), 1))
	recoveryBlocks, err := sizing.RecoveryBlockCount(dataBlocks, redundancyFraction)
	if err != nil {
		return err
	}
	log.Infof("creating %d recovery blocks over %d data blocks", recoveryBlocks, dataBlocks)

	return a.engine.Create(ctx, tmpDir, parity.CreateParams{
		MetadataName:   metadataName,
		BlockSize:      blockSize,
		NumBlocks:      opts.NumBlocks,
		RecoveryBlocks: recoveryBlocks,
		MemoryMB:       opts.MemoryMB,
	})
}

// moveToVolumes distributes the staged files (data and recovery parts alike)
// across the volume directories and places a copy of the shared parity
// metadata file in every one of them.
func (a *Assembler) moveToVolumes(tmpDir, metadataName string, opts Options) (*domain.VolumeLayout, error) {
	staged, err := discovery.ListFiles(tmpDir, nil)
	if err != nil {
		return nil, err
	}

	metadataPath := filepath.Join(tmpDir, metadataName)
	movable := staged[:0]
	for _, file := range staged {
		if filepath.Base(file) != metadataName {
			movable = append(movable, file)
		}
	}

	sizes, err := discovery.Sizes(movable)
	if err != nil {
		return nil, err
	}
	result, err := packing.Distribute(sizes, opts.NumVolumes, 1)
	if err != nil {
		return nil, err
	}

	dirs := VolumeDirs(opts.OutDir, opts.Prefix, opts.NumVolumes)
	layout := &domain.VolumeLayout{Dirs: dirs, MetadataFile: metadataName}

	moved := 0
	for i, bin := range result.Bins {
		if err := os.Mkdir(dirs[i], 0o755); err != nil {
			return nil, fmt.Errorf("creating volume directory: %w", err)
		}
		if err := archive.Copy(metadataPath, filepath.Join(dirs[i], metadataName), true); err != nil {
			return nil, fmt.Errorf("copying parity metadata to %s: %w", dirs[i], err)
		}
		for _, file := range bin {
			moved++
			log.Infof("moving file %d of %d", moved, len(movable))
			if err := archive.Move(file, filepath.Join(dirs[i], filepath.Base(file))); err != nil {
				return nil, fmt.Errorf("moving %s: %w", filepath.Base(file), err)
			}
		}
	}

	return layout, nil
}

// MetadataBase derives the base name of the parity metadata file from the
// volume prefix.
func MetadataBase(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "_")
}

// VolumeDirs returns the absolute volume directory paths <prefix>1..N.
func VolumeDirs(outDir, prefix string, numVolumes int) []string {
	dirs := make([]string, numVolumes)
	for i := range dirs {
		dir := filepath.Join(outDir, fmt.Sprintf("%s%d", prefix, i+1))
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		dirs[i] = dir
	}
	return dirs
}
