package main

import (
	"fmt"
	"math/big"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/zzenonn/volpack/internal/archive"
	"github.com/zzenonn/volpack/internal/checksum"
	"github.com/zzenonn/volpack/internal/domain"
	"github.com/zzenonn/volpack/internal/parity"
	"github.com/zzenonn/volpack/internal/service"
)

const (
	minBlockSizeFlag = 100
	maxBlockSizeFlag = 200 * 1024 * 1024
	minNumBlocksFlag = 2
	maxNumBlocksFlag = 32600
	maxMemoryFlag    = 1000 * 1000
)

var createFlags struct {
	inDir      string
	outDir     string
	tmpDir     string
	prefix     string
	redundancy string
	blockSize  int64
	numBlocks  int
	memory     int
	compress   bool
	encrypt    bool
	force      bool
	noVerify   bool
	quiet      bool
	engine     string
}

var createCmd = &cobra.Command{
	Use:   "create NUM_VOLUMES",
	Short: "Distribute the input files over volume directories with recovery data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		numVolumes, err := strconv.Atoi(args[0])
		if err != nil || numVolumes < 3 {
			return fmt.Errorf("NUM_VOLUMES must be an integer greater than or equal to 3, got %q", args[0])
		}

		redundancy, ok := new(big.Rat).SetString(createFlags.redundancy)
		if !ok || redundancy.Sign() <= 0 {
			return fmt.Errorf("--redundancy must be a decimal value greater than 0, got %q", createFlags.redundancy)
		}

		if err := validateCreateFlags(); err != nil {
			return err
		}

		password := ""
		if createFlags.encrypt {
			password, err = promptPassword()
			if err != nil {
				return err
			}
		}

		engine, err := parityEngine(createFlags.engine)
		if err != nil {
			return err
		}

		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		opts := service.Options{
			InDir:      orDefault(createFlags.inDir, cwd),
			OutDir:     orDefault(createFlags.outDir, cwd),
			TmpDir:     orDefault(createFlags.tmpDir, cfg.TmpDir),
			Prefix:     orDefault(createFlags.prefix, cfg.Prefix),
			NumVolumes: numVolumes,
			Redundancy: redundancy,
			BlockSize:  createFlags.blockSize,
			NumBlocks:  createFlags.numBlocks,
			MemoryMB:   createFlags.memory,
			Compress:   createFlags.compress || createFlags.encrypt,
			Password:   password,
			Force:      createFlags.force,
			NoVerify:   createFlags.noVerify,
			Quiet:      createFlags.quiet,
		}

		assembler := service.NewAssembler(archive.NewSevenZip(opts.TmpDir), engine, checksum.NewMD5Writer())
		layout, err := assembler.Run(cmd.Context(), opts)
		if err != nil {
			return err
		}

		printReport(layout, redundancy, createFlags.redundancy, numVolumes)
		return nil
	},
}

func validateCreateFlags() error {
	if createFlags.blockSize != 0 && (createFlags.blockSize < minBlockSizeFlag || createFlags.blockSize > maxBlockSizeFlag) {
		return fmt.Errorf("--block-size must be in range [%d,%d]", minBlockSizeFlag, maxBlockSizeFlag)
	}
	if createFlags.numBlocks != 0 && (createFlags.numBlocks < minNumBlocksFlag || createFlags.numBlocks > maxNumBlocksFlag) {
		return fmt.Errorf("--num-blocks must be in range [%d,%d]", minNumBlocksFlag, maxNumBlocksFlag)
	}
	if createFlags.blockSize != 0 && createFlags.numBlocks != 0 {
		return fmt.Errorf("can't set both block size and number of blocks")
	}
	if createFlags.memory != 0 && (createFlags.memory < 1 || createFlags.memory > maxMemoryFlag) {
		return fmt.Errorf("--memory must be in range [1,%d] megabytes", maxMemoryFlag)
	}
	return nil
}

// parityEngine resolves the backend name, falling back to the configured
// default when the flag is unset.
func parityEngine(name string) (parity.Engine, error) {
	if name == "" {
		name = cfg.Engine
	}
	switch name {
	case "par2":
		return parity.NewPar2(), nil
	case "rs":
		return parity.NewReedSolomon(), nil
	default:
		return nil, fmt.Errorf("unknown parity engine %q (want par2 or rs)", name)
	}
}

func printReport(layout *domain.VolumeLayout, redundancy *big.Rat, redundancyLabel string, numVolumes int) {
	fmt.Println()
	fmt.Println("Success, everything done.")
	fmt.Println()
	fmt.Println("Volume sizes:")
	for _, line := range service.BarChart(layout.VolumeSizes, 60) {
		fmt.Println(line)
	}

	var total, parityTotal int64
	for i := range layout.VolumeSizes {
		total += layout.VolumeSizes[i]
		parityTotal += layout.ParitySizes[i]
	}
	if total > 0 {
		actual := 100 * float64(parityTotal) / float64(total)
		redF, _ := redundancy.Float64()
		ideal := 100 * redF / float64(numVolumes)
		fmt.Println()
		fmt.Printf("Recovery files are %.1f%% of the output (ideal for a redundancy of %s volumes out of %d would be %.1f%%)\n",
			actual, redundancyLabel, numVolumes, ideal)
	}
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func init() {
	createCmd.Flags().StringVarP(&createFlags.inDir, "indir", "i", "", "Process the files in this directory (default: current directory)")
	createCmd.Flags().StringVarP(&createFlags.outDir, "outdir", "o", "", "Create the volume directories in this directory (default: current directory)")
	createCmd.Flags().StringVarP(&createFlags.tmpDir, "tmpdir", "t", "", "Temporary directory to use (default: output directory)")
	createCmd.Flags().StringVarP(&createFlags.prefix, "prefix", "p", "", "Volume directory name prefix followed by a number (default: current directory name)")
	createCmd.Flags().StringVarP(&createFlags.redundancy, "redundancy", "r", "1.1", "Number of volumes to use for redundancy")
	createCmd.Flags().Int64Var(&createFlags.blockSize, "block-size", 0, "Parity block size (default: heuristically chosen)")
	createCmd.Flags().IntVar(&createFlags.numBlocks, "num-blocks", 0, "Number of parity blocks to use (default: heuristically chosen)")
	createCmd.Flags().IntVar(&createFlags.memory, "memory", 0, "Megabytes of memory the parity tool may use (default: tool decides)")
	createCmd.Flags().BoolVarP(&createFlags.compress, "compress", "c", false, "Compress each file")
	createCmd.Flags().BoolVarP(&createFlags.encrypt, "encrypt", "e", false, "Encrypt each file (implies compression); prompts for a password")
	createCmd.Flags().BoolVarP(&createFlags.force, "force", "f", false, "Force creation even if the input files are not suitable for the requested volume count")
	createCmd.Flags().BoolVar(&createFlags.noVerify, "no-verify", false, "Skip verifying that a missing volume does not lead to data loss")
	createCmd.Flags().BoolVarP(&createFlags.quiet, "quiet", "q", false, "Suppress progress bars")
	createCmd.Flags().StringVar(&createFlags.engine, "engine", "", "Parity engine: par2 or rs (default: configured engine)")
	rootCmd.AddCommand(createCmd)
}
