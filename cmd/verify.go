package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/zzenonn/volpack/internal/checksum"
	"github.com/zzenonn/volpack/internal/service"
)

var verifyFlags struct {
	outDir string
	prefix string
	engine string
}

var verifyCmd = &cobra.Command{
	Use:   "verify NUM_VOLUMES",
	Short: "Re-check that an existing volume set survives the loss of any one volume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		numVolumes, err := strconv.Atoi(args[0])
		if err != nil || numVolumes < 3 {
			return fmt.Errorf("NUM_VOLUMES must be an integer greater than or equal to 3, got %q", args[0])
		}

		engine, err := parityEngine(verifyFlags.engine)
		if err != nil {
			return err
		}

		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		outDir := orDefault(verifyFlags.outDir, cwd)
		prefix := orDefault(verifyFlags.prefix, cfg.Prefix)

		assembler := service.NewAssembler(nil, engine, checksum.NewMD5Writer())
		metadataName := engine.MetadataName(service.MetadataBase(prefix))
		return assembler.VerifySweep(cmd.Context(), outDir, prefix, numVolumes, metadataName)
	},
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyFlags.outDir, "outdir", "o", "", "Directory containing the volume directories (default: current directory)")
	verifyCmd.Flags().StringVarP(&verifyFlags.prefix, "prefix", "p", "", "Volume directory name prefix (default: current directory name)")
	verifyCmd.Flags().StringVar(&verifyFlags.engine, "engine", "", "Parity engine: par2 or rs (default: configured engine)")
	rootCmd.AddCommand(verifyCmd)
}
