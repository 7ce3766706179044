package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zzenonn/volpack/internal/config"
	"github.com/zzenonn/volpack/internal/logging"
)

var (
	cfg     *config.Config
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "volpack",
	Short: "Prepare a directory of files for a set of redundant backup volumes",
	Long: "volpack prepares all files in a directory to be written to a set of backup " +
		"volumes (e.g. optical discs). Each file is optionally compressed and encrypted, " +
		"and recovery data is created so that the files can be restored even if one of " +
		"the volumes is lost, suffers I/O errors, or is silently corrupted. One folder " +
		"is created per volume, each holding approximately the same amount of data.",
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a config.yaml")
}

func initConfig() {
	var err error
	cfg, err = config.LoadConfig(cfgFile, rootCmd)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logging.InitLogger(cfg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
