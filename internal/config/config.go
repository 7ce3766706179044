package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	LogLevel string `yaml:"log_level"`
	// Engine selects the parity backend: "par2" (external binary) or "rs"
	// (embedded Reed-Solomon).
	Engine string `yaml:"engine"`
	// Prefix names the volume directories: <prefix>1..N.
	Prefix string `yaml:"prefix"`
	TmpDir string `yaml:"tmp_dir"`
}

// LoadConfig loads configuration from config.yaml, environment variables, or CLI flags
// Priority: CLI flags > Environment variables > config.yaml > defaults
func LoadConfig(configPath string, rootCmd *cobra.Command) (*Config, error) {
	if err := setupViper(configPath, rootCmd); err != nil {
		return nil, err
	}

	return &Config{
		LogLevel: viper.GetString("log_level"),
		Engine:   viper.GetString("engine"),
		Prefix:   viper.GetString("prefix"),
		TmpDir:   viper.GetString("tmp_dir"),
	}, nil
}

// setupViper configures Viper with defaults, paths, and bindings
func setupViper(configPath string, rootCmd *cobra.Command) error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	setDefaults()
	viper.AutomaticEnv()

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("engine", "par2")
	viper.SetDefault("prefix", defaultPrefix())
	viper.SetDefault("tmp_dir", "")
}

// defaultPrefix names volumes after the current directory, matching the
// common case of preparing one directory of files in place.
func defaultPrefix() string {
	wd, err := os.Getwd()
	if err != nil {
		return "volume "
	}
	return filepath.Base(wd) + " "
}
