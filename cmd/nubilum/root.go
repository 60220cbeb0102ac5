package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nubilum/nubilum/internal/config"
	"github.com/nubilum/nubilum/internal/logging"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nubilum",
	Short: "Push notifications over plain TCP with JSON envelopes",
	Long: `Nubilum delivers push envelopes over TCP.

Every envelope is a JSON object with id, header, importance, content,
timestamp and notify members. The server acknowledges each envelope and
keeps a history that the admin API serves.

Quick start:
  nubilum serve                  # Start the server
  nubilum send "hello"           # Send one message
  nubilum mobile                 # Interactive sender`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "nubilum.yaml", "config file path")
}

// loadConfig reads the config file, or NUBILUM_* variables when it is missing.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	return logging.New(cfg.Logging, w)
}

// openInput returns the named file, or in when the name is empty or "-".
func openInput(args []string, in io.Reader) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(in), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}
