// Package cmd implements the claude-gateway CLI.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	// AppName is the binary name used in help output and user paths.
	AppName = "claude-gateway"

	// Version is stamped manually on release.
	Version = "0.3.1"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:     AppName,
	Short:   "Claude Messages to OpenAI Chat Completions translation gateway",
	Long:    "A protocol-translation gateway: accepts Claude Messages requests, routes them to a configured provider, and re-encodes OpenAI-style responses back into the Claude wire format.",
	Version: Version,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func init() {
	// .env is optional; real deployments set environment directly.
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the gateway config file")
}

// setLogLevel applies the configured level to the global logger.
func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
