package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sfpslog/sfpslog-go/internal/config"
)

var (
	flagRegistry string
	flagState    string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "sfpslog",
	Short: "Multi-tenant game-server log ingestion",
	Long: `sfpslog polls remote game servers over SSH, extracts mission and
player-connection events from their logs and routes them to configured
notification destinations. State is tracked per tenant and per server so
nothing leaks across customer boundaries.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagRegistry, "registry", "r", "",
		"tenant registry file (default from SFPSLOG_REGISTRY_PATH)")
	rootCmd.PersistentFlags().StringVarP(&flagState, "state", "s", "",
		"offset state database path (default from SFPSLOG_STATE_PATH)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "",
		"log level: trace, debug, info, warn, error")
}

// loadSettings merges environment settings with flag overrides.
func loadSettings() (config.Settings, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return settings, err
	}
	if flagRegistry != "" {
		settings.RegistryPath = flagRegistry
	}
	if flagState != "" {
		settings.StatePath = flagState
	}
	if flagLogLevel != "" {
		settings.LogLevel = flagLogLevel
	}
	return settings, nil
}

// newLogger builds the process logger from settings.
func newLogger(settings config.Settings) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(settings.LogLevel)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", settings.LogLevel, err)
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger(), nil
}
