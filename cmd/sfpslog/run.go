package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sfpslog/sfpslog-go/internal/config"
	"github.com/sfpslog/sfpslog-go/internal/engine"
	"github.com/sfpslog/sfpslog-go/internal/fetch"
	"github.com/sfpslog/sfpslog-go/internal/notify"
	"github.com/sfpslog/sfpslog-go/internal/state"
)

var flagInterval time.Duration

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll all configured servers on a fixed cadence",
	Long: `Run the ingestion loop: every interval, fetch each configured
server's log, process the lines appended since the last pass and deliver
the extracted events.

The first pass over a server is a cold start: its full history is
absorbed silently to avoid a notification storm. Later passes only
process new lines.

Examples:
  # Poll using registry.yaml every 3 minutes
  sfpslog run

  # Custom registry and cadence
  sfpslog run --registry tenants.yaml --interval 1m`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().DurationVarP(&flagInterval, "interval", "i", 0,
		"polling interval (default from SFPSLOG_POLL_INTERVAL)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if flagInterval > 0 {
		settings.PollInterval = flagInterval
	}
	log, err := newLogger(settings)
	if err != nil {
		return err
	}

	reg, err := config.LoadRegistry(settings.RegistryPath)
	if err != nil {
		return err
	}

	store, err := state.OpenSQLite(settings.StatePath)
	if err != nil {
		return err
	}
	defer store.Close()

	fetcher := fetch.New(log)
	defer fetcher.Close()

	eng := engine.New(log, store, fetcher, notify.NewLogNotifier(log))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Initialize(ctx); err != nil {
		return err
	}

	log.Info().
		Int("tenants", len(reg.Tenants)).
		Dur("interval", settings.PollInterval).
		Msg("starting ingestion loop")

	// Immediate first pass, then on the ticker.
	eng.RunAll(ctx, reg)

	ticker := time.NewTicker(settings.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return nil
		case <-ticker.C:
			eng.RunAll(ctx, reg)
		}
	}
}
