package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/sfpslog/sfpslog-go/internal/state"
)

var (
	flagResetTenant string
	flagResetServer string
	flagResetAll    bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete persisted offsets to force a cold start",
	Long: `Delete persisted offsets so the next pass treats the matching
servers as brand new: their full history is absorbed silently and only
lines appended afterwards produce notifications.

Examples:
  # One server of one tenant
  sfpslog reset --tenant 1219 --server alpha

  # Everything for one tenant
  sfpslog reset --tenant 1219

  # All state
  sfpslog reset --all`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().StringVar(&flagResetTenant, "tenant", "", "tenant id to reset")
	resetCmd.Flags().StringVar(&flagResetServer, "server", "", "server id to reset (requires --tenant)")
	resetCmd.Flags().BoolVar(&flagResetAll, "all", false, "reset every tenant and server")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	if !flagResetAll && flagResetTenant == "" {
		return errors.New("specify --tenant (optionally with --server) or --all")
	}
	if flagResetServer != "" && flagResetTenant == "" {
		return errors.New("--server requires --tenant")
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	store, err := state.OpenSQLite(settings.StatePath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	states, err := store.Load(ctx)
	if err != nil {
		return err
	}

	removed := 0
	for key := range states {
		switch {
		case flagResetAll:
		case flagResetServer != "":
			if key != (state.TenantServerKey{TenantID: flagResetTenant, ServerID: flagResetServer}) {
				continue
			}
		default:
			if key.TenantID != flagResetTenant {
				continue
			}
		}
		delete(states, key)
		removed++
	}

	if err := store.Save(ctx, states); err != nil {
		return err
	}
	cmd.Printf("reset %d server(s)\n", removed)
	return nil
}
