package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/sfpslog/sfpslog-go/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show persisted offset state",
	Long: `Print the persisted per-server offsets as JSON. Useful to check
how far ingestion has progressed and which servers have been through
their cold start.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type statusEntry struct {
	Tenant      string    `json:"tenant"`
	Server      string    `json:"server"`
	LineCount   int       `json:"line_count"`
	LastUpdated time.Time `json:"last_updated"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	store, err := state.OpenSQLite(settings.StatePath)
	if err != nil {
		return err
	}
	defer store.Close()

	states, err := store.Load(cmd.Context())
	if err != nil {
		return err
	}

	entries := make([]statusEntry, 0, len(states))
	for key, fs := range states {
		entries = append(entries, statusEntry{
			Tenant:      key.TenantID,
			Server:      key.ServerID,
			LineCount:   fs.LineCount,
			LastUpdated: fs.LastUpdated,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}
