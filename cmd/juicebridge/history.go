package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"juicebridge/internal/audit"
	"juicebridge/internal/history"
	"juicebridge/internal/infrastructure/database"
)

const historyCommandTimeout = 5 * time.Second

var historyFlags struct {
	dbPath string
	serial string
	limit  int
	audit  bool
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent telemetry history and audit entries",
	Long: `history reads the bridge's local SQLite database directly, for
diagnostics when the bridge itself isn't running. It does not touch MQTT
or the device.`,
	RunE: runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyFlags.dbPath, "database-path", "./data/juicebridge.db", "path to the bridge's SQLite database")
	f.StringVar(&historyFlags.serial, "juicebox-id", "", "device serial to list telemetry history for (required unless --audit)")
	f.IntVar(&historyFlags.limit, "limit", 20, "maximum number of entries to print")
	f.BoolVar(&historyFlags.audit, "audit", false, "list audit log entries instead of telemetry history")
}

func runHistory(_ *cobra.Command, _ []string) error {
	db, err := database.Open(database.Config{Path: historyFlags.dbPath, BusyTimeout: 5})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-only diagnostic command

	ctx, cancel := context.WithTimeout(context.Background(), historyCommandTimeout)
	defer cancel()

	if historyFlags.audit {
		return printAuditLogs(ctx, db)
	}
	return printTelemetryHistory(ctx, db)
}

func printTelemetryHistory(ctx context.Context, db *database.DB) error {
	if historyFlags.serial == "" {
		return fmt.Errorf("--juicebox-id is required")
	}

	repo := history.NewSQLiteRepository(db.DB)
	entries, err := repo.Recent(ctx, historyFlags.serial, historyFlags.limit)
	if err != nil {
		return fmt.Errorf("reading telemetry history: %w", err)
	}

	for _, e := range entries {
		snapshot, err := json.Marshal(e.Snapshot)
		if err != nil {
			return fmt.Errorf("encoding snapshot: %w", err)
		}
		fmt.Printf("%s  %-6s  %s\n", e.CreatedAt.Format(time.RFC3339), e.Source, snapshot)
	}
	return nil
}

func printAuditLogs(ctx context.Context, db *database.DB) error {
	repo := audit.NewSQLiteRepository(db.DB)
	result, err := repo.List(ctx, audit.Filter{Limit: historyFlags.limit})
	if err != nil {
		return fmt.Errorf("reading audit log: %w", err)
	}

	for _, l := range result.Logs {
		fmt.Printf("%s  %-10s  %s/%s\n", l.CreatedAt.Format(time.RFC3339), l.Action, l.EntityType, l.EntityID)
	}
	return nil
}
