package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/fieldsense/internal/models"
	"github.com/good-yellow-bee/fieldsense/internal/storage"
)

var (
	historyDBPath string
	historyLimit  int
	historyKind   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show dispatched alert history",
	Long: `Show dispatched alerts, newest first, read directly from the database file.

Examples:
  fieldctl history --limit 20
  fieldctl history --kind rain_warning -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(historyDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		var (
			items []*models.AlertHistory
			total int64
		)
		if historyKind != "" {
			kind := models.AlertKind(historyKind)
			if !kind.Valid() {
				return fmt.Errorf("unknown alert kind %q", historyKind)
			}
			items, total, err = store.AlertHistory().ListByKind(ctx, kind, historyLimit, 0)
		} else {
			items, total, err = store.AlertHistory().List(ctx, historyLimit, 0)
		}
		if err != nil {
			return fmt.Errorf("list history: %w", err)
		}

		out := cmd.OutOrStdout()
		if GetOutput() == "json" {
			return printJSON(out, items)
		}
		if len(items) == 0 {
			fmt.Fprintln(out, "No alerts recorded.")
			return nil
		}

		fmt.Fprintf(out, "\n%-20s  %-16s  %-9s  %-12s  %s\n", "FIRED", "KIND", "SEVERITY", "DEVICE", "MESSAGE")
		fmt.Fprintln(out, strings.Repeat("-", 100))
		for _, h := range items {
			fmt.Fprintf(out, "%-20s  %-16s  %-9s  %-12s  %s\n",
				h.FiredAt.Local().Format("2006-01-02 15:04:05"),
				h.Kind,
				h.Severity,
				h.DeviceID,
				h.Message,
			)
		}
		fmt.Fprintf(out, "\nShowing %d of %d alert(s)\n", len(items), total)
		return nil
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List registered push targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(historyDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		tokens, err := store.DeviceTokens().List(context.Background())
		if err != nil {
			return fmt.Errorf("list device tokens: %w", err)
		}

		out := cmd.OutOrStdout()
		if GetOutput() == "json" {
			return printJSON(out, tokens)
		}
		if len(tokens) == 0 {
			fmt.Fprintln(out, "No devices registered.")
			return nil
		}
		for _, t := range tokens {
			fmt.Fprintf(out, "%-40s  %-8s  %-20s  %s\n", truncateToken(t.Token), t.Platform, t.Label, t.CreatedAt.Local().Format("2006-01-02"))
		}
		return nil
	},
}

// openDatabase opens an existing database file.
func openDatabase(path string) (*storage.SQLiteStorage, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("database file not found: %s", path)
	}

	store := storage.NewSQLiteStorage(path)
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return store, nil
}

func truncateToken(t string) string {
	if len(t) <= 40 {
		return t
	}
	return t[:37] + "..."
}

func init() {
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(devicesCmd)

	for _, c := range []*cobra.Command{historyCmd, devicesCmd} {
		c.Flags().StringVar(&historyDBPath, "db", defaultDBPath, "path to SQLite database file")
	}
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "maximum number of alerts")
	historyCmd.Flags().StringVar(&historyKind, "kind", "", "only show this alert kind")
}
