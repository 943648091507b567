package cli

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var queriesCmd = &cobra.Command{
	Use:   "recent-queries",
	Short: "Show the most recent query log entries",
	RunE:  runRecentQueries,
}

var (
	queriesLimit int
	queriesJSON  bool
)

func init() {
	queriesCmd.Flags().IntVar(&queriesLimit, "limit", 20, "number of entries to show")
	queriesCmd.Flags().BoolVar(&queriesJSON, "json", false, "print as JSON")
	rootCmd.AddCommand(queriesCmd)
}

func runRecentQueries(cmd *cobra.Command, args []string) error {
	if err := openServices(); err != nil {
		return err
	}

	entries, err := store.RecentQueries(context.Background(), queriesLimit)
	if err != nil {
		return err
	}

	if queriesJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(entries)
	}

	if len(entries) == 0 {
		cmd.Println("No queries logged yet")
		return nil
	}
	for _, entry := range entries {
		outcome := "ok"
		if !entry.Success {
			outcome = "failed"
		}
		cmd.Printf("  [%s] %s (%dms, %s)\n", entry.CreatedAt.Format(time.RFC3339),
			truncate(entry.QueryText, 70), entry.ProcessingTimeMs, outcome)
		if len(entry.DocumentSources) > 0 {
			cmd.Printf("    sources: %s\n", strings.Join(entry.DocumentSources, ", "))
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
