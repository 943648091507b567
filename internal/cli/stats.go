package cli

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show registry-wide processing statistics",
	RunE:  runStats,
}

var statsJSON bool

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	if err := openServices(); err != nil {
		return err
	}

	stats, err := store.Stats(context.Background())
	if err != nil {
		return err
	}

	if statsJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(stats)
	}

	cmd.Printf("Documents:      %d\n", stats.TotalDocuments)
	cmd.Printf("Chunks cached:  %d\n", stats.CachedChunks)
	cmd.Printf("Chunks failed:  %d\n", stats.FailedChunks)
	cmd.Printf("Chunks cleaned: %d\n", stats.CleanedChunks)
	cmd.Printf("Cache on disk:  %.1f MB\n", float64(stats.TotalCacheBytes)/(1<<20))
	cmd.Printf("Queries served: %d\n", stats.TotalQueries)
	return nil
}
