package cli

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/AbelCoplet/llama-cag-n8N/internal/cag"
)

var evictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Reclaim disk space from stale KV caches",
	Long: `Deletes cache artifacts not queried since the age cutoff and at least
min-size on disk, least recently used first, and records the cleaned
transition in the registry. Orphaned artifacts are removed too.`,
	RunE: runEvict,
}

var (
	evictDryRun  bool
	evictMaxAge  int
	evictMinSize int64
	evictJSON    bool
)

func init() {
	evictCmd.Flags().BoolVar(&evictDryRun, "dry-run", false, "report what would be evicted without deleting")
	evictCmd.Flags().IntVar(&evictMaxAge, "max-age", 0, "age cutoff in days (default from config)")
	evictCmd.Flags().Int64Var(&evictMinSize, "min-size", 0, "minimum artifact size in MB (default from config)")
	evictCmd.Flags().BoolVar(&evictJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(evictCmd)
}

func runEvict(cmd *cobra.Command, args []string) error {
	if err := openServices(); err != nil {
		return err
	}

	report, err := cagService.Evict(context.Background(), cag.EvictOptions{
		DryRun:  evictDryRun,
		MaxAge:  time.Duration(evictMaxAge) * 24 * time.Hour,
		MinSize: evictMinSize << 20,
	})
	if err != nil {
		return err
	}

	if evictJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(report)
	}

	verb := "Evicted"
	if report.DryRun {
		verb = "Would evict"
	}
	for _, entry := range report.Evicted {
		label := entry.ChunkId
		if entry.Orphan {
			label = "orphan"
		}
		cmd.Printf("  %s: %s (%.1f MB)\n", label, entry.CachePath, float64(entry.SizeBytes)/(1<<20))
	}
	for _, path := range report.SkippedInUse {
		cmd.Printf("  in use, skipped: %s\n", path)
	}
	cmd.Printf("%s %d caches, %.1f MB reclaimed\n", verb, len(report.Evicted), float64(report.ReclaimedBytes)/(1<<20))
	return nil
}
