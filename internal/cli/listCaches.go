package cli

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/AbelCoplet/llama-cag-n8N/internal/domain/cagModel"
)

var listCachesCmd = &cobra.Command{
	Use:   "list-caches",
	Short: "List cached KV artifacts",
	RunE:  runListCaches,
}

var (
	listSort   string
	listDays   int
	listUnused bool
	listJSON   bool
)

func init() {
	listCachesCmd.Flags().StringVar(&listSort, "sort", "document", "sort order: document, size, date or usage")
	listCachesCmd.Flags().IntVar(&listDays, "days", 0, "only caches not used in the last N days")
	listCachesCmd.Flags().BoolVar(&listUnused, "unused", false, "only caches never queried")
	listCachesCmd.Flags().BoolVar(&listJSON, "json", false, "print as JSON")
	rootCmd.AddCommand(listCachesCmd)
}

func runListCaches(cmd *cobra.Command, args []string) error {
	if err := openServices(); err != nil {
		return err
	}
	ctx := context.Background()

	chunks, err := reg.ListCachedChunks(ctx)
	if err != nil {
		return err
	}

	if listUnused {
		chunks = filterChunks(chunks, func(c cagModel.ChunkRecord) bool {
			return c.UsageCount == 0
		})
	}
	if listDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -listDays)
		chunks = filterChunks(chunks, func(c cagModel.ChunkRecord) bool {
			return c.LastUsed == nil || c.LastUsed.Before(cutoff)
		})
	}

	sortChunks(chunks, listSort)

	if listJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(chunks)
	}

	if len(chunks) == 0 {
		cmd.Println("No cached KV artifacts found")
		return nil
	}

	var totalBytes int64
	for _, c := range chunks {
		cmd.Printf("  %s\n", c.ChunkId)
		cmd.Printf("    Document: %s\n", c.DocumentId)
		cmd.Printf("    Path: %s\n", c.CachePath)
		cmd.Printf("    Size: %.1f MB  Context: %d  Used: %d times\n",
			float64(c.CacheSizeBytes)/(1<<20), c.ContextSize, c.UsageCount)
		if c.LastUsed != nil {
			cmd.Printf("    Last used: %s\n", c.LastUsed.Format(time.RFC3339))
		}
		cmd.Println()
		totalBytes += c.CacheSizeBytes
	}
	cmd.Printf("Total: %d caches, %.1f MB\n", len(chunks), float64(totalBytes)/(1<<20))
	return nil
}

func filterChunks(chunks []cagModel.ChunkRecord, keep func(cagModel.ChunkRecord) bool) []cagModel.ChunkRecord {
	out := chunks[:0]
	for _, c := range chunks {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func sortChunks(chunks []cagModel.ChunkRecord, order string) {
	switch order {
	case "size":
		sort.Slice(chunks, func(i, j int) bool { return chunks[i].CacheSizeBytes > chunks[j].CacheSizeBytes })
	case "usage":
		sort.Slice(chunks, func(i, j int) bool { return chunks[i].UsageCount > chunks[j].UsageCount })
	case "date":
		sort.Slice(chunks, func(i, j int) bool {
			// never-used caches sort oldest
			if chunks[i].LastUsed == nil || chunks[j].LastUsed == nil {
				return chunks[i].LastUsed == nil && chunks[j].LastUsed != nil
			}
			return chunks[i].LastUsed.Before(*chunks[j].LastUsed)
		})
	default:
		sort.Slice(chunks, func(i, j int) bool {
			if chunks[i].DocumentId != chunks[j].DocumentId {
				return chunks[i].DocumentId < chunks[j].DocumentId
			}
			return chunks[i].ChunkIndex < chunks[j].ChunkIndex
		})
	}
}
