package registry

import (
	"fmt"

	"github.com/AbelCoplet/llama-cag-n8N/internal/domain/cagModel"
)

// legalTransitions: pending -> {cached, failed}; cached -> cleaned.
// failed and cleaned are terminal; a re-ingestion creates a fresh chunk row
// instead of moving one backward.
var legalTransitions = map[cagModel.CacheStatus]map[cagModel.CacheStatus]bool{
	cagModel.CachePending: {
		cagModel.CacheCached: true,
		cagModel.CacheFailed: true,
	},
	cagModel.CacheCached: {
		cagModel.CacheCleaned: true,
	},
}

func checkTransition(from cagModel.CacheStatus, to cagModel.CacheStatus) error {
	if legalTransitions[from][to] {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}

// DeriveDocumentStatus recomputes a document's status from its chunk status
// counts. This is the strict variant: a document is cached only when every
// chunk is, and failed only when nothing cached and at least one chunk
// failed.
func DeriveDocumentStatus(counts cagModel.ChunkStatusCounts) cagModel.DocumentStatus {
	switch {
	case counts.Total > 0 && counts.Cached == counts.Total:
		return cagModel.DocCached
	case counts.Failed > 0 && counts.Cached == 0:
		return cagModel.DocFailed
	case counts.Cached > 0:
		return cagModel.DocPartiallyCache
	default:
		return cagModel.DocProcessing
	}
}
