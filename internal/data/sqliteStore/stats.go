package sqliteStore

import (
	"context"
	"fmt"
	"time"

	"github.com/AbelCoplet/llama-cag-n8N/internal/domain/cagModel"
)

func (s *Store) Stats(ctx context.Context) (cagModel.ProcessingStats, error) {
	var stats cagModel.ProcessingStats

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`)
	if err := row.Scan(&stats.TotalDocuments); err != nil {
		return stats, fmt.Errorf("counting documents: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(cache_status = 'cached'), 0),
		       COALESCE(SUM(cache_status = 'failed'), 0),
		       COALESCE(SUM(cache_status = 'cleaned'), 0),
		       COALESCE(SUM(CASE WHEN cache_status = 'cached' THEN kv_cache_size ELSE 0 END), 0)
		FROM cag_document_registry
	`)
	if err := row.Scan(&stats.TotalChunks, &stats.CachedChunks, &stats.FailedChunks,
		&stats.CleanedChunks, &stats.TotalCacheBytes); err != nil {
		return stats, fmt.Errorf("counting chunks: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM query_log`)
	if err := row.Scan(&stats.TotalQueries); err != nil {
		return stats, fmt.Errorf("counting queries: %w", err)
	}
	return stats, nil
}

func (s *Store) RecordStatsSnapshot(ctx context.Context, at time.Time, stats cagModel.ProcessingStats) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processing_stats (captured_at, total_documents, total_chunks,
			cached_chunks, failed_chunks, cleaned_chunks, total_cache_bytes, total_queries)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, at.UTC(), stats.TotalDocuments, stats.TotalChunks, stats.CachedChunks,
		stats.FailedChunks, stats.CleanedChunks, stats.TotalCacheBytes, stats.TotalQueries)
	if err != nil {
		return fmt.Errorf("recording stats snapshot: %w", err)
	}
	return nil
}
