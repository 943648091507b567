package sqliteStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AbelCoplet/llama-cag-n8N/internal/domain/cagModel"
)

var ErrChunkNotFound = errors.New("chunk not found")

// Transition applies one chunk mutation and the owning document's derived
// status recomputation inside a single transaction. The state-machine rules
// themselves live in the registry package; this only guarantees atomicity.
//
// apply receives the current row and returns the mutated one; derive maps
// the post-mutation chunk status counts to the document status.
func (s *Store) Transition(
	ctx context.Context,
	chunkId string,
	apply func(current cagModel.ChunkRecord) (cagModel.ChunkRecord, error),
	derive func(counts cagModel.ChunkStatusCounts) cagModel.DocumentStatus,
) (cagModel.ChunkRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cagModel.ChunkRecord{}, fmt.Errorf("beginning transition: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+chunkColumns+` FROM cag_document_registry WHERE chunk_id = ?`, chunkId)
	current, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cagModel.ChunkRecord{}, ErrChunkNotFound
	}
	if err != nil {
		return cagModel.ChunkRecord{}, fmt.Errorf("reading chunk %s: %w", chunkId, err)
	}

	next, err := apply(current)
	if err != nil {
		return cagModel.ChunkRecord{}, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE cag_document_registry
		SET cache_status = ?, kv_cache_path = ?, kv_cache_size = ?, context_size = ?, error_message = ?
		WHERE chunk_id = ?
	`, next.CacheStatus, nullString(next.CachePath), next.CacheSizeBytes, next.ContextSize,
		next.ErrorMessage, chunkId)
	if err != nil {
		return cagModel.ChunkRecord{}, fmt.Errorf("writing chunk %s: %w", chunkId, err)
	}

	counts, err := countStatuses(ctx, tx, next.DocumentId)
	if err != nil {
		return cagModel.ChunkRecord{}, err
	}

	docStatus := derive(counts)
	_, err = tx.ExecContext(ctx, `
		UPDATE documents SET status = ?, total_chunks = ?, updated_at = ? WHERE document_id = ?
	`, docStatus, counts.Total, time.Now().UTC(), next.DocumentId)
	if err != nil {
		return cagModel.ChunkRecord{}, fmt.Errorf("updating document %s status: %w", next.DocumentId, err)
	}

	if err := tx.Commit(); err != nil {
		return cagModel.ChunkRecord{}, fmt.Errorf("committing transition: %w", err)
	}
	return next, nil
}

func countStatuses(ctx context.Context, tx *sql.Tx, documentId string) (cagModel.ChunkStatusCounts, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT cache_status, COUNT(*) FROM cag_document_registry
		WHERE document_id = ? GROUP BY cache_status
	`, documentId)
	if err != nil {
		return cagModel.ChunkStatusCounts{}, fmt.Errorf("counting chunk statuses: %w", err)
	}
	defer rows.Close()

	var counts cagModel.ChunkStatusCounts
	for rows.Next() {
		var status cagModel.CacheStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return cagModel.ChunkStatusCounts{}, err
		}
		counts.Total += n
		switch status {
		case cagModel.CacheCached:
			counts.Cached = n
		case cagModel.CacheFailed:
			counts.Failed = n
		case cagModel.CacheCleaned:
			counts.Cleaned = n
		case cagModel.CachePending:
			counts.Pending = n
		}
	}
	return counts, rows.Err()
}
