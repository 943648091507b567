package sqliteStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AbelCoplet/llama-cag-n8N/internal/domain/cagModel"
)

const chunkColumns = `chunk_id, document_id, chunk_index, total_chunks, section_title,
	estimated_tokens, content_hash, cache_status, kv_cache_path, kv_cache_size,
	context_size, last_used, usage_count, error_message, created_at`

func (s *Store) SaveChunk(ctx context.Context, chunk cagModel.ChunkRecord) error {
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now().UTC()
	}
	if chunk.CacheStatus == "" {
		chunk.CacheStatus = cagModel.CachePending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cag_document_registry (`+chunkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			section_title = excluded.section_title,
			estimated_tokens = excluded.estimated_tokens,
			content_hash = excluded.content_hash
	`, chunk.ChunkId, chunk.DocumentId, chunk.ChunkIndex, chunk.TotalChunks, chunk.SectionTitle,
		chunk.EstimatedTokens, chunk.ContentHash, chunk.CacheStatus, nullString(chunk.CachePath),
		chunk.CacheSizeBytes, chunk.ContextSize, nullTime(chunk.LastUsed), chunk.UsageCount,
		chunk.ErrorMessage, chunk.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving chunk %s: %w", chunk.ChunkId, err)
	}
	return nil
}

func (s *Store) GetChunk(ctx context.Context, chunkId string) (cagModel.ChunkRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+chunkColumns+` FROM cag_document_registry WHERE chunk_id = ?`, chunkId)
	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cagModel.ChunkRecord{}, false, nil
	}
	if err != nil {
		return cagModel.ChunkRecord{}, false, fmt.Errorf("getting chunk %s: %w", chunkId, err)
	}
	return chunk, true, nil
}

func (s *Store) ChunksByDocument(ctx context.Context, documentId string) ([]cagModel.ChunkRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM cag_document_registry WHERE document_id = ? ORDER BY chunk_index`,
		documentId)
	if err != nil {
		return nil, fmt.Errorf("listing chunks for %s: %w", documentId, err)
	}
	defer rows.Close()
	return collectChunks(rows)
}

// FindCachedByContentHash backs the builder's idempotency check.
func (s *Store) FindCachedByContentHash(ctx context.Context, contentHash string) (cagModel.ChunkRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+chunkColumns+` FROM cag_document_registry
		 WHERE content_hash = ? AND cache_status = ? LIMIT 1`,
		contentHash, cagModel.CacheCached)
	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cagModel.ChunkRecord{}, false, nil
	}
	if err != nil {
		return cagModel.ChunkRecord{}, false, fmt.Errorf("finding chunk by hash: %w", err)
	}
	return chunk, true, nil
}

func (s *Store) LookupByCachePath(ctx context.Context, cachePath string) (cagModel.ChunkRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+chunkColumns+` FROM cag_document_registry WHERE kv_cache_path = ? LIMIT 1`, cachePath)
	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cagModel.ChunkRecord{}, false, nil
	}
	if err != nil {
		return cagModel.ChunkRecord{}, false, fmt.Errorf("looking up cache path: %w", err)
	}
	return chunk, true, nil
}

func (s *Store) ListCachedChunks(ctx context.Context) ([]cagModel.ChunkRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM cag_document_registry WHERE cache_status = ?`,
		cagModel.CacheCached)
	if err != nil {
		return nil, fmt.Errorf("listing cached chunks: %w", err)
	}
	defer rows.Close()
	return collectChunks(rows)
}

// ListEvictionCandidates returns cached chunks whose last use is older than
// cutoff (never-used rows included), at or above minSize, ranked last_used
// ascending with nulls first, then by usage_count.
func (s *Store) ListEvictionCandidates(ctx context.Context, cutoff time.Time, minSize int64) ([]cagModel.EvictionCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.chunk_id, c.document_id, c.chunk_index, c.total_chunks, c.section_title,
		       c.estimated_tokens, c.content_hash, c.cache_status, c.kv_cache_path, c.kv_cache_size,
		       c.context_size, c.last_used, c.usage_count, c.error_message, c.created_at,
		       d.file_name
		FROM cag_document_registry c
		JOIN documents d ON d.document_id = c.document_id
		WHERE c.cache_status = ?
		  AND (c.last_used IS NULL OR c.last_used < ?)
		  AND c.kv_cache_size >= ?
		ORDER BY c.last_used IS NOT NULL, c.last_used, c.usage_count
	`, cagModel.CacheCached, cutoff.UTC(), minSize)
	if err != nil {
		return nil, fmt.Errorf("listing eviction candidates: %w", err)
	}
	defer rows.Close()

	var candidates []cagModel.EvictionCandidate
	for rows.Next() {
		var c cagModel.EvictionCandidate
		var cachePath sql.NullString
		var lastUsed sql.NullTime
		err := rows.Scan(&c.Chunk.ChunkId, &c.Chunk.DocumentId, &c.Chunk.ChunkIndex, &c.Chunk.TotalChunks,
			&c.Chunk.SectionTitle, &c.Chunk.EstimatedTokens, &c.Chunk.ContentHash, &c.Chunk.CacheStatus,
			&cachePath, &c.Chunk.CacheSizeBytes, &c.Chunk.ContextSize, &lastUsed, &c.Chunk.UsageCount,
			&c.Chunk.ErrorMessage, &c.Chunk.CreatedAt, &c.FileName)
		if err != nil {
			return nil, err
		}
		c.Chunk.CachePath = cachePath.String
		if lastUsed.Valid {
			t := lastUsed.Time
			c.Chunk.LastUsed = &t
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// RecordUsage bumps the usage counter and advances last_used, never backward.
func (s *Store) RecordUsage(ctx context.Context, chunkId string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cag_document_registry
		SET usage_count = usage_count + 1,
		    last_used = CASE WHEN last_used IS NULL OR last_used < ? THEN ? ELSE last_used END
		WHERE chunk_id = ?
	`, now.UTC(), now.UTC(), chunkId)
	if err != nil {
		return fmt.Errorf("recording usage for %s: %w", chunkId, err)
	}
	return nil
}

func collectChunks(rows *sql.Rows) ([]cagModel.ChunkRecord, error) {
	var chunks []cagModel.ChunkRecord
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func scanChunk(row rowScanner) (cagModel.ChunkRecord, error) {
	var chunk cagModel.ChunkRecord
	var cachePath sql.NullString
	var lastUsed sql.NullTime
	err := row.Scan(&chunk.ChunkId, &chunk.DocumentId, &chunk.ChunkIndex, &chunk.TotalChunks,
		&chunk.SectionTitle, &chunk.EstimatedTokens, &chunk.ContentHash, &chunk.CacheStatus,
		&cachePath, &chunk.CacheSizeBytes, &chunk.ContextSize, &lastUsed, &chunk.UsageCount,
		&chunk.ErrorMessage, &chunk.CreatedAt)
	if err != nil {
		return chunk, err
	}
	chunk.CachePath = cachePath.String
	if lastUsed.Valid {
		t := lastUsed.Time
		chunk.LastUsed = &t
	}
	return chunk, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
