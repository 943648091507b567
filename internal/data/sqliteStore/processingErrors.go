package sqliteStore

import (
	"context"
	"fmt"
	"time"

	"github.com/AbelCoplet/llama-cag-n8N/internal/domain/cagModel"
)

func (s *Store) AppendError(ctx context.Context, entry cagModel.ProcessingError) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processing_errors (document_id, chunk_id, category, message, resolved, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.DocumentId, entry.ChunkId, entry.Category, entry.Message, entry.Resolved, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("appending processing error: %w", err)
	}
	return nil
}

func (s *Store) ErrorsByDocument(ctx context.Context, documentId string) ([]cagModel.ProcessingError, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_id, category, message, resolved, created_at
		FROM processing_errors WHERE document_id = ? ORDER BY created_at
	`, documentId)
	if err != nil {
		return nil, fmt.Errorf("listing errors for %s: %w", documentId, err)
	}
	defer rows.Close()

	var entries []cagModel.ProcessingError
	for rows.Next() {
		var entry cagModel.ProcessingError
		err := rows.Scan(&entry.Id, &entry.DocumentId, &entry.ChunkId, &entry.Category,
			&entry.Message, &entry.Resolved, &entry.CreatedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ResolveErrors marks a document's diagnostics resolved; rows are never deleted.
func (s *Store) ResolveErrors(ctx context.Context, documentId string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE processing_errors SET resolved = 1 WHERE document_id = ?`, documentId)
	if err != nil {
		return fmt.Errorf("resolving errors for %s: %w", documentId, err)
	}
	return nil
}
