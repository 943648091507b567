package sqliteStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AbelCoplet/llama-cag-n8N/internal/domain/cagModel"
)

func (s *Store) SaveDocument(ctx context.Context, doc cagModel.Document) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = cagModel.DocProcessing
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (document_id, file_name, content_hash, total_chunks, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			file_name = excluded.file_name,
			content_hash = excluded.content_hash,
			total_chunks = excluded.total_chunks,
			updated_at = excluded.updated_at
	`, doc.Id, doc.FileName, doc.ContentHash, doc.TotalChunks, doc.Status, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving document %s: %w", doc.Id, err)
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, documentId string) (cagModel.Document, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT document_id, file_name, content_hash, total_chunks, status, created_at, updated_at
		FROM documents WHERE document_id = ?
	`, documentId)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cagModel.Document{}, false, nil
	}
	if err != nil {
		return cagModel.Document{}, false, fmt.Errorf("getting document %s: %w", documentId, err)
	}
	return doc, true, nil
}

func (s *Store) DeleteDocument(ctx context.Context, documentId string) error {
	// chunk rows cascade
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE document_id = ?`, documentId)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", documentId, err)
	}
	return nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]cagModel.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, file_name, content_hash, total_chunks, status, created_at, updated_at
		FROM documents ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []cagModel.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (cagModel.Document, error) {
	var doc cagModel.Document
	err := row.Scan(&doc.Id, &doc.FileName, &doc.ContentHash, &doc.TotalChunks, &doc.Status, &doc.CreatedAt, &doc.UpdatedAt)
	return doc, err
}
