package sqliteStore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AbelCoplet/llama-cag-n8N/internal/domain/cagModel"
)

func (s *Store) SaveQueryLog(ctx context.Context, entry cagModel.QueryLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	sources, err := json.Marshal(entry.DocumentSources)
	if err != nil {
		return fmt.Errorf("marshalling query sources: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO query_log (query_id, query_text, response_text, document_sources,
			processing_time_ms, success, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.QueryId, entry.QueryText, entry.ResponseText, string(sources),
		entry.ProcessingTimeMs, entry.Success, entry.ErrorMessage, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving query log %s: %w", entry.QueryId, err)
	}
	return nil
}

func (s *Store) RecentQueries(ctx context.Context, limit int) ([]cagModel.QueryLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT query_id, query_text, response_text, document_sources,
			processing_time_ms, success, error_message, created_at
		FROM query_log ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent queries: %w", err)
	}
	defer rows.Close()

	var entries []cagModel.QueryLog
	for rows.Next() {
		var entry cagModel.QueryLog
		var sources string
		err := rows.Scan(&entry.QueryId, &entry.QueryText, &entry.ResponseText, &sources,
			&entry.ProcessingTimeMs, &entry.Success, &entry.ErrorMessage, &entry.CreatedAt)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(sources), &entry.DocumentSources); err != nil {
			return nil, fmt.Errorf("unmarshalling query sources: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
