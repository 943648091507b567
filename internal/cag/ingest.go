package cag

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/AbelCoplet/llama-cag-n8N/internal/domain/cagModel"
)

type IngestDocumentRequest struct {
	DocumentId  string
	FileName    string
	Text        string
	SetAsMaster bool
}

type IngestDocumentResult struct {
	DocumentId   string
	TotalChunks  int
	BuiltChunks  int
	FailedChunks int
	Status       cagModel.DocumentStatus
}

// IngestDocument splits extracted document text into chunks that fit the
// context window, registers them and builds each cache sequentially through
// the single engine slot. A chunk failure does not stop the rest; the
// document ends up cached, partially_cached or failed accordingly.
func (s *service) IngestDocument(ctx context.Context, req IngestDocumentRequest) (IngestDocumentResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return IngestDocumentResult{}, ErrEmptyInput
	}

	pieces := splitIntoChunks(req.Text, chunkCharLimit(s.cfg.MaxContext), chunkOverlapChars)
	chunks := make([]cagModel.ChunkRecord, len(pieces))
	for i, piece := range pieces {
		chunks[i] = cagModel.ChunkRecord{
			ChunkId:         fmt.Sprintf("%s_chunk%03d", req.DocumentId, i),
			DocumentId:      req.DocumentId,
			ChunkIndex:      i,
			TotalChunks:     len(pieces),
			SectionTitle:    fmt.Sprintf("Section %d of %d", i+1, len(pieces)),
			EstimatedTokens: EstimateTokens(piece),
			ContentHash:     contentHash(piece),
		}
	}

	doc := cagModel.Document{
		Id:          req.DocumentId,
		FileName:    req.FileName,
		ContentHash: contentHash(req.Text),
	}
	if err := s.registry.RegisterDocument(ctx, doc, chunks); err != nil {
		return IngestDocumentResult{}, err
	}

	result := IngestDocumentResult{DocumentId: req.DocumentId, TotalChunks: len(pieces)}
	for i, piece := range pieces {
		_, err := s.CreateCache(ctx, CreateCacheRequest{
			DocumentId:  req.DocumentId,
			FileName:    req.FileName,
			ChunkId:     chunks[i].ChunkId,
			ChunkIndex:  i,
			TotalChunks: len(pieces),
			Text:        piece,
			CachePath:   filepath.Join(s.cfg.KVCacheDir, chunks[i].ChunkId+".bin"),
			SetAsMaster: req.SetAsMaster && i == 0,
		})
		if err != nil {
			result.FailedChunks++
			s.logger.Error("Chunk build failed during ingestion",
				"documentId", req.DocumentId, "chunkIndex", i, "err", err)
			continue
		}
		result.BuiltChunks++
	}

	if finalDoc, found, err := s.registry.Document(ctx, req.DocumentId); err == nil && found {
		result.Status = finalDoc.Status
	}
	s.logger.Info("Document ingestion complete", "documentId", req.DocumentId,
		"built", result.BuiltChunks, "failed", result.FailedChunks, "status", result.Status)
	return result, nil
}

const chunkOverlapChars = 200

// chunkCharLimit sizes chunks so their token estimate leaves room for the
// context padding inside the maximum window.
func chunkCharLimit(maxContext int) int {
	return (maxContext - ContextPadding) * TokenEstimateDivisor
}

// splitIntoChunks breaks text on the best available separator, keeping a
// small overlap between consecutive chunks for continuity.
func splitIntoChunks(text string, limit int, overlap int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	// separators ordered best to worst for semantic boundaries
	separators := []string{"\n\n", "\n", ". ", " ", ""}

	var splitChar string
	found := false
	for _, sep := range separators {
		if sep != "" && strings.Contains(text, sep) {
			splitChar = sep
			found = true
			break
		}
	}
	if !found {
		var chunks []string
		for len(text) > limit {
			chunks = append(chunks, text[:limit])
			text = text[limit:]
		}
		if len(text) > 0 {
			chunks = append(chunks, text)
		}
		return chunks
	}

	parts := strings.Split(text, splitChar)
	var chunks []string
	var current strings.Builder

	for _, part := range parts {
		if current.Len()+len(part)+len(splitChar) > limit {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
			}

			overlapContent := ""
			if current.Len() > overlap {
				overlapContent = current.String()[current.Len()-overlap:]
			}
			current.Reset()
			current.WriteString(overlapContent)
		}

		if current.Len() > 0 {
			current.WriteString(splitChar)
		}
		current.WriteString(part)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
