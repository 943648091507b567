package cag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/AbelCoplet/llama-cag-n8N/internal/domain/cagModel"
	"github.com/AbelCoplet/llama-cag-n8N/internal/engine"
	"github.com/AbelCoplet/llama-cag-n8N/internal/metrics"
)

type CreateCacheRequest struct {
	DocumentId      string
	FileName        string
	ChunkId         string //optional, derived when empty
	ChunkIndex      int
	TotalChunks     int //0 means single-chunk document
	SectionTitle    string
	Text            string
	CachePath       string
	ContextSize     int //0 = choose from the token estimate
	EstimatedTokens int //0 = estimate from text length
	SetAsMaster     bool
}

type CreateCacheResult struct {
	DocumentId  string
	ChunkId     string
	CachePath   string
	SizeBytes   int64
	ContextSize int
	Output      string
	Reused      bool //idempotent hit, no engine invocation
}

// CreateCache builds one KV cache artifact for a chunk of text and records
// it in the registry. The artifact write and the cached transition are
// atomic from the caller's view: an artifact without a cached row is
// orphaned and left to the eviction advisor.
func (s *service) CreateCache(ctx context.Context, req CreateCacheRequest) (CreateCacheResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return CreateCacheResult{}, ErrEmptyInput
	}

	hash := contentHash(req.Text)

	// idempotency: same content with a live artifact is a no-op
	if existing, found, err := s.registry.FindCachedByContentHash(ctx, hash); err == nil && found {
		if info, statErr := os.Stat(existing.CachePath); statErr == nil && info.Size() > 0 {
			s.logger.Info("Cache already built for identical content, skipping",
				"chunkId", existing.ChunkId, "cachePath", existing.CachePath)
			metrics.CaptureBuildOutcome("reused")
			return CreateCacheResult{
				DocumentId:  existing.DocumentId,
				ChunkId:     existing.ChunkId,
				CachePath:   existing.CachePath,
				SizeBytes:   existing.CacheSizeBytes,
				ContextSize: existing.ContextSize,
				Reused:      true,
			}, nil
		}
	}

	chunk, err := s.ensureRegistered(ctx, req, hash)
	if err != nil {
		return CreateCacheResult{}, err
	}

	release, err := s.registry.BeginBuild(ctx, chunk.ChunkId)
	if err != nil {
		return CreateCacheResult{}, err
	}
	defer release()

	contextSize := ChooseContextSize(chunk.EstimatedTokens, req.ContextSize, s.cfg.MaxContext)

	buildResult, err := s.gateway.BuildCache(ctx, engine.BuildRequest{
		Text:        req.Text,
		CachePath:   req.CachePath,
		ContextSize: contextSize,
	})
	if err != nil {
		metrics.CaptureBuildOutcome("failed")
		if _, markErr := s.registry.MarkFailed(ctx, chunk.ChunkId, err.Error()); markErr != nil {
			s.logger.Error("Failed to record build failure", "chunkId", chunk.ChunkId, "err", markErr)
		}
		return CreateCacheResult{Output: buildResult.Output}, fmt.Errorf("building cache for chunk %s: %w", chunk.ChunkId, err)
	}

	if _, err := s.registry.MarkCached(ctx, chunk.ChunkId, buildResult.CachePath, buildResult.SizeBytes, contextSize); err != nil {
		metrics.CaptureBuildOutcome("failed")
		return CreateCacheResult{Output: buildResult.Output},
			&PersistenceError{CachePath: buildResult.CachePath, Err: err}
	}

	if req.SetAsMaster || strings.Contains(strings.ToLower(req.DocumentId), "master") {
		if err := s.setAsMaster(buildResult.CachePath); err != nil {
			s.logger.Error("Failed to set as master KV cache", "err", err)
		} else {
			s.logger.Info("Set as master KV cache", "source", buildResult.CachePath, "master", s.cfg.MasterKVCache)
		}
	}

	metrics.CaptureBuildOutcome("success")
	return CreateCacheResult{
		DocumentId:  req.DocumentId,
		ChunkId:     chunk.ChunkId,
		CachePath:   buildResult.CachePath,
		SizeBytes:   buildResult.SizeBytes,
		ContextSize: contextSize,
		Output:      buildResult.Output,
	}, nil
}

// ensureRegistered makes sure the document and chunk rows exist before a
// build. The bridge's /create-cache can arrive for a document the registry
// has never seen; it becomes a single-chunk document.
func (s *service) ensureRegistered(ctx context.Context, req CreateCacheRequest, hash string) (cagModel.ChunkRecord, error) {
	estimated := req.EstimatedTokens
	if estimated <= 0 {
		estimated = EstimateTokens(req.Text)
	}

	if req.ChunkId != "" {
		chunk, found, err := s.registry.Chunk(ctx, req.ChunkId)
		if err != nil {
			return cagModel.ChunkRecord{}, err
		}
		if found {
			return chunk, nil
		}
	}

	chunkId := req.ChunkId
	if chunkId == "" {
		chunkId = fmt.Sprintf("%s_chunk%03d", req.DocumentId, req.ChunkIndex)
	}
	fileName := req.FileName
	if fileName == "" {
		fileName = filepath.Base(req.CachePath)
	}
	totalChunks := req.TotalChunks
	if totalChunks == 0 {
		totalChunks = 1
	}

	doc := cagModel.Document{
		Id:          req.DocumentId,
		FileName:    fileName,
		ContentHash: hash,
	}
	chunk := cagModel.ChunkRecord{
		ChunkId:         chunkId,
		DocumentId:      req.DocumentId,
		ChunkIndex:      req.ChunkIndex,
		TotalChunks:     totalChunks,
		SectionTitle:    req.SectionTitle,
		EstimatedTokens: estimated,
		ContentHash:     hash,
	}
	if err := s.registry.RegisterDocument(ctx, doc, []cagModel.ChunkRecord{chunk}); err != nil {
		return cagModel.ChunkRecord{}, err
	}
	return chunk, nil
}

func (s *service) setAsMaster(cachePath string) error {
	if err := os.MkdirAll(filepath.Dir(s.cfg.MasterKVCache), 0750); err != nil {
		return err
	}
	return copyFile(cachePath, s.cfg.MasterKVCache)
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func copyFile(src string, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
