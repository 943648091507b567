package cag

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/AbelCoplet/llama-cag-n8N/internal/config"
	"github.com/AbelCoplet/llama-cag-n8N/internal/domain/cagModel"
	"github.com/AbelCoplet/llama-cag-n8N/internal/engine"
	"github.com/AbelCoplet/llama-cag-n8N/internal/metrics"
)

type QueryRequest struct {
	Query         string
	CachePath     string //empty = master KV cache
	MaxTokens     int
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
}

type QueryResult struct {
	Response  string
	CachePath string
	Sources   []string
	Duration  time.Duration
}

// Query answers a question against a single KV cache. The cache artifact
// must exist on disk; the generation runs under the cache's advisory lock
// so eviction never deletes a cache mid-query.
func (s *service) Query(ctx context.Context, req QueryRequest) (QueryResult, error) {
	if req.Query == "" {
		return QueryResult{}, ErrEmptyInput
	}

	cachePath := req.CachePath
	if cachePath == "" {
		cachePath = s.cfg.MasterKVCache
	}

	info, err := os.Stat(cachePath)
	if err != nil {
		return QueryResult{}, fmt.Errorf("%w: %s", ErrCacheNotFound, cachePath)
	}
	if info.Size() < int64(config.CacheSizeWarnBytes) {
		s.logger.Warn("KV cache file is suspiciously small",
			"cachePath", cachePath, "sizeBytes", info.Size())
	}

	if err := s.locks.Acquire(ctx, cachePath); err != nil {
		return QueryResult{}, err
	}
	defer s.locks.Release(cachePath)

	start := time.Now()
	answer, err := s.generate(ctx, cachePath, questionPrompt(req.Query), req)
	duration := time.Since(start)
	if err != nil {
		metrics.CaptureQueryOutcome("single", "failed", duration)
		genErr := &GenerationError{CachePath: cachePath, Err: err}
		s.saveQueryLog(ctx, req.Query, "", nil, duration, genErr)
		return QueryResult{}, genErr
	}

	s.recordUsage(ctx, cachePath)
	s.saveQueryLog(ctx, req.Query, answer, []string{cachePath}, duration, nil)
	metrics.CaptureQueryOutcome("single", "success", duration)

	return QueryResult{Response: answer, CachePath: cachePath, Duration: duration}, nil
}

func (s *service) generate(ctx context.Context, cachePath string, prompt string, req QueryRequest) (string, error) {
	gen := engine.GenerateRequest{
		CachePath:     cachePath,
		Prompt:        prompt,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		RepeatPenalty: req.RepeatPenalty,
	}
	if gen.MaxTokens <= 0 {
		gen.MaxTokens = s.cfg.MaxTokens
	}
	if gen.Temperature <= 0 {
		gen.Temperature = s.cfg.Temperature
	}
	if gen.TopP <= 0 {
		gen.TopP = s.cfg.TopP
	}
	if gen.RepeatPenalty <= 0 {
		gen.RepeatPenalty = s.cfg.RepeatPenalty
	}
	return s.gateway.Generate(ctx, gen)
}

func questionPrompt(query string) string {
	return fmt.Sprintf("Answer this question based on your knowledge:\n\nQuestion: %s\n\nAnswer:", query)
}

// recordUsage is best effort: a cache path queried outside the registry
// (the master cache usually) simply has nothing to record against.
func (s *service) recordUsage(ctx context.Context, cachePath string) {
	chunk, found, err := s.registry.LookupByCachePath(ctx, cachePath)
	if err != nil {
		s.logger.Error("Usage lookup failed", "cachePath", cachePath, "err", err)
		return
	}
	if !found {
		return
	}
	if err := s.registry.RecordUsage(ctx, chunk.ChunkId); err != nil {
		s.logger.Error("Usage update failed", "chunkId", chunk.ChunkId, "err", err)
	}
}

func (s *service) saveQueryLog(ctx context.Context, query string, response string, sources []string, duration time.Duration, queryErr error) {
	if s.queryLog == nil {
		return
	}
	entry := cagModel.QueryLog{
		QueryId:          uuid.NewString(),
		QueryText:        query,
		ResponseText:     response,
		DocumentSources:  sources,
		ProcessingTimeMs: duration.Milliseconds(),
		Success:          queryErr == nil,
		CreatedAt:        time.Now().UTC(),
	}
	if queryErr != nil {
		entry.ErrorMessage = queryErr.Error()
	}
	if err := s.queryLog.SaveQueryLog(ctx, entry); err != nil {
		s.logger.Error("Query log write failed", "err", err)
	}
}
