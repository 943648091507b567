package cag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AbelCoplet/llama-cag-n8N/internal/config"
	"github.com/AbelCoplet/llama-cag-n8N/internal/metrics"
)

type MultiQueryRequest struct {
	Query         string
	CachePaths    []string
	MaxTokens     int
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
}

// extract is one cache's contribution to a multi-cache answer.
type extract struct {
	cachePath string
	citation  string
	text      string
}

// QueryMulti answers a question spanning several KV caches. Each cache is
// queried for a short relevant extract, the extracts are combined into a
// labelled context blob and a final synthesis pass runs against the first
// cache that produced an extract. Unreadable caches are skipped with a
// warning; the whole query fails only when every cache is unusable.
func (s *service) QueryMulti(ctx context.Context, req MultiQueryRequest) (QueryResult, error) {
	if req.Query == "" {
		return QueryResult{}, ErrEmptyInput
	}
	if len(req.CachePaths) == 0 {
		return QueryResult{}, ErrNoCacheRefs
	}

	start := time.Now()
	single := QueryRequest{
		Query:         req.Query,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		RepeatPenalty: req.RepeatPenalty,
	}

	var extracts []extract
	for _, cachePath := range req.CachePaths {
		ex, err := s.extractFromCache(ctx, cachePath, req.Query, single)
		if err != nil {
			s.logger.Warn("Skipping cache during multi-cache query",
				"cachePath", cachePath, "err", err)
			continue
		}
		extracts = append(extracts, ex)
	}
	if len(extracts) == 0 {
		metrics.CaptureQueryOutcome("multi", "failed", time.Since(start))
		return QueryResult{}, ErrNoCachesAvailable
	}

	answer, err := s.synthesize(ctx, req.Query, extracts, single)
	duration := time.Since(start)
	if err != nil {
		metrics.CaptureQueryOutcome("multi", "failed", duration)
		genErr := &GenerationError{CachePath: extracts[0].cachePath, Err: err}
		s.saveQueryLog(ctx, req.Query, "", sourcePaths(extracts), duration, genErr)
		return QueryResult{}, genErr
	}

	sources := make([]string, len(extracts))
	for i, ex := range extracts {
		sources[i] = ex.citation
	}
	answer = ensureSourcesFooter(answer, sources)

	s.saveQueryLog(ctx, req.Query, answer, sourcePaths(extracts), duration, nil)
	metrics.CaptureQueryOutcome("multi", "success", duration)

	return QueryResult{
		Response:  answer,
		CachePath: extracts[0].cachePath,
		Sources:   sources,
		Duration:  duration,
	}, nil
}

// extractFromCache pulls a short, question-relevant extract out of one cache
// under its advisory lock, and records the usage.
func (s *service) extractFromCache(ctx context.Context, cachePath string, query string, single QueryRequest) (extract, error) {
	info, err := os.Stat(cachePath)
	if err != nil {
		return extract{}, fmt.Errorf("%w: %s", ErrCacheNotFound, cachePath)
	}
	if info.Size() == 0 {
		return extract{}, fmt.Errorf("%w: %s is empty", ErrCacheNotFound, cachePath)
	}

	if err := s.locks.Acquire(ctx, cachePath); err != nil {
		return extract{}, err
	}
	defer s.locks.Release(cachePath)

	prompt := fmt.Sprintf(
		"Extract the information relevant to this question. Quote the source where possible.\n\nQuestion: %s\n\nRelevant information:",
		query)
	bounded := single
	bounded.MaxTokens = config.ExtractTokenBudget
	text, err := s.generate(ctx, cachePath, prompt, bounded)
	if err != nil {
		return extract{}, err
	}

	s.recordUsage(ctx, cachePath)
	return extract{
		cachePath: cachePath,
		citation:  s.citationFor(ctx, cachePath),
		text:      text,
	}, nil
}

// synthesize runs a final generation over the combined extracts using the
// first successful cache's state as the base.
func (s *service) synthesize(ctx context.Context, query string, extracts []extract, single QueryRequest) (string, error) {
	var blob strings.Builder
	for _, ex := range extracts {
		fmt.Fprintf(&blob, "[%s]\n%s\n\n", ex.citation, ex.text)
	}

	prompt := fmt.Sprintf(
		"Using only the following extracts, answer the question. Cite the sources you used.\n\n%s\nQuestion: %s\n\nAnswer:",
		blob.String(), query)

	base := extracts[0].cachePath
	if err := s.locks.Acquire(ctx, base); err != nil {
		return "", err
	}
	defer s.locks.Release(base)

	answer, err := s.generate(ctx, base, prompt, single)
	if err != nil {
		return "", err
	}
	s.recordUsage(ctx, base)
	return answer, nil
}

// citationFor renders "fileName (section i of n)" when the cache is known
// to the registry; otherwise the file name stands alone.
func (s *service) citationFor(ctx context.Context, cachePath string) string {
	chunk, found, err := s.registry.LookupByCachePath(ctx, cachePath)
	if err != nil || !found {
		return filepath.Base(cachePath)
	}
	fileName := chunk.ChunkId
	if doc, ok, err := s.registry.Document(ctx, chunk.DocumentId); err == nil && ok && doc.FileName != "" {
		fileName = doc.FileName
	}
	if chunk.TotalChunks > 1 {
		return fmt.Sprintf("%s (section %d of %d)", fileName, chunk.ChunkIndex+1, chunk.TotalChunks)
	}
	return fileName
}

func ensureSourcesFooter(answer string, sources []string) string {
	if strings.Contains(answer, "Sources:") {
		return answer
	}
	return fmt.Sprintf("%s\n\nSources: %s", strings.TrimRight(answer, "\n"), strings.Join(sources, "; "))
}

func sourcePaths(extracts []extract) []string {
	paths := make([]string, len(extracts))
	for i, ex := range extracts {
		paths[i] = ex.cachePath
	}
	return paths
}
