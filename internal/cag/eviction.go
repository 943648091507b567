package cag

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/AbelCoplet/llama-cag-n8N/internal/metrics"
)

type EvictOptions struct {
	DryRun  bool
	MaxAge  time.Duration //0 = configured default
	MinSize int64         //0 = configured default
}

// EvictedCache describes one artifact the advisor reclaimed (or would).
type EvictedCache struct {
	ChunkId   string `json:"chunk_id,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	CachePath string `json:"cache_path"`
	SizeBytes int64  `json:"size_bytes"`
	Orphan    bool   `json:"orphan,omitempty"`
}

type EvictReport struct {
	DryRun         bool           `json:"dry_run"`
	Evicted        []EvictedCache `json:"evicted"`
	SkippedInUse   []string       `json:"skipped_in_use,omitempty"`
	ReclaimedBytes int64          `json:"reclaimed_bytes"`
}

// Evict reclaims disk space from stale KV caches. Candidates are cached
// chunks not used since the age cutoff and at least min-size bytes on disk,
// least recently used first. A cache under its advisory lock is skipped as
// in use, never deleted mid-query. Orphaned artifacts in the cache
// directory that the registry does not know are reclaimed too.
func (s *service) Evict(ctx context.Context, opts EvictOptions) (EvictReport, error) {
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = s.cfg.EvictionMaxAge
	}
	minSize := opts.MinSize
	if minSize <= 0 {
		minSize = s.cfg.EvictionMinSize
	}
	cutoff := time.Now().UTC().Add(-maxAge)

	report := EvictReport{DryRun: opts.DryRun}

	candidates, err := s.registry.EvictionCandidates(ctx, cutoff, minSize)
	if err != nil {
		return report, err
	}

	for _, cand := range candidates {
		entry := EvictedCache{
			ChunkId:   cand.Chunk.ChunkId,
			FileName:  cand.FileName,
			CachePath: cand.Chunk.CachePath,
			SizeBytes: cand.Chunk.CacheSizeBytes,
		}
		if opts.DryRun {
			report.Evicted = append(report.Evicted, entry)
			report.ReclaimedBytes += entry.SizeBytes
			continue
		}

		if !s.locks.TryAcquire(cand.Chunk.CachePath) {
			report.SkippedInUse = append(report.SkippedInUse, cand.Chunk.CachePath)
			s.logger.Info("Cache in use, skipping eviction", "cachePath", cand.Chunk.CachePath)
			continue
		}
		err := s.evictOne(ctx, cand.Chunk.ChunkId, cand.Chunk.CachePath)
		s.locks.Release(cand.Chunk.CachePath)
		if err != nil {
			s.logger.Error("Eviction failed", "chunkId", cand.Chunk.ChunkId, "err", err)
			continue
		}

		metrics.CaptureEvictedBytes(entry.SizeBytes)
		report.Evicted = append(report.Evicted, entry)
		report.ReclaimedBytes += entry.SizeBytes
	}

	orphans, err := s.collectOrphans(ctx, opts.DryRun)
	if err != nil {
		s.logger.Error("Orphan scan failed", "err", err)
	}
	for _, orphan := range orphans {
		report.Evicted = append(report.Evicted, orphan)
		report.ReclaimedBytes += orphan.SizeBytes
		if !opts.DryRun {
			metrics.CaptureEvictedBytes(orphan.SizeBytes)
		}
	}

	s.logger.Info("Eviction pass complete", "dryRun", opts.DryRun,
		"evicted", len(report.Evicted), "reclaimedBytes", report.ReclaimedBytes,
		"skippedInUse", len(report.SkippedInUse))
	return report, nil
}

// evictOne deletes the artifact first; if the registry update then fails
// the row still says cached and the next pass retries the transition
// against a missing file.
func (s *service) evictOne(ctx context.Context, chunkId string, cachePath string) error {
	if err := os.Remove(cachePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	if _, err := s.registry.MarkCleaned(ctx, chunkId); err != nil {
		return err
	}
	return nil
}

// collectOrphans finds *.bin artifacts in the cache directory with no
// registry row. The master cache lives outside the registry on purpose.
func (s *service) collectOrphans(ctx context.Context, dryRun bool) ([]EvictedCache, error) {
	pattern := filepath.Join(s.cfg.KVCacheDir, "*.bin")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	var orphans []EvictedCache
	for _, path := range paths {
		if path == s.cfg.MasterKVCache {
			continue
		}
		if _, found, err := s.registry.LookupByCachePath(ctx, path); err != nil || found {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if !dryRun {
			if err := os.Remove(path); err != nil {
				s.logger.Error("Orphan removal failed", "cachePath", path, "err", err)
				continue
			}
		}
		orphans = append(orphans, EvictedCache{
			CachePath: path,
			SizeBytes: info.Size(),
			Orphan:    true,
		})
	}
	return orphans, nil
}
