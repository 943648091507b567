package cag_test

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/AbelCoplet/llama-cag-n8N/internal/domain/cagModel"
	"github.com/AbelCoplet/llama-cag-n8N/internal/engine"
)

// MockGateway implements engine.Gateway
type MockGateway struct {
	// Control fields to simulate different behaviors
	OnBuildCache func(ctx context.Context, req engine.BuildRequest) (engine.BuildResult, error)
	OnGenerate   func(ctx context.Context, req engine.GenerateRequest) (string, error)

	BuildCalls    int32
	GenerateCalls int32
}

func (m *MockGateway) BuildCache(ctx context.Context, req engine.BuildRequest) (engine.BuildResult, error) {
	atomic.AddInt32(&m.BuildCalls, 1)
	if m.OnBuildCache != nil {
		return m.OnBuildCache(ctx, req)
	}
	return engine.BuildResult{CachePath: req.CachePath, SizeBytes: 4096, Output: "built"}, nil
}

func (m *MockGateway) Generate(ctx context.Context, req engine.GenerateRequest) (string, error) {
	atomic.AddInt32(&m.GenerateCalls, 1)
	if m.OnGenerate != nil {
		return m.OnGenerate(ctx, req)
	}
	return "mocked engine response", nil
}

func (m *MockGateway) Healthy() []string { return nil }

func (m *MockGateway) Close() {}

// MockRegistry implements cag.Registry
type MockRegistry struct {
	OnRegisterDocument        func(ctx context.Context, doc cagModel.Document, chunks []cagModel.ChunkRecord) error
	OnBeginBuild              func(ctx context.Context, chunkId string) (func(), error)
	OnMarkCached              func(ctx context.Context, chunkId string, cachePath string, sizeBytes int64, contextSize int) (cagModel.ChunkRecord, error)
	OnMarkFailed              func(ctx context.Context, chunkId string, message string) (cagModel.ChunkRecord, error)
	OnMarkCleaned             func(ctx context.Context, chunkId string) (cagModel.ChunkRecord, error)
	OnRecordUsage             func(ctx context.Context, chunkId string) error
	OnDocument                func(ctx context.Context, documentId string) (cagModel.Document, bool, error)
	OnChunk                   func(ctx context.Context, chunkId string) (cagModel.ChunkRecord, bool, error)
	OnChunksByDocument        func(ctx context.Context, documentId string) ([]cagModel.ChunkRecord, error)
	OnFindCachedByContentHash func(ctx context.Context, contentHash string) (cagModel.ChunkRecord, bool, error)
	OnLookupByCachePath       func(ctx context.Context, cachePath string) (cagModel.ChunkRecord, bool, error)
	OnEvictionCandidates      func(ctx context.Context, cutoff time.Time, minSize int64) ([]cagModel.EvictionCandidate, error)

	UsageCalls   int32
	CleanedCalls int32
}

func (m *MockRegistry) RegisterDocument(ctx context.Context, doc cagModel.Document, chunks []cagModel.ChunkRecord) error {
	if m.OnRegisterDocument != nil {
		return m.OnRegisterDocument(ctx, doc, chunks)
	}
	return nil
}

func (m *MockRegistry) BeginBuild(ctx context.Context, chunkId string) (func(), error) {
	if m.OnBeginBuild != nil {
		return m.OnBeginBuild(ctx, chunkId)
	}
	return func() {}, nil
}

func (m *MockRegistry) MarkCached(ctx context.Context, chunkId string, cachePath string, sizeBytes int64, contextSize int) (cagModel.ChunkRecord, error) {
	if m.OnMarkCached != nil {
		return m.OnMarkCached(ctx, chunkId, cachePath, sizeBytes, contextSize)
	}
	return cagModel.ChunkRecord{ChunkId: chunkId, CacheStatus: cagModel.CacheCached}, nil
}

func (m *MockRegistry) MarkFailed(ctx context.Context, chunkId string, message string) (cagModel.ChunkRecord, error) {
	if m.OnMarkFailed != nil {
		return m.OnMarkFailed(ctx, chunkId, message)
	}
	return cagModel.ChunkRecord{ChunkId: chunkId, CacheStatus: cagModel.CacheFailed}, nil
}

func (m *MockRegistry) MarkCleaned(ctx context.Context, chunkId string) (cagModel.ChunkRecord, error) {
	atomic.AddInt32(&m.CleanedCalls, 1)
	if m.OnMarkCleaned != nil {
		return m.OnMarkCleaned(ctx, chunkId)
	}
	return cagModel.ChunkRecord{ChunkId: chunkId, CacheStatus: cagModel.CacheCleaned}, nil
}

func (m *MockRegistry) RecordUsage(ctx context.Context, chunkId string) error {
	atomic.AddInt32(&m.UsageCalls, 1)
	if m.OnRecordUsage != nil {
		return m.OnRecordUsage(ctx, chunkId)
	}
	return nil
}

func (m *MockRegistry) AppendError(ctx context.Context, entry cagModel.ProcessingError) error {
	return nil
}

func (m *MockRegistry) Document(ctx context.Context, documentId string) (cagModel.Document, bool, error) {
	if m.OnDocument != nil {
		return m.OnDocument(ctx, documentId)
	}
	return cagModel.Document{}, false, nil
}

func (m *MockRegistry) Chunk(ctx context.Context, chunkId string) (cagModel.ChunkRecord, bool, error) {
	if m.OnChunk != nil {
		return m.OnChunk(ctx, chunkId)
	}
	return cagModel.ChunkRecord{}, false, nil
}

func (m *MockRegistry) ChunksByDocument(ctx context.Context, documentId string) ([]cagModel.ChunkRecord, error) {
	if m.OnChunksByDocument != nil {
		return m.OnChunksByDocument(ctx, documentId)
	}
	return nil, nil
}

func (m *MockRegistry) FindCachedByContentHash(ctx context.Context, contentHash string) (cagModel.ChunkRecord, bool, error) {
	if m.OnFindCachedByContentHash != nil {
		return m.OnFindCachedByContentHash(ctx, contentHash)
	}
	return cagModel.ChunkRecord{}, false, nil
}

func (m *MockRegistry) LookupByCachePath(ctx context.Context, cachePath string) (cagModel.ChunkRecord, bool, error) {
	if m.OnLookupByCachePath != nil {
		return m.OnLookupByCachePath(ctx, cachePath)
	}
	return cagModel.ChunkRecord{}, false, nil
}

func (m *MockRegistry) EvictionCandidates(ctx context.Context, cutoff time.Time, minSize int64) ([]cagModel.EvictionCandidate, error) {
	if m.OnEvictionCandidates != nil {
		return m.OnEvictionCandidates(ctx, cutoff, minSize)
	}
	return nil, nil
}
