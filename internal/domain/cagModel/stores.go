package cagModel

import (
	"context"
	"time"
)

// ChunkStatusCounts feeds the document status derivation.
type ChunkStatusCounts struct {
	Total   int
	Cached  int
	Failed  int
	Cleaned int
	Pending int
}

type DocumentStore interface {
	SaveDocument(ctx context.Context, doc Document) error
	GetDocument(ctx context.Context, documentId string) (Document, bool, error)
	DeleteDocument(ctx context.Context, documentId string) error //cascades to chunk rows
	ListDocuments(ctx context.Context) ([]Document, error)
}

type ChunkStore interface {
	SaveChunk(ctx context.Context, chunk ChunkRecord) error
	GetChunk(ctx context.Context, chunkId string) (ChunkRecord, bool, error)
	ChunksByDocument(ctx context.Context, documentId string) ([]ChunkRecord, error)
	FindCachedByContentHash(ctx context.Context, contentHash string) (ChunkRecord, bool, error)
	LookupByCachePath(ctx context.Context, cachePath string) (ChunkRecord, bool, error)
	ListCachedChunks(ctx context.Context) ([]ChunkRecord, error)
}

type QueryLogStore interface {
	SaveQueryLog(ctx context.Context, entry QueryLog) error
	RecentQueries(ctx context.Context, limit int) ([]QueryLog, error)
}

type ErrorStore interface {
	AppendError(ctx context.Context, entry ProcessingError) error
	ErrorsByDocument(ctx context.Context, documentId string) ([]ProcessingError, error)
	ResolveErrors(ctx context.Context, documentId string) error
}

// EvictionCandidate is a cached chunk joined with its document name,
// as needed by the eviction ranking and by cagctl list-caches.
type EvictionCandidate struct {
	Chunk    ChunkRecord
	FileName string
}

type StatsStore interface {
	Stats(ctx context.Context) (ProcessingStats, error)
	RecordStatsSnapshot(ctx context.Context, at time.Time, stats ProcessingStats) error
}
