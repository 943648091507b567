package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AbelCoplet/llama-cag-n8N/internal/domain/cagModel"
	"github.com/AbelCoplet/llama-cag-n8N/pkg/logger_i"
)

var (
	ErrBuildInFlight     = errors.New("a build for this chunk is already in flight")
	ErrIllegalTransition = errors.New("illegal cache status transition")
	ErrUnknownChunk      = errors.New("chunk not registered")
)

// Store is what the registry needs from the persistence layer. The sqlite
// store satisfies it.
type Store interface {
	cagModel.DocumentStore
	cagModel.ChunkStore
	cagModel.ErrorStore
	Transition(ctx context.Context, chunkId string,
		apply func(cagModel.ChunkRecord) (cagModel.ChunkRecord, error),
		derive func(cagModel.ChunkStatusCounts) cagModel.DocumentStatus) (cagModel.ChunkRecord, error)
	RecordUsage(ctx context.Context, chunkId string, now time.Time) error
	ListEvictionCandidates(ctx context.Context, cutoff time.Time, minSize int64) ([]cagModel.EvictionCandidate, error)
}

// Registry owns every document/chunk status write. Builders, the query
// engine and the eviction advisor request transitions here; nothing else
// touches status fields.
type Registry struct {
	store  Store
	logger *logger_i.Logger

	mu       sync.Mutex
	inflight map[string]struct{} //chunk ids with a build in progress
}

func New(store Store) *Registry {
	return &Registry{
		store:    store,
		logger:   logger_i.NewLogger("Registry"),
		inflight: make(map[string]struct{}),
	}
}

// RegisterDocument creates the document row and its pending chunk rows.
// Re-ingestion of changed content goes through here again and produces new
// chunk records; old ones keep their terminal status.
func (r *Registry) RegisterDocument(ctx context.Context, doc cagModel.Document, chunks []cagModel.ChunkRecord) error {
	doc.TotalChunks = len(chunks)
	doc.Status = cagModel.DocProcessing
	if err := r.store.SaveDocument(ctx, doc); err != nil {
		return err
	}
	for _, chunk := range chunks {
		chunk.DocumentId = doc.Id
		if chunk.TotalChunks == 0 {
			chunk.TotalChunks = len(chunks)
		}
		chunk.CacheStatus = cagModel.CachePending
		if err := r.store.SaveChunk(ctx, chunk); err != nil {
			return err
		}
	}
	r.logger.Info("Registered document", "documentId", doc.Id, "chunks", len(chunks))
	return nil
}

// BeginBuild claims the single build slot for a chunk. A second concurrent
// request for the same chunk is rejected, not queued. The returned release
// must be called on every exit path of the build.
func (r *Registry) BeginBuild(ctx context.Context, chunkId string) (release func(), err error) {
	chunk, found, err := r.store.GetChunk(ctx, chunkId)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrUnknownChunk
	}
	if chunk.CacheStatus != cagModel.CachePending {
		return nil, fmt.Errorf("%w: chunk %s is %s", ErrIllegalTransition, chunkId, chunk.CacheStatus)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inflight[chunkId]; busy {
		return nil, ErrBuildInFlight
	}
	r.inflight[chunkId] = struct{}{}

	return func() {
		r.mu.Lock()
		delete(r.inflight, chunkId)
		r.mu.Unlock()
	}, nil
}

// MarkCached transitions pending -> cached and persists the artifact
// reference atomically with the document status recomputation.
func (r *Registry) MarkCached(ctx context.Context, chunkId string, cachePath string, sizeBytes int64, contextSize int) (cagModel.ChunkRecord, error) {
	return r.store.Transition(ctx, chunkId, func(current cagModel.ChunkRecord) (cagModel.ChunkRecord, error) {
		if err := checkTransition(current.CacheStatus, cagModel.CacheCached); err != nil {
			return current, err
		}
		current.CacheStatus = cagModel.CacheCached
		current.CachePath = cachePath
		current.CacheSizeBytes = sizeBytes
		current.ContextSize = contextSize
		current.ErrorMessage = ""
		return current, nil
	}, DeriveDocumentStatus)
}

// MarkFailed transitions pending -> failed and appends a ProcessingError row.
func (r *Registry) MarkFailed(ctx context.Context, chunkId string, message string) (cagModel.ChunkRecord, error) {
	chunk, err := r.store.Transition(ctx, chunkId, func(current cagModel.ChunkRecord) (cagModel.ChunkRecord, error) {
		if err := checkTransition(current.CacheStatus, cagModel.CacheFailed); err != nil {
			return current, err
		}
		current.CacheStatus = cagModel.CacheFailed
		current.CachePath = ""
		current.CacheSizeBytes = 0
		current.ErrorMessage = message
		return current, nil
	}, DeriveDocumentStatus)
	if err != nil {
		return chunk, err
	}

	if err := r.store.AppendError(ctx, cagModel.ProcessingError{
		DocumentId: chunk.DocumentId,
		ChunkId:    chunkId,
		Category:   cagModel.ErrBuild,
		Message:    message,
	}); err != nil {
		r.logger.Error("Failed to append processing error", "chunkId", chunkId, "err", err)
	}
	return chunk, nil
}

// MarkCleaned transitions cached -> cleaned and clears the artifact path.
func (r *Registry) MarkCleaned(ctx context.Context, chunkId string) (cagModel.ChunkRecord, error) {
	return r.store.Transition(ctx, chunkId, func(current cagModel.ChunkRecord) (cagModel.ChunkRecord, error) {
		if err := checkTransition(current.CacheStatus, cagModel.CacheCleaned); err != nil {
			return current, err
		}
		current.CacheStatus = cagModel.CacheCleaned
		current.CachePath = ""
		current.CacheSizeBytes = 0
		return current, nil
	}, DeriveDocumentStatus)
}

// RecordUsage bumps usage stats for a successfully used cached chunk.
func (r *Registry) RecordUsage(ctx context.Context, chunkId string) error {
	return r.store.RecordUsage(ctx, chunkId, time.Now())
}

func (r *Registry) AppendError(ctx context.Context, entry cagModel.ProcessingError) error {
	return r.store.AppendError(ctx, entry)
}

// read-side pass-throughs

func (r *Registry) Document(ctx context.Context, documentId string) (cagModel.Document, bool, error) {
	return r.store.GetDocument(ctx, documentId)
}

func (r *Registry) Chunk(ctx context.Context, chunkId string) (cagModel.ChunkRecord, bool, error) {
	return r.store.GetChunk(ctx, chunkId)
}

func (r *Registry) ChunksByDocument(ctx context.Context, documentId string) ([]cagModel.ChunkRecord, error) {
	return r.store.ChunksByDocument(ctx, documentId)
}

func (r *Registry) FindCachedByContentHash(ctx context.Context, contentHash string) (cagModel.ChunkRecord, bool, error) {
	return r.store.FindCachedByContentHash(ctx, contentHash)
}

func (r *Registry) LookupByCachePath(ctx context.Context, cachePath string) (cagModel.ChunkRecord, bool, error) {
	return r.store.LookupByCachePath(ctx, cachePath)
}

func (r *Registry) ListCachedChunks(ctx context.Context) ([]cagModel.ChunkRecord, error) {
	return r.store.ListCachedChunks(ctx)
}

func (r *Registry) EvictionCandidates(ctx context.Context, cutoff time.Time, minSize int64) ([]cagModel.EvictionCandidate, error) {
	return r.store.ListEvictionCandidates(ctx, cutoff, minSize)
}
