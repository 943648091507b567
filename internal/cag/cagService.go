package cag

import (
	"context"
	"time"

	"github.com/AbelCoplet/llama-cag-n8N/internal/config"
	"github.com/AbelCoplet/llama-cag-n8N/internal/domain/cagModel"
	"github.com/AbelCoplet/llama-cag-n8N/internal/engine"
	"github.com/AbelCoplet/llama-cag-n8N/pkg/logger_i"
)

// Registry is the slice of the registry the service needs. The concrete
// implementation lives in internal/registry; tests swap in mocks.
type Registry interface {
	RegisterDocument(ctx context.Context, doc cagModel.Document, chunks []cagModel.ChunkRecord) error
	BeginBuild(ctx context.Context, chunkId string) (release func(), err error)
	MarkCached(ctx context.Context, chunkId string, cachePath string, sizeBytes int64, contextSize int) (cagModel.ChunkRecord, error)
	MarkFailed(ctx context.Context, chunkId string, message string) (cagModel.ChunkRecord, error)
	MarkCleaned(ctx context.Context, chunkId string) (cagModel.ChunkRecord, error)
	RecordUsage(ctx context.Context, chunkId string) error
	AppendError(ctx context.Context, entry cagModel.ProcessingError) error
	Document(ctx context.Context, documentId string) (cagModel.Document, bool, error)
	Chunk(ctx context.Context, chunkId string) (cagModel.ChunkRecord, bool, error)
	ChunksByDocument(ctx context.Context, documentId string) ([]cagModel.ChunkRecord, error)
	FindCachedByContentHash(ctx context.Context, contentHash string) (cagModel.ChunkRecord, bool, error)
	LookupByCachePath(ctx context.Context, cachePath string) (cagModel.ChunkRecord, bool, error)
	EvictionCandidates(ctx context.Context, cutoff time.Time, minSize int64) ([]cagModel.EvictionCandidate, error)
}

// Service is the whole CAG core: cache building, single and multi cache
// queries and eviction. Handlers and cagctl only talk to this.
type Service interface {
	CreateCache(ctx context.Context, req CreateCacheRequest) (CreateCacheResult, error)
	IngestDocument(ctx context.Context, req IngestDocumentRequest) (IngestDocumentResult, error)
	Query(ctx context.Context, req QueryRequest) (QueryResult, error)
	QueryMulti(ctx context.Context, req MultiQueryRequest) (QueryResult, error)
	Evict(ctx context.Context, opts EvictOptions) (EvictReport, error)
}

type service struct {
	gateway  engine.Gateway
	registry Registry
	queryLog cagModel.QueryLogStore
	locks    *cacheLocks
	cfg      config.Config
	logger   *logger_i.Logger
}

func NewService(gateway engine.Gateway, reg Registry, queryLog cagModel.QueryLogStore, cfg config.Config) Service {
	return &service{
		gateway:  gateway,
		registry: reg,
		queryLog: queryLog,
		locks:    newCacheLocks(),
		cfg:      cfg,
		logger:   logger_i.NewLogger("CAG Service"),
	}
}
