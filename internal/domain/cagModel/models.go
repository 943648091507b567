package cagModel

import "time"

type CacheStatus string
type DocumentStatus string
type ErrorCategory string

const (
	CachePending CacheStatus = "pending"
	CacheCached  CacheStatus = "cached"
	CacheFailed  CacheStatus = "failed"
	CacheCleaned CacheStatus = "cleaned"

	DocProcessing     DocumentStatus = "processing"
	DocCached         DocumentStatus = "cached"
	DocPartiallyCache DocumentStatus = "partially_cached"
	DocFailed         DocumentStatus = "failed"

	ErrBuild       ErrorCategory = "build"
	ErrQuery       ErrorCategory = "query"
	ErrPersistence ErrorCategory = "persistence"
	ErrEviction    ErrorCategory = "eviction"
)

type Document struct {
	Id          string         `json:"document_id"`
	FileName    string         `json:"file_name"`
	ContentHash string         `json:"content_hash"`
	TotalChunks int            `json:"total_chunks"`
	Status      DocumentStatus `json:"status"` //derived, never set directly
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ChunkRecord is one row of cag_document_registry.
type ChunkRecord struct {
	ChunkId         string      `json:"chunk_id"`
	DocumentId      string      `json:"document_id"`
	ChunkIndex      int         `json:"chunk_index"`
	TotalChunks     int         `json:"total_chunks"`
	SectionTitle    string      `json:"section_title,omitempty"`
	EstimatedTokens int         `json:"estimated_tokens"`
	ContentHash     string      `json:"content_hash"`
	CacheStatus     CacheStatus `json:"cache_status"`
	CachePath       string      `json:"kv_cache_path,omitempty"` //non-empty iff cached
	CacheSizeBytes  int64       `json:"kv_cache_size,omitempty"`
	ContextSize     int         `json:"context_size"`
	LastUsed        *time.Time  `json:"last_used,omitempty"`
	UsageCount      int64       `json:"usage_count"`
	ErrorMessage    string      `json:"error_message,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// QueryLog rows are written once per query and never updated.
type QueryLog struct {
	QueryId          string    `json:"query_id"`
	QueryText        string    `json:"query_text"`
	ResponseText     string    `json:"response_text"`
	DocumentSources  []string  `json:"document_sources"` //chunk/document ids actually used, in order
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	Success          bool      `json:"success"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// ProcessingError entries are append only, marked resolved rather than deleted.
type ProcessingError struct {
	Id         int64         `json:"id"`
	DocumentId string        `json:"document_id"`
	ChunkId    string        `json:"chunk_id,omitempty"`
	Category   ErrorCategory `json:"category"`
	Message    string        `json:"message"`
	Resolved   bool          `json:"resolved"`
	CreatedAt  time.Time     `json:"created_at"`
}

type ProcessingStats struct {
	TotalDocuments  int   `json:"total_documents"`
	TotalChunks     int   `json:"total_chunks"`
	CachedChunks    int   `json:"cached_chunks"`
	FailedChunks    int   `json:"failed_chunks"`
	CleanedChunks   int   `json:"cleaned_chunks"`
	TotalCacheBytes int64 `json:"total_cache_bytes"`
	TotalQueries    int64 `json:"total_queries"`
}
