package adapter

import (
	"github.com/AbelCoplet/llama-cag-n8N/internal/api"
	"github.com/AbelCoplet/llama-cag-n8N/internal/cag"
	"github.com/AbelCoplet/llama-cag-n8N/internal/config"
)

func ToCreateCacheResponse(result cag.CreateCacheResult) api.CreateCacheResponse {
	return api.CreateCacheResponse{
		Success:     true,
		DocumentId:  result.DocumentId,
		ChunkId:     result.ChunkId,
		KVCachePath: result.CachePath,
		KVCacheSize: result.SizeBytes,
		ContextSize: result.ContextSize,
		Reused:      result.Reused,
		Output:      result.Output,
	}
}

func ToQueryResponse(query string, result cag.QueryResult) api.QueryResponse {
	return api.QueryResponse{
		Success:  true,
		Response: result.Response,
		Sources:  result.Sources,
		Query:    query,
	}
}

func ToIngestResponse(result cag.IngestDocumentResult) api.IngestResponse {
	return api.IngestResponse{
		Success:     result.FailedChunks < result.TotalChunks,
		DocumentId:  result.DocumentId,
		TotalChunks: result.TotalChunks,
		BuiltChunks: result.BuiltChunks,
		Status:      string(result.Status),
	}
}

func ToHealthResponse(issues []string, cfg config.Config) api.HealthResponse {
	status := "healthy"
	if len(issues) > 0 {
		status = "unhealthy"
	}
	return api.HealthResponse{
		Status: status,
		Issues: issues,
		Config: api.HealthConfig{
			ModelPath:     cfg.ModelPath,
			MasterKVCache: cfg.MasterKVCache,
			KVCacheDir:    cfg.KVCacheDir,
			MaxContext:    cfg.MaxContext,
			Threads:       cfg.Threads,
			BatchSize:     cfg.BatchSize,
		},
	}
}

func Failure(message string) api.QueryResponse {
	return api.QueryResponse{Success: false, Error: message}
}
