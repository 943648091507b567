package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/AbelCoplet/llama-cag-n8N/internal/adapter"
	"github.com/AbelCoplet/llama-cag-n8N/internal/api"
	"github.com/AbelCoplet/llama-cag-n8N/internal/cag"
	"github.com/AbelCoplet/llama-cag-n8N/internal/config"
	"github.com/AbelCoplet/llama-cag-n8N/internal/engine"
	"github.com/AbelCoplet/llama-cag-n8N/pkg/logger_i"
)

var (
	logCH      *logger_i.Logger
	cagService cag.Service
	gateway    engine.Gateway
	bridgeCfg  config.Config
)

func InitCagHandlers(service cag.Service, gw engine.Gateway, cfg config.Config) {
	logCH = logger_i.NewLogger("Handlers")
	cagService = service
	gateway = gw
	bridgeCfg = cfg
}

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("CAG Bridge Server Running\n"))
}

// CreateCacheHandler builds one KV cache for a chunk of text. The text
// arrives inline or via tempFilePath (the n8n workflow writes extracted
// text to a shared temp file); temp files are removed after a successful
// build.
func CreateCacheHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logCH.Warn("Invalid Context by request ", r.RemoteAddr)
		return
	}

	var requestData api.CreateCacheRequest
	defer closeBody(r.Body)
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil || requestData.DocumentId == "" {
		logCH.Warn("Bad create-cache request: ", "error:", err)
		WriteErrorResponse(w, http.StatusBadRequest, "documentId is required")
		return
	}

	text := requestData.Text
	if text == "" && requestData.TempFilePath != "" {
		raw, err := os.ReadFile(requestData.TempFilePath)
		if err != nil {
			logCH.Warn("Could not read temp file", "path", requestData.TempFilePath, "err", err)
			WriteErrorResponse(w, http.StatusBadRequest, "could not read tempFilePath")
			return
		}
		text = string(raw)
	}

	cachePath := requestData.KVCachePath
	if cachePath == "" {
		cachePath = filepath.Join(bridgeCfg.KVCacheDir, requestData.DocumentId+".bin")
	}

	result, err := cagService.CreateCache(r.Context(), cag.CreateCacheRequest{
		DocumentId:      requestData.DocumentId,
		FileName:        requestData.FileName,
		ChunkId:         requestData.ChunkId,
		ChunkIndex:      requestData.ChunkIndex,
		TotalChunks:     requestData.TotalChunks,
		SectionTitle:    requestData.SectionTitle,
		Text:            text,
		CachePath:       cachePath,
		ContextSize:     requestData.ContextSize,
		EstimatedTokens: requestData.EstimatedTokens,
		SetAsMaster:     requestData.SetAsMaster,
	})
	if err != nil {
		logCH.Error("Cache build failed", "documentId", requestData.DocumentId, "err", err)
		writeJsonResponse(w, statusFor(err), api.CreateCacheResponse{
			Success:    false,
			DocumentId: requestData.DocumentId,
			Error:      err.Error(),
			Output:     result.Output,
		})
		return
	}

	if requestData.TempFilePath != "" {
		if err := os.Remove(requestData.TempFilePath); err != nil && !os.IsNotExist(err) {
			logCH.Warn("Could not remove temp file", "path", requestData.TempFilePath, "err", err)
		}
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToCreateCacheResponse(result))
}

// QueryHandler answers a question against one KV cache, defaulting to the
// master cache when kvCachePath is omitted.
func QueryHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logCH.Warn("Invalid Context by request ", r.RemoteAddr)
		return
	}

	var requestData api.QueryRequest
	defer closeBody(r.Body)
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil || requestData.Query == "" {
		logCH.Warn("Bad query request: ", "error:", err)
		WriteErrorResponse(w, http.StatusBadRequest, "query is required")
		return
	}

	result, err := cagService.Query(r.Context(), cag.QueryRequest{
		Query:         requestData.Query,
		CachePath:     requestData.KVCachePath,
		MaxTokens:     requestData.MaxTokens,
		Temperature:   requestData.Temperature,
		TopP:          requestData.TopP,
		RepeatPenalty: requestData.RepeatPenalty,
	})
	if err != nil {
		logCH.Error("Query failed", "err", err)
		writeJsonResponse(w, statusFor(err), api.QueryResponse{
			Success: false,
			Query:   requestData.Query,
			Error:   err.Error(),
		})
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToQueryResponse(requestData.Query, result))
}

// QueryMultiHandler answers a question spanning several KV caches.
func QueryMultiHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logCH.Warn("Invalid Context by request ", r.RemoteAddr)
		return
	}

	var requestData api.MultiQueryRequest
	defer closeBody(r.Body)
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil || requestData.Query == "" {
		logCH.Warn("Bad multi-query request: ", "error:", err)
		WriteErrorResponse(w, http.StatusBadRequest, "query is required")
		return
	}

	result, err := cagService.QueryMulti(r.Context(), cag.MultiQueryRequest{
		Query:         requestData.Query,
		CachePaths:    requestData.KVCachePaths,
		MaxTokens:     requestData.MaxTokens,
		Temperature:   requestData.Temperature,
		TopP:          requestData.TopP,
		RepeatPenalty: requestData.RepeatPenalty,
	})
	if err != nil {
		logCH.Error("Multi-cache query failed", "err", err)
		writeJsonResponse(w, statusFor(err), api.QueryResponse{
			Success: false,
			Query:   requestData.Query,
			Error:   err.Error(),
		})
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToQueryResponse(requestData.Query, result))
}

// PostIngestHandler splits a whole document into chunks and builds a cache
// per chunk.
func PostIngestHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logCH.Warn("Invalid Context by request ", r.RemoteAddr)
		return
	}

	var requestData api.IngestRequest
	defer closeBody(r.Body)
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil || requestData.DocumentId == "" {
		logCH.Warn("Bad ingest request: ", "error:", err)
		WriteErrorResponse(w, http.StatusBadRequest, "documentId is required")
		return
	}

	text := requestData.Text
	if text == "" && requestData.TempFilePath != "" {
		raw, err := os.ReadFile(requestData.TempFilePath)
		if err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, "could not read tempFilePath")
			return
		}
		text = string(raw)
	}

	result, err := cagService.IngestDocument(r.Context(), cag.IngestDocumentRequest{
		DocumentId:  requestData.DocumentId,
		FileName:    requestData.FileName,
		Text:        text,
		SetAsMaster: requestData.SetAsMaster,
	})
	if err != nil {
		logCH.Error("Ingestion failed", "documentId", requestData.DocumentId, "err", err)
		writeJsonResponse(w, statusFor(err), api.IngestResponse{
			Success:    false,
			DocumentId: requestData.DocumentId,
			Error:      err.Error(),
		})
		return
	}

	if requestData.TempFilePath != "" {
		if err := os.Remove(requestData.TempFilePath); err != nil && !os.IsNotExist(err) {
			logCH.Warn("Could not remove temp file", "path", requestData.TempFilePath, "err", err)
		}
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToIngestResponse(result))
}

// HealthHandler reports engine readiness plus the effective configuration,
// so the n8n workflow can verify paths before sending work.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	issues := gateway.Healthy()
	resp := adapter.ToHealthResponse(issues, bridgeCfg)

	code := http.StatusOK
	if resp.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJsonResponse(w, code, resp)
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		logCH.Error("Couldn't close the request reader :", err)
	}
}
