package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AbelCoplet/llama-cag-n8N/internal/adapter"
	"github.com/AbelCoplet/llama-cag-n8N/internal/cag"
	"github.com/AbelCoplet/llama-cag-n8N/internal/config"
	"github.com/AbelCoplet/llama-cag-n8N/internal/engine"
	"github.com/AbelCoplet/llama-cag-n8N/internal/registry"
)

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but can't send a clean status code now
		logCH.Error("Error encoding response: %v", err)
	}
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, message string) {
	writeJsonResponse(w, httpCode, adapter.Failure(message))
}

func validateContext(ctx context.Context) bool {
	if trace, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok {
		logCH.With("traceId:", trace)
	}
	if ctx.Err() != nil {
		logCH.Warn("context error", ctx.Err())
		return false
	}

	select {
	case <-ctx.Done():
		logCH.Warn("context cancelled")
		return false
	default:
		return true
	}
}

// statusFor maps service failures onto HTTP codes. Anything unrecognized is
// a plain 500 so the bridge never leaks a stack trace to n8n.
func statusFor(err error) int {
	switch {
	case errors.Is(err, cag.ErrEmptyInput), errors.Is(err, cag.ErrNoCacheRefs):
		return http.StatusBadRequest
	case errors.Is(err, cag.ErrCacheNotFound), errors.Is(err, registry.ErrUnknownChunk):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrBuildInFlight):
		return http.StatusConflict
	case errors.Is(err, engine.ErrQueueTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrModelNotFound), errors.Is(err, cag.ErrNoCachesAvailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
