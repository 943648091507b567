package middleware

import (
	"net/http"
	"strconv"

	"github.com/AbelCoplet/llama-cag-n8N/internal/config"
	"github.com/AbelCoplet/llama-cag-n8N/internal/handlers"
	"github.com/AbelCoplet/llama-cag-n8N/internal/metrics"
	"github.com/AbelCoplet/llama-cag-n8N/pkg/logger_i"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
}

var authToken string

// Init wires the configured bearer token. An empty token disables auth,
// matching the original bridge's open default for in-network n8n calls.
func Init(cfg config.Config) {
	authToken = cfg.AuthToken
}

var CreateCacheHandler = Wrap(handlers.CreateCacheHandler)
var QueryHandler = Wrap(handlers.QueryHandler)
var QueryMultiHandler = Wrap(handlers.QueryMultiHandler)
var PostIngestHandler = Wrap(handlers.PostIngestHandler)

// health, root and metrics stay reachable without a token so probes and
// Prometheus keep working
var HealthHandler = WrapPublic(handlers.HealthHandler)
var RootHandler = WrapPublic(handlers.RootHandler)

func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return wrap(next, true)
}

func WrapPublic(next http.HandlerFunc) http.HandlerFunc {
	return wrap(next, false)
}

func wrap(next http.HandlerFunc, authRequired bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: 200} //metrics
		re := processRequest(requestResponseStruct{req: r, writer: rec}, authRequired)

		if re.badRequest.isBadRequest {
			handleBadRequest(re)
			return
		}
		next(rec, re.req)

		metrics.HttpRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.Status)).Inc() //metrics
	}
}

func processRequest(re requestResponseStruct, authRequired bool) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	re.logger.Debug("New request received", "path", re.req.URL.Path)

	re = injectTrace(re)
	if authRequired {
		re = authenticate(re)
		if re.badRequest.isBadRequest {
			return re //stop if auth fails
		}
	}
	re = rateLimiter(re)
	return re
}
