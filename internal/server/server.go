package server

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AbelCoplet/llama-cag-n8N/internal/config"
	"github.com/AbelCoplet/llama-cag-n8N/internal/middleware"
	"github.com/AbelCoplet/llama-cag-n8N/pkg/logger_i"
)

var (
	server  *http.Server
	_logger *logger_i.Logger
)

type ShutdownParams struct {
	GracefulShutdown chan os.Signal
	StopExecution    chan bool
	CloseGateway     func()
	CloseStore       func() error
}

func CreateServer(listenAddr string) {
	_logger = logger_i.NewLogger("Server")

	r := chi.NewRouter()
	r.Get("/", middleware.RootHandler)
	r.Get("/health", middleware.HealthHandler)
	r.Post("/create-cache", middleware.CreateCacheHandler)
	r.Post("/query", middleware.QueryHandler)
	r.Post("/query-multi", middleware.QueryMultiHandler)
	r.Post("/ingest-document", middleware.PostIngestHandler)
	r.Handle("/metrics", promhttp.Handler())

	server = &http.Server{
		Addr:         listenAddr,
		Handler:      r,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	_logger.Info("Server is listening at", "address", listenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_logger.Error("Server crashed", "error :", err.Error(), "addr", listenAddr)
	}
}

func ShutDownHandler(shutdownParams ShutdownParams) {
	state := <-shutdownParams.GracefulShutdown
	println("\nServer is shutting down", state)

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownContextTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		server.SetKeepAlivesEnabled(false)

		if err := server.Shutdown(ctx); err != nil {
			_logger.Error("Could not shutdown gracefully: %s", err)
		}

		//drain the engine queue, then release the registry database
		shutdownParams.CloseGateway()
		if err := shutdownParams.CloseStore(); err != nil {
			_logger.Error("Store close failed", "err", err)
		}
		close(shutdownParams.StopExecution)
		close(done)
	}()

	select {
	case <-done:
		_logger.Info("Gracefully is shutting down")
	case <-ctx.Done():
		_logger.Info("Force Shut down")
		os.Exit(1)
	}
}
