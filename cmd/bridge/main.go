package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/AbelCoplet/llama-cag-n8N/internal/cag"
	"github.com/AbelCoplet/llama-cag-n8N/internal/config"
	"github.com/AbelCoplet/llama-cag-n8N/internal/data/sqliteStore"
	"github.com/AbelCoplet/llama-cag-n8N/internal/engine"
	"github.com/AbelCoplet/llama-cag-n8N/internal/handlers"
	"github.com/AbelCoplet/llama-cag-n8N/internal/middleware"
	"github.com/AbelCoplet/llama-cag-n8N/internal/registry"
	"github.com/AbelCoplet/llama-cag-n8N/internal/server"
	"github.com/AbelCoplet/llama-cag-n8N/pkg/logger_i"
)

var listenAddr string

func main() {

	logger_i.Init()
	var logger = logger_i.NewLogger("main")

	//config
	cfg := config.Load()
	flag.StringVar(&listenAddr, "listen-addr", cfg.ListenAddr, "server listen address")
	flag.Parse()
	cfg.ListenAddr = listenAddr

	store, err := sqliteStore.NewStore(cfg.DBPath())
	if err != nil {
		logger.Error("Registry database failed to open. Shutting down.", "path", cfg.DBPath(), "err", err)
		return
	}

	reg := registry.New(store)
	gateway := engine.NewGateway(cfg)
	cagService := cag.NewService(gateway, reg, store, cfg)

	handlers.InitCagHandlers(cagService, gateway, cfg)
	middleware.Init(cfg)

	if issues := gateway.Healthy(); len(issues) > 0 {
		// report but keep serving; /health exposes the same list
		logger.Warn("Engine not fully ready", "issues", issues)
	}

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		CloseGateway:     gateway.Close,
		CloseStore:       store.Close,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(cfg.ListenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}
