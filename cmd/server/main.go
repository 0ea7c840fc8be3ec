package main

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cipherchat/cipherchat/internal/logger"
	"github.com/cipherchat/cipherchat/internal/server"
)

func main() {
	// Create configuration
	config := server.NewConfigFromEnv()
	server.SetConfig(config)

	// Initialize structured logging.
	log, err := logger.New(os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	// Start the hub; it owns the chat engine.
	hub := server.NewHub(log)
	go hub.Run()

	// Setup routes and start the server.
	mux := server.NewRouter(hub, log)
	httpServer := server.CreateServer(config.Port, mux)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()
	log.Info("server listening", zap.String("addr", config.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	case sig := <-quit:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	if err := server.ShutdownServer(httpServer, 10*time.Second, log); err != nil {
		log.Warn("http shutdown incomplete", zap.Error(err))
	}
	if err := hub.Shutdown(10 * time.Second); err != nil {
		log.Warn("hub shutdown incomplete", zap.Error(err))
	}
}
