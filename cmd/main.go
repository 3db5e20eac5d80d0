/*
Package main is the entry point for the Parley chat server.

It loads configuration, initializes logging, wires the message store and
the synchronization engine, starts the HTTP server, and handles OS
signals for graceful shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parley/internal/app/chat"
	"parley/internal/app/store"
	"parley/internal/configs"
	"parley/internal/handler"
	"parley/internal/pkg/logx"
)

func main() {
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("room_catalog", cfg.RoomCatalog).
		Bool("dynamic_rooms", cfg.AllowDynamicRooms).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var messageStore chat.MessageStore
	if cfg.DatabaseDSN != "" {
		pgStore, err := store.NewPostgresStore(cfg.DatabaseDSN)
		if err != nil {
			logx.Fatal(err, "Failed to connect to message store")
		}
		defer pgStore.Close()
		messageStore = pgStore
	} else {
		logx.Warn("DATABASE_URL not set. Message history lives in memory only.")
		messageStore = store.NewMemoryStore()
	}

	router := chat.NewRouter(cfg, messageStore)

	httpRouter := handler.Router(&handler.AppDeps{
		Router: router,
		Config: cfg,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      httpRouter,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Parley server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	router.Shutdown()

	logx.Info("Server gracefully stopped.")
}
