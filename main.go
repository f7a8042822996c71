package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/serroba/line-docs/internal/api"
	"github.com/serroba/line-docs/internal/auth"
	"github.com/serroba/line-docs/internal/collab"
	"github.com/serroba/line-docs/internal/config"
	"github.com/serroba/line-docs/internal/notify"
	"github.com/serroba/line-docs/internal/storage"
	"github.com/serroba/line-docs/internal/ws"
)

// devTokenSecret signs tokens when no secret is configured. Fine for local
// development, useless in production.
const devTokenSecret = "line-docs-dev-secret"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	secret := cfg.Auth.TokenSecret
	if secret == "" {
		logger.Warn("no token secret configured, using development default")

		secret = devTokenSecret
	}

	store, err := openStore(cfg)
	if err != nil {
		logger.Error("open document store", "error", err)
		os.Exit(1)
	}

	hub := ws.NewHub()

	manager := collab.NewManager(collab.ManagerConfig{
		Store:         store,
		Hub:           hub,
		VersionPolicy: collab.NewVersionPolicy(cfg.Collab.AutoVersionInterval()),
		Logger:        logger,
	})

	autoLocker := collab.NewAutoLocker(cfg.Collab.AutoLockDelay(), func(docID string, client *ws.Client, line int) {
		manager.Session(docID).AutoLock(client, line)
	})

	server := api.NewServer(api.ServerConfig{
		Manager:    manager,
		Store:      store,
		Hub:        hub,
		Verifier:   auth.NewHMACVerifier([]byte(secret)),
		AutoLocker: autoLocker,
		Notifier:   notify.NewLogSink(logger),
		Logger:     logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting server", "addr", cfg.Server.Addr, "store", cfg.Store.Backend)

	if err := httpServer.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.Store.Backend == "sqlite" {
		return storage.NewSQLiteStore(cfg.Store.SQLitePath)
	}

	return storage.NewMemoryStore(), nil
}
