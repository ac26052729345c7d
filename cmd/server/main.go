package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pocketgate/pocketgate/internal/approval"
	"github.com/pocketgate/pocketgate/internal/audit"
	"github.com/pocketgate/pocketgate/internal/auth"
	"github.com/pocketgate/pocketgate/internal/config"
	"github.com/pocketgate/pocketgate/internal/pairing"
	"github.com/pocketgate/pocketgate/internal/server"
	"github.com/pocketgate/pocketgate/internal/webpush"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info("shutdown signal received", "signal", sig.String())
		cancel()
	}()

	if err := run(ctx, log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	pairingStore, approvalStore, closeDB, err := buildStores(cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	registry := pairing.NewRegistry(pairingStore)
	requests := approval.NewRequests(approvalStore)
	authenticator := auth.NewAuthenticator(registry)

	key, err := config.LoadVAPIDKey(cfg)
	if err != nil {
		return fmt.Errorf("loading VAPID key: %w", err)
	}
	vapid, err := webpush.NewVAPIDKey(key, cfg.VAPIDSubject)
	if err != nil {
		return err
	}
	if cfg.DevEphemeralKey {
		log.Warn("using ephemeral VAPID key; push subscriptions will not survive a restart")
	}
	sender := webpush.NewSender(vapid, log)

	srvCfg := server.Config{
		Host:         cfg.ServerHost,
		Port:         cfg.ServerPort,
		ReadTimeout:  time.Duration(cfg.ServerReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.ServerWriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.ServerIdleTimeoutSec) * time.Second,
		WebAppOrigin: cfg.WebAppOrigin,
		Environment:  cfg.Environment,
	}

	srv := server.New(
		srvCfg,
		log,
		registry,
		requests,
		authenticator,
		sender,
		vapid.PublicKey(),
		audit.NewMemorySink(),
	)

	return srv.Start(ctx)
}

// buildStores returns the pairing and approval stores, persistent when a
// SQLite path is configured and in-memory otherwise.
func buildStores(cfg config.Config, log *slog.Logger) (pairing.Store, approval.Store, func(), error) {
	if cfg.SQLitePath == "" {
		log.Info("using in-memory stores")
		return pairing.NewMemoryStore(), approval.NewMemoryStore(), func() {}, nil
	}

	db, err := sql.Open("sqlite3", cfg.SQLitePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening sqlite database %q: %w", cfg.SQLitePath, err)
	}
	// Actors serialize writes per key already; a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	pairingStore, err := pairing.NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	approvalStore, err := approval.NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	log.Info("using sqlite stores", "path", cfg.SQLitePath)
	return pairingStore, approvalStore, func() { db.Close() }, nil
}
