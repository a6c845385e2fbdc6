package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Tyrowin/pairchat/internal/attachment"
	"github.com/Tyrowin/pairchat/internal/logging"
	"github.com/Tyrowin/pairchat/internal/migrate"
	"github.com/Tyrowin/pairchat/internal/presence"
	"github.com/Tyrowin/pairchat/internal/repository"
	"github.com/Tyrowin/pairchat/internal/repository/badgerdb"
	"github.com/Tyrowin/pairchat/internal/repository/postgres"
	"github.com/Tyrowin/pairchat/internal/server"
	"github.com/Tyrowin/pairchat/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pairchat:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := server.LoadConfig()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, msgs, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	files, err := attachment.New(cfg.UploadDir, cfg.MaxUploadSize)
	if err != nil {
		return err
	}

	auth := service.NewAuthService(users, []byte(cfg.JWTSecret), cfg.JWTTTL)
	messages := service.NewMessageService(msgs, files, log)

	registry := presence.NewRegistry()
	router := presence.NewRouter(registry, log)
	ingress := server.NewIngress(registry, router, messages, cfg.StoreTimeout, log)
	hub := server.NewHub(*cfg, ingress, log)
	go hub.Run()

	handlers := server.NewHandlers(server.Deps{
		Config:   *cfg,
		Hub:      hub,
		Ingress:  ingress,
		Registry: registry,
		Auth:     auth,
		Messages: messages,
		Files:    files,
		Log:      log,
	})
	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(handlers))

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.StartServer(httpServer, log) }()

	log.Info("PairChat server started",
		zap.String("addr", cfg.Port),
		zap.String("store", cfg.StoreDriver),
		zap.Strings("origins", cfg.AllowedOrigins))

	select {
	case err := <-serveErr:
		if err != nil {
			_ = hub.Shutdown(cfg.ShutdownTimeout)
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, log); err != nil {
		log.Warn("http shutdown incomplete", zap.Error(err))
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		log.Warn("hub shutdown incomplete", zap.Error(err))
	}
	return nil
}

// openStore returns the repositories for the configured driver and a func releasing them.
func openStore(ctx context.Context, cfg *server.Config, log *zap.Logger) (repository.UserRepository, repository.MessageRepository, func(), error) {
	switch cfg.StoreDriver {
	case server.DriverPostgres:
		if err := migrate.Up(ctx, cfg.DatabaseDSN); err != nil {
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
		db, err := postgres.New(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		return postgres.NewUserRepo(db), postgres.NewMessageRepo(db), db.Close, nil
	default:
		store, err := badgerdb.Open(cfg.BadgerPath, log)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open badger: %w", err)
		}
		closeFn := func() {
			if err := store.Close(); err != nil {
				log.Warn("close badger", zap.Error(err))
			}
		}
		return badgerdb.NewUserRepo(store), badgerdb.NewMessageRepo(store), closeFn, nil
	}
}
