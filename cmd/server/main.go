package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"dukaanpos/backend/internal/cache"
	"dukaanpos/backend/internal/config"
	"dukaanpos/backend/internal/httpapi"
	"dukaanpos/backend/internal/service"
	"dukaanpos/backend/internal/store"
	"dukaanpos/backend/internal/store/memory"
	"dukaanpos/backend/internal/store/postgres"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("[main] config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var repo store.Repository
	if cfg.DatabaseURL != "" {
		pg, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("[main] postgres: %v", err)
		}
		repo = pg
		logger.Printf("[main] using postgres store")
	} else {
		repo = memory.NewStore()
		logger.Printf("[main] using in-memory store with seed data")
	}
	defer repo.Close()

	var lookup cache.ProductLookup = cache.Noop{}
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		defer redisCache.Close()
		lookup = redisCache
		logger.Printf("[main] product lookup cache on %s", cfg.RedisAddr)
	}

	svc := service.NewService(repo, lookup, logger)
	auth := httpapi.NewAuth(cfg.JWTSecret, cfg.ManagerPIN, cfg.TokenTTL, logger)
	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpapi.NewServer(svc, auth, logger).Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("[main] listening on %s", cfg.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("[main] server: %v", err)
		}
	case <-ctx.Done():
		logger.Printf("[main] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("[main] shutdown: %v", err)
		}
	}
}
