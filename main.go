package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shopverse/category_service/cache"
	"github.com/shopverse/category_service/config"
	"github.com/shopverse/category_service/handlers"
	"github.com/shopverse/category_service/logger"
	"github.com/shopverse/category_service/repository"
	"github.com/shopverse/category_service/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		logger.Get().Fatalw("failed to load .env", "error", err)
	}
	logger.Init(os.Getenv("APP_ENV"))
	defer logger.Sync()
	log := logger.Get()

	if err := run(ctx); err != nil {
		log.Fatalw("server stopped", "error", err)
	}
}

func run(ctx context.Context) error {
	log := logger.Get()

	serverCfg, err := config.LoadServerConfig(ctx, config.NewEnvProvider(""))
	if err != nil {
		return err
	}
	if config.NewEnvProvider("").GetEnvironment() == config.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	provider, err := config.NewProvider(ctx)
	if err != nil {
		return err
	}

	repo, err := repository.Open(ctx, serverCfg, provider)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Cleanup(context.Background()); err != nil {
			log.Warnw("failed to close repository", "error", err)
		}
	}()

	treeCache, err := cache.New(ctx, cache.Options{
		Backend:       serverCfg.CacheBackend,
		TTL:           serverCfg.CacheTTL,
		RedisAddr:     serverCfg.RedisAddr,
		RedisPassword: serverCfg.RedisPassword,
		RedisDB:       serverCfg.RedisDB,
		DynamoTable:   serverCfg.DynamoTable,
	})
	if err != nil {
		return err
	}

	svc := service.NewCategoryService(repo, treeCache, log)
	if err := svc.NormalizeAll(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              serverCfg.Addr(),
		Handler:           handlers.NewRouter(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("category service listening", "addr", srv.Addr, "storage", serverCfg.StorageDriver, "cache", serverCfg.CacheBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Infow("shutting down")
	return srv.Shutdown(shutdownCtx)
}
