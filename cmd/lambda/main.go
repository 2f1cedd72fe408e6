package main

import (
	"context"
	"os"

	awslambda "github.com/aws/aws-lambda-go/lambda"

	"github.com/shopverse/category_service/cache"
	"github.com/shopverse/category_service/config"
	"github.com/shopverse/category_service/internal/lambda"
	"github.com/shopverse/category_service/logger"
	"github.com/shopverse/category_service/repository"
	"github.com/shopverse/category_service/service"
)

func main() {
	ctx := context.Background()
	logger.Init(os.Getenv("APP_ENV"))
	defer logger.Sync()
	log := logger.Get()

	serverCfg, err := config.LoadServerConfig(ctx, config.NewEnvProvider(""))
	if err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}
	provider, err := config.NewProvider(ctx)
	if err != nil {
		log.Fatalw("failed to create config provider", "error", err)
	}

	repo, err := repository.Open(ctx, serverCfg, provider)
	if err != nil {
		log.Fatalw("failed to open repository", "error", err)
	}

	treeCache, err := cache.New(ctx, cache.Options{
		Backend:       serverCfg.CacheBackend,
		TTL:           serverCfg.CacheTTL,
		RedisAddr:     serverCfg.RedisAddr,
		RedisPassword: serverCfg.RedisPassword,
		RedisDB:       serverCfg.RedisDB,
		DynamoTable:   serverCfg.DynamoTable,
	})
	if err != nil {
		log.Fatalw("failed to create cache", "error", err)
	}

	svc := service.NewCategoryService(repo, treeCache, log)
	awslambda.Start(lambda.NewHandler(svc, log).Handle)
}
