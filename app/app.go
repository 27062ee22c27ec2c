package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coinbox-app/coinbox-api/configs"
	"github.com/coinbox-app/coinbox-api/internal/handlers"
	"github.com/coinbox-app/coinbox-api/internal/services"
	"github.com/coinbox-app/coinbox-api/pkg"
	"github.com/coinbox-app/coinbox-api/pkg/cache"
	"github.com/coinbox-app/coinbox-api/pkg/database"
	middleware "github.com/coinbox-app/coinbox-api/pkg/middlewares"
	"github.com/coinbox-app/coinbox-api/pkg/repositories"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewApp wires dependencies, builds the Gin engine, and returns an *http.Server and a cleanup func.
// It reads configuration from environment variables via configs.Load.
func NewApp(ctx context.Context, logger *zap.Logger) (*http.Server, func(), error) {
	// Load config
	cfg, err := configs.Load(logger)
	if err != nil {
		return nil, nil, err
	}

	// Initialize postgres db
	dbConfig := database.Config{
		PrimaryDSN:  cfg.PrimaryDbAddr,
		ReplicaDSNs: []string{cfg.ReplicaDbAddr},
		MaxConns:    cfg.MaxDbCons,
		MinConns:    cfg.MinDbCons,
	}
	db, disconnect, err := database.New(ctx, logger, dbConfig)
	if err != nil {
		return nil, nil, err
	}

	// Run migrations on primary
	if err := database.RunMigrations(logger, cfg.PrimaryDbAddr); err != nil {
		disconnect()
		return nil, nil, err
	}

	// Optional Redis for the distributed write limiter
	var redisClient *redis.Client
	redisClose := func() {}
	if cfg.RedisAddr != "" {
		redisClient, redisClose, err = cache.New(ctx, cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			disconnect()
			return nil, nil, err
		}
	}
	limiter := pkg.NewDistributedLimiter(redisClient, "coinbox:write_rate",
		cfg.WriteRatePerSec, cfg.WriteRateBurst, time.Minute, logger)

	// Setup dependencies
	baseHandler := handlers.NewBaseHandler(logger)

	txRepo := repositories.NewTransactionRepository(db)
	userRepo := repositories.NewUserRepository(db)
	ledgerService := services.NewLedgerService(logger, db, txRepo, userRepo)
	ledgerHandler := handlers.NewLedgerHandler(logger, ledgerService)

	// Router
	r := gin.Default()

	api := r.Group("/api/v1")
	api.Use(middleware.TraceID())
	api.Use(middleware.Metrics())
	api.Use(middleware.Owner())

	ledgerHandler.RegisterRoutes(api, middleware.RateLimit(limiter))
	baseHandler.RegisterRoutes(r)

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	cleanup := func() {
		disconnect()
		redisClose()
	}

	return srv, cleanup, nil
}
