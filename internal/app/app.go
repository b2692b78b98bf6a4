package app

import (
	"net/http"

	"stafflink/internal/approval"
	"stafflink/internal/automation"
	"stafflink/internal/config"
	"stafflink/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// BuildApp connects the infrastructure and mounts every route on router.
// The returned func releases the connections.
func BuildApp(cfg *config.Config, router *gin.Engine, logger *zap.Logger) (func(), error) {
	in, err := connectInfra(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("infrastructure ready")

	m := registerModules(cfg, in.sqlDB, in.gormDB, in.redis, logger)
	registerRoutes(cfg, router, m, in.redis, logger)

	return in.Close, nil
}

func registerRoutes(cfg *config.Config, router *gin.Engine, m *modules, rdb *redis.Client, logger *zap.Logger) {
	router.Use(middleware.RequestID(), middleware.ContextLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		automation.RegisterRoutes(api, automation.NewHandler(m.runner, logger),
			middleware.RateLimitByIP(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst))
		approval.RegisterRoutes(api, approval.NewHandler(m.evaluator, logger), middleware.Idempotency(rdb))
	}
}
