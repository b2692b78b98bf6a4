package app

import (
	"context"
	"database/sql"
	"fmt"

	"stafflink/internal/config"
	"stafflink/internal/shared/connection"
	"stafflink/migrations"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type infra struct {
	gormDB *gorm.DB
	sqlDB  *sql.DB
	redis  *redis.Client
}

// connectInfra opens Postgres and, when configured, Redis. Redis is optional:
// without it jobs run without the cross-process run lock.
func connectInfra(cfg *config.Config, logger *zap.Logger) (*infra, error) {
	gormDB, err := connection.ConnectGORMWithRetry(connection.PostgresConfig{
		Host:            cfg.Database.Host,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Name:            cfg.Database.Name,
		Port:            cfg.Database.Port,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, cfg.Database.MaxRetries)
	if err != nil {
		return nil, err
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		applied, err := migrations.Apply(context.Background(), sqlDB)
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("schema migrations applied", zap.Strings("files", applied))
	}

	in := &infra{gormDB: gormDB, sqlDB: sqlDB}
	if cfg.Redis.Addr == "" {
		logger.Warn("REDIS_ADDR not set, job run lock disabled")
		return in, nil
	}

	rdb, err := connection.ConnectRedisWithRetry(cfg.Redis.Addr, cfg.Redis.Password, cfg.Database.MaxRetries)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	in.redis = rdb
	return in, nil
}

func (in *infra) Close() {
	if in.redis != nil {
		_ = in.redis.Close()
	}
	_ = in.sqlDB.Close()
}
