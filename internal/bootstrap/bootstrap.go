// Package bootstrap builds the ledger and its dependencies from a resolved
// config. The API server and the admin CLI share it.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"mediaguard/backend/internal/config"
	"mediaguard/backend/internal/identity"
	"mediaguard/backend/internal/ledger"
	"mediaguard/backend/internal/models"
	"mediaguard/backend/internal/moderation"
	"mediaguard/backend/internal/storage"
)

// OpenStorage connects to the configured database and migrates the schema.
func OpenStorage(ctx context.Context, cfg config.Config) (*storage.Service, error) {
	level := gormlogger.Warn
	if cfg.LogLevel == "debug" {
		level = gormlogger.Info
	}
	db, err := storage.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.DatabaseDriver, err)
	}

	s := storage.NewStorageService(db)
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// ConnectRedis returns nil when Redis is not configured.
func ConnectRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return rdb, nil
}

// OpenLedger attaches a ledger service to store using the configured owner,
// token and thresholds.
func OpenLedger(ctx context.Context, cfg config.Config, store storage.Storage, pub ledger.Publisher, logger *slog.Logger) (*ledger.Service, error) {
	owner, err := identity.Parse(cfg.OwnerAddress)
	if err != nil {
		return nil, fmt.Errorf("owner address: %w", err)
	}
	token, err := identity.Parse(cfg.TokenAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrInvalidTokenLink, err)
	}

	return ledger.New(ctx, store, identity.NewAuthority(owner), models.TokenLink{Address: token}, ledger.Options{
		Policy: moderation.Policy{
			VulgarityThreshold:  cfg.VulgarityThreshold,
			SuspensionThreshold: cfg.SuspensionThreshold,
		},
		Publisher: pub,
		Logger:    logger,
	})
}
