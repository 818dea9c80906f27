// Package storage aggregates the external stores the service talks to:
// MinIO object storage, MySQL persistence and Redis.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/logger"
)

// Storage is the aggregate of all storage dependencies. Individual members
// are nil when not configured; screening degrades gracefully around them.
type Storage struct {
	MinIO *MinIO
	MySQL *MySQL
	Redis *redis.Client
}

// NewStorage initializes whatever the configuration enables. A failing
// optional store logs a warning and leaves its slot nil. Redis failing when
// configured is reported to the caller, because both the async-job mode and
// the token ledger depend on it.
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration must not be nil")
	}

	s := &Storage{}

	if cfg.MinIO.Endpoint != "" {
		minioStore, err := NewMinIO(ctx, &cfg.MinIO)
		if err != nil {
			logger.Warn().Err(err).Msg("minio unavailable, resume archival disabled")
		} else {
			s.MinIO = minioStore
			logger.Info().Str("endpoint", cfg.MinIO.Endpoint).Msg("minio initialized")
		}
	}

	if cfg.MySQL.Host != "" {
		mysqlStore, err := NewMySQL(&cfg.MySQL)
		if err != nil {
			logger.Warn().Err(err).Msg("mysql unavailable, result persistence disabled")
		} else {
			s.MySQL = mysqlStore
			logger.Info().Str("host", cfg.MySQL.Host).Msg("mysql initialized")
		}
	}

	if cfg.Redis.Address != "" {
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  time.Duration(cfg.Redis.DialTimeoutSeconds) * time.Second,
			ReadTimeout:  time.Duration(cfg.Redis.ReadTimeoutSeconds) * time.Second,
			WriteTimeout: time.Duration(cfg.Redis.WriteTimeoutSeconds) * time.Second,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis at %s: %w", cfg.Redis.Address, err)
		}
		s.Redis = client
		logger.Info().Str("address", cfg.Redis.Address).Msg("redis initialized")
	}

	return s, nil
}

// Close releases every initialized store.
func (s *Storage) Close() {
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			logger.Warn().Err(err).Msg("close mysql")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("close redis")
		}
	}
}
