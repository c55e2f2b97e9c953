// Package bootstrap assembles the adapters selected by configuration.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	"fleetpilot/internal/adapter/repo/memory"
	gormrepo "fleetpilot/internal/adapter/repo/gorm"
	redisrepo "fleetpilot/internal/adapter/repo/redis"
	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/config"
)

type Stores struct {
	Audit     ports.AuditRepository
	Tokens    ports.TokenRepository
	TxManager ports.TxManager
	Backend   string
	closers   []func() error
}

func (s *Stores) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenStores picks memory, sqlite or postgres from the DSN and, when a redis
// address is configured, moves confirmation tokens to redis.
func OpenStores(ctx context.Context, cfg config.Config) (*Stores, error) {
	s := &Stores{}
	switch {
	case cfg.DBDSN == "":
		store := memory.NewStore()
		s.Audit = memory.NewAuditRepo(store)
		s.Tokens = memory.NewTokenRepo(store)
		s.TxManager = memory.NewTxManager(store)
		s.Backend = "memory"
	default:
		db, err := gormrepo.Open(cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			s.closers = append(s.closers, sqlDB.Close)
		}
		if gormrepo.IsSQLite(cfg.DBDSN) {
			err = gormrepo.AutoMigrate(ctx, db)
			s.Backend = "sqlite"
		} else {
			err = gormrepo.ApplyMigrations(ctx, db, os.DirFS(cfg.MigrationsDir))
			s.Backend = "postgres"
		}
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		s.Audit = gormrepo.NewAuditRepo(db)
		s.Tokens = gormrepo.NewTokenRepo(db)
		s.TxManager = gormrepo.NewTxManager(db)
	}

	if cfg.RedisAddr != "" {
		client := redisrepo.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = client.Close()
			_ = s.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.closers = append(s.closers, client.Close)
		s.Tokens = redisrepo.NewTokenRepo(client, redisrepo.DefaultGrace)
		hlog.CtxInfof(ctx, "confirmation tokens stored in redis at %s", cfg.RedisAddr)
	}
	return s, nil
}
