package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"loco-platform/internal/api"
	"loco-platform/internal/cache"
	"loco-platform/internal/engine"
	"loco-platform/internal/fetcher"
	"loco-platform/internal/logging"
	"loco-platform/internal/notifier"
	"loco-platform/internal/scheduler"
	"loco-platform/internal/storage"

	"github.com/phuslu/log"
)

// buildDeps 按配置装配存储、缓存、抓取、调度与 HTTP 处理器。
func buildDeps(ctx context.Context, cfg AppConfig) (appDeps, func(), error) {
	logger := logging.New(cfg.Log)
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = "data/loco.db"
	}
	store, err := storage.NewStore(dbPath)
	if err != nil {
		return appDeps{}, cleanup, fmt.Errorf("init store: %w", err)
	}
	closers = append(closers, func() { _ = store.Close() })

	c, closeCache, err := buildCache(ctx, cfg.Cache, logger)
	if err != nil {
		cleanup()
		return appDeps{}, func() {}, err
	}
	closers = append(closers, closeCache)

	searchCfg := cfg.Search
	if searchCfg.CacheTTL == "" {
		searchCfg.CacheTTL = cfg.Cache.TTL
	}
	eng := engine.New(store, c, searchCfg, logger)

	src, closeSrc, err := buildFetcher(ctx, cfg.Source, logger)
	if err != nil {
		cleanup()
		return appDeps{}, func() {}, err
	}
	closers = append(closers, closeSrc)

	var deps appDeps
	var sched api.Scheduler
	if src != nil {
		s := scheduler.NewScheduler(src, store, buildNotifier(cfg.Email, logger), cfg.Sync, logger)
		deps.sched = s
		sched = s
	} else {
		logger.Warn().Msg("no sync source configured, serving local data only")
	}

	deps.handler = api.NewHandler(store, eng, sched, logger)
	return deps, cleanup, nil
}

// buildNotifier 日志通知始终开启，邮件通知在配置完整时追加。
func buildNotifier(cfg notifier.EmailConfig, logger *log.Logger) notifier.Multi {
	logN := notifier.NewLogNotifier(logger)
	if !cfg.Enabled() {
		return notifier.NewMulti(logN)
	}
	logger.Info().Str("host", cfg.Host).Int("recipients", len(cfg.To)).Bool("urgent_only", cfg.UrgentOnly).Msg("email notifications enabled")
	return notifier.NewMulti(logN, notifier.NewEmailNotifier(cfg, nil))
}

func buildCache(ctx context.Context, cfg cache.Config, logger *log.Logger) (cache.Cache, func(), error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return cache.NewMemory(), func() {}, nil
	}
	rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, func() {}, fmt.Errorf("init redis: %w", err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "loco:"
	}
	logger.Info().Str("prefix", prefix).Msg("redis cache enabled")
	return cache.NewRedis(rdb, prefix), func() { _ = rdb.Close() }, nil
}

// buildFetcher 未配置任何上游时返回 nil。
func buildFetcher(ctx context.Context, cfg fetcher.Config, logger *log.Logger) (fetcher.JobFetcher, func(), error) {
	source := strings.ToLower(strings.TrimSpace(cfg.Source))
	if source == "" {
		switch {
		case cfg.DatabaseURL != "":
			source = "postgres"
		case cfg.BaseURL != "":
			source = "supabase"
		}
	}

	switch source {
	case "":
		return nil, func() {}, nil
	case "supabase":
		if cfg.BaseURL == "" {
			return nil, func() {}, fmt.Errorf("supabase source requires base_url")
		}
		client := &http.Client{Timeout: 30 * time.Second}
		return fetcher.NewSupabaseFetcher(cfg, client, logger), func() {}, nil
	case "postgres":
		pool, err := fetcher.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, func() {}, fmt.Errorf("init postgres: %w", err)
		}
		return fetcher.NewPostgresFetcher(pool, cfg, logger), pool.Close, nil
	}
	return nil, func() {}, fmt.Errorf("unknown source %q", cfg.Source)
}
