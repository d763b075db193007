package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"loco-platform/internal/cache"
	"loco-platform/internal/engine"
	"loco-platform/internal/fetcher"
	"loco-platform/internal/logging"
	"loco-platform/internal/notifier"
	"loco-platform/internal/scheduler"
)

// AppConfig 应用配置。
type AppConfig struct {
	Server   ServerConfig         `yaml:"server"`
	Database DatabaseConfig       `yaml:"database"`
	Source   fetcher.Config       `yaml:"source"`
	Sync     scheduler.Config     `yaml:"sync"`
	Cache    cache.Config         `yaml:"cache"`
	Search   engine.Config        `yaml:"search"`
	Email    notifier.EmailConfig `yaml:"email"`
	Log      logging.Config       `yaml:"log"`
}

type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type syncScheduler interface {
	Start(ctx context.Context) error
	RunOnce(ctx context.Context) (scheduler.Report, error)
}

type appDeps struct {
	handler http.Handler
	sched   syncScheduler
}

type depsBuilder func(ctx context.Context, cfg AppConfig) (appDeps, func(), error)

func main() {
	once := flag.Bool("once", false, "run a single sync and exit")
	flag.Parse()

	cfg, err := loadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		report, err := runOnceManual(ctx, cfg, buildDeps)
		if err != nil {
			logger.Error().Err(err).Msg("manual sync failed")
			os.Exit(1)
		}
		logger.Info().Int("fetched", report.Fetched).Int("created", report.Created).Msg("manual sync done")
		return
	}

	deps, cleanup, err := buildDeps(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("init failed")
		os.Exit(1)
	}
	defer cleanup()

	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: deps.handler, ReadHeaderTimeout: 10 * time.Second}

	logger.Info().Str("addr", addr).Msg("listening")
	if err := runServer(ctx, srv, deps.sched, parseDuration(cfg.Server.ShutdownTimeout, 5*time.Second)); err != nil {
		logger.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
}

// runServer 并行运行 HTTP 服务与调度器，ctx 取消后优雅关闭。
func runServer(ctx context.Context, srv httpServer, sched syncScheduler, shutdownTimeout time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	schedDone := make(chan error, 1)
	go func() {
		if sched == nil {
			schedDone <- nil
			return
		}
		schedDone <- sched.Start(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	var result error
	served := false
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		served = true
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			result = fmt.Errorf("listen: %w", err)
		}
	}

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil && result == nil {
		result = fmt.Errorf("shutdown: %w", err)
	}
	if !served {
		<-serveErr
	}

	select {
	case err := <-schedDone:
		if err != nil && !errors.Is(err, context.Canceled) && result == nil {
			result = fmt.Errorf("scheduler: %w", err)
		}
	case <-shutdownCtx.Done():
	}
	return result
}

// runOnceManual 构建依赖后执行一次同步，用于 -once。
func runOnceManual(ctx context.Context, cfg AppConfig, build depsBuilder) (scheduler.Report, error) {
	deps, cleanup, err := build(ctx, cfg)
	if err != nil {
		return scheduler.Report{}, fmt.Errorf("build deps: %w", err)
	}
	defer cleanup()
	if deps.sched == nil {
		return scheduler.Report{}, errors.New("sync source not configured")
	}
	return deps.sched.RunOnce(ctx)
}

// loadConfig 读取 YAML 配置，文件不存在时使用默认值，再叠加环境变量。
func loadConfig(path string) (AppConfig, error) {
	if path == "" {
		path = "config.yaml"
	}
	var cfg AppConfig
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return AppConfig{}, fmt.Errorf("read %s: %w", path, err)
	}
	applyEnv(&cfg, os.Getenv)
	return cfg, nil
}

func applyEnv(cfg *AppConfig, getenv func(string) string) {
	if v := getenv("SUPABASE_URL"); v != "" {
		cfg.Source.BaseURL = v
	}
	if v := getenv("SUPABASE_SERVICE_KEY"); v != "" {
		cfg.Source.ServiceKey = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		cfg.Source.DatabaseURL = v
	}
	if v := getenv("REDIS_URL"); v != "" {
		cfg.Cache.RedisURL = v
	}
	if v := getenv("SMTP_PASSWORD"); v != "" {
		cfg.Email.Password = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}
}

func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
