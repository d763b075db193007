package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"loco-platform/internal/scheduler"
)

// 确保收到取消信号时会触发服务器优雅关闭。
func TestRunServer_ShutdownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := newStubCancelScheduler()
	srv := newStubServer()

	done := make(chan error, 1)
	go func() {
		done <- runServer(ctx, srv, sched, 500*time.Millisecond)
	}()

	srv.waitStarted(t)

	cancel()

	srv.waitShutdown(t)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServer returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("runServer did not return after cancel")
	}

	if sched.canceled.Load() == 0 {
		t.Fatalf("scheduler did not observe context cancellation")
	}
}

func TestRunServer_ListenFailureStopsScheduler(t *testing.T) {
	t.Parallel()

	sched := newStubCancelScheduler()
	srv := &failingServer{err: errors.New("address in use")}

	err := runServer(context.Background(), srv, sched, 500*time.Millisecond)
	if err == nil || !errors.Is(err, srv.err) {
		t.Fatalf("expected listen error, got %v", err)
	}
	if sched.canceled.Load() != 1 {
		t.Fatalf("expected scheduler cancelled after listen failure")
	}
}

func TestRunServer_WithoutScheduler(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	srv := newStubServer()
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv, nil, 500*time.Millisecond) }()

	srv.waitStarted(t)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("runServer returned error: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
server:
  addr: ":9090"
source:
  base_url: https://file.supabase.co
  page_size: 50
sync:
  interval: "*/15 * * * *"
search:
  max_limit: 50
  cluster:
    smart_cluster_radius_km: 40
log:
  level: debug
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SUPABASE_URL", "https://env.supabase.co")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig error: %v", err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Source.PageSize != 50 || cfg.Sync.Interval != "*/15 * * * *" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Search.MaxLimit != 50 || cfg.Search.Cluster.SmartClusterRadius != 40 || cfg.Log.Level != "debug" {
		t.Fatalf("nested config not parsed: %+v", cfg.Search)
	}
	if cfg.Source.BaseURL != "https://env.supabase.co" || cfg.Cache.RedisURL != "redis://localhost:6379/1" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}

	missing, err := loadConfig(filepath.Join(dir, "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults, got %v", err)
	}
	if missing.Source.BaseURL != "https://env.supabase.co" {
		t.Fatalf("env overrides should apply without a file")
	}

	if err := os.WriteFile(path, []byte("server: [oops"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestApplyEnvPort(t *testing.T) {
	t.Parallel()

	var cfg AppConfig
	applyEnv(&cfg, func(k string) string {
		if k == "PORT" {
			return "3000"
		}
		return ""
	})
	if cfg.Server.Addr != ":3000" {
		t.Fatalf("expected :3000, got %q", cfg.Server.Addr)
	}
}

// --- stubs ---

type stubServer struct {
	started        chan struct{}
	shutdownCalled chan struct{}
	closed         atomic.Bool
}

func newStubServer() *stubServer {
	return &stubServer{
		started:        make(chan struct{}),
		shutdownCalled: make(chan struct{}),
	}
}

func (s *stubServer) ListenAndServe() error {
	close(s.started)
	<-s.shutdownCalled
	return http.ErrServerClosed
}

func (s *stubServer) Shutdown(context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.shutdownCalled)
	return nil
}

func (s *stubServer) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-s.started:
	case <-time.After(time.Second):
		t.Fatal("server did not start")
	}
}

func (s *stubServer) waitShutdown(t *testing.T) {
	t.Helper()
	select {
	case <-s.shutdownCalled:
	case <-time.After(time.Second):
		t.Fatal("server shutdown was not called")
	}
}

type failingServer struct {
	err error
}

func (s *failingServer) ListenAndServe() error          { return s.err }
func (s *failingServer) Shutdown(context.Context) error { return nil }

type stubCancelScheduler struct {
	canceled atomic.Int32
}

func newStubCancelScheduler() *stubCancelScheduler {
	return &stubCancelScheduler{}
}

func (s *stubCancelScheduler) Start(ctx context.Context) error {
	<-ctx.Done()
	s.canceled.Add(1)
	return ctx.Err()
}

func (s *stubCancelScheduler) RunOnce(context.Context) (scheduler.Report, error) {
	return scheduler.Report{}, nil
}
