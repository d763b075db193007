// Package geolocation 提供用户位置获取，带超时与短期缓存。
package geolocation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"loco-platform/internal/geo"
)

var (
	// ErrPermissionDenied 用户拒绝授权。
	ErrPermissionDenied = errors.New("geolocation permission denied")
	// ErrTimeout 定位超时。
	ErrTimeout = errors.New("geolocation timeout")
	// ErrUnsupported 当前环境不支持定位。
	ErrUnsupported = errors.New("geolocation unsupported")
)

// Fix 一次定位结果。
type Fix struct {
	Point geo.Point
	At    time.Time
}

// Locator 获取当前位置。
type Locator interface {
	Locate(ctx context.Context) (Fix, error)
}

// LocatorFunc 函数适配器。
type LocatorFunc func(ctx context.Context) (Fix, error)

// Locate 实现 Locator。
func (f LocatorFunc) Locate(ctx context.Context) (Fix, error) { return f(ctx) }

// Static 返回固定坐标，用于命令行配置的位置。
type Static struct {
	Point geo.Point
	now   func() time.Time
}

// NewStatic 创建固定位置定位器。
func NewStatic(lat, lng float64) *Static {
	return &Static{Point: geo.Point{Lat: lat, Lng: lng}, now: time.Now}
}

// Locate 实现 Locator。
func (s *Static) Locate(ctx context.Context) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, ErrTimeout
	}
	return Fix{Point: s.Point, At: s.now()}, nil
}

// CacheConfig 缓存定位参数。
type CacheConfig struct {
	MaxAge  time.Duration
	Timeout time.Duration
}

// Cached 包装 Locator：maxAge 内复用上次结果，单次定位受 timeout 限制。
type Cached struct {
	inner   Locator
	maxAge  time.Duration
	timeout time.Duration
	now     func() time.Time

	mu   sync.Mutex
	last *Fix
}

// NewCached 创建缓存定位器，默认 maxAge 5 分钟、timeout 10 秒。inner 为空时 Locate 返回 ErrUnsupported。
func NewCached(inner Locator, cfg CacheConfig) *Cached {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 5 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Cached{inner: inner, maxAge: cfg.MaxAge, timeout: cfg.Timeout, now: time.Now}
}

// Locate 实现 Locator。
func (c *Cached) Locate(ctx context.Context) (Fix, error) {
	if c.inner == nil {
		return Fix{}, ErrUnsupported
	}

	c.mu.Lock()
	if c.last != nil && c.now().Sub(c.last.At) < c.maxAge {
		fix := *c.last
		c.mu.Unlock()
		return fix, nil
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		fix Fix
		err error
	}
	done := make(chan result, 1)
	go func() {
		fix, err := c.inner.Locate(ctx)
		done <- result{fix, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return Fix{}, contextError(ctx.Err())
	case res = <-done:
	}
	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) {
			return Fix{}, ErrTimeout
		}
		return Fix{}, fmt.Errorf("locate: %w", res.err)
	}
	if res.fix.At.IsZero() {
		res.fix.At = c.now()
	}

	c.mu.Lock()
	fix := res.fix
	c.last = &fix
	c.mu.Unlock()
	return res.fix, nil
}

// contextError 只有超时映射为 ErrTimeout，调用方取消原样返回。
func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return fmt.Errorf("locate: %w", err)
}

// Forget 清除缓存的定位结果。
func (c *Cached) Forget() {
	c.mu.Lock()
	c.last = nil
	c.mu.Unlock()
}
