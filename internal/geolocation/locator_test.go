package geolocation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"loco-platform/internal/geo"
)

func TestCachedReusesRecentFix(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	inner := LocatorFunc(func(ctx context.Context) (Fix, error) {
		calls.Add(1)
		return Fix{Point: geo.Point{Lat: -33.87, Lng: 151.21}}, nil
	})

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	c := NewCached(inner, CacheConfig{})
	c.now = func() time.Time { return now }

	if _, err := c.Locate(context.Background()); err != nil {
		t.Fatalf("Locate error: %v", err)
	}
	now = now.Add(4 * time.Minute)
	fix, err := c.Locate(context.Background())
	if err != nil {
		t.Fatalf("Locate error: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected cached fix within 5 minutes, got %d calls", calls.Load())
	}
	if fix.Point.Lat != -33.87 {
		t.Fatalf("unexpected fix %+v", fix)
	}

	now = now.Add(2 * time.Minute)
	if _, err := c.Locate(context.Background()); err != nil {
		t.Fatalf("Locate error: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected fresh fix after expiry, got %d calls", calls.Load())
	}
}

func TestCachedErrors(t *testing.T) {
	t.Parallel()

	if _, err := NewCached(nil, CacheConfig{}).Locate(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}

	denied := NewCached(LocatorFunc(func(context.Context) (Fix, error) {
		return Fix{}, ErrPermissionDenied
	}), CacheConfig{})
	if _, err := denied.Locate(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	hang := NewCached(LocatorFunc(func(ctx context.Context) (Fix, error) {
		<-ctx.Done()
		return Fix{}, ctx.Err()
	}), CacheConfig{Timeout: 10 * time.Millisecond})
	if _, err := hang.Locate(context.Background()); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestCachedCancelIsNotTimeout(t *testing.T) {
	t.Parallel()

	hang := NewCached(LocatorFunc(func(ctx context.Context) (Fix, error) {
		<-ctx.Done()
		return Fix{}, ctx.Err()
	}), CacheConfig{Timeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := hang.Locate(ctx)
	if errors.Is(err, ErrTimeout) {
		t.Fatalf("cancellation must not be reported as timeout: %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStatic(t *testing.T) {
	t.Parallel()

	fix, err := NewStatic(-37.81, 144.96).Locate(context.Background())
	if err != nil || fix.Point.Lng != 144.96 || fix.At.IsZero() {
		t.Fatalf("unexpected static fix %+v err=%v", fix, err)
	}
}
