package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"loco-platform/internal/logging"
	"loco-platform/internal/model"
	"loco-platform/internal/storage"
)

func TestSchedulerRunOnce(t *testing.T) {
	t.Parallel()

	f := &stubFetcher{
		jobs: []model.Job{{ID: "1"}, {ID: "2"}},
	}
	s := &stubStore{}

	sched := NewScheduler(f, s, nil, Config{Interval: "1h", Timeout: "5s"}, logging.Discard())

	report, err := sched.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if report.Created != 2 || report.Fetched != 2 || report.Skipped {
		t.Fatalf("unexpected report %+v", report)
	}
	if f.calls.Load() != 1 {
		t.Fatalf("expected fetcher called once, got %d", f.calls.Load())
	}
	if s.calls.Load() != 1 {
		t.Fatalf("expected store called once, got %d", s.calls.Load())
	}
}

func TestSchedulerFixesLocationsBeforeUpsert(t *testing.T) {
	t.Parallel()

	lat := -33.87
	f := &stubFetcher{jobs: []model.Job{
		// 经纬度互换
		{ID: "swapped", Latitude: ptr(151.21), Longitude: ptr(-33.87)},
		// 只有纬度
		{ID: "half", Latitude: &lat, Suburb: "Parramatta"},
		{ID: "bad-salary", SalaryRangeStart: ptr(90000), SalaryRangeEnd: ptr(80000)},
	}}
	s := &stubStore{}

	report, err := NewScheduler(f, s, nil, Config{}, nil).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if report.Fix.Swapped != 1 || report.Fix.Total != 3 {
		t.Fatalf("unexpected fix stats %+v", report.Fix)
	}
	if len(s.saved) != 2 {
		t.Fatalf("expected invalid salary job dropped, saved %d", len(s.saved))
	}
	for _, job := range s.saved {
		if job.CoordinateDefect() {
			t.Fatalf("job %s saved with one-sided coordinates", job.ID)
		}
	}
	if got := s.saved[0]; *got.Latitude != -33.87 || *got.Longitude != 151.21 {
		t.Fatalf("expected swapped coordinates restored, got %v,%v", *got.Latitude, *got.Longitude)
	}
}

func TestSchedulerNoOverlap(t *testing.T) {
	t.Parallel()

	tickCh := make(chan time.Time, 4)
	st := &stubTicker{ch: tickCh}

	f := &stubFetcher{
		jobs:  []model.Job{{ID: "1"}},
		block: make(chan struct{}),
	}
	s := &stubStore{}

	sched := NewScheduler(f, s, nil, Config{Interval: "100ms", Timeout: "5s"}, logging.Discard())
	sched.newTicker = func(d time.Duration) ticker { return st }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sched.Start(ctx)
	}()

	// 第一次触发，fetcher 阻塞直到放行
	tickCh <- time.Now()
	time.Sleep(20 * time.Millisecond)

	// 运行中再次触发，同时手动刷新应被跳过
	tickCh <- time.Now()
	report, err := sched.RunOnce(context.Background())
	if err != nil || !report.Skipped {
		t.Fatalf("expected manual run skipped while busy, got %+v %v", report, err)
	}

	close(f.block)

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if f.calls.Load() != 1 {
		t.Fatalf("expected fetcher called once due to overlap prevention, got %d", f.calls.Load())
	}
	if s.calls.Load() != 1 {
		t.Fatalf("expected store called once, got %d", s.calls.Load())
	}
}

func TestSchedulerKeepsRunningAfterFailure(t *testing.T) {
	t.Parallel()

	tickCh := make(chan time.Time, 1)
	f := &stubFetcher{err: errors.New("upstream down")}
	sched := NewScheduler(f, &stubStore{}, nil, Config{Interval: "1m"}, logging.Discard())
	sched.newTicker = func(d time.Duration) ticker { return &stubTicker{ch: tickCh} }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	tickCh <- time.Now()
	deadline := time.Now().Add(time.Second)
	for f.calls.Load() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	tickCh <- time.Now()
	for f.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancel to stop scheduler, got %v", err)
	}
	if f.calls.Load() != 2 {
		t.Fatalf("expected loop to survive failed sync, got %d calls", f.calls.Load())
	}
}

func TestSchedulerNotifiesNewJobs(t *testing.T) {
	t.Parallel()

	f := &stubFetcher{
		jobs: []model.Job{{ID: "n1"}},
	}
	s := &stubStore{}
	n := &stubNotifier{}

	sched := NewScheduler(f, s, n, Config{Interval: "1h", Timeout: "5s"}, logging.Discard())

	report, err := sched.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if report.Created != 1 {
		t.Fatalf("expected 1 created, got %d", report.Created)
	}
	if n.calls.Load() != 1 {
		t.Fatalf("expected notifier called once, got %d", n.calls.Load())
	}
}

func TestSchedulerRequiresDependencies(t *testing.T) {
	t.Parallel()

	if err := NewScheduler(nil, nil, nil, Config{}, nil).Start(context.Background()); err == nil {
		t.Fatalf("expected error for missing dependencies")
	}
}

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 1, 1, 10, 7, 0, 0, time.UTC)
	cases := []struct {
		in       string
		interval time.Duration
		next     time.Time
		wantErr  bool
	}{
		{in: "", interval: 30 * time.Minute},
		{in: "45m", interval: 45 * time.Minute},
		{in: "*/15 * * * *", next: time.Date(2025, 1, 1, 10, 15, 0, 0, time.UTC)},
		{in: "@every 1h", next: base.Add(time.Hour)},
		{in: "bogus spec", interval: 30 * time.Minute, wantErr: true},
	}
	for _, tc := range cases {
		interval, _, schedule, err := parseSchedule(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%q: unexpected error %v", tc.in, err)
		}
		if tc.next.IsZero() {
			if schedule != nil || interval != tc.interval {
				t.Fatalf("%q: expected interval %v, got %v", tc.in, tc.interval, interval)
			}
			continue
		}
		if schedule == nil {
			t.Fatalf("%q: expected cron schedule", tc.in)
		}
		if got := schedule.Next(base); !got.Equal(tc.next) {
			t.Fatalf("%q: expected next %v, got %v", tc.in, tc.next, got)
		}
	}
}

func ptr[T any](v T) *T { return &v }

// --- stubs ---

type stubFetcher struct {
	jobs  []model.Job
	err   error
	calls atomic.Int32
	block chan struct{}
}

func (s *stubFetcher) Fetch(ctx context.Context) ([]model.Job, error) {
	s.calls.Add(1)
	if s.block != nil {
		<-s.block
	}
	return append([]model.Job(nil), s.jobs...), s.err
}

type stubStore struct {
	calls atomic.Int32
	mu    sync.Mutex
	saved []model.Job
	err   error
}

func (s *stubStore) UpsertJobs(ctx context.Context, jobs []model.Job) (storage.UpsertResult, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, jobs...)
	return storage.UpsertResult{Created: len(jobs), NewJobs: jobs}, s.err
}

type stubTicker struct {
	ch chan time.Time
}

func (s *stubTicker) C() <-chan time.Time { return s.ch }
func (s *stubTicker) Stop()               {}

type stubNotifier struct {
	calls atomic.Int32
}

func (n *stubNotifier) Notify(ctx context.Context, jobs []model.Job) error {
	n.calls.Add(1)
	return ctx.Err()
}
