package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"loco-platform/internal/fetcher"
	"loco-platform/internal/geo"
	"loco-platform/internal/logging"
	"loco-platform/internal/model"
	"loco-platform/internal/storage"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Config 用于调度配置。Interval 可以是时长（30m）或 cron 表达式（*/15 * * * *、@every 1h）。
type Config struct {
	Interval   string `yaml:"interval" json:"interval"`
	Timeout    string `yaml:"timeout" json:"timeout"`
	RunOnStart bool   `yaml:"run_on_start" json:"run_on_start"`
}

// Store 抽象存储接口，便于测试替换。
type Store interface {
	UpsertJobs(ctx context.Context, jobs []model.Job) (storage.UpsertResult, error)
}

// Notifier 用于发送新增职位通知。
type Notifier interface {
	Notify(ctx context.Context, jobs []model.Job) error
}

// Report 单次同步结果。
type Report struct {
	Fetched int          `json:"fetched"`
	Created int          `json:"created"`
	Skipped bool         `json:"skipped"`
	Fix     geo.FixStats `json:"fix"`
}

// Scheduler 负责周期性抓取、修正坐标并写入存储。
type Scheduler struct {
	fetcher   fetcher.JobFetcher
	store     Store
	notif     Notifier
	interval  time.Duration
	cronSpec  string
	cron      cron.Schedule
	timeout   time.Duration
	onStart   bool
	running   atomic.Bool
	logger    *log.Logger
	newTicker func(time.Duration) ticker
	now       func() time.Time
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

// NewScheduler 创建 Scheduler，解析配置的间隔与超时。
func NewScheduler(f fetcher.JobFetcher, s Store, n Notifier, cfg Config, logger *log.Logger) *Scheduler {
	logger = logging.Component(logger, "scheduler")
	interval, spec, schedule, err := parseSchedule(cfg.Interval)
	if err != nil {
		logger.Warn().Err(err).Dur("fallback", fallbackInterval).Msg("invalid schedule, using fallback")
	}
	timeout := 2 * time.Minute
	if cfg.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
			timeout = d
		}
	}

	return &Scheduler{
		fetcher:   f,
		store:     s,
		notif:     n,
		interval:  interval,
		cronSpec:  spec,
		cron:      schedule,
		timeout:   timeout,
		onStart:   cfg.RunOnStart,
		logger:    logger,
		newTicker: defaultTicker,
		now:       time.Now,
	}
}

// Start 启动调度循环，直到上下文取消。单次同步失败只记录日志。
func (s *Scheduler) Start(ctx context.Context) error {
	if s.fetcher == nil || s.store == nil {
		return fmt.Errorf("scheduler missing dependencies")
	}

	g, ctx := errgroup.WithContext(ctx)

	if s.onStart {
		g.Go(func() error {
			s.tick(ctx)
			return nil
		})
	}

	if s.cron != nil {
		s.logger.Info().Str("spec", s.cronSpec).Msg("cron scheduler started")
		g.Go(func() error {
			return s.startCron(ctx)
		})
	} else {
		s.logger.Info().Dur("interval", s.interval).Msg("interval scheduler started")
		tick := s.newTicker(s.interval)
		ch := tick.C()

		g.Go(func() error {
			defer tick.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ch:
					s.tick(ctx)
				drain:
					for {
						select {
						case <-ch:
							continue
						default:
							break drain
						}
					}
				}
			}
		})
	}

	return g.Wait()
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.runOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error().Err(err).Msg("sync failed")
	}
}

// RunOnce 对外暴露单次同步接口，便于手动刷新。已有同步在进行时返回 Skipped。
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	return s.runOnce(ctx)
}

func (s *Scheduler) runOnce(ctx context.Context) (Report, error) {
	if s.running.Swap(true) {
		s.logger.Debug().Msg("sync already running, skipped")
		return Report{Skipped: true}, nil
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := s.now()
	jobs, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("fetch jobs: %w", err)
	}

	report := Report{Fetched: len(jobs), Fix: geo.FixLocations(jobs)}
	valid := jobs[:0]
	for _, job := range jobs {
		if err := job.Validate(); err != nil {
			s.logger.Warn().Err(err).Msg("drop invalid job")
			continue
		}
		valid = append(valid, job)
	}

	res, err := s.store.UpsertJobs(ctx, valid)
	if err != nil {
		return report, fmt.Errorf("upsert jobs: %w", err)
	}
	report.Created = res.Created

	s.logger.Info().
		Int("fetched", report.Fetched).
		Int("created", report.Created).
		Str("fix", report.Fix.String()).
		Dur("took", s.now().Sub(started)).
		Msg("sync done")

	if s.notif != nil && len(res.NewJobs) > 0 {
		if err := s.notif.Notify(ctx, res.NewJobs); err != nil {
			return report, fmt.Errorf("notify: %w", err)
		}
	}

	return report, nil
}

func defaultTicker(d time.Duration) ticker {
	t := time.NewTicker(d)
	return tickerWrapper{t}
}

type tickerWrapper struct {
	*time.Ticker
}

func (t tickerWrapper) C() <-chan time.Time { return t.Ticker.C }
func (t tickerWrapper) Stop()               { t.Ticker.Stop() }

func (s *Scheduler) startCron(ctx context.Context) error {
	for {
		next := s.cron.Next(s.now())
		if next.IsZero() {
			return fmt.Errorf("cron spec %q never fires", s.cronSpec)
		}
		wait := max(next.Sub(s.now()), 0)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			s.tick(ctx)
		}
	}
}

const fallbackInterval = 30 * time.Minute

// parseSchedule 先按时长解析，再按 cron 表达式解析，都失败时回退到 30 分钟。
func parseSchedule(value string) (time.Duration, string, cron.Schedule, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallbackInterval, "", nil, nil
	}
	if d, err := time.ParseDuration(trimmed); err == nil && d > 0 {
		return d, "", nil, nil
	}
	schedule, err := cron.ParseStandard(trimmed)
	if err != nil {
		return fallbackInterval, "", nil, fmt.Errorf("parse schedule %q: %w", trimmed, err)
	}
	return 0, trimmed, schedule, nil
}
