package fetcher

import (
	"context"
	"fmt"
	"time"

	"loco-platform/internal/logging"
	"loco-platform/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/phuslu/log"
)

// NewPostgresPool 创建连接池并确认可连通。
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}

// Querier pgxpool.Pool 满足此接口。
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresFetcher 直连上游数据库读取职位表。
type PostgresFetcher struct {
	db     Querier
	cfg    Config
	logger *log.Logger
}

// NewPostgresFetcher 创建直连抓取器。
func NewPostgresFetcher(db Querier, cfg Config, logger *log.Logger) *PostgresFetcher {
	return &PostgresFetcher{db: db, cfg: cfg.withDefaults(), logger: logging.Component(logger, "fetcher")}
}

// Fetch 读取最近 PageSize*MaxPages 条职位。
func (p *PostgresFetcher) Fetch(ctx context.Context) ([]model.Job, error) {
	limit := p.cfg.PageSize * p.cfg.MaxPages
	sql := fmt.Sprintf(`SELECT id::text, COALESCE(title, ''), COALESCE(company, ''), COALESCE(location, ''), COALESCE(job_type::text, ''),
		salary_range_start::float8, salary_range_end::float8, COALESCE(description, ''),
		COALESCE(is_urgent, false), COALESCE(remote_possible, false),
		latitude::float8, longitude::float8, created_at
	FROM %s ORDER BY created_at DESC, id ASC LIMIT $1`, pgx.Identifier{p.cfg.Table}.Sanitize())

	rows, err := p.db.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]model.Job, 0)
	for rows.Next() {
		var (
			r         jobRow
			createdAt *time.Time
		)
		if err := rows.Scan(
			&r.ID, &r.Title, &r.Company, &r.Location, &r.JobType,
			&r.SalaryRangeStart, &r.SalaryRangeEnd, &r.Description,
			&r.IsUrgent, &r.RemotePossible,
			&r.Latitude, &r.Longitude, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		if createdAt != nil {
			r.CreatedAt = *createdAt
		}
		jobs = append(jobs, r.toJob(nil))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}

	p.logger.Info().Int("total_jobs", len(jobs)).Msg("fetch done")
	return jobs, nil
}
