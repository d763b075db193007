package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"loco-platform/internal/model"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound 记录不存在。
var ErrNotFound = errors.New("record not found")

// Store 封装 SQLite 数据库访问，负责职位、搜索日志与键值设置。
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// UpsertResult 表示职位写入结果。
type UpsertResult struct {
	Created int
	NewJobs []model.Job
}

// JobQueryOptions 提供职位查询过滤条件。
type JobQueryOptions struct {
	Limit           int
	Offset          int
	Text            string
	JobTypes        []model.JobType
	Locations       []string
	UrgentOnly      bool
	RemoteOnly      bool
	WithCoordinates bool
}

// QueryCount 搜索词及其出现次数。
type QueryCount struct {
	Query string
	Count int64
}

// NewStore 创建 Store 并自动迁移数据表。
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.AutoMigrate(&model.Job{}, &model.SearchLog{}, &model.Setting{}); err != nil {
		return nil, fmt.Errorf("auto migrate models: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close 关闭底层数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

// UpsertJobs 写入职位列表，已有主键则更新，返回新增数量与新增记录。
func (s *Store) UpsertJobs(ctx context.Context, jobs []model.Job) (UpsertResult, error) {
	res := UpsertResult{}
	if len(jobs) == 0 {
		return res, nil
	}

	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)
	}

	var existing []string
	if err := s.db.WithContext(ctx).Model(&model.Job{}).Where("id IN ?", ids).Pluck("id", &existing).Error; err != nil {
		return res, fmt.Errorf("query existing ids: %w", err)
	}

	existingSet := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		existingSet[id] = struct{}{}
	}

	for i, id := range ids {
		if _, ok := existingSet[id]; !ok {
			res.Created++
			res.NewJobs = append(res.NewJobs, jobs[i])
			existingSet[id] = struct{}{}
		}
	}

	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title",
			"company",
			"location",
			"job_type",
			"salary_range_start",
			"salary_range_end",
			"description",
			"is_urgent",
			"remote_possible",
			"latitude",
			"longitude",
			"suburb",
			"state",
			"postcode",
			"attributes",
			"created_at",
			"updated_at",
		}),
	}).Create(&jobs)
	if tx.Error != nil {
		return res, fmt.Errorf("upsert jobs: %w", tx.Error)
	}

	return res, nil
}

// ListJobs 返回按发布时间倒序的职位列表。
func (s *Store) ListJobs(ctx context.Context, opts JobQueryOptions) ([]model.Job, error) {
	var jobs []model.Job
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	query := s.db.WithContext(ctx).Model(&model.Job{}).Order("created_at DESC").Order("id ASC")
	query = applyJobFilters(query, opts)
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	if err := query.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// CountJobs 返回满足过滤条件的职位数量。
func (s *Store) CountJobs(ctx context.Context, opts JobQueryOptions) (int64, error) {
	var total int64
	query := applyJobFilters(s.db.WithContext(ctx).Model(&model.Job{}), opts)
	if err := query.Count(&total).Error; err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return total, nil
}

// GetJob 根据 ID 获取职位，不存在时返回 ErrNotFound。
func (s *Store) GetJob(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	if err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// LogSearch 记录一次搜索，空查询也记录以便统计总量。
func (s *Store) LogSearch(ctx context.Context, query string, results int64) error {
	entry := model.SearchLog{
		ID:        uuid.NewString(),
		Query:     strings.TrimSpace(query),
		Results:   results,
		CreatedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("log search: %w", err)
	}
	return nil
}

// TopQueries 返回 since 之后出现最多的非空查询，次数相同按字母序。
func (s *Store) TopQueries(ctx context.Context, since time.Time, limit int) ([]QueryCount, error) {
	if limit <= 0 {
		limit = 5
	}
	var rows []QueryCount
	err := s.db.WithContext(ctx).Model(&model.SearchLog{}).
		Select("query, COUNT(*) AS count").
		Where("created_at >= ? AND query <> ''", since).
		Group("query").
		Order("count DESC").
		Order("query ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("top queries: %w", err)
	}
	return rows, nil
}

// GetSetting 读取键值，不存在时 ok 为 false。
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var setting model.Setting
	if err := s.db.WithContext(ctx).First(&setting, "`key` = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get setting: %w", err)
	}
	return setting.Value, true, nil
}

// SetSetting 整体覆盖写入键值。
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	setting := model.Setting{Key: key, Value: value, UpdatedAt: s.now()}
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting)
	if tx.Error != nil {
		return fmt.Errorf("set setting: %w", tx.Error)
	}
	return nil
}

func applyJobFilters(db *gorm.DB, opts JobQueryOptions) *gorm.DB {
	if len(opts.JobTypes) > 0 {
		db = db.Where("job_type IN ?", opts.JobTypes)
	}
	if opts.UrgentOnly {
		db = db.Where("is_urgent = ?", true)
	}
	if opts.RemoteOnly {
		db = db.Where("remote_possible = ?", true)
	}
	if opts.WithCoordinates {
		db = db.Where("latitude IS NOT NULL AND longitude IS NOT NULL")
	}
	if text := strings.TrimSpace(opts.Text); text != "" {
		like := "%" + text + "%"
		db = db.Where("(title LIKE ? OR company LIKE ?)", like, like)
	}

	conds := make([]string, 0, len(opts.Locations))
	args := make([]any, 0, len(opts.Locations)*2)
	for _, loc := range opts.Locations {
		loc = strings.TrimSpace(loc)
		if loc == "" {
			continue
		}
		// 州代码精确匹配，其它按自由文本包含匹配
		conds = append(conds, "(UPPER(state) = UPPER(?) OR location LIKE ?)")
		args = append(args, loc, "%"+loc+"%")
	}
	if len(conds) > 0 {
		db = db.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
	return db
}

// Ping 检查数据库可用。
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
