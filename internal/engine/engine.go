// Package engine 实现 /api/v1/search 背后的搜索服务：候选召回、打分排序、
// 统计分析、联想词与热门搜索，以及地图簇计算。
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"loco-platform/internal/cache"
	"loco-platform/internal/cluster"
	"loco-platform/internal/logging"
	"loco-platform/internal/model"
	"loco-platform/internal/storage"

	"github.com/phuslu/log"
)

// Store 搜索服务依赖的存储接口。
type Store interface {
	ListJobs(ctx context.Context, opts storage.JobQueryOptions) ([]model.Job, error)
	LogSearch(ctx context.Context, query string, results int64) error
	TopQueries(ctx context.Context, since time.Time, limit int) ([]storage.QueryCount, error)
}

// Config 搜索服务配置。
type Config struct {
	MaxCandidates   int            `yaml:"max_candidates" json:"max_candidates"`
	DefaultRadiusKm float64        `yaml:"default_radius_km" json:"default_radius_km"`
	DefaultLimit    int            `yaml:"default_limit" json:"default_limit"`
	MaxLimit        int            `yaml:"max_limit" json:"max_limit"`
	TrendingWindow  string         `yaml:"trending_window" json:"trending_window"`
	CacheTTL        string         `yaml:"cache_ttl" json:"cache_ttl"`
	Cluster         cluster.Config `yaml:"cluster" json:"cluster"`
}

// Engine 搜索服务。
type Engine struct {
	store          Store
	cache          cache.Cache
	cfg            Config
	trendingWindow time.Duration
	cacheTTL       time.Duration
	logger         *log.Logger
	now            func() time.Time
}

// New 创建搜索服务，cache 为空时不缓存。
func New(store Store, c cache.Cache, cfg Config, logger *log.Logger) *Engine {
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 1000
	}
	if cfg.DefaultRadiusKm <= 0 {
		cfg.DefaultRadiusKm = 50
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	window := 7 * 24 * time.Hour
	if d, err := time.ParseDuration(cfg.TrendingWindow); err == nil && d > 0 {
		window = d
	}
	ttl := 5 * time.Minute
	if d, err := time.ParseDuration(cfg.CacheTTL); err == nil && d > 0 {
		ttl = d
	}
	return &Engine{
		store:          store,
		cache:          c,
		cfg:            cfg,
		trendingWindow: window,
		cacheTTL:       ttl,
		logger:         logging.Component(logger, "engine"),
		now:            time.Now,
	}
}

// Search 执行高级搜索。
func (e *Engine) Search(ctx context.Context, req model.SearchRequest) (model.SearchResponse, error) {
	page, limit := e.normalizePage(req.Page, req.Limit)

	opts := storage.JobQueryOptions{
		Limit:     e.cfg.MaxCandidates,
		JobTypes:  req.JobTypes,
		Locations: req.Locations,
	}
	if req.IsUrgent != nil && *req.IsUrgent {
		opts.UrgentOnly = true
	}
	if req.RemotePossible != nil && *req.RemotePossible {
		opts.RemoteOnly = true
	}
	candidates, err := e.store.ListJobs(ctx, opts)
	if err != nil {
		return model.SearchResponse{}, fmt.Errorf("load candidates: %w", err)
	}

	q := newQuery(req, e.cfg.DefaultRadiusKm, e.now())
	matched := make([]model.ScoredJob, 0, len(candidates))
	for _, job := range candidates {
		sj, ok := q.evaluate(job)
		if ok {
			matched = append(matched, sj)
		}
	}
	sortJobs(matched, req.SortBy, req.SortOrder)

	resp := model.SearchResponse{
		Jobs:      paginate(matched, page, limit),
		Analytics: analyze(matched),
		Pagination: model.Pagination{
			Page:    page,
			Limit:   limit,
			Total:   int64(len(matched)),
			HasMore: page*limit < len(matched),
		},
	}

	query := ""
	if req.Query != nil {
		query = *req.Query
	}
	if err := e.store.LogSearch(ctx, query, resp.Pagination.Total); err != nil {
		e.logger.Warn().Err(err).Msg("log search failed")
	}
	e.logger.Info().Str("query", query).Int64("total", resp.Pagination.Total).Int("page", page).Msg("search served")
	return resp, nil
}

func (e *Engine) normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = e.cfg.DefaultLimit
	}
	if limit > e.cfg.MaxLimit {
		limit = e.cfg.MaxLimit
	}
	return page, limit
}

func paginate(jobs []model.ScoredJob, page, limit int) []model.ScoredJob {
	start := (page - 1) * limit
	if start >= len(jobs) {
		return []model.ScoredJob{}
	}
	end := min(start+limit, len(jobs))
	return jobs[start:end]
}

var suggestionTemplates = []string{"pharmacist", "pharmacy", "clinical", "hospital", "community"}

const maxSuggestions = 5

// Suggestions 返回至多 5 个联想词：先取匹配的职位标题与雇主，再用模板补齐。
func (e *Engine) Suggestions(ctx context.Context, q string) ([]string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []string{}, nil
	}
	key := "suggest:" + strings.ToLower(q)
	return cache.Remember(ctx, e.cache, key, e.cacheTTL, func(ctx context.Context) ([]string, error) {
		jobs, err := e.store.ListJobs(ctx, storage.JobQueryOptions{Text: q, Limit: 50})
		if err != nil {
			return nil, fmt.Errorf("suggestions: %w", err)
		}
		out := newUniqueList(maxSuggestions)
		lower := strings.ToLower(q)
		for _, job := range jobs {
			if strings.Contains(strings.ToLower(job.Title), lower) {
				out.add(job.Title)
			}
			if strings.Contains(strings.ToLower(job.Company), lower) {
				out.add(job.Company)
			}
		}
		for _, tpl := range suggestionTemplates {
			out.add(q + " " + tpl)
		}
		return out.items, nil
	})
}

var defaultTrending = []string{
	"Clinical pharmacist Melbourne",
	"Hospital pharmacy Sydney",
	"Part-time pharmacist Brisbane",
	"Pharmacy manager Perth",
	"Locum pharmacist Adelaide",
}

// Trending 返回最近窗口内最常见的搜索词，不足 5 个时用默认列表补齐。
func (e *Engine) Trending(ctx context.Context) ([]string, error) {
	return cache.Remember(ctx, e.cache, "trending", e.cacheTTL, func(ctx context.Context) ([]string, error) {
		top, err := e.store.TopQueries(ctx, e.now().Add(-e.trendingWindow), maxSuggestions)
		if err != nil {
			return nil, fmt.Errorf("trending: %w", err)
		}
		out := newUniqueList(maxSuggestions)
		for _, row := range top {
			out.add(row.Query)
		}
		for _, d := range defaultTrending {
			out.add(d)
		}
		return out.items, nil
	})
}

// Clusters 对所有带坐标的职位按缩放级别与策略聚合，每次请求都从存储重算，不缓存。
func (e *Engine) Clusters(ctx context.Context, zoom float64, strategy cluster.Strategy) ([]cluster.Cluster, error) {
	if strategy == "" {
		strategy = cluster.StrategySmart
	}
	jobs, err := e.store.ListJobs(ctx, storage.JobQueryOptions{WithCoordinates: true, Limit: e.cfg.MaxCandidates})
	if err != nil {
		return nil, fmt.Errorf("clusters: %w", err)
	}
	return cluster.Compute(e.cfg.Cluster, jobs, zoom, strategy), nil
}

type uniqueList struct {
	items []string
	seen  map[string]struct{}
	limit int
}

func newUniqueList(limit int) *uniqueList {
	return &uniqueList{items: []string{}, seen: map[string]struct{}{}, limit: limit}
}

func (u *uniqueList) add(s string) {
	s = strings.TrimSpace(s)
	key := strings.ToLower(s)
	if s == "" || len(u.items) >= u.limit {
		return
	}
	if _, ok := u.seen[key]; ok {
		return
	}
	u.seen[key] = struct{}{}
	u.items = append(u.items, s)
}
