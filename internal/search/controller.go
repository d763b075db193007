// Package search 实现搜索控制器：维护查询、过滤、排序与分页状态，
// 对输入防抖后向搜索服务发起唯一的在途请求，并通过 Renderer 输出结果。
package search

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"loco-platform/internal/debounce"
	"loco-platform/internal/geolocation"
	"loco-platform/internal/logging"
	"loco-platform/internal/model"
	"loco-platform/internal/searchapi"

	"github.com/phuslu/log"
)

var (
	// ErrInFlight 已有搜索在途，本次调用被丢弃。
	ErrInFlight = errors.New("search already in flight")
	// ErrStale 响应返回前状态已被重置，结果被丢弃。
	ErrStale = errors.New("search response superseded")
	// ErrClosed 控制器已关闭。
	ErrClosed = errors.New("search controller closed")
	// ErrUnknownFilter 过滤名不存在。
	ErrUnknownFilter = errors.New("unknown filter")
	// ErrInvalidValue 过滤值类型或取值不合法。
	ErrInvalidValue = errors.New("invalid filter value")
)

const (
	keySuggest = "suggest"
	keySearch  = "search"
)

// API 控制器依赖的搜索服务。
type API interface {
	Advanced(ctx context.Context, req model.SearchRequest) (model.SearchResponse, error)
	Suggestions(ctx context.Context, q string) ([]string, error)
	Trending(ctx context.Context) ([]string, error)
}

// Results 一次成功搜索的完整结果，整体替换上一次结果。
type Results struct {
	Jobs      []model.ScoredJob
	Analytics model.Analytics
	Page      PageView
	Request   model.SearchRequest
}

// NotifyLevel 通知级别。
type NotifyLevel string

const (
	NotifyInfo    NotifyLevel = "info"
	NotifySuccess NotifyLevel = "success"
	NotifyError   NotifyLevel = "error"
)

// Notification 短暂提示，不影响结果区域。
type Notification struct {
	Level   NotifyLevel
	Message string
}

// Renderer 渲染层接口，控制器不感知具体 UI。
type Renderer interface {
	OnLoading(loading bool)
	OnResultsReady(results Results)
	// OnSearchFailed 结果区域替换为带重试入口的错误视图。
	OnSearchFailed(err error)
	OnSuggestions(suggestions []string)
	OnTrending(trending []string)
	OnNotify(n Notification)
}

// Config 控制器参数。
type Config struct {
	SuggestDelay    time.Duration `yaml:"suggest_delay" json:"suggest_delay"`
	SearchDelay     time.Duration `yaml:"search_delay" json:"search_delay"`
	MinSuggestLen   int           `yaml:"min_suggest_len" json:"min_suggest_len"`
	HistoryLimit    int           `yaml:"history_limit" json:"history_limit"`
	DefaultLimit    int           `yaml:"default_limit" json:"default_limit"`
	DefaultRadiusKm float64       `yaml:"default_radius_km" json:"default_radius_km"`
}

func (c Config) withDefaults() Config {
	if c.SuggestDelay <= 0 {
		c.SuggestDelay = 300 * time.Millisecond
	}
	if c.SearchDelay <= 0 {
		c.SearchDelay = 500 * time.Millisecond
	}
	if c.MinSuggestLen <= 0 {
		c.MinSuggestLen = 2
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = defaultHistoryLimit
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = defaultLimit
	}
	if c.DefaultRadiusKm <= 0 {
		c.DefaultRadiusKm = defaultRadiusKm
	}
	return c
}

// Options 构造控制器所需依赖，API 与 Renderer 必填。
type Options struct {
	API       API
	Renderer  Renderer
	History   HistoryStore
	Locator   geolocation.Locator
	Logger    *log.Logger
	AfterFunc debounce.AfterFunc
	Now       func() time.Time
	Config    Config
}

// Controller 每个会话一个实例，所有方法可并发调用。
type Controller struct {
	api      API
	render   Renderer
	history  HistoryStore
	locator  geolocation.Locator
	logger   *log.Logger
	debounce *debounce.Debouncer
	now      func() time.Time
	cfg      Config

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	searching  bool
	rerun      bool
	seq        uint64
	suggestSeq uint64
	results    Results
	lastErr    error
	entries    []HistoryEntry
	closed     bool
}

// NewController 创建控制器并读取一次历史记录，读取失败时以空历史启动。
func NewController(opts Options) (*Controller, error) {
	if opts.API == nil || opts.Renderer == nil {
		return nil, fmt.Errorf("search controller requires api and renderer")
	}
	cfg := opts.Config.withDefaults()
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		api:      opts.API,
		render:   opts.Renderer,
		history:  opts.History,
		locator:  opts.Locator,
		logger:   logging.Component(opts.Logger, "search"),
		debounce: debounce.New(opts.AfterFunc),
		now:      now,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		state:    DefaultState(cfg),
	}

	if c.history != nil {
		entries, err := c.history.Load(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("load search history failed")
		} else {
			c.entries = capEntries(entries, cfg.HistoryLimit)
		}
	}
	return c, nil
}

// Close 取消所有待执行动作并使在途响应失效。
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.seq++
	c.suggestSeq++
	c.mu.Unlock()
	c.debounce.Stop()
	c.cancel()
}

// State 返回当前状态副本。
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Results 返回最近一次成功结果；最近一次失败后为空。
func (c *Controller) Results() (Results, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results, c.lastErr
}

// Searching 是否有请求在途。
func (c *Controller) Searching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.searching
}

// History 返回历史记录副本，最新在前。
func (c *Controller) History() []HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.entries)
}

// SetQuery 保存原始文本，分别防抖触发联想与搜索。
func (c *Controller) SetQuery(text string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.Query = text
	c.state.Pagination.Page = 1
	c.mu.Unlock()

	trimmed := strings.TrimSpace(text)
	c.debounce.Schedule(keySuggest, c.cfg.SuggestDelay, func() {
		c.fetchSuggestions(trimmed)
	})
	c.scheduleSearch()
}

// Search 发起一次搜索。已有请求在途时立即返回 ErrInFlight，不排队。
func (c *Controller) Search(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.searching {
		c.mu.Unlock()
		c.logger.Debug().Msg("search dropped: request in flight")
		return ErrInFlight
	}
	c.searching = true
	c.seq++
	seq := c.seq
	snapshot := c.state.clone()
	req := BuildRequest(snapshot, c.cfg)
	c.mu.Unlock()

	c.debounce.Cancel(keySearch)
	c.render.OnLoading(true)
	resp, err := c.api.Advanced(ctx, req)

	c.mu.Lock()
	c.searching = false
	if seq != c.seq {
		rerun := c.rerun && !c.closed
		c.rerun = false
		c.mu.Unlock()
		c.logger.Debug().Uint64("seq", seq).Bool("rerun", rerun).Msg("stale search response discarded")
		if rerun {
			_ = c.searchNow(c.ctx)
		}
		return ErrStale
	}

	if err != nil {
		c.results = Results{}
		c.lastErr = err
		c.mu.Unlock()

		c.logger.Warn().Str("kind", searchapi.KindOf(err).String()).Err(err).Msg("search failed")
		c.render.OnLoading(false)
		c.render.OnSearchFailed(err)
		return fmt.Errorf("search: %w", err)
	}

	page := resp.Pagination.Page
	if page < 1 {
		page = req.Page
	}
	limit := resp.Pagination.Limit
	if limit < 1 {
		limit = req.Limit
	}
	results := Results{
		Jobs:      resp.Jobs,
		Analytics: resp.Analytics,
		Page:      NewPageView(page, limit, resp.Pagination.Total),
		Request:   req,
	}
	if results.Jobs == nil {
		results.Jobs = []model.ScoredJob{}
	}
	c.results = results
	c.lastErr = nil
	entry := HistoryEntry{Query: snapshot.Query, Filters: snapshot.Filters, Timestamp: c.now().UnixMilli()}
	c.entries = capEntries(append([]HistoryEntry{entry}, c.entries...), c.cfg.HistoryLimit)
	entries := slices.Clone(c.entries)
	c.mu.Unlock()

	c.logger.Info().Int64("total", resp.Pagination.Total).Int("page", page).Int("jobs", len(results.Jobs)).Msg("search completed")
	c.render.OnLoading(false)
	c.render.OnResultsReady(results)
	c.saveHistory(ctx, entries)
	return nil
}

// Retry 在错误视图中重新执行搜索。
func (c *Controller) Retry(ctx context.Context) error {
	return c.Search(ctx)
}

// ClearSearch 清空查询并立即重新搜索，在途响应作废。
func (c *Controller) ClearSearch(ctx context.Context) error {
	c.mu.Lock()
	c.state.Query = ""
	c.state.Pagination.Page = 1
	c.invalidateLocked()
	c.mu.Unlock()

	c.debounce.Cancel(keySuggest)
	c.render.OnSuggestions(nil)
	return c.searchNow(ctx)
}

// ClearFilters 重置过滤条件并立即重新搜索，在途响应作废。
func (c *Controller) ClearFilters(ctx context.Context) error {
	c.mu.Lock()
	c.state.Filters = DefaultFilters(c.cfg.DefaultRadiusKm)
	c.state.Pagination.Page = 1
	c.invalidateLocked()
	c.mu.Unlock()
	return c.searchNow(ctx)
}

// SetPage 切换页码并立即搜索。
func (c *Controller) SetPage(ctx context.Context, page int) error {
	if page < 1 {
		return fmt.Errorf("%w: page %d", ErrInvalidValue, page)
	}
	c.mu.Lock()
	c.state.Pagination.Page = page
	c.mu.Unlock()
	return c.searchNow(ctx)
}

// SetLimit 修改每页数量，下一次搜索生效。
func (c *Controller) SetLimit(limit int) error {
	if limit < 1 {
		return fmt.Errorf("%w: limit %d", ErrInvalidValue, limit)
	}
	c.mu.Lock()
	c.state.Pagination.Limit = limit
	c.state.Pagination.Page = 1
	c.mu.Unlock()
	return nil
}

// EnableLocation 获取用户位置；成功后写入过滤条件并立即搜索，失败只提示不改动过滤。
func (c *Controller) EnableLocation(ctx context.Context) error {
	if c.locator == nil {
		c.render.OnNotify(Notification{Level: NotifyError, Message: "Geolocation is not supported"})
		return geolocation.ErrUnsupported
	}
	fix, err := c.locator.Locate(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("geolocation failed")
		c.render.OnNotify(Notification{Level: NotifyError, Message: locationMessage(err)})
		return err
	}

	c.mu.Lock()
	c.state.Filters.Latitude = ptr(fix.Point.Lat)
	c.state.Filters.Longitude = ptr(fix.Point.Lng)
	c.state.Pagination.Page = 1
	c.mu.Unlock()

	c.render.OnNotify(Notification{Level: NotifySuccess, Message: "Location enabled - showing nearby jobs first"})
	return c.searchNow(ctx)
}

// DisableLocation 清除用户坐标并立即搜索。
func (c *Controller) DisableLocation(ctx context.Context) error {
	c.mu.Lock()
	c.state.Filters.Latitude = nil
	c.state.Filters.Longitude = nil
	c.mu.Unlock()
	return c.searchNow(ctx)
}

// SelectSuggestion 采用联想词作为查询并立即搜索。
func (c *Controller) SelectSuggestion(ctx context.Context, suggestion string) error {
	c.setQueryNow(suggestion)
	c.render.OnSuggestions(nil)
	return c.searchNow(ctx)
}

// SearchTrending 采用热门搜索词作为查询并立即搜索。
func (c *Controller) SearchTrending(ctx context.Context, query string) error {
	c.setQueryNow(query)
	return c.searchNow(ctx)
}

// LoadTrending 拉取热门搜索；失败只记录日志。
func (c *Controller) LoadTrending(ctx context.Context) error {
	trending, err := c.api.Trending(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("load trending failed")
		return fmt.Errorf("load trending: %w", err)
	}
	c.render.OnTrending(trending)
	return nil
}

func (c *Controller) setQueryNow(q string) {
	c.debounce.Cancel(keySuggest)
	c.mu.Lock()
	c.state.Query = q
	c.state.Pagination.Page = 1
	c.suggestSeq++
	c.mu.Unlock()
}

// searchNow 立即搜索，被在途请求丢弃不视为错误。
func (c *Controller) searchNow(ctx context.Context) error {
	err := c.Search(ctx)
	if errors.Is(err, ErrInFlight) || errors.Is(err, ErrStale) {
		return nil
	}
	return err
}

func (c *Controller) scheduleSearch() {
	c.debounce.Schedule(keySearch, c.cfg.SearchDelay, func() {
		_ = c.searchNow(c.ctx)
	})
}

// invalidateLocked 使在途响应作废；有在途请求时不并发发起新请求，
// 而是在旧响应返回后按最新状态重新搜索。调用方持锁。
func (c *Controller) invalidateLocked() {
	c.seq++
	if c.searching {
		c.rerun = true
	}
}

func (c *Controller) fetchSuggestions(q string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.suggestSeq++
	seq := c.suggestSeq
	c.mu.Unlock()

	if len([]rune(q)) < c.cfg.MinSuggestLen {
		c.render.OnSuggestions(nil)
		return
	}

	suggestions, err := c.api.Suggestions(c.ctx, q)
	if err != nil {
		c.logger.Warn().Str("query", q).Err(err).Msg("fetch suggestions failed")
		return
	}

	c.mu.Lock()
	latest := seq == c.suggestSeq
	c.mu.Unlock()
	if !latest {
		return
	}
	c.render.OnSuggestions(suggestions)
}

func (c *Controller) saveHistory(ctx context.Context, entries []HistoryEntry) {
	if c.history == nil {
		return
	}
	if err := c.history.Save(ctx, entries); err != nil {
		c.logger.Warn().Err(err).Msg("save search history failed")
	}
}

func locationMessage(err error) string {
	switch {
	case errors.Is(err, geolocation.ErrUnsupported):
		return "Geolocation is not supported"
	case errors.Is(err, geolocation.ErrPermissionDenied):
		return "Location permission denied"
	case errors.Is(err, geolocation.ErrTimeout):
		return "Timed out getting your location"
	default:
		return "Could not get your location"
	}
}
