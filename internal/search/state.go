package search

import (
	"math"
	"slices"
	"strings"

	"loco-platform/internal/model"
)

const (
	defaultRadiusKm = 50
	defaultLimit    = 20
)

// Filters 搜索过滤条件，JSON 字段名与历史记录的持久化格式一致。
type Filters struct {
	JobTypes       []model.JobType `json:"jobTypes"`
	Locations      []string        `json:"locations"`
	SalaryMin      *int            `json:"salaryMin"`
	SalaryMax      *int            `json:"salaryMax"`
	IsUrgent       bool            `json:"isUrgent"`
	RemotePossible bool            `json:"remotePossible"`
	RadiusKm       float64         `json:"radiusKm"`
	Latitude       *float64        `json:"latitude"`
	Longitude      *float64        `json:"longitude"`
}

// HasLocation 用户坐标是否已设置。
func (f Filters) HasLocation() bool {
	return f.Latitude != nil && f.Longitude != nil
}

func (f Filters) clone() Filters {
	out := f
	out.JobTypes = slices.Clone(f.JobTypes)
	out.Locations = slices.Clone(f.Locations)
	return out
}

// Sorting 排序设置。
type Sorting struct {
	SortBy    model.SortBy    `json:"sortBy"`
	SortOrder model.SortOrder `json:"sortOrder"`
}

// Pagination 分页设置，Page 从 1 开始。
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// State 控制器持有的完整搜索状态。
type State struct {
	Query      string
	Filters    Filters
	Sorting    Sorting
	Pagination Pagination
}

// DefaultFilters 返回初始过滤条件。
func DefaultFilters(radiusKm float64) Filters {
	if radiusKm <= 0 {
		radiusKm = defaultRadiusKm
	}
	return Filters{RadiusKm: radiusKm}
}

// DefaultState 返回初始状态：相关度倒序、第 1 页。
func DefaultState(cfg Config) State {
	cfg = cfg.withDefaults()
	return State{
		Filters:    DefaultFilters(cfg.DefaultRadiusKm),
		Sorting:    Sorting{SortBy: model.SortRelevance, SortOrder: model.SortDesc},
		Pagination: Pagination{Page: 1, Limit: cfg.DefaultLimit},
	}
}

func (s State) clone() State {
	out := s
	out.Filters = s.Filters.clone()
	return out
}

// BuildRequest 把状态转换为请求体，只包含非默认字段；page 与 limit 总是携带。
func BuildRequest(s State, cfg Config) model.SearchRequest {
	cfg = cfg.withDefaults()

	req := model.SearchRequest{Page: s.Pagination.Page, Limit: s.Pagination.Limit}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 {
		req.Limit = cfg.DefaultLimit
	}

	if q := strings.TrimSpace(s.Query); q != "" {
		req.Query = &q
	}
	f := s.Filters
	if len(f.JobTypes) > 0 {
		req.JobTypes = slices.Clone(f.JobTypes)
	}
	if len(f.Locations) > 0 {
		req.Locations = slices.Clone(f.Locations)
	}
	if f.SalaryMin != nil {
		v := *f.SalaryMin
		req.MinSalary = &v
	}
	if f.SalaryMax != nil {
		v := *f.SalaryMax
		req.MaxSalary = &v
	}
	if f.IsUrgent {
		req.IsUrgent = ptr(true)
	}
	if f.RemotePossible {
		req.RemotePossible = ptr(true)
	}
	if f.HasLocation() {
		req.Latitude = ptr(*f.Latitude)
		req.Longitude = ptr(*f.Longitude)
	}
	if f.HasLocation() || (f.RadiusKm > 0 && f.RadiusKm != cfg.DefaultRadiusKm) {
		req.RadiusKm = ptr(f.RadiusKm)
	}
	// 带 sort_by 时总是带上方向，避免两端默认方向不一致
	if s.Sorting.SortBy != "" && s.Sorting.SortBy != model.SortRelevance {
		req.SortBy = ptr(s.Sorting.SortBy)
	}
	if order := s.Sorting.SortOrder; order != "" && (req.SortBy != nil || order != model.SortDesc) {
		req.SortOrder = ptr(order)
	}
	return req
}

// PageView 分页控件的渲染数据。
type PageView struct {
	Page       int   `json:"page"`
	TotalPages int   `json:"total_pages"`
	Total      int64 `json:"total"`
	Limit      int   `json:"limit"`
	Window     []int `json:"window"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
	// OutOfRange 页码超出结果集，渲染为空页。
	OutOfRange bool `json:"out_of_range"`
}

// NewPageView 按 page±2 计算页码窗口。
func NewPageView(page int, limit int, total int64) PageView {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	v := PageView{
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
		Limit:      limit,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
		OutOfRange: (totalPages > 0 && page > totalPages) || (totalPages == 0 && page > 1),
		Window:     []int{},
	}
	start := max(1, page-2)
	end := min(totalPages, page+2)
	for i := start; i <= end; i++ {
		v.Window = append(v.Window, i)
	}
	return v
}

func toggle[T comparable](list []T, v T) []T {
	if i := slices.Index(list, v); i >= 0 {
		return slices.Delete(slices.Clone(list), i, i+1)
	}
	return append(slices.Clone(list), v)
}

func ptr[T any](v T) *T { return &v }
