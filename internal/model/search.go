package model

import "time"

// SortBy 排序字段。
type SortBy string

const (
	SortRelevance SortBy = "relevance"
	SortDate      SortBy = "date"
	SortSalary    SortBy = "salary"
	SortDistance  SortBy = "distance"
)

// SortOrder 排序方向。
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// DefaultOrder 返回排序字段的默认方向：distance 升序，其它降序。
func (b SortBy) DefaultOrder() SortOrder {
	if b == SortDistance {
		return SortAsc
	}
	return SortDesc
}

// ScoredJob 由搜索服务返回，附带相关度与匹配原因。
type ScoredJob struct {
	Job            Job      `json:"job"`
	RelevanceScore float64  `json:"relevance_score"`
	MatchReasons   []string `json:"match_reasons"`
	DistanceKm     *float64 `json:"distance_km,omitempty"`
}

// SearchRequest 高级搜索请求体，缺省字段表示不限制。
type SearchRequest struct {
	Query          *string    `json:"query,omitempty"`
	JobTypes       []JobType  `json:"job_types,omitempty"`
	Locations      []string   `json:"locations,omitempty"`
	MinSalary      *int       `json:"min_salary,omitempty"`
	MaxSalary      *int       `json:"max_salary,omitempty"`
	IsUrgent       *bool      `json:"is_urgent,omitempty"`
	RemotePossible *bool      `json:"remote_possible,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	RadiusKm       *float64   `json:"radius_km,omitempty"`
	SortBy         *SortBy    `json:"sort_by,omitempty"`
	SortOrder      *SortOrder `json:"sort_order,omitempty"`
	Page           int        `json:"page"`
	Limit          int        `json:"limit"`
}

// HasLocation 请求是否携带用户坐标。
func (r SearchRequest) HasLocation() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// EmployerCount 雇主及其职位数量。
type EmployerCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Analytics 搜索统计信息。
type Analytics struct {
	TotalResults         int64           `json:"total_results"`
	AvgSalary            *float64        `json:"avg_salary"`
	TopEmployers         []EmployerCount `json:"top_employers"`
	SalaryDistribution   map[string]int  `json:"salary_distribution"`
	LocationDistribution map[string]int  `json:"location_distribution"`
	JobTypeDistribution  map[string]int  `json:"job_type_distribution"`
}

// Pagination 分页信息。
type Pagination struct {
	Page    int   `json:"page"`
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	HasMore bool  `json:"has_more"`
}

// SearchResponse 高级搜索响应。
type SearchResponse struct {
	Jobs       []ScoredJob `json:"jobs"`
	Analytics  Analytics   `json:"analytics"`
	Pagination Pagination  `json:"pagination"`
}

// SearchLog 记录一次服务端搜索，用于热门搜索统计。
type SearchLog struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Query     string    `gorm:"index" json:"query"`
	Results   int64     `json:"results"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// Setting 通用键值记录，保存客户端持久化状态（如搜索历史）。
type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
