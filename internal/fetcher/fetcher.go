package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"loco-platform/internal/logging"
	"loco-platform/internal/model"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	"gorm.io/datatypes"
)

// Config 定义抓取配置。
type Config struct {
	// Source 为 supabase 或 postgres。
	Source      string `yaml:"source" json:"source"`
	BaseURL     string `yaml:"base_url" json:"base_url"`
	ServiceKey  string `yaml:"service_key" json:"service_key"`
	Table       string `yaml:"table" json:"table"`
	DatabaseURL string `yaml:"database_url" json:"database_url"`
	PageSize    int    `yaml:"page_size" json:"page_size"`
	MaxPages    int    `yaml:"max_pages" json:"max_pages"`
}

func (c Config) withDefaults() Config {
	if c.Table == "" {
		c.Table = "jobs"
	}
	if c.PageSize <= 0 {
		c.PageSize = 200
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 50
	}
	return c
}

// JobFetcher 抓取统一接口。
type JobFetcher interface {
	Fetch(ctx context.Context) ([]model.Job, error)
}

// SupabaseFetcher 通过 PostgREST 接口分页拉取职位表。
type SupabaseFetcher struct {
	baseURL string
	key     string
	client  *http.Client
	cfg     Config
	logger  *log.Logger
}

// NewSupabaseFetcher 创建抓取器，baseURL 形如 https://xyz.supabase.co。
func NewSupabaseFetcher(cfg Config, client *http.Client, logger *log.Logger) *SupabaseFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	cfg = cfg.withDefaults()
	return &SupabaseFetcher{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		key:     cfg.ServiceKey,
		client:  client,
		cfg:     cfg,
		logger:  logging.Component(logger, "fetcher"),
	}
}

// Fetch 逐页读取直到某页不足 PageSize 或达到 MaxPages。
func (s *SupabaseFetcher) Fetch(ctx context.Context) ([]model.Job, error) {
	jobs := make([]model.Job, 0)
	seen := make(map[string]struct{})

	s.logger.Info().Str("base", s.baseURL).Str("table", s.cfg.Table).Int("page_size", s.cfg.PageSize).Msg("start fetch")

	for page := 0; page < s.cfg.MaxPages; page++ {
		pageURL, err := s.buildPageURL(page)
		if err != nil {
			return nil, fmt.Errorf("build url: %w", err)
		}

		rows, err := s.fetchPage(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		accepted := 0
		for _, raw := range rows {
			job, err := decodeRow(raw)
			if err != nil {
				s.logger.Warn().Err(err).Int("page", page).Msg("skip malformed row")
				continue
			}
			if _, dup := seen[job.ID]; dup {
				continue
			}
			seen[job.ID] = struct{}{}
			jobs = append(jobs, job)
			accepted++
		}
		s.logger.Debug().Int("page", page).Int("rows", len(rows)).Int("accepted", accepted).Msg("page fetched")

		if len(rows) < s.cfg.PageSize {
			break
		}
	}

	s.logger.Info().Int("total_jobs", len(jobs)).Msg("fetch done")
	return jobs, nil
}

func (s *SupabaseFetcher) buildPageURL(page int) (string, error) {
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base: %w", err)
	}
	full := base.JoinPath("rest", "v1", s.cfg.Table)
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc,id.asc")
	q.Set("limit", strconv.Itoa(s.cfg.PageSize))
	q.Set("offset", strconv.Itoa(page*s.cfg.PageSize))
	full.RawQuery = q.Encode()
	return full.String(), nil
}

func (s *SupabaseFetcher) fetchPage(ctx context.Context, pageURL string) ([]map[string]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.key != "" {
		req.Header.Set("apikey", s.key)
		req.Header.Set("Authorization", "Bearer "+s.key)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rows []map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return rows, nil
}

// jobRow 上游 jobs 表中已建模的列。
type jobRow struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Company          string    `json:"company"`
	Location         string    `json:"location"`
	JobType          string    `json:"job_type"`
	SalaryRangeStart *float64  `json:"salary_range_start"`
	SalaryRangeEnd   *float64  `json:"salary_range_end"`
	Description      string    `json:"description"`
	IsUrgent         bool      `json:"is_urgent"`
	RemotePossible   bool      `json:"remote_possible"`
	Latitude         *float64  `json:"latitude"`
	Longitude        *float64  `json:"longitude"`
	CreatedAt        time.Time `json:"created_at"`
}

var knownColumns = map[string]struct{}{
	"id": {}, "title": {}, "company": {}, "location": {}, "job_type": {},
	"salary_range_start": {}, "salary_range_end": {}, "description": {},
	"is_urgent": {}, "remote_possible": {}, "latitude": {}, "longitude": {},
	"created_at": {}, "updated_at": {},
}

// decodeRow 映射已知列，其余列保存到 Attributes。
func decodeRow(raw map[string]json.RawMessage) (model.Job, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return model.Job{}, fmt.Errorf("re-encode row: %w", err)
	}
	var row jobRow
	if err := json.Unmarshal(data, &row); err != nil {
		return model.Job{}, fmt.Errorf("decode row: %w", err)
	}

	attrs := datatypes.JSONMap{}
	for k, v := range raw {
		if _, ok := knownColumns[k]; ok {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err == nil {
			attrs[k] = val
		}
	}
	return row.toJob(attrs), nil
}

func (r jobRow) toJob(attrs datatypes.JSONMap) model.Job {
	job := model.Job{
		ID:               strings.TrimSpace(r.ID),
		Title:            strings.TrimSpace(r.Title),
		Company:          strings.TrimSpace(r.Company),
		Location:         strings.TrimSpace(r.Location),
		SalaryRangeStart: roundSalary(r.SalaryRangeStart),
		SalaryRangeEnd:   roundSalary(r.SalaryRangeEnd),
		Description:      r.Description,
		IsUrgent:         r.IsUrgent,
		RemotePossible:   r.RemotePossible,
		Latitude:         r.Latitude,
		Longitude:        r.Longitude,
		CreatedAt:        r.CreatedAt,
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if jt, err := model.ParseJobType(r.JobType); err == nil {
		job.JobType = jt
	}
	if len(attrs) > 0 {
		job.Attributes = attrs
	}
	return job
}

func roundSalary(v *float64) *int {
	if v == nil {
		return nil
	}
	n := int(*v + 0.5)
	return &n
}
