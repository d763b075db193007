package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"loco-platform/internal/cluster"
	"loco-platform/internal/engine"
	"loco-platform/internal/logging"
	"loco-platform/internal/model"
	"loco-platform/internal/scheduler"
	"loco-platform/internal/storage"

	"github.com/phuslu/log"
)

// Store 抽象存储接口。
type Store interface {
	ListJobs(ctx context.Context, opts storage.JobQueryOptions) ([]model.Job, error)
	CountJobs(ctx context.Context, opts storage.JobQueryOptions) (int64, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
	Ping(ctx context.Context) error
}

// Searcher 抽象搜索服务，*engine.Engine 满足此接口。
type Searcher interface {
	Search(ctx context.Context, req model.SearchRequest) (model.SearchResponse, error)
	Suggestions(ctx context.Context, q string) ([]string, error)
	Trending(ctx context.Context) ([]string, error)
	Clusters(ctx context.Context, zoom float64, strategy cluster.Strategy) ([]cluster.Cluster, error)
}

// Scheduler 抽象调度接口。
type Scheduler interface {
	RunOnce(ctx context.Context) (scheduler.Report, error)
}

var _ Searcher = (*engine.Engine)(nil)

// MetaResponse 暴露筛选元数据。
type MetaResponse struct {
	JobTypes          []model.JobType    `json:"job_types"`
	SortOptions       []model.SortBy     `json:"sort_options"`
	SalaryRanges      []string           `json:"salary_ranges"`
	States            []string           `json:"states"`
	ClusterStrategies []cluster.Strategy `json:"cluster_strategies"`
}

func defaultMeta() MetaResponse {
	return MetaResponse{
		JobTypes:          model.JobTypes(),
		SortOptions:       []model.SortBy{model.SortRelevance, model.SortDate, model.SortSalary, model.SortDistance},
		SalaryRanges:      []string{"Under $60k", "$60k-$80k", "$80k-$100k", "$100k-$120k", "Over $120k"},
		States:            []string{"NSW", "VIC", "QLD", "WA", "SA", "TAS", "ACT", "NT"},
		ClusterStrategies: []cluster.Strategy{cluster.StrategySmart, cluster.StrategyDistance, cluster.StrategyDensity, cluster.StrategySalary},
	}
}

const (
	defaultLimit = 20
	maxLimit     = 100
	defaultZoom  = 10.0
)

// NewHandler 构造 HTTP 多路复用器，sched 为空时不提供手动刷新。
func NewHandler(store Store, search Searcher, sched Scheduler, logger *log.Logger) http.Handler {
	logger = logging.Component(logger, "api")
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /api/meta", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, defaultMeta())
	})

	mux.HandleFunc("GET /api/jobs", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := defaultLimit
		if l := q.Get("limit"); l != "" {
			if v, err := strconv.Atoi(l); err == nil && v > 0 {
				limit = min(v, maxLimit)
			}
		}
		page := 1
		if p := q.Get("page"); p != "" {
			if v, err := strconv.Atoi(p); err == nil && v > 0 {
				page = v
			}
		}

		filter, err := jobFilter(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		opts := filter
		opts.Offset = (page - 1) * limit
		opts.Limit = limit + 1

		jobs, err := store.ListJobs(r.Context(), opts)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		total, err := store.CountJobs(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		hasMore := false
		if len(jobs) > limit {
			hasMore = true
			jobs = jobs[:limit]
		}
		if jobs == nil {
			jobs = []model.Job{}
		}

		w.Header().Set("X-Page", strconv.Itoa(page))
		w.Header().Set("X-Limit", strconv.Itoa(limit))
		w.Header().Set("X-Has-More", strconv.FormatBool(hasMore))
		w.Header().Set("X-Total", strconv.FormatInt(total, 10))
		writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
	})

	mux.HandleFunc("GET /api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		job, err := store.GetJob(r.Context(), r.PathValue("id"))
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	})

	mux.HandleFunc("POST /api/v1/search/advanced", func(w http.ResponseWriter, r *http.Request) {
		var req model.SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		resp, err := search.Search(r.Context(), req)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("GET /api/v1/search/suggestions", func(w http.ResponseWriter, r *http.Request) {
		out, err := search.Suggestions(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"suggestions": nonNil(out)})
	})

	mux.HandleFunc("GET /api/v1/search/trending", func(w http.ResponseWriter, r *http.Request) {
		out, err := search.Trending(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"trending": nonNil(out)})
	})

	mux.HandleFunc("GET /api/v1/map/clusters", func(w http.ResponseWriter, r *http.Request) {
		zoom := defaultZoom
		if z := r.URL.Query().Get("zoom"); z != "" {
			v, err := strconv.ParseFloat(z, 64)
			if err != nil || v < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid zoom"})
				return
			}
			zoom = v
		}
		strategy, err := cluster.ParseStrategy(r.URL.Query().Get("strategy"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		clusters, err := search.Clusters(r.Context(), zoom, strategy)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"zoom": zoom, "strategy": strategy, "clusters": clusters})
	})

	mux.HandleFunc("POST /api/refresh", func(w http.ResponseWriter, r *http.Request) {
		if sched == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "sync disabled"})
			return
		}
		report, err := sched.RunOnce(r.Context())
		if err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		status := http.StatusOK
		if report.Skipped {
			status = http.StatusAccepted
		}
		writeJSON(w, status, report)
	})

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "loco platform api"})
	})

	return withLogging(mux, logger)
}

// jobFilter 解析 /api/jobs 的可选过滤参数。
func jobFilter(q map[string][]string) (storage.JobQueryOptions, error) {
	var opts storage.JobQueryOptions
	for _, raw := range q["job_type"] {
		jt, err := model.ParseJobType(raw)
		if err != nil {
			return opts, err
		}
		opts.JobTypes = append(opts.JobTypes, jt)
	}
	for _, loc := range q["location"] {
		if loc = strings.TrimSpace(loc); loc != "" {
			opts.Locations = append(opts.Locations, loc)
		}
	}
	if v := first(q["urgent"]); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New("invalid urgent flag")
		}
		opts.UrgentOnly = b
	}
	opts.Text = first(q["q"])
	return opts, nil
}

func nonNil(vs []string) []string {
	if vs == nil {
		return []string{}
	}
	return vs
}

func first(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func withLogging(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		entry := logger.Debug()
		if rec.status >= http.StatusInternalServerError {
			entry = logger.Error()
		}
		entry.Str("method", r.Method).Str("path", r.URL.Path).Int("status", rec.status).Dur("took", time.Since(start)).Msg("request")
	})
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
