package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"loco-platform/internal/cluster"
	"loco-platform/internal/logging"
	"loco-platform/internal/model"
	"loco-platform/internal/scheduler"
	"loco-platform/internal/searchapi"
	"loco-platform/internal/storage"
)

func TestListJobs(t *testing.T) {
	t.Parallel()

	st := &stubStore{jobs: []model.Job{{ID: "1", Title: "Pharmacist"}, {ID: "2"}, {ID: "3"}}, total: 7}
	h := newTestHandler(st, &stubSearcher{}, &stubScheduler{})

	w := serve(h, http.MethodGet, "/api/jobs?limit=2&page=2&job_type=full_time&location=VIC&urgent=true", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if st.calls != 1 {
		t.Fatalf("expected store called once, got %d", st.calls)
	}
	if st.opts.Limit != 3 || st.opts.Offset != 2 {
		t.Fatalf("expected limit+1 and offset, got %+v", st.opts)
	}
	if !st.opts.UrgentOnly || st.opts.JobTypes[0] != model.JobTypeFullTime || st.opts.Locations[0] != "VIC" {
		t.Fatalf("filters not passed: %+v", st.opts)
	}
	if st.countOpts.Limit != 0 || !st.countOpts.UrgentOnly {
		t.Fatalf("count must use filters without paging: %+v", st.countOpts)
	}
	if w.Header().Get("X-Has-More") != "true" || w.Header().Get("X-Total") != "7" || w.Header().Get("X-Page") != "2" {
		t.Fatalf("unexpected paging headers %v", w.Header())
	}

	var body struct {
		Jobs []model.Job `json:"jobs"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Jobs) != 2 {
		t.Fatalf("expected page trimmed to limit, got %d", len(body.Jobs))
	}
}

func TestListJobsRejectsBadFilter(t *testing.T) {
	t.Parallel()

	h := newTestHandler(&stubStore{}, &stubSearcher{}, nil)
	if w := serve(h, http.MethodGet, "/api/jobs?job_type=astronaut", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetJob(t *testing.T) {
	t.Parallel()

	st := &stubStore{jobs: []model.Job{{ID: "abc", Title: "Locum"}}}
	h := newTestHandler(st, &stubSearcher{}, nil)

	w := serve(h, http.MethodGet, "/api/jobs/abc", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"title":"Locum"`) {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
	if w := serve(h, http.MethodGet, "/api/jobs/missing", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAdvancedSearch(t *testing.T) {
	t.Parallel()

	se := &stubSearcher{resp: model.SearchResponse{
		Jobs:       []model.ScoredJob{{Job: model.Job{ID: "1"}, RelevanceScore: 0.4, MatchReasons: []string{"Urgent hiring"}}},
		Pagination: model.Pagination{Page: 1, Limit: 20, Total: 1},
	}}
	h := newTestHandler(&stubStore{}, se, nil)

	w := serve(h, http.MethodPost, "/api/v1/search/advanced", `{"query":"clinical","job_types":["FullTime"],"page":1,"limit":20}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if se.req.Query == nil || *se.req.Query != "clinical" || se.req.JobTypes[0] != model.JobTypeFullTime {
		t.Fatalf("request not decoded: %+v", se.req)
	}
	var resp model.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Jobs) != 1 || resp.Jobs[0].MatchReasons[0] != "Urgent hiring" {
		t.Fatalf("unexpected response %+v", resp)
	}

	if w := serve(h, http.MethodPost, "/api/v1/search/advanced", `{`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad payload, got %d", w.Code)
	}
	if w := serve(h, http.MethodGet, "/api/v1/search/advanced", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}

	se.err = errors.New("db down")
	if w := serve(h, http.MethodPost, "/api/v1/search/advanced", `{}`); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestSuggestionsAndTrending(t *testing.T) {
	t.Parallel()

	se := &stubSearcher{suggestions: []string{"clinical pharmacist"}, trending: []string{"locum"}}
	h := newTestHandler(&stubStore{}, se, nil)

	w := serve(h, http.MethodGet, "/api/v1/search/suggestions?q=clin", "")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != `{"suggestions":["clinical pharmacist"]}` || se.q != "clin" {
		t.Fatalf("unexpected suggestions %d %s", w.Code, w.Body.String())
	}
	w = serve(h, http.MethodGet, "/api/v1/search/trending", "")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != `{"trending":["locum"]}` {
		t.Fatalf("unexpected trending %d %s", w.Code, w.Body.String())
	}
}

func TestSuggestionsEmptyIsArray(t *testing.T) {
	t.Parallel()

	h := newTestHandler(&stubStore{}, &stubSearcher{}, nil)
	w := serve(h, http.MethodGet, "/api/v1/search/suggestions?q=x", "")
	if strings.TrimSpace(w.Body.String()) != `{"suggestions":[]}` {
		t.Fatalf("expected empty array, got %s", w.Body.String())
	}
}

// 真实客户端与处理器之间的线上格式必须一致。
func TestSearchAPIClientRoundTrip(t *testing.T) {
	t.Parallel()

	se := &stubSearcher{
		suggestions: []string{"clinical pharmacist"},
		trending:    []string{"locum", "hospital"},
		resp:        model.SearchResponse{Jobs: []model.ScoredJob{{Job: model.Job{ID: "a"}}}, Pagination: model.Pagination{Page: 1, Limit: 20, Total: 1}},
	}
	st := &stubStore{jobs: []model.Job{{ID: "j1"}}, total: 1}
	srv := httptest.NewServer(newTestHandler(st, se, nil))
	defer srv.Close()

	client := searchapi.NewClient(searchapi.Config{BaseURL: srv.URL}, srv.Client(), logging.Discard())
	ctx := context.Background()

	sugg, err := client.Suggestions(ctx, "clin")
	if err != nil || len(sugg) != 1 || sugg[0] != "clinical pharmacist" {
		t.Fatalf("suggestions: %v %v", sugg, err)
	}
	trending, err := client.Trending(ctx)
	if err != nil || len(trending) != 2 || trending[1] != "hospital" {
		t.Fatalf("trending: %v %v", trending, err)
	}
	resp, err := client.Advanced(ctx, model.SearchRequest{Page: 1, Limit: 20})
	if err != nil || len(resp.Jobs) != 1 || resp.Pagination.Total != 1 {
		t.Fatalf("advanced: %+v %v", resp, err)
	}
	jobs, err := client.Jobs(ctx, 1, 20)
	if err != nil || len(jobs) != 1 || jobs[0].ID != "j1" {
		t.Fatalf("jobs: %v %v", jobs, err)
	}
}

func TestClusters(t *testing.T) {
	t.Parallel()

	se := &stubSearcher{clusters: []cluster.Cluster{{TotalJobs: 2}}}
	h := newTestHandler(&stubStore{}, se, nil)

	w := serve(h, http.MethodGet, "/api/v1/map/clusters?zoom=8&strategy=density", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if se.zoom != 8 || se.strategy != cluster.StrategyDensity {
		t.Fatalf("unexpected args zoom=%v strategy=%s", se.zoom, se.strategy)
	}

	serve(h, http.MethodGet, "/api/v1/map/clusters", "")
	if se.zoom != defaultZoom || se.strategy != cluster.StrategySmart {
		t.Fatalf("expected defaults, got zoom=%v strategy=%s", se.zoom, se.strategy)
	}

	for _, target := range []string{"/api/v1/map/clusters?zoom=abc", "/api/v1/map/clusters?strategy=bogus"} {
		if w := serve(h, http.MethodGet, target, ""); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, w.Code)
		}
	}
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	sch := &stubScheduler{report: scheduler.Report{Fetched: 3, Created: 2}}
	h := newTestHandler(&stubStore{}, &stubSearcher{}, sch)

	w := serve(h, http.MethodPost, "/api/refresh", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"created":2`) {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
	if sch.calls != 1 {
		t.Fatalf("expected scheduler called once, got %d", sch.calls)
	}

	sch.report = scheduler.Report{Skipped: true}
	if w := serve(h, http.MethodPost, "/api/refresh", ""); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 when busy, got %d", w.Code)
	}

	disabled := newTestHandler(&stubStore{}, &stubSearcher{}, nil)
	if w := serve(disabled, http.MethodPost, "/api/refresh", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without scheduler, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	st := &stubStore{}
	h := newTestHandler(st, &stubSearcher{}, nil)
	if w := serve(h, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	st.pingErr = errors.New("locked")
	if w := serve(h, http.MethodGet, "/health", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if w := serve(h, http.MethodGet, "/api/meta", ""); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"Over $120k"`) {
		t.Fatalf("unexpected meta %d %s", w.Code, w.Body.String())
	}
}

func newTestHandler(st Store, se Searcher, sch Scheduler) http.Handler {
	return NewHandler(st, se, sch, logging.Discard())
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// --- stubs ---

type stubStore struct {
	jobs      []model.Job
	total     int64
	calls     int
	opts      storage.JobQueryOptions
	countOpts storage.JobQueryOptions
	pingErr   error
}

func (s *stubStore) ListJobs(_ context.Context, opts storage.JobQueryOptions) ([]model.Job, error) {
	s.calls++
	s.opts = opts
	return s.jobs, nil
}

func (s *stubStore) CountJobs(_ context.Context, opts storage.JobQueryOptions) (int64, error) {
	s.countOpts = opts
	return s.total, nil
}

func (s *stubStore) GetJob(_ context.Context, id string) (*model.Job, error) {
	for _, j := range s.jobs {
		if j.ID == id {
			return &j, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *stubStore) Ping(context.Context) error { return s.pingErr }

type stubSearcher struct {
	resp        model.SearchResponse
	err         error
	req         model.SearchRequest
	suggestions []string
	trending    []string
	q           string
	clusters    []cluster.Cluster
	zoom        float64
	strategy    cluster.Strategy
}

func (s *stubSearcher) Search(_ context.Context, req model.SearchRequest) (model.SearchResponse, error) {
	s.req = req
	return s.resp, s.err
}

func (s *stubSearcher) Suggestions(_ context.Context, q string) ([]string, error) {
	s.q = q
	return s.suggestions, nil
}

func (s *stubSearcher) Trending(context.Context) ([]string, error) { return s.trending, nil }

func (s *stubSearcher) Clusters(_ context.Context, zoom float64, strategy cluster.Strategy) ([]cluster.Cluster, error) {
	s.zoom, s.strategy = zoom, strategy
	return s.clusters, nil
}

type stubScheduler struct {
	report scheduler.Report
	calls  int
}

func (s *stubScheduler) RunOnce(context.Context) (scheduler.Report, error) {
	s.calls++
	return s.report, nil
}
