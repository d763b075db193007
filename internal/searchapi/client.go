// Package searchapi 是搜索服务的 HTTP 客户端，供搜索控制器与命令行工具使用。
package searchapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"loco-platform/internal/logging"
	"loco-platform/internal/model"

	"github.com/phuslu/log"
	"golang.org/x/time/rate"
)

// Kind 区分失败类别，用户侧统一展示为“搜索失败，请重试”。
type Kind int

const (
	KindNetworkFailure Kind = iota + 1
	KindNonSuccessStatus
	KindTimeout
	// KindMalformedResponse 2xx 响应体无法解码。
	KindMalformedResponse
)

func (k Kind) String() string {
	switch k {
	case KindNetworkFailure:
		return "network_failure"
	case KindNonSuccessStatus:
		return "non_success_status"
	case KindTimeout:
		return "timeout"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// Error 请求失败的类型化错误。
type Error struct {
	Kind     Kind
	Status   int
	Endpoint string
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNonSuccessStatus:
		return fmt.Sprintf("search api %s: status %d", e.Endpoint, e.Status)
	default:
		return fmt.Sprintf("search api %s: %s: %v", e.Endpoint, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf 返回错误的类别，非 *Error 返回 0。
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

// Config 客户端配置。
type Config struct {
	BaseURL        string  `yaml:"base_url" json:"base_url"`
	Timeout        string  `yaml:"timeout" json:"timeout"`
	RequestsPerSec float64 `yaml:"requests_per_sec" json:"requests_per_sec"`
	Burst          int     `yaml:"burst" json:"burst"`
}

// Client 调用 /api/v1/search/* 与 /api/jobs。
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewClient 创建客户端，client 为空时按配置超时构造。
func NewClient(cfg Config, client *http.Client, logger *log.Logger) *Client {
	if client == nil {
		timeout := 15 * time.Second
		if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
			timeout = d
		}
		client = &http.Client{Timeout: timeout}
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = "http://localhost:8080"
	}
	return &Client{
		baseURL: base,
		http:    client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logging.Component(logger, "searchapi"),
	}
}

// Advanced 调用 POST /api/v1/search/advanced。
func (c *Client) Advanced(ctx context.Context, req model.SearchRequest) (model.SearchResponse, error) {
	var resp model.SearchResponse
	body, err := json.Marshal(req)
	if err != nil {
		return resp, fmt.Errorf("encode search request: %w", err)
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/search/advanced", nil, body, &resp); err != nil {
		return model.SearchResponse{}, err
	}
	return resp, nil
}

// Suggestions 调用 GET /api/v1/search/suggestions。
func (c *Client) Suggestions(ctx context.Context, q string) ([]string, error) {
	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/search/suggestions", url.Values{"q": {q}}, nil, &out); err != nil {
		return nil, err
	}
	return out.Suggestions, nil
}

// Trending 调用 GET /api/v1/search/trending。
func (c *Client) Trending(ctx context.Context) ([]string, error) {
	var out struct {
		Trending []string `json:"trending"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/search/trending", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Trending, nil
}

// Jobs 调用 GET /api/jobs，地图侧使用。
func (c *Client) Jobs(ctx context.Context, page, limit int) ([]model.Job, error) {
	params := url.Values{}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Jobs []model.Job `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/jobs", params, nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body []byte, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return classify(path, err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Str("endpoint", path).Err(err).Msg("search api request failed")
		return classify(path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().Str("method", method).Str("endpoint", path).Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("search api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &Error{Kind: KindNonSuccessStatus, Status: resp.StatusCode, Endpoint: path}
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		c.logger.Warn().Str("endpoint", path).Str("kind", KindMalformedResponse.String()).Err(err).Msg("search api response not decodable")
		return &Error{Kind: KindMalformedResponse, Status: resp.StatusCode, Endpoint: path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func classify(endpoint string, err error) error {
	kind := KindNetworkFailure
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}
	return &Error{Kind: kind, Endpoint: endpoint, Err: err}
}
