package cluster

import (
	"slices"
	"sync"

	"loco-platform/internal/model"
)

// Listener 接收每次重算后的簇列表。
type Listener func([]Cluster)

// Filter 地图侧的客户端过滤条件。
type Filter struct {
	JobTypes   []model.JobType
	UrgentOnly bool
	SalaryMin  int
}

// Match 判断职位是否通过过滤。
func (f Filter) Match(job model.Job) bool {
	if len(f.JobTypes) > 0 && !slices.Contains(f.JobTypes, job.JobType) {
		return false
	}
	if f.UrgentOnly && !job.IsUrgent {
		return false
	}
	if f.SalaryMin > 0 && (job.SalaryRangeEnd == nil || *job.SalaryRangeEnd < f.SalaryMin) {
		return false
	}
	return true
}

// Engine 维护职位、缩放与策略，任一变化时整体重算。
type Engine struct {
	mu       sync.Mutex
	cfg      Config
	jobs     []model.Job
	zoom     float64
	strategy Strategy
	filter   Filter
	clusters []Cluster
	listener Listener
}

// NewEngine 创建 Engine，默认 smart 策略。
func NewEngine(cfg Config, zoom float64, listener Listener) *Engine {
	return &Engine{
		cfg:      cfg.withDefaults(),
		zoom:     zoom,
		strategy: StrategySmart,
		clusters: []Cluster{},
		listener: listener,
	}
}

// SetJobs 替换职位列表并重算。
func (e *Engine) SetJobs(jobs []model.Job) []Cluster {
	e.mu.Lock()
	e.jobs = slices.Clone(jobs)
	return e.recomputeLocked()
}

// SetZoom 更新缩放级别并重算。
func (e *Engine) SetZoom(zoom float64) []Cluster {
	e.mu.Lock()
	e.zoom = zoom
	return e.recomputeLocked()
}

// SetStrategy 切换聚合策略并重算。
func (e *Engine) SetStrategy(name string) ([]Cluster, error) {
	st, err := ParseStrategy(name)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.strategy = st
	return e.recomputeLocked(), nil
}

// SetFilter 更新地图过滤条件并重算。
func (e *Engine) SetFilter(f Filter) []Cluster {
	e.mu.Lock()
	e.filter = f
	return e.recomputeLocked()
}

// Clusters 返回最近一次结果。
func (e *Engine) Clusters() []Cluster {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.clusters)
}

// Strategy 返回当前策略。
func (e *Engine) Strategy() Strategy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.strategy
}

// recomputeLocked 在持锁状态下重算，释放锁后通知监听者。
func (e *Engine) recomputeLocked() []Cluster {
	visible := make([]model.Job, 0, len(e.jobs))
	for _, job := range e.jobs {
		if e.filter.Match(job) {
			visible = append(visible, job)
		}
	}
	e.clusters = Compute(e.cfg, visible, e.zoom, e.strategy)
	out := slices.Clone(e.clusters)
	listener := e.listener
	e.mu.Unlock()

	if listener != nil {
		listener(out)
	}
	return out
}
