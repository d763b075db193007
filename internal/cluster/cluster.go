// Package cluster 将带坐标的职位按缩放级别与策略聚合成地图簇。
//
// 算法为单遍贪心合并：按输入顺序遍历，未分配的职位开启新簇，
// 扫描其后所有未分配职位并按策略合并。结果依赖输入顺序，调用方
// 需要稳定结果时应先固定排序。
package cluster

import (
	"loco-platform/internal/geo"
	"loco-platform/internal/model"
)

// Cluster 一次计算得到的聚合结果，不做持久化。
type Cluster struct {
	// Center 为 [经度, 纬度]。
	Center      [2]float64  `json:"center"`
	Members     []model.Job `json:"members"`
	TotalJobs   int         `json:"total_jobs"`
	AvgSalary   float64     `json:"avg_salary"`
	MaxSalary   float64     `json:"max_salary"`
	MinSalary   float64     `json:"min_salary"`
	SalaryCount int         `json:"salary_count"`
	UrgentCount int         `json:"urgent_count"`
}

func (c *Cluster) centerPoint() geo.Point {
	return geo.Point{Lat: c.Center[1], Lng: c.Center[0]}
}

// add 并入一个成员，增量更新中心并重算统计。
func (c *Cluster) add(cand candidate) {
	c.Members = append(c.Members, cand.job)
	n := float64(len(c.Members))
	if n == 1 {
		c.Center = [2]float64{cand.point.Lng, cand.point.Lat}
	} else {
		c.Center[0] = (c.Center[0]*(n-1) + cand.point.Lng) / n
		c.Center[1] = (c.Center[1]*(n-1) + cand.point.Lat) / n
	}
	c.recompute()
}

func (c *Cluster) recompute() {
	c.TotalJobs = len(c.Members)
	c.UrgentCount = 0
	c.SalaryCount = 0
	c.AvgSalary, c.MaxSalary, c.MinSalary = 0, 0, 0

	var sum float64
	for _, job := range c.Members {
		if job.IsUrgent {
			c.UrgentCount++
		}
		v, ok := job.SalaryFigure()
		if !ok {
			continue
		}
		if c.SalaryCount == 0 || v > c.MaxSalary {
			c.MaxSalary = v
		}
		if c.SalaryCount == 0 || v < c.MinSalary {
			c.MinSalary = v
		}
		sum += v
		c.SalaryCount++
	}
	if c.SalaryCount > 0 {
		c.AvgSalary = sum / float64(c.SalaryCount)
	}
}

// Compute 对职位列表执行一次完整聚合。缺少坐标的职位被跳过，空输入返回空切片。
func Compute(cfg Config, jobs []model.Job, zoom float64, strategy Strategy) []Cluster {
	cfg = cfg.withDefaults()
	if strategy == "" {
		strategy = StrategySmart
	}

	cands := make([]candidate, 0, len(jobs))
	for _, job := range jobs {
		if !job.HasCoordinates() {
			continue
		}
		cands = append(cands, candidate{job: job, point: geo.Point{Lat: *job.Latitude, Lng: *job.Longitude}})
	}

	clusters := make([]Cluster, 0)
	assigned := make([]bool, len(cands))
	for i := range cands {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		seed := cands[i]
		cl := Cluster{}
		cl.add(seed)

		for j := i + 1; j < len(cands); j++ {
			if assigned[j] {
				continue
			}
			if cfg.shouldCluster(cl.centerPoint(), seed, cands[j], zoom, strategy) {
				assigned[j] = true
				cl.add(cands[j])
			}
		}
		clusters = append(clusters, cl)
	}
	return clusters
}
