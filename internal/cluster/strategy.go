package cluster

import (
	"fmt"
	"math"
	"strings"

	"loco-platform/internal/geo"
	"loco-platform/internal/model"
)

// Strategy 聚合策略。
type Strategy string

const (
	StrategyDistance Strategy = "distance"
	StrategyDensity  Strategy = "density"
	StrategySalary   Strategy = "salary"
	StrategySmart    Strategy = "smart"
)

// ParseStrategy 解析策略名，空字符串返回 smart。
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StrategySmart, nil
	case StrategyDistance, StrategyDensity, StrategySalary, StrategySmart:
		return st, nil
	}
	return "", fmt.Errorf("unknown clustering strategy %q", s)
}

// Config 聚合阈值，全部可调。
type Config struct {
	SmartClusterRadius  float64 `yaml:"smart_cluster_radius_km" json:"smart_cluster_radius_km"`
	SalaryThreshold     float64 `yaml:"salary_threshold" json:"salary_threshold"`
	ProximityThreshold  float64 `yaml:"proximity_threshold" json:"proximity_threshold"`
	DensityUrgentFactor float64 `yaml:"density_urgent_factor" json:"density_urgent_factor"`
	SalaryRadiusFactor  float64 `yaml:"salary_radius_factor" json:"salary_radius_factor"`
	MaxZoom             float64 `yaml:"max_zoom" json:"max_zoom"`
}

// DefaultConfig 返回默认阈值。
func DefaultConfig() Config {
	return Config{
		SmartClusterRadius:  50,
		SalaryThreshold:     20000,
		ProximityThreshold:  0.8,
		DensityUrgentFactor: 1.5,
		SalaryRadiusFactor:  1.2,
		MaxZoom:             15,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.SmartClusterRadius <= 0 {
		c.SmartClusterRadius = def.SmartClusterRadius
	}
	if c.SalaryThreshold <= 0 {
		c.SalaryThreshold = def.SalaryThreshold
	}
	if c.ProximityThreshold <= 0 {
		c.ProximityThreshold = def.ProximityThreshold
	}
	if c.DensityUrgentFactor <= 0 {
		c.DensityUrgentFactor = def.DensityUrgentFactor
	}
	if c.SalaryRadiusFactor <= 0 {
		c.SalaryRadiusFactor = def.SalaryRadiusFactor
	}
	if c.MaxZoom <= 0 {
		c.MaxZoom = def.MaxZoom
	}
	return c
}

// BaseRadius 返回当前缩放级别下的合并半径（公里），缩放越大半径越小，
// 达到最大缩放后为 0，不再合并。
func (c Config) BaseRadius(zoom float64) float64 {
	c = c.withDefaults()
	r := c.SmartClusterRadius * (c.MaxZoom - zoom) / c.MaxZoom
	return math.Max(r, 0)
}

// candidate 参与聚合的职位及其坐标。
type candidate struct {
	job   model.Job
	point geo.Point
}

// shouldCluster 判断候选职位能否并入当前簇。
// 距离以簇的当前中心计算，薪资与类型相似度以簇的种子职位比较。
func (c Config) shouldCluster(center geo.Point, seed, cand candidate, zoom float64, strategy Strategy) bool {
	base := c.BaseRadius(zoom)
	dist := geo.HaversineKm(center, cand.point)

	switch strategy {
	case StrategyDistance:
		return dist < base
	case StrategyDensity:
		factor := 1.0
		if seed.job.IsUrgent || cand.job.IsUrgent {
			factor = c.DensityUrgentFactor
		}
		return dist < base*factor
	case StrategySalary:
		if dist >= base*c.SalaryRadiusFactor {
			return false
		}
		a, okA := seed.job.SalarySpread()
		b, okB := cand.job.SalarySpread()
		return okA && okB && math.Abs(a-b) < c.SalaryThreshold
	default:
		if dist >= base {
			return false
		}
		if salarySimilar(seed.job, cand.job, c.SalaryThreshold) {
			return true
		}
		if seed.job.JobType != "" && seed.job.JobType == cand.job.JobType {
			return true
		}
		return proximityScore(dist, base) > c.ProximityThreshold
	}
}

func salarySimilar(a, b model.Job, threshold float64) bool {
	sa, okA := a.SalaryFigure()
	sb, okB := b.SalaryFigure()
	return okA && okB && math.Abs(sa-sb) < threshold
}

// proximityScore 将距离归一化到 [0,1]，距离为 0 时得 1。
func proximityScore(dist, base float64) float64 {
	if base <= 0 {
		return 0
	}
	return math.Max(0, 1-dist/base)
}
