package engine

import (
	"cmp"
	"slices"

	"loco-platform/internal/model"
)

const topEmployers = 5

func salaryBucket(v float64) string {
	switch {
	case v <= 60000:
		return "Under $60k"
	case v <= 80000:
		return "$60k-$80k"
	case v <= 100000:
		return "$80k-$100k"
	case v <= 120000:
		return "$100k-$120k"
	default:
		return "Over $120k"
	}
}

// analyze 基于过滤后的全部结果（分页前）计算统计。
func analyze(jobs []model.ScoredJob) model.Analytics {
	a := model.Analytics{
		TotalResults:         int64(len(jobs)),
		TopEmployers:         []model.EmployerCount{},
		SalaryDistribution:   map[string]int{},
		LocationDistribution: map[string]int{},
		JobTypeDistribution:  map[string]int{},
	}

	var sum float64
	n := 0
	employers := map[string]int{}
	for _, sj := range jobs {
		job := sj.Job
		if v, ok := job.SalaryFigure(); ok {
			sum += v
			n++
			a.SalaryDistribution[salaryBucket(v)]++
		}
		if job.State != "" {
			a.LocationDistribution[job.State]++
		}
		if job.JobType != "" {
			a.JobTypeDistribution[string(job.JobType)]++
		}
		if job.Company != "" {
			employers[job.Company]++
		}
	}
	if n > 0 {
		avg := sum / float64(n)
		a.AvgSalary = &avg
	}

	for name, count := range employers {
		a.TopEmployers = append(a.TopEmployers, model.EmployerCount{Name: name, Count: count})
	}
	slices.SortFunc(a.TopEmployers, func(x, y model.EmployerCount) int {
		if c := cmp.Compare(y.Count, x.Count); c != 0 {
			return c
		}
		return cmp.Compare(x.Name, y.Name)
	})
	if len(a.TopEmployers) > topEmployers {
		a.TopEmployers = a.TopEmployers[:topEmployers]
	}
	return a
}
