package engine

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"loco-platform/internal/geo"
	"loco-platform/internal/model"
)

const (
	salaryScale  = 100000.0
	recencyDays  = 30.0
	recencyScale = 0.2
	urgentBoost  = 0.1
)

// query 预处理后的单次搜索条件。
type query struct {
	text      string
	keywords  []string
	minSalary *int
	maxSalary *int
	origin    *geo.Point
	radiusKm  float64
	now       time.Time
}

func newQuery(req model.SearchRequest, defaultRadius float64, now time.Time) query {
	q := query{minSalary: req.MinSalary, maxSalary: req.MaxSalary, radiusKm: defaultRadius, now: now}
	if req.Query != nil {
		q.text = strings.TrimSpace(*req.Query)
		q.keywords = strings.Fields(strings.ToLower(q.text))
	}
	if req.HasLocation() {
		q.origin = &geo.Point{Lat: *req.Latitude, Lng: *req.Longitude}
	}
	if req.RadiusKm != nil && *req.RadiusKm > 0 {
		q.radiusKm = *req.RadiusKm
	}
	return q
}

// evaluate 过滤并打分，返回 false 表示职位被排除。
func (q query) evaluate(job model.Job) (model.ScoredJob, bool) {
	salary, hasSalary := job.SalaryFigure()
	if (q.minSalary != nil || q.maxSalary != nil) && !hasSalary {
		return model.ScoredJob{}, false
	}
	if q.minSalary != nil && salary < float64(*q.minSalary) {
		return model.ScoredJob{}, false
	}
	if q.maxSalary != nil && salary > float64(*q.maxSalary) {
		return model.ScoredJob{}, false
	}

	var distance *float64
	if q.origin != nil && job.HasCoordinates() {
		d := geo.HaversineKm(*q.origin, geo.Point{Lat: *job.Latitude, Lng: *job.Longitude})
		if d > q.radiusKm {
			return model.ScoredJob{}, false
		}
		distance = &d
	}

	var (
		score   float64
		factors int
		reasons []string
	)

	if len(q.keywords) > 0 {
		title := similarity(q.keywords, job.Title)
		desc := similarity(q.keywords, job.Description)
		company := similarity(q.keywords, job.Company)
		text := title*0.5 + desc*0.3 + company*0.2
		if text == 0 {
			return model.ScoredJob{}, false
		}
		score += text
		factors++
		if title > 0 {
			reasons = append(reasons, fmt.Sprintf("Title matches '%s'", q.text))
		}
		if desc > 0 {
			reasons = append(reasons, fmt.Sprintf("Description mentions '%s'", q.text))
		}
	}

	if q.minSalary != nil {
		floor := float64(*q.minSalary)
		if salary >= floor {
			score += 1 - math.Min((salary-floor)/salaryScale, 1)
			reasons = append(reasons, fmt.Sprintf("Salary meets minimum requirement ($%d)", *q.minSalary))
		} else {
			score += 0.5
		}
		factors++
	}

	if distance != nil {
		score += 1 - math.Min(*distance/q.radiusKm, 1)
		factors++
		reasons = append(reasons, fmt.Sprintf("Within %.1f km", *distance))
	}

	days := q.now.Sub(job.CreatedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	score += (1 - math.Min(days/recencyDays, 1)) * recencyScale
	factors++

	score /= float64(factors)
	if job.IsUrgent {
		score = math.Min(score+urgentBoost, 1)
		reasons = append(reasons, "Urgent hiring")
	}
	if reasons == nil {
		reasons = []string{}
	}

	return model.ScoredJob{
		Job:            job,
		RelevanceScore: score,
		MatchReasons:   reasons,
		DistanceKm:     distance,
	}, true
}

// similarity 返回查询关键词在文本中出现的比例。
func similarity(keywords []string, text string) float64 {
	if len(keywords) == 0 || text == "" {
		return 0
	}
	text = strings.ToLower(text)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

// sortJobs 原地排序；distance 默认升序，其它默认降序，相同值按 ID。
func sortJobs(jobs []model.ScoredJob, by *model.SortBy, order *model.SortOrder) {
	sortBy := model.SortRelevance
	if by != nil && *by != "" {
		sortBy = *by
	}
	desc := sortBy.DefaultOrder() == model.SortDesc
	if order != nil && *order != "" {
		desc = *order == model.SortDesc
	}

	key := func(j model.ScoredJob) (float64, bool) {
		switch sortBy {
		case model.SortDate:
			return float64(j.Job.CreatedAt.UnixNano()), true
		case model.SortSalary:
			return j.Job.SalaryFigure()
		case model.SortDistance:
			if j.DistanceKm == nil {
				return 0, false
			}
			return *j.DistanceKm, true
		default:
			return j.RelevanceScore, true
		}
	}

	slices.SortStableFunc(jobs, func(a, b model.ScoredJob) int {
		ka, oka := key(a)
		kb, okb := key(b)
		// 缺少排序值的职位总是排在最后
		switch {
		case oka && !okb:
			return -1
		case !oka && okb:
			return 1
		}
		c := cmp.Compare(ka, kb)
		if desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.Job.ID, b.Job.ID)
	})
}
