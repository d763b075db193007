package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"loco-platform/internal/cluster"
	"loco-platform/internal/present"
	"loco-platform/internal/search"
)

// textRenderer 把控制器事件输出为纯文本，回调可能来自防抖定时器协程。
type textRenderer struct {
	mu          sync.Mutex
	out         io.Writer
	now         func() time.Time
	suggestions []string
	trending    []string
}

func newTextRenderer(out io.Writer) *textRenderer {
	return &textRenderer{out: out, now: time.Now}
}

func (r *textRenderer) OnLoading(loading bool) {
	if !loading {
		return
	}
	r.printf("searching...\n")
}

func (r *textRenderer) OnResultsReady(res search.Results) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := res.Page
	if len(res.Jobs) == 0 {
		if p.OutOfRange {
			fmt.Fprintf(r.out, "No results on page %d (only %d pages)\n", p.Page, p.TotalPages)
		} else {
			fmt.Fprintln(r.out, "No jobs found. Try adjusting your filters.")
		}
		return
	}

	fmt.Fprintf(r.out, "%d jobs found\n", p.Total)
	for i, sj := range res.Jobs {
		job := sj.Job
		urgent := ""
		if job.IsUrgent {
			urgent = " [URGENT]"
		}
		fmt.Fprintf(r.out, "%2d. %s - %s%s\n", (p.Page-1)*p.Limit+i+1, job.Title, job.Company, urgent)
		line := fmt.Sprintf("    %s | %s | %s", job.Location, present.FormatSalary(job.SalaryRangeStart, job.SalaryRangeEnd), present.RelativeTime(job.CreatedAt, r.now()))
		if sj.DistanceKm != nil {
			line += fmt.Sprintf(" | %.1f km", *sj.DistanceKm)
		}
		fmt.Fprintln(r.out, line)
		if ex := present.Excerpt(job.Description, 120); ex != "" {
			fmt.Fprintf(r.out, "    %s\n", ex)
		}
		if len(sj.MatchReasons) > 0 {
			fmt.Fprintf(r.out, "    why: %s\n", strings.Join(sj.MatchReasons, "; "))
		}
	}
	fmt.Fprintln(r.out, pageLine(p))
}

func pageLine(p search.PageView) string {
	var b strings.Builder
	if p.HasPrev {
		b.WriteString("< prev ")
	}
	for _, n := range p.Window {
		if n == p.Page {
			fmt.Fprintf(&b, "[%d] ", n)
		} else {
			fmt.Fprintf(&b, "%d ", n)
		}
	}
	if p.HasNext {
		b.WriteString("next >")
	}
	return strings.TrimSpace(fmt.Sprintf("page %d/%d  %s", p.Page, p.TotalPages, b.String()))
}

func (r *textRenderer) OnSearchFailed(err error) {
	r.printf("Search failed: %v\nType 'retry' to try again.\n", err)
}

func (r *textRenderer) OnSuggestions(suggestions []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suggestions = append([]string(nil), suggestions...)
	if len(suggestions) == 0 {
		return
	}
	fmt.Fprintln(r.out, "suggestions:")
	for i, s := range suggestions {
		fmt.Fprintf(r.out, "  %d) %s\n", i+1, s)
	}
}

func (r *textRenderer) OnTrending(trending []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trending = append([]string(nil), trending...)
	fmt.Fprintln(r.out, "trending:")
	for i, s := range trending {
		fmt.Fprintf(r.out, "  %d) %s\n", i+1, s)
	}
}

func (r *textRenderer) OnNotify(n search.Notification) {
	r.printf("[%s] %s\n", n.Level, n.Message)
}

// pick 返回第 n 个联想词或热门搜索（从 1 开始）。
func (r *textRenderer) pick(list string, n int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	src := r.suggestions
	if list == "trending" {
		src = r.trending
	}
	if n < 1 || n > len(src) {
		return "", false
	}
	return src[n-1], true
}

func (r *textRenderer) printClusters(clusters []cluster.Cluster) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%d clusters\n", len(clusters))
	for _, c := range clusters {
		salary := "n/a"
		if c.SalaryCount > 0 {
			salary = fmt.Sprintf("$%.0f", c.AvgSalary)
		}
		fmt.Fprintf(r.out, "  (%.4f, %.4f) jobs=%d urgent=%d avg=%s\n", c.Center[1], c.Center[0], c.TotalJobs, c.UrgentCount, salary)
	}
}

func (r *textRenderer) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}
