package geo

import (
	"fmt"

	"loco-platform/internal/model"
)

// FixOutcome 描述单个职位的坐标修复结果。
type FixOutcome string

const (
	FixNone       FixOutcome = "none"
	FixSwapped    FixOutcome = "swapped"
	FixFromSuburb FixOutcome = "suburb"
	FixFromText   FixOutcome = "location_text"
	FixFromState  FixOutcome = "state"
	FixCleared    FixOutcome = "cleared"
)

// FixStats 汇总一批职位的修复情况。
type FixStats struct {
	Total      int
	Missing    int
	Invalid    int
	Swapped    int
	FromSuburb int
	FromText   int
	FromState  int
	Unresolved int
}

// FixLocation 修复单个职位坐标：
// 单边坐标清空后重新解析；经纬度互换时交换；澳洲范围外视为无效；
// 缺失时依次按郊区、自由文本、州首府解析，仍无法解析则保持为空。
func FixLocation(job *model.Job) FixOutcome {
	if job.CoordinateDefect() {
		job.Latitude, job.Longitude = nil, nil
	}

	if job.HasCoordinates() {
		p := Point{Lat: *job.Latitude, Lng: *job.Longitude}
		if InAustralia(p) {
			return FixNone
		}
		if LooksSwapped(p) {
			setPoint(job, Point{Lat: p.Lng, Lng: p.Lat})
			return FixSwapped
		}
		job.Latitude, job.Longitude = nil, nil
	}

	if p, ok := LookupSuburb(job.Suburb); ok {
		setPoint(job, p)
		return FixFromSuburb
	}
	if p, ok := LookupFreeText(job.Location); ok {
		setPoint(job, p)
		return FixFromText
	}
	if p, ok := LookupState(job.State); ok {
		setPoint(job, p)
		return FixFromState
	}
	return FixCleared
}

// FixLocations 批量修复并返回统计。
func FixLocations(jobs []model.Job) FixStats {
	stats := FixStats{Total: len(jobs)}
	for i := range jobs {
		job := &jobs[i]
		switch {
		case !job.HasCoordinates():
			stats.Missing++
		case !InAustralia(Point{Lat: *job.Latitude, Lng: *job.Longitude}):
			stats.Invalid++
		}

		switch FixLocation(job) {
		case FixSwapped:
			stats.Swapped++
		case FixFromSuburb:
			stats.FromSuburb++
		case FixFromText:
			stats.FromText++
		case FixFromState:
			stats.FromState++
		case FixCleared:
			stats.Unresolved++
		}
	}
	return stats
}

// String 便于日志输出。
func (s FixStats) String() string {
	return fmt.Sprintf("total=%d missing=%d invalid=%d swapped=%d suburb=%d text=%d state=%d unresolved=%d",
		s.Total, s.Missing, s.Invalid, s.Swapped, s.FromSuburb, s.FromText, s.FromState, s.Unresolved)
}

func setPoint(job *model.Job, p Point) {
	lat, lng := p.Lat, p.Lng
	job.Latitude = &lat
	job.Longitude = &lng
}
