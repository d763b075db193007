package model

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// JobType 职位类型枚举。
type JobType string

const (
	JobTypeFullTime   JobType = "FullTime"
	JobTypePartTime   JobType = "PartTime"
	JobTypeContract   JobType = "Contract"
	JobTypeCasual     JobType = "Casual"
	JobTypeInternship JobType = "Internship"
)

// JobTypes 返回全部职位类型，顺序固定。
func JobTypes() []JobType {
	return []JobType{JobTypeFullTime, JobTypePartTime, JobTypeContract, JobTypeCasual, JobTypeInternship}
}

// ParseJobType 解析职位类型，兼容 full_time / full-time / fulltime 等写法。
func ParseJobType(s string) (JobType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	for _, t := range JobTypes() {
		if strings.ToLower(string(t)) == key {
			return t, nil
		}
	}
	if key == "intern" {
		return JobTypeInternship, nil
	}
	return "", fmt.Errorf("unknown job type %q", s)
}

// Job 表示一个药房职位
// - ID: 上游唯一标识
// - SalaryRangeStart/End: 年薪区间，可为空；同时存在时 start <= end
// - Latitude/Longitude: 必须成对出现，只有一个视为数据缺陷
// - Attributes: 上游未建模字段原样保存
// - CreatedAt/UpdatedAt: 由 GORM 自动维护

type Job struct {
	ID               string            `gorm:"primaryKey" json:"id"`
	Title            string            `json:"title"`
	Company          string            `gorm:"index" json:"company"`
	Location         string            `json:"location"`
	JobType          JobType           `gorm:"index" json:"job_type"`
	SalaryRangeStart *int              `json:"salary_range_start"`
	SalaryRangeEnd   *int              `json:"salary_range_end"`
	Description      string            `json:"description"`
	IsUrgent         bool              `gorm:"index" json:"is_urgent"`
	RemotePossible   bool              `json:"remote_possible"`
	Latitude         *float64          `json:"latitude"`
	Longitude        *float64          `json:"longitude"`
	Suburb           string            `json:"suburb,omitempty"`
	State            string            `gorm:"index" json:"state,omitempty"`
	Postcode         string            `json:"postcode,omitempty"`
	Attributes       datatypes.JSONMap `json:"attributes,omitempty"`
	CreatedAt        time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// HasCoordinates 经纬度同时存在时返回 true。
func (j Job) HasCoordinates() bool {
	return j.Latitude != nil && j.Longitude != nil
}

// CoordinateDefect 只有经度或只有纬度时返回 true。
func (j Job) CoordinateDefect() bool {
	return (j.Latitude == nil) != (j.Longitude == nil)
}

// SalaryFigure 返回最可信的薪资数字：优先区间上限，其次下限。
func (j Job) SalaryFigure() (float64, bool) {
	if j.SalaryRangeEnd != nil {
		return float64(*j.SalaryRangeEnd), true
	}
	if j.SalaryRangeStart != nil {
		return float64(*j.SalaryRangeStart), true
	}
	return 0, false
}

// SalarySpread 返回薪资区间宽度，任一端缺失时 ok=false。
func (j Job) SalarySpread() (float64, bool) {
	if j.SalaryRangeStart == nil || j.SalaryRangeEnd == nil {
		return 0, false
	}
	return float64(*j.SalaryRangeEnd - *j.SalaryRangeStart), true
}

// Validate 校验薪资区间与坐标成对约束。
func (j Job) Validate() error {
	if strings.TrimSpace(j.ID) == "" {
		return fmt.Errorf("job id required")
	}
	if j.SalaryRangeStart != nil && j.SalaryRangeEnd != nil && *j.SalaryRangeStart > *j.SalaryRangeEnd {
		return fmt.Errorf("job %s: salary start %d exceeds end %d", j.ID, *j.SalaryRangeStart, *j.SalaryRangeEnd)
	}
	if j.CoordinateDefect() {
		return fmt.Errorf("job %s: latitude and longitude must be set together", j.ID)
	}
	return nil
}
