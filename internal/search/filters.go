package search

import (
	"context"
	"fmt"

	"loco-platform/internal/model"
)

// Filter 过滤项名称。
type Filter string

// 离散过滤项立即搜索，连续过滤项（滑块）防抖搜索。
const (
	FilterJobType   Filter = "job_type"
	FilterLocation  Filter = "location"
	FilterUrgent    Filter = "is_urgent"
	FilterRemote    Filter = "remote_possible"
	FilterSortBy    Filter = "sort_by"
	FilterSortOrder Filter = "sort_order"
	FilterSalaryMin Filter = "salary_min"
	FilterSalaryMax Filter = "salary_max"
	FilterRadius    Filter = "radius_km"
)

// Continuous 是否为连续过滤项。
func (f Filter) Continuous() bool {
	switch f {
	case FilterSalaryMin, FilterSalaryMax, FilterRadius:
		return true
	default:
		return false
	}
}

// SetFilter 修改过滤项。job_type 与 location 为切换语义；离散项同步搜索并返回搜索错误，
// 连续项只调度防抖搜索。
func (c *Controller) SetFilter(ctx context.Context, name Filter, value any) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	next := c.state.clone()
	if err := applyFilter(&next, name, value); err != nil {
		c.mu.Unlock()
		return err
	}
	next.Pagination.Page = 1
	c.state = next
	c.mu.Unlock()

	if name.Continuous() {
		c.scheduleSearch()
		return nil
	}
	return c.searchNow(ctx)
}

func applyFilter(s *State, name Filter, value any) error {
	f := &s.Filters
	switch name {
	case FilterJobType:
		jt, err := jobTypeValue(value)
		if err != nil {
			return err
		}
		f.JobTypes = toggle(f.JobTypes, jt)
	case FilterLocation:
		loc, ok := value.(string)
		if !ok || loc == "" {
			return invalid(name, value)
		}
		f.Locations = toggle(f.Locations, loc)
	case FilterUrgent:
		b, ok := value.(bool)
		if !ok {
			return invalid(name, value)
		}
		f.IsUrgent = b
	case FilterRemote:
		b, ok := value.(bool)
		if !ok {
			return invalid(name, value)
		}
		f.RemotePossible = b
	case FilterSortBy:
		v, err := sortByValue(value)
		if err != nil {
			return err
		}
		s.Sorting.SortBy = v
		s.Sorting.SortOrder = v.DefaultOrder()
	case FilterSortOrder:
		v, err := sortOrderValue(value)
		if err != nil {
			return err
		}
		s.Sorting.SortOrder = v
	case FilterSalaryMin, FilterSalaryMax:
		v, err := salaryValue(name, value)
		if err != nil {
			return err
		}
		if name == FilterSalaryMin {
			f.SalaryMin = v
		} else {
			f.SalaryMax = v
		}
	case FilterRadius:
		var r float64
		switch v := value.(type) {
		case float64:
			r = v
		case int:
			r = float64(v)
		default:
			return invalid(name, value)
		}
		if r <= 0 {
			return invalid(name, value)
		}
		f.RadiusKm = r
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFilter, name)
	}
	return nil
}

func jobTypeValue(value any) (model.JobType, error) {
	switch v := value.(type) {
	case model.JobType:
		return jobTypeValue(string(v))
	case string:
		jt, err := model.ParseJobType(v)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return jt, nil
	default:
		return "", invalid(FilterJobType, value)
	}
}

func sortByValue(value any) (model.SortBy, error) {
	var s string
	switch v := value.(type) {
	case model.SortBy:
		s = string(v)
	case string:
		s = v
	default:
		return "", invalid(FilterSortBy, value)
	}
	switch sb := model.SortBy(s); sb {
	case model.SortRelevance, model.SortDate, model.SortSalary, model.SortDistance:
		return sb, nil
	}
	return "", invalid(FilterSortBy, value)
}

func sortOrderValue(value any) (model.SortOrder, error) {
	var s string
	switch v := value.(type) {
	case model.SortOrder:
		s = string(v)
	case string:
		s = v
	default:
		return "", invalid(FilterSortOrder, value)
	}
	switch so := model.SortOrder(s); so {
	case model.SortAsc, model.SortDesc:
		return so, nil
	}
	return "", invalid(FilterSortOrder, value)
}

// salaryValue 接受 int、*int 或 nil，nil 与 0 表示不限。
func salaryValue(name Filter, value any) (*int, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case int:
		if v < 0 {
			return nil, invalid(name, value)
		}
		if v == 0 {
			return nil, nil
		}
		return ptr(v), nil
	case *int:
		if v == nil {
			return nil, nil
		}
		return salaryValue(name, *v)
	default:
		return nil, invalid(name, value)
	}
}

func invalid(name Filter, value any) error {
	return fmt.Errorf("%w: %s=%v (%T)", ErrInvalidValue, name, value, value)
}
