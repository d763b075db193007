package notifier

import (
	"context"
	"errors"

	"loco-platform/internal/model"
)

// jobNotifier 提供统一通知接口。
type jobNotifier interface {
	Notify(ctx context.Context, jobs []model.Job) error
}

// Multi 依次调用所有通知器，单个失败不影响其它，错误合并返回。
type Multi []jobNotifier

// NewMulti 忽略 nil 通知器。
func NewMulti(ns ...jobNotifier) Multi {
	out := make(Multi, 0, len(ns))
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Notify 实现通知接口。
func (m Multi) Notify(ctx context.Context, jobs []model.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, jobs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
