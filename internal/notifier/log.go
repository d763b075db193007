package notifier

import (
	"context"

	"loco-platform/internal/logging"
	"loco-platform/internal/model"
	"loco-platform/internal/present"

	"github.com/phuslu/log"
)

// LogNotifier 仅记录新增职位，急聘职位以 warn 级别突出显示。
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier 创建日志通知器，未提供 logger 时使用默认 Logger。
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{logger: logging.Component(logger, "notify")}
}

// Notify 逐条记录新增职位信息。
func (n LogNotifier) Notify(ctx context.Context, jobs []model.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	urgent := 0
	for _, job := range jobs {
		entry := n.logger.Info()
		if job.IsUrgent {
			urgent++
			entry = n.logger.Warn().Bool("urgent", true)
		}
		entry.
			Str("id", job.ID).
			Str("title", job.Title).
			Str("company", job.Company).
			Str("location", job.Location).
			Str("salary", present.FormatSalary(job.SalaryRangeStart, job.SalaryRangeEnd)).
			Msg("new job")
	}
	n.logger.Info().Int("total", len(jobs)).Int("urgent", urgent).Msg("new jobs synced")
	return ctx.Err()
}
