package notifier

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"loco-platform/internal/model"
	"loco-platform/internal/present"
)

// EmailConfig 邮件配置，Host 为空表示不发送邮件。
type EmailConfig struct {
	Host     string   `yaml:"host" json:"host"`
	Port     int      `yaml:"port" json:"port"`
	Username string   `yaml:"username" json:"username"`
	Password string   `yaml:"password" json:"password"`
	From     string   `yaml:"from" json:"from"`
	To       []string `yaml:"to" json:"to"`
	Subject  string   `yaml:"subject" json:"subject"`
	// UrgentOnly 只在出现急聘职位时发送，且正文只列急聘职位。
	UrgentOnly bool `yaml:"urgent_only" json:"urgent_only"`
}

// Enabled 是否配置了可用的发件参数。
func (c EmailConfig) Enabled() bool {
	return c.Host != "" && c.From != "" && len(c.To) > 0
}

// EmailMessage 表示一封邮件。
type EmailMessage struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// EmailSender 抽象发送接口。
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// SMTPClient 封装 SMTP 发送。
type SMTPClient struct {
	addr string
	auth smtp.Auth
}

func NewSMTPClient(cfg EmailConfig) *SMTPClient {
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPClient{addr: fmt.Sprintf("%s:%d", cfg.Host, port), auth: auth}
}

func (c *SMTPClient) Send(ctx context.Context, msg EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := smtp.SendMail(c.addr, c.auth, msg.From, msg.To, []byte(buildEmailData(msg))); err != nil {
		return fmt.Errorf("send mail via %s: %w", c.addr, err)
	}
	return nil
}

// EmailNotifier 把一次同步新增的职位汇总成一封邮件。
type EmailNotifier struct {
	cfg    EmailConfig
	sender EmailSender
}

// NewEmailNotifier 创建 EmailNotifier，sender 为空时使用 SMTP。
func NewEmailNotifier(cfg EmailConfig, sender EmailSender) *EmailNotifier {
	if sender == nil {
		sender = NewSMTPClient(cfg)
	}
	if cfg.Subject == "" {
		cfg.Subject = "New pharmacy jobs"
	}
	return &EmailNotifier{cfg: cfg, sender: sender}
}

// Notify 实现通知接口，没有需要发送的职位时跳过。
func (n EmailNotifier) Notify(ctx context.Context, jobs []model.Job) error {
	selected := jobs
	if n.cfg.UrgentOnly {
		selected = make([]model.Job, 0, len(jobs))
		for _, job := range jobs {
			if job.IsUrgent {
				selected = append(selected, job)
			}
		}
	}
	if len(selected) == 0 {
		return nil
	}

	msg := EmailMessage{
		From:    n.cfg.From,
		To:      n.cfg.To,
		Subject: fmt.Sprintf("%s (%d)", n.cfg.Subject, len(selected)),
		Body:    buildBody(selected),
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("email notify: %w", err)
	}
	return nil
}

func buildBody(jobs []model.Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d new jobs:\n\n", len(jobs))
	for _, j := range jobs {
		mark := ""
		if j.IsUrgent {
			mark = "[URGENT] "
		}
		fmt.Fprintf(&b, "- %s%s, %s\n", mark, j.Title, j.Company)
		fmt.Fprintf(&b, "  %s | %s\n", j.Location, present.FormatSalary(j.SalaryRangeStart, j.SalaryRangeEnd))
	}
	return b.String()
}

func buildEmailData(msg EmailMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ","))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)
	return b.String()
}
