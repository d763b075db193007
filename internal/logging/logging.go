// Package logging 构造全局共享的结构化日志实例。
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/phuslu/log"
)

// Config 日志配置。
type Config struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // console | json
}

// New 按配置创建 Logger，未知级别回落到 info。
func New(cfg Config) *log.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter 与 New 相同，但输出到指定 writer。
func NewWithWriter(cfg Config, out io.Writer) *log.Logger {
	level := log.InfoLevel
	if strings.TrimSpace(cfg.Level) != "" {
		level = log.ParseLevel(strings.ToLower(cfg.Level))
	}

	var w log.Writer
	switch strings.ToLower(cfg.Format) {
	case "json":
		w = &log.IOWriter{Writer: out}
	default:
		w = &log.ConsoleWriter{Writer: out}
	}

	return &log.Logger{
		Level:      level,
		TimeFormat: "15:04:05",
		Writer:     w,
	}
}

// Component 派生带 component 字段的子 Logger，logger 为空时基于默认 Logger。
func Component(logger *log.Logger, name string) *log.Logger {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	child := *logger
	base := append([]byte(nil), logger.Context...)
	child.Context = log.NewContext(base).Str("component", name).Value()
	return &child
}

// Discard 返回丢弃所有输出的 Logger，测试中使用。
func Discard() *log.Logger {
	return &log.Logger{Level: log.PanicLevel, Writer: &log.IOWriter{Writer: io.Discard}}
}
