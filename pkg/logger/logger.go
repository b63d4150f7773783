package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"distribution-service/pkg/config"
)

// Logger 对 logrus 的薄封装，负责输出目标的生命周期
type Logger struct {
	entry  *logrus.Logger
	closer io.Closer
}

var (
	mu           sync.RWMutex
	globalLogger = newDefault()
)

func newDefault() *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return &Logger{entry: l}
}

// NewLogger 根据配置创建日志器
func NewLogger(cfg *config.Config) *Logger {
	l := logrus.New()
	var logCfg config.LogConfig
	if cfg != nil {
		logCfg = cfg.Log
	}

	level, err := logrus.ParseLevel(strings.TrimSpace(logCfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(logCfg.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	out := &Logger{entry: l}
	switch strings.ToLower(strings.TrimSpace(logCfg.Output)) {
	case "file":
		filename := logCfg.Filename
		if filename == "" {
			filename = "logs/distribution-service.log"
		}
		if err := os.MkdirAll(filepath.Dir(filename), 0o755); err == nil {
			if f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
				l.SetOutput(io.MultiWriter(os.Stdout, f))
				out.closer = f
				return out
			}
		}
		l.SetOutput(os.Stdout)
	case "stderr":
		l.SetOutput(os.Stderr)
	default:
		l.SetOutput(os.Stdout)
	}
	return out
}

// NewWithWriter 构造写入指定 writer 的日志器，主要用于测试
func NewWithWriter(w io.Writer, level logrus.Level) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.JSONFormatter{})
	return &Logger{entry: l}
}

// SetGlobalLogger 设置全局日志器
func SetGlobalLogger(l *Logger) {
	if l == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	globalLogger = l
}

// Raw 返回底层 logrus 实例，供 gin 等组件复用输出
func (l *Logger) Raw() *logrus.Logger {
	return l.entry
}

// Close 关闭文件输出
func (l *Logger) Close() {
	if l == nil || l.closer == nil {
		return
	}
	_ = l.closer.Close()
	l.closer = nil
}

func current() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger.entry
}

func withFields(fields []map[string]interface{}) *logrus.Entry {
	entry := logrus.NewEntry(current())
	for _, f := range fields {
		if len(f) > 0 {
			entry = entry.WithFields(logrus.Fields(f))
		}
	}
	return entry
}

func Debug(msg string, fields ...map[string]interface{}) { withFields(fields).Debug(msg) }
func Info(msg string, fields ...map[string]interface{})  { withFields(fields).Info(msg) }
func Warn(msg string, fields ...map[string]interface{})  { withFields(fields).Warn(msg) }
func Error(msg string, fields ...map[string]interface{}) { withFields(fields).Error(msg) }

// Fatal 记录日志后退出进程
func Fatal(msg string, fields ...map[string]interface{}) { withFields(fields).Fatal(msg) }

func Debugf(format string, args ...interface{}) { current().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { current().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { current().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { current().Errorf(format, args...) }

// WithFields 返回带字段的 entry，便于在一个流程内复用上下文
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return logrus.NewEntry(current()).WithFields(logrus.Fields(fields))
}

