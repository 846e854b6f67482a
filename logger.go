package mcpconn

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrorLogField is the key used for error fields in logs.
const ErrorLogField string = "error"

// Logger defines the common logging methods the connection uses. Adapters
// for logrus and zap are provided; the zero-config default is NullLogger.
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})

	WithFields(fields map[string]interface{}) Logger
	WithContext(ctx context.Context) Logger
	WithErr(err error) Logger
}

// DefaultLogger is a basic implementation backed by the standard log package.
type DefaultLogger struct {
	logger *log.Logger
	fields map[string]interface{}
	err    error
}

// NewDefaultLogger creates a DefaultLogger writing to standard output.
func NewDefaultLogger() Logger {
	return &DefaultLogger{
		logger: log.New(os.Stdout, "", log.LstdFlags),
		fields: make(map[string]interface{}),
	}
}

func (l *DefaultLogger) Debug(args ...interface{}) { l.print("DEBUG", args...) }
func (l *DefaultLogger) Info(args ...interface{})  { l.print("INFO", args...) }
func (l *DefaultLogger) Warn(args ...interface{})  { l.print("WARN", args...) }
func (l *DefaultLogger) Error(args ...interface{}) { l.print("ERROR", args...) }

func (l *DefaultLogger) print(level string, args ...interface{}) {
	var parts []string
	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, l.fields[k]))
	}
	if l.err != nil {
		parts = append(parts, fmt.Sprintf("%s=%v", ErrorLogField, l.err))
	}
	prefix := ""
	if len(parts) > 0 {
		prefix = "[" + strings.Join(parts, " ") + "] "
	}
	l.logger.Printf("[%s] %s%s", level, prefix, fmt.Sprint(args...))
}

// WithFields returns a copy of the logger carrying additional fields.
func (l *DefaultLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &DefaultLogger{logger: l.logger, fields: merged, err: l.err}
}

// WithContext is a no-op for DefaultLogger.
func (l *DefaultLogger) WithContext(ctx context.Context) Logger { return l }

// WithErr returns a copy of the logger carrying an error field.
func (l *DefaultLogger) WithErr(err error) Logger {
	return &DefaultLogger{logger: l.logger, fields: l.fields, err: err}
}

// NullLogger discards everything.
type NullLogger struct{}

// NewNullLogger creates a new NullLogger.
func NewNullLogger() Logger { return &NullLogger{} }

func (l *NullLogger) Debug(args ...interface{})                       {}
func (l *NullLogger) Info(args ...interface{})                        {}
func (l *NullLogger) Warn(args ...interface{})                        {}
func (l *NullLogger) Error(args ...interface{})                       {}
func (l *NullLogger) WithFields(fields map[string]interface{}) Logger { return l }
func (l *NullLogger) WithContext(ctx context.Context) Logger          { return l }
func (l *NullLogger) WithErr(err error) Logger                        { return l }

// LogrusLogger implements the Logger interface using logrus.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger creates a LogrusLogger around the provided logrus.Logger.
func NewLogrusLogger(logger *logrus.Logger) Logger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogrusLogger{entry: logrus.NewEntry(logger)}
}

func (l *LogrusLogger) Debug(args ...interface{}) { l.entry.Debug(args...) }
func (l *LogrusLogger) Info(args ...interface{})  { l.entry.Info(args...) }
func (l *LogrusLogger) Warn(args ...interface{})  { l.entry.Warn(args...) }
func (l *LogrusLogger) Error(args ...interface{}) { l.entry.Error(args...) }

// WithFields adds fields and returns a new LogrusLogger.
func (l *LogrusLogger) WithFields(fields map[string]interface{}) Logger {
	return &LogrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// WithContext attaches a context and returns a new LogrusLogger.
func (l *LogrusLogger) WithContext(ctx context.Context) Logger {
	return &LogrusLogger{entry: l.entry.WithContext(ctx)}
}

// WithErr attaches an error and returns a new LogrusLogger.
func (l *LogrusLogger) WithErr(err error) Logger {
	return &LogrusLogger{entry: l.entry.WithError(err)}
}

// ZapLogger implements the Logger interface using uber-go/zap.
type ZapLogger struct {
	logger *zap.Logger
	sugar  *zap.SugaredLogger
}

// NewZapLogger creates a ZapLogger around the provided zap.Logger.
func NewZapLogger(logger *zap.Logger) Logger {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &ZapLogger{logger: logger, sugar: logger.Sugar()}
}

func (l *ZapLogger) Debug(args ...interface{}) { l.sugar.Debug(args...) }
func (l *ZapLogger) Info(args ...interface{})  { l.sugar.Info(args...) }
func (l *ZapLogger) Warn(args ...interface{})  { l.sugar.Warn(args...) }
func (l *ZapLogger) Error(args ...interface{}) { l.sugar.Error(args...) }

// WithFields adds fields and returns a new ZapLogger.
func (l *ZapLogger) WithFields(fields map[string]interface{}) Logger {
	zapFields := make([]zapcore.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	child := l.logger.With(zapFields...)
	return &ZapLogger{logger: child, sugar: child.Sugar()}
}

// WithContext is a no-op for ZapLogger.
func (l *ZapLogger) WithContext(ctx context.Context) Logger { return l }

// WithErr attaches an error and returns a new ZapLogger.
func (l *ZapLogger) WithErr(err error) Logger {
	child := l.logger.With(zap.Error(err))
	return &ZapLogger{logger: child, sugar: child.Sugar()}
}
