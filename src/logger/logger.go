// Package logger builds the zap logger used by the cli and the server.
package logger

import (
	"io"
	"os"

	"github.com/mappichat/rasterh3/src/project_types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newEncoder() zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	return zapcore.NewJSONEncoder(encoderConfig)
}

// ParseLevel falls back to info for an empty level.
func ParseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return l, errors.Wrapf(err, "log level %q", level)
	}
	return l, nil
}

// New writes to a rotated file when opts.File is set, to stderr otherwise.
// The returned closer releases the file.
func New(opts project_types.LogOptions) (*zap.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var sink zapcore.WriteSyncer
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		hook := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		sink = zapcore.AddSync(hook)
		closer = hook
	} else {
		sink = zapcore.Lock(os.Stderr)
	}

	return NewWithSink(sink, level), closer, nil
}

func NewWithSink(sink zapcore.WriteSyncer, level zapcore.Level) *zap.Logger {
	core := zapcore.NewCore(newEncoder(), sink, zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller())
}
