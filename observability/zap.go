package observability

import (
	"fmt"

	"go.uber.org/zap"
)

type zapLogger struct{ z *zap.Logger }

// NewZapLogger adapts a zap logger to the Logger interface.
func NewZapLogger(z *zap.Logger) Logger { return zapLogger{z: z} }

// NewLogger builds a zap-backed logger. development selects console
// encoding with human timestamps; otherwise output is production JSON.
func NewLogger(level string, development bool) (Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("observability: parse log level %q: %w", level, err)
		}
		cfg.Level = lvl
	}
	z, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("observability: build logger: %w", err)
	}
	return zapLogger{z: z}, nil
}

func (l zapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, toZap(fields)...) }
func (l zapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, toZap(fields)...) }
func (l zapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, toZap(fields)...) }
func (l zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, toZap(fields)...) }

func (l zapLogger) With(fields ...Field) Logger {
	return zapLogger{z: l.z.With(toZap(fields)...)}
}

// toZap converts fields through zap.Any, which picks the typed encoder,
// so errors land as named errors and numbers stay numeric.
func toZap(fields []Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = zap.Any(f.Key(), f.Value())
	}
	return out
}
