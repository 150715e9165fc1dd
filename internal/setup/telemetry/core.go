package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"
)

// Core implements zapcore.Core to record error logs as OpenTelemetry spans.
type Core struct {
	zapcore.LevelEnabler
	tracer trace.Tracer
	fields []zapcore.Field
}

// NewCore creates a core that forwards error logs to OpenTelemetry.
func NewCore(enab zapcore.LevelEnabler) zapcore.Core {
	return &Core{
		LevelEnabler: enab,
		tracer:       otel.Tracer("logs"),
	}
}

func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field{}, c.fields...), fields...)
	return &clone
}

func (c *Core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) && ent.Level >= zapcore.ErrorLevel {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *Core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	_, span := c.tracer.Start(context.Background(), "error."+getErrorCategory(ent))
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("error.message", ent.Message),
		attribute.String("error.level", ent.Level.String()),
		attribute.String("error.caller", ent.Caller.String()),
		attribute.String("logger.name", ent.LoggerName),
	}

	// Flatten structured fields into string attributes
	enc := zapcore.NewMapObjectEncoder()
	for _, field := range c.fields {
		field.AddTo(enc)
	}
	for _, field := range fields {
		field.AddTo(enc)
	}
	for key, value := range enc.Fields {
		attrs = append(attrs, attribute.String(key, fmt.Sprint(value)))
	}

	span.SetAttributes(attrs...)
	span.SetStatus(codes.Error, ent.Message)

	return nil
}

func (c *Core) Sync() error {
	return nil
}

// getErrorCategory determines the error category from the logger name or caller.
func getErrorCategory(ent zapcore.Entry) string {
	source := ent.LoggerName + " " + ent.Caller.Function

	switch {
	case strings.Contains(source, "db_"), strings.Contains(source, "database"):
		return "database"
	case strings.Contains(source, "redis"):
		return "redis"
	case strings.Contains(source, "telegram"):
		return "telegram"
	case strings.Contains(source, "webhook"), strings.Contains(source, "dispatcher"), strings.Contains(source, "http"):
		return "webhook"
	case strings.Contains(source, "referral"):
		return "referral"
	case strings.Contains(source, "setup"):
		return "setup"
	default:
		return "application"
	}
}
