package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/smallbiznis/decisionlog/internal/service"

// instrumentation is embedded by every service for spans and audit logs.
type instrumentation struct {
	logger *zap.Logger
	tracer trace.Tracer
}

func newInstrumentation(logger *zap.Logger) instrumentation {
	return instrumentation{logger: logger, tracer: otel.Tracer(tracerName)}
}

func (i instrumentation) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if i.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return i.tracer.Start(ctx, name)
}

func (i instrumentation) log() *zap.Logger {
	if i.logger != nil {
		return i.logger
	}
	return zap.L()
}

func (i instrumentation) audit(event string, attrs ...any) {
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for j := 0; j+1 < len(attrs); j += 2 {
		key, ok := attrs[j].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[j+1]))
	}
	i.log().Info("audit", fields...)
}
