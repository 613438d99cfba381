// Package tracing 生成过程的链路追踪，结束的 span 通过日志输出
package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/allanpk716/creditor_letters/internal/logger"
)

// Tracing 持有 TracerProvider，用完必须 Shutdown 以输出剩余的 span
type Tracing struct {
	provider *sdktrace.TracerProvider
}

// New 创建按 sampleRatio 采样的 TracerProvider；span 结束时同步写入日志
func New(serviceName string, sampleRatio float64, log logger.Logger) *Tracing {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
		sdktrace.WithSyncer(&logExporter{logger: log}),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	return &Tracing{provider: provider}
}

// Provider 供生成器使用的 TracerProvider
func (t *Tracing) Provider() trace.TracerProvider {
	return t.provider
}

// Shutdown 关闭 TracerProvider
func (t *Tracing) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return t.provider.Shutdown(ctx)
}

// logExporter 把结束的 span 写成一条日志；出错的 span 用 Warn 级别
type logExporter struct {
	logger logger.Logger
}

func (e *logExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		fields := map[string]interface{}{
			"span":     s.Name(),
			"trace_id": s.SpanContext().TraceID().String(),
			"span_id":  s.SpanContext().SpanID().String(),
			"duration": s.EndTime().Sub(s.StartTime()).String(),
		}
		if s.Parent().IsValid() {
			fields["parent_id"] = s.Parent().SpanID().String()
		}
		for _, kv := range s.Attributes() {
			fields[string(kv.Key)] = kv.Value.Emit()
		}
		if status := s.Status(); status.Code == codes.Error {
			fields["error"] = status.Description
			e.logger.Warn("span 结束", fields)
			continue
		}
		e.logger.Debug("span 结束", fields)
	}
	return nil
}

func (e *logExporter) Shutdown(context.Context) error {
	return nil
}
