package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

var tracerName = "github.com/unkn0wn-root/lrconv/internal/telemetry"

type Instrumenter interface {
	Start(ctx context.Context, info ScriptStart) (context.Context, ScriptSpan)
	Shutdown(ctx context.Context) error
}

type ScriptStart struct {
	Project string
	Name    string
	Path    string
	Calls   int
}

type ScriptResult struct {
	Err        error
	Containers int
	Pages      int
	Requests   int
	Cookies    int
	Warnings   []string
	Errors     []string
}

type ScriptSpan interface {
	End(result ScriptResult)
}

type providerOptions struct {
	exporter       sdktrace.SpanExporter
	spanProcessors []sdktrace.SpanProcessor
}

type Option func(*providerOptions)

func WithSpanProcessor(proc sdktrace.SpanProcessor) Option {
	return func(opts *providerOptions) {
		if proc != nil {
			opts.spanProcessors = append(opts.spanProcessors, proc)
		}
	}
}

func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(opts *providerOptions) {
		if exp != nil {
			opts.exporter = exp
		}
	}
}

type manager struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	shutdown sync.Once
}

func New(cfg Config, opts ...Option) (Instrumenter, error) {
	builder := providerOptions{}
	for _, opt := range opts {
		opt(&builder)
	}

	if !cfg.Enabled() && builder.exporter == nil && len(builder.spanProcessors) == 0 {
		return Noop(), nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(buildResourceAttributes(cfg)...),
	)
	if err != nil {
		return nil, err
	}

	exporter := builder.exporter
	if exporter == nil && cfg.Enabled() {
		exporter, err = newExporter(cfg)
		if err != nil {
			return nil, err
		}
	}

	var tpOpts []sdktrace.TracerProviderOption
	tpOpts = append(tpOpts, sdktrace.WithResource(res))
	if exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}
	for _, proc := range builder.spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(proc))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	return &manager{tracer: tp.Tracer(tracerName), provider: tp}, nil
}

func (m *manager) Start(ctx context.Context, info ScriptStart) (context.Context, ScriptSpan) {
	ctx, span := m.tracer.Start(
		ctx,
		spanNameFor(info),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(buildSpanAttributes(info)...),
	)
	return ctx, &scriptSpan{span: span, started: time.Now()}
}

func (m *manager) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	var shutdownErr error
	m.shutdown.Do(func() {
		shutdownErr = m.provider.Shutdown(ctx)
	})
	return shutdownErr
}

type scriptSpan struct {
	span    trace.Span
	started time.Time
}

func (ss *scriptSpan) End(result ScriptResult) {
	if ss == nil || ss.span == nil {
		return
	}

	ss.span.SetAttributes(
		attribute.Int("lrconv.result.containers", result.Containers),
		attribute.Int("lrconv.result.pages", result.Pages),
		attribute.Int("lrconv.result.requests", result.Requests),
		attribute.Int("lrconv.result.cookies", result.Cookies),
		attribute.Int("lrconv.result.warnings", len(result.Warnings)),
		attribute.Int("lrconv.result.errors", len(result.Errors)),
		attribute.Int64("lrconv.duration_ms", time.Since(ss.started).Milliseconds()),
	)
	for _, msg := range result.Warnings {
		ss.span.AddEvent(
			"lrconv.diagnostic",
			trace.WithAttributes(
				attribute.String("lrconv.severity", "warning"),
				attribute.String("lrconv.message", msg),
			),
		)
	}
	for _, msg := range result.Errors {
		ss.span.AddEvent(
			"lrconv.diagnostic",
			trace.WithAttributes(
				attribute.String("lrconv.severity", "error"),
				attribute.String("lrconv.message", msg),
			),
		)
	}

	statusCode := codes.Ok
	statusMsg := "OK"
	switch {
	case result.Err != nil:
		ss.span.RecordError(result.Err)
		statusCode = codes.Error
		statusMsg = result.Err.Error()
	case len(result.Errors) > 0:
		statusCode = codes.Error
		statusMsg = fmt.Sprintf("%d conversion errors", len(result.Errors))
	}

	ss.span.SetStatus(statusCode, statusMsg)
	ss.span.End()
}

func Noop() Instrumenter {
	return noopInstrumenter{}
}

type noopInstrumenter struct{}

type noopSpan struct{}

func (noopInstrumenter) Start(ctx context.Context, _ ScriptStart) (context.Context, ScriptSpan) {
	return ctx, noopSpan{}
}

func (noopInstrumenter) Shutdown(context.Context) error { return nil }

func (noopSpan) End(ScriptResult) {}

func newExporter(cfg Config) (sdktrace.SpanExporter, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("telemetry endpoint is required")
	}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	clientOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		clientOpts = append(clientOpts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	client := otlptracegrpc.NewClient(clientOpts...)
	return otlptrace.New(ctx, client)
}

func buildResourceAttributes(cfg Config) []attribute.KeyValue {
	name := cfg.ServiceName
	if strings.TrimSpace(name) == "" {
		name = defaultServiceName
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceName(name),
	}
	if strings.TrimSpace(cfg.Version) != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.Version))
	}
	return attrs
}

func buildSpanAttributes(info ScriptStart) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int("lrconv.script.calls", info.Calls),
	}
	if name := strings.TrimSpace(info.Name); name != "" {
		attrs = append(attrs, attribute.String("lrconv.script.name", name))
	}
	if path := strings.TrimSpace(info.Path); path != "" {
		attrs = append(attrs, attribute.String("lrconv.script.path", path))
	}
	if project := strings.TrimSpace(info.Project); project != "" {
		attrs = append(attrs, attribute.String("lrconv.project", project))
	}
	return attrs
}

func spanNameFor(info ScriptStart) string {
	if name := strings.TrimSpace(info.Name); name != "" {
		return "convert " + name
	}
	return "convert"
}
