package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorded(t *testing.T) (Instrumenter, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	inst, err := New(
		Config{ServiceName: "lrconv-test", Version: "test"},
		WithSpanProcessor(recorder),
	)
	if err != nil {
		t.Fatalf("New instrumenter: %v", err)
	}
	t.Cleanup(func() {
		_ = inst.Shutdown(context.Background())
	})
	return inst, recorder
}

func TestInstrumenterRecordsScript(t *testing.T) {
	inst, recorder := newRecorded(t)

	ctx, span := inst.Start(
		context.Background(),
		ScriptStart{Project: "demo", Name: "Action", Path: "Action.c", Calls: 12},
	)
	if ctx == nil || span == nil {
		t.Fatalf("expected span to be created")
	}
	span.End(ScriptResult{
		Containers: 2,
		Pages:      5,
		Requests:   7,
		Warnings:   []string{"Action:3 web_foo: unsupported call (ignored)"},
	})

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	ro := spans[0]
	if got := ro.Name(); got != "convert Action" {
		t.Fatalf("unexpected span name %q", got)
	}
	assertAttribute(t, ro, "lrconv.script.calls", int64(12))
	assertAttribute(t, ro, "lrconv.script.path", "Action.c")
	assertAttribute(t, ro, "lrconv.project", "demo")
	assertAttribute(t, ro, "lrconv.result.pages", int64(5))
	assertAttribute(t, ro, "lrconv.result.requests", int64(7))
	assertAttribute(t, ro, "lrconv.result.warnings", int64(1))
	if ro.Status().Code != codes.Ok {
		t.Fatalf("expected span status OK, got %v", ro.Status().Code)
	}

	var diagEvents int
	for _, ev := range ro.Events() {
		if ev.Name == "lrconv.diagnostic" {
			diagEvents++
		}
	}
	if diagEvents != 1 {
		t.Fatalf("expected 1 diagnostic event, got %d", diagEvents)
	}
}

func TestInstrumenterMarksFailures(t *testing.T) {
	inst, recorder := newRecorded(t)

	_, span := inst.Start(context.Background(), ScriptStart{Name: "a"})
	span.End(ScriptResult{Errors: []string{"bad url", "bad body"}})
	_, span = inst.Start(context.Background(), ScriptStart{Name: "b"})
	span.End(ScriptResult{Err: errors.New("context canceled")})

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if st := spans[0].Status(); st.Code != codes.Error || st.Description != "2 conversion errors" {
		t.Fatalf("unexpected status %+v", st)
	}
	if st := spans[1].Status(); st.Code != codes.Error || st.Description != "context canceled" {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestNewWithoutEndpointIsNoop(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	got, span := inst.Start(ctx, ScriptStart{Name: "x"})
	if got != ctx {
		t.Fatalf("noop instrumenter must return the same context")
	}
	span.End(ScriptResult{})
	if err := inst.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func assertAttribute(t *testing.T, span sdktrace.ReadOnlySpan, key string, want interface{}) {
	t.Helper()
	attrs := span.Attributes()
	for _, attr := range attrs {
		if string(attr.Key) != key {
			continue
		}
		switch v := want.(type) {
		case string:
			if attr.Value.AsString() == v {
				return
			}
		case bool:
			if attr.Value.AsBool() == v {
				return
			}
		case int64:
			if attr.Value.AsInt64() == v {
				return
			}
		}
		t.Fatalf("attribute %s mismatch: got %v, want %v", key, attr.Value, want)
	}
	t.Fatalf("attribute %s not found", key)
}

// keptExporter keeps its spans past provider shutdown.
type keptExporter struct {
	*tracetest.InMemoryExporter
}

func (keptExporter) Shutdown(context.Context) error { return nil }

func TestInstrumenterExportsOnShutdown(t *testing.T) {
	exporter := keptExporter{tracetest.NewInMemoryExporter()}
	inst, err := New(Config{ServiceName: "lrconv-test"}, WithExporter(exporter))
	if err != nil {
		t.Fatalf("New instrumenter: %v", err)
	}

	_, span := inst.Start(context.Background(), ScriptStart{Project: "demo", Name: "vuser_init"})
	span.End(ScriptResult{Pages: 1})

	if err := inst.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != "convert vuser_init" {
		t.Fatalf("expected the script span to be exported, got %+v", spans)
	}
}
