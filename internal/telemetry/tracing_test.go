package telemetry

import (
	"bytes"
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func TestSetupTracing_StdoutExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := SetupTracing(TracingConfig{ServiceName: "todo-test", Stdout: true, Writer: &buf}, zap.NewNop())
	if err != nil {
		t.Fatalf("SetupTracing returned error: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "todo.List")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown returned error: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("todo.List")) {
		t.Errorf("expected exported span in output, got %q", buf.String())
	}
}

func TestSetupTracing_DisabledIsNoop(t *testing.T) {
	shutdown, err := SetupTracing(TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("SetupTracing returned error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
