package telemetry

import (
	"context"
	"errors"
	"testing"
)

func TestInitTracingDisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	shutdown, err := InitTracing("", "keyword-catcher", "test")
	if err != nil {
		t.Fatalf("InitTracing() error: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected a no-op shutdown func")
	}
	shutdown()

	if IsTracingEnabled() {
		t.Error("tracing should stay disabled without an endpoint")
	}
}

func TestStartSpanWithoutProvider(t *testing.T) {
	ctx := WithCorrelation(context.Background(), "abc")
	_, span := StartSpan(ctx, "test", "op", PlatformAttr("twitch"))
	RecordError(span, errors.New("boom"))
	SetSpanHTTPStatus(span, 500)
	span.End()
}
