package telemetry

import (
	"context"
	"testing"
)

func TestSetup_WithoutEndpoint(t *testing.T) {
	ctx := context.Background()
	log, tracer, meter, shutdown, err := Setup(ctx, "storefront-test", "")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer shutdown(ctx)
	if log == nil || tracer == nil || meter == nil {
		t.Fatalf("nil telemetry component")
	}
	m, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	m.SessionsCreated.Add(ctx, 1)
	_, span := tracer.Start(ctx, "ping")
	span.End()
}

func TestNop(t *testing.T) {
	log, tracer, m := Nop()
	if log == nil || tracer == nil || m == nil || m.Checkouts == nil {
		t.Fatalf("nop bundle incomplete")
	}
}
