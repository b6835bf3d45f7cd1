package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"", "   "} {
		providers, err := NewProviders(ctx, ExportConfig{Endpoint: endpoint, ServiceName: "auth-test"})
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", endpoint, err)
		}
		if providers.TracerProvider == nil || providers.MeterProvider == nil || providers.LoggerProvider == nil {
			t.Fatalf("NewProviders(%q): nil provider in %+v", endpoint, providers)
		}
		if err := providers.Shutdown(ctx); err != nil {
			t.Errorf("no-op shutdown: %v", err)
		}
	}
}

func TestCollectorTarget(t *testing.T) {
	tests := []struct {
		endpoint     string
		force        bool
		wantTarget   string
		wantInsecure bool
	}{
		{"localhost:4317", false, "localhost:4317", true},
		{"http://collector:4317/v1/traces", false, "collector:4317", true},
		{"https://collector:4317", false, "collector:4317", false},
		{"https://collector:4317", true, "collector:4317", true},
	}
	for _, tt := range tests {
		target, insecure, err := collectorTarget(tt.endpoint, tt.force)
		if err != nil {
			t.Fatalf("collectorTarget(%q): %v", tt.endpoint, err)
		}
		if target != tt.wantTarget || insecure != tt.wantInsecure {
			t.Errorf("collectorTarget(%q, %v) = %q, %v; want %q, %v",
				tt.endpoint, tt.force, target, insecure, tt.wantTarget, tt.wantInsecure)
		}
	}
}

func TestNewProviders_InvalidEndpoint(t *testing.T) {
	for _, endpoint := range []string{"://invalid", "http://[invalid", "http://"} {
		if _, err := NewProviders(context.Background(), ExportConfig{Endpoint: endpoint}); err == nil {
			t.Errorf("NewProviders(%q) should return error", endpoint)
		}
	}
}

func TestServiceResource_Environment(t *testing.T) {
	res, err := serviceResource(ExportConfig{ServiceName: "auth-test", Environment: "staging"})
	if err != nil {
		t.Fatalf("serviceResource: %v", err)
	}
	var gotService, gotEnv string
	for _, kv := range res.Attributes() {
		switch kv.Key {
		case "service.name":
			gotService = kv.Value.AsString()
		case "deployment.environment.name":
			gotEnv = kv.Value.AsString()
		}
	}
	if gotService != "auth-test" {
		t.Errorf("service.name = %q, want auth-test", gotService)
	}
	if gotEnv != "staging" {
		t.Errorf("deployment.environment.name = %q, want staging", gotEnv)
	}
}

func TestNewProviders_WithCollector(t *testing.T) {
	// OTLP gRPC exporters dial lazily, so construction succeeds without a collector.
	ctx := context.Background()
	providers, err := NewProviders(ctx, ExportConfig{Endpoint: "localhost:4317", ServiceName: "auth-test"})
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	shutdownCtx, cancel := context.WithCancel(ctx)
	cancel()
	_ = providers.Shutdown(shutdownCtx)
}

func TestSetGlobal(t *testing.T) {
	oldTP, oldMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(oldTP)
		otel.SetMeterProvider(oldMP)
	}()

	providers, err := NewProviders(context.Background(), ExportConfig{ServiceName: "auth-test"})
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	providers.SetGlobal()
	if otel.GetTracerProvider() != providers.TracerProvider {
		t.Error("global TracerProvider not updated")
	}
	if otel.GetMeterProvider() != providers.MeterProvider {
		t.Error("global MeterProvider not updated")
	}

	(&Providers{Shutdown: func(context.Context) error { return nil }}).SetGlobal()
	if otel.GetTracerProvider() != providers.TracerProvider {
		t.Error("nil TracerProvider replaced the global")
	}
}
