package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"", "   "} {
		providers, err := NewProviders(ctx, endpoint, "test-service", false)
		require.NoError(t, err)
		require.NotNil(t, providers.TracerProvider)
		require.NotNil(t, providers.MeterProvider)
		require.NotNil(t, providers.LoggerProvider)
		require.NoError(t, providers.Shutdown(ctx))
		require.NoError(t, providers.Shutdown(ctx), "shutdown must be repeatable")
	}
}

func TestGRPCTarget(t *testing.T) {
	testCases := []struct {
		name         string
		endpoint     string
		override     bool
		wantTarget   string
		wantInsecure bool
		wantErr      bool
	}{
		{"bare host port", "localhost:4317", false, "localhost:4317", true, false},
		{"http", "http://collector:4317", false, "collector:4317", true, false},
		{"https uses tls", "https://collector:4317", false, "collector:4317", false, false},
		{"https insecure override", "https://collector:4317", true, "collector:4317", true, false},
		{"path dropped", "http://collector:4317/v1/traces", false, "collector:4317", true, false},
		{"query dropped", "http://collector:4317?x=1", false, "collector:4317", true, false},
		{"missing host", "http://", false, "", false, true},
		{"malformed", "http://[invalid", false, "", false, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			target, insecure, err := grpcTarget(tc.endpoint, tc.override)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantTarget, target)
			require.Equal(t, tc.wantInsecure, insecure)
		})
	}
}

func TestNewProviders_InvalidEndpoint(t *testing.T) {
	_, err := NewProviders(context.Background(), "http://", "test-service", false)
	require.Error(t, err)
}

func TestSetGlobal(t *testing.T) {
	oldTP := otel.GetTracerProvider()
	oldMP := otel.GetMeterProvider()
	oldProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(oldTP)
		otel.SetMeterProvider(oldMP)
		otel.SetTextMapPropagator(oldProp)
	})

	providers, err := NewProviders(context.Background(), "", "test-service", false)
	require.NoError(t, err)
	providers.SetGlobal()

	require.Same(t, providers.TracerProvider, otel.GetTracerProvider())
	require.Same(t, providers.MeterProvider, otel.GetMeterProvider())
	require.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}

func TestSetGlobal_PartialProviders(t *testing.T) {
	oldTP := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(oldTP) })

	full, err := NewProviders(context.Background(), "", "test-service", false)
	require.NoError(t, err)
	p := &Providers{MeterProvider: full.MeterProvider}
	require.NotPanics(t, p.SetGlobal)
	require.Same(t, oldTP, otel.GetTracerProvider())
}

func TestShutdownStack_ReverseOrderJoinsErrors(t *testing.T) {
	var order []string
	errMetric := errors.New("metric flush failed")
	var stack shutdownStack
	stack.push(func(context.Context) error { order = append(order, "trace"); return nil })
	stack.push(func(context.Context) error { order = append(order, "metric"); return errMetric })
	stack.push(func(context.Context) error { order = append(order, "log"); return nil })

	err := stack.run(context.Background())
	require.ErrorIs(t, err, errMetric)
	require.Equal(t, []string{"log", "metric", "trace"}, order)
}
