package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"authcore/internal/telemetry"
	"authcore/internal/telemetry/domain"
)

// instrumentationName scopes auth event log records.
const instrumentationName = "authcore.auth_events"

// NewEventEmitter returns an EventEmitter that sends auth events as OTel log records via provider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return NewEventEmitterWithLogger(provider.Logger(instrumentationName))
}

// NewEventEmitterWithLogger returns an EventEmitter writing to logger.
func NewEventEmitterWithLogger(logger RecordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

// RecordEmitter is the subset of otellog.Logger the emitter needs.
type RecordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.AuthEvent) error { return nil }

type otelEmitter struct {
	logger RecordEmitter
}

// Emit converts the event to a log record. Empty fields are omitted from the attributes.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.AuthEvent) error {
	if event == nil {
		return nil
	}
	var rec otellog.Record
	ts := event.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetBody(otellog.StringValue(string(event.Type)))
	rec.SetSeverity(severity(event.Type))

	add := func(key, value string) {
		if value != "" {
			rec.AddAttributes(otellog.String(key, value))
		}
	}
	add("event_id", event.ID)
	add("event_type", string(event.Type))
	add("identity_id", event.IdentityID)
	add("session_id", event.SessionID)
	add("ip", event.IP)
	add("reason", event.Reason)
	add("source", event.Source)
	for k, v := range event.Metadata {
		add("meta."+k, v)
	}

	e.logger.Emit(ctx, rec)
	return nil
}

func severity(t domain.EventType) otellog.Severity {
	switch t {
	case domain.EventLoginFailed, domain.EventRefreshRejected, domain.EventAuthorizationDenied:
		return otellog.SeverityWarn
	default:
		return otellog.SeverityInfo
	}
}
