package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"authcore/internal/telemetry/domain"
)

// AuditSink persists an auth event as an audit row. Satisfied by *audit.Logger.
type AuditSink interface {
	LogEvent(ctx context.Context, identityID, action, resource string, metadata map[string]string)
}

// Counter counts events by type. Satisfied by *metrics.Recorder.
type Counter interface {
	AuthEvent(eventType string)
}

// Recorder fans an auth event out to the audit log, the async emitter and the metrics counter.
// Any of the three may be nil.
type Recorder struct {
	Audit   AuditSink
	Emitter EventEmitter
	Metrics Counter
	// IP extracts the client address when the event carries none.
	IP  func(context.Context) string
	Log zerolog.Logger

	now func() time.Time
}

// Observe stamps the event and dispatches it. Audit is written synchronously; emission is async.
func (r *Recorder) Observe(ctx context.Context, ev *domain.AuthEvent) {
	if r == nil || ev == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		now := time.Now
		if r.now != nil {
			now = r.now
		}
		ev.OccurredAt = now().UTC()
	}
	if ev.IP == "" && r.IP != nil {
		ev.IP = r.IP(ctx)
	}
	if r.Metrics != nil {
		r.Metrics.AuthEvent(string(ev.Type))
	}
	if r.Audit != nil {
		r.Audit.LogEvent(ctx, ev.IdentityID, string(ev.Type), resourceFor(ev.Type), auditMetadata(ev))
	}
	EmitAsync(r.Emitter, ev, r.Log)
}

func resourceFor(t domain.EventType) string {
	switch t {
	case domain.EventSignup, domain.EventPasswordResetSent, domain.EventPasswordReset, domain.EventPasswordChanged:
		return "identity"
	case domain.EventAuthorizationDenied:
		return "permission"
	default:
		return "session"
	}
}

func auditMetadata(ev *domain.AuthEvent) map[string]string {
	if ev.SessionID == "" && ev.Reason == "" && len(ev.Metadata) == 0 {
		return nil
	}
	out := make(map[string]string, len(ev.Metadata)+2)
	for k, v := range ev.Metadata {
		out[k] = v
	}
	if ev.SessionID != "" {
		out["session_id"] = ev.SessionID
	}
	if ev.Reason != "" {
		out["reason"] = ev.Reason
	}
	return out
}
