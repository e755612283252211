// Package metrics exposes Prometheus counters for authentication and authorization outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "authcore"

// Recorder holds the auth counters. A nil *Recorder ignores every call.
type Recorder struct {
	authEvents     *prometheus.CounterVec
	authzDecisions *prometheus.CounterVec
	authzCache     *prometheus.CounterVec
}

// NewRecorder creates the counters and registers them on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Authentication outcomes by event type.",
		}, []string{"type"}),
		authzDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authz_decisions_total",
			Help:      "Authorization decisions by outcome (allowed, denied, error).",
		}, []string{"outcome"}),
		authzCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authz_cache_lookups_total",
			Help:      "Role and permission cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
	}
	for _, c := range []prometheus.Collector{r.authEvents, r.authzDecisions, r.authzCache} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// AuthEvent counts one authentication outcome.
func (r *Recorder) AuthEvent(eventType string) {
	if r == nil {
		return
	}
	r.authEvents.WithLabelValues(eventType).Inc()
}

// AuthzDecision counts one authorization decision.
func (r *Recorder) AuthzDecision(outcome string) {
	if r == nil {
		return
	}
	r.authzDecisions.WithLabelValues(outcome).Inc()
}

// AuthzCacheLookup counts one resolver cache lookup.
func (r *Recorder) AuthzCacheLookup(result string) {
	if r == nil {
		return
	}
	r.authzCache.WithLabelValues(result).Inc()
}
