// Package health reports readiness of the stores the auth core depends on.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"authcore/internal/httpx"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is satisfied by the policy engine.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Check returns nil when the dependency is usable.
type Check func(ctx context.Context) error

// PingCheck adapts a Pinger.
func PingCheck(p Pinger) Check { return p.PingContext }

// PolicyCheck adapts a PolicyChecker.
func PolicyCheck(p PolicyChecker) Check { return p.HealthCheck }

// Report is the JSON body of /readyz.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Ready reports whether every check passed.
func (r Report) Ready() bool { return r.Status == "ok" }

// Checker runs named checks, each bounded by a timeout.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]Check
	timeout time.Duration
}

// NewChecker returns a Checker. timeout <= 0 uses 2s.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{checks: make(map[string]Check), timeout: timeout}
}

// Add registers check under name, replacing an existing one. A nil check is ignored.
func (c *Checker) Add(name string, check Check) {
	if check == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Run executes all checks concurrently. Failures are reported as "unavailable" without detail.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	checks := c.checks
	c.mu.RUnlock()
	sort.Strings(names)

	results := make([]string, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			if err := check(cctx); err != nil {
				results[i] = "unavailable"
				return
			}
			results[i] = "ok"
		}(i, checks[name])
	}
	wg.Wait()

	rep := Report{Status: "ok", Checks: make(map[string]string, len(names))}
	for i, name := range names {
		rep.Checks[name] = results[i]
		if results[i] != "ok" {
			rep.Status = "unavailable"
		}
	}
	return rep
}

// Liveness answers 200 while the process is serving.
func Liveness(w http.ResponseWriter, _ *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness answers 200 when every check passes, otherwise 503 with the per-check status.
func (c *Checker) Readiness(w http.ResponseWriter, r *http.Request) {
	rep := c.Run(r.Context())
	status := http.StatusOK
	if !rep.Ready() {
		status = http.StatusServiceUnavailable
	}
	httpx.RespondJSON(w, status, rep)
}

// Sync runs the checks and publishes the overall result on the gRPC health server under service
// ("" is the whole server).
func (c *Checker) Sync(ctx context.Context, hs *health.Server, service string) Report {
	rep := c.Run(ctx)
	st := healthpb.HealthCheckResponse_SERVING
	if !rep.Ready() {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus(service, st)
	return rep
}

// Watch calls Sync every interval until ctx ends.
func (c *Checker) Watch(ctx context.Context, hs *health.Server, service string, interval time.Duration) {
	c.Sync(ctx, hs, service)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Sync(ctx, hs, service)
		}
	}
}
