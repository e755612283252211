package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// mockPinger implements Pinger for tests.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) PingContext(context.Context) error {
	return m.pingErr
}

// mockPolicyChecker implements PolicyChecker for tests.
type mockPolicyChecker struct {
	healthErr error
}

func (m *mockPolicyChecker) HealthCheck(context.Context) error {
	return m.healthErr
}

func TestRun_NoChecks(t *testing.T) {
	rep := NewChecker(0).Run(context.Background())
	if !rep.Ready() {
		t.Errorf("status = %q, want ok", rep.Status)
	}
}

func TestRun_Results(t *testing.T) {
	testCases := []struct {
		name      string
		pingErr   error
		policyErr error
		want      string
	}{
		{"all ok", nil, nil, "ok"},
		{"database down", errors.New("connection refused"), nil, "unavailable"},
		{"policy broken", nil, errors.New("rego compile failed"), "unavailable"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewChecker(time.Second)
			c.Add("postgres", PingCheck(&mockPinger{pingErr: tc.pingErr}))
			c.Add("policy", PolicyCheck(&mockPolicyChecker{healthErr: tc.policyErr}))
			rep := c.Run(context.Background())
			if rep.Status != tc.want {
				t.Errorf("status = %q, want %q", rep.Status, tc.want)
			}
			if len(rep.Checks) != 2 {
				t.Errorf("checks = %v, want 2 entries", rep.Checks)
			}
		})
	}
}

func TestRun_Timeout(t *testing.T) {
	c := NewChecker(20 * time.Millisecond)
	c.Add("redis", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	rep := c.Run(context.Background())
	if rep.Checks["redis"] != "unavailable" {
		t.Errorf("redis = %q, want unavailable", rep.Checks["redis"])
	}
}

func TestReadiness_HTTP(t *testing.T) {
	c := NewChecker(time.Second)
	c.Add("postgres", PingCheck(&mockPinger{pingErr: errors.New("down")}))
	rec := httptest.NewRecorder()
	c.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	var rep Report
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.Checks["postgres"] != "unavailable" {
		t.Errorf("postgres = %q, want unavailable", rep.Checks["postgres"])
	}

	rec = httptest.NewRecorder()
	Liveness(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("liveness status = %d, want 200", rec.Code)
	}
}

func TestSync_GRPCStatus(t *testing.T) {
	hs := health.NewServer()
	pinger := &mockPinger{}
	c := NewChecker(time.Second)
	c.Add("postgres", PingCheck(pinger))

	c.Sync(context.Background(), hs, "")
	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", resp.GetStatus())
	}

	pinger.pingErr = errors.New("connection refused")
	c.Sync(context.Background(), hs, "")
	resp, err = hs.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status = %v, want NOT_SERVING", resp.GetStatus())
	}
}
