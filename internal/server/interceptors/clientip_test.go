package interceptors

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

func mustProxies(t *testing.T, entries ...string) *TrustedProxies {
	t.Helper()
	p, err := ParseTrustedProxies(entries)
	if err != nil {
		t.Fatalf("ParseTrustedProxies: %v", err)
	}
	return p
}

func TestParseTrustedProxies(t *testing.T) {
	p := mustProxies(t, "10.0.0.0/8", " 192.0.2.7 ", "", "2001:db8::/32")
	testCases := []struct {
		ip   string
		want bool
	}{
		{"10.1.2.3", true},
		{"192.0.2.7", true},
		{"192.0.2.8", false},
		{"::ffff:10.9.9.9", true},
		{"2001:db8::1", true},
		{"203.0.113.5", false},
		{"not-an-ip", false},
	}
	for _, tc := range testCases {
		if got := p.Trusts(tc.ip); got != tc.want {
			t.Errorf("Trusts(%q) = %v, want %v", tc.ip, got, tc.want)
		}
	}

	for _, bad := range []string{"10.0.0.0/33", "nope"} {
		if _, err := ParseTrustedProxies([]string{bad}); err == nil {
			t.Errorf("ParseTrustedProxies(%q) should fail", bad)
		}
	}

	var none *TrustedProxies
	if none.Trusts("10.0.0.1") {
		t.Error("nil TrustedProxies must trust nobody")
	}
}

func TestClientIP(t *testing.T) {
	peerCtx := peer.NewContext(context.Background(), &peer.Peer{
		Addr: &net.TCPAddr{IP: net.ParseIP("192.168.1.3"), Port: 12345},
	})
	testCases := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"stored value wins", WithClientIP(peerCtx, "9.9.9.9"), "9.9.9.9"},
		{"metadata alone is ignored", metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-forwarded-for", "1.1.1.1")), "unknown"},
		{"peer", peerCtx, "192.168.1.3"},
		{"unknown", context.Background(), "unknown"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClientIP(tc.ctx); got != tc.want {
				t.Errorf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClientIPUnary(t *testing.T) {
	testCases := []struct {
		name    string
		proxies *TrustedProxies
		peer    string
		md      metadata.MD
		want    string
	}{
		{"untrusted peer ignores metadata", nil, "198.51.100.4", metadata.Pairs("x-real-ip", "10.2.2.2"), "198.51.100.4"},
		{"trusted peer real ip", mustProxies(t, "10.0.0.0/8"), "10.0.0.5", metadata.Pairs("x-real-ip", "203.0.113.9"), "203.0.113.9"},
		{"trusted peer forwarded", mustProxies(t, "10.0.0.0/8"), "10.0.0.5", metadata.Pairs("x-forwarded-for", "203.0.113.9, 10.0.0.7"), "203.0.113.9"},
		{"trusted peer no metadata", mustProxies(t, "10.0.0.0/8"), "10.0.0.5", nil, "10.0.0.5"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := peer.NewContext(context.Background(), &peer.Peer{
				Addr: &net.TCPAddr{IP: net.ParseIP(tc.peer), Port: 4000},
			})
			if tc.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tc.md)
			}
			var seen string
			_, err := ClientIPUnary(tc.proxies)(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/x/y"}, func(ctx context.Context, _ interface{}) (interface{}, error) {
				seen = ClientIPFrom(ctx)
				return nil, nil
			})
			if err != nil {
				t.Fatalf("interceptor: %v", err)
			}
			if seen != tc.want {
				t.Errorf("client ip = %q, want %q", seen, tc.want)
			}
		})
	}
}

func TestClientIPHTTP(t *testing.T) {
	proxies := mustProxies(t, "10.0.0.0/8")
	testCases := []struct {
		name    string
		proxies *TrustedProxies
		headers map[string]string
		remote  string
		want    string
	}{
		{"untrusted remote ignores forwarded", proxies, map[string]string{"X-Forwarded-For": "203.0.113.5"}, "198.51.100.1:5555", "198.51.100.1"},
		{"untrusted remote ignores real ip", proxies, map[string]string{"X-Real-IP": "203.0.113.6"}, "198.51.100.1:5555", "198.51.100.1"},
		{"no proxies configured", nil, map[string]string{"X-Forwarded-For": "203.0.113.5"}, "10.0.0.9:5555", "10.0.0.9"},
		{"trusted remote forwarded", proxies, map[string]string{"X-Forwarded-For": "203.0.113.5"}, "10.0.0.9:5555", "203.0.113.5"},
		{"skips trusted hops", proxies, map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.9:5555", "203.0.113.5"},
		{"client-forged prefix is not used", proxies, map[string]string{"X-Forwarded-For": "1.2.3.4, 203.0.113.5"}, "10.0.0.9:5555", "203.0.113.5"},
		{"trusted remote real ip", proxies, map[string]string{"X-Real-IP": "203.0.113.6"}, "10.0.0.9:5555", "203.0.113.6"},
		{"garbage header falls back", proxies, map[string]string{"X-Forwarded-For": "not-an-ip"}, "10.0.0.9:5555", "10.0.0.9"},
		{"remote addr", proxies, nil, "198.51.100.1:5555", "198.51.100.1"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			h := ClientIPHTTP(tc.proxies)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = ClientIPFrom(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if seen != tc.want {
				t.Errorf("client ip = %q, want %q", seen, tc.want)
			}
		})
	}
}
