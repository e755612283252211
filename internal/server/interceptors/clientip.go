package interceptors

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

// TrustedProxies lists the peers whose X-Forwarded-For / X-Real-IP headers are believed.
// A nil or empty list trusts nobody, so the client address is always the transport peer.
type TrustedProxies struct {
	prefixes []netip.Prefix
}

// ParseTrustedProxies accepts IP addresses and CIDR ranges.
func ParseTrustedProxies(entries []string) (*TrustedProxies, error) {
	t := &TrustedProxies{}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			t.prefixes = append(t.prefixes, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		a = a.Unmap()
		t.prefixes = append(t.prefixes, netip.PrefixFrom(a, a.BitLen()))
	}
	return t, nil
}

// Trusts reports whether ip falls inside a trusted range.
func (t *TrustedProxies) Trusts(ip string) bool {
	if t == nil || len(t.prefixes) == 0 {
		return false
	}
	a, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range t.prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// resolve picks the client address for a request that arrived from peerHost. Forwarding headers
// count only when peerHost is trusted; X-Forwarded-For is then walked right to left past the
// trusted hops.
func (t *TrustedProxies) resolve(peerHost, forwardedFor, realIP string) string {
	if !t.Trusts(peerHost) {
		return peerHost
	}
	if forwardedFor != "" {
		hops := strings.Split(forwardedFor, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if _, err := netip.ParseAddr(hop); err != nil {
				break
			}
			if i == 0 || !t.Trusts(hop) {
				return hop
			}
		}
	}
	if ip := strings.TrimSpace(realIP); ip != "" {
		if _, err := netip.ParseAddr(ip); err == nil {
			return ip
		}
	}
	return peerHost
}

// ClientIP returns the client address for ctx: the value stored by the transport middleware,
// then the gRPC peer, or "unknown".
func ClientIP(ctx context.Context) string {
	if ip := ClientIPFrom(ctx); ip != "" {
		return ip
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return hostOnly(p.Addr.String())
	}
	return "unknown"
}

// ClientIPUnary stores the caller's address in the context. x-forwarded-for and x-real-ip
// metadata are honoured only from trusted peers.
func ClientIPUnary(proxies *TrustedProxies) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		p, ok := peer.FromContext(ctx)
		if !ok || p.Addr == nil {
			return handler(ctx, req)
		}
		host := hostOnly(p.Addr.String())
		var forwarded, realIP string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			forwarded = strings.Join(md.Get("x-forwarded-for"), ",")
			realIP = firstValue(md.Get("x-real-ip"))
		}
		return handler(WithClientIP(ctx, proxies.resolve(host, forwarded, realIP)), req)
	}
}

// ClientIPHTTP stores the caller's address in the request context. RemoteAddr is used unless it
// belongs to a trusted proxy, in which case X-Forwarded-For and then X-Real-IP are consulted.
func ClientIPHTTP(proxies *TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			forwarded := strings.Join(r.Header.Values("X-Forwarded-For"), ",")
			ip := proxies.resolve(hostOnly(r.RemoteAddr), forwarded, r.Header.Get("X-Real-IP"))
			next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), ip)))
		})
	}
}

func firstValue(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func hostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
