package httpx

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// KeyExtractor derives a grouping key from a request, e.g. for rate
// limiting.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor returns the client IP resolved earlier in the chain by
// ProxyTrust.Middleware. Without a resolved address it falls back to the
// direct peer; forwarding headers are never read here.
func IPKeyExtractor(r *http.Request) string {
	if ip := ClientIP(r.Context()); ip != "" {
		return ip
	}
	return peerIP(r)
}

// UserIDKeyExtractor returns the authenticated user id, or "".
func UserIDKeyExtractor(r *http.Request) string {
	return UserID(r.Context())
}

// CompositeKeyExtractor joins the non-empty results of extractors with sep.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		var parts []string
		for _, extractor := range extractors {
			if key := extractor(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

// ProxyTrust decides which peers may speak for the client through
// X-Forwarded-For and X-Real-IP.
//
// A request whose direct peer is not trusted is keyed by that peer, whatever
// headers it carries. For a trusted peer the X-Forwarded-For chain is walked
// from the right and the first hop outside the trusted ranges is the client.
// The zero value and a nil *ProxyTrust trust nobody.
type ProxyTrust struct {
	prefixes []netip.Prefix
}

// ParseProxyTrust builds a ProxyTrust from CIDR ranges. A bare address is
// taken as a single-host range. Blank entries are skipped.
func ParseProxyTrust(cidrs []string) (*ProxyTrust, error) {
	p := &ProxyTrust{}
	for _, raw := range cidrs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
			}
			addr = addr.Unmap()
			p.prefixes = append(p.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy range %q: %w", raw, err)
		}
		p.prefixes = append(p.prefixes, prefix.Masked())
	}
	return p, nil
}

// Trusted reports whether addr falls inside a trusted range.
func (p *ProxyTrust) Trusted(addr netip.Addr) bool {
	if p == nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP resolves the client address of r.
func (p *ProxyTrust) ClientIP(r *http.Request) string {
	peer := peerIP(r)
	addr, err := netip.ParseAddr(peer)
	if err != nil || !p.Trusted(addr) {
		return peer
	}

	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(v, ",")...)
	}

	if len(hops) > 0 {
		client := peer
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				// Nothing left of a malformed hop can be attributed.
				return peer
			}
			client = hop.Unmap().String()
			if !p.Trusted(hop) {
				return client
			}
		}
		// Every hop is a trusted proxy: the left-most one originated it.
		return client
	}

	if xri, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return xri.Unmap().String()
	}
	return peer
}

// Middleware resolves the client address once and stores it on the
// request context for IPKeyExtractor and everything downstream.
func (p *ProxyTrust) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), p.ClientIP(r))))
	})
}

func peerIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
