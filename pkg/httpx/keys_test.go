package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestIPKeyExtractor(t *testing.T) {
	t.Run("extracts from RemoteAddr", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"

		require.Equal(t, "192.168.1.1", httpx.IPKeyExtractor(req))
	})

	t.Run("ignores forwarding headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Forwarded-For", "203.0.113.1")
		req.Header.Set("X-Real-IP", "203.0.113.2")

		require.Equal(t, "192.168.1.1", httpx.IPKeyExtractor(req))
	})

	t.Run("prefers the resolved address", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req = req.WithContext(httpx.WithClientIP(req.Context(), "203.0.113.9"))

		require.Equal(t, "203.0.113.9", httpx.IPKeyExtractor(req))
	})
}

func TestParseProxyTrust(t *testing.T) {
	p, err := httpx.ParseProxyTrust([]string{"10.0.0.0/8", " 192.0.2.10 ", "", "2001:db8::/32"})
	require.NoError(t, err)

	require.True(t, p.Trusted(netip.MustParseAddr("10.1.2.3")))
	require.True(t, p.Trusted(netip.MustParseAddr("192.0.2.10")))
	require.True(t, p.Trusted(netip.MustParseAddr("::ffff:10.0.0.1")))
	require.True(t, p.Trusted(netip.MustParseAddr("2001:db8::1")))
	require.False(t, p.Trusted(netip.MustParseAddr("192.0.2.11")))

	_, err = httpx.ParseProxyTrust([]string{"10.0.0.0/33"})
	require.Error(t, err)
	_, err = httpx.ParseProxyTrust([]string{"not-an-ip"})
	require.Error(t, err)

	var none *httpx.ProxyTrust
	require.False(t, none.Trusted(netip.MustParseAddr("10.1.2.3")))
}

func TestProxyTrustClientIP(t *testing.T) {
	trust, err := httpx.ParseProxyTrust([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		trust   *httpx.ProxyTrust
		remote  string
		headers map[string][]string
		want    string
	}{
		{
			name:    "untrusted peer cannot spoof forwarded for",
			trust:   trust,
			remote:  "203.0.113.7:52100",
			headers: map[string][]string{"X-Forwarded-For": {"198.51.100.10"}},
			want:    "203.0.113.7",
		},
		{
			name:    "untrusted peer cannot spoof real ip",
			trust:   trust,
			remote:  "203.0.113.7:52100",
			headers: map[string][]string{"X-Real-Ip": {"198.51.100.10"}},
			want:    "203.0.113.7",
		},
		{
			name:    "no trust configured",
			trust:   nil,
			remote:  "10.0.0.2:52100",
			headers: map[string][]string{"X-Forwarded-For": {"198.51.100.10"}},
			want:    "10.0.0.2",
		},
		{
			name:    "trusted peer single hop",
			trust:   trust,
			remote:  "10.0.0.2:52100",
			headers: map[string][]string{"X-Forwarded-For": {"198.51.100.10"}},
			want:    "198.51.100.10",
		},
		{
			name:    "right-most untrusted hop wins over client supplied entries",
			trust:   trust,
			remote:  "10.0.0.2:52100",
			headers: map[string][]string{"X-Forwarded-For": {"1.2.3.4, 198.51.100.10, 10.0.0.5"}},
			want:    "198.51.100.10",
		},
		{
			name:    "multiple header lines are one chain",
			trust:   trust,
			remote:  "10.0.0.2:52100",
			headers: map[string][]string{"X-Forwarded-For": {"1.2.3.4", "198.51.100.10"}},
			want:    "198.51.100.10",
		},
		{
			name:    "malformed hop falls back to peer",
			trust:   trust,
			remote:  "10.0.0.2:52100",
			headers: map[string][]string{"X-Forwarded-For": {"198.51.100.10, garbage"}},
			want:    "10.0.0.2",
		},
		{
			name:    "all hops trusted",
			trust:   trust,
			remote:  "10.0.0.2:52100",
			headers: map[string][]string{"X-Forwarded-For": {"10.9.9.9, 10.0.0.5"}},
			want:    "10.9.9.9",
		},
		{
			name:    "real ip from trusted peer",
			trust:   trust,
			remote:  "10.0.0.2:52100",
			headers: map[string][]string{"X-Real-Ip": {"198.51.100.11"}},
			want:    "198.51.100.11",
		},
		{
			name:   "trusted peer without headers",
			trust:  trust,
			remote: "10.0.0.2:52100",
			want:   "10.0.0.2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, vs := range tt.headers {
				for _, v := range vs {
					req.Header.Add(k, v)
				}
			}
			require.Equal(t, tt.want, tt.trust.ClientIP(req))
		})
	}
}

func TestProxyTrustMiddleware(t *testing.T) {
	trust, err := httpx.ParseProxyTrust([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	var got string
	h := trust.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = httpx.IPKeyExtractor(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:52100"
	req.Header.Set("X-Forwarded-For", "198.51.100.10")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, "198.51.100.10", got)
}

func TestCompositeKeyExtractor(t *testing.T) {
	extractor := httpx.CompositeKeyExtractor(":", httpx.UserIDKeyExtractor, httpx.IPKeyExtractor)

	t.Run("combines multiple extractors", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req = req.WithContext(httpx.WithSession(req.Context(), "alice", "sid"))

		require.Equal(t, "alice:192.168.1.1", extractor(req))
	})

	t.Run("skips empty values", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"

		require.Equal(t, "192.168.1.1", extractor(req))
	})
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("a"), mw("b"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"a", "b", "handler"}, order)
}
