package gatesdk

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseErrorResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   ErrorResponse
		check  func(*APIError) bool
	}{
		{
			name:   "csrf rejection",
			status: http.StatusForbidden,
			body:   `{"error":"Invalid CSRF token"}`,
			want:   ErrorResponse{Error: "Invalid CSRF token"},
			check:  (*APIError).IsCSRF,
		},
		{
			name:   "two-factor required",
			status: http.StatusForbidden,
			body:   `{"error":"2FA required"}`,
			want:   ErrorResponse{Error: "2FA required"},
			check:  (*APIError).IsTwoFactorRequired,
		},
		{
			name:   "access denied with reason",
			status: http.StatusForbidden,
			body:   `{"error":"Access denied","message":"IP not whitelisted"}`,
			want:   ErrorResponse{Error: "Access denied", Message: "IP not whitelisted"},
			check:  (*APIError).IsAccessDenied,
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   `{"error":"Too many requests, please try again later.","resetTime":"2025-06-01T10:01:00Z"}`,
			want: ErrorResponse{
				Error:     "Too many requests, please try again later.",
				ResetTime: "2025-06-01T10:01:00Z",
			},
			check: (*APIError).IsRateLimited,
		},
		{
			name:   "non-json body",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
			want:   ErrorResponse{Error: "HTTP 502: Bad Gateway"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := parseErrorResponse(&http.Response{StatusCode: tt.status}, []byte(tt.body))

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			require.Equal(t, tt.status, apiErr.StatusCode)
			require.Equal(t, tt.want, apiErr.ErrorResponse)
			if tt.check != nil {
				require.True(t, tt.check(apiErr))
			}
		})
	}

	t.Run("success status", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, parseErrorResponse(&http.Response{StatusCode: http.StatusOK}, nil))
	})
}

func TestClientCSRFRoundTrip(t *testing.T) {
	t.Parallel()

	var gotHeader, gotForwarded string

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/csrf", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "csrf_token", Value: "tok-123", Path: "/"})
		_ = json.NewEncoder(w).Encode(CSRFResponse{Token: "tok-123"})
	})
	mux.HandleFunc("POST /v1/accounts", func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(csrfHeader)
		gotForwarded = r.Header.Get("X-Forwarded-For")

		cookie, err := r.Cookie("csrf_token")
		if err != nil || cookie.Value != gotHeader {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"Invalid CSRF token"}`))
			return
		}

		var req RegisterRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(RegisterResponse{UserID: req.UserID})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewClient(srv.URL + "/")
	require.NoError(t, err)
	client.ForwardedFor = "198.51.100.4"

	t.Run("rejected without token", func(t *testing.T) {
		_, err := client.Register(t.Context(), RegisterRequest{UserID: "alice", Password: "Secret123!"})

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		require.True(t, apiErr.IsCSRF())
	})

	t.Run("accepted after fetch", func(t *testing.T) {
		require.NoError(t, client.FetchCSRF(t.Context()))
		require.Equal(t, "tok-123", client.CSRFToken())

		resp, err := client.Register(t.Context(), RegisterRequest{UserID: "alice", Password: "Secret123!"})
		require.NoError(t, err)
		require.Equal(t, "alice", resp.UserID)
		require.Equal(t, "tok-123", gotHeader)
		require.Equal(t, "198.51.100.4", gotForwarded)
	})
}

func TestClientPaySendsTwoFactorHeader(t *testing.T) {
	t.Parallel()

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(twoFactorHeader)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(PaymentResponse{ID: "p1", AmountCents: 500, Currency: "AUD", Status: "pending"})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	resp, err := client.Pay(t.Context(), PaymentRequest{AmountCents: 500, Currency: "AUD"}, "123456")
	require.NoError(t, err)
	require.Equal(t, "p1", resp.ID)
	require.Equal(t, "123456", got)

	_, err = client.Pay(t.Context(), PaymentRequest{AmountCents: 500, Currency: "AUD"}, "")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestClientWhitelistSendsTwoFactorHeader(t *testing.T) {
	t.Parallel()

	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.Header.Get(twoFactorHeader))
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(WhitelistEntry{ID: "w1", IPAddress: "192.0.2.1"})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	entry, err := client.AddWhitelist(t.Context(), WhitelistAddRequest{IPAddress: "192.0.2.1"}, "")
	require.NoError(t, err)
	require.Equal(t, "w1", entry.ID)

	_, err = client.AddWhitelist(t.Context(), WhitelistAddRequest{IPAddress: "192.0.2.2"}, "123456")
	require.NoError(t, err)
	require.NoError(t, client.RemoveWhitelist(t.Context(), "192.0.2.1", "654321"))

	require.Equal(t, []string{"POST ", "POST 123456", "DELETE 654321"}, got)
}
