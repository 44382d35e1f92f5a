// Package errx is the error taxonomy shared by every layer of the gate. A
// failure is either built directly with one of the kind constructors or
// produced by Classify from a raw driver/network error, so callers only ever
// reason about *Error values.
package errx

import (
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"time"
)

// Category groups errors by the part of the system that refused.
type Category string

const (
	CategoryValidation     Category = "validation"
	CategoryAuthentication Category = "authentication"
	CategoryAuthorization  Category = "authorization"
	CategoryPayment        Category = "payment"
	CategoryDatabase       Category = "database"
	CategoryNetwork        Category = "network"
	CategorySecurity       Category = "security"
	CategorySystem         Category = "system"
)

// Severity decides how loudly an error is logged.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Context describes who triggered a failure. Extra carries free-form
// details that only ever reach logs.
type Context struct {
	UserID    string
	IPAddress string
	UserAgent string
	RequestID string
	Timestamp time.Time
	Extra     map[string]any
}

// Error is an immutable classified failure. Use the kind constructors and
// the With* methods, which return copies.
type Error struct {
	Message       string
	Category      Category
	Severity      Severity
	Code          string
	Context       Context
	Operational   bool
	RecoverySteps []string

	cause error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) clone() *Error {
	c := *e
	c.RecoverySteps = slices.Clone(e.RecoverySteps)
	c.Context.Extra = maps.Clone(e.Context.Extra)
	return &c
}

// WithContext returns a copy with c merged over the existing context. Empty
// fields in c leave the current value untouched.
func (e *Error) WithContext(c Context) *Error {
	out := e.clone()
	if c.UserID != "" {
		out.Context.UserID = c.UserID
	}
	if c.IPAddress != "" {
		out.Context.IPAddress = c.IPAddress
	}
	if c.UserAgent != "" {
		out.Context.UserAgent = c.UserAgent
	}
	if c.RequestID != "" {
		out.Context.RequestID = c.RequestID
	}
	if !c.Timestamp.IsZero() {
		out.Context.Timestamp = c.Timestamp
	}
	if len(c.Extra) > 0 {
		if out.Context.Extra == nil {
			out.Context.Extra = make(map[string]any, len(c.Extra))
		}
		maps.Copy(out.Context.Extra, c.Extra)
	}
	if out.Context.Timestamp.IsZero() {
		out.Context.Timestamp = time.Now().UTC()
	}
	return out
}

// WithCause returns a copy that wraps err. The cause is logged but never
// rendered to clients.
func (e *Error) WithCause(err error) *Error {
	out := e.clone()
	out.cause = err
	return out
}

// WithCode returns a copy of e with a different Code.
func (e *Error) WithCode(code string) *Error {
	out := e.clone()
	out.Code = code
	return out
}

// As reports whether err is or wraps an *Error.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCategory reports whether err classifies into c.
func IsCategory(err error, c Category) bool {
	e, ok := As(err)
	return ok && e.Category == c
}

// LogLevel maps severity onto a slog level.
func (e *Error) LogLevel() slog.Level {
	switch e.Severity {
	case SeverityLow:
		return slog.LevelInfo
	case SeverityMedium:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// LogAttrs returns the full internal detail of e for structured logging.
func (e *Error) LogAttrs() []any {
	attrs := []any{
		slog.String("error_code", e.Code),
		slog.String("category", string(e.Category)),
		slog.String("severity", string(e.Severity)),
		slog.Bool("operational", e.Operational),
	}
	if e.Context.UserID != "" {
		attrs = append(attrs, slog.String("user_id", e.Context.UserID))
	}
	if e.Context.IPAddress != "" {
		attrs = append(attrs, slog.String("ip", e.Context.IPAddress))
	}
	if e.Context.RequestID != "" {
		attrs = append(attrs, slog.String("req_id", e.Context.RequestID))
	}
	if e.cause != nil {
		attrs = append(attrs, slog.String("cause", e.cause.Error()))
	}
	for k, v := range e.Context.Extra {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

// HTTPStatus is the response status for e at the HTTP boundary.
func (e *Error) HTTPStatus() int {
	switch e.Category {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryAuthentication:
		return http.StatusUnauthorized
	case CategoryAuthorization:
		return http.StatusForbidden
	case CategoryPayment:
		return http.StatusPaymentRequired
	case CategoryNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

const genericMessage = "An unexpected error occurred"

// PublicBody is the client-facing rendering of e. Non-operational failures
// never expose their message.
func (e *Error) PublicBody() map[string]string {
	msg := e.Message
	if !e.Operational {
		msg = genericMessage
	}
	return map[string]string{"error": msg, "code": e.Code}
}
