package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/pkg/errx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// MaxBodyBytes bounds every JSON request body read by the gate.
const MaxBodyBytes = 1 << 20

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type header and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// WriteError classifies err, logs it at its severity and renders the
// public {error, code} body. Nothing internal leaks for non-operational
// failures.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	e := errx.Classify(err, RequestContext(r))
	slogx.LogError(ctx, "request failed", e)
	WriteJSON(w, e.HTTPStatus(), e.PublicBody())
}

// RequestContext builds the errx context for r.
func RequestContext(r *http.Request) errx.Context {
	return errx.Context{
		UserID:    UserID(r.Context()),
		IPAddress: IPKeyExtractor(r),
		UserAgent: r.UserAgent(),
		RequestID: slogx.RequestID(r.Context()),
	}
}

// DecodeJSON reads a single JSON object from r into v. Unknown fields are
// rejected so typos surface as validation errors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return errx.Validation("Request body too large")
		case errors.Is(err, io.EOF):
			return errx.Validation("Request body is required")
		default:
			return errx.Validation(fmt.Sprintf("Invalid request body: %v", err)).WithCause(err)
		}
	}
	if dec.More() {
		return errx.Validation("Request body must contain a single JSON object")
	}
	return nil
}
