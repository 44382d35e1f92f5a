package gatesdk

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error codes the gate puts in ErrorResponse.Code for classified errors.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeAuthentication = "AUTHENTICATION_ERROR"
	CodeAuthorization  = "AUTHORIZATION_ERROR"
	CodePayment        = "PAYMENT_ERROR"
	CodeSecurity       = "SECURITY_ERROR"
	CodeDuplicate      = "DUPLICATE_RESOURCE"
	CodeRateLimited    = "RATE_LIMITED"
)

// APIError is a non-2xx response from the gate.
type APIError struct {
	StatusCode int
	ErrorResponse
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gatekeeper: %d %s: %s", e.StatusCode, e.ErrorResponse.Error, e.Message)
	}
	return fmt.Sprintf("gatekeeper: %d %s", e.StatusCode, e.ErrorResponse.Error)
}

// Typed checks for the gate's fixed rejections.

// IsRateLimited reports a 429. ResetTime says when to try again.
func (e *APIError) IsRateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }

// IsCSRF reports a missing or stale CSRF token. Calling FetchCSRF and
// retrying is usually enough.
func (e *APIError) IsCSRF() bool {
	return e.StatusCode == http.StatusForbidden && e.ErrorResponse.Error == "Invalid CSRF token"
}

func (e *APIError) IsTwoFactorRequired() bool {
	return e.StatusCode == http.StatusForbidden && e.ErrorResponse.Error == "2FA required"
}

func (e *APIError) IsAccessDenied() bool {
	return e.StatusCode == http.StatusForbidden && e.ErrorResponse.Error == "Access denied"
}

// parseErrorResponse turns a non-2xx response into an *APIError. Bodies that
// are not JSON fall back to the status text.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, &apiErr.ErrorResponse); err != nil || apiErr.ErrorResponse.Error == "" {
		apiErr.ErrorResponse = ErrorResponse{
			Error: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}
	return apiErr
}
