package errx

import (
	"fmt"
	"time"
)

// Error codes. Each kind has a default code; Classify refines a few.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeAuthentication = "AUTHENTICATION_ERROR"
	CodeAuthorization  = "AUTHORIZATION_ERROR"
	CodePayment        = "PAYMENT_ERROR"
	CodeDatabase       = "DATABASE_ERROR"
	CodeNetwork        = "NETWORK_ERROR"
	CodeSecurity       = "SECURITY_ERROR"
	CodeSystem         = "SYSTEM_ERROR"

	CodeDuplicate    = "DUPLICATE_RESOURCE"
	CodeInvalidRef   = "INVALID_REFERENCE"
	CodeTimeout      = "TIMEOUT"
	CodeRateLimited  = "RATE_LIMITED"
	CodeInvalidToken = "INVALID_TOKEN"
)

func newError(msg string, cat Category, sev Severity, code string, operational bool, steps []string) *Error {
	return &Error{
		Message:       msg,
		Category:      cat,
		Severity:      sev,
		Code:          code,
		Operational:   operational,
		RecoverySteps: steps,
		Context:       Context{Timestamp: time.Now().UTC()},
	}
}

func stepsOr(steps []string, def ...string) []string {
	if len(steps) > 0 {
		return steps
	}
	return def
}

// Validation is for bad input. It is low severity and safe to show.
func Validation(msg string, steps ...string) *Error {
	return newError(msg, CategoryValidation, SeverityLow, CodeValidation, true,
		stepsOr(steps, "Check the submitted data and try again"))
}

// Authentication is for a missing or wrong credential.
func Authentication(msg string, steps ...string) *Error {
	return newError(msg, CategoryAuthentication, SeverityHigh, CodeAuthentication, true,
		stepsOr(steps, "Sign in again"))
}

// Authorization is for a known caller asking for something it may not do.
func Authorization(msg string, steps ...string) *Error {
	return newError(msg, CategoryAuthorization, SeverityHigh, CodeAuthorization, true,
		stepsOr(steps, "Contact an administrator if you need access"))
}

// Payment is for a declined or failed payment.
func Payment(msg string, steps ...string) *Error {
	return newError(msg, CategoryPayment, SeverityHigh, CodePayment, true,
		stepsOr(steps, "Check your payment details", "Try a different payment method"))
}

// Database errors are not operational; responses hide their message.
func Database(msg string, steps ...string) *Error {
	return newError(msg, CategoryDatabase, SeverityCritical, CodeDatabase, false,
		stepsOr(steps, "Try again later"))
}

// Network covers upstream failures and timeouts.
func Network(msg string, steps ...string) *Error {
	return newError(msg, CategoryNetwork, SeverityMedium, CodeNetwork, true,
		stepsOr(steps, "Check your connection and try again"))
}

// Security is for policy refusals such as lockouts and whitelist limits.
// It is critical and not operational, so clients get the generic message.
func Security(msg string, steps ...string) *Error {
	return newError(msg, CategorySecurity, SeverityCritical, CodeSecurity, false,
		stepsOr(steps, "Contact support"))
}

// System is the kind for anything Classify does not recognise.
func System(msg string, steps ...string) *Error {
	return newError(msg, CategorySystem, SeverityHigh, CodeSystem, false,
		stepsOr(steps, "Try again later", "Contact support if the issue persists"))
}

// Timeout is returned by WithTimeout when the timer wins.
func Timeout(after time.Duration) *Error {
	return Network(fmt.Sprintf("Operation timed out after %s", after), "Try again later").
		WithCode(CodeTimeout).
		WithCause(ErrTimeout)
}
