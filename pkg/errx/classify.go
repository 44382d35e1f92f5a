package errx

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/jackc/pgerrcode"
)

// Markers that storage drivers wrap into their own sentinels so Classify can
// recognise constraint failures without importing any driver.
var (
	ErrUniqueViolation     = errors.New("errx: unique violation")
	ErrForeignKeyViolation = errors.New("errx: foreign key violation")
	ErrTimeout             = errors.New("errx: operation timed out")
)

// sqlStater is satisfied by *pgconn.PgError.
type sqlStater interface {
	SQLState() string
}

// Classify maps any error onto the taxonomy. The mapping is deterministic:
// the same raw error always yields the same category and message. An error
// that already is an *Error keeps its classification and gains c.
func Classify(err error, c Context) *Error {
	if err == nil {
		return nil
	}

	if e, ok := As(err); ok {
		return e.WithContext(c)
	}

	var out *Error
	switch {
	case isUniqueViolation(err):
		out = Validation("Resource already exists", "Use a different value").WithCode(CodeDuplicate)
	case isForeignKeyViolation(err):
		out = Validation("Referenced record does not exist", "Check the referenced identifier").WithCode(CodeInvalidRef)
	case errors.Is(err, context.DeadlineExceeded):
		out = Network("Operation timed out", "Try again later").WithCode(CodeTimeout)
	case isNetwork(err):
		out = Network("Network request failed")
	default:
		out = System(genericMessage)
	}
	return out.WithCause(err).WithContext(c)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, ErrUniqueViolation) {
		return true
	}
	var s sqlStater
	if errors.As(err, &s) && s.SQLState() == pgerrcode.UniqueViolation {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

func isForeignKeyViolation(err error) bool {
	if errors.Is(err, ErrForeignKeyViolation) {
		return true
	}
	var s sqlStater
	if errors.As(err, &s) && s.SQLState() == pgerrcode.ForeignKeyViolation {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "violates foreign key constraint")
}

func isNetwork(err error) bool {
	var (
		opErr  *net.OpError
		dnsErr *net.DNSError
		urlErr *url.Error
		netErr net.Error
	)
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr), errors.As(err, &urlErr):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return true
	case errors.As(err, &netErr):
		return true
	}
	return false
}
