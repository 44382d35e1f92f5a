package security

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
)

const specialChars = `!@#$%^&*(),.?":{}|<>`

// PasswordResult lists every rule a password breaks.
type PasswordResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors,omitempty"`
}

func (p *Policy) ValidatePassword(pw string) PasswordResult {
	var errs []string

	if len([]rune(pw)) < p.cfg.PasswordMinLength {
		errs = append(errs, fmt.Sprintf("Password must be at least %d characters long", p.cfg.PasswordMinLength))
	}
	if p.cfg.PasswordRequireSpecial && !strings.ContainsAny(pw, specialChars) {
		errs = append(errs, "Password must contain at least one special character")
	}
	if p.cfg.PasswordRequireDigit && !strings.ContainsFunc(pw, unicode.IsDigit) {
		errs = append(errs, "Password must contain at least one number")
	}
	if p.cfg.PasswordRequireUpper && !strings.ContainsFunc(pw, unicode.IsUpper) {
		errs = append(errs, "Password must contain at least one uppercase letter")
	}

	return PasswordResult{IsValid: len(errs) == 0, Errors: errs}
}

// HashPassword returns a self-describing bcrypt hash.
func (p *Policy) HashPassword(pw string) (string, error) {
	return cryptox.HashPassword(pw)
}

// ComparePasswords reports whether pw matches hash. A malformed hash never
// matches.
func (p *Policy) ComparePasswords(pw, hash string) bool {
	return cryptox.VerifyPassword(pw, hash) == nil
}
