package security

import (
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/errx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

const invalidTokenMessage = "Invalid or expired token"

// GenerateToken signs payload with a fixed expiry. A "sub" entry, when
// present, becomes the subject claim.
func (p *Policy) GenerateToken(payload map[string]any) (string, error) {
	subject, _ := payload["sub"].(string)
	claims := jwtx.NewClaims(subject, payload, p.cfg.TokenTTL, p.cfg.Issuer, p.Now())

	tok, err := p.signer.Sign(claims)
	if err != nil {
		return "", errx.System("Failed to issue token").WithCause(err)
	}
	return tok, nil
}

// VerifyToken returns the payload of a valid token. Every failure yields
// the same Security error so callers cannot tell expiry from tampering.
func (p *Policy) VerifyToken(token string) (map[string]any, error) {
	claims, err := p.signer.Verify(token)
	if err != nil {
		return nil, errx.Security(invalidTokenMessage, "Sign in again").
			WithCode(errx.CodeInvalidToken).
			WithCause(err)
	}
	if claims.Payload == nil {
		return map[string]any{}, nil
	}
	return claims.Payload, nil
}

// GenerateCSRFToken returns a random token for a caller without a session.
// It is only ever checked against the cookie it was issued in.
func (p *Policy) GenerateCSRFToken() (string, error) {
	return cryptox.GenerateToken(cryptox.TokenSize256)
}

// SessionCSRFToken derives the CSRF token bound to sessionID. It is keyed
// by the token secret and the session fingerprint, so it is stable for the
// life of the session and needs no storage. An empty id yields "".
func (p *Policy) SessionCSRFToken(sessionID string) string {
	if sessionID == "" {
		return ""
	}
	return cryptox.MACToken([]byte(p.cfg.TokenSecret), "csrf", cryptox.FingerprintToken(sessionID))
}

// ValidateCSRFToken compares in constant time. An empty token on either
// side never validates.
func (p *Policy) ValidateCSRFToken(supplied, stored string) bool {
	return cryptox.EqualTokens(supplied, stored)
}
