package crypto

import (
	"crypto/subtle"
	"strconv"
	"strings"
	"time"
)

// CSRFProtection implements the stateless double-submit scheme guarding the
// front's form posts. A token is nonce:timestamp:signature; the same value
// travels in a cookie and in the submitted form, and validation requires
// both a good signature and an exact pair match.
type CSRFProtection struct {
	signingKey []byte
	ttl        time.Duration
}

// NewCSRFProtection creates a new CSRF protection instance
func NewCSRFProtection(signingKey []byte, ttl time.Duration) CSRFProtection {
	return CSRFProtection{
		signingKey: signingKey,
		ttl:        ttl,
	}
}

// Generate creates a new CSRF token
func (c *CSRFProtection) Generate() (string, error) {
	nonce, err := GenerateSecureToken()
	if err != nil {
		return "", err
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signed := nonce + ":" + timestamp
	return signed + ":" + SignData(signed, c.signingKey), nil
}

// Validate checks a token's structure, signature, and age
func (c *CSRFProtection) Validate(token string) bool {
	nonce, rest, ok := strings.Cut(token, ":")
	if !ok {
		return false
	}
	timestampStr, signature, ok := strings.Cut(rest, ":")
	if !ok {
		return false
	}

	timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
	if err != nil {
		return false
	}
	if time.Since(time.Unix(timestamp, 0)) > c.ttl {
		return false
	}

	return ValidateSignedData(nonce+":"+timestampStr, signature, c.signingKey)
}

// ValidatePair checks a submitted token against its double-submit cookie.
// The browser sends the cookie on cross-site posts too, so the cookie alone
// proves nothing; the submitted copy is what a forged request cannot carry.
func (c *CSRFProtection) ValidatePair(submitted, cookieValue string) bool {
	if submitted == "" || cookieValue == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(submitted), []byte(cookieValue)) != 1 {
		return false
	}
	return c.Validate(submitted)
}
