package crypto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TokenSigner produces HMAC-signed JSON tokens with optional expiry. The
// wire format is base64url(envelope) "." signature.
type TokenSigner struct {
	signingKey []byte
	ttl        time.Duration
}

// NewTokenSigner creates a new token signer
func NewTokenSigner(signingKey []byte, ttl time.Duration) TokenSigner {
	return TokenSigner{
		signingKey: signingKey,
		ttl:        ttl,
	}
}

var ErrTokenExpired = errors.New("token expired")

type tokenEnvelope struct {
	Payload   json.RawMessage `json:"payload"`
	ExpiresAt int64           `json:"exp,omitempty"`
}

// Sign marshals v to JSON, wraps it with an expiry, and signs the result
func (ts *TokenSigner) Sign(v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshaling payload: %w", err)
	}

	envelope := tokenEnvelope{Payload: payload}
	if ts.ttl > 0 {
		envelope.ExpiresAt = time.Now().Add(ts.ttl).UnixNano()
	}

	raw, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("marshaling token: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(raw)
	return encoded + "." + SignData(encoded, ts.signingKey), nil
}

// Verify validates the signature, checks expiry, and unmarshals the payload
// into v
func (ts *TokenSigner) Verify(token string, v any) error {
	encoded, signature, found := strings.Cut(token, ".")
	if !found {
		return errors.New("invalid token format")
	}

	if !ValidateSignedData(encoded, signature, ts.signingKey) {
		return errors.New("invalid signature")
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decoding token: %w", err)
	}

	var envelope tokenEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("unmarshaling token: %w", err)
	}

	if envelope.ExpiresAt != 0 && time.Now().UnixNano() > envelope.ExpiresAt {
		return ErrTokenExpired
	}

	if err := json.Unmarshal(envelope.Payload, v); err != nil {
		return fmt.Errorf("unmarshaling payload: %w", err)
	}
	return nil
}
