package crypto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecureToken(t *testing.T) {
	token, err := GenerateSecureToken()
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	// Each call generates a unique token
	token2, err := GenerateSecureToken()
	assert.NoError(t, err)
	assert.NotEqual(t, token, token2)

	// base64 encoding of 32 bytes should be at least 40 chars
	assert.GreaterOrEqual(t, len(token), 40)
}

func TestEncryptorRoundTrip(t *testing.T) {
	encryptor, err := NewAESEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	ciphertext, err := encryptor.Encrypt("session-id-42")
	require.NoError(t, err)
	assert.NotEqual(t, "session-id-42", ciphertext)

	plaintext, err := encryptor.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "session-id-42", plaintext)

	// Same plaintext encrypts differently each time
	ciphertext2, err := encryptor.Encrypt("session-id-42")
	require.NoError(t, err)
	assert.NotEqual(t, ciphertext, ciphertext2)
}

func TestEncryptorRejectsTampering(t *testing.T) {
	encryptor, err := NewAESEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	_, err = encryptor.Decrypt("not-a-ciphertext")
	assert.Error(t, err)

	other, err := NewAESEncryptor([]byte("abcdef0123456789abcdef0123456789"))
	require.NoError(t, err)
	ciphertext, err := other.Encrypt("session-id-42")
	require.NoError(t, err)

	_, err = encryptor.Decrypt(ciphertext)
	assert.Error(t, err, "ciphertext from a different key must not decrypt")
}

func TestEncryptorRequires32ByteKey(t *testing.T) {
	_, err := NewAESEncryptor([]byte("too-short"))
	assert.Error(t, err)
}

func TestTokenSignerRoundTrip(t *testing.T) {
	signer := NewTokenSigner([]byte("signing-key-0123456789abcdefghij"), time.Minute)

	type payload struct {
		Provider string `json:"provider"`
	}

	token, err := signer.Sign(payload{Provider: "google"})
	require.NoError(t, err)

	var decoded payload
	require.NoError(t, signer.Verify(token, &decoded))
	assert.Equal(t, "google", decoded.Provider)
}

func TestTokenSignerRejectsTampering(t *testing.T) {
	signer := NewTokenSigner([]byte("signing-key-0123456789abcdefghij"), time.Minute)

	token, err := signer.Sign(map[string]string{"provider": "google"})
	require.NoError(t, err)

	var decoded map[string]string
	assert.Error(t, signer.Verify(token+"x", &decoded))
	assert.Error(t, signer.Verify("garbage", &decoded))

	other := NewTokenSigner([]byte("different-key-0123456789abcdefgh"), time.Minute)
	assert.Error(t, other.Verify(token, &decoded))
}

func TestTokenSignerExpiry(t *testing.T) {
	signer := NewTokenSigner([]byte("signing-key-0123456789abcdefghij"), time.Millisecond)

	token, err := signer.Sign(map[string]string{"k": "v"})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	var decoded map[string]string
	assert.ErrorContains(t, signer.Verify(token, &decoded), "expired")
}

func TestCSRFProtection(t *testing.T) {
	csrf := NewCSRFProtection([]byte("signing-key-0123456789abcdefghij"), time.Minute)

	token, err := csrf.Generate()
	require.NoError(t, err)
	assert.True(t, csrf.Validate(token))

	assert.False(t, csrf.Validate(""))
	assert.False(t, csrf.Validate("a:b:c"))
	assert.False(t, csrf.Validate(token+"x"))

	expired := NewCSRFProtection([]byte("signing-key-0123456789abcdefghij"), -time.Second)
	token, err = expired.Generate()
	require.NoError(t, err)
	assert.False(t, expired.Validate(token))
}

func TestCSRFValidatePair(t *testing.T) {
	csrf := NewCSRFProtection([]byte("signing-key-0123456789abcdefghij"), time.Minute)

	token, err := csrf.Generate()
	require.NoError(t, err)
	other, err := csrf.Generate()
	require.NoError(t, err)

	assert.True(t, csrf.ValidatePair(token, token))
	assert.False(t, csrf.ValidatePair(token, ""), "missing cookie")
	assert.False(t, csrf.ValidatePair("", token), "missing submitted copy")
	assert.False(t, csrf.ValidatePair(token, other), "pair mismatch")
	assert.False(t, csrf.ValidatePair("x", "x"), "matching but unsigned")
}
