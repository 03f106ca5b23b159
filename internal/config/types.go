package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// Duration wraps time.Duration so config files can use "30s"-style strings
type Duration time.Duration

// UnmarshalJSON parses a duration string
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalJSON renders the duration as a string
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the standard library duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// StorageKind selects the session-state backend
type StorageKind string

const (
	StorageKindMemory    StorageKind = "memory"
	StorageKindRedis     StorageKind = "redis"
	StorageKindFirestore StorageKind = "firestore"
)

// APIConfig describes the upstream meeting-minutes API
type APIConfig struct {
	BaseURL string   `json:"baseURL"`
	Timeout Duration `json:"timeout,omitempty"`
}

// AuthConfig configures the session bootstrap against the backend
type AuthConfig struct {
	// OAuth providers offered on the login page. The backend hosts the
	// actual authorization endpoints under /oauth2/authorization/{provider}.
	Providers []string `json:"providers"`

	CookieTTL Duration `json:"cookieTtl,omitempty"`

	EncryptionKeyRaw json.RawMessage `json:"encryptionKey"`
	SigningKeyRaw    json.RawMessage `json:"signingKey"`

	// Computed fields
	EncryptionKey Secret `json:"-"`
	SigningKey    Secret `json:"-"`
}

// StorageConfig selects and configures the session-state store
type StorageConfig struct {
	Kind StorageKind `json:"kind"`

	// Redis
	RedisAddr string `json:"redisAddr,omitempty"`

	// Firestore
	GCPProject          string `json:"gcpProject,omitempty"`
	FirestoreDatabase   string `json:"firestoreDatabase,omitempty"`
	FirestoreCollection string `json:"firestoreCollection,omitempty"`
}

// SessionConfig governs browser-session lifetime
type SessionConfig struct {
	TTL             Duration `json:"ttl,omitempty"`
	CleanupInterval Duration `json:"cleanupInterval,omitempty"`
}

// AdminConfig configures the ops endpoint
type AdminConfig struct {
	Enabled     bool            `json:"enabled"`
	Username    string          `json:"username,omitempty"`
	PasswordRaw json.RawMessage `json:"password,omitempty"`

	// Computed: bcrypt hash of the configured password
	HashedPassword Secret `json:"-"`
}

// FrontConfig represents the front server configuration with resolved values
type FrontConfig struct {
	BaseURL  string         `json:"baseURL"`
	Addr     string         `json:"addr"`
	Name     string         `json:"name"`
	API      APIConfig      `json:"api"`
	Auth     *AuthConfig    `json:"auth,omitempty"`
	Storage  *StorageConfig `json:"storage,omitempty"`
	Sessions *SessionConfig `json:"sessions,omitempty"`
	Admin    *AdminConfig   `json:"admin,omitempty"`
}

// Config represents the config structure with resolved values
type Config struct {
	Front FrontConfig `json:"front"`
}

// ParseConfigValue parses a JSON value that could be a plain string or an
// environment reference of the form {"$env": "VAR_NAME"}. The explicit JSON
// syntax avoids accidental shell expansion of $VAR in startup scripts and
// lets invalid references fail at load time.
func ParseConfigValue(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return "", fmt.Errorf("unknown reference type in config value")
	}

	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("environment variable %s not set", envVar)
	}
	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return value, nil
}
