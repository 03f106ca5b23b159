package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"slices"
	"time"

	"github.com/meetscribe/minutes-front/internal/log"
	"golang.org/x/crypto/bcrypt"
)

// Defaults applied when the config leaves fields unset
const (
	DefaultAPITimeout      = 30 * time.Second
	DefaultCookieTTL       = 7 * 24 * time.Hour
	DefaultSessionTTL      = 24 * time.Hour
	DefaultCleanupInterval = 5 * time.Minute
)

// KnownProviders are the OAuth providers the backend exposes authorization
// endpoints for
var KnownProviders = []string{"google", "microsoft"}

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if err := resolveSecrets(&config); err != nil {
		return Config{}, fmt.Errorf("resolving config secrets: %w", err)
	}

	applyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateRawConfig rejects secrets committed as literal strings before any
// environment resolution happens
func validateRawConfig(rawConfig map[string]any) error {
	front, ok := rawConfig["front"].(map[string]any)
	if !ok {
		return fmt.Errorf("front section is required")
	}

	if auth, ok := front["auth"].(map[string]any); ok {
		for _, name := range []string{"encryptionKey", "signingKey"} {
			value, exists := auth[name]
			if !exists {
				continue
			}
			if _, isString := value.(string); isString {
				return fmt.Errorf("%s must use environment variable reference for security", name)
			}
			if refMap, isMap := value.(map[string]any); isMap {
				if _, hasEnv := refMap["$env"]; !hasEnv {
					return fmt.Errorf("%s must use {\"$env\": \"VAR_NAME\"} format", name)
				}
			}
		}
	}

	if admin, ok := front["admin"].(map[string]any); ok {
		if value, exists := admin["password"]; exists {
			if _, isString := value.(string); isString {
				return fmt.Errorf("admin.password must use environment variable reference for security")
			}
		}
	}

	return nil
}

// resolveSecrets turns raw $env references into computed Secret fields
func resolveSecrets(config *Config) error {
	if auth := config.Front.Auth; auth != nil {
		encryptionKey, err := ParseConfigValue(auth.EncryptionKeyRaw)
		if err != nil {
			return fmt.Errorf("encryptionKey: %w", err)
		}
		auth.EncryptionKey = Secret(encryptionKey)

		signingKey, err := ParseConfigValue(auth.SigningKeyRaw)
		if err != nil {
			return fmt.Errorf("signingKey: %w", err)
		}
		auth.SigningKey = Secret(signingKey)
	}

	if admin := config.Front.Admin; admin != nil && admin.Enabled {
		password, err := ParseConfigValue(admin.PasswordRaw)
		if err != nil {
			return fmt.Errorf("admin.password: %w", err)
		}
		if password != "" {
			hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hashing admin password: %w", err)
			}
			admin.HashedPassword = Secret(hashed)
		}
	}

	return nil
}

func applyDefaults(config *Config) {
	front := &config.Front
	if front.Name == "" {
		front.Name = "minutes-front"
	}
	if front.API.Timeout == 0 {
		front.API.Timeout = Duration(DefaultAPITimeout)
	}
	if front.Auth != nil && front.Auth.CookieTTL == 0 {
		front.Auth.CookieTTL = Duration(DefaultCookieTTL)
	}
	if front.Storage == nil {
		front.Storage = &StorageConfig{Kind: StorageKindMemory}
	}
	if front.Sessions == nil {
		front.Sessions = &SessionConfig{}
	}
	if front.Sessions.TTL == 0 {
		front.Sessions.TTL = Duration(DefaultSessionTTL)
	}
	if front.Sessions.CleanupInterval == 0 {
		front.Sessions.CleanupInterval = Duration(DefaultCleanupInterval)
	}
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	front := &config.Front

	if front.BaseURL == "" {
		return fmt.Errorf("front.baseURL is required")
	}
	if _, err := url.Parse(front.BaseURL); err != nil {
		return fmt.Errorf("front.baseURL is not a valid URL: %w", err)
	}
	if front.Addr == "" {
		return fmt.Errorf("front.addr is required")
	}
	if front.API.BaseURL == "" {
		return fmt.Errorf("front.api.baseURL is required")
	}
	if _, err := url.Parse(front.API.BaseURL); err != nil {
		return fmt.Errorf("front.api.baseURL is not a valid URL: %w", err)
	}

	if front.Auth == nil {
		return fmt.Errorf("front.auth is required")
	}
	if err := validateAuthConfig(front.Auth); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}

	if storage := front.Storage; storage != nil {
		switch storage.Kind {
		case StorageKindMemory, "":
		case StorageKindRedis:
			if storage.RedisAddr == "" {
				return fmt.Errorf("front.storage.redisAddr is required when using redis storage")
			}
		case StorageKindFirestore:
			if storage.GCPProject == "" {
				return fmt.Errorf("front.storage.gcpProject is required when using firestore storage")
			}
		default:
			return fmt.Errorf("front.storage.kind must be memory, redis, or firestore (got %q)", storage.Kind)
		}
	}

	if sessions := front.Sessions; sessions != nil {
		if sessions.TTL < 0 {
			return fmt.Errorf("front.sessions.ttl cannot be negative")
		}
		if sessions.CleanupInterval < 0 {
			return fmt.Errorf("front.sessions.cleanupInterval cannot be negative")
		}
		if sessions.TTL > 0 && sessions.CleanupInterval > sessions.TTL {
			log.LogWarn("Session cleanup interval is greater than session TTL")
		}
	}

	if admin := front.Admin; admin != nil && admin.Enabled {
		if admin.Username == "" {
			return fmt.Errorf("front.admin.username is required when admin is enabled")
		}
		if admin.HashedPassword == "" {
			return fmt.Errorf("front.admin.password is required when admin is enabled")
		}
	}

	return nil
}

func validateAuthConfig(auth *AuthConfig) error {
	if len(auth.Providers) == 0 {
		return fmt.Errorf("at least one provider is required")
	}
	for _, provider := range auth.Providers {
		if !slices.Contains(KnownProviders, provider) {
			return fmt.Errorf("unknown provider %q (known: %v)", provider, KnownProviders)
		}
	}
	if len(auth.EncryptionKey) != 32 {
		return fmt.Errorf("encryptionKey must be exactly 32 characters (got %d). Generate with: openssl rand -base64 32 | head -c 32", len(auth.EncryptionKey))
	}
	if len(auth.SigningKey) < 32 {
		return fmt.Errorf("signingKey must be at least 32 characters (got %d). Generate with: openssl rand -base64 32", len(auth.SigningKey))
	}
	return nil
}
