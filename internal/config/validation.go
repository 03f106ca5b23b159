package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

var bashStyleVar = regexp.MustCompile(`\$\{?[A-Z_][A-Z0-9_]*\}?`)

// ValidateFile validates a config file structure without requiring env vars
// to be set. Used by the -validate flag so CI can lint configs without the
// production environment.
func ValidateFile(path string) (*ValidationResult, error) {
	result := &ValidationResult{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Message: fmt.Sprintf("invalid JSON: %v", err),
		})
		return result, nil
	}

	checkBashStyleSyntax(rawConfig, "", result)

	front, ok := rawConfig["front"].(map[string]any)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "front",
			Message: "front field is required and must be an object",
		})
		return result, nil
	}

	requireString := func(key string) {
		if _, ok := front[key].(string); !ok {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "front." + key,
				Message: key + " is required and must be a string",
			})
		}
	}
	requireString("baseURL")
	requireString("addr")

	api, ok := front["api"].(map[string]any)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "front.api",
			Message: "api field is required and must be an object",
		})
	} else if _, ok := api["baseURL"].(string); !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "front.api.baseURL",
			Message: "baseURL is required and must be a string",
		})
	}

	auth, ok := front["auth"].(map[string]any)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "front.auth",
			Message: "auth field is required and must be an object",
		})
	} else {
		if providers, ok := auth["providers"].([]any); !ok || len(providers) == 0 {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "front.auth.providers",
				Message: "at least one OAuth provider is required",
			})
		}
		for _, name := range []string{"encryptionKey", "signingKey"} {
			value, exists := auth[name]
			if !exists {
				result.Errors = append(result.Errors, ValidationError{
					Path:    "front.auth." + name,
					Message: name + " is required. Hint: use {\"$env\": \"VAR_NAME\"}",
				})
				continue
			}
			if _, isString := value.(string); isString {
				result.Errors = append(result.Errors, ValidationError{
					Path:    "front.auth." + name,
					Message: name + " must use an environment variable reference, not a literal value",
				})
			}
		}
	}

	if storage, ok := front["storage"].(map[string]any); ok {
		kind, _ := storage["kind"].(string)
		switch StorageKind(kind) {
		case StorageKindMemory, "":
		case StorageKindRedis:
			if _, ok := storage["redisAddr"].(string); !ok {
				result.Errors = append(result.Errors, ValidationError{
					Path:    "front.storage.redisAddr",
					Message: "redisAddr is required for redis storage",
				})
			}
		case StorageKindFirestore:
			if _, ok := storage["gcpProject"].(string); !ok {
				result.Errors = append(result.Errors, ValidationError{
					Path:    "front.storage.gcpProject",
					Message: "gcpProject is required for firestore storage",
				})
			}
		default:
			result.Errors = append(result.Errors, ValidationError{
				Path:    "front.storage.kind",
				Message: fmt.Sprintf("unknown storage kind %q (memory, redis, or firestore)", kind),
			})
		}
	} else {
		result.Warnings = append(result.Warnings, ValidationError{
			Path:    "front.storage",
			Message: "no storage configured - falling back to in-memory sessions (lost on restart)",
		})
	}

	return result, nil
}

// checkBashStyleSyntax warns about $VAR-looking strings that would be
// treated as literals rather than resolved
func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		if bashStyleVar.MatchString(v) && !strings.Contains(path, "$env") {
			result.Warnings = append(result.Warnings, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("value %q looks like a shell variable - use {\"$env\": \"VAR_NAME\"} if a reference was intended", v),
			})
		}
	case map[string]any:
		for key, item := range v {
			childPath := key
			if path != "" {
				childPath = path + "." + key
			}
			checkBashStyleSyntax(item, childPath, result)
		}
	case []any:
		for i, item := range v {
			checkBashStyleSyntax(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}
