package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
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

func (v *ValidationResult) addError(path, format string, args ...any) {
	v.Errors = append(v.Errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *ValidationResult) addWarning(path, format string, args ...any) {
	v.Warnings = append(v.Warnings, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

var bashStyleRegex = regexp.MustCompile(`\$\{?([A-Z_][A-Z0-9_]*)\}?`)

// ValidateFile validates a config file structure without requiring env vars
func ValidateFile(path string) (*ValidationResult, error) {
	result := &ValidationResult{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.addError("", "invalid JSON: %v", err)
		return result, nil
	}

	checkBashStyleSyntax(rawConfig, "", result)

	version, ok := rawConfig["version"].(string)
	if !ok {
		result.addError("version", "version field is required. Hint: Add \"version\": %q", Version)
	} else if !strings.HasPrefix(version, Version) {
		result.addError("version", "unsupported version '%s' - use '%s'", version, Version)
	}

	if _, ok := rawConfig["server"].(map[string]any); !ok {
		result.addError("server", "server field is required and must be an object")
	}

	api, ok := rawConfig["api"].(map[string]any)
	if !ok {
		result.addError("api", "api field is required and must be an object")
	} else if _, ok := api["baseURL"]; !ok {
		result.addError("api.baseURL", "baseURL is required. Example: \"https://cms-api.example.com\"")
	}

	for _, f := range secretFields {
		section, ok := rawConfig[f.section].(map[string]any)
		if !ok {
			continue
		}
		if value, ok := section[f.name]; ok {
			if verr := validateEnvVarReference(value, f.name, f.section+"."+f.name); verr != nil {
				result.Errors = append(result.Errors, *verr)
			}
		}
	}

	if metrics, ok := rawConfig["metrics"].(map[string]any); ok {
		if _, ok := metrics["passwordHash"]; ok {
			if _, ok := metrics["username"]; !ok {
				result.addError("metrics.username", "username is required when passwordHash is set")
			}
		}
	}

	return result, nil
}

// Validate checks a resolved Config
func Validate(config *Config) *ValidationResult {
	result := &ValidationResult{}

	if config.Server.Addr == "" {
		result.addError("server.addr", "addr is required. Example: \":3000\"")
	}
	validateHTTPURL(config.Server.BaseURL, "server.baseURL", result)
	validateHTTPURL(config.API.BaseURL, "api.baseURL", result)

	if u, err := url.Parse(config.Server.BaseURL); err == nil && u.Scheme == "http" &&
		u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1" {
		result.addWarning("server.baseURL", "dashboard is served over plain http; the auth cookie will not be Secure")
	}

	switch {
	case config.Server.CSRFKey == "":
		result.addWarning("server.csrfKey", "no CSRF key configured; a random key is generated and forms break across restarts")
	case len(config.Server.CSRFKey) < 32:
		result.addError("server.csrfKey", "must be at least 32 characters (got %d). Generate with: openssl rand -base64 32", len(config.Server.CSRFKey))
	}

	routes := []struct {
		path  string
		value string
	}{
		{"routes.loginPath", config.Routes.LoginPath},
		{"routes.landingPath", config.Routes.LandingPath},
		{"routes.dashboardPath", config.Routes.DashboardPath},
	}
	for _, r := range routes {
		if !strings.HasPrefix(r.value, "/") {
			result.addError(r.path, "must be an absolute path starting with '/', got %q", r.value)
		}
	}
	if config.Routes.LoginPath != "" && config.Routes.LoginPath == config.Routes.DashboardPath {
		result.addError("routes", "loginPath and dashboardPath must differ")
	}

	timeouts := []struct {
		path string
		d    time.Duration
	}{
		{"server.readTimeout", config.Server.ReadTimeout},
		{"server.writeTimeout", config.Server.WriteTimeout},
		{"server.shutdownTimeout", config.Server.ShutdownTimeout},
		{"api.timeout", config.API.Timeout},
	}
	for _, t := range timeouts {
		if t.d < 0 {
			result.addError(t.path, "cannot be negative")
		}
	}

	m := config.Metrics
	switch {
	case (m.Username == "") != (m.PasswordHash == ""):
		result.addError("metrics", "username and passwordHash must be set together")
	case m.PasswordHash != "":
		if _, err := bcrypt.Cost([]byte(m.PasswordHash)); err != nil {
			result.addError("metrics.passwordHash", "must be a bcrypt hash. Generate one with: cms-front hash-password")
		}
	case m.Enabled:
		result.addWarning("metrics", "/metrics is enabled without basic auth")
	}

	return result
}

func validateHTTPURL(raw, path string, result *ValidationResult) {
	if raw == "" {
		result.addError(path, "is required")
		return
	}
	u, err := url.Parse(raw)
	if err != nil {
		result.addError(path, "invalid URL: %v", err)
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		result.addError(path, "must be an http or https URL, got %q", raw)
		return
	}
	if u.Host == "" {
		result.addError(path, "must include a host, got %q", raw)
	}
}

// validateEnvVarReference validates that a field uses proper env var reference format
func validateEnvVarReference(value any, fieldName, path string) *ValidationError {
	switch v := value.(type) {
	case string:
		if matches := bashStyleRegex.FindStringSubmatch(v); len(matches) > 1 {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", v, matches[1]),
			}
		}
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must use environment variable reference {\"$env\": \"YOUR_ENV_VAR\"} instead of plain text. Hint: This keeps secrets out of config files", fieldName),
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; !hasEnv {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("%s must use {\"$env\": \"YOUR_ENV_VAR\"} format", fieldName),
			}
		}
		return nil
	default:
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must be an environment variable reference {\"$env\": \"YOUR_ENV_VAR\"}, not %T", fieldName, value),
		}
	}
}

// checkBashStyleSyntax recursively checks for bash-style env var syntax
func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		for _, match := range bashStyleRegex.FindAllString(v, -1) {
			result.addWarning(path, "found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", match, strings.Trim(match, "${}"))
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; hasEnv {
			return
		}
		for key, val := range v {
			newPath := key
			if path != "" {
				newPath = path + "." + key
			}
			checkBashStyleSyntax(val, newPath, result)
		}
	case []any:
		for i, item := range v {
			checkBashStyleSyntax(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}
