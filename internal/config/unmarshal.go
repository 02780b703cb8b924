package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ParseConfigValue parses a JSON value that is either a plain string or an
// {"$env": "NAME"} reference. References are resolved immediately.
//
// The explicit JSON syntax is used instead of $VAR substitution so that
// config files survive being handled by shell scripts unchanged.
func ParseConfigValue(raw json.RawMessage) (string, error) {
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

// parseInto resolves raw into dst when the field was present
func parseInto(raw json.RawMessage, name string, dst *string) error {
	if raw == nil {
		return nil
	}
	v, err := ParseConfigValue(raw)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = v
	return nil
}

func parseDuration(raw string, name string, dst *time.Duration) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = d
	return nil
}

// UnmarshalJSON implements custom unmarshaling for ServerConfig. Fields that
// are absent keep their current value, so defaults survive.
func (s *ServerConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		Addr            json.RawMessage `json:"addr"`
		BaseURL         json.RawMessage `json:"baseURL"`
		Name            string          `json:"name"`
		ReadTimeout     string          `json:"readTimeout"`
		WriteTimeout    string          `json:"writeTimeout"`
		ShutdownTimeout string          `json:"shutdownTimeout"`
		CSRFKey         json.RawMessage `json:"csrfKey"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.Name != "" {
		s.Name = raw.Name
	}
	if err := parseInto(raw.Addr, "addr", &s.Addr); err != nil {
		return err
	}
	if err := parseInto(raw.BaseURL, "baseURL", &s.BaseURL); err != nil {
		return err
	}
	var csrfKey string
	if err := parseInto(raw.CSRFKey, "csrfKey", &csrfKey); err != nil {
		return err
	}
	if csrfKey != "" {
		s.CSRFKey = Secret(csrfKey)
	}
	if err := parseDuration(raw.ReadTimeout, "readTimeout", &s.ReadTimeout); err != nil {
		return err
	}
	if err := parseDuration(raw.WriteTimeout, "writeTimeout", &s.WriteTimeout); err != nil {
		return err
	}
	return parseDuration(raw.ShutdownTimeout, "shutdownTimeout", &s.ShutdownTimeout)
}

// UnmarshalJSON implements custom unmarshaling for APIConfig
func (a *APIConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		BaseURL json.RawMessage `json:"baseURL"`
		Timeout string          `json:"timeout"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if err := parseInto(raw.BaseURL, "baseURL", &a.BaseURL); err != nil {
		return err
	}
	return parseDuration(raw.Timeout, "timeout", &a.Timeout)
}

// UnmarshalJSON implements custom unmarshaling for MetricsConfig
func (m *MetricsConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		Enabled      *bool           `json:"enabled"`
		Username     json.RawMessage `json:"username"`
		PasswordHash json.RawMessage `json:"passwordHash"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.Enabled != nil {
		m.Enabled = *raw.Enabled
	}
	if err := parseInto(raw.Username, "username", &m.Username); err != nil {
		return err
	}
	var hash string
	if err := parseInto(raw.PasswordHash, "passwordHash", &hash); err != nil {
		return err
	}
	if hash != "" {
		m.PasswordHash = Secret(hash)
	}
	return nil
}
