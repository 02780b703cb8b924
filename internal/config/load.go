package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dgellow/cms-front/internal/log"
	"github.com/joeshaw/envdecode"
)

// Version is the config file format accepted by Load
const Version = "v1"

// Load loads and processes the config with immediate env var resolution.
// Values missing from the file keep their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if !strings.HasPrefix(version, Version) {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// FromEnv builds the config from environment variables alone. Defaults come
// from the struct tags.
func FromEnv() (Config, error) {
	var config Config
	if err := envdecode.Decode(&config); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decoding environment: %w", err)
	}

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// secretFields must come from the environment, never the file itself
var secretFields = []struct{ section, name string }{
	{"server", "csrfKey"},
	{"metrics", "passwordHash"},
}

// validateRawConfig checks the file before env resolution
func validateRawConfig(rawConfig map[string]any) error {
	for _, f := range secretFields {
		section, ok := rawConfig[f.section].(map[string]any)
		if !ok {
			continue
		}
		value, exists := section[f.name]
		if !exists {
			continue
		}
		if verr := validateEnvVarReference(value, f.name, f.section+"."+f.name); verr != nil {
			return errors.New(verr.Message)
		}
	}
	return nil
}

// ValidateConfig validates the resolved configuration. Warnings are logged,
// the first error is returned.
func ValidateConfig(config *Config) error {
	result := Validate(config)
	for _, w := range result.Warnings {
		log.LogWarnWithFields("config", w.Message, map[string]any{"path": w.Path})
	}
	if !result.IsValid() {
		first := result.Errors[0]
		if first.Path == "" {
			return errors.New(first.Message)
		}
		return fmt.Errorf("%s: %s", first.Path, first.Message)
	}
	return nil
}
