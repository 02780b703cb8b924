package config

import (
	"encoding/json"
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

// ServerConfig is the dashboard's own HTTP server
type ServerConfig struct {
	// Addr is the listen address, e.g. ":3000"
	Addr string `json:"addr" env:"CMS_FRONT_ADDR,default=:3000"`
	// BaseURL is the public URL of the dashboard. Its scheme decides whether
	// the auth cookie is Secure.
	BaseURL         string        `json:"baseURL" env:"CMS_FRONT_BASE_URL,default=http://localhost:3000"`
	Name            string        `json:"name" env:"CMS_FRONT_NAME,default=cms-front"`
	ReadTimeout     time.Duration `json:"-" env:"CMS_FRONT_READ_TIMEOUT,default=30s"`
	WriteTimeout    time.Duration `json:"-" env:"CMS_FRONT_WRITE_TIMEOUT,default=30s"`
	ShutdownTimeout time.Duration `json:"-" env:"CMS_FRONT_SHUTDOWN_TIMEOUT,default=10s"`
	// CSRFKey signs the tokens embedded in dashboard forms. When empty a
	// random key is generated at startup.
	CSRFKey Secret `json:"csrfKey" env:"CMS_FRONT_CSRF_KEY"`
}

// APIConfig points at the CMS REST API
type APIConfig struct {
	BaseURL string        `json:"baseURL" env:"CMS_API_BASE_URL"`
	Timeout time.Duration `json:"-" env:"CMS_API_TIMEOUT,default=30s"`
}

// RoutesConfig names the paths the route guard and session hook redirect
// between
type RoutesConfig struct {
	LoginPath     string `json:"loginPath" env:"CMS_FRONT_LOGIN_PATH,default=/login"`
	LandingPath   string `json:"landingPath" env:"CMS_FRONT_LANDING_PATH,default=/auth/success"`
	DashboardPath string `json:"dashboardPath" env:"CMS_FRONT_DASHBOARD_PATH,default=/dashboard"`
	// ScrubStaleCookie expires an empty auth cookie on guard redirects
	ScrubStaleCookie bool `json:"scrubStaleCookie" env:"CMS_FRONT_SCRUB_STALE_COOKIE,default=true"`
}

// MetricsConfig controls the /metrics endpoint
type MetricsConfig struct {
	Enabled  bool   `json:"enabled" env:"CMS_FRONT_METRICS_ENABLED,default=true"`
	Username string `json:"username" env:"CMS_FRONT_METRICS_USER"`
	// PasswordHash is a bcrypt hash; see `cms-front hash-password`
	PasswordHash Secret `json:"passwordHash" env:"CMS_FRONT_METRICS_PASSWORD_HASH"`
}

// RequiresAuth reports whether /metrics sits behind basic auth
func (m MetricsConfig) RequiresAuth() bool {
	return m.Username != "" && m.PasswordHash != ""
}

// Config represents the config structure with resolved values
type Config struct {
	Server  ServerConfig  `json:"server"`
	API     APIConfig     `json:"api"`
	Routes  RoutesConfig  `json:"routes"`
	Metrics MetricsConfig `json:"metrics"`
}

// Default returns a Config with every default applied and no API base URL
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":3000",
			BaseURL:         "http://localhost:3000",
			Name:            "cms-front",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		API: APIConfig{
			Timeout: 30 * time.Second,
		},
		Routes: RoutesConfig{
			LoginPath:        "/login",
			LandingPath:      "/auth/success",
			DashboardPath:    "/dashboard",
			ScrubStaleCookie: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}
