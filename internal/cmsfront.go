package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dgellow/cms-front/internal/config"
	"github.com/dgellow/cms-front/internal/crypto"
	"github.com/dgellow/cms-front/internal/log"
	"github.com/dgellow/cms-front/internal/metrics"
	"github.com/dgellow/cms-front/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// csrfTokenTTL bounds how long a rendered form stays submittable
const csrfTokenTTL = 2 * time.Hour

// CMSFront is the complete dashboard application
type CMSFront struct {
	config     config.Config
	httpServer *server.HTTPServer
}

// NewCMSFront builds the application with all dependencies wired
func NewCMSFront(ctx context.Context, cfg config.Config) (*CMSFront, error) {
	log.LogInfoWithFields("cmsfront", "Building dashboard", map[string]any{
		"baseURL":    cfg.Server.BaseURL,
		"apiBaseURL": cfg.API.BaseURL,
		"logLevel":   log.GetLogLevel(),
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	handlers, err := server.NewHandlers(server.HandlersConfig{
		BaseURL:       cfg.Server.BaseURL,
		APIBaseURL:    cfg.API.BaseURL,
		HTTPClient:    &http.Client{Timeout: cfg.API.Timeout},
		APIRequests:   m.APIRequests,
		LoginPath:     cfg.Routes.LoginPath,
		LandingPath:   cfg.Routes.LandingPath,
		DashboardPath: cfg.Routes.DashboardPath,
		CSRF:          csrfProtection(cfg.Server.CSRFKey),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build handlers: %w", err)
	}

	guard := server.NewGuardConfig(cfg.Routes.LoginPath, cfg.Routes.LandingPath, cfg.Routes.ScrubStaleCookie)
	guard.SecureCookie = strings.HasPrefix(cfg.Server.BaseURL, "https://")

	routerCfg := server.RouterConfig{
		Name:     cfg.Server.Name,
		Handlers: handlers,
		Guard:    guard,
		Metrics:  m,
	}
	if cfg.Metrics.Enabled {
		routerCfg.Gatherer = registry
		if cfg.Metrics.RequiresAuth() {
			routerCfg.MetricsUser = cfg.Metrics.Username
			routerCfg.MetricsPasswordHash = string(cfg.Metrics.PasswordHash)
		}
	}

	httpServer := server.NewHTTPServer(
		server.NewRouter(routerCfg),
		cfg.Server.Addr,
		server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
	)

	return &CMSFront{
		config:     cfg,
		httpServer: httpServer,
	}, nil
}

// csrfProtection returns nil without a configured key, so the handlers fall
// back to a per-process random key
func csrfProtection(key config.Secret) *crypto.CSRFProtection {
	if key == "" {
		log.LogWarnWithFields("cmsfront", "No CSRF key configured, forms will not survive a restart", nil)
		return nil
	}
	return crypto.NewCSRFProtection([]byte(key), csrfTokenTTL)
}

// Run serves until ctx is cancelled, SIGINT or SIGTERM arrives, or the server
// fails, then shuts down gracefully
func (c *CMSFront) Run(ctx context.Context) error {
	log.LogInfoWithFields("cmsfront", "Starting dashboard", map[string]any{
		"addr": c.config.Server.Addr,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.httpServer.Start(); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		reason := "shutdown requested"
		if err := context.Cause(gctx); err != nil && !errors.Is(err, context.Canceled) {
			reason = err.Error()
		}
		log.LogInfoWithFields("cmsfront", "Starting graceful shutdown", map[string]any{
			"reason":  reason,
			"timeout": c.config.Server.ShutdownTimeout.String(),
		})

		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.config.Server.ShutdownTimeout)
		defer cancel()
		return c.httpServer.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.LogErrorWithFields("cmsfront", "Dashboard stopped with error", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	log.LogInfoWithFields("cmsfront", "Application shutdown complete", nil)
	return nil
}
