// Package ui provides the leapboard web server.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	dashboardsvc "github.com/leapstack-labs/leapboard/internal/dashboards"
	"github.com/leapstack-labs/leapboard/internal/metrics"
	"github.com/leapstack-labs/leapboard/internal/provider"
	"github.com/leapstack-labs/leapboard/internal/provisioning"
	"github.com/leapstack-labs/leapboard/internal/ui/notifier"
	"github.com/leapstack-labs/leapboard/internal/ui/router"
)

// Defaults applied by NewServer.
const (
	DefaultSweepInterval = time.Minute
	DefaultSessionIdle   = 30 * time.Minute
)

// Server is the main UI server.
type Server struct {
	addr            string
	handler         http.Handler
	stop            func()
	registry        *provider.Registry
	notifier        *notifier.Notifier
	service         *dashboardsvc.Service
	provisioningDir string
	watch           bool
	sweepInterval   time.Duration
	sessionIdle     time.Duration
	logger          *slog.Logger
}

// Config holds configuration for the UI server.
type Config struct {
	Service  *dashboardsvc.Service
	Registry *provider.Registry
	Metrics  *metrics.Metrics

	Host          string
	Port          int
	SessionSecret string
	// Password guards sign in. Empty lets any user name sign in.
	Password      string
	// APIToken is the bearer token of the JSON API. Empty falls back to
	// Password; both empty leaves the API open.
	APIToken      string
	TitleDebounce time.Duration

	// ProvisioningDir is imported at startup when set; Watch keeps
	// following it.
	ProvisioningDir string
	Watch           bool

	SweepInterval time.Duration
	SessionIdle   time.Duration

	Logger *slog.Logger
}

// NewServer creates a new UI server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.SessionIdle <= 0 {
		cfg.SessionIdle = DefaultSessionIdle
	}

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.MaxAge(86400 * 30) // 30 days
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	s := &Server{
		addr:            net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		registry:        cfg.Registry,
		notifier:        notifier.New(),
		service:         cfg.Service,
		provisioningDir: cfg.ProvisioningDir,
		watch:           cfg.Watch,
		sweepInterval:   cfg.SweepInterval,
		sessionIdle:     cfg.SessionIdle,
		logger:          logger,
	}

	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)
	s.stop = router.SetupRoutes(r, router.Config{
		Service:       cfg.Service,
		Registry:      cfg.Registry,
		Notifier:      s.notifier,
		Sessions:      sessionStore,
		Metrics:       cfg.Metrics,
		Password:      cfg.Password,
		APIToken:      cfg.APIToken,
		TitleDebounce: cfg.TitleDebounce,
		Logger:        logger,
	})
	s.handler = r

	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Notifier returns the server's notifier for SSE updates.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// Serve starts the UI server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until the context is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting UI server", "addr", "http://"+ln.Addr().String())
	defer s.stop()

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.provisioningDir != "" {
		prov := provisioning.New(provisioning.Config{
			Dir:      s.provisioningDir,
			Service:  s.service,
			OnChange: s.notifier.BroadcastAll,
			Logger:   s.logger,
		})
		n, err := prov.LoadDir(ctx)
		if err != nil {
			return fmt.Errorf("failed to load provisioned dashboards: %w", err)
		}
		s.logger.Info("loaded provisioned dashboards", "dir", s.provisioningDir, "count", n)

		if s.watch {
			eg.Go(func() error {
				return prov.Watch(egctx)
			})
		}
	}

	eg.Go(func() error {
		s.sweep(egctx)
		return nil
	})

	// Start HTTP server
	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down UI server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// sweep drops providers of sessions idle for longer than sessionIdle.
func (s *Server) sweep(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.registry.Sweep(s.sessionIdle); n > 0 {
				s.logger.Debug("released idle dashboard providers", "count", n)
			}
		}
	}
}
