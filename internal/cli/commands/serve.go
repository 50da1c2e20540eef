package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapboard/internal/cli/config"
	"github.com/leapstack-labs/leapboard/internal/dashboards"
	"github.com/leapstack-labs/leapboard/internal/metrics"
	"github.com/leapstack-labs/leapboard/internal/provider"
	"github.com/leapstack-labs/leapboard/internal/route"
	"github.com/leapstack-labs/leapboard/internal/ui"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard web server",
		Long: `Start the web UI and JSON API. Dashboards are stored in the local state
database, or in a remote leapboard when --backend is set.`,
		Example: `  leapboard serve --port 8766
  leapboard serve --provisioning-dir ./dashboards --watch`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("host", "", "Interface to listen on")
	cmd.Flags().Int("port", config.DefaultPort, "Port to listen on")
	cmd.Flags().String("password", "", "Password required to sign in")
	cmd.Flags().String("provisioning-dir", "", "Directory of dashboard JSON files to import")
	cmd.Flags().Bool("watch", false, "Keep importing changes in the provisioning directory")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.GetConfig(cmd.Context())
	logger := config.GetLogger(cmd.Context())

	store, cleanup, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	m := metrics.New()
	cache := newCache(cfg, m.Query, logger)
	svc := dashboards.NewService(store, cache, m.Dashboards, logger)
	registry := provider.NewRegistry(route.NewMatcher(), svc, cache,
		provider.WithMetrics(m.Dashboards),
		provider.WithLogger(logger),
	)

	srv := ui.NewServer(ui.Config{
		Service:         svc,
		Registry:        registry,
		Metrics:         m,
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		SessionSecret:   cfg.Server.SessionSecret,
		Password:        cfg.Server.Password,
		APIToken:        cfg.Server.APIToken,
		TitleDebounce:   cfg.Server.TitleDebounce,
		ProvisioningDir: cfg.Provisioning.Dir,
		Watch:           cfg.Provisioning.Watch,
		SweepInterval:   cfg.Server.SweepInterval,
		SessionIdle:     cfg.Server.SessionIdle,
		Logger:          logger,
	})

	if cfg.Server.SessionSecret == config.DefaultSessionSecret {
		logger.Warn("using the built-in session secret; set server.session_secret")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Serve(ctx)
}

