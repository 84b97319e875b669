package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/relayforge/claude-gateway/internal/config"
	"github.com/relayforge/claude-gateway/internal/gateway"
	"github.com/relayforge/claude-gateway/internal/metrics"
	"github.com/relayforge/claude-gateway/internal/provider"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setLogLevel(cfg.LogLevel)

	providers, err := provider.NewManager(cfg)
	if err != nil {
		return err
	}

	var tracker metrics.Tracker
	var store *metrics.Store
	collector := metrics.NewCollector()
	if cfg.Metrics.Enabled {
		store, err = metrics.OpenStore(cfg.Metrics.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		tracker = store
	}

	orch := gateway.NewOrchestrator(providers, tracker, collector)
	handler := gateway.NewHandler(orch, cfg.Runtime(), collector)
	srv := gateway.NewServer(cfg, handler, collector)

	color.Green("%s v%s listening on %s", AppName, Version, srv.Addr())
	for name := range cfg.Providers {
		p, _ := providers.Get(name)
		log.Info().Str("provider", name).Str("base_url", p.BaseURL).
			Bool("passthrough", p.Passthrough).Bool("sanitize_tools", p.SanitizeToolNames).
			Msg("provider configured")
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
