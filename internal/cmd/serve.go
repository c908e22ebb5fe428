package cmd

import (
	"context"
	"net"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/signrelay/signrelay/internal/config"
	errwrap "github.com/signrelay/signrelay/internal/errors"
	"github.com/signrelay/signrelay/internal/display"
	"github.com/signrelay/signrelay/internal/events"
	"github.com/signrelay/signrelay/internal/httpclient"
	"github.com/signrelay/signrelay/internal/monitor"
	"github.com/signrelay/signrelay/internal/observability"
	"github.com/signrelay/signrelay/internal/orchestrator"
	"github.com/signrelay/signrelay/internal/perception"
	"github.com/signrelay/signrelay/internal/sentence"
	"github.com/signrelay/signrelay/internal/server"
	"github.com/signrelay/signrelay/internal/server/handlers"
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the conversation orchestrator",
	Long: `Start the orchestrator: sentence synchronizer, dependency monitor and
the HTTP/WebSocket facade.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-read the config file and refresh dependency status`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		initServerObservability(cfg, "orchestrator")
		log := observability.ServerLogger

		hub := events.New(events.DefaultBuffer)

		var mon *monitor.Monitor
		gen, err := newGenerative(cfg, func() string { return mon.Resolve(monitor.ServiceGenerative) })
		if err != nil {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Failed to build generative responder", err)
		}
		services := append(dependencyServices(cfg), gen.service)
		mon = monitor.New(monitorConfig(cfg), services, events.StatusPublisher(hub))

		perceptionClient := perception.New(
			mon.Resolver(monitor.ServicePerception),
			cfg.Perception.ClientID,
			httpclient.New(httpclient.Options{RetryMax: 1, Timeout: clientTimeout(cfg.Perception.Timeout, 3*time.Second)}),
		)
		synchronizer := sentence.New(sentence.Config{
			PollInterval:   cfg.Sync.PollInterval,
			QuietThreshold: cfg.Sync.QuietThreshold,
			StaleThreshold: cfg.Sync.StaleThreshold,
			FetchTimeout:   cfg.Sync.FetchTimeout,
		}, perceptionClient, events.SentencePublisher(hub))

		displayClient := display.New(
			mon.Resolver(monitor.ServiceUI),
			cfg.UI.DisplayPath, cfg.UI.SourceLang, cfg.UI.TargetLang,
			httpclient.New(httpclient.Options{RetryMax: 0, Timeout: clientTimeout(cfg.UI.Timeout, 5*time.Second)}),
		)
		conversation := orchestrator.New(synchronizer, gen.responder, displayClient, hub)

		facade := &handlers.Facade{
			Sentences:    synchronizer,
			Status:       mon,
			Conversation: conversation,
			Hub:          hub,
			Inbound:      handlers.EventsConfig{Rate: rate.Limit(cfg.Events.Rate), Burst: cfg.Events.Burst},
			Log:          log,
		}

		hm := handlers.GetHealthManager()
		for _, svc := range services {
			hm.RegisterChecker("dependency_"+svc.Name, monitor.Checker{Monitor: mon, Service: svc.Name})
		}

		srv := server.New(cfg.Server.Host, cfg.Server.Port, server.FacadeRoutes(facade))
		ln, err := srv.Listen()
		if err != nil {
			ExitWithCode(log, foundry.ExitFailure, "Failed to bind orchestrator listener", err)
		}

		mon.Start(cmd.Context())
		synchronizer.Start()

		registerShutdown(cfg, func(ctx context.Context) error {
			synchronizer.Shutdown()
			mon.Shutdown()
			gen.Shutdown()
			hub.Close()
			log.Info("Orchestrator components stopped")
			return nil
		}, srv)

		signals.OnReload(func(ctx context.Context) error {
			log.Info("Received SIGHUP: re-reading config and refreshing dependencies")
			if err := viper.ReadInConfig(); err != nil {
				log.Warn("Config reload skipped", zap.Error(err))
			}
			mon.TriggerRefresh()
			gen.TriggerCheck()
			return nil
		})

		log.Info("Orchestrator ready",
			zap.String("addr", ln.Addr().String()),
			zap.String("responder", cfg.Responder.Mode),
			zap.Strings("perception", cfg.Perception.Candidates),
			zap.Strings("ui", cfg.UI.Candidates))

		return runUntilSignal(cmd.Context(), srv, ln, cfg.Server.ShutdownTimeout)
	},
}

// initServerObservability swaps to the structured logger and starts metrics.
func initServerObservability(cfg *config.Config, component string) {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	observability.InitServerLogger(config.AppName, observability.LoggerOptions{
		Level:       level,
		Environment: cfg.Logging.Environment,
		Namespace:   config.AppName,
		Component:   component,
	})
	handlers.SetAppName(config.AppName, component)
	handlers.InitHealthManager(versionInfo.Version)

	if !cfg.Metrics.Enabled {
		observability.ServerLogger.Info("Metrics disabled")
		return
	}
	if err := observability.InitMetrics(config.AppName, cfg.Metrics.Port, config.AppName); err != nil {
		observability.ServerLogger.Warn("Failed to initialize metrics, continuing without them", zap.Error(err))
		return
	}
	handlers.GetHealthManager().RegisterChecker("telemetry", telemetryHealthChecker{})
}

// registerShutdown installs the shutdown handlers. They run LIFO: the HTTP
// server stops first, then components, then the logger is flushed.
func registerShutdown(cfg *config.Config, stopComponents func(context.Context) error, srv *server.Server) {
	log := observability.ServerLogger
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	signals.OnShutdown(func(ctx context.Context) error {
		log.Info("Flushing logger...")
		if err := log.Sync(); err != nil {
			// Sync errors are often benign (stdout/stderr already closed)
			log.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})

	signals.OnShutdown(stopComponents)

	signals.OnShutdown(func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errwrap.WrapInternal(ctx, err, "server shutdown failed")
		}
		log.Info("HTTP server stopped gracefully")
		return nil
	})

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		log.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}
}

// runUntilSignal serves on ln and listens for signals until one of them ends.
// When the server closes because a shutdown handler stopped it, the remaining
// handlers get up to grace to finish.
func runUntilSignal(ctx context.Context, srv *server.Server, ln net.Listener, grace time.Duration) error {
	if grace <= 0 {
		grace = 10 * time.Second
	}
	serveErr := make(chan error, 1)
	listenErr := make(chan error, 1)

	go func() { serveErr <- srv.Serve(ln) }()
	go func() { listenErr <- signals.Listen(ctx) }()

	select {
	case err := <-serveErr:
		if err != nil {
			return errwrap.WrapInternal(ctx, err, "server error")
		}
		select {
		case <-listenErr:
		case <-time.After(grace):
		}
		return nil
	case err := <-listenErr:
		if err != nil {
			observability.Logger().Error("Signal handler error", zap.Error(err))
			return errwrap.WrapInternal(ctx, err, "signal handling failed")
		}
		return nil
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "listen host (default from server.host)")
	serveCmd.Flags().IntP("port", "p", 0, "listen port (default from server.port)")
	serveCmd.Flags().String("responder", "", "responder mode: local or remote")

	bindFlag(serveCmd, "server.host", "host")
	bindFlag(serveCmd, "server.port", "port")
	bindFlag(serveCmd, "responder.mode", "responder")
}
