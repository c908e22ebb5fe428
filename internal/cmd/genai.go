package cmd

import (
	"context"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signrelay/signrelay/internal/monitor"
	"github.com/signrelay/signrelay/internal/observability"
	"github.com/signrelay/signrelay/internal/server"
	"github.com/signrelay/signrelay/internal/server/handlers"
)

var genaiCmd = &cobra.Command{
	Use:   "genai",
	Short: "Run the generative backend as a standalone service",
	Long: `Run the generative connector behind its own HTTP API so that one or more
orchestrators can use it with responder.mode=remote.

Routes: POST /respond, POST /process_sentence, GET /status,
POST /trigger_check, GET /test, plus health, version and metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		initServerObservability(cfg, "genai")
		log := observability.ServerLogger

		connector, err := newConnector(cfg)
		if err != nil {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Failed to build generative connector", err)
		}

		handlers.GetHealthManager().RegisterChecker("generative_backend", handlers.HealthCheckerFunc(func(ctx context.Context) error {
			if err := connector.Probe(ctx, ""); err != nil {
				return &monitor.UnreachableError{Service: monitor.ServiceGenerative, Detail: err.Error()}
			}
			return nil
		}))

		srv := server.New(cfg.GenAI.Host, cfg.GenAI.Port, server.BackendRoutes(handlers.NewBackend(connector)))
		ln, err := srv.Listen()
		if err != nil {
			ExitWithCode(log, foundry.ExitFailure, "Failed to bind generative backend listener", err)
		}

		registerShutdown(cfg, func(ctx context.Context) error {
			connector.Shutdown()
			return nil
		}, srv)

		signals.OnReload(func(ctx context.Context) error {
			log.Info("Received SIGHUP: triggering immediate backend check")
			connector.TriggerImmediateCheck()
			return nil
		})

		log.Info("Generative backend ready",
			zap.String("addr", ln.Addr().String()),
			zap.String("provider", connector.Provider()),
			zap.String("model", connector.Model()))

		return runUntilSignal(cmd.Context(), srv, ln, cfg.Server.ShutdownTimeout)
	},
}

func init() {
	rootCmd.AddCommand(genaiCmd)

	genaiCmd.Flags().String("host", "", "listen host (default from genai.host)")
	genaiCmd.Flags().IntP("port", "p", 0, "listen port (default from genai.port)")
	genaiCmd.Flags().String("model", "", "model to bind at startup")

	bindFlag(genaiCmd, "genai.host", "host")
	bindFlag(genaiCmd, "genai.port", "port")
	bindFlag(genaiCmd, "ailink.model", "model")
}
