package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signrelay/signrelay/internal/config"
	"github.com/signrelay/signrelay/internal/monitor"
	"github.com/signrelay/signrelay/internal/observability"
	"github.com/signrelay/signrelay/internal/output"
)

var (
	statusFormat    string
	statusSkipModel bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe every dependent service once",
	Long: `Probe the perception service, the UI service and the generative backend
with the configured candidates and print which endpoint each would use.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(statusFormat)
		if err != nil {
			return err
		}
		cfg := loadConfig()

		report, err := buildStatusReport(cmd.Context(), cfg, !statusSkipModel)
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatReport(report)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return nil
	},
}

func buildStatusReport(ctx context.Context, cfg *config.Config, withGenerative bool) (*output.Report, error) {
	services := dependencyServices(cfg)

	var (
		mon *monitor.Monitor
		gen *generative
	)
	if withGenerative {
		g, err := newGenerative(cfg, func() string { return mon.Resolve(monitor.ServiceGenerative) })
		if err != nil {
			return nil, err
		}
		defer g.Shutdown()
		gen = g
		services = append(services, g.service)
	}

	mon = monitor.New(monitorConfig(cfg), services, nil)
	snapshot := mon.Refresh(ctx)

	report := &output.Report{
		CheckedAt: time.Now(),
		Services:  mon.Endpoints(),
	}
	if gen != nil && gen.connector != nil {
		state := gen.connector.State()
		report.Generative = &output.GenerativeStatus{
			Provider:   gen.connector.Provider(),
			Model:      gen.connector.Model(),
			Available:  snapshot[monitor.ServiceGenerative],
			InCooldown: state.InCooldown(time.Now()),
			RetryAfter: state.RetryAfter,
			LastOK:     state.LastSuccessAt,
		}
	}

	observability.Logger().Debug("Status check finished", zap.Int("services", len(report.Services)))
	return report, nil
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusFormat, "output", "o", "table", "output format: table, json or markdown")
	statusCmd.Flags().BoolVar(&statusSkipModel, "skip-generative", false, "do not probe the generative backend")
}
