package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signrelay/signrelay/internal/ailink"
	"github.com/signrelay/signrelay/internal/observability"
	"github.com/signrelay/signrelay/internal/output"
)

var (
	askFormat string
	askCheck  bool
)

var askCmd = &cobra.Command{
	Use:   "ask <sign> [sign...]",
	Short: "Send one sentence to the generative backend",
	Long: `Send the given signs as one sentence through the generative connector and
print the sanitized reply. Runs in-process with the configured ailink settings.`,
	Example: `  signrelay ask hello how are you
  signrelay ask --check -o json thank you`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(askFormat)
		if err != nil {
			return err
		}
		cfg := loadConfig()

		connector, err := newConnector(cfg)
		if err != nil {
			return err
		}
		defer connector.Shutdown()

		input := strings.Join(args, " ")
		report := &output.Report{CheckedAt: time.Now(), Input: input}

		available := true
		if askCheck {
			available = connector.CheckStatus(cmd.Context())
			observability.Logger().Debug("Backend status", zap.Bool("available", available), zap.String("model", connector.Model()))
		}

		report.Reply = connector.GetResponse(cmd.Context(), input)
		state := connector.State()
		report.Generative = &output.GenerativeStatus{
			Provider:   connector.Provider(),
			Model:      connector.Model(),
			Available:  available && report.Reply != ailink.ContinueFallback,
			InCooldown: state.InCooldown(time.Now()),
			RetryAfter: state.RetryAfter,
			LastOK:     state.LastSuccessAt,
		}

		rendered, err := output.NewFormatter(format).FormatReport(report)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askFormat, "output", "o", "table", "output format: table, json or markdown")
	askCmd.Flags().BoolVar(&askCheck, "check", false, "run a status probe before asking")
}
