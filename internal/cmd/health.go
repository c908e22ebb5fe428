package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signrelay/signrelay/internal/ailink"
	"github.com/signrelay/signrelay/internal/ailink/prompt"
	"github.com/signrelay/signrelay/internal/config"
	errwrap "github.com/signrelay/signrelay/internal/errors"
	"github.com/signrelay/signrelay/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Verify that the configuration, prompts and generative driver are usable without contacting any service.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		log.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewInternalError("version information missing"))
			return
		}
		log.Debug("Version check passed", zap.String("version", versionInfo.Version))
		log.Info("✅ Version information available")

		cfg := loadConfig()
		log.Info("✅ Configuration valid")

		reg, err := prompt.LoadRegistry(cfg.AILink.PromptsDir)
		if err != nil {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Prompt registry failed to load", err)
			return
		}
		log.Info(fmt.Sprintf("✅ %d prompts loaded", len(reg.List())))

		if _, err := ailink.NewDriver(cfg.AILink); err != nil {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Generative driver misconfigured", err)
			return
		}
		log.Info("✅ Generative driver configured", zap.String("provider", cfg.AILink.Provider))
		if cfg.AILink.APIKey == "" && len(cfg.AILink.Credentials) == 0 && cfg.AILink.Provider == "gemini" {
			log.Warn("⚠️  No API key configured; set SIGNRELAY_AILINK_API_KEY or GEMINI_API_KEY")
		}

		log.Info("")
		log.Info("✅ All health checks passed", zap.String("config_file", config.DefaultConfigPath()))
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
