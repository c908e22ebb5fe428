package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/signrelay/signrelay/internal/config"
	"github.com/signrelay/signrelay/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		version := crucible.GetVersion()

		log.Info("=== signrelay Environment Information ===")
		log.Info("")

		log.Info("Application:")
		log.Info("  Name:       " + config.AppName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info("")

		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		configFile := viper.ConfigFileUsed()
		if configFile == "" {
			configFile = config.DefaultConfigPath() + " (not found)"
		}

		log.Info("Configuration:")
		log.Info("  Config File:    " + configFile)
		log.Info(fmt.Sprintf("  Orchestrator:   %s:%d", cfg.Server.Host, cfg.Server.Port))
		log.Info(fmt.Sprintf("  GenAI Service:  %s:%d", cfg.GenAI.Host, cfg.GenAI.Port))
		log.Info("  Log Level:      " + cfg.Logging.Level)
		log.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port))
		log.Info("")

		log.Info("Dependencies:")
		log.Info("  Perception:     " + strings.Join(cfg.Perception.Candidates, ", "))
		log.Info("  Client ID:      " + cfg.Perception.ClientID)
		log.Info("  UI:             " + strings.Join(cfg.UI.Candidates, ", "))
		log.Info("  Responder:      " + cfg.Responder.Mode)
		if cfg.Responder.Mode == config.ResponderRemote {
			log.Info("  GenAI Targets:  " + strings.Join(cfg.Responder.Candidates, ", "))
		}
		log.Info("")

		log.Info("Generative Backend:")
		log.Info("  Provider:       " + cfg.AILink.Provider)
		log.Info("  Model:          " + cfg.AILink.Model)
		log.Info("  Fallbacks:      " + strings.Join(cfg.AILink.FallbackModels, ", "))
		if cfg.AILink.BaseURL != "" {
			log.Info("  Base URL:       " + cfg.AILink.BaseURL)
		}
		if cfg.AILink.APIKey != "" || len(cfg.AILink.Credentials) > 0 {
			log.Info("  API Key:        (set)")
		} else {
			log.Info("  API Key:        (not set)")
		}
		log.Info("  Heartbeat:      " + cfg.AILink.HeartbeatInterval.String())
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
