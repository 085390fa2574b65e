package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dj-oyu/smart-posture/posture-server/internal/config"
	"github.com/dj-oyu/smart-posture/posture-server/internal/logger"
)

// envPrefix namespaces every environment override, e.g. POSTURE_ADDR.
const envPrefix = "POSTURE"

var rootCmd = &cobra.Command{
	Use:   "posture_server",
	Short: "Real-time sitting posture alerts from pose landmarks",
	Long: `posture_server turns a stream of body landmarks into debounced posture alerts
and sitting-time reminders, and pushes them to dashboards and brokers.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "YAML configuration file")
	rootCmd.PersistentFlags().String("profile", "", "Tuning profile (testing, office); overrides the file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error, silent)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (console, json)")
}

// loadConfig layers defaults, the config file, POSTURE_* variables and
// flags, in that order. The caller validates after its own overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	profile, _ := cmd.Flags().GetString("profile")

	cfg, err := config.Load(path, profile)
	if err != nil {
		return cfg, err
	}
	if err := cfg.LoadFromEnv(envPrefix); err != nil {
		return cfg, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.Log.Format = format
	}
	return cfg, nil
}

func initLogger(cfg config.LogConfig, out io.Writer) (logger.LogLevel, error) {
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		return level, err
	}
	format, err := logger.ParseFormat(cfg.Format)
	if err != nil {
		return level, err
	}

	logger.InitWithOptions(logger.Options{
		Level:   level,
		Output:  out,
		Color:   cfg.Color,
		Format:  format,
		Service: "posture_server",
	})
	return level, nil
}
