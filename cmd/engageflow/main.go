package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"engageflow/config"
	"engageflow/internal/metrics"
	"engageflow/logger"
)

var (
	configPath string
	tokenFlag  string
	noColor    bool

	cfg *config.Config
	log = logger.GetLogger()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "engageflow",
	Short: "Automate campaign tasks and wheel spins on the rewards platform",
	Long: `engageflow drives a rewards platform account: it completes outstanding
campaign tasks, drains the K-point balance through the reward wheel and
reports balances.

Run "engageflow serve" to expose the automations to the web frontend, or
use the tasks, spin and balance subcommands directly from a terminal.`,
	SilenceUsage:      true,
	PersistentPreRunE: bootstrap,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&tokenFlag, "token", "t", "", "Bearer token (or set ENGAGEFLOW_TOKEN env)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable ANSI colors in terminal output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(spinCmd)
	rootCmd.AddCommand(balanceCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads .env and configuration and sets up logging before any
// subcommand runs.
func bootstrap(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("Error loading .env file")
	}

	loaded, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	format := cfg.Logging.Format
	if format == "" {
		format = "text"
		if config.IsProductionLike(config.AppEnvironment()) {
			format = "json"
		}
	}
	if err := log.Configure(cfg.Logging.Level, format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace)
	}
	if cfg.Metrics.Prometheus {
		metrics.Init()
	}

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(cmd.Context(), log, cfg.Logging.ReportInterval)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": config.AppEnvironment(),
		"command":     cmd.Name(),
	}).Info("starting engageflow")
	return nil
}

// resolveToken returns the token flag, falling back to ENGAGEFLOW_TOKEN.
func resolveToken() (string, error) {
	tok := strings.TrimSpace(tokenFlag)
	if tok == "" {
		tok = strings.TrimSpace(os.Getenv("ENGAGEFLOW_TOKEN"))
	}
	if tok == "" {
		return "", errors.New("a token is required: pass --token or set ENGAGEFLOW_TOKEN")
	}
	return tok, nil
}
