package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"engageflow/internal/campaign"
	"engageflow/internal/notifier"
	"engageflow/internal/platform"
	"engageflow/internal/server"
	"engageflow/internal/spin"
	"engageflow/internal/token"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the balance API and automation websockets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		srv := server.NewServer(cfg, log)
		log.WithComponent("main").WithField("address", srv.Address()).Info("starting server")
		if err := srv.Run(cmd.Context()); err != nil {
			return fmt.Errorf("server: %w", err)
		}
		log.WithComponent("main").Info("server stopped")
		return nil
	},
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Complete every outstanding campaign task",
	RunE: func(cmd *cobra.Command, _ []string) error {
		raw, err := resolveToken()
		if err != nil {
			return err
		}
		userID, err := token.Identify(raw)
		if err != nil {
			return err
		}

		client := platform.NewClient(cfg.Platform, token.StripBearer(raw))
		defer client.Close()

		sink := notifier.NewTerminalSink(os.Stdout, noColor)
		summary, err := campaign.NewDriver(client, cfg.Campaign, sink).Run(cmd.Context(), userID)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "\n%d campaigns, %d processed: %d validated, %d skipped, %d failed\n",
			summary.Campaigns, summary.Processed, summary.Validated, summary.Skipped, summary.Failed)
		return nil
	},
}

var spinCmd = &cobra.Command{
	Use:   "spin",
	Short: "Spin the reward wheel until the balance is drained",
	RunE: func(cmd *cobra.Command, _ []string) error {
		raw, err := resolveToken()
		if err != nil {
			return err
		}

		client := platform.NewClient(cfg.Platform, token.StripBearer(raw))
		defer client.Close()

		driver, err := spin.NewDriver(client, cfg.Spin, notifier.NewTerminalSink(os.Stdout, noColor))
		if err != nil {
			return err
		}
		res := driver.Run(cmd.Context())
		fmt.Fprintf(os.Stdout, "\n%d wins, total payout %g\n", res.Wins, res.Payout)
		return res.Err
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the account's K-point and RKGEN balances as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		raw, err := resolveToken()
		if err != nil {
			return err
		}
		userID, err := token.Identify(raw)
		if err != nil {
			return err
		}

		client := platform.NewClient(cfg.Platform, token.StripBearer(raw))
		defer client.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(client.Report(cmd.Context(), userID))
	},
}
