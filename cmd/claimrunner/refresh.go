package main

import (
	"context"
	"fmt"
	"time"

	"github.com/careops/claimrunner/pkg/config"
	"github.com/careops/claimrunner/pkg/results"
	"github.com/careops/claimrunner/pkg/store"
	"github.com/careops/claimrunner/pkg/submit"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var refreshHint string

var refreshCmd = &cobra.Command{
	Use:   "refresh <claim-id>",
	Short: "Refresh one claim's stored outcome from the system of record",
	Long: `Fetch the current remote status of a previously submitted claim and,
when it has reached a terminal state, write it back to every stored
outcome with that claim ID. The original request details are never
touched.`,
	Args: cobra.ExactArgs(1),
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	refreshCmd.Flags().StringVar(&refreshHint, "hint", "",
		"Lookup hint forwarded to the system of record")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("config file is required (use --config)")
	}

	claimID := args[0]

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.API == nil {
		return fmt.Errorf("api section is required in config for refresh")
	}

	ctx := context.Background()

	client := submit.NewHTTPClient(log, &submit.Config{
		Endpoint: cfg.Runner.Target.Endpoint,
		Token:    cfg.Runner.Target.Token,
		Timeout:  cfg.TargetTimeout(),
	})

	remote, err := client.FetchStatus(ctx, claimID, refreshHint)
	if err != nil {
		return fmt.Errorf("fetching claim status: %w", err)
	}

	status, terminal := results.TerminalStatus(remote.Status)
	if !terminal {
		return fmt.Errorf("claim %s has no terminal status yet (remote status %q)",
			claimID, remote.Status)
	}

	message := remote.Message
	if message == "" {
		message = remote.Status
	}

	st := store.NewStore(log, &cfg.API.Database)
	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	defer func() {
		if err := st.Stop(); err != nil {
			log.WithError(err).Warn("Failed to stop store")
		}
	}()

	updated, err := st.UpdateOutcomeStatus(
		ctx, claimID, string(status), message, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("updating stored outcomes: %w", err)
	}

	if updated == 0 {
		log.WithField("claim_id", claimID).
			Warn("No stored outcomes matched this claim ID")
	}

	log.WithFields(logrus.Fields{
		"claim_id": claimID,
		"status":   status,
		"message":  message,
		"updated":  updated,
	}).Info("Claim refreshed")

	return nil
}
