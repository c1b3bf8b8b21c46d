package main

import (
	"fmt"

	"github.com/careops/claimrunner/pkg/config"
	"github.com/careops/claimrunner/pkg/upload"
	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the remote run index from uploaded artifacts",
	Long: `Scan the artifact bucket for uploaded runs and rewrite the run index
from what is actually present, repairing drift after interrupted
uploads or manual deletions.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("config file is required (use --config)")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Upload == nil || cfg.Upload.S3 == nil || !cfg.Upload.S3.Enabled {
		return fmt.Errorf("upload.s3 must be configured and enabled for reindex")
	}

	objects := upload.NewS3Objects(log, cfg.Upload.S3)
	indexer := upload.NewIndexer(log, objects, cfg.Upload.S3.Prefix)

	indexed, err := indexer.Reconcile(cmd.Context())
	if err != nil {
		return fmt.Errorf("reconciling run index: %w", err)
	}

	log.WithField("runs", indexed).Info("Run index rebuilt")

	return nil
}
