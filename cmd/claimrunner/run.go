package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/careops/claimrunner/pkg/catalog"
	"github.com/careops/claimrunner/pkg/claim"
	"github.com/careops/claimrunner/pkg/config"
	"github.com/careops/claimrunner/pkg/results"
	"github.com/careops/claimrunner/pkg/runner"
	"github.com/careops/claimrunner/pkg/store"
	"github.com/careops/claimrunner/pkg/submit"
	"github.com/careops/claimrunner/pkg/upload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	limitGroups []string
	limitTitles []string
	sampleSize  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the claim test cases",
	Long: `Submit the configured claim test cases sequentially against the
remote claims API and record every outcome.`,
	RunE: runClaims,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringSliceVar(&limitGroups, "group", nil,
		"Limit to these catalog groups (comma-separated or repeated flag)")
	runCmd.Flags().StringSliceVar(&limitTitles, "title", nil,
		"Limit to test cases with these titles (comma-separated or repeated flag)")
	runCmd.Flags().IntVar(&sampleSize, "sample", 0,
		"Sample this many test cases per group for a sanity run (0 runs everything)")
}

func runClaims(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("config file is required (use --config)")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	// Setup context with signal handling.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
	}()

	cat, err := catalog.Load(cfg.Runner.CatalogDir)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	groups, err := selectGroups(cat, limitGroups)
	if err != nil {
		return err
	}

	titles := limitTitles

	size := sampleSize
	if size == 0 {
		size = cfg.Runner.Sample.Size
	}

	if size > 0 && len(titles) == 0 {
		sampler := runner.NewSampler(cfg.Runner.Sample.Seed)
		for _, g := range groups {
			titles = append(titles, sampler.Sample(g, size)...)
		}

		log.WithFields(logrus.Fields{
			"seed":   cfg.Runner.Sample.Seed,
			"size":   size,
			"titles": len(titles),
		}).Info("Sampled test cases for sanity run")
	}

	client := submit.NewHTTPClient(log, &submit.Config{
		Endpoint: cfg.Runner.Target.Endpoint,
		Token:    cfg.Runner.Target.Token,
		Timeout:  cfg.TargetTimeout(),
	})

	// Create S3 uploader if configured. The preflight happens before any
	// submission so storage misconfiguration fails fast.
	var resultsUploader upload.Uploader

	if cfg.Upload != nil && cfg.Upload.S3 != nil && cfg.Upload.S3.Enabled {
		resultsUploader, err = upload.NewS3Uploader(log, cfg.Upload.S3)
		if err != nil {
			return fmt.Errorf("creating S3 uploader: %w", err)
		}

		if err := resultsUploader.Preflight(ctx); err != nil {
			return fmt.Errorf("S3 upload preflight check failed: %w", err)
		}

		log.Info("S3 upload preflight check passed")
	}

	builder := claim.NewBuilder(cat.PerDiem)
	agg := results.NewAggregator(log, client)
	r := runner.NewRunner(log, builder, client, agg)

	summary, err := r.Run(ctx, groups, &runner.Options{
		Titles: titles,
		Pacing: cfg.Pacing(),
		Target: cfg.Runner.Target.Endpoint,
	})
	if err != nil {
		return fmt.Errorf("running test cases: %w", err)
	}

	runDir, err := results.WriteRunArtifacts(cfg.Runner.ResultsDir, summary)
	if err != nil {
		return fmt.Errorf("writing run artifacts: %w", err)
	}

	log.WithField("dir", runDir).Info("Run artifacts written")

	if cfg.API != nil {
		if err := persistRun(ctx, cfg, summary); err != nil {
			log.WithError(err).Warn("Failed to persist run history")
		}
	}

	if resultsUploader != nil {
		if err := resultsUploader.Upload(ctx, runDir); err != nil {
			log.WithError(err).Warn("Failed to upload run artifacts")
		} else {
			objects := upload.NewS3Objects(log, cfg.Upload.S3)
			indexer := upload.NewIndexer(log, objects, cfg.Upload.S3.Prefix)

			if err := indexer.AddRun(ctx, summary); err != nil {
				log.WithError(err).Warn("Failed to update run index")
			}
		}
	}

	log.WithFields(logrus.Fields{
		"run_id": summary.ID,
		"total":  summary.Total,
		"passed": summary.Passed,
		"failed": summary.Failed,
	}).Info("Run completed")

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d test cases failed", summary.Failed, summary.Total)
	}

	return nil
}

// selectGroups resolves the named catalog groups, preserving catalog
// order. With no names, every group runs.
func selectGroups(cat *catalog.Catalog, names []string) ([]runner.Group, error) {
	var source []catalog.Group

	if len(names) == 0 {
		source = cat.Groups()
	} else {
		for _, name := range names {
			g, ok := cat.Group(name)
			if !ok {
				return nil, fmt.Errorf("group %q not found in catalog", name)
			}

			source = append(source, g)
		}
	}

	groups := make([]runner.Group, 0, len(source))
	for _, g := range source {
		groups = append(groups, runner.Group{
			Name:      g.Name,
			TestCases: g.TestCases,
		})
	}

	return groups, nil
}

// persistRun saves the run summary into the dashboard database.
func persistRun(
	ctx context.Context,
	cfg *config.Config,
	summary *results.RunSummary,
) error {
	st := store.NewStore(log, &cfg.API.Database)

	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	defer func() {
		if err := st.Stop(); err != nil {
			log.WithError(err).Warn("Failed to stop store")
		}
	}()

	if err := st.SaveRunSummary(ctx, summary); err != nil {
		return fmt.Errorf("saving run summary: %w", err)
	}

	log.WithField("run_id", summary.ID).Info("Run history persisted")

	return nil
}
