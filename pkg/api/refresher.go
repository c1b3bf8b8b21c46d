package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/careops/claimrunner/pkg/config"
	"github.com/careops/claimrunner/pkg/results"
	"github.com/careops/claimrunner/pkg/store"
	"github.com/careops/claimrunner/pkg/submit"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// sweepBatchSize caps the number of claims examined per sweep.
const sweepBatchSize = 100

// refresher periodically re-fetches the remote status of persisted
// outcomes that have never been refreshed. It only touches completed
// outcomes, so it is independent of any in-progress run.
type refresher struct {
	log         logrus.FieldLogger
	store       store.Store
	status      submit.StatusClient
	interval    time.Duration
	concurrency int

	wg   sync.WaitGroup
	done chan struct{}
}

func newRefresher(
	log logrus.FieldLogger,
	cfg *config.APIRefreshConfig,
	st store.Store,
	status submit.StatusClient,
) (*refresher, error) {
	interval, err := time.ParseDuration(cfg.Interval)
	if err != nil {
		return nil, fmt.Errorf("parsing refresh interval: %w", err)
	}

	return &refresher{
		log:         log.WithField("component", "refresher"),
		store:       st,
		status:      status,
		interval:    interval,
		concurrency: cfg.Concurrency,
		done:        make(chan struct{}),
	}, nil
}

func (r *refresher) start(ctx context.Context) {
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.log.WithField("interval", r.interval).Info("Refresher started")

		for {
			select {
			case <-ticker.C:
				r.sweep(ctx)
			case <-r.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (r *refresher) stop() {
	close(r.done)
	r.wg.Wait()
}

// sweep refreshes a batch of unrefreshed claims with bounded
// concurrency. Per-claim failures are logged and skipped; claims still
// in flight remotely stay queued for the next sweep.
func (r *refresher) sweep(ctx context.Context) {
	claimIDs, err := r.store.ListUnrefreshedClaimIDs(ctx, sweepBatchSize)
	if err != nil {
		r.log.WithError(err).Warn("Failed to list claims for refresh")

		return
	}

	if len(claimIDs) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	var refreshed atomic.Int64

	for _, claimID := range claimIDs {
		g.Go(func() error {
			remote, err := r.status.FetchStatus(gctx, claimID, "")
			if err != nil {
				if !errors.Is(err, submit.ErrStatusNotFound) {
					r.log.WithError(err).WithField("claim_id", claimID).
						Debug("Status fetch failed")
				}

				return nil
			}

			status, terminal := results.TerminalStatus(remote.Status)
			if !terminal {
				return nil
			}

			message := remote.Message
			if message == "" {
				message = remote.Status
			}

			updated, err := r.store.UpdateOutcomeStatus(
				gctx, claimID, string(status), message, time.Now().UTC(),
			)
			if err != nil {
				r.log.WithError(err).WithField("claim_id", claimID).
					Warn("Failed to write refresh result")

				return nil
			}

			refreshed.Add(updated)

			return nil
		})
	}

	_ = g.Wait()

	if refreshed.Load() > 0 {
		r.log.WithFields(logrus.Fields{
			"claims":  len(claimIDs),
			"updated": refreshed.Load(),
		}).Info("Refresh sweep completed")
	}
}
