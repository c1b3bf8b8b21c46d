package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/careops/claimrunner/pkg/results"
	"github.com/sirupsen/logrus"
)

// indexFileName is the bucket-level run index object, kept next to the
// runs/ prefix so the dashboard can discover runs with a single read.
const indexFileName = "index.json"

// IndexEntry summarizes one uploaded run in the bucket index.
type IndexEntry struct {
	RunID      string    `json:"runId"`
	Target     string    `json:"target"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Total      int       `json:"total"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Prefix     string    `json:"prefix"`
}

// objectStore is the slice of S3Objects the indexer needs.
type objectStore interface {
	ListRunIDs(ctx context.Context, runsPrefix string) ([]string, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

// Indexer maintains the run index object in remote storage.
type Indexer struct {
	log     logrus.FieldLogger
	objects objectStore
	prefix  string
}

// NewIndexer creates an Indexer sharing the uploader's bucket settings.
func NewIndexer(log logrus.FieldLogger, objects objectStore, prefix string) *Indexer {
	if prefix == "" {
		prefix = "claimrunner"
	}

	return &Indexer{
		log:     log.WithField("component", "run-indexer"),
		objects: objects,
		prefix:  strings.TrimRight(prefix, "/"),
	}
}

// AddRun merges the run summary into the remote index, replacing any
// existing entry with the same run ID. Entries are kept newest first.
func (ix *Indexer) AddRun(ctx context.Context, summary *results.RunSummary) error {
	key := ix.prefix + "/" + indexFileName

	data, err := ix.objects.GetObject(ctx, key)
	if err != nil {
		return fmt.Errorf("loading run index: %w", err)
	}

	var entries []IndexEntry

	if data != nil {
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("parsing run index: %w", err)
		}
	}

	entry := ix.entryFor(summary)
	replaced := false

	for i := range entries {
		if entries[i].RunID == entry.RunID {
			entries[i] = entry
			replaced = true

			break
		}
	}

	if !replaced {
		entries = append(entries, entry)
	}

	if err := ix.writeEntries(ctx, entries); err != nil {
		return err
	}

	ix.log.WithFields(logrus.Fields{
		"run_id":  summary.ID,
		"entries": len(entries),
	}).Info("Run index updated")

	return nil
}

// Reconcile rebuilds the index from the run artifacts actually present
// in the bucket, repairing drift after interrupted uploads or manual
// deletions. Runs without a readable result.json are skipped. Returns
// the number of indexed runs.
func (ix *Indexer) Reconcile(ctx context.Context) (int, error) {
	runsPrefix := ix.prefix + "/runs/"

	ids, err := ix.objects.ListRunIDs(ctx, runsPrefix)
	if err != nil {
		return 0, fmt.Errorf("listing uploaded runs: %w", err)
	}

	entries := make([]IndexEntry, 0, len(ids))

	for _, id := range ids {
		key := runsPrefix + id + "/result.json"

		data, err := ix.objects.GetObject(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("reading %s: %w", key, err)
		}

		if data == nil {
			ix.log.WithField("run_id", id).Warn("Uploaded run has no result.json, skipping")

			continue
		}

		var run results.RunSummary
		if err := json.Unmarshal(data, &run); err != nil {
			ix.log.WithError(err).WithField("run_id", id).
				Warn("Unreadable result.json, skipping")

			continue
		}

		entries = append(entries, ix.entryFor(&run))
	}

	if err := ix.writeEntries(ctx, entries); err != nil {
		return 0, err
	}

	ix.log.WithFields(logrus.Fields{
		"runs":    len(ids),
		"indexed": len(entries),
	}).Info("Run index reconciled")

	return len(entries), nil
}

// entryFor builds the index entry for one run summary.
func (ix *Indexer) entryFor(summary *results.RunSummary) IndexEntry {
	return IndexEntry{
		RunID:      summary.ID,
		Target:     summary.Target,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
		Total:      summary.Total,
		Passed:     summary.Passed,
		Failed:     summary.Failed,
		Prefix:     ix.prefix + "/runs/" + summary.ID,
	}
}

// writeEntries sorts entries newest first and writes the index object.
func (ix *Indexer) writeEntries(ctx context.Context, entries []IndexEntry) error {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].StartedAt.After(entries[j].StartedAt)
	})

	out, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run index: %w", err)
	}

	key := ix.prefix + "/" + indexFileName
	if err := ix.objects.PutObject(ctx, key, out, "application/json"); err != nil {
		return fmt.Errorf("writing run index: %w", err)
	}

	return nil
}
