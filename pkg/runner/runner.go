// Package runner executes groups of claim test cases against the remote
// claims API, strictly one at a time with an enforced pacing delay
// between submissions. The pacing is a deliberate rate limit: the
// downstream claims system mis-processes requests submitted in rapid
// succession, so there is no parallel fan-out within a run.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/careops/claimrunner/pkg/claim"
	"github.com/careops/claimrunner/pkg/results"
	"github.com/careops/claimrunner/pkg/submit"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultPacing is the delay enforced between sequential submissions.
const DefaultPacing = 3 * time.Second

// Group is a named partition of test cases, run as one logical batch
// while still executing items strictly sequentially.
type Group struct {
	Name      string
	TestCases []claim.TestCase
}

// TestCaseNotFoundError indicates a selected title that matches no test
// case in the supplied groups. This is a configuration error: it aborts
// the whole run before any network call is made.
type TestCaseNotFoundError struct {
	Title string
}

func (e *TestCaseNotFoundError) Error() string {
	return fmt.Sprintf("test case %q not found", e.Title)
}

// Status reports which group and item a run is currently executing.
type Status struct {
	Running bool
	Group   string
	Index   int
	Total   int
	Title   string
}

// Options control a single run.
type Options struct {
	// Titles selects a subset of test cases by exact title match. Empty
	// selects every test case in every group.
	Titles []string
	// Pacing overrides DefaultPacing when positive.
	Pacing time.Duration
	// Pacer overrides the fixed-interval pacer entirely (used in tests).
	Pacer Pacer
	// Observer, when set, sees each outcome as soon as it is recorded,
	// before the next item starts.
	Observer func(*results.Outcome)
	// Target is recorded on the run summary for the audit trail.
	Target string
}

// Runner executes test-case groups and records their outcomes.
type Runner interface {
	// Run submits the selected test cases sequentially and returns the
	// run summary. A cancelled context stops the run after the in-flight
	// item completes; its partial summary is still returned.
	Run(ctx context.Context, groups []Group, opts *Options) (*results.RunSummary, error)

	// Status returns the currently running group and index.
	Status() Status
}

// Compile-time interface check.
var _ Runner = (*runner)(nil)

type runner struct {
	log     logrus.FieldLogger
	builder *claim.Builder
	client  submit.Client
	agg     *results.Aggregator

	mu     sync.Mutex
	status Status
}

// NewRunner creates a runner that records outcomes into agg.
func NewRunner(
	log logrus.FieldLogger,
	builder *claim.Builder,
	client submit.Client,
	agg *results.Aggregator,
) Runner {
	return &runner{
		log:     log.WithField("component", "runner"),
		builder: builder,
		client:  client,
		agg:     agg,
	}
}

// workItem pairs a resolved test case with its group and prebuilt payload.
type workItem struct {
	group   string
	tc      *claim.TestCase
	payload *claim.SubmissionPayload
}

func (r *runner) Run(
	ctx context.Context,
	groups []Group,
	opts *Options,
) (*results.RunSummary, error) {
	if opts == nil {
		opts = &Options{}
	}

	items, err := resolve(groups, opts.Titles)
	if err != nil {
		return nil, err
	}

	// Build every payload up front so configuration errors abort the run
	// before any network activity.
	for _, it := range items {
		payload, err := r.builder.Build(it.tc)
		if err != nil {
			return nil, err
		}

		it.payload = payload
	}

	pacer := opts.Pacer
	if pacer == nil {
		pacing := opts.Pacing
		if pacing <= 0 {
			pacing = DefaultPacing
		}

		pacer = NewFixedPacer(pacing)
	}

	summary := &results.RunSummary{
		ID:        uuid.NewString(),
		Target:    opts.Target,
		StartedAt: time.Now().UTC(),
		Total:     len(items),
	}

	r.log.WithFields(logrus.Fields{
		"run_id": summary.ID,
		"groups": len(groups),
		"items":  len(items),
	}).Info("Starting run")

	var interrupted bool

	for i, it := range items {
		// Cancellation is cooperative and checked only between items; an
		// in-flight submission always completes and is recorded.
		select {
		case <-ctx.Done():
			interrupted = true
		default:
		}

		if interrupted {
			r.log.WithField("remaining", len(items)-i).Warn("Run cancelled between items")

			break
		}

		r.setStatus(Status{
			Running: true,
			Group:   it.group,
			Index:   i,
			Total:   len(items),
			Title:   it.tc.Title,
		})

		outcome := r.submitOne(ctx, it)

		r.agg.Append(outcome)

		if opts.Observer != nil {
			opts.Observer(outcome)
		}

		summary.Outcomes = append(summary.Outcomes, *outcome)

		if outcome.Status == results.StatusPassed {
			summary.Passed++
		} else {
			summary.Failed++
		}

		// The pacing delay is unconditional after success and failure
		// alike, skipped only after the last item of the full run.
		if i < len(items)-1 {
			if err := pacer.Wait(ctx); err != nil {
				interrupted = true
			}
		}
	}

	r.setStatus(Status{})

	summary.FinishedAt = time.Now().UTC()

	r.log.WithFields(logrus.Fields{
		"run_id":      summary.ID,
		"passed":      summary.Passed,
		"failed":      summary.Failed,
		"interrupted": interrupted,
	}).Info("Run finished")

	return summary, nil
}

// submitOne submits a single prebuilt payload and constructs its outcome.
// Transport failures never abort the batch; they degrade to a recorded
// failed outcome.
func (r *runner) submitOne(ctx context.Context, it *workItem) *results.Outcome {
	log := r.log.WithFields(logrus.Fields{
		"group": it.group,
		"title": it.tc.Title,
	})
	log.Info("Submitting test case")

	start := time.Now()
	result, err := r.client.Submit(ctx, it.payload)
	duration := time.Since(start)

	outcome := &results.Outcome{
		ID:          uuid.NewString(),
		SourceTitle: it.tc.Title,
		Group:       it.group,
		DurationMs:  duration.Milliseconds(),
		SubmittedAt: start.UTC(),
		Details: results.Details{
			Request: it.payload,
		},
	}

	switch {
	case err != nil:
		outcome.Status = results.StatusFailed
		outcome.Message = err.Error()
		outcome.Details.Error = err.Error()

		log.WithError(err).Warn("Submission failed")
	case result.Success:
		outcome.Status = results.StatusPassed
		outcome.ClaimID = result.ClaimID
		outcome.Message = result.Message
		outcome.Details.Response = result.Raw

		if outcome.Message == "" {
			outcome.Message = "claim accepted"
		}

		log.WithField("claim_id", result.ClaimID).Info("Submission accepted")
	default:
		outcome.Status = results.StatusFailed
		outcome.ClaimID = result.ClaimID
		outcome.Message = result.Message
		outcome.Details.Response = result.Raw
		outcome.Details.ValidationErrors = result.ValidationErrors

		if outcome.Message == "" {
			outcome.Message = "claim rejected"
		}

		log.WithField("validation_errors", len(result.ValidationErrors)).
			Warn("Submission rejected")
	}

	return outcome
}

// Status returns a copy of the current run status.
func (r *runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.status
}

func (r *runner) setStatus(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status = s
}

// resolve selects test cases by title across the given groups. Groups are
// concatenated in order with each group's internal order preserved; they
// are never interleaved. Every selected title must match exactly one test
// case or the run aborts.
func resolve(groups []Group, titles []string) ([]*workItem, error) {
	var selected map[string]bool
	if len(titles) > 0 {
		selected = make(map[string]bool, len(titles))
		for _, title := range titles {
			selected[title] = false
		}
	}

	var items []*workItem

	for gi := range groups {
		g := &groups[gi]

		for ti := range g.TestCases {
			tc := &g.TestCases[ti]

			if selected != nil {
				if _, ok := selected[tc.Title]; !ok {
					continue
				}

				selected[tc.Title] = true
			}

			items = append(items, &workItem{group: g.Name, tc: tc})
		}
	}

	for _, title := range titles {
		if !selected[title] {
			return nil, &TestCaseNotFoundError{Title: title}
		}
	}

	return items, nil
}
