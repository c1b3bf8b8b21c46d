package results

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/careops/claimrunner/pkg/submit"
	"github.com/sirupsen/logrus"
)

// ErrClaimNotFound indicates the system of record has no claim with the
// given identifier. Stored outcomes are left untouched.
var ErrClaimNotFound = errors.New("claim not found")

// ErrRefreshUnavailable indicates the claim exists but has no terminal
// status yet. Stored outcomes are left untouched.
var ErrRefreshUnavailable = errors.New("claim has no terminal status yet")

// terminalStatuses maps remote claim statuses to stored outcome statuses.
// Anything absent from this map is considered still in flight.
var terminalStatuses = map[string]Status{
	"approved":            StatusPassed,
	"clinically-approved": StatusPassed,
	"paid":                StatusPassed,
	"rejected":            StatusFailed,
	"denied":              StatusFailed,
	"returned":            StatusFailed,
}

// TerminalStatus maps a remote claim status onto a stored outcome
// status. The second return is false for claims still in flight.
func TerminalStatus(remote string) (Status, bool) {
	status, ok := terminalStatuses[remote]

	return status, ok
}

// RefreshResult is the remote state reported back to the refresh caller.
type RefreshResult struct {
	Outcome string `json:"outcome,omitempty"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Updated int    `json:"updated"`
}

// Aggregator is an append-only ordered collection of execution outcomes.
// Append never reorders or deduplicates; the same title may legitimately
// appear more than once across groups or repeated runs. All mutations to
// outcomes sharing a claim ID are serialized behind a per-claim lock, so
// refreshes of different claims never conflict.
type Aggregator struct {
	log    logrus.FieldLogger
	status submit.StatusClient

	mu       sync.Mutex
	outcomes []*Outcome

	lockMu     sync.Mutex
	claimLocks map[string]*sync.Mutex
}

// NewAggregator creates an aggregator. status may be nil when refresh is
// not needed (e.g., in builder-only tests).
func NewAggregator(log logrus.FieldLogger, status submit.StatusClient) *Aggregator {
	return &Aggregator{
		log:        log.WithField("component", "results"),
		status:     status,
		claimLocks: make(map[string]*sync.Mutex),
	}
}

// Append adds an outcome to the end of the collection.
func (a *Aggregator) Append(o *Outcome) {
	if o.ClaimID != "" {
		lock := a.claimLock(o.ClaimID)
		lock.Lock()
		defer lock.Unlock()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.outcomes = append(a.outcomes, o)
}

// Len returns the number of stored outcomes.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.outcomes)
}

// Snapshot returns a copy of all stored outcomes in append order.
func (a *Aggregator) Snapshot() []Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Outcome, len(a.outcomes))
	for i, o := range a.outcomes {
		out[i] = *o
	}

	return out
}

// Refresh re-fetches the remote status for the named claim and updates
// every stored outcome whose claim ID matches, replacing status and
// message and stamping a fresh timestamp. The original request details
// and outcome IDs are never touched. Returns ErrClaimNotFound when the
// remote has no record, and ErrRefreshUnavailable when the claim has no
// terminal status yet; neither mutates stored state.
func (a *Aggregator) Refresh(
	ctx context.Context,
	claimID, hint string,
) (*RefreshResult, error) {
	if claimID == "" {
		return nil, fmt.Errorf("refresh: %w", ErrClaimNotFound)
	}

	lock := a.claimLock(claimID)
	lock.Lock()
	defer lock.Unlock()

	remote, err := a.status.FetchStatus(ctx, claimID, hint)
	if err != nil {
		if errors.Is(err, submit.ErrStatusNotFound) {
			return nil, fmt.Errorf("refresh %s: %w", claimID, ErrClaimNotFound)
		}

		return nil, fmt.Errorf("refresh %s: %w", claimID, err)
	}

	status, terminal := terminalStatuses[remote.Status]
	if !terminal {
		return nil, fmt.Errorf("refresh %s (status %q): %w",
			claimID, remote.Status, ErrRefreshUnavailable)
	}

	message := remote.Message
	if message == "" {
		message = fmt.Sprintf("claim %s: %s", claimID, remote.Status)
	}

	now := time.Now().UTC()
	updated := 0

	a.mu.Lock()

	for _, o := range a.outcomes {
		if o.ClaimID != claimID {
			continue
		}

		o.Status = status
		o.Message = message
		o.RefreshedAt = &now
		updated++
	}

	a.mu.Unlock()

	a.log.WithFields(logrus.Fields{
		"claim_id": claimID,
		"status":   status,
		"updated":  updated,
	}).Info("Outcome refreshed")

	return &RefreshResult{
		Outcome: remote.Outcome,
		Status:  status,
		Message: message,
		Updated: updated,
	}, nil
}

// claimLock returns the mutex serializing mutations for one claim ID.
func (a *Aggregator) claimLock(claimID string) *sync.Mutex {
	a.lockMu.Lock()
	defer a.lockMu.Unlock()

	lock, ok := a.claimLocks[claimID]
	if !ok {
		lock = &sync.Mutex{}
		a.claimLocks[claimID] = lock
	}

	return lock
}
