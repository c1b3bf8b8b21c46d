// Package results holds the append-only record of execution outcomes and
// the point-in-time refresh against the system of record.
package results

import (
	"time"

	"github.com/careops/claimrunner/pkg/claim"
	"github.com/careops/claimrunner/pkg/submit"
)

// Status of an execution outcome. StatusRunning is transient and only
// exists while an attempt is in flight; it never appears in a snapshot.
type Status string

const (
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
)

// Details carries the immutable audit trail of one submission attempt.
// Exactly one of Response or Error is populated once the outcome is
// terminal. Request is never mutated after the outcome is recorded.
type Details struct {
	Request          *claim.SubmissionPayload `json:"request"`
	Response         string                   `json:"response,omitempty"`
	Error            string                   `json:"error,omitempty"`
	ValidationErrors []submit.ValidationError `json:"validationErrors,omitempty"`
}

// Outcome is the terminal record of one test-case submission attempt.
// Refresh may later replace Status and Message and stamp RefreshedAt,
// but never changes ID or Details.Request.
type Outcome struct {
	ID          string     `json:"id"`
	ClaimID     string     `json:"claimId,omitempty"`
	SourceTitle string     `json:"sourceTitle"`
	Group       string     `json:"group"`
	Status      Status     `json:"status"`
	DurationMs  int64      `json:"durationMs"`
	SubmittedAt time.Time  `json:"submittedAt"`
	Message     string     `json:"message,omitempty"`
	Details     Details    `json:"details"`
	RefreshedAt *time.Time `json:"refreshedAt,omitempty"`
}

// RunSummary aggregates one complete run for persistence and artifacts.
type RunSummary struct {
	ID         string    `json:"id"`
	Target     string    `json:"target"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Total      int       `json:"total"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Outcomes   []Outcome `json:"outcomes"`
}
