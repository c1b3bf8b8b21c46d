package store

import (
	"time"
)

// Run is one persisted execution of the runner.
type Run struct {
	ID         string     `gorm:"primaryKey" json:"id"`
	Target     string     `gorm:"not null" json:"target"`
	StartedAt  time.Time  `gorm:"not null" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Total      int        `json:"total"`
	Passed     int        `json:"passed"`
	Failed     int        `json:"failed"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Outcome is one persisted submission outcome. Details holds the full
// request/response audit trail as JSON; refresh updates status, message
// and refreshed_at but never touches details.
type Outcome struct {
	ID          string     `gorm:"primaryKey" json:"id"`
	RunID       string     `gorm:"index;not null" json:"run_id"`
	ClaimID     string     `gorm:"index" json:"claim_id,omitempty"`
	SourceTitle string     `gorm:"not null" json:"source_title"`
	GroupName   string     `json:"group"`
	Status      string     `gorm:"not null" json:"status"`
	Message     string     `json:"message,omitempty"`
	DurationMs  int64      `json:"duration_ms"`
	SubmittedAt time.Time  `json:"submitted_at"`
	RefreshedAt *time.Time `json:"refreshed_at,omitempty"`
	Details     string     `gorm:"type:text" json:"details,omitempty"`
	Sequence    int        `gorm:"not null" json:"sequence"`
	CreatedAt   time.Time  `json:"created_at"`
}

// User represents an authenticated API user.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
