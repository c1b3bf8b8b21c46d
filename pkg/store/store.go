// Package store persists run history and API users.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/careops/claimrunner/pkg/config"
	"github.com/careops/claimrunner/pkg/results"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store provides persistence for runs, outcomes and API users.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// Run history.
	SaveRunSummary(ctx context.Context, summary *results.RunSummary) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context) ([]Run, error)
	ListOutcomes(ctx context.Context, runID string) ([]Outcome, error)

	// Refresh support.
	OutcomesByClaimID(ctx context.Context, claimID string) ([]Outcome, error)
	ListUnrefreshedClaimIDs(ctx context.Context, limit int) ([]string, error)
	UpdateOutcomeStatus(
		ctx context.Context,
		claimID, status, message string,
		refreshedAt time.Time,
	) (int64, error)

	// API users.
	SeedUsers(ctx context.Context, users []config.BasicAuthUser) error
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new Store backed by the configured database driver.
func NewStore(log logrus.FieldLogger, cfg *config.DatabaseConfig) Store {
	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var (
		dialector gorm.Dialector
		err       error
	)

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	s.db, err = gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	if err := s.db.WithContext(ctx).AutoMigrate(
		&Run{},
		&Outcome{},
		&User{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Info("Database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// --- Run history ---

// SaveRunSummary persists a run and all of its outcomes atomically.
func (s *store) SaveRunSummary(
	ctx context.Context, summary *results.RunSummary,
) error {
	finished := summary.FinishedAt

	run := &Run{
		ID:         summary.ID,
		Target:     summary.Target,
		StartedAt:  summary.StartedAt,
		FinishedAt: &finished,
		Total:      summary.Total,
		Passed:     summary.Passed,
		Failed:     summary.Failed,
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("creating run: %w", err)
		}

		for i := range summary.Outcomes {
			o := &summary.Outcomes[i]

			details, err := json.Marshal(o.Details)
			if err != nil {
				return fmt.Errorf("encoding outcome details: %w", err)
			}

			row := &Outcome{
				ID:          o.ID,
				RunID:       summary.ID,
				ClaimID:     o.ClaimID,
				SourceTitle: o.SourceTitle,
				GroupName:   o.Group,
				Status:      string(o.Status),
				Message:     o.Message,
				DurationMs:  o.DurationMs,
				SubmittedAt: o.SubmittedAt,
				RefreshedAt: o.RefreshedAt,
				Details:     string(details),
				Sequence:    i,
			}

			if err := tx.Create(row).Error; err != nil {
				return fmt.Errorf("creating outcome: %w", err)
			}
		}

		return nil
	})
}

func (s *store) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	if err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&run).Error; err != nil {
		return nil, fmt.Errorf("getting run: %w", err)
	}

	return &run, nil
}

func (s *store) ListRuns(ctx context.Context) ([]Run, error) {
	var runs []Run
	if err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	return runs, nil
}

func (s *store) ListOutcomes(
	ctx context.Context, runID string,
) ([]Outcome, error) {
	var outcomes []Outcome
	if err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("sequence ASC").
		Find(&outcomes).Error; err != nil {
		return nil, fmt.Errorf("listing outcomes: %w", err)
	}

	return outcomes, nil
}

// --- Refresh support ---

func (s *store) OutcomesByClaimID(
	ctx context.Context, claimID string,
) ([]Outcome, error) {
	var outcomes []Outcome
	if err := s.db.WithContext(ctx).
		Where("claim_id = ?", claimID).
		Order("created_at ASC").
		Find(&outcomes).Error; err != nil {
		return nil, fmt.Errorf("getting outcomes by claim id: %w", err)
	}

	return outcomes, nil
}

// ListUnrefreshedClaimIDs returns distinct claim IDs of outcomes that
// have never been refreshed against the system of record, oldest first.
func (s *store) ListUnrefreshedClaimIDs(
	ctx context.Context, limit int,
) ([]string, error) {
	var claimIDs []string

	query := s.db.WithContext(ctx).
		Model(&Outcome{}).
		Distinct("claim_id").
		Where("claim_id <> '' AND refreshed_at IS NULL").
		Order("claim_id ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Pluck("claim_id", &claimIDs).Error; err != nil {
		return nil, fmt.Errorf("listing non-terminal claim ids: %w", err)
	}

	return claimIDs, nil
}

// UpdateOutcomeStatus writes a refresh result back to every outcome with
// the given claim ID. Details and IDs are never touched. Returns the
// number of updated rows.
func (s *store) UpdateOutcomeStatus(
	ctx context.Context,
	claimID, status, message string,
	refreshedAt time.Time,
) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&Outcome{}).
		Where("claim_id = ?", claimID).
		Updates(map[string]any{
			"status":       status,
			"message":      message,
			"refreshed_at": refreshedAt,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("updating outcome status: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// --- API users ---

// SeedUsers upserts config-sourced users with freshly hashed passwords.
func (s *store) SeedUsers(
	ctx context.Context, users []config.BasicAuthUser,
) error {
	for _, u := range users {
		hash, err := bcrypt.GenerateFromPassword(
			[]byte(u.Password), bcrypt.DefaultCost,
		)
		if err != nil {
			return fmt.Errorf("hashing password for %q: %w", u.Username, err)
		}

		var existing User

		result := s.db.WithContext(ctx).
			Where("username = ?", u.Username).
			First(&existing)

		if result.Error == nil {
			existing.PasswordHash = string(hash)

			if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
				return fmt.Errorf("updating user %q: %w", u.Username, err)
			}

			continue
		}

		newUser := User{
			Username:     u.Username,
			PasswordHash: string(hash),
		}

		if err := s.db.WithContext(ctx).Create(&newUser).Error; err != nil {
			return fmt.Errorf("seeding user %q: %w", u.Username, err)
		}
	}

	s.log.WithField("count", len(users)).Info("Seeded users from config")

	return nil
}

func (s *store) GetUserByUsername(
	ctx context.Context, username string,
) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).
		Where("username = ?", username).
		First(&user).Error; err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}

	return &user, nil
}
