package repository

import (
	"context"
	"errors"
	"time"

	"github.com/JonnyWalker81/ecotrack/backend/internal/models"
)

var (
	// ErrNotFound is returned when no row matches
	ErrNotFound = errors.New("not found")

	// ErrNotActive is returned when a challenge exists but no longer
	// accepts progress
	ErrNotActive = errors.New("challenge is not active")
)

// ActivityRepository is the read side of the activity-submission subsystem
type ActivityRepository interface {
	// GetApprovedActivities returns a user's approved records, oldest first
	GetApprovedActivities(ctx context.Context, userID string) ([]models.ActivityRecord, error)

	// GetPlatformAggregates summarises approved activity across all users
	GetPlatformAggregates(ctx context.Context) (*models.PlatformAggregates, error)
}

// ChallengeRepository persists weekly challenges
type ChallengeRepository interface {
	// GetByPeriod returns the user's challenge for periodKey or ErrNotFound
	GetByPeriod(ctx context.Context, userID, periodKey string) (*models.ChallengeResult, error)

	// Create inserts challenge unless one already exists for the same user
	// and period, and returns the stored row either way
	Create(ctx context.Context, challenge *models.ChallengeResult) (*models.ChallengeResult, error)

	// IncrementProgress adds delta to an active challenge, clamped to its
	// target. Reaching the target completes the challenge in the same write.
	IncrementProgress(ctx context.Context, userID, periodKey string, delta int, now time.Time) (*models.ChallengeResult, error)

	// ExpireStale marks the user's active challenges that expired at or
	// before now
	ExpireStale(ctx context.Context, userID string, now time.Time) (int64, error)
}

// ActivityWriter records approved activities. The SQL store implements it
// for seeding and tests.
type ActivityWriter interface {
	InsertActivity(ctx context.Context, record models.ActivityRecord) error
}
