package models

import "time"

// ChallengeStatus is the lifecycle state of a weekly challenge
type ChallengeStatus string

const (
	ChallengeActive    ChallengeStatus = "active"
	ChallengeCompleted ChallengeStatus = "completed"
	ChallengeExpired   ChallengeStatus = "expired"
)

// ChallengeResult is a user's challenge for one ISO week.
// Target and RewardPoints never change once the row is created.
type ChallengeResult struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	PeriodKey    string          `json:"period_key"`
	Level        Level           `json:"level"`
	TemplateID   string          `json:"template_id"`
	Target       int             `json:"target"`
	TargetMetric string          `json:"target_metric"`
	RewardPoints int             `json:"reward_points"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Progress     int             `json:"progress"`
	Status       ChallengeStatus `json:"status"`
	GeneratedBy  GeneratedBy     `json:"generated_by"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	ExpiresAt    time.Time       `json:"expires_at"`
}

// ChallengeDraft is the deterministic part of a challenge before it is
// persisted
type ChallengeDraft struct {
	PeriodKey    string      `json:"period_key"`
	Level        Level       `json:"level"`
	TemplateID   string      `json:"template_id"`
	Target       int         `json:"target"`
	TargetMetric string      `json:"target_metric"`
	RewardPoints int         `json:"reward_points"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	GeneratedBy  GeneratedBy `json:"generated_by"`
	ExpiresAt    time.Time   `json:"expires_at"`
}

// UpdateProgressRequest is the body of a progress update
type UpdateProgressRequest struct {
	Delta *int `json:"delta"`
}
