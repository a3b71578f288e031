package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/JonnyWalker81/ecotrack/backend/internal/models"
	"github.com/JonnyWalker81/ecotrack/backend/pkg/supabase"
)

// activityRow mirrors the activities table as PostgREST returns it
type activityRow struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Category  string    `json:"category"`
	Quantity  float64   `json:"quantity"`
	ImpactKg  float64   `json:"impact_kg"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

type supabaseActivityRepository struct {
	client *supabase.Client
}

// NewSupabaseActivityRepository reads approved activities through PostgREST
func NewSupabaseActivityRepository(client *supabase.Client) ActivityRepository {
	return &supabaseActivityRepository{client: client}
}

func (r *supabaseActivityRepository) GetApprovedActivities(ctx context.Context, userID string) ([]models.ActivityRecord, error) {
	query := url.Values{
		"select":   {"id,user_id,category,quantity,impact_kg,points,created_at"},
		"user_id":  {"eq." + userID},
		"approved": {"is.true"},
		"order":    {"created_at.asc"},
	}
	rows, err := r.fetch(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get activities: %w", err)
	}
	return toRecords(rows), nil
}

func (r *supabaseActivityRepository) GetPlatformAggregates(ctx context.Context) (*models.PlatformAggregates, error) {
	query := url.Values{
		"select":   {"user_id,category,points,impact_kg"},
		"approved": {"is.true"},
	}
	rows, err := r.fetch(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get platform aggregates: %w", err)
	}
	return buildAggregates(totalsFromRecords(toRecords(rows))), nil
}

func (r *supabaseActivityRepository) fetch(ctx context.Context, query url.Values) ([]activityRow, error) {
	body, err := r.client.Query(ctx, "activities", query)
	if err != nil {
		return nil, err
	}
	var rows []activityRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal activities: %w", err)
	}
	return rows, nil
}

func toRecords(rows []activityRow) []models.ActivityRecord {
	records := make([]models.ActivityRecord, 0, len(rows))
	for _, row := range rows {
		cat, err := models.ParseCategory(row.Category)
		if err != nil {
			continue
		}
		records = append(records, models.ActivityRecord{
			ID:        row.ID,
			UserID:    row.UserID,
			Category:  cat,
			Quantity:  row.Quantity,
			ImpactKg:  row.ImpactKg,
			Points:    row.Points,
			Timestamp: row.CreatedAt.UTC(),
			Approved:  true,
		})
	}
	return records
}
