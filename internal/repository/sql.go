package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JonnyWalker81/ecotrack/backend/internal/models"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder and column-type syntax
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// rebind rewrites ? placeholders to $N for PostgreSQL
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) timestampType() string {
	if d == DialectPostgres {
		return "TIMESTAMPTZ"
	}
	return "DATETIME"
}

// Open connects to a SQL backend. An empty SQLite DSN opens a private
// in-memory database.
func Open(dialect Dialect, dsn string) (*sql.DB, error) {
	switch dialect {
	case DialectPostgres:
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
		return db, nil
	case DialectSQLite:
		if dsn == "" {
			dsn = "file::memory:"
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// one connection serialises writers and keeps an in-memory db alive
		db.SetMaxOpenConns(1)
		return db, nil
	}
	return nil, fmt.Errorf("unsupported dialect %q", dialect)
}

// SQLStore implements ActivityRepository, ActivityWriter and
// ChallengeRepository over database/sql
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore creates a store over an open database
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// DB exposes the underlying handle
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) GetApprovedActivities(ctx context.Context, userID string) ([]models.ActivityRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT id, user_id, category, quantity, impact_kg, points, created_at
		FROM activities
		WHERE user_id = ? AND approved = TRUE
		ORDER BY created_at ASC`), userID)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	var records []models.ActivityRecord
	for rows.Next() {
		var (
			r        models.ActivityRecord
			category string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &category, &r.Quantity, &r.ImpactKg, &r.Points, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		cat, err := models.ParseCategory(category)
		if err != nil {
			// rows written by a newer client are skipped rather than failing the user
			continue
		}
		r.Category = cat
		r.Timestamp = r.Timestamp.UTC()
		r.Approved = true
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return records, nil
}

func (s *SQLStore) GetPlatformAggregates(ctx context.Context) (*models.PlatformAggregates, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, category, COUNT(*), COALESCE(SUM(points), 0), COALESCE(SUM(impact_kg), 0)
		FROM activities
		WHERE approved = TRUE
		GROUP BY user_id, category
		ORDER BY user_id, category`)
	if err != nil {
		return nil, fmt.Errorf("query platform aggregates: %w", err)
	}
	defer rows.Close()

	var totals []userCategoryTotals
	for rows.Next() {
		var (
			t        userCategoryTotals
			category string
		)
		if err := rows.Scan(&t.UserID, &category, &t.Count, &t.Points, &t.ImpactKg); err != nil {
			return nil, fmt.Errorf("scan platform aggregates: %w", err)
		}
		cat, err := models.ParseCategory(category)
		if err != nil {
			continue
		}
		t.Category = cat
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate platform aggregates: %w", err)
	}
	return buildAggregates(totals), nil
}

func (s *SQLStore) InsertActivity(ctx context.Context, r models.ActivityRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO activities (id, user_id, category, quantity, impact_kg, points, created_at, approved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.UserID, string(r.Category), r.Quantity, r.ImpactKg, r.Points, r.Timestamp.UTC(), r.Approved)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

const challengeColumns = `id, user_id, period_key, level, template_id, target, target_metric,
	reward_points, title, description, progress, status, generated_by,
	created_at, completed_at, expires_at`

func scanChallenge(row interface{ Scan(...any) error }) (*models.ChallengeResult, error) {
	var (
		c           models.ChallengeResult
		level       string
		status      string
		generatedBy string
		completedAt sql.NullTime
	)
	err := row.Scan(&c.ID, &c.UserID, &c.PeriodKey, &level, &c.TemplateID, &c.Target, &c.TargetMetric,
		&c.RewardPoints, &c.Title, &c.Description, &c.Progress, &status, &generatedBy,
		&c.CreatedAt, &completedAt, &c.ExpiresAt)
	if err != nil {
		return nil, err
	}
	c.Level = models.Level(level)
	c.Status = models.ChallengeStatus(status)
	c.GeneratedBy = models.GeneratedBy(generatedBy)
	c.CreatedAt = c.CreatedAt.UTC()
	c.ExpiresAt = c.ExpiresAt.UTC()
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		c.CompletedAt = &t
	}
	return &c, nil
}

func (s *SQLStore) GetByPeriod(ctx context.Context, userID, periodKey string) (*models.ChallengeResult, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT `+challengeColumns+`
		FROM challenges
		WHERE user_id = ? AND period_key = ?`), userID, periodKey)
	c, err := scanChallenge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return c, nil
}

func (s *SQLStore) Create(ctx context.Context, c *models.ChallengeResult) (*models.ChallengeResult, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	var completedAt any
	if c.CompletedAt != nil {
		completedAt = c.CompletedAt.UTC()
	}
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO challenges (`+challengeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, period_key) DO NOTHING`),
		c.ID, c.UserID, c.PeriodKey, string(c.Level), c.TemplateID, c.Target, c.TargetMetric,
		c.RewardPoints, c.Title, c.Description, c.Progress, string(c.Status), string(c.GeneratedBy),
		c.CreatedAt.UTC(), completedAt, c.ExpiresAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("create challenge: %w", err)
	}
	return s.GetByPeriod(ctx, c.UserID, c.PeriodKey)
}

func (s *SQLStore) IncrementProgress(ctx context.Context, userID, periodKey string, delta int, now time.Time) (*models.ChallengeResult, error) {
	if delta <= 0 {
		return nil, fmt.Errorf("increment progress: delta must be positive, got %d", delta)
	}
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`
		UPDATE challenges SET
			progress = CASE WHEN progress + ? >= target THEN target ELSE progress + ? END,
			status = CASE WHEN progress + ? >= target THEN 'completed' ELSE status END,
			completed_at = CASE WHEN progress + ? >= target THEN ? ELSE completed_at END
		WHERE user_id = ? AND period_key = ? AND status = 'active'`),
		delta, delta, delta, delta, now.UTC(), userID, periodKey)
	if err != nil {
		return nil, fmt.Errorf("increment progress: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("increment progress: %w", err)
	}

	c, err := s.GetByPeriod(ctx, userID, periodKey)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return c, ErrNotActive
	}
	return c, nil
}

func (s *SQLStore) ExpireStale(ctx context.Context, userID string, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`
		UPDATE challenges SET status = 'expired'
		WHERE user_id = ? AND status = 'active' AND expires_at <= ?`),
		userID, now.UTC().Truncate(time.Second))
	if err != nil {
		return 0, fmt.Errorf("expire challenges: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire challenges: %w", err)
	}
	return n, nil
}
