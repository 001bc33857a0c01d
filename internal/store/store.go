// Package store persists action plans in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"

	"github.com/capitalize-ai/growth-advisor/internal/model"
)

var (
	// ErrNotFound is returned for missing plans and plans owned by someone
	// else.
	ErrNotFound = errors.New("action plan not found")

	// ErrStepOutOfRange is returned when a step index does not exist.
	ErrStepOutOfRange = errors.New("step index out of range")
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS action_plans (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		business_area TEXT NOT NULL,
		goal TEXT NOT NULL,
		current_situation TEXT NOT NULL DEFAULT '',
		context TEXT NOT NULL DEFAULT '',
		steps TEXT NOT NULL,
		is_completed INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		completed_at TEXT
	);`,
	`CREATE INDEX IF NOT EXISTS idx_action_plans_user_created
		ON action_plans (user_id, created_at DESC);`,
}

const planColumns = `id, user_id, stage, business_area, goal, current_situation, context,
	steps, is_completed, created_at, updated_at, completed_at`

// PlanStore is a SQLite-backed plan repository. Every operation is scoped
// to the owning user.
type PlanStore struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a PlanStore.
type Option func(*PlanStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *PlanStore) {
		s.now = now
	}
}

// Open opens (and if needed creates) the database at path.
func Open(path string, opts ...Option) (*PlanStore, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps :memory:
	// databases alive across calls.
	db.SetMaxOpenConns(1)

	for _, q := range schema {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	s := &PlanStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database.
func (s *PlanStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *PlanStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create stores a new plan, assigning its id and timestamps.
func (s *PlanStore) Create(ctx context.Context, plan *model.ActionPlan) error {
	if plan.UserID == "" {
		return errors.New("action plan has no owner")
	}

	now := s.now().UTC()
	plan.ID = uuid.Must(uuid.NewV7()).String()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	if plan.Steps == nil {
		plan.Steps = []model.ActionStep{}
	}
	if plan.IsCompleted && plan.CompletedAt == nil {
		plan.CompletedAt = &now
	}

	steps, err := json.Marshal(plan.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode steps: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO action_plans (`+planColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.ID, plan.UserID, plan.Stage, plan.BusinessArea, plan.Goal, plan.CurrentSituation, plan.Context,
		string(steps), plan.IsCompleted, formatTime(now), formatTime(now), formatTimePtr(plan.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert action plan: %w", err)
	}
	return nil
}

// List returns a user's plans, newest first, with the total count.
func (s *PlanStore) List(ctx context.Context, userID string, limit, offset int) ([]model.ActionPlan, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM action_plans WHERE user_id = ?`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count action plans: %w", err)
	}

	if limit <= 0 {
		limit = -1 // no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+planColumns+` FROM action_plans WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query action plans: %w", err)
	}
	defer rows.Close()

	plans := []model.ActionPlan{}
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, 0, err
		}
		plans = append(plans, *plan)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read action plans: %w", err)
	}
	return plans, total, nil
}

// Get returns one plan.
func (s *PlanStore) Get(ctx context.Context, userID, id string) (*model.ActionPlan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM action_plans WHERE id = ? AND user_id = ?`, id, userID)
	return scanPlan(row)
}

// Update applies a partial update. Setting is_completed stamps or clears
// completed_at; it does not touch the steps.
func (s *PlanStore) Update(ctx context.Context, userID, id string, req model.UpdatePlanRequest) (*model.ActionPlan, error) {
	return s.modify(ctx, userID, id, func(plan *model.ActionPlan, now time.Time) error {
		if req.Goal != nil {
			plan.Goal = *req.Goal
		}
		if req.CurrentSituation != nil {
			plan.CurrentSituation = *req.CurrentSituation
		}
		if req.Context != nil {
			plan.Context = *req.Context
		}
		if req.Steps != nil {
			plan.Steps = *req.Steps
			if plan.Steps == nil {
				plan.Steps = []model.ActionStep{}
			}
		}
		if req.IsCompleted != nil {
			setPlanCompleted(plan, *req.IsCompleted, now)
		}
		return nil
	})
}

// MarkStepCompleted marks the step at index complete. No other step is
// modified.
func (s *PlanStore) MarkStepCompleted(ctx context.Context, userID, id string, index int) (*model.ActionPlan, error) {
	return s.modify(ctx, userID, id, func(plan *model.ActionPlan, now time.Time) error {
		if index < 0 || index >= len(plan.Steps) {
			return fmt.Errorf("%w: %d of %d", ErrStepOutOfRange, index, len(plan.Steps))
		}
		completedAt := now
		plan.Steps[index].Completed = true
		plan.Steps[index].CompletedAt = &completedAt
		return nil
	})
}

// MarkPlanCompleted marks the whole plan complete, independent of its
// steps.
func (s *PlanStore) MarkPlanCompleted(ctx context.Context, userID, id string) (*model.ActionPlan, error) {
	return s.modify(ctx, userID, id, func(plan *model.ActionPlan, now time.Time) error {
		setPlanCompleted(plan, true, now)
		return nil
	})
}

// Delete removes a plan.
func (s *PlanStore) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM action_plans WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete action plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete action plan: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func setPlanCompleted(plan *model.ActionPlan, completed bool, now time.Time) {
	plan.IsCompleted = completed
	switch {
	case !completed:
		plan.CompletedAt = nil
	case plan.CompletedAt == nil:
		completedAt := now
		plan.CompletedAt = &completedAt
	}
}

// modify reads, changes and writes back one plan inside a transaction.
func (s *PlanStore) modify(ctx context.Context, userID, id string, fn func(*model.ActionPlan, time.Time) error) (*model.ActionPlan, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	plan, err := scanPlan(tx.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM action_plans WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := fn(plan, now); err != nil {
		return nil, err
	}
	plan.UpdatedAt = now

	steps, err := json.Marshal(plan.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to encode steps: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE action_plans SET goal = ?, current_situation = ?, context = ?, steps = ?,
			is_completed = ?, updated_at = ?, completed_at = ?
		WHERE id = ? AND user_id = ?`,
		plan.Goal, plan.CurrentSituation, plan.Context, string(steps),
		plan.IsCompleted, formatTime(now), formatTimePtr(plan.CompletedAt),
		id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update action plan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit action plan: %w", err)
	}
	return plan, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*model.ActionPlan, error) {
	var (
		plan                 model.ActionPlan
		steps                string
		createdAt, updatedAt string
		completedAt          sql.NullString
	)
	err := row.Scan(
		&plan.ID, &plan.UserID, &plan.Stage, &plan.BusinessArea, &plan.Goal,
		&plan.CurrentSituation, &plan.Context, &steps, &plan.IsCompleted,
		&createdAt, &updatedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan action plan: %w", err)
	}

	if err := json.Unmarshal([]byte(steps), &plan.Steps); err != nil {
		return nil, fmt.Errorf("failed to decode steps of plan %s: %w", plan.ID, err)
	}
	if plan.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if plan.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if completedAt.Valid {
		t, err := time.Parse(timeLayout, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse completed_at: %w", err)
		}
		plan.CompletedAt = &t
	}
	return &plan, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
