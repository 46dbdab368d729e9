package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGTracker implements Tracker on Postgres, for deployments that need
// progress to survive process restarts.
type PGTracker struct {
	DB *sql.DB
}

// Update upserts a non-terminal step transition. Terminal rows are left
// untouched.
func (t *PGTracker) Update(ctx context.Context, analysisID string, step int, stepName string, pct int) error {
	const query = `
INSERT INTO analysis_progress (id, status, current_step, total_steps, step_name, progress, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status,
    current_step = EXCLUDED.current_step,
    step_name = EXCLUDED.step_name,
    progress = EXCLUDED.progress,
    updated_at = EXCLUDED.updated_at
WHERE analysis_progress.status = 'processing'`
	_, err := t.DB.ExecContext(ctx, query, analysisID, StatusProcessing, step, TotalSteps, stepName, pct, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update progress id=%s: %w", analysisID, err)
	}
	return nil
}

// Complete upserts the successful terminal state with the result payload.
// A row that is already terminal keeps its first terminal state.
func (t *PGTracker) Complete(ctx context.Context, analysisID string, result FilmAnalysis) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result id=%s: %w", analysisID, err)
	}
	const query = `
INSERT INTO analysis_progress (id, status, current_step, total_steps, step_name, progress, result, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status,
    current_step = EXCLUDED.current_step,
    step_name = EXCLUDED.step_name,
    progress = EXCLUDED.progress,
    result = EXCLUDED.result,
    error_message = NULL,
    updated_at = EXCLUDED.updated_at
WHERE analysis_progress.status = 'processing'`
	_, err = t.DB.ExecContext(ctx, query, analysisID, StatusCompleted, TotalSteps, TotalSteps, "Analysis Complete", 100, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("complete progress id=%s: %w", analysisID, err)
	}
	return nil
}

// Fail upserts the failed terminal state. A row that is already terminal
// keeps its first terminal state.
func (t *PGTracker) Fail(ctx context.Context, analysisID string, message string) error {
	const query = `
INSERT INTO analysis_progress (id, status, current_step, total_steps, step_name, progress, error_message, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status,
    current_step = EXCLUDED.current_step,
    step_name = EXCLUDED.step_name,
    progress = EXCLUDED.progress,
    result = NULL,
    error_message = EXCLUDED.error_message,
    updated_at = EXCLUDED.updated_at
WHERE analysis_progress.status = 'processing'`
	_, err := t.DB.ExecContext(ctx, query, analysisID, StatusFailed, 0, TotalSteps, "Analysis Failed", 0, message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("fail progress id=%s: %w", analysisID, err)
	}
	return nil
}

// Get returns the progress row, treating entries past retention the same as
// missing ones.
func (t *PGTracker) Get(ctx context.Context, analysisID string) (Progress, error) {
	const query = `
SELECT status, current_step, total_steps, step_name, progress, result, error_message, updated_at
FROM analysis_progress
WHERE id = $1`
	var (
		p         Progress
		result    sql.NullString
		errMsg    sql.NullString
		updatedAt time.Time
	)
	err := t.DB.QueryRowContext(ctx, query, analysisID).Scan(
		&p.Status, &p.CurrentStep, &p.TotalSteps, &p.StepName, &p.Progress, &result, &errMsg, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Progress{}, ErrNotFound
	}
	if err != nil {
		return Progress{}, fmt.Errorf("get progress id=%s: %w", analysisID, err)
	}
	p.UpdatedAt = updatedAt
	if p.Terminal() && time.Since(updatedAt) > retention {
		return Progress{}, ErrNotFound
	}
	if result.Valid {
		var fa FilmAnalysis
		if err := json.Unmarshal([]byte(result.String), &fa); err != nil {
			return Progress{}, fmt.Errorf("decode result id=%s: %w", analysisID, err)
		}
		p.Result = &fa
	}
	if errMsg.Valid {
		p.Error = errMsg.String
	}
	return p, nil
}

// PurgeExpired deletes terminal rows older than the retention window and
// returns how many were removed.
func (t *PGTracker) PurgeExpired(ctx context.Context) (int64, error) {
	const query = `
DELETE FROM analysis_progress
WHERE status IN ('completed', 'failed') AND updated_at < $1`
	res, err := t.DB.ExecContext(ctx, query, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purge progress: %w", err)
	}
	return res.RowsAffected()
}

var _ Tracker = (*PGTracker)(nil)
