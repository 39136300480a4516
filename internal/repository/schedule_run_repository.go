package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-master-scheduler/internal/models"
)

const scheduleRunColumns = `id, parent_run_id, status, schedule_type, seed, progress, config, result, error_message, created_by, created_at, finished_at`

// ScheduleRunRepository persists master schedule runs.
type ScheduleRunRepository struct {
	db *sqlx.DB
}

// NewScheduleRunRepository constructs the repository.
func NewScheduleRunRepository(db *sqlx.DB) *ScheduleRunRepository {
	return &ScheduleRunRepository{db: db}
}

// Create inserts a run row with generated defaults.
func (r *ScheduleRunRepository) Create(ctx context.Context, run *models.ScheduleRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.RunStatusQueued
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO schedule_runs (` + scheduleRunColumns + `)
VALUES (:id, :parent_run_id, :status, :schedule_type, :seed, :progress, :config, :result, :error_message, :created_by, :created_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create schedule run: %w", err)
	}
	return nil
}

// GetByID returns a run by identifier. sql.ErrNoRows is returned unwrapped
// so callers can map it.
func (r *ScheduleRunRepository) GetByID(ctx context.Context, id string) (*models.ScheduleRun, error) {
	const query = `SELECT ` + scheduleRunColumns + ` FROM schedule_runs WHERE id = $1`
	var run models.ScheduleRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns runs matching the filter, newest first, together with the total count.
func (r *ScheduleRunRepository) List(ctx context.Context, filter models.ScheduleRunFilter) ([]models.ScheduleRun, int, error) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ScheduleType != "" {
		args = append(args, filter.ScheduleType)
		conditions = append(conditions, fmt.Sprintf("schedule_type = $%d", len(args)))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM schedule_runs"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedule runs: %w", err)
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	// Listings omit the result column.
	query := fmt.Sprintf(`SELECT id, parent_run_id, status, schedule_type, seed, progress, config, error_message, created_by, created_at, finished_at
FROM schedule_runs%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, where, size, (page-1)*size)

	var runs []models.ScheduleRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedule runs: %w", err)
	}
	return runs, total, nil
}

// Update persists the provided changes for a run.
func (r *ScheduleRunRepository) Update(ctx context.Context, id string, params models.ScheduleRunUpdate) error {
	set := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)
	argPos := 1

	if params.Status != nil {
		set = append(set, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *params.Status)
		argPos++
	}
	if params.Progress != nil {
		set = append(set, fmt.Sprintf("progress = $%d", argPos))
		args = append(args, *params.Progress)
		argPos++
	}
	if len(params.Result) > 0 {
		set = append(set, fmt.Sprintf("result = $%d", argPos))
		args = append(args, params.Result)
		argPos++
	}
	if params.ErrorMessage != nil {
		set = append(set, fmt.Sprintf("error_message = $%d", argPos))
		args = append(args, *params.ErrorMessage)
		argPos++
	}
	if params.FinishedAt != nil {
		set = append(set, fmt.Sprintf("finished_at = $%d", argPos))
		args = append(args, *params.FinishedAt)
		argPos++
	}

	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE schedule_runs SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update schedule run: %w", err)
	}
	return nil
}

// Delete removes a run. It reports whether a row existed.
func (r *ScheduleRunRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedule_runs WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete schedule run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete schedule run: %w", err)
	}
	return affected > 0, nil
}

// ListQueued fetches runs still waiting for a worker (used for cold start recovery).
func (r *ScheduleRunRepository) ListQueued(ctx context.Context, limit int) ([]models.ScheduleRun, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT ` + scheduleRunColumns + `
FROM schedule_runs WHERE status IN ('QUEUED', 'PROCESSING') ORDER BY created_at ASC LIMIT $1`
	var runs []models.ScheduleRun
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("list queued schedule runs: %w", err)
	}
	return runs, nil
}
