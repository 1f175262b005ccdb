package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"assetforge/internal/domain"
)

// TaskRepositoryPG implements domain.TaskRepository using PostgreSQL.
type TaskRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewTaskRepository creates a new external task repository backed by PostgreSQL.
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepositoryPG {
	return &TaskRepositoryPG{pool: pool}
}

const taskColumns = `
task_id, asset_id, status, progress,
COALESCE(result_ref, ''), COALESCE(error_detail, ''),
created_at, updated_at`

func scanTask(row pgx.Row) (*domain.ExternalTask, error) {
	var t domain.ExternalTask
	if err := row.Scan(
		&t.TaskID, &t.AssetID, &t.Status, &t.Progress,
		&t.ResultRef, &t.ErrorDetail,
		&t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Create inserts a new task tracker row.
func (r *TaskRepositoryPG) Create(ctx context.Context, task *domain.ExternalTask) error {
	query := `
INSERT INTO external_tasks (task_id, asset_id, status, progress)
VALUES ($1, $2, $3, $4)
RETURNING created_at, updated_at;
`
	return r.pool.QueryRow(ctx, query, task.TaskID, task.AssetID, task.Status, task.Progress).
		Scan(&task.CreatedAt, &task.UpdatedAt)
}

// GetByTaskID fetches a task tracker by the provider task id.
func (r *TaskRepositoryPG) GetByTaskID(ctx context.Context, taskID string) (*domain.ExternalTask, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM external_tasks WHERE task_id = $1;`, taskID)
	return scanTask(row)
}

// RecordProgress updates the provider status string and merges progress
// monotonically. GREATEST keeps a delayed notification from rolling a
// newer value back.
func (r *TaskRepositoryPG) RecordProgress(ctx context.Context, taskID, status string, progress int) error {
	query := `
UPDATE external_tasks
SET status = $2,
    progress = GREATEST(progress, $3),
    updated_at = NOW()
WHERE task_id = $1;
`
	tag, err := r.pool.Exec(ctx, query, taskID, status, progress)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RecordResult marks the task succeeded and stores the result reference.
func (r *TaskRepositoryPG) RecordResult(ctx context.Context, taskID, status, resultRef string) error {
	query := `
UPDATE external_tasks
SET status = $2,
    progress = 100,
    result_ref = NULLIF($3, ''),
    updated_at = NOW()
WHERE task_id = $1;
`
	tag, err := r.pool.Exec(ctx, query, taskID, status, resultRef)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RecordFailure marks the task failed and stores the error detail.
func (r *TaskRepositoryPG) RecordFailure(ctx context.Context, taskID, status, errorDetail string) error {
	query := `
UPDATE external_tasks
SET status = $2,
    error_detail = NULLIF($3, ''),
    updated_at = NOW()
WHERE task_id = $1;
`
	tag, err := r.pool.Exec(ctx, query, taskID, status, errorDetail)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListUnfinished returns tasks whose owning asset is still in flight.
func (r *TaskRepositoryPG) ListUnfinished(ctx context.Context, limit int) ([]domain.ExternalTask, error) {
	query := `
SELECT ` + taskColumns + `
FROM external_tasks t
WHERE EXISTS (
    SELECT 1 FROM assets a
    WHERE a.id = t.asset_id AND a.status IN ('pending', 'processing')
)
ORDER BY t.created_at ASC
LIMIT $1;
`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.ExternalTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

var _ domain.TaskRepository = (*TaskRepositoryPG)(nil)
