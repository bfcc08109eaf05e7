package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/taskboard-backend/internal/core/domain"
	apperrors "github.com/lorrc/taskboard-backend/internal/core/errors"
	"github.com/lorrc/taskboard-backend/internal/core/ports"
)

const taskColumns = `id::text, organization_id::text, team_id::text, epic_id::text,
	title, description, status, created_by::text, created_at, updated_at`

// TaskRepository is the secondary adapter for task persistence.
type TaskRepository struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

var _ ports.TaskRepository = (*TaskRepository)(nil)

// NewTaskRepository creates a new task repository.
func NewTaskRepository(pool *pgxpool.Pool) ports.TaskRepository {
	return &TaskRepository{
		pool: pool,
		tx:   NewTxRunner(pool),
	}
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		t      domain.Task
		status string
	)
	if err := row.Scan(
		&t.ID, &t.OrganizationID, &t.TeamID, &t.EpicID,
		&t.Title, &t.Description, &status, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.Status = domain.TaskStatus(status)
	return &t, nil
}

func taskLookupErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) || invalidID(err) {
		return apperrors.ErrTaskNotFound
	}
	return err
}

// Create persists a new task entity.
func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO tasks (id, organization_id, team_id, epic_id, title, description, status, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+taskColumns,
		task.ID, task.OrganizationID, task.TeamID, task.EpicID,
		task.Title, task.Description, string(task.Status), task.CreatedBy, task.CreatedAt,
	)
	created, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetByID retrieves a single task.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	task, err := scanTask(row)
	if err != nil {
		return nil, taskLookupErr(err)
	}
	return task, nil
}

// ListByTeam returns a team's tasks, oldest first.
func (r *TaskRepository) ListByTeam(ctx context.Context, teamID string) ([]*domain.Task, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE team_id = $1 ORDER BY created_at, id`, teamID)
	if err != nil {
		if invalidID(err) {
			return []*domain.Task{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	tasks := []*domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		if invalidID(err) {
			return []*domain.Task{}, nil
		}
		return nil, err
	}
	return tasks, nil
}

// Update writes the mutable fields of a task. The row is locked first so a
// concurrent delete surfaces as ErrTaskNotFound.
func (r *TaskRepository) Update(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	var updated *domain.Task
	err := r.tx.Run(ctx, func(ctx context.Context) error {
		db := conn(ctx, r.pool)

		var id string
		if err := db.QueryRow(ctx, `SELECT id::text FROM tasks WHERE id = $1 FOR UPDATE`, task.ID).Scan(&id); err != nil {
			return taskLookupErr(err)
		}

		row := db.QueryRow(ctx, `
			UPDATE tasks
			SET title = $2, description = $3, status = $4, epic_id = $5, updated_at = $6
			WHERE id = $1
			RETURNING `+taskColumns,
			task.ID, task.Title, task.Description, string(task.Status), task.EpicID, task.UpdatedAt,
		)
		var err error
		updated, err = scanTask(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a task.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return taskLookupErr(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrTaskNotFound
	}
	return nil
}
