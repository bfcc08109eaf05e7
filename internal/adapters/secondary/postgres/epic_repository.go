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

const epicColumns = `id::text, organization_id::text, team_id::text, title, status, created_at, updated_at`

// EpicRepository is the secondary adapter for epic persistence.
type EpicRepository struct {
	pool *pgxpool.Pool
}

var _ ports.EpicRepository = (*EpicRepository)(nil)

func NewEpicRepository(pool *pgxpool.Pool) ports.EpicRepository {
	return &EpicRepository{pool: pool}
}

func scanEpic(row pgx.Row) (*domain.Epic, error) {
	var (
		e      domain.Epic
		status string
	)
	if err := row.Scan(&e.ID, &e.OrganizationID, &e.TeamID, &e.Title, &status, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || invalidID(err) {
			return nil, apperrors.ErrEpicNotFound
		}
		return nil, err
	}
	e.Status = domain.TaskStatus(status)
	return &e, nil
}

func (r *EpicRepository) GetByID(ctx context.Context, id string) (*domain.Epic, error) {
	return scanEpic(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+epicColumns+` FROM epics WHERE id = $1`, id))
}

func (r *EpicRepository) Update(ctx context.Context, epic *domain.Epic) (*domain.Epic, error) {
	return scanEpic(conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE epics
		SET title = $2, status = $3, updated_at = $4
		WHERE id = $1
		RETURNING `+epicColumns,
		epic.ID, epic.Title, string(epic.Status), epic.UpdatedAt,
	))
}
