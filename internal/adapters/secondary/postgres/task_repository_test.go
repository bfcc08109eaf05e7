package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/taskboard-backend/internal/core/domain"
	"github.com/lorrc/taskboard-backend/internal/core/errors"
)

func newSeededTask(t *testing.T, s seed, title string) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(domain.TaskParams{
		OrganizationID: s.OrgID,
		TeamID:         s.TeamID,
		Title:          title,
		CreatedBy:      s.MemberID,
	})
	require.NoError(t, err)
	return task
}

func TestTaskRepository_CreateGetList(t *testing.T) {
	s := seedBoard(t)
	ctx := context.Background()
	repo := NewTaskRepository(testPool)

	first, err := repo.Create(ctx, newSeededTask(t, s, "Write migration"))
	require.NoError(t, err)
	second, err := repo.Create(ctx, newSeededTask(t, s, "Review migration"))
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusTodo, first.Status)
	assert.Nil(t, first.EpicID)
	assert.Nil(t, first.UpdatedAt)

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write migration", got.Title)
	assert.Equal(t, s.TeamID, got.TeamID)

	tasks, err := repo.ListByTeam(ctx, s.TeamID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, first.ID, tasks[0].ID)
	assert.Equal(t, second.ID, tasks[1].ID)

	empty, err := repo.ListByTeam(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTaskRepository_Update(t *testing.T) {
	s := seedBoard(t)
	ctx := context.Background()
	repo := NewTaskRepository(testPool)

	task, err := repo.Create(ctx, newSeededTask(t, s, "Draft"))
	require.NoError(t, err)

	status := domain.TaskStatusInProgress
	require.NoError(t, task.Apply(domain.TaskChanges{Status: &status}))

	updated, err := repo.Update(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, updated.Status)
	require.NotNil(t, updated.UpdatedAt)

	missing := *task
	missing.ID = uuid.NewString()
	_, err = repo.Update(ctx, &missing)
	assert.ErrorIs(t, err, errors.ErrTaskNotFound)
}

func TestTaskRepository_Delete(t *testing.T) {
	s := seedBoard(t)
	ctx := context.Background()
	repo := NewTaskRepository(testPool)

	task, err := repo.Create(ctx, newSeededTask(t, s, "Temporary"))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, task.ID))
	assert.ErrorIs(t, repo.Delete(ctx, task.ID), errors.ErrTaskNotFound)

	_, err = repo.GetByID(ctx, task.ID)
	assert.ErrorIs(t, err, errors.ErrTaskNotFound)
	_, err = repo.GetByID(ctx, "garbage")
	assert.ErrorIs(t, err, errors.ErrTaskNotFound)
}

func TestTxRunner_RollsBack(t *testing.T) {
	s := seedBoard(t)
	ctx := context.Background()
	repo := NewTaskRepository(testPool)
	tm := NewTxRunner(testPool)

	var createdID string
	err := tm.Run(ctx, func(ctx context.Context) error {
		created, err := repo.Create(ctx, newSeededTask(t, s, "Rolled back"))
		if err != nil {
			return err
		}
		createdID = created.ID
		return errors.ErrConflict
	})
	require.ErrorIs(t, err, errors.ErrConflict)

	_, err = repo.GetByID(ctx, createdID)
	assert.ErrorIs(t, err, errors.ErrTaskNotFound)
}
