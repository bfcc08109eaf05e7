package services

import (
	"context"

	"github.com/lorrc/taskboard-backend/internal/core/domain"
	apperrors "github.com/lorrc/taskboard-backend/internal/core/errors"
	"github.com/lorrc/taskboard-backend/internal/core/ports"
)

// TaskService implements business logic for task management
type TaskService struct {
	taskRepo   ports.TaskRepository
	membership ports.MembershipService
	events     ports.EventPublisher
}

var _ ports.TaskService = (*TaskService)(nil)

// NewTaskService creates a new task service. events may be nil.
func NewTaskService(
	taskRepo ports.TaskRepository,
	membership ports.MembershipService,
	events ports.EventPublisher,
) ports.TaskService {
	return &TaskService{
		taskRepo:   taskRepo,
		membership: membership,
		events:     events,
	}
}

// CreateTask handles the use case for adding a task to a team board
func (s *TaskService) CreateTask(ctx context.Context, params ports.CreateTaskParams) (*domain.Task, error) {
	// 1. Authorization check
	if err := s.requireTeam(ctx, params.ActorID, params.TeamID); err != nil {
		return nil, err
	}

	// 2. Resolve the owning organization
	orgID, err := s.membership.TeamOrganization(ctx, params.TeamID)
	if err != nil {
		return nil, err
	}

	// 3. Create domain entity with validation
	task, err := domain.NewTask(domain.TaskParams{
		OrganizationID: orgID,
		TeamID:         params.TeamID,
		EpicID:         params.EpicID,
		Title:          params.Title,
		Description:    params.Description,
		Status:         params.Status,
		CreatedBy:      params.ActorID,
	})
	if err != nil {
		return nil, err
	}

	// 4. Persist
	created, err := s.taskRepo.Create(ctx, task)
	if err != nil {
		return nil, err
	}

	// 5. Notify connected clients
	if s.events != nil {
		s.events.TaskCreated(context.WithoutCancel(ctx), created.TeamID, created.OrganizationID, domain.TaskCreatedPayload{
			ID:        created.ID,
			Task:      created.Snapshot(),
			CreatedBy: params.ActorID,
		})
	}

	return created, nil
}

// GetTask retrieves a task the viewer's team can see
func (s *TaskService) GetTask(ctx context.Context, taskID, viewerID string) (*domain.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.requireTeam(ctx, viewerID, task.TeamID); err != nil {
		return nil, err
	}
	return task, nil
}

// ListTeamTasks returns the board of one team. It is the pull path clients
// use to resynchronize after a reconnect.
func (s *TaskService) ListTeamTasks(ctx context.Context, teamID, viewerID string) ([]*domain.Task, error) {
	if err := s.requireTeam(ctx, viewerID, teamID); err != nil {
		return nil, err
	}
	return s.taskRepo.ListByTeam(ctx, teamID)
}

// UpdateTask applies field changes to a task
func (s *TaskService) UpdateTask(ctx context.Context, params ports.UpdateTaskParams) (*domain.Task, error) {
	if params.Changes.IsEmpty() {
		return nil, apperrors.NewBadRequestError(apperrors.ErrBadRequest, "No changes supplied")
	}

	// 1. Fetch
	task, err := s.taskRepo.GetByID(ctx, params.TaskID)
	if err != nil {
		return nil, err
	}

	// 2. Authorization check against the task's team
	if err := s.requireTeam(ctx, params.ActorID, task.TeamID); err != nil {
		return nil, err
	}

	// 3. Apply (domain validates)
	if err := task.Apply(params.Changes); err != nil {
		return nil, err
	}

	// 4. Persist
	updated, err := s.taskRepo.Update(ctx, task)
	if err != nil {
		return nil, err
	}

	// 5. Notify connected clients
	if s.events != nil {
		s.events.TaskUpdated(context.WithoutCancel(ctx), updated.TeamID, updated.OrganizationID, domain.TaskUpdatedPayload{
			ID:        updated.ID,
			Status:    updated.Status,
			UpdatedBy: params.ActorID,
		})
	}

	return updated, nil
}

// DeleteTask removes a task from its board
func (s *TaskService) DeleteTask(ctx context.Context, taskID, actorID string) error {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if err := s.requireTeam(ctx, actorID, task.TeamID); err != nil {
		return err
	}

	if err := s.taskRepo.Delete(ctx, task.ID); err != nil {
		return err
	}

	if s.events != nil {
		s.events.TaskDeleted(context.WithoutCancel(ctx), task.TeamID, task.OrganizationID, domain.TaskDeletedPayload{
			ID:        task.ID,
			DeletedBy: actorID,
		})
	}
	return nil
}

func (s *TaskService) requireTeam(ctx context.Context, userID, teamID string) error {
	if teamID == "" {
		return apperrors.ErrTeamRequired
	}
	ok, err := s.membership.CanAccessTeam(ctx, userID, teamID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrForbidden
	}
	return nil
}
