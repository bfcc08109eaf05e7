package ports

import (
	"context"

	"github.com/lorrc/taskboard-backend/internal/core/domain"
)

// AuthService defines the port for authentication business logic.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*domain.User, error)
}

// MembershipService answers whether a user may see a team or organization.
type MembershipService interface {
	CanAccessTeam(ctx context.Context, userID, teamID string) (bool, error)
	CanAccessOrganization(ctx context.Context, userID, orgID string) (bool, error)
	TeamOrganization(ctx context.Context, teamID string) (string, error)
	CanJoinRoom(ctx context.Context, userID, room string) (bool, error)
}

// CreateTaskParams defines the input for creating a task.
type CreateTaskParams struct {
	TeamID      string
	EpicID      *string
	Title       string
	Description string
	Status      domain.TaskStatus
	ActorID     string
}

// UpdateTaskParams defines the input for changing a task.
type UpdateTaskParams struct {
	TaskID  string
	ActorID string
	Changes domain.TaskChanges
}

// UpdateEpicParams defines the input for changing an epic.
type UpdateEpicParams struct {
	EpicID  string
	ActorID string
	Changes domain.EpicChanges
}

// TaskService defines the core business operations for managing tasks.
type TaskService interface {
	CreateTask(ctx context.Context, params CreateTaskParams) (*domain.Task, error)
	GetTask(ctx context.Context, taskID, viewerID string) (*domain.Task, error)
	ListTeamTasks(ctx context.Context, teamID, viewerID string) ([]*domain.Task, error)
	UpdateTask(ctx context.Context, params UpdateTaskParams) (*domain.Task, error)
	DeleteTask(ctx context.Context, taskID, actorID string) error
}

// EpicService defines the port for epic-related business logic.
type EpicService interface {
	GetEpic(ctx context.Context, epicID, viewerID string) (*domain.Epic, error)
	UpdateEpic(ctx context.Context, params UpdateEpicParams) (*domain.Epic, error)
}
