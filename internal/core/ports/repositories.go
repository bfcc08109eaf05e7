package ports

import (
	"context"

	"github.com/lorrc/taskboard-backend/internal/core/domain"
)

// UserRepository defines the persistence port for users.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// TaskRepository defines the persistence port for tasks.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	ListByTeam(ctx context.Context, teamID string) ([]*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) (*domain.Task, error)
	Delete(ctx context.Context, id string) error
}

// EpicRepository defines the persistence port for epics.
type EpicRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Epic, error)
	Update(ctx context.Context, epic *domain.Epic) (*domain.Epic, error)
}

// MembershipRepository answers membership questions from storage.
type MembershipRepository interface {
	IsTeamMember(ctx context.Context, userID, teamID string) (bool, error)
	IsOrganizationMember(ctx context.Context, userID, orgID string) (bool, error)
	// GetTeamOrganization returns the organization owning teamID, or ErrTeamNotFound.
	GetTeamOrganization(ctx context.Context, teamID string) (string, error)
}
