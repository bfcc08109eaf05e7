package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/lorrc/taskboard-backend/internal/core/errors"
)

const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 10000
)

// TaskStatus is the kanban column a task sits in.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusInReview   TaskStatus = "IN_REVIEW"
	TaskStatusDone       TaskStatus = "DONE"
)

// TaskStatuses lists every valid status in board order.
var TaskStatuses = []TaskStatus{
	TaskStatusTodo,
	TaskStatusInProgress,
	TaskStatusInReview,
	TaskStatusDone,
}

// IsValid reports whether s is a known status.
func (s TaskStatus) IsValid() bool {
	for _, known := range TaskStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Task is the core domain entity.
type Task struct {
	ID             string
	OrganizationID string
	TeamID         string
	EpicID         *string
	Title          string
	Description    string
	Status         TaskStatus
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

// TaskParams holds the input for NewTask.
type TaskParams struct {
	OrganizationID string
	TeamID         string
	EpicID         *string
	Title          string
	Description    string
	Status         TaskStatus
	CreatedBy      string
}

// NewTask validates params and builds a task with a fresh ID.
func NewTask(params TaskParams) (*Task, error) {
	errs := apperrors.NewValidationErrors()

	title := strings.TrimSpace(params.Title)
	if title == "" {
		errs.Add("title", "Title is required")
	} else if len(title) > MaxTitleLength {
		errs.Add("title", "Title must be 255 characters or less")
	}
	if len(params.Description) > MaxDescriptionLength {
		errs.Add("description", "Description is too long")
	}
	if params.TeamID == "" {
		errs.Add("teamId", "Team is required")
	}
	if params.OrganizationID == "" {
		errs.Add("organizationId", "Organization is required")
	}
	if params.CreatedBy == "" {
		errs.Add("createdBy", "Creator is required")
	}

	status := params.Status
	if status == "" {
		status = TaskStatusTodo
	} else if !status.IsValid() {
		errs.Add("status", "Invalid status")
	}

	if errs.HasErrors() {
		return nil, errs
	}

	return &Task{
		ID:             uuid.NewString(),
		OrganizationID: params.OrganizationID,
		TeamID:         params.TeamID,
		EpicID:         params.EpicID,
		Title:          title,
		Description:    params.Description,
		Status:         status,
		CreatedBy:      params.CreatedBy,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// TaskChanges carries the optional fields of a task update.
type TaskChanges struct {
	Title       *string
	Description *string
	Status      *TaskStatus
}

// IsEmpty reports whether no field is set.
func (c TaskChanges) IsEmpty() bool {
	return c.Title == nil && c.Description == nil && c.Status == nil
}

// Apply validates and applies changes, bumping UpdatedAt.
func (t *Task) Apply(changes TaskChanges) error {
	if changes.Title != nil {
		title := strings.TrimSpace(*changes.Title)
		if title == "" {
			return apperrors.ErrTitleRequired
		}
		if len(title) > MaxTitleLength {
			return apperrors.ErrTitleTooLong
		}
		t.Title = title
	}
	if changes.Description != nil {
		if len(*changes.Description) > MaxDescriptionLength {
			return apperrors.ErrDescriptionTooLong
		}
		t.Description = *changes.Description
	}
	if changes.Status != nil {
		if !changes.Status.IsValid() {
			return apperrors.ErrInvalidStatus
		}
		t.Status = *changes.Status
	}

	now := time.Now().UTC()
	t.UpdatedAt = &now
	return nil
}
