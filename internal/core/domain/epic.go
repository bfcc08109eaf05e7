package domain

import (
	"strings"
	"time"

	apperrors "github.com/lorrc/taskboard-backend/internal/core/errors"
)

// Epic groups tasks inside an organization, optionally owned by one team.
type Epic struct {
	ID             string
	OrganizationID string
	TeamID         *string
	Title          string
	Status         TaskStatus
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

// EpicChanges carries the optional fields of an epic update.
type EpicChanges struct {
	Title  *string
	Status *TaskStatus
}

// Apply validates and applies changes, bumping UpdatedAt.
func (e *Epic) Apply(changes EpicChanges) error {
	if changes.Title != nil {
		title := strings.TrimSpace(*changes.Title)
		if title == "" {
			return apperrors.ErrTitleRequired
		}
		if len(title) > MaxTitleLength {
			return apperrors.ErrTitleTooLong
		}
		e.Title = title
	}
	if changes.Status != nil {
		if !changes.Status.IsValid() {
			return apperrors.ErrInvalidStatus
		}
		e.Status = *changes.Status
	}

	now := time.Now().UTC()
	e.UpdatedAt = &now
	return nil
}
