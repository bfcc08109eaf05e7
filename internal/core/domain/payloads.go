package domain

import "time"

type TaskUpdatedPayload struct {
	ID             string     `json:"id"`
	TeamID         string     `json:"teamId"`
	OrganizationID string     `json:"organizationId"`
	Status         TaskStatus `json:"status,omitempty"`
	UpdatedBy      string     `json:"updatedBy,omitempty"`
}

// TaskSnapshot is the client-facing view of a task.
type TaskSnapshot struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organizationId"`
	TeamID         string     `json:"teamId"`
	EpicID         *string    `json:"epicId,omitempty"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         TaskStatus `json:"status"`
	CreatedBy      string     `json:"createdBy"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

// Snapshot returns the client-facing view of t.
func (t *Task) Snapshot() TaskSnapshot {
	return TaskSnapshot{
		ID:             t.ID,
		OrganizationID: t.OrganizationID,
		TeamID:         t.TeamID,
		EpicID:         t.EpicID,
		Title:          t.Title,
		Description:    t.Description,
		Status:         t.Status,
		CreatedBy:      t.CreatedBy,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

type TaskCreatedPayload struct {
	ID             string       `json:"id"`
	TeamID         string       `json:"teamId"`
	OrganizationID string       `json:"organizationId"`
	Task           TaskSnapshot `json:"task"`
	CreatedBy      string       `json:"createdBy,omitempty"`
}

type TaskDeletedPayload struct {
	ID             string `json:"id"`
	TeamID         string `json:"teamId"`
	OrganizationID string `json:"organizationId"`
	DeletedBy      string `json:"deletedBy,omitempty"`
}

type EpicUpdatedPayload struct {
	ID             string     `json:"id"`
	TeamID         *string    `json:"teamId,omitempty"`
	OrganizationID string     `json:"organizationId"`
	Title          string     `json:"title,omitempty"`
	Status         TaskStatus `json:"status,omitempty"`
	UpdatedBy      string     `json:"updatedBy,omitempty"`
}

// UserJoinedPayload is sent to the rest of a team room when someone joins it.
type UserJoinedPayload struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	TeamID   string `json:"teamId"`
}

type UserLeftPayload struct {
	UserID string `json:"userId"`
	TeamID string `json:"teamId"`
}

// JoinDeniedPayload tells a client why a join was refused.
type JoinDeniedPayload struct {
	Room   string `json:"room"`
	Reason string `json:"reason"`
}
