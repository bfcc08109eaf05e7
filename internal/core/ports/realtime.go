package ports

import (
	"context"

	"github.com/lorrc/taskboard-backend/internal/core/domain"
)

// EventPublisher announces committed changes to connected clients.
// Implementations never fail the caller because of delivery problems.
// Task events reach the team and organization rooms; EpicUpdated reaches
// the organization room and, for a team epic, the team room.
type EventPublisher interface {
	TaskUpdated(ctx context.Context, teamID, orgID string, payload domain.TaskUpdatedPayload)
	TaskCreated(ctx context.Context, teamID, orgID string, payload domain.TaskCreatedPayload)
	TaskDeleted(ctx context.Context, teamID, orgID string, payload domain.TaskDeletedPayload)
	EpicUpdated(ctx context.Context, orgID string, payload domain.EpicUpdatedPayload)
}

// EventBus carries room envelopes between instances.
type EventBus interface {
	Publish(ctx context.Context, env domain.Envelope) error
	Subscribe(fn func(domain.Envelope))
}

// RoomRouter delivers an envelope to the local members of its room.
type RoomRouter interface {
	Deliver(env domain.Envelope)
}
