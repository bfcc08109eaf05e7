package services

import (
	"context"
	"log/slog"

	"github.com/lorrc/taskboard-backend/internal/core/domain"
	"github.com/lorrc/taskboard-backend/internal/core/ports"
)

// Publisher turns committed changes into room envelopes on the event bus.
// A nil *Publisher, or one without a bus, silently drops everything.
type Publisher struct {
	bus    ports.EventBus
	origin string
	logger *slog.Logger
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a publisher that stamps envelopes with origin.
func NewPublisher(bus ports.EventBus, origin string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		bus:    bus,
		origin: origin,
		logger: logger.With("component", "event_publisher"),
	}
}

// TaskUpdated notifies the team and organization rooms of a task change.
func (p *Publisher) TaskUpdated(ctx context.Context, teamID, orgID string, payload domain.TaskUpdatedPayload) {
	payload.TeamID = teamID
	payload.OrganizationID = orgID
	p.publish(ctx, domain.EventTaskUpdated, payload, domain.TeamRoom(teamID), domain.OrganizationRoom(orgID))
}

// TaskCreated notifies the team and organization rooms of a new task.
func (p *Publisher) TaskCreated(ctx context.Context, teamID, orgID string, payload domain.TaskCreatedPayload) {
	payload.TeamID = teamID
	payload.OrganizationID = orgID
	p.publish(ctx, domain.EventTaskCreated, payload, domain.TeamRoom(teamID), domain.OrganizationRoom(orgID))
}

// TaskDeleted notifies the team and organization rooms of a removed task.
func (p *Publisher) TaskDeleted(ctx context.Context, teamID, orgID string, payload domain.TaskDeletedPayload) {
	payload.TeamID = teamID
	payload.OrganizationID = orgID
	p.publish(ctx, domain.EventTaskDeleted, payload, domain.TeamRoom(teamID), domain.OrganizationRoom(orgID))
}

// EpicUpdated notifies the organization room, and the team room when the
// epic belongs to a team.
func (p *Publisher) EpicUpdated(ctx context.Context, orgID string, payload domain.EpicUpdatedPayload) {
	payload.OrganizationID = orgID
	rooms := []string{domain.OrganizationRoom(orgID)}
	if payload.TeamID != nil && *payload.TeamID != "" {
		rooms = append(rooms, domain.TeamRoom(*payload.TeamID))
	}
	p.publish(ctx, domain.EventEpicUpdated, payload, rooms...)
}

func (p *Publisher) publish(ctx context.Context, kind domain.EventKind, payload any, rooms ...string) {
	if p == nil || p.bus == nil {
		return
	}

	event, err := domain.NewEvent(kind, payload)
	if err != nil {
		p.logger.Error("failed to encode event", "event", kind, "error", err)
		return
	}

	for _, room := range rooms {
		if room == "" {
			continue
		}
		env := domain.Envelope{Origin: p.origin, Room: room, Event: event}
		if err := p.bus.Publish(ctx, env); err != nil {
			p.logger.Warn("failed to publish event",
				"event", kind,
				"room", room,
				"error", err,
			)
		}
	}
}
