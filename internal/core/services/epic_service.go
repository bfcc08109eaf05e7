package services

import (
	"context"

	"github.com/lorrc/taskboard-backend/internal/core/domain"
	apperrors "github.com/lorrc/taskboard-backend/internal/core/errors"
	"github.com/lorrc/taskboard-backend/internal/core/ports"
)

type EpicService struct {
	epicRepo   ports.EpicRepository
	membership ports.MembershipService
	events     ports.EventPublisher
}

var _ ports.EpicService = (*EpicService)(nil)

func NewEpicService(
	epicRepo ports.EpicRepository,
	membership ports.MembershipService,
	events ports.EventPublisher,
) ports.EpicService {
	return &EpicService{
		epicRepo:   epicRepo,
		membership: membership,
		events:     events,
	}
}

// GetEpic returns an epic visible to members of its organization.
func (s *EpicService) GetEpic(ctx context.Context, epicID, viewerID string) (*domain.Epic, error) {
	epic, err := s.epicRepo.GetByID(ctx, epicID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOrganization(ctx, viewerID, epic.OrganizationID); err != nil {
		return nil, err
	}
	return epic, nil
}

// UpdateEpic changes an epic and tells the organization room.
func (s *EpicService) UpdateEpic(ctx context.Context, params ports.UpdateEpicParams) (*domain.Epic, error) {
	if params.Changes.Title == nil && params.Changes.Status == nil {
		return nil, apperrors.NewBadRequestError(apperrors.ErrBadRequest, "No changes supplied")
	}

	epic, err := s.epicRepo.GetByID(ctx, params.EpicID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOrganization(ctx, params.ActorID, epic.OrganizationID); err != nil {
		return nil, err
	}

	if err := epic.Apply(params.Changes); err != nil {
		return nil, err
	}

	updated, err := s.epicRepo.Update(ctx, epic)
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		s.events.EpicUpdated(context.WithoutCancel(ctx), updated.OrganizationID, domain.EpicUpdatedPayload{
			ID:        updated.ID,
			TeamID:    updated.TeamID,
			Title:     updated.Title,
			Status:    updated.Status,
			UpdatedBy: params.ActorID,
		})
	}

	return updated, nil
}

func (s *EpicService) requireOrganization(ctx context.Context, userID, orgID string) error {
	if orgID == "" {
		return apperrors.ErrOrganizationRequired
	}
	ok, err := s.membership.CanAccessOrganization(ctx, userID, orgID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrForbidden
	}
	return nil
}
