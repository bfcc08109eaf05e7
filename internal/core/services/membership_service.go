package services

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/lorrc/taskboard-backend/internal/core/domain"
	"github.com/lorrc/taskboard-backend/internal/core/ports"
)

const (
	DefaultMembershipCacheSize = 4096
	DefaultMembershipCacheTTL  = time.Minute
)

// MembershipService checks team and organization membership.
// Positive answers are cached; denials always go back to the repository.
type MembershipService struct {
	repo     ports.MembershipRepository
	members  *expirable.LRU[string, struct{}]
	teamOrgs *expirable.LRU[string, string]
}

var _ ports.MembershipService = (*MembershipService)(nil)

// NewMembershipService creates a membership service with a bounded cache.
func NewMembershipService(repo ports.MembershipRepository, cacheSize int, ttl time.Duration) *MembershipService {
	if cacheSize <= 0 {
		cacheSize = DefaultMembershipCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultMembershipCacheTTL
	}
	return &MembershipService{
		repo:     repo,
		members:  expirable.NewLRU[string, struct{}](cacheSize, nil, ttl),
		teamOrgs: expirable.NewLRU[string, string](cacheSize, nil, ttl),
	}
}

// CanAccessTeam reports whether userID belongs to teamID.
func (s *MembershipService) CanAccessTeam(ctx context.Context, userID, teamID string) (bool, error) {
	if userID == "" || teamID == "" {
		return false, nil
	}
	return s.check(domain.TeamRoom(teamID)+"|"+userID, func() (bool, error) {
		return s.repo.IsTeamMember(ctx, userID, teamID)
	})
}

// CanAccessOrganization reports whether userID belongs to orgID.
func (s *MembershipService) CanAccessOrganization(ctx context.Context, userID, orgID string) (bool, error) {
	if userID == "" || orgID == "" {
		return false, nil
	}
	return s.check(domain.OrganizationRoom(orgID)+"|"+userID, func() (bool, error) {
		return s.repo.IsOrganizationMember(ctx, userID, orgID)
	})
}

// TeamOrganization returns the organization that owns teamID.
func (s *MembershipService) TeamOrganization(ctx context.Context, teamID string) (string, error) {
	if orgID, ok := s.teamOrgs.Get(teamID); ok {
		return orgID, nil
	}
	orgID, err := s.repo.GetTeamOrganization(ctx, teamID)
	if err != nil {
		return "", err
	}
	s.teamOrgs.Add(teamID, orgID)
	return orgID, nil
}

// CanJoinRoom authorizes a socket join for a team or organization room.
func (s *MembershipService) CanJoinRoom(ctx context.Context, userID, room string) (bool, error) {
	kind, id := domain.ParseRoom(room)
	switch kind {
	case domain.RoomTeam:
		return s.CanAccessTeam(ctx, userID, id)
	case domain.RoomOrganization:
		return s.CanAccessOrganization(ctx, userID, id)
	default:
		return false, nil
	}
}

func (s *MembershipService) check(key string, load func() (bool, error)) (bool, error) {
	if _, ok := s.members.Get(key); ok {
		return true, nil
	}
	ok, err := load()
	if err != nil {
		return false, err
	}
	if ok {
		s.members.Add(key, struct{}{})
	}
	return ok, nil
}
