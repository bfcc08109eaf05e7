package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/lorrc/taskboard-backend/internal/core/errors"
	"github.com/lorrc/taskboard-backend/internal/core/ports"
)

// MembershipRepository reads team and organization membership.
type MembershipRepository struct {
	pool *pgxpool.Pool
}

var _ ports.MembershipRepository = (*MembershipRepository)(nil)

func NewMembershipRepository(pool *pgxpool.Pool) ports.MembershipRepository {
	return &MembershipRepository{pool: pool}
}

func (r *MembershipRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&ok); err != nil {
		if invalidID(err) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

func (r *MembershipRepository) IsTeamMember(ctx context.Context, userID, teamID string) (bool, error) {
	return r.exists(ctx,
		`SELECT EXISTS (SELECT 1 FROM team_members WHERE user_id = $1 AND team_id = $2)`,
		userID, teamID)
}

func (r *MembershipRepository) IsOrganizationMember(ctx context.Context, userID, orgID string) (bool, error) {
	return r.exists(ctx,
		`SELECT EXISTS (SELECT 1 FROM organization_members WHERE user_id = $1 AND organization_id = $2)`,
		userID, orgID)
}

func (r *MembershipRepository) GetTeamOrganization(ctx context.Context, teamID string) (string, error) {
	var orgID string
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT organization_id::text FROM teams WHERE id = $1`, teamID).Scan(&orgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || invalidID(err) {
			return "", apperrors.ErrTeamNotFound
		}
		return "", err
	}
	return orgID, nil
}
