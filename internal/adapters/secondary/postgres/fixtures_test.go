package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func requireDB(t *testing.T) {
	t.Helper()
	if testPool == nil {
		t.Skip("postgres container not available")
	}
}

// seed holds one organization with a team and two users, only one of
// whom belongs to the team.
type seed struct {
	OrgID     string
	TeamID    string
	MemberID  string
	OutsideID string
	Email     string
}

func seedBoard(t *testing.T) seed {
	t.Helper()
	requireDB(t)
	ctx := context.Background()

	s := seed{Email: fmt.Sprintf("member-%s@example.com", uuid.NewString()[:8])}
	exec := func(query string, args ...any) string {
		var id string
		require.NoError(t, testPool.QueryRow(ctx, query, args...).Scan(&id))
		return id
	}

	s.OrgID = exec(`INSERT INTO organizations (name) VALUES ('Acme') RETURNING id::text`)
	s.TeamID = exec(`INSERT INTO teams (organization_id, name) VALUES ($1, 'Platform') RETURNING id::text`, s.OrgID)
	s.MemberID = exec(`INSERT INTO users (organization_id, full_name, email, password_hash)
		VALUES ($1, 'Ada Member', $2, 'hash') RETURNING id::text`, s.OrgID, s.Email)
	s.OutsideID = exec(`INSERT INTO users (organization_id, full_name, email, password_hash)
		VALUES ($1, 'Bob Outside', $2, 'hash') RETURNING id::text`, s.OrgID, "outside-"+s.Email)

	_, err := testPool.Exec(ctx, `INSERT INTO organization_members (organization_id, user_id) VALUES ($1, $2)`, s.OrgID, s.MemberID)
	require.NoError(t, err)
	_, err = testPool.Exec(ctx, `INSERT INTO team_members (team_id, user_id) VALUES ($1, $2)`, s.TeamID, s.MemberID)
	require.NoError(t, err)
	return s
}
