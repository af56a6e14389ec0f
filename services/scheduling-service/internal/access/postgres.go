// Package access decides which staff members may manage a candidate's interview slots.
package access

import (
	"context"
	"strings"

	"github.com/interviewdesk/platform/libs/db"
)

// PostgresChecker grants access to admins, the candidate's owner and its assignees.
type PostgresChecker struct {
	q db.Querier
}

func NewPostgresChecker(q db.Querier) *PostgresChecker {
	return &PostgresChecker{q: q}
}

func (c *PostgresChecker) CanAccess(ctx context.Context, candidateID, staffEmail string) (bool, error) {
	email := strings.TrimSpace(staffEmail)
	if email == "" {
		return false, nil
	}
	var allowed bool
	err := c.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM staff_members sm
			WHERE lower(sm.email) = lower($2)
				AND (
					sm.role = 'admin'
					OR EXISTS (SELECT 1 FROM candidates c WHERE c.id = $1 AND c.owner_staff_id = sm.id)
					OR EXISTS (SELECT 1 FROM candidate_assignees a WHERE a.candidate_id = $1 AND a.staff_id = sm.id)
				)
		)
	`, candidateID, email).Scan(&allowed)
	if err != nil {
		return false, err
	}
	return allowed, nil
}
