package storage

import (
	"context"

	"github.com/interviewdesk/platform/libs/db"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/model"
)

// CandidateRepository is the candidate directory. Candidates are owned by the CRM and
// only read here.
type CandidateRepository struct {
	pool *db.Pool
}

func NewCandidateRepository(pool *db.Pool) *CandidateRepository {
	return &CandidateRepository{pool: pool}
}

func (r *CandidateRepository) GetCandidate(ctx context.Context, id string) (model.Candidate, error) {
	var c model.Candidate
	err := r.pool.QueryRow(ctx, `
		SELECT id, full_name, email, company_name
		FROM candidates
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Email, &c.CompanyName)
	return c, notFound(err)
}

// Lock takes a row lock on the candidate for the rest of the transaction.
func (r *CandidateRepository) Lock(ctx context.Context, q db.Querier, id string) error {
	var locked string
	err := q.QueryRow(ctx, `
		SELECT id
		FROM candidates
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&locked)
	return notFound(err)
}
