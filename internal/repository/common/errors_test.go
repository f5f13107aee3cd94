package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "opportunity_projects_opportunity_key"})

	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "opportunity_projects_opportunity_key"))
	assert.False(t, IsUniqueViolation(err, "gig_responses_one_accepted_idx"))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(errors.New("plain"), ""))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&pq.Error{Code: "40P01"}))
	assert.True(t, IsRetryable(fmt.Errorf("tx: %w", &pq.Error{Code: "40001"})))
	assert.False(t, IsRetryable(&pq.Error{Code: "23505"}))
	assert.False(t, IsRetryable(ErrStaleState))
}

type fakeResult struct {
	rows int64
	err  error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, r.err }

func TestExpectAffected(t *testing.T) {
	assert.NoError(t, ExpectAffected(fakeResult{rows: 1}, nil))
	assert.ErrorIs(t, ExpectAffected(fakeResult{rows: 0}, nil), ErrStaleState)

	execErr := errors.New("connection reset")
	assert.ErrorIs(t, ExpectAffected(nil, execErr), execErr)
	assert.Error(t, ExpectAffected(fakeResult{err: errors.New("driver")}, nil))
}
