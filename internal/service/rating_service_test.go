package service

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
)

func intPtr(v int) *int { return &v }

func completedProject(t *testing.T, env *testEnv) (requester, provider uuid.UUID, project *models.OpportunityProject) {
	t.Helper()
	requester, provider, _, project = env.activeProject(t)
	_, err := env.escrow.Release(context.Background(), project.ID, requester)
	require.NoError(t, err)
	env.db.mu.Lock()
	env.db.profiles[requester] = models.Profile{UserID: requester, DisplayName: "requester"}
	env.db.mu.Unlock()
	return requester, provider, project
}

func TestRating_BothSidesRateOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	requester, provider, project := completedProject(t, env)
	review := "  Отличный сет  "

	rating, err := env.ratings.Submit(ctx, requester, SubmitRatingInput{
		ProjectID: project.ID, RateeID: provider,
		Overall: 5, Professionalism: 5, Punctuality: 4, Quality: intPtr(5), Review: &review,
	})
	require.NoError(t, err)
	require.NotNil(t, rating.ReviewText)
	assert.Equal(t, "Отличный сет", *rating.ReviewText)

	_, err = env.ratings.Submit(ctx, provider, SubmitRatingInput{
		ProjectID: project.ID, RateeID: requester,
		Overall: 4, Professionalism: 4, Punctuality: 4, PaymentPromptness: intPtr(5),
	})
	require.NoError(t, err)

	_, err = env.ratings.Submit(ctx, requester, SubmitRatingInput{
		ProjectID: project.ID, RateeID: provider, Overall: 1, Professionalism: 1, Punctuality: 1,
	})
	require.ErrorIs(t, err, apperror.ErrAlreadyRated)

	summary, err := env.ratings.Summary(ctx, provider)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.RatingCount)
	assert.InDelta(t, 5.0, summary.RatingAvg, 0.001)

	list, err := env.ratings.ListForUser(ctx, requester, 20, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	env.notifier.Wait()
	assert.Contains(t, env.push.events(provider), "rating.received")
}

func TestRating_Rules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	requester, provider, project := completedProject(t, env)

	cases := []struct {
		name  string
		rater uuid.UUID
		in    SubmitRatingInput
		check func(error) bool
	}{
		{"stranger", uuid.New(), SubmitRatingInput{RateeID: provider, Overall: 5, Professionalism: 5, Punctuality: 5}, apperror.IsForbidden},
		{"self", requester, SubmitRatingInput{RateeID: requester, Overall: 5, Professionalism: 5, Punctuality: 5}, apperror.IsValidation},
		{"score out of range", requester, SubmitRatingInput{RateeID: provider, Overall: 6, Professionalism: 5, Punctuality: 5}, apperror.IsValidation},
		{"zero score", requester, SubmitRatingInput{RateeID: provider, Overall: 0, Professionalism: 5, Punctuality: 5}, apperror.IsValidation},
		{"promptness for provider", requester, SubmitRatingInput{RateeID: provider, Overall: 5, Professionalism: 5, Punctuality: 5, PaymentPromptness: intPtr(3)}, apperror.IsValidation},
		{"quality for requester", provider, SubmitRatingInput{RateeID: requester, Overall: 5, Professionalism: 5, Punctuality: 5, Quality: intPtr(3)}, apperror.IsValidation},
		{"long review", requester, SubmitRatingInput{RateeID: provider, Overall: 5, Professionalism: 5, Punctuality: 5, Review: func() *string { s := strings.Repeat("a", 2001); return &s }()}, apperror.IsValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.in.ProjectID = project.ID
			_, err := env.ratings.Submit(ctx, tc.rater, tc.in)
			require.Error(t, err)
			assert.True(t, tc.check(err), "got %v", err)
		})
	}
}

func TestRating_OnlyCompletedProjects(t *testing.T) {
	env := newTestEnv(t)
	requester, provider, _, project := env.activeProject(t)

	_, err := env.ratings.Submit(context.Background(), requester, SubmitRatingInput{
		ProjectID: project.ID, RateeID: provider, Overall: 5, Professionalism: 5, Punctuality: 5,
	})
	assert.Equal(t, apperror.ErrCodeInvalidStateTransition, apperror.CodeOf(err))
}
