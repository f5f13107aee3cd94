package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestAvailability_DefaultsForNewUser(t *testing.T) {
	env := newTestEnv(t)
	user := uuid.New()

	a, err := env.avail.Get(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, user, a.UserID)
	assert.False(t, a.AvailableForUrgentGigs)
	assert.Equal(t, 25.0, a.MaxRadiusKm)
	assert.Equal(t, 10, a.MaxNotificationsPerDay)
}

func TestAvailability_PartialUpdateKeepsOtherFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	on := true

	_, err := env.avail.Update(ctx, user, UpdateAvailabilityInput{
		AvailableForUrgentGigs: &on,
		CurrentLat:             floatPtr(51.5),
		CurrentLng:             floatPtr(-0.12),
		DNDStart:               strPtr("23:00"),
		DNDEnd:                 strPtr("07:00"),
		AvailabilitySchedule:   json.RawMessage(`{"fri":["18:00-02:00"]}`),
	})
	require.NoError(t, err)

	radius := 40.0
	a, err := env.avail.Update(ctx, user, UpdateAvailabilityInput{MaxRadiusKm: &radius})
	require.NoError(t, err)
	assert.True(t, a.AvailableForUrgentGigs)
	assert.Equal(t, 40.0, a.MaxRadiusKm)
	require.NotNil(t, a.DNDStart)
	assert.Equal(t, "23:00", *a.DNDStart)
	assert.JSONEq(t, `{"fri":["18:00-02:00"]}`, string(a.AvailabilitySchedule))

	a, err = env.avail.Update(ctx, user, UpdateAvailabilityInput{DNDStart: strPtr(""), DNDEnd: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, a.DNDStart)
	assert.Nil(t, a.DNDEnd)

	a, err = env.avail.Update(ctx, user, UpdateAvailabilityInput{AvailabilitySchedule: json.RawMessage(`null`)})
	require.NoError(t, err)
	assert.Nil(t, a.AvailabilitySchedule)
}

func TestAvailability_EmptyScheduleIsCleared(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := env.avail.Update(ctx, user, UpdateAvailabilityInput{AvailabilitySchedule: json.RawMessage(`{"sat":["10:00-14:00"]}`)})
	require.NoError(t, err)

	for _, raw := range []string{`{}`, `{"mon":[]}`} {
		a, err := env.avail.Update(ctx, user, UpdateAvailabilityInput{AvailabilitySchedule: json.RawMessage(raw)})
		require.NoError(t, err, raw)
		assert.Nil(t, a.AvailabilitySchedule, raw)
	}
}

func TestAvailability_Validation(t *testing.T) {
	env := newTestEnv(t)
	negative := dec("-1")
	fractional := dec("10.005")
	tooMany := 201
	zeroRadius := 0.0

	cases := []struct {
		name string
		in   UpdateAvailabilityInput
	}{
		{"lat without lng", UpdateAvailabilityInput{CurrentLat: floatPtr(10)}},
		{"bad longitude", UpdateAvailabilityInput{GeneralAreaLat: floatPtr(10), GeneralAreaLng: floatPtr(181)}},
		{"zero radius", UpdateAvailabilityInput{MaxRadiusKm: &zeroRadius}},
		{"negative rate", UpdateAvailabilityInput{HourlyRate: &negative}},
		{"sub-cent rate", UpdateAvailabilityInput{PerGigRate: &fractional}},
		{"too many notifications", UpdateAvailabilityInput{MaxNotificationsPerDay: &tooMany}},
		{"dnd start only", UpdateAvailabilityInput{DNDStart: strPtr("22:00")}},
		{"bad dnd clock", UpdateAvailabilityInput{DNDStart: strPtr("25:00"), DNDEnd: strPtr("07:00")}},
		{"unknown weekday", UpdateAvailabilityInput{AvailabilitySchedule: json.RawMessage(`{"someday":["10:00-12:00"]}`)}},
		{"bad window", UpdateAvailabilityInput{AvailabilitySchedule: json.RawMessage(`{"mon":["10-12"]}`)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.avail.Update(context.Background(), uuid.New(), tc.in)
			require.Error(t, err)
			assert.True(t, apperror.IsValidation(err), "got %v", err)
		})
	}
}
