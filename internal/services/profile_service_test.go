package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/constants"
	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
	model "github.com/TrizenVenturesLLP/task-connect-relay/internal/models"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/repositories/memory"
)

func TestProfileService_Save(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	ctx := context.Background()

	_, err := f.Profiles.Get(ctx, "u1")
	assert.ErrorIs(t, err, apperrors.ErrProfileNotFound)

	_, err = f.Profiles.Save(ctx, "u1", ProfileInput{})
	assert.ErrorIs(t, err, apperrors.ErrValidation, "name is required on first save")

	created, err := f.Profiles.Save(ctx, "u1", ProfileInput{
		Name:   ptr("  Asha "),
		Skills: []string{"Plumbing", "plumbing ", "Wiring"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Asha", created.Name)
	assert.Equal(t, []constants.Role{constants.RoleBoth}, []constants.Role(created.Roles))
	assert.True(t, created.Tasker)
	assert.Equal(t, []string{"plumbing", "wiring"}, []string(created.Skills))
	assert.True(t, t0.Equal(created.CreatedAt))

	f.clock.Advance(time.Hour)
	updated, err := f.Profiles.Save(ctx, "u1", ProfileInput{Roles: []string{"requester"}})
	require.NoError(t, err)
	assert.Equal(t, "Asha", updated.Name, "unset fields are kept")
	assert.Equal(t, []constants.Role{constants.RolePoster}, []constants.Role(updated.Roles))
	assert.False(t, updated.Tasker)
	assert.True(t, t0.Equal(updated.CreatedAt))
	assert.True(t, t0.Add(time.Hour).Equal(updated.UpdatedAt))

	got, err := f.Profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, updated.Roles, got.Roles)
}

func TestProfileService_SaveValidation(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	ctx := context.Background()
	many := make([]string, 51)
	for i := range many {
		many[i] = string(rune('a'+i%26)) + string(rune('a'+i/26))
	}

	tests := map[string]ProfileInput{
		"unknown role":   {Name: ptr("x"), Roles: []string{"admin"}},
		"empty roles":    {Name: ptr("x"), Roles: []string{}},
		"half location":  {Name: ptr("x"), Location: &model.Location{Lat: ptr(17.0)}},
		"bad latitude":   {Name: ptr("x"), Location: &model.Location{Lat: ptr(-95.0), Lng: ptr(0.0)}},
		"too many skill": {Name: ptr("x"), Skills: many},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.Profiles.Save(ctx, "u1", in)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}

	_, err := f.Profiles.Save(ctx, " ", ProfileInput{Name: ptr("x")})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	p, err := f.Profiles.Save(ctx, "u1", ProfileInput{Name: ptr("x"), Location: &model.Location{City: "Pune"}})
	require.NoError(t, err, "a location without coordinates is allowed on profiles")
	assert.Equal(t, "Pune", p.Location.City)
}
