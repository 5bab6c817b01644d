package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type membershipFunc func(ctx context.Context, userID int64) ([]int64, error)

func (f membershipFunc) OrganizationIDsOf(ctx context.Context, userID int64) ([]int64, error) {
	return f(ctx, userID)
}

func TestRequireStaff(t *testing.T) {
	assert.NoError(t, RequireStaff(Actor{UserID: 1, IsStaff: true}))
	assert.ErrorIs(t, RequireStaff(Actor{UserID: 2}), ErrForbidden)
}

func TestVisibleOrganizations(t *testing.T) {
	ctx := context.Background()
	members := membershipFunc(func(_ context.Context, userID int64) ([]int64, error) {
		switch userID {
		case 7:
			return []int64{10, 11}, nil
		case 9:
			return nil, errors.New("db down")
		}
		return nil, nil
	})

	ids, err := VisibleOrganizations(ctx, Actor{UserID: 1, IsStaff: true}, members)
	require.NoError(t, err)
	assert.Nil(t, ids, "staff is unrestricted")

	ids, err = VisibleOrganizations(ctx, Actor{UserID: 7}, members)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, ids)

	ids, err = VisibleOrganizations(ctx, Actor{UserID: 8}, members)
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)

	_, err = VisibleOrganizations(ctx, Actor{UserID: 9}, members)
	assert.Error(t, err)

	ok, err := CanSeeOrganization(ctx, Actor{UserID: 7}, members, 11)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = CanSeeOrganization(ctx, Actor{UserID: 7}, members, 12)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestActorFromLocals(t *testing.T) {
	app := fiber.New()
	app.Get("/anon", func(c *fiber.Ctx) error {
		_, err := ActorFrom(c)
		assert.ErrorIs(t, err, ErrUnauthenticated)
		return nil
	})
	app.Get("/me", func(c *fiber.Ctx) error {
		SetActor(c, Actor{UserID: 3, IsStaff: true})
		a, err := ActorFrom(c)
		require.NoError(t, err)
		assert.Equal(t, int64(3), a.UserID)
		return nil
	})
	for _, p := range []string{"/anon", "/me"} {
		_, err := app.Test(httptest.NewRequest("GET", p, nil))
		require.NoError(t, err)
	}
}
