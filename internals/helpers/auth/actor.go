// Package auth holds the caller identity and the capability guards every
// service operation starts with.
package auth

import (
	"context"
	"errors"
	"slices"

	"github.com/gofiber/fiber/v2"
)

const LocActor = "actor"

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("permission denied")
)

// Actor is the authenticated caller.
type Actor struct {
	UserID  int64
	IsStaff bool
}

func SetActor(c *fiber.Ctx, a Actor) { c.Locals(LocActor, a) }

func ActorFrom(c *fiber.Ctx) (Actor, error) {
	a, ok := c.Locals(LocActor).(Actor)
	if !ok || a.UserID == 0 {
		return Actor{}, ErrUnauthenticated
	}
	return a, nil
}

// MembershipLookup answers organization membership questions.
type MembershipLookup interface {
	OrganizationIDsOf(ctx context.Context, userID int64) ([]int64, error)
}

/* ===== guards ===== */

// RequireStaff guards every write operation.
func RequireStaff(a Actor) error {
	if !a.IsStaff {
		return ErrForbidden
	}
	return nil
}

// VisibleOrganizations returns nil for staff (no restriction) and the
// caller's organization ids otherwise (possibly empty, never nil).
func VisibleOrganizations(ctx context.Context, a Actor, m MembershipLookup) ([]int64, error) {
	if a.IsStaff {
		return nil, nil
	}
	ids, err := m.OrganizationIDsOf(ctx, a.UserID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// CanSeeOrganization: staff see everything, others only their own organizations.
func CanSeeOrganization(ctx context.Context, a Actor, m MembershipLookup, orgID int64) (bool, error) {
	visible, err := VisibleOrganizations(ctx, a, m)
	if err != nil {
		return false, err
	}
	return visible == nil || slices.Contains(visible, orgID), nil
}
