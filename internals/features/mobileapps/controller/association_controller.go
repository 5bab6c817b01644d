package controller

import (
	"github.com/gofiber/fiber/v2"

	"mobileapps_backend/internals/features/mobileapps/dto"
	helper "mobileapps_backend/internals/helpers"
	"mobileapps_backend/internals/helpers/auth"
)

/* =========================
   /mobileapps/:id/users
========================= */

func (ctl *MobileAppController) ListUsers(c *fiber.Ctx) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	users, err := ctl.Svc.Users(c.Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]dto.SimpleUserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, dto.SimpleUserResponse{ID: u.ID, Username: u.Username, Email: u.Email})
	}
	return helper.JsonList(c, "ok", out, nil)
}

func (ctl *MobileAppController) AddUsers(c *fiber.Ctx) error {
	return ctl.changeUsers(c, true)
}

func (ctl *MobileAppController) RemoveUsers(c *fiber.Ctx) error {
	return ctl.changeUsers(c, false)
}

func (ctl *MobileAppController) changeUsers(c *fiber.Ctx, add bool) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := auth.RequireStaff(actor); err != nil {
		return writeError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req dto.MobileAppUsersRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid body")
	}
	if err := ctl.Validate.Struct(&req); err != nil {
		return helper.JsonValidationError(c, helper.ValidationErrors(err))
	}

	if add {
		if err := ctl.Svc.AddUsers(c.Context(), actor, id, req.Users); err != nil {
			return writeError(c, err)
		}
		return helper.JsonCreated(c, "users added", fiber.Map{})
	}
	if err := ctl.Svc.RemoveUsers(c.Context(), actor, id, req.Users); err != nil {
		return writeError(c, err)
	}
	return helper.JsonNoContent(c)
}

/* =========================
   /mobileapps/:id/organizations
========================= */

func (ctl *MobileAppController) ListOrganizations(c *fiber.Ctx) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	orgs, err := ctl.Svc.Organizations(c.Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]dto.BasicOrganizationResponse, 0, len(orgs))
	for _, o := range orgs {
		out = append(out, dto.BasicOrganizationResponse{ID: o.ID, Name: o.Name, Created: o.CreatedAt, Modified: o.UpdatedAt})
	}
	return helper.JsonList(c, "ok", out, nil)
}

func (ctl *MobileAppController) AddOrganizations(c *fiber.Ctx) error {
	return ctl.changeOrganizations(c, true)
}

func (ctl *MobileAppController) RemoveOrganizations(c *fiber.Ctx) error {
	return ctl.changeOrganizations(c, false)
}

func (ctl *MobileAppController) changeOrganizations(c *fiber.Ctx, add bool) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := auth.RequireStaff(actor); err != nil {
		return writeError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req dto.MobileAppOrganizationsRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid body")
	}
	if err := ctl.Validate.Struct(&req); err != nil {
		return helper.JsonValidationError(c, helper.ValidationErrors(err))
	}

	if add {
		if err := ctl.Svc.AddOrganizations(c.Context(), actor, id, req.Organizations); err != nil {
			return writeError(c, err)
		}
		return helper.JsonCreated(c, "organizations added", fiber.Map{})
	}
	if err := ctl.Svc.RemoveOrganizations(c.Context(), actor, id, req.Organizations); err != nil {
		return writeError(c, err)
	}
	return helper.JsonNoContent(c)
}
