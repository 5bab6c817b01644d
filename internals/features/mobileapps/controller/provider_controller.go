package controller

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"mobileapps_backend/internals/features/mobileapps/dto"
	"mobileapps_backend/internals/features/mobileapps/service"
	helper "mobileapps_backend/internals/helpers"
	"mobileapps_backend/internals/helpers/auth"
)

type ProviderController struct {
	Validate *validator.Validate
	Svc      *service.ProviderService
}

func NewProviderController(validate *validator.Validate, svc *service.ProviderService) *ProviderController {
	if validate == nil {
		validate = helper.NewValidator()
	}
	return &ProviderController{Validate: validate, Svc: svc}
}

// GET /mobileapps/notification_providers
func (ctl *ProviderController) List(c *fiber.Ctx) error {
	paging := helper.ResolvePaging(c, defaultPageSize, maxPageSize)
	rows, total, err := ctl.Svc.List(c.Context(), paging)
	if err != nil {
		return writeError(c, err)
	}
	pg, err := helper.BuildPagination(total, paging)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]dto.NotificationProviderResponse, 0, len(rows))
	for i := range rows {
		out = append(out, dto.ToProviderResponse(&rows[i]))
	}
	return helper.JsonList(c, "ok", out, pg)
}

func (ctl *ProviderController) Detail(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	m, err := ctl.Svc.Get(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return helper.JsonOK(c, "ok", dto.ToProviderResponse(m))
}

func (ctl *ProviderController) Create(c *fiber.Ctx) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := auth.RequireStaff(actor); err != nil {
		return writeError(c, err)
	}
	req, err := ctl.parse(c)
	if err != nil {
		return writeError(c, err)
	}
	m, err := ctl.Svc.Create(c.Context(), actor, req)
	if err != nil {
		return writeError(c, err)
	}
	return helper.JsonCreated(c, "notification provider created", dto.ToProviderResponse(m))
}

func (ctl *ProviderController) Update(c *fiber.Ctx) error {
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
	req, err := ctl.parse(c)
	if err != nil {
		return writeError(c, err)
	}
	m, err := ctl.Svc.Update(c.Context(), actor, id, req)
	if err != nil {
		return writeError(c, err)
	}
	return helper.JsonUpdated(c, "notification provider updated", dto.ToProviderResponse(m))
}

func (ctl *ProviderController) Delete(c *fiber.Ctx) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	if err := ctl.Svc.Delete(c.Context(), actor, id); err != nil {
		return writeError(c, err)
	}
	return helper.JsonNoContent(c)
}

func (ctl *ProviderController) parse(c *fiber.Ctx) (dto.NotificationProviderRequest, error) {
	var req dto.NotificationProviderRequest
	if err := c.BodyParser(&req); err != nil {
		return req, fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := ctl.Validate.Struct(&req); err != nil {
		return req, fieldErrors(helper.ValidationErrors(err))
	}
	return req, nil
}
