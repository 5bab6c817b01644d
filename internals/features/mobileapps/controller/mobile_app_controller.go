// internals/features/mobileapps/controller/mobile_app_controller.go
package controller

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"mobileapps_backend/internals/features/mobileapps/dto"
	"mobileapps_backend/internals/features/mobileapps/service"
	helper "mobileapps_backend/internals/helpers"
	"mobileapps_backend/internals/helpers/auth"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

type MobileAppController struct {
	DB       *gorm.DB
	Validate *validator.Validate
	Svc      *service.MobileAppService
}

func NewMobileAppController(db *gorm.DB, validate *validator.Validate, svc *service.MobileAppService) *MobileAppController {
	if validate == nil {
		validate = helper.NewValidator()
	}
	return &MobileAppController{DB: db, Validate: validate, Svc: svc}
}

/* =========================
   GET /mobileapps
   ?app_name= &organization_name= &organization_ids=1,2 &page= &page_size=
========================= */

func (ctl *MobileAppController) List(c *fiber.Ctx) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	f := service.ListFilter{
		AppName:          c.Query("app_name"),
		OrganizationName: c.Query("organization_name"),
	}
	if raw := strings.TrimSpace(c.Query("organization_ids")); raw != "" {
		if f.OrganizationIDs, err = parseIDList(raw); err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "organization_ids must be a comma separated list of ids")
		}
	}
	paging := helper.ResolvePaging(c, defaultPageSize, maxPageSize)

	apps, total, err := ctl.Svc.List(c.Context(), actor, f, paging)
	if err != nil {
		return writeError(c, err)
	}
	pg, err := helper.BuildPagination(total, paging)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]dto.MobileAppResponse, 0, len(apps))
	for _, a := range apps {
		out = append(out, a.Response())
	}
	return helper.JsonList(c, "ok", out, pg)
}

/* =========================
   POST /mobileapps
========================= */

func (ctl *MobileAppController) Create(c *fiber.Ctx) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := auth.RequireStaff(actor); err != nil {
		return writeError(c, err)
	}
	req, err := ctl.parse(c, false)
	if err != nil {
		return writeError(c, err)
	}
	app, err := ctl.Svc.Create(c.Context(), actor, req)
	if err != nil {
		return writeError(c, err)
	}
	return helper.JsonCreated(c, "mobile app created", app.Response())
}

/* =========================
   GET /mobileapps/:id
========================= */

func (ctl *MobileAppController) Detail(c *fiber.Ctx) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	app, err := ctl.Svc.Get(c.Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return helper.JsonOK(c, "ok", app.Response())
}

/* =========================
   PUT / PATCH /mobileapps/:id
========================= */

func (ctl *MobileAppController) Replace(c *fiber.Ctx) error { return ctl.update(c, false) }
func (ctl *MobileAppController) Patch(c *fiber.Ctx) error   { return ctl.update(c, true) }

func (ctl *MobileAppController) update(c *fiber.Ctx, partial bool) error {
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
	req, err := ctl.parse(c, partial)
	if err != nil {
		return writeError(c, err)
	}
	app, err := ctl.Svc.Update(c.Context(), actor, id, req, partial)
	if err != nil {
		return writeError(c, err)
	}
	return helper.JsonUpdated(c, "mobile app updated", app.Response())
}

// Delete: apps are deactivated, never deleted.
func (ctl *MobileAppController) Delete(c *fiber.Ctx) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := auth.RequireStaff(actor); err != nil {
		return writeError(c, err)
	}
	return helper.JsonError(c, fiber.StatusMethodNotAllowed, "method \"DELETE\" not allowed; set is_active=false instead")
}

/* =========================
   GET /mobileapps/:id/history
========================= */

func (ctl *MobileAppController) History(c *fiber.Ctx) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	paging := helper.ResolvePaging(c, defaultPageSize, maxPageSize)
	rows, total, err := ctl.Svc.History(c.Context(), actor, id, paging)
	if err != nil {
		return writeError(c, err)
	}
	pg, err := helper.BuildPagination(total, paging)
	if err != nil {
		return writeError(c, err)
	}
	return helper.JsonList(c, "ok", rows, pg)
}

func (ctl *MobileAppController) parse(c *fiber.Ctx, partial bool) (*dto.MobileAppRequest, error) {
	var req dto.MobileAppRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	req.Normalize()
	if err := ctl.Validate.Struct(&req); err != nil {
		return nil, fieldErrors(helper.ValidationErrors(err))
	}
	if !partial {
		if missing := req.MissingRequired(); missing != nil {
			return nil, fieldErrors(missing)
		}
	}
	return &req, nil
}
