package controller

import (
	"errors"
	"log"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"mobileapps_backend/internals/features/themes/dto"
	"mobileapps_backend/internals/features/themes/model"
	"mobileapps_backend/internals/features/themes/service"
	helper "mobileapps_backend/internals/helpers"
	"mobileapps_backend/internals/helpers/auth"
	"mobileapps_backend/internals/helpers/images"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

type ThemeController struct {
	Validate *validator.Validate
	Svc      *service.ThemeService
}

func NewThemeController(validate *validator.Validate, svc *service.ThemeService) *ThemeController {
	return &ThemeController{Validate: validate, Svc: svc}
}

/* =========================
   GET /organization/:org_id/themes
========================= */

func (ctl *ThemeController) ListActive(c *fiber.Ctx) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	orgID, err := paramID(c, "org_id")
	if err != nil {
		return writeError(c, err)
	}

	paging := helper.ResolvePaging(c, defaultPageSize, maxPageSize)
	rows, total, err := ctl.Svc.ListActive(c.Context(), actor, orgID, paging)
	if err != nil {
		return writeError(c, err)
	}
	pg, err := helper.BuildPagination(total, paging)
	if err != nil {
		return writeError(c, err)
	}

	out := make([]dto.ThemeResponse, 0, len(rows))
	for i := range rows {
		r, err := ctl.Svc.Response(&rows[i])
		if err != nil {
			return writeError(c, err)
		}
		out = append(out, r)
	}
	return helper.JsonList(c, "ok", out, pg)
}

/* =========================
   POST /organization/:org_id/themes (multipart)
========================= */

func (ctl *ThemeController) Create(c *fiber.Ctx) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := auth.RequireStaff(actor); err != nil {
		return writeError(c, err)
	}
	orgID, err := paramID(c, "org_id")
	if err != nil {
		return writeError(c, err)
	}
	form, files, err := ctl.bind(c)
	if err != nil {
		return writeError(c, err)
	}

	m, err := ctl.Svc.CreateAndActivate(c.Context(), actor, orgID, form, files)
	if err != nil {
		if m != nil {
			return writeCommitError(c, m, err)
		}
		return writeError(c, err)
	}
	return ctl.respond(c, m, helper.JsonCreated)
}

/* =========================
   GET /themes/:id
========================= */

func (ctl *ThemeController) Detail(c *fiber.Ctx) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	m, err := ctl.Svc.Get(c.Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return ctl.respond(c, m, helper.JsonOK)
}

/* =========================
   PUT / PATCH /themes/:id
========================= */

func (ctl *ThemeController) Replace(c *fiber.Ctx) error { return ctl.update(c, false) }
func (ctl *ThemeController) Patch(c *fiber.Ctx) error   { return ctl.update(c, true) }

func (ctl *ThemeController) update(c *fiber.Ctx, partial bool) error {
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
	form, files, err := ctl.bind(c)
	if err != nil {
		return writeError(c, err)
	}

	m, err := ctl.Svc.Update(c.Context(), actor, id, form, files, partial)
	if err != nil {
		if m != nil {
			return writeCommitError(c, m, err)
		}
		return writeError(c, err)
	}
	return ctl.respond(c, m, helper.JsonUpdated)
}

/* =========================
   DELETE /themes/:id  (?remove=true hard delete)
========================= */

func (ctl *ThemeController) Delete(c *fiber.Ctx) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	if hard, _ := strconv.ParseBool(strings.TrimSpace(c.Query("remove"))); hard {
		err = ctl.Svc.HardDelete(c.Context(), actor, id)
	} else {
		err = ctl.Svc.Deactivate(c.Context(), actor, id)
	}
	if err != nil {
		return writeError(c, err)
	}
	return helper.JsonNoContent(c)
}

/* =========================
   DELETE /themes/:id/remove/:attribute
========================= */

func (ctl *ThemeController) RemoveImage(c *fiber.Ctx) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	m, err := ctl.Svc.RemoveImage(c.Context(), actor, id, c.Params("attribute"))
	if err != nil {
		return writeError(c, err)
	}
	return ctl.respond(c, m, helper.JsonOK)
}

/* ===== helpers ===== */

func (ctl *ThemeController) bind(c *fiber.Ctx) (dto.ThemeForm, dto.ThemeFiles, error) {
	form, files, err := dto.BindThemeForm(c)
	if err != nil {
		return form, files, err
	}
	if err := ctl.Validate.Struct(&form); err != nil {
		return form, files, fieldErrors(helper.ValidationErrors(err))
	}
	return form, files, nil
}

func (ctl *ThemeController) respond(c *fiber.Ctx, m *model.ThemeModel, write func(*fiber.Ctx, string, any) error) error {
	out, err := ctl.Svc.Response(m)
	if err != nil {
		return writeError(c, err)
	}
	return write(c, "", out)
}

// writeError maps service errors onto the response envelope.
func writeError(c *fiber.Ctx, err error) error {
	var fe fieldErrors
	if errors.As(err, &fe) {
		return helper.JsonValidationError(c, fe)
	}
	status, msg := errorStatus(c, err)
	return helper.JsonError(c, status, msg)
}

// writeCommitError reports an image step that failed after the theme row was
// saved. The id lets the caller retry the upload against that theme.
func writeCommitError(c *fiber.Ctx, m *model.ThemeModel, err error) error {
	log.Printf("[ThemeController] theme %d committed but image step failed: %v", m.ID, err)
	status, msg := errorStatus(c, err)
	return helper.JsonErrorData(c, status, msg, fiber.Map{"id": m.ID, "committed": true})
}

func errorStatus(c *fiber.Ctx, err error) (int, string) {
	var ferr *fiber.Error
	switch {
	case errors.As(err, &ferr):
		return ferr.Code, ferr.Message
	case errors.Is(err, auth.ErrUnauthenticated):
		return fiber.StatusUnauthorized, err.Error()
	case errors.Is(err, auth.ErrForbidden):
		return fiber.StatusForbidden, "you do not have permission to perform this action"
	case errors.Is(err, service.ErrThemeNotFound), errors.Is(err, service.ErrOrganizationNotFound):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, helper.ErrPageOutOfRange):
		return fiber.StatusNotFound, "invalid page"
	case errors.Is(err, service.ErrUnknownAttribute), errors.Is(err, images.ErrInvalidImage):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrConflict):
		return fiber.StatusConflict, err.Error()
	}
	log.Printf("[ERROR] %s %s: %v", c.Method(), c.Path(), err)
	return fiber.StatusInternalServerError, "internal server error"
}

// fieldErrors carries validator output to writeError.
type fieldErrors map[string][]string

func (f fieldErrors) Error() string { return "validation failed" }

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Params(name)), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}
