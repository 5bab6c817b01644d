package controller

import (
	"github.com/gofiber/fiber/v2"

	"mobileapps_backend/internals/features/mobileapps/dto"
	"mobileapps_backend/internals/features/mobileapps/notifications"
	helper "mobileapps_backend/internals/helpers"
	"mobileapps_backend/internals/helpers/auth"
)

// NotificationController exposes the four dispatch modes. Message and
// recipient checks are left to the dispatcher so every mode answers 400 alike.
type NotificationController struct {
	Dispatcher *notifications.Dispatcher
}

func NewNotificationController(d *notifications.Dispatcher) *NotificationController {
	return &NotificationController{Dispatcher: d}
}

func accepted(c *fiber.Ctx, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	return helper.JsonAccepted(c, "notification queued", dto.DispatchResponse{TaskIDs: ids})
}

// POST /mobileapps/notification
func (ctl *NotificationController) Broadcast(c *fiber.Ctx) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	var req dto.NotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid body")
	}
	ids, err := ctl.Dispatcher.BroadcastAll(c.Context(), actor, req.Message)
	if err != nil {
		return writeError(c, err)
	}
	return accepted(c, ids)
}

// POST /mobileapps/:id/notification
func (ctl *NotificationController) AppUsers(c *fiber.Ctx) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req dto.NotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid body")
	}
	ids, err := ctl.Dispatcher.NotifyAppUsers(c.Context(), actor, id, req.Message)
	if err != nil {
		return writeError(c, err)
	}
	return accepted(c, ids)
}

// POST /mobileapps/:id/users/notification
func (ctl *NotificationController) SelectedUsers(c *fiber.Ctx) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req dto.SelectedUsersNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid body")
	}
	ids, err := ctl.Dispatcher.NotifySelectedUsers(c.Context(), actor, id, req.Message, req.Users)
	if err != nil {
		return writeError(c, err)
	}
	return accepted(c, ids)
}

// POST /mobileapps/:id/organization/:org_id/notification
func (ctl *NotificationController) OrganizationUsers(c *fiber.Ctx) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	orgID, err := paramID(c, "org_id")
	if err != nil {
		return writeError(c, err)
	}
	var req dto.NotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid body")
	}
	ids, err := ctl.Dispatcher.NotifyOrganizationUsers(c.Context(), actor, id, orgID, req.Message)
	if err != nil {
		return writeError(c, err)
	}
	return accepted(c, ids)
}
