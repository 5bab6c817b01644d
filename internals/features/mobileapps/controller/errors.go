package controller

import (
	"errors"
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"mobileapps_backend/internals/features/mobileapps/notifications"
	"mobileapps_backend/internals/features/mobileapps/service"
	helper "mobileapps_backend/internals/helpers"
	"mobileapps_backend/internals/helpers/auth"
)

// writeError maps service errors onto the response envelope.
func writeError(c *fiber.Ctx, err error) error {
	var fe fieldErrors
	var ferr *fiber.Error
	switch {
	case errors.As(err, &fe):
		return helper.JsonValidationError(c, fe)
	case errors.As(err, &ferr):
		return helper.JsonError(c, ferr.Code, ferr.Message)
	case errors.Is(err, auth.ErrUnauthenticated):
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrForbidden):
		return helper.JsonError(c, fiber.StatusForbidden, "you do not have permission to perform this action")
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrProviderNotFound):
		return helper.JsonError(c, fiber.StatusNotFound, "not found")
	case errors.Is(err, helper.ErrPageOutOfRange):
		return helper.JsonError(c, fiber.StatusNotFound, "invalid page")
	case errors.Is(err, service.ErrValidation), errors.Is(err, notifications.ErrInvalidRequest):
		return helper.JsonError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrProviderInUse):
		return helper.JsonError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, notifications.ErrAppNotFound), errors.Is(err, notifications.ErrNoProvider):
		return helper.JsonError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, notifications.ErrAppInactive):
		return helper.JsonError(c, fiber.StatusForbidden, err.Error())
	}
	log.Printf("[ERROR] %s %s: %v", c.Method(), c.Path(), err)
	return helper.JsonError(c, fiber.StatusInternalServerError, "internal server error")
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

// parseIDList reads "1,2,3".
func parseIDList(raw string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
