// internals/features/themes/route/theme_route.go
package route

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"mobileapps_backend/internals/features/themes/controller"
	"mobileapps_backend/internals/features/themes/service"
)

// ThemeRoutes mounts the organization theme endpoints on an authenticated router.
func ThemeRoutes(r fiber.Router, validate *validator.Validate, svc *service.ThemeService) {
	ctl := controller.NewThemeController(validate, svc)

	org := r.Group("/organization/:org_id<int>/themes")
	org.Get("/", ctl.ListActive)
	org.Post("/", ctl.Create)

	t := r.Group("/themes/:id<int>")
	t.Delete("/remove/:attribute", ctl.RemoveImage)
	t.Get("/", ctl.Detail)
	t.Put("/", ctl.Replace)
	t.Patch("/", ctl.Patch)
	t.Delete("/", ctl.Delete)
}
