// internals/features/mobileapps/route/mobile_app_route.go
package route

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"mobileapps_backend/internals/features/mobileapps/controller"
	"mobileapps_backend/internals/features/mobileapps/notifications"
	"mobileapps_backend/internals/features/mobileapps/service"
	orgService "mobileapps_backend/internals/features/organizations/service"
	"mobileapps_backend/internals/helpers/queue"
	"mobileapps_backend/internals/helpers/secret"
)

// Deps are the collaborators the mobile app routes need.
type Deps struct {
	DB       *gorm.DB
	Validate *validator.Validate
	Cipher   *secret.Cipher
	Queue    queue.Producer
}

// MobileAppRoutes mounts /mobileapps on an authenticated router.
func MobileAppRoutes(r fiber.Router, d Deps) {
	members := orgService.NewMembership(d.DB)
	apps := controller.NewMobileAppController(d.DB, d.Validate, service.NewMobileAppService(d.DB, d.Cipher, members))
	notify := controller.NewNotificationController(notifications.NewDispatcher(d.DB, d.Queue, members))
	providers := controller.NewProviderController(d.Validate, service.NewProviderService(d.DB))

	g := r.Group("/mobileapps")

	// static segments before /:id
	g.Post("/notification", notify.Broadcast)

	p := g.Group("/notification_providers")
	{
		p.Get("/", providers.List)
		p.Post("/", providers.Create)
		p.Get("/:id<int>", providers.Detail)
		p.Put("/:id<int>", providers.Update)
		p.Delete("/:id<int>", providers.Delete)
	}

	g.Get("/", apps.List)
	g.Post("/", apps.Create)
	g.Get("/:id<int>", apps.Detail)
	g.Put("/:id<int>", apps.Replace)
	g.Patch("/:id<int>", apps.Patch)
	g.Delete("/:id<int>", apps.Delete)
	g.Get("/:id<int>/history", apps.History)

	g.Get("/:id<int>/users", apps.ListUsers)
	g.Post("/:id<int>/users", apps.AddUsers)
	g.Delete("/:id<int>/users", apps.RemoveUsers)

	g.Get("/:id<int>/organizations", apps.ListOrganizations)
	g.Post("/:id<int>/organizations", apps.AddOrganizations)
	g.Delete("/:id<int>/organizations", apps.RemoveOrganizations)

	g.Post("/:id<int>/notification", notify.AppUsers)
	g.Post("/:id<int>/users/notification", notify.SelectedUsers)
	g.Post("/:id<int>/organization/:org_id<int>/notification", notify.OrganizationUsers)
}
