// file: internals/route/index.go
package routes

import (
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	mobileAppRoute "mobileapps_backend/internals/features/mobileapps/route"
	themeRoute "mobileapps_backend/internals/features/themes/route"
	themeService "mobileapps_backend/internals/features/themes/service"
	"mobileapps_backend/internals/helpers/queue"
	"mobileapps_backend/internals/helpers/secret"
	"mobileapps_backend/internals/middlewares"
	authMiddleware "mobileapps_backend/internals/middlewares/auth"
)

var startTime time.Time

// Deps are built once in main and shared by every feature router.
type Deps struct {
	DB        *gorm.DB
	JWTSecret string
	Validate  *validator.Validate
	Cipher    *secret.Cipher
	Queue     queue.Producer
	Themes    *themeService.ThemeService
}

func SetupRoutes(app *fiber.App, d Deps) {
	startTime = time.Now()

	log.Println("[INFO] Setting up base routes...")
	BaseRoutes(app, d.DB)

	log.Println("[INFO] Setting up /api group (JWT)...")
	api := app.Group("/api",
		authMiddleware.AuthJWT(authMiddleware.AuthJWTOpts{
			Secret:              d.JWTSecret,
			DB:                  d.DB,
			AllowCookieFallback: true,
			Leeway:              30 * time.Second,
		}),
	)

	log.Println("[INFO] Mounting mobile app routes...")
	api.Use("/mobileapps", middlewares.NotificationRateLimiter())
	mobileAppRoute.MobileAppRoutes(api, mobileAppRoute.Deps{
		DB:       d.DB,
		Validate: d.Validate,
		Cipher:   d.Cipher,
		Queue:    d.Queue,
	})

	log.Println("[INFO] Mounting theme routes...")
	themeRoute.ThemeRoutes(api, d.Validate, d.Themes)
}
