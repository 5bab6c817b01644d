package middlewares

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"mobileapps_backend/internals/configs"
	"mobileapps_backend/internals/middlewares/logger"
)

// SetupMiddlewares installs the app-wide middleware chain.
func SetupMiddlewares(app *fiber.App) {
	app.Use(RecoveryMiddleware())
	app.Use(CorsMiddleware())
	app.Use(GlobalRateLimiter())
	if configs.GetEnvBool("HTTP_ACCESS_LOG", false) {
		log.Println("[INFO] HTTP access log enabled")
		app.Use(logger.LoggerMiddleware())
	}
}
