package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	NotificationsEnqueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mobileapps",
		Name:      "notifications_enqueued_total",
		Help:      "Publish requests handed to the notification queue, by dispatch mode.",
	}, []string{"mode"})

	NotificationsDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mobileapps",
		Name:      "notifications_delivered_total",
		Help:      "Publish requests processed by the worker, by provider and outcome.",
	}, []string{"provider", "outcome"})

	ImageDerivativesStored = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mobileapps",
		Name:      "theme_image_derivatives_stored_total",
		Help:      "Derivative files written to the theme image backend.",
	}, []string{"attribute"})

	ImageOrphansReaped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mobileapps",
		Name:      "theme_image_orphans_reaped_total",
		Help:      "Unreferenced derivative files removed by the reaper.",
	})
)

func init() {
	prometheus.MustRegister(NotificationsEnqueued, NotificationsDelivered, ImageDerivativesStored, ImageOrphansReaped)
}

// Handler exposes the default registry on a fiber route.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
