package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Checker-Finance/recommend-go/internal/channelsync"
)

// HealthCheck is one named dependency probe reported by /health.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Trigger runs a sync on demand.
type Trigger interface {
	RunOnce(ctx context.Context) (channelsync.Result, error)
}

// RegisterRoutes mounts /metrics, /health and, when trigger is non-nil, POST /sync.
func RegisterRoutes(app *fiber.App, trigger Trigger, checks ...HealthCheck) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/health", func(c *fiber.Ctx) error {
		results := make(map[string]string, len(checks))
		status := "ok"
		code := fiber.StatusOK

		healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for _, hc := range checks {
			if err := hc.Check(healthCtx); err != nil {
				results[hc.Name] = err.Error()
				status = "degraded"
				code = fiber.StatusServiceUnavailable
				continue
			}
			results[hc.Name] = "ok"
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": results,
		})
	})

	if trigger == nil {
		return
	}
	app.Post("/sync", func(c *fiber.Ctx) error {
		res, err := trigger.RunOnce(c.UserContext())
		body := fiber.Map{
			"seen":    res.Seen,
			"written": res.Written,
			"failed":  res.Failed,
		}
		if err != nil {
			body["error"] = err.Error()
			return c.Status(fiber.StatusBadGateway).JSON(body)
		}
		return c.JSON(body)
	})
}
