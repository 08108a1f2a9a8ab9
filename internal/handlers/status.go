package handlers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/a-h/templ"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/mic-havock/ridb-backend/internal/service"
	"github.com/mic-havock/ridb-backend/internal/templates"
)

// MonitorStatus is the part of the monitor the ops endpoints use
type MonitorStatus interface {
	RunCycle(ctx context.Context) (*service.CycleStats, error)
	LastCycle() *service.CycleStats
	Running() bool
}

// MetricsReader returns the latest stored metrics
type MetricsReader interface {
	GetLatestMetrics(ctx context.Context) (map[string]string, error)
}

func HealthHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	}
}

func StatusPageHandler(mon MonitorStatus, metrics MetricsReader, interval time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		data := templates.StatusData{
			Running:   mon.Running(),
			Interval:  interval,
			LastCycle: mon.LastCycle(),
		}

		if metrics != nil {
			latest, err := metrics.GetLatestMetrics(c.UserContext())
			if err != nil {
				log.Printf("Error loading metrics: %v", err)
			} else {
				data.Metrics = latest
			}
		}

		page := templates.Status(data)
		handler := adaptor.HTTPHandler(templ.Handler(page))

		return handler(c)
	}
}

func StatusJSONHandler(mon MonitorStatus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"running":    mon.Running(),
			"last_cycle": mon.LastCycle(),
		})
	}
}

// RunCycleHandler starts a cycle in the background under ctx. It answers 409
// when a cycle is already in flight.
func RunCycleHandler(ctx context.Context, mon MonitorStatus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if mon.Running() {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": service.ErrCycleRunning.Error()})
		}

		go func() {
			if _, err := mon.RunCycle(ctx); err != nil && !errors.Is(err, service.ErrCycleRunning) {
				log.Printf("Manual monitoring cycle failed: %v", err)
			}
		}()

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "started"})
	}
}
