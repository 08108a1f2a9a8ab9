package cmd

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	"github.com/mic-havock/ridb-backend/internal/handlers"
	"github.com/mic-havock/ridb-backend/internal/service"
)

const shutdownTimeout = 30 * time.Second

var port string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the availability monitor with its status server",
	Long: `Start the reservation monitor on its polling interval together with a small
HTTP server exposing health, status and a manual cycle trigger.

Routes:
  GET  /                    status page
  GET  /healthz             liveness
  GET  /api/monitor/status  last cycle as JSON
  POST /api/monitor/run     start a cycle now (409 if one is running)`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&port, "port", "p", "", "Port to run the server on (default $PORT or 8080)")
}

func runServe(cmd *cobra.Command, args []string) {
	if port == "" {
		port = cfg.Port
	}

	ctx, cancel := signalContext()
	defer cancel()

	db := openDB()
	defer db.Close()

	monitor, metrics := newMonitor(ctx, db)
	scheduler := service.NewScheduler(monitor, cfg.PollInterval, nil, nil)

	app := fiber.New(fiber.Config{
		AppName:               "Campsite Monitor",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	// Routes
	app.Get("/", handlers.StatusPageHandler(monitor, metrics, cfg.PollInterval))
	app.Get("/healthz", handlers.HealthHandler())

	// Monitor routes
	app.Get("/api/monitor/status", handlers.StatusJSONHandler(monitor))
	app.Post("/api/monitor/run", handlers.RunCycleHandler(ctx, monitor))

	scheduler.Start(ctx, true)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on :%s", port)
		errCh <- app.Listen(":" + port)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Printf("Server stopped: %v", err)
		}
		cancel()
	case <-ctx.Done():
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	scheduler.Stop(stopCtx)
}
