package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"github.com/mic-havock/ridb-backend/internal/service"
)

var monitorOnce bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the availability monitor without the HTTP server",
	Long: `Run reservation monitoring cycles on the configured interval until
interrupted.

Examples:
  # Poll every MONITOR_INTERVAL_SECONDS
  ./ridb-backend monitor

  # Run a single cycle and exit
  ./ridb-backend monitor --once`,
	Run: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorOnce, "once", false, "Run one cycle and exit")
}

func runMonitor(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()

	db := openDB()
	defer db.Close()

	monitor, _ := newMonitor(ctx, db)

	if monitorOnce {
		if _, err := monitor.RunCycle(ctx); err != nil {
			log.Fatalf("Monitoring cycle failed: %v", err)
		}
		return
	}

	scheduler := service.NewScheduler(monitor, cfg.PollInterval, nil, nil)
	scheduler.Start(ctx, true)

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	scheduler.Stop(stopCtx)
}
