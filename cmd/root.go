package cmd

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mic-havock/ridb-backend/internal/config"
	"github.com/mic-havock/ridb-backend/internal/notify"
	"github.com/mic-havock/ridb-backend/internal/service"
	"github.com/mic-havock/ridb-backend/internal/store"
)

var (
	configPath string
	envFile    string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ridb-backend",
	Short: "Campsite availability monitor for recreation.gov",
	Long: `ridb-backend watches recreation.gov campsites on behalf of users and emails
them when a campsite becomes reservable for the dates they asked for.

Settings come from defaults, an optional TOML file (--config) and the
environment, in that order. A .env file in the working directory is loaded
first if present.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a TOML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file")
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			log.Println("Received interrupt signal, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// openDB connects to DATABASE_URL or exits
func openDB() *sql.DB {
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	log.Println("Connecting to database...")
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	return db
}

// newNotifier returns a Mailjet notifier, or a dry-run notifier when the
// mail secrets are not set
func newNotifier() service.Notifier {
	if !cfg.MailConfigured() {
		log.Println("MAILJET_PUBLIC_KEY/MAILJET_PRIVATE_KEY not set, notifications will be logged only")
		return notify.NewLogNotifier(nil)
	}

	n, err := notify.NewMailjetNotifier(
		notify.WithSecrets(cfg.MailjetPublicKey, cfg.MailjetPrivateKey),
		notify.WithSender(cfg.EmailSender, cfg.EmailName),
	)
	if err != nil {
		log.Fatalf("Failed to configure email: %v", err)
	}
	return n
}

// newMonitor wires the monitor to Postgres, recreation.gov and email. Metrics
// are recalculated after every cycle.
func newMonitor(ctx context.Context, db *sql.DB) (*service.Monitor, *service.MetricsService) {
	metrics := service.NewMetricsService(db)
	client := service.NewRecGovClient(cfg.RecGovBaseURL, cfg.RateLimitCoolDown)

	monitor := service.NewMonitor(
		store.NewWatchStore(db),
		client,
		newNotifier(),
		cfg,
		service.WithCycleHook(func(stats service.CycleStats) {
			if ctx.Err() != nil {
				return
			}
			if _, err := metrics.CalculateAndStore(ctx, &stats); err != nil {
				log.Printf("Error storing metrics: %v", err)
			}
		}),
	)
	return monitor, metrics
}
