package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/mic-havock/ridb-backend/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the reservations and metrics tables",
	Long: `Create the tables the monitor reads and writes if they do not already exist.
Safe to run repeatedly.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		db := openDB()
		defer db.Close()

		if err := store.Migrate(ctx, db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Schema is up to date")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
