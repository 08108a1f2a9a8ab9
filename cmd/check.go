package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/mic-havock/ridb-backend/internal/model"
	"github.com/mic-havock/ridb-backend/internal/service"
)

var (
	checkCampsite string
	checkFacility string
	checkStart    string
	checkEnd      string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check one campsite's availability for a date range",
	Long: `Fetch availability for a campsite from recreation.gov and report whether
every night from --start up to (not including) --end is reservable.

With --facility the facility-month endpoint is used instead of the
single-campsite endpoint, which is how grouped watches are checked.

Examples:
  ./ridb-backend check --campsite 5 --start 2025-06-01 --end 2025-06-03
  ./ridb-backend check --campsite 5 --facility 232459 --start 2025-06-01 --end 2025-06-03`,
	Run: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkCampsite, "campsite", "", "Campsite ID")
	checkCmd.Flags().StringVar(&checkFacility, "facility", "", "Facility (campground) ID, uses the month endpoint")
	checkCmd.Flags().StringVar(&checkStart, "start", "", "First night (YYYY-MM-DD)")
	checkCmd.Flags().StringVar(&checkEnd, "end", "", "Check-out date (YYYY-MM-DD)")
	checkCmd.MarkFlagRequired("campsite")
	checkCmd.MarkFlagRequired("start")
	checkCmd.MarkFlagRequired("end")
}

func runCheck(cmd *cobra.Command, args []string) {
	w := model.Watch{
		CampsiteID: checkCampsite,
		FacilityID: checkFacility,
	}

	var err error
	if w.StartDate, err = model.ParseDate(checkStart); err != nil {
		log.Fatalf("Invalid --start: %v", err)
	}
	if w.EndDate, err = model.ParseDate(checkEnd); err != nil {
		log.Fatalf("Invalid --end: %v", err)
	}
	if w.EndDate.Before(w.StartDate) {
		log.Fatalf("--end %s is before --start %s", checkEnd, checkStart)
	}

	ctx, cancel := signalContext()
	defer cancel()

	client := service.NewRecGovClient(cfg.RecGovBaseURL, cfg.RateLimitCoolDown)

	var statuses model.DateStatuses
	if checkFacility != "" {
		if w.SpansMonths() {
			log.Fatal("--facility checks need --start and --end in the same month")
		}
		campsites, err := client.GetFacilityMonth(ctx, checkFacility, w.StartDate)
		if err != nil {
			log.Fatalf("Availability check failed: %v", err)
		}
		var ok bool
		if statuses, ok = campsites[checkCampsite]; !ok {
			log.Fatalf("Campsite %s not found in facility %s", checkCampsite, checkFacility)
		}
	} else {
		if statuses, err = client.GetSingle(ctx, checkCampsite); err != nil {
			log.Fatalf("Availability check failed: %v", err)
		}
	}

	for day := w.StartDate; day.Before(w.EndDate); day = day.AddDate(0, 0, 1) {
		status := statuses.Status(day)
		if status == "" {
			status = "(unknown)"
		}
		fmt.Printf("%s  %s\n", model.FormatDate(day), status)
	}

	result := service.CheckWatch(w, statuses, service.NewStatusSet(cfg.AvailableStatuses))
	if result.Reservable {
		fmt.Printf("Campsite %s is reservable from %s to %s\n", checkCampsite, checkStart, checkEnd)
		fmt.Printf("Book now at: https://www.recreation.gov/camping/campsites/%s\n", checkCampsite)
		return
	}
	fmt.Printf("Campsite %s is not reservable from %s to %s\n", checkCampsite, checkStart, checkEnd)
}
