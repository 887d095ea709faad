package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/pitchreserve/ground-booking-backend/internal/config"
	"github.com/pitchreserve/ground-booking-backend/internal/database"
	"github.com/pitchreserve/ground-booking-backend/internal/models"
	"github.com/pitchreserve/ground-booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

func main() {
	var dbURLFlag string
	var execute bool
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.BoolVar(&execute, "execute", false, "apply the cleanup; without this flag the run is a dry-run preview")
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	// Flag takes precedence over environment and .env
	if dbURLFlag != "" {
		os.Setenv("DATABASE_URL", dbURLFlag)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load configuration: %v", err)
	}

	if level, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	// Release the connection on interrupt; no further items are processed.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warnf("received %s, closing database connection", sig)
		db.Close()
		os.Exit(130)
	}()

	repo := database.NewBookingRepository(db)
	svc := services.NewCleanupService(repo, logger)

	if execute {
		fmt.Println("Running duplicate booking cleanup (EXECUTE mode)...")
	} else {
		fmt.Println("Running duplicate booking cleanup (dry-run)...")
	}

	report, err := svc.Run(!execute)
	if err != nil {
		logger.Fatalf("cleanup failed: %v", err)
	}

	printReport(report)

	if execute {
		// Verification pass: a clean store has nothing left to detect
		remaining, err := svc.FindDuplicateGroups()
		if err != nil {
			logger.Fatalf("post-cleanup verification failed: %v", err)
		}
		fmt.Printf("Verification: %d duplicate group(s) remaining.\n", len(remaining))
	} else if report.Result.RemovedCount > 0 {
		fmt.Println()
		fmt.Println("This was a dry-run; no bookings were modified.")
		fmt.Println("To apply these changes, run:")
		fmt.Println("  go run ./cmd/maintenance/cleanup-duplicates -execute")
	}
}

func printReport(report *models.CleanupReport) {
	fmt.Printf("\nDuplicate groups found: %d\n", len(report.Groups))
	for _, group := range report.Groups {
		fmt.Printf("  [%d bookings] %s\n", group.Count, group.Key)
		for i, b := range group.Bookings {
			marker := "remove"
			if i == 0 {
				marker = "keep  "
			}
			fmt.Printf("    %s %s  status=%s amount=%.2f created=%s\n",
				marker, b.ID, b.Status, b.TotalAmount, b.CreatedAt.Format("2006-01-02 15:04:05"))
		}
	}

	fmt.Printf("\nAmount anomaly groups (advisory, not reconciled): %d\n", len(report.Anomalies))
	for _, anomaly := range report.Anomalies {
		fmt.Printf("  [%d bookings] %s amounts=%v\n", anomaly.Count, anomaly.Key, anomaly.Amounts)
	}

	verb := "removed"
	if report.DryRun {
		verb = "would remove"
	}
	fmt.Printf("\nKept: %d, %s: %d\n", report.Result.KeptCount, verb, report.Result.RemovedCount)
	if len(report.Result.FailedIDs) > 0 {
		fmt.Printf("Failed updates (skipped): %v\n", report.Result.FailedIDs)
	}

	if len(report.StatusCounts) > 0 {
		fmt.Println("\nBookings by status:")
		for _, status := range []models.BookingStatus{
			models.BookingStatusPending,
			models.BookingStatusConfirmed,
			models.BookingStatusCompleted,
			models.BookingStatusCancelled,
			models.BookingStatusNoShow,
		} {
			if count, ok := report.StatusCounts[status]; ok {
				fmt.Printf("  %s: %d\n", status, count)
			}
		}
	}
}
