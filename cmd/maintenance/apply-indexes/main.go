package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/pitchreserve/ground-booking-backend/internal/config"
	"github.com/pitchreserve/ground-booking-backend/internal/database"
	"github.com/pitchreserve/ground-booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

func main() {
	var dbURLFlag string
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
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

	repo := database.NewIndexRepository(db)
	svc := services.NewIndexService(repo, logger)

	fmt.Printf("Ensuring unique slot index %q on bookings...\n", database.UniqueSlotIndexName)

	outcome, err := svc.EnsureUniqueSlotIndex()
	switch {
	case errors.Is(err, services.ErrConstraintViolation):
		// Not fatal: the index can be applied once the data is clean
		fmt.Println("Duplicate active bookings still exist; the index was not created.")
		fmt.Println("Run the duplicate cleanup first, then re-run this command:")
		fmt.Println("  go run ./cmd/maintenance/cleanup-duplicates -execute")
		fmt.Println("  go run ./cmd/maintenance/apply-indexes")
	case err != nil:
		logger.Fatalf("failed to ensure unique slot index: %v", err)
	case outcome == services.IndexAlreadyExists:
		fmt.Println("Index already exists; nothing to do.")
	case outcome == services.IndexCreated:
		fmt.Println("Index created. Duplicate active bookings are now rejected at write time.")
	}
}
