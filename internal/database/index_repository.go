package database

import (
	"errors"

	"github.com/lib/pq"
)

// UniqueSlotIndexName is the duplicate-prevention index on the bookings
// table. It is partial: only active bookings participate, so cancelled
// records never block a slot from being rebooked.
const UniqueSlotIndexName = "bookings_unique_active_slot"

// IndexRepository handles index introspection and creation for the
// bookings table
type IndexRepository struct {
	db DB
}

// NewIndexRepository creates a new IndexRepository
func NewIndexRepository(db DB) *IndexRepository {
	return &IndexRepository{db: db}
}

// HasUniqueSlotIndex reports whether the duplicate-prevention index exists
func (r *IndexRepository) HasUniqueSlotIndex() (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM pg_indexes
		WHERE tablename = 'bookings'
		  AND indexname = $1
	`

	var count int
	if err := r.db.QueryRow(query, UniqueSlotIndexName).Scan(&count); err != nil {
		return false, err
	}

	return count > 0, nil
}

// CreateUniqueSlotIndex creates the duplicate-prevention index. Creation
// fails with a unique violation if duplicate active bookings still exist;
// callers should run the cleanup first and retry.
func (r *IndexRepository) CreateUniqueSlotIndex() error {
	query := `
		CREATE UNIQUE INDEX ` + UniqueSlotIndexName + `
		ON bookings (ground_id, booking_date, start_time, end_time, status)
		WHERE status IN ('pending', 'confirmed', 'completed')
	`

	_, err := r.db.Exec(query)
	return err
}

// IsUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation (error code 23505)
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
