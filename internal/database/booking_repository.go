package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pitchreserve/ground-booking-backend/internal/models"
)

// scanner abstracts *sql.Row and *sql.Rows for the scan helpers
type scanner interface {
	Scan(dest ...interface{}) error
}

// bookingColumns is the column list shared by every booking SELECT
const bookingColumns = `id, ground_id, user_id, booking_date, start_time, end_time,
	   status, total_amount, cancelled_by, cancelled_at, cancellation_reason,
	   refund_amount, refund_status, created_at, updated_at`

// BookingRepository handles database operations for the bookings table
type BookingRepository struct {
	db DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create creates a new booking
func (r *BookingRepository) Create(booking *models.Booking) error {
	query := `
		INSERT INTO bookings (
			id, ground_id, user_id, booking_date, start_time, end_time,
			status, total_amount
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		RETURNING created_at, updated_at
	`

	// Generate ID if not provided
	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}

	err := r.db.QueryRow(
		query,
		booking.ID, booking.GroundID, booking.UserID, booking.BookingDate,
		booking.StartTime, booking.EndTime, booking.Status, booking.TotalAmount,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)

	return err
}

// GetByID retrieves a booking by ID
func (r *BookingRepository) GetByID(bookingID string) (*models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE id = $1
	`

	return r.scanBooking(r.db.QueryRow(query, bookingID))
}

// GetActiveDuplicates retrieves every active booking whose conflict key
// (ground, date, slot, user) is shared by more than one active booking.
// Rows come back ordered by conflict key, then created_at, then id, so a
// caller can partition them into groups with a single pass.
func (r *BookingRepository) GetActiveDuplicates() ([]models.Booking, error) {
	query := `
		SELECT b.id, b.ground_id, b.user_id, b.booking_date, b.start_time, b.end_time,
			   b.status, b.total_amount, b.cancelled_by, b.cancelled_at, b.cancellation_reason,
			   b.refund_amount, b.refund_status, b.created_at, b.updated_at
		FROM bookings b
		JOIN (
			SELECT ground_id, booking_date, start_time, end_time, user_id
			FROM bookings
			WHERE status IN ('pending', 'confirmed', 'completed')
			GROUP BY ground_id, booking_date, start_time, end_time, user_id
			HAVING COUNT(*) > 1
		) d ON b.ground_id = d.ground_id
		   AND b.booking_date = d.booking_date
		   AND b.start_time = d.start_time
		   AND b.end_time = d.end_time
		   AND b.user_id = d.user_id
		WHERE b.status IN ('pending', 'confirmed', 'completed')
		ORDER BY b.ground_id, b.booking_date, b.start_time, b.end_time, b.user_id,
				 b.created_at, b.id
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanBookings(rows)
}

// GetActiveSlotAnomalies retrieves active bookings in slots (ground, date,
// slot, any user) booked more than once where a zero amount appears among
// the members. These indicate data-entry duplicates priced inconsistently.
func (r *BookingRepository) GetActiveSlotAnomalies() ([]models.Booking, error) {
	query := `
		SELECT b.id, b.ground_id, b.user_id, b.booking_date, b.start_time, b.end_time,
			   b.status, b.total_amount, b.cancelled_by, b.cancelled_at, b.cancellation_reason,
			   b.refund_amount, b.refund_status, b.created_at, b.updated_at
		FROM bookings b
		JOIN (
			SELECT ground_id, booking_date, start_time, end_time
			FROM bookings
			WHERE status IN ('pending', 'confirmed', 'completed')
			GROUP BY ground_id, booking_date, start_time, end_time
			HAVING COUNT(*) > 1 AND BOOL_OR(total_amount = 0)
		) d ON b.ground_id = d.ground_id
		   AND b.booking_date = d.booking_date
		   AND b.start_time = d.start_time
		   AND b.end_time = d.end_time
		WHERE b.status IN ('pending', 'confirmed', 'completed')
		ORDER BY b.ground_id, b.booking_date, b.start_time, b.end_time,
				 b.created_at, b.id
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanBookings(rows)
}

// CancelDuplicate soft-cancels a booking removed by the duplicate cleanup:
// status to cancelled, amount zeroed, cancellation stamped with a zero
// refund marked processed. Only active bookings are eligible.
func (r *BookingRepository) CancelDuplicate(bookingID string, now time.Time) error {
	query := `
		UPDATE bookings
		SET status = 'cancelled',
			total_amount = 0,
			cancelled_by = $2,
			cancelled_at = $3,
			cancellation_reason = $4,
			refund_amount = 0,
			refund_status = 'processed',
			updated_at = NOW()
		WHERE id = $1
		  AND status IN ('pending', 'confirmed', 'completed')
	`

	result, err := r.db.Exec(query, bookingID, models.SystemCancelledBy, now, models.DuplicateCancelReason)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return fmt.Errorf("booking not found or not active")
	}

	return nil
}

// CountByStatus returns booking counts keyed by status
func (r *BookingRepository) CountByStatus() (map[models.BookingStatus]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM bookings
		GROUP BY status
		ORDER BY status
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[models.BookingStatus]int{}
	for rows.Next() {
		var status models.BookingStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

// scanBooking scans a single booking
func (r *BookingRepository) scanBooking(row scanner) (*models.Booking, error) {
	booking := &models.Booking{}
	if err := scanBookingFields(row, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// scanBookings scans multiple bookings from rows
func (r *BookingRepository) scanBookings(rows *sql.Rows) ([]models.Booking, error) {
	bookings := []models.Booking{}

	for rows.Next() {
		var booking models.Booking
		if err := scanBookingFields(rows, &booking); err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}

func scanBookingFields(row scanner, booking *models.Booking) error {
	var cancelledBy sql.NullString
	var cancelledAt sql.NullTime
	var cancellationReason sql.NullString
	var refundAmount sql.NullFloat64
	var refundStatus sql.NullString

	err := row.Scan(
		&booking.ID, &booking.GroundID, &booking.UserID, &booking.BookingDate,
		&booking.StartTime, &booking.EndTime, &booking.Status, &booking.TotalAmount,
		&cancelledBy, &cancelledAt, &cancellationReason,
		&refundAmount, &refundStatus, &booking.CreatedAt, &booking.UpdatedAt,
	)

	if err != nil {
		return err
	}

	// Convert sql.Null* types
	if cancelledBy.Valid {
		booking.CancelledBy = &cancelledBy.String
	}
	if cancelledAt.Valid {
		booking.CancelledAt = &cancelledAt.Time
	}
	if cancellationReason.Valid {
		booking.CancellationReason = &cancellationReason.String
	}
	if refundAmount.Valid {
		booking.RefundAmount = &refundAmount.Float64
	}
	if refundStatus.Valid {
		status := models.RefundStatus(refundStatus.String)
		booking.RefundStatus = &status
	}

	return nil
}
