package models

import (
	"errors"
	"time"
)

// BookingStatus represents the status of a ground booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusNoShow    BookingStatus = "no_show"
)

// ActiveStatuses are the statuses that count toward slot occupancy.
// Cancelled and no-show bookings never participate in duplicate detection.
var ActiveStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusConfirmed,
	BookingStatusCompleted,
}

// RefundStatus represents the state of a cancellation refund
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusProcessed RefundStatus = "processed"
	RefundStatusFailed    RefundStatus = "failed"
)

const (
	// SystemCancelledBy marks cancellations issued by maintenance tooling
	// rather than a user or an admin.
	SystemCancelledBy = "system"

	// DuplicateCancelReason is stamped on bookings removed by the
	// duplicate cleanup.
	DuplicateCancelReason = "duplicate booking detected by system cleanup"
)

// Booking represents a cricket ground reservation
type Booking struct {
	ID                 string        `json:"id" db:"id"`
	GroundID           string        `json:"ground_id" db:"ground_id"`
	UserID             string        `json:"user_id" db:"user_id"`
	BookingDate        time.Time     `json:"booking_date" db:"booking_date"`
	StartTime          string        `json:"start_time" db:"start_time"`
	EndTime            string        `json:"end_time" db:"end_time"`
	Status             BookingStatus `json:"status" db:"status"`
	TotalAmount        float64       `json:"total_amount" db:"total_amount"`
	CancelledBy        *string       `json:"cancelled_by,omitempty" db:"cancelled_by"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancellationReason *string       `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	RefundAmount       *float64      `json:"refund_amount,omitempty" db:"refund_amount"`
	RefundStatus       *RefundStatus `json:"refund_status,omitempty" db:"refund_status"`
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" db:"updated_at"`
}

// IsActive checks if the booking counts toward slot occupancy
func (b *Booking) IsActive() bool {
	for _, s := range ActiveStatuses {
		if b.Status == s {
			return true
		}
	}
	return false
}

// ConflictKey returns the tuple identifying bookings that compete for the
// same ground, date, slot and user.
func (b *Booking) ConflictKey() ConflictKey {
	return ConflictKey{
		GroundID:    b.GroundID,
		BookingDate: b.BookingDate.Format("2006-01-02"),
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
		UserID:      b.UserID,
	}
}

// SlotKey returns the broader key used by the amount-anomaly detector: the
// same slot tuple without the user.
func (b *Booking) SlotKey() SlotKey {
	return SlotKey{
		GroundID:    b.GroundID,
		BookingDate: b.BookingDate.Format("2006-01-02"),
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
	}
}

// CancelAsDuplicate applies the soft-cancel transition used by the duplicate
// cleanup: status to cancelled, amount zeroed, cancellation record stamped
// with a zero refund already marked processed.
func (b *Booking) CancelAsDuplicate(now time.Time) error {
	if !b.IsActive() {
		return errors.New("booking is not active")
	}

	cancelledBy := SystemCancelledBy
	reason := DuplicateCancelReason
	refundAmount := 0.0
	refundStatus := RefundStatusProcessed

	b.Status = BookingStatusCancelled
	b.TotalAmount = 0
	b.CancelledBy = &cancelledBy
	b.CancelledAt = &now
	b.CancellationReason = &reason
	b.RefundAmount = &refundAmount
	b.RefundStatus = &refundStatus
	b.UpdatedAt = now

	return nil
}
