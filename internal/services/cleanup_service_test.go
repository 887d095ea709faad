package services

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/pitchreserve/ground-booking-backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBookingStore keeps bookings in memory and answers the aggregate
// queries the way the SQL store does: active rows only, conflicted keys
// only, ordered within a key by created_at then id.
type fakeBookingStore struct {
	bookings   []models.Booking
	cancelErrs map[string]error
	writes     int
	queryErr   error
}

func (f *fakeBookingStore) GetActiveDuplicates() ([]models.Booking, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}

	counts := map[models.ConflictKey]int{}
	for _, b := range f.bookings {
		if b.IsActive() {
			counts[b.ConflictKey()]++
		}
	}

	result := []models.Booking{}
	for _, b := range f.bookings {
		if b.IsActive() && counts[b.ConflictKey()] > 1 {
			result = append(result, b)
		}
	}
	return result, nil
}

func (f *fakeBookingStore) GetActiveSlotAnomalies() ([]models.Booking, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}

	counts := map[models.SlotKey]int{}
	hasZero := map[models.SlotKey]bool{}
	for _, b := range f.bookings {
		if b.IsActive() {
			counts[b.SlotKey()]++
			if b.TotalAmount == 0 {
				hasZero[b.SlotKey()] = true
			}
		}
	}

	result := []models.Booking{}
	for _, b := range f.bookings {
		if b.IsActive() && counts[b.SlotKey()] > 1 && hasZero[b.SlotKey()] {
			result = append(result, b)
		}
	}
	return result, nil
}

func (f *fakeBookingStore) CancelDuplicate(bookingID string, now time.Time) error {
	if err := f.cancelErrs[bookingID]; err != nil {
		return err
	}
	for i := range f.bookings {
		if f.bookings[i].ID == bookingID {
			if err := f.bookings[i].CancelAsDuplicate(now); err != nil {
				return err
			}
			f.writes++
			return nil
		}
	}
	return fmt.Errorf("booking not found or not active")
}

func (f *fakeBookingStore) CountByStatus() (map[models.BookingStatus]int, error) {
	counts := map[models.BookingStatus]int{}
	for _, b := range f.bookings {
		counts[b.Status]++
	}
	return counts, nil
}

func (f *fakeBookingStore) get(id string) models.Booking {
	for _, b := range f.bookings {
		if b.ID == id {
			return b
		}
	}
	return models.Booking{}
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func makeBooking(id, groundID, userID, start, end string, status models.BookingStatus, amount float64, createdAt time.Time) models.Booking {
	return models.Booking{
		ID:          id,
		GroundID:    groundID,
		UserID:      userID,
		BookingDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		StartTime:   start,
		EndTime:     end,
		Status:      status,
		TotalAmount: amount,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func TestFindDuplicateGroups(t *testing.T) {
	t1 := time.Date(2024, 4, 20, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t1.Add(2 * time.Hour)

	t.Run("Groups Duplicates By Conflict Key", func(t *testing.T) {
		store := &fakeBookingStore{bookings: []models.Booking{
			makeBooking("b1", "G1", "U1", "10:00", "11:00", models.BookingStatusPending, 500, t1),
			makeBooking("b2", "G1", "U1", "10:00", "11:00", models.BookingStatusPending, 500, t2),
			makeBooking("b3", "G1", "U2", "10:00", "11:00", models.BookingStatusConfirmed, 500, t1),
		}}
		svc := NewCleanupService(store, testLogger())

		groups, err := svc.FindDuplicateGroups()
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, 2, groups[0].Count)
		assert.Equal(t, "U1", groups[0].Key.UserID)
		assert.Equal(t, "b1", groups[0].Bookings[0].ID)
		assert.Equal(t, "b2", groups[0].Bookings[1].ID)
	})

	t.Run("Excludes Cancelled Bookings", func(t *testing.T) {
		store := &fakeBookingStore{bookings: []models.Booking{
			makeBooking("b1", "G1", "U1", "10:00", "11:00", models.BookingStatusPending, 500, t1),
			makeBooking("b2", "G1", "U1", "10:00", "11:00", models.BookingStatusCancelled, 0, t2),
			makeBooking("b3", "G1", "U1", "10:00", "11:00", models.BookingStatusCancelled, 0, t3),
		}}
		svc := NewCleanupService(store, testLogger())

		groups, err := svc.FindDuplicateGroups()
		require.NoError(t, err)
		assert.Empty(t, groups)
	})

	t.Run("Largest Groups First", func(t *testing.T) {
		store := &fakeBookingStore{bookings: []models.Booking{
			makeBooking("b1", "G1", "U1", "10:00", "11:00", models.BookingStatusPending, 500, t1),
			makeBooking("b2", "G1", "U1", "10:00", "11:00", models.BookingStatusPending, 500, t2),
			makeBooking("b3", "G2", "U2", "14:00", "15:00", models.BookingStatusConfirmed, 800, t1),
			makeBooking("b4", "G2", "U2", "14:00", "15:00", models.BookingStatusConfirmed, 800, t2),
			makeBooking("b5", "G2", "U2", "14:00", "15:00", models.BookingStatusCompleted, 800, t3),
		}}
		svc := NewCleanupService(store, testLogger())

		groups, err := svc.FindDuplicateGroups()
		require.NoError(t, err)
		require.Len(t, groups, 2)
		assert.Equal(t, 3, groups[0].Count)
		assert.Equal(t, "G2", groups[0].Key.GroundID)
		assert.Equal(t, 2, groups[1].Count)
	})

	t.Run("Store Fault Aborts With No Groups", func(t *testing.T) {
		store := &fakeBookingStore{queryErr: fmt.Errorf("connection refused")}
		svc := NewCleanupService(store, testLogger())

		groups, err := svc.FindDuplicateGroups()
		assert.Nil(t, groups)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})
}

func TestFindAmountAnomalies(t *testing.T) {
	t1 := time.Date(2024, 4, 20, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	t.Run("Flags Zero Amount Slot Pair Across Users", func(t *testing.T) {
		store := &fakeBookingStore{bookings: []models.Booking{
			makeBooking("b1", "G1", "U1", "10:00", "11:00", models.BookingStatusConfirmed, 500, t1),
			makeBooking("b2", "G1", "U2", "10:00", "11:00", models.BookingStatusConfirmed, 0, t2),
		}}
		svc := NewCleanupService(store, testLogger())

		anomalies, err := svc.FindAmountAnomalies()
		require.NoError(t, err)
		require.Len(t, anomalies, 1)
		assert.Equal(t, 2, anomalies[0].Count)
		assert.Equal(t, []float64{0, 500}, anomalies[0].Amounts)

		// The plain duplicate detector keys on the user as well, so the
		// same pair yields no duplicate group.
		groups, err := svc.FindDuplicateGroups()
		require.NoError(t, err)
		assert.Empty(t, groups)
	})

	t.Run("Ignores Slot Pairs Without A Zero Amount", func(t *testing.T) {
		store := &fakeBookingStore{bookings: []models.Booking{
			makeBooking("b1", "G1", "U1", "10:00", "11:00", models.BookingStatusConfirmed, 500, t1),
			makeBooking("b2", "G1", "U2", "10:00", "11:00", models.BookingStatusConfirmed, 800, t2),
		}}
		svc := NewCleanupService(store, testLogger())

		anomalies, err := svc.FindAmountAnomalies()
		require.NoError(t, err)
		assert.Empty(t, anomalies)
	})
}

func TestReconcile(t *testing.T) {
	t1 := time.Date(2024, 4, 20, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t1.Add(2 * time.Hour)

	seed := func() *fakeBookingStore {
		return &fakeBookingStore{bookings: []models.Booking{
			makeBooking("b1", "G1", "U1", "10:00", "11:00", models.BookingStatusPending, 500, t1),
			makeBooking("b2", "G1", "U1", "10:00", "11:00", models.BookingStatusPending, 500, t2),
		}}
	}

	t.Run("Dry Run Issues No Writes", func(t *testing.T) {
		store := seed()
		svc := NewCleanupService(store, testLogger())

		groups, err := svc.FindDuplicateGroups()
		require.NoError(t, err)

		result := svc.Reconcile(groups, true)
		assert.Equal(t, 1, result.KeptCount)
		assert.Equal(t, 1, result.RemovedCount)
		assert.Equal(t, []string{"b2"}, result.RemovedIDs)
		assert.Zero(t, store.writes)
		assert.Equal(t, models.BookingStatusPending, store.get("b2").Status)
	})

	t.Run("Execute Cancels Later Bookings", func(t *testing.T) {
		store := seed()
		svc := NewCleanupService(store, testLogger())

		groups, err := svc.FindDuplicateGroups()
		require.NoError(t, err)

		result := svc.Reconcile(groups, false)
		assert.Equal(t, 1, result.KeptCount)
		assert.Equal(t, 1, result.RemovedCount)
		assert.Equal(t, 1, store.writes)

		kept := store.get("b1")
		assert.Equal(t, models.BookingStatusPending, kept.Status)
		assert.Equal(t, 500.0, kept.TotalAmount)

		removed := store.get("b2")
		assert.Equal(t, models.BookingStatusCancelled, removed.Status)
		assert.Zero(t, removed.TotalAmount)
		require.NotNil(t, removed.CancelledBy)
		assert.Equal(t, models.SystemCancelledBy, *removed.CancelledBy)
		require.NotNil(t, removed.CancellationReason)
		assert.Equal(t, models.DuplicateCancelReason, *removed.CancellationReason)
		require.NotNil(t, removed.RefundAmount)
		assert.Zero(t, *removed.RefundAmount)
		require.NotNil(t, removed.RefundStatus)
		assert.Equal(t, models.RefundStatusProcessed, *removed.RefundStatus)
	})

	t.Run("Earliest Created Booking Is Kept", func(t *testing.T) {
		store := &fakeBookingStore{bookings: []models.Booking{
			makeBooking("b3", "G1", "U1", "10:00", "11:00", models.BookingStatusPending, 500, t3),
			makeBooking("b1", "G1", "U1", "10:00", "11:00", models.BookingStatusPending, 500, t1),
			makeBooking("b2", "G1", "U1", "10:00", "11:00", models.BookingStatusPending, 500, t2),
		}}
		svc := NewCleanupService(store, testLogger())

		groups, err := svc.FindDuplicateGroups()
		require.NoError(t, err)

		result := svc.Reconcile(groups, false)
		assert.Equal(t, 1, result.KeptCount)
		assert.Equal(t, 2, result.RemovedCount)
		assert.ElementsMatch(t, []string{"b2", "b3"}, result.RemovedIDs)
		assert.Equal(t, models.BookingStatusPending, store.get("b1").Status)
	})

	t.Run("Equal Timestamps Break Ties By ID", func(t *testing.T) {
		store := &fakeBookingStore{bookings: []models.Booking{
			makeBooking("b2", "G1", "U1", "10:00", "11:00", models.BookingStatusPending, 500, t1),
			makeBooking("b1", "G1", "U1", "10:00", "11:00", models.BookingStatusPending, 500, t1),
		}}
		svc := NewCleanupService(store, testLogger())

		groups, err := svc.FindDuplicateGroups()
		require.NoError(t, err)

		result := svc.Reconcile(groups, false)
		assert.Equal(t, []string{"b2"}, result.RemovedIDs)
		assert.Equal(t, models.BookingStatusPending, store.get("b1").Status)
	})

	t.Run("Failed Update Does Not Abort The Batch", func(t *testing.T) {
		store := &fakeBookingStore{
			bookings: []models.Booking{
				makeBooking("b1", "G1", "U1", "10:00", "11:00", models.BookingStatusPending, 500, t1),
				makeBooking("b2", "G1", "U1", "10:00", "11:00", models.BookingStatusPending, 500, t2),
				makeBooking("b3", "G1", "U1", "10:00", "11:00", models.BookingStatusPending, 500, t3),
			},
			cancelErrs: map[string]error{"b2": fmt.Errorf("write conflict")},
		}
		svc := NewCleanupService(store, testLogger())

		groups, err := svc.FindDuplicateGroups()
		require.NoError(t, err)

		result := svc.Reconcile(groups, false)
		assert.Equal(t, 1, result.KeptCount)
		assert.Equal(t, 1, result.RemovedCount)
		assert.Equal(t, []string{"b3"}, result.RemovedIDs)
		assert.Equal(t, []string{"b2"}, result.FailedIDs)
		assert.Equal(t, models.BookingStatusCancelled, store.get("b3").Status)
		assert.Equal(t, models.BookingStatusPending, store.get("b2").Status)
	})
}

func TestRun(t *testing.T) {
	t1 := time.Date(2024, 4, 20, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	t.Run("Full Pass Produces Report", func(t *testing.T) {
		store := &fakeBookingStore{bookings: []models.Booking{
			makeBooking("b1", "G1", "U1", "10:00", "11:00", models.BookingStatusPending, 500, t1),
			makeBooking("b2", "G1", "U1", "10:00", "11:00", models.BookingStatusPending, 500, t2),
			makeBooking("b3", "G2", "U2", "14:00", "15:00", models.BookingStatusConfirmed, 800, t1),
		}}
		svc := NewCleanupService(store, testLogger())

		report, err := svc.Run(true)
		require.NoError(t, err)
		assert.True(t, report.DryRun)
		assert.Len(t, report.Groups, 1)
		assert.Empty(t, report.Anomalies)
		assert.Equal(t, 1, report.Result.KeptCount)
		assert.Equal(t, 1, report.Result.RemovedCount)
		assert.Zero(t, store.writes)
		assert.Equal(t, 2, report.StatusCounts[models.BookingStatusPending])
		assert.Equal(t, 1, report.StatusCounts[models.BookingStatusConfirmed])
	})

	t.Run("Execute Twice Is Idempotent", func(t *testing.T) {
		store := &fakeBookingStore{bookings: []models.Booking{
			makeBooking("b1", "G1", "U1", "10:00", "11:00", models.BookingStatusPending, 500, t1),
			makeBooking("b2", "G1", "U1", "10:00", "11:00", models.BookingStatusPending, 500, t2),
		}}
		svc := NewCleanupService(store, testLogger())

		first, err := svc.Run(false)
		require.NoError(t, err)
		assert.Equal(t, 1, first.Result.RemovedCount)
		assert.Equal(t, 1, store.writes)

		second, err := svc.Run(false)
		require.NoError(t, err)
		assert.Empty(t, second.Groups)
		assert.Zero(t, second.Result.KeptCount)
		assert.Zero(t, second.Result.RemovedCount)
		assert.Equal(t, 1, store.writes)
	})

	t.Run("Detection Fault Is Fatal", func(t *testing.T) {
		store := &fakeBookingStore{queryErr: fmt.Errorf("connection refused")}
		svc := NewCleanupService(store, testLogger())

		report, err := svc.Run(true)
		assert.Nil(t, report)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})
}
