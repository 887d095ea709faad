package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/pitchreserve/ground-booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// BookingStore is the store surface the cleanup needs. Implemented by
// database.BookingRepository.
type BookingStore interface {
	GetActiveDuplicates() ([]models.Booking, error)
	GetActiveSlotAnomalies() ([]models.Booking, error)
	CancelDuplicate(bookingID string, now time.Time) error
	CountByStatus() (map[models.BookingStatus]int, error)
}

// CleanupService detects duplicate bookings and reconciles them.
//
// Detection and reconciliation are read/compute operations returning
// structured results; only Reconcile with dryRun=false writes. Amount
// anomalies are advisory: they are reported but intentionally never feed
// the removal decision, since a zero-amount same-slot booking by another
// user may be a legitimate manual adjustment rather than a duplicate.
type CleanupService struct {
	store  BookingStore
	logger *logrus.Logger
	now    func() time.Time
}

// NewCleanupService creates a new CleanupService
func NewCleanupService(store BookingStore, logger *logrus.Logger) *CleanupService {
	return &CleanupService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// FindDuplicateGroups scans active bookings and returns every conflict-key
// partition with more than one member, largest groups first. Cancelled and
// no-show bookings never appear. Read-only.
func (s *CleanupService) FindDuplicateGroups() ([]models.DuplicateGroup, error) {
	bookings, err := s.store.GetActiveDuplicates()
	if err != nil {
		return nil, fmt.Errorf("%w: fetching duplicate candidates: %v", ErrStoreUnavailable, err)
	}

	partitions := map[models.ConflictKey][]models.Booking{}
	for _, b := range bookings {
		key := b.ConflictKey()
		partitions[key] = append(partitions[key], b)
	}

	groups := []models.DuplicateGroup{}
	for key, members := range partitions {
		if len(members) < 2 {
			continue
		}
		sortByCreation(members)
		groups = append(groups, models.DuplicateGroup{
			Key:      key,
			Bookings: members,
			Count:    len(members),
		})
	}

	// Largest conflicts first; key order keeps equal-sized groups stable
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Key.String() < groups[j].Key.String()
	})

	return groups, nil
}

// FindAmountAnomalies returns slot partitions (conflict key without the
// user) with more than one active member where zero appears among the
// amounts. Advisory only. Read-only.
func (s *CleanupService) FindAmountAnomalies() ([]models.AmountAnomalyGroup, error) {
	bookings, err := s.store.GetActiveSlotAnomalies()
	if err != nil {
		return nil, fmt.Errorf("%w: fetching amount anomalies: %v", ErrStoreUnavailable, err)
	}

	partitions := map[models.SlotKey][]models.Booking{}
	for _, b := range bookings {
		key := b.SlotKey()
		partitions[key] = append(partitions[key], b)
	}

	anomalies := []models.AmountAnomalyGroup{}
	for key, members := range partitions {
		if len(members) < 2 {
			continue
		}
		sortByCreation(members)
		anomalies = append(anomalies, models.AmountAnomalyGroup{
			Key:      key,
			Bookings: members,
			Count:    len(members),
			Amounts:  distinctAmounts(members),
		})
	}

	sort.Slice(anomalies, func(i, j int) bool {
		if anomalies[i].Count != anomalies[j].Count {
			return anomalies[i].Count > anomalies[j].Count
		}
		return anomalies[i].Key.String() < anomalies[j].Key.String()
	})

	return anomalies, nil
}

// Reconcile keeps the earliest-created member of each group and removes the
// rest by soft-cancelling them with a zero refund. With dryRun it computes
// the outcome without writing. Removal writes are independent: a failed
// update is logged and skipped, the batch continues.
func (s *CleanupService) Reconcile(groups []models.DuplicateGroup, dryRun bool) models.ReconcileResult {
	result := models.ReconcileResult{
		RemovedIDs: []string{},
		FailedIDs:  []string{},
	}

	now := s.now()

	for _, group := range groups {
		if group.Count < 2 {
			continue
		}

		members := make([]models.Booking, len(group.Bookings))
		copy(members, group.Bookings)
		sortByCreation(members)

		kept := members[0]
		result.KeptCount++

		s.logger.WithFields(logrus.Fields{
			"key":        group.Key.String(),
			"kept_id":    kept.ID,
			"group_size": group.Count,
		}).Info("Keeping earliest booking in duplicate group")

		for _, candidate := range members[1:] {
			if dryRun {
				result.RemovedCount++
				result.RemovedIDs = append(result.RemovedIDs, candidate.ID)
				continue
			}

			if err := s.store.CancelDuplicate(candidate.ID, now); err != nil {
				wrapped := fmt.Errorf("%w: cancelling booking %s: %v", ErrUpdateFailed, candidate.ID, err)
				s.logger.WithError(wrapped).WithField("booking_id", candidate.ID).
					Error("Failed to cancel duplicate booking")
				result.FailedIDs = append(result.FailedIDs, candidate.ID)
				continue
			}

			result.RemovedCount++
			result.RemovedIDs = append(result.RemovedIDs, candidate.ID)
			s.logger.WithField("booking_id", candidate.ID).Info("Cancelled duplicate booking")
		}
	}

	return result
}

// Run performs a full cleanup pass: detect, reconcile in the requested
// mode, collect anomalies and status counts, and return the report.
// Running twice with dryRun=false is safe: the first execute cancels the
// duplicates, so the second pass finds zero actionable groups.
func (s *CleanupService) Run(dryRun bool) (*models.CleanupReport, error) {
	groups, err := s.FindDuplicateGroups()
	if err != nil {
		return nil, err
	}

	anomalies, err := s.FindAmountAnomalies()
	if err != nil {
		return nil, err
	}

	report := &models.CleanupReport{
		DryRun:    dryRun,
		Groups:    groups,
		Anomalies: anomalies,
	}

	if len(groups) > 0 {
		report.Result = s.Reconcile(groups, dryRun)
	} else {
		report.Result = models.ReconcileResult{RemovedIDs: []string{}, FailedIDs: []string{}}
	}

	counts, err := s.store.CountByStatus()
	if err != nil {
		// Counts are reporting garnish; a full report minus counts still
		// stands on a partial failure.
		s.logger.WithError(err).Warn("Failed to collect booking status counts")
	} else {
		report.StatusCounts = counts
	}

	return report, nil
}

// sortByCreation orders members earliest-created first, with the id as an
// explicit tie-break so same-timestamp groups resolve identically on every
// run.
func sortByCreation(members []models.Booking) {
	sort.SliceStable(members, func(i, j int) bool {
		if !members[i].CreatedAt.Equal(members[j].CreatedAt) {
			return members[i].CreatedAt.Before(members[j].CreatedAt)
		}
		return members[i].ID < members[j].ID
	})
}

func distinctAmounts(members []models.Booking) []float64 {
	seen := map[float64]bool{}
	amounts := []float64{}
	for _, b := range members {
		if !seen[b.TotalAmount] {
			seen[b.TotalAmount] = true
			amounts = append(amounts, b.TotalAmount)
		}
	}
	sort.Float64s(amounts)
	return amounts
}
