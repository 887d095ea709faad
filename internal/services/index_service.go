package services

import (
	"fmt"

	"github.com/pitchreserve/ground-booking-backend/internal/database"
	"github.com/sirupsen/logrus"
)

// IndexStore is the store surface the index installer needs. Implemented
// by database.IndexRepository.
type IndexStore interface {
	HasUniqueSlotIndex() (bool, error)
	CreateUniqueSlotIndex() error
}

// IndexOutcome describes the result of an ensure-index operation
type IndexOutcome string

const (
	// IndexCreated means the unique slot index was created on this run
	IndexCreated IndexOutcome = "created"

	// IndexAlreadyExists means the index was present; nothing was written
	IndexAlreadyExists IndexOutcome = "already_exists"

	// IndexBlocked means duplicate active bookings prevented creation;
	// the cleanup must run first. Nothing was written.
	IndexBlocked IndexOutcome = "blocked_by_duplicates"
)

// IndexService installs the write-time duplicate-prevention constraint
type IndexService struct {
	store  IndexStore
	logger *logrus.Logger
}

// NewIndexService creates a new IndexService
func NewIndexService(store IndexStore, logger *logrus.Logger) *IndexService {
	return &IndexService{store: store, logger: logger}
}

// EnsureUniqueSlotIndex creates the unique active-slot index if it is
// absent. Idempotent: an existing index is reported, not an error. A
// creation blocked by remaining duplicates comes back as IndexBlocked with
// ErrConstraintViolation so callers can print run-cleanup-first guidance
// without treating the run as fatal.
func (s *IndexService) EnsureUniqueSlotIndex() (IndexOutcome, error) {
	exists, err := s.store.HasUniqueSlotIndex()
	if err != nil {
		return "", fmt.Errorf("%w: inspecting indexes: %v", ErrStoreUnavailable, err)
	}

	if exists {
		s.logger.WithField("index", database.UniqueSlotIndexName).Info("Unique slot index already exists")
		return IndexAlreadyExists, nil
	}

	if err := s.store.CreateUniqueSlotIndex(); err != nil {
		if database.IsUniqueViolation(err) {
			s.logger.WithError(err).Warn("Duplicate active bookings block index creation")
			return IndexBlocked, fmt.Errorf("%w: %v", ErrConstraintViolation, err)
		}
		return "", fmt.Errorf("%w: creating unique slot index: %v", ErrStoreUnavailable, err)
	}

	s.logger.WithField("index", database.UniqueSlotIndexName).Info("Created unique slot index")
	return IndexCreated, nil
}
