package services

import "errors"

// Error kinds surfaced by the maintenance services. Callers branch with
// errors.Is; the wrapped cause carries the store detail.
var (
	// ErrStoreUnavailable means the store could not be read. Fatal: a
	// cleanup run aborts with no groups.
	ErrStoreUnavailable = errors.New("booking store unavailable")

	// ErrConstraintViolation means the unique slot index could not be
	// created because duplicate active bookings still exist. Recoverable:
	// run the cleanup first.
	ErrConstraintViolation = errors.New("duplicate bookings block unique index creation")

	// ErrUpdateFailed means a single removal write failed. Per-item: the
	// batch continues with the remaining candidates.
	ErrUpdateFailed = errors.New("booking update failed")
)
