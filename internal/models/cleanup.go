package models

import "fmt"

// ConflictKey identifies bookings that compete for the same
// ground/date/slot/user combination.
type ConflictKey struct {
	GroundID    string
	BookingDate string
	StartTime   string
	EndTime     string
	UserID      string
}

// String renders the key for logs and reports
func (k ConflictKey) String() string {
	return fmt.Sprintf("ground=%s date=%s slot=%s-%s user=%s",
		k.GroundID, k.BookingDate, k.StartTime, k.EndTime, k.UserID)
}

// SlotKey is the broader key used by the amount-anomaly detector: the same
// slot tuple without the user.
type SlotKey struct {
	GroundID    string
	BookingDate string
	StartTime   string
	EndTime     string
}

// String renders the key for logs and reports
func (k SlotKey) String() string {
	return fmt.Sprintf("ground=%s date=%s slot=%s-%s",
		k.GroundID, k.BookingDate, k.StartTime, k.EndTime)
}

// DuplicateGroup is a set of active bookings sharing a conflict key.
// Only groups with Count > 1 are actionable.
type DuplicateGroup struct {
	Key      ConflictKey
	Bookings []Booking
	Count    int
}

// AmountAnomalyGroup is a set of active bookings sharing a slot key where
// zero appears among the amounts. Advisory only: these groups are reported
// but never reconciled automatically.
type AmountAnomalyGroup struct {
	Key      SlotKey
	Bookings []Booking
	Count    int
	Amounts  []float64
}

// ReconcileResult aggregates the outcome of a reconciliation pass
type ReconcileResult struct {
	KeptCount    int
	RemovedCount int
	RemovedIDs   []string
	FailedIDs    []string
}

// CleanupReport is the structured result of a full cleanup run
type CleanupReport struct {
	DryRun       bool
	Groups       []DuplicateGroup
	Anomalies    []AmountAnomalyGroup
	Result       ReconcileResult
	StatusCounts map[BookingStatus]int
}
