package model

import "strings"

// ReservationStatus is the lifecycle state of a Reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCheckedIn ReservationStatus = "CHECKED_IN"
	ReservationCompleted ReservationStatus = "COMPLETED"
	ReservationRejected  ReservationStatus = "REJECTED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationNoShow    ReservationStatus = "NO_SHOW"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationPending:   {ReservationConfirmed, ReservationRejected, ReservationCancelled, ReservationExpired},
	ReservationConfirmed: {ReservationCheckedIn, ReservationCancelled, ReservationNoShow},
	ReservationCheckedIn: {ReservationCompleted, ReservationExpired},
	ReservationCompleted: {},
	ReservationRejected:  {},
	ReservationCancelled: {},
	ReservationNoShow:    {},
	ReservationExpired:   {},
}

// BlockingStatuses are the states whose intervals take part in conflict detection.
var BlockingStatuses = []ReservationStatus{ReservationPending, ReservationConfirmed, ReservationCheckedIn}

// QuotaExemptStatuses do not count towards a user's daily quota.
var QuotaExemptStatuses = []ReservationStatus{ReservationCancelled, ReservationRejected}

// CanTransitionTo reports whether the table allows moving from s to next.
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	for _, allowed := range reservationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s ReservationStatus) IsTerminal() bool {
	next, ok := reservationTransitions[s]
	return ok && len(next) == 0
}

// IsCancellable reports whether the state admits cancellation at all (time rules aside).
func (s ReservationStatus) IsCancellable() bool {
	return s.CanTransitionTo(ReservationCancelled)
}

// Valid reports whether s is a known status.
func (s ReservationStatus) Valid() bool {
	_, ok := reservationTransitions[s]
	return ok
}

// ParseReservationStatus parses a status tag case-insensitively.
func ParseReservationStatus(raw string) (ReservationStatus, bool) {
	s := ReservationStatus(strings.ToUpper(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// NextReservationStatuses returns a copy of the allowed successors of s.
func NextReservationStatuses(s ReservationStatus) []ReservationStatus {
	return append([]ReservationStatus(nil), reservationTransitions[s]...)
}
