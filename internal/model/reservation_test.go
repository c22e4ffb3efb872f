package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hh, mm, ss int) time.Time {
	return time.Date(2025, time.March, 10, hh, mm, ss, 0, time.UTC)
}

func TestReservationTransitionTable(t *testing.T) {
	cases := []struct {
		from, to ReservationStatus
		ok       bool
	}{
		{ReservationPending, ReservationConfirmed, true},
		{ReservationPending, ReservationRejected, true},
		{ReservationPending, ReservationCheckedIn, false},
		{ReservationConfirmed, ReservationCheckedIn, true},
		{ReservationConfirmed, ReservationNoShow, true},
		{ReservationConfirmed, ReservationCompleted, false},
		{ReservationCheckedIn, ReservationCompleted, true},
		{ReservationCheckedIn, ReservationCancelled, false},
		{ReservationCompleted, ReservationCancelled, false},
		{ReservationNoShow, ReservationConfirmed, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, c.from.CanTransitionTo(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestReservationTerminalStates(t *testing.T) {
	for _, s := range []ReservationStatus{ReservationCompleted, ReservationRejected, ReservationCancelled, ReservationNoShow, ReservationExpired} {
		assert.True(t, s.IsTerminal(), s)
		assert.False(t, s.IsCancellable(), s)
	}
	for _, s := range []ReservationStatus{ReservationPending, ReservationConfirmed, ReservationCheckedIn} {
		assert.False(t, s.IsTerminal(), s)
	}
	assert.True(t, ReservationPending.IsCancellable())
	assert.True(t, ReservationConfirmed.IsCancellable())
	assert.False(t, ReservationCheckedIn.IsCancellable())
}

func TestParseReservationStatus(t *testing.T) {
	s, ok := ParseReservationStatus(" checked_in ")
	assert.True(t, ok)
	assert.Equal(t, ReservationCheckedIn, s)

	_, ok = ParseReservationStatus("BOOKED")
	assert.False(t, ok)
}

func TestReservationOverlapIsHalfOpen(t *testing.T) {
	r := &Reservation{Start: at(10, 0, 0), End: at(11, 0, 0)}

	assert.True(t, r.Overlaps(at(10, 30, 0), at(11, 30, 0)))
	assert.True(t, r.Overlaps(at(9, 0, 0), at(12, 0, 0)))
	assert.True(t, r.Overlaps(at(10, 15, 0), at(10, 45, 0)))
	assert.False(t, r.Overlaps(at(11, 0, 0), at(12, 0, 0)), "back-to-back after")
	assert.False(t, r.Overlaps(at(9, 0, 0), at(10, 0, 0)), "back-to-back before")
}

func TestCheckInWindowBounds(t *testing.T) {
	r := &Reservation{Start: at(14, 0, 0), End: at(15, 0, 0)}

	assert.True(t, r.InCheckInWindow(at(13, 45, 0)))
	assert.True(t, r.InCheckInWindow(at(14, 30, 0)))
	assert.False(t, r.InCheckInWindow(at(13, 44, 59)))
	assert.False(t, r.InCheckInWindow(at(14, 30, 1)))
	assert.False(t, r.InCheckInWindow(at(14, 31, 0)))
}

func TestCancellationDeadline(t *testing.T) {
	r := &Reservation{Start: at(14, 0, 0), End: at(15, 0, 0)}

	assert.True(t, r.BeforeCancellationDeadline(at(11, 59, 59)))
	assert.False(t, r.BeforeCancellationDeadline(at(12, 0, 0)))
	assert.False(t, r.BeforeCancellationDeadline(at(13, 0, 0)))
}

func TestReservationTransitionTo(t *testing.T) {
	r := &Reservation{Status: ReservationConfirmed}
	require.NoError(t, r.TransitionTo(ReservationCheckedIn, at(14, 0, 0)))
	assert.Equal(t, ReservationCheckedIn, r.Status)
	assert.Equal(t, at(14, 0, 0), r.UpdatedAt)

	err := r.TransitionTo(ReservationCancelled, at(14, 5, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIllegalTransition))
	assert.Equal(t, ReservationCheckedIn, r.Status)
}
