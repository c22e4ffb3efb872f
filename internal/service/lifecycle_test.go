package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/queue"
)

func TestCancelBeforeDeadline(t *testing.T) {
	f := newFixture(t)
	r := f.laundry()
	res := f.mustBook(resident, r.ID, at(12, 0), at(13, 0))

	f.setNow(at(9, 59).Add(59 * time.Second))
	out, err := f.svc.CancelReservation(f.ctx, resident, res.ID, "exam moved")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, out.Status)
	assert.Equal(t, "exam moved", out.CancellationReason)
	assert.Contains(t, f.sink.types(), queue.ReservationCancelled)
}

func TestCancelAtDeadlineFails(t *testing.T) {
	f := newFixture(t)
	r := f.laundry()
	res := f.mustBook(resident, r.ID, at(12, 0), at(13, 0))

	f.setNow(at(10, 0))
	_, err := f.svc.CancelReservation(f.ctx, resident, res.ID, "")
	require.ErrorIs(t, err, ErrState)
	assert.Equal(t, model.ReservationConfirmed, f.reservation(res.ID).Status)
}

func TestCancelRequiresOwnerOrStaff(t *testing.T) {
	f := newFixture(t)
	r := f.laundry()
	res := f.mustBook(resident, r.ID, at(14, 0), at(15, 0))

	_, err := f.svc.CancelReservation(f.ctx, neighbor, res.ID, "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.CancelReservation(f.ctx, staff, res.ID, "maintenance")
	assert.NoError(t, err)

	_, err = f.svc.CancelReservation(f.ctx, staff, res.ID, "again")
	assert.ErrorIs(t, err, ErrState)
}

func TestCancelUnknownReservation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CancelReservation(f.ctx, staff, 404, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckInWindowBounds(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		ok   bool
	}{
		{"one second before window", at(13, 44).Add(59 * time.Second), false},
		{"window opens", at(13, 45), true},
		{"at start", at(14, 0), true},
		{"window closes", at(14, 30), true},
		{"one second after window", at(14, 30).Add(time.Second), false},
		{"14:31", at(14, 31), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			r := f.laundry()
			res := f.mustBook(resident, r.ID, at(14, 0), at(15, 0))

			f.setNow(tc.now)
			out, err := f.svc.CheckIn(f.ctx, resident, res.ID)
			if !tc.ok {
				assert.ErrorIs(t, err, ErrState)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.ReservationCheckedIn, out.Status)
			require.NotNil(t, out.CheckedInAt)
			assert.True(t, out.CheckedInAt.Equal(tc.now))
		})
	}
}

func TestCheckInRequiresConfirmed(t *testing.T) {
	f := newFixture(t)
	r := f.laundry(func(r *model.Resource) { r.RequiresApproval = true })
	res := f.mustBook(resident, r.ID, at(14, 0), at(15, 0))
	require.Equal(t, model.ReservationPending, res.Status)

	f.setNow(at(14, 0))
	_, err := f.svc.CheckIn(f.ctx, resident, res.ID)
	assert.ErrorIs(t, err, ErrState)
}

func TestApproveAndReject(t *testing.T) {
	f := newFixture(t)
	r := f.laundry(func(r *model.Resource) { r.RequiresApproval = true })
	a := f.mustBook(resident, r.ID, at(10, 0), at(11, 0))
	b := f.mustBook(neighbor, r.ID, at(12, 0), at(13, 0))

	_, err := f.svc.ApproveReservation(f.ctx, resident, a.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	out, err := f.svc.ApproveReservation(f.ctx, staff, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationConfirmed, out.Status)
	require.NotNil(t, out.ApprovedBy)
	assert.Equal(t, staff.UserID, *out.ApprovedBy)

	_, err = f.svc.ApproveReservation(f.ctx, staff, a.ID)
	assert.ErrorIs(t, err, ErrState)

	out, err = f.svc.RejectReservation(f.ctx, staff, b.ID, "private event")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationRejected, out.Status)

	// a rejected reservation frees the slot
	_, err = f.book(resident, r.ID, at(12, 0), at(13, 0))
	assert.NoError(t, err)
}

func TestCompleteChargesLateFee(t *testing.T) {
	f := newFixture(t)
	r := f.laundry()
	res := f.mustBook(resident, r.ID, at(10, 0), at(11, 0))

	f.setNow(at(10, 0))
	_, err := f.svc.CheckIn(f.ctx, resident, res.ID)
	require.NoError(t, err)

	f.setNow(at(11, 31))
	out, err := f.svc.Complete(f.ctx, resident, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCompleted, out.Status)
	require.NotNil(t, out.ActualEnd)
	assert.True(t, out.ActualEnd.Equal(at(11, 31)))
	// two started 30-minute units at the laundry rate of 2
	assert.True(t, out.LateFee.Equal(decimal.NewFromInt(4)), "late fee %s", out.LateFee)
}

func TestCompleteOnTimeHasNoFee(t *testing.T) {
	f := newFixture(t)
	r := f.laundry()
	res := f.mustBook(resident, r.ID, at(10, 0), at(11, 0))
	f.setNow(at(9, 50))
	_, err := f.svc.CheckIn(f.ctx, staff, res.ID)
	require.NoError(t, err)

	f.setNow(at(10, 45))
	out, err := f.svc.Complete(f.ctx, resident, res.ID)
	require.NoError(t, err)
	assert.True(t, out.LateFee.IsZero())

	_, err = f.svc.Complete(f.ctx, resident, res.ID)
	assert.ErrorIs(t, err, ErrState)
}

func TestGetReservationVisibility(t *testing.T) {
	f := newFixture(t)
	r := f.laundry()
	res := f.mustBook(resident, r.ID, at(10, 0), at(11, 0))

	_, err := f.svc.GetReservation(f.ctx, resident, res.ID)
	assert.NoError(t, err)
	_, err = f.svc.GetReservation(f.ctx, staff, res.ID)
	assert.NoError(t, err)
	_, err = f.svc.GetReservation(f.ctx, neighbor, res.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	mine, err := f.svc.ListUserReservations(f.ctx, resident.UserID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
