package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/queue"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/repository"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func (f *fixture) issue(k *model.Key, user model.Actor, typ model.AssignmentType) *model.KeyAssignment {
	f.t.Helper()
	a, err := f.svc.IssueKey(f.ctx, staff, IssueRequest{KeyID: k.ID, UserID: user.UserID, Type: typ})
	require.NoError(f.t, err)
	return a
}

func TestIssueKeyAppliesTypePolicy(t *testing.T) {
	f := newFixture(t)
	k := f.key("R-1", model.KeyResource)

	a := f.issue(k, resident, "")
	assert.Equal(t, model.AssignmentActive, a.Status)
	assert.Equal(t, model.AssignmentTemporary, a.Type)
	assert.True(t, a.DepositAmount.Equal(dec(20)))
	assert.True(t, a.DepositPaid)
	assert.True(t, a.ReplacementCost.Equal(dec(30)))
	require.NotNil(t, a.ExpectedReturn)
	assert.True(t, a.ExpectedReturn.Equal(base.Add(4*time.Hour)))

	got := f.keyState(k.ID)
	assert.Equal(t, model.KeyIssued, got.Status)
	assert.Equal(t, 1, got.TotalAssignments)
	assert.Equal(t, []queue.EventType{queue.KeyIssued}, f.sink.types())
}

func TestIssueKeyRejectsNonIssuable(t *testing.T) {
	f := newFixture(t)
	k := f.key("R-1", model.KeyResource)
	f.issue(k, resident, model.AssignmentTemporary)

	_, err := f.svc.IssueKey(f.ctx, staff, IssueRequest{KeyID: k.ID, UserID: neighbor.UserID})
	assert.ErrorIs(t, err, ErrState)

	damaged := f.key("R-2", model.KeyResource)
	_, err = f.svc.ReportKeyDamaged(f.ctx, staff, damaged.ID, "bent")
	require.NoError(t, err)
	_, err = f.svc.IssueKey(f.ctx, staff, IssueRequest{KeyID: damaged.ID, UserID: neighbor.UserID})
	assert.ErrorIs(t, err, ErrState)

	_, err = f.svc.IssueKey(f.ctx, staff, IssueRequest{KeyID: 999, UserID: neighbor.UserID})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.IssueKey(f.ctx, resident, IssueRequest{KeyID: damaged.ID, UserID: resident.UserID})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestIssueKeyPermanentTypeOnePerUser(t *testing.T) {
	f := newFixture(t)
	first := f.key("ROOM-101", model.KeyRoom)
	second := f.key("ROOM-102", model.KeyRoom)

	a := f.issue(first, resident, model.AssignmentPermanent)
	assert.Nil(t, a.ExpectedReturn)

	_, err := f.svc.IssueKey(f.ctx, staff, IssueRequest{KeyID: second.ID, UserID: resident.UserID, Type: model.AssignmentPermanent})
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, model.KeyAvailable, f.keyState(second.ID).Status)

	// another user may still take it
	f.issue(second, neighbor, model.AssignmentPermanent)
}

func TestReturnKeyOnTimeRefundsDeposit(t *testing.T) {
	f := newFixture(t)
	k := f.key("R-1", model.KeyResource)
	a := f.issue(k, resident, model.AssignmentTemporary)

	f.setNow(base.Add(3 * time.Hour))
	out, err := f.svc.ReturnKey(f.ctx, staff, a.ID, "", "")
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentReturned, out.Status)
	assert.Equal(t, model.ConditionGood, out.ReturnCondition)
	assert.True(t, out.FineAmount.IsZero())
	assert.True(t, out.DepositRefunded)
	assert.True(t, TotalAmountOwed(out).IsZero())
	require.NotNil(t, out.ReturnedTo)
	assert.Equal(t, staff.UserID, *out.ReturnedTo)
	assert.Equal(t, model.KeyAvailable, f.keyState(k.ID).Status)
}

func TestReturnKeyOverdueFine(t *testing.T) {
	cases := []struct {
		name     string
		maxHours int
		late     time.Duration
		fine     int64
	}{
		{"resource key 49h late", 0, 49 * time.Hour, 30},
		{"24h key 73h late", 24, 73 * time.Hour, 40},
		{"one second late", 0, time.Second, 10},
		{"exactly one day late", 0, 24 * time.Hour, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			k := f.key("R-1", model.KeyResource, func(k *model.Key) { k.MaxIssueHours = tc.maxHours })
			a := f.issue(k, resident, model.AssignmentTemporary)

			f.setNow(a.ExpectedReturn.Add(tc.late))
			out, err := f.svc.ReturnKey(f.ctx, staff, a.ID, model.ConditionGood, "")
			require.NoError(t, err)
			assert.True(t, out.FineAmount.Equal(dec(tc.fine)), "fine %s", out.FineAmount)
			assert.False(t, out.DepositRefunded)
			assert.True(t, out.DepositForfeited)
			// a retained deposit does not offset the fine
			assert.True(t, TotalAmountOwed(out).Equal(dec(tc.fine)), "owed %s", TotalAmountOwed(out))
		})
	}
}

func TestReturnKeyDamagedKeepsDeposit(t *testing.T) {
	f := newFixture(t)
	k := f.key("R-1", model.KeyResource)
	a := f.issue(k, resident, model.AssignmentTemporary)

	out, err := f.svc.ReturnKey(f.ctx, staff, a.ID, model.ConditionDamaged, "teeth worn")
	require.NoError(t, err)
	assert.False(t, out.DepositRefunded)
	assert.True(t, out.DepositForfeited)
	assert.True(t, TotalAmountOwed(out).IsZero())
	assert.Equal(t, "teeth worn", out.Notes)
	assert.Equal(t, model.KeyAvailable, f.keyState(k.ID).Status)

	_, err = f.svc.ReturnKey(f.ctx, staff, a.ID, model.ConditionGood, "")
	assert.ErrorIs(t, err, ErrState)
}

func TestReturnKeyRejectsUnknownCondition(t *testing.T) {
	f := newFixture(t)
	k := f.key("R-1", model.KeyResource)
	a := f.issue(k, resident, model.AssignmentTemporary)

	_, err := f.svc.ReturnKey(f.ctx, staff, a.ID, "SHINY", "")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, model.KeyIssued, f.keyState(k.ID).Status)
}

func TestReportLostForfeitsDeposit(t *testing.T) {
	f := newFixture(t)
	k := f.key("R-1", model.KeyResource)
	a := f.issue(k, resident, model.AssignmentTemporary)
	f.sink.reset()

	out, err := f.svc.ReportLost(f.ctx, staff, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentLost, out.Status)
	assert.True(t, out.DepositForfeited)
	assert.True(t, out.ReplacementCost.Equal(dec(30)))
	assert.True(t, TotalAmountOwed(out).Equal(dec(30)))

	got := f.keyState(k.ID)
	assert.Equal(t, model.KeyLost, got.Status)
	assert.Equal(t, 1, got.LostCount)

	require.Len(t, f.sink.events, 1)
	ev := f.sink.events[0]
	assert.Equal(t, queue.KeyLost, ev.Type)
	require.NotNil(t, ev.Amount)
	assert.True(t, ev.Amount.Equal(dec(30)))
}

func TestReportKeyLostDelegatesToActiveAssignment(t *testing.T) {
	f := newFixture(t)
	k := f.key("R-1", model.KeyResource)
	a := f.issue(k, resident, model.AssignmentTemporary)

	got, err := f.svc.ReportKeyLost(f.ctx, staff, k.ID)
	require.NoError(t, err)
	assert.Equal(t, model.KeyLost, got.Status)

	stored, err := f.svc.GetAssignment(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentLost, stored.Status)

	// a second report counts another loss and leaves the closed assignment alone
	again, err := f.svc.ReportKeyLost(f.ctx, staff, k.ID)
	require.NoError(t, err)
	assert.Equal(t, model.KeyLost, again.Status)
	assert.Equal(t, 2, again.LostCount)

	stored, err = f.svc.GetAssignment(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentLost, stored.Status)
}

func TestReportKeyLostOnShelf(t *testing.T) {
	f := newFixture(t)
	k := f.key("R-1", model.KeyResource)

	got, err := f.svc.ReportKeyLost(f.ctx, staff, k.ID)
	require.NoError(t, err)
	assert.Equal(t, model.KeyLost, got.Status)

	out, err := f.svc.ListAssignments(f.ctx, repository.AssignmentFilter{KeyID: k.ID})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestOverridesRejectedWhileIssued(t *testing.T) {
	f := newFixture(t)
	k := f.key("R-1", model.KeyResource)
	f.issue(k, resident, model.AssignmentTemporary)

	_, err := f.svc.ReportKeyDamaged(f.ctx, staff, k.ID, "")
	assert.ErrorIs(t, err, ErrState)
	_, err = f.svc.PutKeyOutOfService(f.ctx, admin, k.ID, "")
	assert.ErrorIs(t, err, ErrState)
	_, err = f.svc.RetireKey(f.ctx, admin, k.ID)
	assert.ErrorIs(t, err, ErrState)
	assert.Equal(t, model.KeyIssued, f.keyState(k.ID).Status)
}

func TestExtendAssignment(t *testing.T) {
	f := newFixture(t)
	k := f.key("R-1", model.KeyResource)
	a := f.issue(k, resident, model.AssignmentTemporary)

	_, err := f.svc.ExtendAssignment(f.ctx, staff, a.ID, base.Add(-time.Minute), "")
	assert.ErrorIs(t, err, ErrValidation)

	newDue := base.Add(10 * time.Hour)
	out, err := f.svc.ExtendAssignment(f.ctx, staff, a.ID, newDue, "exam week")
	require.NoError(t, err)
	assert.True(t, out.ExpectedReturn.Equal(newDue))
	assert.Equal(t, 1, out.ExtensionCount)

	// no fine for returning before the extended due time
	f.setNow(base.Add(9 * time.Hour))
	ret, err := f.svc.ReturnKey(f.ctx, staff, a.ID, model.ConditionGood, "")
	require.NoError(t, err)
	assert.True(t, ret.FineAmount.IsZero())

	_, err = f.svc.ExtendAssignment(f.ctx, staff, a.ID, base.Add(20*time.Hour), "")
	assert.ErrorIs(t, err, ErrState)
}

// Every ISSUED key has exactly one ACTIVE assignment and no other key does.
func TestIssuedKeysMatchActiveAssignments(t *testing.T) {
	f := newFixture(t)
	keys := []*model.Key{
		f.key("R-1", model.KeyResource),
		f.key("R-2", model.KeyResource),
		f.key("S-1", model.KeyStorage),
	}
	a1 := f.issue(keys[0], resident, model.AssignmentTemporary)
	f.issue(keys[1], neighbor, model.AssignmentEmergency)
	a3 := f.issue(keys[2], resident, model.AssignmentTemporary)

	f.setNow(base.Add(time.Hour))
	_, err := f.svc.ReturnKey(f.ctx, staff, a1.ID, model.ConditionFair, "")
	require.NoError(t, err)
	_, err = f.svc.ReportLost(f.ctx, staff, a3.ID)
	require.NoError(t, err)
	a4 := f.issue(keys[0], neighbor, model.AssignmentTemporary)
	require.NotZero(t, a4.ID)

	active, err := f.svc.ListAssignments(f.ctx, repository.AssignmentFilter{Statuses: []model.AssignmentStatus{model.AssignmentActive}})
	require.NoError(t, err)
	byKey := map[uint64]int{}
	for _, a := range active {
		byKey[a.KeyID]++
	}
	for _, k := range keys {
		issued := f.keyState(k.ID).Status == model.KeyIssued
		if issued {
			assert.Equal(t, 1, byKey[k.ID], "key %s", k.Code)
		} else {
			assert.Zero(t, byKey[k.ID], "key %s", k.Code)
		}
	}
}
