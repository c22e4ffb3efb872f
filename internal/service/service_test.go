package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/queue"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/repository/memstore"
)

// Monday, 08:00 UTC.
var base = time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)

var (
	staff    = model.Actor{UserID: 900, Role: model.RoleStaff}
	admin    = model.Actor{UserID: 901, Role: model.RoleAdmin}
	resident = model.Actor{UserID: 42, Role: model.RoleResident}
	neighbor = model.Actor{UserID: 43, Role: model.RoleResident}
)

// at returns hh:mm on the base day.
func at(h, m int) time.Time { return time.Date(2025, time.March, 10, h, m, 0, 0, time.UTC) }

type recordingSink struct {
	mu     sync.Mutex
	events []queue.Event
	err    error
}

func (r *recordingSink) Publish(_ context.Context, ev queue.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingSink) types() []queue.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]queue.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recordingSink) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	svc   *Service
	store *memstore.Store
	clock *clockwork.FakeClock
	sink  *recordingSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(base)
	sink := &recordingSink{}
	store := memstore.New()
	svc := New(store,
		WithClock(clock),
		WithNotifier(sink),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return &fixture{t: t, ctx: context.Background(), svc: svc, store: store, clock: clock, sink: sink}
}

// setNow moves the fake clock forward to t.
func (f *fixture) setNow(t time.Time) {
	f.t.Helper()
	d := t.Sub(f.clock.Now())
	require.GreaterOrEqual(f.t, d, time.Duration(0), "clock can only move forward")
	f.clock.Advance(d)
}

// laundry creates an always-open laundry room with a 30-240 minute window.
func (f *fixture) laundry(mut ...func(*model.Resource)) *model.Resource {
	f.t.Helper()
	r := &model.Resource{
		Name:            "Laundry B1",
		Type:            model.ResourceLaundryRoom,
		Capacity:        2,
		Active:          true,
		MinDuration:     30,
		DefaultDuration: 60,
		MaxDuration:     240,
		DailyQuota:      5,
	}
	for _, m := range mut {
		m(r)
	}
	out, err := f.svc.CreateResource(f.ctx, staff, r)
	require.NoError(f.t, err)
	return out
}

func (f *fixture) book(actor model.Actor, resourceID uint64, start, end time.Time) (*model.Reservation, error) {
	return f.svc.CreateReservation(f.ctx, actor, BookingRequest{ResourceID: resourceID, Start: start, End: end, PeopleCount: 1})
}

func (f *fixture) mustBook(actor model.Actor, resourceID uint64, start, end time.Time) *model.Reservation {
	f.t.Helper()
	r, err := f.book(actor, resourceID, start, end)
	require.NoError(f.t, err)
	return r
}

func (f *fixture) key(code string, typ model.KeyType, mut ...func(*model.Key)) *model.Key {
	f.t.Helper()
	k := &model.Key{Code: code, Type: typ}
	for _, m := range mut {
		m(k)
	}
	out, err := f.svc.CreateKey(f.ctx, staff, k)
	require.NoError(f.t, err)
	return out
}

func (f *fixture) reservation(id uint64) *model.Reservation {
	f.t.Helper()
	r, err := f.store.GetReservation(f.ctx, id)
	require.NoError(f.t, err)
	return r
}

func (f *fixture) keyState(id uint64) *model.Key {
	f.t.Helper()
	k, err := f.store.GetKey(f.ctx, id)
	require.NoError(f.t, err)
	return k
}
