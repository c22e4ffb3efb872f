// Package memstore is an in-memory repository.Store used by tests and by
// local runs with STORE_DRIVER=memory. Transactions are serialized and their
// writes are buffered until the callback succeeds.
package memstore

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/repository"
)

type state struct {
	resources    map[uint64]model.Resource
	reservations map[uint64]model.Reservation
	keys         map[uint64]model.Key
	assignments  map[uint64]model.KeyAssignment
	nextID       map[string]uint64
}

func (s *state) clone() *state {
	c := &state{
		resources:    make(map[uint64]model.Resource, len(s.resources)),
		reservations: make(map[uint64]model.Reservation, len(s.reservations)),
		keys:         make(map[uint64]model.Key, len(s.keys)),
		assignments:  make(map[uint64]model.KeyAssignment, len(s.assignments)),
		nextID:       make(map[string]uint64, len(s.nextID)),
	}
	for k, v := range s.resources {
		c.resources[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.keys {
		c.keys[k] = v
	}
	for k, v := range s.assignments {
		c.assignments[k] = v
	}
	for k, v := range s.nextID {
		c.nextID[k] = v
	}
	return c
}

func (s *state) id(table string) uint64 {
	s.nextID[table]++
	return s.nextID[table]
}

// Store keeps every table in maps guarded by one mutex.
type Store struct {
	txMu sync.Mutex   // serializes transactions
	mu   sync.RWMutex // guards data
	data *state
}

// New returns an empty store.
func New() *Store {
	return &Store{data: &state{
		resources:    map[uint64]model.Resource{},
		reservations: map[uint64]model.Reservation{},
		keys:         map[uint64]model.Key{},
		assignments:  map[uint64]model.KeyAssignment{},
		nextID:       map[string]uint64{},
	}}
}

// InTx runs fn against a private copy of the data and publishes it on success.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()
	if err := fn(&memTx{data: work}); err != nil {
		return err
	}
	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

func (s *Store) CreateResource(_ context.Context, r *model.Resource) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.data.id("resources")
	s.data.resources[r.ID] = *r
	return nil
}

func (s *Store) UpdateResource(_ context.Context, r *model.Resource) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.resources[r.ID]; !ok {
		return repository.ErrNotFound
	}
	s.data.resources[r.ID] = *r
	return nil
}

func (s *Store) GetResource(_ context.Context, id uint64) (*model.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data.resources[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (s *Store) ListResources(_ context.Context, activeOnly bool) ([]model.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Resource{}
	for _, r := range s.data.resources {
		if activeOnly && !r.Active {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetReservation(_ context.Context, id uint64) (*model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (s *Store) ListReservations(_ context.Context, f repository.ReservationFilter) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Reservation{}
	for _, r := range s.data.reservations {
		if matchReservation(r, f) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matchReservation(r model.Reservation, f repository.ReservationFilter) bool {
	switch {
	case f.ResourceID != 0 && r.ResourceID != f.ResourceID:
		return false
	case f.UserID != 0 && r.UserID != f.UserID:
		return false
	case len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status):
		return false
	case f.To != nil && !r.Start.Before(*f.To):
		return false
	case f.From != nil && !r.End.After(*f.From):
		return false
	case f.EndsBefore != nil && r.End.After(*f.EndsBefore):
		return false
	case f.StartsBefore != nil && r.Start.After(*f.StartsBefore):
		return false
	}
	return true
}

func (s *Store) CreateKey(_ context.Context, k *model.Key) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.data.keys {
		if strings.EqualFold(existing.Code, k.Code) {
			return repository.ErrDuplicate
		}
	}
	k.ID = s.data.id("keys")
	s.data.keys[k.ID] = *k
	return nil
}

func (s *Store) GetKey(_ context.Context, id uint64) (*model.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.data.keys[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &k, nil
}

func (s *Store) ListKeys(_ context.Context, f repository.KeyFilter) ([]model.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Key{}
	for _, k := range s.data.keys {
		if f.ResourceID != 0 && (k.ResourceID == nil || *k.ResourceID != f.ResourceID) {
			continue
		}
		if f.Type != "" && k.Type != f.Type {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, k.Status) {
			continue
		}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) GetAssignment(_ context.Context, id uint64) (*model.KeyAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.data.assignments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (s *Store) ListAssignments(_ context.Context, f repository.AssignmentFilter) ([]model.KeyAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.KeyAssignment{}
	for _, a := range s.data.assignments {
		switch {
		case f.KeyID != 0 && a.KeyID != f.KeyID:
			continue
		case f.UserID != 0 && a.UserID != f.UserID:
			continue
		case f.ReservationID != 0 && (a.ReservationID == nil || *a.ReservationID != f.ReservationID):
			continue
		case len(f.Statuses) > 0 && !slices.Contains(f.Statuses, a.Status):
			continue
		case f.DueBefore != nil && (a.ExpectedReturn == nil || !a.ExpectedReturn.Before(*f.DueBefore)):
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].IssuedAt.After(out[j].IssuedAt)
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// memTx works on a private snapshot; the snapshot replaces the store data on commit.
type memTx struct {
	data *state
}

func (t *memTx) LockResource(_ context.Context, id uint64) (*model.Resource, error) {
	r, ok := t.data.resources[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (t *memTx) OverlappingReservations(_ context.Context, resourceID uint64, start, end time.Time, statuses []model.ReservationStatus) ([]model.Reservation, error) {
	out := []model.Reservation{}
	for _, r := range t.data.reservations {
		if r.ResourceID == resourceID && slices.Contains(statuses, r.Status) && r.Overlaps(start, end) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (t *memTx) CountUserReservations(_ context.Context, resourceID, userID uint64, from, to time.Time, exclude []model.ReservationStatus) (int, error) {
	n := 0
	for _, r := range t.data.reservations {
		if r.ResourceID != resourceID || r.UserID != userID || slices.Contains(exclude, r.Status) {
			continue
		}
		if !r.Start.Before(from) && r.Start.Before(to) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertReservation(_ context.Context, r *model.Reservation) error {
	r.ID = t.data.id("reservations")
	t.data.reservations[r.ID] = *r
	return nil
}

func (t *memTx) LockReservation(_ context.Context, id uint64) (*model.Reservation, error) {
	r, ok := t.data.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (t *memTx) UpdateReservation(_ context.Context, r *model.Reservation) error {
	if _, ok := t.data.reservations[r.ID]; !ok {
		return repository.ErrNotFound
	}
	t.data.reservations[r.ID] = *r
	return nil
}

func (t *memTx) LockKey(_ context.Context, id uint64) (*model.Key, error) {
	k, ok := t.data.keys[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &k, nil
}

func (t *memTx) AvailableKeysForResource(_ context.Context, resourceID uint64) ([]model.Key, error) {
	out := []model.Key{}
	for _, k := range t.data.keys {
		if k.ResourceID != nil && *k.ResourceID == resourceID && k.Status.Issuable() {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Status == model.KeyReserved, out[j].Status == model.KeyReserved
		if ri != rj {
			return ri
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) UpdateKey(_ context.Context, k *model.Key) error {
	if _, ok := t.data.keys[k.ID]; !ok {
		return repository.ErrNotFound
	}
	t.data.keys[k.ID] = *k
	return nil
}

func (t *memTx) LockAssignment(_ context.Context, id uint64) (*model.KeyAssignment, error) {
	a, ok := t.data.assignments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (t *memTx) ActiveAssignmentsForUser(_ context.Context, userID uint64, keyType model.KeyType) ([]model.KeyAssignment, error) {
	out := []model.KeyAssignment{}
	for _, a := range t.data.assignments {
		if a.UserID == userID && a.KeyType == keyType && a.Status == model.AssignmentActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (t *memTx) InsertAssignment(_ context.Context, a *model.KeyAssignment) error {
	a.ID = t.data.id("assignments")
	t.data.assignments[a.ID] = *a
	return nil
}

func (t *memTx) UpdateAssignment(_ context.Context, a *model.KeyAssignment) error {
	if _, ok := t.data.assignments[a.ID]; !ok {
		return repository.ErrNotFound
	}
	t.data.assignments[a.ID] = *a
	return nil
}

var (
	_ repository.Store = (*Store)(nil)
	_ repository.Tx    = (*memTx)(nil)
)
