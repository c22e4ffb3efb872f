package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
)

// SQLStore implements Store on MySQL. Writes that must be atomic run inside
// InTx and rely on row locks (SELECT ... FOR UPDATE) taken by the Tx methods.
type SQLStore struct {
	db           *sql.DB
	Resources    *ResourceRepo
	Reservations *ReservationRepo
	Keys         *KeyRepo
	Assignments  *AssignmentRepo
}

// NewSQLStore wires the table repositories around one connection pool.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:           db,
		Resources:    NewResourceRepo(db),
		Reservations: NewReservationRepo(db),
		Keys:         NewKeyRepo(db),
		Assignments:  NewAssignmentRepo(db),
	}
}

// DB exposes the underlying pool for health checks.
func (s *SQLStore) DB() *sql.DB { return s.db }

// InTx runs fn in a transaction. The transaction commits when fn returns nil
// and rolls back otherwise.
func (s *SQLStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&sqlTx{tx: tx, s: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *SQLStore) CreateResource(ctx context.Context, r *model.Resource) error {
	return s.Resources.Create(ctx, r)
}

func (s *SQLStore) UpdateResource(ctx context.Context, r *model.Resource) error {
	return s.Resources.Update(ctx, r)
}

func (s *SQLStore) GetResource(ctx context.Context, id uint64) (*model.Resource, error) {
	return s.Resources.GetByID(ctx, id)
}

func (s *SQLStore) ListResources(ctx context.Context, activeOnly bool) ([]model.Resource, error) {
	return s.Resources.List(ctx, activeOnly)
}

func (s *SQLStore) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.Reservations.GetByID(ctx, id)
}

func (s *SQLStore) ListReservations(ctx context.Context, f ReservationFilter) ([]model.Reservation, error) {
	return s.Reservations.List(ctx, f)
}

func (s *SQLStore) CreateKey(ctx context.Context, k *model.Key) error {
	return s.Keys.Create(ctx, k)
}

func (s *SQLStore) GetKey(ctx context.Context, id uint64) (*model.Key, error) {
	return s.Keys.GetByID(ctx, id)
}

func (s *SQLStore) ListKeys(ctx context.Context, f KeyFilter) ([]model.Key, error) {
	return s.Keys.List(ctx, f)
}

func (s *SQLStore) GetAssignment(ctx context.Context, id uint64) (*model.KeyAssignment, error) {
	return s.Assignments.GetByID(ctx, id)
}

func (s *SQLStore) ListAssignments(ctx context.Context, f AssignmentFilter) ([]model.KeyAssignment, error) {
	return s.Assignments.List(ctx, f)
}

// sqlTx adapts the table repositories' Tx methods to the Tx interface.
type sqlTx struct {
	tx *sql.Tx
	s  *SQLStore
}

func (t *sqlTx) LockResource(ctx context.Context, id uint64) (*model.Resource, error) {
	return t.s.Resources.GetForUpdateTx(ctx, t.tx, id)
}

func (t *sqlTx) OverlappingReservations(ctx context.Context, resourceID uint64, start, end time.Time, statuses []model.ReservationStatus) ([]model.Reservation, error) {
	return t.s.Reservations.OverlappingTx(ctx, t.tx, resourceID, start, end, statuses)
}

func (t *sqlTx) CountUserReservations(ctx context.Context, resourceID, userID uint64, from, to time.Time, exclude []model.ReservationStatus) (int, error) {
	return t.s.Reservations.CountByUserAndDayTx(ctx, t.tx, resourceID, userID, from, to, exclude)
}

func (t *sqlTx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	return t.s.Reservations.CreateTx(ctx, t.tx, r)
}

func (t *sqlTx) LockReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return t.s.Reservations.GetForUpdateTx(ctx, t.tx, id)
}

func (t *sqlTx) UpdateReservation(ctx context.Context, r *model.Reservation) error {
	return t.s.Reservations.UpdateTx(ctx, t.tx, r)
}

func (t *sqlTx) LockKey(ctx context.Context, id uint64) (*model.Key, error) {
	return t.s.Keys.GetForUpdateTx(ctx, t.tx, id)
}

func (t *sqlTx) AvailableKeysForResource(ctx context.Context, resourceID uint64) ([]model.Key, error) {
	return t.s.Keys.AvailableForResourceTx(ctx, t.tx, resourceID)
}

func (t *sqlTx) UpdateKey(ctx context.Context, k *model.Key) error {
	return t.s.Keys.UpdateTx(ctx, t.tx, k)
}

func (t *sqlTx) LockAssignment(ctx context.Context, id uint64) (*model.KeyAssignment, error) {
	return t.s.Assignments.GetForUpdateTx(ctx, t.tx, id)
}

func (t *sqlTx) ActiveAssignmentsForUser(ctx context.Context, userID uint64, keyType model.KeyType) ([]model.KeyAssignment, error) {
	return t.s.Assignments.ActiveForUserTx(ctx, t.tx, userID, keyType)
}

func (t *sqlTx) InsertAssignment(ctx context.Context, a *model.KeyAssignment) error {
	return t.s.Assignments.CreateTx(ctx, t.tx, a)
}

func (t *sqlTx) UpdateAssignment(ctx context.Context, a *model.KeyAssignment) error {
	return t.s.Assignments.UpdateTx(ctx, t.tx, a)
}

var (
	_ Store = (*SQLStore)(nil)
	_ Tx    = (*sqlTx)(nil)
)
