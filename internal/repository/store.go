package repository

import (
	"context"
	"time"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
)

// ReservationFilter selects reservations for listing and sweeping. Zero fields are ignored.
// From/To select reservations overlapping [From, To).
type ReservationFilter struct {
	ResourceID   uint64
	UserID       uint64
	Statuses     []model.ReservationStatus
	From         *time.Time
	To           *time.Time
	EndsBefore   *time.Time // ends_at <= value
	StartsBefore *time.Time // starts_at <= value
	Limit        int
}

// KeyFilter selects keys for listing.
type KeyFilter struct {
	ResourceID uint64
	Type       model.KeyType
	Statuses   []model.KeyStatus
	Limit      int
}

// AssignmentFilter selects key assignments for listing and sweeping.
type AssignmentFilter struct {
	KeyID         uint64
	UserID        uint64
	ReservationID uint64
	Statuses      []model.AssignmentStatus
	DueBefore     *time.Time // expected_return < value
	Limit         int
}

// Store is the persistence boundary of the booking core. Reads outside InTx are
// not ordered with respect to writers.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	CreateResource(ctx context.Context, r *model.Resource) error
	UpdateResource(ctx context.Context, r *model.Resource) error
	GetResource(ctx context.Context, id uint64) (*model.Resource, error)
	ListResources(ctx context.Context, activeOnly bool) ([]model.Resource, error)

	GetReservation(ctx context.Context, id uint64) (*model.Reservation, error)
	ListReservations(ctx context.Context, f ReservationFilter) ([]model.Reservation, error)

	CreateKey(ctx context.Context, k *model.Key) error
	GetKey(ctx context.Context, id uint64) (*model.Key, error)
	ListKeys(ctx context.Context, f KeyFilter) ([]model.Key, error)

	GetAssignment(ctx context.Context, id uint64) (*model.KeyAssignment, error)
	ListAssignments(ctx context.Context, f AssignmentFilter) ([]model.KeyAssignment, error)
}

// Tx is a unit of work. Lock* methods hold the row until the transaction ends,
// which is what serializes writes per resource, reservation, key and assignment.
type Tx interface {
	LockResource(ctx context.Context, id uint64) (*model.Resource, error)
	OverlappingReservations(ctx context.Context, resourceID uint64, start, end time.Time, statuses []model.ReservationStatus) ([]model.Reservation, error)
	CountUserReservations(ctx context.Context, resourceID, userID uint64, from, to time.Time, exclude []model.ReservationStatus) (int, error)
	InsertReservation(ctx context.Context, r *model.Reservation) error
	LockReservation(ctx context.Context, id uint64) (*model.Reservation, error)
	UpdateReservation(ctx context.Context, r *model.Reservation) error

	LockKey(ctx context.Context, id uint64) (*model.Key, error)
	AvailableKeysForResource(ctx context.Context, resourceID uint64) ([]model.Key, error)
	UpdateKey(ctx context.Context, k *model.Key) error

	LockAssignment(ctx context.Context, id uint64) (*model.KeyAssignment, error)
	ActiveAssignmentsForUser(ctx context.Context, userID uint64, keyType model.KeyType) ([]model.KeyAssignment, error)
	InsertAssignment(ctx context.Context, a *model.KeyAssignment) error
	UpdateAssignment(ctx context.Context, a *model.KeyAssignment) error
}
