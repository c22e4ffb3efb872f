package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
)

const reservationColumns = `id, reference, resource_id, user_id, starts_at, ends_at, status, people_count,
    cost, deposit_amount, deposit_forfeited, late_fee_rate, late_fee, notes, cancellation_reason,
    approved_by, checked_in_at, actual_end, key_picked_up, key_picked_up_at, key_returned,
    key_returned_at, key_assignment_id, reminder_sent_at, pickup_notice_sent_at, created_at, updated_at`

// ReservationRepo provides data access to the reservations table. Rows are
// never deleted; terminal states stay for audit.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the provided database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

func scanReservation(s rowScanner) (*model.Reservation, error) {
	var r model.Reservation
	err := s.Scan(&r.ID, &r.Reference, &r.ResourceID, &r.UserID, &r.Start, &r.End, &r.Status,
		&r.PeopleCount, &r.Cost, &r.DepositAmount, &r.DepositForfeited, &r.LateFeeRate, &r.LateFee,
		&r.Notes, &r.CancellationReason, &r.ApprovedBy, &r.CheckedInAt, &r.ActualEnd, &r.KeyPickedUp,
		&r.KeyPickedUpAt, &r.KeyReturned, &r.KeyReturnedAt, &r.KeyAssignmentID, &r.ReminderSentAt,
		&r.PickupNoticeSentAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collectReservations(rows *sql.Rows) ([]model.Reservation, error) {
	defer rows.Close()
	out := []model.Reservation{}
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func reservationStatusArgs(statuses []model.ReservationStatus) []any {
	args := make([]any, 0, len(statuses))
	for _, s := range statuses {
		args = append(args, string(s))
	}
	return args
}

// CreateTx inserts a reservation inside the caller's transaction and sets its ID.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (reference, resource_id, user_id, starts_at, ends_at, status,
        people_count, cost, deposit_amount, deposit_forfeited, late_fee_rate, late_fee, notes,
        cancellation_reason, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	out, err := tx.ExecContext(ctx, q, res.Reference, res.ResourceID, res.UserID, res.Start.UTC(),
		res.End.UTC(), res.Status, res.PeopleCount, res.Cost, res.DepositAmount, res.DepositForfeited,
		res.LateFeeRate, res.LateFee, res.Notes, res.CancellationReason, res.CreatedAt, res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", translate(err))
	}
	id, err := out.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// UpdateTx persists every mutable column of a reservation.
func (r *ReservationRepo) UpdateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `UPDATE reservations SET status = ?, cost = ?, deposit_forfeited = ?, late_fee = ?,
        cancellation_reason = ?, approved_by = ?, checked_in_at = ?, actual_end = ?, key_picked_up = ?,
        key_picked_up_at = ?, key_returned = ?, key_returned_at = ?, key_assignment_id = ?,
        reminder_sent_at = ?, pickup_notice_sent_at = ?, updated_at = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, res.Status, res.Cost, res.DepositForfeited, res.LateFee,
		res.CancellationReason, res.ApprovedBy, res.CheckedInAt, res.ActualEnd, res.KeyPickedUp,
		res.KeyPickedUpAt, res.KeyReturned, res.KeyReturnedAt, res.KeyAssignmentID, res.ReminderSentAt,
		res.PickupNoticeSentAt, res.UpdatedAt, res.ID)
	if err != nil {
		return fmt.Errorf("update reservation %d: %w", res.ID, err)
	}
	return nil
}

// GetByID loads a reservation without locking it.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	return getReservation(ctx, r.db, id, false)
}

// GetForUpdateTx loads a reservation and locks its row until tx ends.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	return getReservation(ctx, tx, id, true)
}

func getReservation(ctx context.Context, q querier, id uint64, lock bool) (*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	if lock {
		query += ` FOR UPDATE`
	}
	res, err := scanReservation(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation %d: %w", id, err)
	}
	return res, nil
}

// OverlappingTx returns reservations of the resource in one of statuses whose
// half-open interval intersects [start, end). Touching intervals are excluded.
func (r *ReservationRepo) OverlappingTx(ctx context.Context, tx *sql.Tx, resourceID uint64, start, end time.Time, statuses []model.ReservationStatus) ([]model.Reservation, error) {
	if len(statuses) == 0 {
		return []model.Reservation{}, nil
	}
	query := `SELECT ` + reservationColumns + ` FROM reservations
        WHERE resource_id = ? AND starts_at < ? AND ends_at > ? AND status IN (` + placeholders(len(statuses)) + `)
        ORDER BY starts_at`
	args := append([]any{resourceID, end.UTC(), start.UTC()}, reservationStatusArgs(statuses)...)
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("overlapping reservations: %w", err)
	}
	return collectReservations(rows)
}

// CountByUserAndDayTx counts the user's reservations of the resource that start in
// [from, to), ignoring the excluded statuses.
func (r *ReservationRepo) CountByUserAndDayTx(ctx context.Context, tx *sql.Tx, resourceID, userID uint64, from, to time.Time, exclude []model.ReservationStatus) (int, error) {
	query := `SELECT COUNT(*) FROM reservations
        WHERE resource_id = ? AND user_id = ? AND starts_at >= ? AND starts_at < ?`
	args := []any{resourceID, userID, from.UTC(), to.UTC()}
	if len(exclude) > 0 {
		query += ` AND status NOT IN (` + placeholders(len(exclude)) + `)`
		args = append(args, reservationStatusArgs(exclude)...)
	}
	var n int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count user reservations: %w", err)
	}
	return n, nil
}

// List returns reservations matching f ordered by start time.
func (r *ReservationRepo) List(ctx context.Context, f ReservationFilter) ([]model.Reservation, error) {
	var (
		where []string
		args  []any
	)
	if f.ResourceID != 0 {
		where = append(where, "resource_id = ?")
		args = append(args, f.ResourceID)
	}
	if f.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		args = append(args, reservationStatusArgs(f.Statuses)...)
	}
	if f.To != nil {
		where = append(where, "starts_at < ?")
		args = append(args, f.To.UTC())
	}
	if f.From != nil {
		where = append(where, "ends_at > ?")
		args = append(args, f.From.UTC())
	}
	if f.EndsBefore != nil {
		where = append(where, "ends_at <= ?")
		args = append(args, f.EndsBefore.UTC())
	}
	if f.StartsBefore != nil {
		where = append(where, "starts_at <= ?")
		args = append(args, f.StartsBefore.UTC())
	}
	query := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY starts_at, id`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return collectReservations(rows)
}
