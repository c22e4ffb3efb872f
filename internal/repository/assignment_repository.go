package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
)

const assignmentColumns = `id, key_id, key_type, user_id, issued_by, returned_to, assignment_type, status,
    issued_at, expected_return, returned_at, return_condition, deposit_amount, deposit_paid,
    deposit_refunded, deposit_forfeited, fine_amount, replacement_cost, extension_count,
    reservation_id, notes, last_reminder_at, created_at, updated_at`

// AssignmentRepo manages persistence for key custody records.
type AssignmentRepo struct {
	db *sql.DB
}

// NewAssignmentRepo returns an AssignmentRepo bound to db.
func NewAssignmentRepo(db *sql.DB) *AssignmentRepo { return &AssignmentRepo{db: db} }

func scanAssignment(s rowScanner) (*model.KeyAssignment, error) {
	var a model.KeyAssignment
	err := s.Scan(&a.ID, &a.KeyID, &a.KeyType, &a.UserID, &a.IssuedBy, &a.ReturnedTo, &a.Type, &a.Status,
		&a.IssuedAt, &a.ExpectedReturn, &a.ReturnedAt, &a.ReturnCondition, &a.DepositAmount, &a.DepositPaid,
		&a.DepositRefunded, &a.DepositForfeited, &a.FineAmount, &a.ReplacementCost, &a.ExtensionCount,
		&a.ReservationID, &a.Notes, &a.LastReminderAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAssignments(rows *sql.Rows) ([]model.KeyAssignment, error) {
	defer rows.Close()
	out := []model.KeyAssignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// CreateTx inserts an assignment inside the caller's transaction.
func (r *AssignmentRepo) CreateTx(ctx context.Context, tx *sql.Tx, a *model.KeyAssignment) error {
	const q = `INSERT INTO key_assignments (key_id, key_type, user_id, issued_by, assignment_type, status,
        issued_at, expected_return, deposit_amount, deposit_paid, deposit_refunded, deposit_forfeited,
        fine_amount, replacement_cost, extension_count, reservation_id, notes, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	out, err := tx.ExecContext(ctx, q, a.KeyID, a.KeyType, a.UserID, a.IssuedBy, a.Type, a.Status,
		a.IssuedAt, a.ExpectedReturn, a.DepositAmount, a.DepositPaid, a.DepositRefunded, a.DepositForfeited,
		a.FineAmount, a.ReplacementCost, a.ExtensionCount, a.ReservationID, a.Notes, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert key assignment: %w", translate(err))
	}
	id, err := out.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

// UpdateTx persists the custody state, money fields and reminder bookkeeping.
func (r *AssignmentRepo) UpdateTx(ctx context.Context, tx *sql.Tx, a *model.KeyAssignment) error {
	const q = `UPDATE key_assignments SET returned_to = ?, status = ?, expected_return = ?, returned_at = ?,
        return_condition = ?, deposit_refunded = ?, deposit_forfeited = ?, fine_amount = ?,
        replacement_cost = ?, extension_count = ?, notes = ?, last_reminder_at = ?, updated_at = ?
        WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q, a.ReturnedTo, a.Status, a.ExpectedReturn, a.ReturnedAt,
		a.ReturnCondition, a.DepositRefunded, a.DepositForfeited, a.FineAmount, a.ReplacementCost,
		a.ExtensionCount, a.Notes, a.LastReminderAt, a.UpdatedAt, a.ID); err != nil {
		return fmt.Errorf("update key assignment %d: %w", a.ID, err)
	}
	return nil
}

// GetByID loads an assignment without locking it.
func (r *AssignmentRepo) GetByID(ctx context.Context, id uint64) (*model.KeyAssignment, error) {
	return getAssignment(ctx, r.db, id, false)
}

// GetForUpdateTx loads an assignment and locks it until tx ends.
func (r *AssignmentRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.KeyAssignment, error) {
	return getAssignment(ctx, tx, id, true)
}

func getAssignment(ctx context.Context, q querier, id uint64, lock bool) (*model.KeyAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM key_assignments WHERE id = ?`
	if lock {
		query += ` FOR UPDATE`
	}
	a, err := scanAssignment(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get key assignment %d: %w", id, err)
	}
	return a, nil
}

// ActiveForUserTx returns the user's active assignments of a key type, locked.
func (r *AssignmentRepo) ActiveForUserTx(ctx context.Context, tx *sql.Tx, userID uint64, keyType model.KeyType) ([]model.KeyAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM key_assignments
        WHERE user_id = ? AND key_type = ? AND status = ? FOR UPDATE`
	rows, err := tx.QueryContext(ctx, query, userID, keyType, model.AssignmentActive)
	if err != nil {
		return nil, fmt.Errorf("active assignments for user %d: %w", userID, err)
	}
	return collectAssignments(rows)
}

// List returns assignments matching f, newest first.
func (r *AssignmentRepo) List(ctx context.Context, f AssignmentFilter) ([]model.KeyAssignment, error) {
	var (
		where []string
		args  []any
	)
	if f.KeyID != 0 {
		where = append(where, "key_id = ?")
		args = append(args, f.KeyID)
	}
	if f.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.ReservationID != 0 {
		where = append(where, "reservation_id = ?")
		args = append(args, f.ReservationID)
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if f.DueBefore != nil {
		where = append(where, "expected_return IS NOT NULL AND expected_return < ?")
		args = append(args, f.DueBefore.UTC())
	}
	query := `SELECT ` + assignmentColumns + ` FROM key_assignments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY issued_at DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list key assignments: %w", err)
	}
	return collectAssignments(rows)
}
