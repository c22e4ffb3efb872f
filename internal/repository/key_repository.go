package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
)

const keyColumns = `id, code, type, status, resource_id, security_level, deposit_amount,
    replacement_cost, max_issue_hours, permanent_assignment, total_assignments, lost_count,
    last_maintenance_at, next_maintenance_at, notes, created_at, updated_at`

// KeyRepo manages persistence for the key inventory (table access_keys).
type KeyRepo struct {
	db *sql.DB
}

// NewKeyRepo returns a KeyRepo bound to db.
func NewKeyRepo(db *sql.DB) *KeyRepo { return &KeyRepo{db: db} }

func scanKey(s rowScanner) (*model.Key, error) {
	var k model.Key
	err := s.Scan(&k.ID, &k.Code, &k.Type, &k.Status, &k.ResourceID, &k.SecurityLevel, &k.DepositAmount,
		&k.ReplacementCost, &k.MaxIssueHours, &k.PermanentAssignment, &k.TotalAssignments, &k.LostCount,
		&k.LastMaintenanceAt, &k.NextMaintenanceAt, &k.Notes, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func collectKeys(rows *sql.Rows) ([]model.Key, error) {
	defer rows.Close()
	out := []model.Key{}
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *k)
	}
	return out, rows.Err()
}

// Create inserts a key. A duplicate code yields ErrDuplicate.
func (r *KeyRepo) Create(ctx context.Context, k *model.Key) error {
	const q = `INSERT INTO access_keys (code, type, status, resource_id, security_level, deposit_amount,
        replacement_cost, max_issue_hours, permanent_assignment, total_assignments, lost_count,
        last_maintenance_at, next_maintenance_at, notes, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	out, err := r.db.ExecContext(ctx, q, k.Code, k.Type, k.Status, k.ResourceID, k.SecurityLevel,
		k.DepositAmount, k.ReplacementCost, k.MaxIssueHours, k.PermanentAssignment, k.TotalAssignments,
		k.LostCount, k.LastMaintenanceAt, k.NextMaintenanceAt, k.Notes, k.CreatedAt, k.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert key: %w", translate(err))
	}
	id, err := out.LastInsertId()
	if err != nil {
		return err
	}
	k.ID = uint64(id)
	return nil
}

// UpdateTx persists status, counters and maintenance fields.
func (r *KeyRepo) UpdateTx(ctx context.Context, tx *sql.Tx, k *model.Key) error {
	const q = `UPDATE access_keys SET status = ?, total_assignments = ?, lost_count = ?,
        last_maintenance_at = ?, next_maintenance_at = ?, notes = ?, updated_at = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q, k.Status, k.TotalAssignments, k.LostCount, k.LastMaintenanceAt,
		k.NextMaintenanceAt, k.Notes, k.UpdatedAt, k.ID); err != nil {
		return fmt.Errorf("update key %d: %w", k.ID, err)
	}
	return nil
}

// GetByID loads a key without locking it.
func (r *KeyRepo) GetByID(ctx context.Context, id uint64) (*model.Key, error) {
	return getKey(ctx, r.db, id, false)
}

// GetForUpdateTx loads a key and locks it, so two desks cannot issue it at once.
func (r *KeyRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Key, error) {
	return getKey(ctx, tx, id, true)
}

func getKey(ctx context.Context, q querier, id uint64, lock bool) (*model.Key, error) {
	query := `SELECT ` + keyColumns + ` FROM access_keys WHERE id = ?`
	if lock {
		query += ` FOR UPDATE`
	}
	k, err := scanKey(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get key %d: %w", id, err)
	}
	return k, nil
}

// AvailableForResourceTx locks and returns the issuable keys bound to a resource,
// reserved keys first.
func (r *KeyRepo) AvailableForResourceTx(ctx context.Context, tx *sql.Tx, resourceID uint64) ([]model.Key, error) {
	query := `SELECT ` + keyColumns + ` FROM access_keys
        WHERE resource_id = ? AND status IN (?, ?)
        ORDER BY status = ? DESC, id FOR UPDATE`
	rows, err := tx.QueryContext(ctx, query, resourceID, model.KeyReserved, model.KeyAvailable, model.KeyReserved)
	if err != nil {
		return nil, fmt.Errorf("available keys for resource %d: %w", resourceID, err)
	}
	return collectKeys(rows)
}

// List returns keys matching f ordered by code.
func (r *KeyRepo) List(ctx context.Context, f KeyFilter) ([]model.Key, error) {
	var (
		where []string
		args  []any
	)
	if f.ResourceID != 0 {
		where = append(where, "resource_id = ?")
		args = append(args, f.ResourceID)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	query := `SELECT ` + keyColumns + ` FROM access_keys`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY code`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return collectKeys(rows)
}
