package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx so read paths can be shared.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

const resourceColumns = `id, name, type, capacity, open_minute, close_minute, weekdays, is_active,
    key_required, key_location, default_duration_min, min_duration_min, max_duration_min,
    daily_quota, requires_approval, cost_per_hour, deposit, max_advance_days, late_fee_per_unit,
    created_at, updated_at`

// ResourceRepo manages persistence for bookable resources.
type ResourceRepo struct {
	db *sql.DB
}

// NewResourceRepo returns a ResourceRepo bound to db.
func NewResourceRepo(db *sql.DB) *ResourceRepo { return &ResourceRepo{db: db} }

func scanResource(s rowScanner) (*model.Resource, error) {
	var r model.Resource
	err := s.Scan(&r.ID, &r.Name, &r.Type, &r.Capacity, &r.Hours.OpenMinute, &r.Hours.CloseMinute,
		&r.Hours.Weekdays, &r.Active, &r.KeyRequired, &r.KeyLocation, &r.DefaultDuration,
		&r.MinDuration, &r.MaxDuration, &r.DailyQuota, &r.RequiresApproval, &r.CostPerHour,
		&r.Deposit, &r.MaxAdvanceDays, &r.LateFeePerUnit, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create inserts a resource and populates its generated ID.
func (r *ResourceRepo) Create(ctx context.Context, res *model.Resource) error {
	const q = `INSERT INTO resources (name, type, capacity, open_minute, close_minute, weekdays, is_active,
        key_required, key_location, default_duration_min, min_duration_min, max_duration_min,
        daily_quota, requires_approval, cost_per_hour, deposit, max_advance_days, late_fee_per_unit,
        created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	out, err := r.db.ExecContext(ctx, q, res.Name, res.Type, res.Capacity, res.Hours.OpenMinute,
		res.Hours.CloseMinute, res.Hours.Weekdays, res.Active, res.KeyRequired, res.KeyLocation,
		res.DefaultDuration, res.MinDuration, res.MaxDuration, res.DailyQuota, res.RequiresApproval,
		res.CostPerHour, res.Deposit, res.MaxAdvanceDays, res.LateFeePerUnit, res.CreatedAt, res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert resource: %w", translate(err))
	}
	id, err := out.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// Update overwrites the mutable fields of a resource.
func (r *ResourceRepo) Update(ctx context.Context, res *model.Resource) error {
	const q = `UPDATE resources SET name = ?, type = ?, capacity = ?, open_minute = ?, close_minute = ?,
        weekdays = ?, is_active = ?, key_required = ?, key_location = ?, default_duration_min = ?,
        min_duration_min = ?, max_duration_min = ?, daily_quota = ?, requires_approval = ?,
        cost_per_hour = ?, deposit = ?, max_advance_days = ?, late_fee_per_unit = ?, updated_at = ?
        WHERE id = ?`
	out, err := r.db.ExecContext(ctx, q, res.Name, res.Type, res.Capacity, res.Hours.OpenMinute,
		res.Hours.CloseMinute, res.Hours.Weekdays, res.Active, res.KeyRequired, res.KeyLocation,
		res.DefaultDuration, res.MinDuration, res.MaxDuration, res.DailyQuota, res.RequiresApproval,
		res.CostPerHour, res.Deposit, res.MaxAdvanceDays, res.LateFeePerUnit, res.UpdatedAt, res.ID)
	if err != nil {
		return fmt.Errorf("update resource %d: %w", res.ID, err)
	}
	// MySQL reports 0 affected rows for a no-op update, so confirm existence separately.
	if n, _ := out.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, res.ID); err != nil {
			return err
		}
	}
	return nil
}

// GetByID loads a resource without locking it.
func (r *ResourceRepo) GetByID(ctx context.Context, id uint64) (*model.Resource, error) {
	return getResource(ctx, r.db, id, false)
}

// GetForUpdateTx loads a resource and locks its row until tx ends. Every booking
// of the resource goes through this lock, which serializes conflict checks.
func (r *ResourceRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Resource, error) {
	return getResource(ctx, tx, id, true)
}

func getResource(ctx context.Context, q querier, id uint64, lock bool) (*model.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = ?`
	if lock {
		query += ` FOR UPDATE`
	}
	res, err := scanResource(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get resource %d: %w", id, err)
	}
	return res, nil
}

// List returns resources ordered by name.
func (r *ResourceRepo) List(ctx context.Context, activeOnly bool) ([]model.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY name, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()
	out := []model.Resource{}
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}
