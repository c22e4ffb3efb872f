package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
)

// CreateResource registers a bookable resource. Zero-valued policy fields are
// filled once from the type defaults and stored on the record, except the
// ones named in explicit.
func (s *Service) CreateResource(ctx context.Context, actor model.Actor, r *model.Resource, explicit ...model.ResourcePolicy) (*model.Resource, error) {
	const op = "CreateResource"
	if err := requireStaff(op, actor); err != nil {
		return nil, err
	}
	typ, ok := model.ParseResourceType(string(r.Type))
	if !ok {
		return nil, validationError(op, "type", "unknown resource type %q", r.Type)
	}
	r.Type = typ
	var set model.ResourcePolicy
	for _, p := range explicit {
		set |= p
	}
	r.ApplyDefaults(set)
	if err := r.Validate(); err != nil {
		return nil, validationError(op, "resource", "%s", err.Error())
	}
	now := s.now()
	r.CreatedAt, r.UpdatedAt = now, now
	if err := s.store.CreateResource(ctx, r); err != nil {
		return nil, translate(op, "resource", 0, err)
	}
	s.cache.Invalidate(ctx, r.ID)
	s.logger.Info("resource created",
		slog.Uint64("resource_id", r.ID),
		slog.String("type", string(r.Type)),
		slog.Uint64("by", actor.UserID),
	)
	return r, nil
}

// UpdateResource replaces the mutable fields of an existing resource.
func (s *Service) UpdateResource(ctx context.Context, actor model.Actor, r *model.Resource) (*model.Resource, error) {
	const op = "UpdateResource"
	if err := requireStaff(op, actor); err != nil {
		return nil, err
	}
	current, err := s.store.GetResource(ctx, r.ID)
	if err != nil {
		return nil, translate(op, "resource", r.ID, err)
	}
	typ, ok := model.ParseResourceType(string(r.Type))
	if !ok {
		return nil, validationError(op, "type", "unknown resource type %q", r.Type)
	}
	r.Type = typ
	if err := r.Validate(); err != nil {
		return nil, validationError(op, "resource", "%s", err.Error())
	}
	r.CreatedAt = current.CreatedAt
	r.UpdatedAt = s.now()
	if err := s.store.UpdateResource(ctx, r); err != nil {
		return nil, translate(op, "resource", r.ID, err)
	}
	s.cache.Invalidate(ctx, r.ID)
	return r, nil
}

// SetResourceActive toggles whether a resource accepts new bookings.
func (s *Service) SetResourceActive(ctx context.Context, actor model.Actor, id uint64, active bool) (*model.Resource, error) {
	const op = "SetResourceActive"
	if err := requireStaff(op, actor); err != nil {
		return nil, err
	}
	r, err := s.store.GetResource(ctx, id)
	if err != nil {
		return nil, translate(op, "resource", id, err)
	}
	r.Active = active
	r.UpdatedAt = s.now()
	if err := s.store.UpdateResource(ctx, r); err != nil {
		return nil, translate(op, "resource", id, err)
	}
	s.cache.Invalidate(ctx, id)
	return r, nil
}

// GetResource reads through the catalog cache.
func (s *Service) GetResource(ctx context.Context, id uint64) (*model.Resource, error) {
	ctx, span := s.startSpan(ctx, "GetResource", attribute.Int64("resource.id", int64(id)))
	r, err := s.resource(ctx, id)
	endSpan(span, err)
	if err != nil {
		return nil, translate("GetResource", "resource", id, err)
	}
	return r, nil
}

func (s *Service) resource(ctx context.Context, id uint64) (*model.Resource, error) {
	if r, ok := s.cache.Resource(ctx, id); ok {
		return r, nil
	}
	r, err := s.store.GetResource(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.StoreResource(ctx, r)
	return r, nil
}

// ListResources returns the catalog, optionally only active resources.
func (s *Service) ListResources(ctx context.Context, activeOnly bool) ([]model.Resource, error) {
	if rs, ok := s.cache.Resources(ctx, activeOnly); ok {
		return rs, nil
	}
	rs, err := s.store.ListResources(ctx, activeOnly)
	if err != nil {
		return nil, translate("ListResources", "resource", 0, err)
	}
	s.cache.StoreResources(ctx, activeOnly, rs)
	return rs, nil
}
