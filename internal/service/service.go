// Package service implements resource booking, the reservation lifecycle and
// physical key custody on top of repository.Store.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/observability/metrics"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/queue"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/repository"
)

// ResourceCache is the read-through cache in front of the resource catalog.
type ResourceCache interface {
	Resource(ctx context.Context, id uint64) (*model.Resource, bool)
	StoreResource(ctx context.Context, r *model.Resource)
	Resources(ctx context.Context, activeOnly bool) ([]model.Resource, bool)
	StoreResources(ctx context.Context, activeOnly bool, rs []model.Resource)
	Invalidate(ctx context.Context, id uint64)
}

// Config holds the time rules that vary per deployment.
type Config struct {
	Location             *time.Location // facility time zone for opening hours and quotas
	CheckedInGrace       time.Duration  // CHECKED_IN reservations expire this long after their end
	ReminderLead         time.Duration  // how early the start reminder goes out
	OverdueReminderEvery time.Duration  // minimum gap between overdue key reminders
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Location:             time.UTC,
		CheckedInGrace:       2 * time.Hour,
		ReminderLead:         time.Hour,
		OverdueReminderEvery: 24 * time.Hour,
	}
}

// Service is the booking and key custody core.
type Service struct {
	store    repository.Store
	cache    ResourceCache
	notifier queue.Sink
	clock    clockwork.Clock
	logger   *slog.Logger
	cfg      Config
	tracer   trace.Tracer
}

// Option customizes a Service.
type Option func(*Service)

// WithCache puts a resource cache in front of the store.
func WithCache(c ResourceCache) Option { return func(s *Service) { s.cache = c } }

// WithNotifier sets the notification sink. Without one events are discarded.
func WithNotifier(n queue.Sink) Option { return func(s *Service) { s.notifier = n } }

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clockwork.Clock) Option { return func(s *Service) { s.clock = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithConfig overrides the time rules.
func WithConfig(cfg Config) Option { return func(s *Service) { s.cfg = cfg } }

// New builds a Service over store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		cache:    noCache{},
		notifier: queue.Discard{},
		clock:    clockwork.NewRealClock(),
		logger:   slog.Default(),
		cfg:      DefaultConfig(),
		tracer:   otel.Tracer("github.com/Ponikrad/dormitory-management-backend-sub000/internal/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.Location == nil {
		s.cfg.Location = time.UTC
	}
	return s
}

func (s *Service) now() time.Time { return s.clock.Now().UTC() }

// startSpan opens a span named after the operation.
func (s *Service) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "service."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// notify hands events to the sink. A failed notification is logged and
// counted; it never fails the operation that produced it.
func (s *Service) notify(ctx context.Context, events ...queue.Event) {
	for _, ev := range events {
		if err := s.notifier.Publish(ctx, ev); err != nil {
			metrics.ObserveNotificationFailure(string(ev.Type))
			s.logger.Warn("notification failed",
				slog.String("type", string(ev.Type)),
				slog.String("event_id", ev.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func requireStaff(op string, actor model.Actor) error {
	if !actor.IsStaff() {
		return forbiddenError(op, "staff privileges required")
	}
	return nil
}

func requireAdmin(op string, actor model.Actor) error {
	if !actor.IsAdmin() {
		return forbiddenError(op, "admin privileges required")
	}
	return nil
}

func requireOwnerOrStaff(op string, actor model.Actor, ownerID uint64) error {
	if actor.Owns(ownerID) || actor.IsStaff() {
		return nil
	}
	return forbiddenError(op, "only the owner or staff may do this")
}

type noCache struct{}

func (noCache) Resource(context.Context, uint64) (*model.Resource, bool) { return nil, false }
func (noCache) StoreResource(context.Context, *model.Resource) {}
func (noCache) Resources(context.Context, bool) ([]model.Resource, bool) { return nil, false }
func (noCache) StoreResources(context.Context, bool, []model.Resource) {}
func (noCache) Invalidate(context.Context, uint64) {}
