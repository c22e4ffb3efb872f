package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MinutesPerDay is the exclusive upper bound for a time-of-day expressed in minutes.
const MinutesPerDay = 24 * 60

// WeekdaySet is a bitmask of allowed weekdays, bit 0 being Sunday.
type WeekdaySet uint8

// AllWeekdays allows every day of the week.
const AllWeekdays WeekdaySet = 0x7f

// NewWeekdaySet builds a set from the given days.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s |= 1 << uint(d)
	}
	return s
}

// Has reports whether d is in the set.
func (s WeekdaySet) Has(d time.Weekday) bool { return s&(1<<uint(d)) != 0 }

// Days lists the weekdays in the set starting from Sunday.
func (s WeekdaySet) Days() []time.Weekday {
	out := make([]time.Weekday, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// OperatingHours is the daily window in which a resource may be used.
// OpenMinute and CloseMinute are minutes after local midnight; CloseMinute may equal MinutesPerDay.
type OperatingHours struct {
	OpenMinute  int        `json:"open_minute"`
	CloseMinute int        `json:"close_minute"`
	Weekdays    WeekdaySet `json:"weekdays"`
}

// AlwaysOpen is the window used when a resource has no explicit hours.
var AlwaysOpen = OperatingHours{OpenMinute: 0, CloseMinute: MinutesPerDay, Weekdays: AllWeekdays}

// Contains reports whether [start,end) lies inside a single day's window, evaluated in loc.
func (h OperatingHours) Contains(start, end time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	ls, le := start.In(loc), end.In(loc)
	if !h.Weekdays.Has(ls.Weekday()) {
		return false
	}
	dayStart := time.Date(ls.Year(), ls.Month(), ls.Day(), 0, 0, 0, 0, loc)
	open := dayStart.Add(time.Duration(h.OpenMinute) * time.Minute)
	closing := dayStart.Add(time.Duration(h.CloseMinute) * time.Minute)
	return !ls.Before(open) && !le.After(closing)
}

// ParseClock converts "HH:MM" into minutes after midnight. "24:00" is accepted as end of day.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes after midnight as "HH:MM".
func FormatClock(min int) string { return fmt.Sprintf("%02d:%02d", min/60, min%60) }

// Resource is a shared, bookable physical asset. Booking policy fields are
// copied from the type defaults at creation and then owned by the record.
type Resource struct {
	ID               uint64          `json:"id"`                 // resources.id
	Name             string          `json:"name"`               // resources.name
	Type             ResourceType    `json:"type"`               // resources.type
	Capacity         int             `json:"capacity"`           // resources.capacity
	Hours            OperatingHours  `json:"operating_hours"`    // resources.open_minute, close_minute, weekdays
	Active           bool            `json:"active"`             // resources.is_active
	KeyRequired      bool            `json:"key_required"`       // resources.key_required
	KeyLocation      string          `json:"key_location"`       // resources.key_location
	DefaultDuration  int             `json:"default_duration"`   // resources.default_duration_min
	MinDuration      int             `json:"min_duration"`       // resources.min_duration_min
	MaxDuration      int             `json:"max_duration"`       // resources.max_duration_min
	DailyQuota       int             `json:"daily_quota"`        // resources.daily_quota
	RequiresApproval bool            `json:"requires_approval"`  // resources.requires_approval
	CostPerHour      decimal.Decimal `json:"cost_per_hour"`      // resources.cost_per_hour
	Deposit          decimal.Decimal `json:"deposit"`            // resources.deposit
	MaxAdvanceDays   int             `json:"max_advance_days"`   // resources.max_advance_days
	LateFeePerUnit   decimal.Decimal `json:"late_fee_per_unit"`  // resources.late_fee_per_unit
	CreatedAt        time.Time       `json:"created_at"`         // resources.created_at
	UpdatedAt        time.Time       `json:"updated_at"`         // resources.updated_at
}

// ResourcePolicy is a set of policy fields the caller gave explicitly.
type ResourcePolicy uint16

const (
	PolicyRequiresApproval ResourcePolicy = 1 << iota
	PolicyCostPerHour
	PolicyDeposit
	PolicyLateFeePerUnit
)

// Has reports whether every field in f is in the set.
func (p ResourcePolicy) Has(f ResourcePolicy) bool { return p&f == f }

// ApplyDefaults fills zero-valued policy fields from the type table. Fields in
// explicit keep their value even when it is zero or false.
func (r *Resource) ApplyDefaults(explicit ResourcePolicy) {
	d := DefaultsFor(r.Type)
	if r.DefaultDuration == 0 {
		r.DefaultDuration = d.DefaultDurationMin
	}
	if r.MinDuration == 0 {
		r.MinDuration = d.MinDurationMin
	}
	if r.MaxDuration == 0 {
		r.MaxDuration = d.MaxDurationMin
	}
	if r.DailyQuota == 0 {
		r.DailyQuota = d.DailyQuota
	}
	if !explicit.Has(PolicyRequiresApproval) && !r.RequiresApproval {
		r.RequiresApproval = d.RequiresApproval
	}
	if !explicit.Has(PolicyCostPerHour) && r.CostPerHour.IsZero() {
		r.CostPerHour = d.CostPerHour
	}
	if !explicit.Has(PolicyDeposit) && r.Deposit.IsZero() {
		r.Deposit = d.Deposit
	}
	if r.MaxAdvanceDays == 0 {
		r.MaxAdvanceDays = d.MaxAdvanceDays
	}
	if !explicit.Has(PolicyLateFeePerUnit) && r.LateFeePerUnit.IsZero() {
		r.LateFeePerUnit = d.LateFeePerUnit
	}
	if r.Capacity == 0 {
		r.Capacity = 1
	}
	if r.Hours == (OperatingHours{}) {
		r.Hours = AlwaysOpen
	}
}

// Validate checks the resource invariants and reports every violation.
func (r *Resource) Validate() error {
	var errs []error
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if _, ok := ParseResourceType(string(r.Type)); !ok {
		errs = append(errs, fmt.Errorf("unknown resource type %q", r.Type))
	}
	if r.Capacity < 1 {
		errs = append(errs, errors.New("capacity must be at least 1"))
	}
	if r.MinDuration < 1 || r.MinDuration > r.DefaultDuration || r.DefaultDuration > r.MaxDuration {
		errs = append(errs, errors.New("durations must satisfy 0 < min <= default <= max"))
	}
	if r.DailyQuota < 1 {
		errs = append(errs, errors.New("daily quota must be at least 1"))
	}
	if r.MaxAdvanceDays < 1 {
		errs = append(errs, errors.New("max advance days must be at least 1"))
	}
	if r.Hours.OpenMinute < 0 || r.Hours.OpenMinute >= r.Hours.CloseMinute || r.Hours.CloseMinute > MinutesPerDay {
		errs = append(errs, errors.New("operating hours must satisfy open < close <= 24:00"))
	}
	if r.Hours.Weekdays&AllWeekdays == 0 {
		errs = append(errs, errors.New("at least one weekday must be allowed"))
	}
	if r.CostPerHour.IsNegative() || r.Deposit.IsNegative() || r.LateFeePerUnit.IsNegative() {
		errs = append(errs, errors.New("amounts must not be negative"))
	}
	return errors.Join(errs...)
}
