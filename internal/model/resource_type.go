package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ResourceType classifies a bookable resource. Each type carries booking defaults.
type ResourceType string

const (
	ResourceLaundryRoom ResourceType = "LAUNDRY_ROOM"
	ResourceStudyRoom   ResourceType = "STUDY_ROOM"
	ResourceKitchen     ResourceType = "KITCHEN"
	ResourceGym         ResourceType = "GYM"
	ResourceMusicRoom   ResourceType = "MUSIC_ROOM"
	ResourceMeetingRoom ResourceType = "MEETING_ROOM"
	ResourcePartyRoom   ResourceType = "PARTY_ROOM"
	ResourceOther       ResourceType = "OTHER"
)

// ResourceDefaults holds the per-type values copied onto a Resource when it is created.
type ResourceDefaults struct {
	DefaultDurationMin int
	MinDurationMin     int
	MaxDurationMin     int
	DailyQuota         int
	RequiresApproval   bool
	CostPerHour        decimal.Decimal
	Deposit            decimal.Decimal
	MaxAdvanceDays     int
	LateFeePerUnit     decimal.Decimal // charged per started 30 minutes of overrun
}

var resourceDefaults = map[ResourceType]ResourceDefaults{
	ResourceLaundryRoom: {60, 30, 120, 2, false, decimal.Zero, decimal.Zero, 7, decimal.NewFromInt(2)},
	ResourceStudyRoom:   {120, 30, 240, 2, false, decimal.Zero, decimal.Zero, 14, decimal.NewFromInt(5)},
	ResourceKitchen:     {90, 30, 180, 1, false, decimal.Zero, decimal.Zero, 7, decimal.NewFromInt(5)},
	ResourceGym:         {60, 30, 120, 1, false, decimal.Zero, decimal.Zero, 3, decimal.NewFromInt(2)},
	ResourceMusicRoom:   {60, 30, 180, 1, false, decimal.NewFromInt(5), decimal.NewFromInt(10), 14, decimal.NewFromInt(5)},
	ResourceMeetingRoom: {60, 30, 240, 2, true, decimal.Zero, decimal.Zero, 30, decimal.NewFromInt(5)},
	ResourcePartyRoom:   {240, 60, 480, 1, true, decimal.NewFromInt(25), decimal.NewFromInt(100), 60, decimal.NewFromInt(25)},
	ResourceOther:       {60, 30, 240, 1, false, decimal.Zero, decimal.Zero, 14, decimal.NewFromInt(5)},
}

// DefaultsFor returns the booking defaults for t. Unknown types fall back to OTHER.
func DefaultsFor(t ResourceType) ResourceDefaults {
	if d, ok := resourceDefaults[t]; ok {
		return d
	}
	return resourceDefaults[ResourceOther]
}

// ParseResourceType parses a type tag case-insensitively.
func ParseResourceType(s string) (ResourceType, bool) {
	t := ResourceType(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := resourceDefaults[t]
	return t, ok
}

// ResourceTypes lists every known type tag.
func ResourceTypes() []ResourceType {
	return []ResourceType{
		ResourceLaundryRoom, ResourceStudyRoom, ResourceKitchen, ResourceGym,
		ResourceMusicRoom, ResourceMeetingRoom, ResourcePartyRoom, ResourceOther,
	}
}
