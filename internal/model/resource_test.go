package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsTableSatisfiesInvariants(t *testing.T) {
	for _, typ := range ResourceTypes() {
		d := DefaultsFor(typ)
		assert.LessOrEqual(t, d.MinDurationMin, d.DefaultDurationMin, typ)
		assert.LessOrEqual(t, d.DefaultDurationMin, d.MaxDurationMin, typ)
		assert.GreaterOrEqual(t, d.DailyQuota, 1, typ)
	}
}

func TestApplyDefaultsKeepsOverrides(t *testing.T) {
	r := &Resource{Name: "Party room", Type: ResourcePartyRoom, MaxDuration: 600}
	r.ApplyDefaults(0)

	assert.Equal(t, 600, r.MaxDuration)
	assert.Equal(t, 60, r.MinDuration)
	assert.True(t, r.RequiresApproval)
	assert.True(t, r.CostPerHour.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, AlwaysOpen, r.Hours)
	assert.Equal(t, 1, r.Capacity)
	require.NoError(t, r.Validate())
}

func TestApplyDefaultsKeepsExplicitZeroes(t *testing.T) {
	r := &Resource{Name: "Party room", Type: ResourcePartyRoom}
	r.ApplyDefaults(PolicyRequiresApproval | PolicyCostPerHour | PolicyDeposit)

	assert.False(t, r.RequiresApproval)
	assert.True(t, r.CostPerHour.IsZero())
	assert.True(t, r.Deposit.IsZero())
	// not named, so still defaulted
	assert.True(t, r.LateFeePerUnit.Equal(DefaultsFor(ResourcePartyRoom).LateFeePerUnit))
	require.NoError(t, r.Validate())
}

func TestResourceValidateReportsViolations(t *testing.T) {
	r := &Resource{
		Name:            "Study A",
		Type:            ResourceStudyRoom,
		Capacity:        4,
		DefaultDuration: 20,
		MinDuration:     30,
		MaxDuration:     240,
		DailyQuota:      0,
		MaxAdvanceDays:  7,
		Hours:           OperatingHours{OpenMinute: 600, CloseMinute: 480, Weekdays: AllWeekdays},
	}
	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "durations")
	assert.Contains(t, err.Error(), "daily quota")
	assert.Contains(t, err.Error(), "operating hours")
}

func TestOperatingHoursContains(t *testing.T) {
	weekdays := NewWeekdaySet(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday)
	h := OperatingHours{OpenMinute: 8 * 60, CloseMinute: 22 * 60, Weekdays: weekdays}
	monday := func(hh, mm int) time.Time { return time.Date(2025, time.March, 10, hh, mm, 0, 0, time.UTC) }

	assert.True(t, h.Contains(monday(8, 0), monday(9, 0), time.UTC))
	assert.True(t, h.Contains(monday(21, 0), monday(22, 0), time.UTC))
	assert.False(t, h.Contains(monday(7, 30), monday(8, 30), time.UTC))
	assert.False(t, h.Contains(monday(21, 30), monday(22, 30), time.UTC))

	sunday := time.Date(2025, time.March, 9, 10, 0, 0, 0, time.UTC)
	assert.False(t, h.Contains(sunday, sunday.Add(time.Hour), time.UTC))
}

func TestOperatingHoursUsesFacilityZone(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	h := OperatingHours{OpenMinute: 8 * 60, CloseMinute: 20 * 60, Weekdays: AllWeekdays}

	// 06:30 UTC is 08:30 local
	start := time.Date(2025, time.March, 10, 6, 30, 0, 0, time.UTC)
	assert.True(t, h.Contains(start, start.Add(time.Hour), loc))
	assert.False(t, h.Contains(start, start.Add(time.Hour), time.UTC))
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("08:30")
	require.NoError(t, err)
	assert.Equal(t, 510, m)

	m, err = ParseClock("24:00")
	require.NoError(t, err)
	assert.Equal(t, MinutesPerDay, m)

	for _, bad := range []string{"", "25:00", "10:75", "24:30", "noon"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
	assert.Equal(t, "08:05", FormatClock(485))
}

func TestWeekdaySet(t *testing.T) {
	s := NewWeekdaySet(time.Saturday, time.Sunday)
	assert.True(t, s.Has(time.Sunday))
	assert.False(t, s.Has(time.Monday))
	assert.Equal(t, []time.Weekday{time.Sunday, time.Saturday}, s.Days())
}
