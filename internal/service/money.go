package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
)

// OverdueFinePerDay is charged for every full or partial day a key is late.
var OverdueFinePerDay = decimal.NewFromInt(10)

const fineDay = 24 * time.Hour

// OverdueFine is 10 × ceil(overdue / 24h) when at is after expected, else zero.
func OverdueFine(expected *time.Time, at time.Time) decimal.Decimal {
	if expected == nil || !at.After(*expected) {
		return decimal.Zero
	}
	return OverdueFinePerDay.Mul(decimal.NewFromInt(ceilUnits(at.Sub(*expected), fineDay)))
}

// LateFee bills a reservation overrun per started LateFeeUnit at rate.
// It is independent of the key overdue fine.
func LateFee(end, actualEnd time.Time, rate decimal.Decimal) decimal.Decimal {
	if !actualEnd.After(end) || !rate.IsPositive() {
		return decimal.Zero
	}
	return rate.Mul(decimal.NewFromInt(ceilUnits(actualEnd.Sub(end), model.LateFeeUnit)))
}

// ReservationCost is the hourly usage charge plus the fixed deposit.
func ReservationCost(costPerHour, deposit decimal.Decimal, d time.Duration) decimal.Decimal {
	hours := decimal.NewFromInt(int64(d / time.Minute)).Div(decimal.NewFromInt(60))
	return costPerHour.Mul(hours).Add(deposit).Round(2)
}

// TotalAmountOwed is fine + replacement cost (if lost) − the deposit when it is
// still refundable, floored at zero. A retained deposit does not offset a fine.
func TotalAmountOwed(a *model.KeyAssignment) decimal.Decimal {
	total := a.FineAmount
	if a.Status == model.AssignmentLost {
		total = total.Add(a.ReplacementCost)
	}
	if a.DepositRefundable() {
		total = total.Sub(a.DepositAmount)
	}
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

func ceilUnits(d, unit time.Duration) int64 {
	n := int64(d / unit)
	if d%unit != 0 {
		n++
	}
	return n
}
