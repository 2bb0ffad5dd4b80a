package rebate

import (
	"github.com/shopspring/decimal"
)

// RequiresManualReview reports whether a computed rebate must be queued for an operator.
// An amount equal to the category threshold is auto-approved; a missing schedule
// entry means a threshold of zero.
func RequiresManualReview(amount decimal.Decimal, category string, schedule ScheduleLookup) bool {
	return amount.GreaterThan(threshold(schedule, category))
}

func threshold(schedule ScheduleLookup, category string) decimal.Decimal {
	if schedule == nil {
		return decimal.Zero
	}
	entry, ok := schedule.Lookup(category)
	if !ok {
		return decimal.Zero
	}
	return entry.AutoApprovedAmount
}
