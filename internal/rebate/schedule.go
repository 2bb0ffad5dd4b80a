package rebate

import (
	"sort"

	"github.com/attaboy/backoffice/internal/domain"
	"github.com/shopspring/decimal"
)

// ScheduleLookup yields the auto-approval entry for a rebate category.
type ScheduleLookup interface {
	Lookup(category string) (domain.AutoApprovalSchedule, bool)
}

// ScheduleTable holds one active auto-approval entry per rebate category.
type ScheduleTable struct {
	entries map[string]domain.AutoApprovalSchedule
}

// NewScheduleTable builds a table; a later entry for a category replaces an earlier one.
func NewScheduleTable(entries ...domain.AutoApprovalSchedule) (*ScheduleTable, error) {
	t := &ScheduleTable{entries: make(map[string]domain.AutoApprovalSchedule, len(entries))}
	for _, e := range entries {
		if err := domain.ValidateSchedule(e); err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
		t.entries[e.RebateType] = e
	}
	return t, nil
}

// Lookup returns the entry for category.
func (t *ScheduleTable) Lookup(category string) (domain.AutoApprovalSchedule, bool) {
	if t == nil {
		return domain.AutoApprovalSchedule{}, false
	}
	e, ok := t.entries[category]
	return e, ok
}

// Threshold returns the auto-approved amount for category, zero when unset.
func (t *ScheduleTable) Threshold(category string) decimal.Decimal {
	return threshold(t, category)
}

// All returns the entries ordered by category.
func (t *ScheduleTable) All() []domain.AutoApprovalSchedule {
	out := make([]domain.AutoApprovalSchedule, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RebateType < out[j].RebateType })
	return out
}

// Schedules adapts a plain list to ScheduleLookup. The first matching entry wins.
type Schedules []domain.AutoApprovalSchedule

func (s Schedules) Lookup(category string) (domain.AutoApprovalSchedule, bool) {
	for _, e := range s {
		if e.RebateType == category {
			return e, true
		}
	}
	return domain.AutoApprovalSchedule{}, false
}
