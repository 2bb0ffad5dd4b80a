package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidateRebateSetup checks the structural invariants of a rebate setup.
func ValidateRebateSetup(s RebateSetup) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("rebate name is required")
	}
	if s.RebateType != RebateTypeValidBet {
		return fmt.Errorf("unsupported rebate type: %q", s.RebateType)
	}
	if !s.RebateCalculationType.Valid() {
		return fmt.Errorf("unsupported calculation type: %q", s.RebateCalculationType)
	}
	if s.MaxLimit.LessThan(s.MinLimit) {
		return fmt.Errorf("max limit %s is below min limit %s", s.MaxLimit, s.MinLimit)
	}
	if len(s.AmountTiers) == 0 {
		return fmt.Errorf("at least one amount tier is required")
	}
	if len(s.LevelIDs) == 0 {
		return fmt.Errorf("at least one level is required")
	}

	seen := make(map[string]bool, len(s.AmountTiers))
	for i, tier := range s.AmountTiers {
		key := tier.ValidBetMoreThan.String()
		if seen[key] {
			return fmt.Errorf("duplicate tier threshold %s", key)
		}
		seen[key] = true
		if err := ValidatePercentage(tier.RebatePercentage); err != nil {
			return fmt.Errorf("tier %d: %w", i, err)
		}
		if tier.RebateAmount.IsNegative() {
			return fmt.Errorf("tier %d: rebate amount must not be negative", i)
		}
	}
	return nil
}

// ValidatePercentage checks that a rate lies within 0-100.
func ValidatePercentage(p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("rebate percentage must be between 0 and 100, got %s", p)
	}
	return nil
}

// ValidateSchedule checks an auto-approval schedule entry.
func ValidateSchedule(s AutoApprovalSchedule) error {
	if strings.TrimSpace(s.RebateType) == "" {
		return fmt.Errorf("rebate type is required")
	}
	if s.AutoApprovedAmount.IsNegative() {
		return fmt.Errorf("auto approved amount must not be negative, got %s", s.AutoApprovedAmount)
	}
	return nil
}
