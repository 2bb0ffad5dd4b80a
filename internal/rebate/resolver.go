package rebate

import (
	"github.com/attaboy/backoffice/internal/domain"
	"github.com/shopspring/decimal"
)

// NotApplicable is rendered wherever no tier applies.
const NotApplicable = "-"

var hundred = decimal.NewFromInt(100)

// Resolution is the outcome of matching a reference amount against a setup's tiers.
// A nil Tier means no rule applies, which is distinct from a rate of zero.
type Resolution struct {
	Tier *domain.RebateAmountTier
	Mode domain.CalculationType
}

// Applicable reports whether a tier was selected.
func (r Resolution) Applicable() bool {
	return r.Tier != nil
}

// Rate returns the resolved tier percentage.
func (r Resolution) Rate() (decimal.Decimal, bool) {
	if r.Tier == nil {
		return decimal.Zero, false
	}
	return r.Tier.RebatePercentage, true
}

// Label renders the tier bracket, e.g. "≥ 100".
func (r Resolution) Label() string {
	if r.Tier == nil {
		return NotApplicable
	}
	return "≥ " + r.Tier.ValidBetMoreThan.String()
}

// RateLabel renders the effective rate: a percentage, a flat amount, or "-".
func (r Resolution) RateLabel() string {
	if r.Tier == nil {
		return NotApplicable
	}
	if r.Mode == domain.CalculationAmount {
		return r.Tier.RebateAmount.StringFixed(2)
	}
	return r.Tier.RebatePercentage.String() + "%"
}

// ResolveTier selects the tier with the highest threshold not exceeding reference.
// Tiers need not be sorted; on equal thresholds the first one wins.
func ResolveTier(reference decimal.Decimal, setup *domain.RebateSetup) Resolution {
	if setup == nil || len(setup.AmountTiers) == 0 {
		return Resolution{}
	}

	var best *domain.RebateAmountTier
	for i := range setup.AmountTiers {
		tier := &setup.AmountTiers[i]
		if tier.ValidBetMoreThan.GreaterThan(reference) {
			continue
		}
		if best == nil || tier.ValidBetMoreThan.GreaterThan(best.ValidBetMoreThan) {
			best = tier
		}
	}
	if best == nil {
		return Resolution{Mode: setup.RebateCalculationType}
	}

	tier := *best
	return Resolution{Tier: &tier, Mode: setup.RebateCalculationType}
}

// ComputeRebateAmount turns a resolution into the candidate rebate value.
// The result is not capped at the setup's MaxLimit.
func ComputeRebateAmount(reference decimal.Decimal, res Resolution) decimal.Decimal {
	if res.Tier == nil {
		return decimal.Zero
	}
	if res.Mode == domain.CalculationAmount {
		return res.Tier.RebateAmount
	}
	return reference.Mul(res.Tier.RebatePercentage).Div(hundred)
}

// Evaluate resolves the tier and computes the amount in one step.
func Evaluate(reference decimal.Decimal, setup *domain.RebateSetup) (Resolution, decimal.Decimal) {
	res := ResolveTier(reference, setup)
	return res, ComputeRebateAmount(reference, res)
}
