package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RebateTypeValidBet is the only rebate category currently offered.
const RebateTypeValidBet = "Valid Bet"

// CalculationType selects how a resolved tier turns into a rebate amount.
type CalculationType string

const (
	CalculationPercentage CalculationType = "Percentage"
	CalculationAmount     CalculationType = "Amount"
)

// Valid reports whether the calculation type is known.
func (c CalculationType) Valid() bool {
	return c == CalculationPercentage || c == CalculationAmount
}

// RebateAmountTier is one bracket of a piecewise rebate rule.
// ValidBetMoreThan is an inclusive lower bound.
type RebateAmountTier struct {
	ValidBetMoreThan decimal.Decimal `json:"valid_bet_more_than"`
	RebatePercentage decimal.Decimal `json:"rebate_percentage"`
	RebateAmount     decimal.Decimal `json:"rebate_amount"`
}

// ProviderSetting holds per-provider overrides of a rebate setup.
type ProviderSetting struct {
	Formula              string          `json:"formula"`
	ValidBetAmount       decimal.Decimal `json:"valid_bet_amount"`
	RebatePercentage     decimal.Decimal `json:"rebate_percentage"`
	MaxPayoutPerProvider decimal.Decimal `json:"max_payout_per_provider"`
}

// RebateSetup is a named rebate definition.
type RebateSetup struct {
	ID                    string                     `json:"id"`
	Name                  string                     `json:"name"`
	RebateType            string                     `json:"rebate_type"`
	MinLimit              decimal.Decimal            `json:"min_limit"`
	MaxLimit              decimal.Decimal            `json:"max_limit"`
	RebateCalculationType CalculationType            `json:"rebate_calculation_type"`
	AmountTiers           []RebateAmountTier         `json:"amount_tiers"`
	LevelIDs              []int                      `json:"level_ids"`
	ProviderSettings      map[string]ProviderSetting `json:"provider_settings,omitempty"`
}

// AutoApprovalSchedule sets the amount up to which a rebate category needs no manual review.
type AutoApprovalSchedule struct {
	ID                 string          `json:"id"`
	RebateType         string          `json:"rebate_type"`
	AutoApprovedAmount decimal.Decimal `json:"auto_approved_amount"`
}

// RebateStatus tracks the lifecycle of a rebate transaction.
type RebateStatus string

const (
	RebateStatusPending   RebateStatus = "Pending"
	RebateStatusCompleted RebateStatus = "Completed"
	RebateStatusRejected  RebateStatus = "Rejected"
)

// Terminal reports whether no further transition may leave this status.
func (s RebateStatus) Terminal() bool {
	return s == RebateStatusCompleted || s == RebateStatusRejected
}

// RebateTransaction is a single rebate work item.
type RebateTransaction struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	RebateName   string          `json:"rebate_name"`
	RebateType   string          `json:"rebate_type"`
	LossAmount   decimal.Decimal `json:"loss_amount"`
	Status       RebateStatus    `json:"status"`
	Amount       decimal.Decimal `json:"amount"`
	Remark       string          `json:"remark"`
	SubmitTime   time.Time       `json:"submit_time"`
	CompleteTime *time.Time      `json:"complete_time,omitempty"`
	CompleteBy   string          `json:"complete_by,omitempty"`
}

// IsPending reports whether the transaction still awaits a decision.
func (t *RebateTransaction) IsPending() bool {
	return t.Status == RebateStatusPending
}
