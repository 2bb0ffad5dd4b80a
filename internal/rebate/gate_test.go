package rebate

import (
	"testing"

	"github.com/attaboy/backoffice/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBetSchedule(amount string) *ScheduleTable {
	table, err := NewScheduleTable(domain.AutoApprovalSchedule{
		ID:                 "sched-1",
		RebateType:         domain.RebateTypeValidBet,
		AutoApprovedAmount: dec(amount),
	})
	if err != nil {
		panic(err)
	}
	return table
}

func TestRequiresManualReview_Boundary(t *testing.T) {
	schedule := validBetSchedule("100")

	assert.False(t, RequiresManualReview(dec("100"), domain.RebateTypeValidBet, schedule))
	assert.True(t, RequiresManualReview(dec("100.01"), domain.RebateTypeValidBet, schedule))
	assert.False(t, RequiresManualReview(dec("5"), domain.RebateTypeValidBet, schedule))
	assert.True(t, RequiresManualReview(dec("200"), domain.RebateTypeValidBet, schedule))
}

func TestRequiresManualReview_MissingEntryMeansZeroThreshold(t *testing.T) {
	schedule := validBetSchedule("100")

	assert.True(t, RequiresManualReview(dec("0.01"), "Deposit", schedule))
	assert.False(t, RequiresManualReview(dec("0"), "Deposit", schedule))
	assert.True(t, RequiresManualReview(dec("1"), domain.RebateTypeValidBet, nil))

	var empty *ScheduleTable
	assert.True(t, RequiresManualReview(dec("1"), domain.RebateTypeValidBet, empty))
}

func TestRequiresManualReview_ListForm(t *testing.T) {
	schedule := Schedules{
		{ID: "a", RebateType: domain.RebateTypeValidBet, AutoApprovedAmount: dec("50")},
		{ID: "b", RebateType: domain.RebateTypeValidBet, AutoApprovedAmount: dec("500")},
	}
	assert.True(t, RequiresManualReview(dec("50.01"), domain.RebateTypeValidBet, schedule))
	assert.False(t, RequiresManualReview(dec("50"), domain.RebateTypeValidBet, schedule))
}

func TestNewScheduleTable_LaterEntryWins(t *testing.T) {
	table, err := NewScheduleTable(
		domain.AutoApprovalSchedule{ID: "a", RebateType: domain.RebateTypeValidBet, AutoApprovedAmount: dec("50")},
		domain.AutoApprovalSchedule{ID: "b", RebateType: domain.RebateTypeValidBet, AutoApprovedAmount: dec("80")},
	)
	require.NoError(t, err)
	assert.Equal(t, "80", table.Threshold(domain.RebateTypeValidBet).String())
	assert.True(t, table.Threshold("unknown").IsZero())
	assert.Len(t, table.All(), 1)
}

func TestNewScheduleTable_RejectsNegative(t *testing.T) {
	_, err := NewScheduleTable(domain.AutoApprovalSchedule{RebateType: domain.RebateTypeValidBet, AutoApprovedAmount: dec("-1")})
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}
