package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/attaboy/backoffice/internal/domain"
	"github.com/attaboy/backoffice/internal/infra"
	"github.com/jackc/pgx/v5/pgtype"
)

type setupRepo struct{}

// NewRebateSetupRepository returns a pgx-backed RebateSetupRepository.
func NewRebateSetupRepository() RebateSetupRepository {
	return &setupRepo{}
}

func (r *setupRepo) List(ctx context.Context, db DBTX) ([]domain.RebateSetup, error) {
	rows, err := db.Query(ctx, `
		SELECT id, name, rebate_type, min_limit, max_limit, rebate_calculation_type,
		       amount_tiers, level_ids, provider_settings
		FROM rebate_setups
		ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list rebate setups: %w", err)
	}
	defer rows.Close()

	var setups []domain.RebateSetup
	for rows.Next() {
		var (
			s                  domain.RebateSetup
			minLimit, maxLimit pgtype.Numeric
			calc               string
			tiers, providers   []byte
			levels             []int32
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.RebateType, &minLimit, &maxLimit, &calc,
			&tiers, &levels, &providers); err != nil {
			return nil, fmt.Errorf("scan rebate setup: %w", err)
		}

		if s.MinLimit, err = infra.NumericToDecimal(minLimit); err != nil {
			return nil, fmt.Errorf("rebate setup %s min_limit: %w", s.ID, err)
		}
		if s.MaxLimit, err = infra.NumericToDecimal(maxLimit); err != nil {
			return nil, fmt.Errorf("rebate setup %s max_limit: %w", s.ID, err)
		}
		s.RebateCalculationType = domain.CalculationType(calc)
		if s.AmountTiers, err = decodeTiers(tiers); err != nil {
			return nil, fmt.Errorf("rebate setup %s amount_tiers: %w", s.ID, err)
		}
		if s.ProviderSettings, err = decodeProviderSettings(providers); err != nil {
			return nil, fmt.Errorf("rebate setup %s provider_settings: %w", s.ID, err)
		}
		s.LevelIDs = make([]int, 0, len(levels))
		for _, l := range levels {
			s.LevelIDs = append(s.LevelIDs, int(l))
		}

		setups = append(setups, s)
	}
	return setups, rows.Err()
}

func decodeTiers(raw []byte) ([]domain.RebateAmountTier, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var tiers []domain.RebateAmountTier
	if err := json.Unmarshal(raw, &tiers); err != nil {
		return nil, err
	}
	return tiers, nil
}

func decodeProviderSettings(raw []byte) (map[string]domain.ProviderSetting, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	settings := make(map[string]domain.ProviderSetting)
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

type scheduleRepo struct{}

// NewScheduleRepository returns a pgx-backed ScheduleRepository.
func NewScheduleRepository() ScheduleRepository {
	return &scheduleRepo{}
}

func (r *scheduleRepo) ListActive(ctx context.Context, db DBTX) ([]domain.AutoApprovalSchedule, error) {
	rows, err := db.Query(ctx, `
		SELECT id, rebate_type, auto_approved_amount
		FROM auto_approval_schedules
		WHERE active
		ORDER BY updated_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list auto approval schedules: %w", err)
	}
	defer rows.Close()

	var schedules []domain.AutoApprovalSchedule
	for rows.Next() {
		var (
			s      domain.AutoApprovalSchedule
			amount pgtype.Numeric
		)
		if err := rows.Scan(&s.ID, &s.RebateType, &amount); err != nil {
			return nil, fmt.Errorf("scan auto approval schedule: %w", err)
		}
		if s.AutoApprovedAmount, err = infra.NumericToDecimal(amount); err != nil {
			return nil, fmt.Errorf("schedule %s auto_approved_amount: %w", s.ID, err)
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

type rebateTxRepo struct{}

// NewRebateTransactionRepository returns a pgx-backed RebateTransactionRepository.
func NewRebateTransactionRepository() RebateTransactionRepository {
	return &rebateTxRepo{}
}

func (r *rebateTxRepo) ListPending(ctx context.Context, db DBTX, filter PendingFilter) ([]domain.RebateTransaction, error) {
	from := pgtype.Timestamptz{Time: filter.From, Valid: !filter.From.IsZero()}
	to := pgtype.Timestamptz{Time: filter.To, Valid: !filter.To.IsZero()}

	rows, err := db.Query(ctx, `
		SELECT id, username, rebate_name, rebate_type, loss_amount, status,
		       amount, remark, submit_time, complete_time, complete_by
		FROM rebate_transactions
		WHERE status = 'Pending'
		  AND ($1::timestamptz IS NULL OR submit_time >= $1)
		  AND ($2::timestamptz IS NULL OR submit_time <= $2)
		  AND ($3::text = '' OR rebate_type = $3)
		ORDER BY submit_time ASC, id ASC`,
		from, to, filter.RebateType)
	if err != nil {
		return nil, fmt.Errorf("list pending rebates: %w", err)
	}
	defer rows.Close()

	var txs []domain.RebateTransaction
	for rows.Next() {
		var (
			tx           domain.RebateTransaction
			loss, amount pgtype.Numeric
			status       string
		)
		if err := rows.Scan(&tx.ID, &tx.Username, &tx.RebateName, &tx.RebateType, &loss, &status,
			&amount, &tx.Remark, &tx.SubmitTime, &tx.CompleteTime, &tx.CompleteBy); err != nil {
			return nil, fmt.Errorf("scan rebate transaction: %w", err)
		}
		if tx.LossAmount, err = infra.NumericToDecimal(loss); err != nil {
			return nil, fmt.Errorf("rebate transaction %s loss_amount: %w", tx.ID, err)
		}
		if tx.Amount, err = infra.NullableNumericToDecimal(amount); err != nil {
			return nil, fmt.Errorf("rebate transaction %s amount: %w", tx.ID, err)
		}
		tx.Status = domain.RebateStatus(status)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
