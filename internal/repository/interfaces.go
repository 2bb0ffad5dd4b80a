package repository

import (
	"context"
	"time"

	"github.com/attaboy/backoffice/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PendingFilter narrows the pending transactions loaded into an operator session.
// Zero values mean no bound.
type PendingFilter struct {
	From       time.Time
	To         time.Time
	RebateType string
}

// RebateSetupRepository provides access to rebate_setups.
type RebateSetupRepository interface {
	// List returns every rebate setup ordered by name.
	List(ctx context.Context, db DBTX) ([]domain.RebateSetup, error)
}

// ScheduleRepository provides access to auto_approval_schedules.
type ScheduleRepository interface {
	// ListActive returns the active entry of each rebate category.
	ListActive(ctx context.Context, db DBTX) ([]domain.AutoApprovalSchedule, error)
}

// RebateTransactionRepository provides access to rebate_transactions.
type RebateTransactionRepository interface {
	// ListPending returns pending transactions within the filter, oldest first.
	ListPending(ctx context.Context, db DBTX, filter PendingFilter) ([]domain.RebateTransaction, error)
}
