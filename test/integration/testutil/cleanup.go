//go:build integration

package testutil

import (
	"context"
	"time"
)

// CleanAll truncates every rebate reference table.
func (env *TestEnv) CleanAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tables := []string{
		"rebate_transactions",
		"auto_approval_schedules",
		"rebate_setups",
	}

	for _, table := range tables {
		_, _ = env.Pool.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE")
	}
}
