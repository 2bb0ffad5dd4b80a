//go:build integration

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// RecordingPublisher captures published decision events in memory.
type RecordingPublisher struct {
	mu   sync.Mutex
	Keys []string
}

func (p *RecordingPublisher) Publish(_ context.Context, _ string, key, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Keys = append(p.Keys, string(key))
	return nil
}

// Published returns a copy of the keys published so far.
func (p *RecordingPublisher) Published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.Keys...)
}

// Do sends a JSON request as the given operator. An empty operator omits the header.
func (env *TestEnv) Do(method, path string, body interface{}, operator string) *http.Response {
	env.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			env.t.Fatalf("%s %s: encode: %v", method, path, err)
		}
	}
	req, err := http.NewRequest(method, env.Server.URL+path, &buf)
	if err != nil {
		env.t.Fatalf("%s %s: new request: %v", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if operator != "" {
		req.Header.Set("X-Operator-ID", operator)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// GET sends an unauthenticated GET request.
func (env *TestEnv) GET(path string) *http.Response {
	return env.Do(http.MethodGet, path, nil, "")
}

// OpenSession opens a rebate session as TestOperator and returns its id.
func (env *TestEnv) OpenSession() string {
	env.t.Helper()
	resp := env.Do(http.MethodPost, "/admin/rebates/sessions", nil, TestOperator)
	if resp.StatusCode != http.StatusCreated {
		env.t.Fatalf("OpenSession: expected 201, got %d", resp.StatusCode)
	}
	var info struct {
		SessionID string `json:"session_id"`
	}
	DecodeJSON(env.t, resp, &info)
	return info.SessionID
}

func (env *TestEnv) exec(sql string, args ...interface{}) {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := env.Pool.Exec(ctx, sql, args...); err != nil {
		env.t.Fatalf("seed: %v", err)
	}
}

// SeedSetup inserts a percentage rebate setup with the given tiers JSON.
func (env *TestEnv) SeedSetup(id, name, tiersJSON string) {
	env.t.Helper()
	env.exec(`
		INSERT INTO rebate_setups (id, name, rebate_type, min_limit, max_limit,
		                           rebate_calculation_type, amount_tiers, level_ids)
		VALUES ($1, $2, 'Valid Bet', 1, 99999, 'Percentage', $3::text::jsonb, '{1,2,3}')`,
		id, name, tiersJSON)
}

// SeedSchedule inserts an active auto-approval schedule.
func (env *TestEnv) SeedSchedule(id, rebateType, amount string) {
	env.t.Helper()
	env.exec(`
		INSERT INTO auto_approval_schedules (id, rebate_type, auto_approved_amount)
		VALUES ($1, $2, $3::text::numeric)`, id, rebateType, amount)
}

// SeedTransaction inserts a rebate transaction with the given status.
func (env *TestEnv) SeedTransaction(id, username, rebateName, loss, status string, submitted time.Time) {
	env.t.Helper()
	env.exec(`
		INSERT INTO rebate_transactions (id, username, rebate_name, rebate_type, loss_amount, status, submit_time)
		VALUES ($1, $2, $3, 'Valid Bet', $4::text::numeric, $5, $6)`,
		id, username, rebateName, loss, status, submitted)
}
