package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/attaboy/backoffice/internal/domain"
	"github.com/attaboy/backoffice/internal/guard"
	"github.com/attaboy/backoffice/internal/handler"
	"github.com/attaboy/backoffice/internal/repository"
	"github.com/attaboy/backoffice/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSetups struct{}

func (stubSetups) List(context.Context, repository.DBTX) ([]domain.RebateSetup, error) {
	return []domain.RebateSetup{{
		ID:                    "setup-1",
		Name:                  "1% Daily TurnOver Rebate",
		RebateType:            domain.RebateTypeValidBet,
		MinLimit:              decimal.NewFromInt(1),
		MaxLimit:              decimal.NewFromInt(99999),
		RebateCalculationType: domain.CalculationPercentage,
		AmountTiers: []domain.RebateAmountTier{
			{ValidBetMoreThan: decimal.NewFromInt(1), RebatePercentage: decimal.NewFromInt(1)},
		},
		LevelIDs: []int{1, 2, 3},
	}}, nil
}

type stubSchedules struct{}

func (stubSchedules) ListActive(context.Context, repository.DBTX) ([]domain.AutoApprovalSchedule, error) {
	return []domain.AutoApprovalSchedule{
		{ID: "s1", RebateType: domain.RebateTypeValidBet, AutoApprovedAmount: decimal.NewFromInt(100)},
	}, nil
}

type stubTxs struct{}

func (stubTxs) ListPending(context.Context, repository.DBTX, repository.PendingFilter) ([]domain.RebateTransaction, error) {
	submitted := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	tx := func(id, user, loss string) domain.RebateTransaction {
		return domain.RebateTransaction{
			ID:         id,
			Username:   user,
			RebateName: "1% Daily TurnOver Rebate",
			RebateType: domain.RebateTypeValidBet,
			LossAmount: decimal.RequireFromString(loss),
			Status:     domain.RebateStatusPending,
			SubmitTime: submitted,
		}
	}
	return []domain.RebateTransaction{
		tx("t1", "alice", "500"),
		tx("t2", "bob", "20000"),
		tx("t3", "carol", "45000"),
	}, nil
}

type recordingPublisher struct {
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, key, _ []byte) error {
	p.keys = append(p.keys, string(key))
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *recordingPublisher) {
	t.Helper()
	return newLimitedRouter(t, nil)
}

func newLimitedRouter(t *testing.T, limiter *guard.RateLimiter) (http.Handler, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewRebateService(nil, stubSetups{}, stubSchedules{}, stubTxs{}, pub,
		service.RebateServiceConfig{EventsTopic: "rebates", CancelRemark: "Cancelled by admin", SessionTTL: time.Hour},
		logger)

	r := chi.NewRouter()
	r.Use(handler.JSONContentType)
	r.Route("/admin/rebates", func(r chi.Router) {
		r.Use(handler.RequireOperator)
		NewRebateAdminHandler(svc, limiter).Routes(r)
	})
	return r, pub
}

func do(t *testing.T, h http.Handler, method, path, operator string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	r := httptest.NewRequest(method, path, reader)
	if operator != "" {
		r.Header.Set(handler.OperatorHeader, operator)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func openTestSession(t *testing.T, h http.Handler) string {
	t.Helper()
	w := do(t, h, http.MethodPost, "/admin/rebates/sessions", "admin-1", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var info struct {
		SessionID    string `json:"session_id"`
		Loaded       int    `json:"loaded"`
		PendingCount int    `json:"pending_count"`
		AutoCount    int    `json:"auto_approved_count"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&info))
	assert.Equal(t, 3, info.Loaded)
	assert.Equal(t, 2, info.PendingCount)
	assert.Equal(t, 1, info.AutoCount)
	return info.SessionID
}

func TestRebates_RequiresOperator(t *testing.T) {
	h, _ := newTestRouter(t)
	w := do(t, h, http.MethodPost, "/admin/rebates/sessions", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRebates_InvalidSessionID(t *testing.T) {
	h, _ := newTestRouter(t)
	w := do(t, h, http.MethodGet, "/admin/rebates/sessions/not-a-uuid/pending", "admin-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRebates_PendingList(t *testing.T) {
	h, _ := newTestRouter(t)
	sid := openTestSession(t, h)

	w := do(t, h, http.MethodGet, "/admin/rebates/sessions/"+sid+"/pending", "admin-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var items []map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&items))
	require.Len(t, items, 2)
	assert.Equal(t, "t2", items[0]["id"])
	assert.Equal(t, "≥ 1", items[0]["tier_label"])
	assert.Equal(t, "1%", items[0]["rate"])
	assert.Equal(t, true, items[0]["requires_manual_review"])
}

func TestRebates_OtherOperatorForbidden(t *testing.T) {
	h, _ := newTestRouter(t)
	sid := openTestSession(t, h)

	w := do(t, h, http.MethodGet, "/admin/rebates/sessions/"+sid+"/pending", "admin-2", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRebates_OverrideThenSubmit(t *testing.T) {
	h, pub := newTestRouter(t)
	sid := openTestSession(t, h)
	base := "/admin/rebates/sessions/" + sid

	w := do(t, h, http.MethodPut, base+"/transactions/t2/override", "admin-1",
		map[string]string{"amount": "175.50", "remark": "vip"})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = do(t, h, http.MethodPost, base+"/transactions/t2/submit", "admin-1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var decision struct {
		Transaction domain.RebateTransaction `json:"transaction"`
		Changed     bool                     `json:"changed"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&decision))
	assert.True(t, decision.Changed)
	assert.Equal(t, domain.RebateStatusCompleted, decision.Transaction.Status)
	assert.Equal(t, "175.5", decision.Transaction.Amount.String())
	assert.Equal(t, "vip", decision.Transaction.Remark)
	assert.Equal(t, "admin-1", decision.Transaction.CompleteBy)
	assert.Equal(t, []string{"t2"}, pub.keys)

	w = do(t, h, http.MethodPost, base+"/transactions/missing/submit", "admin-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRebates_Cancel(t *testing.T) {
	h, _ := newTestRouter(t)
	sid := openTestSession(t, h)

	w := do(t, h, http.MethodPost, "/admin/rebates/sessions/"+sid+"/transactions/t3/cancel", "admin-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Cancelled by admin")
	assert.Contains(t, w.Body.String(), `"Rejected"`)
}

func TestRebates_SelectionAndBulkSubmit(t *testing.T) {
	h, pub := newTestRouter(t)
	sid := openTestSession(t, h)
	base := "/admin/rebates/sessions/" + sid

	w := do(t, h, http.MethodPut, base+"/selection", "admin-1", map[string][]string{"ids": {"t3", "t2"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"selected":["t2","t3"]}`, w.Body.String())

	w = do(t, h, http.MethodPost, base+"/submit-bulk", "admin-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"completed":["t2","t3"],"skipped":[]}`, w.Body.String())
	assert.Len(t, pub.keys, 2)

	w = do(t, h, http.MethodGet, base+"/pending", "admin-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestRebates_Records(t *testing.T) {
	h, _ := newTestRouter(t)
	sid := openTestSession(t, h)
	base := "/admin/rebates/sessions/" + sid

	do(t, h, http.MethodPost, base+"/transactions/t2/submit", "admin-1", nil)

	w := do(t, h, http.MethodGet, base+"/records?status=Completed&username=BOB", "admin-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Records     []map[string]interface{} `json:"records"`
		TotalAmount string                   `json:"total_amount"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&page))
	require.Len(t, page.Records, 1)
	assert.Equal(t, "200", page.TotalAmount)

	w = do(t, h, http.MethodGet, base+"/records?from=yesterday", "admin-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRebates_PreviewAndSetups(t *testing.T) {
	h, _ := newTestRouter(t)
	sid := openTestSession(t, h)
	base := "/admin/rebates/sessions/" + sid

	w := do(t, h, http.MethodPost, base+"/preview", "admin-1",
		map[string]string{"rebate_name": "1% Daily TurnOver Rebate", "loss_amount": "12000"})
	require.Equal(t, http.StatusOK, w.Code)
	var preview map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&preview))
	assert.Equal(t, "120", preview["computed_amount"])
	assert.Equal(t, true, preview["requires_manual_review"])

	w = do(t, h, http.MethodGet, base+"/setups", "admin-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"frozen":false`)

	// an invalid edit is rejected
	w = do(t, h, http.MethodPut, base+"/setups/Weekly", "admin-1", map[string]interface{}{
		"rebate_type": "Valid Bet",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRebates_CloseSession(t *testing.T) {
	h, _ := newTestRouter(t)
	sid := openTestSession(t, h)

	w := do(t, h, http.MethodDelete, "/admin/rebates/sessions/"+sid, "admin-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/admin/rebates/sessions/"+sid+"/pending", "admin-1", nil)
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestRebates_DecisionsAreRateLimited(t *testing.T) {
	h, _ := newLimitedRouter(t, guard.NewRateLimiter(1, time.Minute))
	sid := openTestSession(t, h)
	base := "/admin/rebates/sessions/" + sid

	w := do(t, h, http.MethodPost, base+"/transactions/t2/submit", "admin-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodPost, base+"/transactions/t3/submit", "admin-1", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// reads are not throttled
	w = do(t, h, http.MethodGet, base+"/pending", "admin-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
