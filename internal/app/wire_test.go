package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/attaboy/backoffice/internal/domain"
	"github.com/attaboy/backoffice/internal/repository"
	"github.com/attaboy/backoffice/internal/service"
	"github.com/stretchr/testify/assert"
)

type emptyRepo struct{}

func (emptyRepo) List(context.Context, repository.DBTX) ([]domain.RebateSetup, error) {
	return nil, nil
}

func (emptyRepo) ListActive(context.Context, repository.DBTX) ([]domain.AutoApprovalSchedule, error) {
	return nil, nil
}

func (emptyRepo) ListPending(context.Context, repository.DBTX, repository.PendingFilter) ([]domain.RebateTransaction, error) {
	return nil, nil
}

func TestNewRouter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewRebateService(nil, emptyRepo{}, emptyRepo{}, emptyRepo{}, nil, service.RebateServiceConfig{}, logger)
	r := NewRouter(RouterDeps{Logger: logger, RebateSvc: svc, CORSOrigin: "https://backoffice.attaboy.io"})

	t.Run("health", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Equal(t, "https://backoffice.attaboy.io", w.Header().Get("Access-Control-Allow-Origin"))
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("rebate routes require an operator", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/rebates/sessions", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("open session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/rebates/sessions", nil)
		req.Header.Set("X-Operator-ID", "admin-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"loaded":0`)
	})
}
