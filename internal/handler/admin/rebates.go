package admin

import (
	"net/http"
	"time"

	"github.com/attaboy/backoffice/internal/domain"
	"github.com/attaboy/backoffice/internal/guard"
	"github.com/attaboy/backoffice/internal/handler"
	"github.com/attaboy/backoffice/internal/rebate"
	"github.com/attaboy/backoffice/internal/repository"
	"github.com/attaboy/backoffice/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RebateAdminHandler exposes rebate review sessions to back-office operators.
type RebateAdminHandler struct {
	svc     *service.RebateService
	limiter *guard.RateLimiter
}

// NewRebateAdminHandler creates a new RebateAdminHandler. A nil limiter leaves
// decision endpoints unthrottled.
func NewRebateAdminHandler(svc *service.RebateService, limiter *guard.RateLimiter) *RebateAdminHandler {
	return &RebateAdminHandler{svc: svc, limiter: limiter}
}

// Routes mounts the rebate endpoints on r. Callers must apply handler.RequireOperator.
func (h *RebateAdminHandler) Routes(r chi.Router) {
	r.Post("/sessions", h.OpenSession)
	r.Route("/sessions/{sid}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Delete("/", h.CloseSession)
		r.Get("/pending", h.ListPending)
		r.Get("/auto-approved", h.ListAutoApproved)
		r.Get("/records", h.ListRecords)
		r.Get("/setups", h.ListSetups)
		r.Put("/setups/{name}", h.PutSetup)
		r.Post("/preview", h.Preview)
		r.Put("/transactions/{id}/override", h.SetOverride)
		r.Put("/selection", h.SetSelection)

		r.Group(func(r chi.Router) {
			if h.limiter != nil {
				r.Use(handler.RateLimit(h.limiter))
			}
			r.Post("/transactions/{id}/submit", h.Submit)
			r.Post("/transactions/{id}/cancel", h.Cancel)
			r.Post("/submit-bulk", h.SubmitBulk)
		})
	})
}

type openSessionRequest struct {
	From       *time.Time `json:"from"`
	To         *time.Time `json:"to"`
	RebateType string     `json:"rebate_type"`
}

// OpenSession handles POST /admin/rebates/sessions.
func (h *RebateAdminHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var input openSessionRequest
	if r.ContentLength != 0 {
		if err := handler.DecodeJSON(r, &input); err != nil {
			handler.RespondInvalidBody(w)
			return
		}
	}

	filter := repository.PendingFilter{RebateType: input.RebateType}
	if input.From != nil {
		filter.From = *input.From
	}
	if input.To != nil {
		filter.To = *input.To
	}

	info, err := h.svc.OpenSession(r.Context(), handler.GetOperatorID(r.Context()), filter)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusCreated, info)
}

// GetSession handles GET /admin/rebates/sessions/{sid}.
func (h *RebateAdminHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	info, err := h.svc.Info(r.Context(), sid, handler.GetOperatorID(r.Context()))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, info)
}

// CloseSession handles DELETE /admin/rebates/sessions/{sid}.
func (h *RebateAdminHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := h.svc.CloseSession(sid, handler.GetOperatorID(r.Context())); err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusNoContent, nil)
}

// ListPending handles GET /admin/rebates/sessions/{sid}/pending.
func (h *RebateAdminHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	items, err := h.svc.Pending(r.Context(), sid, handler.GetOperatorID(r.Context()))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, nonNil(items))
}

// ListAutoApproved handles GET /admin/rebates/sessions/{sid}/auto-approved.
func (h *RebateAdminHandler) ListAutoApproved(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	items, err := h.svc.AutoApproved(r.Context(), sid, handler.GetOperatorID(r.Context()))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, nonNil(items))
}

// ListRecords handles GET /admin/rebates/sessions/{sid}/records.
func (h *RebateAdminHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := rebate.RecordFilter{
		Status:     domain.RebateStatus(q.Get("status")),
		RebateType: q.Get("rebate_type"),
		Username:   q.Get("username"),
	}
	var err error
	if filter.From, err = parseTime(q.Get("from")); err != nil {
		handler.RespondError(w, domain.ErrValidation("from must be an RFC 3339 timestamp"))
		return
	}
	if filter.To, err = parseTime(q.Get("to")); err != nil {
		handler.RespondError(w, domain.ErrValidation("to must be an RFC 3339 timestamp"))
		return
	}

	page, err := h.svc.Records(r.Context(), sid, handler.GetOperatorID(r.Context()), filter)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	page.Records = nonNil(page.Records)
	handler.RespondJSON(w, http.StatusOK, page)
}

// ListSetups handles GET /admin/rebates/sessions/{sid}/setups.
func (h *RebateAdminHandler) ListSetups(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	setups, err := h.svc.Setups(r.Context(), sid, handler.GetOperatorID(r.Context()))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, nonNil(setups))
}

// PutSetup handles PUT /admin/rebates/sessions/{sid}/setups/{name}.
func (h *RebateAdminHandler) PutSetup(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	var input domain.RebateSetup
	if err := handler.DecodeJSON(r, &input); err != nil {
		handler.RespondInvalidBody(w)
		return
	}
	input.Name = chi.URLParam(r, "name")

	if err := h.svc.PutSetup(r.Context(), sid, handler.GetOperatorID(r.Context()), input); err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, input)
}

type previewRequest struct {
	RebateName string          `json:"rebate_name"`
	LossAmount decimal.Decimal `json:"loss_amount"`
}

// Preview handles POST /admin/rebates/sessions/{sid}/preview.
func (h *RebateAdminHandler) Preview(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	var input previewRequest
	if err := handler.DecodeJSON(r, &input); err != nil {
		handler.RespondInvalidBody(w)
		return
	}
	if input.RebateName == "" {
		handler.RespondError(w, domain.ErrValidation("rebate_name is required"))
		return
	}

	preview, err := h.svc.Preview(r.Context(), sid, handler.GetOperatorID(r.Context()), input.RebateName, input.LossAmount)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, preview)
}

type overrideRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Remark *string          `json:"remark"`
}

// SetOverride handles PUT /admin/rebates/sessions/{sid}/transactions/{id}/override.
func (h *RebateAdminHandler) SetOverride(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	var input overrideRequest
	if err := handler.DecodeJSON(r, &input); err != nil {
		handler.RespondInvalidBody(w)
		return
	}

	err := h.svc.SetOverride(r.Context(), sid, handler.GetOperatorID(r.Context()),
		chi.URLParam(r, "id"), input.Amount, input.Remark)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusNoContent, nil)
}

// Submit handles POST /admin/rebates/sessions/{sid}/transactions/{id}/submit.
func (h *RebateAdminHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	decision, err := h.svc.Submit(r.Context(), sid, handler.GetOperatorID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, decision)
}

// Cancel handles POST /admin/rebates/sessions/{sid}/transactions/{id}/cancel.
func (h *RebateAdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	decision, err := h.svc.Cancel(r.Context(), sid, handler.GetOperatorID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, decision)
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

// SetSelection handles PUT /admin/rebates/sessions/{sid}/selection.
func (h *RebateAdminHandler) SetSelection(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	var input idsRequest
	if err := handler.DecodeJSON(r, &input); err != nil {
		handler.RespondInvalidBody(w)
		return
	}

	selected, err := h.svc.SetSelection(r.Context(), sid, handler.GetOperatorID(r.Context()), input.IDs)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, map[string][]string{"selected": nonNil(selected)})
}

// SubmitBulk handles POST /admin/rebates/sessions/{sid}/submit-bulk. An empty
// body submits the current selection.
func (h *RebateAdminHandler) SubmitBulk(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	var input idsRequest
	if r.ContentLength != 0 {
		if err := handler.DecodeJSON(r, &input); err != nil {
			handler.RespondInvalidBody(w)
			return
		}
	}

	result, err := h.svc.SubmitBulk(r.Context(), sid, handler.GetOperatorID(r.Context()), input.IDs)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, result)
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid session id"))
		return uuid.Nil, false
	}
	return id, true
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
