package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/attaboy/backoffice/internal/domain"
	"github.com/attaboy/backoffice/internal/guard"
	"github.com/attaboy/backoffice/internal/rebate"
	"github.com/attaboy/backoffice/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventPublisher is satisfied by infra.KafkaProducer.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// RebateServiceConfig tunes a RebateService.
type RebateServiceConfig struct {
	EventsTopic  string
	CancelRemark string
	SessionTTL   time.Duration
}

// RebateService owns operator sessions. Each session wraps a rebate.Manager
// loaded with the pending rebates the operator asked for.
type RebateService struct {
	db        repository.DBTX
	setups    repository.RebateSetupRepository
	schedules repository.ScheduleRepository
	txs       repository.RebateTransactionRepository
	publisher EventPublisher
	cfg       RebateServiceConfig
	logger    *slog.Logger
	now       func() time.Time
	claims    *guard.IdempotencyGuard

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

// NewRebateService creates a RebateService.
func NewRebateService(
	db repository.DBTX,
	setups repository.RebateSetupRepository,
	schedules repository.ScheduleRepository,
	txs repository.RebateTransactionRepository,
	publisher EventPublisher,
	cfg RebateServiceConfig,
	logger *slog.Logger,
) *RebateService {
	if cfg.CancelRemark == "" {
		cfg.CancelRemark = rebate.DefaultCancelRemark
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}
	return &RebateService{
		db:        db,
		setups:    setups,
		schedules: schedules,
		txs:       txs,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		claims:    guard.NewIdempotencyGuard(),
		sessions:  make(map[uuid.UUID]*session),
	}
}

type session struct {
	mu         sync.Mutex
	id         uuid.UUID
	operatorID string
	filter     repository.PendingFilter
	openedAt   time.Time
	lastUsed   time.Time
	catalog    *rebate.Catalog
	schedule   *rebate.ScheduleTable
	manager    *rebate.Manager
	decided    []domain.RebateTransaction
}

// SessionInfo describes an open session.
type SessionInfo struct {
	ID           uuid.UUID                `json:"session_id"`
	OperatorID   string                   `json:"operator_id"`
	OpenedAt     time.Time                `json:"opened_at"`
	Filter       repository.PendingFilter `json:"-"`
	Loaded       int                      `json:"loaded"`
	PendingCount int                      `json:"pending_count"`
	AutoCount    int                      `json:"auto_approved_count"`
}

// Item is a transaction with its derived display values.
type Item struct {
	domain.RebateTransaction
	rebate.Display
}

// RecordsPage is a filtered records listing with its displayed total.
type RecordsPage struct {
	Records     []Item          `json:"records"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// SetupView is a rebate setup with its edit lock state.
type SetupView struct {
	domain.RebateSetup
	Frozen bool `json:"frozen"`
}

// Preview is the result of evaluating a hypothetical loss amount.
type Preview struct {
	RebateName string `json:"rebate_name"`
	LossAmount string `json:"loss_amount"`
	rebate.Display
}

// OpenSession loads reference data and the pending rebates matching filter into a
// fresh working set owned by operatorID.
func (s *RebateService) OpenSession(ctx context.Context, operatorID string, filter repository.PendingFilter) (*SessionInfo, error) {
	if strings.TrimSpace(operatorID) == "" {
		return nil, domain.ErrValidation("operator id is required")
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, domain.ErrValidation("date range end is before its start")
	}

	setups, err := s.setups.List(ctx, s.db)
	if err != nil {
		return nil, domain.ErrInternal("load rebate setups", err)
	}
	schedules, err := s.schedules.ListActive(ctx, s.db)
	if err != nil {
		return nil, domain.ErrInternal("load auto approval schedules", err)
	}
	pending, err := s.txs.ListPending(ctx, s.db, filter)
	if err != nil {
		return nil, domain.ErrInternal("load pending rebates", err)
	}

	sess := &session{
		id:         uuid.New(),
		operatorID: operatorID,
		filter:     filter,
		openedAt:   s.now(),
	}
	sess.lastUsed = sess.openedAt
	sess.catalog = s.buildCatalog(setups)
	sess.schedule = s.buildSchedule(schedules)
	sess.manager = rebate.NewManager(sess.catalog, sess.schedule, pending,
		rebate.WithOnUpdated(func(tx domain.RebateTransaction) {
			if tx.Status == domain.RebateStatusCompleted {
				sess.catalog.Freeze(tx.RebateName)
			}
			sess.decided = append(sess.decided, tx)
		}))

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	info := sess.info()
	s.logger.Info("rebate session opened",
		"session_id", sess.id,
		"operator_id", operatorID,
		"loaded", info.Loaded,
		"pending", info.PendingCount,
		"auto_approved", info.AutoCount,
	)
	return &info, nil
}

// buildCatalog keeps every valid setup; a broken row degrades its rebates to "-"
// instead of failing the whole session.
func (s *RebateService) buildCatalog(setups []domain.RebateSetup) *rebate.Catalog {
	catalog, _ := rebate.NewCatalog()
	for _, setup := range setups {
		if err := catalog.Put(setup); err != nil {
			s.logger.Warn("skipping invalid rebate setup", "setup_id", setup.ID, "name", setup.Name, "error", err)
		}
	}
	return catalog
}

func (s *RebateService) buildSchedule(entries []domain.AutoApprovalSchedule) *rebate.ScheduleTable {
	valid := make([]domain.AutoApprovalSchedule, 0, len(entries))
	for _, e := range entries {
		if err := domain.ValidateSchedule(e); err != nil {
			s.logger.Warn("skipping invalid auto approval schedule", "schedule_id", e.ID, "error", err)
			continue
		}
		valid = append(valid, e)
	}
	table, _ := rebate.NewScheduleTable(valid...)
	return table
}

func (sess *session) info() SessionInfo {
	return SessionInfo{
		ID:           sess.id,
		OperatorID:   sess.operatorID,
		OpenedAt:     sess.openedAt,
		Filter:       sess.filter,
		Loaded:       len(sess.manager.Transactions()),
		PendingCount: len(sess.manager.ListPending()),
		AutoCount:    len(sess.manager.ListAutoApproved()),
	}
}

// CloseSession discards a session and its unsaved overrides.
func (s *RebateService) CloseSession(id uuid.UUID, operatorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return domain.ErrSessionExpired(id.String())
	}
	if sess.operatorID != operatorID {
		return domain.ErrForbidden("session belongs to another operator")
	}
	delete(s.sessions, id)
	s.logger.Info("rebate session closed", "session_id", id, "operator_id", operatorID)
	return nil
}

// Sweep evicts sessions idle since before now-TTL and returns how many were dropped.
func (s *RebateService) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.cfg.SessionTTL)
	evicted := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastUsed.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Info("rebate sessions evicted", "count", evicted)
	}
	return evicted
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (s *RebateService) StartSweeper(ctx context.Context, interval time.Duration) {
	s.logger.Info("session sweeper started", "interval", interval, "ttl", s.cfg.SessionTTL)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("session sweeper stopped")
				return
			case <-ticker.C:
				s.Sweep(s.now())
			}
		}
	}()
}

// withSession runs fn holding the session lock, then publishes any decisions fn made.
func (s *RebateService) withSession(ctx context.Context, id uuid.UUID, operatorID string, fn func(sess *session) error) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return domain.ErrSessionExpired(id.String())
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.operatorID != operatorID {
		return domain.ErrForbidden("session belongs to another operator")
	}
	sess.lastUsed = s.now()

	err := fn(sess)

	decided := sess.decided
	sess.decided = nil
	for _, tx := range decided {
		s.publishDecision(ctx, sess.id, tx)
	}
	return err
}

func (s *RebateService) publishDecision(ctx context.Context, sessionID uuid.UUID, tx domain.RebateTransaction) {
	s.logger.Info("rebate decided",
		"session_id", sessionID,
		"transaction_id", tx.ID,
		"status", tx.Status,
		"amount", tx.Amount.StringFixed(2),
		"complete_by", tx.CompleteBy,
	)

	if s.publisher == nil {
		return
	}
	event := domain.NewRebateDecidedEvent(sessionID.String(), tx)
	value, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal rebate event", "transaction_id", tx.ID, "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, s.cfg.EventsTopic, []byte(tx.ID), value); err != nil {
		s.logger.Error("publish rebate event failed", "transaction_id", tx.ID, "event_id", event.EventID, "error", err)
	}
}

func (sess *session) items(txs []domain.RebateTransaction) []Item {
	out := make([]Item, 0, len(txs))
	for _, tx := range txs {
		out = append(out, Item{RebateTransaction: tx, Display: sess.manager.Describe(tx)})
	}
	return out
}

// Info returns the current counts of a session.
func (s *RebateService) Info(ctx context.Context, id uuid.UUID, operatorID string) (*SessionInfo, error) {
	var info SessionInfo
	err := s.withSession(ctx, id, operatorID, func(sess *session) error {
		info = sess.info()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// Pending returns the manual-review worklist of a session.
func (s *RebateService) Pending(ctx context.Context, id uuid.UUID, operatorID string) ([]Item, error) {
	var out []Item
	err := s.withSession(ctx, id, operatorID, func(sess *session) error {
		out = sess.items(sess.manager.ListPending())
		return nil
	})
	return out, err
}

// AutoApproved returns pending rebates that need no manual review.
func (s *RebateService) AutoApproved(ctx context.Context, id uuid.UUID, operatorID string) ([]Item, error) {
	var out []Item
	err := s.withSession(ctx, id, operatorID, func(sess *session) error {
		out = sess.items(sess.manager.ListAutoApproved())
		return nil
	})
	return out, err
}

// Records returns the visible transactions matching filter with their total amount.
func (s *RebateService) Records(ctx context.Context, id uuid.UUID, operatorID string, filter rebate.RecordFilter) (*RecordsPage, error) {
	var page RecordsPage
	err := s.withSession(ctx, id, operatorID, func(sess *session) error {
		txs, total := sess.manager.Records(filter)
		page = RecordsPage{Records: sess.items(txs), TotalAmount: total}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// Setups lists the session's rebate catalog.
func (s *RebateService) Setups(ctx context.Context, id uuid.UUID, operatorID string) ([]SetupView, error) {
	var out []SetupView
	err := s.withSession(ctx, id, operatorID, func(sess *session) error {
		for _, setup := range sess.catalog.All() {
			out = append(out, SetupView{RebateSetup: setup, Frozen: sess.catalog.Frozen(setup.Name)})
		}
		return nil
	})
	return out, err
}

// PutSetup creates or edits a setup in the session's catalog.
func (s *RebateService) PutSetup(ctx context.Context, id uuid.UUID, operatorID string, setup domain.RebateSetup) error {
	return s.withSession(ctx, id, operatorID, func(sess *session) error {
		if err := sess.catalog.Put(setup); err != nil {
			return err
		}
		s.logger.Info("rebate setup saved", "session_id", id, "name", setup.Name, "operator_id", operatorID)
		return nil
	})
}

// Preview evaluates a loss amount against a named setup without touching any transaction.
// The category used for the gate is the setup's rebate type.
func (s *RebateService) Preview(ctx context.Context, id uuid.UUID, operatorID, rebateName string, loss decimal.Decimal) (*Preview, error) {
	var out Preview
	err := s.withSession(ctx, id, operatorID, func(sess *session) error {
		category := domain.RebateTypeValidBet
		if setup, ok := sess.catalog.Lookup(rebateName); ok {
			category = setup.RebateType
		}
		out = Preview{
			RebateName: rebateName,
			LossAmount: loss.String(),
			Display: sess.manager.Describe(domain.RebateTransaction{
				RebateName: rebateName,
				RebateType: category,
				LossAmount: loss,
			}),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SetOverride records an operator-entered amount and/or remark for a transaction.
func (s *RebateService) SetOverride(ctx context.Context, id uuid.UUID, operatorID, txID string, amount *decimal.Decimal, remark *string) error {
	return s.withSession(ctx, id, operatorID, func(sess *session) error {
		tx, ok := sess.manager.Get(txID)
		if !ok {
			return domain.ErrNotFound("rebate transaction", txID)
		}
		if !sess.manager.SetOverride(txID, amount, remark) {
			return domain.ErrConflict(fmt.Sprintf("rebate transaction %s is already %s", txID, tx.Status))
		}
		return nil
	})
}

// Decision is the outcome of a single submit or cancel.
type Decision struct {
	Transaction domain.RebateTransaction `json:"transaction"`
	Changed     bool                     `json:"changed"`
}

// Submit completes a pending transaction. Deciding an already decided one is a no-op.
func (s *RebateService) Submit(ctx context.Context, id uuid.UUID, operatorID, txID string) (*Decision, error) {
	return s.decide(ctx, id, operatorID, txID, func(m *rebate.Manager, now time.Time) (domain.RebateTransaction, bool) {
		return m.SubmitSingle(txID, now, operatorID)
	})
}

// Cancel rejects a pending transaction using the configured default remark
// unless an override remark was entered.
func (s *RebateService) Cancel(ctx context.Context, id uuid.UUID, operatorID, txID string) (*Decision, error) {
	return s.decide(ctx, id, operatorID, txID, func(m *rebate.Manager, now time.Time) (domain.RebateTransaction, bool) {
		return m.CancelSingle(txID, now, operatorID, s.cfg.CancelRemark)
	})
}

func (s *RebateService) decide(
	ctx context.Context,
	id uuid.UUID,
	operatorID, txID string,
	apply func(m *rebate.Manager, now time.Time) (domain.RebateTransaction, bool),
) (*Decision, error) {
	var out Decision
	err := s.withSession(ctx, id, operatorID, func(sess *session) error {
		current, ok := sess.manager.Get(txID)
		if !ok {
			return domain.ErrNotFound("rebate transaction", txID)
		}
		claimed := false
		if current.IsPending() {
			if res := s.claims.Check(ctx, txID); !res.Allowed {
				return domain.ErrConflict(fmt.Sprintf("rebate transaction %s was decided in another session", txID))
			}
			claimed = true
		}
		tx, changed := apply(sess.manager, s.now())
		if !changed {
			// Only a claim taken by this call may be released; a repeat on a
			// decided transaction keeps the claim of the original decision.
			if claimed {
				s.claims.Remove(txID)
			}
			tx = current
		}
		out = Decision{Transaction: tx, Changed: changed}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SetSelection replaces the session's selection and returns the ids that stuck.
func (s *RebateService) SetSelection(ctx context.Context, id uuid.UUID, operatorID string, txIDs []string) ([]string, error) {
	var out []string
	err := s.withSession(ctx, id, operatorID, func(sess *session) error {
		sess.manager.ClearSelection()
		sess.manager.Select(txIDs...)
		out = sess.manager.Selection()
		return nil
	})
	return out, err
}

// SubmitBulk completes every pending id in txIDs, or the current selection when
// txIDs is empty.
func (s *RebateService) SubmitBulk(ctx context.Context, id uuid.UUID, operatorID string, txIDs []string) (*rebate.BulkResult, error) {
	var out rebate.BulkResult
	err := s.withSession(ctx, id, operatorID, func(sess *session) error {
		if len(txIDs) == 0 {
			txIDs = sess.manager.Selection()
		}
		allowed, claimed := s.claimPending(ctx, sess, txIDs)
		out = sess.manager.SubmitBulk(allowed, s.now(), operatorID)
		out.Skipped = append(out.Skipped, claimed...)
		if len(out.Skipped) > 0 {
			s.logger.Warn("bulk submit skipped items",
				"session_id", id,
				"skipped", fmt.Sprint(out.Skipped),
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// claimPending claims every pending id in ids. Ids already decided in another
// session are returned separately; everything else passes through so the
// manager can report it.
func (s *RebateService) claimPending(ctx context.Context, sess *session, ids []string) (allowed, claimed []string) {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		if tx, ok := sess.manager.Get(id); ok && tx.IsPending() {
			if res := s.claims.Check(ctx, id); !res.Allowed {
				claimed = append(claimed, id)
				continue
			}
		}
		allowed = append(allowed, id)
	}
	return allowed, claimed
}
