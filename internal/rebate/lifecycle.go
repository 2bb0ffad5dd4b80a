package rebate

import (
	"strings"
	"time"

	"github.com/attaboy/backoffice/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultCancelRemark is used when an operator cancels without entering a remark.
const DefaultCancelRemark = "Cancelled by admin"

// Override holds operator-entered values that supersede computed ones at decision time.
type Override struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Remark *string          `json:"remark,omitempty"`
}

// Display holds the derived values a screen shows next to a transaction.
type Display struct {
	TierLabel            string          `json:"tier_label"`
	Rate                 string          `json:"rate"`
	ComputedAmount       decimal.Decimal `json:"computed_amount"`
	RequiresManualReview bool            `json:"requires_manual_review"`
}

// RecordFilter narrows the records listing. Zero fields match everything.
type RecordFilter struct {
	Status     domain.RebateStatus
	RebateType string
	Username   string
	From       time.Time
	To         time.Time
}

func (f RecordFilter) match(tx *domain.RebateTransaction) bool {
	if f.Status != "" && tx.Status != f.Status {
		return false
	}
	if f.RebateType != "" && tx.RebateType != f.RebateType {
		return false
	}
	if f.Username != "" && !strings.EqualFold(tx.Username, f.Username) {
		return false
	}
	if !f.From.IsZero() && tx.SubmitTime.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && tx.SubmitTime.After(f.To) {
		return false
	}
	return true
}

// BulkResult lists which ids a bulk submit completed and which it left alone.
type BulkResult struct {
	Completed []string `json:"completed"`
	Skipped   []string `json:"skipped"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithOnUpdated registers a callback fired after every submit or cancel.
func WithOnUpdated(fn func(domain.RebateTransaction)) Option {
	return func(m *Manager) { m.onUpdated = fn }
}

// Manager holds an operator's working set of rebate transactions and applies
// decisions to it. It is not safe for concurrent use.
type Manager struct {
	catalog   *Catalog
	schedule  ScheduleLookup
	txs       []*domain.RebateTransaction
	index     map[string]*domain.RebateTransaction
	overrides map[string]Override
	selection map[string]struct{}
	onUpdated func(domain.RebateTransaction)
}

// NewManager loads txs into a working set. Later duplicates of an id are dropped.
func NewManager(catalog *Catalog, schedule ScheduleLookup, txs []domain.RebateTransaction, opts ...Option) *Manager {
	m := &Manager{
		catalog:   catalog,
		schedule:  schedule,
		txs:       make([]*domain.RebateTransaction, 0, len(txs)),
		index:     make(map[string]*domain.RebateTransaction, len(txs)),
		overrides: make(map[string]Override),
		selection: make(map[string]struct{}),
	}
	for i := range txs {
		if _, dup := m.index[txs[i].ID]; dup {
			continue
		}
		tx := txs[i]
		m.txs = append(m.txs, &tx)
		m.index[tx.ID] = &tx
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) evaluate(tx *domain.RebateTransaction) (Resolution, decimal.Decimal) {
	setup, _ := m.catalog.Lookup(tx.RebateName)
	return Evaluate(tx.LossAmount, setup)
}

func (m *Manager) needsReview(tx *domain.RebateTransaction) bool {
	_, amount := m.evaluate(tx)
	return RequiresManualReview(amount, tx.RebateType, m.schedule)
}

// Describe derives the display values of tx from the catalog and schedule.
func (m *Manager) Describe(tx domain.RebateTransaction) Display {
	res, amount := m.evaluate(&tx)
	return Display{
		TierLabel:            res.Label(),
		Rate:                 res.RateLabel(),
		ComputedAmount:       amount,
		RequiresManualReview: RequiresManualReview(amount, tx.RebateType, m.schedule),
	}
}

// Get returns a copy of the transaction with the given id.
func (m *Manager) Get(id string) (domain.RebateTransaction, bool) {
	tx, ok := m.index[id]
	if !ok {
		return domain.RebateTransaction{}, false
	}
	return *tx, true
}

// Transactions returns the whole working set in load order.
func (m *Manager) Transactions() []domain.RebateTransaction {
	out := make([]domain.RebateTransaction, 0, len(m.txs))
	for _, tx := range m.txs {
		out = append(out, *tx)
	}
	return out
}

// ListPending returns the manual-review worklist: pending items whose computed
// rebate exceeds their category's auto-approval threshold.
func (m *Manager) ListPending() []domain.RebateTransaction {
	var out []domain.RebateTransaction
	for _, tx := range m.txs {
		if tx.IsPending() && m.needsReview(tx) {
			out = append(out, *tx)
		}
	}
	return out
}

// ListAutoApproved returns pending items that fall within the auto-approval threshold.
// They are never shown for manual action and this manager never transitions them on its own.
func (m *Manager) ListAutoApproved() []domain.RebateTransaction {
	var out []domain.RebateTransaction
	for _, tx := range m.txs {
		if tx.IsPending() && !m.needsReview(tx) {
			out = append(out, *tx)
		}
	}
	return out
}

// Records returns the visible transactions matching f and the sum of their amounts.
// Pending items are visible only when they require manual review.
func (m *Manager) Records(f RecordFilter) ([]domain.RebateTransaction, decimal.Decimal) {
	var out []domain.RebateTransaction
	total := decimal.Zero
	for _, tx := range m.txs {
		if tx.IsPending() && !m.needsReview(tx) {
			continue
		}
		if !f.match(tx) {
			continue
		}
		out = append(out, *tx)
		total = total.Add(tx.Amount)
	}
	return out, total
}

// SetOverride records an operator-entered release amount and/or remark for a
// transaction. Values are not validated. Unknown and already decided ids are
// ignored.
func (m *Manager) SetOverride(id string, amount *decimal.Decimal, remark *string) bool {
	if tx, ok := m.index[id]; !ok || !tx.IsPending() {
		return false
	}
	o := m.overrides[id]
	if amount != nil {
		a := *amount
		o.Amount = &a
	}
	if remark != nil {
		r := *remark
		o.Remark = &r
	}
	m.overrides[id] = o
	return true
}

// OverrideFor returns the pending override of a transaction.
func (m *Manager) OverrideFor(id string) (Override, bool) {
	o, ok := m.overrides[id]
	return o, ok
}

// ClearOverride drops any pending override of a transaction.
func (m *Manager) ClearOverride(id string) {
	delete(m.overrides, id)
}

// SubmitSingle completes a pending transaction with the override amount, or the
// computed amount when none was entered. It is a no-op unless the item is pending.
func (m *Manager) SubmitSingle(id string, now time.Time, handlerID string) (domain.RebateTransaction, bool) {
	tx, ok := m.index[id]
	if !ok || !tx.IsPending() {
		return domain.RebateTransaction{}, false
	}
	m.complete(tx, now, handlerID)
	return *tx, true
}

// CancelSingle rejects a pending transaction. The remark is the override remark
// or reasonDefault. It is a no-op unless the item is pending.
func (m *Manager) CancelSingle(id string, now time.Time, handlerID, reasonDefault string) (domain.RebateTransaction, bool) {
	tx, ok := m.index[id]
	if !ok || !tx.IsPending() {
		return domain.RebateTransaction{}, false
	}

	remark := reasonDefault
	if o, ok := m.overrides[id]; ok && o.Remark != nil {
		remark = *o.Remark
	}

	t := now
	tx.Status = domain.RebateStatusRejected
	tx.Remark = remark
	tx.CompleteTime = &t
	tx.CompleteBy = handlerID

	delete(m.overrides, id)
	delete(m.selection, id)
	m.notify(tx)
	return *tx, true
}

// SubmitBulk applies SubmitSingle to every id. Items that are unknown or not pending
// are skipped without affecting the rest. The selection and the overrides of every
// id in the batch are cleared afterwards.
func (m *Manager) SubmitBulk(ids []string, now time.Time, handlerID string) BulkResult {
	result := BulkResult{Completed: []string{}, Skipped: []string{}}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		if _, ok := m.SubmitSingle(id, now, handlerID); ok {
			result.Completed = append(result.Completed, id)
		} else {
			result.Skipped = append(result.Skipped, id)
		}
	}

	for id := range seen {
		delete(m.overrides, id)
	}
	m.ClearSelection()
	return result
}

// SubmitSelected bulk-submits the current selection.
func (m *Manager) SubmitSelected(now time.Time, handlerID string) BulkResult {
	return m.SubmitBulk(m.Selection(), now, handlerID)
}

// Select adds known pending ids to the selection.
func (m *Manager) Select(ids ...string) {
	for _, id := range ids {
		if tx, ok := m.index[id]; ok && tx.IsPending() {
			m.selection[id] = struct{}{}
		}
	}
}

// Deselect removes ids from the selection.
func (m *Manager) Deselect(ids ...string) {
	for _, id := range ids {
		delete(m.selection, id)
	}
}

// ClearSelection empties the selection.
func (m *Manager) ClearSelection() {
	m.selection = make(map[string]struct{})
}

// Selection returns the selected ids in working-set order.
func (m *Manager) Selection() []string {
	out := make([]string, 0, len(m.selection))
	for _, tx := range m.txs {
		if _, ok := m.selection[tx.ID]; ok {
			out = append(out, tx.ID)
		}
	}
	return out
}

func (m *Manager) complete(tx *domain.RebateTransaction, now time.Time, handlerID string) {
	_, amount := m.evaluate(tx)
	remark := ""
	if o, ok := m.overrides[tx.ID]; ok {
		if o.Amount != nil {
			amount = *o.Amount
		}
		if o.Remark != nil {
			remark = *o.Remark
		}
	}

	t := now
	tx.Status = domain.RebateStatusCompleted
	tx.Amount = amount
	tx.Remark = remark
	tx.CompleteTime = &t
	tx.CompleteBy = handlerID

	delete(m.overrides, tx.ID)
	delete(m.selection, tx.ID)
	m.notify(tx)
}

func (m *Manager) notify(tx *domain.RebateTransaction) {
	if m.onUpdated != nil {
		m.onUpdated(*tx)
	}
}
