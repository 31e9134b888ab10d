package ledger

import (
	"context"
	"fmt"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/ledger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"go.uber.org/zap"
)

// BudgetAuditor recomputes a budget from its history
type BudgetAuditor interface {
	VerifyBudget(ctx context.Context, ownerID, budgetID string) (*ledger.BudgetAudit, error)
}

// ReconciliationNotifier forwards reconciliation alerts to an operator channel
type ReconciliationNotifier interface {
	Notify(ctx context.Context, alert ReconciliationAlert) error
}

// ReconciliationAlert is what an operator needs to repair a record
type ReconciliationAlert struct {
	OwnerID  string               `json:"owner_id"`
	Saga     string               `json:"saga"`
	RecordID string               `json:"record_id"`
	Reason   string               `json:"reason"`
	Audits   []ledger.BudgetAudit `json:"audits,omitempty"`
}

// ReconciliationAlertHandler handles ledger.reconciliation_required events by
// auditing the budgets left pending and raising an alert
type ReconciliationAlertHandler struct {
	logger   *zap.Logger
	auditor  BudgetAuditor
	notifier ReconciliationNotifier
}

// NewReconciliationAlertHandler creates a new handler for reconciliation events
func NewReconciliationAlertHandler(logger *zap.Logger) *ReconciliationAlertHandler {
	return &ReconciliationAlertHandler{logger: logger}
}

// WithAuditor sets the auditor used to inspect pending budgets
func (h *ReconciliationAlertHandler) WithAuditor(auditor BudgetAuditor) *ReconciliationAlertHandler {
	h.auditor = auditor
	return h
}

// WithNotifier sets the notifier for sending alerts
func (h *ReconciliationAlertHandler) WithNotifier(notifier ReconciliationNotifier) *ReconciliationAlertHandler {
	h.notifier = notifier
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *ReconciliationAlertHandler) EventTypes() []string {
	return []string{ledger.EventTypeReconciliationRequired}
}

// Handle processes a ReconciliationRequiredEvent
func (h *ReconciliationAlertHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	rec, ok := event.(*ledger.ReconciliationRequiredEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			ledger.EventTypeReconciliationRequired, event.EventType())
	}

	alert := ReconciliationAlert{
		OwnerID:  event.OwnerID(),
		Saga:     rec.Saga,
		RecordID: rec.RecordID,
		Reason:   rec.Reason,
	}
	if h.auditor != nil {
		for _, budgetID := range rec.BudgetIDs {
			audit, err := h.auditor.VerifyBudget(ctx, alert.OwnerID, budgetID)
			if err != nil {
				// pending ids may name the record itself rather than a budget
				h.logger.Debug("pending id not audited", zap.String("id", budgetID), zap.Error(err))
				continue
			}
			alert.Audits = append(alert.Audits, *audit)
		}
	}

	h.logger.Error("manual reconciliation required",
		zap.String("owner_id", alert.OwnerID),
		zap.String("saga", alert.Saga),
		zap.String("record_id", alert.RecordID),
		zap.Strings("pending", rec.BudgetIDs),
		zap.Int("audited", len(alert.Audits)),
		zap.String("reason", alert.Reason),
	)

	if h.notifier != nil {
		if err := h.notifier.Notify(ctx, alert); err != nil {
			// returned so at-least-once delivery retries the notification
			return fmt.Errorf("notify reconciliation for %s: %w", alert.RecordID, err)
		}
	}
	return nil
}

var _ shared.EventHandler = (*ReconciliationAlertHandler)(nil)
