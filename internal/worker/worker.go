package worker

import (
	"context"
	"fmt"

	"memoriqr-service/internal/broker"
	"memoriqr-service/internal/models"
	"memoriqr-service/internal/notify"
	"memoriqr-service/internal/util"

	"go.uber.org/zap"
)

// Source delivers broker messages to a handler until ctx is done
type Source interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// EventLog records which events have already been handled
type EventLog interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// Sender delivers a notification to the email workflow
type Sender interface {
	Send(ctx context.Context, n notify.Notification) error
}

// NotificationWorker turns domain events into outbound notifications.
// An event is marked processed only after its notification was sent, so a
// failed send returns an error and the consumer retries the message.
type NotificationWorker struct {
	source Source
	events *broker.EventHandler
	log    EventLog
	sender Sender
	logger *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(source Source, log EventLog, sender Sender) *NotificationWorker {
	w := &NotificationWorker{
		source: source,
		events: broker.NewEventHandler(),
		log:    log,
		sender: sender,
		logger: util.Component("worker"),
	}

	w.events.OnCodesGenerated(w.handleCodesGenerated)
	w.events.OnCodeRedeemed(w.handleCodeRedeemed)
	w.events.OnCodesTransferred(w.handleCodesTransferred)
	w.events.OnStockLow(w.handleStockLow)
	w.events.OnCommissionApproved(w.handleCommissionApproved)

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.source.StartConsuming(ctx, w.events.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.source.Close()
}

func (w *NotificationWorker) handleCodesGenerated(ctx context.Context, e *models.CodesGeneratedEvent) error {
	return w.deliver(ctx, e.BaseEvent, notify.CodesGenerated{
		BatchID:   e.BatchID,
		BatchName: e.BatchName,
		Variant:   e.Variant,
		Quantity:  e.Quantity,
		PartnerID: deref(e.PartnerID),
	})
}

func (w *NotificationWorker) handleCodeRedeemed(ctx context.Context, e *models.CodeRedeemedEvent) error {
	return w.deliver(ctx, e.BaseEvent, notify.CodeRedeemed{
		Code:             e.Code,
		MemorialID:       e.MemorialID,
		Variant:          e.Variant,
		PartnerID:        deref(e.PartnerID),
		HostingExpiresAt: e.HostingExpiresAt,
	})
}

func (w *NotificationWorker) handleCodesTransferred(ctx context.Context, e *models.CodesTransferredEvent) error {
	return w.deliver(ctx, e.BaseEvent, notify.CodesTransferred{
		FromPartnerID: e.FromPartnerID,
		ToPartnerID:   e.ToPartnerID,
		Codes:         e.Codes,
	})
}

func (w *NotificationWorker) handleStockLow(ctx context.Context, e *models.StockLowEvent) error {
	return w.deliver(ctx, e.BaseEvent, notify.LowStockAlert{
		ProductType:       e.ProductType,
		Variant:           e.Variant,
		QuantityAvailable: e.QuantityAvailable,
		LowStockThreshold: e.LowStockThreshold,
		SupplierName:      e.SupplierName,
	})
}

func (w *NotificationWorker) handleCommissionApproved(ctx context.Context, e *models.CommissionApprovedEvent) error {
	return w.deliver(ctx, e.BaseEvent, notify.CommissionApproved{
		CommissionID:   e.CommissionID,
		PartnerID:      e.PartnerID,
		ActivationCode: e.ActivationCode,
		Amount:         e.Amount,
	})
}

func (w *NotificationWorker) deliver(ctx context.Context, e models.BaseEvent, n notify.Notification) error {
	ctx, span := util.StartSpan(ctx, "NotificationWorker.deliver")
	defer span.End()

	if e.EventID != "" {
		processed, err := w.log.IsEventProcessed(ctx, e.EventID)
		if err != nil {
			return fmt.Errorf("failed to check event processed: %w", err)
		}
		if processed {
			w.logger.Info("Event already processed", zap.String("event_id", e.EventID))
			return nil
		}
	}

	if err := w.sender.Send(ctx, n); err != nil {
		return fmt.Errorf("failed to send %s notification: %w", n.Kind(), err)
	}

	if e.EventID != "" {
		if err := w.log.MarkEventProcessed(ctx, e.EventID, e.EventType); err != nil {
			w.logger.Error("Failed to mark event processed", zap.String("event_id", e.EventID), zap.Error(err))
		}
	}

	w.logger.Info("Notification sent",
		zap.String("event_id", e.EventID),
		zap.String("type", string(n.Kind())))
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
