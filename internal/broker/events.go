package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"memoriqr-service/internal/models"
	"memoriqr-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishCodesGenerated publishes CodesGenerated event
func (ep *EventPublisher) PublishCodesGenerated(ctx context.Context, event *models.CodesGeneratedEvent) error {
	return ep.producer.PublishEvent(ctx, "batch-"+event.BatchID, event)
}

// PublishCodeRedeemed publishes CodeRedeemed event
func (ep *EventPublisher) PublishCodeRedeemed(ctx context.Context, event *models.CodeRedeemedEvent) error {
	return ep.producer.PublishEvent(ctx, "code-"+event.Code, event)
}

// PublishCodesTransferred publishes CodesTransferred event
func (ep *EventPublisher) PublishCodesTransferred(ctx context.Context, event *models.CodesTransferredEvent) error {
	return ep.producer.PublishEvent(ctx, "partner-"+event.FromPartnerID, event)
}

// PublishStockLow publishes StockLow event
func (ep *EventPublisher) PublishStockLow(ctx context.Context, event *models.StockLowEvent) error {
	return ep.producer.PublishEvent(ctx, "inventory-"+event.ItemID, event)
}

// PublishCommissionApproved publishes CommissionApproved event
func (ep *EventPublisher) PublishCommissionApproved(ctx context.Context, event *models.CommissionApprovedEvent) error {
	return ep.producer.PublishEvent(ctx, "partner-"+event.PartnerID, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onCodesGenerated     func(context.Context, *models.CodesGeneratedEvent) error
	onCodeRedeemed       func(context.Context, *models.CodeRedeemedEvent) error
	onCodesTransferred   func(context.Context, *models.CodesTransferredEvent) error
	onStockLow           func(context.Context, *models.StockLowEvent) error
	onCommissionApproved func(context.Context, *models.CommissionApprovedEvent) error
	logger               *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.Component("events")}
}

// OnCodesGenerated registers a handler for CodesGenerated events
func (eh *EventHandler) OnCodesGenerated(handler func(context.Context, *models.CodesGeneratedEvent) error) {
	eh.onCodesGenerated = handler
}

// OnCodeRedeemed registers a handler for CodeRedeemed events
func (eh *EventHandler) OnCodeRedeemed(handler func(context.Context, *models.CodeRedeemedEvent) error) {
	eh.onCodeRedeemed = handler
}

// OnCodesTransferred registers a handler for CodesTransferred events
func (eh *EventHandler) OnCodesTransferred(handler func(context.Context, *models.CodesTransferredEvent) error) {
	eh.onCodesTransferred = handler
}

// OnStockLow registers a handler for StockLow events
func (eh *EventHandler) OnStockLow(handler func(context.Context, *models.StockLowEvent) error) {
	eh.onStockLow = handler
}

// OnCommissionApproved registers a handler for CommissionApproved events
func (eh *EventHandler) OnCommissionApproved(handler func(context.Context, *models.CommissionApprovedEvent) error) {
	eh.onCommissionApproved = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeCodesGenerated:
		if eh.onCodesGenerated != nil {
			var event models.CodesGeneratedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CodesGenerated event: %w", err)
			}
			return eh.onCodesGenerated(ctx, &event)
		}

	case models.EventTypeCodeRedeemed:
		if eh.onCodeRedeemed != nil {
			var event models.CodeRedeemedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CodeRedeemed event: %w", err)
			}
			return eh.onCodeRedeemed(ctx, &event)
		}

	case models.EventTypeCodesTransferred:
		if eh.onCodesTransferred != nil {
			var event models.CodesTransferredEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CodesTransferred event: %w", err)
			}
			return eh.onCodesTransferred(ctx, &event)
		}

	case models.EventTypeStockLow:
		if eh.onStockLow != nil {
			var event models.StockLowEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal StockLow event: %w", err)
			}
			return eh.onStockLow(ctx, &event)
		}

	case models.EventTypeCommissionApproved:
		if eh.onCommissionApproved != nil {
			var event models.CommissionApprovedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CommissionApproved event: %w", err)
			}
			return eh.onCommissionApproved(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
