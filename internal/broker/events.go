package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"inventory-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher publishes stock domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func stockKey(itemID, variantID string) string {
	if variantID == "" {
		return fmt.Sprintf("stock-%s", itemID)
	}
	return fmt.Sprintf("stock-%s-%s", itemID, variantID)
}

// PublishStockAdjusted publishes StockAdjusted event
func (ep *EventPublisher) PublishStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error {
	return ep.producer.PublishEvent(ctx, stockKey(event.ItemID, event.VariantID), event)
}

// PublishReservation publishes a reservation lifecycle event (held/committed/released)
func (ep *EventPublisher) PublishReservation(ctx context.Context, event *models.ReservationEvent) error {
	return ep.producer.PublishEvent(ctx, stockKey(event.ItemID, event.VariantID), event)
}

// PublishLowStockAlert publishes LowStockAlert event
func (ep *EventPublisher) PublishLowStockAlert(ctx context.Context, event *models.LowStockAlertEvent) error {
	return ep.producer.PublishEvent(ctx, stockKey(event.ItemID, event.VariantID), event)
}

// OrderEventHandler routes order subsystem events to the registered callbacks
type OrderEventHandler struct {
	onOrderPlaced    func(context.Context, *models.OrderPlacedEvent) error
	onOrderFulfilled func(context.Context, *models.OrderFulfilledEvent) error
	onOrderCancelled func(context.Context, *models.OrderCancelledEvent) error
}

// NewOrderEventHandler creates a new order event handler
func NewOrderEventHandler() *OrderEventHandler {
	return &OrderEventHandler{}
}

// OnOrderPlaced registers a handler for OrderPlaced events
func (eh *OrderEventHandler) OnOrderPlaced(handler func(context.Context, *models.OrderPlacedEvent) error) {
	eh.onOrderPlaced = handler
}

// OnOrderFulfilled registers a handler for OrderFulfilled events
func (eh *OrderEventHandler) OnOrderFulfilled(handler func(context.Context, *models.OrderFulfilledEvent) error) {
	eh.onOrderFulfilled = handler
}

// OnOrderCancelled registers a handler for OrderCancelled events
func (eh *OrderEventHandler) OnOrderCancelled(handler func(context.Context, *models.OrderCancelledEvent) error) {
	eh.onOrderCancelled = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *OrderEventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeOrderPlaced:
		if eh.onOrderPlaced != nil {
			var event models.OrderPlacedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderPlaced event: %w", err)
			}
			return eh.onOrderPlaced(ctx, &event)
		}

	case models.EventTypeOrderFulfilled:
		if eh.onOrderFulfilled != nil {
			var event models.OrderFulfilledEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderFulfilled event: %w", err)
			}
			return eh.onOrderFulfilled(ctx, &event)
		}

	case models.EventTypeOrderCancelled:
		if eh.onOrderCancelled != nil {
			var event models.OrderCancelledEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCancelled event: %w", err)
			}
			return eh.onOrderCancelled(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
