package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"inventory-service/internal/broker"
	"inventory-service/internal/models"
	"inventory-service/internal/service"
)

// OrderEventsWorker drives reservations from the order subsystem's events:
// placement holds stock, fulfillment commits, cancellation releases.
type OrderEventsWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.OrderEventHandler
	reservations *service.ReservationService
}

// NewOrderEventsWorker creates a new order events worker
func NewOrderEventsWorker(consumer *broker.Consumer, reservations *service.ReservationService) *OrderEventsWorker {
	w := &OrderEventsWorker{
		consumer:     consumer,
		eventHandler: broker.NewOrderEventHandler(),
		reservations: reservations,
	}

	w.eventHandler.OnOrderPlaced(w.handleOrderPlaced)
	w.eventHandler.OnOrderFulfilled(w.handleOrderFulfilled)
	w.eventHandler.OnOrderCancelled(w.handleOrderCancelled)

	return w
}

// Start starts the worker
func (w *OrderEventsWorker) Start(ctx context.Context) error {
	log.Println("Starting order events worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *OrderEventsWorker) Stop() error {
	log.Println("Stopping order events worker...")
	return w.consumer.Close()
}

// lineReference derives the reservation reference for one order line. Stable
// per order and line, so redelivered events reuse the same reservation.
func lineReference(orderID string, line models.OrderLineData) string {
	if line.VariantID == "" {
		return fmt.Sprintf("order-%s:%s", orderID, line.ItemID)
	}
	return fmt.Sprintf("order-%s:%s:%s", orderID, line.ItemID, line.VariantID)
}

func (w *OrderEventsWorker) handleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	for _, line := range event.Lines {
		_, _, err := w.reservations.Reserve(ctx, &service.ReserveRequest{
			ItemID:    line.ItemID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			Reference: lineReference(event.OrderID, line),
		})

		// A duplicate reference means this delivery was already processed.
		var validation *models.ValidationError
		if errors.As(err, &validation) && validation.Field == "reference" {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to reserve line for order %s: %w", event.OrderID, err)
		}
	}
	return nil
}

func (w *OrderEventsWorker) handleOrderFulfilled(ctx context.Context, event *models.OrderFulfilledEvent) error {
	for _, line := range event.Lines {
		if _, err := w.reservations.Commit(ctx, lineReference(event.OrderID, line), models.ActorSystem); err != nil {
			return fmt.Errorf("failed to commit line for order %s: %w", event.OrderID, err)
		}
	}
	return nil
}

func (w *OrderEventsWorker) handleOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	for _, line := range event.Lines {
		_, err := w.reservations.Release(ctx, lineReference(event.OrderID, line), models.ActorSystem)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to release line for order %s: %w", event.OrderID, err)
		}
	}
	return nil
}

// ReconcileWorker periodically replays the movement ledger across all tracked
// records. Mismatches are reported and counted, never auto-corrected.
type ReconcileWorker struct {
	alerts   *service.AlertEngine
	interval time.Duration
}

// NewReconcileWorker creates a new reconciliation worker
func NewReconcileWorker(alerts *service.AlertEngine, interval time.Duration) *ReconcileWorker {
	return &ReconcileWorker{
		alerts:   alerts,
		interval: interval,
	}
}

// Start runs the periodic sweep until the context is cancelled
func (w *ReconcileWorker) Start(ctx context.Context) error {
	log.Printf("Starting reconciliation worker, interval=%s", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Reconciliation worker stopping...")
			return ctx.Err()
		case <-ticker.C:
			mismatches, err := w.alerts.ReconcileAll(ctx)
			if err != nil {
				log.Printf("Reconciliation sweep error: %v", err)
				continue
			}
			if len(mismatches) > 0 {
				log.Printf("Reconciliation sweep found %d mismatches", len(mismatches))
			}
		}
	}
}
