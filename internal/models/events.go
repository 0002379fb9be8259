package models

import "time"

// Event types published on the stock-events topic
const (
	EventTypeStockAdjusted        = "STOCK_ADJUSTED"
	EventTypeReservationHeld      = "RESERVATION_HELD"
	EventTypeReservationCommitted = "RESERVATION_COMMITTED"
	EventTypeReservationReleased  = "RESERVATION_RELEASED"
	EventTypeLowStockAlert        = "LOW_STOCK_ALERT"
)

// Event types consumed from the order subsystem
const (
	EventTypeOrderPlaced    = "ORDER_PLACED"
	EventTypeOrderFulfilled = "ORDER_FULFILLED"
	EventTypeOrderCancelled = "ORDER_CANCELLED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// StockAdjustedEvent published after every applied adjustment
type StockAdjustedEvent struct {
	BaseEvent
	ItemID            string `json:"item_id"`
	VariantID         string `json:"variant_id,omitempty"`
	MovementType      string `json:"movement_type"`
	QuantityDelta     int    `json:"quantity_delta"`
	ResultingQuantity int    `json:"resulting_quantity"`
	StockStatus       string `json:"stock_status"`
}

// ReservationEvent published on hold, commit and release
type ReservationEvent struct {
	BaseEvent
	Reference string `json:"reference"`
	ItemID    string `json:"item_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
	Status    string `json:"status"`
}

// LowStockAlertEvent published when a record transitions out of in_stock
type LowStockAlertEvent struct {
	BaseEvent
	ItemID    string `json:"item_id"`
	VariantID string `json:"variant_id,omitempty"`
	Available int    `json:"available"`
	Threshold int    `json:"threshold"`
	Severity  string `json:"severity"`
}

// OrderLineData is one reservable line in an order event
type OrderLineData struct {
	ItemID    string `json:"item_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

// OrderPlacedEvent consumed at order placement; each line becomes a hold
type OrderPlacedEvent struct {
	BaseEvent
	OrderID string          `json:"order_id"`
	Lines   []OrderLineData `json:"lines"`
}

// OrderFulfilledEvent consumed at fulfillment; commits the order's holds
type OrderFulfilledEvent struct {
	BaseEvent
	OrderID string          `json:"order_id"`
	Lines   []OrderLineData `json:"lines"`
}

// OrderCancelledEvent consumed on cancellation; releases the order's holds
type OrderCancelledEvent struct {
	BaseEvent
	OrderID string          `json:"order_id"`
	Lines   []OrderLineData `json:"lines"`
	Reason  string          `json:"reason,omitempty"`
}
