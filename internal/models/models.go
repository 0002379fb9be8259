package models

import "time"

// Stock statuses (derived, never written directly by callers)
const (
	StockStatusInStock    = "in_stock"
	StockStatusLowStock   = "low_stock"
	StockStatusOutOfStock = "out_of_stock"
)

// Movement types
const (
	MovementTypeSale               = "sale"
	MovementTypeReturn             = "return"
	MovementTypeManualAdjustment   = "manual_adjustment"
	MovementTypeRestock            = "restock"
	MovementTypeReservationHold    = "reservation_hold"
	MovementTypeReservationRelease = "reservation_release"
	MovementTypeCorrection         = "correction"
)

// Reservation statuses
const (
	ReservationStatusHeld      = "held"
	ReservationStatusCommitted = "committed"
	ReservationStatusReleased  = "released"
)

// Alert severities, most urgent first
const (
	SeverityOutOfStock = "out_of_stock"
	SeverityCritical   = "critical"
	SeverityLow        = "low"
	SeverityNormal     = "normal"
)

// ActorSystem is the actor id recorded for movements not tied to an admin user.
const ActorSystem = "system"

// StockRecord is the per item/variant stock state. VariantID is empty for
// items tracked at the top level. Mutated only through the store's guarded
// update primitives.
type StockRecord struct {
	ItemID            string    `db:"item_id" json:"item_id"`
	VariantID         string    `db:"variant_id" json:"variant_id,omitempty"`
	QuantityOnHand    int       `db:"quantity_on_hand" json:"quantity_on_hand"`
	Reserved          int       `db:"reserved" json:"reserved"`
	ManageStock       bool      `db:"manage_stock" json:"manage_stock"`
	LowStockThreshold int       `db:"low_stock_threshold" json:"low_stock_threshold"`
	StockStatus       string    `db:"stock_status" json:"stock_status"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Available returns on-hand minus reserved, the quantity eligible for new orders.
func (r *StockRecord) Available() int {
	return r.QuantityOnHand - r.Reserved
}

// InventoryMovement is one immutable ledger row. ResultingQuantity is the
// on-hand snapshot captured from the same atomic update that applied the delta.
type InventoryMovement struct {
	ID                int64     `db:"id" json:"id"`
	ItemID            string    `db:"item_id" json:"item_id"`
	VariantID         string    `db:"variant_id" json:"variant_id,omitempty"`
	MovementType      string    `db:"movement_type" json:"movement_type"`
	QuantityDelta     int       `db:"quantity_delta" json:"quantity_delta"`
	ResultingQuantity int       `db:"resulting_quantity" json:"resulting_quantity"`
	ReferenceType     string    `db:"reference_type" json:"reference_type,omitempty"`
	ReferenceID       string    `db:"reference_id" json:"reference_id,omitempty"`
	ActorID           string    `db:"actor_id" json:"actor_id"`
	Reason            string    `db:"reason" json:"reason,omitempty"`
	Note              string    `db:"note" json:"note,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// Reservation holds units against an unfulfilled order. Terminal statuses
// (committed, released) are final.
type Reservation struct {
	Reference string    `db:"reference" json:"reference"`
	ItemID    string    `db:"item_id" json:"item_id"`
	VariantID string    `db:"variant_id" json:"variant_id,omitempty"`
	Quantity  int       `db:"quantity" json:"quantity"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StockAlert is a derived view, computed per query and never stored.
type StockAlert struct {
	ItemID    string `json:"item_id"`
	VariantID string `json:"variant_id,omitempty"`
	Available int    `json:"available"`
	Threshold int    `json:"threshold"`
	Severity  string `json:"severity"`
}

// MovementFilter narrows filtered movement listings.
type MovementFilter struct {
	ItemID       string
	VariantID    string
	MovementType string
	From         *time.Time
	To           *time.Time
}

// ReconcileResult reports a ledger replay against the live record. Mismatches
// are reported, never auto-corrected.
type ReconcileResult struct {
	ItemID           string `json:"item_id"`
	VariantID        string `json:"variant_id,omitempty"`
	LedgerQuantity   int    `json:"ledger_quantity"`
	RecordedQuantity int    `json:"recorded_quantity"`
	MovementCount    int    `json:"movement_count"`
	Mismatch         bool   `json:"mismatch"`
}

// DeriveStockStatus is the single place stock status is computed from.
// Unmanaged records are always in stock. The store's guarded UPDATE mirrors
// this exact logic in SQL so status and quantities change in one statement.
func DeriveStockStatus(available, threshold int, manageStock bool) string {
	if !manageStock {
		return StockStatusInStock
	}
	if available <= 0 {
		return StockStatusOutOfStock
	}
	if available <= threshold {
		return StockStatusLowStock
	}
	return StockStatusInStock
}

// Severity classifies how urgently an item needs restocking. The critical
// boundary uses integer division, so ties round down.
func Severity(available, threshold int) string {
	switch {
	case available <= 0:
		return SeverityOutOfStock
	case available <= threshold/2:
		return SeverityCritical
	case available <= threshold:
		return SeverityLow
	default:
		return SeverityNormal
	}
}

// CanTransition reports whether a reservation may move between statuses.
// held -> committed and held -> released are the only legal transitions.
func CanTransition(from, to string) bool {
	if from != ReservationStatusHeld {
		return false
	}
	return to == ReservationStatusCommitted || to == ReservationStatusReleased
}

// ValidAdjustmentType reports whether t is a caller-suppliable adjustment type.
func ValidAdjustmentType(t string) bool {
	switch t {
	case MovementTypeManualAdjustment, MovementTypeRestock, MovementTypeCorrection, MovementTypeReturn:
		return true
	}
	return false
}
