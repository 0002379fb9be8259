package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityBoundaries(t *testing.T) {
	// threshold = 10: the critical boundary is threshold/2 with integer division
	assert.Equal(t, SeverityNormal, Severity(11, 10))
	assert.Equal(t, SeverityLow, Severity(10, 10))
	assert.Equal(t, SeverityLow, Severity(6, 10))
	assert.Equal(t, SeverityCritical, Severity(5, 10))
	assert.Equal(t, SeverityCritical, Severity(1, 10))
	assert.Equal(t, SeverityOutOfStock, Severity(0, 10))
	assert.Equal(t, SeverityOutOfStock, Severity(-3, 10))
}

func TestSeverityOddThresholdRoundsDown(t *testing.T) {
	// threshold = 7: critical at available <= 3
	assert.Equal(t, SeverityCritical, Severity(3, 7))
	assert.Equal(t, SeverityLow, Severity(4, 7))
}

func TestDeriveStockStatus(t *testing.T) {
	assert.Equal(t, StockStatusInStock, DeriveStockStatus(20, 5, true))
	assert.Equal(t, StockStatusLowStock, DeriveStockStatus(5, 5, true))
	assert.Equal(t, StockStatusLowStock, DeriveStockStatus(1, 5, true))
	assert.Equal(t, StockStatusOutOfStock, DeriveStockStatus(0, 5, true))
	assert.Equal(t, StockStatusOutOfStock, DeriveStockStatus(-1, 5, true))

	// unmanaged records are always in stock regardless of quantities
	assert.Equal(t, StockStatusInStock, DeriveStockStatus(0, 5, false))
	assert.Equal(t, StockStatusInStock, DeriveStockStatus(-10, 5, false))
}

func TestReservationTransitions(t *testing.T) {
	assert.True(t, CanTransition(ReservationStatusHeld, ReservationStatusCommitted))
	assert.True(t, CanTransition(ReservationStatusHeld, ReservationStatusReleased))

	// terminal statuses are final
	assert.False(t, CanTransition(ReservationStatusCommitted, ReservationStatusHeld))
	assert.False(t, CanTransition(ReservationStatusCommitted, ReservationStatusReleased))
	assert.False(t, CanTransition(ReservationStatusReleased, ReservationStatusHeld))
	assert.False(t, CanTransition(ReservationStatusReleased, ReservationStatusCommitted))
	assert.False(t, CanTransition(ReservationStatusHeld, ReservationStatusHeld))
}

func TestAvailable(t *testing.T) {
	rec := &StockRecord{QuantityOnHand: 20, Reserved: 5}
	assert.Equal(t, 15, rec.Available())
}

func TestValidAdjustmentType(t *testing.T) {
	assert.True(t, ValidAdjustmentType(MovementTypeManualAdjustment))
	assert.True(t, ValidAdjustmentType(MovementTypeRestock))
	assert.True(t, ValidAdjustmentType(MovementTypeCorrection))
	assert.True(t, ValidAdjustmentType(MovementTypeReturn))

	// reservation movements are written by the engine, never by callers
	assert.False(t, ValidAdjustmentType(MovementTypeSale))
	assert.False(t, ValidAdjustmentType(MovementTypeReservationHold))
	assert.False(t, ValidAdjustmentType("unknown"))
}
