package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"inventory-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const reservationColumns = "reference, item_id, variant_id, quantity, status, created_at, updated_at"

// GetReservation retrieves a reservation by reference
func (s *Store) GetReservation(ctx context.Context, reference string) (*models.Reservation, error) {
	var res models.Reservation
	err := s.getWithRetry(ctx, &res,
		"SELECT "+reservationColumns+" FROM reservations WHERE reference = $1", reference)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// HoldReservationTx creates a held reservation and raises the reserved counter
// in one transaction. For unmanaged records only the reservation row and the
// audit movement are written. The hold movement carries a zero quantity delta;
// the held amount is recorded in the note.
func (s *Store) HoldReservationTx(ctx context.Context, res *models.Reservation, actorID string, managed bool) (*models.StockRecord, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	err = tx.GetContext(ctx, res, `
		INSERT INTO reservations (reference, item_id, variant_id, quantity, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+reservationColumns,
		res.Reference, res.ItemID, res.VariantID, res.Quantity, models.ReservationStatusHeld)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, &models.ValidationError{Field: "reference", Message: "reservation reference already exists"}
		}
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}

	rec, err := s.stockForReservation(ctx, tx, res, 0, res.Quantity, managed)
	if err == errGuardFailed {
		return nil, s.insufficientAvailable(ctx, res)
	}
	if err != nil {
		return nil, err
	}

	movement := &models.InventoryMovement{
		ItemID:            res.ItemID,
		VariantID:         res.VariantID,
		MovementType:      models.MovementTypeReservationHold,
		QuantityDelta:     0,
		ResultingQuantity: rec.QuantityOnHand,
		ReferenceType:     "reservation",
		ReferenceID:       res.Reference,
		ActorID:           actorID,
		Note:              fmt.Sprintf("held %d units", res.Quantity),
	}
	if err := recordMovement(ctx, tx, movement); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

// CommitReservationTx finalizes a held reservation: on-hand and reserved drop
// together by the held amount and a sale movement is written, all in one
// transaction. Idempotent per reference: a committed reservation returns the
// prior result without writing anything.
func (s *Store) CommitReservationTx(ctx context.Context, reference, actorID string, managed bool) (*models.Reservation, *models.StockRecord, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, false, err
	}
	defer tx.Rollback()

	res, err := lockReservation(ctx, tx, reference)
	if err != nil {
		return nil, nil, false, err
	}

	if res.Status == models.ReservationStatusCommitted {
		rec, err := getStockTx(ctx, tx, res.ItemID, res.VariantID)
		if err != nil {
			return nil, nil, false, err
		}
		return res, rec, true, nil
	}
	if !models.CanTransition(res.Status, models.ReservationStatusCommitted) {
		return nil, nil, false, &models.ValidationError{Field: "reference",
			Message: fmt.Sprintf("reservation is %s and cannot be committed", res.Status)}
	}

	rec, err := s.stockForReservation(ctx, tx, res, -res.Quantity, -res.Quantity, managed)
	if err == errGuardFailed {
		return nil, nil, false, &models.InsufficientStockError{
			ItemID: res.ItemID, VariantID: res.VariantID, Requested: res.Quantity,
		}
	}
	if err != nil {
		return nil, nil, false, err
	}

	delta := -res.Quantity
	if !managed {
		delta = 0
	}
	movement := &models.InventoryMovement{
		ItemID:            res.ItemID,
		VariantID:         res.VariantID,
		MovementType:      models.MovementTypeSale,
		QuantityDelta:     delta,
		ResultingQuantity: rec.QuantityOnHand,
		ReferenceType:     "reservation",
		ReferenceID:       res.Reference,
		ActorID:           actorID,
	}
	if err := recordMovement(ctx, tx, movement); err != nil {
		return nil, nil, false, err
	}

	if err := updateReservationStatus(ctx, tx, res, models.ReservationStatusCommitted); err != nil {
		return nil, nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, false, err
	}
	return res, rec, false, nil
}

// ReleaseReservationTx returns held units to available and writes a release
// movement. Releasing an already released reservation is a no-op; a committed
// one cannot be released.
func (s *Store) ReleaseReservationTx(ctx context.Context, reference, actorID string, managed bool) (*models.Reservation, *models.StockRecord, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	res, err := lockReservation(ctx, tx, reference)
	if err != nil {
		return nil, nil, err
	}

	if res.Status == models.ReservationStatusReleased {
		rec, err := getStockTx(ctx, tx, res.ItemID, res.VariantID)
		if err != nil {
			return nil, nil, err
		}
		return res, rec, nil
	}
	if !models.CanTransition(res.Status, models.ReservationStatusReleased) {
		return nil, nil, &models.ValidationError{Field: "reference",
			Message: fmt.Sprintf("reservation is %s and cannot be released", res.Status)}
	}

	rec, err := s.stockForReservation(ctx, tx, res, 0, -res.Quantity, managed)
	if err != nil {
		return nil, nil, err
	}

	movement := &models.InventoryMovement{
		ItemID:            res.ItemID,
		VariantID:         res.VariantID,
		MovementType:      models.MovementTypeReservationRelease,
		QuantityDelta:     0,
		ResultingQuantity: rec.QuantityOnHand,
		ReferenceType:     "reservation",
		ReferenceID:       res.Reference,
		ActorID:           actorID,
		Note:              fmt.Sprintf("released %d units", res.Quantity),
	}
	if err := recordMovement(ctx, tx, movement); err != nil {
		return nil, nil, err
	}

	if err := updateReservationStatus(ctx, tx, res, models.ReservationStatusReleased); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return res, rec, nil
}

// stockForReservation applies the guarded stock update for a managed record,
// or reads the current record untouched for an unmanaged one.
func (s *Store) stockForReservation(ctx context.Context, tx *sqlx.Tx, res *models.Reservation, qtyDelta, reservedDelta int, managed bool) (*models.StockRecord, error) {
	if !managed {
		return getStockTx(ctx, tx, res.ItemID, res.VariantID)
	}
	return applyStock(ctx, tx, res.ItemID, res.VariantID, qtyDelta, reservedDelta, GuardRejectBelowReserved)
}

func (s *Store) insufficientAvailable(ctx context.Context, res *models.Reservation) error {
	current, err := s.GetStock(ctx, res.ItemID, res.VariantID)
	if err != nil {
		return err
	}
	return &models.InsufficientAvailableError{
		ItemID:    res.ItemID,
		VariantID: res.VariantID,
		Requested: res.Quantity,
		Available: current.Available(),
	}
}

func lockReservation(ctx context.Context, tx *sqlx.Tx, reference string) (*models.Reservation, error) {
	var res models.Reservation
	err := tx.GetContext(ctx, &res,
		"SELECT "+reservationColumns+" FROM reservations WHERE reference = $1 FOR UPDATE", reference)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func getStockTx(ctx context.Context, tx *sqlx.Tx, itemID, variantID string) (*models.StockRecord, error) {
	var rec models.StockRecord
	err := tx.GetContext(ctx, &rec,
		"SELECT "+stockColumns+" FROM stock_records WHERE item_id = $1 AND variant_id = $2",
		itemID, variantID)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func updateReservationStatus(ctx context.Context, tx *sqlx.Tx, res *models.Reservation, status string) error {
	err := tx.GetContext(ctx, res, `
		UPDATE reservations SET status = $1, updated_at = NOW()
		WHERE reference = $2
		RETURNING `+reservationColumns, status, res.Reference)
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}
	return nil
}
