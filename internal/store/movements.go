package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"inventory-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const movementColumns = "id, item_id, variant_id, movement_type, quantity_delta, resulting_quantity, reference_type, reference_id, actor_id, reason, note, created_at"

// RecordMovement appends one immutable ledger row. Pure insert; rows are
// never updated or deleted, corrections are new rows.
func (s *Store) RecordMovement(ctx context.Context, m *models.InventoryMovement) error {
	return recordMovement(ctx, s.db, m)
}

func recordMovement(ctx context.Context, q sqlx.QueryerContext, m *models.InventoryMovement) error {
	query := `
		INSERT INTO inventory_movements
			(item_id, variant_id, movement_type, quantity_delta, resulting_quantity,
			 reference_type, reference_id, actor_id, reason, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	row := q.QueryRowxContext(ctx, query,
		m.ItemID, m.VariantID, m.MovementType, m.QuantityDelta, m.ResultingQuantity,
		m.ReferenceType, m.ReferenceID, m.ActorID, m.Reason, m.Note)
	if err := row.Scan(&m.ID, &m.CreatedAt); err != nil {
		return fmt.Errorf("failed to record movement: %w", err)
	}
	return nil
}

// MovementCursor is a stateless pagination position: the timestamp and id of
// the last movement the caller has seen.
type MovementCursor struct {
	BeforeTime time.Time
	BeforeID   int64
}

// Encode renders the cursor as "unixnano:id" for transport.
func (c MovementCursor) Encode() string {
	return strconv.FormatInt(c.BeforeTime.UnixNano(), 10) + ":" + strconv.FormatInt(c.BeforeID, 10)
}

// ParseMovementCursor parses a cursor produced by Encode. Empty input means
// start from the newest movement.
func ParseMovementCursor(raw string) (*MovementCursor, error) {
	if raw == "" {
		return nil, nil
	}
	var nanos, id int64
	if _, err := fmt.Sscanf(raw, "%d:%d", &nanos, &id); err != nil {
		return nil, &models.ValidationError{Field: "cursor", Message: "malformed cursor"}
	}
	return &MovementCursor{BeforeTime: time.Unix(0, nanos), BeforeID: id}, nil
}

// MovementHistory lists movements for an item/variant, newest first.
// Pagination is restartable: the (created_at, id) cursor holds under
// concurrent appends, unlike offsets.
func (s *Store) MovementHistory(ctx context.Context, itemID, variantID string, cursor *MovementCursor, limit int) ([]models.InventoryMovement, *MovementCursor, error) {
	query := "SELECT " + movementColumns + " FROM inventory_movements WHERE item_id = $1 AND variant_id = $2"
	args := []interface{}{itemID, variantID}

	if cursor != nil {
		query += " AND (created_at, id) < ($3, $4)"
		args = append(args, cursor.BeforeTime, cursor.BeforeID)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT %d", limit)

	var movements []models.InventoryMovement
	if err := s.db.SelectContext(ctx, &movements, query, args...); err != nil {
		return nil, nil, err
	}

	var next *MovementCursor
	if len(movements) == limit {
		last := movements[len(movements)-1]
		next = &MovementCursor{BeforeTime: last.CreatedAt, BeforeID: last.ID}
	}
	return movements, next, nil
}

// MovementsFiltered lists movements matching the filter, newest first.
func (s *Store) MovementsFiltered(ctx context.Context, filter models.MovementFilter, limit, offset int) ([]models.InventoryMovement, error) {
	query := "SELECT " + movementColumns + " FROM inventory_movements WHERE 1=1"
	args := []interface{}{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ItemID != "" {
		query += " AND item_id = " + arg(filter.ItemID)
		if filter.VariantID != "" {
			query += " AND variant_id = " + arg(filter.VariantID)
		}
	}
	if filter.MovementType != "" {
		query += " AND movement_type = " + arg(filter.MovementType)
	}
	if filter.From != nil {
		query += " AND created_at >= " + arg(*filter.From)
	}
	if filter.To != nil {
		query += " AND created_at <= " + arg(*filter.To)
	}

	query += " ORDER BY created_at DESC, id DESC LIMIT " + arg(limit) + " OFFSET " + arg(offset)

	var movements []models.InventoryMovement
	err := s.db.SelectContext(ctx, &movements, query, args...)
	return movements, err
}

// SumMovementDeltas replays the ledger for an item/variant: the sum of all
// deltas plus the row count, for reconciliation against the live record.
func (s *Store) SumMovementDeltas(ctx context.Context, itemID, variantID string) (total int, count int, err error) {
	row := s.db.QueryRowxContext(ctx, `
		SELECT COALESCE(SUM(quantity_delta), 0), COUNT(*)
		FROM inventory_movements
		WHERE item_id = $1 AND variant_id = $2`, itemID, variantID)
	err = row.Scan(&total, &count)
	return total, count, err
}

// GetMovementByReference finds the movement written for a reference, used for
// the idempotent-commit lookup.
func (s *Store) GetMovementByReference(ctx context.Context, referenceID, movementType string) (*models.InventoryMovement, error) {
	var m models.InventoryMovement
	err := s.getWithRetry(ctx, &m,
		"SELECT "+movementColumns+" FROM inventory_movements WHERE reference_id = $1 AND movement_type = $2 ORDER BY id LIMIT 1",
		referenceID, movementType)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
