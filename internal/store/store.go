package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"inventory-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Guard selects the condition evaluated inside the atomic stock update.
type Guard string

const (
	// GuardRejectNegative fails the update if on-hand or reserved would go negative.
	GuardRejectNegative Guard = "reject_negative"
	// GuardRejectBelowReserved additionally fails if on-hand would drop below reserved.
	GuardRejectBelowReserved Guard = "reject_below_reserved"
	// GuardAllowNegative only protects reserved; on-hand may be forced negative.
	GuardAllowNegative Guard = "allow_negative"
)

const stockColumns = "item_id, variant_id, quantity_on_hand, reserved, manage_stock, low_stock_threshold, stock_status, updated_at"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS catalog_items (
		id TEXT PRIMARY KEY,
		sku TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		stock_quantity INT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS stock_records (
		item_id TEXT NOT NULL,
		variant_id TEXT NOT NULL DEFAULT '',
		quantity_on_hand INT NOT NULL DEFAULT 0,
		reserved INT NOT NULL DEFAULT 0,
		manage_stock BOOLEAN NOT NULL DEFAULT TRUE,
		low_stock_threshold INT NOT NULL DEFAULT 5,
		stock_status TEXT NOT NULL DEFAULT 'out_of_stock',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (item_id, variant_id)
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_movements (
		id BIGSERIAL PRIMARY KEY,
		item_id TEXT NOT NULL,
		variant_id TEXT NOT NULL DEFAULT '',
		movement_type TEXT NOT NULL,
		quantity_delta INT NOT NULL,
		resulting_quantity INT NOT NULL,
		reference_type TEXT NOT NULL DEFAULT '',
		reference_id TEXT NOT NULL DEFAULT '',
		actor_id TEXT NOT NULL DEFAULT 'system',
		reason TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_item_created
		ON inventory_movements (item_id, created_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_reference
		ON inventory_movements (reference_id)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		reference TEXT PRIMARY KEY,
		item_id TEXT NOT NULL,
		variant_id TEXT NOT NULL DEFAULT '',
		quantity INT NOT NULL,
		status TEXT NOT NULL DEFAULT 'held',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// EnsureSchema creates tables and indexes if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// MigrateLegacyStock drains stock counts left on the catalog table into
// stock_records. One-time normalization; legacy columns are nulled so the
// canonical read/write path is the only one afterwards.
func (s *Store) MigrateLegacyStock(ctx context.Context, defaultThreshold int) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	// The opening movement keeps the ledger replayable from zero for
	// quantities that predate movement tracking.
	res, err := tx.ExecContext(ctx, `
		WITH moved AS (
			INSERT INTO stock_records (item_id, variant_id, quantity_on_hand, low_stock_threshold, stock_status)
			SELECT id, '', GREATEST(stock_quantity, 0), $1,
				CASE
					WHEN GREATEST(stock_quantity, 0) <= 0 THEN 'out_of_stock'
					WHEN GREATEST(stock_quantity, 0) <= $1 THEN 'low_stock'
					ELSE 'in_stock'
				END
			FROM catalog_items
			WHERE stock_quantity IS NOT NULL
			ON CONFLICT (item_id, variant_id) DO NOTHING
			RETURNING item_id, variant_id, quantity_on_hand
		)
		INSERT INTO inventory_movements
			(item_id, variant_id, movement_type, quantity_delta, resulting_quantity,
			 reference_type, reference_id, actor_id, reason)
		SELECT item_id, variant_id, 'correction', quantity_on_hand, quantity_on_hand,
			'migration', '', 'system', 'legacy stock migration'
		FROM moved`, defaultThreshold)
	if err != nil {
		return 0, fmt.Errorf("failed to migrate legacy stock: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE catalog_items SET stock_quantity = NULL WHERE stock_quantity IS NOT NULL"); err != nil {
		return 0, fmt.Errorf("failed to clear legacy stock columns: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	migrated, _ := res.RowsAffected()
	return migrated, nil
}

// GetItemIDBySKU resolves a catalog SKU to an item id (bulk import path).
func (s *Store) GetItemIDBySKU(ctx context.Context, sku string) (string, error) {
	var id string
	err := s.getWithRetry(ctx, &id, "SELECT id FROM catalog_items WHERE sku = $1", sku)
	if err == sql.ErrNoRows {
		return "", models.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetStock retrieves the stock record for an item/variant
func (s *Store) GetStock(ctx context.Context, itemID, variantID string) (*models.StockRecord, error) {
	var rec models.StockRecord
	err := s.getWithRetry(ctx, &rec,
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

// CreateStockRecord creates a zero-quantity record when an item/variant is
// first configured for tracking. Safe to call concurrently; the existing row
// wins and is returned.
func (s *Store) CreateStockRecord(ctx context.Context, itemID, variantID string, manageStock bool, threshold int) (*models.StockRecord, error) {
	status := models.DeriveStockStatus(0, threshold, manageStock)

	var rec models.StockRecord
	err := s.db.GetContext(ctx, &rec, `
		INSERT INTO stock_records (item_id, variant_id, manage_stock, low_stock_threshold, stock_status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (item_id, variant_id) DO UPDATE SET item_id = EXCLUDED.item_id
		RETURNING `+stockColumns,
		itemID, variantID, manageStock, threshold, status)
	if err != nil {
		return nil, fmt.Errorf("failed to create stock record: %w", err)
	}
	return &rec, nil
}

// AtomicApply applies a quantity delta under the given guard. Check and write
// happen in one UPDATE; the derived status is recomputed in the same statement.
func (s *Store) AtomicApply(ctx context.Context, itemID, variantID string, delta int, guard Guard) (*models.StockRecord, error) {
	rec, err := applyStock(ctx, s.db, itemID, variantID, delta, 0, guard)
	if err == errGuardFailed {
		current, getErr := s.GetStock(ctx, itemID, variantID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, &models.InsufficientStockError{
			ItemID:    itemID,
			VariantID: variantID,
			Requested: -delta,
			Available: current.Available(),
		}
	}
	return rec, err
}

// SetReservation atomically adjusts reserved with the guard available_after >= 0.
func (s *Store) SetReservation(ctx context.Context, itemID, variantID string, reservedDelta int) (*models.StockRecord, error) {
	rec, err := applyStock(ctx, s.db, itemID, variantID, 0, reservedDelta, GuardRejectBelowReserved)
	if err == errGuardFailed {
		current, getErr := s.GetStock(ctx, itemID, variantID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, &models.InsufficientAvailableError{
			ItemID:    itemID,
			VariantID: variantID,
			Requested: reservedDelta,
			Available: current.Available(),
		}
	}
	return rec, err
}

// ListStockRecords returns all tracked records (reconciliation sweep).
func (s *Store) ListStockRecords(ctx context.Context) ([]models.StockRecord, error) {
	var recs []models.StockRecord
	err := s.db.SelectContext(ctx, &recs,
		"SELECT "+stockColumns+" FROM stock_records ORDER BY item_id, variant_id")
	return recs, err
}

// ListLowStock returns managed records at or below their threshold (or the
// override), sorted by ascending available so the most urgent come first.
func (s *Store) ListLowStock(ctx context.Context, thresholdOverride *int, includeOutOfStock bool) ([]models.StockRecord, error) {
	query := "SELECT " + stockColumns + " FROM stock_records WHERE manage_stock"
	args := []interface{}{}

	if thresholdOverride != nil {
		query += " AND quantity_on_hand - reserved <= $1"
		args = append(args, *thresholdOverride)
	} else {
		query += " AND quantity_on_hand - reserved <= low_stock_threshold"
	}
	if !includeOutOfStock {
		query += " AND quantity_on_hand - reserved > 0"
	}
	query += " ORDER BY quantity_on_hand - reserved ASC, item_id, variant_id"

	var recs []models.StockRecord
	err := s.db.SelectContext(ctx, &recs, query, args...)
	return recs, err
}

// errGuardFailed signals that the conditional update matched the row but the
// guard rejected it (or the row does not exist; callers disambiguate by read).
var errGuardFailed = fmt.Errorf("stock guard failed")

// applyStock is the single conditional-update primitive behind every stock
// mutation. It works on the pool or inside a transaction. The status CASE
// mirrors models.DeriveStockStatus so quantities and derived status always
// change in the same atomic statement.
func applyStock(ctx context.Context, q sqlx.QueryerContext, itemID, variantID string, qtyDelta, reservedDelta int, guard Guard) (*models.StockRecord, error) {
	var cond string
	switch guard {
	case GuardRejectBelowReserved:
		cond = "AND quantity_on_hand + $1 >= 0 AND reserved + $2 >= 0 AND quantity_on_hand + $1 >= reserved + $2"
	case GuardAllowNegative:
		cond = "AND reserved + $2 >= 0"
	default:
		cond = "AND quantity_on_hand + $1 >= 0 AND reserved + $2 >= 0"
	}

	query := `
		UPDATE stock_records SET
			quantity_on_hand = quantity_on_hand + $1,
			reserved = reserved + $2,
			stock_status = CASE
				WHEN NOT manage_stock THEN 'in_stock'
				WHEN quantity_on_hand + $1 - (reserved + $2) <= 0 THEN 'out_of_stock'
				WHEN quantity_on_hand + $1 - (reserved + $2) <= low_stock_threshold THEN 'low_stock'
				ELSE 'in_stock'
			END,
			updated_at = NOW()
		WHERE item_id = $3 AND variant_id = $4 ` + cond + `
		RETURNING ` + stockColumns

	var rec models.StockRecord
	err := sqlx.GetContext(ctx, q, &rec, query, qtyDelta, reservedDelta, itemID, variantID)
	if err == sql.ErrNoRows {
		return nil, errGuardFailed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply stock update: %w", err)
	}
	return &rec, nil
}

// getWithRetry retries a read once on transient failure. Writes are never
// retried here; idempotency is the caller's contract.
func (s *Store) getWithRetry(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	err := s.db.GetContext(ctx, dest, query, args...)
	if err != nil && err != sql.ErrNoRows && ctx.Err() == nil {
		err = s.db.GetContext(ctx, dest, query, args...)
	}
	return err
}
