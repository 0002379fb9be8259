package service

import (
	"context"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/redisclient"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// AlertEngine classifies items needing attention and answers reporting
// queries. Aggregate reads go through the short-TTL query cache; nothing here
// is ever consulted for availability decisions.
type AlertEngine struct {
	store    *store.Store
	cache    *redisclient.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewAlertEngine creates a new alert engine. A nil cache disables memoization.
func NewAlertEngine(store *store.Store, cache *redisclient.Client, cacheTTL time.Duration) *AlertEngine {
	return &AlertEngine{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
	}
}

// ListLowStock returns alerts for managed items at or below threshold, most
// urgent first. Results may be up to one TTL stale.
func (e *AlertEngine) ListLowStock(ctx context.Context, thresholdOverride *int, includeOutOfStock bool) ([]models.StockAlert, error) {
	ctx, span := util.StartSpan(ctx, "AlertEngine.ListLowStock")
	defer span.End()

	override := -1
	if thresholdOverride != nil {
		override = *thresholdOverride
	}
	key := redisclient.CacheKey("low_stock", override, includeOutOfStock)

	return redisclient.Cached(ctx, e.cache, "low_stock", key, e.cacheTTL, func(ctx context.Context) ([]models.StockAlert, error) {
		recs, err := e.store.ListLowStock(ctx, thresholdOverride, includeOutOfStock)
		if err != nil {
			return nil, err
		}

		alerts := make([]models.StockAlert, 0, len(recs))
		for _, rec := range recs {
			threshold := rec.LowStockThreshold
			if thresholdOverride != nil {
				threshold = *thresholdOverride
			}
			alerts = append(alerts, models.StockAlert{
				ItemID:    rec.ItemID,
				VariantID: rec.VariantID,
				Available: rec.Available(),
				Threshold: threshold,
				Severity:  models.Severity(rec.Available(), threshold),
			})
		}
		return alerts, nil
	})
}

// History lists the movement ledger for an item, newest first, with a
// restartable timestamp+id cursor.
func (e *AlertEngine) History(ctx context.Context, itemID, variantID string, cursor *store.MovementCursor, limit int) ([]models.InventoryMovement, *store.MovementCursor, error) {
	ctx, span := util.StartSpan(ctx, "AlertEngine.History")
	defer span.End()

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	type page struct {
		Movements []models.InventoryMovement `json:"movements"`
		Next      *store.MovementCursor      `json:"next,omitempty"`
	}

	cursorKey := ""
	if cursor != nil {
		cursorKey = cursor.Encode()
	}
	key := redisclient.CacheKey("history", itemID, variantID, cursorKey, limit)

	p, err := redisclient.Cached(ctx, e.cache, "history", key, e.cacheTTL, func(ctx context.Context) (page, error) {
		movements, next, err := e.store.MovementHistory(ctx, itemID, variantID, cursor, limit)
		return page{Movements: movements, Next: next}, err
	})
	if err != nil {
		return nil, nil, err
	}
	return p.Movements, p.Next, nil
}

// MovementsFiltered lists movements matching the filter, newest first.
func (e *AlertEngine) MovementsFiltered(ctx context.Context, filter models.MovementFilter, limit, offset int) ([]models.InventoryMovement, error) {
	ctx, span := util.StartSpan(ctx, "AlertEngine.MovementsFiltered")
	defer span.End()

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	from, to := "", ""
	if filter.From != nil {
		from = filter.From.UTC().Format(time.RFC3339)
	}
	if filter.To != nil {
		to = filter.To.UTC().Format(time.RFC3339)
	}
	key := redisclient.CacheKey("movements", filter.ItemID, filter.VariantID, filter.MovementType, from, to, limit, offset)

	return redisclient.Cached(ctx, e.cache, "movements", key, e.cacheTTL, func(ctx context.Context) ([]models.InventoryMovement, error) {
		return e.store.MovementsFiltered(ctx, filter, limit, offset)
	})
}

// Reconcile replays the ledger for one item and compares it with the live
// record. Mismatches are reported, never auto-corrected; fixing one takes an
// explicit correction movement from an operator.
func (e *AlertEngine) Reconcile(ctx context.Context, itemID, variantID string) (*models.ReconcileResult, error) {
	ctx, span := util.StartSpan(ctx, "AlertEngine.Reconcile")
	defer span.End()

	rec, err := e.store.GetStock(ctx, itemID, variantID)
	if err != nil {
		return nil, err
	}

	total, count, err := e.store.SumMovementDeltas(ctx, itemID, variantID)
	if err != nil {
		return nil, err
	}

	util.ReconciliationRunsTotal.Inc()

	result := &models.ReconcileResult{
		ItemID:           itemID,
		VariantID:        variantID,
		LedgerQuantity:   total,
		RecordedQuantity: rec.QuantityOnHand,
		MovementCount:    count,
		Mismatch:         total != rec.QuantityOnHand,
	}

	if result.Mismatch {
		util.ReconciliationMismatchesTotal.Inc()
		e.logger.Warn("Reconciliation mismatch",
			zap.String("item_id", itemID),
			zap.String("variant_id", variantID),
			zap.Int("ledger_quantity", total),
			zap.Int("recorded_quantity", rec.QuantityOnHand))
	}
	return result, nil
}

// ReconcileAll sweeps every tracked record, returning only mismatches.
func (e *AlertEngine) ReconcileAll(ctx context.Context) ([]models.ReconcileResult, error) {
	recs, err := e.store.ListStockRecords(ctx)
	if err != nil {
		return nil, err
	}

	var mismatches []models.ReconcileResult
	for _, rec := range recs {
		if ctx.Err() != nil {
			return mismatches, ctx.Err()
		}
		result, err := e.Reconcile(ctx, rec.ItemID, rec.VariantID)
		if err != nil {
			e.logger.Error("Reconcile failed",
				zap.String("item_id", rec.ItemID),
				zap.Error(err))
			continue
		}
		if result.Mismatch {
			mismatches = append(mismatches, *result)
		}
	}
	return mismatches, nil
}

// GetStock reads the authoritative record, bypassing the cache.
func (e *AlertEngine) GetStock(ctx context.Context, itemID, variantID string) (*models.StockRecord, error) {
	return e.store.GetStock(ctx, itemID, variantID)
}
