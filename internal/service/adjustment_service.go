package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/broker"
	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// AdjustmentService orchestrates validated, auditable changes to stock.
type AdjustmentService struct {
	store            *store.Store
	eventPublisher   *broker.EventPublisher
	defaultThreshold int
	logger           *zap.Logger
}

// NewAdjustmentService creates a new adjustment service
func NewAdjustmentService(store *store.Store, eventPublisher *broker.EventPublisher, defaultThreshold int) *AdjustmentService {
	return &AdjustmentService{
		store:            store,
		eventPublisher:   eventPublisher,
		defaultThreshold: defaultThreshold,
		logger:           util.GetLogger(),
	}
}

// AdjustmentRequest carries caller intent: an absolute target quantity or a
// relative delta, never both.
type AdjustmentRequest struct {
	ItemID             string `json:"item_id" binding:"required"`
	VariantID          string `json:"variant_id,omitempty"`
	TargetQuantity     *int   `json:"target_quantity,omitempty"`
	Delta              *int   `json:"delta,omitempty"`
	MovementType       string `json:"movement_type,omitempty"`
	Reason             string `json:"reason,omitempty"`
	ReferenceID        string `json:"reference_id,omitempty"`
	ActorID            string `json:"actor_id,omitempty"`
	ForceBelowReserved bool   `json:"force_below_reserved,omitempty"`
}

// ImportRow is one line of a bulk stock import
type ImportRow struct {
	SKU            string `json:"sku" binding:"required"`
	TargetQuantity int    `json:"target_quantity"`
}

// ImportRowResult reports the outcome of one import row
type ImportRowResult struct {
	SKU    string              `json:"sku"`
	Record *models.StockRecord `json:"record,omitempty"`
	Error  string              `json:"error,omitempty"`
}

func (s *AdjustmentService) validate(req *AdjustmentRequest) error {
	if req.ItemID == "" {
		return &models.ValidationError{Field: "item_id", Message: "item id is required"}
	}
	if (req.TargetQuantity == nil) == (req.Delta == nil) {
		return &models.ValidationError{Field: "delta", Message: "exactly one of target_quantity or delta is required"}
	}
	if req.TargetQuantity != nil && *req.TargetQuantity < 0 {
		return &models.ValidationError{Field: "target_quantity", Message: "target quantity may not be negative"}
	}
	if req.MovementType != "" && !models.ValidAdjustmentType(req.MovementType) {
		return &models.ValidationError{Field: "movement_type", Message: fmt.Sprintf("unknown adjustment type %q", req.MovementType)}
	}
	return nil
}

// ApplyAdjustment validates and applies one stock change: a guarded atomic
// update followed by a ledger movement carrying the on-hand snapshot returned
// by that same update. On a guard failure nothing is written.
func (s *AdjustmentService) ApplyAdjustment(ctx context.Context, req *AdjustmentRequest) (*models.StockRecord, error) {
	ctx, span := util.StartSpan(ctx, "AdjustmentService.ApplyAdjustment",
		attribute.String("item_id", req.ItemID))
	defer span.End()

	start := time.Now()
	defer func() {
		util.AdjustmentLatency.Observe(time.Since(start).Seconds())
	}()

	if err := s.validate(req); err != nil {
		util.AdjustmentsRejectedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	rec, err := s.store.GetStock(ctx, req.ItemID, req.VariantID)
	if errors.Is(err, models.ErrNotFound) {
		rec, err = s.store.CreateStockRecord(ctx, req.ItemID, req.VariantID, true, s.defaultThreshold)
	}
	if err != nil {
		return nil, err
	}

	if !rec.ManageStock {
		util.AdjustmentsRejectedTotal.WithLabelValues("unmanaged").Inc()
		return nil, &models.ValidationError{Field: "item_id", Message: "stock is not managed for this item"}
	}

	delta := 0
	if req.TargetQuantity != nil {
		delta = *req.TargetQuantity - rec.QuantityOnHand
	} else {
		delta = *req.Delta
	}
	if delta == 0 {
		return rec, nil
	}

	guard := store.GuardRejectBelowReserved
	if req.ForceBelowReserved {
		guard = store.GuardRejectNegative
	}

	updated, err := s.store.AtomicApply(ctx, req.ItemID, req.VariantID, delta, guard)
	if err != nil {
		var insufficient *models.InsufficientStockError
		if errors.As(err, &insufficient) {
			util.AdjustmentsRejectedTotal.WithLabelValues("insufficient_stock").Inc()
		}
		return nil, err
	}

	movementType := req.MovementType
	if movementType == "" {
		movementType = models.MovementTypeManualAdjustment
	}
	actorID := req.ActorID
	if actorID == "" {
		actorID = models.ActorSystem
	}
	referenceType := ""
	if req.ReferenceID != "" {
		referenceType = "adjustment"
	}

	movement := &models.InventoryMovement{
		ItemID:            req.ItemID,
		VariantID:         req.VariantID,
		MovementType:      movementType,
		QuantityDelta:     delta,
		ResultingQuantity: updated.QuantityOnHand,
		ReferenceType:     referenceType,
		ReferenceID:       req.ReferenceID,
		ActorID:           actorID,
		Reason:            req.Reason,
	}
	if err := s.store.RecordMovement(ctx, movement); err != nil {
		return nil, fmt.Errorf("failed to record adjustment movement: %w", err)
	}

	util.AdjustmentsAppliedTotal.WithLabelValues(movementType).Inc()
	util.MovementsRecordedTotal.WithLabelValues(movementType).Inc()
	s.logger.Info("Adjustment applied",
		zap.String("item_id", req.ItemID),
		zap.String("variant_id", req.VariantID),
		zap.Int("delta", delta),
		zap.Int("resulting_quantity", updated.QuantityOnHand),
		zap.String("status", updated.StockStatus))

	s.publishAdjusted(ctx, movement, updated)
	return updated, nil
}

// BulkImport applies adjustments row by row. A failed row never rolls back
// prior rows; cancelling mid-batch leaves already-applied rows committed.
func (s *AdjustmentService) BulkImport(ctx context.Context, rows []ImportRow, actorID string) []ImportRowResult {
	ctx, span := util.StartSpan(ctx, "AdjustmentService.BulkImport")
	defer span.End()

	batchID := uuid.New().String()
	results := make([]ImportRowResult, 0, len(rows))

	for _, row := range rows {
		if ctx.Err() != nil {
			break
		}

		rec, err := s.importRow(ctx, row, batchID, actorID)
		if err != nil {
			results = append(results, ImportRowResult{SKU: row.SKU, Error: err.Error()})
			continue
		}
		results = append(results, ImportRowResult{SKU: row.SKU, Record: rec})
	}

	s.logger.Info("Bulk import finished",
		zap.String("batch_id", batchID),
		zap.Int("rows", len(rows)),
		zap.Int("processed", len(results)))
	return results
}

func (s *AdjustmentService) importRow(ctx context.Context, row ImportRow, batchID, actorID string) (*models.StockRecord, error) {
	if row.TargetQuantity < 0 {
		return nil, &models.ValidationError{Field: "target_quantity", Message: "target quantity may not be negative"}
	}

	itemID, err := s.store.GetItemIDBySKU(ctx, row.SKU)
	if errors.Is(err, models.ErrNotFound) {
		return nil, &models.ValidationError{Field: "sku", Message: fmt.Sprintf("unknown sku %q", row.SKU)}
	}
	if err != nil {
		return nil, err
	}

	target := row.TargetQuantity
	return s.ApplyAdjustment(ctx, &AdjustmentRequest{
		ItemID:         itemID,
		TargetQuantity: &target,
		MovementType:   models.MovementTypeManualAdjustment,
		Reason:         "bulk import",
		ReferenceID:    batchID,
		ActorID:        actorID,
	})
}

func (s *AdjustmentService) publishAdjusted(ctx context.Context, m *models.InventoryMovement, rec *models.StockRecord) {
	if s.eventPublisher == nil {
		return
	}

	event := &models.StockAdjustedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeStockAdjusted,
			Timestamp: time.Now(),
		},
		ItemID:            m.ItemID,
		VariantID:         m.VariantID,
		MovementType:      m.MovementType,
		QuantityDelta:     m.QuantityDelta,
		ResultingQuantity: m.ResultingQuantity,
		StockStatus:       rec.StockStatus,
	}
	if err := s.eventPublisher.PublishStockAdjusted(ctx, event); err != nil {
		s.logger.Error("Failed to publish StockAdjusted event", zap.Error(err))
	}

	if rec.StockStatus == models.StockStatusInStock {
		return
	}

	alert := &models.LowStockAlertEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeLowStockAlert,
			Timestamp: time.Now(),
		},
		ItemID:    rec.ItemID,
		VariantID: rec.VariantID,
		Available: rec.Available(),
		Threshold: rec.LowStockThreshold,
		Severity:  models.Severity(rec.Available(), rec.LowStockThreshold),
	}
	if err := s.eventPublisher.PublishLowStockAlert(ctx, alert); err != nil {
		s.logger.Error("Failed to publish LowStockAlert event", zap.Error(err))
		return
	}
	util.LowStockAlertsTotal.Inc()
}
