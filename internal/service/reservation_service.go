package service

import (
	"context"
	"errors"
	"time"

	"inventory-service/internal/broker"
	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReservationService holds and releases units against pending orders. On-hand
// quantity only drops at commit; until then the units sit in reserved.
type ReservationService struct {
	store          *store.Store
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewReservationService creates a new reservation service
func NewReservationService(store *store.Store, eventPublisher *broker.EventPublisher) *ReservationService {
	return &ReservationService{
		store:          store,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// ReserveRequest asks to hold units against an order
type ReserveRequest struct {
	ItemID    string `json:"item_id" binding:"required"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	Reference string `json:"reference,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
}

// Reserve holds units for an in-flight order. The hold and its ledger
// movement are written in one transaction against the reserved counter.
func (s *ReservationService) Reserve(ctx context.Context, req *ReserveRequest) (*models.Reservation, *models.StockRecord, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.Reserve")
	defer span.End()

	start := time.Now()
	defer func() {
		util.ReservationLatency.Observe(time.Since(start).Seconds())
	}()

	if req.Quantity <= 0 {
		util.ReservationsFailedTotal.WithLabelValues("validation").Inc()
		return nil, nil, &models.ValidationError{Field: "quantity", Message: "quantity must be positive"}
	}

	rec, err := s.store.GetStock(ctx, req.ItemID, req.VariantID)
	if err != nil {
		util.ReservationsFailedTotal.WithLabelValues("not_found").Inc()
		return nil, nil, err
	}

	reference := req.Reference
	if reference == "" {
		reference = uuid.New().String()
	}
	actorID := req.ActorID
	if actorID == "" {
		actorID = models.ActorSystem
	}

	reservation := &models.Reservation{
		Reference: reference,
		ItemID:    req.ItemID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
	}

	updated, err := s.store.HoldReservationTx(ctx, reservation, actorID, rec.ManageStock)
	if err != nil {
		var insufficient *models.InsufficientAvailableError
		if errors.As(err, &insufficient) {
			util.ReservationsFailedTotal.WithLabelValues("insufficient_available").Inc()
		}
		return nil, nil, err
	}

	util.ReservationsHeldTotal.Inc()
	util.MovementsRecordedTotal.WithLabelValues(models.MovementTypeReservationHold).Inc()
	s.logger.Info("Reservation held",
		zap.String("reference", reservation.Reference),
		zap.String("item_id", req.ItemID),
		zap.Int("quantity", req.Quantity),
		zap.Int("available", updated.Available()))

	s.publishReservation(ctx, models.EventTypeReservationHeld, reservation)
	return reservation, updated, nil
}

// Commit finalizes a held reservation on fulfillment. Idempotent per
// reference: a repeated commit is a no-op returning the prior result, which
// tolerates at-least-once delivery of fulfillment events.
func (s *ReservationService) Commit(ctx context.Context, reference, actorID string) (*models.StockRecord, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.Commit")
	defer span.End()

	managed, err := s.managedFor(ctx, reference)
	if err != nil {
		return nil, err
	}
	if actorID == "" {
		actorID = models.ActorSystem
	}

	res, rec, already, err := s.store.CommitReservationTx(ctx, reference, actorID, managed)
	if err != nil {
		util.ReservationsFailedTotal.WithLabelValues("commit").Inc()
		return nil, err
	}
	if already {
		s.logger.Info("Duplicate commit ignored", zap.String("reference", reference))
		return rec, nil
	}

	util.ReservationsCommittedTotal.Inc()
	util.MovementsRecordedTotal.WithLabelValues(models.MovementTypeSale).Inc()
	s.logger.Info("Reservation committed",
		zap.String("reference", reference),
		zap.String("item_id", res.ItemID),
		zap.Int("quantity", res.Quantity),
		zap.Int("quantity_on_hand", rec.QuantityOnHand))

	s.publishReservation(ctx, models.EventTypeReservationCommitted, res)
	return rec, nil
}

// Release returns held units to available on cancellation. Releasing an
// already released reservation is a no-op; a committed one is rejected.
func (s *ReservationService) Release(ctx context.Context, reference, actorID string) (*models.StockRecord, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.Release")
	defer span.End()

	managed, err := s.managedFor(ctx, reference)
	if err != nil {
		return nil, err
	}
	if actorID == "" {
		actorID = models.ActorSystem
	}

	res, rec, err := s.store.ReleaseReservationTx(ctx, reference, actorID, managed)
	if err != nil {
		util.ReservationsFailedTotal.WithLabelValues("release").Inc()
		return nil, err
	}

	util.ReservationsReleasedTotal.Inc()
	util.MovementsRecordedTotal.WithLabelValues(models.MovementTypeReservationRelease).Inc()
	s.logger.Info("Reservation released",
		zap.String("reference", reference),
		zap.String("item_id", res.ItemID),
		zap.Int("quantity", res.Quantity))

	s.publishReservation(ctx, models.EventTypeReservationReleased, res)
	return rec, nil
}

// GetReservation retrieves a reservation by reference
func (s *ReservationService) GetReservation(ctx context.Context, reference string) (*models.Reservation, error) {
	return s.store.GetReservation(ctx, reference)
}

// managedFor resolves whether the reservation's stock record is managed.
// Manage-stock toggles are rare admin actions; reading it outside the commit
// transaction is safe because the guarded update re-checks quantities anyway.
func (s *ReservationService) managedFor(ctx context.Context, reference string) (bool, error) {
	res, err := s.store.GetReservation(ctx, reference)
	if err != nil {
		return false, err
	}
	rec, err := s.store.GetStock(ctx, res.ItemID, res.VariantID)
	if err != nil {
		return false, err
	}
	return rec.ManageStock, nil
}

func (s *ReservationService) publishReservation(ctx context.Context, eventType string, res *models.Reservation) {
	if s.eventPublisher == nil {
		return
	}

	event := &models.ReservationEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: time.Now(),
		},
		Reference: res.Reference,
		ItemID:    res.ItemID,
		VariantID: res.VariantID,
		Quantity:  res.Quantity,
		Status:    res.Status,
	}
	if err := s.eventPublisher.PublishReservation(ctx, event); err != nil {
		s.logger.Error("Failed to publish reservation event",
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}
