package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/service"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	adjustments  *service.AdjustmentService
	reservations *service.ReservationService
	alerts       *service.AlertEngine
}

// NewHandler creates a new HTTP handler
func NewHandler(adjustments *service.AdjustmentService, reservations *service.ReservationService, alerts *service.AlertEngine) *Handler {
	return &Handler{
		adjustments:  adjustments,
		reservations: reservations,
		alerts:       alerts,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/inventory/adjustments", h.applyAdjustment)
		v1.POST("/inventory/import", h.bulkImport)
		v1.GET("/inventory/low-stock", h.listLowStock)
		v1.GET("/inventory/:item_id", h.getStock)
		v1.GET("/inventory/:item_id/movements", h.movementHistory)
		v1.GET("/inventory/:item_id/reconcile", h.reconcile)
		v1.GET("/movements", h.movementsFiltered)

		v1.POST("/reservations", h.reserve)
		v1.GET("/reservations/:reference", h.getReservation)
		v1.POST("/reservations/:reference/commit", h.commitReservation)
		v1.POST("/reservations/:reference/release", h.releaseReservation)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// applyAdjustment handles manual stock adjustments
func (h *Handler) applyAdjustment(c *gin.Context) {
	var req service.AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	rec, err := h.adjustments.ApplyAdjustment(c.Request.Context(), &req)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// bulkImport handles CSV-import style batches; per-row partial success
func (h *Handler) bulkImport(c *gin.Context) {
	var body struct {
		Rows    []service.ImportRow `json:"rows" binding:"required,min=1"`
		ActorID string              `json:"actor_id,omitempty"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	results := h.adjustments.BulkImport(c.Request.Context(), body.Rows, body.ActorID)
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// getStock returns the authoritative stock record (never cached)
func (h *Handler) getStock(c *gin.Context) {
	rec, err := h.alerts.GetStock(c.Request.Context(), c.Param("item_id"), c.Query("variant_id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// listLowStock returns stock alerts, most urgent first
func (h *Handler) listLowStock(c *gin.Context) {
	var thresholdOverride *int
	if raw := c.Query("threshold"); raw != "" {
		threshold, err := strconv.Atoi(raw)
		if err != nil || threshold < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid threshold"})
			return
		}
		thresholdOverride = &threshold
	}

	includeOutOfStock := c.DefaultQuery("include_out_of_stock", "true") == "true"

	alerts, err := h.alerts.ListLowStock(c.Request.Context(), thresholdOverride, includeOutOfStock)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// movementHistory returns the ledger for one item, newest first
func (h *Handler) movementHistory(c *gin.Context) {
	cursor, err := store.ParseMovementCursor(c.Query("cursor"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	movements, next, err := h.alerts.History(c.Request.Context(),
		c.Param("item_id"), c.Query("variant_id"), cursor, limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	resp := gin.H{"movements": movements}
	if next != nil {
		resp["next_cursor"] = next.Encode()
	}
	c.JSON(http.StatusOK, resp)
}

// movementsFiltered returns movements matching query filters
func (h *Handler) movementsFiltered(c *gin.Context) {
	filter := models.MovementFilter{
		ItemID:       c.Query("item_id"),
		VariantID:    c.Query("variant_id"),
		MovementType: c.Query("type"),
	}

	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from timestamp"})
			return
		}
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to timestamp"})
			return
		}
		filter.To = &to
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	movements, err := h.alerts.MovementsFiltered(c.Request.Context(), filter, limit, offset)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movements": movements})
}

// reconcile replays the ledger for one item against the live record
func (h *Handler) reconcile(c *gin.Context) {
	result, err := h.alerts.Reconcile(c.Request.Context(), c.Param("item_id"), c.Query("variant_id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// reserve holds units against an order
func (h *Handler) reserve(c *gin.Context) {
	var req service.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	reservation, rec, err := h.reservations.Reserve(c.Request.Context(), &req)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"reservation": reservation,
		"stock":       rec,
	})
}

// getReservation returns a reservation by reference
func (h *Handler) getReservation(c *gin.Context) {
	reservation, err := h.reservations.GetReservation(c.Request.Context(), c.Param("reference"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservation)
}

// commitReservation finalizes a reservation on fulfillment (idempotent)
func (h *Handler) commitReservation(c *gin.Context) {
	rec, err := h.reservations.Commit(c.Request.Context(), c.Param("reference"), c.Query("actor_id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// releaseReservation returns held units on cancellation
func (h *Handler) releaseReservation(c *gin.Context) {
	rec, err := h.reservations.Release(c.Request.Context(), c.Param("reference"), c.Query("actor_id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// writeDomainError maps domain errors to HTTP statuses so callers can present
// specific, actionable messages.
func writeDomainError(c *gin.Context, err error) {
	var validation *models.ValidationError
	var insufficientStock *models.InsufficientStockError
	var insufficientAvail *models.InsufficientAvailableError

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &insufficientStock):
		c.JSON(http.StatusConflict, gin.H{
			"error":     "insufficient stock",
			"requested": insufficientStock.Requested,
			"available": insufficientStock.Available,
		})
	case errors.As(err, &insufficientAvail):
		c.JSON(http.StatusConflict, gin.H{
			"error":     "insufficient available",
			"requested": insufficientAvail.Requested,
			"available": insufficientAvail.Available,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal error",
			"details": err.Error(),
		})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
