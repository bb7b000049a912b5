package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"memoriqr-service/internal/apperr"
	"memoriqr-service/internal/models"
	"memoriqr-service/internal/store"
	"memoriqr-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultMovementsLimit = 50
	maxMovementsLimit     = 500
)

// InventoryCounters tracks physical stock and its audit trail
type InventoryCounters struct {
	store     InventoryStore
	throttle  AlertThrottle
	publisher EventPublisher
	alertTTL  time.Duration
	now       Clock
	logger    *zap.Logger
}

// NewInventoryCounters creates a new inventory service. alertTTL is the
// minimum gap between two low-stock alerts for one item.
func NewInventoryCounters(store InventoryStore, throttle AlertThrottle, publisher EventPublisher, alertTTL time.Duration) *InventoryCounters {
	if alertTTL <= 0 {
		alertTTL = 6 * time.Hour
	}
	return &InventoryCounters{
		store:     store,
		throttle:  throttle,
		publisher: publisher,
		alertTTL:  alertTTL,
		now:       time.Now,
		logger:    util.Component("inventory"),
	}
}

// AddStockRequest receives stock for a product type and optional variant
type AddStockRequest struct {
	ProductType       string          `json:"productType" binding:"required"`
	Variant           string          `json:"variant,omitempty"`
	Quantity          int             `json:"quantity" binding:"required"`
	UnitCost          decimal.Decimal `json:"unitCost"`
	SupplierName      string          `json:"supplierName,omitempty"`
	LowStockThreshold *int            `json:"lowStockThreshold,omitempty"`
	Reason            string          `json:"reason,omitempty"`
}

// AdjustRequest corrects stock by a signed delta
type AdjustRequest struct {
	ItemID string `json:"itemId" binding:"required"`
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

// MovementRequest records one typed stock movement
type MovementRequest struct {
	ItemID       string              `json:"itemId" binding:"required"`
	MovementType models.MovementType `json:"movementType" binding:"required"`
	Quantity     int                 `json:"quantity"`
	Reason       string              `json:"reason,omitempty"`
}

// StockChange is an item after a movement together with the movement itself
type StockChange struct {
	Item     *models.InventoryItem `json:"item"`
	Movement *models.Movement      `json:"movement"`
}

// AddStock creates or increments the item and appends a received movement
func (s *InventoryCounters) AddStock(ctx context.Context, req *AddStockRequest) (*StockChange, error) {
	ctx, span := util.StartSpan(ctx, "InventoryCounters.AddStock")
	defer span.End()

	productType := strings.TrimSpace(req.ProductType)
	if productType == "" {
		return nil, apperr.Validation("productType is required")
	}
	if req.Quantity <= 0 {
		return nil, apperr.Validation("quantity must be positive")
	}
	if req.UnitCost.IsNegative() {
		return nil, apperr.Validation("unitCost must not be negative")
	}

	tmpl := &models.InventoryItem{
		ProductType:       productType,
		LowStockThreshold: models.DefaultLowStockThreshold,
		UnitCost:          req.UnitCost,
	}
	if req.LowStockThreshold != nil {
		if *req.LowStockThreshold < 0 {
			return nil, apperr.Validation("lowStockThreshold must not be negative")
		}
		tmpl.LowStockThreshold = *req.LowStockThreshold
	}
	if v := strings.TrimSpace(req.Variant); v != "" {
		tmpl.Variant = &v
	}
	if sn := strings.TrimSpace(req.SupplierName); sn != "" {
		tmpl.SupplierName = &sn
	}
	reason := req.Reason
	if reason == "" {
		reason = "Stock received"
	}

	item, movement, err := s.store.ReceiveStock(ctx, tmpl, req.Quantity, reason, s.now().UTC())
	if err != nil {
		return nil, s.movementErr(err, models.MovementReceived, "")
	}

	util.InventoryMovementsTotal.WithLabelValues(string(models.MovementReceived)).Inc()
	s.logger.Info("Stock received",
		zap.String("item_id", item.ID),
		zap.String("product_type", item.ProductType),
		zap.Int("quantity", req.Quantity),
		zap.Int("in_stock", item.QuantityInStock))

	return &StockChange{Item: item, Movement: movement}, nil
}

// Adjust applies a signed correction. A reason is mandatory.
func (s *InventoryCounters) Adjust(ctx context.Context, req *AdjustRequest) (*StockChange, error) {
	ctx, span := util.StartSpan(ctx, "InventoryCounters.Adjust")
	defer span.End()

	if strings.TrimSpace(req.Reason) == "" {
		return nil, apperr.Validation("reason is required for stock adjustments")
	}
	if req.Delta == 0 {
		return nil, apperr.Validation("delta must not be zero")
	}
	return s.apply(ctx, req.ItemID, models.MovementAdjustment, req.Delta, strings.TrimSpace(req.Reason))
}

// RecordMovement records shipments, damage, returns and reservations
func (s *InventoryCounters) RecordMovement(ctx context.Context, req *MovementRequest) (*StockChange, error) {
	ctx, span := util.StartSpan(ctx, "InventoryCounters.RecordMovement")
	defer span.End()

	if !req.MovementType.Valid() {
		return nil, apperr.Validation("unknown movement type %q", req.MovementType)
	}
	if req.MovementType == models.MovementAdjustment {
		return nil, apperr.Validation("use the adjust operation for adjustments")
	}
	if req.Quantity <= 0 {
		return nil, apperr.Validation("quantity must be positive")
	}
	return s.apply(ctx, req.ItemID, req.MovementType, req.Quantity, strings.TrimSpace(req.Reason))
}

func (s *InventoryCounters) apply(ctx context.Context, itemID string, mt models.MovementType, qty int, reason string) (*StockChange, error) {
	if itemID == "" {
		return nil, apperr.Validation("itemId is required")
	}

	item, movement, err := s.store.ApplyMovement(ctx, itemID, mt, qty, reason, s.now().UTC())
	if err != nil {
		return nil, s.movementErr(err, mt, itemID)
	}

	util.InventoryMovementsTotal.WithLabelValues(string(mt)).Inc()
	s.logger.Info("Inventory movement recorded",
		zap.String("item_id", item.ID),
		zap.String("movement_type", string(mt)),
		zap.Int("quantity_before", movement.QuantityBefore),
		zap.Int("quantity_after", movement.QuantityAfter),
		zap.Int("available", item.QuantityAvailable()))

	if reducesAvailable(mt, qty) && item.IsLowStock() {
		s.alertLowStock(ctx, item)
	}
	return &StockChange{Item: item, Movement: movement}, nil
}

func (s *InventoryCounters) movementErr(err error, mt models.MovementType, itemID string) error {
	switch {
	case errors.Is(err, models.ErrInsufficientStock):
		util.InventoryRejectedTotal.WithLabelValues("insufficient_stock").Inc()
		s.logger.Warn("Inventory movement rejected",
			zap.String("item_id", itemID),
			zap.String("movement_type", string(mt)),
			zap.Error(err))
		// the guard runs under the item row lock
		return apperr.Validation("%v", err)
	case errors.Is(err, models.ErrInvalidMovement):
		util.InventoryRejectedTotal.WithLabelValues("invalid").Inc()
		return apperr.Validation("%v", err)
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("inventory item %s not found", itemID)
	default:
		s.logger.Error("Failed to record inventory movement", zap.String("item_id", itemID), zap.Error(err))
		return apperr.Dependency(err, "failed to record inventory movement")
	}
}

func reducesAvailable(mt models.MovementType, qty int) bool {
	switch mt {
	case models.MovementShipped, models.MovementDamaged, models.MovementReserved:
		return true
	case models.MovementAdjustment:
		return qty < 0
	}
	return false
}

// alertLowStock emits at most one STOCK_LOW event per item per alert TTL
func (s *InventoryCounters) alertLowStock(ctx context.Context, item *models.InventoryItem) {
	if s.publisher == nil {
		return
	}
	if s.throttle != nil {
		acquired, err := s.throttle.AcquireLock(ctx, "low-stock:"+item.ID, s.alertTTL)
		if err != nil {
			s.logger.Warn("Low stock throttle unavailable", zap.String("item_id", item.ID), zap.Error(err))
			return
		}
		if !acquired {
			return
		}
	}

	event := &models.StockLowEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeStockLow,
			Timestamp: s.now().UTC(),
		},
		ItemID:            item.ID,
		ProductType:       item.ProductType,
		Variant:           item.Variant,
		QuantityAvailable: item.QuantityAvailable(),
		LowStockThreshold: item.LowStockThreshold,
		SupplierName:      item.SupplierName,
	}
	if err := s.publisher.PublishStockLow(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(models.EventTypeStockLow).Inc()
		s.logger.Error("Failed to publish stock low event", zap.String("item_id", item.ID), zap.Error(err))
		return
	}
	util.LowStockAlertsTotal.Inc()
	s.logger.Warn("Low stock",
		zap.String("item_id", item.ID),
		zap.String("product_type", item.ProductType),
		zap.Int("available", item.QuantityAvailable()),
		zap.Int("threshold", item.LowStockThreshold))
}

// List returns active items
func (s *InventoryCounters) List(ctx context.Context, f models.InventoryFilter) ([]models.InventoryItem, error) {
	ctx, span := util.StartSpan(ctx, "InventoryCounters.List")
	defer span.End()

	items, err := s.store.ListInventory(ctx, f)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to list inventory")
	}
	return items, nil
}

// Summary totals active stock per product type
func (s *InventoryCounters) Summary(ctx context.Context) ([]models.InventorySummary, error) {
	ctx, span := util.StartSpan(ctx, "InventoryCounters.Summary")
	defer span.End()

	items, err := s.store.ListInventory(ctx, models.InventoryFilter{})
	if err != nil {
		return nil, apperr.Dependency(err, "failed to list inventory")
	}
	return models.Summarize(items), nil
}

// Movements returns an item's latest movements, newest first
func (s *InventoryCounters) Movements(ctx context.Context, itemID string, limit int) ([]models.Movement, error) {
	ctx, span := util.StartSpan(ctx, "InventoryCounters.Movements")
	defer span.End()

	if itemID == "" {
		return nil, apperr.Validation("itemId is required")
	}
	if limit <= 0 {
		limit = defaultMovementsLimit
	}
	if limit > maxMovementsLimit {
		limit = maxMovementsLimit
	}

	if _, err := s.store.GetInventoryItem(ctx, itemID); err != nil {
		return nil, lookupErr(err, "inventory item %s not found", itemID)
	}
	movements, err := s.store.ListMovements(ctx, itemID, limit)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to list movements")
	}
	return movements, nil
}

// Deactivate hides an item from listings; its movements are kept
func (s *InventoryCounters) Deactivate(ctx context.Context, itemID string) error {
	ctx, span := util.StartSpan(ctx, "InventoryCounters.Deactivate")
	defer span.End()

	if err := s.store.DeactivateItem(ctx, itemID, s.now().UTC()); err != nil {
		return lookupErr(err, "inventory item %s not found", itemID)
	}
	s.logger.Info("Inventory item deactivated", zap.String("item_id", itemID))
	return nil
}
