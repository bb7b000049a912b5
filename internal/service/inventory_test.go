package service

import (
	"context"
	"testing"
	"time"

	"memoriqr-service/internal/apperr"
	"memoriqr-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInventory(s *memStore, throttle AlertThrottle, pub EventPublisher) *InventoryCounters {
	inv := NewInventoryCounters(s, throttle, pub, time.Hour)
	inv.now = fixedClock(redeemNow)
	return inv
}

func addStock(t *testing.T, inv *InventoryCounters, qty int, threshold int) *models.InventoryItem {
	t.Helper()
	res, err := inv.AddStock(context.Background(), &AddStockRequest{
		ProductType:       "nfc_tag",
		Variant:           "black",
		Quantity:          qty,
		UnitCost:          decimal.RequireFromString("4.50"),
		SupplierName:      "Tag Supplies Ltd",
		LowStockThreshold: &threshold,
	})
	require.NoError(t, err)
	return res.Item
}

func TestAddStock_CreatesThenIncrements(t *testing.T) {
	s := newMemStore()
	inv := newTestInventory(s, nil, nil)

	first := addStock(t, inv, 20, 5)
	second := addStock(t, inv, 30, 5)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 50, second.QuantityInStock)
	assert.Len(t, s.items, 1)
	require.Len(t, s.movements, 2)
	assert.Equal(t, 20, s.movements[1].QuantityBefore)
	assert.Equal(t, 50, s.movements[1].QuantityAfter)
	assert.Equal(t, "Stock received", *s.movements[1].Reason)
}

func TestAddStock_Validation(t *testing.T) {
	inv := newTestInventory(newMemStore(), nil, nil)

	_, err := inv.AddStock(context.Background(), &AddStockRequest{ProductType: "nfc_tag", Quantity: 0})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = inv.AddStock(context.Background(), &AddStockRequest{ProductType: " ", Quantity: 1})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = inv.AddStock(context.Background(), &AddStockRequest{ProductType: "nfc_tag", Quantity: 1, UnitCost: decimal.NewFromInt(-1)})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestAdjust_RejectsNegativeAvailableWithoutMovement(t *testing.T) {
	s := newMemStore()
	inv := newTestInventory(s, nil, nil)
	item := addStock(t, inv, 5, 1)

	res, err := inv.Adjust(context.Background(), &AdjustRequest{ItemID: item.ID, Delta: -5, Reason: "stocktake"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Item.QuantityInStock)
	assert.Equal(t, 5, res.Movement.QuantityBefore)
	assert.Equal(t, 0, res.Movement.QuantityAfter)

	_, err = inv.Adjust(context.Background(), &AdjustRequest{ItemID: item.ID, Delta: -1, Reason: "stocktake"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Len(t, s.movements, 2)
	assert.Equal(t, 0, s.items[item.ID].QuantityInStock)
}

func TestAdjust_Validation(t *testing.T) {
	s := newMemStore()
	inv := newTestInventory(s, nil, nil)
	item := addStock(t, inv, 5, 1)

	_, err := inv.Adjust(context.Background(), &AdjustRequest{ItemID: item.ID, Delta: 2})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = inv.Adjust(context.Background(), &AdjustRequest{ItemID: item.ID, Delta: 0, Reason: "x"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = inv.Adjust(context.Background(), &AdjustRequest{ItemID: "missing", Delta: 1, Reason: "x"})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Len(t, s.movements, 1)
}

func TestRecordMovement_ChainStaysContiguous(t *testing.T) {
	s := newMemStore()
	inv := newTestInventory(s, nil, nil)
	item := addStock(t, inv, 40, 0)

	steps := []MovementRequest{
		{ItemID: item.ID, MovementType: models.MovementReserved, Quantity: 10},
		{ItemID: item.ID, MovementType: models.MovementShipped, Quantity: 8},
		{ItemID: item.ID, MovementType: models.MovementDamaged, Quantity: 2},
		{ItemID: item.ID, MovementType: models.MovementReturned, Quantity: 1},
		{ItemID: item.ID, MovementType: models.MovementUnreserved, Quantity: 2},
	}
	for _, step := range steps {
		step := step
		_, err := inv.RecordMovement(context.Background(), &step)
		require.NoError(t, err, step.MovementType)
	}

	for i := 1; i < len(s.movements); i++ {
		assert.Equal(t, s.movements[i-1].QuantityAfter, s.movements[i].QuantityBefore)
	}
	final := s.items[item.ID]
	assert.Equal(t, 31, final.QuantityInStock)
	assert.Equal(t, 0, final.QuantityReserved)

	_, err := inv.RecordMovement(context.Background(), &MovementRequest{ItemID: item.ID, MovementType: models.MovementReserved, Quantity: 32})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = inv.RecordMovement(context.Background(), &MovementRequest{ItemID: item.ID, MovementType: models.MovementUnreserved, Quantity: 1})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = inv.RecordMovement(context.Background(), &MovementRequest{ItemID: item.ID, MovementType: "stolen", Quantity: 1})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = inv.RecordMovement(context.Background(), &MovementRequest{ItemID: item.ID, MovementType: models.MovementAdjustment, Quantity: 1})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestLowStockAlertIsThrottled(t *testing.T) {
	s := newMemStore()
	pub := &recordingPublisher{}
	inv := newTestInventory(s, newMemCache(), pub)
	item := addStock(t, inv, 12, 10)

	_, err := inv.RecordMovement(context.Background(), &MovementRequest{ItemID: item.ID, MovementType: models.MovementShipped, Quantity: 1})
	require.NoError(t, err)
	assert.Empty(t, pub.stockLow, "11 available is above the threshold")

	for i := 0; i < 3; i++ {
		_, err = inv.RecordMovement(context.Background(), &MovementRequest{ItemID: item.ID, MovementType: models.MovementShipped, Quantity: 1})
		require.NoError(t, err)
	}
	require.Len(t, pub.stockLow, 1)
	assert.Equal(t, 10, pub.stockLow[0].QuantityAvailable)
	assert.Equal(t, 10, pub.stockLow[0].LowStockThreshold)
	assert.Equal(t, "Tag Supplies Ltd", *pub.stockLow[0].SupplierName)
}

func TestInventory_ListSummaryMovementsDeactivate(t *testing.T) {
	s := newMemStore()
	inv := newTestInventory(s, nil, nil)
	item := addStock(t, inv, 8, 10)
	_, err := inv.AddStock(context.Background(), &AddStockRequest{ProductType: "qr_plate", Quantity: 100, UnitCost: decimal.NewFromInt(2)})
	require.NoError(t, err)

	low, err := inv.List(context.Background(), models.InventoryFilter{LowStockOnly: true})
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, item.ID, low[0].ID)

	summary, err := inv.Summary(context.Background())
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, "36", summary[0].StockValue.String())

	movements, err := inv.Movements(context.Background(), item.ID, 0)
	require.NoError(t, err)
	assert.Len(t, movements, 1)

	_, err = inv.Movements(context.Background(), "missing", 10)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	require.NoError(t, inv.Deactivate(context.Background(), item.ID))
	err = inv.Deactivate(context.Background(), item.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	all, err := inv.List(context.Background(), models.InventoryFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
