package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultLowStockThreshold applies when stock is received without an explicit threshold
const DefaultLowStockThreshold = 10

// InventoryItem tracks physical stock of tags, plates and frames
type InventoryItem struct {
	ID                string          `db:"id" json:"id"`
	ProductType       string          `db:"product_type" json:"productType"`
	Variant           *string         `db:"variant" json:"variant,omitempty"`
	QuantityInStock   int             `db:"quantity_in_stock" json:"quantityInStock"`
	QuantityReserved  int             `db:"quantity_reserved" json:"quantityReserved"`
	LowStockThreshold int             `db:"low_stock_threshold" json:"lowStockThreshold"`
	UnitCost          decimal.Decimal `db:"unit_cost" json:"unitCost"`
	SupplierName      *string         `db:"supplier_name" json:"supplierName,omitempty"`
	IsActive          bool            `db:"is_active" json:"isActive"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updatedAt"`
}

// QuantityAvailable is stock not held by reservations
func (i *InventoryItem) QuantityAvailable() int {
	return i.QuantityInStock - i.QuantityReserved
}

// IsLowStock reports whether available stock is at or below the alert threshold
func (i *InventoryItem) IsLowStock() bool {
	return i.QuantityAvailable() <= i.LowStockThreshold
}

// StockValue is the cost of everything currently on the shelf
func (i *InventoryItem) StockValue() decimal.Decimal {
	return i.UnitCost.Mul(decimal.NewFromInt(int64(i.QuantityInStock)))
}

// MarshalJSON adds the derived counters so clients never compute them
func (i InventoryItem) MarshalJSON() ([]byte, error) {
	type item InventoryItem
	return json.Marshal(struct {
		item
		QuantityAvailable int  `json:"quantityAvailable"`
		IsLowStock        bool `json:"isLowStock"`
	}{
		item:              item(i),
		QuantityAvailable: i.QuantityAvailable(),
		IsLowStock:        i.IsLowStock(),
	})
}

type MovementType string

const (
	MovementReceived   MovementType = "received"
	MovementShipped    MovementType = "shipped"
	MovementDamaged    MovementType = "damaged"
	MovementReserved   MovementType = "reserved"
	MovementUnreserved MovementType = "unreserved"
	MovementAdjustment MovementType = "adjustment"
	MovementReturned   MovementType = "returned"
)

// Valid reports whether t is a known movement type
func (t MovementType) Valid() bool {
	switch t {
	case MovementReceived, MovementShipped, MovementDamaged, MovementReserved,
		MovementUnreserved, MovementAdjustment, MovementReturned:
		return true
	}
	return false
}

// Movement is an immutable audit record of one stock change.
// QuantityBefore/After track quantity_in_stock.
type Movement struct {
	ID              string       `db:"id" json:"id"`
	Seq             int64        `db:"seq" json:"seq"`
	InventoryID     string       `db:"inventory_id" json:"inventoryId"`
	MovementType    MovementType `db:"movement_type" json:"movementType"`
	Quantity        int          `db:"quantity" json:"quantity"`
	QuantityBefore  int          `db:"quantity_before" json:"quantityBefore"`
	QuantityAfter   int          `db:"quantity_after" json:"quantityAfter"`
	Reason          *string      `db:"reason" json:"reason,omitempty"`
	ReferenceNumber *string      `db:"reference_number" json:"referenceNumber,omitempty"`
	CreatedAt       time.Time    `db:"created_at" json:"createdAt"`
}

var (
	// ErrInvalidMovement is returned for quantities that make no sense for the movement type
	ErrInvalidMovement = errors.New("invalid movement")
	// ErrInsufficientStock is returned when a movement would leave available stock negative
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ApplyMovement mutates item for a movement of qty units and returns the audit
// record. qty is signed only for adjustments; every other type takes a positive
// quantity. The item is left untouched when an error is returned.
func ApplyMovement(item *InventoryItem, mt MovementType, qty int, reason string, now time.Time) (*Movement, error) {
	if !mt.Valid() {
		return nil, fmt.Errorf("%w: unknown movement type %q", ErrInvalidMovement, mt)
	}
	if mt == MovementAdjustment {
		if qty == 0 {
			return nil, fmt.Errorf("%w: adjustment delta must not be zero", ErrInvalidMovement)
		}
	} else if qty <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidMovement)
	}

	stock, reserved := item.QuantityInStock, item.QuantityReserved
	delta := qty

	switch mt {
	case MovementReceived, MovementReturned, MovementAdjustment:
		stock += qty
	case MovementShipped:
		stock -= qty
		reserved -= min(reserved, qty)
		delta = -qty
	case MovementDamaged:
		stock -= qty
		delta = -qty
	case MovementReserved:
		if qty > item.QuantityAvailable() {
			return nil, fmt.Errorf("%w: cannot reserve %d, only %d available", ErrInsufficientStock, qty, item.QuantityAvailable())
		}
		reserved += qty
	case MovementUnreserved:
		if qty > reserved {
			return nil, fmt.Errorf("%w: cannot unreserve %d, only %d reserved", ErrInvalidMovement, qty, reserved)
		}
		reserved -= qty
		delta = -qty
	}

	if stock-reserved < 0 {
		return nil, fmt.Errorf("%w: available would be %d", ErrInsufficientStock, stock-reserved)
	}

	m := &Movement{
		InventoryID:    item.ID,
		MovementType:   mt,
		Quantity:       delta,
		QuantityBefore: item.QuantityInStock,
		QuantityAfter:  stock,
		CreatedAt:      now,
	}
	if reason != "" {
		m.Reason = &reason
	}

	item.QuantityInStock = stock
	item.QuantityReserved = reserved
	item.UpdatedAt = now
	return m, nil
}

// InventoryFilter narrows inventory listings
type InventoryFilter struct {
	ProductType  string
	LowStockOnly bool
}

// InventorySummary aggregates active stock per product type
type InventorySummary struct {
	ProductType       string          `json:"productType"`
	Items             int             `json:"items"`
	QuantityInStock   int             `json:"quantityInStock"`
	QuantityReserved  int             `json:"quantityReserved"`
	QuantityAvailable int             `json:"quantityAvailable"`
	LowStockItems     int             `json:"lowStockItems"`
	StockValue        decimal.Decimal `json:"stockValue"`
}

// Summarize groups items by product type, in first-seen order
func Summarize(items []InventoryItem) []InventorySummary {
	var out []InventorySummary
	index := make(map[string]int)
	for i := range items {
		it := &items[i]
		pos, ok := index[it.ProductType]
		if !ok {
			pos = len(out)
			index[it.ProductType] = pos
			out = append(out, InventorySummary{ProductType: it.ProductType, StockValue: decimal.Zero})
		}
		s := &out[pos]
		s.Items++
		s.QuantityInStock += it.QuantityInStock
		s.QuantityReserved += it.QuantityReserved
		s.QuantityAvailable += it.QuantityAvailable()
		if it.IsLowStock() {
			s.LowStockItems++
		}
		s.StockValue = s.StockValue.Add(it.StockValue())
	}
	return out
}
