package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"memoriqr-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ReceiveStock adds qty units to the active item matching tmpl's product type
// and variant, creating it first when none exists. tmpl's threshold, unit cost
// and supplier are applied to a new item; an existing item only takes a
// non-zero unit cost and a supplier name.
func (s *Store) ReceiveStock(ctx context.Context, tmpl *models.InventoryItem, qty int, reason string, now time.Time) (*models.InventoryItem, *models.Movement, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inventory (id, product_type, variant, low_stock_threshold, unit_cost, supplier_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (product_type, COALESCE(variant, '')) WHERE is_active DO NOTHING`,
		uuid.New().String(), tmpl.ProductType, tmpl.Variant, tmpl.LowStockThreshold, tmpl.UnitCost, tmpl.SupplierName, now)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create inventory item: %w", err)
	}

	var item models.InventoryItem
	err = tx.GetContext(ctx, &item, `
		SELECT * FROM inventory
		WHERE product_type = $1 AND COALESCE(variant, '') = COALESCE($2, '') AND is_active
		FOR UPDATE`,
		tmpl.ProductType, tmpl.Variant)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock inventory: %w", err)
	}

	if !tmpl.UnitCost.IsZero() {
		item.UnitCost = tmpl.UnitCost
	}
	if tmpl.SupplierName != nil {
		item.SupplierName = tmpl.SupplierName
	}

	m, err := applyLocked(ctx, tx, &item, models.MovementReceived, qty, reason, now)
	if err != nil {
		return nil, nil, err
	}
	return &item, m, tx.Commit()
}

// ApplyMovement locks the item, applies the movement and appends the audit row.
// Rejected movements leave both the item and the movement log untouched.
func (s *Store) ApplyMovement(ctx context.Context, itemID string, mt models.MovementType, qty int, reason string, now time.Time) (*models.InventoryItem, *models.Movement, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	var item models.InventoryItem
	err = tx.GetContext(ctx, &item,
		"SELECT * FROM inventory WHERE id = $1 AND is_active FOR UPDATE", itemID)
	if err == sql.ErrNoRows {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock inventory: %w", err)
	}

	m, err := applyLocked(ctx, tx, &item, mt, qty, reason, now)
	if err != nil {
		return nil, nil, err
	}
	return &item, m, tx.Commit()
}

// applyLocked must run with item's row locked so quantity_before always equals
// the previous movement's quantity_after.
func applyLocked(ctx context.Context, tx *sqlx.Tx, item *models.InventoryItem, mt models.MovementType, qty int, reason string, now time.Time) (*models.Movement, error) {
	m, err := models.ApplyMovement(item, mt, qty, reason, now)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE inventory
		SET quantity_in_stock = $1, quantity_reserved = $2, unit_cost = $3, supplier_name = $4, updated_at = $5
		WHERE id = $6`,
		item.QuantityInStock, item.QuantityReserved, item.UnitCost, item.SupplierName, now, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update inventory: %w", err)
	}

	err = tx.GetContext(ctx, m, `
		INSERT INTO inventory_movements (inventory_id, movement_type, quantity, quantity_before, quantity_after, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *`,
		m.InventoryID, m.MovementType, m.Quantity, m.QuantityBefore, m.QuantityAfter, m.Reason, m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record movement: %w", err)
	}
	return m, nil
}

// GetInventoryItem retrieves an inventory item by ID
func (s *Store) GetInventoryItem(ctx context.Context, id string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := s.db.GetContext(ctx, &item, "SELECT * FROM inventory WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListInventory retrieves active items
func (s *Store) ListInventory(ctx context.Context, f models.InventoryFilter) ([]models.InventoryItem, error) {
	where := []string{"is_active"}
	var args []interface{}
	if f.ProductType != "" {
		args = append(args, f.ProductType)
		where = append(where, fmt.Sprintf("product_type = $%d", len(args)))
	}
	if f.LowStockOnly {
		where = append(where, "quantity_in_stock - quantity_reserved <= low_stock_threshold")
	}

	items := []models.InventoryItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM inventory WHERE "+strings.Join(where, " AND ")+" ORDER BY product_type, variant NULLS FIRST",
		args...)
	return items, err
}

// ListMovements returns an item's most recent movements, newest first
func (s *Store) ListMovements(ctx context.Context, itemID string, limit int) ([]models.Movement, error) {
	movements := []models.Movement{}
	err := s.db.SelectContext(ctx, &movements,
		"SELECT * FROM inventory_movements WHERE inventory_id = $1 ORDER BY seq DESC LIMIT $2",
		itemID, limit)
	return movements, err
}

// DeactivateItem soft-deletes an item; its movements are kept
func (s *Store) DeactivateItem(ctx context.Context, id string, now time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE inventory SET is_active = FALSE, updated_at = $1 WHERE id = $2 AND is_active", now, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
