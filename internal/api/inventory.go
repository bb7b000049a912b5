package api

import (
	"net/http"

	"memoriqr-service/internal/apperr"
	"memoriqr-service/internal/models"
	"memoriqr-service/internal/service"

	"github.com/gin-gonic/gin"
)

// listInventory handles GET /admin/inventory?productType=&lowStock=true
func (h *Handler) listInventory(c *gin.Context) {
	f := models.InventoryFilter{
		ProductType:  c.Query("productType"),
		LowStockOnly: c.Query("lowStock") == "true",
	}

	items, err := h.svc.Inventory.List(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) inventorySummary(c *gin.Context) {
	summary, err := h.svc.Inventory.Summary(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// addStock receives stock
func (h *Handler) addStock(c *gin.Context) {
	var req service.AddStockRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.svc.Inventory.AddStock(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// adjustStock applies a signed correction
func (h *Handler) adjustStock(c *gin.Context) {
	var req service.AdjustRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.svc.Inventory.Adjust(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) recordMovement(c *gin.Context) {
	var req service.MovementRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.svc.Inventory.RecordMovement(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// listMovements handles GET /admin/inventory/movements?itemId=&limit=
func (h *Handler) listMovements(c *gin.Context) {
	itemID := c.Query("itemId")
	if itemID == "" {
		h.respondError(c, apperr.Validation("itemId query parameter is required"))
		return
	}
	limit, ok := h.queryInt(c, "limit")
	if !ok {
		return
	}

	movements, err := h.svc.Inventory.Movements(c.Request.Context(), itemID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movements": movements})
}

func (h *Handler) deactivateItem(c *gin.Context) {
	if err := h.svc.Inventory.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
