package api

import (
	"net/http"

	"memoriqr-service/internal/apperr"
	"memoriqr-service/internal/models"
	"memoriqr-service/internal/service"

	"github.com/gin-gonic/gin"
)

type codeRequest struct {
	Code string `json:"code" binding:"required"`
}

type codesRequest struct {
	Codes []string `json:"codes" binding:"required,min=1"`
}

type redeemResponse struct {
	OK bool `json:"ok"`
	*service.Redemption
}

type batchRequest struct {
	BatchID string `json:"batchId" binding:"required"`
}

// validateCode handles the activation form pre-check
func (h *Handler) validateCode(c *gin.Context) {
	var req codeRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.svc.Redeemer.Validate(c.Request.Context(), req.Code)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// redeemCode binds a code to a memorial
func (h *Handler) redeemCode(c *gin.Context) {
	var req service.RedeemRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.svc.Redeemer.Redeem(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, redeemResponse{OK: true, Redemption: res})
}

// generateCodes handles admin batch generation
func (h *Handler) generateCodes(c *gin.Context) {
	var req service.GenerateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.generate(c, &req)
}

func (h *Handler) generate(c *gin.Context, req *service.GenerateRequest) {
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	res, err := h.svc.Generator.Generate(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, res)
}

// listCodes handles GET /admin/codes
func (h *Handler) listCodes(c *gin.Context) {
	f, ok := h.codeFilter(c)
	if !ok {
		return
	}

	page, err := h.svc.Catalog.ListCodes(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) codeFilter(c *gin.Context) (models.CodeFilter, bool) {
	limit, ok := h.queryInt(c, "limit")
	if !ok {
		return models.CodeFilter{}, false
	}
	offset, ok := h.queryInt(c, "offset")
	if !ok {
		return models.CodeFilter{}, false
	}
	return models.CodeFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Limit:  limit,
		Offset: offset,
	}, true
}

// deleteCodes deletes unused codes
func (h *Handler) deleteCodes(c *gin.Context) {
	var req codesRequest
	if !h.bindJSON(c, &req) {
		return
	}

	deleted, err := h.svc.Catalog.DeleteCodes(c.Request.Context(), req.Codes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// lookupCode returns a code's full record
func (h *Handler) lookupCode(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		h.respondError(c, apperr.Validation("code query parameter is required"))
		return
	}

	detail, err := h.svc.Catalog.Lookup(c.Request.Context(), code)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// assignCodes gives codes to a partner
func (h *Handler) assignCodes(c *gin.Context) {
	var req service.AssignRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.svc.Partners.AssignCodes(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// unassignCodes takes codes back from their partners
func (h *Handler) unassignCodes(c *gin.Context) {
	var req codesRequest
	if !h.bindJSON(c, &req) {
		return
	}

	n, err := h.svc.Partners.UnassignCodes(c.Request.Context(), req.Codes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unassigned": n})
}

// listBatches handles GET /admin/batches
func (h *Handler) listBatches(c *gin.Context) {
	batches, err := h.svc.Ledger.ListBatches(c.Request.Context(), c.Query("partnerId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

// getBatch returns one batch with its codes
func (h *Handler) getBatch(c *gin.Context) {
	detail, err := h.svc.Ledger.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// deleteBatch deletes a batch's unused codes
func (h *Handler) deleteBatch(c *gin.Context) {
	var req batchRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.svc.Ledger.DeleteBatch(c.Request.Context(), req.BatchID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// purgeBatch removes an emptied batch record
func (h *Handler) purgeBatch(c *gin.Context) {
	if err := h.svc.Ledger.PurgeBatch(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
