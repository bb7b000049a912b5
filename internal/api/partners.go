package api

import (
	"net/http"

	"memoriqr-service/internal/models"
	"memoriqr-service/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listPartners(c *gin.Context) {
	partners, err := h.svc.Partners.ListPartners(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"partners": partners})
}

func (h *Handler) createPartner(c *gin.Context) {
	var req service.CreatePartnerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	p, err := h.svc.Partners.CreatePartner(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) getPartner(c *gin.Context) {
	p, err := h.svc.Partners.GetPartner(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// listCommissions handles GET /admin/commissions?partnerId=&status=
func (h *Handler) listCommissions(c *gin.Context) {
	f := models.CommissionFilter{
		PartnerID: c.Query("partnerId"),
		Status:    models.CommissionStatus(c.Query("status")),
	}
	h.commissions(c, f)
}

func (h *Handler) commissions(c *gin.Context, f models.CommissionFilter) {
	commissions, err := h.svc.Commissions.List(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commissions": commissions})
}

func (h *Handler) approveCommissions(c *gin.Context) {
	var req service.ApproveRequest
	if !h.bindJSON(c, &req) {
		return
	}

	approved, err := h.svc.Commissions.Approve(c.Request.Context(), req.IDs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"approved": len(approved), "commissions": approved})
}

func (h *Handler) payoutCommissions(c *gin.Context) {
	var req service.PayoutRequest
	if !h.bindJSON(c, &req) {
		return
	}

	paid, err := h.svc.Commissions.MarkPaid(c.Request.Context(), req.IDs, req.Reference)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paid": len(paid), "commissions": paid})
}

func (h *Handler) cancelCommission(c *gin.Context) {
	commission, err := h.svc.Commissions.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, commission)
}

// partnerCodes lists the calling partner's codes
func (h *Handler) partnerCodes(c *gin.Context) {
	f, ok := h.codeFilter(c)
	if !ok {
		return
	}

	codes, total, err := h.svc.Partners.ListPartnerCodes(c.Request.Context(), partnerID(c), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"codes": codes, "total": total})
}

// partnerGenerate generates codes pre-assigned to the calling partner
func (h *Handler) partnerGenerate(c *gin.Context) {
	var req service.GenerateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.PartnerID = partnerID(c)
	h.generate(c, &req)
}

func (h *Handler) partnerTransfer(c *gin.Context) {
	var req service.TransferRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.svc.Partners.TransferCodes(c.Request.Context(), partnerID(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) partnerBatches(c *gin.Context) {
	batches, err := h.svc.Ledger.ListBatches(c.Request.Context(), partnerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

func (h *Handler) partnerCommissions(c *gin.Context) {
	h.commissions(c, models.CommissionFilter{
		PartnerID: partnerID(c),
		Status:    models.CommissionStatus(c.Query("status")),
	})
}
