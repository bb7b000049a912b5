package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"memoriqr-service/internal/apperr"
	"memoriqr-service/internal/auth"
	"memoriqr-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services are the use cases the HTTP layer exposes
type Services struct {
	Generator   Generator
	Ledger      Ledger
	Redeemer    Redeemer
	Inventory   Inventory
	Partners    Partners
	Commissions Commissions
	Catalog     Catalog
}

// Handler contains HTTP handlers
type Handler struct {
	svc       Services
	tokens    *auth.Manager
	redeemMW  gin.HandlerFunc
	readiness map[string]func(context.Context) error
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler. redeemLimit guards the public
// activation routes; readiness checks are run by /ready.
func NewHandler(svc Services, tokens *auth.Manager, redeemLimit gin.HandlerFunc, readiness map[string]func(context.Context) error) *Handler {
	return &Handler{
		svc:       svc,
		tokens:    tokens,
		redeemMW:  redeemLimit,
		readiness: readiness,
		logger:    util.Component("api"),
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

	activate := v1.Group("/activate")
	if h.redeemMW != nil {
		activate.Use(h.redeemMW)
	}
	{
		activate.POST("/validate", h.validateCode)
		activate.POST("/redeem", h.redeemCode)
	}

	admin := v1.Group("/admin", RequireRole(h.tokens, auth.RoleAdmin))
	{
		admin.POST("/codes/generate", h.generateCodes)
		admin.GET("/codes", h.listCodes)
		admin.DELETE("/codes", h.deleteCodes)
		admin.GET("/codes/lookup", h.lookupCode)
		admin.POST("/codes/assign", h.assignCodes)
		admin.DELETE("/codes/assign", h.unassignCodes)

		admin.GET("/batches", h.listBatches)
		admin.GET("/batches/:id", h.getBatch)
		admin.DELETE("/batches", h.deleteBatch)
		admin.DELETE("/batches/:id/purge", h.purgeBatch)

		admin.GET("/inventory", h.listInventory)
		admin.POST("/inventory", h.addStock)
		admin.GET("/inventory/summary", h.inventorySummary)
		admin.PATCH("/inventory/adjust", h.adjustStock)
		admin.POST("/inventory/movements", h.recordMovement)
		admin.GET("/inventory/movements", h.listMovements)
		admin.DELETE("/inventory/:id", h.deactivateItem)

		admin.GET("/partners", h.listPartners)
		admin.POST("/partners", h.createPartner)
		admin.GET("/partners/:id", h.getPartner)

		admin.GET("/commissions", h.listCommissions)
		admin.POST("/commissions/approve", h.approveCommissions)
		admin.POST("/commissions/payout", h.payoutCommissions)
		admin.POST("/commissions/:id/cancel", h.cancelCommission)
	}

	partner := v1.Group("/partner", RequireRole(h.tokens, auth.RolePartner))
	{
		partner.GET("/codes", h.partnerCodes)
		partner.POST("/codes/generate", h.partnerGenerate)
		partner.POST("/codes/transfer", h.partnerTransfer)
		partner.GET("/batches", h.partnerBatches)
		partner.GET("/commissions", h.partnerCommissions)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports unready when any dependency check fails
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.readiness {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// respondError maps classified errors to status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindDependency:
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}

	body := gin.H{"error": apperr.MessageOf(err)}
	if kind != "" {
		body["kind"] = kind
	} else {
		body["error"] = "internal error"
	}
	c.AbortWithStatusJSON(status, body)
}

// bindJSON reports a malformed body as a validation error
func (h *Handler) bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.respondError(c, apperr.Validation("invalid request body: %v", err))
		return false
	}
	return true
}

// queryInt parses an optional integer query parameter
func (h *Handler) queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		h.respondError(c, apperr.Validation("%s must be an integer", name))
		return 0, false
	}
	return n, true
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
