package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"memoriqr-service/internal/apperr"
	"memoriqr-service/internal/hosting"
	"memoriqr-service/internal/models"
	"memoriqr-service/internal/store"
	"memoriqr-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Validation reasons
const (
	ReasonUsed     = "used"
	ReasonExpired  = "expired"
	ReasonNotFound = "not_found"
)

// RedemptionRecorder binds activation codes to memorials
type RedemptionRecorder struct {
	store     RedemptionStore
	publisher EventPublisher
	now       Clock
	logger    *zap.Logger
}

// NewRedemptionRecorder creates a new redemption recorder
func NewRedemptionRecorder(store RedemptionStore, publisher EventPublisher) *RedemptionRecorder {
	return &RedemptionRecorder{
		store:     store,
		publisher: publisher,
		now:       time.Now,
		logger:    util.Component("redemption"),
	}
}

// RedeemRequest activates a code for a memorial
type RedeemRequest struct {
	Code       string `json:"code" binding:"required"`
	MemorialID string `json:"memorialId" binding:"required"`
	Context    string `json:"context,omitempty"`
}

// Redemption is the outcome of a successful redeem
type Redemption struct {
	Code             string             `json:"code"`
	MemorialID       string             `json:"memorialId"`
	ProductType      models.ProductType `json:"productType"`
	UsedAt           time.Time          `json:"usedAt"`
	HostingExpiresAt time.Time          `json:"hostingExpiresAt"`
	Commission       *models.Commission `json:"commission,omitempty"`
}

// ValidateResult tells the activation form whether a code can be redeemed
type ValidateResult struct {
	Code                 string             `json:"code"`
	Valid                bool               `json:"valid"`
	Reason               string             `json:"reason,omitempty"`
	ProductType          models.ProductType `json:"productType,omitempty"`
	HostingDurationYears int                `json:"hostingDurationYears,omitempty"`
	PartnerID            *string            `json:"partnerId,omitempty"`
}

// NormalizeCode trims and upper-cases a code as typed by a customer
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Redeem marks the code used exactly once and prices the partner commission
func (r *RedemptionRecorder) Redeem(ctx context.Context, req *RedeemRequest) (*Redemption, error) {
	ctx, span := util.StartSpan(ctx, "RedemptionRecorder.Redeem")
	defer span.End()

	code := NormalizeCode(req.Code)
	if code == "" {
		return nil, apperr.Validation("code is required")
	}
	memorialID := strings.TrimSpace(req.MemorialID)
	if memorialID == "" {
		return nil, apperr.Validation("memorialId is required")
	}

	usedAt := r.now().UTC()
	price := func(c *models.ActivationCode, p *models.Partner) *models.Commission {
		return models.NewCommission(uuid.New().String(), c, p, usedAt)
	}

	redeemed, commission, err := r.store.RedeemCode(ctx, code, memorialID, req.Context, usedAt, price)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			util.RedemptionsTotal.WithLabelValues("not_found").Inc()
			return nil, apperr.NotFound("activation code %s not found", code)
		case errors.Is(err, store.ErrCodeUsed):
			util.RedemptionsTotal.WithLabelValues("conflict").Inc()
			r.logger.Info("Redeem of used code rejected", zap.String("code", code))
			return nil, ErrCodeAlreadyUsed
		case errors.Is(err, store.ErrCodeExpired):
			util.RedemptionsTotal.WithLabelValues("expired").Inc()
			return nil, apperr.Validation("activation code %s has expired", code)
		default:
			util.RedemptionsTotal.WithLabelValues("error").Inc()
			r.logger.Error("Failed to redeem code", zap.String("code", code), zap.Error(err))
			return nil, apperr.Dependency(err, "failed to redeem code")
		}
	}

	util.RedemptionsTotal.WithLabelValues("ok").Inc()
	if commission != nil {
		util.CommissionsTotal.WithLabelValues(string(models.CommissionPending)).Inc()
	}

	result := &Redemption{
		Code:             redeemed.Code,
		MemorialID:       memorialID,
		ProductType:      redeemed.ProductType,
		UsedAt:           usedAt,
		HostingExpiresAt: hosting.ExpiresAt(usedAt, redeemed.HostingDurationYears),
		Commission:       commission,
	}

	r.logger.Info("Code redeemed",
		zap.String("code", redeemed.Code),
		zap.String("memorial_id", memorialID),
		zap.Bool("commission", commission != nil))

	r.publish(ctx, redeemed, result)
	return result, nil
}

// Validate checks a code without changing it
func (r *RedemptionRecorder) Validate(ctx context.Context, code string) (*ValidateResult, error) {
	ctx, span := util.StartSpan(ctx, "RedemptionRecorder.Validate")
	defer span.End()

	code = NormalizeCode(code)
	if code == "" {
		return nil, apperr.Validation("code is required")
	}

	c, err := r.store.GetCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return &ValidateResult{Code: code, Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return nil, apperr.Dependency(err, "failed to load code")
	}

	result := &ValidateResult{
		Code:                 c.Code,
		ProductType:          c.ProductType,
		HostingDurationYears: c.HostingDurationYears,
		PartnerID:            c.PartnerID,
	}
	switch {
	case c.IsUsed:
		result.Reason = ReasonUsed
	case c.IsExpired(r.now()):
		result.Reason = ReasonExpired
	default:
		result.Valid = true
	}
	return result, nil
}

func (r *RedemptionRecorder) publish(ctx context.Context, code *models.ActivationCode, result *Redemption) {
	if r.publisher == nil {
		return
	}
	event := &models.CodeRedeemedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCodeRedeemed,
			Timestamp: result.UsedAt,
		},
		Code:             code.Code,
		MemorialID:       result.MemorialID,
		Variant:          code.Variant().Token(),
		PartnerID:        code.PartnerID,
		HostingExpiresAt: result.HostingExpiresAt,
	}
	if result.Commission != nil {
		event.CommissionID = &result.Commission.ID
	}
	if err := r.publisher.PublishCodeRedeemed(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(models.EventTypeCodeRedeemed).Inc()
		r.logger.Error("Failed to publish code redeemed event", zap.String("code", code.Code), zap.Error(err))
	}
}
