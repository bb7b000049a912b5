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
	"go.uber.org/zap"
)

// CommissionService moves partner commissions through approval and payout
type CommissionService struct {
	store     CommissionStore
	publisher EventPublisher
	now       Clock
	logger    *zap.Logger
}

// NewCommissionService creates a new commission service
func NewCommissionService(store CommissionStore, publisher EventPublisher) *CommissionService {
	return &CommissionService{
		store:     store,
		publisher: publisher,
		now:       time.Now,
		logger:    util.Component("commissions"),
	}
}

// ApproveRequest lists commissions to approve
type ApproveRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

// PayoutRequest lists approved commissions paid under one reference
type PayoutRequest struct {
	IDs       []string `json:"ids" binding:"required,min=1"`
	Reference string   `json:"reference"`
}

// List returns commissions matching f
func (s *CommissionService) List(ctx context.Context, f models.CommissionFilter) ([]models.Commission, error) {
	ctx, span := util.StartSpan(ctx, "CommissionService.List")
	defer span.End()

	switch f.Status {
	case "", models.CommissionPending, models.CommissionApproved, models.CommissionPaid, models.CommissionCancelled:
	default:
		return nil, apperr.Validation("unknown commission status %q", f.Status)
	}

	commissions, err := s.store.ListCommissions(ctx, f)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to list commissions")
	}
	return commissions, nil
}

// Approve approves the pending commissions among ids. Others are left alone.
func (s *CommissionService) Approve(ctx context.Context, ids []string) ([]models.Commission, error) {
	ctx, span := util.StartSpan(ctx, "CommissionService.Approve")
	defer span.End()

	if len(ids) == 0 {
		return nil, apperr.Validation("ids are required")
	}

	now := s.now().UTC()
	approved, err := s.store.ApproveCommissions(ctx, ids, now)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to approve commissions")
	}

	util.CommissionsTotal.WithLabelValues(string(models.CommissionApproved)).Add(float64(len(approved)))
	s.logger.Info("Commissions approved", zap.Int("requested", len(ids)), zap.Int("approved", len(approved)))

	if s.publisher != nil {
		for i := range approved {
			c := &approved[i]
			event := &models.CommissionApprovedEvent{
				BaseEvent: models.BaseEvent{
					EventID:   uuid.New().String(),
					EventType: models.EventTypeCommissionApproved,
					Timestamp: now,
				},
				CommissionID:   c.ID,
				PartnerID:      c.PartnerID,
				ActivationCode: c.ActivationCode,
				Amount:         c.CommissionAmount.StringFixed(2),
			}
			if err := s.publisher.PublishCommissionApproved(ctx, event); err != nil {
				util.EventsPublishFailedTotal.WithLabelValues(models.EventTypeCommissionApproved).Inc()
				s.logger.Error("Failed to publish commission approved event",
					zap.String("commission_id", c.ID), zap.Error(err))
			}
		}
	}
	return approved, nil
}

// MarkPaid records a payout for the approved commissions among ids
func (s *CommissionService) MarkPaid(ctx context.Context, ids []string, reference string) ([]models.Commission, error) {
	ctx, span := util.StartSpan(ctx, "CommissionService.MarkPaid")
	defer span.End()

	if len(ids) == 0 {
		return nil, apperr.Validation("ids are required")
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, apperr.Validation("payout reference is required")
	}

	paid, err := s.store.MarkCommissionsPaid(ctx, ids, reference, s.now().UTC())
	if err != nil {
		return nil, apperr.Dependency(err, "failed to mark commissions paid")
	}

	util.CommissionsTotal.WithLabelValues(string(models.CommissionPaid)).Add(float64(len(paid)))
	s.logger.Info("Commissions paid", zap.String("reference", reference), zap.Int("paid", len(paid)))
	return paid, nil
}

// Cancel cancels a pending or approved commission
func (s *CommissionService) Cancel(ctx context.Context, id string) (*models.Commission, error) {
	ctx, span := util.StartSpan(ctx, "CommissionService.Cancel")
	defer span.End()

	c, err := s.store.CancelCommission(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrInvalidState):
		return nil, apperr.Conflict("commission %s is already paid or cancelled", id)
	default:
		return nil, lookupErr(err, "commission %s not found", id)
	}

	util.CommissionsTotal.WithLabelValues(string(models.CommissionCancelled)).Inc()
	s.logger.Info("Commission cancelled", zap.String("commission_id", id))
	return c, nil
}
