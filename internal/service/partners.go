package service

import (
	"context"
	"strings"
	"time"

	"memoriqr-service/internal/apperr"
	"memoriqr-service/internal/models"
	"memoriqr-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultCommissionRate is the percentage applied when a partner is created without one
var DefaultCommissionRate = decimal.NewFromInt(15)

// PartnerService manages partner accounts and the codes they hold
type PartnerService struct {
	store     PartnerStore
	publisher EventPublisher
	now       Clock
	logger    *zap.Logger
}

// NewPartnerService creates a new partner service
func NewPartnerService(store PartnerStore, publisher EventPublisher) *PartnerService {
	return &PartnerService{
		store:     store,
		publisher: publisher,
		now:       time.Now,
		logger:    util.Component("partners"),
	}
}

// CreatePartnerRequest registers a reseller
type CreatePartnerRequest struct {
	Name           string           `json:"name" binding:"required"`
	ContactEmail   string           `json:"contactEmail" binding:"required"`
	CommissionRate *decimal.Decimal `json:"commissionRate,omitempty"`
}

// AssignRequest names codes to hand to a partner
type AssignRequest struct {
	Codes     []string `json:"codes" binding:"required,min=1"`
	PartnerID string   `json:"partnerId"`
}

// TransferRequest moves codes between two accounts of the same owner
type TransferRequest struct {
	Codes       []string `json:"codes" binding:"required,min=1"`
	ToPartnerID string   `json:"toPartnerId" binding:"required"`
	Notes       string   `json:"notes,omitempty"`
}

// TransferResult lists the codes that moved and how many were skipped
type TransferResult struct {
	Transferred []string `json:"transferred"`
	Skipped     int      `json:"skipped"`
}

// CreatePartner validates and stores a new partner
func (s *PartnerService) CreatePartner(ctx context.Context, req *CreatePartnerRequest) (*models.Partner, error) {
	ctx, span := util.StartSpan(ctx, "PartnerService.CreatePartner")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	email := strings.TrimSpace(req.ContactEmail)
	if !strings.Contains(email, "@") {
		return nil, apperr.Validation("contactEmail must be an email address")
	}
	rate := DefaultCommissionRate
	if req.CommissionRate != nil {
		rate = *req.CommissionRate
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, apperr.Validation("commissionRate must be between 0 and 100")
	}

	p := &models.Partner{
		ID:             uuid.New().String(),
		Name:           name,
		ContactEmail:   email,
		CommissionRate: rate,
		IsActive:       true,
	}
	if err := s.store.CreatePartner(ctx, p); err != nil {
		return nil, apperr.Dependency(err, "failed to create partner")
	}

	s.logger.Info("Partner created", zap.String("partner_id", p.ID), zap.String("name", p.Name))
	return p, nil
}

// GetPartner returns one partner
func (s *PartnerService) GetPartner(ctx context.Context, id string) (*models.Partner, error) {
	ctx, span := util.StartSpan(ctx, "PartnerService.GetPartner")
	defer span.End()

	p, err := s.store.GetPartner(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "partner %s not found", id)
	}
	return p, nil
}

// ListPartners returns every partner
func (s *PartnerService) ListPartners(ctx context.Context) ([]models.Partner, error) {
	ctx, span := util.StartSpan(ctx, "PartnerService.ListPartners")
	defer span.End()

	partners, err := s.store.ListPartners(ctx)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to list partners")
	}
	return partners, nil
}

// AssignCodes gives unassigned unused codes to an active partner
func (s *PartnerService) AssignCodes(ctx context.Context, req *AssignRequest) (*models.AssignResult, error) {
	ctx, span := util.StartSpan(ctx, "PartnerService.AssignCodes")
	defer span.End()

	codes := normalizeCodes(req.Codes)
	if len(codes) == 0 {
		return nil, apperr.Validation("codes are required")
	}
	if req.PartnerID == "" {
		return nil, apperr.Validation("partnerId is required")
	}
	if _, err := s.activePartner(ctx, req.PartnerID); err != nil {
		return nil, err
	}

	result, err := s.store.AssignCodes(ctx, codes, req.PartnerID, s.now().UTC())
	if err != nil {
		return nil, apperr.Dependency(err, "failed to assign codes")
	}

	s.logger.Info("Codes assigned",
		zap.String("partner_id", req.PartnerID),
		zap.Int("assigned", result.Assigned),
		zap.Int("skipped_assigned", result.SkippedAlreadyAssigned),
		zap.Int("skipped_used", result.SkippedUsed))
	return result, nil
}

// UnassignCodes returns assigned unused codes to the unassigned pool
func (s *PartnerService) UnassignCodes(ctx context.Context, codes []string) (int, error) {
	ctx, span := util.StartSpan(ctx, "PartnerService.UnassignCodes")
	defer span.End()

	codes = normalizeCodes(codes)
	if len(codes) == 0 {
		return 0, apperr.Validation("codes are required")
	}

	n, err := s.store.UnassignCodes(ctx, codes, s.now().UTC())
	if err != nil {
		return 0, apperr.Dependency(err, "failed to unassign codes")
	}
	s.logger.Info("Codes unassigned", zap.Int("count", n))
	return n, nil
}

// TransferCodes moves unused codes from one partner account to another
// account with the same contact email. Codes redeemed in the meantime stay put.
func (s *PartnerService) TransferCodes(ctx context.Context, fromPartnerID string, req *TransferRequest) (*TransferResult, error) {
	ctx, span := util.StartSpan(ctx, "PartnerService.TransferCodes")
	defer span.End()

	codes := normalizeCodes(req.Codes)
	if len(codes) == 0 {
		return nil, apperr.Validation("codes are required")
	}
	if req.ToPartnerID == "" {
		return nil, apperr.Validation("toPartnerId is required")
	}
	if req.ToPartnerID == fromPartnerID {
		return nil, apperr.Validation("cannot transfer codes to the same partner")
	}

	from, err := s.store.GetPartner(ctx, fromPartnerID)
	if err != nil {
		return nil, lookupErr(err, "partner %s not found", fromPartnerID)
	}
	to, err := s.activePartner(ctx, req.ToPartnerID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(from.ContactEmail, to.ContactEmail) {
		return nil, apperr.Validation("codes can only be transferred between partners with the same owner")
	}

	moved, err := s.store.TransferCodes(ctx, from.ID, to.ID, codes, strings.TrimSpace(req.Notes), s.now().UTC())
	if err != nil {
		return nil, apperr.Dependency(err, "failed to transfer codes")
	}

	s.logger.Info("Codes transferred",
		zap.String("from_partner_id", from.ID),
		zap.String("to_partner_id", to.ID),
		zap.Int("transferred", len(moved)),
		zap.Int("skipped", len(codes)-len(moved)))

	if len(moved) > 0 && s.publisher != nil {
		event := &models.CodesTransferredEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeCodesTransferred,
				Timestamp: s.now().UTC(),
			},
			FromPartnerID: from.ID,
			ToPartnerID:   to.ID,
			Codes:         moved,
		}
		if err := s.publisher.PublishCodesTransferred(ctx, event); err != nil {
			util.EventsPublishFailedTotal.WithLabelValues(models.EventTypeCodesTransferred).Inc()
			s.logger.Error("Failed to publish codes transferred event", zap.Error(err))
		}
	}

	return &TransferResult{Transferred: moved, Skipped: len(codes) - len(moved)}, nil
}

// ListPartnerCodes returns one page of the codes a partner holds
func (s *PartnerService) ListPartnerCodes(ctx context.Context, partnerID string, f models.CodeFilter) ([]models.ActivationCode, int, error) {
	ctx, span := util.StartSpan(ctx, "PartnerService.ListPartnerCodes")
	defer span.End()

	if f.Status == models.CodeStatusUnassigned {
		return nil, 0, apperr.Validation("status must be one of all, used, unused")
	}
	f.PartnerID = partnerID
	if err := normalizeCodeFilter(&f); err != nil {
		return nil, 0, err
	}

	codes, total, err := s.store.ListCodes(ctx, f)
	if err != nil {
		return nil, 0, apperr.Dependency(err, "failed to list codes")
	}
	return codes, total, nil
}

func (s *PartnerService) activePartner(ctx context.Context, id string) (*models.Partner, error) {
	p, err := s.store.GetPartner(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "partner %s not found", id)
	}
	if !p.IsActive {
		return nil, apperr.Validation("partner %s is not active", id)
	}
	return p, nil
}

// normalizeCodes upper-cases, trims and de-duplicates codes, dropping blanks
func normalizeCodes(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = NormalizeCode(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
