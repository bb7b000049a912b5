package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"memoriqr-service/internal/apperr"
	"memoriqr-service/internal/models"
	"memoriqr-service/internal/store"
	"memoriqr-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	codePrefix     = "MQR"
	suffixAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	suffixLength   = 6
	// maxCollisionRounds bounds how often colliding suffixes are redrawn
	maxCollisionRounds = 10
)

// GeneratorConfig carries the business limits the generator enforces
type GeneratorConfig struct {
	MaxQuantity    int
	ExpiryYears    int
	IdempotencyTTL time.Duration
}

// CodeGenerator creates batches of activation codes
type CodeGenerator struct {
	store     GeneratorStore
	cache     IdempotencyCache
	publisher EventPublisher
	cfg       GeneratorConfig
	now       Clock
	rand      io.Reader
	logger    *zap.Logger
}

// NewCodeGenerator creates a new code generator
func NewCodeGenerator(store GeneratorStore, cache IdempotencyCache, publisher EventPublisher, cfg GeneratorConfig) *CodeGenerator {
	if cfg.MaxQuantity <= 0 {
		cfg.MaxQuantity = 500
	}
	if cfg.ExpiryYears <= 0 {
		cfg.ExpiryYears = 3
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	return &CodeGenerator{
		store:     store,
		cache:     cache,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		rand:      rand.Reader,
		logger:    util.Component("generator"),
	}
}

// GenerateRequest asks for a batch of codes of one variant. Either Variant or
// ProductType plus HostingDurationYears must be set.
type GenerateRequest struct {
	Variant              string `json:"variant"`
	ProductType          string `json:"productType"`
	HostingDurationYears int    `json:"hostingDurationYears"`
	Quantity             int    `json:"quantity" binding:"required"`
	PartnerID            string `json:"partnerId,omitempty"`
	IdempotencyKey       string `json:"idempotencyKey,omitempty"`
}

// GenerateResult describes a created (or replayed) batch
type GenerateResult struct {
	BatchID              string             `json:"batchId"`
	BatchName            string             `json:"batchName"`
	Codes                []string           `json:"codes"`
	Variant              string             `json:"variant"`
	ProductType          models.ProductType `json:"productType"`
	HostingDurationYears int                `json:"hostingDurationYears"`
	RetailPrice          decimal.Decimal    `json:"retailPrice"`
	ExpiresAt            *time.Time         `json:"expiresAt,omitempty"`
	PartnerID            *string            `json:"partnerId,omitempty"`
	Replayed             bool               `json:"replayed,omitempty"`
}

// Generate validates the request and persists one batch with its codes
func (g *CodeGenerator) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	ctx, span := util.StartSpan(ctx, "CodeGenerator.Generate")
	defer span.End()

	if req.Quantity < 1 || req.Quantity > g.cfg.MaxQuantity {
		return nil, apperr.Validation("quantity must be between 1 and %d", g.cfg.MaxQuantity)
	}

	variant, err := requestedVariant(req)
	if err != nil {
		return nil, err
	}

	var partnerID *string
	if req.PartnerID != "" {
		partner, err := g.store.GetPartner(ctx, req.PartnerID)
		if err != nil {
			return nil, lookupErr(err, "partner %s not found", req.PartnerID)
		}
		if !partner.IsActive {
			return nil, apperr.Validation("partner %s is not active", partner.ID)
		}
		partnerID = &partner.ID
	}

	idemKey := generateKey(req.PartnerID, req.IdempotencyKey)
	if req.IdempotencyKey != "" && g.cache != nil {
		batchID, found, err := g.cache.GetIdempotencyKey(ctx, idemKey)
		if err != nil {
			return nil, apperr.Dependency(err, "idempotency cache unavailable")
		}
		if found {
			g.logger.Info("Duplicate generate request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.String("batch_id", batchID))
			return g.replay(ctx, batchID, variant, req.Quantity, partnerID)
		}

		lockKey := idemKey
		acquired, err := g.cache.AcquireLock(ctx, lockKey, time.Minute)
		if err != nil {
			return nil, apperr.Dependency(err, "idempotency cache unavailable")
		}
		if !acquired {
			return nil, apperr.Conflict("a request with idempotency key %s is already in progress", req.IdempotencyKey)
		}
		defer func() {
			if err := g.cache.ReleaseLock(ctx, lockKey); err != nil {
				g.logger.Warn("Failed to release idempotency lock", zap.Error(err))
			}
		}()
	}

	start := time.Now()
	now := g.now().UTC()
	expiresAt := now.AddDate(g.cfg.ExpiryYears, 0, 0)

	batch := &models.Batch{
		ID:                   uuid.New().String(),
		Name:                 fmt.Sprintf("%s x%d %s", variant.Token(), req.Quantity, now.Format("2006-01-02 15:04")),
		ProductType:          variant.ProductType,
		HostingDurationYears: variant.HostingDurationYears,
		TotalCodes:           req.Quantity,
		PartnerID:            partnerID,
		CreatedAt:            now,
	}

	regen := func() (string, error) { return g.newCode(variant) }
	codes := make([]models.ActivationCode, req.Quantity)
	for i := range codes {
		code, err := regen()
		if err != nil {
			return nil, apperr.Dependency(err, "failed to draw random code")
		}
		codes[i] = models.ActivationCode{
			Code:                 code,
			ProductType:          variant.ProductType,
			HostingDurationYears: variant.HostingDurationYears,
			BatchID:              &batch.ID,
			PartnerID:            partnerID,
			CreatedAt:            now,
			ExpiresAt:            &expiresAt,
		}
	}

	retried, err := g.store.CreateBatchWithCodes(ctx, batch, codes, regen, maxCollisionRounds)
	if err != nil {
		g.logger.Error("Failed to create batch",
			zap.String("variant", variant.Token()),
			zap.Int("quantity", req.Quantity),
			zap.Error(err))
		if errors.Is(err, store.ErrCodeSpaceExhausted) {
			return nil, apperr.Dependency(err, "could not draw %d unique codes for %s", req.Quantity, variant.Token())
		}
		return nil, apperr.Dependency(err, "failed to persist batch")
	}

	util.GenerateLatency.Observe(time.Since(start).Seconds())
	util.BatchesCreatedTotal.Inc()
	util.CodesGeneratedTotal.WithLabelValues(variant.Token()).Add(float64(req.Quantity))
	if retried > 0 {
		util.CodeCollisionsRetriedTotal.Add(float64(retried))
	}

	g.logger.Info("Batch generated",
		zap.String("batch_id", batch.ID),
		zap.String("variant", variant.Token()),
		zap.Int("quantity", req.Quantity),
		zap.Int("collisions_retried", retried))

	if req.IdempotencyKey != "" && g.cache != nil {
		if err := g.cache.SetIdempotencyKey(ctx, idemKey, batch.ID, g.cfg.IdempotencyTTL); err != nil {
			g.logger.Warn("Failed to record idempotency key", zap.Error(err))
		}
	}

	g.publish(ctx, batch, variant)

	result := &GenerateResult{
		BatchID:              batch.ID,
		BatchName:            batch.Name,
		Codes:                make([]string, len(codes)),
		Variant:              variant.Token(),
		ProductType:          variant.ProductType,
		HostingDurationYears: variant.HostingDurationYears,
		RetailPrice:          variant.RetailPrice(),
		ExpiresAt:            &expiresAt,
		PartnerID:            partnerID,
	}
	for i := range codes {
		result.Codes[i] = codes[i].Code
	}
	return result, nil
}

// replay returns the batch an earlier request with the same key created.
// A key reused for a different request is a conflict.
func (g *CodeGenerator) replay(ctx context.Context, batchID string, want models.Variant, quantity int, partnerID *string) (*GenerateResult, error) {
	summary, err := g.store.GetBatchSummary(ctx, batchID)
	if err != nil {
		return nil, lookupErr(err, "batch %s not found", batchID)
	}
	if summary.ProductType != want.ProductType ||
		summary.HostingDurationYears != want.HostingDurationYears ||
		summary.TotalCodes != quantity ||
		deref(summary.PartnerID) != deref(partnerID) {
		return nil, apperr.Conflict("idempotency key was already used for a different request")
	}
	codes, err := g.store.ListBatchCodes(ctx, batchID)
	if err != nil {
		return nil, apperr.Dependency(err, "database unavailable")
	}

	variant := models.Variant{ProductType: summary.ProductType, HostingDurationYears: summary.HostingDurationYears}
	result := &GenerateResult{
		BatchID:              summary.ID,
		BatchName:            summary.Name,
		Codes:                make([]string, len(codes)),
		Variant:              variant.Token(),
		ProductType:          variant.ProductType,
		HostingDurationYears: variant.HostingDurationYears,
		RetailPrice:          variant.RetailPrice(),
		PartnerID:            summary.PartnerID,
		Replayed:             true,
	}
	for i := range codes {
		result.Codes[i] = codes[i].Code
		if result.ExpiresAt == nil {
			result.ExpiresAt = codes[i].ExpiresAt
		}
	}
	return result, nil
}

func (g *CodeGenerator) publish(ctx context.Context, batch *models.Batch, variant models.Variant) {
	if g.publisher == nil {
		return
	}
	event := &models.CodesGeneratedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCodesGenerated,
			Timestamp: g.now().UTC(),
		},
		BatchID:   batch.ID,
		BatchName: batch.Name,
		Variant:   variant.Token(),
		Quantity:  batch.TotalCodes,
		PartnerID: batch.PartnerID,
	}
	if err := g.publisher.PublishCodesGenerated(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(models.EventTypeCodesGenerated).Inc()
		g.logger.Error("Failed to publish codes generated event", zap.String("batch_id", batch.ID), zap.Error(err))
	}
}

// newCode draws one MQR-<variant>-<suffix> code
func (g *CodeGenerator) newCode(v models.Variant) (string, error) {
	buf := make([]byte, suffixLength)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", err
	}
	// 256 is a multiple of 32, so the modulo is unbiased
	for i, b := range buf {
		buf[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return fmt.Sprintf("%s-%s-%s", codePrefix, v.Token(), buf), nil
}

func requestedVariant(req *GenerateRequest) (models.Variant, error) {
	if req.Variant != "" {
		v, err := models.ParseVariant(req.Variant)
		if err != nil {
			return models.Variant{}, apperr.Validation("%v", err)
		}
		return v, nil
	}
	if req.ProductType == "" {
		return models.Variant{}, apperr.Validation("variant or productType and hostingDurationYears is required")
	}
	v, err := models.NewVariant(models.ProductType(req.ProductType), req.HostingDurationYears)
	if err != nil {
		return models.Variant{}, apperr.Validation("%v", err)
	}
	return v, nil
}

// generateKey scopes an idempotency key to the partner the batch is for,
// or to admin stock when there is none
func generateKey(partnerID, key string) string {
	scope := partnerID
	if scope == "" {
		scope = "admin"
	}
	return "generate:" + scope + ":" + key
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
