package service

import (
	"context"
	"errors"
	"time"

	"memoriqr-service/internal/apperr"
	"memoriqr-service/internal/models"
	"memoriqr-service/internal/store"
)

// EventPublisher publishes domain events; *broker.EventPublisher satisfies it
type EventPublisher interface {
	PublishCodesGenerated(ctx context.Context, event *models.CodesGeneratedEvent) error
	PublishCodeRedeemed(ctx context.Context, event *models.CodeRedeemedEvent) error
	PublishCodesTransferred(ctx context.Context, event *models.CodesTransferredEvent) error
	PublishStockLow(ctx context.Context, event *models.StockLowEvent) error
	PublishCommissionApproved(ctx context.Context, event *models.CommissionApprovedEvent) error
}

// IdempotencyCache remembers generation requests by key; *redisclient.Client satisfies it
type IdempotencyCache interface {
	GetIdempotencyKey(ctx context.Context, key string) (string, bool, error)
	SetIdempotencyKey(ctx context.Context, key, value string, ttl time.Duration) error
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// AlertThrottle admits at most one alert per key per ttl
type AlertThrottle interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
}

type GeneratorStore interface {
	CreateBatchWithCodes(ctx context.Context, batch *models.Batch, codes []models.ActivationCode, regen func() (string, error), maxRounds int) (int, error)
	GetBatchSummary(ctx context.Context, batchID string) (*models.BatchSummary, error)
	ListBatchCodes(ctx context.Context, batchID string) ([]models.ActivationCode, error)
	GetPartner(ctx context.Context, id string) (*models.Partner, error)
}

type LedgerStore interface {
	ListBatchSummaries(ctx context.Context, partnerID string) ([]models.BatchSummary, error)
	GetBatchSummary(ctx context.Context, batchID string) (*models.BatchSummary, error)
	ListBatchCodes(ctx context.Context, batchID string) ([]models.ActivationCode, error)
	DeleteUnusedBatchCodes(ctx context.Context, batchID string) (deleted, preserved int64, err error)
	PurgeBatch(ctx context.Context, batchID string) error
}

type RedemptionStore interface {
	GetCode(ctx context.Context, code string) (*models.ActivationCode, error)
	RedeemCode(ctx context.Context, code, memorialID, notes string, usedAt time.Time, price store.CommissionFunc) (*models.ActivationCode, *models.Commission, error)
}

type InventoryStore interface {
	ReceiveStock(ctx context.Context, tmpl *models.InventoryItem, qty int, reason string, now time.Time) (*models.InventoryItem, *models.Movement, error)
	ApplyMovement(ctx context.Context, itemID string, mt models.MovementType, qty int, reason string, now time.Time) (*models.InventoryItem, *models.Movement, error)
	GetInventoryItem(ctx context.Context, id string) (*models.InventoryItem, error)
	ListInventory(ctx context.Context, f models.InventoryFilter) ([]models.InventoryItem, error)
	ListMovements(ctx context.Context, itemID string, limit int) ([]models.Movement, error)
	DeactivateItem(ctx context.Context, id string, now time.Time) error
}

type PartnerStore interface {
	CreatePartner(ctx context.Context, p *models.Partner) error
	GetPartner(ctx context.Context, id string) (*models.Partner, error)
	ListPartners(ctx context.Context) ([]models.Partner, error)
	AssignCodes(ctx context.Context, codes []string, partnerID string, now time.Time) (*models.AssignResult, error)
	UnassignCodes(ctx context.Context, codes []string, now time.Time) (int, error)
	TransferCodes(ctx context.Context, fromPartnerID, toPartnerID string, codes []string, notes string, now time.Time) ([]string, error)
	ListCodes(ctx context.Context, f models.CodeFilter) ([]models.ActivationCode, int, error)
}

type CommissionStore interface {
	ListCommissions(ctx context.Context, f models.CommissionFilter) ([]models.Commission, error)
	ApproveCommissions(ctx context.Context, ids []string, now time.Time) ([]models.Commission, error)
	MarkCommissionsPaid(ctx context.Context, ids []string, reference string, now time.Time) ([]models.Commission, error)
	CancelCommission(ctx context.Context, id string) (*models.Commission, error)
}

type CatalogStore interface {
	ListCodes(ctx context.Context, f models.CodeFilter) ([]models.ActivationCode, int, error)
	GetCode(ctx context.Context, code string) (*models.ActivationCode, error)
	GetPartner(ctx context.Context, id string) (*models.Partner, error)
	ListActivity(ctx context.Context, code string) ([]models.CodeActivity, error)
	DeleteUnusedCodes(ctx context.Context, codes []string) (int64, error)
}

// Clock is swapped in tests
type Clock func() time.Time

// ErrCodeAlreadyUsed is returned when redeeming a code that was redeemed before
var ErrCodeAlreadyUsed = apperr.Conflict("activation code has already been used")

// lookupErr maps a store read failure to NotFound or Dependency
func lookupErr(err error, format string, args ...interface{}) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(format, args...)
	}
	return apperr.Dependency(err, "database unavailable")
}
