package service

import (
	"context"
	"errors"

	"memoriqr-service/internal/apperr"
	"memoriqr-service/internal/models"
	"memoriqr-service/internal/store"
	"memoriqr-service/internal/util"

	"go.uber.org/zap"
)

// BatchLedger reports on generated batches and retires their unused codes
type BatchLedger struct {
	store  LedgerStore
	logger *zap.Logger
}

// NewBatchLedger creates a new batch ledger
func NewBatchLedger(store LedgerStore) *BatchLedger {
	return &BatchLedger{
		store:  store,
		logger: util.Component("ledger"),
	}
}

// BatchDetail is a batch summary together with its remaining codes
type BatchDetail struct {
	models.BatchSummary
	DeletedCodes int                     `json:"deletedCodes"`
	Codes        []models.ActivationCode `json:"codes"`
}

// DeleteBatchResult reports what a batch deletion removed and kept
type DeleteBatchResult struct {
	BatchID   string `json:"batchId"`
	Deleted   int64  `json:"deleted"`
	Preserved int64  `json:"preserved"`
}

// ListBatches returns every batch, newest first, optionally for one partner.
// Counts come from the code rows at call time.
func (l *BatchLedger) ListBatches(ctx context.Context, partnerID string) ([]models.BatchSummary, error) {
	ctx, span := util.StartSpan(ctx, "BatchLedger.ListBatches")
	defer span.End()

	batches, err := l.store.ListBatchSummaries(ctx, partnerID)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to list batches")
	}
	return batches, nil
}

// GetBatch returns one batch with its codes
func (l *BatchLedger) GetBatch(ctx context.Context, batchID string) (*BatchDetail, error) {
	ctx, span := util.StartSpan(ctx, "BatchLedger.GetBatch")
	defer span.End()

	summary, err := l.store.GetBatchSummary(ctx, batchID)
	if err != nil {
		return nil, lookupErr(err, "batch %s not found", batchID)
	}
	codes, err := l.store.ListBatchCodes(ctx, batchID)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to list batch codes")
	}
	return &BatchDetail{
		BatchSummary: *summary,
		DeletedCodes: summary.DeletedCodes(),
		Codes:        codes,
	}, nil
}

// DeleteBatch removes the batch's unused codes. Used codes and the batch row stay.
func (l *BatchLedger) DeleteBatch(ctx context.Context, batchID string) (*DeleteBatchResult, error) {
	ctx, span := util.StartSpan(ctx, "BatchLedger.DeleteBatch")
	defer span.End()

	if batchID == "" {
		return nil, apperr.Validation("batchId is required")
	}

	deleted, preserved, err := l.store.DeleteUnusedBatchCodes(ctx, batchID)
	if err != nil {
		return nil, lookupErr(err, "batch %s not found", batchID)
	}

	util.BatchCodesDeletedTotal.Add(float64(deleted))
	util.BatchCodesPreservedTotal.Add(float64(preserved))
	l.logger.Info("Batch codes deleted",
		zap.String("batch_id", batchID),
		zap.Int64("deleted", deleted),
		zap.Int64("preserved", preserved))

	return &DeleteBatchResult{BatchID: batchID, Deleted: deleted, Preserved: preserved}, nil
}

// PurgeBatch removes the batch row once it has no unused codes left
func (l *BatchLedger) PurgeBatch(ctx context.Context, batchID string) error {
	ctx, span := util.StartSpan(ctx, "BatchLedger.PurgeBatch")
	defer span.End()

	err := l.store.PurgeBatch(ctx, batchID)
	switch {
	case err == nil:
		l.logger.Info("Batch purged", zap.String("batch_id", batchID))
		return nil
	case errors.Is(err, store.ErrBatchHasUnused):
		return apperr.Conflict("batch %s still has unused codes; delete them first", batchID)
	default:
		return lookupErr(err, "batch %s not found", batchID)
	}
}
