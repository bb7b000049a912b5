package store

import (
	"context"
	"database/sql"
	"fmt"

	"memoriqr-service/internal/models"
)

const batchSummarySelect = `
	SELECT b.*,
		COUNT(c.code) FILTER (WHERE c.is_used) AS used_codes,
		COUNT(c.code) FILTER (WHERE NOT c.is_used) AS unused_codes
	FROM code_batches b
	LEFT JOIN activation_codes c ON c.batch_id = b.id`

// ListBatchSummaries returns batches, newest first, with counts taken from the
// code rows at query time. An empty partnerID lists every batch.
func (s *Store) ListBatchSummaries(ctx context.Context, partnerID string) ([]models.BatchSummary, error) {
	query := batchSummarySelect
	var args []interface{}
	if partnerID != "" {
		query += " WHERE b.partner_id = $1"
		args = append(args, partnerID)
	}
	query += " GROUP BY b.id ORDER BY b.created_at DESC"

	batches := []models.BatchSummary{}
	if err := s.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	return batches, nil
}

// GetBatchSummary retrieves one batch with its current counts
func (s *Store) GetBatchSummary(ctx context.Context, batchID string) (*models.BatchSummary, error) {
	var b models.BatchSummary
	err := s.db.GetContext(ctx, &b, batchSummarySelect+" WHERE b.id = $1 GROUP BY b.id", batchID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBatchCodes returns the batch's remaining codes ordered by code
func (s *Store) ListBatchCodes(ctx context.Context, batchID string) ([]models.ActivationCode, error) {
	codes := []models.ActivationCode{}
	err := s.db.SelectContext(ctx, &codes,
		"SELECT * FROM activation_codes WHERE batch_id = $1 ORDER BY code", batchID)
	return codes, err
}

// DeleteUnusedBatchCodes removes the batch's unused codes with one conditional
// delete and reports how many used codes were left in place.
func (s *Store) DeleteUnusedBatchCodes(ctx context.Context, batchID string) (deleted, preserved int64, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	var id string
	err = tx.GetContext(ctx, &id, "SELECT id FROM code_batches WHERE id = $1 FOR UPDATE", batchID)
	if err == sql.ErrNoRows {
		return 0, 0, ErrNotFound
	}
	if err != nil {
		return 0, 0, err
	}

	result, err := tx.ExecContext(ctx,
		"DELETE FROM activation_codes WHERE batch_id = $1 AND is_used = FALSE", batchID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete batch codes: %w", err)
	}
	if deleted, err = result.RowsAffected(); err != nil {
		return 0, 0, err
	}

	err = tx.GetContext(ctx, &preserved,
		"SELECT COUNT(*) FROM activation_codes WHERE batch_id = $1 AND is_used = TRUE", batchID)
	if err != nil {
		return 0, 0, err
	}

	return deleted, preserved, tx.Commit()
}

// PurgeBatch removes the batch row once it has no unused codes left. Used
// codes survive with batch_id cleared by the foreign key.
func (s *Store) PurgeBatch(ctx context.Context, batchID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var id string
	err = tx.GetContext(ctx, &id, "SELECT id FROM code_batches WHERE id = $1 FOR UPDATE", batchID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var unused int
	err = tx.GetContext(ctx, &unused,
		"SELECT COUNT(*) FROM activation_codes WHERE batch_id = $1 AND is_used = FALSE", batchID)
	if err != nil {
		return err
	}
	if unused > 0 {
		return fmt.Errorf("%w: %d remaining", ErrBatchHasUnused, unused)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM code_batches WHERE id = $1", batchID); err != nil {
		return fmt.Errorf("failed to purge batch: %w", err)
	}
	return tx.Commit()
}
