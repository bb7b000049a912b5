package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"memoriqr-service/internal/models"

	"github.com/lib/pq"
)

// ListCommissions retrieves commissions, newest first
func (s *Store) ListCommissions(ctx context.Context, f models.CommissionFilter) ([]models.Commission, error) {
	var where []string
	var args []interface{}
	if f.PartnerID != "" {
		args = append(args, f.PartnerID)
		where = append(where, fmt.Sprintf("partner_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := "SELECT * FROM partner_commissions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	commissions := []models.Commission{}
	err := s.db.SelectContext(ctx, &commissions, query, args...)
	return commissions, err
}

// ApproveCommissions approves the listed commissions that are still pending
func (s *Store) ApproveCommissions(ctx context.Context, ids []string, now time.Time) ([]models.Commission, error) {
	approved := []models.Commission{}
	err := s.db.SelectContext(ctx, &approved, `
		UPDATE partner_commissions SET status = 'approved', approved_at = $1
		WHERE id = ANY($2) AND status = 'pending'
		RETURNING *`,
		now, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to approve commissions: %w", err)
	}
	return approved, nil
}

// MarkCommissionsPaid records payout for the listed approved commissions
func (s *Store) MarkCommissionsPaid(ctx context.Context, ids []string, reference string, now time.Time) ([]models.Commission, error) {
	paid := []models.Commission{}
	err := s.db.SelectContext(ctx, &paid, `
		UPDATE partner_commissions SET status = 'paid', paid_at = $1, payout_reference = $2
		WHERE id = ANY($3) AND status = 'approved'
		RETURNING *`,
		now, reference, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to mark commissions paid: %w", err)
	}
	return paid, nil
}

// CancelCommission cancels a pending or approved commission
func (s *Store) CancelCommission(ctx context.Context, id string) (*models.Commission, error) {
	var c models.Commission
	err := s.db.GetContext(ctx, &c, `
		UPDATE partner_commissions SET status = 'cancelled'
		WHERE id = $1 AND status IN ('pending', 'approved')
		RETURNING *`, id)
	if err == sql.ErrNoRows {
		var exists bool
		if err := s.db.GetContext(ctx, &exists,
			"SELECT EXISTS(SELECT 1 FROM partner_commissions WHERE id = $1)", id); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: commission %s is already paid or cancelled", ErrInvalidState, id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
