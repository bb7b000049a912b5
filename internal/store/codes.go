package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"memoriqr-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// codeInsertChunk keeps multi-row inserts well under the Postgres parameter limit
const codeInsertChunk = 500

// CommissionFunc prices the commission owed when a partner-owned code is redeemed
type CommissionFunc func(code *models.ActivationCode, partner *models.Partner) *models.Commission

// CreateBatchWithCodes inserts batch and all of codes in one transaction.
// Codes whose string collides with an existing row, or with another code in the
// same request, get a fresh string from regen and are retried; after maxRounds
// rounds the transaction is rolled back with ErrCodeSpaceExhausted. On success
// codes holds the strings actually stored. It returns how many retries happened.
func (s *Store) CreateBatchWithCodes(ctx context.Context, batch *models.Batch, codes []models.ActivationCode, regen func() (string, error), maxRounds int) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO code_batches (id, name, product_type, hosting_duration_years, total_codes, partner_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		batch.ID, batch.Name, batch.ProductType, batch.HostingDurationYears, batch.TotalCodes, batch.PartnerID, batch.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert batch: %w", err)
	}

	pending := make([]int, len(codes))
	for i := range pending {
		pending[i] = i
	}

	retried := 0
	for round := 0; len(pending) > 0; round++ {
		if round == maxRounds {
			return retried, ErrCodeSpaceExhausted
		}
		if round > 0 {
			for _, i := range pending {
				if codes[i].Code, err = regen(); err != nil {
					return retried, fmt.Errorf("failed to regenerate code: %w", err)
				}
			}
			retried += len(pending)
		}

		seen := make(map[string]bool, len(pending))
		var attempt, retry []int
		for _, i := range pending {
			if seen[codes[i].Code] {
				retry = append(retry, i)
				continue
			}
			seen[codes[i].Code] = true
			attempt = append(attempt, i)
		}

		inserted, err := insertCodes(ctx, tx, codes, attempt)
		if err != nil {
			return retried, err
		}
		for _, i := range attempt {
			if !inserted[codes[i].Code] {
				retry = append(retry, i)
			}
		}
		pending = retry
	}

	return retried, tx.Commit()
}

// insertCodes inserts codes[idx...] skipping strings that already exist and
// returns the set that made it in.
func insertCodes(ctx context.Context, tx *sqlx.Tx, codes []models.ActivationCode, idx []int) (map[string]bool, error) {
	inserted := make(map[string]bool, len(idx))

	for start := 0; start < len(idx); start += codeInsertChunk {
		end := start + codeInsertChunk
		if end > len(idx) {
			end = len(idx)
		}
		chunk := idx[start:end]

		values := make([]string, len(chunk))
		args := make([]interface{}, 0, len(chunk)*7)
		for n, i := range chunk {
			c := codes[i]
			values[n] = fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
				n*7+1, n*7+2, n*7+3, n*7+4, n*7+5, n*7+6, n*7+7)
			args = append(args, c.Code, c.ProductType, c.HostingDurationYears, c.BatchID, c.PartnerID, c.CreatedAt, c.ExpiresAt)
		}

		query := fmt.Sprintf(`
			INSERT INTO activation_codes (code, product_type, hosting_duration_years, batch_id, partner_id, created_at, expires_at)
			VALUES %s
			ON CONFLICT (code) DO NOTHING
			RETURNING code`, strings.Join(values, ", "))

		var got []string
		if err := tx.SelectContext(ctx, &got, query, args...); err != nil {
			return nil, fmt.Errorf("failed to insert activation codes: %w", err)
		}
		for _, code := range got {
			inserted[code] = true
		}
	}

	return inserted, nil
}

// GetCode retrieves an activation code
func (s *Store) GetCode(ctx context.Context, code string) (*models.ActivationCode, error) {
	var c models.ActivationCode
	err := s.db.GetContext(ctx, &c, "SELECT * FROM activation_codes WHERE code = $1", code)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// RedeemCode marks code used with a single conditional update. Expired codes
// never match. When the code belongs to a partner, the commission priced by
// price is stored in the same transaction. notes goes to the activity log.
func (s *Store) RedeemCode(ctx context.Context, code, memorialID, notes string, usedAt time.Time, price CommissionFunc) (*models.ActivationCode, *models.Commission, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	var redeemed models.ActivationCode
	err = tx.GetContext(ctx, &redeemed, `
		UPDATE activation_codes
		SET is_used = TRUE, used_at = $1, memorial_id = $2
		WHERE code = $3 AND is_used = FALSE AND (expires_at IS NULL OR expires_at > $1)
		RETURNING *`,
		usedAt, memorialID, code)
	if err == sql.ErrNoRows {
		return nil, nil, whyNotRedeemable(ctx, tx, code, usedAt)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to redeem code: %w", err)
	}

	var commission *models.Commission
	if redeemed.PartnerID != nil {
		var partner models.Partner
		err = tx.GetContext(ctx, &partner, "SELECT * FROM partners WHERE id = $1", *redeemed.PartnerID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load partner %s: %w", *redeemed.PartnerID, err)
		}

		commission = price(&redeemed, &partner)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO partner_commissions
				(id, partner_id, activation_code, order_value, commission_rate, commission_amount, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			commission.ID, commission.PartnerID, commission.ActivationCode, commission.OrderValue,
			commission.CommissionRate, commission.CommissionAmount, commission.Status, commission.CreatedAt)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create commission: %w", err)
		}
	}

	var note *string
	if notes != "" {
		note = &notes
	}
	err = insertActivities(ctx, tx, []models.CodeActivity{{
		Code:          redeemed.Code,
		ActivityType:  models.ActivityRedeemed,
		FromPartnerID: redeemed.PartnerID,
		Notes:         note,
		CreatedAt:     usedAt,
	}})
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return &redeemed, commission, nil
}

func whyNotRedeemable(ctx context.Context, tx *sqlx.Tx, code string, at time.Time) error {
	var c models.ActivationCode
	err := tx.GetContext(ctx, &c, "SELECT * FROM activation_codes WHERE code = $1", code)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if c.IsUsed {
		return ErrCodeUsed
	}
	if c.IsExpired(at) {
		return ErrCodeExpired
	}
	return fmt.Errorf("code %s was not redeemed", code)
}

// ListCodes returns one page of codes matching filter plus the total match count
func (s *Store) ListCodes(ctx context.Context, f models.CodeFilter) ([]models.ActivationCode, int, error) {
	var where []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch f.Status {
	case models.CodeStatusUsed:
		where = append(where, "is_used = TRUE")
	case models.CodeStatusUnused:
		where = append(where, "is_used = FALSE")
	case models.CodeStatusUnassigned:
		where = append(where, "is_used = FALSE AND partner_id IS NULL")
	}
	if f.Search != "" {
		// literal substring match; % and _ in the search carry no pattern meaning
		where = append(where, "strpos(upper(code), upper("+arg(f.Search)+")) > 0")
	}
	if f.PartnerID != "" {
		where = append(where, "partner_id = "+arg(f.PartnerID))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM activation_codes"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count codes: %w", err)
	}

	query := "SELECT * FROM activation_codes" + clause +
		" ORDER BY created_at DESC, code LIMIT " + arg(f.Limit) + " OFFSET " + arg(f.Offset)

	codes := []models.ActivationCode{}
	if err := s.db.SelectContext(ctx, &codes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list codes: %w", err)
	}
	return codes, total, nil
}

// DeleteUnusedCodes deletes the listed codes. If any of them is used nothing
// is deleted and ErrCodeUsed is returned.
func (s *Store) DeleteUnusedCodes(ctx context.Context, codes []string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var used int
	err = tx.GetContext(ctx, &used,
		"SELECT COUNT(*) FROM activation_codes WHERE code = ANY($1) AND is_used = TRUE", pq.Array(codes))
	if err != nil {
		return 0, err
	}
	if used > 0 {
		return 0, fmt.Errorf("%w: %d of the selected codes", ErrCodeUsed, used)
	}

	result, err := tx.ExecContext(ctx,
		"DELETE FROM activation_codes WHERE code = ANY($1) AND is_used = FALSE", pq.Array(codes))
	if err != nil {
		return 0, fmt.Errorf("failed to delete codes: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return deleted, tx.Commit()
}

// AssignCodes gives unassigned unused codes to partnerID
func (s *Store) AssignCodes(ctx context.Context, codes []string, partnerID string, now time.Time) (*models.AssignResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	assigned := []string{}
	err = tx.SelectContext(ctx, &assigned, `
		UPDATE activation_codes SET partner_id = $1
		WHERE code = ANY($2) AND partner_id IS NULL AND is_used = FALSE
		RETURNING code`,
		partnerID, pq.Array(codes))
	if err != nil {
		return nil, fmt.Errorf("failed to assign codes: %w", err)
	}

	var skipped []struct {
		Code   string `db:"code"`
		IsUsed bool   `db:"is_used"`
	}
	err = tx.SelectContext(ctx, &skipped,
		"SELECT code, is_used FROM activation_codes WHERE code = ANY($1) AND NOT (code = ANY($2))",
		pq.Array(codes), pq.Array(assigned))
	if err != nil {
		return nil, err
	}

	result := &models.AssignResult{Assigned: len(assigned)}
	for _, c := range skipped {
		if c.IsUsed {
			result.SkippedUsed++
		} else {
			result.SkippedAlreadyAssigned++
		}
	}
	result.NotFound = len(uniqueStrings(codes)) - result.Assigned - len(skipped)

	activities := make([]models.CodeActivity, len(assigned))
	for i, code := range assigned {
		activities[i] = models.CodeActivity{
			Code:             code,
			ActivityType:     models.ActivityAssigned,
			ToPartnerID:      &partnerID,
			PerformedByAdmin: true,
			CreatedAt:        now,
		}
	}
	if err := insertActivities(ctx, tx, activities); err != nil {
		return nil, err
	}

	return result, tx.Commit()
}

// UnassignCodes releases assigned unused codes back to the unassigned pool
func (s *Store) UnassignCodes(ctx context.Context, codes []string, now time.Time) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var released []struct {
		Code      string `db:"code"`
		PartnerID string `db:"partner_id"`
	}
	err = tx.SelectContext(ctx, &released, `
		WITH prev AS (
			SELECT code, partner_id FROM activation_codes
			WHERE code = ANY($1) AND partner_id IS NOT NULL AND is_used = FALSE
			FOR UPDATE
		)
		UPDATE activation_codes a SET partner_id = NULL
		FROM prev
		WHERE a.code = prev.code AND a.is_used = FALSE
		RETURNING a.code, prev.partner_id`,
		pq.Array(codes))
	if err != nil {
		return 0, fmt.Errorf("failed to unassign codes: %w", err)
	}

	activities := make([]models.CodeActivity, len(released))
	for i := range released {
		activities[i] = models.CodeActivity{
			Code:             released[i].Code,
			ActivityType:     models.ActivityUnassigned,
			FromPartnerID:    &released[i].PartnerID,
			PerformedByAdmin: true,
			CreatedAt:        now,
		}
	}
	if err := insertActivities(ctx, tx, activities); err != nil {
		return 0, err
	}

	return len(released), tx.Commit()
}

// TransferCodes moves unused codes owned by fromPartnerID to toPartnerID and
// returns the codes that moved. Used codes never match.
func (s *Store) TransferCodes(ctx context.Context, fromPartnerID, toPartnerID string, codes []string, notes string, now time.Time) ([]string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	moved := []string{}
	err = tx.SelectContext(ctx, &moved, `
		UPDATE activation_codes SET partner_id = $1
		WHERE code = ANY($2) AND partner_id = $3 AND is_used = FALSE
		RETURNING code`,
		toPartnerID, pq.Array(codes), fromPartnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to transfer codes: %w", err)
	}

	var note *string
	if notes != "" {
		note = &notes
	}
	activities := make([]models.CodeActivity, len(moved))
	for i, code := range moved {
		activities[i] = models.CodeActivity{
			Code:          code,
			ActivityType:  models.ActivityTransferred,
			FromPartnerID: &fromPartnerID,
			ToPartnerID:   &toPartnerID,
			Notes:         note,
			CreatedAt:     now,
		}
	}
	if err := insertActivities(ctx, tx, activities); err != nil {
		return nil, err
	}

	return moved, tx.Commit()
}

// ListActivity returns a code's history, oldest first
func (s *Store) ListActivity(ctx context.Context, code string) ([]models.CodeActivity, error) {
	activity := []models.CodeActivity{}
	err := s.db.SelectContext(ctx, &activity,
		"SELECT * FROM code_activity_log WHERE code = $1 ORDER BY created_at, id", code)
	return activity, err
}

func insertActivities(ctx context.Context, tx *sqlx.Tx, activities []models.CodeActivity) error {
	if len(activities) == 0 {
		return nil
	}

	values := make([]string, len(activities))
	args := make([]interface{}, 0, len(activities)*7)
	for i, a := range activities {
		values[i] = fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			i*7+1, i*7+2, i*7+3, i*7+4, i*7+5, i*7+6, i*7+7)
		args = append(args, a.Code, a.ActivityType, a.FromPartnerID, a.ToPartnerID, a.PerformedByAdmin, a.Notes, a.CreatedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO code_activity_log (code, activity_type, from_partner_id, to_partner_id, performed_by_admin, notes, created_at)
		VALUES %s`, strings.Join(values, ", "))

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record code activity: %w", err)
	}
	return nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
