package service

import (
	"context"
	"errors"
	"time"

	"memoriqr-service/internal/apperr"
	"memoriqr-service/internal/hosting"
	"memoriqr-service/internal/models"
	"memoriqr-service/internal/store"
	"memoriqr-service/internal/util"

	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// CodeCatalog answers admin queries about individual codes
type CodeCatalog struct {
	store  CatalogStore
	now    Clock
	logger *zap.Logger
}

// NewCodeCatalog creates a new code catalog
func NewCodeCatalog(store CatalogStore) *CodeCatalog {
	return &CodeCatalog{
		store:  store,
		now:    time.Now,
		logger: util.Component("catalog"),
	}
}

// CodePage is one page of a code listing
type CodePage struct {
	Codes  []models.ActivationCode `json:"codes"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

// CodeDetail is everything known about one code
type CodeDetail struct {
	Code     *models.ActivationCode `json:"code"`
	Partner  *models.Partner        `json:"partner,omitempty"`
	Activity []models.CodeActivity  `json:"activity"`
	Hosting  *hosting.Status        `json:"hosting,omitempty"`
	Expired  bool                   `json:"expired"`
}

// ListCodes returns one page of codes
func (c *CodeCatalog) ListCodes(ctx context.Context, f models.CodeFilter) (*CodePage, error) {
	ctx, span := util.StartSpan(ctx, "CodeCatalog.ListCodes")
	defer span.End()

	if err := normalizeCodeFilter(&f); err != nil {
		return nil, err
	}
	codes, total, err := c.store.ListCodes(ctx, f)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to list codes")
	}
	return &CodePage{Codes: codes, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// Lookup returns a code with its partner, history and hosting phase
func (c *CodeCatalog) Lookup(ctx context.Context, code string) (*CodeDetail, error) {
	ctx, span := util.StartSpan(ctx, "CodeCatalog.Lookup")
	defer span.End()

	code = NormalizeCode(code)
	if code == "" {
		return nil, apperr.Validation("code is required")
	}

	ac, err := c.store.GetCode(ctx, code)
	if err != nil {
		return nil, lookupErr(err, "activation code %s not found", code)
	}

	now := c.now().UTC()
	detail := &CodeDetail{Code: ac, Expired: !ac.IsUsed && ac.IsExpired(now)}

	if ac.PartnerID != nil {
		p, err := c.store.GetPartner(ctx, *ac.PartnerID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Dependency(err, "failed to load partner")
		}
		detail.Partner = p
	}

	detail.Activity, err = c.store.ListActivity(ctx, code)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to load code activity")
	}

	if ac.IsUsed && ac.UsedAt != nil {
		status := hosting.StatusAt(hosting.ExpiresAt(*ac.UsedAt, ac.HostingDurationYears), now)
		detail.Hosting = &status
	}
	return detail, nil
}

// DeleteCodes deletes unused codes. Nothing is deleted if any listed code is used.
func (c *CodeCatalog) DeleteCodes(ctx context.Context, codes []string) (int64, error) {
	ctx, span := util.StartSpan(ctx, "CodeCatalog.DeleteCodes")
	defer span.End()

	codes = normalizeCodes(codes)
	if len(codes) == 0 {
		return 0, apperr.Validation("codes are required")
	}

	deleted, err := c.store.DeleteUnusedCodes(ctx, codes)
	if errors.Is(err, store.ErrCodeUsed) {
		return 0, apperr.Conflict("refusing to delete: %v", err)
	}
	if err != nil {
		return 0, apperr.Dependency(err, "failed to delete codes")
	}

	c.logger.Info("Codes deleted", zap.Int("requested", len(codes)), zap.Int64("deleted", deleted))
	return deleted, nil
}

func normalizeCodeFilter(f *models.CodeFilter) error {
	switch f.Status {
	case "":
		f.Status = models.CodeStatusAll
	case models.CodeStatusAll, models.CodeStatusUsed, models.CodeStatusUnused, models.CodeStatusUnassigned:
	default:
		return apperr.Validation("status must be one of all, used, unused, unassigned")
	}
	if f.Limit == 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit < 0 || f.Limit > maxPageSize {
		return apperr.Validation("limit must be between 1 and %d", maxPageSize)
	}
	if f.Offset < 0 {
		return apperr.Validation("offset must not be negative")
	}
	return nil
}
