package store

import (
	"context"
	"database/sql"

	"memoriqr-service/internal/models"
)

// CreatePartner creates a new partner
func (s *Store) CreatePartner(ctx context.Context, p *models.Partner) error {
	query := `
		INSERT INTO partners (id, name, contact_email, commission_rate, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	return s.db.GetContext(ctx, &p.CreatedAt, query,
		p.ID, p.Name, p.ContactEmail, p.CommissionRate, p.IsActive)
}

// GetPartner retrieves a partner by ID
func (s *Store) GetPartner(ctx context.Context, id string) (*models.Partner, error) {
	var p models.Partner
	err := s.db.GetContext(ctx, &p, "SELECT * FROM partners WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPartners retrieves all partners
func (s *Store) ListPartners(ctx context.Context) ([]models.Partner, error) {
	partners := []models.Partner{}
	err := s.db.SelectContext(ctx, &partners, "SELECT * FROM partners ORDER BY name")
	return partners, err
}
