package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActivationCode is a single-use code printed on a physical product
type ActivationCode struct {
	Code                 string      `db:"code" json:"code"`
	ProductType          ProductType `db:"product_type" json:"productType"`
	HostingDurationYears int         `db:"hosting_duration_years" json:"hostingDurationYears"`
	BatchID              *string     `db:"batch_id" json:"batchId,omitempty"`
	IsUsed               bool        `db:"is_used" json:"isUsed"`
	UsedAt               *time.Time  `db:"used_at" json:"usedAt,omitempty"`
	MemorialID           *string     `db:"memorial_id" json:"memorialId,omitempty"`
	PartnerID            *string     `db:"partner_id" json:"partnerId,omitempty"`
	CreatedAt            time.Time   `db:"created_at" json:"createdAt"`
	ExpiresAt            *time.Time  `db:"expires_at" json:"expiresAt,omitempty"`
}

// Variant returns the code's product variant
func (c *ActivationCode) Variant() Variant {
	return Variant{ProductType: c.ProductType, HostingDurationYears: c.HostingDurationYears}
}

// IsExpired reports whether an unused code can no longer be redeemed
func (c *ActivationCode) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// Batch is a named group of codes generated together
type Batch struct {
	ID                   string      `db:"id" json:"id"`
	Name                 string      `db:"name" json:"name"`
	ProductType          ProductType `db:"product_type" json:"productType"`
	HostingDurationYears int         `db:"hosting_duration_years" json:"hostingDurationYears"`
	TotalCodes           int         `db:"total_codes" json:"totalCodes"`
	PartnerID            *string     `db:"partner_id" json:"partnerId,omitempty"`
	CreatedAt            time.Time   `db:"created_at" json:"createdAt"`
}

// BatchSummary is a batch with member counts computed from current code rows
type BatchSummary struct {
	Batch
	UsedCodes   int `db:"used_codes" json:"usedCodes"`
	UnusedCodes int `db:"unused_codes" json:"unusedCodes"`
}

// DeletedCodes is the number of member codes removed from the batch since generation
func (b *BatchSummary) DeletedCodes() int {
	return b.TotalCodes - b.UsedCodes - b.UnusedCodes
}

// Code statuses accepted by listings
const (
	CodeStatusAll        = "all"
	CodeStatusUsed       = "used"
	CodeStatusUnused     = "unused"
	CodeStatusUnassigned = "unassigned"
)

// CodeFilter narrows code listings
type CodeFilter struct {
	Status    string
	Search    string
	PartnerID string
	Limit     int
	Offset    int
}

// Code activity types
const (
	ActivityAssigned    = "assigned"
	ActivityUnassigned  = "unassigned"
	ActivityTransferred = "transferred"
	ActivityRedeemed    = "redeemed"
)

// CodeActivity is one row of a code's history
type CodeActivity struct {
	ID               string    `db:"id" json:"id"`
	Code             string    `db:"code" json:"code"`
	ActivityType     string    `db:"activity_type" json:"activityType"`
	FromPartnerID    *string   `db:"from_partner_id" json:"fromPartnerId,omitempty"`
	ToPartnerID      *string   `db:"to_partner_id" json:"toPartnerId,omitempty"`
	PerformedByAdmin bool      `db:"performed_by_admin" json:"performedByAdmin"`
	Notes            *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

// Partner is a reseller business account
type Partner struct {
	ID             string          `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	ContactEmail   string          `db:"contact_email" json:"contactEmail"`
	CommissionRate decimal.Decimal `db:"commission_rate" json:"commissionRate"`
	IsActive       bool            `db:"is_active" json:"isActive"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
}

// AssignResult reports what a bulk assignment did to each requested code
type AssignResult struct {
	Assigned               int `json:"assigned"`
	SkippedAlreadyAssigned int `json:"skippedAlreadyAssigned"`
	SkippedUsed            int `json:"skippedUsed"`
	NotFound               int `json:"notFound"`
}
