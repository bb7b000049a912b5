package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CommissionStatus string

const (
	CommissionPending   CommissionStatus = "pending"
	CommissionApproved  CommissionStatus = "approved"
	CommissionPaid      CommissionStatus = "paid"
	CommissionCancelled CommissionStatus = "cancelled"
)

// Commission is a partner's share of a redeemed code's retail price
type Commission struct {
	ID               string           `db:"id" json:"id"`
	PartnerID        string           `db:"partner_id" json:"partnerId"`
	ActivationCode   string           `db:"activation_code" json:"activationCode"`
	OrderValue       decimal.Decimal  `db:"order_value" json:"orderValue"`
	CommissionRate   decimal.Decimal  `db:"commission_rate" json:"commissionRate"`
	CommissionAmount decimal.Decimal  `db:"commission_amount" json:"commissionAmount"`
	Status           CommissionStatus `db:"status" json:"status"`
	PayoutReference  *string          `db:"payout_reference" json:"payoutReference,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"createdAt"`
	ApprovedAt       *time.Time       `db:"approved_at" json:"approvedAt,omitempty"`
	PaidAt           *time.Time       `db:"paid_at" json:"paidAt,omitempty"`
}

// NewCommission prices a pending commission for code redeemed under partner.
// The amount is orderValue * rate / 100 rounded to cents.
func NewCommission(id string, code *ActivationCode, partner *Partner, now time.Time) *Commission {
	orderValue := code.Variant().RetailPrice()
	return &Commission{
		ID:               id,
		PartnerID:        partner.ID,
		ActivationCode:   code.Code,
		OrderValue:       orderValue,
		CommissionRate:   partner.CommissionRate,
		CommissionAmount: CommissionAmount(orderValue, partner.CommissionRate),
		Status:           CommissionPending,
		CreatedAt:        now,
	}
}

// CommissionAmount returns value * ratePercent / 100, rounded to cents
func CommissionAmount(value, ratePercent decimal.Decimal) decimal.Decimal {
	return value.Mul(ratePercent).Div(decimal.NewFromInt(100)).Round(2)
}

// CommissionFilter narrows commission listings
type CommissionFilter struct {
	PartnerID string
	Status    CommissionStatus
}
