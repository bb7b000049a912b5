package models

import "time"

// Event types
const (
	EventTypeCodesGenerated     = "CODES_GENERATED"
	EventTypeCodeRedeemed       = "CODE_REDEEMED"
	EventTypeCodesTransferred   = "CODES_TRANSFERRED"
	EventTypeStockLow           = "STOCK_LOW"
	EventTypeCommissionApproved = "COMMISSION_APPROVED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CodesGeneratedEvent published when a batch of codes is created
type CodesGeneratedEvent struct {
	BaseEvent
	BatchID   string  `json:"batch_id"`
	BatchName string  `json:"batch_name"`
	Variant   string  `json:"variant"`
	Quantity  int     `json:"quantity"`
	PartnerID *string `json:"partner_id,omitempty"`
}

// CodeRedeemedEvent published when a customer activates a code
type CodeRedeemedEvent struct {
	BaseEvent
	Code             string    `json:"code"`
	MemorialID       string    `json:"memorial_id"`
	Variant          string    `json:"variant"`
	PartnerID        *string   `json:"partner_id,omitempty"`
	CommissionID     *string   `json:"commission_id,omitempty"`
	HostingExpiresAt time.Time `json:"hosting_expires_at"`
}

// CodesTransferredEvent published when codes move between partner accounts
type CodesTransferredEvent struct {
	BaseEvent
	FromPartnerID string   `json:"from_partner_id"`
	ToPartnerID   string   `json:"to_partner_id"`
	Codes         []string `json:"codes"`
}

// StockLowEvent published when available stock drops to the alert threshold
type StockLowEvent struct {
	BaseEvent
	ItemID            string  `json:"item_id"`
	ProductType       string  `json:"product_type"`
	Variant           *string `json:"variant,omitempty"`
	QuantityAvailable int     `json:"quantity_available"`
	LowStockThreshold int     `json:"low_stock_threshold"`
	SupplierName      *string `json:"supplier_name,omitempty"`
}

// CommissionApprovedEvent published for each commission approved for payout
type CommissionApprovedEvent struct {
	BaseEvent
	CommissionID   string `json:"commission_id"`
	PartnerID      string `json:"partner_id"`
	ActivationCode string `json:"activation_code"`
	Amount         string `json:"amount"`
}
