// Package notify turns domain events into email workflow payloads.
package notify

import (
	"fmt"
	"strings"
	"time"
)

type Kind string

const (
	KindCodesGenerated     Kind = "codes_generated"
	KindCodeRedeemed       Kind = "code_redeemed"
	KindCodesTransferred   Kind = "codes_transferred"
	KindLowStockAlert      Kind = "low_stock_alert"
	KindCommissionApproved Kind = "commission_approved"
)

// Notification is one email-worthy occurrence. The implementations below are
// the complete set; Payload handles each of them.
type Notification interface {
	Kind() Kind
	sealed()
}

type CodesGenerated struct {
	BatchID   string
	BatchName string
	Variant   string
	Quantity  int
	PartnerID string
}

type CodeRedeemed struct {
	Code             string
	MemorialID       string
	Variant          string
	PartnerID        string
	HostingExpiresAt time.Time
}

type CodesTransferred struct {
	FromPartnerID string
	ToPartnerID   string
	Codes         []string
}

type LowStockAlert struct {
	ProductType       string
	Variant           *string
	QuantityAvailable int
	LowStockThreshold int
	SupplierName      *string
}

type CommissionApproved struct {
	CommissionID   string
	PartnerID      string
	ActivationCode string
	Amount         string
}

func (CodesGenerated) Kind() Kind     { return KindCodesGenerated }
func (CodeRedeemed) Kind() Kind       { return KindCodeRedeemed }
func (CodesTransferred) Kind() Kind   { return KindCodesTransferred }
func (LowStockAlert) Kind() Kind      { return KindLowStockAlert }
func (CommissionApproved) Kind() Kind { return KindCommissionApproved }

func (CodesGenerated) sealed()     {}
func (CodeRedeemed) sealed()       {}
func (CodesTransferred) sealed()   {}
func (LowStockAlert) sealed()      {}
func (CommissionApproved) sealed() {}

// Payload builds the webhook body the email workflow switches on
func Payload(n Notification) (map[string]interface{}, error) {
	body := map[string]interface{}{"type": n.Kind()}

	switch v := n.(type) {
	case CodesGenerated:
		body["batch_id"] = v.BatchID
		body["batch_name"] = v.BatchName
		body["variant"] = v.Variant
		body["quantity"] = v.Quantity
		if v.PartnerID != "" {
			body["partner_id"] = v.PartnerID
		}
	case CodeRedeemed:
		body["code"] = v.Code
		body["memorial_id"] = v.MemorialID
		body["variant"] = v.Variant
		body["hosting_expires_at"] = v.HostingExpiresAt.UTC().Format(time.RFC3339)
		if v.PartnerID != "" {
			body["partner_id"] = v.PartnerID
		}
	case CodesTransferred:
		body["from_partner_id"] = v.FromPartnerID
		body["to_partner_id"] = v.ToPartnerID
		body["quantity"] = len(v.Codes)
		body["codes_list"] = strings.Join(v.Codes, "\n")
	case LowStockAlert:
		body["item"] = map[string]interface{}{
			"product_type":        v.ProductType,
			"variant":             v.Variant,
			"quantity_available":  v.QuantityAvailable,
			"low_stock_threshold": v.LowStockThreshold,
			"supplier_name":       v.SupplierName,
		}
	case CommissionApproved:
		body["commission_id"] = v.CommissionID
		body["partner_id"] = v.PartnerID
		body["activation_code"] = v.ActivationCode
		body["amount"] = v.Amount
	default:
		return nil, fmt.Errorf("unsupported notification %T", n)
	}

	return body, nil
}
