package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type ProductType string

const (
	ProductNFCOnly ProductType = "nfc_only"
	ProductQROnly  ProductType = "qr_only"
	ProductBoth    ProductType = "both"
)

// Valid reports whether p is one of the sellable product types
func (p ProductType) Valid() bool {
	switch p {
	case ProductNFCOnly, ProductQROnly, ProductBoth:
		return true
	}
	return false
}

// HostingDurations lists the prepaid hosting terms, in years
var HostingDurations = []int{5, 10, 25}

var productLetters = map[ProductType]string{
	ProductNFCOnly: "N",
	ProductQROnly:  "Q",
	ProductBoth:    "B",
}

// retail prices in NZD, keyed by variant token
var retailPrices = map[string]int64{
	"5N": 89, "5Q": 79, "5B": 129,
	"10N": 149, "10Q": 129, "10B": 199,
	"25N": 249, "25Q": 199, "25B": 299,
}

// Variant is a duration x product-type combination, e.g. 10B
type Variant struct {
	ProductType          ProductType `json:"productType"`
	HostingDurationYears int         `json:"hostingDurationYears"`
}

// NewVariant validates a product type and duration pair
func NewVariant(productType ProductType, years int) (Variant, error) {
	v := Variant{ProductType: productType, HostingDurationYears: years}
	if !productType.Valid() {
		return Variant{}, fmt.Errorf("invalid product type %q", productType)
	}
	if !validDuration(years) {
		return Variant{}, fmt.Errorf("invalid hosting duration %d", years)
	}
	return v, nil
}

// ParseVariant parses a token such as "25N"
func ParseVariant(token string) (Variant, error) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if len(token) < 2 {
		return Variant{}, fmt.Errorf("invalid card variant %q", token)
	}

	years, err := strconv.Atoi(token[:len(token)-1])
	if err != nil {
		return Variant{}, fmt.Errorf("invalid card variant %q", token)
	}

	letter := token[len(token)-1:]
	for pt, l := range productLetters {
		if l == letter {
			v, err := NewVariant(pt, years)
			if err != nil {
				return Variant{}, fmt.Errorf("invalid card variant %q", token)
			}
			return v, nil
		}
	}
	return Variant{}, fmt.Errorf("invalid card variant %q", token)
}

// Token returns the short code used inside activation codes
func (v Variant) Token() string {
	return strconv.Itoa(v.HostingDurationYears) + productLetters[v.ProductType]
}

func (v Variant) String() string {
	return v.Token()
}

// RetailPrice is the shelf price commissions are computed from
func (v Variant) RetailPrice() decimal.Decimal {
	return decimal.NewFromInt(retailPrices[v.Token()])
}

// AllVariants lists every sellable variant
func AllVariants() []Variant {
	variants := make([]Variant, 0, len(HostingDurations)*3)
	for _, years := range HostingDurations {
		for _, pt := range []ProductType{ProductNFCOnly, ProductQROnly, ProductBoth} {
			variants = append(variants, Variant{ProductType: pt, HostingDurationYears: years})
		}
	}
	return variants
}

func validDuration(years int) bool {
	for _, d := range HostingDurations {
		if d == years {
			return true
		}
	}
	return false
}
