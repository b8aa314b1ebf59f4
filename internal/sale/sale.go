// Package sale defines the normalized sale record and its closed enumerations.
package sale

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"salesetl/pkg/records"
)

// Category discriminates the four independently ingested sale types.
type Category string

const (
	Marketplace Category = "marketplace"
	Storefront  Category = "storefront"
	Distributor Category = "distributor"
	Direct      Category = "direct"
)

// Categories lists every valid category.
var Categories = []Category{Marketplace, Storefront, Distributor, Direct}

// ParseCategory accepts a category name in any case, ignoring surrounding
// whitespace. The empty string is rejected.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range Categories {
		if c == k {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown sale category %q", s)
}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	_, err := ParseCategory(string(c))
	return err == nil
}

// Record is one normalized sale. Optional fields are nil when the source row
// did not carry a usable value.
type Record struct {
	Category Category `json:"category"`

	OrderID  *string `json:"order_id,omitempty"`
	ItemCode *string `json:"item_code,omitempty"`
	ISBN     *string `json:"isbn,omitempty"`

	SaleDate *time.Time `json:"sale_date,omitempty"`
	Month    *int       `json:"month,omitempty"`
	Year     *int       `json:"year,omitempty"`

	Title         *string `json:"title,omitempty"`
	Author        *string `json:"author,omitempty"`
	Publisher     *string `json:"publisher,omitempty"`
	CategoryLabel *string `json:"category_label,omitempty"`

	Quantity *int64           `json:"quantity,omitempty"`
	Rate     *decimal.Decimal `json:"rate,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Discount *decimal.Decimal `json:"discount,omitempty"`
	Tax      *decimal.Decimal `json:"tax,omitempty"`
	Shipping *decimal.Decimal `json:"shipping,omitempty"`

	PaymentMode PaymentMode `json:"payment_mode"`
	OrderStatus OrderStatus `json:"order_status"`

	CustomerName   *string `json:"customer_name,omitempty"`
	CustomerEmail  *string `json:"customer_email,omitempty"`
	CustomerMobile *string `json:"customer_mobile,omitempty"`

	RowHash    string      `json:"row_hash"`
	RawPayload records.Row `json:"raw_payload"`

	ImportID    string    `json:"import_id,omitempty"`
	SourceSheet string    `json:"source_sheet,omitempty"`
	ImportedAt  time.Time `json:"imported_at"`
}

// Str dereferences an optional string, returning "" for nil.
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
