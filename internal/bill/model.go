// Package bill holds the line-item data model and the deterministic
// post-processing applied to model output: duplicate merging, quantity
// correction and subtotal computation.
package bill

import (
	"math"
	"strings"
)

// PageType classifies the role of a bill page.
type PageType string

const (
	PageTypeBillDetail PageType = "Bill Detail"
	PageTypeFinalBill  PageType = "Final Bill"
	PageTypePharmacy   PageType = "Pharmacy"
)

// DefaultPageNo is used when a page has no number.
const DefaultPageNo = "1"

// PageTypes lists the accepted page types.
var PageTypes = []PageType{PageTypeBillDetail, PageTypeFinalBill, PageTypePharmacy}

// ParsePageType maps model output to a known type, case-insensitively.
// Anything unrecognized becomes Bill Detail.
func ParsePageType(s string) PageType {
	s = strings.TrimSpace(s)
	for _, pt := range PageTypes {
		if strings.EqualFold(s, string(pt)) {
			return pt
		}
	}
	return PageTypeBillDetail
}

// Item is one billed line.
type Item struct {
	Name     string  `json:"item_name" yaml:"item_name"`
	Amount   float64 `json:"item_amount" yaml:"item_amount"`
	Rate     float64 `json:"item_rate" yaml:"item_rate"`
	Quantity float64 `json:"item_quantity" yaml:"item_quantity"`
}

// Page is the extracted content of one physical page.
type Page struct {
	PageNo   string   `json:"page_no" yaml:"page_no"`
	PageType PageType `json:"page_type" yaml:"page_type"`
	Items    []Item   `json:"bill_items" yaml:"bill_items"`
	Subtotal float64  `json:"page_subtotal" yaml:"page_subtotal"`
}

// Document is the final structured result for a bill.
type Document struct {
	Pages            []Page  `json:"pagewise_line_items" yaml:"pagewise_line_items"`
	TotalItemCount   int     `json:"total_item_count" yaml:"total_item_count"`
	FinalTotalAmount float64 `json:"final_total_amount" yaml:"final_total_amount"`
}

// TokenUsage accumulates model token counters across calls.
type TokenUsage struct {
	Total  int64 `json:"total" yaml:"total"`
	Input  int64 `json:"input" yaml:"input"`
	Output int64 `json:"output" yaml:"output"`
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.Total += other.Total
	u.Input += other.Input
	u.Output += other.Output
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
