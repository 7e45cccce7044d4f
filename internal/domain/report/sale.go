package report

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is a single product line on a sale
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
}

// Subtotal returns quantity × unit price
func (i LineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
}

// SaleRecord is a point-of-sale transaction as returned by the record source.
// It is read-only once fetched.
type SaleRecord struct {
	ID           string          `json:"id"`
	CreatedAt    time.Time       `json:"created_at"`
	CustomerName *string         `json:"customer_name,omitempty"`
	Total        decimal.Decimal `json:"total"`
	Items        []LineItem      `json:"items"`

	// ItemsMalformed is set by the record source when the items payload was
	// absent or could not be decoded into valid line items. Such a record still
	// counts as a transaction but contributes no product totals.
	ItemsMalformed bool `json:"-"`
}

// Customer returns the customer name, or "Cash" for walk-in sales
func (s SaleRecord) Customer() string {
	if s.CustomerName == nil || *s.CustomerName == "" {
		return DefaultCustomer
	}
	return *s.CustomerName
}

// ItemCount returns the number of line items on the sale
func (s SaleRecord) ItemCount() int {
	if s.ItemsMalformed {
		return 0
	}
	return len(s.Items)
}

// StockBatch is one received batch of a product
type StockBatch struct {
	QuantityRemaining int64 `json:"quantity_remaining"`
}

// ProductSnapshot is the current inventory state of a product.
// Name is nil when the source row has no name.
type ProductSnapshot struct {
	ID           string       `json:"id"`
	Name         *string      `json:"name"`
	Barcode      *string      `json:"barcode,omitempty"`
	Category     *string      `json:"category,omitempty"`
	StockBatches []StockBatch `json:"stock_batches,omitempty"`
}

// TotalStock sums the remaining quantity across all batches.
// A product with no batches has zero stock.
func (p ProductSnapshot) TotalStock() int64 {
	var total int64
	for _, b := range p.StockBatches {
		total += b.QuantityRemaining
	}
	return total
}

// BarcodeOrDefault returns the barcode, or "N/A"
func (p ProductSnapshot) BarcodeOrDefault() string {
	if p.Barcode == nil || *p.Barcode == "" {
		return DefaultBarcode
	}
	return *p.Barcode
}

// CategoryOrDefault returns the category, or "General"
func (p ProductSnapshot) CategoryOrDefault() string {
	if p.Category == nil || *p.Category == "" {
		return DefaultCategory
	}
	return *p.Category
}

// Defaults used when optional fields are missing
const (
	DefaultCustomer = "Cash"
	DefaultBarcode  = "N/A"
	DefaultCategory = "General"
)
