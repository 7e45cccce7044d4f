package report

import (
	"github.com/shopspring/decimal"
)

// AggregateEntry holds the quantity sold and revenue of one product over a period
type AggregateEntry struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	QuantitySold int64           `json:"quantity_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// ProductTotals is an insertion-ordered map of product ID to AggregateEntry.
// Iteration follows the order in which products were first encountered.
type ProductTotals struct {
	order   []string
	entries map[string]*AggregateEntry
}

// NewProductTotals creates an empty ProductTotals
func NewProductTotals() *ProductTotals {
	return &ProductTotals{
		entries: make(map[string]*AggregateEntry),
	}
}

// Add accumulates one line item. The entry is created on first sight using the
// item's name; later items for the same product keep the first name.
func (t *ProductTotals) Add(item LineItem) {
	entry, ok := t.entries[item.ProductID]
	if !ok {
		entry = &AggregateEntry{
			ProductID: item.ProductID,
			Name:      item.Name,
			Revenue:   decimal.Zero,
		}
		t.entries[item.ProductID] = entry
		t.order = append(t.order, item.ProductID)
	}
	entry.QuantitySold += item.Quantity
	entry.Revenue = entry.Revenue.Add(item.Subtotal())
}

// Get returns a copy of the entry for productID
func (t *ProductTotals) Get(productID string) (AggregateEntry, bool) {
	entry, ok := t.entries[productID]
	if !ok {
		return AggregateEntry{}, false
	}
	return *entry, true
}

// Len returns the number of distinct products
func (t *ProductTotals) Len() int {
	return len(t.order)
}

// Entries returns copies of all entries in encounter order
func (t *ProductTotals) Entries() []AggregateEntry {
	out := make([]AggregateEntry, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.entries[id])
	}
	return out
}

// Aggregation is the result of folding a period's sales
type Aggregation struct {
	Products         *ProductTotals
	TotalRevenue     decimal.Decimal
	TransactionCount int
	ItemsSold        int64

	// SkippedItemRecords lists sale IDs whose items were malformed and left
	// out of the product totals.
	SkippedItemRecords []string
}

// Aggregate folds sales into per-product totals.
//
// TotalRevenue is the sum of each sale's Total, not of its line items. Records
// with malformed items still count towards TotalRevenue and TransactionCount.
// The input is assumed to be already restricted to the report period.
func Aggregate(sales []SaleRecord) *Aggregation {
	agg := &Aggregation{
		Products:     NewProductTotals(),
		TotalRevenue: decimal.Zero,
	}

	for _, sale := range sales {
		agg.TransactionCount++
		agg.TotalRevenue = agg.TotalRevenue.Add(sale.Total)

		if sale.ItemsMalformed {
			agg.SkippedItemRecords = append(agg.SkippedItemRecords, sale.ID)
			continue
		}
		for _, item := range sale.Items {
			agg.Products.Add(item)
			agg.ItemsSold += item.Quantity
		}
	}

	return agg
}

// IsEmpty reports whether no sales were aggregated
func (a *Aggregation) IsEmpty() bool {
	return a.TransactionCount == 0
}
