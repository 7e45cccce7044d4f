package report

import (
	"context"

	"github.com/shopspring/decimal"
)

// Attachment is a named file delivered alongside the report body
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Report is the assembled result of one run. It is built once per invocation
// and never persisted.
type Report struct {
	Period           Period
	TotalRevenue     decimal.Decimal
	TransactionCount int
	ItemsSold        int64

	// Products lists every product sold, in encounter order
	Products []AggregateEntry
	// TopItems is the ranked top-seller view
	TopItems []AggregateEntry

	Export Attachment
}

// IsEmpty reports whether the period had no sales
func (r *Report) IsEmpty() bool {
	return r.TransactionCount == 0
}

// Message is what a Notifier delivers
type Message struct {
	Subject     string
	HTMLBody    string
	Attachments []Attachment

	// Period and RunID identify the run; channels that store reports key on them
	Period Period
	RunID  string
}

// RecordSource provides the sales and inventory data a report is built from.
// Implementations return an error wrapping ErrDataUnavailable when the store
// cannot be read.
type RecordSource interface {
	// FetchSales returns the sales created within the period, oldest first
	FetchSales(ctx context.Context, period Period) ([]SaleRecord, error)

	// FetchProducts returns the current inventory snapshot of every product
	FetchProducts(ctx context.Context) ([]ProductSnapshot, error)
}

// Notifier delivers a composed report
type Notifier interface {
	Deliver(ctx context.Context, msg Message) error
}
