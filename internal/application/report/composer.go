package report

import (
	"fmt"

	"github.com/kirana/posreport/internal/domain/report"
)

// ReportTemplate is the template name the composer renders
const ReportTemplate = "report.html"

// Messages that replace the product table
const (
	EmptyPeriodMessage     = "No sales recorded for this period."
	NoReadableItemsMessage = "No product details could be read for the sales in this period."
)

// Renderer turns a named template and view data into HTML
type Renderer interface {
	Render(name string, data any) (string, error)
}

// ComposerConfig holds the presentation settings of a report
type ComposerConfig struct {
	ShopName string
	Currency report.Currency
}

// Composer builds the notifier message from a finished report
type Composer struct {
	renderer Renderer
	config   ComposerConfig
}

// NewComposer creates a Composer
func NewComposer(renderer Renderer, cfg ComposerConfig) *Composer {
	if cfg.Currency.Symbol == "" {
		cfg.Currency = report.NewCurrency("")
	}
	return &Composer{renderer: renderer, config: cfg}
}

// ProductRow is one line of the product table
type ProductRow struct {
	Rank     int
	Name     string
	Quantity int64
	Revenue  string
}

// ReportView is the data passed to the report template
type ReportView struct {
	ShopName       string
	KindTitle      string
	PeriodLabel    string
	TotalBills     int
	TotalRevenue   string
	ItemsSold      int64
	Ranked         bool
	Rows           []ProductRow
	Empty          bool
	EmptyMessage   string
	AttachmentName string
	SkippedRecords int
	Footer         string
}

// Subject returns the message subject for a period
func Subject(period report.Period) string {
	switch period.Kind {
	case report.KindMonthly:
		return "Monthly Report: " + period.Label
	default:
		return fmt.Sprintf("%s Sales Report - %s", period.Kind.Title(), period.Label)
	}
}

// View builds the template data. Monthly reports show the ranked top sellers,
// other kinds list every product in encounter order.
func (c *Composer) View(r *report.Report, skipped int) ReportView {
	view := ReportView{
		ShopName:       c.config.ShopName,
		KindTitle:      string(r.Period.Kind),
		PeriodLabel:    r.Period.Label,
		TotalBills:     r.TransactionCount,
		TotalRevenue:   c.config.Currency.Format(r.TotalRevenue),
		ItemsSold:      r.ItemsSold,
		Empty:          r.IsEmpty(),
		EmptyMessage:   EmptyPeriodMessage,
		AttachmentName: r.Export.Filename,
		SkippedRecords: skipped,
		Footer:         fmt.Sprintf("Automated report from %s", c.config.ShopName),
	}

	entries := r.Products
	if r.Period.Kind == report.KindMonthly {
		view.Ranked = true
		entries = r.TopItems
	}

	view.Rows = make([]ProductRow, 0, len(entries))
	for i, e := range entries {
		row := ProductRow{
			Name:     e.Name,
			Quantity: e.QuantitySold,
			Revenue:  c.config.Currency.Format(e.Revenue),
		}
		if view.Ranked {
			row.Rank = i + 1
		}
		view.Rows = append(view.Rows, row)
	}
	if !view.Empty && len(view.Rows) == 0 {
		view.Empty = true
		view.EmptyMessage = NoReadableItemsMessage
	}
	return view
}

// Compose renders the report and packages it with its attachment
func (c *Composer) Compose(r *report.Report, skipped int, runID string) (report.Message, error) {
	body, err := c.renderer.Render(ReportTemplate, c.View(r, skipped))
	if err != nil {
		return report.Message{}, fmt.Errorf("rendering report body: %w", err)
	}

	msg := report.Message{
		Subject:  Subject(r.Period),
		HTMLBody: body,
		Period:   r.Period,
		RunID:    runID,
	}
	if r.Export.Filename != "" {
		msg.Attachments = []report.Attachment{r.Export}
	}
	return msg, nil
}
