package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kirana/posreport/internal/domain/report"
)

// ExportMode selects which CSV is attached to a report
type ExportMode string

const (
	ExportLedger    ExportMode = "ledger"
	ExportInventory ExportMode = "inventory"
)

// ParseExportMode converts a configuration value into an ExportMode
func ParseExportMode(s string) (ExportMode, error) {
	switch ExportMode(strings.ToLower(strings.TrimSpace(s))) {
	case ExportLedger:
		return ExportLedger, nil
	case ExportInventory:
		return ExportInventory, nil
	default:
		return "", fmt.Errorf("unknown export mode %q", s)
	}
}

// Header rows
const (
	LedgerHeader    = "Date,Customer,Total,Items Sold"
	InventoryHeader = "Name,Barcode,Category,Stock"

	// EmptyLedgerRow is written when a ledger has no sales
	EmptyLedgerRow = "No sales data found for this period,,,"

	csvContentType = "text/csv; charset=utf-8"
)

// DefaultDateLayout renders ledger dates as M/D/YYYY
const DefaultDateLayout = "1/2/2006"

// Exporter renders sales and products as comma-delimited text.
// Fields are never quoted: free text is normalized by SanitizeField instead.
type Exporter struct {
	dateLayout string
	location   *time.Location
}

// NewExporter creates an Exporter. Empty layout and nil location fall back
// to DefaultDateLayout and UTC.
func NewExporter(dateLayout string, loc *time.Location) *Exporter {
	if dateLayout == "" {
		dateLayout = DefaultDateLayout
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Exporter{dateLayout: dateLayout, location: loc}
}

// Ledger renders one row per sale: date, customer, total and item count
func (e *Exporter) Ledger(sales []report.SaleRecord) []byte {
	var b strings.Builder
	writeRow(&b, LedgerHeader)

	if len(sales) == 0 {
		writeRow(&b, EmptyLedgerRow)
		return []byte(b.String())
	}

	for _, s := range sales {
		writeRow(&b,
			s.CreatedAt.In(e.location).Format(e.dateLayout),
			SanitizeField(s.Customer()),
			report.FormatAmount(s.Total),
			strconv.Itoa(s.ItemCount()),
		)
	}
	return []byte(b.String())
}

// Inventory renders one row per product: name, barcode, category and total
// stock. Products without a name are left out; their IDs are returned so the
// caller can log them.
func (e *Exporter) Inventory(products []report.ProductSnapshot) ([]byte, []string) {
	var b strings.Builder
	writeRow(&b, InventoryHeader)

	var skipped []string
	for _, p := range products {
		if p.Name == nil || strings.TrimSpace(*p.Name) == "" {
			skipped = append(skipped, p.ID)
			continue
		}
		writeRow(&b,
			SanitizeField(*p.Name),
			SanitizeField(p.BarcodeOrDefault()),
			SanitizeField(p.CategoryOrDefault()),
			strconv.FormatInt(p.TotalStock(), 10),
		)
	}
	return []byte(b.String()), skipped
}

// LedgerAttachment wraps a rendered ledger as Sales_<label>.csv
func LedgerAttachment(period report.Period, content []byte) report.Attachment {
	return report.Attachment{
		Filename:    LedgerFilename(period),
		ContentType: csvContentType,
		Content:     content,
	}
}

// InventoryAttachment wraps a rendered snapshot as Inventory_<label>.csv
func InventoryAttachment(period report.Period, content []byte) report.Attachment {
	return report.Attachment{
		Filename:    InventoryFilename(period),
		ContentType: csvContentType,
		Content:     content,
	}
}

// LedgerFilename returns the ledger attachment name for period
func LedgerFilename(period report.Period) string {
	return "Sales_" + period.FileLabel() + ".csv"
}

// InventoryFilename returns the inventory attachment name for period
func InventoryFilename(period report.Period) string {
	return "Inventory_" + period.FileLabel() + ".csv"
}

var fieldReplacer = strings.NewReplacer(",", "", "\r\n", " ", "\r", " ", "\n", " ")

// SanitizeField removes commas and replaces line breaks with a space
func SanitizeField(s string) string {
	return fieldReplacer.Replace(s)
}

func writeRow(b *strings.Builder, fields ...string) {
	b.WriteString(strings.Join(fields, ","))
	b.WriteByte('\n')
}
