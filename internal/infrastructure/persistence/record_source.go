package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kirana/posreport/internal/domain/report"
	"github.com/kirana/posreport/internal/infrastructure/logger"
	"github.com/kirana/posreport/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ensure RecordSource implements report.RecordSource
var _ report.RecordSource = (*RecordSource)(nil)

// DefaultQueryTimeout bounds each fetch when the caller's context has no deadline
const DefaultQueryTimeout = 30 * time.Second

// Query names attached to the statements each fetch issues
const (
	QuerySales    = "sales"
	QueryProducts = "products"
)

// lineItemRow is the JSON shape of one element of sales.items
type lineItemRow struct {
	ProductID string          `json:"product_id" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Quantity  int64           `json:"quantity" validate:"gte=1"`
	Price     decimal.Decimal `json:"price" validate:"gte=0"`
}

// RecordSource reads sales and product snapshots with GORM
type RecordSource struct {
	db       *gorm.DB
	validate *validator.Validate
	logger   *zap.Logger
	timeout  time.Duration
}

// RecordSourceOption is a functional option for configuring RecordSource
type RecordSourceOption func(*RecordSource)

// WithQueryTimeout overrides DefaultQueryTimeout
func WithQueryTimeout(d time.Duration) RecordSourceOption {
	return func(s *RecordSource) {
		s.timeout = d
	}
}

// WithSourceLogger sets the logger used for skipped rows
func WithSourceLogger(logger *zap.Logger) RecordSourceOption {
	return func(s *RecordSource) {
		s.logger = logger
	}
}

// NewRecordSource creates a RecordSource on db
func NewRecordSource(db *gorm.DB, opts ...RecordSourceOption) *RecordSource {
	s := &RecordSource{
		db:       db,
		validate: newItemValidator(),
		logger:   zap.NewNop(),
		timeout:  DefaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newItemValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Compare decimals numerically so gte works on prices
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// FetchSales returns the sales whose created_at falls inside period, oldest first.
// Rows with an unreadable total are skipped; rows with unreadable items are
// returned with ItemsMalformed set.
func (s *RecordSource) FetchSales(ctx context.Context, period report.Period) ([]report.SaleRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := s.db.WithContext(logger.WithQuery(ctx, QuerySales)).
		Model(&models.SaleModel{}).
		Where("created_at >= ?", period.Start)
	if !period.IsOpenEnded() {
		query = query.Where("created_at <= ?", period.End)
	}

	var rows []models.SaleModel
	if err := query.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: fetching sales for %s: %v", report.ErrDataUnavailable, period.Label, err)
	}

	sales := make([]report.SaleRecord, 0, len(rows))
	for i := range rows {
		sale, err := s.toSaleRecord(&rows[i])
		if err != nil {
			s.logger.Warn("Skipping sale record",
				zap.String("sale_id", rows[i].ID),
				zap.Error(err),
			)
			continue
		}
		sales = append(sales, sale)
	}
	return sales, nil
}

// FetchProducts returns every product with its stock batches, ordered by name
func (s *RecordSource) FetchProducts(ctx context.Context) ([]report.ProductSnapshot, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var rows []models.ProductModel
	err := s.db.WithContext(logger.WithQuery(ctx, QueryProducts)).
		Preload("StockBatches", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Order("name ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: fetching products: %v", report.ErrDataUnavailable, err)
	}

	products := make([]report.ProductSnapshot, len(rows))
	for i, row := range rows {
		products[i] = toProductSnapshot(row)
	}
	return products, nil
}

func (s *RecordSource) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *RecordSource) toSaleRecord(m *models.SaleModel) (report.SaleRecord, error) {
	if m.Total == nil {
		return report.SaleRecord{}, fmt.Errorf("%w: total is null", report.ErrMalformedRecord)
	}
	total, err := decimal.NewFromString(strings.TrimSpace(*m.Total))
	if err != nil {
		return report.SaleRecord{}, fmt.Errorf("%w: total %q: %v", report.ErrMalformedRecord, *m.Total, err)
	}

	sale := report.SaleRecord{
		ID:           m.ID,
		CreatedAt:    m.CreatedAt,
		CustomerName: m.CustomerName,
		Total:        total,
	}

	items, err := s.decodeItems(m.Items)
	if err != nil {
		s.logger.Warn("Sale items unreadable, counting sale without items",
			zap.String("sale_id", m.ID),
			zap.Error(err),
		)
		sale.ItemsMalformed = true
		return sale, nil
	}
	sale.Items = items
	return sale, nil
}

func (s *RecordSource) decodeItems(raw []byte) ([]report.LineItem, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("items payload is empty")
	}

	var rows []lineItemRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("items payload is not a line item array: %w", err)
	}

	items := make([]report.LineItem, len(rows))
	for i, row := range rows {
		if err := s.validate.Struct(row); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items[i] = report.LineItem{
			ProductID: row.ProductID,
			Name:      row.Name,
			Quantity:  row.Quantity,
			UnitPrice: row.Price,
		}
	}
	return items, nil
}

func toProductSnapshot(m models.ProductModel) report.ProductSnapshot {
	p := report.ProductSnapshot{
		ID:       m.ID,
		Name:     m.Name,
		Barcode:  m.Barcode,
		Category: m.Category,
	}
	if len(m.StockBatches) > 0 {
		p.StockBatches = make([]report.StockBatch, len(m.StockBatches))
		for i, b := range m.StockBatches {
			p.StockBatches[i] = report.StockBatch{QuantityRemaining: b.QuantityRemaining}
		}
	}
	return p
}
