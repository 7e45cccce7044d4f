package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/kirana/posreport/internal/domain/report"
	"github.com/kirana/posreport/internal/infrastructure/logger"
	"github.com/kirana/posreport/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRecordSourceTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.SaleModel{}, &models.ProductModel{}, &models.StockBatchModel{})
	require.NoError(t, err)

	return db
}

func strPtr(s string) *string {
	return &s
}

func insertSale(t *testing.T, db *gorm.DB, id string, at time.Time, total *string, items string) {
	t.Helper()
	var raw []byte
	if items != "" {
		raw = []byte(items)
	}
	require.NoError(t, db.Create(&models.SaleModel{
		ID:        id,
		CreatedAt: at,
		Total:     total,
		Items:     raw,
	}).Error)
}

func TestRecordSource_FetchSales(t *testing.T) {
	db := setupRecordSourceTestDB(t)
	ctx := context.Background()

	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	insertSale(t, db, "s-prev", day.Add(-time.Hour), strPtr("99"), `[]`)
	insertSale(t, db, "s1", day.Add(9*time.Hour), strPtr("150.00"),
		`[{"product_id":"A","name":"Atta","quantity":2,"price":50},{"product_id":"B","name":"Besan","quantity":1,"price":"50.00"}]`)
	insertSale(t, db, "s2", day.Add(11*time.Hour), strPtr("30"), `[{"product_id":"A","name":"Atta","quantity":1,"price":30}]`)

	require.NoError(t, db.Model(&models.SaleModel{}).Where("id = ?", "s2").
		Update("customer_name", "Anita").Error)

	source := NewRecordSource(db)

	t.Run("daily period is open ended from midnight", func(t *testing.T) {
		period, err := report.ResolvePeriod(day.Add(12*time.Hour), report.KindDaily, time.UTC)
		require.NoError(t, err)

		sales, err := source.FetchSales(ctx, period)
		require.NoError(t, err)
		require.Len(t, sales, 2)

		assert.Equal(t, "s1", sales[0].ID)
		assert.Equal(t, "150", sales[0].Total.String())
		require.Len(t, sales[0].Items, 2)
		assert.Equal(t, "Besan", sales[0].Items[1].Name)
		assert.Equal(t, "50", sales[0].Items[1].UnitPrice.String())
		assert.Equal(t, "Cash", sales[0].Customer())

		assert.Equal(t, "s2", sales[1].ID)
		assert.Equal(t, "Anita", sales[1].Customer())
	})

	t.Run("bounded period excludes rows after the end", func(t *testing.T) {
		period := report.Period{
			Kind:  report.KindMonthly,
			Start: day.Add(-2 * time.Hour),
			End:   day.Add(10 * time.Hour),
			Label: "test",
		}

		sales, err := source.FetchSales(ctx, period)
		require.NoError(t, err)
		require.Len(t, sales, 2)
		assert.Equal(t, "s-prev", sales[0].ID)
		assert.Equal(t, "s1", sales[1].ID)
		assert.Empty(t, sales[0].Items)
		assert.False(t, sales[0].ItemsMalformed)
	})

	t.Run("no rows is an empty result", func(t *testing.T) {
		period, err := report.ResolvePeriod(day.AddDate(0, 0, 3), report.KindDaily, time.UTC)
		require.NoError(t, err)

		sales, err := source.FetchSales(ctx, period)
		require.NoError(t, err)
		assert.Empty(t, sales)
	})
}

func TestRecordSource_FetchSales_MalformedRows(t *testing.T) {
	db := setupRecordSourceTestDB(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	insertSale(t, db, "null-items", day.Add(time.Hour), strPtr("10"), "")
	insertSale(t, db, "object-items", day.Add(2*time.Hour), strPtr("20"), `{"product_id":"A"}`)
	insertSale(t, db, "zero-qty", day.Add(3*time.Hour), strPtr("30"), `[{"product_id":"A","name":"Atta","quantity":0,"price":5}]`)
	insertSale(t, db, "no-name", day.Add(4*time.Hour), strPtr("40"), `[{"product_id":"A","quantity":1,"price":5}]`)
	insertSale(t, db, "negative-price", day.Add(5*time.Hour), strPtr("50"), `[{"product_id":"A","name":"Atta","quantity":1,"price":-1}]`)
	insertSale(t, db, "bad-total", day.Add(6*time.Hour), strPtr("abc"), `[]`)
	insertSale(t, db, "null-total", day.Add(7*time.Hour), nil, `[]`)

	core, recorded := observer.New(zapcore.WarnLevel)
	source := NewRecordSource(db, WithSourceLogger(zap.New(core)))

	period, err := report.ResolvePeriod(day.Add(12*time.Hour), report.KindDaily, time.UTC)
	require.NoError(t, err)

	sales, err := source.FetchSales(ctx, period)
	require.NoError(t, err)

	var ids []string
	for _, s := range sales {
		ids = append(ids, s.ID)
		assert.True(t, s.ItemsMalformed, s.ID)
		assert.Empty(t, s.Items, s.ID)
		assert.False(t, s.Total.IsZero(), s.ID)
	}
	assert.Equal(t, []string{"null-items", "object-items", "zero-qty", "no-name", "negative-price"}, ids)

	skipped := recorded.FilterMessage("Skipping sale record").All()
	require.Len(t, skipped, 2)
	assert.Equal(t, "bad-total", skipped[0].ContextMap()["sale_id"])
	assert.Equal(t, "null-total", skipped[1].ContextMap()["sale_id"])

	assert.Equal(t, 5, recorded.FilterMessage("Sale items unreadable, counting sale without items").Len())
}

func TestRecordSource_FetchProducts(t *testing.T) {
	db := setupRecordSourceTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.ProductModel{
		ID:       "p2",
		Name:     strPtr("Rice"),
		Barcode:  strPtr("890100"),
		Category: strPtr("Grains"),
		StockBatches: []models.StockBatchModel{
			{ID: "b1", QuantityRemaining: 5},
			{ID: "b2", QuantityRemaining: 7},
		},
	}).Error)
	require.NoError(t, db.Create(&models.ProductModel{ID: "p1", Name: strPtr("Dal")}).Error)
	require.NoError(t, db.Create(&models.ProductModel{ID: "p3"}).Error)

	source := NewRecordSource(db)
	products, err := source.FetchProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 3)

	byID := map[string]report.ProductSnapshot{}
	for _, p := range products {
		byID[p.ID] = p
	}

	assert.Equal(t, int64(12), byID["p2"].TotalStock())
	assert.Equal(t, "890100", byID["p2"].BarcodeOrDefault())
	assert.Equal(t, "Grains", byID["p2"].CategoryOrDefault())

	assert.Equal(t, int64(0), byID["p1"].TotalStock())
	assert.Equal(t, "N/A", byID["p1"].BarcodeOrDefault())
	assert.Equal(t, "General", byID["p1"].CategoryOrDefault())

	assert.Nil(t, byID["p3"].Name)
}

func TestRecordSource_QueryShape(t *testing.T) {
	t.Run("monthly period binds both bounds", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
		period, err := report.ResolvePeriod(now, report.KindMonthly, time.UTC)
		require.NoError(t, err)

		mock.ExpectQuery(`SELECT \* FROM "sales" WHERE created_at >= \$1 AND created_at <= \$2 ORDER BY created_at ASC, id ASC`).
			WithArgs(period.Start, period.End).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "customer_name", "total", "items"}).
				AddRow("s1", period.Start.Add(time.Hour), nil, "12.50", []byte(`[]`)))

		sales, err := NewRecordSource(db.DB).FetchSales(context.Background(), period)
		require.NoError(t, err)
		require.Len(t, sales, 1)
		assert.Equal(t, "12.5", sales[0].Total.String())

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query failure is data unavailable", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "sales"`).
			WillReturnError(errors.New("connection refused"))

		period, err := report.ResolvePeriod(time.Now(), report.KindDaily, time.UTC)
		require.NoError(t, err)

		_, err = NewRecordSource(db.DB).FetchSales(context.Background(), period)
		require.Error(t, err)
		assert.True(t, errors.Is(err, report.ErrDataUnavailable))
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("products failure is data unavailable", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "products" ORDER BY name ASC, id ASC`).
			WillReturnError(errors.New("permission denied"))

		_, err := NewRecordSource(db.DB).FetchProducts(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, report.ErrDataUnavailable))
	})
}

func TestRecordSource_WithTimeout(t *testing.T) {
	source := NewRecordSource(nil, WithQueryTimeout(time.Second))

	ctx, cancel := source.withTimeout(context.Background())
	defer cancel()
	_, ok := ctx.Deadline()
	assert.True(t, ok)

	parent, parentCancel := context.WithTimeout(context.Background(), time.Hour)
	defer parentCancel()
	ctx, cancel = source.withTimeout(parent)
	defer cancel()
	deadline, _ := ctx.Deadline()
	parentDeadline, _ := parent.Deadline()
	assert.Equal(t, parentDeadline, deadline)
}

func TestRecordSource_TagsQueries(t *testing.T) {
	db := setupRecordSourceTestDB(t)
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	insertSale(t, db, "s1", day.Add(time.Hour), strPtr("10"), `[]`)
	require.NoError(t, db.Create(&models.ProductModel{ID: "p1", Name: strPtr("Atta")}).Error)

	core, recorded := observer.New(zapcore.DebugLevel)
	db = db.Session(&gorm.Session{Logger: logger.NewQueryLogger(zap.New(core), logger.QueryLoggerConfig{Level: "debug"})})
	source := NewRecordSource(db)

	ctx, _ := logger.WithRunID(context.Background(), zap.NewNop(), "run-1")
	ctx, _ = logger.WithReportKind(ctx, zap.NewNop(), "daily")
	period, err := report.ResolvePeriod(day.Add(12*time.Hour), report.KindDaily, time.UTC)
	require.NoError(t, err)

	_, err = source.FetchSales(ctx, period)
	require.NoError(t, err)
	_, err = source.FetchProducts(ctx)
	require.NoError(t, err)

	byQuery := map[string]int{}
	for _, entry := range recorded.FilterMessage("Record source query").All() {
		fields := entry.ContextMap()
		assert.Equal(t, "run-1", fields["run_id"])
		assert.Equal(t, "daily", fields["report_kind"])
		byQuery[fields["query"].(string)]++
	}
	assert.Equal(t, 1, byQuery[QuerySales])
	// products and their preloaded stock batches
	assert.Equal(t, 2, byQuery[QueryProducts])
}
