package models

import "time"

// SaleModel maps a row of the POS sales table.
// Total is read as text so a corrupt value can be skipped per row instead of
// failing the whole scan. Items holds the raw JSON line-item array.
type SaleModel struct {
	ID           string    `gorm:"primaryKey;type:text"`
	CreatedAt    time.Time `gorm:"not null;index"`
	CustomerName *string   `gorm:"type:text"`
	Total        *string   `gorm:"type:numeric"`
	Items        []byte    `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (SaleModel) TableName() string {
	return "sales"
}

// ProductModel maps a row of the products table with its stock batches
type ProductModel struct {
	ID           string            `gorm:"primaryKey;type:text"`
	Name         *string           `gorm:"type:text"`
	Barcode      *string           `gorm:"type:text"`
	Category     *string           `gorm:"type:text"`
	StockBatches []StockBatchModel `gorm:"foreignKey:ProductID;references:ID"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// StockBatchModel maps a row of the stock_batches table
type StockBatchModel struct {
	ID                string `gorm:"primaryKey;type:text"`
	ProductID         string `gorm:"type:text;not null;index"`
	QuantityRemaining int64  `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (StockBatchModel) TableName() string {
	return "stock_batches"
}
