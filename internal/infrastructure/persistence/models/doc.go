// Package models contains GORM persistence models for the tables the POS
// application writes. The report engine only reads them; mapping to domain
// types happens in the record source.
package models
