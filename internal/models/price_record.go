package models

import "time"

// PriceRecord is one normalized price observation. Instances are built once by the
// normalizer and handed to persistence as values; stored rows are never shared with them.
type PriceRecord struct {
	Date         string `json:"date"` // YYYY-MM-DD
	CategoryCode string `json:"category_code"`
	CategoryName string `json:"category_name"`
	ItemCode     string `json:"item_code"`
	ItemName     string `json:"item_name"`
	KindCode     string `json:"kind_code"`
	KindName     string `json:"kind_name"`
	RankLabel    string `json:"rank_label"`
	RankCode     string `json:"rank_code"`
	Unit         string `json:"unit"`
	Price        *int64 `json:"price"` // nil when the source had no price
	MarketName   string `json:"market_name"`
}

// PriceKey identifies one observation across every storage backend.
type PriceKey struct {
	Date       string
	ItemCode   string
	KindCode   string
	RankCode   string
	MarketName string
}

// Key returns the deduplication key of the record.
func (r PriceRecord) Key() PriceKey {
	return PriceKey{
		Date:       r.Date,
		ItemCode:   r.ItemCode,
		KindCode:   r.KindCode,
		RankCode:   r.RankCode,
		MarketName: r.MarketName,
	}
}

// HasPrice reports whether the record carries a real price.
func (r PriceRecord) HasPrice() bool {
	return r.Price != nil
}

// PriceRow is the stored form of a PriceRecord.
type PriceRow struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Date         string    `json:"date" gorm:"size:10;not null;uniqueIndex:idx_prices_key,priority:1;index"`
	CategoryCode string    `json:"category_code" gorm:"size:32;index"`
	CategoryName string    `json:"category_name" gorm:"size:100"`
	ItemCode     string    `json:"item_code" gorm:"size:32;not null;uniqueIndex:idx_prices_key,priority:2;index"`
	ItemName     string    `json:"item_name" gorm:"size:200;not null;index"`
	KindCode     string    `json:"kind_code" gorm:"size:32;not null;default:'';uniqueIndex:idx_prices_key,priority:3"`
	KindName     string    `json:"kind_name" gorm:"size:200"`
	RankLabel    string    `json:"rank_label" gorm:"size:100"`
	RankCode     string    `json:"rank_code" gorm:"size:32;not null;default:'';uniqueIndex:idx_prices_key,priority:4"`
	Unit         string    `json:"unit" gorm:"size:100"`
	Price        *int64    `json:"price"`
	MarketName   string    `json:"market_name" gorm:"size:100;not null;default:'';uniqueIndex:idx_prices_key,priority:5"`
	CreatedAt    time.Time `json:"created_at"`
}

func (PriceRow) TableName() string {
	return "prices"
}

// FromRecord copies a record into a fresh row.
func FromRecord(r PriceRecord) PriceRow {
	row := PriceRow{
		Date:         r.Date,
		CategoryCode: r.CategoryCode,
		CategoryName: r.CategoryName,
		ItemCode:     r.ItemCode,
		ItemName:     r.ItemName,
		KindCode:     r.KindCode,
		KindName:     r.KindName,
		RankLabel:    r.RankLabel,
		RankCode:     r.RankCode,
		Unit:         r.Unit,
		MarketName:   r.MarketName,
	}
	if r.Price != nil {
		p := *r.Price
		row.Price = &p
	}
	return row
}

// Record converts the row back to its canonical form.
func (row PriceRow) Record() PriceRecord {
	rec := PriceRecord{
		Date:         row.Date,
		CategoryCode: row.CategoryCode,
		CategoryName: row.CategoryName,
		ItemCode:     row.ItemCode,
		ItemName:     row.ItemName,
		KindCode:     row.KindCode,
		KindName:     row.KindName,
		RankLabel:    row.RankLabel,
		RankCode:     row.RankCode,
		Unit:         row.Unit,
		MarketName:   row.MarketName,
	}
	if row.Price != nil {
		p := *row.Price
		rec.Price = &p
	}
	return rec
}

// Product is one entry of the item universe discovered from the latest sales list.
type Product struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	CategoryCode string `json:"category_code"`
	CategoryName string `json:"category_name"`
	Unit         string `json:"unit"`
}
