package models

import "time"

// MonthlyTrendPoint stores the monthly max/min price of an item.
type MonthlyTrendPoint struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	ItemCode    string    `json:"item_code" gorm:"size:32;not null;uniqueIndex:idx_monthly_key,priority:1;index"`
	YearMonth   string    `json:"year_month" gorm:"column:period;size:7;not null;uniqueIndex:idx_monthly_key,priority:2"` // YYYY-MM
	MaxPrice    *int64    `json:"max_price"`
	MinPrice    *int64    `json:"min_price"`
	CollectedAt time.Time `json:"collected_at"`
}

func (MonthlyTrendPoint) TableName() string {
	return "monthly_prices"
}

// Month returns the calendar month (1-12) or 0 when YearMonth is malformed.
func (p MonthlyTrendPoint) Month() int {
	if len(p.YearMonth) != 7 || p.YearMonth[4] != '-' {
		return 0
	}
	m := int(p.YearMonth[5]-'0')*10 + int(p.YearMonth[6]-'0')
	if m < 1 || m > 12 {
		return 0
	}
	return m
}

// YearlyTrendPoint stores the yearly max/min price of an item.
type YearlyTrendPoint struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	ItemCode    string    `json:"item_code" gorm:"size:32;not null;uniqueIndex:idx_yearly_key,priority:1;index"`
	Year        string    `json:"year" gorm:"size:4;not null;uniqueIndex:idx_yearly_key,priority:2"`
	MaxPrice    *int64    `json:"max_price"`
	MinPrice    *int64    `json:"min_price"`
	CollectedAt time.Time `json:"collected_at"`
}

func (YearlyTrendPoint) TableName() string {
	return "yearly_prices"
}

// MidPrice returns (max+min)/2, or false when either side is missing.
func MidPrice(max, min *int64) (float64, bool) {
	if max == nil || min == nil {
		return 0, false
	}
	return float64(*max+*min) / 2, true
}
