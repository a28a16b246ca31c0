package database

import (
	"context"
	"time"

	"agri-price-tracker/internal/analysis"
	"agri-price-tracker/internal/models"
)

// Statistics summarizes the row store.
type Statistics struct {
	TotalRecords  int64                 `json:"total_records"`
	UniqueItems   int64                 `json:"unique_items"`
	MinDate       string                `json:"min_date"`
	MaxDate       string                `json:"max_date"`
	MonthlyPoints int64                 `json:"monthly_points"`
	YearlyPoints  int64                 `json:"yearly_points"`
	LastRun       *models.CollectionRun `json:"last_run"`
}

// PricesByItem returns an item's rows between start and end (inclusive, either may be empty), newest first.
func (r *PriceRepository) PricesByItem(ctx context.Context, itemCode, start, end string) ([]models.PriceRow, error) {
	q := r.db.WithContext(ctx).Where("item_code = ?", itemCode)
	if start != "" {
		q = q.Where("date >= ?", start)
	}
	if end != "" {
		q = q.Where("date <= ?", end)
	}

	var rows []models.PriceRow
	err := q.Order("date DESC").Order("kind_code").Order("rank_code").Order("market_name").Find(&rows).Error
	return rows, err
}

// PricesByDate returns every row observed on date.
func (r *PriceRepository) PricesByDate(ctx context.Context, date string) ([]models.PriceRow, error) {
	var rows []models.PriceRow
	err := r.db.WithContext(ctx).
		Where("date = ?", date).
		Order("category_code").Order("item_code").Order("kind_code").Order("rank_code").
		Find(&rows).Error
	return rows, err
}

// LatestPrices returns, per (item, kind, rank, market), the row with the most
// recent date that has a price.
func (r *PriceRepository) LatestPrices(ctx context.Context) ([]models.PriceRow, error) {
	db := r.db.WithContext(ctx)
	latest := db.Model(&models.PriceRow{}).
		Select("item_code, kind_code, rank_code, market_name, MAX(date) AS max_date").
		Where("price IS NOT NULL").
		Group("item_code, kind_code, rank_code, market_name")

	var rows []models.PriceRow
	err := db.Table("prices AS p").
		Select("p.*").
		Joins(`JOIN (?) AS l ON p.item_code = l.item_code AND p.kind_code = l.kind_code
			AND p.rank_code = l.rank_code AND p.market_name = l.market_name AND p.date = l.max_date`, latest).
		Order("p.item_name").Order("p.kind_name").Order("p.market_name").
		Find(&rows).Error
	return rows, err
}

// PriceTrend returns an item's priced rows of the last days days, oldest first.
func (r *PriceRepository) PriceTrend(ctx context.Context, itemCode string, days int, now time.Time) ([]models.PriceRow, error) {
	since := now.AddDate(0, 0, -days).Format("2006-01-02")

	var rows []models.PriceRow
	err := r.db.WithContext(ctx).
		Where("item_code = ? AND date >= ? AND price IS NOT NULL", itemCode, since).
		Order("date ASC").
		Find(&rows).Error
	return rows, err
}

func (r *PriceRepository) Statistics(ctx context.Context) (*Statistics, error) {
	db := r.db.WithContext(ctx)
	stats := &Statistics{}

	if err := db.Model(&models.PriceRow{}).Count(&stats.TotalRecords).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.PriceRow{}).Distinct("item_code").Count(&stats.UniqueItems).Error; err != nil {
		return nil, err
	}

	var bounds struct {
		MinDate *string
		MaxDate *string
	}
	if err := db.Model(&models.PriceRow{}).Select("MIN(date) AS min_date, MAX(date) AS max_date").Scan(&bounds).Error; err != nil {
		return nil, err
	}
	if bounds.MinDate != nil {
		stats.MinDate = *bounds.MinDate
	}
	if bounds.MaxDate != nil {
		stats.MaxDate = *bounds.MaxDate
	}

	if err := db.Model(&models.MonthlyTrendPoint{}).Count(&stats.MonthlyPoints).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.YearlyTrendPoint{}).Count(&stats.YearlyPoints).Error; err != nil {
		return nil, err
	}

	history, err := r.CollectionHistory(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(history) > 0 {
		stats.LastRun = &history[0]
	}
	return stats, nil
}

// CollectionHistory returns the newest limit audit rows.
func (r *PriceRepository) CollectionHistory(ctx context.Context, limit int) ([]models.CollectionRun, error) {
	if limit <= 0 {
		limit = 10
	}
	var runs []models.CollectionRun
	err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// AllPrices returns every price row as canonical records.
func (r *PriceRepository) AllPrices(ctx context.Context) ([]models.PriceRecord, error) {
	var rows []models.PriceRow
	if err := r.db.WithContext(ctx).Order("date").Order("item_code").Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]models.PriceRecord, len(rows))
	for i, row := range rows {
		records[i] = row.Record()
	}
	return records, nil
}

// MonthlyTrends returns monthly points, for one item or all when itemCode is empty.
func (r *PriceRepository) MonthlyTrends(ctx context.Context, itemCode string) ([]models.MonthlyTrendPoint, error) {
	q := r.db.WithContext(ctx)
	if itemCode != "" {
		q = q.Where("item_code = ?", itemCode)
	}
	var points []models.MonthlyTrendPoint
	err := q.Order("item_code").Order("period").Find(&points).Error
	return points, err
}

// YearlyTrends returns yearly points, for one item or all when itemCode is empty.
func (r *PriceRepository) YearlyTrends(ctx context.Context, itemCode string) ([]models.YearlyTrendPoint, error) {
	q := r.db.WithContext(ctx)
	if itemCode != "" {
		q = q.Where("item_code = ?", itemCode)
	}
	var points []models.YearlyTrendPoint
	err := q.Order("item_code").Order("year").Find(&points).Error
	return points, err
}

// Products lists every item seen in the price table.
func (r *PriceRepository) Products(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).Model(&models.PriceRow{}).
		Select("item_code AS code, MAX(item_name) AS name, MAX(category_code) AS category_code, MAX(category_name) AS category_name, MAX(unit) AS unit").
		Group("item_code").
		Order("item_code").
		Scan(&products).Error
	return products, err
}

// Snapshot loads everything the full report needs.
func (r *PriceRepository) Snapshot(ctx context.Context) (analysis.Snapshot, error) {
	var snap analysis.Snapshot
	var err error
	if snap.Prices, err = r.AllPrices(ctx); err != nil {
		return snap, err
	}
	if snap.Monthly, err = r.MonthlyTrends(ctx, ""); err != nil {
		return snap, err
	}
	if snap.Yearly, err = r.YearlyTrends(ctx, ""); err != nil {
		return snap, err
	}
	if snap.Products, err = r.Products(ctx); err != nil {
		return snap, err
	}
	return snap, nil
}
