package excel

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"agri-price-tracker/internal/analysis"
)

// Report sheet names, in workbook order.
const (
	SheetSummary         = "Summary"
	SheetRange           = "Range"
	SheetOutliersIQR     = "Outliers_IQR"
	SheetOutliersZScore  = "Outliers_ZScore"
	SheetMonthlyAvg      = "Monthly_Avg"
	SheetSeasonalSummary = "Seasonal_Summary"
	SheetPeakTrough      = "Peak_Trough"
	SheetYearlyTrend     = "Yearly_Trend"
	SheetProducts        = "Products"
)

// ReportPath names a timestamped report file inside dir.
func ReportPath(dir string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("kamis_analysis_%s.xlsx", now.Format("20060102_150405")))
}

type sheetData struct {
	name    string
	headers []interface{}
	rows    [][]interface{}
}

// WriteReport renders every section of the report into one workbook.
func WriteReport(path string, rep *analysis.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err := f.SetSheetName(defaultSheet, SheetSummary); err != nil {
		return err
	}

	for _, sheet := range reportSheets(rep) {
		if err := writeSheet(f, sheet, bold); err != nil {
			return fmt.Errorf("failed to write sheet %s: %w", sheet.name, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet sheetData, bold int) error {
	if err := ensureSheet(f, sheet.name, sheet.headers, bold); err != nil {
		return err
	}
	// the renamed default sheet exists already without a header
	if err := f.SetSheetRow(sheet.name, "A1", &sheet.headers); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(sheet.headers), 1)
	if err := f.SetCellStyle(sheet.name, "A1", last, bold); err != nil {
		return err
	}

	for i, row := range sheet.rows {
		row := row
		start, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet.name, start, &row); err != nil {
			return err
		}
	}
	return nil
}

func optional(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func reportSheets(rep *analysis.Report) []sheetData {
	s := rep.Summary
	summary := sheetData{
		name:    SheetSummary,
		headers: []interface{}{"metric", "value"},
		rows: [][]interface{}{
			{"analysis_time", s.GeneratedAt.Format("2006-01-02 15:04:05")},
			{"price_rows", s.PriceRows},
			{"priced_rows", s.PricedRows},
			{"monthly_rows", s.MonthlyRows},
			{"yearly_rows", s.YearlyRows},
			{"products", s.ProductCount},
			{"iqr_outliers", s.IQROutliers},
			{"zscore_outliers", s.ZScoreOutliers},
		},
	}

	ranges := sheetData{
		name:    SheetRange,
		headers: []interface{}{"item_code", "item_name", "category_code", "category_name", "unit", "min", "max", "mean", "count", "range", "range_pct"},
	}
	for _, r := range rep.Range {
		ranges.rows = append(ranges.rows, []interface{}{
			r.ItemCode, r.ItemName, r.CategoryCode, r.CategoryName, r.Unit, r.Min, r.Max, r.Mean, r.Count, r.Range, r.RangePct,
		})
	}

	outlierHeaders := []interface{}{"item_code", "item_name", "date", "kind_name", "rank_label", "market_name", "price", "label", "lower_bound", "upper_bound", "z_score"}
	outliers := func(name string, list []analysis.Outlier) sheetData {
		sd := sheetData{name: name, headers: outlierHeaders}
		for _, o := range list {
			sd.rows = append(sd.rows, []interface{}{
				o.ItemCode, o.ItemName, o.Date, o.KindName, o.RankLabel, o.MarketName, o.Price, o.Label, o.Lower, o.Upper, optional(o.ZScore),
			})
		}
		return sd
	}

	monthly := sheetData{
		name:    SheetMonthlyAvg,
		headers: []interface{}{"item_code", "month", "season", "avg_price", "max_price", "min_price", "count"},
	}
	for _, m := range rep.Seasonal.Monthly {
		monthly.rows = append(monthly.rows, []interface{}{m.ItemCode, m.Month, m.Season, m.AvgPrice, m.MaxPrice, m.MinPrice, m.Count})
	}

	seasons := sheetData{
		name:    SheetSeasonalSummary,
		headers: []interface{}{"item_code", "season", "avg_price", "max_price", "min_price"},
	}
	for _, x := range rep.Seasonal.Seasons {
		seasons.rows = append(seasons.rows, []interface{}{x.ItemCode, x.Season, x.AvgPrice, x.MaxPrice, x.MinPrice})
	}

	peaks := sheetData{
		name:    SheetPeakTrough,
		headers: []interface{}{"item_code", "peak_month", "peak_price", "trough_month", "trough_price", "gap_pct"},
	}
	for _, p := range rep.Seasonal.PeakTroughs {
		peaks.rows = append(peaks.rows, []interface{}{p.ItemCode, p.PeakMonth, p.PeakPrice, p.TroughMonth, p.TroughPrice, p.GapPct})
	}

	yearly := sheetData{
		name:    SheetYearlyTrend,
		headers: []interface{}{"item_code", "year", "avg_price", "yoy_pct", "trend"},
	}
	for _, y := range rep.Yearly {
		yearly.rows = append(yearly.rows, []interface{}{y.ItemCode, y.Year, optional(y.AvgPrice), optional(y.YoYPct), y.Trend})
	}

	products := sheetData{
		name:    SheetProducts,
		headers: []interface{}{"code", "name", "category_code", "category_name", "unit"},
	}
	for _, p := range rep.Products {
		products.rows = append(products.rows, []interface{}{p.Code, p.Name, p.CategoryCode, p.CategoryName, p.Unit})
	}

	return []sheetData{
		summary,
		ranges,
		outliers(SheetOutliersIQR, rep.OutliersIQR),
		outliers(SheetOutliersZScore, rep.OutliersZScore),
		monthly,
		seasons,
		peaks,
		yearly,
		products,
	}
}
