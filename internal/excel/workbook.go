package excel

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"agri-price-tracker/internal/database"
	"agri-price-tracker/internal/models"
)

const (
	WorkbookName = "kamis_prices.xlsx"
	SummarySheet = "Summary"
	RunsSheet    = "Runs"
	otherSheet   = "other"
	undatedLabel = "undated"
	defaultSheet = "Sheet1"
)

var priceHeaders = []interface{}{
	"date", "category_code", "category_name", "item_code", "item_name", "kind_code",
	"kind_name", "rank_label", "rank_code", "unit", "price", "market_name",
}

// key column positions inside priceHeaders
const (
	colDate       = 0
	colItemCode   = 3
	colItemName   = 4
	colKindCode   = 5
	colRankCode   = 8
	colMarketName = 11
)

var runHeaders = []interface{}{
	"run_id", "created_at", "total_fetched", "new_inserted", "updated", "duplicates_skipped", "error_count", "status",
}

// Workbook accumulates prices in one spreadsheet, one sheet per month.
type Workbook struct {
	path   string
	logger *logrus.Logger
	now    func() time.Time
}

func NewWorkbook(outputDir string, logger *logrus.Logger) *Workbook {
	return &Workbook{
		path:   filepath.Join(outputDir, WorkbookName),
		logger: logger,
		now:    time.Now,
	}
}

func (w *Workbook) Path() string {
	return w.path
}

func (w *Workbook) open() (*excelize.File, bool, error) {
	if _, err := os.Stat(w.path); err == nil {
		f, err := excelize.OpenFile(w.path)
		if err != nil {
			return nil, false, fmt.Errorf("failed to open workbook: %w", err)
		}
		return f, false, nil
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return nil, false, fmt.Errorf("failed to create output directory: %w", err)
	}
	return excelize.NewFile(), true, nil
}

func sheetFor(date string) string {
	if len(date) >= 7 && date[4] == '-' {
		return date[:7]
	}
	return otherSheet
}

// SavePrices merges records into the month sheets under the same key and
// mode semantics as the row store, then refreshes the summary and appends a run row.
func (w *Workbook) SavePrices(records []models.PriceRecord, mode database.SaveMode) (*models.CollectionRun, error) {
	f, fresh, err := w.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	bySheet := make(map[string][]models.PriceRecord)
	var sheets []string
	for _, r := range records {
		name := sheetFor(r.Date)
		if _, ok := bySheet[name]; !ok {
			sheets = append(sheets, name)
		}
		bySheet[name] = append(bySheet[name], r)
	}

	run := &models.CollectionRun{
		RunID:        uuid.NewString(),
		TotalFetched: len(records),
		CreatedAt:    w.now(),
	}

	for _, name := range sheets {
		if err := w.mergeSheet(f, name, bySheet[name], mode, bold, run); err != nil {
			return nil, err
		}
	}

	run.Status = models.RunStatus(run.ErrorCount)
	if err := w.writeSummary(f, bold); err != nil {
		return nil, err
	}
	if err := w.appendRun(f, run, bold); err != nil {
		return nil, err
	}
	if fresh {
		// placeholder sheet of a new file
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return nil, err
		}
	}

	if err := f.SaveAs(w.path); err != nil {
		return nil, fmt.Errorf("failed to save workbook: %w", err)
	}

	w.logger.WithFields(logrus.Fields{
		"path":       w.path,
		"inserted":   run.NewInserted,
		"updated":    run.Updated,
		"duplicates": run.DuplicatesSkipped,
	}).Info("workbook saved")
	return run, nil
}

// ensureSheet creates a sheet with a bold, frozen header row unless it exists.
func ensureSheet(f *excelize.File, name string, headers []interface{}, bold int) error {
	if idx, err := f.GetSheetIndex(name); err == nil && idx >= 0 {
		return nil
	}
	if _, err := f.NewSheet(name); err != nil {
		return err
	}
	if err := f.SetSheetRow(name, "A1", &headers); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(name, "A1", last, bold); err != nil {
		return err
	}
	return f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func rowKey(row []string) models.PriceKey {
	return models.PriceKey{
		Date:       cell(row, colDate),
		ItemCode:   cell(row, colItemCode),
		KindCode:   cell(row, colKindCode),
		RankCode:   cell(row, colRankCode),
		MarketName: cell(row, colMarketName),
	}
}

func priceRow(r models.PriceRecord) []interface{} {
	var price interface{} = ""
	if r.Price != nil {
		price = *r.Price
	}
	return []interface{}{
		r.Date, r.CategoryCode, r.CategoryName, r.ItemCode, r.ItemName, r.KindCode,
		r.KindName, r.RankLabel, r.RankCode, r.Unit, price, r.MarketName,
	}
}

func (w *Workbook) mergeSheet(f *excelize.File, name string, records []models.PriceRecord, mode database.SaveMode, bold int, run *models.CollectionRun) error {
	if err := ensureSheet(f, name, priceHeaders, bold); err != nil {
		return fmt.Errorf("failed to prepare sheet %s: %w", name, err)
	}

	rows, err := f.GetRows(name)
	if err != nil {
		return fmt.Errorf("failed to read sheet %s: %w", name, err)
	}

	index := make(map[models.PriceKey]int, len(rows))
	for i, row := range rows {
		if i == 0 || cell(row, colDate) == "" {
			continue
		}
		index[rowKey(row)] = i + 1
	}
	next := len(rows) + 1
	if next < 2 {
		next = 2
	}

	for _, r := range records {
		if r.Date == "" || r.ItemCode == "" {
			run.ErrorCount++
			continue
		}

		rowNum, exists := index[r.Key()]
		switch {
		case exists && mode == database.ModeInsertIgnore:
			run.DuplicatesSkipped++
			continue
		case exists:
			run.Updated++
		default:
			rowNum = next
			index[r.Key()] = rowNum
			next++
			run.NewInserted++
		}

		values := priceRow(r)
		start, _ := excelize.CoordinatesToCellName(1, rowNum)
		if err := f.SetSheetRow(name, start, &values); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", rowNum, name, err)
		}
	}
	return nil
}

// sheetCounts returns the data rows and distinct item codes of a price sheet.
func sheetCounts(f *excelize.File, name string) (int, int, error) {
	rows, err := f.GetRows(name)
	if err != nil {
		return 0, 0, err
	}
	count := 0
	items := make(map[string]bool)
	for i, row := range rows {
		if i == 0 || cell(row, colDate) == "" {
			continue
		}
		count++
		items[cell(row, colItemCode)] = true
	}
	return count, len(items), nil
}

// writeSummary rebuilds the Summary sheet: one row per month sheet, an
// "undated" row for the other sheet when present, then the total.
func (w *Workbook) writeSummary(f *excelize.File, bold int) error {
	var months []string
	hasOther := false
	for _, name := range f.GetSheetList() {
		switch name {
		case SummarySheet, RunsSheet, defaultSheet:
		case otherSheet:
			hasOther = true
		default:
			months = append(months, name)
		}
	}
	sort.Strings(months)

	if idx, err := f.GetSheetIndex(SummarySheet); err == nil && idx >= 0 {
		if err := f.DeleteSheet(SummarySheet); err != nil {
			return err
		}
	}
	headers := []interface{}{"month", "rows", "items", "updated_at"}
	if err := ensureSheet(f, SummarySheet, headers, bold); err != nil {
		return err
	}

	updated := w.now().Format("2006-01-02 15:04")
	total := 0
	rowNum := 2
	writeRow := func(label, sheet string) error {
		count, items, err := sheetCounts(f, sheet)
		if err != nil {
			return err
		}
		total += count
		values := []interface{}{label, count, items, updated}
		start, _ := excelize.CoordinatesToCellName(1, rowNum)
		rowNum++
		return f.SetSheetRow(SummarySheet, start, &values)
	}

	for _, month := range months {
		if err := writeRow(month, month); err != nil {
			return err
		}
	}
	if hasOther {
		if err := writeRow(undatedLabel, otherSheet); err != nil {
			return err
		}
	}

	totalRow := []interface{}{"total", total}
	start, _ := excelize.CoordinatesToCellName(1, rowNum)
	if err := f.SetSheetRow(SummarySheet, start, &totalRow); err != nil {
		return err
	}
	end, _ := excelize.CoordinatesToCellName(2, rowNum)
	if err := f.SetCellStyle(SummarySheet, start, end, bold); err != nil {
		return err
	}

	if idx, err := f.GetSheetIndex(SummarySheet); err == nil {
		f.SetActiveSheet(idx)
	}
	return nil
}

func (w *Workbook) appendRun(f *excelize.File, run *models.CollectionRun, bold int) error {
	if err := ensureSheet(f, RunsSheet, runHeaders, bold); err != nil {
		return err
	}
	rows, err := f.GetRows(RunsSheet)
	if err != nil {
		return err
	}
	values := []interface{}{
		run.RunID, run.CreatedAt.Format(time.RFC3339), run.TotalFetched, run.NewInserted,
		run.Updated, run.DuplicatesSkipped, run.ErrorCount, run.Status,
	}
	start, _ := excelize.CoordinatesToCellName(1, len(rows)+1)
	return f.SetSheetRow(RunsSheet, start, &values)
}

// ReadPrices returns every row of the month sheets, for inspection and tests.
func (w *Workbook) ReadPrices() ([]models.PriceRecord, error) {
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var records []models.PriceRecord
	for _, name := range f.GetSheetList() {
		if name == SummarySheet || name == RunsSheet {
			continue
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, err
		}
		for i, row := range rows {
			if i == 0 || cell(row, colDate) == "" {
				continue
			}
			rec := models.PriceRecord{
				Date:         cell(row, colDate),
				CategoryCode: cell(row, 1),
				CategoryName: cell(row, 2),
				ItemCode:     cell(row, colItemCode),
				ItemName:     cell(row, colItemName),
				KindCode:     cell(row, colKindCode),
				KindName:     cell(row, 6),
				RankLabel:    cell(row, 7),
				RankCode:     cell(row, colRankCode),
				Unit:         cell(row, 9),
				MarketName:   cell(row, colMarketName),
			}
			var price int64
			if _, err := fmt.Sscan(cell(row, 10), &price); err == nil {
				rec.Price = &price
			}
			records = append(records, rec)
		}
	}
	return records, nil
}
