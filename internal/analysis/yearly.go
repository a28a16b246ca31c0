package analysis

import (
	"sort"

	"agri-price-tracker/internal/models"
)

const (
	TrendUp           = "uptrend"
	TrendDown         = "downtrend"
	TrendFlat         = "flat"
	TrendInsufficient = "insufficient-data"

	trendBand = 0.10
)

// YearlyTrendRow is one item-year with its change against the previous year.
type YearlyTrendRow struct {
	ItemCode string   `json:"item_code"`
	Year     string   `json:"year"`
	AvgPrice *float64 `json:"avg_price"` // nil when max or min is missing
	YoYPct   *float64 `json:"yoy_pct"`   // nil unless this and the preceding year both have an average
	Trend    string   `json:"trend"`     // item-level, repeated on every row
}

// AnalyzeYearly computes year-over-year change and the overall trend per item.
// A year without an average is kept; it breaks the change of the year after it
// and is left out of the trend.
func AnalyzeYearly(points []models.YearlyTrendPoint) []YearlyTrendRow {
	sorted := make([]models.YearlyTrendPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ItemCode != sorted[j].ItemCode {
			return sorted[i].ItemCode < sorted[j].ItemCode
		}
		return sorted[i].Year < sorted[j].Year
	})

	rows := make([]YearlyTrendRow, 0, len(sorted))
	for i := 0; i < len(sorted); {
		j := i
		start := len(rows)
		for ; j < len(sorted) && sorted[j].ItemCode == sorted[i].ItemCode; j++ {
			row := YearlyTrendRow{ItemCode: sorted[j].ItemCode, Year: sorted[j].Year}
			if avg, ok := models.MidPrice(sorted[j].MaxPrice, sorted[j].MinPrice); ok {
				row.AvgPrice = &avg
			}
			if j > i {
				prev := rows[len(rows)-1].AvgPrice
				if prev != nil && *prev != 0 && row.AvgPrice != nil {
					yoy := round1((*row.AvgPrice - *prev) / *prev * 100)
					row.YoYPct = &yoy
				}
			}
			rows = append(rows, row)
		}

		trend := classifyTrend(rows[start:])
		for k := start; k < len(rows); k++ {
			rows[k].Trend = trend
		}
		i = j
	}
	return rows
}

// classifyTrend compares the first and last years that have an average.
func classifyTrend(rows []YearlyTrendRow) string {
	var avgs []float64
	for _, r := range rows {
		if r.AvgPrice != nil {
			avgs = append(avgs, *r.AvgPrice)
		}
	}
	if len(avgs) < 2 {
		return TrendInsufficient
	}
	first, last := avgs[0], avgs[len(avgs)-1]
	switch {
	case last > first*(1+trendBand):
		return TrendUp
	case last < first*(1-trendBand):
		return TrendDown
	}
	return TrendFlat
}
