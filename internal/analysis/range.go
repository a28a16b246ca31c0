package analysis

import (
	"sort"

	"agri-price-tracker/internal/models"
)

// RangeStat is the price spread of one (item, category, unit) group.
type RangeStat struct {
	ItemCode     string  `json:"item_code"`
	ItemName     string  `json:"item_name"`
	CategoryCode string  `json:"category_code"`
	CategoryName string  `json:"category_name"`
	Unit         string  `json:"unit"`
	Min          int64   `json:"min"`
	Max          int64   `json:"max"`
	Mean         int64   `json:"mean"`
	Count        int     `json:"count"`
	Range        int64   `json:"range"`
	RangePct     float64 `json:"range_pct"`
}

type rangeKey struct {
	item, category, unit string
}

// AnalyzeRange computes min, max, mean and spread per (item, category, unit),
// most volatile first.
func AnalyzeRange(records []models.PriceRecord) []RangeStat {
	groups := make(map[rangeKey][]models.PriceRecord)
	var order []rangeKey
	for _, r := range pricedRecords(records) {
		k := rangeKey{r.ItemCode, r.CategoryCode, r.Unit}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	stats := make([]RangeStat, 0, len(order))
	for _, k := range order {
		group := groups[k]
		prices := make([]float64, len(group))
		for i, r := range group {
			prices[i] = float64(*r.Price)
		}
		min, max := MinMax(prices)
		mean := roundInt(Mean(prices))
		spread := int64(max - min)

		stats = append(stats, RangeStat{
			ItemCode:     k.item,
			ItemName:     group[0].ItemName,
			CategoryCode: k.category,
			CategoryName: group[0].CategoryName,
			Unit:         k.unit,
			Min:          int64(min),
			Max:          int64(max),
			Mean:         mean,
			Count:        len(group),
			Range:        spread,
			RangePct:     pct(float64(spread), float64(mean)),
		})
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].RangePct > stats[j].RangePct
	})
	return stats
}
