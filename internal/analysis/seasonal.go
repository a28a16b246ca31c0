package analysis

import (
	"sort"

	"agri-price-tracker/internal/models"
)

const (
	SeasonSpring = "spring"
	SeasonSummer = "summer"
	SeasonAutumn = "autumn"
	SeasonWinter = "winter"
)

var seasonOrder = map[string]int{SeasonSpring: 0, SeasonSummer: 1, SeasonAutumn: 2, SeasonWinter: 3}

// SeasonOf maps a calendar month to its 3-month season. December belongs to winter.
func SeasonOf(month int) string {
	switch {
	case month >= 3 && month <= 5:
		return SeasonSpring
	case month >= 6 && month <= 8:
		return SeasonSummer
	case month >= 9 && month <= 11:
		return SeasonAutumn
	}
	return SeasonWinter
}

// MonthlyAverage is one item's average mid price for one calendar month across years.
type MonthlyAverage struct {
	ItemCode string `json:"item_code"`
	Month    int    `json:"month"`
	Season   string `json:"season"`
	AvgPrice int64  `json:"avg_price"`
	MaxPrice int64  `json:"max_price"`
	MinPrice int64  `json:"min_price"`
	Count    int    `json:"count"`
}

// SeasonStat aggregates the monthly averages of one season.
type SeasonStat struct {
	ItemCode string `json:"item_code"`
	Season   string `json:"season"`
	AvgPrice int64  `json:"avg_price"`
	MaxPrice int64  `json:"max_price"`
	MinPrice int64  `json:"min_price"`
}

// PeakTrough names an item's most and least expensive month.
type PeakTrough struct {
	ItemCode    string  `json:"item_code"`
	PeakMonth   int     `json:"peak_month"`
	PeakPrice   int64   `json:"peak_price"`
	TroughMonth int     `json:"trough_month"`
	TroughPrice int64   `json:"trough_price"`
	GapPct      float64 `json:"gap_pct"`
}

type SeasonalResult struct {
	Monthly     []MonthlyAverage `json:"monthly"`
	Seasons     []SeasonStat     `json:"seasons"`
	PeakTroughs []PeakTrough     `json:"peak_troughs"`
}

type monthKey struct {
	item  string
	month int
}

type monthAcc struct {
	mids     []float64
	max, min int64
}

// AnalyzeSeasonal derives monthly averages, season aggregates and peak/trough
// months from monthly trend points. Points missing either max or min are ignored.
func AnalyzeSeasonal(points []models.MonthlyTrendPoint) SeasonalResult {
	accs := make(map[monthKey]*monthAcc)
	for _, p := range points {
		month := p.Month()
		mid, ok := models.MidPrice(p.MaxPrice, p.MinPrice)
		if month == 0 || !ok {
			continue
		}
		k := monthKey{p.ItemCode, month}
		acc, found := accs[k]
		if !found {
			acc = &monthAcc{max: *p.MaxPrice, min: *p.MinPrice}
			accs[k] = acc
		}
		acc.mids = append(acc.mids, mid)
		if *p.MaxPrice > acc.max {
			acc.max = *p.MaxPrice
		}
		if *p.MinPrice < acc.min {
			acc.min = *p.MinPrice
		}
	}

	monthly := make([]MonthlyAverage, 0, len(accs))
	for k, acc := range accs {
		monthly = append(monthly, MonthlyAverage{
			ItemCode: k.item,
			Month:    k.month,
			Season:   SeasonOf(k.month),
			AvgPrice: roundInt(Mean(acc.mids)),
			MaxPrice: acc.max,
			MinPrice: acc.min,
			Count:    len(acc.mids),
		})
	}
	sort.Slice(monthly, func(i, j int) bool {
		if monthly[i].ItemCode != monthly[j].ItemCode {
			return monthly[i].ItemCode < monthly[j].ItemCode
		}
		return monthly[i].Month < monthly[j].Month
	})

	return SeasonalResult{
		Monthly:     monthly,
		Seasons:     seasonStats(monthly),
		PeakTroughs: peakTroughs(monthly),
	}
}

func seasonStats(monthly []MonthlyAverage) []SeasonStat {
	type seasonKey struct{ item, season string }
	avgs := make(map[seasonKey][]float64)
	stats := make(map[seasonKey]*SeasonStat)
	var order []seasonKey

	for _, m := range monthly {
		k := seasonKey{m.ItemCode, m.Season}
		s, ok := stats[k]
		if !ok {
			s = &SeasonStat{ItemCode: m.ItemCode, Season: m.Season, MaxPrice: m.MaxPrice, MinPrice: m.MinPrice}
			stats[k] = s
			order = append(order, k)
		}
		avgs[k] = append(avgs[k], float64(m.AvgPrice))
		if m.MaxPrice > s.MaxPrice {
			s.MaxPrice = m.MaxPrice
		}
		if m.MinPrice < s.MinPrice {
			s.MinPrice = m.MinPrice
		}
	}

	out := make([]SeasonStat, 0, len(order))
	for _, k := range order {
		s := stats[k]
		s.AvgPrice = roundInt(Mean(avgs[k]))
		out = append(out, *s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ItemCode != out[j].ItemCode {
			return out[i].ItemCode < out[j].ItemCode
		}
		return seasonOrder[out[i].Season] < seasonOrder[out[j].Season]
	})
	return out
}

// peakTroughs expects monthly sorted by item then month; ties go to the earliest month.
func peakTroughs(monthly []MonthlyAverage) []PeakTrough {
	out := []PeakTrough{}
	for i := 0; i < len(monthly); {
		j := i
		peak, trough := monthly[i], monthly[i]
		for ; j < len(monthly) && monthly[j].ItemCode == monthly[i].ItemCode; j++ {
			if monthly[j].AvgPrice > peak.AvgPrice {
				peak = monthly[j]
			}
			if monthly[j].AvgPrice < trough.AvgPrice {
				trough = monthly[j]
			}
		}
		out = append(out, PeakTrough{
			ItemCode:    monthly[i].ItemCode,
			PeakMonth:   peak.Month,
			PeakPrice:   peak.AvgPrice,
			TroughMonth: trough.Month,
			TroughPrice: trough.AvgPrice,
			GapPct:      pct(float64(peak.AvgPrice-trough.AvgPrice), float64(trough.AvgPrice)),
		})
		i = j
	}
	return out
}
