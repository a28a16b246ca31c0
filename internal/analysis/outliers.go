package analysis

import (
	"fmt"
	"math"
	"sort"

	"agri-price-tracker/internal/models"
)

// Method selects the outlier rule.
type Method string

const (
	MethodIQR    Method = "iqr"
	MethodZScore Method = "zscore"

	DefaultIQRMultiplier  = 1.5
	DefaultZScoreCutoff   = 2.0
	minOutlierObservation = 3

	LabelLow  = "low-outlier"
	LabelHigh = "high-outlier"
)

// Outlier is one flagged observation.
type Outlier struct {
	ItemCode   string   `json:"item_code"`
	ItemName   string   `json:"item_name"`
	Date       string   `json:"date"`
	KindName   string   `json:"kind_name"`
	RankLabel  string   `json:"rank_label"`
	MarketName string   `json:"market_name"`
	Price      int64    `json:"price"`
	Label      string   `json:"label"`
	Method     Method   `json:"method"`
	Lower      float64  `json:"lower_bound"`
	Upper      float64  `json:"upper_bound"`
	ZScore     *float64 `json:"z_score,omitempty"`
}

// ParseMethod accepts "iqr" and "zscore" (or "z-score").
func ParseMethod(s string) (Method, error) {
	switch s {
	case "", "iqr":
		return MethodIQR, nil
	case "zscore", "z-score":
		return MethodZScore, nil
	}
	return "", fmt.Errorf("unknown outlier method %q", s)
}

// DetectOutliers flags unusual prices per item. Groups with fewer than three
// observations are skipped. threshold <= 0 selects the method default.
// The z-score rule uses the population standard deviation and flags |z| >= threshold.
func DetectOutliers(records []models.PriceRecord, method Method, threshold float64) ([]Outlier, error) {
	if method != MethodIQR && method != MethodZScore {
		return nil, fmt.Errorf("unknown outlier method %q", method)
	}
	if threshold <= 0 {
		threshold = DefaultIQRMultiplier
		if method == MethodZScore {
			threshold = DefaultZScoreCutoff
		}
	}

	groups := make(map[string][]models.PriceRecord)
	var order []string
	for _, r := range pricedRecords(records) {
		if _, ok := groups[r.ItemCode]; !ok {
			order = append(order, r.ItemCode)
		}
		groups[r.ItemCode] = append(groups[r.ItemCode], r)
	}

	outliers := []Outlier{}
	for _, code := range order {
		group := groups[code]
		if len(group) < minOutlierObservation {
			continue
		}
		if method == MethodIQR {
			outliers = append(outliers, iqrOutliers(group, threshold)...)
		} else {
			outliers = append(outliers, zScoreOutliers(group, threshold)...)
		}
	}

	sort.SliceStable(outliers, func(i, j int) bool {
		return outliers[i].Price > outliers[j].Price
	})
	return outliers, nil
}

func groupPrices(group []models.PriceRecord) []float64 {
	prices := make([]float64, len(group))
	for i, r := range group {
		prices[i] = float64(*r.Price)
	}
	return prices
}

func newOutlier(r models.PriceRecord, method Method, label string, lower, upper float64) Outlier {
	return Outlier{
		ItemCode:   r.ItemCode,
		ItemName:   r.ItemName,
		Date:       r.Date,
		KindName:   r.KindName,
		RankLabel:  r.RankLabel,
		MarketName: r.MarketName,
		Price:      *r.Price,
		Label:      label,
		Method:     method,
		Lower:      lower,
		Upper:      upper,
	}
}

func iqrOutliers(group []models.PriceRecord, k float64) []Outlier {
	prices := groupPrices(group)
	q1 := Quantile(prices, 0.25)
	q3 := Quantile(prices, 0.75)
	iqr := q3 - q1
	lower, upper := q1-k*iqr, q3+k*iqr

	var out []Outlier
	for i, p := range prices {
		switch {
		case p < lower:
			out = append(out, newOutlier(group[i], MethodIQR, LabelLow, lower, upper))
		case p > upper:
			out = append(out, newOutlier(group[i], MethodIQR, LabelHigh, lower, upper))
		}
	}
	return out
}

func zScoreOutliers(group []models.PriceRecord, cutoff float64) []Outlier {
	prices := groupPrices(group)
	mean := Mean(prices)
	std := StdDev(prices)
	if std == 0 || math.IsNaN(std) {
		return nil
	}
	lower, upper := mean-cutoff*std, mean+cutoff*std

	var out []Outlier
	for i, p := range prices {
		z := (p - mean) / std
		if math.Abs(z) < cutoff {
			continue
		}
		label := LabelHigh
		if z < 0 {
			label = LabelLow
		}
		o := newOutlier(group[i], MethodZScore, label, lower, upper)
		zr := round1(z)
		o.ZScore = &zr
		out = append(out, o)
	}
	return out
}
