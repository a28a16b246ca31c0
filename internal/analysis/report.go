package analysis

import (
	"time"

	"agri-price-tracker/internal/models"
)

// Snapshot is the read-back of the row store that every analysis runs on.
type Snapshot struct {
	Prices   []models.PriceRecord
	Monthly  []models.MonthlyTrendPoint
	Yearly   []models.YearlyTrendPoint
	Products []models.Product
}

// Summary counts what went into and came out of a report.
type Summary struct {
	GeneratedAt    time.Time `json:"generated_at"`
	PriceRows      int       `json:"price_rows"`
	PricedRows     int       `json:"priced_rows"`
	MonthlyRows    int       `json:"monthly_rows"`
	YearlyRows     int       `json:"yearly_rows"`
	ProductCount   int       `json:"product_count"`
	IQROutliers    int       `json:"iqr_outliers"`
	ZScoreOutliers int       `json:"zscore_outliers"`
}

// Report bundles every analysis of a snapshot.
type Report struct {
	Summary        Summary          `json:"summary"`
	Range          []RangeStat      `json:"range"`
	OutliersIQR    []Outlier        `json:"outliers_iqr"`
	OutliersZScore []Outlier        `json:"outliers_zscore"`
	Seasonal       SeasonalResult   `json:"seasonal"`
	Yearly         []YearlyTrendRow `json:"yearly"`
	Products       []models.Product `json:"products"`
}

// Build runs every analysis with default thresholds.
func Build(snap Snapshot, now time.Time) *Report {
	iqr, _ := DetectOutliers(snap.Prices, MethodIQR, DefaultIQRMultiplier)
	z, _ := DetectOutliers(snap.Prices, MethodZScore, DefaultZScoreCutoff)

	products := snap.Products
	if products == nil {
		products = []models.Product{}
	}

	return &Report{
		Summary: Summary{
			GeneratedAt:    now,
			PriceRows:      len(snap.Prices),
			PricedRows:     len(pricedRecords(snap.Prices)),
			MonthlyRows:    len(snap.Monthly),
			YearlyRows:     len(snap.Yearly),
			ProductCount:   len(products),
			IQROutliers:    len(iqr),
			ZScoreOutliers: len(z),
		},
		Range:          AnalyzeRange(snap.Prices),
		OutliersIQR:    iqr,
		OutliersZScore: z,
		Seasonal:       AnalyzeSeasonal(snap.Monthly),
		Yearly:         AnalyzeYearly(snap.Yearly),
		Products:       products,
	}
}
