package analysis

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"agri-price-tracker/internal/models"
)

// Mean returns the arithmetic mean, or NaN for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	mean := Mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// Quantile returns the q-th quantile (0..1) using linear interpolation between
// closest ranks. values need not be sorted.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// MinMax returns the smallest and largest value
func MinMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return math.NaN(), math.NaN()
	}
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// round1 rounds half away from zero to one decimal place
func round1(v float64) float64 {
	return decimal.NewFromFloat(v).Round(1).InexactFloat64()
}

// roundInt rounds half away from zero to an integer
func roundInt(v float64) int64 {
	return decimal.NewFromFloat(v).Round(0).IntPart()
}

// pricedRecords drops records without a price
func pricedRecords(records []models.PriceRecord) []models.PriceRecord {
	out := make([]models.PriceRecord, 0, len(records))
	for _, r := range records {
		if r.HasPrice() {
			out = append(out, r)
		}
	}
	return out
}

// pct returns part/base*100 rounded to one decimal, 0 when base is 0
func pct(part, base float64) float64 {
	if base == 0 {
		return 0
	}
	return round1(part / base * 100)
}
