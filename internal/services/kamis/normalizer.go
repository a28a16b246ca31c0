package kamis

import (
	"time"

	"github.com/sirupsen/logrus"

	"agri-price-tracker/internal/models"
)

const (
	CodeNoData    = "001"
	excerptLength = 500
)

var successCodes = map[string]bool{"000": true, "0000": true, "00": true}

// ItemLabel carries the codes the period price endpoint does not echo back.
type ItemLabel struct {
	CategoryCode string
	CategoryName string
	ItemCode     string
	ItemName     string
	KindCode     string
	KindName     string
	RankCode     string
	RankLabel    string
	Unit         string
}

// Normalizer maps provider envelopes to canonical records.
type Normalizer struct {
	logger *logrus.Logger
	now    func() time.Time
}

func NewNormalizer(logger *logrus.Logger) *Normalizer {
	return &Normalizer{logger: logger, now: time.Now}
}

// decode parses the body and checks the provider status. A nil envelope with a
// nil error means "no data": either code 001 or a provider error code.
func (n *Normalizer) decode(body []byte, format Format, context string) (*envelope, error) {
	env, err := DecodeEnvelope(body, format)
	if err != nil {
		n.logger.WithFields(logrus.Fields{
			"context": context,
			"body":    excerpt(body),
		}).Errorf("failed to parse response: %v", err)
		return nil, err
	}

	switch {
	case !env.HasCode || successCodes[env.Code]:
		return env, nil
	case env.Code == CodeNoData:
		n.logger.WithField("context", context).Info("provider returned no data")
	default:
		n.logger.WithFields(logrus.Fields{
			"context": context,
			"code":    env.Code,
			"message": env.Message,
		}).Warn("provider returned an error code")
	}
	return nil, nil
}

func excerpt(body []byte) string {
	if len(body) > excerptLength {
		body = body[:excerptLength]
	}
	return string(body)
}

// NormalizePeriodPrices maps a period price list. Items with a malformed year or day are skipped.
func (n *Normalizer) NormalizePeriodPrices(body []byte, format Format, label ItemLabel) ([]models.PriceRecord, error) {
	env, err := n.decode(body, format, "periodProductList:"+label.ItemCode)
	if err != nil || env == nil {
		return []models.PriceRecord{}, err
	}

	records := make([]models.PriceRecord, 0, len(env.Items))
	skipped := 0
	for _, item := range env.Items {
		date, ok := periodDate(item.get("yyyy"), item.get("regday"))
		if !ok {
			skipped++
			continue
		}

		rec := models.PriceRecord{
			Date:         date,
			CategoryCode: label.CategoryCode,
			CategoryName: label.CategoryName,
			ItemCode:     label.ItemCode,
			ItemName:     firstNonEmpty(item.get("itemname"), label.ItemName),
			KindCode:     label.KindCode,
			KindName:     firstNonEmpty(item.get("kindname"), label.KindName),
			RankLabel:    firstNonEmpty(item.get("rank", "productrankname"), label.RankLabel),
			RankCode:     label.RankCode,
			Unit:         firstNonEmpty(item.get("unit"), label.Unit),
			Price:        ParsePrice(item.get("price")),
			MarketName:   item.get("marketname", "countyname"),
		}
		records = append(records, rec)
	}

	if skipped > 0 {
		n.logger.WithFields(logrus.Fields{
			"item":    label.ItemCode,
			"skipped": skipped,
		}).Debug("skipped period items without a calendar date")
	}
	return records, nil
}

// NormalizeDailySales maps the latest sales list to national records and the
// product universe. Products are deduplicated by code, first occurrence wins.
func (n *Normalizer) NormalizeDailySales(body []byte, format Format) ([]models.PriceRecord, []models.Product, error) {
	env, err := n.decode(body, format, "dailySalesList")
	if err != nil || env == nil {
		return []models.PriceRecord{}, []models.Product{}, err
	}

	records := make([]models.PriceRecord, 0, len(env.Items))
	products := make([]models.Product, 0, len(env.Items))
	seen := make(map[string]bool, len(env.Items))

	for _, item := range env.Items {
		code := item.get("productno")
		if code == "" {
			continue
		}

		if !seen[code] {
			seen[code] = true
			products = append(products, models.Product{
				Code:         code,
				Name:         item.get("productName", "item_name"),
				CategoryCode: item.get("category_code"),
				CategoryName: item.get("category_name"),
				Unit:         item.get("unit"),
			})
		}

		date, ok := normalizeDate(item.get("lastest_day"))
		if !ok {
			continue
		}
		records = append(records, models.PriceRecord{
			Date:         date,
			CategoryCode: item.get("category_code"),
			CategoryName: item.get("category_name"),
			ItemCode:     code,
			ItemName:     item.get("productName"),
			KindName:     item.get("item_name"),
			RankLabel:    item.get("product_cls_name"),
			RankCode:     item.get("product_cls_code"),
			Unit:         item.get("unit"),
			Price:        ParsePrice(item.get("dpr1")),
		})
	}
	return records, products, nil
}

// NormalizeMonthlyTrend maps monthly max/min points for one item.
func (n *Normalizer) NormalizeMonthlyTrend(body []byte, format Format, itemCode string) ([]models.MonthlyTrendPoint, error) {
	env, err := n.decode(body, format, "monthlyPriceTrendList:"+itemCode)
	if err != nil || env == nil {
		return []models.MonthlyTrendPoint{}, err
	}

	now := n.now()
	points := make([]models.MonthlyTrendPoint, 0, len(env.Items))
	for _, item := range env.Items {
		ym, ok := yearMonth(item.get("yyyy"), item.get("mm"))
		if !ok {
			continue
		}
		points = append(points, models.MonthlyTrendPoint{
			ItemCode:    itemCode,
			YearMonth:   ym,
			MaxPrice:    ParsePrice(item.get("max")),
			MinPrice:    ParsePrice(item.get("min")),
			CollectedAt: now,
		})
	}
	return points, nil
}

// NormalizeYearlyTrend maps yearly max/min points for one item.
func (n *Normalizer) NormalizeYearlyTrend(body []byte, format Format, itemCode string) ([]models.YearlyTrendPoint, error) {
	env, err := n.decode(body, format, "yearlyPriceTrendList:"+itemCode)
	if err != nil || env == nil {
		return []models.YearlyTrendPoint{}, err
	}

	now := n.now()
	points := make([]models.YearlyTrendPoint, 0, len(env.Items))
	for _, item := range env.Items {
		year := item.get("yyyy")
		if !validYear(year) {
			continue
		}
		points = append(points, models.YearlyTrendPoint{
			ItemCode:    itemCode,
			Year:        year,
			MaxPrice:    ParsePrice(item.get("max")),
			MinPrice:    ParsePrice(item.get("min")),
			CollectedAt: now,
		})
	}
	return points, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
