package kamis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"agri-price-tracker/internal/config"
	"agri-price-tracker/internal/models"
)

const (
	ActionDailySales   = "dailySalesList"
	ActionPeriodPrices = "periodProductList"
	ActionMonthlyTrend = "monthlyPriceTrendList"
	ActionYearlyTrend  = "yearlyPriceTrendList"

	progressEvery   = 10
	yearlyYearsBack = 5
)

// CollectorConfig is the explicit configuration of a collector.
type CollectorConfig struct {
	APIURL     string
	CertKey    string
	CertID     string
	ReturnType Format
	Workers    int
	Throttle   time.Duration // between sequential catalog requests
	Monthly    bool
	Yearly     bool
}

// NewCollectorConfig derives a collector configuration from the process config.
func NewCollectorConfig(cfg *config.Config, catalog *config.Catalog) CollectorConfig {
	apiURL := cfg.APIURL
	if catalog != nil && catalog.APIURL != "" && cfg.APIURL == config.DefaultAPIURL {
		apiURL = catalog.APIURL
	}
	return CollectorConfig{
		APIURL:     apiURL,
		CertKey:    cfg.CertKey,
		CertID:     cfg.CertID,
		ReturnType: FormatXML,
		Workers:    cfg.CollectWorkers,
		Throttle:   300 * time.Millisecond,
		Monthly:    true,
		Yearly:     true,
	}
}

// Failure records one task that produced nothing this run.
type Failure struct {
	Stage    string `json:"stage"`
	ItemCode string `json:"item_code"`
	Error    string `json:"error"`
}

// CollectResult is the merged output of one collection run.
type CollectResult struct {
	Daily    []models.PriceRecord
	Monthly  []models.MonthlyTrendPoint
	Yearly   []models.YearlyTrendPoint
	Products []models.Product
	Failures []Failure
}

// Collector drives discovery, trend fan-out and catalog fetches.
type Collector struct {
	config     CollectorConfig
	catalog    *config.Catalog
	client     Fetcher
	normalizer *Normalizer
	limiter    *rate.Limiter
	logger     *logrus.Logger
	now        func() time.Time
}

func NewCollector(cfg CollectorConfig, catalog *config.Catalog, client Fetcher, logger *logrus.Logger) *Collector {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.ReturnType == "" {
		cfg.ReturnType = FormatXML
	}
	if catalog == nil {
		catalog = config.DefaultCatalog()
	}

	limit := rate.Inf
	if cfg.Throttle > 0 {
		limit = rate.Every(cfg.Throttle)
	}

	return &Collector{
		config:     cfg,
		catalog:    catalog,
		client:     client,
		normalizer: NewNormalizer(logger),
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
		now:        time.Now,
	}
}

type trendBatch struct {
	Monthly []models.MonthlyTrendPoint
	Yearly  []models.YearlyTrendPoint
}

// Collect runs discovery, then the pooled trend fan-out, then the catalog fetches.
// Only a discovery failure is fatal.
func (c *Collector) Collect(ctx context.Context) (*CollectResult, error) {
	daily, products, err := c.discover(ctx)
	if err != nil {
		return nil, err
	}

	result := &CollectResult{
		Daily:    daily,
		Monthly:  []models.MonthlyTrendPoint{},
		Yearly:   []models.YearlyTrendPoint{},
		Products: products,
		Failures: []Failure{},
	}

	c.collectTrends(ctx, products, result)
	c.collectCatalog(ctx, result)

	c.logger.WithFields(logrus.Fields{
		"daily":    len(result.Daily),
		"monthly":  len(result.Monthly),
		"yearly":   len(result.Yearly),
		"products": len(result.Products),
		"failures": len(result.Failures),
	}).Info("collection finished")
	return result, nil
}

func (c *Collector) params(action string, extra map[string]string) map[string]string {
	p := map[string]string{
		"action":       action,
		"p_cert_key":   c.config.CertKey,
		"p_cert_id":    c.config.CertID,
		"p_returntype": string(c.config.ReturnType),
	}
	for k, v := range extra {
		p[k] = v
	}
	return p
}

func (c *Collector) discover(ctx context.Context) ([]models.PriceRecord, []models.Product, error) {
	resp, err := c.client.Request(ctx, c.config.APIURL, c.params(ActionDailySales, map[string]string{
		"p_product_cls_code": c.catalog.ProductClsCode,
	}))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDiscoveryFailed, err)
	}

	records, products, err := c.normalizer.NormalizeDailySales(resp.Body, c.config.ReturnType)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDiscoveryFailed, err)
	}
	if len(products) == 0 {
		return nil, nil, fmt.Errorf("%w: no products in the latest sales list", ErrDiscoveryFailed)
	}

	c.logger.WithFields(logrus.Fields{
		"products": len(products),
		"records":  len(records),
	}).Info("discovered products")
	return records, products, nil
}

// trendWindows returns the monthly window (same month last year .. this month,
// as YYYYMM) and the yearly window (five years back .. this year).
func trendWindows(now time.Time) (startMonth, endMonth, startYear, endYear string) {
	startMonth = time.Date(now.Year()-1, now.Month(), 1, 0, 0, 0, 0, now.Location()).Format("200601")
	endMonth = now.Format("200601")
	startYear = fmt.Sprintf("%d", now.Year()-yearlyYearsBack)
	endYear = fmt.Sprintf("%d", now.Year())
	return
}

func (c *Collector) collectTrends(ctx context.Context, products []models.Product, result *CollectResult) {
	startMonth, endMonth, startYear, endYear := trendWindows(c.now())

	tasks := make([]WorkerTask[trendBatch], 0, len(products)*2)
	for _, p := range products {
		code := p.Code
		if c.config.Monthly {
			tasks = append(tasks, WorkerTask[trendBatch]{
				TaskID: "monthly:" + code,
				Run: func(ctx context.Context) (trendBatch, error) {
					points, err := c.fetchMonthly(ctx, code, startMonth, endMonth)
					return trendBatch{Monthly: points}, err
				},
			})
		}
		if c.config.Yearly {
			tasks = append(tasks, WorkerTask[trendBatch]{
				TaskID: "yearly:" + code,
				Run: func(ctx context.Context) (trendBatch, error) {
					points, err := c.fetchYearly(ctx, code, startYear, endYear)
					return trendBatch{Yearly: points}, err
				},
			})
		}
	}
	if len(tasks) == 0 {
		return
	}

	c.logger.WithFields(logrus.Fields{
		"tasks":   len(tasks),
		"workers": c.config.Workers,
	}).Info("fetching trend data")

	results, stats := RunPool(ctx, c.config.Workers, tasks, func(s PoolStats) {
		if s.Completed()%progressEvery == 0 || s.Completed() == s.TotalTasks {
			c.logger.WithFields(logrus.Fields{
				"done":   s.Completed(),
				"total":  s.TotalTasks,
				"failed": s.FailedTasks,
			}).Info("trend progress")
		}
	})

	for _, r := range results {
		if r.Err != nil {
			stage, code := splitTaskID(r.TaskID)
			result.Failures = append(result.Failures, Failure{Stage: stage, ItemCode: code, Error: r.Err.Error()})
			continue
		}
		result.Monthly = append(result.Monthly, r.Value.Monthly...)
		result.Yearly = append(result.Yearly, r.Value.Yearly...)
	}

	if stats.FailedTasks > 0 {
		c.logger.WithField("failed", stats.FailedTasks).Warn("some trend requests failed")
	}
}

func splitTaskID(id string) (stage, code string) {
	stage, code, _ = strings.Cut(id, ":")
	return stage, code
}

func (c *Collector) fetchMonthly(ctx context.Context, code, start, end string) ([]models.MonthlyTrendPoint, error) {
	resp, err := c.client.Request(ctx, c.config.APIURL, c.params(ActionMonthlyTrend, map[string]string{
		"p_productno":        code,
		"p_startmonth":       start,
		"p_endmonth":         end,
		"p_product_cls_code": c.catalog.ProductClsCode,
	}))
	if err != nil {
		return nil, err
	}
	return c.normalizer.NormalizeMonthlyTrend(resp.Body, c.config.ReturnType, code)
}

func (c *Collector) fetchYearly(ctx context.Context, code, start, end string) ([]models.YearlyTrendPoint, error) {
	resp, err := c.client.Request(ctx, c.config.APIURL, c.params(ActionYearlyTrend, map[string]string{
		"p_productno": code,
		"p_startday":  start,
		"p_endday":    end,
	}))
	if err != nil {
		return nil, err
	}
	return c.normalizer.NormalizeYearlyTrend(resp.Body, c.config.ReturnType, code)
}

// collectCatalog fetches the configured items one at a time through the period price endpoint.
func (c *Collector) collectCatalog(ctx context.Context, result *CollectResult) {
	if len(c.catalog.Items) == 0 {
		return
	}

	now := c.now()
	start := now.AddDate(0, 0, -c.catalog.CollectDaysBack).Format("2006-01-02")
	end := now.Format("2006-01-02")

	for _, item := range c.catalog.Items {
		if err := c.limiter.Wait(ctx); err != nil {
			result.Failures = append(result.Failures, Failure{Stage: "period", ItemCode: item.Code, Error: err.Error()})
			continue
		}

		label := ItemLabel{
			CategoryCode: c.catalog.CategoryCode,
			CategoryName: c.catalog.CategoryName,
			ItemCode:     item.Code,
			ItemName:     item.Name,
			KindCode:     c.catalog.KindFor(item),
			RankCode:     c.catalog.RankFor(item),
		}

		records, err := c.fetchPeriod(ctx, label, start, end)
		if err != nil {
			c.logger.WithFields(logrus.Fields{
				"item": item.Code,
			}).Warnf("period price fetch failed: %v", err)
			result.Failures = append(result.Failures, Failure{Stage: "period", ItemCode: item.Code, Error: err.Error()})
			continue
		}
		result.Daily = append(result.Daily, records...)
	}
}

func (c *Collector) fetchPeriod(ctx context.Context, label ItemLabel, start, end string) ([]models.PriceRecord, error) {
	resp, err := c.client.Request(ctx, c.config.APIURL, c.params(ActionPeriodPrices, map[string]string{
		"p_startday":         start,
		"p_endday":           end,
		"p_itemcategorycode": label.CategoryCode,
		"p_itemcode":         label.ItemCode,
		"p_kindcode":         label.KindCode,
		"p_productrankcode":  label.RankCode,
		"p_countrycode":      c.catalog.CountryCode,
		"p_convert_kg_yn":    "N",
		"p_productclscode":   c.catalog.ProductClsCode,
	}))
	if err != nil {
		return nil, err
	}
	return c.normalizer.NormalizePeriodPrices(resp.Body, c.config.ReturnType, label)
}
