package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"agri-price-tracker/internal/analysis"
	"agri-price-tracker/internal/database"
)

const (
	defaultTrendDays = 30
	maxTrendDays     = 3650
	defaultRunLimit  = 10
	maxRunLimit      = 500
)

type APIHandler struct {
	repo   *database.PriceRepository
	logger *logrus.Logger
	now    func() time.Time
}

func SetupRoutes(r *gin.RouterGroup, repo *database.PriceRepository, logger *logrus.Logger) *APIHandler {
	handler := &APIHandler{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}

	prices := r.Group("/prices")
	{
		prices.GET("", handler.ListPrices)
		prices.GET("/latest", handler.LatestPrices)
		prices.GET("/date/:date", handler.PricesByDate)
		prices.GET("/trend/:item_code", handler.PriceTrend)
	}

	r.GET("/products", handler.ListProducts)
	r.GET("/stats", handler.GetStatistics)
	r.GET("/runs", handler.ListRuns)

	a := r.Group("/analysis")
	{
		a.GET("/range", handler.RangeAnalysis)
		a.GET("/outliers", handler.OutlierAnalysis)
		a.GET("/seasonal", handler.SeasonalAnalysis)
		a.GET("/yearly", handler.YearlyAnalysis)
	}

	return handler
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": 200, "msg": "ok", "data": data})
}

func (h *APIHandler) dbError(c *gin.Context, op string, err error) {
	h.logger.WithError(err).WithField("op", op).Error("query failed")
	c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "error": "db error"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": 400, "error": msg})
}

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// intQuery reads a positive integer parameter, falling back to def and capping at max.
func intQuery(c *gin.Context, name string, def, max int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > max {
		n = max
	}
	return n, true
}

// ListPrices GET /prices?item_code=211&start=2024-01-01&end=2024-01-31
func (h *APIHandler) ListPrices(c *gin.Context) {
	itemCode := c.Query("item_code")
	if itemCode == "" {
		badRequest(c, "item_code is required")
		return
	}
	start, end := c.Query("start"), c.Query("end")
	if (start != "" && !validDate(start)) || (end != "" && !validDate(end)) {
		badRequest(c, "start and end must be YYYY-MM-DD")
		return
	}

	rows, err := h.repo.PricesByItem(c.Request.Context(), itemCode, start, end)
	if err != nil {
		h.dbError(c, "prices", err)
		return
	}
	ok(c, rows)
}

func (h *APIHandler) LatestPrices(c *gin.Context) {
	rows, err := h.repo.LatestPrices(c.Request.Context())
	if err != nil {
		h.dbError(c, "latest", err)
		return
	}
	ok(c, rows)
}

func (h *APIHandler) PricesByDate(c *gin.Context) {
	date := c.Param("date")
	if !validDate(date) {
		badRequest(c, "date must be YYYY-MM-DD")
		return
	}
	rows, err := h.repo.PricesByDate(c.Request.Context(), date)
	if err != nil {
		h.dbError(c, "by_date", err)
		return
	}
	ok(c, rows)
}

// PriceTrend GET /prices/trend/:item_code?days=30
func (h *APIHandler) PriceTrend(c *gin.Context) {
	days, valid := intQuery(c, "days", defaultTrendDays, maxTrendDays)
	if !valid {
		badRequest(c, "days must be a positive integer")
		return
	}
	itemCode := c.Param("item_code")
	rows, err := h.repo.PriceTrend(c.Request.Context(), itemCode, days, h.now())
	if err != nil {
		h.dbError(c, "trend", err)
		return
	}
	ok(c, gin.H{"item_code": itemCode, "days": days, "points": rows})
}

func (h *APIHandler) ListProducts(c *gin.Context) {
	products, err := h.repo.Products(c.Request.Context())
	if err != nil {
		h.dbError(c, "products", err)
		return
	}
	ok(c, products)
}

func (h *APIHandler) GetStatistics(c *gin.Context) {
	stats, err := h.repo.Statistics(c.Request.Context())
	if err != nil {
		h.dbError(c, "stats", err)
		return
	}
	ok(c, stats)
}

func (h *APIHandler) ListRuns(c *gin.Context) {
	limit, valid := intQuery(c, "limit", defaultRunLimit, maxRunLimit)
	if !valid {
		badRequest(c, "limit must be a positive integer")
		return
	}
	runs, err := h.repo.CollectionHistory(c.Request.Context(), limit)
	if err != nil {
		h.dbError(c, "runs", err)
		return
	}
	ok(c, runs)
}

func (h *APIHandler) RangeAnalysis(c *gin.Context) {
	records, err := h.repo.AllPrices(c.Request.Context())
	if err != nil {
		h.dbError(c, "range", err)
		return
	}
	ok(c, analysis.AnalyzeRange(records))
}

// OutlierAnalysis GET /analysis/outliers?method=iqr|zscore&threshold=1.5
func (h *APIHandler) OutlierAnalysis(c *gin.Context) {
	method, err := analysis.ParseMethod(c.DefaultQuery("method", string(analysis.MethodIQR)))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	var threshold float64
	if raw := c.Query("threshold"); raw != "" {
		threshold, err = strconv.ParseFloat(raw, 64)
		if err != nil || threshold <= 0 {
			badRequest(c, "threshold must be a positive number")
			return
		}
	}

	records, err := h.repo.AllPrices(c.Request.Context())
	if err != nil {
		h.dbError(c, "outliers", err)
		return
	}
	outliers, err := analysis.DetectOutliers(records, method, threshold)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	ok(c, gin.H{"method": method, "count": len(outliers), "outliers": outliers})
}

// SeasonalAnalysis GET /analysis/seasonal?item_code=211
func (h *APIHandler) SeasonalAnalysis(c *gin.Context) {
	points, err := h.repo.MonthlyTrends(c.Request.Context(), c.Query("item_code"))
	if err != nil {
		h.dbError(c, "seasonal", err)
		return
	}
	ok(c, analysis.AnalyzeSeasonal(points))
}

// YearlyAnalysis GET /analysis/yearly?item_code=211
func (h *APIHandler) YearlyAnalysis(c *gin.Context) {
	points, err := h.repo.YearlyTrends(c.Request.Context(), c.Query("item_code"))
	if err != nil {
		h.dbError(c, "yearly", err)
		return
	}
	ok(c, analysis.AnalyzeYearly(points))
}
