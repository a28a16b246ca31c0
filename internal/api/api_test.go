package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"agri-price-tracker/internal/database"
	"agri-price-tracker/internal/logger"
	"agri-price-tracker/internal/models"
)

type envelope struct {
	Code  int             `json:"code"`
	Msg   string          `json:"msg"`
	Error string          `json:"error"`
	Data  json.RawMessage `json:"data"`
}

func price(v int64) *int64 { return &v }

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Initialize("file:"+t.Name()+"?mode=memory&cache=shared", logger.Discard())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })

	repo := database.NewPriceRepository(db, logger.Discard())
	batch := database.Batch{
		Monthly: []models.MonthlyTrendPoint{
			{ItemCode: "211", YearMonth: "2023-01", MaxPrice: price(4000), MinPrice: price(2000)},
			{ItemCode: "211", YearMonth: "2023-07", MaxPrice: price(2000), MinPrice: price(1000)},
		},
		Yearly: []models.YearlyTrendPoint{
			{ItemCode: "211", Year: "2022", MaxPrice: price(3000), MinPrice: price(1000)},
			{ItemCode: "211", Year: "2023", MaxPrice: price(3000), MinPrice: price(2000)},
		},
	}
	for i, v := range []int64{10, 10, 10, 10, 100} {
		batch.Prices = append(batch.Prices, models.PriceRecord{
			Date:     time.Date(2024, 1, 10+i, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
			ItemCode: "211", ItemName: "cabbage", CategoryCode: "200", Unit: "1 head",
			KindCode: "01", RankCode: "04", Price: price(v),
		})
	}
	if _, err := repo.SaveCollection(context.Background(), batch, database.ModeUpsert); err != nil {
		t.Fatalf("seed: %v", err)
	}

	r := gin.New()
	h := SetupRoutes(r.Group("/api/v1"), repo, logger.Discard())
	h.now = func() time.Time { return time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC) }
	return r
}

func get(t *testing.T, r *gin.Engine, path string) (int, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s: invalid body %q: %v", path, w.Body.String(), err)
	}
	return w.Code, env
}

func TestPriceEndpoints(t *testing.T) {
	r := newTestRouter(t)

	code, env := get(t, r, "/api/v1/prices?item_code=211&start=2024-01-12&end=2024-01-13")
	if code != http.StatusOK || env.Code != 200 || env.Msg != "ok" {
		t.Fatalf("prices: %d %+v", code, env)
	}
	var rows []models.PriceRow
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].Date != "2024-01-13" {
		t.Errorf("prices = %+v", rows)
	}

	_, env = get(t, r, "/api/v1/prices/latest")
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Date != "2024-01-14" || *rows[0].Price != 100 {
		t.Errorf("latest = %+v", rows)
	}

	_, env = get(t, r, "/api/v1/prices/date/2024-01-10")
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("by date = %+v", rows)
	}

	_, env = get(t, r, "/api/v1/prices/trend/211?days=8")
	var trend struct {
		Days   int               `json:"days"`
		Points []models.PriceRow `json:"points"`
	}
	if err := json.Unmarshal(env.Data, &trend); err != nil {
		t.Fatal(err)
	}
	// since 2024-01-12
	if trend.Days != 8 || len(trend.Points) != 3 || trend.Points[0].Date != "2024-01-12" {
		t.Errorf("trend = %+v", trend)
	}
}

func TestBadRequests(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{
		"/api/v1/prices",
		"/api/v1/prices?item_code=211&start=20240101",
		"/api/v1/prices/date/yesterday",
		"/api/v1/prices/trend/211?days=-1",
		"/api/v1/runs?limit=abc",
		"/api/v1/analysis/outliers?method=mad",
		"/api/v1/analysis/outliers?threshold=zero",
	} {
		code, env := get(t, r, path)
		if code != http.StatusBadRequest || env.Error == "" {
			t.Errorf("%s: status %d, body %+v", path, code, env)
		}
	}
}

func TestStatsAndRuns(t *testing.T) {
	r := newTestRouter(t)

	_, env := get(t, r, "/api/v1/stats")
	var stats database.Statistics
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalRecords != 5 || stats.MonthlyPoints != 2 || stats.YearlyPoints != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.LastRun == nil || stats.LastRun.TotalFetched != 9 {
		t.Errorf("last run = %+v", stats.LastRun)
	}

	_, env = get(t, r, "/api/v1/runs?limit=5")
	var runs []models.CollectionRun
	if err := json.Unmarshal(env.Data, &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Status != models.RunStatusSuccess {
		t.Errorf("runs = %+v", runs)
	}

	_, env = get(t, r, "/api/v1/products")
	var products []models.Product
	if err := json.Unmarshal(env.Data, &products); err != nil {
		t.Fatal(err)
	}
	if len(products) != 1 || products[0].Name != "cabbage" {
		t.Errorf("products = %+v", products)
	}
}

func TestAnalysisEndpoints(t *testing.T) {
	r := newTestRouter(t)

	_, env := get(t, r, "/api/v1/analysis/outliers?method=zscore")
	var out struct {
		Method   string `json:"method"`
		Count    int    `json:"count"`
		Outliers []struct {
			Price int64  `json:"price"`
			Label string `json:"label"`
		} `json:"outliers"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatal(err)
	}
	if out.Method != "zscore" || out.Count != 1 || out.Outliers[0].Price != 100 || out.Outliers[0].Label != "high-outlier" {
		t.Errorf("outliers = %+v", out)
	}

	_, env = get(t, r, "/api/v1/analysis/range")
	var ranges []struct {
		Min   int64 `json:"min"`
		Max   int64 `json:"max"`
		Count int   `json:"count"`
	}
	if err := json.Unmarshal(env.Data, &ranges); err != nil {
		t.Fatal(err)
	}
	if len(ranges) != 1 || ranges[0].Min != 10 || ranges[0].Max != 100 || ranges[0].Count != 5 {
		t.Errorf("range = %+v", ranges)
	}

	_, env = get(t, r, "/api/v1/analysis/seasonal?item_code=211")
	var seasonal struct {
		PeakTroughs []struct {
			PeakMonth   int `json:"peak_month"`
			TroughMonth int `json:"trough_month"`
		} `json:"peak_troughs"`
	}
	if err := json.Unmarshal(env.Data, &seasonal); err != nil {
		t.Fatal(err)
	}
	if len(seasonal.PeakTroughs) != 1 || seasonal.PeakTroughs[0].PeakMonth != 1 || seasonal.PeakTroughs[0].TroughMonth != 7 {
		t.Errorf("seasonal = %+v", seasonal)
	}

	_, env = get(t, r, "/api/v1/analysis/yearly")
	var yearly []struct {
		Year  string `json:"year"`
		Trend string `json:"trend"`
	}
	if err := json.Unmarshal(env.Data, &yearly); err != nil {
		t.Fatal(err)
	}
	if len(yearly) != 2 || yearly[1].Trend != "uptrend" {
		t.Errorf("yearly = %+v", yearly)
	}
}
