package kamis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agri-price-tracker/internal/config"
	"agri-price-tracker/internal/logger"
)

func kamisStub(t *testing.T, dailyBody string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("p_cert_key") != "key" || q.Get("p_cert_id") != "id" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch q.Get("action") {
		case ActionDailySales:
			fmt.Fprint(w, dailyBody)
		case ActionMonthlyTrend:
			if q.Get("p_productno") == "2" {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			fmt.Fprintf(w, `<document><data><error_code>000</error_code>
				<item><yyyy>2023</yyyy><mm>06</mm><max>2,000</max><min>1,000</min></item>
				<item><yyyy>2023</yyyy><mm>07</mm><max>2,200</max><min>1,100</min></item>
			</data></document>`)
		case ActionYearlyTrend:
			fmt.Fprintf(w, `<document><data><error_code>000</error_code>
				<item><yyyy>2022</yyyy><max>3,000</max><min>1,000</min></item>
			</data></document>`)
		case ActionPeriodPrices:
			if q.Get("p_itemcode") != "211" || q.Get("p_kindcode") != "01" {
				t.Errorf("unexpected period params: %s", r.URL.RawQuery)
			}
			fmt.Fprint(w, `<document><data><error_code>000</error_code>
				<item><itemname>cabbage</itemname><kindname>spring</kindname><countyname>average</countyname><yyyy>2024</yyyy><regday>01/05</regday><price>3,450</price></item>
			</data></document>`)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
}

const twoProducts = `<document><data><error_code>000</error_code>
	<item><productno>1</productno><productName>rice</productName><lastest_day>2024-01-15</lastest_day><dpr1>54,200</dpr1></item>
	<item><productno>2</productno><productName>bean</productName><lastest_day>2024-01-15</lastest_day><dpr1>9,800</dpr1></item>
	<item><productno>1</productno><productName>rice again</productName><lastest_day>2024-01-15</lastest_day><dpr1>54,100</dpr1></item>
</data></document>`

func newTestCollector(srvURL string, catalog *config.Catalog) *Collector {
	client := NewClient(DefaultClientConfig(), logger.Discard())
	client.SetSleep(func(context.Context, time.Duration) error { return nil })

	c := NewCollector(CollectorConfig{
		APIURL:  srvURL,
		CertKey: "key",
		CertID:  "id",
		Workers: 3,
		Monthly: true,
		Yearly:  true,
	}, catalog, client, logger.Discard())
	c.now = func() time.Time { return time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestCollect(t *testing.T) {
	srv := kamisStub(t, twoProducts)
	defer srv.Close()

	catalog := config.DefaultCatalog()
	catalog.CategoryCode = "200"
	catalog.DefaultKindCode = "01"
	catalog.Items = []config.CatalogItem{{Code: "211", Name: "cabbage"}}

	res, err := newTestCollector(srv.URL, catalog).Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if len(res.Products) != 2 {
		t.Errorf("products = %d, want 2", len(res.Products))
	}
	// 3 daily records plus 1 period record
	if len(res.Daily) != 4 {
		t.Errorf("daily = %d, want 4", len(res.Daily))
	}
	// product 2 monthly task fails, product 1 monthly yields 2 points
	if len(res.Monthly) != 2 {
		t.Errorf("monthly = %d, want 2", len(res.Monthly))
	}
	if len(res.Yearly) != 2 {
		t.Errorf("yearly = %d, want 2", len(res.Yearly))
	}
	if len(res.Failures) != 1 || res.Failures[0].Stage != "monthly" || res.Failures[0].ItemCode != "2" {
		t.Errorf("failures = %+v, want one monthly failure for item 2", res.Failures)
	}

	last := res.Daily[len(res.Daily)-1]
	if last.ItemCode != "211" || last.CategoryCode != "200" || last.Date != "2024-01-05" || last.RankCode != "04" {
		t.Errorf("unexpected period record: %+v", last)
	}
}

func TestCollectDiscoveryFailure(t *testing.T) {
	tests := map[string]string{
		"no data":   `<document><data><error_code>001</error_code></data></document>`,
		"malformed": `<document><data>`,
		"empty":     `<document><data><error_code>000</error_code></data></document>`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			srv := kamisStub(t, body)
			defer srv.Close()

			_, err := newTestCollector(srv.URL, nil).Collect(context.Background())
			if !errors.Is(err, ErrDiscoveryFailed) {
				t.Fatalf("err = %v, want ErrDiscoveryFailed", err)
			}
		})
	}
}

func TestCollectDiscoveryHTTPError(t *testing.T) {
	srv := kamisStub(t, twoProducts)
	defer srv.Close()

	c := newTestCollector(srv.URL, nil)
	c.config.CertKey = "wrong"
	if _, err := c.Collect(context.Background()); !errors.Is(err, ErrDiscoveryFailed) {
		t.Fatalf("err = %v, want ErrDiscoveryFailed", err)
	}
}

func TestTrendWindows(t *testing.T) {
	sm, em, sy, ey := trendWindows(time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC))
	if sm != "202303" || em != "202403" || sy != "2019" || ey != "2024" {
		t.Errorf("windows = %s %s %s %s", sm, em, sy, ey)
	}
}
