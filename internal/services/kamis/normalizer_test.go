package kamis

import (
	"errors"
	"testing"

	"agri-price-tracker/internal/logger"
)

const dailySalesXML = `<?xml version="1.0" encoding="utf-8"?>
<document>
  <condition><item><p_product_cls_code>01</p_product_cls_code></item></condition>
  <data>
    <error_code>000</error_code>
    <item>
      <product_cls_code>01</product_cls_code>
      <product_cls_name>retail</product_cls_name>
      <category_code>100</category_code>
      <category_name>grains</category_name>
      <productno>1</productno>
      <lastest_day>2024-01-15</lastest_day>
      <productName>rice</productName>
      <item_name>rice/20kg</item_name>
      <unit>20kg</unit>
      <dpr1>54,200</dpr1>
    </item>
    <item>
      <product_cls_code>01</product_cls_code>
      <product_cls_name>retail</product_cls_name>
      <category_code>100</category_code>
      <category_name>grains</category_name>
      <productno>1</productno>
      <lastest_day>2024-01-15</lastest_day>
      <productName>rice duplicate</productName>
      <item_name>rice/20kg</item_name>
      <unit>20kg</unit>
      <dpr1>-</dpr1>
    </item>
    <item>
      <product_cls_code>01</product_cls_code>
      <category_code>200</category_code>
      <category_name>vegetables</category_name>
      <productno>2</productno>
      <lastest_day>20240115</lastest_day>
      <productName>cabbage</productName>
      <unit>1 head</unit>
      <dpr1>0</dpr1>
    </item>
  </data>
</document>`

func TestNormalizeDailySalesXML(t *testing.T) {
	n := NewNormalizer(logger.Discard())
	records, products, err := n.NormalizeDailySales([]byte(dailySalesXML), FormatXML)
	if err != nil {
		t.Fatalf("NormalizeDailySales: %v", err)
	}

	if len(products) != 2 {
		t.Fatalf("products = %d, want 2", len(products))
	}
	if products[0].Code != "1" || products[0].Name != "rice" {
		t.Errorf("first occurrence must win, got %+v", products[0])
	}

	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	r := records[0]
	if r.Date != "2024-01-15" || r.ItemCode != "1" || r.KindName != "rice/20kg" || r.RankCode != "01" || r.RankLabel != "retail" {
		t.Errorf("unexpected mapping: %+v", r)
	}
	if r.Price == nil || *r.Price != 54200 {
		t.Errorf("price = %v, want 54200", r.Price)
	}
	if records[1].Price != nil || records[2].Price != nil {
		t.Error("'-' and '0' must map to no price")
	}
	if records[2].Date != "2024-01-15" {
		t.Errorf("compact date not normalized: %q", records[2].Date)
	}
}

func TestNormalizeNoDataCode(t *testing.T) {
	n := NewNormalizer(logger.Discard())

	bodies := map[string]struct {
		body   string
		format Format
	}{
		"json array":  {`{"data":["001"]}`, FormatJSON},
		"json object": {`{"data":{"error_code":"001"}}`, FormatJSON},
		"xml":         {`<document><data><error_code>001</error_code></data></document>`, FormatXML},
		"provider":    {`<document><resultCode>200</resultCode><resultMsg>bad key</resultMsg></document>`, FormatXML},
	}
	for name, tc := range bodies {
		t.Run(name, func(t *testing.T) {
			records, err := n.NormalizePeriodPrices([]byte(tc.body), tc.format, ItemLabel{ItemCode: "211"})
			if err != nil {
				t.Fatalf("err = %v, want nil", err)
			}
			if records == nil || len(records) != 0 {
				t.Errorf("records = %v, want an empty slice", records)
			}
		})
	}
}

func TestNormalizeMalformedBody(t *testing.T) {
	n := NewNormalizer(logger.Discard())

	for _, body := range []string{"", "<document><data>", "{not json"} {
		_, err := n.NormalizePeriodPrices([]byte(body), FormatXML, ItemLabel{})
		if !errors.Is(err, ErrParse) {
			t.Errorf("body %q: err = %v, want ErrParse", body, err)
		}
	}
}

func TestNormalizePeriodPricesJSON(t *testing.T) {
	body := `{"condition":[],"data":{"error_code":"000","item":[
		{"itemname":"cabbage","kindname":"spring","countyname":"average","marketname":"","yyyy":"2024","regday":"1/5","price":"3,450"},
		{"itemname":"cabbage","kindname":"spring","countyname":"seoul","yyyy":2024,"regday":"01.06","price":3500},
		{"itemname":"cabbage","kindname":"spring","countyname":"normal year","yyyy":"avg","regday":"01/06","price":"3,000"},
		{"itemname":"cabbage","kindname":"spring","countyname":"seoul","yyyy":"2024","regday":"13/40","price":"1"}
	]}}`
	label := ItemLabel{CategoryCode: "200", CategoryName: "vegetables", ItemCode: "211", KindCode: "01", RankCode: "04", Unit: "1 head"}

	n := NewNormalizer(logger.Discard())
	records, err := n.NormalizePeriodPrices([]byte(body), FormatJSON, label)
	if err != nil {
		t.Fatalf("NormalizePeriodPrices: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2 (malformed year and day skipped)", len(records))
	}
	first := records[0]
	if first.Date != "2024-01-05" || first.MarketName != "average" || first.ItemCode != "211" || first.KindCode != "01" || first.Unit != "1 head" {
		t.Errorf("unexpected first record: %+v", first)
	}
	if first.Price == nil || *first.Price != 3450 {
		t.Errorf("price = %v, want 3450", first.Price)
	}
	if records[1].Date != "2024-01-06" || *records[1].Price != 3500 {
		t.Errorf("numeric year/price not handled: %+v", records[1])
	}
}

func TestNormalizeSingleItemObject(t *testing.T) {
	body := `{"data":{"error_code":"000","item":{"yyyy":"2023","max":"5,000","min":"3,000"}}}`
	n := NewNormalizer(logger.Discard())
	points, err := n.NormalizeYearlyTrend([]byte(body), FormatJSON, "111")
	if err != nil {
		t.Fatalf("NormalizeYearlyTrend: %v", err)
	}
	if len(points) != 1 || points[0].Year != "2023" || *points[0].MaxPrice != 5000 || *points[0].MinPrice != 3000 {
		t.Errorf("unexpected points: %+v", points)
	}
}

func TestNormalizeMonthlyTrend(t *testing.T) {
	body := `<document><resultCode>0000</resultCode><item><yyyy>2023</yyyy><mm>7</mm><max>1,200</max><min>800</min></item><item><yyyy>2023</yyyy><mm>13</mm><max>1</max><min>1</min></item></document>`
	n := NewNormalizer(logger.Discard())
	points, err := n.NormalizeMonthlyTrend([]byte(body), FormatXML, "111")
	if err != nil {
		t.Fatalf("NormalizeMonthlyTrend: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("points = %d, want 1", len(points))
	}
	if points[0].YearMonth != "2023-07" || points[0].Month() != 7 || points[0].ItemCode != "111" {
		t.Errorf("unexpected point: %+v", points[0])
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantNil bool
	}{
		{"1,234", 1234, false},
		{" 500 ", 500, false},
		{"12,345,678", 12345678, false},
		{"1234.6", 1235, false},
		{"", 0, true},
		{"  ", 0, true},
		{"-", 0, true},
		{"0", 0, true},
		{"abc", 0, true},
		{"-100", 0, true},
		{"99999999999999999999", 0, true},
		{"9,223,372,036,854,775,808", 0, true},
		{"1e19", 0, true},
		{"9.3e18", 0, true},
		{"9223372036854775807", 9223372036854775807, false},
	}
	for _, tt := range tests {
		got := ParsePrice(tt.in)
		if tt.wantNil {
			if got != nil {
				t.Errorf("ParsePrice(%q) = %d, want nil", tt.in, *got)
			}
			continue
		}
		if got == nil || *got != tt.want {
			t.Errorf("ParsePrice(%q) = %v, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPeriodDate(t *testing.T) {
	tests := []struct {
		yyyy, regday, want string
		ok                 bool
	}{
		{"2024", "1/5", "2024-01-05", true},
		{"2024", "12.31", "2024-12-31", true},
		{"2024", "02/30", "", false},
		{"24", "01/05", "", false},
		{"2024", "0105", "", false},
	}
	for _, tt := range tests {
		got, ok := periodDate(tt.yyyy, tt.regday)
		if ok != tt.ok || got != tt.want {
			t.Errorf("periodDate(%q, %q) = %q, %v; want %q, %v", tt.yyyy, tt.regday, got, ok, tt.want, tt.ok)
		}
	}
}
