package kamis

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParsePrice turns a provider price cell into an integer amount.
// "", "-" and "0" mean no price; so do unparseable and negative values.
func ParsePrice(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" || s == "0" {
		return nil
	}
	s = strings.ReplaceAll(s, ",", "")

	v, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		if v < 0 {
			return nil
		}
		return &v
	}
	if errors.Is(err, strconv.ErrRange) {
		return nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	// float64(MaxInt64) rounds up to 2^63, which no longer fits
	f = math.Round(f)
	if f >= float64(math.MaxInt64) {
		return nil
	}
	v = int64(f)
	return &v
}

var dateLayouts = []string{"2006-01-02", "20060102", "2006/01/02", "2006.01.02"}

// normalizeDate accepts the date spellings the provider uses and returns YYYY-MM-DD.
func normalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// periodDate combines a 4-digit year with a "M/D" or "M.D" day.
func periodDate(yyyy, regday string) (string, bool) {
	yyyy = strings.TrimSpace(yyyy)
	if len(yyyy) != 4 {
		return "", false
	}
	year, err := strconv.Atoi(yyyy)
	if err != nil {
		return "", false
	}

	parts := strings.FieldsFunc(strings.TrimSpace(regday), func(r rune) bool { return r == '/' || r == '.' })
	if len(parts) != 2 {
		return "", false
	}
	month, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return "", false
	}
	day, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return "", false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// yearMonth builds "YYYY-MM" from a year and a 1 or 2 digit month.
func yearMonth(yyyy, mm string) (string, bool) {
	yyyy = strings.TrimSpace(yyyy)
	if len(yyyy) != 4 {
		return "", false
	}
	if _, err := strconv.Atoi(yyyy); err != nil {
		return "", false
	}
	m, err := strconv.Atoi(strings.TrimSpace(mm))
	if err != nil || m < 1 || m > 12 {
		return "", false
	}
	return fmt.Sprintf("%s-%02d", yyyy, m), true
}

func validYear(yyyy string) bool {
	yyyy = strings.TrimSpace(yyyy)
	if len(yyyy) != 4 {
		return false
	}
	_, err := strconv.Atoi(yyyy)
	return err == nil
}
