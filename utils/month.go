package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const MonthLayout = "2006-01"

var (
	monthPattern  = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})(?:[-/](\d{1,2}))?$`)
	serialPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// NormalizeMonth converts the month encodings found in spreadsheets (Excel
// serial dates, 2024-03, 2024-03-15, 2024/3, 2024/3/15) to YYYY-MM.
func NormalizeMonth(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("month is empty")
	}

	if serialPattern.MatchString(s) {
		serial, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return "", fmt.Errorf("%q is not a valid Excel date: %w", raw, err)
		}
		// 1 is 1900-01-01, 100000 falls in 2173
		if serial < 1 || serial >= 100000 {
			return "", fmt.Errorf("%q is not a valid Excel date", raw)
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return "", fmt.Errorf("%q is not a valid Excel date: %w", raw, err)
		}
		return t.Format(MonthLayout), nil
	}

	m := monthPattern.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("%q is not a recognised month", raw)
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return "", fmt.Errorf("%q has no month %d", raw, month)
	}
	if m[3] != "" {
		day, _ := strconv.Atoi(m[3])
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if day < 1 || t.Month() != time.Month(month) {
			return "", fmt.Errorf("%q is not a calendar date", raw)
		}
	}
	return fmt.Sprintf("%04d-%02d", year, month), nil
}

// IsMonth reports whether s is already in YYYY-MM form.
func IsMonth(s string) bool {
	_, err := time.ParseInLocation(MonthLayout, s, time.UTC)
	return err == nil
}
