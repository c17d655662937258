package utils

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// IsDate reports whether s is a calendar date in yyyy-MM-dd form.
func IsDate(s string) bool {
	_, err := time.ParseInLocation(DateLayout, s, time.UTC)
	return err == nil
}

// ParseISOTime accepts RFC 3339 timestamps as well as bare dates and
// zone-less timestamps, which are read as UTC.
func ParseISOTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, fmt.Errorf("empty time string")
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return &t, nil
	}

	layouts := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		DateLayout,
	}
	for _, layout := range layouts {
		if tt, e := time.ParseInLocation(layout, s, time.UTC); e == nil {
			return &tt, nil
		}
	}

	return nil, fmt.Errorf("failed to parse time: %v", s)
}
