package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

func formatCount(n int) string {
	return printer.Sprintf("%d", n)
}

func formatFloat(v float64, digits int) string {
	return printer.Sprintf("%."+strconv.Itoa(digits)+"f", v)
}

func formatTimestamp(ts float64) string {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9)).Local().Format("2006-01-02 15:04:05")
}

func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}

// parseTime accepts unix seconds, RFC3339, or a negative duration relative to
// now such as "-2h".
func parseTime(raw string, now time.Time) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty time")
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v, nil
	}
	if strings.HasPrefix(raw, "-") {
		if d, err := time.ParseDuration(raw[1:]); err == nil {
			return unixSeconds(now.Add(-d)), nil
		}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return unixSeconds(t), nil
	}
	return 0, fmt.Errorf("cannot parse time %q (use unix seconds, RFC3339, or -<duration>)", raw)
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
