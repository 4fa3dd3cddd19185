package main

import (
	"fmt"
	"strings"

	"kahvi/internal/reading"
)

var numericFields = map[string]bool{
	reading.FieldRawValue:      true,
	reading.FieldNMeasurements: true,
	reading.FieldStd:           true,
	reading.FieldNCups:         true,
}

// renderReadings draws projected readings as a table. Datapoints are shown as
// a count; the full series is available with --output json.
func renderReadings(rows []map[string]any, fields []string) string {
	names := readingColumns(fields)
	columns := make([]column, len(names))
	for i, name := range names {
		columns[i] = column{header: headerLabel(name), numeric: numericFields[name]}
	}

	body := make([][]string, 0, len(rows))
	for _, row := range rows {
		line := make([]string, len(names))
		for i, name := range names {
			line[i] = formatCell(name, row[name])
		}
		body = append(body, line)
	}
	return renderTable(columns, body)
}

func readingColumns(fields []string) []string {
	if len(fields) == 0 {
		return reading.Fields
	}
	out := []string{reading.FieldTimestamp}
	for _, f := range fields {
		if f != reading.FieldTimestamp {
			out = append(out, f)
		}
	}
	return out
}

// headerLabel turns a camelCase wire name into spaced title case.
func headerLabel(field string) string {
	var b strings.Builder
	for i, r := range field {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return titleCase(b.String())
}

func formatCell(field string, value any) string {
	if value == nil {
		return ""
	}
	switch field {
	case reading.FieldTimestamp:
		if v, ok := value.(float64); ok {
			return formatTimestamp(v)
		}
	case reading.FieldNCups:
		if v, ok := value.(float64); ok {
			return formatFloat(v, 2)
		}
	case reading.FieldRawValue, reading.FieldStd:
		if v, ok := value.(float64); ok {
			return formatFloat(v, 1)
		}
	case reading.FieldNMeasurements:
		if v, ok := value.(int); ok {
			return formatCount(v)
		}
	case reading.FieldDatapoints:
		if v, ok := value.([]float64); ok {
			return formatCount(len(v)) + " points"
		}
	}
	if v, ok := value.(bool); ok {
		return yesNo(v)
	}
	return fmt.Sprint(value)
}
