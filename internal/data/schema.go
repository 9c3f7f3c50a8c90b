package data

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type ColumnType int

const (
	StringColumn ColumnType = iota
	NumberColumn
)

func (t ColumnType) String() string {
	if t == StringColumn {
		return "string"
	}
	return "number"
}

type Column struct {
	Name string
	Type ColumnType
}

// HoldOutSchema is the ordered column layout of a hold-out row. Only
// these leading fields of a line are consumed.
var HoldOutSchema = []Column{
	{"ID", StringColumn},
	{"X", NumberColumn},
	{"Y", NumberColumn},
	{"Map_X", NumberColumn},
	{"Map_Y", NumberColumn},
	{"Lat", NumberColumn},
	{"Lon", NumberColumn},
	{"Red", NumberColumn},
	{"Green", NumberColumn},
	{"Blue", NumberColumn},
}

var missingTokens = map[string]bool{
	"":     true,
	"na":   true,
	"nan":  true,
	"null": true,
}

// parseDecimal is the single numeric coercion used for every input
// table. Missing markers, NaN and infinities are rejected.
func parseDecimal(raw string) (decimal.Decimal, error) {
	v := strings.TrimSpace(raw)
	if missingTokens[strings.ToLower(v)] {
		return decimal.Zero, fmt.Errorf("missing value %q", raw)
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number: %q", raw)
	}
	return d, nil
}

func parseFloat(raw string) (float64, error) {
	d, err := parseDecimal(raw)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// coerceRow converts fields against schema, returning one value per
// column: string for StringColumn, decimal.Decimal for NumberColumn.
func coerceRow(schema []Column, fields []string) ([]any, error) {
	if len(fields) < len(schema) {
		return nil, fmt.Errorf("expected %d fields, got %d", len(schema), len(fields))
	}

	values := make([]any, len(schema))
	for i, col := range schema {
		switch col.Type {
		case StringColumn:
			v := strings.TrimSpace(fields[i])
			if missingTokens[strings.ToLower(v)] {
				return nil, fmt.Errorf("column %s: missing value", col.Name)
			}
			values[i] = v
		case NumberColumn:
			d, err := parseDecimal(fields[i])
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col.Name, err)
			}
			values[i] = d
		}
	}
	return values, nil
}
