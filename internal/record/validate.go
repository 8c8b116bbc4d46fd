package record

import (
	"fmt"
	"math"
	"strings"

	"hemophilia-registry-api/internal/schema"

	"github.com/spf13/cast"
)

// Normalize converts raw form or spreadsheet values into typed column
// values for t. Text is trimmed and checked against the column's enum,
// numbers must be non-negative (integers whole) and required columns
// non-empty. The total flag is derived from the row label and never taken
// from input. Keys that are not input columns are rejected.
func Normalize(t schema.Table, raw map[string]any) (map[string]any, error) {
	for key := range raw {
		if key == t.TotalFlagColumn {
			continue
		}
		if c, ok := t.Column(key); !ok || c.Name == t.OrgColumn {
			return nil, &ValidationError{Column: key, Reason: "unknown column"}
		}
	}

	out := make(map[string]any, len(t.Columns))
	for _, c := range t.InputColumns() {
		v, err := normalizeValue(c, raw[c.Name])
		if err != nil {
			return nil, err
		}
		out[c.Name] = v
	}

	if t.TotalFlagColumn != "" {
		flag := int64(0)
		if label, ok := out[t.RowLabelColumn].(string); ok && t.IsTotalLabel(label) {
			flag = 1
		}
		out[t.TotalFlagColumn] = flag
	}
	return out, nil
}

func normalizeValue(c schema.Column, v any) (any, error) {
	if isBlank(v) {
		if c.Required {
			return nil, invalid(c, nil, "is required")
		}
		switch c.Kind {
		case schema.Integer:
			return int64(0), nil
		case schema.Real:
			return float64(0), nil
		default:
			return "", nil
		}
	}

	switch c.Kind {
	case schema.Integer:
		f, err := toNumber(v)
		if err != nil {
			return nil, invalid(c, v, "must be a number")
		}
		if err := checkRange(c, v, f); err != nil {
			return nil, err
		}
		if f != math.Trunc(f) {
			return nil, invalid(c, v, "must be a whole number")
		}
		if f >= math.MaxInt64 {
			return nil, invalid(c, v, "is too large")
		}
		return int64(f), nil

	case schema.Real:
		f, err := toNumber(v)
		if err != nil {
			return nil, invalid(c, v, "must be a number")
		}
		if err := checkRange(c, v, f); err != nil {
			return nil, err
		}
		return f, nil

	default:
		s := strings.TrimSpace(cast.ToString(v))
		if len(c.Enum) > 0 && !contains(c.Enum, s) {
			return nil, invalid(c, s, "is not an allowed value")
		}
		return s, nil
	}
}

func checkRange(c schema.Column, raw any, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return invalid(c, raw, "must be a number")
	}
	if f < 0 {
		return invalid(c, raw, "must not be negative")
	}
	if c.Max > 0 && f > c.Max {
		return invalid(c, raw, fmt.Sprintf("must be at most %g", c.Max))
	}
	return nil
}

func toNumber(v any) (float64, error) {
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	return cast.ToFloat64E(v)
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func isZero(v any) bool {
	if isBlank(v) {
		return true
	}
	f, err := toNumber(v)
	return err == nil && f == 0
}

// IsBlank reports a row where every input column, the row label included,
// is blank or zero.
func IsBlank(t schema.Table, raw map[string]any) bool {
	for _, c := range t.InputColumns() {
		if !isZero(raw[c.Name]) {
			return false
		}
	}
	return true
}

// IsEmpty reports a row whose data fields are all blank or zero. The row
// label column is not a data field, so a labelled grid row with nothing
// filled in is empty. Run it on normalized values: it does not check the
// label.
func IsEmpty(t schema.Table, raw map[string]any) bool {
	for _, c := range t.InputColumns() {
		if c.Name == t.RowLabelColumn {
			continue
		}
		if !isZero(raw[c.Name]) {
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
