package record

import (
	"fmt"

	"hemophilia-registry-api/internal/schema"

	"github.com/iancoleman/orderedmap"
)

// Result is the content of one table read, columns in select order.
type Result struct {
	Table   string           `json:"table"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"-"`
	// Degraded is set when the table lacks the organization column and was
	// read without any join.
	Degraded bool `json:"degraded"`
}

// Ordered renders the rows as JSON objects keeping column order.
func (r *Result) Ordered() []*orderedmap.OrderedMap {
	out := make([]*orderedmap.OrderedMap, 0, len(r.Rows))
	for _, row := range r.Rows {
		om := orderedmap.New()
		for _, col := range r.Columns {
			om.Set(col, row[col])
		}
		out = append(out, om)
	}
	return out
}

// Joined context columns added by ReadJoined.
var (
	organizationContext = []string{"branch_name", "coverage_area"}
	hospitalContext     = map[string]string{
		"code":     "hospital_code",
		"city":     "hospital_city",
		"province": "hospital_province",
		"type":     "hospital_type",
		"class":    "hospital_class",
		"contact":  "hospital_contact",
	}
	hospitalContextOrder = []string{"code", "city", "province", "type", "class", "contact"}
)

type InsertRequest struct {
	OrganizationCode string           `json:"organization_code"`
	Rows             []map[string]any `json:"rows" binding:"required"`
}

// ValidationError is a value rejected before anything is written.
type ValidationError struct {
	Column string
	Label  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	name := e.Label
	if name == "" {
		name = e.Column
	}
	if e.Value == nil || e.Value == "" {
		return fmt.Sprintf("%s: %s", name, e.Reason)
	}
	return fmt.Sprintf("%s: %s (%v)", name, e.Reason, e.Value)
}

func invalid(c schema.Column, value any, reason string) *ValidationError {
	return &ValidationError{Column: c.Name, Label: c.Label, Value: value, Reason: reason}
}
