package schema

import (
	"fmt"
	"regexp"
)

type Kind int

const (
	Text Kind = iota
	Integer
	Real
)

func (k Kind) String() string {
	switch k {
	case Integer:
		return "integer"
	case Real:
		return "real"
	default:
		return "text"
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Column is one data column of a record table.
type Column struct {
	Name     string   `json:"name"`
	Kind     Kind     `json:"kind"`
	Label    string   `json:"label"`
	Enum     []string `json:"enum,omitempty"`
	Required bool     `json:"required"`
	// Max is an inclusive upper bound for numbers; zero means none.
	Max float64 `json:"max,omitempty"`
}

// Table describes a table the service owns. Descriptors live in code and
// are never persisted.
type Table struct {
	Name  string `json:"name"`
	Title string `json:"title"`

	// OrgColumn links rows to organizations by code; empty when the table
	// has no organization link.
	OrgColumn string `json:"org_column,omitempty"`
	// HospitalColumn holds a hospital name, joined to the directory by value.
	HospitalColumn string `json:"hospital_column,omitempty"`
	// Directory tables (organizations, hospitals) are not record tables.
	Directory bool `json:"directory"`
	// Derived tables are rebuilt from other tables and never entered by hand.
	Derived bool `json:"derived"`

	// TotalFlagColumn is set to 1 on rows whose RowLabelColumn value is one
	// of TotalLabels.
	RowLabelColumn  string   `json:"row_label_column,omitempty"`
	TotalFlagColumn string   `json:"total_flag_column,omitempty"`
	TotalLabels     []string `json:"total_labels,omitempty"`

	Columns []Column `json:"columns"`
	Unique  []string `json:"unique,omitempty"`
}

const (
	IDColumn        = "id"
	CreatedAtColumn = "created_at"
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ValidIdentifier guards every table and column name that reaches SQL.
func ValidIdentifier(name string) bool {
	return identRe.MatchString(name)
}

func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// RequiredColumns is every column the live table must have, in table order.
func (t Table) RequiredColumns() []string {
	out := []string{IDColumn}
	if t.OrgColumn != "" {
		out = append(out, t.OrgColumn)
	}
	for _, c := range t.Columns {
		if c.Name == t.OrgColumn {
			continue
		}
		out = append(out, c.Name)
	}
	return append(out, CreatedAtColumn)
}

// Missing lists required columns absent from live.
func (t Table) Missing(live []string) []string {
	have := make(map[string]bool, len(live))
	for _, c := range live {
		have[c] = true
	}
	var missing []string
	for _, c := range t.RequiredColumns() {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

func (t Table) Validate() error {
	if !ValidIdentifier(t.Name) {
		return fmt.Errorf("invalid table name %q", t.Name)
	}
	if t.OrgColumn != "" && !ValidIdentifier(t.OrgColumn) {
		return fmt.Errorf("table %s: invalid organization column %q", t.Name, t.OrgColumn)
	}
	seen := map[string]bool{IDColumn: true, CreatedAtColumn: true}
	for _, c := range t.Columns {
		if !ValidIdentifier(c.Name) {
			return fmt.Errorf("table %s: invalid column name %q", t.Name, c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("table %s: duplicate column %q", t.Name, c.Name)
		}
		seen[c.Name] = true
	}
	if t.HospitalColumn != "" {
		if _, ok := t.Column(t.HospitalColumn); !ok {
			return fmt.Errorf("table %s: hospital column %q is not a column", t.Name, t.HospitalColumn)
		}
	}
	for _, u := range t.Unique {
		if u != t.OrgColumn {
			if _, ok := t.Column(u); !ok {
				return fmt.Errorf("table %s: unique column %q is not a column", t.Name, u)
			}
		}
	}
	return nil
}

func (t Table) kindOf(name string) Kind {
	if c, ok := t.Column(name); ok {
		return c.Kind
	}
	return Text
}

func uniqueIndexName(table, column string) string {
	return "ux_" + table + "_" + column
}

// InputColumns are the columns a person fills in: everything except the
// computed total flag.
func (t Table) InputColumns() []Column {
	out := make([]Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == t.TotalFlagColumn {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (t Table) IsTotalLabel(v string) bool {
	for _, l := range t.TotalLabels {
		if l == v {
			return true
		}
	}
	return false
}
