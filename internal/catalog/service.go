package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"hemophilia-registry-api/internal/schema"
)

// Registry is the ordered set of table descriptors the service owns.
type Registry struct {
	tables []schema.Table
	byName map[string]int

	sumOnce  sync.Once
	checksum string
}

// NewRegistry validates every descriptor and rejects duplicate names.
func NewRegistry(tables ...schema.Table) (*Registry, error) {
	r := &Registry{byName: make(map[string]int, len(tables))}
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate table %q", t.Name)
		}
		r.byName[t.Name] = len(r.tables)
		r.tables = append(r.tables, t)
	}
	return r, nil
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default is the registry of the hemophilia registry tables.
func Default() *Registry {
	defaultOnce.Do(func() {
		all := append([]schema.Table{Organizations, Hospitals}, records...)
		reg, err := NewRegistry(all...)
		if err != nil {
			panic(err)
		}
		defaultReg = reg
	})
	return defaultReg
}

func (r *Registry) All() []schema.Table {
	out := make([]schema.Table, len(r.tables))
	copy(out, r.tables)
	return out
}

func (r *Registry) Lookup(name string) (schema.Table, bool) {
	i, ok := r.byName[strings.TrimSpace(name)]
	if !ok {
		return schema.Table{}, false
	}
	return r.tables[i], true
}

// RecordTables are the organization-linked tables people fill in.
func (r *Registry) RecordTables() []schema.Table {
	var out []schema.Table
	for _, t := range r.tables {
		if t.Directory || t.Derived {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Checksum is a stable sha256 over the serialized descriptors.
func (r *Registry) Checksum() string {
	r.sumOnce.Do(func() {
		b, err := json.Marshal(r.tables)
		if err != nil {
			return
		}
		sum := sha256.Sum256(b)
		r.checksum = hex.EncodeToString(sum[:])
	})
	return r.checksum
}

// TemplateHeaders is the import header row for t. Organization-linked
// tables lead with the organization reference column.
func TemplateHeaders(t schema.Table) []string {
	var out []string
	if t.OrgColumn != "" && !t.Directory {
		out = append(out, OrgRefLabel)
	}
	for _, c := range t.InputColumns() {
		out = append(out, c.Label)
	}
	return out
}

// LabelFor returns the display label of a column, falling back to its name.
func LabelFor(t schema.Table, column string) string {
	if c, ok := t.Column(column); ok && c.Label != "" {
		return c.Label
	}
	return column
}
