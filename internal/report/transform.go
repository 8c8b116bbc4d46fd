package report

import (
	"hemophilia-registry-api/internal/catalog"
	"hemophilia-registry-api/internal/schema"
)

// hidden columns never reach a sheet.
var hidden = map[string]bool{
	schema.IDColumn:        true,
	catalog.OrgColumn:      true,
	schema.CreatedAtColumn: true,
	"is_total_row":         true,
}

var moneyColumns = map[string]bool{
	"price": true,
}

// contextHeaders label the columns ReadJoined adds from the directories.
var (
	organizationHeaders = []column{
		{key: "branch_name", header: catalog.OrgRefLabel},
		{key: "coverage_area", header: catalog.LabelFor(catalog.Organizations, "coverage_area")},
	}
	hospitalHeaders = []column{
		{key: "hospital_code", header: "Kode RS"},
		{key: "hospital_city", header: "Kota RS"},
		{key: "hospital_province", header: "Provinsi RS"},
		{key: "hospital_type", header: "Tipe RS"},
		{key: "hospital_class", header: "Kelas RS"},
		{key: "hospital_contact", header: "Kontak RS"},
	}
)

// layoutFor picks display columns for the live columns of a read. Catalog
// tables get their labels and order; anything else keeps its raw names.
func layoutFor(t schema.Table, known bool, live []string) []column {
	present := make(map[string]bool, len(live))
	for _, c := range live {
		present[c] = true
	}
	placed := map[string]bool{}
	var out []column
	add := func(c column) {
		if !present[c.key] || placed[c.key] || hidden[c.key] || c.key == t.TotalFlagColumn {
			return
		}
		if c.header == "" {
			c.header = c.key
		}
		c.money = moneyColumns[c.key]
		placed[c.key] = true
		out = append(out, c)
	}

	if known {
		if !t.Directory {
			for _, c := range organizationHeaders {
				add(c)
			}
		}
		for _, c := range t.Columns {
			add(column{key: c.Name, header: c.Label})
		}
		for _, c := range hospitalHeaders {
			add(c)
		}
	}

	for _, name := range live {
		add(column{key: name, header: name})
	}
	return out
}
