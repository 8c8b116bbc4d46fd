package record

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hemophilia-registry-api/internal/catalog"
	"hemophilia-registry-api/internal/logger"
	"hemophilia-registry-api/internal/schema"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrUnknownTable = errors.New("unknown table")

type Catalog interface {
	Lookup(name string) (schema.Table, bool)
}

// Store appends records and reads them back joined with organization and
// hospital context. It performs no value validation; callers run
// Normalize first.
type Store struct {
	DB      *gorm.DB
	Schema  *schema.Manager
	Catalog Catalog
	Log     *zap.Logger
}

func NewStore(db *gorm.DB, mgr *schema.Manager, cat Catalog, log *zap.Logger) *Store {
	return &Store{DB: db, Schema: mgr, Catalog: cat, Log: logger.OrNop(log)}
}

func (s *Store) dialect() schema.Dialect { return schema.DialectOf(s.DB) }

func (s *Store) Lookup(table string) (schema.Table, error) {
	t, ok := s.Catalog.Lookup(table)
	if !ok {
		return schema.Table{}, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return t, nil
}

// EnsureSchema creates or evolves the live table of a catalog entry.
func (s *Store) EnsureSchema(ctx context.Context, table string) (schema.Table, error) {
	t, err := s.Lookup(table)
	if err != nil {
		return t, err
	}
	return t, s.Schema.Ensure(ctx, t)
}

// Insert appends one row. Field names must be columns of the catalog entry;
// an empty organizationCode stores NULL.
func (s *Store) Insert(ctx context.Context, table, organizationCode string, fields map[string]any) error {
	return s.insert(s.DB.WithContext(ctx), table, organizationCode, fields)
}

// InsertMany appends rows in one transaction.
func (s *Store) InsertMany(ctx context.Context, table, organizationCode string, rows []map[string]any) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, fields := range rows {
			if err := s.insert(tx, table, organizationCode, fields); err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
		}
		return nil
	})
}

func (s *Store) insert(db *gorm.DB, table, organizationCode string, fields map[string]any) error {
	t, err := s.Lookup(table)
	if err != nil {
		return err
	}

	cols := make([]string, 0, len(fields)+2)
	args := make([]any, 0, len(fields)+2)

	if t.OrgColumn != "" {
		cols = append(cols, schema.Quote(t.OrgColumn))
		if organizationCode == "" {
			args = append(args, nil)
		} else {
			args = append(args, organizationCode)
		}
	} else if organizationCode != "" {
		return fmt.Errorf("table %s has no organization column", t.Name)
	}

	// catalog order keeps statements stable
	seen := 0
	for _, c := range t.Columns {
		v, ok := fields[c.Name]
		if !ok || c.Name == t.OrgColumn {
			continue
		}
		cols = append(cols, schema.Quote(c.Name))
		args = append(args, v)
		seen++
	}
	if seen != len(fields) {
		for name := range fields {
			if _, ok := t.Column(name); !ok || name == t.OrgColumn {
				return fmt.Errorf("table %s has no column %q", t.Name, name)
			}
		}
	}

	cols = append(cols, schema.Quote(schema.CreatedAtColumn))
	args = append(args, s.dialect().Now())

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		schema.Quote(t.Name), strings.Join(cols, ", "), placeholders(len(cols)))
	if err := db.Exec(stmt, args...).Error; err != nil {
		return fmt.Errorf("insert into %s: %w", t.Name, err)
	}
	return nil
}

// ReadJoined returns rows most recent first, left-joined with the
// organization directory and, for hospital-linked tables, the hospital
// directory by name. A table without the organization column is returned
// raw with Degraded set. A limit <= 0 reads everything.
//
// Tables outside the catalog are read with the same rules, using the
// conventional organization column when present.
func (s *Store) ReadJoined(ctx context.Context, table string, organizationCode *string, limit int) (*Result, error) {
	if !schema.ValidIdentifier(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	live, err := s.Schema.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(live) == 0 {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	has := setOf(live)

	t, known := s.Catalog.Lookup(table)
	orgCol := catalog.OrgColumn
	if known {
		orgCol = t.OrgColumn
	}

	if t.Directory || orgCol == "" {
		return s.readPlain(ctx, table, has, nil, limit, false)
	}
	if !has[orgCol] {
		if !known {
			return s.readPlain(ctx, table, has, nil, limit, false)
		}
		s.Log.Warn("table lacks organization column, reading without join",
			zap.String("table", table), zap.String("column", orgCol))
		return s.readPlain(ctx, table, has, nil, limit, true)
	}

	orgCols, err := s.Schema.Columns(ctx, catalog.OrganizationsTable)
	if err != nil {
		return nil, err
	}
	orgHas := setOf(orgCols)
	if !orgHas[catalog.OrgColumn] {
		s.Log.Warn("organization directory unavailable, reading without join", zap.String("table", table))
		return s.readPlain(ctx, table, has, filterFor(orgCol, organizationCode), limit, true)
	}

	selects := []string{"t.*"}
	joins := []string{fmt.Sprintf("LEFT JOIN %s o ON o.%s = t.%s",
		schema.Quote(catalog.OrganizationsTable), schema.Quote(catalog.OrgColumn), schema.Quote(orgCol))}

	for _, c := range organizationContext {
		if has[c] {
			continue
		}
		if orgHas[c] {
			selects = append(selects, fmt.Sprintf("o.%s AS %s", schema.Quote(c), schema.Quote(c)))
		} else {
			selects = append(selects, fmt.Sprintf("NULL AS %s", schema.Quote(c)))
		}
	}

	if known && t.HospitalColumn != "" && has[t.HospitalColumn] {
		hosCols, err := s.Schema.Columns(ctx, catalog.HospitalsTable)
		if err != nil {
			return nil, err
		}
		hosHas := setOf(hosCols)
		if hosHas["name"] {
			joins = append(joins, fmt.Sprintf("LEFT JOIN %s h ON h.%s = t.%s",
				schema.Quote(catalog.HospitalsTable), schema.Quote("name"), schema.Quote(t.HospitalColumn)))
			for _, src := range hospitalContextOrder {
				alias := hospitalContext[src]
				if hosHas[src] {
					selects = append(selects, fmt.Sprintf("h.%s AS %s", schema.Quote(src), schema.Quote(alias)))
				} else {
					selects = append(selects, fmt.Sprintf("NULL AS %s", schema.Quote(alias)))
				}
			}
		}
	}

	q := fmt.Sprintf("SELECT %s FROM %s t %s", strings.Join(selects, ", "), schema.Quote(table), strings.Join(joins, " "))
	var args []any
	if organizationCode != nil {
		q += fmt.Sprintf(" WHERE t.%s = ?", schema.Quote(orgCol))
		args = append(args, *organizationCode)
	}
	if has[schema.IDColumn] {
		q += " ORDER BY t." + schema.Quote(schema.IDColumn) + " DESC"
	}
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}

	return s.query(ctx, table, q, args, false)
}

type filter struct {
	column string
	value  string
}

func filterFor(column string, code *string) *filter {
	if code == nil {
		return nil
	}
	return &filter{column: column, value: *code}
}

func (s *Store) readPlain(ctx context.Context, table string, has map[string]bool, f *filter, limit int, degraded bool) (*Result, error) {
	q := "SELECT * FROM " + schema.Quote(table)
	var args []any
	if f != nil && has[f.column] {
		q += " WHERE " + schema.Quote(f.column) + " = ?"
		args = append(args, f.value)
	}
	if has[schema.IDColumn] {
		q += " ORDER BY " + schema.Quote(schema.IDColumn) + " DESC"
	}
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	return s.query(ctx, table, q, args, degraded)
}

func (s *Store) query(ctx context.Context, table, q string, args []any, degraded bool) (*Result, error) {
	rows, err := s.DB.WithContext(ctx).Raw(q, args...).Rows()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := &Result{Table: table, Columns: cols, Rows: []map[string]any{}, Degraded: degraded}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = plainValue(vals[i])
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return res, nil
}

func plainValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC()
	default:
		return v
	}
}

// Exists reports whether an organization with this code is registered.
func (s *Store) Exists(ctx context.Context, organizationCode string) (bool, error) {
	return s.countWhere(ctx, catalog.OrgColumn, organizationCode)
}

// BranchNameTaken compares branch names case-sensitively.
func (s *Store) BranchNameTaken(ctx context.Context, name string) (bool, error) {
	return s.countWhere(ctx, "branch_name", name)
}

func (s *Store) countWhere(ctx context.Context, column, value string) (bool, error) {
	cols, err := s.Schema.Columns(ctx, catalog.OrganizationsTable)
	if err != nil {
		return false, err
	}
	if !setOf(cols)[column] {
		return false, nil
	}

	var n int64
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", schema.Quote(catalog.OrganizationsTable), schema.Quote(column))
	if err := s.DB.WithContext(ctx).Raw(q, value).Scan(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func setOf(list []string) map[string]bool {
	m := make(map[string]bool, len(list))
	for _, v := range list {
		m[v] = true
	}
	return m
}
