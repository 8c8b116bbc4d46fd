package schema

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"hemophilia-registry-api/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// evolveCopyHook runs after rows are copied into the shadow table and
// before any rename. Tests replace it to force a rollback.
var evolveCopyHook = func(table string) error { return nil }

var derivedTableRe = regexp.MustCompile(`(_backup(_\d+)?|_new)$`)

// internalTables are service-owned tables that never appear in reports.
var internalTables = map[string]bool{
	"system_logs": true,
}

type Manager struct {
	DB  *gorm.DB
	Log *zap.Logger

	group singleflight.Group
}

func NewManager(db *gorm.DB, log *zap.Logger) *Manager {
	return &Manager{DB: db, Log: logger.OrNop(log)}
}

func (m *Manager) Dialect() Dialect { return DialectOf(m.DB) }

func (m *Manager) log() *zap.Logger { return logger.OrNop(m.Log) }

// EnsureTable creates the table and its unique indexes when absent.
// Safe to call any number of times.
func (m *Manager) EnsureTable(ctx context.Context, t Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	d := m.Dialect()
	db := m.DB.WithContext(ctx)

	if err := db.Exec(createTableSQL(d, t.Name, t)).Error; err != nil {
		return fmt.Errorf("create table %s: %w", t.Name, err)
	}
	skipped, err := createUniqueIndexes(db, t.Name, t)
	if err != nil {
		return err
	}
	m.warnSkippedIndexes(t.Name, skipped)
	return nil
}

// EvolveIfNeeded brings an existing table up to the descriptor by copying
// it into a fresh shadow table and swapping names. The whole swap runs in
// one transaction; on any failure the original table is untouched.
// Calls for the same table within this process are collapsed.
func (m *Manager) EvolveIfNeeded(ctx context.Context, t Table) error {
	if err := t.Validate(); err != nil {
		return err
	}

	live, err := m.Columns(ctx, t.Name)
	if err != nil {
		return err
	}
	if len(live) == 0 || len(t.Missing(live)) == 0 {
		return nil
	}

	_, err, _ = m.group.Do(t.Name, func() (any, error) {
		return nil, m.evolve(ctx, t)
	})
	return err
}

// Ensure is EnsureTable followed by EvolveIfNeeded, the page-load path.
func (m *Manager) Ensure(ctx context.Context, t Table) error {
	if err := m.EnsureTable(ctx, t); err != nil {
		return err
	}
	return m.EvolveIfNeeded(ctx, t)
}

func (m *Manager) EnsureAll(ctx context.Context, tables []Table) error {
	for _, t := range tables {
		if err := m.Ensure(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) evolve(ctx context.Context, t Table) error {
	d := m.Dialect()
	var (
		backup         string
		missing        []string
		skippedIndexes []string
	)

	err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		live, err := columnsOf(tx, d, t.Name)
		if err != nil {
			return err
		}
		missing = t.Missing(live)
		if len(live) == 0 || len(missing) == 0 {
			return nil
		}

		shadow := t.Name + "_new"
		if err := tx.Exec("DROP TABLE IF EXISTS " + Quote(shadow)).Error; err != nil {
			return err
		}
		if err := tx.Exec(createTableSQL(d, shadow, t)).Error; err != nil {
			return fmt.Errorf("create shadow %s: %w", shadow, err)
		}

		if err := tx.Exec(copySQL(d, t, shadow, live)).Error; err != nil {
			return fmt.Errorf("copy %s into %s: %w", t.Name, shadow, err)
		}
		if err := evolveCopyHook(t.Name); err != nil {
			return err
		}

		backup, err = nextBackupName(tx, t.Name)
		if err != nil {
			return err
		}
		if err := renameTable(tx, t.Name, backup); err != nil {
			return err
		}
		for _, col := range t.Unique {
			if err := tx.Exec("DROP INDEX IF EXISTS " + Quote(uniqueIndexName(t.Name, col))).Error; err != nil {
				return err
			}
		}
		if err := renameTable(tx, shadow, t.Name); err != nil {
			return err
		}
		if skippedIndexes, err = createUniqueIndexes(tx, t.Name, t); err != nil {
			return err
		}
		return d.ResetIdentity(tx, t.Name)
	})
	if err != nil {
		m.log().Error("table evolution rolled back",
			zap.String("table", t.Name),
			zap.Strings("missing", missing),
			zap.Error(err),
		)
		return fmt.Errorf("evolve %s: %w", t.Name, err)
	}
	m.warnSkippedIndexes(t.Name, skippedIndexes)
	if backup != "" {
		m.log().Info("table evolved",
			zap.String("table", t.Name),
			zap.Strings("added", missing),
			zap.String("backup", backup),
		)
	}
	return nil
}

func (m *Manager) HasTable(ctx context.Context, name string) (bool, error) {
	if !ValidIdentifier(name) {
		return false, nil
	}
	cols, err := m.Columns(ctx, name)
	if err != nil {
		return false, err
	}
	return len(cols) > 0, nil
}

// Columns lists the live columns of name; empty when the table is absent.
func (m *Manager) Columns(ctx context.Context, name string) ([]string, error) {
	if !ValidIdentifier(name) {
		return nil, fmt.Errorf("invalid table name %q", name)
	}
	return columnsOf(m.DB.WithContext(ctx), m.Dialect(), name)
}

// ListTables returns live tables excluding backups, shadows, engine
// catalog tables and service-internal tables.
func (m *Manager) ListTables(ctx context.Context) ([]string, error) {
	all, err := m.DB.WithContext(ctx).Migrator().GetTables()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(all))
	for _, name := range all {
		if IsDerivedTable(name) || internalTables[name] {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

// IsDerivedTable reports backup, shadow and engine catalog tables.
func IsDerivedTable(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "sqlite_") || strings.HasPrefix(lower, "pg_") {
		return true
	}
	return derivedTableRe.MatchString(lower)
}

func columnsOf(db *gorm.DB, d Dialect, table string) ([]string, error) {
	query, args := d.columnsSQL(table)
	var cols []string
	if err := db.Raw(query, args...).Scan(&cols).Error; err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	return cols, nil
}

func createTableSQL(d Dialect, name string, t Table) string {
	defs := []string{d.IdentityColumn()}
	if t.OrgColumn != "" {
		defs = append(defs, Quote(t.OrgColumn)+" TEXT")
	}
	for _, c := range t.Columns {
		if c.Name == t.OrgColumn {
			continue
		}
		defs = append(defs, Quote(c.Name)+" "+d.ColumnType(c.Kind))
	}
	defs = append(defs, Quote(CreatedAtColumn)+" "+d.TimestampType()+" NOT NULL")

	return "CREATE TABLE IF NOT EXISTS " + Quote(name) + " (\n\t" + strings.Join(defs, ",\n\t") + "\n)"
}

// createUniqueIndexes builds the unique indexes of t. A column whose
// existing rows already repeat a value is returned in skipped instead; the
// table stays usable and uniqueness for it is left to callers.
func createUniqueIndexes(db *gorm.DB, name string, t Table) (skipped []string, err error) {
	for _, col := range t.Unique {
		dup, err := hasDuplicates(db, name, col)
		if err != nil {
			return nil, err
		}
		if dup {
			skipped = append(skipped, col)
			continue
		}
		stmt := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)",
			Quote(uniqueIndexName(name, col)), Quote(name), Quote(col))
		if err := db.Exec(stmt).Error; err != nil {
			return nil, fmt.Errorf("unique index %s.%s: %w", name, col, err)
		}
	}
	return skipped, nil
}

func hasDuplicates(db *gorm.DB, table, col string) (bool, error) {
	q := fmt.Sprintf(
		"SELECT COUNT(*) FROM (SELECT %s FROM %s WHERE %s IS NOT NULL GROUP BY %s HAVING COUNT(*) > 1) d",
		Quote(col), Quote(table), Quote(col), Quote(col))
	var n int64
	if err := db.Raw(q).Scan(&n).Error; err != nil {
		return false, fmt.Errorf("duplicate check %s.%s: %w", table, col, err)
	}
	return n > 0, nil
}

func (m *Manager) warnSkippedIndexes(table string, cols []string) {
	if len(cols) == 0 {
		return
	}
	m.log().Warn("unique index not created, existing rows repeat values",
		zap.String("table", table),
		zap.Strings("columns", cols),
	)
}

// copySQL copies every row of t into shadow. Columns the old table lacks
// take their kind's zero value; a missing organization column stays NULL
// and a missing created_at gets the current time.
func copySQL(d Dialect, t Table, shadow string, live []string) string {
	have := make(map[string]bool, len(live))
	for _, c := range live {
		have[c] = true
	}

	var targets, exprs []string
	for _, col := range t.RequiredColumns() {
		switch {
		case have[col]:
			targets = append(targets, Quote(col))
			exprs = append(exprs, Quote(col))
		case col == IDColumn || col == t.OrgColumn:
		case col == CreatedAtColumn:
			targets = append(targets, Quote(col))
			exprs = append(exprs, d.NowLiteral())
		default:
			targets = append(targets, Quote(col))
			exprs = append(exprs, d.ZeroLiteral(t.kindOf(col)))
		}
	}

	order := ""
	if have[IDColumn] {
		order = " ORDER BY " + Quote(IDColumn)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s%s",
		Quote(shadow), strings.Join(targets, ", "), strings.Join(exprs, ", "), Quote(t.Name), order)
}

func nextBackupName(tx *gorm.DB, table string) (string, error) {
	candidate := table + "_backup"
	for n := 2; ; n++ {
		exists := tx.Migrator().HasTable(candidate)
		if !exists {
			return candidate, nil
		}
		if n > 1000 {
			return "", fmt.Errorf("no free backup name for %s", table)
		}
		candidate = fmt.Sprintf("%s_backup_%d", table, n)
	}
}

func renameTable(tx *gorm.DB, from, to string) error {
	if err := tx.Exec("ALTER TABLE " + Quote(from) + " RENAME TO " + Quote(to)).Error; err != nil {
		return fmt.Errorf("rename %s to %s: %w", from, to, err)
	}
	return nil
}
