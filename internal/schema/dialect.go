package schema

import (
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	sqliteName   = "sqlite"
	postgresName = "postgres"
)

// Dialect keeps the SQL differences between the embedded store and the
// server store in one place.
type Dialect struct {
	name string
}

func DialectOf(db *gorm.DB) Dialect {
	if db != nil && db.Dialector != nil && db.Dialector.Name() == postgresName {
		return Dialect{name: postgresName}
	}
	return Dialect{name: sqliteName}
}

func (d Dialect) Name() string     { return d.name }
func (d Dialect) IsPostgres() bool { return d.name == postgresName }

// Quote quotes an identifier. Both stores accept ANSI double quotes.
func Quote(name string) string {
	return pq.QuoteIdentifier(name)
}

func (d Dialect) IdentityColumn() string {
	if d.IsPostgres() {
		return Quote(IDColumn) + " BIGSERIAL PRIMARY KEY"
	}
	return Quote(IDColumn) + " INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (d Dialect) ColumnType(k Kind) string {
	switch k {
	case Integer:
		if d.IsPostgres() {
			return "BIGINT DEFAULT 0"
		}
		return "INTEGER DEFAULT 0"
	case Real:
		if d.IsPostgres() {
			return "DOUBLE PRECISION DEFAULT 0"
		}
		return "REAL DEFAULT 0"
	default:
		return "TEXT"
	}
}

func (d Dialect) TimestampType() string {
	if d.IsPostgres() {
		return "TIMESTAMPTZ"
	}
	return "TEXT"
}

// Now is the created_at value for a new row: native time on the server,
// ISO-8601 text on the embedded store.
func (d Dialect) Now() any {
	now := time.Now().UTC()
	if d.IsPostgres() {
		return now
	}
	return now.Format("2006-01-02T15:04:05.000000Z07:00")
}

func (d Dialect) NowLiteral() string {
	if d.IsPostgres() {
		return "CURRENT_TIMESTAMP"
	}
	return "strftime('%Y-%m-%dT%H:%M:%fZ', 'now')"
}

func (d Dialect) ZeroLiteral(k Kind) string {
	switch k {
	case Integer, Real:
		return "0"
	default:
		return "''"
	}
}

// NullsLast orders expr with NULL values at the end on both stores.
func (d Dialect) NullsLast(expr string, desc bool) string {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	return fmt.Sprintf("%s %s NULLS LAST", expr, dir)
}

func (d Dialect) columnsSQL(table string) (string, []any) {
	if d.IsPostgres() {
		return "SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ? ORDER BY ordinal_position", []any{table}
	}
	return "SELECT name FROM pragma_table_info(?)", []any{table}
}

// ResetIdentity moves the id sequence past the highest id, needed after
// rows are copied in with explicit ids.
func (d Dialect) ResetIdentity(tx *gorm.DB, table string) error {
	if !d.IsPostgres() {
		return nil
	}
	q := Quote(table)
	return tx.Exec(fmt.Sprintf(
		"SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE(MAX(id), 0) + 1, false) FROM %s",
		q, q,
	)).Error
}

// TruncateAndReset removes every row and restarts the id sequence.
func (d Dialect) TruncateAndReset(tx *gorm.DB, table string) error {
	if d.IsPostgres() {
		return tx.Exec("TRUNCATE TABLE " + Quote(table) + " RESTART IDENTITY").Error
	}

	if err := tx.Exec("DELETE FROM " + Quote(table)).Error; err != nil {
		return err
	}
	var n int64
	if err := tx.Raw("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'sqlite_sequence'").Scan(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	return tx.Exec("DELETE FROM sqlite_sequence WHERE name = ?", table).Error
}
