package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"hemophilia-registry-api/internal/catalog"
	"hemophilia-registry-api/internal/record"
	"hemophilia-registry-api/internal/schema"
	"hemophilia-registry-api/internal/util"

	"github.com/glebarez/sqlite"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq uint64

func newTestService(t *testing.T) *ReportService {
	t.Helper()

	id := atomic.AddUint64(&testDBSeq, 1)
	dsn := fmt.Sprintf("file:report_test_%d?mode=memory&cache=shared", id)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := record.NewStore(db, schema.NewManager(db, nil), catalog.Default(), nil)
	return NewReportService(store, nil, nil, nil)
}

func ensureTables(t *testing.T, s *ReportService, tables ...string) {
	t.Helper()
	for _, name := range tables {
		if _, err := s.Store.EnsureSchema(context.Background(), name); err != nil {
			t.Fatalf("ensure %s: %v", name, err)
		}
	}
}

func insert(t *testing.T, s *ReportService, table, code string, fields map[string]any) {
	t.Helper()
	if err := s.Store.Insert(context.Background(), table, code, fields); err != nil {
		t.Fatalf("insert %s: %v", table, err)
	}
}

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func sheetRows(t *testing.T, f *excelize.File, sheet string, opts ...excelize.Options) [][]string {
	t.Helper()
	rows, err := f.GetRows(sheet, opts...)
	if err != nil {
		t.Fatalf("rows of %s: %v", sheet, err)
	}
	return rows
}

type fakeArchive struct {
	uploaded map[string][]byte
	err      error
}

func (a *fakeArchive) Upload(_ context.Context, object, _ string, data []byte) (string, int64, error) {
	if a.err != nil {
		return "", 0, a.err
	}
	if a.uploaded == nil {
		a.uploaded = map[string][]byte{}
	}
	a.uploaded[object] = data
	return "gs://archive/" + object, int64(len(data)), nil
}

func (a *fakeArchive) List(_ context.Context, prefix string) ([]util.ObjectInfo, error) {
	var out []util.ObjectInfo
	for name, data := range a.uploaded {
		if strings.HasPrefix(name, prefix) {
			out = append(out, util.ObjectInfo{Name: name, Size: int64(len(data))})
		}
	}
	return out, nil
}

func TestCompile_EmptyTableKeepsItsSheet(t *testing.T) {
	svc := newTestService(t)
	ensureTables(t, svc, catalog.HospitalsTable, "mortality")
	for _, name := range []string{"RS A", "RS B", "RS C"} {
		insert(t, svc, catalog.HospitalsTable, "", map[string]any{"name": name, "city": "Kota"})
	}

	rep, err := svc.Compile(context.Background(), []string{"hospitals", "mortality"}, false)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(rep.Failed) != 0 {
		t.Fatalf("failed=%v", rep.Failed)
	}

	f := openWorkbook(t, rep.Workbook)
	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != "Rumah Sakit" || sheets[1] != "Kematian Hemofilia" {
		t.Fatalf("sheets=%v", sheets)
	}
	if rows := sheetRows(t, f, sheets[0]); len(rows) != 4 {
		t.Fatalf("hospital rows=%d want 4", len(rows))
	}
	rows := sheetRows(t, f, sheets[1])
	if len(rows) != 1 || rows[0][0] != "Penyebab Kematian" {
		t.Fatalf("mortality rows=%v", rows)
	}
	if rep.Sheets[0].Rows != 3 || rep.Sheets[1].Rows != 0 {
		t.Fatalf("summaries=%+v", rep.Sheets)
	}
}

func TestCompile_LabelsAndHiddenColumns(t *testing.T) {
	svc := newTestService(t)
	ensureTables(t, svc, catalog.OrganizationsTable, "gender_by_disorder")
	insert(t, svc, catalog.OrganizationsTable, "ORG-1", map[string]any{"branch_name": "Cabang Aceh", "coverage_area": "Aceh"})
	insert(t, svc, "gender_by_disorder", "ORG-1", map[string]any{"disorder": "Total", "male": int64(4), "female": int64(3), "is_total_row": int64(1)})

	rep, err := svc.Compile(context.Background(), []string{"gender_by_disorder"}, false)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	f := openWorkbook(t, rep.Workbook)
	rows := sheetRows(t, f, f.GetSheetName(0))
	if len(rows) != 2 {
		t.Fatalf("rows=%d", len(rows))
	}

	header := strings.Join(rows[0], "|")
	if !strings.HasPrefix(header, "HMHI cabang|Kota/Provinsi cakupan cabang|Kelainan|Laki-laki") {
		t.Fatalf("header=%s", header)
	}
	for _, technical := range []string{"id", "organization_code", "created_at", "is_total_row", "Baris total"} {
		for _, h := range rows[0] {
			if h == technical {
				t.Fatalf("technical column %q shown", technical)
			}
		}
	}
	if rows[1][0] != "Cabang Aceh" || rows[1][3] != "4" {
		t.Fatalf("data row=%v", rows[1])
	}
}

func TestCompile_MoneyStaysNumeric(t *testing.T) {
	svc := newTestService(t)
	ensureTables(t, svc, catalog.OrganizationsTable, "replacement_products")
	insert(t, svc, "replacement_products", "ORG-1", map[string]any{"product": "DDAVP", "price": float64(150000), "users": int64(12)})

	rep, err := svc.Compile(context.Background(), []string{"replacement_products"}, false)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	f := openWorkbook(t, rep.Workbook)
	sheet := f.GetSheetName(0)
	rows := sheetRows(t, f, sheet, excelize.Options{RawCellValue: true})

	col := -1
	for i, h := range rows[0] {
		if h == "Harga" {
			col = i
		}
	}
	if col < 0 {
		t.Fatalf("no price column in %v", rows[0])
	}
	if rows[1][col] != "150000" {
		t.Fatalf("raw price=%q", rows[1][col])
	}

	cell, _ := excelize.CoordinatesToCellName(col+1, 2)
	styleID, err := f.GetCellStyle(sheet, cell)
	if err != nil {
		t.Fatalf("style: %v", err)
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style.NumFmt != 3 {
		t.Fatalf("price style=%+v err=%v", style, err)
	}
	cellType, err := f.GetCellType(sheet, cell)
	if err != nil || cellType == excelize.CellTypeSharedString || cellType == excelize.CellTypeInlineString {
		t.Fatalf("price cell type=%v err=%v", cellType, err)
	}
}

func TestCompile_FailedTableGetsErrorSheet(t *testing.T) {
	svc := newTestService(t)
	ensureTables(t, svc, "mortality")

	rep, err := svc.Compile(context.Background(), []string{"mortality", "missing_table", "mortality_backup", "mortality"}, false)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if strings.Join(rep.Failed, ",") != "missing_table,mortality_backup" {
		t.Fatalf("failed=%v", rep.Failed)
	}

	f := openWorkbook(t, rep.Workbook)
	sheets := f.GetSheetList()
	want := []string{"Kematian Hemofilia", "missing_table", "mortality_backup", "Kematian Hemofilia_2"}
	if strings.Join(sheets, "|") != strings.Join(want, "|") {
		t.Fatalf("sheets=%v", sheets)
	}
	rows := sheetRows(t, f, "missing_table")
	if len(rows) != 2 || rows[0][0] != "Error" || !strings.Contains(rows[1][0], "does not exist") {
		t.Fatalf("error sheet=%v", rows)
	}
	rows = sheetRows(t, f, "mortality_backup")
	if !strings.Contains(rows[1][0], "not reportable") {
		t.Fatalf("backup sheet=%v", rows)
	}
}

func TestCompile_NoTables(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Compile(context.Background(), nil, false); !errors.Is(err, ErrNoTables) {
		t.Fatalf("expected ErrNoTables, got %v", err)
	}
}

func TestCompile_Archive(t *testing.T) {
	svc := newTestService(t)
	ensureTables(t, svc, "mortality")

	if _, err := svc.ListArchive(context.Background()); !errors.Is(err, ErrNoArchive) {
		t.Fatalf("expected ErrNoArchive, got %v", err)
	}

	archive := &fakeArchive{}
	svc.Archive = archive
	rep, err := svc.Compile(context.Background(), []string{"mortality"}, true)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.HasPrefix(rep.ArchiveURL, "gs://archive/reports/") || len(archive.uploaded) != 1 {
		t.Fatalf("archive url=%q uploaded=%d", rep.ArchiveURL, len(archive.uploaded))
	}
	objects, err := svc.ListArchive(context.Background())
	if err != nil || len(objects) != 1 {
		t.Fatalf("list: %v %v", objects, err)
	}

	archive.err = errors.New("bucket unavailable")
	rep, err = svc.Compile(context.Background(), []string{"mortality"}, true)
	if err != nil {
		t.Fatalf("archive failure must not fail compile: %v", err)
	}
	if rep.ArchiveURL != "" {
		t.Fatalf("archive url=%q", rep.ArchiveURL)
	}
}

func TestListReportableTables(t *testing.T) {
	svc := newTestService(t)
	ensureTables(t, svc, "mortality", catalog.HospitalsTable)
	if err := svc.Store.DB.Exec(`CREATE TABLE "mortality_backup" (id INTEGER)`).Error; err != nil {
		t.Fatalf("backup table: %v", err)
	}
	if err := svc.Store.DB.Exec(`CREATE TABLE "legacy_notes" (id INTEGER, body TEXT)`).Error; err != nil {
		t.Fatalf("legacy table: %v", err)
	}

	tables, err := svc.ListReportableTables(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var names []string
	for _, rt := range tables {
		names = append(names, rt.Name)
	}
	if strings.Join(names, ",") != "hospitals,legacy_notes,mortality" {
		t.Fatalf("tables=%v", names)
	}
	if !tables[2].Known || tables[2].Title != "Kematian Hemofilia" || tables[1].Known {
		t.Fatalf("titles=%+v", tables)
	}
}

func TestUniqueSheetName(t *testing.T) {
	used := map[string]int{}
	long := strings.Repeat("x", 40)
	first := uniqueSheetName(used, long)
	second := uniqueSheetName(used, long)
	if len(first) != 31 || len(second) != 31 || !strings.HasSuffix(second, "_2") {
		t.Fatalf("names=%q %q", first, second)
	}
	if got := uniqueSheetName(used, "A/B"); got != "A_B" {
		t.Fatalf("sanitized=%q", got)
	}
	if got := uniqueSheetName(used, "a_b"); got != "a_b_2" {
		t.Fatalf("case-insensitive dedupe=%q", got)
	}
}
