package logs

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq uint64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	id := atomic.AddUint64(&testDBSeq, 1)
	dsn := fmt.Sprintf("file:logs_test_%d?mode=memory&cache=shared", id)

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

	if err := (&LogService{DB: db}).Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}

	cleanup := func() { _ = db.Close() }
	return gdb, mock, cleanup
}

func ptrStr(s string) *string { return &s }

func TestLogService_Log_NilServiceIsNoop(t *testing.T) {
	var ls *LogService
	if err := ls.Log(SystemLog{Action: "x"}, nil); err != nil {
		t.Fatalf("expected nil err, got %v", err)
	}
}

func TestLogService_Log_StoresMetadata(t *testing.T) {
	db := newTestDB(t)
	ls := &LogService{DB: db}

	err := ls.Log(SystemLog{
		Service:     "importer",
		Action:      "import",
		Message:     "3 rows imported",
		TargetTable: ptrStr("mortality"),
	}, map[string]any{"ok": 3})
	if err != nil {
		t.Fatalf("log: %v", err)
	}

	var got SystemLog
	if err := db.First(&got).Error; err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got.Level != LevelInfo {
		t.Fatalf("level=%q want info", got.Level)
	}
	if string(got.Metadata) != `{"ok":3}` {
		t.Fatalf("metadata=%s", got.Metadata)
	}
}

func TestLogService_Log_UnmarshalableMetadataDropped(t *testing.T) {
	db := newTestDB(t)
	ls := &LogService{DB: db}

	if err := ls.Log(SystemLog{Service: "svc", Action: "act", Message: "msg"}, func() {}); err != nil {
		t.Fatalf("log: %v", err)
	}
	var got SystemLog
	if err := db.First(&got).Error; err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(got.Metadata) != 0 {
		t.Fatalf("metadata=%s want empty", got.Metadata)
	}
}

func TestLogService_GetLogs_FiltersAndAggregates(t *testing.T) {
	db := newTestDB(t)
	ls := &LogService{DB: db}

	for i := 0; i < 3; i++ {
		_ = ls.Log(SystemLog{Service: "record", Action: "insert", Message: "row saved", TargetTable: ptrStr("mortality")}, nil)
	}
	_ = ls.Log(SystemLog{Service: "report", Action: "export", Message: "Workbook compiled"}, nil)
	_ = ls.Log(SystemLog{Level: LevelError, Service: "schema", Action: "evolve", Message: "rolled back", TargetTable: ptrStr("inhibitors")}, nil)

	rows, aggs, total, pages, err := ls.GetLogs(LogFilterInput{})
	if err != nil {
		t.Fatalf("get logs: %v", err)
	}
	if total != 5 || len(rows) != 5 || pages != 1 {
		t.Fatalf("total=%d rows=%d pages=%d", total, len(rows), pages)
	}
	if len(aggs.ByAction) == 0 || aggs.ByAction[0].Label != "insert" || aggs.ByAction[0].Count != 3 {
		t.Fatalf("by action=%+v", aggs.ByAction)
	}

	rows, _, total, _, err = ls.GetLogs(LogFilterInput{TargetTable: ptrStr("inhibitors")})
	if err != nil {
		t.Fatalf("get logs: %v", err)
	}
	if total != 1 || rows[0].Action != "evolve" {
		t.Fatalf("table filter total=%d rows=%+v", total, rows)
	}

	_, _, total, _, err = ls.GetLogs(LogFilterInput{Search: ptrStr("WORKBOOK")})
	if err != nil {
		t.Fatalf("get logs: %v", err)
	}
	if total != 1 {
		t.Fatalf("search total=%d want 1", total)
	}

	rows, _, total, pages, err = ls.GetLogs(LogFilterInput{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("get logs: %v", err)
	}
	if total != 5 || pages != 3 || len(rows) != 2 {
		t.Fatalf("paging total=%d pages=%d rows=%d", total, pages, len(rows))
	}
}

func TestLogService_GetLogs_DateRangeExcludesOld(t *testing.T) {
	db := newTestDB(t)
	ls := &LogService{DB: db}

	old := SystemLog{Level: LevelInfo, Service: "s", Action: "a", Message: "old", CreatedAt: time.Now().UTC().AddDate(0, 0, -60)}
	if err := db.Create(&old).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	_ = ls.Log(SystemLog{Service: "s", Action: "a", Message: "new"}, nil)

	_, _, total, _, err := ls.GetLogs(LogFilterInput{})
	if err != nil {
		t.Fatalf("get logs: %v", err)
	}
	if total != 1 {
		t.Fatalf("default window total=%d want 1", total)
	}
}

func TestLogService_GetLogs_InvalidDateRange_ReturnsError(t *testing.T) {
	db, _, cleanup := newMockGorm(t)
	defer cleanup()

	ls := &LogService{DB: db}
	_, _, _, _, err := ls.GetLogs(LogFilterInput{StartDate: ptrStr("bad-date")})
	if err == nil {
		t.Fatalf("expected error for invalid date")
	}
}

func TestLogService_GetLogs_CountError_ReturnsError(t *testing.T) {
	db, mock, cleanup := newMockGorm(t)
	defer cleanup()

	ls := &LogService{DB: db}

	mock.ExpectQuery(`SELECT count\(\*\) FROM "system_logs"`).
		WillReturnError(errors.New("count failed"))

	_, _, _, _, err := ls.GetLogs(LogFilterInput{Page: 1, PageSize: 10})
	if err == nil || err.Error() != "count failed" {
		t.Fatalf("expected count failed, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLogController_GetLogs(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := newTestDB(t)
	ls := &LogService{DB: db}
	_ = ls.Log(SystemLog{Service: "s", Action: "a", Message: "m"}, nil)

	r := gin.New()
	RegisterRoutes(r, ls)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/logs?page=1&page_size=10", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/logs?start_date=nope", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/logs?page=abc", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
}
