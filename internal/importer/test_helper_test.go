package importer

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"hemophilia-registry-api/internal/catalog"
	"hemophilia-registry-api/internal/hospital"
	"hemophilia-registry-api/internal/logs"
	"hemophilia-registry-api/internal/organization"
	"hemophilia-registry-api/internal/record"
	"hemophilia-registry-api/internal/schema"

	"github.com/glebarez/sqlite"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq uint64

func newTestService(t *testing.T) *ImportService {
	t.Helper()

	id := atomic.AddUint64(&testDBSeq, 1)
	dsn := fmt.Sprintf("file:importer_test_%d?mode=memory&cache=shared", id)

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

	logService := &logs.LogService{DB: db}
	if err := logService.Migrate(); err != nil {
		t.Fatalf("migrate logs: %v", err)
	}

	store := record.NewStore(db, schema.NewManager(db, nil), catalog.Default(), nil)
	orgs := organization.NewOrganizationService(store, logService)
	hospitals := &hospital.HospitalService{Store: store, LogService: logService}
	return NewImportService(store, orgs, hospitals, logService, nil)
}

func registerOrganization(t *testing.T, s *ImportService, branch string) string {
	t.Helper()
	o, err := s.Organizations.Register(context.Background(), organization.RegisterInput{BranchName: branch})
	if err != nil {
		t.Fatalf("register %s: %v", branch, err)
	}
	return o.OrganizationCode
}

// workbook writes rows starting at A1; nil rows are left out entirely.
func workbook(t *testing.T, rows ...[]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		if row == nil {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row %d: %v", i+1, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func readSheet(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	return rows
}

func uploadRequest(t *testing.T, path, filename string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write(content)
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}
