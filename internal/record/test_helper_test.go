package record

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"hemophilia-registry-api/internal/catalog"
	"hemophilia-registry-api/internal/logs"
	"hemophilia-registry-api/internal/schema"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq uint64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	id := atomic.AddUint64(&testDBSeq, 1)
	dsn := fmt.Sprintf("file:record_test_%d?mode=memory&cache=shared", id)

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
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := newTestDB(t)
	store := NewStore(db, schema.NewManager(db, nil), catalog.Default(), nil)
	ctx := context.Background()
	if err := store.Schema.EnsureAll(ctx, []schema.Table{catalog.Organizations, catalog.Hospitals}); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return store
}

func seedOrganization(t *testing.T, s *Store, code, branch, area string) {
	t.Helper()
	err := s.Insert(context.Background(), catalog.OrganizationsTable, code, map[string]any{
		"branch_name":   branch,
		"coverage_area": area,
	})
	if err != nil {
		t.Fatalf("seed organization: %v", err)
	}
}

func seedHospital(t *testing.T, s *Store, name, city string) {
	t.Helper()
	err := s.Insert(context.Background(), catalog.HospitalsTable, "", map[string]any{
		"name": name,
		"code": "RS-" + city,
		"city": city,
	})
	if err != nil {
		t.Fatalf("seed hospital: %v", err)
	}
}

func ensure(t *testing.T, s *Store, table string) {
	t.Helper()
	if _, err := s.EnsureSchema(context.Background(), table); err != nil {
		t.Fatalf("ensure %s: %v", table, err)
	}
}

func setupRecordRouter(s *Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, s, &logs.LogService{})
	return r
}

func postJSON(r http.Handler, path string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func getReq(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, b []byte, out any) {
	t.Helper()
	if err := json.Unmarshal(b, out); err != nil {
		t.Fatalf("json unmarshal: %v body=%s", err, string(b))
	}
}
