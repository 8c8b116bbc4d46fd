package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"hemophilia-registry-api/internal/catalog"
	"hemophilia-registry-api/internal/record"
	"hemophilia-registry-api/internal/schema"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq uint64

func newTestService(t *testing.T) *AggregateService {
	t.Helper()

	id := atomic.AddUint64(&testDBSeq, 1)
	dsn := fmt.Sprintf("file:aggregate_test_%d?mode=memory&cache=shared", id)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := record.NewStore(db, schema.NewManager(db, nil), catalog.Default(), nil)
	return NewAggregateService(store, nil, nil)
}

func seed(t *testing.T, s *AggregateService, table, code string, fields map[string]any) {
	t.Helper()
	_, err := s.Store.EnsureSchema(context.Background(), table)
	require.NoError(t, err)
	require.NoError(t, s.Store.Insert(context.Background(), table, code, fields))
}

func TestRebuildAgeSummary(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seed(t, svc, catalog.AgeGroupsTable, "ORG-A", map[string]any{
		"age_group": "0-4", "ha_mild": int64(1), "ha_moderate": int64(2), "ha_severe": int64(3),
		"hb_severe": int64(4), "other_type": int64(5), "vwd_type1": int64(6), "vwd_type2": int64(7),
		"vwd_type3": int64(9),
	})
	seed(t, svc, catalog.AgeGroupsTable, "ORG-B", map[string]any{"age_group": "5-13", "hb_mild": int64(2)})

	for round := 0; round < 2; round++ {
		res, err := svc.RebuildAgeSummary(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), res.Inserted)
	}

	var rows []struct {
		ID               int64
		OrganizationCode string
		AgeGroup         string
		HemophiliaA      int64
		HemophiliaB      int64
		OtherType        int64
		VwdType1         int64
		VwdType2         int64
	}
	err := svc.Store.DB.Raw(`SELECT id, organization_code, age_group, hemophilia_a, hemophilia_b, other_type, vwd_type1, vwd_type2
		FROM age_group_summary ORDER BY id`).Scan(&rows).Error
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// ids restart after every rebuild
	assert.Equal(t, int64(1), rows[0].ID)
	assert.Equal(t, int64(2), rows[1].ID)

	assert.Equal(t, "ORG-A", rows[0].OrganizationCode)
	assert.Equal(t, "0-4", rows[0].AgeGroup)
	assert.Equal(t, int64(6), rows[0].HemophiliaA)
	assert.Equal(t, int64(4), rows[0].HemophiliaB)
	assert.Equal(t, int64(5), rows[0].OtherType)
	assert.Equal(t, int64(6), rows[0].VwdType1)
	assert.Equal(t, int64(7), rows[0].VwdType2)
	assert.Equal(t, int64(2), rows[1].HemophiliaB)
}

func TestRebuildAgeSummary_ConcurrentCallsLeaveOneCopy(t *testing.T) {
	svc := newTestService(t)
	seed(t, svc, catalog.AgeGroupsTable, "ORG-A", map[string]any{"age_group": "0-4", "ha_mild": int64(1)})
	seed(t, svc, catalog.AgeGroupsTable, "ORG-A", map[string]any{"age_group": "5-13", "ha_mild": int64(1)})
	seed(t, svc, catalog.AgeGroupsTable, "ORG-A", map[string]any{"age_group": "14-18", "ha_mild": int64(1)})

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RebuildAgeSummary(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var n int64
	require.NoError(t, svc.Store.DB.Raw(`SELECT COUNT(*) FROM age_group_summary`).Scan(&n).Error)
	assert.Equal(t, int64(3), n)
}

func TestRebuildAgeSummary_EmptySource(t *testing.T) {
	svc := newTestService(t)
	res, err := svc.RebuildAgeSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Inserted)
	assert.Equal(t, catalog.AgeSummaryTable, res.Table)
}

func seedOrganizations(t *testing.T, svc *AggregateService) {
	t.Helper()
	seed(t, svc, catalog.OrganizationsTable, "ORG-A", map[string]any{"branch_name": "Cabang A"})
	seed(t, svc, catalog.OrganizationsTable, "ORG-B", map[string]any{"branch_name": "Cabang B"})
}

func TestPatientCounts(t *testing.T) {
	svc := newTestService(t)
	seedOrganizations(t, svc)
	seed(t, svc, "patient_counts", "ORG-A", map[string]any{"total_ab": int64(10), "vwd": int64(2)})
	seed(t, svc, "patient_counts", "ORG-A", map[string]any{"total_ab": int64(5)})
	seed(t, svc, "patient_counts", "ORG-B", map[string]any{"total_ab": int64(30)})
	seed(t, svc, "patient_counts", "ORG-X", map[string]any{"suspected": int64(1)})

	recap, err := svc.PatientCounts(context.Background())
	require.NoError(t, err)

	require.Len(t, recap.Branches, 3)
	assert.Equal(t, "Cabang B", recap.Branches[0].Branch)
	assert.Equal(t, int64(30), recap.Branches[0].Total)
	assert.Equal(t, "Cabang A", recap.Branches[1].Branch)
	assert.Equal(t, int64(17), recap.Branches[1].Total)
	assert.Equal(t, int64(15), recap.Branches[1].Counts["total_ab"])
	assert.Equal(t, unknownBranch, recap.Branches[2].Branch)

	assert.Equal(t, int64(48), recap.GrandTotal)
	require.Len(t, recap.National, len(patientCountColumns))
	assert.Equal(t, "total_ab", recap.National[0].Column)
	assert.Equal(t, int64(45), recap.National[0].Total)
	assert.Equal(t, 93.75, recap.National[0].Percent)
}

func TestPatientCounts_NoTable(t *testing.T) {
	svc := newTestService(t)
	recap, err := svc.PatientCounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recap.Branches)
	assert.Equal(t, int64(0), recap.GrandTotal)
}

func TestGenderByDisorder_SkipsTotalRows(t *testing.T) {
	svc := newTestService(t)
	seedOrganizations(t, svc)
	seed(t, svc, "gender_by_disorder", "ORG-A", map[string]any{"disorder": "Hemofilia A", "male": int64(3), "female": int64(1), "total": int64(4)})
	seed(t, svc, "gender_by_disorder", "ORG-A", map[string]any{"disorder": "Total", "male": int64(3), "female": int64(1), "total": int64(4), "is_total_row": int64(1)})
	seed(t, svc, "gender_by_disorder", "ORG-B", map[string]any{"disorder": "VWD", "female": int64(2), "gender_unknown": int64(1), "total": int64(3)})

	recap, err := svc.GenderByDisorder(context.Background())
	require.NoError(t, err)

	assert.Equal(t, GenderCounts{Male: 3, Female: 3, Unknown: 1, Total: 7}, recap.National)
	require.Len(t, recap.ByDisorder, 6)
	assert.Equal(t, "Hemofilia A", recap.ByDisorder[0].Disorder)
	assert.Equal(t, int64(4), recap.ByDisorder[0].Total)
	assert.Equal(t, "VWD", recap.ByDisorder[4].Disorder)
	assert.Equal(t, int64(3), recap.ByDisorder[4].Total)
	for _, d := range recap.ByDisorder {
		assert.NotEqual(t, "Total", d.Disorder)
	}

	require.Len(t, recap.ByBranch, 2)
	assert.Equal(t, "Cabang A", recap.ByBranch[0].Branch)

	require.Len(t, recap.Percent, 3)
	assert.Equal(t, 42.86, recap.Percent[0].Percent)
	assert.Equal(t, 14.29, recap.Percent[2].Percent)
}

func TestAggregateController(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := newTestService(t)
	r := gin.New()
	RegisterRoutes(r, svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/aggregates/age-groups/rebuild", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Result RebuildResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, catalog.AgeSummaryTable, body.Result.Table)

	for _, path := range []string{"/api/aggregates/patient-counts", "/api/aggregates/gender-by-disorder"} {
		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
