package record

import (
	"net/http"
	"testing"
)

func TestRecordController_SaveRecords_Created(t *testing.T) {
	s := newTestStore(t)
	seedOrganization(t, s, "ORG-1", "Jakarta", "DKI")
	r := setupRecordRouter(s)

	body := `{"organization_code":"ORG-1","rows":[
		{"cause":"Hemofilia A","bleeding":2},
		{"cause":"Hemofilia B"},
		{"cause":"vWD","hiv":"1"}
	]}`
	w := postJSON(r, "/api/records/mortality", []byte(body))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var out map[string]any
	decodeJSON(t, w.Body.Bytes(), &out)
	if out["inserted"].(float64) != 2 || out["skipped"].(float64) != 1 {
		t.Fatalf("unexpected counts: %v", out)
	}

	w = getReq(r, "/api/records/mortality?organization_code=ORG-1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var got struct {
		Columns  []string         `json:"columns"`
		Rows     []map[string]any `json:"rows"`
		Degraded bool             `json:"degraded"`
	}
	decodeJSON(t, w.Body.Bytes(), &got)
	if len(got.Rows) != 2 || got.Degraded {
		t.Fatalf("rows=%d degraded=%v", len(got.Rows), got.Degraded)
	}
	if got.Rows[0]["cause"] != "vWD" || got.Rows[0]["branch_name"] != "Jakarta" {
		t.Fatalf("unexpected first row: %v", got.Rows[0])
	}
}

func TestRecordController_SaveRecords_ValidationBlocksEverything(t *testing.T) {
	s := newTestStore(t)
	seedOrganization(t, s, "ORG-1", "Jakarta", "")
	r := setupRecordRouter(s)

	body := `{"organization_code":"ORG-1","rows":[
		{"cause":"Hemofilia A","bleeding":2},
		{"cause":"Hemofilia A","bleeding":-4}
	]}`
	w := postJSON(r, "/api/records/mortality", []byte(body))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	var out map[string]any
	decodeJSON(t, w.Body.Bytes(), &out)
	if out["row"].(float64) != 2 || out["column"] != "bleeding" {
		t.Fatalf("unexpected error body: %v", out)
	}

	w = getReq(r, "/api/records/mortality")
	var got struct {
		Rows []map[string]any `json:"rows"`
	}
	decodeJSON(t, w.Body.Bytes(), &got)
	if len(got.Rows) != 0 {
		t.Fatalf("nothing may be saved, got %d rows", len(got.Rows))
	}
}

func TestRecordController_SaveRecords_Rejections(t *testing.T) {
	s := newTestStore(t)
	seedOrganization(t, s, "ORG-1", "Jakarta", "")
	r := setupRecordRouter(s)

	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{"bad json", "/api/records/mortality", `{"rows":`, http.StatusBadRequest},
		{"unknown table", "/api/records/nope", `{"organization_code":"ORG-1","rows":[]}`, http.StatusNotFound},
		{"directory table", "/api/records/hospitals", `{"organization_code":"ORG-1","rows":[{"name":"x"}]}`, http.StatusBadRequest},
		{"derived table", "/api/records/age_group_summary", `{"organization_code":"ORG-1","rows":[{}]}`, http.StatusBadRequest},
		{"missing org", "/api/records/mortality", `{"rows":[{"cause":"vWD","hiv":1}]}`, http.StatusBadRequest},
		{"unknown org", "/api/records/mortality", `{"organization_code":"ORG-9","rows":[{"cause":"vWD","hiv":1}]}`, http.StatusNotFound},
		{"all empty", "/api/records/mortality", `{"organization_code":"ORG-1","rows":[{"cause":"vWD"}]}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(r, tc.path, []byte(tc.body))
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestRecordController_GetRecords(t *testing.T) {
	s := newTestStore(t)
	r := setupRecordRouter(s)

	if w := getReq(r, "/api/records/nope"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := getReq(r, "/api/records/mortality?limit=x"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	// first read creates the table
	w := getReq(r, "/api/records/inhibitors")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	ok, err := s.Schema.HasTable(t.Context(), "inhibitors")
	if err != nil || !ok {
		t.Fatalf("table not created: %v %v", ok, err)
	}
}

func TestRecordController_SaveRecords_BadLabelWithZeroCountsIsRejected(t *testing.T) {
	s := newTestStore(t)
	seedOrganization(t, s, "ORG-1", "Jakarta", "")
	r := setupRecordRouter(s)

	body := `{"organization_code":"ORG-1","rows":[
		{"cause":"Hemofilia A","bleeding":1},
		{"cause":"Bukan Penyebab","bleeding":0},
		{}
	]}`
	w := postJSON(r, "/api/records/mortality", []byte(body))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	var out map[string]any
	decodeJSON(t, w.Body.Bytes(), &out)
	if out["row"].(float64) != 2 || out["column"] != "cause" {
		t.Fatalf("unexpected error body: %v", out)
	}
}

func TestRecordController_SaveRecords_SkipsBlankAndZeroRows(t *testing.T) {
	s := newTestStore(t)
	seedOrganization(t, s, "ORG-1", "Jakarta", "")
	r := setupRecordRouter(s)

	body := `{"organization_code":"ORG-1","rows":[
		{"cause":"","bleeding":"0"},
		{"cause":"Hemofilia B","hiv":0},
		{"cause":"vWD","hiv":2}
	]}`
	w := postJSON(r, "/api/records/mortality", []byte(body))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var out map[string]any
	decodeJSON(t, w.Body.Bytes(), &out)
	if out["inserted"].(float64) != 1 || out["skipped"].(float64) != 2 {
		t.Fatalf("unexpected counts: %v", out)
	}
}
