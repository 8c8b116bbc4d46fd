package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"hemophilia-registry-api/internal/catalog"
	"hemophilia-registry-api/internal/hospital"
	"hemophilia-registry-api/internal/logger"
	"hemophilia-registry-api/internal/logs"
	"hemophilia-registry-api/internal/organization"
	"hemophilia-registry-api/internal/record"
	"hemophilia-registry-api/internal/schema"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var (
	ErrNotImportable = errors.New("table cannot be imported")
	ErrBadWorkbook   = errors.New("invalid workbook")
)

type ImportServiceAPI interface {
	Template(ctx context.Context, table string) ([]byte, error)
	Import(ctx context.Context, table string, file io.Reader, filename string, size int64) (*Result, error)
	ResultWorkbook(res *Result) ([]byte, error)
}

type ImportService struct {
	Store         *record.Store
	Organizations *organization.OrganizationService
	Hospitals     *hospital.HospitalService
	LogService    *logs.LogService
	Log           *zap.Logger
}

func NewImportService(store *record.Store, orgs *organization.OrganizationService, hospitals *hospital.HospitalService, logService *logs.LogService, log *zap.Logger) *ImportService {
	return &ImportService{
		Store:         store,
		Organizations: orgs,
		Hospitals:     hospitals,
		LogService:    logService,
		Log:           logger.OrNop(log),
	}
}

func (s *ImportService) importable(table string) (schema.Table, error) {
	t, err := s.Store.Lookup(table)
	if err != nil {
		return t, err
	}
	if t.Derived {
		return t, fmt.Errorf("%w: %s is rebuilt from other tables", ErrNotImportable, t.Name)
	}
	return t, nil
}

// Template returns an empty workbook carrying the expected header row.
func (s *ImportService) Template(ctx context.Context, table string) ([]byte, error) {
	t, err := s.importable(table)
	if err != nil {
		return nil, err
	}
	return buildTemplate(t)
}

func (s *ImportService) ResultWorkbook(res *Result) ([]byte, error) {
	return buildResultLog(res)
}

// Import loads the first sheet of an xlsx file into table. Rows are
// handled one at a time; a bad row is logged as FAILED and the next row
// is processed.
func (s *ImportService) Import(ctx context.Context, table string, file io.Reader, filename string, size int64) (*Result, error) {
	t, err := s.importable(table)
	if err != nil {
		return nil, err
	}

	sh, err := parseWorkbook(file)
	if err != nil {
		return nil, err
	}

	positions, err := mapHeaders(t, sh.headers)
	if err != nil {
		return nil, err
	}

	if err := s.Store.Schema.Ensure(ctx, t); err != nil {
		return nil, err
	}

	res := &Result{
		BatchID:  uuid.NewString(),
		Table:    t.Name,
		Filename: filename,
		Rows:     make([]RowResult, 0, len(sh.rows)),
	}

	var rowFn func(ctx context.Context, raw map[string]any, ref string) RowResult
	switch t.Name {
	case catalog.OrganizationsTable:
		rowFn = s.organizationRow(t)
	case catalog.HospitalsTable:
		rowFn = s.hospitalRow(t)
	default:
		rowFn, err = s.recordRow(ctx, t)
		if err != nil {
			return nil, err
		}
	}

	for i, cells := range sh.rows {
		raw := make(map[string]any, len(positions))
		for col, pos := range positions {
			if col == refKey {
				continue
			}
			raw[col] = strings.TrimSpace(cells[pos])
		}
		ref := ""
		if pos, ok := positions[refKey]; ok {
			ref = strings.TrimSpace(cells[pos])
		}

		rr := RowResult{Row: i + 2, DataRow: i + 1}
		if ref == "" && record.IsBlank(t, raw) {
			rr.Status, rr.Reason = StatusSkipped, "empty row"
			res.add(rr)
			continue
		}

		out := rowFn(ctx, raw, ref)
		out.Row, out.DataRow = rr.Row, rr.DataRow
		res.add(out)
	}

	msg := fmt.Sprintf("Imported %s into %s: %s ok, %s failed, %s skipped",
		importName(filename, size), t.Name,
		humanize.Comma(int64(res.OK)), humanize.Comma(int64(res.Failed)), humanize.Comma(int64(res.Skipped)))
	s.Log.Info(msg, zap.String("batch_id", res.BatchID), zap.String("table", t.Name))

	level := logs.LevelInfo
	if res.Failed > 0 {
		level = logs.LevelWarn
	}
	var fn *string
	if filename != "" {
		fn = &filename
	}
	_ = s.LogService.Log(logs.SystemLog{
		Level:       level,
		Service:     "importer",
		Action:      "import",
		Message:     msg,
		TargetTable: &t.Name,
		Filename:    fn,
	}, map[string]any{
		"batch_id": res.BatchID,
		"ok":       res.OK,
		"failed":   res.Failed,
		"skipped":  res.Skipped,
		"size":     size,
	})

	return res, nil
}

// refKey marks the organization reference column in a header mapping.
const refKey = "\x00organization_ref"

// mapHeaders returns the sheet position of each known column. Headers match
// a column's label or its name; unknown headers are ignored.
func mapHeaders(t schema.Table, headers []string) (map[string]int, error) {
	byHeader := make(map[string]string, len(t.Columns)*2+1)
	if t.OrgColumn != "" && !t.Directory {
		byHeader[catalog.OrgRefLabel] = refKey
		byHeader[t.OrgColumn] = refKey
	}
	for _, c := range t.InputColumns() {
		if _, taken := byHeader[c.Label]; !taken && c.Label != "" {
			byHeader[c.Label] = c.Name
		}
		if _, taken := byHeader[c.Name]; !taken {
			byHeader[c.Name] = c.Name
		}
	}

	positions := make(map[string]int, len(headers))
	for i, h := range headers {
		col, ok := byHeader[h]
		if !ok {
			continue
		}
		if _, dup := positions[col]; !dup {
			positions[col] = i
		}
	}

	var missing []string
	if t.OrgColumn != "" && !t.Directory {
		if _, ok := positions[refKey]; !ok {
			missing = append(missing, catalog.OrgRefLabel)
		}
	}
	for _, c := range t.InputColumns() {
		if !c.Required {
			continue
		}
		if _, ok := positions[c.Name]; !ok {
			missing = append(missing, c.Label)
		}
	}
	if len(missing) > 0 {
		return nil, &HeaderError{Missing: missing}
	}
	return positions, nil
}

func (s *ImportService) recordRow(ctx context.Context, t schema.Table) (func(context.Context, map[string]any, string) RowResult, error) {
	orgs, err := s.Organizations.NewIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("load organizations: %w", err)
	}
	var hospitals hospital.NameIndex
	if t.HospitalColumn != "" {
		if hospitals, err = s.Hospitals.NewNameIndex(ctx); err != nil {
			return nil, fmt.Errorf("load hospitals: %w", err)
		}
	}

	return func(ctx context.Context, raw map[string]any, ref string) RowResult {
		if ref == "" {
			return failed("organization reference is empty")
		}
		code, ok := orgs.Resolve(ref)
		if !ok {
			return failed(fmt.Sprintf("unknown organization %q", ref))
		}

		if t.HospitalColumn != "" {
			if name := cast.ToString(raw[t.HospitalColumn]); name != "" {
				canonical, ok := hospitals.Resolve(name)
				if !ok {
					return failed(fmt.Sprintf("unknown hospital %q", name))
				}
				raw[t.HospitalColumn] = canonical
			}
		}

		fields, err := record.Normalize(t, raw)
		if err != nil {
			return failed(err.Error())
		}
		if err := s.Store.Insert(ctx, t.Name, code, fields); err != nil {
			return failed(err.Error())
		}
		return RowResult{Status: StatusOK, OrganizationCode: code}
	}, nil
}

func (s *ImportService) organizationRow(t schema.Table) func(context.Context, map[string]any, string) RowResult {
	seen := map[string]bool{}
	return func(ctx context.Context, raw map[string]any, _ string) RowResult {
		str := func(k string) string { return cast.ToString(raw[k]) }
		in := organization.RegisterInput{
			BranchName:   str("branch_name"),
			FilledBy:     str("filled_by"),
			Position:     str("position"),
			Phone:        str("phone"),
			Email:        str("email"),
			DataSource:   str("data_source"),
			ReportDate:   spreadsheetDate(str("report_date")),
			CoverageArea: str("coverage_area"),
			Note:         str("note"),
		}

		if in.BranchName != "" {
			if seen[in.BranchName] {
				return failed(fmt.Sprintf("%s %q appears more than once in the file", catalog.LabelFor(t, "branch_name"), in.BranchName))
			}
			seen[in.BranchName] = true
		}

		o, err := s.Organizations.Register(ctx, in)
		if err != nil {
			return failed(err.Error())
		}
		return RowResult{Status: StatusOK, OrganizationCode: o.OrganizationCode}
	}
}

func (s *ImportService) hospitalRow(t schema.Table) func(context.Context, map[string]any, string) RowResult {
	return func(ctx context.Context, raw map[string]any, _ string) RowResult {
		str := func(k string) string { return cast.ToString(raw[k]) }
		h := hospital.Hospital{
			Code:     str("code"),
			Name:     str("name"),
			City:     str("city"),
			Province: str("province"),
			Type:     str("type"),
			Class:    str("class"),
			Contact:  str("contact"),
		}
		if _, err := s.Hospitals.Upsert(ctx, []hospital.Hospital{h}); err != nil {
			return failed(err.Error())
		}
		return RowResult{Status: StatusOK}
	}
}

// spreadsheetDate turns an Excel serial date into ISO form and passes
// anything else through.
func spreadsheetDate(v string) string {
	f, err := cast.ToFloat64E(v)
	if err != nil || f <= 0 {
		return v
	}
	tm, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return v
	}
	return tm.Format("2006-01-02")
}

func importName(filename string, size int64) string {
	if filename == "" {
		filename = "upload"
	}
	if size <= 0 {
		return filename
	}
	return fmt.Sprintf("%s (%s)", filename, humanize.Bytes(uint64(size)))
}

func failed(reason string) RowResult {
	return RowResult{Status: StatusFailed, Reason: reason}
}
