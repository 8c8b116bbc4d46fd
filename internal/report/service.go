package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"hemophilia-registry-api/internal/logger"
	"hemophilia-registry-api/internal/logs"
	"hemophilia-registry-api/internal/record"
	"hemophilia-registry-api/internal/schema"
	"hemophilia-registry-api/internal/util"

	"github.com/dustin/go-humanize"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	archivePrefix = "reports"
	readWorkers   = 4
)

var (
	ErrNoTables      = errors.New("no tables selected")
	ErrNotReportable = errors.New("table is not reportable")
	ErrNoArchive     = errors.New("report archive is not configured")
)

// Archiver keeps copies of compiled workbooks.
type Archiver interface {
	Upload(ctx context.Context, objectName, contentType string, data []byte) (string, int64, error)
	List(ctx context.Context, prefix string) ([]util.ObjectInfo, error)
}

type ReportServiceAPI interface {
	ListReportableTables(ctx context.Context) ([]ReportableTable, error)
	Compile(ctx context.Context, tables []string, archive bool) (*Report, error)
	ListArchive(ctx context.Context) ([]util.ObjectInfo, error)
}

type ReportService struct {
	Store      *record.Store
	LogService *logs.LogService
	Archive    Archiver
	Log        *zap.Logger
}

func NewReportService(store *record.Store, logService *logs.LogService, archive Archiver, log *zap.Logger) *ReportService {
	return &ReportService{Store: store, LogService: logService, Archive: archive, Log: logger.OrNop(log)}
}

var now = func() time.Time { return time.Now().UTC() }

func (s *ReportService) ListReportableTables(ctx context.Context) ([]ReportableTable, error) {
	names, err := s.Store.Schema.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	out := make([]ReportableTable, 0, len(names))
	for _, name := range names {
		rt := ReportableTable{Name: name, Title: name}
		if t, ok := s.Store.Catalog.Lookup(name); ok {
			rt.Title, rt.Known = t.Title, true
		}
		out = append(out, rt)
	}
	return out, nil
}

type outcome struct {
	res *record.Result
	err error
}

// Compile writes one sheet per requested table, in request order. A table
// that cannot be read gets an error sheet and the rest still compile.
// Nothing is written to the database.
func (s *ReportService) Compile(ctx context.Context, tables []string, archive bool) (*Report, error) {
	if len(tables) == 0 {
		return nil, ErrNoTables
	}

	outcomes := make([]outcome, len(tables))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readWorkers)
	for i, name := range tables {
		g.Go(func() error {
			res, err := s.read(gctx, strings.TrimSpace(name))
			outcomes[i] = outcome{res: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	rep := &Report{Filename: fmt.Sprintf("registry_report_%s.xlsx", now().Format("20060102_150405"))}
	data, err := s.write(tables, outcomes, rep)
	if err != nil {
		return nil, err
	}
	rep.Workbook = data

	if archive {
		s.archive(ctx, rep)
	}

	msg := fmt.Sprintf("Report compiled: %d sheet(s), %s", len(rep.Sheets), humanize.Bytes(uint64(len(data))))
	if len(rep.Failed) > 0 {
		msg += fmt.Sprintf(", failed: %s", strings.Join(rep.Failed, ", "))
	}
	s.Log.Info(msg, zap.Strings("tables", tables))

	level := logs.LevelInfo
	if len(rep.Failed) > 0 {
		level = logs.LevelWarn
	}
	_ = s.LogService.Log(logs.SystemLog{
		Level:    level,
		Service:  "report",
		Action:   "compile",
		Message:  msg,
		Filename: &rep.Filename,
	}, map[string]any{"tables": tables, "failed": rep.Failed, "archive_url": rep.ArchiveURL})

	return rep, nil
}

func (s *ReportService) read(ctx context.Context, table string) (*record.Result, error) {
	if !schema.ValidIdentifier(table) || schema.IsDerivedTable(table) || table == (logs.SystemLog{}).TableName() {
		return nil, fmt.Errorf("%w: %s", ErrNotReportable, table)
	}
	ok, err := s.Store.Schema.HasTable(ctx, table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	return s.Store.ReadJoined(ctx, table, nil, 0)
}

func (s *ReportService) write(tables []string, outcomes []outcome, rep *Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E2E8F0"}},
	})
	errorStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#B91C1C"},
	})
	// built-in format 3 is #,##0
	moneyStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 3})

	defaultSheet := f.GetSheetName(0)
	used := map[string]int{}

	for i, name := range tables {
		sheet := uniqueSheetName(used, s.sheetTitle(name))
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}

		sw, err := f.NewStreamWriter(sheet)
		if err != nil {
			return nil, err
		}

		summary := SheetSummary{Table: name, Sheet: sheet}
		if oc := outcomes[i]; oc.err != nil {
			summary.Error = oc.err.Error()
			rep.Failed = append(rep.Failed, name)
			if err := writeErrorSheet(sw, headerStyle, errorStyle, oc.err); err != nil {
				return nil, err
			}
		} else {
			summary.Rows = len(oc.res.Rows)
			if err := s.writeTable(sw, oc.res, headerStyle, moneyStyle); err != nil {
				return nil, err
			}
		}
		if err := sw.Flush(); err != nil {
			return nil, err
		}
		rep.Sheets = append(rep.Sheets, summary)
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *ReportService) writeTable(sw *excelize.StreamWriter, res *record.Result, headerStyle, moneyStyle int) error {
	t, known := s.Store.Catalog.Lookup(res.Table)
	cols := layoutFor(t, known, res.Columns)

	if len(cols) > 0 {
		_ = sw.SetColWidth(1, len(cols), 20)
	}

	header := make([]interface{}, 0, len(cols))
	for _, c := range cols {
		header = append(header, excelize.Cell{Value: c.header, StyleID: headerStyle})
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	rowNum := 2
	for _, row := range res.Rows {
		values := make([]interface{}, 0, len(cols))
		for _, c := range cols {
			v := cellValue(row[c.key])
			if c.money && v != nil {
				values = append(values, excelize.Cell{Value: v, StyleID: moneyStyle})
				continue
			}
			values = append(values, v)
		}
		cell, _ := excelize.CoordinatesToCellName(1, rowNum)
		if err := sw.SetRow(cell, values); err != nil {
			return err
		}
		rowNum++
	}
	return nil
}

func writeErrorSheet(sw *excelize.StreamWriter, headerStyle, errorStyle int, cause error) error {
	if err := sw.SetRow("A1", []interface{}{excelize.Cell{Value: "Error", StyleID: headerStyle}}); err != nil {
		return err
	}
	return sw.SetRow("A2", []interface{}{excelize.Cell{Value: cause.Error(), StyleID: errorStyle}})
}

// cellValue keeps numbers numeric and writes times in UTC.
func cellValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		return x.UTC()
	case []byte:
		return string(x)
	default:
		return v
	}
}

func (s *ReportService) sheetTitle(table string) string {
	if t, ok := s.Store.Catalog.Lookup(table); ok && t.Title != "" {
		return t.Title
	}
	return table
}

// uniqueSheetName sanitizes name and appends _2, _3... on a collision.
// Sheet names compare case-insensitively.
func uniqueSheetName(used map[string]int, name string) string {
	base := util.SafeSheetName(name)
	if base == "" {
		base = "Sheet"
	}
	candidate := base
	for n := 1; ; n++ {
		if n > 1 {
			suffix := fmt.Sprintf("_%d", n)
			candidate = util.TruncateRunes(base, util.MaxSheetName-len(suffix)) + suffix
		}
		key := strings.ToLower(candidate)
		if _, taken := used[key]; !taken {
			used[key] = 1
			return candidate
		}
	}
}

func (s *ReportService) archive(ctx context.Context, rep *Report) {
	if s.Archive == nil {
		return
	}
	object := util.TimestampedObject(archivePrefix, now(), strings.TrimSuffix(rep.Filename, ".xlsx"), "xlsx")
	url, size, err := s.Archive.Upload(ctx, object, XLSXContentType, rep.Workbook)
	if err != nil {
		s.Log.Warn("report archive failed", zap.String("object", object), zap.Error(err))
		return
	}
	rep.ArchiveURL = url
	s.Log.Info("report archived", zap.String("url", url), zap.String("size", humanize.Bytes(uint64(size))))
}

func (s *ReportService) ListArchive(ctx context.Context) ([]util.ObjectInfo, error) {
	if s.Archive == nil {
		return nil, ErrNoArchive
	}
	objects, err := s.Archive.List(ctx, archivePrefix+"/")
	if err != nil {
		return nil, err
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Created.After(objects[j].Created) })
	return objects, nil
}
