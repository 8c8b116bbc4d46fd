package importer

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"hemophilia-registry-api/internal/catalog"
	"hemophilia-registry-api/internal/schema"
	"hemophilia-registry-api/internal/util"

	"github.com/xuri/excelize/v2"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	templateRows = 500
)

// sheet is the first worksheet of an uploaded workbook.
type sheet struct {
	headers []string
	rows    [][]string
}

func parseWorkbook(r io.Reader) (*sheet, error) {
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("%w: failed to read excel file: %v", ErrBadWorkbook, err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse excel file: %v", ErrBadWorkbook, err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read rows: %v", ErrBadWorkbook, err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("%w: excel file is empty", ErrBadWorkbook)
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		padded := make([]string, len(headers))
		copy(padded, row)
		data = append(data, padded)
	}
	return &sheet{headers: headers, rows: data}, nil
}

// buildTemplate writes the header row of t with drop-down lists on enum
// columns.
func buildTemplate(t schema.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E2E8F0"}},
	})

	name := util.SafeSheetName(t.Title)
	if name == "" {
		name = t.Name
	}
	defaultSheet := f.GetSheetName(0)
	if err := f.SetSheetName(defaultSheet, name); err != nil {
		return nil, err
	}

	headers := catalog.TemplateHeaders(t)
	enums := map[string][]string{}
	for _, c := range t.InputColumns() {
		if len(c.Enum) > 0 {
			enums[c.Label] = c.Enum
		}
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(name, cell, h); err != nil {
			return nil, err
		}
		_ = f.SetCellStyle(name, cell, cell, headerStyle)
		colName, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(name, colName, colName, float64(max(12, len(h)+2)))

		if list, ok := enums[h]; ok {
			dv := excelize.NewDataValidation(true)
			dv.Sqref = fmt.Sprintf("%s2:%s%d", colName, colName, templateRows)
			// lists over the 255 character limit are left free-form
			if err := dv.SetDropList(list); err == nil {
				_ = f.AddDataValidation(name, dv)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// buildResultLog renders an import result as a workbook.
func buildResultLog(res *Result) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E2E8F0"}},
	})
	statusStyles := map[string]int{}
	for status, color := range map[string]string{
		StatusOK:      "#DCFCE7",
		StatusFailed:  "#FECACA",
		StatusSkipped: "#E5E7EB",
	} {
		id, _ := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		})
		statusStyles[status] = id
	}

	defaultSheet := f.GetSheetName(0)
	name := "Import Log"
	f.NewSheet(name)

	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return nil, err
	}

	header := []interface{}{
		excelize.Cell{Value: "Row", StyleID: headerStyle},
		excelize.Cell{Value: "Status", StyleID: headerStyle},
		excelize.Cell{Value: "Reason", StyleID: headerStyle},
		excelize.Cell{Value: "Organization", StyleID: headerStyle},
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, err
	}

	rowNum := 2
	for _, r := range res.Rows {
		values := []interface{}{
			r.Row,
			excelize.Cell{Value: r.Status, StyleID: statusStyles[r.Status]},
			r.Reason,
			r.OrganizationCode,
		}
		cell, _ := excelize.CoordinatesToCellName(1, rowNum)
		if err := sw.SetRow(cell, values); err != nil {
			return nil, err
		}
		rowNum++
	}
	if err := sw.Flush(); err != nil {
		return nil, err
	}

	if defaultSheet != "" && defaultSheet != name {
		_ = f.DeleteSheet(defaultSheet)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

