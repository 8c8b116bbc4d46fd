package importer

import (
	"fmt"
	"strings"
)

const (
	StatusOK      = "OK"
	StatusFailed  = "FAILED"
	StatusSkipped = "SKIPPED"
)

// RowResult is the outcome of one spreadsheet row. Row is the row number
// as shown in the spreadsheet (the header is row 1); DataRow counts data
// rows from 1.
type RowResult struct {
	Row              int    `json:"row"`
	DataRow          int    `json:"data_row"`
	Status           string `json:"status"`
	Reason           string `json:"reason,omitempty"`
	OrganizationCode string `json:"organization_code,omitempty"`
}

type Result struct {
	BatchID  string      `json:"batch_id"`
	Table    string      `json:"table"`
	Filename string      `json:"filename,omitempty"`
	Rows     []RowResult `json:"rows"`
	OK       int         `json:"ok"`
	Failed   int         `json:"failed"`
	Skipped  int         `json:"skipped"`
}

func (r *Result) add(rr RowResult) {
	switch rr.Status {
	case StatusOK:
		r.OK++
	case StatusFailed:
		r.Failed++
	case StatusSkipped:
		r.Skipped++
	}
	r.Rows = append(r.Rows, rr)
}

// HeaderError aborts an import whose header row lacks required labels.
type HeaderError struct {
	Missing []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}
