package report

type CompileRequest struct {
	Tables  []string `json:"tables" binding:"required,min=1"`
	Archive bool     `json:"archive"`
}

// SheetSummary reports what was written for one requested table.
type SheetSummary struct {
	Table string `json:"table"`
	Sheet string `json:"sheet"`
	Rows  int    `json:"rows"`
	Error string `json:"error,omitempty"`
}

type Report struct {
	Filename   string         `json:"filename"`
	Workbook   []byte         `json:"-"`
	Sheets     []SheetSummary `json:"sheets"`
	Failed     []string       `json:"failed,omitempty"`
	ArchiveURL string         `json:"archive_url,omitempty"`
}

type ReportableTable struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Known bool   `json:"known"`
}

// column is one output column of a sheet.
type column struct {
	key    string
	header string
	money  bool
}
