package organization

import "fmt"

type Organization struct {
	ID               int64  `json:"id"`
	OrganizationCode string `json:"organization_code"`
	BranchName       string `json:"branch_name"`
	FilledBy         string `json:"filled_by"`
	Position         string `json:"position"`
	Phone            string `json:"phone"`
	Email            string `json:"email"`
	DataSource       string `json:"data_source"`
	ReportDate       string `json:"report_date"`
	CoverageArea     string `json:"coverage_area"`
	Note             string `json:"note"`
	CreatedAt        string `json:"created_at"`
}

type RegisterInput struct {
	BranchName   string `json:"branch_name" validate:"required"`
	FilledBy     string `json:"filled_by"`
	Position     string `json:"position"`
	Phone        string `json:"phone"`
	Email        string `json:"email" validate:"omitempty,email"`
	DataSource   string `json:"data_source"`
	ReportDate   string `json:"report_date"`
	CoverageArea string `json:"coverage_area"`
	Note         string `json:"note"`
}

// fields maps the input onto organizations columns.
func (in RegisterInput) fields() map[string]any {
	return map[string]any{
		"branch_name":   in.BranchName,
		"filled_by":     in.FilledBy,
		"position":      in.Position,
		"phone":         in.Phone,
		"email":         in.Email,
		"data_source":   in.DataSource,
		"report_date":   in.ReportDate,
		"coverage_area": in.CoverageArea,
		"note":          in.Note,
	}
}

type Option struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// DuplicateError rejects a second registration of the same branch.
type DuplicateError struct {
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %q is already registered", e.Field, e.Value)
}
