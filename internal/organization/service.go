package organization

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"hemophilia-registry-api/internal/catalog"
	"hemophilia-registry-api/internal/logs"
	"hemophilia-registry-api/internal/record"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/spf13/cast"
)

var newOrganizationCode = func() string {
	return fmt.Sprintf("ORG-%d-%s", time.Now().Unix(), strings.ToUpper(uuid.NewString()[:8]))
}

// reportDateLayouts are the date spellings accepted for report_date.
var reportDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02-01-2006",
	"2/1/2006",
	"01-02-06",
}

type OrganizationServiceAPI interface {
	Register(ctx context.Context, in RegisterInput) (*Organization, error)
	List(ctx context.Context) ([]Organization, error)
	Options(ctx context.Context) ([]Option, error)
}

type OrganizationService struct {
	Store      *record.Store
	LogService *logs.LogService
	Validate   *validator.Validate
}

func NewOrganizationService(store *record.Store, logService *logs.LogService) *OrganizationService {
	return &OrganizationService{Store: store, LogService: logService, Validate: validator.New()}
}

func (s *OrganizationService) ensure(ctx context.Context) error {
	return s.Store.Schema.Ensure(ctx, catalog.Organizations)
}

// Register creates one organization. A branch name already on file is
// rejected with a DuplicateError before anything is written; the unique
// index catches a registration that races past the check.
func (s *OrganizationService) Register(ctx context.Context, in RegisterInput) (*Organization, error) {
	in = trimInput(in)
	if err := s.validate(in); err != nil {
		return nil, err
	}

	date, err := NormalizeDate(in.ReportDate)
	if err != nil {
		return nil, &record.ValidationError{Column: "report_date", Label: catalog.LabelFor(catalog.Organizations, "report_date"), Value: in.ReportDate, Reason: "is not a valid date"}
	}
	in.ReportDate = date

	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	taken, err := s.Store.BranchNameTaken(ctx, in.BranchName)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, &DuplicateError{Field: "branch_name", Value: in.BranchName}
	}

	code := newOrganizationCode()
	if err := s.Store.Insert(ctx, catalog.OrganizationsTable, code, in.fields()); err != nil {
		if taken, cerr := s.Store.BranchNameTaken(ctx, in.BranchName); cerr == nil && taken {
			return nil, &DuplicateError{Field: "branch_name", Value: in.BranchName}
		}
		return nil, err
	}

	_ = s.LogService.Log(logs.SystemLog{
		Service:          "organization",
		Action:           "register",
		Message:          fmt.Sprintf("Organization %s registered", in.BranchName),
		TargetTable:      strPtr(catalog.OrganizationsTable),
		OrganizationCode: &code,
	}, nil)

	return s.findByCode(ctx, code)
}

func (s *OrganizationService) validate(in RegisterInput) error {
	if s.Validate == nil {
		s.Validate = validator.New()
	}
	err := s.Validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	column := map[string]string{"BranchName": "branch_name", "Email": "email"}[fe.Field()]
	reason := "is invalid"
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "email":
		reason = "is not a valid email address"
	}
	return &record.ValidationError{
		Column: column,
		Label:  catalog.LabelFor(catalog.Organizations, column),
		Value:  fe.Value(),
		Reason: reason,
	}
}

// List returns every organization, oldest first.
func (s *OrganizationService) List(ctx context.Context) ([]Organization, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	res, err := s.Store.ReadJoined(ctx, catalog.OrganizationsTable, nil, 0)
	if err != nil {
		return nil, err
	}

	out := make([]Organization, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, fromRow(row))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Options builds the code to label list for dropdowns. Repeated labels get
// an " (option n)" suffix from the second occurrence on.
func (s *OrganizationService) Options(ctx context.Context) ([]Option, error) {
	orgs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return LabelOptions(orgs), nil
}

func LabelOptions(orgs []Organization) []Option {
	seen := make(map[string]int, len(orgs))
	out := make([]Option, 0, len(orgs))
	for _, o := range orgs {
		label := o.BranchName
		if label == "" {
			label = o.OrganizationCode
		}
		seen[label]++
		if n := seen[label]; n > 1 {
			label = fmt.Sprintf("%s (option %d)", label, n)
		}
		out = append(out, Option{Code: o.OrganizationCode, Label: label})
	}
	return out
}

// Index resolves spreadsheet organization references.
type Index struct {
	byKey map[string]string
}

// NewIndex loads every organization into a reference index.
func (s *OrganizationService) NewIndex(ctx context.Context) (*Index, error) {
	orgs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return IndexOf(orgs), nil
}

// IndexOf keys organizations by case-folded code and branch name. The
// first registered organization wins a branch name collision.
func IndexOf(orgs []Organization) *Index {
	idx := &Index{byKey: make(map[string]string, len(orgs)*2)}
	for _, o := range orgs {
		for _, k := range []string{o.OrganizationCode, o.BranchName} {
			key := foldKey(k)
			if key == "" {
				continue
			}
			if _, ok := idx.byKey[key]; !ok {
				idx.byKey[key] = o.OrganizationCode
			}
		}
	}
	return idx
}

func (idx *Index) Resolve(ref string) (string, bool) {
	if idx == nil {
		return "", false
	}
	code, ok := idx.byKey[foldKey(ref)]
	return code, ok
}

// Add makes an organization registered mid-import resolvable.
func (idx *Index) Add(o Organization) {
	for _, k := range []string{o.OrganizationCode, o.BranchName} {
		if key := foldKey(k); key != "" {
			if _, ok := idx.byKey[key]; !ok {
				idx.byKey[key] = o.OrganizationCode
			}
		}
	}
}

func (s *OrganizationService) findByCode(ctx context.Context, code string) (*Organization, error) {
	res, err := s.Store.ReadJoined(ctx, catalog.OrganizationsTable, nil, 0)
	if err != nil {
		return nil, err
	}
	for _, row := range res.Rows {
		if cast.ToString(row[catalog.OrgColumn]) == code {
			o := fromRow(row)
			return &o, nil
		}
	}
	return nil, fmt.Errorf("organization %s not found after insert", code)
}

// NormalizeDate returns an ISO yyyy-mm-dd date; blank stays blank.
func NormalizeDate(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", nil
	}
	for _, layout := range reportDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", v)
}

func fromRow(row map[string]any) Organization {
	str := func(k string) string { return cast.ToString(row[k]) }
	created := str("created_at")
	if t, ok := row["created_at"].(time.Time); ok {
		created = t.UTC().Format(time.RFC3339)
	}
	return Organization{
		ID:               cast.ToInt64(row["id"]),
		OrganizationCode: str(catalog.OrgColumn),
		BranchName:       str("branch_name"),
		FilledBy:         str("filled_by"),
		Position:         str("position"),
		Phone:            str("phone"),
		Email:            str("email"),
		DataSource:       str("data_source"),
		ReportDate:       str("report_date"),
		CoverageArea:     str("coverage_area"),
		Note:             str("note"),
		CreatedAt:        created,
	}
}

func trimInput(in RegisterInput) RegisterInput {
	in.BranchName = strings.TrimSpace(in.BranchName)
	in.FilledBy = strings.TrimSpace(in.FilledBy)
	in.Position = strings.TrimSpace(in.Position)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
	in.DataSource = strings.TrimSpace(in.DataSource)
	in.ReportDate = strings.TrimSpace(in.ReportDate)
	in.CoverageArea = strings.TrimSpace(in.CoverageArea)
	in.Note = strings.TrimSpace(in.Note)
	return in
}

func foldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func strPtr(s string) *string { return &s }
