package aggregate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"hemophilia-registry-api/internal/catalog"
	"hemophilia-registry-api/internal/logger"
	"hemophilia-registry-api/internal/logs"
	"hemophilia-registry-api/internal/record"
	"hemophilia-registry-api/internal/schema"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	patientCountsTable = "patient_counts"
	genderTable        = "gender_by_disorder"
	unknownBranch      = "-"
)

var patientCountColumns = []string{"total_ab", "other_hemophilia", "suspected", "vwd", "other_disorders"}

type AggregateServiceAPI interface {
	RebuildAgeSummary(ctx context.Context) (*RebuildResult, error)
	PatientCounts(ctx context.Context) (*PatientCountRecap, error)
	GenderByDisorder(ctx context.Context) (*GenderRecap, error)
}

type AggregateService struct {
	Store      *record.Store
	LogService *logs.LogService
	Log        *zap.Logger

	// rebuilds are serialized within the process
	mu sync.Mutex
}

func NewAggregateService(store *record.Store, logService *logs.LogService, log *zap.Logger) *AggregateService {
	return &AggregateService{Store: store, LogService: logService, Log: logger.OrNop(log)}
}

// RebuildAgeSummary empties the age group summary, restarts its ids and
// refills it with per-row sums of the age group table, all in one
// transaction. A failure leaves the previous summary in place.
func (s *AggregateService) RebuildAgeSummary(ctx context.Context) (*RebuildResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := s.Store.EnsureSchema(ctx, catalog.AgeGroupsTable)
	if err != nil {
		return nil, err
	}
	dst, err := s.Store.EnsureSchema(ctx, catalog.AgeSummaryTable)
	if err != nil {
		return nil, err
	}

	d := schema.DialectOf(s.Store.DB)
	var inserted int64
	err = s.Store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := d.TruncateAndReset(tx, dst.Name); err != nil {
			return fmt.Errorf("empty %s: %w", dst.Name, err)
		}
		res := tx.Exec(rebuildSQL(src, dst))
		if res.Error != nil {
			return fmt.Errorf("fill %s: %w", dst.Name, res.Error)
		}
		inserted = res.RowsAffected
		return nil
	})
	if err != nil {
		s.Log.Error("age group summary rebuild failed", zap.Error(err))
		return nil, err
	}

	msg := fmt.Sprintf("%s rebuilt from %s: %s row(s)", dst.Name, src.Name, humanize.Comma(inserted))
	s.Log.Info(msg)
	_ = s.LogService.Log(logs.SystemLog{
		Service:     "aggregate",
		Action:      "rebuild",
		Message:     msg,
		TargetTable: &dst.Name,
	}, map[string]any{"source": src.Name, "inserted": inserted})

	return &RebuildResult{Table: dst.Name, Source: src.Name, Inserted: inserted}, nil
}

func rebuildSQL(src, dst schema.Table) string {
	sum := func(cols ...string) string {
		parts := make([]string, len(cols))
		for i, c := range cols {
			parts[i] = fmt.Sprintf("COALESCE(s.%s, 0)", schema.Quote(c))
		}
		return strings.Join(parts, " + ")
	}
	q := schema.Quote
	return fmt.Sprintf(`INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s)
SELECT s.%s, s.%s, s.%s, %s, %s, %s, %s, %s
FROM %s s
ORDER BY s.%s`,
		q(dst.Name),
		q(dst.OrgColumn), q(schema.CreatedAtColumn), q("age_group"),
		q("hemophilia_a"), q("hemophilia_b"), q("other_type"), q("vwd_type1"), q("vwd_type2"),
		q(src.OrgColumn), q(schema.CreatedAtColumn), q("age_group"),
		sum("ha_mild", "ha_moderate", "ha_severe"),
		sum("hb_mild", "hb_moderate", "hb_severe"),
		sum("other_type"),
		sum("vwd_type1"),
		sum("vwd_type2"),
		q(src.Name),
		q(schema.IDColumn),
	)
}

// PatientCounts sums patient_counts per branch, largest total first, and
// nationally with each category's share of the grand total.
func (s *AggregateService) PatientCounts(ctx context.Context) (*PatientCountRecap, error) {
	recap := &PatientCountRecap{Branches: []BranchCounts{}, National: []Share{}}
	rows, err := s.readAll(ctx, patientCountsTable)
	if err != nil || rows == nil {
		return recap, err
	}

	t, _ := s.Store.Catalog.Lookup(patientCountsTable)
	national := make(map[string]int64, len(patientCountColumns))
	byBranch := map[string]*BranchCounts{}
	for _, row := range rows {
		branch := branchOf(row)
		bc, ok := byBranch[branch]
		if !ok {
			bc = &BranchCounts{Branch: branch, Counts: make(map[string]int64, len(patientCountColumns))}
			byBranch[branch] = bc
		}
		for _, c := range patientCountColumns {
			v := nonNegative(row[c])
			bc.Counts[c] += v
			bc.Total += v
			national[c] += v
			recap.GrandTotal += v
		}
	}

	for _, bc := range byBranch {
		recap.Branches = append(recap.Branches, *bc)
	}
	sort.SliceStable(recap.Branches, func(i, j int) bool {
		if recap.Branches[i].Total != recap.Branches[j].Total {
			return recap.Branches[i].Total > recap.Branches[j].Total
		}
		return recap.Branches[i].Branch < recap.Branches[j].Branch
	})

	for _, c := range patientCountColumns {
		recap.National = append(recap.National, Share{
			Column:  c,
			Label:   catalog.LabelFor(t, c),
			Total:   national[c],
			Percent: percent(national[c], recap.GrandTotal),
		})
	}
	return recap, nil
}

// GenderByDisorder sums gender_by_disorder per disorder, per branch and
// nationally. Total rows are left out so nothing is counted twice.
func (s *AggregateService) GenderByDisorder(ctx context.Context) (*GenderRecap, error) {
	recap := &GenderRecap{ByDisorder: []DisorderGender{}, ByBranch: []BranchGender{}, Percent: []Share{}}
	t, _ := s.Store.Catalog.Lookup(genderTable)

	var order []string
	if c, ok := t.Column(t.RowLabelColumn); ok {
		for _, d := range c.Enum {
			if !t.IsTotalLabel(d) {
				order = append(order, d)
			}
		}
	}

	rows, err := s.readAll(ctx, genderTable)
	if err != nil {
		return recap, err
	}

	byDisorder := map[string]*GenderCounts{}
	byBranch := map[string]*GenderCounts{}
	for _, row := range rows {
		disorder := strings.TrimSpace(cast.ToString(row[t.RowLabelColumn]))
		if cast.ToInt64(row[t.TotalFlagColumn]) == 1 || t.IsTotalLabel(disorder) {
			continue
		}
		gc := GenderCounts{
			Male:    nonNegative(row["male"]),
			Female:  nonNegative(row["female"]),
			Unknown: nonNegative(row["gender_unknown"]),
			Total:   nonNegative(row["total"]),
		}

		if byDisorder[disorder] == nil {
			byDisorder[disorder] = &GenderCounts{}
			if !contains(order, disorder) {
				order = append(order, disorder)
			}
		}
		byDisorder[disorder].add(gc)

		branch := branchOf(row)
		if byBranch[branch] == nil {
			byBranch[branch] = &GenderCounts{}
		}
		byBranch[branch].add(gc)
		recap.National.add(gc)
	}

	for _, d := range order {
		gc := GenderCounts{}
		if v := byDisorder[d]; v != nil {
			gc = *v
		}
		recap.ByDisorder = append(recap.ByDisorder, DisorderGender{Disorder: d, GenderCounts: gc})
	}
	for b, gc := range byBranch {
		recap.ByBranch = append(recap.ByBranch, BranchGender{Branch: b, GenderCounts: *gc})
	}
	sort.SliceStable(recap.ByBranch, func(i, j int) bool {
		if recap.ByBranch[i].Total != recap.ByBranch[j].Total {
			return recap.ByBranch[i].Total > recap.ByBranch[j].Total
		}
		return recap.ByBranch[i].Branch < recap.ByBranch[j].Branch
	})

	n := recap.National
	for _, sh := range []Share{
		{Column: "male", Total: n.Male},
		{Column: "female", Total: n.Female},
		{Column: "gender_unknown", Total: n.Unknown},
	} {
		sh.Label = catalog.LabelFor(t, sh.Column)
		sh.Percent = percent(sh.Total, n.Total)
		recap.Percent = append(recap.Percent, sh)
	}
	return recap, nil
}

// readAll returns nil rows when the table has not been created yet.
func (s *AggregateService) readAll(ctx context.Context, table string) ([]map[string]any, error) {
	ok, err := s.Store.Schema.HasTable(ctx, table)
	if err != nil || !ok {
		return nil, err
	}
	res, err := s.Store.ReadJoined(ctx, table, nil, 0)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

func branchOf(row map[string]any) string {
	if b := strings.TrimSpace(cast.ToString(row["branch_name"])); b != "" {
		return b
	}
	return unknownBranch
}

func nonNegative(v any) int64 {
	n := cast.ToInt64(v)
	if n < 0 {
		return 0
	}
	return n
}

func percent(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(10000*float64(part)/float64(whole)) / 100
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
