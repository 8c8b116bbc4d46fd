package aggregate

// RebuildResult reports one age-group summary rebuild.
type RebuildResult struct {
	Table    string `json:"table"`
	Source   string `json:"source"`
	Inserted int64  `json:"inserted"`
}

// Share is one category's national sum and its percentage of the grand
// total, rounded to two decimals.
type Share struct {
	Column  string  `json:"column"`
	Label   string  `json:"label"`
	Total   int64   `json:"total"`
	Percent float64 `json:"percent"`
}

type BranchCounts struct {
	Branch string           `json:"branch"`
	Counts map[string]int64 `json:"counts"`
	Total  int64            `json:"total"`
}

// PatientCountRecap summarizes patient_counts per branch and nationally.
type PatientCountRecap struct {
	Branches   []BranchCounts `json:"branches"`
	National   []Share        `json:"national"`
	GrandTotal int64          `json:"grand_total"`
}

type GenderCounts struct {
	Male    int64 `json:"male"`
	Female  int64 `json:"female"`
	Unknown int64 `json:"unknown"`
	Total   int64 `json:"total"`
}

func (g *GenderCounts) add(o GenderCounts) {
	g.Male += o.Male
	g.Female += o.Female
	g.Unknown += o.Unknown
	g.Total += o.Total
}

type DisorderGender struct {
	Disorder string `json:"disorder"`
	GenderCounts
}

type BranchGender struct {
	Branch string `json:"branch"`
	GenderCounts
}

// GenderRecap summarizes gender_by_disorder without its total rows.
type GenderRecap struct {
	ByDisorder []DisorderGender `json:"by_disorder"`
	ByBranch   []BranchGender   `json:"by_branch"`
	National   GenderCounts     `json:"national"`
	Percent    []Share          `json:"percent"`
}
