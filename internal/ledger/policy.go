package ledger

import "time"

const (
	// DefaultAutoPayWindowDays is the delay after which auto-pay vendors are
	// assumed settled.
	DefaultAutoPayWindowDays = 10
	// DefaultDistributionCap bounds the companies returned by Distribution.
	DefaultDistributionCap = 20
	// DefaultAutoPayMarker flags auto-pay vendors when it ends the company name.
	DefaultAutoPayMarker = "*"
	// DefaultClearFlagValue redacts payment fields when set on a record.
	DefaultClearFlagValue = "1"
	// DefaultUnpaidEpsilon absorbs floating point noise around exact payment.
	DefaultUnpaidEpsilon = 0.01
	// DefaultDepartment is preselected when present in the data.
	DefaultDepartment = "杂货"
)

// DefaultExcludedVendors lists vendors kept out of every processed report.
var DefaultExcludedVendors = []string{"SLEEMAN", "Arc-en-ciel"}

// DefaultDepartmentPriority orders the well-known departments.
var DefaultDepartmentPriority = []string{"杂货", "菜部", "冻部", "肉部", "鱼部", "厨房", "牛奶生鲜", "酒水", "面包"}

// Policy gathers the tunable business rules of the pipeline.
type Policy struct {
	AutoPayWindowDays  int
	DistributionCap    int
	ExcludedVendors    []string
	// WeekStart is the first day of a week bucket; nil means Monday.
	WeekStart          *time.Weekday
	AutoPayMarker      string
	ClearFlagValue     string
	UnpaidEpsilon      float64
	DepartmentPriority []string
	DefaultDepartment  string
}

// DefaultPolicy returns the production rule set.
func DefaultPolicy() Policy {
	return Policy{
		AutoPayWindowDays:  DefaultAutoPayWindowDays,
		DistributionCap:    DefaultDistributionCap,
		ExcludedVendors:    append([]string(nil), DefaultExcludedVendors...),
		WeekStart:          Weekday(time.Monday),
		AutoPayMarker:      DefaultAutoPayMarker,
		ClearFlagValue:     DefaultClearFlagValue,
		UnpaidEpsilon:      DefaultUnpaidEpsilon,
		DepartmentPriority: append([]string(nil), DefaultDepartmentPriority...),
		DefaultDepartment:  DefaultDepartment,
	}
}

// withDefaults fills zero values so a partially configured Policy behaves.
func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.AutoPayWindowDays <= 0 {
		p.AutoPayWindowDays = def.AutoPayWindowDays
	}
	if p.WeekStart == nil {
		p.WeekStart = def.WeekStart
	} else {
		p.WeekStart = Weekday(*p.WeekStart)
	}
	if p.DistributionCap <= 0 {
		p.DistributionCap = def.DistributionCap
	}
	if p.ExcludedVendors == nil {
		p.ExcludedVendors = def.ExcludedVendors
	}
	if p.AutoPayMarker == "" {
		p.AutoPayMarker = def.AutoPayMarker
	}
	if p.ClearFlagValue == "" {
		p.ClearFlagValue = def.ClearFlagValue
	}
	if p.UnpaidEpsilon <= 0 {
		p.UnpaidEpsilon = def.UnpaidEpsilon
	}
	if p.DepartmentPriority == nil {
		p.DepartmentPriority = def.DepartmentPriority
	}
	if p.DefaultDepartment == "" {
		p.DefaultDepartment = def.DefaultDepartment
	}
	return p
}

func (p Policy) excluded(company string) bool {
	for _, name := range p.ExcludedVendors {
		if name == company {
			return true
		}
	}
	return false
}

// Weekday returns a pointer to d for Policy.WeekStart.
func Weekday(d time.Weekday) *time.Weekday {
	return &d
}
