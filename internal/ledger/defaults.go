package ledger

import (
	"sort"
	"strings"
)

// DashboardDefaults are the initial selections offered to the dashboard.
type DashboardDefaults struct {
	Months             []string `json:"months"`
	SelectedMonth      string   `json:"selectedMonth"`
	Departments        []string `json:"departments"`
	SelectedDepartment string   `json:"selectedDepartment"`
	StartDate          string   `json:"startDate"`
	EndDate            string   `json:"endDate"`
}

// OrderedDepartments lists distinct departments with the policy priority list
// first, then the remainder alphabetically. index points at the default
// department, or 0 when it is absent.
func (e Engine) OrderedDepartments(records []PurchaseRecord) (departments []string, index int) {
	seen := make(map[string]struct{})
	unique := make([]string, 0)
	for _, rec := range records {
		if rec.Department == "" {
			continue
		}
		if _, ok := seen[rec.Department]; ok {
			continue
		}
		seen[rec.Department] = struct{}{}
		unique = append(unique, rec.Department)
	}
	sort.Strings(unique)

	departments = make([]string, 0, len(unique))
	preferred := make(map[string]struct{})
	for _, name := range e.policy.DepartmentPriority {
		if _, ok := seen[name]; !ok {
			continue
		}
		if _, dup := preferred[name]; dup {
			continue
		}
		preferred[name] = struct{}{}
		departments = append(departments, name)
	}
	for _, name := range unique {
		if _, ok := preferred[name]; !ok {
			departments = append(departments, name)
		}
	}

	for i, name := range departments {
		if name == e.policy.DefaultDepartment {
			return departments, i
		}
	}
	return departments, 0
}

// Defaults derives the initial month, department and date range selections
// from normalized records.
func (e Engine) Defaults(records []PurchaseRecord) DashboardDefaults {
	defaults := DashboardDefaults{Months: make([]string, 0), Departments: make([]string, 0)}

	months := make(map[string]struct{})
	days := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.InvoiceDate == "" {
			continue
		}
		day := rec.InvoiceDate
		if len(day) > len(DayLayout) {
			day = day[:len(DayLayout)]
		}
		days = append(days, day)
		month := day
		if len(month) > len(MonthLayout) {
			month = month[:len(MonthLayout)]
		}
		if _, ok := months[month]; !ok {
			months[month] = struct{}{}
			defaults.Months = append(defaults.Months, month)
		}
	}
	sort.Strings(defaults.Months)
	if n := len(defaults.Months); n > 0 {
		defaults.SelectedMonth = defaults.Months[n-1]
		current := formatMonth(e.today)
		for _, month := range defaults.Months {
			if month == current {
				defaults.SelectedMonth = current
				break
			}
		}
	}

	departments, index := e.OrderedDepartments(records)
	defaults.Departments = departments
	if len(departments) > 0 {
		defaults.SelectedDepartment = departments[index]
	}

	if len(days) > 0 {
		sort.Strings(days)
		defaults.StartDate = strings.TrimSpace(days[0])
		defaults.EndDate = strings.TrimSpace(days[len(days)-1])
	}
	return defaults
}
