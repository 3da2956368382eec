package ledger

import (
	"sort"
	"time"
)

// Distribution groups amounts per (company, day) inside the query window and
// keeps at most Policy.DistributionCap companies, the largest by total.
func (e Engine) Distribution(records []PurchaseRecord, q DistributionQuery) Distribution {
	v := e.view(q.Basis)
	start, hasStart := parseDay(q.Start)
	end, hasEnd := parseDay(q.End)

	wanted := make(map[string]struct{}, len(q.Companies))
	for _, name := range q.Companies {
		wanted[name] = struct{}{}
	}

	type groupKey struct{ company, day string }
	groups := make(map[groupKey]*DistributionPoint)
	order := make([]groupKey, 0)
	totals := make(map[string]float64)
	companies := make([]string, 0)

	for _, rec := range records {
		if !v.include(rec) || rec.Department != q.Department {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[rec.CompanyName]; !ok {
				continue
			}
		}
		day := v.day(rec)
		if !inWindow(day, start, hasStart, end, hasEnd) {
			continue
		}
		amount := v.amount(rec)
		key := groupKey{company: rec.CompanyName, day: formatDay(day)}
		point, ok := groups[key]
		if !ok {
			point = &DistributionPoint{CompanyName: key.company, Day: key.day}
			groups[key] = point
			order = append(order, key)
		}
		point.Amount += amount
		point.InvoiceCount++
		if _, seen := totals[rec.CompanyName]; !seen {
			companies = append(companies, rec.CompanyName)
		}
		totals[rec.CompanyName] += amount
	}

	if len(companies) > e.policy.DistributionCap {
		sort.SliceStable(companies, func(i, j int) bool {
			return totals[companies[i]] > totals[companies[j]]
		})
		companies = companies[:e.policy.DistributionCap]
	}
	kept := make(map[string]struct{}, len(companies))
	for _, name := range companies {
		kept[name] = struct{}{}
	}

	points := make([]DistributionPoint, 0, len(order))
	for _, key := range order {
		point := groups[key]
		if _, ok := kept[point.CompanyName]; !ok || point.Amount <= 0 {
			continue
		}
		point.TotalCompanyAmount = totals[point.CompanyName]
		points = append(points, *point)
	}

	ordered := make([]string, len(companies))
	copy(ordered, companies)
	sort.SliceStable(ordered, func(i, j int) bool {
		return totals[ordered[i]] < totals[ordered[j]]
	})
	return Distribution{Points: points, OrderedCompanies: ordered}
}

func inWindow(day, start time.Time, hasStart bool, end time.Time, hasEnd bool) bool {
	if hasStart && day.Before(start) {
		return false
	}
	if hasEnd && day.After(end) {
		return false
	}
	return true
}
