package ledger

import "sort"

// CycleMetrics computes payment latency statistics per (department, company)
// over records with a derived PaymentDays. Pairs appear in first-seen order.
func (e Engine) CycleMetrics(records []PurchaseRecord) []PaymentCycleMetric {
	type pairKey struct{ department, company string }
	type group struct {
		days   []int
		amount float64
	}
	groups := make(map[pairKey]*group)
	order := make([]pairKey, 0)

	for _, rec := range records {
		if rec.PaymentDays == nil || !rec.HasCheckDate() || rec.InvoiceDate == "" {
			continue
		}
		key := pairKey{department: rec.Department, company: rec.CompanyName}
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
			order = append(order, key)
		}
		g.days = append(g.days, *rec.PaymentDays)
		g.amount += rec.Amount()
	}

	metrics := make([]PaymentCycleMetric, 0, len(order))
	for _, key := range order {
		g := groups[key]
		minDays, maxDays, sum := g.days[0], g.days[0], 0
		for _, d := range g.days {
			if d < minDays {
				minDays = d
			}
			if d > maxDays {
				maxDays = d
			}
			sum += d
		}
		metrics = append(metrics, PaymentCycleMetric{
			Department:   key.department,
			CompanyName:  key.company,
			InvoiceCount: len(g.days),
			TotalAmount:  g.amount,
			MedianDays:   Median(g.days),
			MinDays:      minDays,
			MaxDays:      maxDays,
			AvgDays:      float64(sum) / float64(len(g.days)),
		})
	}
	return metrics
}

// Median returns the middle value of values, averaging the two middle values
// on an even count. The input slice is not reordered.
func Median(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	half := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[half])
	}
	return float64(sorted[half-1]+sorted[half]) / 2
}
