// Package aggregate implements the pure discrepancy aggregation engine:
// per-customer statistics, severity classification, and date-range filtering
// over canonical order records. Nothing in this package performs I/O or
// mutates its inputs.
package aggregate

import (
	"math"
	"sort"

	"github.com/freightlens/reconciler/internal/domain"
)

// ByCustomer groups records by customer and accumulates per-customer sums and
// flag counts. Output is sorted by |totalDiscrepancy| descending; ties keep
// first-seen insertion order. Input order does not otherwise affect the result.
func ByCustomer(records []domain.OrderRecord) []domain.CustomerStat {
	index := make(map[string]int, len(records))
	stats := make([]domain.CustomerStat, 0, len(records)/2+1)

	for _, rec := range records {
		i, ok := index[rec.Customer]
		if !ok {
			i = len(stats)
			index[rec.Customer] = i
			stats = append(stats, domain.CustomerStat{Customer: rec.Customer})
		}

		s := &stats[i]
		s.Orders++
		s.TotalSelling += rec.SellingPrice
		s.TotalBilled += rec.BilledPrice
		s.TotalDiscrepancy += rec.Discrepancy

		switch rec.Flag {
		case domain.FlagOvercharge:
			s.Overcharges++
		case domain.FlagUndercharge:
			s.Undercharges++
		default:
			s.Matches++
		}
	}

	for i := range stats {
		s := &stats[i]
		s.TotalDiscrepancy = domain.Round2(s.TotalDiscrepancy)
		if s.TotalSelling > 0 {
			s.DiscrepancyRate = s.TotalDiscrepancy / s.TotalSelling * 100
		}
		s.Severity = domain.SeverityFor(s.TotalDiscrepancy)
	}

	sort.SliceStable(stats, func(a, b int) bool {
		return math.Abs(stats[a].TotalDiscrepancy) > math.Abs(stats[b].TotalDiscrepancy)
	})

	return stats
}

// FilterByDate restricts records to the inclusive [from, to] window using
// lexicographic comparison on the first 10 characters of each record's date.
// ISO dates sort lexicographically, so no time parsing is needed. Records
// with an empty date always pass. With neither bound set the input slice is
// returned unchanged.
func FilterByDate(records []domain.OrderRecord, r domain.DateRange) []domain.OrderRecord {
	if r.IsZero() {
		return records
	}

	out := make([]domain.OrderRecord, 0, len(records))
	for _, rec := range records {
		if inRange(rec.Date, r) {
			out = append(out, rec)
		}
	}
	return out
}

func inRange(date string, r domain.DateRange) bool {
	if date == "" {
		return true // unknown date, never excluded
	}
	d := date
	if len(d) > 10 {
		d = d[:10]
	}
	if r.From != "" && d < r.From {
		return false
	}
	if r.To != "" && d > r.To {
		return false
	}
	return true
}

// OrdersForCustomer returns every record matching the exact customer name,
// sorted by |discrepancy| descending.
func OrdersForCustomer(records []domain.OrderRecord, customer string) []domain.OrderRecord {
	out := make([]domain.OrderRecord, 0, 16)
	for _, rec := range records {
		if rec.Customer == customer {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return math.Abs(out[a].Discrepancy) > math.Abs(out[b].Discrepancy)
	})
	return out
}

// StatsSummary condenses a record set into the headline numbers served by the
// stats endpoint. Snapshot metadata (source, timestamp, hasData) is filled in
// by the snapshot layer.
type StatsSummary struct {
	TotalCustomers     int     `json:"total_customers"`
	TotalOrders        int     `json:"total_orders"`
	TotalDiscrepancy   float64 `json:"total_discrepancy"`
	TotalOvercharges   int     `json:"total_overcharges"`
	TotalUndercharges  int     `json:"total_undercharges"`
	AvgDiscrepancyRate float64 `json:"avg_discrepancy_rate"`
	CriticalCustomers  int     `json:"critical_customers"`
}

// Summarize computes headline statistics across the record set as a whole.
// The average rate is the whole-set ratio totalDiscrepancy/totalSelling, not
// a mean of per-customer rates.
func Summarize(records []domain.OrderRecord) StatsSummary {
	return SummarizeStats(ByCustomer(records), len(records))
}

// SummarizeStats derives the headline numbers from an existing per-customer
// aggregate. Used directly for pre-aggregated uploads, where the order count
// comes from the upload's declared row total rather than len(records).
func SummarizeStats(stats []domain.CustomerStat, totalOrders int) StatsSummary {
	var sum StatsSummary
	sum.TotalCustomers = len(stats)
	sum.TotalOrders = totalOrders

	var totalSelling, totalDiscrepancy float64
	for _, s := range stats {
		totalSelling += s.TotalSelling
		totalDiscrepancy += s.TotalDiscrepancy
		sum.TotalOvercharges += s.Overcharges
		sum.TotalUndercharges += s.Undercharges
		if s.Severity == domain.SeverityRed {
			sum.CriticalCustomers++
		}
	}

	sum.TotalDiscrepancy = domain.Round2(totalDiscrepancy)
	if totalSelling > 0 {
		sum.AvgDiscrepancyRate = domain.Round2(totalDiscrepancy / totalSelling * 100)
	}
	return sum
}

// CriticalCount returns the number of red-severity customers in a precomputed
// aggregate. Used by the alert state machine on every load.
func CriticalCount(stats []domain.CustomerStat) int {
	n := 0
	for _, s := range stats {
		if s.Severity == domain.SeverityRed {
			n++
		}
	}
	return n
}
