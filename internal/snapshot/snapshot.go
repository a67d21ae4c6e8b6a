// Package snapshot owns the process-wide cached dataset and the critical-alert
// state machine. Loads and clears replace the snapshot wholesale under a
// single mutex; queries are pure reads. Outbound notification delivery never
// runs while the mutex is held.
package snapshot

import (
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/freightlens/reconciler/internal/aggregate"
	"github.com/freightlens/reconciler/internal/domain"
)

// Notifier delivers a critical-discrepancy alert. Delivery is fire-and-forget
// from the store's perspective: a failing sink is logged, never propagated.
type Notifier interface {
	Notify(title, content string) error
}

// NopNotifier discards alerts. Used when no sink is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(string, string) error { return nil }

// alertTopN caps how many red customers an alert lists.
const alertTopN = 5

// Store is the sole owner of the in-memory dataset. Created empty; replaced
// wholesale on every successful load; cleared explicitly.
type Store struct {
	mu                sync.RWMutex
	records           []domain.OrderRecord
	stats             []domain.CustomerStat // full-set aggregate for the current load
	totalRows         int
	source            string
	loadedAt          time.Time
	lastCriticalCount int

	notifier Notifier
}

// New returns an empty store. A nil notifier disables alerting.
func New(notifier Notifier) *Store {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Store{notifier: notifier}
}

// LoadResult summarises one completed load.
type LoadResult struct {
	LoadID    string    `json:"load_id"`
	Rows      int       `json:"rows"`
	Customers int       `json:"customers"`
	Source    string    `json:"source"`
	LoadedAt  time.Time `json:"loaded_at"`
}

// Load replaces the snapshot with normalized records from a raw-row source
// (warehouse refresh or parsed CSV upload) and runs the alert transition.
func (s *Store) Load(records []domain.OrderRecord, source string) LoadResult {
	stats := aggregate.ByCustomer(records)
	return s.publish(records, stats, len(records), source)
}

// LoadPreAggregated replaces the snapshot with client-supplied aggregates and
// flat records, bypassing normalization and aggregation for this load. The
// supplied stats are re-sorted so queries keep the |totalDiscrepancy| order.
func (s *Store) LoadPreAggregated(stats []domain.CustomerStat, orders []domain.OrderRecord, totalRows int, source string) LoadResult {
	if totalRows <= 0 {
		totalRows = len(orders)
	}
	sorted := make([]domain.CustomerStat, len(stats))
	copy(sorted, stats)
	sort.SliceStable(sorted, func(a, b int) bool {
		return math.Abs(sorted[a].TotalDiscrepancy) > math.Abs(sorted[b].TotalDiscrepancy)
	})
	return s.publish(orders, sorted, totalRows, source)
}

// publish is the single atomic state transition: swap the dataset, read the
// previous critical count, store the new one, and decide whether to alert.
// The alert text is captured under the lock; delivery happens after release.
func (s *Store) publish(records []domain.OrderRecord, stats []domain.CustomerStat, totalRows int, source string) LoadResult {
	critical := aggregate.CriticalCount(stats)
	loadedAt := time.Now()

	s.mu.Lock()
	previous := s.lastCriticalCount
	s.records = records
	s.stats = stats
	s.totalRows = totalRows
	s.source = source
	s.loadedAt = loadedAt
	s.lastCriticalCount = critical

	var title, content string
	fire := critical > previous
	if fire {
		title, content = formatAlert(stats, critical, loadedAt)
	}
	s.mu.Unlock()

	if fire {
		if err := s.notifier.Notify(title, content); err != nil {
			log.Printf("[snapshot] WARNING: alert delivery failed: %v", err)
		} else {
			log.Printf("[snapshot] Critical alert sent: %d red customers (was %d)", critical, previous)
		}
	}

	log.Printf("[snapshot] Loaded %d rows, %d customers from %q", totalRows, len(stats), source)

	return LoadResult{
		LoadID:    uuid.NewString(),
		Rows:      totalRows,
		Customers: len(stats),
		Source:    source,
		LoadedAt:  loadedAt,
	}
}

// Clear empties the snapshot and re-arms the alert trigger: the next load
// alerts again if any red customers are present.
func (s *Store) Clear() {
	s.mu.Lock()
	s.records = nil
	s.stats = nil
	s.totalRows = 0
	s.source = ""
	s.loadedAt = time.Time{}
	s.lastCriticalCount = 0
	s.mu.Unlock()

	log.Printf("[snapshot] Cleared")
}

// StatsResponse is the stats endpoint payload: headline numbers plus snapshot
// metadata. HasData reflects the full unfiltered snapshot, independent of
// whether the date filter produced zero rows.
type StatsResponse struct {
	aggregate.StatsSummary
	LoadedAt time.Time `json:"loaded_at,omitempty"`
	Source   string    `json:"source,omitempty"`
	HasData  bool      `json:"has_data"`
}

// Stats returns headline statistics over the date-filtered record set.
func (s *Store) Stats(r domain.DateRange) StatsResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum aggregate.StatsSummary
	if r.IsZero() {
		sum = aggregate.SummarizeStats(s.stats, s.totalRows)
	} else {
		sum = aggregate.Summarize(aggregate.FilterByDate(s.records, r))
	}

	return StatsResponse{
		StatsSummary: sum,
		LoadedAt:     s.loadedAt,
		Source:       s.source,
		HasData:      s.hasData(),
	}
}

// hasData reports whether the full, unfiltered snapshot holds anything.
// A pre-aggregated upload may carry stats without flat orders, so a non-empty
// aggregate counts as data even when the row total is zero. Callers hold s.mu.
func (s *Store) hasData() bool {
	return s.totalRows > 0 || len(s.stats) > 0
}

// Customers returns the per-customer aggregate over the date-filtered set,
// sorted by |totalDiscrepancy| descending.
func (s *Store) Customers(r domain.DateRange) []domain.CustomerStat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r.IsZero() {
		out := make([]domain.CustomerStat, len(s.stats))
		copy(out, s.stats)
		return out
	}
	return aggregate.ByCustomer(aggregate.FilterByDate(s.records, r))
}

// OrdersByCustomer returns the date-filtered records for one exact customer
// name, sorted by |discrepancy| descending.
func (s *Store) OrdersByCustomer(customer string, r domain.DateRange) []domain.OrderRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return aggregate.OrdersForCustomer(aggregate.FilterByDate(s.records, r), customer)
}

// Report returns the per-customer aggregate and the headline summary for the
// same snapshot under a single read lock, so consumers rendering both halves
// (the assistant context builder) can never mix two different loads.
func (s *Store) Report(r domain.DateRange) ([]domain.CustomerStat, StatsResponse) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats []domain.CustomerStat
	var sum aggregate.StatsSummary
	if r.IsZero() {
		stats = make([]domain.CustomerStat, len(s.stats))
		copy(stats, s.stats)
		sum = aggregate.SummarizeStats(s.stats, s.totalRows)
	} else {
		filtered := aggregate.FilterByDate(s.records, r)
		stats = aggregate.ByCustomer(filtered)
		sum = aggregate.SummarizeStats(stats, len(filtered))
	}

	return stats, StatsResponse{
		StatsSummary: sum,
		LoadedAt:     s.loadedAt,
		Source:       s.source,
		HasData:      s.hasData(),
	}
}

// formatAlert renders the notification body: up to the top 5 red customers
// (already sorted by |totalDiscrepancy| descending), the new critical count,
// and the load timestamp.
func formatAlert(stats []domain.CustomerStat, critical int, loadedAt time.Time) (title, content string) {
	title = fmt.Sprintf("Critical billing discrepancies: %d customers", critical)

	var b strings.Builder
	fmt.Fprintf(&b, "%d customers now have critical billing discrepancies (loaded %s).\n\n",
		critical, loadedAt.Format("2006-01-02 15:04:05"))

	listed := 0
	for _, s := range stats {
		if s.Severity != domain.SeverityRed {
			continue
		}
		fmt.Fprintf(&b, "%d. %s: %+.2f CAD across %d orders\n",
			listed+1, s.Customer, s.TotalDiscrepancy, s.Orders)
		listed++
		if listed == alertTopN {
			break
		}
	}

	return title, b.String()
}
