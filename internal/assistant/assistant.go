// Package assistant builds the structured data context handed to an external
// text-completion service and shapes its answer for the chat endpoint. The
// core never interprets the generated text; an unusable answer becomes a
// fixed fallback string.
package assistant

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/freightlens/reconciler/internal/domain"
	"github.com/freightlens/reconciler/internal/snapshot"
)

// Message is one turn handed to the completion service.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer generates a single answer from an ordered message sequence.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Fallback is returned when the completion service fails or produces nothing.
const Fallback = "I couldn't generate a response right now. Please try again."

// contextCustomerCap limits how many customers the data context lists.
const contextCustomerCap = 40

// Service answers chat questions about the current snapshot.
type Service struct {
	store     *snapshot.Store
	completer Completer
}

func NewService(store *snapshot.Store, completer Completer) *Service {
	return &Service{store: store, completer: completer}
}

// Chat builds the data context for the (optionally date-filtered) snapshot,
// sends it with the user's message to the completion service, and returns the
// answer. Sink failures degrade to the fixed fallback string, never an error.
func (s *Service) Chat(ctx context.Context, message string, r domain.DateRange) string {
	// One locked read for both halves: a load landing between separate
	// Customers and Stats calls would mix two snapshots in one context.
	stats, sum := s.store.Report(r)
	dataContext := BuildContext(stats, sum)

	answer, err := s.completer.Complete(ctx, []Message{
		{Role: "system", Content: dataContext},
		{Role: "user", Content: message},
	})
	if err != nil {
		log.Printf("[assistant] WARNING: completion failed: %v", err)
		return Fallback
	}
	if strings.TrimSpace(answer) == "" {
		return Fallback
	}
	return answer
}

// BuildContext renders the fixed-structure text block describing the current
// aggregate: summary counts, severity breakdown, top overcharged and
// undercharged customers by signed discrepancy, and up to the first 40
// customers in |totalDiscrepancy| order.
func BuildContext(stats []domain.CustomerStat, sum snapshot.StatsResponse) string {
	var b strings.Builder

	b.WriteString("You are a freight billing analyst assistant. Answer using only the reconciliation data below. Amounts are CAD.\n\n")

	if !sum.HasData {
		b.WriteString("No data is currently loaded. Tell the user to load or upload order data first.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "SUMMARY\nCustomers: %d | Orders: %d | Net discrepancy: %.2f CAD | Overcharged orders: %d | Undercharged orders: %d | Avg discrepancy rate: %.2f%% | Critical customers: %d\nSource: %s\n\n",
		sum.TotalCustomers, sum.TotalOrders, sum.TotalDiscrepancy,
		sum.TotalOvercharges, sum.TotalUndercharges,
		sum.AvgDiscrepancyRate, sum.CriticalCustomers, sum.Source)

	var green, yellow, red int
	for _, s := range stats {
		switch s.Severity {
		case domain.SeverityRed:
			red++
		case domain.SeverityYellow:
			yellow++
		default:
			green++
		}
	}
	fmt.Fprintf(&b, "SEVERITY\nred: %d | yellow: %d | green: %d\n\n", red, yellow, green)

	writeTop(&b, "TOP OVERCHARGED", topSigned(stats, false))
	writeTop(&b, "TOP UNDERCHARGED", topSigned(stats, true))

	b.WriteString("CUSTOMERS\n")
	for i, s := range stats {
		if i == contextCustomerCap {
			fmt.Fprintf(&b, "... and %d more customers\n", len(stats)-contextCustomerCap)
			break
		}
		fmt.Fprintf(&b, "%s: %d orders, discrepancy %+.2f CAD, rate %.2f%%, severity %s\n",
			s.Customer, s.Orders, s.TotalDiscrepancy, s.DiscrepancyRate, s.Severity)
	}

	return b.String()
}

// topSigned returns up to five customers ranked by signed totalDiscrepancy:
// most positive first for overcharged, most negative first for undercharged.
// Customers on the wrong side of zero are excluded.
func topSigned(stats []domain.CustomerStat, ascending bool) []domain.CustomerStat {
	picked := make([]domain.CustomerStat, 0, len(stats))
	for _, s := range stats {
		if ascending && s.TotalDiscrepancy < 0 {
			picked = append(picked, s)
		}
		if !ascending && s.TotalDiscrepancy > 0 {
			picked = append(picked, s)
		}
	}

	sort.SliceStable(picked, func(a, b int) bool {
		if ascending {
			return picked[a].TotalDiscrepancy < picked[b].TotalDiscrepancy
		}
		return picked[a].TotalDiscrepancy > picked[b].TotalDiscrepancy
	})

	if len(picked) > 5 {
		picked = picked[:5]
	}
	return picked
}

func writeTop(b *strings.Builder, heading string, top []domain.CustomerStat) {
	fmt.Fprintf(b, "%s\n", heading)
	if len(top) == 0 {
		b.WriteString("none\n")
	}
	for _, s := range top {
		fmt.Fprintf(b, "%s: %+.2f CAD over %d orders\n", s.Customer, s.TotalDiscrepancy, s.Orders)
	}
	b.WriteString("\n")
}
