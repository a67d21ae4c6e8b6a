// Package ingestion converts heterogeneous raw input — warehouse result rows
// or parsed CSV rows, both keyed by display-style column names — into
// canonical order records. One bad field never fails a load: numeric parse
// failures degrade to 0 and a missing customer degrades to "Unknown".
package ingestion

import (
	"math"
	"strconv"
	"strings"

	"github.com/freightlens/reconciler/internal/domain"
)

// RawRow is one pre-normalization row: display-style column name → string value.
type RawRow map[string]string

// Display-style column names shared by the warehouse extract and CSV exports.
const (
	ColOrderNumber   = "Order Number"
	ColCustomer      = "Customer"
	ColDate          = "Date"
	ColTransportType = "Transport Type"
	ColServiceType   = "Service Type"
	ColCarrier       = "Carrier"
	ColLane          = "Lane"
	ColOriginCountry = "Origin Country"
	ColDestCountry   = "Destination Country"
	ColSellingPrice  = "Selling Price (CAD)"
	ColBilledPrice   = "Billed Price (CAD)"
	ColMargin        = "Margin"
	ColMarginPct     = "Margin %"
)

// Normalize converts one raw row into a canonical OrderRecord. The second
// return value is false when the row is entirely empty and should be dropped
// (residual blank CSV lines).
func Normalize(row RawRow) (domain.OrderRecord, bool) {
	if isEmpty(row) {
		return domain.OrderRecord{}, false
	}

	rec := domain.OrderRecord{
		OrderNumber:   field(row, ColOrderNumber),
		Customer:      field(row, ColCustomer),
		Date:          field(row, ColDate),
		TransportType: field(row, ColTransportType),
		ServiceType:   field(row, ColServiceType),
		Carrier:       field(row, ColCarrier),
		Lane:          field(row, ColLane),
		OriginCountry: field(row, ColOriginCountry),
		DestCountry:   field(row, ColDestCountry),
		SellingPrice:  money(row, ColSellingPrice),
		BilledPrice:   money(row, ColBilledPrice),
		Margin:        money(row, ColMargin),
		MarginPct:     money(row, ColMarginPct),
	}

	if rec.Customer == "" {
		rec.Customer = domain.UnknownCustomer
	}

	rec.Discrepancy = domain.Round2(rec.BilledPrice - rec.SellingPrice)
	rec.Flag = domain.FlagFor(rec.Discrepancy)

	return rec, true
}

// NormalizeAll normalizes a batch of raw rows, dropping empty ones.
func NormalizeAll(rows []RawRow) []domain.OrderRecord {
	records := make([]domain.OrderRecord, 0, len(rows))
	for _, row := range rows {
		if rec, ok := Normalize(row); ok {
			records = append(records, rec)
		}
	}
	return records
}

func field(row RawRow, name string) string {
	return strings.TrimSpace(row[name])
}

// money parses a textual decimal amount, tolerating currency symbols and
// thousands separators. Unparseable, empty, or non-finite values become 0:
// ParseFloat accepts "NaN" and "Inf" spellings, and either would poison every
// downstream sum.
func money(row RawRow, name string) float64 {
	s := field(row, name)
	if s == "" {
		return 0
	}
	s = strings.NewReplacer("$", "", ",", "", "%", "", " ", "").Replace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func isEmpty(row RawRow) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
