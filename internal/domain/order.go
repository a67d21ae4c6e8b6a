package domain

import "math"

// Flag classifies a single order's billed-vs-quoted outcome.
type Flag string

const (
	FlagOvercharge  Flag = "overcharge"
	FlagUndercharge Flag = "undercharge"
	FlagMatch       Flag = "match"
)

// flagBand absorbs floating-point noise around a zero discrepancy (in CAD).
const flagBand = 0.01

// OrderRecord is the canonical, post-normalization shape of one freight order.
// Prices are CAD amounts; Discrepancy = BilledPrice - SellingPrice rounded to
// two decimals. Margin and MarginPct are passed through from upstream as-is.
type OrderRecord struct {
	OrderNumber   string  `json:"order_number"`
	Customer      string  `json:"customer"`
	Date          string  `json:"date"` // ISO YYYY-MM-DD, may be empty
	TransportType string  `json:"transport_type"`
	ServiceType   string  `json:"service_type"`
	Carrier       string  `json:"carrier"`
	Lane          string  `json:"lane"`
	OriginCountry string  `json:"origin_country"`
	DestCountry   string  `json:"dest_country"`
	SellingPrice  float64 `json:"selling_price"`
	BilledPrice   float64 `json:"billed_price"`
	Discrepancy   float64 `json:"discrepancy"`
	Margin        float64 `json:"margin"`
	MarginPct     float64 `json:"margin_pct"`
	Flag          Flag    `json:"flag"`
}

// FlagFor derives the order flag from a discrepancy amount. This is the only
// place a Flag may be computed.
func FlagFor(discrepancy float64) Flag {
	switch {
	case discrepancy > flagBand:
		return FlagOvercharge
	case discrepancy < -flagBand:
		return FlagUndercharge
	default:
		return FlagMatch
	}
}

// Severity tiers a customer's aggregate discrepancy magnitude.
type Severity string

const (
	SeverityGreen  Severity = "green"
	SeverityYellow Severity = "yellow"
	SeverityRed    Severity = "red"
)

// Severity boundaries in absolute CAD dollars.
const (
	severityYellowFloor = 50.0
	severityRedFloor    = 500.0
)

// SeverityFor tiers an aggregate discrepancy by absolute CAD amount,
// independent of order count or rate.
func SeverityFor(totalDiscrepancy float64) Severity {
	abs := math.Abs(totalDiscrepancy)
	switch {
	case abs < severityYellowFloor:
		return SeverityGreen
	case abs < severityRedFloor:
		return SeverityYellow
	default:
		return SeverityRed
	}
}

// CustomerStat aggregates all orders of one customer within the active record set.
type CustomerStat struct {
	Customer         string   `json:"customer"`
	Orders           int      `json:"orders"`
	TotalSelling     float64  `json:"total_selling"`
	TotalBilled      float64  `json:"total_billed"`
	TotalDiscrepancy float64  `json:"total_discrepancy"`
	Overcharges      int      `json:"overcharges"`
	Undercharges     int      `json:"undercharges"`
	Matches          int      `json:"matches"`
	DiscrepancyRate  float64  `json:"discrepancy_rate"`
	Severity         Severity `json:"severity"`
}

// DateRange is an optional inclusive ISO date window. Empty strings mean
// an open bound.
type DateRange struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool {
	return r.From == "" && r.To == ""
}

// Round2 rounds a CAD amount to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// UnknownCustomer is substituted when a row carries no customer name.
const UnknownCustomer = "Unknown"
