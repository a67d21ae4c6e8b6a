package repository

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/freightlens/reconciler/internal/domain"
	"github.com/freightlens/reconciler/internal/ingestion"
)

// OrderRepo reads the flat order extract from the freight warehouse. It is a
// bulk row source only: the reconciliation core never writes back beyond its
// in-memory snapshot. Inserts exist to seed a local database for development.
type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

func (r *OrderRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM orders").Scan(&count)
	return count, err
}

// FetchRows pulls every order row as display-named string fields, the shape
// the normalizer consumes. Prices travel as text so the core's parse-or-zero
// contract applies uniformly to warehouse and CSV input.
func (r *OrderRepo) FetchRows() ([]ingestion.RawRow, error) {
	rows, err := r.db.Query(
		`SELECT order_number, customer, order_date, transport_type, service_type,
		        carrier, lane, origin_country, destination_country,
		        selling_price_cad, billed_price_cad, margin, margin_pct
		 FROM orders ORDER BY order_date, order_number`,
	)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []ingestion.RawRow
	for rows.Next() {
		var (
			orderNumber, customer, date         string
			transportType, serviceType, carrier string
			lane, originCountry, destCountry    string
			selling, billed, margin, marginPct  float64
		)
		if err := rows.Scan(
			&orderNumber, &customer, &date, &transportType, &serviceType,
			&carrier, &lane, &originCountry, &destCountry,
			&selling, &billed, &margin, &marginPct,
		); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}

		out = append(out, ingestion.RawRow{
			ingestion.ColOrderNumber:   orderNumber,
			ingestion.ColCustomer:      customer,
			ingestion.ColDate:          date,
			ingestion.ColTransportType: transportType,
			ingestion.ColServiceType:   serviceType,
			ingestion.ColCarrier:       carrier,
			ingestion.ColLane:          lane,
			ingestion.ColOriginCountry: originCountry,
			ingestion.ColDestCountry:   destCountry,
			ingestion.ColSellingPrice:  formatAmount(selling),
			ingestion.ColBilledPrice:   formatAmount(billed),
			ingestion.ColMargin:        formatAmount(margin),
			ingestion.ColMarginPct:     formatAmount(marginPct),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	return out, nil
}

// BulkInsert seeds order rows, skipping duplicates on (order_number, customer).
func (r *OrderRepo) BulkInsert(records []domain.OrderRecord) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO orders
		(order_number, customer, order_date, transport_type, service_type,
		 carrier, lane, origin_country, destination_country,
		 selling_price_cad, billed_price_cad, margin, margin_pct)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range records {
		rec := &records[i]
		res, err := stmt.Exec(
			rec.OrderNumber, rec.Customer, rec.Date, rec.TransportType,
			rec.ServiceType, rec.Carrier, rec.Lane, rec.OriginCountry,
			rec.DestCountry, rec.SellingPrice, rec.BilledPrice,
			rec.Margin, rec.MarginPct,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert row %d: %w", i, err)
		}
		ra, _ := res.RowsAffected()
		inserted += int(ra)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
