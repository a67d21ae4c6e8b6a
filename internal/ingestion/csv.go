package ingestion

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/freightlens/reconciler/internal/domain"
)

// ParseCSV reads an uploaded CSV export into raw rows. The first line is the
// header and determines field names positionally. Quoted fields may embed the
// separator, newlines, and doubled quotes; both CRLF and LF files are
// accepted. A data row with fewer fields than the header leaves the excess
// columns as empty strings.
func ParseCSV(data []byte) ([]RawRow, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("empty header row")
	}

	var rows []RawRow
	lineNum := 1
	for {
		lineNum++
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		row := make(RawRow, len(header))
		for i, name := range header {
			if i < len(fields) {
				row[name] = fields[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// ParseCSVRecords parses CSV data straight through to canonical records,
// dropping residual blank lines.
func ParseCSVRecords(data []byte) ([]domain.OrderRecord, error) {
	rows, err := ParseCSV(data)
	if err != nil {
		return nil, err
	}
	return NormalizeAll(rows), nil
}
