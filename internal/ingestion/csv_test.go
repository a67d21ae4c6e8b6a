package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightlens/reconciler/internal/domain"
)

func TestParseCSV(t *testing.T) {
	data := []byte("Order Number,Customer,Selling Price (CAD),Billed Price (CAD)\n" +
		"FL-1,ACME,100.00,150.00\n" +
		"FL-2,BETA,500.00,450.00\n")

	rows, err := ParseCSV(data)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "ACME", rows[0][ColCustomer])
	assert.Equal(t, "150.00", rows[0][ColBilledPrice])
	assert.Equal(t, "BETA", rows[1][ColCustomer])
}

func TestParseCSVQuotedFields(t *testing.T) {
	// Quoted fields carry literal commas, doubled quotes, and newlines.
	data := []byte("Order Number,Customer,Lane\n" +
		"FL-1,\"Acme, Inc.\",\"Toronto, ON -> Chicago, IL\"\n" +
		"FL-2,\"He said \"\"go\"\"\",\"line one\nline two\"\n")

	rows, err := ParseCSV(data)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Acme, Inc.", rows[0][ColCustomer])
	assert.Equal(t, "Toronto, ON -> Chicago, IL", rows[0][ColLane])
	assert.Equal(t, `He said "go"`, rows[1][ColCustomer])
	assert.Equal(t, "line one\nline two", rows[1][ColLane])
}

func TestParseCSVCRLF(t *testing.T) {
	data := []byte("Order Number,Customer\r\nFL-1,ACME\r\nFL-2,BETA\r\n")

	rows, err := ParseCSV(data)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ACME", rows[0][ColCustomer])
}

func TestParseCSVShortRowPadsEmpty(t *testing.T) {
	data := []byte("Order Number,Customer,Carrier\nFL-1,ACME\n")

	rows, err := ParseCSV(data)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0][ColCarrier])
}

func TestParseCSVEmptyInput(t *testing.T) {
	_, err := ParseCSV(nil)
	assert.Error(t, err)
}

func TestParseCSVRecords(t *testing.T) {
	data := []byte("Order Number,Customer,Date,Selling Price (CAD),Billed Price (CAD)\n" +
		"FL-1,ACME,2025-10-01,100.00,150.00\n" +
		",,,,\n" + // residual blank line is dropped
		"FL-2,,2025-10-02,200.00,200.00\n")

	records, err := ParseCSVRecords(data)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, domain.FlagOvercharge, records[0].Flag)
	assert.Equal(t, domain.UnknownCustomer, records[1].Customer)
	assert.Equal(t, domain.FlagMatch, records[1].Flag)
}
