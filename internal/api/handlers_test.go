package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightlens/reconciler/internal/assistant"
	"github.com/freightlens/reconciler/internal/domain"
	"github.com/freightlens/reconciler/internal/repository"
	"github.com/freightlens/reconciler/internal/snapshot"
)

type fakeCompleter struct {
	answer string
}

func (f *fakeCompleter) Complete(context.Context, []assistant.Message) (string, error) {
	return f.answer, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *snapshot.Store, *repository.OrderRepo) {
	t.Helper()

	db, err := repository.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := snapshot.New(nil)
	orderRepo := repository.NewOrderRepo(db)
	assistantSvc := assistant.NewService(store, &fakeCompleter{answer: "fine"})

	srv := httptest.NewServer(NewRouter(store, orderRepo, assistantSvc))
	t.Cleanup(srv.Close)
	return srv, store, orderRepo
}

const scenarioCSV = "Order Number,Customer,Date,Selling Price (CAD),Billed Price (CAD)\n" +
	"FL-1,ACME,2025-10-01,100.00,150.00\n" +
	"FL-2,ACME,2025-10-02,200.00,200.00\n" +
	"FL-3,BETA,2025-10-03,500.00,450.00\n"

func uploadCSV(t *testing.T, srv *httptest.Server, csvData string) *http.Response {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "orders.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csvData))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/v1/upload", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadCSVThenStats(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := uploadCSV(t, srv, scenarioCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var load snapshot.LoadResult
	decode(t, resp, &load)
	assert.Equal(t, 3, load.Rows)
	assert.Equal(t, 2, load.Customers)
	assert.Equal(t, "orders.csv", load.Source)

	resp, err := http.Get(srv.URL + "/api/v1/stats")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats snapshot.StatsResponse
	decode(t, resp, &stats)
	assert.True(t, stats.HasData)
	assert.Equal(t, 2, stats.TotalCustomers)
	assert.Equal(t, 3, stats.TotalOrders)
	assert.Equal(t, 0.0, stats.TotalDiscrepancy)
	assert.Equal(t, 1, stats.TotalOvercharges)
	assert.Equal(t, 1, stats.TotalUndercharges)
}

func TestStatsDateFilter(t *testing.T) {
	srv, _, _ := newTestServer(t)
	uploadCSV(t, srv, scenarioCSV).Body.Close()

	resp, err := http.Get(srv.URL + "/api/v1/stats?from=2025-10-02")
	require.NoError(t, err)

	var stats snapshot.StatsResponse
	decode(t, resp, &stats)
	assert.Equal(t, 2, stats.TotalOrders)
	assert.True(t, stats.HasData)
}

func TestStatsRejectsBadDate(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/stats?from=10-02-2025")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetCustomers(t *testing.T) {
	srv, _, _ := newTestServer(t)
	uploadCSV(t, srv, scenarioCSV).Body.Close()

	resp, err := http.Get(srv.URL + "/api/v1/customers")
	require.NoError(t, err)

	var body struct {
		Customers []domain.CustomerStat `json:"customers"`
		Total     int                   `json:"total"`
	}
	decode(t, resp, &body)

	require.Equal(t, 2, body.Total)
	acme := body.Customers[0]
	if acme.Customer != "ACME" {
		acme = body.Customers[1]
	}
	assert.Equal(t, 50.0, acme.TotalDiscrepancy)
	assert.Equal(t, domain.SeverityYellow, acme.Severity)
}

func TestGetOrdersByCustomer(t *testing.T) {
	srv, _, _ := newTestServer(t)
	uploadCSV(t, srv, scenarioCSV).Body.Close()

	resp, err := http.Get(srv.URL + "/api/v1/customers/" + url.PathEscape("ACME") + "/orders")
	require.NoError(t, err)

	var body struct {
		Customer string               `json:"customer"`
		Orders   []domain.OrderRecord `json:"orders"`
		Total    int                  `json:"total"`
	}
	decode(t, resp, &body)

	assert.Equal(t, "ACME", body.Customer)
	require.Equal(t, 2, body.Total)
	assert.Equal(t, 50.0, body.Orders[0].Discrepancy)
	assert.Equal(t, domain.FlagOvercharge, body.Orders[0].Flag)
	assert.Equal(t, domain.FlagMatch, body.Orders[1].Flag)
}

func TestUploadPreAggregated(t *testing.T) {
	srv, _, _ := newTestServer(t)

	payload := `{
		"stats": [{"customer":"ACME","orders":10,"total_selling":1000,"total_billed":1700,"total_discrepancy":700,"overcharges":10,"severity":"red"}],
		"orders": [],
		"total_rows": 10,
		"source": "Q3 export"
	}`
	resp, err := http.Post(srv.URL+"/api/v1/upload", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var load snapshot.LoadResult
	decode(t, resp, &load)
	assert.Equal(t, 10, load.Rows)
	assert.Equal(t, "Q3 export", load.Source)

	resp, err = http.Get(srv.URL + "/api/v1/stats")
	require.NoError(t, err)
	var stats snapshot.StatsResponse
	decode(t, resp, &stats)
	assert.Equal(t, 10, stats.TotalOrders)
	assert.Equal(t, 1, stats.CriticalCustomers)
}

func TestUploadPreAggregatedRejectsEmpty(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/upload", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClear(t *testing.T) {
	srv, _, _ := newTestServer(t)
	uploadCSV(t, srv, scenarioCSV).Body.Close()

	resp, err := http.Post(srv.URL+"/api/v1/clear", "application/json", nil)
	require.NoError(t, err)

	var body map[string]bool
	decode(t, resp, &body)
	assert.True(t, body["success"])

	resp, err = http.Get(srv.URL + "/api/v1/stats")
	require.NoError(t, err)
	var stats snapshot.StatsResponse
	decode(t, resp, &stats)
	assert.False(t, stats.HasData)
	assert.Equal(t, 0, stats.TotalOrders)
}

func TestRefresh(t *testing.T) {
	srv, _, orderRepo := newTestServer(t)

	_, err := orderRepo.BulkInsert([]domain.OrderRecord{
		{OrderNumber: "FL-1", Customer: "ACME", Date: "2025-10-01", SellingPrice: 100, BilledPrice: 150},
		{OrderNumber: "FL-2", Customer: "BETA", Date: "2025-10-02", SellingPrice: 500, BilledPrice: 450},
	})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/v1/refresh", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var load snapshot.LoadResult
	decode(t, resp, &load)
	assert.Equal(t, 2, load.Rows)
	assert.Equal(t, SourceDatabase, load.Source)

	resp, err = http.Get(srv.URL + "/api/v1/stats")
	require.NoError(t, err)
	var stats snapshot.StatsResponse
	decode(t, resp, &stats)
	assert.Equal(t, 2, stats.TotalOrders)
	assert.Equal(t, 1, stats.TotalOvercharges)
	assert.Equal(t, 1, stats.TotalUndercharges)
}

func TestChatEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	uploadCSV(t, srv, scenarioCSV).Body.Close()

	resp, err := http.Post(srv.URL+"/api/v1/chat", "application/json",
		strings.NewReader(`{"message":"how bad is it?"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "fine", body["answer"])
}

func TestChatRequiresMessage(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/chat", "application/json",
		strings.NewReader(`{"message":"  "}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatRejectsBadDate(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/chat", "application/json",
		strings.NewReader(`{"message":"hi","from":"yesterday"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadCSVRejectsMissingFile(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("source", "no file here"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/v1/upload", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
