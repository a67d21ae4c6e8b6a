package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/freightlens/reconciler/internal/assistant"
	"github.com/freightlens/reconciler/internal/domain"
	"github.com/freightlens/reconciler/internal/ingestion"
	"github.com/freightlens/reconciler/internal/repository"
	"github.com/freightlens/reconciler/internal/snapshot"
)

// SourceDatabase is the source label applied to warehouse refresh loads.
const SourceDatabase = "refreshed from database"

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	store        *snapshot.Store
	orderRepo    *repository.OrderRepo
	assistantSvc *assistant.Service
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// parseDateRange reads optional from/to query parameters. Bounds must be ISO
// YYYY-MM-DD; comparison downstream is lexicographic, so no time parsing.
func parseDateRange(r *http.Request) (domain.DateRange, error) {
	q := r.URL.Query()
	dr := domain.DateRange{
		From: strings.TrimSpace(q.Get("from")),
		To:   strings.TrimSpace(q.Get("to")),
	}
	if dr.From != "" && !isoDate.MatchString(dr.From) {
		return domain.DateRange{}, fmt.Errorf("invalid from date %q, expected YYYY-MM-DD", dr.From)
	}
	if dr.To != "" && !isoDate.MatchString(dr.To) {
		return domain.DateRange{}, fmt.Errorf("invalid to date %q, expected YYYY-MM-DD", dr.To)
	}
	return dr, nil
}

// --- Health ---

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- GetStats ---

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	dr, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.store.Stats(dr))
}

// --- GetCustomers ---

func (h *Handlers) GetCustomers(w http.ResponseWriter, r *http.Request) {
	dr, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	customers := h.store.Customers(dr)
	writeJSON(w, http.StatusOK, map[string]any{
		"customers": customers,
		"total":     len(customers),
	})
}

// --- GetOrdersByCustomer ---

func (h *Handlers) GetOrdersByCustomer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "customer name is required")
		return
	}

	dr, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	orders := h.store.OrdersByCustomer(name, dr)
	writeJSON(w, http.StatusOK, map[string]any{
		"customer": name,
		"orders":   orders,
		"total":    len(orders),
	})
}

// --- Upload ---

// preAggregatedPayload is the client-side pre-aggregation upload shape. The
// load bypasses normalization and aggregation entirely.
type preAggregatedPayload struct {
	Stats     []domain.CustomerStat `json:"stats"`
	Orders    []domain.OrderRecord  `json:"orders"`
	TotalRows int                   `json:"total_rows"`
	Source    string                `json:"source"`
}

// Upload accepts either a multipart CSV file or an application/json body with
// pre-aggregated stats and flat orders.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		h.uploadPreAggregated(w, r)
		return
	}
	h.uploadCSV(w, r)
}

func (h *Handlers) uploadCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read file: "+err.Error())
		return
	}

	records, err := ingestion.ParseCSVRecords(data)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "parse CSV: "+err.Error())
		return
	}

	source := r.FormValue("source")
	if source == "" {
		source = header.Filename
	}

	writeJSON(w, http.StatusOK, h.store.Load(records, source))
}

func (h *Handlers) uploadPreAggregated(w http.ResponseWriter, r *http.Request) {
	var payload preAggregatedPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if len(payload.Stats) == 0 && len(payload.Orders) == 0 {
		writeError(w, http.StatusBadRequest, "stats or orders are required")
		return
	}

	source := payload.Source
	if source == "" {
		source = "client upload"
	}

	result := h.store.LoadPreAggregated(payload.Stats, payload.Orders, payload.TotalRows, source)
	writeJSON(w, http.StatusOK, result)
}

// --- Clear ---

func (h *Handlers) Clear(w http.ResponseWriter, r *http.Request) {
	h.store.Clear()
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// --- Refresh ---

// Refresh re-pulls the flat order extract from the warehouse and reloads the
// snapshot. A source failure leaves the previous snapshot in place.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	rows, err := h.orderRepo.FetchRows()
	if err != nil {
		log.Printf("[api] WARNING: warehouse refresh failed, keeping previous snapshot: %v", err)
		writeError(w, http.StatusServiceUnavailable, "warehouse unavailable: "+err.Error())
		return
	}

	records := ingestion.NormalizeAll(rows)
	writeJSON(w, http.StatusOK, h.store.Load(records, SourceDatabase))
}

// --- Chat ---

type chatRequest struct {
	Message string `json:"message"`
	From    string `json:"from"`
	To      string `json:"to"`
}

func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	dr := domain.DateRange{From: req.From, To: req.To}
	if dr.From != "" && !isoDate.MatchString(dr.From) {
		writeError(w, http.StatusBadRequest, "invalid from date, expected YYYY-MM-DD")
		return
	}
	if dr.To != "" && !isoDate.MatchString(dr.To) {
		writeError(w, http.StatusBadRequest, "invalid to date, expected YYYY-MM-DD")
		return
	}

	answer := h.assistantSvc.Chat(r.Context(), req.Message, dr)
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}
