package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_pos/internal/consumer"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/go-chi/chi/v5"
)

type SalesReader interface {
	SalesByDate(ctx context.Context, userID, date string) ([]domain.SaleRecord, error)
	Receipt(ctx context.Context, userID, saleID, cashier string) (string, error)
}

type DailyTotalsReader interface {
	Summary(ctx context.Context, userID, date string) (*consumer.DailySummary, error)
}

type ReceiptPrinter interface {
	Print(ctx context.Context, html string) ([]byte, error)
}

type SalesHandler struct {
	sales   SalesReader
	totals  DailyTotalsReader
	printer ReceiptPrinter
	timeout time.Duration
	now     func() time.Time
}

// NewSalesHandler accepts a nil printer; PDF receipts then answer 503.
func NewSalesHandler(sales SalesReader, totals DailyTotalsReader, printer ReceiptPrinter, timeout time.Duration) *SalesHandler {
	return &SalesHandler{
		sales:   sales,
		totals:  totals,
		printer: printer,
		timeout: timeout,
		now:     time.Now,
	}
}

// GET /api/v1/sales?date=YYYY-MM-DD
func (h *SalesHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(ctx)
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}

	sales, err := h.sales.SalesByDate(ctx, userID, date)
	if err != nil {
		handleError(w, err)
		return
	}
	if sales == nil {
		sales = []domain.SaleRecord{}
	}
	respondJSON(w, http.StatusOK, sales)
}

// GET /api/v1/sales/daily?date=YYYY-MM-DD
func (h *SalesHandler) DailyTotals(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(ctx)
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}

	summary, err := h.totals.Summary(ctx, userID, date)
	if errors.Is(err, consumer.ErrNoSales) {
		summary = &consumer.DailySummary{Date: date, ByPayment: map[string]float64{}}
	} else if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// GET /api/v1/sales/{sale_id}/receipt
func (h *SalesHandler) ReceiptHTML(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	html, ok := h.renderReceipt(ctx, w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

// GET /api/v1/sales/{sale_id}/receipt.pdf
func (h *SalesHandler) ReceiptPDF(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if h.printer == nil {
		respondError(w, http.StatusServiceUnavailable, "printing_unavailable", "no print surface configured")
		return
	}

	html, ok := h.renderReceipt(ctx, w, r)
	if !ok {
		return
	}
	pdf, err := h.printer.Print(ctx, html)
	if err != nil {
		handleError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="receipt-`+chi.URLParam(r, "sale_id")+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *SalesHandler) renderReceipt(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := getUserIDFromContext(ctx)
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return "", false
	}
	html, err := h.sales.Receipt(ctx, userID, chi.URLParam(r, "sale_id"), getCashierFromContext(ctx))
	if err != nil {
		handleError(w, err)
		return "", false
	}
	return html, true
}

// dateParam defaults to today (UTC), matching how sales are indexed.
func (h *SalesHandler) dateParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := r.URL.Query().Get("date")
	if date == "" {
		return h.now().UTC().Format(time.DateOnly), true
	}
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return "", false
	}
	return date, true
}
