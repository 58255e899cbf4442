package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/budgetbook/internal/api/middleware"
	"github.com/dvloznov/budgetbook/internal/domain"
	"github.com/dvloznov/budgetbook/internal/reconcile"
	"github.com/dvloznov/budgetbook/internal/report"
	"github.com/rs/zerolog"
)

// ReportBuilder builds workspace reports. *report.Builder satisfies this.
type ReportBuilder interface {
	BuildReport(ctx context.Context, workspaceID string, w report.Window, reporting domain.CurrencyCode) (*domain.Report, error)
}

// Reconciler runs account reconciliations. *reconcile.Engine satisfies this.
type Reconciler interface {
	Reconcile(ctx context.Context, accountID string, assertedBalance float64) (reconcile.Result, error)
}

// ReportsHandler serves report and reconciliation endpoints.
type ReportsHandler struct {
	builder    ReportBuilder
	reconciler Reconciler
	log        zerolog.Logger
}

// NewReportsHandler creates a handler over the report builder and
// reconciliation engine.
func NewReportsHandler(builder ReportBuilder, reconciler Reconciler, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{builder: builder, reconciler: reconciler, log: log}
}

// Register attaches the routes to the mux.
func (h *ReportsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/workspaces/{workspaceID}/report", h.GetReport)
	mux.HandleFunc("POST /api/accounts/{accountID}/reconcile", h.PostReconcile)
}

// GetReport handles GET /api/workspaces/{workspaceID}/report.
// Query: either period=<preset> or start=YYYY-MM-DD&end=YYYY-MM-DD, plus
// currency=<ISO code>.
func (h *ReportsHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workspaceID := r.PathValue("workspaceID")

	currency := domain.NormalizeCurrency(r.URL.Query().Get("currency"))
	if currency == "" {
		middleware.WriteError(w, http.StatusBadRequest, "currency is required")
		return
	}

	window, err := windowFromQuery(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := h.builder.BuildReport(ctx, workspaceID, window, currency)
	if err != nil {
		h.writeDomainError(w, err, "Failed to build report")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, rep)
}

// PostReconcile handles POST /api/accounts/{accountID}/reconcile.
func (h *ReportsHandler) PostReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := r.PathValue("accountID")

	var req struct {
		AssertedBalance *float64 `json:"asserted_balance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AssertedBalance == nil {
		middleware.WriteError(w, http.StatusBadRequest, "asserted_balance is required")
		return
	}

	result, err := h.reconciler.Reconcile(ctx, accountID, *req.AssertedBalance)
	if err != nil {
		h.writeDomainError(w, err, "Failed to reconcile account")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

func (h *ReportsHandler) writeDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrWorkspaceNotFound):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrPeriodLocked):
		middleware.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNoRateAvailable):
		middleware.WriteError(w, http.StatusBadGateway, "FX rates unavailable, report cannot be built")
	default:
		h.log.Error().Err(err).Msg(fallback)
		middleware.WriteError(w, http.StatusInternalServerError, fallback)
	}
}

func windowFromQuery(r *http.Request) (report.Window, error) {
	q := r.URL.Query()
	if period := q.Get("period"); period != "" {
		return report.ResolveWindow(report.Period(period), time.Now())
	}

	start, err := civil.ParseDate(q.Get("start"))
	if err != nil {
		return report.Window{}, errors.New("start must be YYYY-MM-DD when no period is given")
	}
	end, err := civil.ParseDate(q.Get("end"))
	if err != nil {
		return report.Window{}, errors.New("end must be YYYY-MM-DD when no period is given")
	}
	return report.CustomWindow(start, end)
}
