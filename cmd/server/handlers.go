package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/dltaller/internal/apperror"
	"github.com/Simplici0/dltaller/internal/civil"
	"github.com/Simplici0/dltaller/internal/costing"
	"github.com/Simplici0/dltaller/internal/payroll"
	"github.com/Simplici0/dltaller/internal/service"
)

const maxBodyBytes = 1 << 20

type envelope struct {
	CalculationID string    `json:"calculation_id"`
	ComputedAt    time.Time `json:"computed_at"`
	Result        any       `json:"result"`
}

type errorBody struct {
	Error *apperror.Error `json:"error"`
}

type weeklyPayrollRequest struct {
	WeekStart civil.Date                `json:"weekStart"`
	Factors   payroll.PartialFactors    `json:"factors"`
	Entries   []payroll.DayEntry        `json:"entries"`
	Rates     map[int64]decimal.Decimal `json:"rates"`
}

type saveDaysRequest struct {
	Entries []payroll.DayEntry `json:"entries"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleRecipeCostCompute(w http.ResponseWriter, r *http.Request) {
	var req costing.RecipeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := costing.ComputeRecipeCost(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeResult(w, result)
}

func (s *server) handleBatchCostCompute(w http.ResponseWriter, r *http.Request) {
	var req costing.BatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := costing.ComputeBatchCost(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeResult(w, result)
}

func (s *server) handleWeeklyPayrollCompute(w http.ResponseWriter, r *http.Request) {
	var req weeklyPayrollRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := payroll.CheckWeekStart(req.WeekStart, s.weekStart); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := payroll.ComputeWeeklyPayroll(req.WeekStart, req.Factors.Over(payroll.DefaultFactors), req.Entries, req.Rates)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeResult(w, result)
}

func (s *server) handleRecipeCost(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var overrides service.RecipeOverrides
	var err error
	if overrides.Yield, err = queryDecimal(r, "yield"); err != nil {
		writeError(w, r, err)
		return
	}
	if overrides.IndirectPct, err = queryDecimal(r, "indirect_pct"); err != nil {
		writeError(w, r, err)
		return
	}
	if overrides.MarginPct, err = queryDecimal(r, "margin_pct"); err != nil {
		writeError(w, r, err)
		return
	}
	if overrides.TaxPct, err = queryDecimal(r, "tax_pct"); err != nil {
		writeError(w, r, err)
		return
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("as_of")); raw != "" {
		if overrides.AsOf, err = civil.Parse(raw); err != nil {
			writeError(w, r, apperror.InvalidInput("as_of", "must be a YYYY-MM-DD date"))
			return
		}
	}

	result, err := s.svc.RecipeCost(r.Context(), id, overrides)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeResult(w, result)
}

func (s *server) handleBatchCost(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	indirect, err := queryDecimal(r, "indirect_pct")
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.svc.BatchCost(r.Context(), id, service.BatchOverrides{IndirectPct: indirect})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeResult(w, result)
}

func (s *server) handlePayrollWeek(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	result, err := s.svc.WeeklyPayroll(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeResult(w, result)
}

func (s *server) handlePayrollFactorsUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var factors payroll.PartialFactors
	if !decodeBody(w, r, &factors) {
		return
	}

	result, err := s.svc.UpdatePayrollFactors(r.Context(), id, factors)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeResult(w, result)
}

func (s *server) handlePayrollDaysSave(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req saveDaysRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.svc.SaveDayEntries(r.Context(), id, req.Entries)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeResult(w, result)
}

func (s *server) handlePayrollPaymentCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var payment payroll.Payment
	if !decodeBody(w, r, &payment) {
		return
	}

	result, err := s.svc.RecordPayment(r.Context(), id, payment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeResult(w, result)
}

func (s *server) handlePayrollPaymentDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	paymentID, ok := parseID(w, r, "paymentID")
	if !ok {
		return
	}

	result, err := s.svc.DeletePayment(r.Context(), id, paymentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeResult(w, result)
}

func (s *server) handlePurchaseTotals(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	result, err := s.svc.PurchaseTotals(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeResult(w, result)
}

func (s *server) writeResult(w http.ResponseWriter, result any) {
	writeJSON(w, http.StatusOK, envelope{
		CalculationID: s.newID(),
		ComputedAt:    s.now().UTC(),
		Result:        result,
	})
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, apperror.InvalidInput(param, "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func queryDecimal(r *http.Request, name string) (decimal.NullDecimal, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, apperror.InvalidInput(name, "must be numeric")
	}
	return decimal.NewNullDecimal(v), nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, apperror.InvalidInput("body", "invalid JSON: %v", err))
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperror.As(err)
	if !ok {
		log.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: &apperror.Error{
			Code:    apperror.CodeInternal,
			Message: "internal error",
		}})
		return
	}

	status := http.StatusUnprocessableEntity
	if appErr.Code == apperror.CodeNotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, errorBody{Error: appErr})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}
