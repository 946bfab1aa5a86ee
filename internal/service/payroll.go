package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Simplici0/dltaller/internal/apperror"
	"github.com/Simplici0/dltaller/internal/payroll"
)

// WeeklyPayroll is a stored week's pay together with what was already paid.
type WeeklyPayroll struct {
	WeekID int64  `json:"weekId"`
	Note   string `json:"note,omitempty"`
	payroll.WeekResult
	Payments    []payroll.Payment    `json:"payments"`
	Settlements []payroll.Settlement `json:"settlements"`
}

// WeeklyPayroll computes a stored week. Every enrolled employee gets a line, and
// factors the week does not store use the defaults.
func (s *Service) WeeklyPayroll(ctx context.Context, weekID int64) (WeeklyPayroll, error) {
	week, err := s.store.GetPayrollWeek(ctx, weekID)
	if err != nil {
		return WeeklyPayroll{}, err
	}

	result, err := payroll.ComputeRosterPayroll(week.WeekStart, week.Factors.WithDefaults(), week.Entries, week.Rates)
	if err != nil {
		return WeeklyPayroll{}, err
	}

	payments, err := s.store.ListPayrollPayments(ctx, weekID)
	if err != nil {
		return WeeklyPayroll{}, err
	}

	log.Debug().
		Int64("week_id", weekID).
		Int("employees", result.Totals.Employees).
		Str("gross_pay", result.Totals.GrossPay.String()).
		Msg("weekly payroll computed")

	return WeeklyPayroll{
		WeekID:      weekID,
		Note:        week.Note,
		WeekResult:  result,
		Payments:    payments,
		Settlements: payroll.Settle(result, payments),
	}, nil
}

// UpdatePayrollFactors stores the multipliers f carries and recomputes the week.
// Multipliers f leaves out keep their stored value.
func (s *Service) UpdatePayrollFactors(ctx context.Context, weekID int64, f payroll.PartialFactors) (WeeklyPayroll, error) {
	if err := f.Validate(); err != nil {
		return WeeklyPayroll{}, err
	}

	if err := s.store.UpdatePayrollFactors(ctx, weekID, f); err != nil {
		return WeeklyPayroll{}, err
	}
	log.Info().Int64("week_id", weekID).Msg("payroll factors updated")

	return s.WeeklyPayroll(ctx, weekID)
}

// SaveDayEntries validates entries against the week, stores them and recomputes the week.
// An entry that registers nothing removes the stored day.
func (s *Service) SaveDayEntries(ctx context.Context, weekID int64, entries []payroll.DayEntry) (WeeklyPayroll, error) {
	week, err := s.store.GetPayrollWeek(ctx, weekID)
	if err != nil {
		return WeeklyPayroll{}, err
	}

	// Same checks the engine runs: dates inside the week, no duplicates, known employees.
	if _, err := payroll.ComputeWeeklyPayroll(week.WeekStart, week.Factors.WithDefaults(), entries, week.Rates); err != nil {
		return WeeklyPayroll{}, err
	}

	stats, err := s.store.UpsertPayrollDays(ctx, weekID, entries)
	if err != nil {
		return WeeklyPayroll{}, err
	}
	log.Info().
		Int64("week_id", weekID).
		Int("upserts", stats.Upserts).
		Int("deletes", stats.Deletes).
		Msg("payroll days saved")

	return s.WeeklyPayroll(ctx, weekID)
}

// RecordPayment stores money paid to an enrolled employee and recomputes the week.
func (s *Service) RecordPayment(ctx context.Context, weekID int64, p payroll.Payment) (WeeklyPayroll, error) {
	if p.Date.IsZero() {
		return WeeklyPayroll{}, apperror.InvalidInput("date", "is required")
	}
	if !p.Amount.IsPositive() {
		return WeeklyPayroll{}, apperror.InvalidInput("amount", "must be > 0, got %s", p.Amount.String())
	}

	id, err := s.store.RecordPayment(ctx, weekID, p)
	if err != nil {
		return WeeklyPayroll{}, err
	}
	log.Info().
		Int64("week_id", weekID).
		Int64("payment_id", id).
		Int64("employee_id", p.EmployeeID).
		Str("amount", p.Amount.String()).
		Msg("payroll payment recorded")

	return s.WeeklyPayroll(ctx, weekID)
}

// DeletePayment removes a payment and recomputes the week.
func (s *Service) DeletePayment(ctx context.Context, weekID, paymentID int64) (WeeklyPayroll, error) {
	if err := s.store.DeletePayment(ctx, weekID, paymentID); err != nil {
		return WeeklyPayroll{}, err
	}
	log.Info().Int64("week_id", weekID).Int64("payment_id", paymentID).Msg("payroll payment deleted")

	return s.WeeklyPayroll(ctx, weekID)
}
