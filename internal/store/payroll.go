package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/dltaller/internal/apperror"
	"github.com/Simplici0/dltaller/internal/civil"
	"github.com/Simplici0/dltaller/internal/payroll"
)

// PayrollWeek is a persisted payroll week with its employees and registered days.
type PayrollWeek struct {
	ID        int64
	WeekStart civil.Date
	Note      string
	// Factors are zero where the week stores none; see payroll.Factors.WithDefaults.
	Factors payroll.Factors
	// Rates holds the hourly rate of every employee enrolled in the week.
	Rates   map[int64]decimal.Decimal
	Entries []payroll.DayEntry
}

// DayStats counts the effect of UpsertPayrollDays.
type DayStats struct {
	Upserts int
	Deletes int
}

// GetPayrollWeek loads a payroll week by id.
func (s *Store) GetPayrollWeek(ctx context.Context, id int64) (PayrollWeek, error) {
	w := PayrollWeek{ID: id}
	var weekStart string
	var overtime, double, holiday decimal.NullDecimal
	err := s.db.QueryRowContext(ctx, `
		SELECT week_start, COALESCE(note, ''), overtime_factor, double_factor, holiday_factor
		FROM payroll_weeks
		WHERE id = ?
	`, id).Scan(&weekStart, &w.Note, &overtime, &double, &holiday)
	if err != nil {
		return PayrollWeek{}, notFound(err, "payroll week", id)
	}
	if w.WeekStart, err = scanDate(weekStart); err != nil {
		return PayrollWeek{}, fmt.Errorf("payroll week %d week_start: %w", id, err)
	}
	w.Factors = payroll.Factors{
		OvertimeMultiplier: overtime.Decimal,
		DoubleMultiplier:   double.Decimal,
		HolidayMultiplier:  holiday.Decimal,
	}

	if w.Rates, err = s.listWeekRates(ctx, id); err != nil {
		return PayrollWeek{}, err
	}
	if w.Entries, err = s.listWeekDays(ctx, id); err != nil {
		return PayrollWeek{}, err
	}

	return w, nil
}

func (s *Store) listWeekRates(ctx context.Context, weekID int64) (map[int64]decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, hourly_rate
		FROM payroll_details
		WHERE week_id = ?
	`, weekID)
	if err != nil {
		return nil, fmt.Errorf("query payroll week %d details: %w", weekID, err)
	}
	defer rows.Close()

	rates := make(map[int64]decimal.Decimal)
	for rows.Next() {
		var employeeID int64
		var rate decimal.Decimal
		if err := rows.Scan(&employeeID, &rate); err != nil {
			return nil, fmt.Errorf("scan payroll detail: %w", err)
		}
		rates[employeeID] = rate
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payroll details: %w", err)
	}
	return rates, nil
}

func (s *Store) listWeekDays(ctx context.Context, weekID int64) ([]payroll.DayEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.employee_id, pd.worked_on, pd.regular_hours, pd.overtime_hours,
			pd.double_hours, pd.holiday, pd.holiday_hours
		FROM payroll_days pd
		JOIN payroll_details d ON d.id = pd.detail_id
		WHERE d.week_id = ?
		ORDER BY d.employee_id, pd.worked_on
	`, weekID)
	if err != nil {
		return nil, fmt.Errorf("query payroll week %d days: %w", weekID, err)
	}
	defer rows.Close()

	entries := make([]payroll.DayEntry, 0)
	for rows.Next() {
		var e payroll.DayEntry
		var workedOn string
		if err := rows.Scan(&e.EmployeeID, &workedOn, &e.RegularHours, &e.OvertimeHours,
			&e.DoubleHours, &e.HolidayFlag, &e.HolidayHours); err != nil {
			return nil, fmt.Errorf("scan payroll day: %w", err)
		}
		if e.Date, err = scanDate(workedOn); err != nil {
			return nil, fmt.Errorf("payroll day worked_on: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payroll days: %w", err)
	}
	return entries, nil
}

// UpdatePayrollFactors stores the multipliers f carries and keeps the stored value of
// the ones it leaves out.
func (s *Store) UpdatePayrollFactors(ctx context.Context, weekID int64, f payroll.PartialFactors) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE payroll_weeks
		SET
			overtime_factor = COALESCE(?, overtime_factor),
			double_factor = COALESCE(?, double_factor),
			holiday_factor = COALESCE(?, holiday_factor)
		WHERE id = ?
	`, f.OvertimeMultiplier, f.DoubleMultiplier, f.HolidayMultiplier, weekID)
	if err != nil {
		return fmt.Errorf("update payroll week %d factors: %w", weekID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payroll week %d factors: %w", weekID, err)
	}
	if affected == 0 {
		return apperror.NotFound("payroll week", weekID)
	}
	return nil
}

// UpsertPayrollDays replaces the stored day of each entry. Entries that register
// nothing delete the stored day instead. The whole set is written atomically.
func (s *Store) UpsertPayrollDays(ctx context.Context, weekID int64, entries []payroll.DayEntry) (DayStats, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return DayStats{}, fmt.Errorf("begin payroll days transaction: %w", err)
	}

	stats := DayStats{}
	for i, e := range entries {
		if err := upsertDay(ctx, tx, weekID, i, e, &stats); err != nil {
			_ = tx.Rollback()
			return DayStats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return DayStats{}, fmt.Errorf("commit payroll days transaction: %w", err)
	}
	return stats, nil
}

func upsertDay(ctx context.Context, tx *sql.Tx, weekID int64, i int, e payroll.DayEntry, stats *DayStats) error {
	var detailID int64
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM payroll_details WHERE week_id = ? AND employee_id = ?
	`, weekID, e.EmployeeID).Scan(&detailID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.UnknownEmployee(fmt.Sprintf("entries[%d].employeeId", i), e.EmployeeID)
	}
	if err != nil {
		return fmt.Errorf("find payroll detail for employee %d: %w", e.EmployeeID, err)
	}

	if e.IsEmpty() {
		result, err := tx.ExecContext(ctx, `
			DELETE FROM payroll_days WHERE detail_id = ? AND worked_on = ?
		`, detailID, e.Date.String())
		if err != nil {
			return fmt.Errorf("delete payroll day: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil {
			stats.Deletes += int(n)
		}
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO payroll_days (
			detail_id,
			worked_on,
			regular_hours,
			overtime_hours,
			double_hours,
			holiday,
			holiday_hours
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(detail_id, worked_on) DO UPDATE SET
			regular_hours = excluded.regular_hours,
			overtime_hours = excluded.overtime_hours,
			double_hours = excluded.double_hours,
			holiday = excluded.holiday,
			holiday_hours = excluded.holiday_hours
	`, detailID, e.Date.String(), e.RegularHours.String(), e.OvertimeHours.String(),
		e.DoubleHours.String(), e.HolidayFlag, e.HolidayHours.String()); err != nil {
		return fmt.Errorf("upsert payroll day: %w", err)
	}
	stats.Upserts++
	return nil
}

// ListPayrollPayments returns the payments made against a week, oldest first.
func (s *Store) ListPayrollPayments(ctx context.Context, weekID int64) ([]payroll.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, paid_on, amount, COALESCE(method, ''), COALESCE(note, '')
		FROM payroll_payments
		WHERE week_id = ?
		ORDER BY paid_on, id
	`, weekID)
	if err != nil {
		return nil, fmt.Errorf("query payroll week %d payments: %w", weekID, err)
	}
	defer rows.Close()

	payments := make([]payroll.Payment, 0)
	for rows.Next() {
		var p payroll.Payment
		var paidOn string
		if err := rows.Scan(&p.ID, &p.EmployeeID, &paidOn, &p.Amount, &p.Method, &p.Note); err != nil {
			return nil, fmt.Errorf("scan payroll payment: %w", err)
		}
		if p.Date, err = scanDate(paidOn); err != nil {
			return nil, fmt.Errorf("payroll payment paid_on: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payroll payments: %w", err)
	}
	return payments, nil
}

// RecordPayment stores a payment against a week and returns its id. The employee must
// be enrolled in the week.
func (s *Store) RecordPayment(ctx context.Context, weekID int64, p payroll.Payment) (int64, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM payroll_weeks WHERE id = ?`, weekID).Scan(&exists)
	if err != nil {
		return 0, notFound(err, "payroll week", weekID)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT 1 FROM payroll_details WHERE week_id = ? AND employee_id = ?
	`, weekID, p.EmployeeID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperror.UnknownEmployee("employeeId", p.EmployeeID)
	}
	if err != nil {
		return 0, fmt.Errorf("find payroll detail for employee %d: %w", p.EmployeeID, err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO payroll_payments (week_id, employee_id, paid_on, amount, method, note)
		VALUES (?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''))
	`, weekID, p.EmployeeID, p.Date.String(), p.Amount.String(), p.Method, p.Note)
	if err != nil {
		return 0, fmt.Errorf("insert payroll payment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read payroll payment id: %w", err)
	}
	return id, nil
}

// DeletePayment removes one payment of a week.
func (s *Store) DeletePayment(ctx context.Context, weekID, paymentID int64) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM payroll_payments WHERE id = ? AND week_id = ?
	`, paymentID, weekID)
	if err != nil {
		return fmt.Errorf("delete payroll payment %d: %w", paymentID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete payroll payment %d: %w", paymentID, err)
	}
	if affected == 0 {
		return apperror.NotFound("payroll payment", paymentID)
	}
	return nil
}
