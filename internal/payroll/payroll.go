// Package payroll turns weekly hour registrations into gross pay.
package payroll

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/dltaller/internal/apperror"
	"github.com/Simplici0/dltaller/internal/civil"
)

// PayPlaces is the number of decimal places each pay component is rounded to (half-even).
const PayPlaces = 4

// DaysPerWeek is the length of a payroll week.
const DaysPerWeek = 7

// Factors are the multipliers applied to the hourly rate per hour bucket.
type Factors struct {
	OvertimeMultiplier decimal.Decimal `json:"overtimeMultiplier"`
	DoubleMultiplier   decimal.Decimal `json:"doubleMultiplier"`
	HolidayMultiplier  decimal.Decimal `json:"holidayMultiplier"`
}

// DefaultFactors are used when a payroll week has no stored factors.
var DefaultFactors = Factors{
	OvertimeMultiplier: decimal.RequireFromString("1.5"),
	DoubleMultiplier:   decimal.RequireFromString("2"),
	HolidayMultiplier:  decimal.RequireFromString("2"),
}

// WithDefaults replaces missing (zero or negative) multipliers with the defaults.
func (f Factors) WithDefaults() Factors {
	if !f.OvertimeMultiplier.IsPositive() {
		f.OvertimeMultiplier = DefaultFactors.OvertimeMultiplier
	}
	if !f.DoubleMultiplier.IsPositive() {
		f.DoubleMultiplier = DefaultFactors.DoubleMultiplier
	}
	if !f.HolidayMultiplier.IsPositive() {
		f.HolidayMultiplier = DefaultFactors.HolidayMultiplier
	}
	return f
}

// PartialFactors carries the multipliers a caller chose to send. Absent ones are
// taken from a base set, see Over.
type PartialFactors struct {
	OvertimeMultiplier decimal.NullDecimal `json:"overtimeMultiplier"`
	DoubleMultiplier   decimal.NullDecimal `json:"doubleMultiplier"`
	HolidayMultiplier  decimal.NullDecimal `json:"holidayMultiplier"`
}

// Over fills the multipliers p leaves out from base.
func (p PartialFactors) Over(base Factors) Factors {
	if p.OvertimeMultiplier.Valid {
		base.OvertimeMultiplier = p.OvertimeMultiplier.Decimal
	}
	if p.DoubleMultiplier.Valid {
		base.DoubleMultiplier = p.DoubleMultiplier.Decimal
	}
	if p.HolidayMultiplier.Valid {
		base.HolidayMultiplier = p.HolidayMultiplier.Decimal
	}
	return base
}

// Validate rejects sent multipliers that are not positive.
func (p PartialFactors) Validate() error {
	multipliers := []struct {
		field string
		value decimal.NullDecimal
	}{
		{"overtimeMultiplier", p.OvertimeMultiplier},
		{"doubleMultiplier", p.DoubleMultiplier},
		{"holidayMultiplier", p.HolidayMultiplier},
	}
	for _, m := range multipliers {
		if m.value.Valid && !m.value.Decimal.IsPositive() {
			return apperror.InvalidInput(m.field, "must be > 0, got %s", m.value.Decimal.String())
		}
	}
	return nil
}

// WeekStart returns the first day of the payroll week containing d.
func WeekStart(d civil.Date, start time.Weekday) civil.Date {
	return d.StartOfWeek(start)
}

// CheckWeekStart rejects a week start that is not on the start weekday. A missing
// date is left to ComputeWeeklyPayroll.
func CheckWeekStart(weekStart civil.Date, start time.Weekday) error {
	if weekStart.IsZero() {
		return nil
	}
	if first := WeekStart(weekStart, start); first != weekStart {
		return apperror.InvalidInput("weekStart", "%s is a %s, payroll weeks start on %s (try %s)",
			weekStart, weekStart.Weekday(), start, first)
	}
	return nil
}

// DayEntry is the hours one employee worked on one calendar day.
type DayEntry struct {
	EmployeeID    int64           `json:"employeeId"`
	Date          civil.Date      `json:"date"`
	RegularHours  decimal.Decimal `json:"regularHours"`
	OvertimeHours decimal.Decimal `json:"overtimeHours"`
	DoubleHours   decimal.Decimal `json:"doubleHours"`
	// HolidayFlag is informational; HolidayHours alone drives holiday pay.
	HolidayFlag  bool            `json:"holidayFlag"`
	HolidayHours decimal.Decimal `json:"holidayHours"`
}

// IsEmpty reports whether the entry registers nothing at all.
func (e DayEntry) IsEmpty() bool {
	return e.RegularHours.IsZero() && e.OvertimeHours.IsZero() && e.DoubleHours.IsZero() &&
		e.HolidayHours.IsZero() && !e.HolidayFlag
}

// Hours sums hours per bucket.
type Hours struct {
	Regular  decimal.Decimal `json:"regularHours"`
	Overtime decimal.Decimal `json:"overtimeHours"`
	Double   decimal.Decimal `json:"doubleHours"`
	Holiday  decimal.Decimal `json:"holidayHours"`
}

func (h Hours) add(o Hours) Hours {
	return Hours{
		Regular:  h.Regular.Add(o.Regular),
		Overtime: h.Overtime.Add(o.Overtime),
		Double:   h.Double.Add(o.Double),
		Holiday:  h.Holiday.Add(o.Holiday),
	}
}

// Pay holds money per bucket; GrossPay is their sum.
type Pay struct {
	RegularPay  decimal.Decimal `json:"regularPay"`
	OvertimePay decimal.Decimal `json:"overtimePay"`
	DoublePay   decimal.Decimal `json:"doublePay"`
	HolidayPay  decimal.Decimal `json:"holidayPay"`
	GrossPay    decimal.Decimal `json:"grossPay"`
}

func (p Pay) add(o Pay) Pay {
	return Pay{
		RegularPay:  p.RegularPay.Add(o.RegularPay),
		OvertimePay: p.OvertimePay.Add(o.OvertimePay),
		DoublePay:   p.DoublePay.Add(o.DoublePay),
		HolidayPay:  p.HolidayPay.Add(o.HolidayPay),
		GrossPay:    p.GrossPay.Add(o.GrossPay),
	}
}

// DayResult is the pay of one employee-day.
type DayResult struct {
	Date        civil.Date `json:"date"`
	HolidayFlag bool       `json:"holidayFlag"`
	Hours
	Pay
}

// LineResult is the pay of one employee across the week.
type LineResult struct {
	EmployeeID int64           `json:"employeeId"`
	HourlyRate decimal.Decimal `json:"hourlyRate"`
	Hours
	Pay
	Days []DayResult `json:"days"`
}

// Totals aggregate every employee of the week.
type Totals struct {
	Employees int `json:"employees"`
	Hours
	Pay
}

// WeekResult is the full weekly payroll.
type WeekResult struct {
	WeekStart civil.Date   `json:"weekStart"`
	WeekEnd   civil.Date   `json:"weekEnd"`
	Factors   Factors      `json:"factors"`
	Lines     []LineResult `json:"lines"`
	Totals    Totals       `json:"totals"`
}

// ComputeWeeklyPayroll validates the week's entries as a whole and computes gross pay
// per employee-day, per employee-week and for the whole week. Entries must be unique per
// (employee, date) and fall within [weekStart, weekStart+6]; every employee needs a rate.
func ComputeWeeklyPayroll(weekStart civil.Date, factors Factors, entries []DayEntry, rates map[int64]decimal.Decimal) (WeekResult, error) {
	return compute(weekStart, factors, entries, rates, false)
}

// ComputeRosterPayroll is ComputeWeeklyPayroll for a week with a fixed roster: rates
// lists every enrolled employee, and each one gets a line even with no registered days.
func ComputeRosterPayroll(weekStart civil.Date, factors Factors, entries []DayEntry, rates map[int64]decimal.Decimal) (WeekResult, error) {
	return compute(weekStart, factors, entries, rates, true)
}

func compute(weekStart civil.Date, factors Factors, entries []DayEntry, rates map[int64]decimal.Decimal, roster bool) (WeekResult, error) {
	if err := validate(weekStart, factors, entries, rates); err != nil {
		return WeekResult{}, err
	}

	byEmployee := make(map[int64]*LineResult)
	if roster {
		if err := validateRates(rates); err != nil {
			return WeekResult{}, err
		}
		for id, rate := range rates {
			byEmployee[id] = newLine(id, rate)
		}
	}
	for _, e := range entries {
		rate := rates[e.EmployeeID]
		day := computeDay(e, rate, factors)

		line, ok := byEmployee[e.EmployeeID]
		if !ok {
			line = newLine(e.EmployeeID, rate)
			byEmployee[e.EmployeeID] = line
		}
		line.Days = append(line.Days, day)
	}

	ids := make([]int64, 0, len(byEmployee))
	for id := range byEmployee {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := WeekResult{
		WeekStart: weekStart,
		WeekEnd:   weekStart.AddDays(DaysPerWeek - 1),
		Factors:   factors,
		Lines:     make([]LineResult, 0, len(ids)),
		Totals:    Totals{Hours: zeroHours(), Pay: zeroPay()},
	}
	for _, id := range ids {
		line := byEmployee[id]
		sort.Slice(line.Days, func(i, j int) bool { return line.Days[i].Date.Before(line.Days[j].Date) })
		for _, day := range line.Days {
			line.Hours = line.Hours.add(day.Hours)
			line.Pay = line.Pay.add(day.Pay)
		}
		result.Totals.Hours = result.Totals.Hours.add(line.Hours)
		result.Totals.Pay = result.Totals.Pay.add(line.Pay)
		result.Lines = append(result.Lines, *line)
	}
	result.Totals.Employees = len(result.Lines)

	return result, nil
}

func newLine(employeeID int64, rate decimal.Decimal) *LineResult {
	return &LineResult{
		EmployeeID: employeeID,
		HourlyRate: rate,
		Hours:      zeroHours(),
		Pay:        zeroPay(),
		Days:       []DayResult{},
	}
}

func computeDay(e DayEntry, rate decimal.Decimal, f Factors) DayResult {
	pay := Pay{
		RegularPay:  round(e.RegularHours.Mul(rate)),
		OvertimePay: round(e.OvertimeHours.Mul(rate).Mul(f.OvertimeMultiplier)),
		DoublePay:   round(e.DoubleHours.Mul(rate).Mul(f.DoubleMultiplier)),
		HolidayPay:  round(e.HolidayHours.Mul(rate).Mul(f.HolidayMultiplier)),
	}
	pay.GrossPay = pay.RegularPay.Add(pay.OvertimePay).Add(pay.DoublePay).Add(pay.HolidayPay)

	return DayResult{
		Date:        e.Date,
		HolidayFlag: e.HolidayFlag,
		Hours: Hours{
			Regular:  e.RegularHours,
			Overtime: e.OvertimeHours,
			Double:   e.DoubleHours,
			Holiday:  e.HolidayHours,
		},
		Pay: pay,
	}
}

func validate(weekStart civil.Date, f Factors, entries []DayEntry, rates map[int64]decimal.Decimal) error {
	if weekStart.IsZero() {
		return apperror.InvalidInput("weekStart", "is required")
	}

	multipliers := []struct {
		field string
		value decimal.Decimal
	}{
		{"factors.overtimeMultiplier", f.OvertimeMultiplier},
		{"factors.doubleMultiplier", f.DoubleMultiplier},
		{"factors.holidayMultiplier", f.HolidayMultiplier},
	}
	for _, m := range multipliers {
		if !m.value.IsPositive() {
			return apperror.InvalidInput(m.field, "must be > 0, got %s", m.value.String())
		}
	}

	weekEnd := weekStart.AddDays(DaysPerWeek - 1)
	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		field := fmt.Sprintf("entries[%d]", i)

		if e.Date.IsZero() {
			return apperror.InvalidInput(field+".date", "is required")
		}
		if offset := e.Date.DaysSince(weekStart); offset < 0 || offset >= DaysPerWeek {
			return apperror.InvalidInput(field+".date", "%s is outside week %s..%s", e.Date, weekStart, weekEnd)
		}

		key := fmt.Sprintf("%d/%s", e.EmployeeID, e.Date)
		if prev, dup := seen[key]; dup {
			return apperror.InvalidInput(field, "employee %d already has entries[%d] on %s", e.EmployeeID, prev, e.Date)
		}
		seen[key] = i

		hours := []struct {
			name  string
			value decimal.Decimal
		}{
			{"regularHours", e.RegularHours},
			{"overtimeHours", e.OvertimeHours},
			{"doubleHours", e.DoubleHours},
			{"holidayHours", e.HolidayHours},
		}
		for _, h := range hours {
			if h.value.IsNegative() {
				return apperror.InvalidInput(field+"."+h.name, "must be >= 0, got %s", h.value.String())
			}
		}

		rate, ok := rates[e.EmployeeID]
		if !ok {
			return apperror.UnknownEmployee(field+".employeeId", e.EmployeeID)
		}
		if rate.IsNegative() {
			return apperror.InvalidInput(fmt.Sprintf("rates[%d]", e.EmployeeID), "must be >= 0, got %s", rate.String())
		}
	}
	return nil
}

func validateRates(rates map[int64]decimal.Decimal) error {
	ids := make([]int64, 0, len(rates))
	for id := range rates {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if rates[id].IsNegative() {
			return apperror.InvalidInput(fmt.Sprintf("rates[%d]", id), "must be >= 0, got %s", rates[id].String())
		}
	}
	return nil
}

func zeroHours() Hours {
	return Hours{Regular: decimal.Zero, Overtime: decimal.Zero, Double: decimal.Zero, Holiday: decimal.Zero}
}

func zeroPay() Pay {
	return Pay{RegularPay: decimal.Zero, OvertimePay: decimal.Zero, DoublePay: decimal.Zero, HolidayPay: decimal.Zero, GrossPay: decimal.Zero}
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(PayPlaces)
}
