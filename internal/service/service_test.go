package service

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/dltaller/internal/apperror"
	"github.com/Simplici0/dltaller/internal/civil"
	"github.com/Simplici0/dltaller/internal/db"
	"github.com/Simplici0/dltaller/internal/migrations"
	"github.com/Simplici0/dltaller/internal/payroll"
	"github.com/Simplici0/dltaller/internal/seed"
	"github.com/Simplici0/dltaller/internal/store"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	svc      *Service
	db       *sql.DB
	recipeID int64
	batchID  int64
	weekID   int64
	ana      int64
	luis     int64
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	database, err := db.Open(ctx, filepath.Join(t.TempDir(), "service-test.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	if err := migrations.Up(ctx, database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	if _, err := seed.Run(ctx, database, seed.Config{GlobalIndirectPct: dec("10")}); err != nil {
		t.Fatalf("run seed: %v", err)
	}

	f := fixture{svc: New(store.New(database), decimal.Zero), db: database}
	f.recipeID = f.lookup(t, `SELECT id FROM recipes WHERE name = ?`, seed.DemoRecipeName)
	f.batchID = f.lookup(t, `SELECT id FROM batches WHERE produced_on = ?`, seed.DemoBatchDate)
	f.weekID = f.lookup(t, `SELECT id FROM payroll_weeks WHERE week_start = ?`, seed.DemoWeekStart)
	f.ana = f.lookup(t, `SELECT id FROM employees WHERE name = ?`, "Ana Pérez")
	f.luis = f.lookup(t, `SELECT id FROM employees WHERE name = ?`, "Luis Gómez")
	return f
}

func (f fixture) lookup(t *testing.T, query string, args ...any) int64 {
	t.Helper()

	var id int64
	if err := f.db.QueryRow(query, args...).Scan(&id); err != nil {
		t.Fatalf("lookup id: %v", err)
	}
	return id
}

func assertDec(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s = %s, want %s", name, got, want)
	}
}

func TestRecipeCostUsesPurchaseHistoryAndSettings(t *testing.T) {
	f := newFixture(t)

	cost, err := f.svc.RecipeCost(context.Background(), f.recipeID, RecipeOverrides{})
	if err != nil {
		t.Fatalf("RecipeCost returned error: %v", err)
	}

	// flour 10 x 1.20, sugar 2 x 1.80 + 1.50 other costs
	assertDec(t, "direct", cost.DirectCost, "17.1")
	assertDec(t, "indirect", cost.IndirectCost, "1.71")
	assertDec(t, "total", cost.TotalCost, "35.81")
	assertDec(t, "yield", cost.YieldQuantity, "40")
	if !cost.UnitCost.Valid {
		t.Fatalf("expected unit cost")
	}
	assertDec(t, "unit", cost.UnitCost.Decimal, "0.8952")
	assertDec(t, "price", cost.SuggestedPrice.Decimal, "1.315")
	if cost.Name != seed.DemoRecipeName {
		t.Fatalf("unexpected name %q", cost.Name)
	}
}

func TestRecipeCostOverrides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cost, err := f.svc.RecipeCost(ctx, f.recipeID, RecipeOverrides{
		Yield:       decimal.NewNullDecimal(decimal.Zero),
		IndirectPct: decimal.NewNullDecimal(decimal.Zero),
	})
	if err != nil {
		t.Fatalf("RecipeCost returned error: %v", err)
	}
	assertDec(t, "total without indirect", cost.TotalCost, "34.1")
	assertDec(t, "yield falls back to outputs", cost.YieldQuantity, "40")

	early, err := f.svc.RecipeCost(ctx, f.recipeID, RecipeOverrides{AsOf: civil.MustParse("2024-04-30")})
	if err != nil {
		t.Fatalf("RecipeCost returned error: %v", err)
	}
	// nothing purchased yet: only other costs remain
	assertDec(t, "direct before purchases", early.DirectCost, "1.5")
	assertDec(t, "total before purchases", early.TotalCost, "18.65")
}

func TestRecipeCostFallsBackToConfiguredIndirect(t *testing.T) {
	f := newFixture(t)
	if _, err := f.db.Exec(`DELETE FROM settings WHERE key = 'global_indirect_pct'`); err != nil {
		t.Fatalf("delete setting: %v", err)
	}
	svc := New(store.New(f.db), dec("20"))

	cost, err := svc.RecipeCost(context.Background(), f.recipeID, RecipeOverrides{})
	if err != nil {
		t.Fatalf("RecipeCost returned error: %v", err)
	}
	assertDec(t, "indirect pct", cost.IndirectPct, "0.2")
	assertDec(t, "indirect", cost.IndirectCost, "3.42")
}

func TestRecipeCostErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.RecipeCost(ctx, 9999, RecipeOverrides{}); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err := f.svc.RecipeCost(ctx, f.recipeID, RecipeOverrides{MarginPct: decimal.NewNullDecimal(dec("-5"))})
	appErr, ok := apperror.As(err)
	if !ok || appErr.Code != apperror.CodeInvalidInput || appErr.Field != "marginPct" {
		t.Fatalf("expected invalid marginPct, got %v", err)
	}
}

func TestBatchCost(t *testing.T) {
	f := newFixture(t)

	cost, err := f.svc.BatchCost(context.Background(), f.batchID, BatchOverrides{})
	if err != nil {
		t.Fatalf("BatchCost returned error: %v", err)
	}
	assertDec(t, "direct", cost.DirectCost, "17.7")
	assertDec(t, "total", cost.TotalCost, "37.97")
	assertDec(t, "produced", cost.YieldQuantity, "42")
	assertDec(t, "unit", cost.UnitCost.Decimal, "0.904")
	if cost.ProducedOn.String() != seed.DemoBatchDate {
		t.Fatalf("unexpected produced on %s", cost.ProducedOn)
	}

	override, err := f.svc.BatchCost(context.Background(), f.batchID, BatchOverrides{IndirectPct: decimal.NewNullDecimal(dec("50"))})
	if err != nil {
		t.Fatalf("BatchCost returned error: %v", err)
	}
	assertDec(t, "indirect override", override.IndirectCost, "8.85")
}

func TestBatchCostWithoutOutputsHasNoUnitCost(t *testing.T) {
	f := newFixture(t)
	if _, err := f.db.Exec(`DELETE FROM batch_outputs WHERE batch_id = ?`, f.batchID); err != nil {
		t.Fatalf("delete outputs: %v", err)
	}

	cost, err := f.svc.BatchCost(context.Background(), f.batchID, BatchOverrides{})
	if err != nil {
		t.Fatalf("BatchCost returned error: %v", err)
	}
	if cost.UnitCost.Valid || cost.SuggestedPrice.Valid {
		t.Fatalf("expected null unit cost and price, got %+v", cost.Result)
	}
	assertDec(t, "total", cost.TotalCost, "37.97")
}

func TestWeeklyPayroll(t *testing.T) {
	f := newFixture(t)

	week, err := f.svc.WeeklyPayroll(context.Background(), f.weekID)
	if err != nil {
		t.Fatalf("WeeklyPayroll returned error: %v", err)
	}

	if !week.Factors.OvertimeMultiplier.Equal(dec("1.5")) {
		t.Fatalf("expected default factors, got %+v", week.Factors)
	}
	if len(week.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(week.Lines))
	}
	assertDec(t, "ana gross", week.Lines[0].GrossPay, "85.5")
	assertDec(t, "luis holiday", week.Lines[1].HolidayPay, "40")
	assertDec(t, "week gross", week.Totals.GrossPay, "165.5")

	if len(week.Settlements) != 2 {
		t.Fatalf("expected 2 settlements, got %+v", week.Settlements)
	}
	assertDec(t, "ana paid", week.Settlements[0].Paid, "20")
	assertDec(t, "ana balance", week.Settlements[0].Balance, "65.5")
	assertDec(t, "luis balance", week.Settlements[1].Balance, "80")
	if len(week.Payments) != 1 || week.Payments[0].EmployeeID != f.ana {
		t.Fatalf("expected ana's payment, got %+v", week.Payments)
	}
}

func TestWeeklyPayrollListsEnrolledEmployeesWithoutDays(t *testing.T) {
	f := newFixture(t)
	res, err := f.db.Exec(`INSERT INTO employees (name, hourly_rate, active) VALUES (?, ?, ?)`, "Marta Solís", "3", true)
	if err != nil {
		t.Fatalf("insert employee: %v", err)
	}
	marta, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("employee id: %v", err)
	}
	if _, err := f.db.Exec(`INSERT INTO payroll_details (week_id, employee_id, hourly_rate) VALUES (?, ?, ?)`, f.weekID, marta, "3"); err != nil {
		t.Fatalf("enroll employee: %v", err)
	}

	week, err := f.svc.WeeklyPayroll(context.Background(), f.weekID)
	if err != nil {
		t.Fatalf("WeeklyPayroll returned error: %v", err)
	}
	if week.Totals.Employees != 3 || len(week.Lines) != 3 {
		t.Fatalf("expected 3 enrolled employees, got %d lines / %d", len(week.Lines), week.Totals.Employees)
	}
	assertDec(t, "week gross", week.Totals.GrossPay, "165.5")

	var found bool
	for _, line := range week.Lines {
		if line.EmployeeID == marta {
			found = true
			assertDec(t, "marta gross", line.GrossPay, "0")
			assertDec(t, "marta rate", line.HourlyRate, "3")
		}
	}
	if !found {
		t.Fatalf("expected a line for employee %d", marta)
	}

	var settled bool
	for _, st := range week.Settlements {
		if st.EmployeeID == marta {
			settled = true
			assertDec(t, "marta balance", st.Balance, "0")
		}
	}
	if !settled {
		t.Fatalf("expected a settlement for employee %d", marta)
	}
}

func TestRecordAndDeletePayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	week, err := f.svc.RecordPayment(ctx, f.weekID, payroll.Payment{
		EmployeeID: f.luis,
		Date:       civil.MustParse("2024-05-19"),
		Amount:     dec("30"),
		Method:     "transferencia",
	})
	if err != nil {
		t.Fatalf("RecordPayment returned error: %v", err)
	}
	assertDec(t, "luis paid", week.Settlements[1].Paid, "30")
	assertDec(t, "luis balance", week.Settlements[1].Balance, "50")

	var paymentID int64
	for _, p := range week.Payments {
		if p.EmployeeID == f.luis {
			paymentID = p.ID
		}
	}
	if paymentID == 0 {
		t.Fatalf("recorded payment missing from %+v", week.Payments)
	}

	week, err = f.svc.DeletePayment(ctx, f.weekID, paymentID)
	if err != nil {
		t.Fatalf("DeletePayment returned error: %v", err)
	}
	assertDec(t, "luis balance after delete", week.Settlements[1].Balance, "80")

	if _, err := f.svc.DeletePayment(ctx, f.weekID, paymentID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRecordPaymentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		payment payroll.Payment
		field   string
		target  error
	}{
		{
			name:    "missing date",
			payment: payroll.Payment{EmployeeID: f.ana, Amount: dec("10")},
			field:   "date",
			target:  apperror.ErrInvalidInput,
		},
		{
			name:    "zero amount",
			payment: payroll.Payment{EmployeeID: f.ana, Date: civil.MustParse("2024-05-19"), Amount: dec("0")},
			field:   "amount",
			target:  apperror.ErrInvalidInput,
		},
		{
			name:    "employee not enrolled",
			payment: payroll.Payment{EmployeeID: 9999, Date: civil.MustParse("2024-05-19"), Amount: dec("10")},
			field:   "employeeId",
			target:  apperror.ErrUnknownEmployee,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.RecordPayment(ctx, f.weekID, tc.payment)
			if !errors.Is(err, tc.target) {
				t.Fatalf("expected %v, got %v", tc.target, err)
			}
			appErr, _ := apperror.As(err)
			if appErr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, appErr.Field)
			}
		})
	}
}

func TestPurchaseTotals(t *testing.T) {
	f := newFixture(t)
	id := f.lookup(t, `SELECT id FROM purchases LIMIT 1`)

	totals, err := f.svc.PurchaseTotals(context.Background(), id)
	if err != nil {
		t.Fatalf("PurchaseTotals returned error: %v", err)
	}
	// 50 x 1.20 + 20 x 2.00 - 4
	assertDec(t, "total", totals.Total, "96")
	assertDec(t, "discount", totals.Discount, "4")
	if totals.Lines != 2 || len(totals.Products) != 2 {
		t.Fatalf("unexpected totals: %+v", totals)
	}

	if _, err := f.svc.PurchaseTotals(context.Background(), 9999); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func nullDec(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(v))
}

func TestUpdatePayrollFactors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	week, err := f.svc.UpdatePayrollFactors(ctx, f.weekID, payroll.PartialFactors{
		OvertimeMultiplier: nullDec("2"),
		DoubleMultiplier:   nullDec("2"),
		HolidayMultiplier:  nullDec("2"),
	})
	if err != nil {
		t.Fatalf("UpdatePayrollFactors returned error: %v", err)
	}
	assertDec(t, "ana gross", week.Lines[0].GrossPay, "90")
	assertDec(t, "week gross", week.Totals.GrossPay, "170")

	_, err = f.svc.UpdatePayrollFactors(ctx, f.weekID, payroll.PartialFactors{
		OvertimeMultiplier: nullDec("0"),
	})
	appErr, ok := apperror.As(err)
	if !ok || appErr.Field != "overtimeMultiplier" {
		t.Fatalf("expected invalid overtimeMultiplier, got %v", err)
	}
}

func TestUpdatePayrollFactorsKeepsUnsentFactors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	week, err := f.svc.UpdatePayrollFactors(ctx, f.weekID, payroll.PartialFactors{OvertimeMultiplier: nullDec("2")})
	if err != nil {
		t.Fatalf("UpdatePayrollFactors returned error: %v", err)
	}
	// double and holiday stay at their defaults
	assertDec(t, "double", week.Factors.DoubleMultiplier, "2")
	assertDec(t, "holiday", week.Factors.HolidayMultiplier, "2")
	assertDec(t, "week gross", week.Totals.GrossPay, "170")

	week, err = f.svc.UpdatePayrollFactors(ctx, f.weekID, payroll.PartialFactors{HolidayMultiplier: nullDec("3")})
	if err != nil {
		t.Fatalf("UpdatePayrollFactors returned error: %v", err)
	}
	assertDec(t, "overtime kept", week.Factors.OvertimeMultiplier, "2")
	// luis: 40 + 4 x 5 x 3
	assertDec(t, "week gross", week.Totals.GrossPay, "190")
}

func TestSaveDayEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	week, err := f.svc.SaveDayEntries(ctx, f.weekID, []payroll.DayEntry{
		{EmployeeID: f.luis, Date: civil.MustParse("2024-05-15"), RegularHours: dec("0"), OvertimeHours: dec("0"), DoubleHours: dec("0"), HolidayHours: dec("0")},
		{EmployeeID: f.luis, Date: civil.MustParse("2024-05-19"), RegularHours: dec("4"), OvertimeHours: dec("0"), DoubleHours: dec("1"), HolidayHours: dec("0")},
	})
	if err != nil {
		t.Fatalf("SaveDayEntries returned error: %v", err)
	}
	// luis: monday 40, holiday removed, sunday 20 + 10
	assertDec(t, "luis gross", week.Lines[1].GrossPay, "70")
	if len(week.Lines[1].Days) != 2 {
		t.Fatalf("expected 2 days for luis, got %+v", week.Lines[1].Days)
	}
}

func TestSaveDayEntriesRejectsInvalidWeekWithoutWriting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		entries []payroll.DayEntry
		field   string
		target  error
	}{
		{
			name: "date outside week",
			entries: []payroll.DayEntry{
				{EmployeeID: f.ana, Date: civil.MustParse("2024-05-20"), RegularHours: dec("8")},
			},
			field:  "entries[0].date",
			target: apperror.ErrInvalidInput,
		},
		{
			name: "duplicate day",
			entries: []payroll.DayEntry{
				{EmployeeID: f.ana, Date: civil.MustParse("2024-05-16"), RegularHours: dec("8")},
				{EmployeeID: f.ana, Date: civil.MustParse("2024-05-16"), RegularHours: dec("2")},
			},
			field:  "entries[1]",
			target: apperror.ErrInvalidInput,
		},
		{
			name: "employee not enrolled",
			entries: []payroll.DayEntry{
				{EmployeeID: 9999, Date: civil.MustParse("2024-05-16"), RegularHours: dec("8")},
			},
			field:  "entries[0].employeeId",
			target: apperror.ErrUnknownEmployee,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.SaveDayEntries(ctx, f.weekID, tc.entries)
			if !errors.Is(err, tc.target) {
				t.Fatalf("expected %v, got %v", tc.target, err)
			}
			appErr, _ := apperror.As(err)
			if appErr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, appErr.Field)
			}
		})
	}

	var count int
	if err := f.db.QueryRow(`SELECT COUNT(*) FROM payroll_days`).Scan(&count); err != nil {
		t.Fatalf("count payroll days: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected no writes, got %d days", count)
	}
}
