package payroll

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSettle(t *testing.T) {
	rates := map[int64]decimal.Decimal{1: dec("1000"), 2: dec("800")}
	entries := []DayEntry{
		entry(1, 0, "8", "0", "0", "0", false),
		entry(2, 0, "5", "0", "0", "0", false),
	}
	week, err := ComputeWeeklyPayroll(monday, DefaultFactors, entries, rates)
	if err != nil {
		t.Fatalf("ComputeWeeklyPayroll: %v", err)
	}

	payments := []Payment{
		{EmployeeID: 1, Date: monday.AddDays(3), Amount: dec("3000")},
		{EmployeeID: 1, Date: monday.AddDays(5), Amount: dec("2000")},
		{EmployeeID: 4, Date: monday.AddDays(5), Amount: dec("100")},
	}

	got := Settle(week, payments)
	if len(got) != 3 {
		t.Fatalf("expected 3 settlements, got %+v", got)
	}

	equalDecimal(t, "emp1 paid", got[0].Paid, dec("5000"))
	equalDecimal(t, "emp1 balance", got[0].Balance, dec("3000"))
	equalDecimal(t, "emp2 balance", got[1].Balance, dec("4000"))
	if got[2].EmployeeID != 4 {
		t.Fatalf("expected payment-only employee last, got %+v", got[2])
	}
	equalDecimal(t, "emp4 balance", got[2].Balance, dec("-100"))
}
