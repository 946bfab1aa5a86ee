package payroll

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/dltaller/internal/civil"
)

// Payment is money already handed to an employee against a payroll week.
type Payment struct {
	ID         int64           `json:"id,omitempty"`
	EmployeeID int64           `json:"employeeId"`
	Date       civil.Date      `json:"date"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method,omitempty"`
	Note       string          `json:"note,omitempty"`
}

// Settlement compares what an employee earned in the week with what was paid.
type Settlement struct {
	EmployeeID int64           `json:"employeeId"`
	GrossPay   decimal.Decimal `json:"grossPay"`
	Paid       decimal.Decimal `json:"paid"`
	Balance    decimal.Decimal `json:"balance"`
}

// Settle returns one settlement per employee that either earned or was paid something,
// ordered by employee id. A negative balance means the employee was overpaid.
func Settle(week WeekResult, payments []Payment) []Settlement {
	gross := make(map[int64]decimal.Decimal)
	paid := make(map[int64]decimal.Decimal)
	for _, line := range week.Lines {
		gross[line.EmployeeID] = line.GrossPay
	}
	for _, p := range payments {
		paid[p.EmployeeID] = paid[p.EmployeeID].Add(p.Amount)
	}

	ids := make([]int64, 0, len(gross)+len(paid))
	for id := range gross {
		ids = append(ids, id)
	}
	for id := range paid {
		if _, ok := gross[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Settlement, 0, len(ids))
	for _, id := range ids {
		out = append(out, Settlement{
			EmployeeID: id,
			GrossPay:   gross[id],
			Paid:       paid[id],
			Balance:    gross[id].Sub(paid[id]),
		})
	}
	return out
}
