// Package unitcost resolves raw-material unit costs from purchase history.
package unitcost

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/dltaller/internal/apperror"
	"github.com/Simplici0/dltaller/internal/civil"
)

// Places is the precision resolved unit costs are rounded to (half-even).
const Places = 6

// PurchaseLine is one purchased product, quantity in its base unit.
type PurchaseLine struct {
	PurchaseID int64           `json:"purchaseId"`
	ProductID  int64           `json:"productId"`
	Date       civil.Date      `json:"date"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unitCost"`
	Discount   decimal.Decimal `json:"discount"`
}

// Total is the line amount after discount.
func (l PurchaseLine) Total() decimal.Decimal {
	return l.Quantity.Mul(l.UnitCost).Sub(l.Discount)
}

// PurchaseTotal sums line totals in order.
func PurchaseTotal(lines []PurchaseLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total())
	}
	return total
}

// ResolveAverage returns the weighted average cost per base unit of each product,
// counting only purchases dated on or before asOf (every purchase when asOf is zero).
// Products with no purchased quantity are absent from the result.
func ResolveAverage(lines []PurchaseLine, asOf civil.Date) (map[int64]decimal.Decimal, error) {
	if err := validate(lines); err != nil {
		return nil, err
	}

	spent := make(map[int64]decimal.Decimal)
	bought := make(map[int64]decimal.Decimal)
	for _, l := range lines {
		if !asOf.IsZero() && l.Date.After(asOf) {
			continue
		}
		spent[l.ProductID] = spent[l.ProductID].Add(l.Total())
		bought[l.ProductID] = bought[l.ProductID].Add(l.Quantity)
	}

	costs := make(map[int64]decimal.Decimal, len(bought))
	for id, qty := range bought {
		if !qty.IsPositive() {
			continue
		}
		avg := spent[id].Div(qty)
		if avg.IsNegative() {
			avg = decimal.Zero
		}
		costs[id] = avg.RoundBank(Places)
	}
	return costs, nil
}

// ProductIDs returns the distinct products of lines, ascending.
func ProductIDs(lines []PurchaseLine) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func validate(lines []PurchaseLine) error {
	for i, l := range lines {
		field := fmt.Sprintf("purchases[%d]", i)
		if l.Quantity.IsNegative() {
			return apperror.InvalidInput(field+".quantity", "must be >= 0, got %s", l.Quantity.String())
		}
		if l.UnitCost.IsNegative() {
			return apperror.InvalidInput(field+".unitCost", "must be >= 0, got %s", l.UnitCost.String())
		}
		if l.Discount.IsNegative() {
			return apperror.InvalidInput(field+".discount", "must be >= 0, got %s", l.Discount.String())
		}
	}
	return nil
}
